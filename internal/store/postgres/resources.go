package postgres

import (
	"context"
	"fmt"

	"SkillSwapserver/internal/domain"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ResourcesStore struct {
	pool *pgxpool.Pool
}

func NewResourcesStore(pool *pgxpool.Pool) *ResourcesStore {
	return &ResourcesStore{pool: pool}
}

const resourceColumns = `id, owner_id, title, description, category, price, status, created_at`

func scanResource(row rowScanner) (domain.Resource, error) {
	var (
		r      domain.Resource
		idUUID pgtype.UUID
	)
	if err := row.Scan(&idUUID, &r.OwnerID, &r.Title, &r.Description, &r.Category, &r.Price, &r.Status, &r.CreatedAt); err != nil {
		return domain.Resource{}, err
	}
	r.ID = uuidOrEmpty(idUUID)
	return r, nil
}

func (s *ResourcesStore) CreateResource(ctx context.Context, r domain.Resource) (domain.Resource, error) {
	q := `
		INSERT INTO resources (owner_id, title, description, category, price, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + resourceColumns

	created, err := scanResource(s.pool.QueryRow(ctx, q, r.OwnerID, r.Title, r.Description, r.Category, r.Price, r.Status, r.CreatedAt))
	if err != nil {
		return domain.Resource{}, fmt.Errorf("create resource: %w", err)
	}
	return created, nil
}

func (s *ResourcesStore) ListResources(ctx context.Context) ([]domain.Resource, error) {
	return s.list(ctx, `SELECT `+resourceColumns+` FROM resources ORDER BY created_at DESC`)
}

func (s *ResourcesStore) ListResourcesByOwner(ctx context.Context, ownerID string) ([]domain.Resource, error) {
	return s.list(ctx, `SELECT `+resourceColumns+` FROM resources WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
}

func (s *ResourcesStore) list(ctx context.Context, q string, args ...any) ([]domain.Resource, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Resource, 0)
	for rows.Next() {
		r, err := scanResource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan resource: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	return out, nil
}
