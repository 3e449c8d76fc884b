package postgres

import (
	"context"
	"errors"
	"fmt"

	"SkillSwapserver/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RequestsStore persists help requests. Writes are guarded by the version column.
type RequestsStore struct {
	pool *pgxpool.Pool
}

func NewRequestsStore(pool *pgxpool.Pool) *RequestsStore {
	return &RequestsStore{pool: pool}
}

const requestColumns = `id, requester_id, helper_id, completed_by, item, category, description, duration,
	intent, latitude, longitude, status, version, created_at, updated_at`

func scanRequest(row rowScanner) (domain.Request, error) {
	var (
		r           domain.Request
		idUUID      pgtype.UUID
		helperID    pgtype.Text
		completedBy pgtype.Text
		lat, lng    pgtype.Float8
	)
	err := row.Scan(
		&idUUID,
		&r.RequesterID,
		&helperID,
		&completedBy,
		&r.Item,
		&r.Category,
		&r.Description,
		&r.Duration,
		&r.Intent,
		&lat,
		&lng,
		&r.Status,
		&r.Version,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return domain.Request{}, err
	}
	r.ID = uuidOrEmpty(idUUID)
	r.HelperID = textOrEmpty(helperID)
	r.CompletedBy = textOrEmpty(completedBy)
	r.Latitude = float8Ptr(lat)
	r.Longitude = float8Ptr(lng)
	return r, nil
}

func (s *RequestsStore) CreateRequest(ctx context.Context, r domain.Request) (domain.Request, error) {
	q := `
		INSERT INTO help_requests (requester_id, helper_id, item, category, description, duration, intent,
			latitude, longitude, status, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 1, $11, $12)
		RETURNING ` + requestColumns

	created, err := scanRequest(s.pool.QueryRow(ctx, q,
		r.RequesterID, nullIfEmpty(r.HelperID), r.Item, r.Category, r.Description, r.Duration, r.Intent,
		r.Latitude, r.Longitude, r.Status, r.CreatedAt, r.UpdatedAt,
	))
	if err != nil {
		return domain.Request{}, fmt.Errorf("create request: %w", err)
	}
	return created, nil
}

func (s *RequestsStore) GetRequest(ctx context.Context, id string) (domain.Request, error) {
	if !validID(id) {
		return domain.Request{}, domain.ErrNotFound
	}
	q := `SELECT ` + requestColumns + ` FROM help_requests WHERE id = $1`

	r, err := scanRequest(s.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Request{}, domain.ErrNotFound
		}
		return domain.Request{}, fmt.Errorf("get request: %w", err)
	}
	return r, nil
}

// UpdateRequest writes r only while the stored version equals r.Version. The karma award, when
// given, commits in the same transaction.
func (s *RequestsStore) UpdateRequest(ctx context.Context, r domain.Request, award *domain.KarmaAward) (domain.Request, error) {
	if !validID(r.ID) {
		return domain.Request{}, domain.ErrNotFound
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Request{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	q := `
		UPDATE help_requests
		SET helper_id = $3, item = $4, category = $5, description = $6, duration = $7, intent = $8,
			latitude = $9, longitude = $10, status = $11, updated_at = $12, completed_by = $13,
			version = version + 1
		WHERE id = $1 AND version = $2
		RETURNING ` + requestColumns

	updated, err := scanRequest(tx.QueryRow(ctx, q,
		r.ID, r.Version, nullIfEmpty(r.HelperID), r.Item, r.Category, r.Description, r.Duration, r.Intent,
		r.Latitude, r.Longitude, r.Status, r.UpdatedAt, nullIfEmpty(r.CompletedBy),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Request{}, s.missOrConflict(ctx, tx, r.ID)
		}
		return domain.Request{}, fmt.Errorf("update request: %w", err)
	}

	if award != nil {
		const awardQ = `
			UPDATE users
			SET karma = karma + $2, updated_at = now()
			WHERE id = $1
		`
		tag, err := tx.Exec(ctx, awardQ, award.UserID, award.Amount)
		if err != nil {
			return domain.Request{}, fmt.Errorf("award karma: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.Request{}, domain.ErrNotFound
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Request{}, fmt.Errorf("commit tx: %w", err)
	}
	return updated, nil
}

func (s *RequestsStore) DeleteRequest(ctx context.Context, id string, version int64) error {
	if !validID(id) {
		return domain.ErrNotFound
	}
	const q = `DELETE FROM help_requests WHERE id = $1 AND version = $2`

	tag, err := s.pool.Exec(ctx, q, id, version)
	if err != nil {
		return fmt.Errorf("delete request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.missOrConflict(ctx, s.pool, id)
	}
	return nil
}

func (s *RequestsStore) ListRequestsByStatus(ctx context.Context, status domain.RequestStatus) ([]domain.Request, error) {
	q := `SELECT ` + requestColumns + ` FROM help_requests WHERE status = $1 ORDER BY created_at DESC`
	return s.list(ctx, q, status)
}

func (s *RequestsStore) ListRequestsForUser(ctx context.Context, userID string) ([]domain.Request, error) {
	q := `SELECT ` + requestColumns + ` FROM help_requests
		WHERE requester_id = $1 OR helper_id = $1 OR completed_by = $1
		ORDER BY created_at DESC`
	return s.list(ctx, q, userID)
}

func (s *RequestsStore) DeleteRequestsByRequester(ctx context.Context, requesterID string, keep domain.RequestStatus) (int, error) {
	const q = `DELETE FROM help_requests WHERE requester_id = $1 AND status <> $2`

	tag, err := s.pool.Exec(ctx, q, requesterID, keep)
	if err != nil {
		return 0, fmt.Errorf("delete requests by requester: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *RequestsStore) list(ctx context.Context, q string, args ...any) ([]domain.Request, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Request, 0)
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	return out, nil
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// missOrConflict tells a vanished row apart from a stale version after a guarded write hit nothing.
func (s *RequestsStore) missOrConflict(ctx context.Context, db queryRower, id string) error {
	var exists bool
	if err := db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM help_requests WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check request: %w", err)
	}
	if !exists {
		return domain.ErrNotFound
	}
	return domain.ErrConflict
}
