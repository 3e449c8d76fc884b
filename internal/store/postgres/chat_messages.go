package postgres

import (
	"context"
	"fmt"

	"SkillSwapserver/internal/domain"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type MessagesStore struct {
	pool *pgxpool.Pool
}

func NewMessagesStore(pool *pgxpool.Pool) *MessagesStore {
	return &MessagesStore{pool: pool}
}

const messageColumns = `id, sender_id, recipient_id, content, request_id, kind, sent_at`

func scanMessage(row rowScanner) (domain.ChatMessage, error) {
	var (
		m         domain.ChatMessage
		idUUID    pgtype.UUID
		requestID pgtype.Text
	)
	if err := row.Scan(&idUUID, &m.SenderID, &m.RecipientID, &m.Content, &requestID, &m.Kind, &m.Timestamp); err != nil {
		return domain.ChatMessage{}, err
	}
	m.ID = uuidOrEmpty(idUUID)
	m.RequestID = textOrEmpty(requestID)
	return m, nil
}

func (s *MessagesStore) SaveMessage(ctx context.Context, m domain.ChatMessage) (domain.ChatMessage, error) {
	q := `
		INSERT INTO chat_messages (sender_id, recipient_id, content, request_id, kind, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + messageColumns

	saved, err := scanMessage(s.pool.QueryRow(ctx, q, m.SenderID, m.RecipientID, m.Content, nullIfEmpty(m.RequestID), m.Kind, m.Timestamp))
	if err != nil {
		return domain.ChatMessage{}, fmt.Errorf("save message: %w", err)
	}
	return saved, nil
}

// ListMessagesForUser returns messages the user sent or received, oldest first.
func (s *MessagesStore) ListMessagesForUser(ctx context.Context, userID string) ([]domain.ChatMessage, error) {
	q := `SELECT ` + messageColumns + ` FROM chat_messages
		WHERE sender_id = $1 OR recipient_id = $1
		ORDER BY sent_at, seq`

	rows, err := s.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ChatMessage, 0)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return out, nil
}
