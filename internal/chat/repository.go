package chat

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tiktik-live/backend/internal/models"
)

// Repository persists chat messages.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a chat message repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert stores an accepted message.
func (r *Repository) Insert(ctx context.Context, m *models.ChatMessage) error {
	const q = `INSERT INTO chat_messages
		(stream_id, user_id, user_name, user_avatar, message, is_super_chat, amount_cents, highlight_color)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q,
		m.StreamID, m.UserID, m.UserName, m.UserAvatar,
		m.Message, m.IsSuperChat, m.AmountCents, m.HighlightColor,
	).Scan(&m.ID, &m.CreatedAt)
}

// ListRecent returns the last limit messages in append order. Ordering uses
// the seq column; created_at ties at microsecond resolution.
func (r *Repository) ListRecent(ctx context.Context, streamID uuid.UUID, limit int) ([]models.ChatMessage, error) {
	const q = `SELECT id, stream_id, user_id, user_name, user_avatar, message,
			is_super_chat, amount_cents, highlight_color, created_at
		FROM chat_messages WHERE stream_id = $1
		ORDER BY seq DESC LIMIT $2`
	rows, err := r.pool.Query(ctx, q, streamID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.ChatMessage
	for rows.Next() {
		var m models.ChatMessage
		if err := rows.Scan(&m.ID, &m.StreamID, &m.UserID, &m.UserName, &m.UserAvatar,
			&m.Message, &m.IsSuperChat, &m.AmountCents, &m.HighlightColor, &m.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Oldest first for display.
	for i, j := 0, len(list)-1; i < j; i, j = i+1, j-1 {
		list[i], list[j] = list[j], list[i]
	}
	return list, nil
}

// CountByStream returns the total messages a stream received.
func (r *Repository) CountByStream(ctx context.Context, streamID uuid.UUID) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM chat_messages WHERE stream_id = $1`, streamID).Scan(&n)
	return n, err
}
