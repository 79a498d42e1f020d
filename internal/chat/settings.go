package chat

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tiktik-live/backend/internal/models"
)

// SettingsRepository persists per-stream moderation settings.
type SettingsRepository struct {
	pool          *pgxpool.Pool
	defaultSlowMs int64
}

// NewSettingsRepository creates a settings repository. defaultSlowMs is the
// slow-mode window used when a stream has no settings row yet.
func NewSettingsRepository(pool *pgxpool.Pool, defaultSlowMs int64) *SettingsRepository {
	return &SettingsRepository{pool: pool, defaultSlowMs: defaultSlowMs}
}

// Get returns the stream's settings, falling back to defaults when no row
// exists yet.
func (r *SettingsRepository) Get(ctx context.Context, streamID uuid.UUID) (*models.ChatSettings, error) {
	const q = `SELECT stream_id, banned_user_ids, slow_mode_enabled, slow_mode_ms, updated_at
		FROM chat_settings WHERE stream_id = $1`
	var s models.ChatSettings
	err := r.pool.QueryRow(ctx, q, streamID).Scan(
		&s.StreamID, &s.BannedUserIDs, &s.SlowModeEnabled, &s.SlowModeMs, &s.UpdatedAt)
	if err == pgx.ErrNoRows {
		return &models.ChatSettings{
			StreamID:   streamID,
			SlowModeMs: r.defaultSlowMs,
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// AddBannedUser adds a user to the ban set. Banning twice is a no-op.
func (r *SettingsRepository) AddBannedUser(ctx context.Context, streamID, userID uuid.UUID) error {
	const q = `INSERT INTO chat_settings (stream_id, banned_user_ids, slow_mode_ms)
		VALUES ($1, ARRAY[$2]::uuid[], $3)
		ON CONFLICT (stream_id) DO UPDATE SET
			banned_user_ids = (
				SELECT ARRAY(SELECT DISTINCT unnest(chat_settings.banned_user_ids || $2::uuid))
			),
			updated_at = NOW()`
	_, err := r.pool.Exec(ctx, q, streamID, userID, r.defaultSlowMs)
	return err
}

// SetSlowMode enables or disables slow mode with the given window.
func (r *SettingsRepository) SetSlowMode(ctx context.Context, streamID uuid.UUID, enabled bool, windowMs int64) error {
	if windowMs <= 0 {
		windowMs = r.defaultSlowMs
	}
	const q = `INSERT INTO chat_settings (stream_id, slow_mode_enabled, slow_mode_ms)
		VALUES ($1, $2, $3)
		ON CONFLICT (stream_id) DO UPDATE SET
			slow_mode_enabled = $2, slow_mode_ms = $3, updated_at = NOW()`
	_, err := r.pool.Exec(ctx, q, streamID, enabled, windowMs)
	return err
}
