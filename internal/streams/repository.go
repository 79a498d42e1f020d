package streams

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/teris-io/shortid"

	"github.com/tiktik-live/backend/internal/models"
)

const streamColumns = `id, owner_id, title, description, share_slug, playback_url,
	is_live, was_live, peak_viewers, total_viewers, total_watch_time,
	started_at, ended_at, created_at, updated_at`

// Repository handles stream persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a streams repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanStream(row pgx.Row) (*models.Stream, error) {
	var s models.Stream
	err := row.Scan(&s.ID, &s.OwnerID, &s.Title, &s.Description, &s.ShareSlug, &s.PlaybackURL,
		&s.IsLive, &s.WasLive, &s.PeakViewers, &s.TotalViewers, &s.TotalWatchTime,
		&s.StartedAt, &s.EndedAt, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Create inserts a new live stream for a broadcaster.
func (r *Repository) Create(ctx context.Context, ownerID uuid.UUID, title, description, playbackURL string) (*models.Stream, error) {
	slug, err := shortid.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate share slug: %w", err)
	}
	q := fmt.Sprintf(`INSERT INTO streams (owner_id, title, description, share_slug, playback_url, is_live)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		RETURNING %s`, streamColumns)
	return scanStream(r.pool.QueryRow(ctx, q, ownerID, title, description, slug, playbackURL))
}

// GetByID returns a stream by ID, or nil when not found.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Stream, error) {
	q := fmt.Sprintf(`SELECT %s FROM streams WHERE id = $1`, streamColumns)
	s, err := scanStream(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

// GetBySlug returns a stream by share slug, or nil when not found.
func (r *Repository) GetBySlug(ctx context.Context, slug string) (*models.Stream, error) {
	q := fmt.Sprintf(`SELECT %s FROM streams WHERE share_slug = $1`, streamColumns)
	s, err := scanStream(r.pool.QueryRow(ctx, q, slug))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

// List returns streams, live first, newest first.
func (r *Repository) List(ctx context.Context, limit int) ([]models.Stream, error) {
	q := fmt.Sprintf(`SELECT %s FROM streams ORDER BY is_live DESC, started_at DESC LIMIT $1`, streamColumns)
	rows, err := r.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Stream
	for rows.Next() {
		s, err := scanStream(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *s)
	}
	return list, rows.Err()
}

// End flips the stream to ended. Retained as a historical record.
func (r *Repository) End(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE streams SET is_live = FALSE, was_live = TRUE, ended_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND is_live`
	_, err := r.pool.Exec(ctx, q, id)
	return err
}

// Delete removes a stream. Chat messages and settings cascade with it.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM streams WHERE id = $1`, id)
	return err
}

// UpdatePeakViewers raises peak_viewers to count when it is a new high-water mark.
func (r *Repository) UpdatePeakViewers(ctx context.Context, id uuid.UUID, count int) error {
	const q = `UPDATE streams SET peak_viewers = $1, updated_at = NOW() WHERE id = $2 AND $1 > peak_viewers`
	_, err := r.pool.Exec(ctx, q, count, id)
	return err
}

// AddWatchTime adds delta seconds to the stream's cumulative watch time.
func (r *Repository) AddWatchTime(ctx context.Context, id uuid.UUID, delta int64) error {
	const q = `UPDATE streams SET total_watch_time = total_watch_time + $1, updated_at = NOW() WHERE id = $2`
	_, err := r.pool.Exec(ctx, q, delta, id)
	return err
}

// SetAggregates stores the rolled-up totals computed after a stream ends.
func (r *Repository) SetAggregates(ctx context.Context, id uuid.UUID, totalViewers int, totalWatchSeconds int64) error {
	const q = `UPDATE streams SET total_viewers = $1, total_watch_time = $2, updated_at = NOW() WHERE id = $3`
	_, err := r.pool.Exec(ctx, q, totalViewers, totalWatchSeconds, id)
	return err
}
