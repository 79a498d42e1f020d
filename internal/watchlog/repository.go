package watchlog

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SessionRow is one row for GET /streams/:id/viewers/history.
type SessionRow struct {
	UserID       uuid.UUID  `json:"user_id"`
	JoinedAt     time.Time  `json:"joined_at"`
	LeftAt       *time.Time `json:"left_at,omitempty"`
	WatchSeconds int64      `json:"watch_seconds"`
}

// Repository handles watch_sessions.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a watch session repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// LogJoin inserts a session row when a viewer connects and returns its ID.
func (r *Repository) LogJoin(ctx context.Context, streamID, userID uuid.UUID) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx,
		`INSERT INTO watch_sessions (stream_id, user_id, joined_at) VALUES ($1, $2, NOW()) RETURNING id`,
		streamID, userID).Scan(&id)
	return id, err
}

// LogLeave closes a session, computing its watch duration server-side.
func (r *Repository) LogLeave(ctx context.Context, sessionID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE watch_sessions
		 SET left_at = NOW(), watch_seconds = GREATEST(0, EXTRACT(EPOCH FROM (NOW() - joined_at))::BIGINT)
		 WHERE id = $1 AND left_at IS NULL`,
		sessionID)
	return err
}

// CloseStale closes any session left open for a stream, used when a stream
// ends with viewers still connected elsewhere.
func (r *Repository) CloseStale(ctx context.Context, streamID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE watch_sessions
		 SET left_at = NOW(), watch_seconds = GREATEST(0, EXTRACT(EPOCH FROM (NOW() - joined_at))::BIGINT)
		 WHERE stream_id = $1 AND left_at IS NULL`,
		streamID)
	return err
}

// Aggregates holds the session rollup for a stream.
type Aggregates struct {
	TotalWatchSeconds int64
	DistinctViewers   int
}

// GetAggregates returns total watch time and distinct viewer count for a stream.
func (r *Repository) GetAggregates(ctx context.Context, streamID uuid.UUID) (*Aggregates, error) {
	const q = `SELECT COALESCE(SUM(watch_seconds), 0), COUNT(DISTINCT user_id)
		FROM watch_sessions WHERE stream_id = $1 AND left_at IS NOT NULL`
	var agg Aggregates
	if err := r.pool.QueryRow(ctx, q, streamID).Scan(&agg.TotalWatchSeconds, &agg.DistinctViewers); err != nil {
		return nil, err
	}
	return &agg, nil
}

// ListByStream returns viewer sessions for a stream, newest first.
func (r *Repository) ListByStream(ctx context.Context, streamID uuid.UUID) ([]SessionRow, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT user_id, joined_at, left_at, watch_seconds
		 FROM watch_sessions WHERE stream_id = $1 ORDER BY joined_at DESC`,
		streamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []SessionRow
	for rows.Next() {
		var row SessionRow
		if err := rows.Scan(&row.UserID, &row.JoinedAt, &row.LeftAt, &row.WatchSeconds); err != nil {
			return nil, err
		}
		list = append(list, row)
	}
	return list, rows.Err()
}
