package models

import (
	"time"

	"github.com/google/uuid"
)

// WatchSession records one viewer's attendance interval on a stream.
type WatchSession struct {
	ID           uuid.UUID  `json:"id"`
	StreamID     uuid.UUID  `json:"stream_id"`
	UserID       uuid.UUID  `json:"user_id"`
	JoinedAt     time.Time  `json:"joined_at"`
	LeftAt       *time.Time `json:"left_at,omitempty"`
	WatchSeconds int64      `json:"watch_seconds"`
}
