package models

import (
	"time"

	"github.com/google/uuid"
)

// Stream represents a single live-broadcast session.
// The current viewer count lives in Redis (atomic increments), not here;
// peak/total aggregates are rolled into this record.
type Stream struct {
	ID             uuid.UUID  `json:"id"`
	OwnerID        uuid.UUID  `json:"owner_id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	ShareSlug      string     `json:"share_slug"`
	PlaybackURL    string     `json:"playback_url"`
	IsLive         bool       `json:"is_live"`
	WasLive        bool       `json:"was_live"`
	PeakViewers    int        `json:"peak_viewers"`
	TotalViewers   int        `json:"total_viewers"`
	TotalWatchTime int64      `json:"total_watch_time"` // seconds
	StartedAt      time.Time  `json:"started_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// ChatSettings is the per-stream moderation record, mutable only by the owner.
// Concurrent owner edits are last-write-wins.
type ChatSettings struct {
	StreamID        uuid.UUID   `json:"stream_id"`
	BannedUserIDs   []uuid.UUID `json:"banned_user_ids"`
	SlowModeEnabled bool        `json:"slow_mode_enabled"`
	SlowModeMs      int64       `json:"slow_mode_ms"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// SlowModeDuration returns the configured slow-mode cooldown.
func (s *ChatSettings) SlowModeDuration() time.Duration {
	return time.Duration(s.SlowModeMs) * time.Millisecond
}

// IsBanned reports whether a user is in the ban set.
func (s *ChatSettings) IsBanned(userID uuid.UUID) bool {
	for _, id := range s.BannedUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}
