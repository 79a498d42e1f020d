package models

import (
	"time"

	"github.com/google/uuid"
)

// ChatMessage is one entry in a stream's append-only chat log.
// Messages are immutable once written; display order is insertion order.
type ChatMessage struct {
	ID             uuid.UUID `json:"id"`
	StreamID       uuid.UUID `json:"stream_id"`
	UserID         uuid.UUID `json:"user_id"`
	UserName       string    `json:"user_name"`
	UserAvatar     string    `json:"user_avatar"`
	Message        string    `json:"message"`
	IsSuperChat    bool      `json:"is_super_chat"`
	AmountCents    int64     `json:"amount_cents,omitempty"`
	HighlightColor string    `json:"highlight_color,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
