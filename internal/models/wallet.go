package models

import (
	"time"

	"github.com/google/uuid"
)

// TransactionKind distinguishes plain tips from super-chat payments.
type TransactionKind string

const (
	TransactionTip       TransactionKind = "tip"
	TransactionSuperChat TransactionKind = "super_chat"
)

// Wallet holds a user's creator earnings. Amounts are in cents.
type Wallet struct {
	UserID             uuid.UUID `json:"user_id"`
	BalanceCents       int64     `json:"balance_cents"`
	TotalEarningsCents int64     `json:"total_earnings_cents"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Transaction records a confirmed payment between users.
// Payment capture happens externally; only the confirmed result lands here.
type Transaction struct {
	ID          uuid.UUID       `json:"id"`
	SenderID    uuid.UUID       `json:"sender_id"`
	ReceiverID  uuid.UUID       `json:"receiver_id"`
	StreamID    *uuid.UUID      `json:"stream_id,omitempty"`
	Kind        TransactionKind `json:"kind"`
	AmountCents int64           `json:"amount_cents"`
	Message     string          `json:"message,omitempty"`
	Direction   string          `json:"direction,omitempty"` // "sent" or "received" in history listings
	CreatedAt   time.Time       `json:"created_at"`
}
