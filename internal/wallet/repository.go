package wallet

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tiktik-live/backend/internal/models"
)

// ErrInsufficientFunds is returned when the sender's balance cannot cover a
// transfer.
var ErrInsufficientFunds = errors.New("insufficient wallet balance")

// Repository handles wallets and transactions. All transfers run in a single
// database transaction so a wallet can never be debited without the matching
// credit and record.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a wallet repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetOrCreate returns the user's wallet, creating an empty one on first use.
func (r *Repository) GetOrCreate(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	const q = `INSERT INTO wallets (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO UPDATE SET updated_at = wallets.updated_at
		RETURNING user_id, balance_cents, total_earnings_cents, created_at, updated_at`
	var w models.Wallet
	err := r.pool.QueryRow(ctx, q, userID).Scan(
		&w.UserID, &w.BalanceCents, &w.TotalEarningsCents, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// Deposit adds funds to a wallet.
func (r *Repository) Deposit(ctx context.Context, userID uuid.UUID, amountCents int64) error {
	const q = `INSERT INTO wallets (user_id, balance_cents) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET
			balance_cents = wallets.balance_cents + $2, updated_at = NOW()`
	_, err := r.pool.Exec(ctx, q, userID, amountCents)
	return err
}

// Transfer moves amountCents from sender to receiver and records a
// transaction. Returns ErrInsufficientFunds when the sender cannot cover it.
func (r *Repository) Transfer(ctx context.Context, senderID, receiverID uuid.UUID, streamID *uuid.UUID, kind models.TransactionKind, amountCents int64, message string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := transferTx(ctx, tx, senderID, receiverID, streamID, kind, amountCents, message); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// transferTx runs the transfer steps on an existing transaction.
func transferTx(ctx context.Context, tx pgx.Tx, senderID, receiverID uuid.UUID, streamID *uuid.UUID, kind models.TransactionKind, amountCents int64, message string) error {
	// Row lock on the sender's wallet serializes concurrent spends.
	var balance int64
	err := tx.QueryRow(ctx,
		`SELECT balance_cents FROM wallets WHERE user_id = $1 FOR UPDATE`, senderID).Scan(&balance)
	if err == pgx.ErrNoRows {
		return ErrInsufficientFunds
	}
	if err != nil {
		return err
	}
	if balance < amountCents {
		return ErrInsufficientFunds
	}

	if _, err := tx.Exec(ctx,
		`UPDATE wallets SET balance_cents = balance_cents - $1, updated_at = NOW() WHERE user_id = $2`,
		amountCents, senderID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO wallets (user_id, balance_cents, total_earnings_cents) VALUES ($1, $2, $2)
		 ON CONFLICT (user_id) DO UPDATE SET
			balance_cents = wallets.balance_cents + $2,
			total_earnings_cents = wallets.total_earnings_cents + $2,
			updated_at = NOW()`,
		receiverID, amountCents); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO transactions (sender_id, receiver_id, stream_id, kind, amount_cents, message)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		senderID, receiverID, streamID, kind, amountCents, message); err != nil {
		return err
	}
	return nil
}

// RecordSuperChat charges a super chat to its sender, credits the stream
// owner, and appends the chat message, all in one transaction. Fills in the
// message's generated ID and timestamp. The insert mirrors the chat
// repository's append so the charge and the message commit or fail together.
func (r *Repository) RecordSuperChat(ctx context.Context, ownerID uuid.UUID, m *models.ChatMessage) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := transferTx(ctx, tx, m.UserID, ownerID, &m.StreamID, models.TransactionSuperChat, m.AmountCents, m.Message); err != nil {
		return err
	}
	const q = `INSERT INTO chat_messages
			(stream_id, user_id, user_name, user_avatar, message, is_super_chat, amount_cents, highlight_color)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`
	if err := tx.QueryRow(ctx, q,
		m.StreamID, m.UserID, m.UserName, m.UserAvatar, m.Message,
		m.IsSuperChat, m.AmountCents, m.HighlightColor).Scan(&m.ID, &m.CreatedAt); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// ListTransactions returns the user's sent and received transactions, newest
// first, with the direction marked relative to the user.
func (r *Repository) ListTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]models.Transaction, error) {
	const q = `SELECT id, sender_id, receiver_id, stream_id, kind, amount_cents, message, created_at,
			CASE WHEN sender_id = $1 THEN 'sent' ELSE 'received' END AS direction
		FROM transactions
		WHERE sender_id = $1 OR receiver_id = $1
		ORDER BY created_at DESC LIMIT $2`
	rows, err := r.pool.Query(ctx, q, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Transaction
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.SenderID, &t.ReceiverID, &t.StreamID, &t.Kind,
			&t.AmountCents, &t.Message, &t.CreatedAt, &t.Direction); err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

// SuperChatTotal returns the super-chat revenue of a stream.
func (r *Repository) SuperChatTotal(ctx context.Context, streamID uuid.UUID) (int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0) FROM transactions WHERE stream_id = $1 AND kind = $2`,
		streamID, models.TransactionSuperChat).Scan(&total)
	return total, err
}
