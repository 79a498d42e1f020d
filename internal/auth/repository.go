package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tiktik-live/backend/internal/models"
)

// Repository handles user persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an auth repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByID returns a user by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	const q = `SELECT id, email, COALESCE(password_hash,''), display_name, COALESCE(avatar_url,''), COALESCE(google_id,''),
		created_at, updated_at FROM users WHERE id = $1`
	var u models.User
	err := r.pool.QueryRow(ctx, q, id).Scan(&u.ID, &u.Email, &u.Password, &u.DisplayName, &u.AvatarURL, &u.GoogleID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByEmail returns a user by email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	const q = `SELECT id, email, COALESCE(password_hash,''), display_name, COALESCE(avatar_url,''), COALESCE(google_id,''),
		created_at, updated_at FROM users WHERE email = $1`
	var u models.User
	err := r.pool.QueryRow(ctx, q, email).Scan(&u.ID, &u.Email, &u.Password, &u.DisplayName, &u.AvatarURL, &u.GoogleID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts a new password user.
func (r *Repository) Create(ctx context.Context, email, passwordHash, displayName string) (*models.User, error) {
	const q = `INSERT INTO users (email, password_hash, display_name)
		VALUES ($1, $2, $3)
		RETURNING id, email, COALESCE(password_hash,''), display_name, COALESCE(avatar_url,''), COALESCE(google_id,''), created_at, updated_at`
	var u models.User
	err := r.pool.QueryRow(ctx, q, email, passwordHash, displayName).
		Scan(&u.ID, &u.Email, &u.Password, &u.DisplayName, &u.AvatarURL, &u.GoogleID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UpsertGoogleUser creates or refreshes a user signed in via Google.
// Matching is by google_id first, falling back to email for accounts that
// registered with a password before linking Google.
func (r *Repository) UpsertGoogleUser(ctx context.Context, googleID, email, displayName, avatarURL string) (*models.User, error) {
	const q = `INSERT INTO users (email, display_name, avatar_url, google_id)
		VALUES ($1, $2, NULLIF($3,''), $4)
		ON CONFLICT (email) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			avatar_url = COALESCE(EXCLUDED.avatar_url, users.avatar_url),
			google_id = EXCLUDED.google_id,
			updated_at = NOW()
		RETURNING id, email, COALESCE(password_hash,''), display_name, COALESCE(avatar_url,''), COALESCE(google_id,''), created_at, updated_at`
	var u models.User
	err := r.pool.QueryRow(ctx, q, email, displayName, avatarURL, googleID).
		Scan(&u.ID, &u.Email, &u.Password, &u.DisplayName, &u.AvatarURL, &u.GoogleID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
