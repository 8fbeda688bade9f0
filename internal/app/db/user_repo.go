package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRecord mirrors one row of the users table.
type UserRecord struct {
	ID           string
	Username     string
	PasswordHash string
	Nickname     string
	CreatedAt    time.Time
}

// UserRepo persists user accounts.
type UserRepo struct {
	pool *pgxpool.Pool
}

// NewUserRepo constructs a UserRepo over the given pool.
func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

// Create inserts a new account and returns the stored record.
func (r *UserRepo) Create(ctx context.Context, username, passwordHash, nickname string) (*UserRecord, error) {
	query := `
		INSERT INTO users (username, password_hash, nickname)
		VALUES ($1, $2, $3)
		RETURNING id, username, password_hash, nickname, created_at`

	var u UserRecord
	err := r.pool.QueryRow(ctx, query, username, passwordHash, nickname).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Nickname, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByUsername fetches an account by its unique username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*UserRecord, error) {
	query := `
		SELECT id, username, password_hash, nickname, created_at
		FROM users
		WHERE username = $1`

	var u UserRecord
	err := r.pool.QueryRow(ctx, query, username).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Nickname, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByID fetches an account by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*UserRecord, error) {
	query := `
		SELECT id, username, password_hash, nickname, created_at
		FROM users
		WHERE id = $1`

	var u UserRecord
	err := r.pool.QueryRow(ctx, query, id).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Nickname, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// TouchLastLogin records the time of a successful sign-in.
func (r *UserRepo) TouchLastLogin(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET last_login_at = now() WHERE id = $1`, id)
	return err
}
