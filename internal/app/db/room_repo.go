package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RoomRecord mirrors one row of the rooms table.
type RoomRecord struct {
	ID        string
	Code      string
	Name      string
	CreatedBy string
	CreatedAt time.Time
}

// RoomRepo persists rooms and their memberships.
type RoomRepo struct {
	pool *pgxpool.Pool
}

// NewRoomRepo constructs a RoomRepo over the given pool.
func NewRoomRepo(pool *pgxpool.Pool) *RoomRepo {
	return &RoomRepo{pool: pool}
}

// Create inserts a room and makes the creator its first member.
func (r *RoomRepo) Create(ctx context.Context, code, name, createdBy string) (*RoomRecord, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var rm RoomRecord
	err = tx.QueryRow(ctx, `
		INSERT INTO rooms (code, name, created_by)
		VALUES ($1, $2, $3)
		RETURNING id, code, name, created_by, created_at`,
		code, name, createdBy).
		Scan(&rm.ID, &rm.Code, &rm.Name, &rm.CreatedBy, &rm.CreatedAt)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO room_members (room_id, user_id)
		VALUES ($1, $2)`,
		rm.ID, createdBy)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &rm, nil
}

// GetByCode fetches a room by its join code.
func (r *RoomRepo) GetByCode(ctx context.Context, code string) (*RoomRecord, error) {
	var rm RoomRecord
	err := r.pool.QueryRow(ctx, `
		SELECT id, code, name, created_by, created_at
		FROM rooms
		WHERE code = $1`, code).
		Scan(&rm.ID, &rm.Code, &rm.Name, &rm.CreatedBy, &rm.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &rm, nil
}

// GetByID fetches a room by id.
func (r *RoomRepo) GetByID(ctx context.Context, id string) (*RoomRecord, error) {
	var rm RoomRecord
	err := r.pool.QueryRow(ctx, `
		SELECT id, code, name, created_by, created_at
		FROM rooms
		WHERE id = $1`, id).
		Scan(&rm.ID, &rm.Code, &rm.Name, &rm.CreatedBy, &rm.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &rm, nil
}

// AddMember inserts a membership row. Duplicate memberships surface as a
// unique violation, which the caller translates.
func (r *RoomRepo) AddMember(ctx context.Context, roomID, userID string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO room_members (room_id, user_id)
		VALUES ($1, $2)`,
		roomID, userID)
	return err
}

// IsMember reports whether userID belongs to roomID.
func (r *RoomRepo) IsMember(ctx context.Context, roomID, userID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM room_members WHERE room_id = $1 AND user_id = $2
		)`,
		roomID, userID).Scan(&exists)
	return exists, err
}

// ListForUser returns every room the user is a member of, newest first.
func (r *RoomRepo) ListForUser(ctx context.Context, userID string) ([]RoomRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT rm.id, rm.code, rm.name, rm.created_by, rm.created_at
		FROM rooms rm
		JOIN room_members m ON m.room_id = rm.id
		WHERE m.user_id = $1
		ORDER BY rm.created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []RoomRecord
	for rows.Next() {
		var rm RoomRecord
		if err := rows.Scan(&rm.ID, &rm.Code, &rm.Name, &rm.CreatedBy, &rm.CreatedAt); err != nil {
			return nil, err
		}
		rooms = append(rooms, rm)
	}
	return rooms, rows.Err()
}
