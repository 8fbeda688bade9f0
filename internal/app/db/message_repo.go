package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// MessageRecord mirrors one row of the messages table.
type MessageRecord struct {
	ID        string
	RoomID    string
	SenderID  string
	Kind      string
	Content   string
	FileKey   string
	CreatedAt time.Time
}

// MessageRepo persists chat messages.
type MessageRepo struct {
	pool *pgxpool.Pool
}

// NewMessageRepo constructs a MessageRepo over the given pool.
func NewMessageRepo(pool *pgxpool.Pool) *MessageRepo {
	return &MessageRepo{pool: pool}
}

// Insert stores a message and returns the stored record.
func (r *MessageRepo) Insert(ctx context.Context, roomID, senderID, kind, content, fileKey string) (*MessageRecord, error) {
	query := `
		INSERT INTO messages (room_id, sender_id, kind, content, file_key)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''))
		RETURNING id, room_id, sender_id, kind, content, COALESCE(file_key, ''), created_at`

	var m MessageRecord
	err := r.pool.QueryRow(ctx, query, roomID, senderID, kind, content, fileKey).
		Scan(&m.ID, &m.RoomID, &m.SenderID, &m.Kind, &m.Content, &m.FileKey, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListRecent returns up to limit messages for a room, newest first, older
// than the optional before timestamp.
func (r *MessageRepo) ListRecent(ctx context.Context, roomID string, before time.Time, limit int) ([]MessageRecord, error) {
	query := `
		SELECT m.id, m.room_id, m.sender_id, m.kind, m.content, COALESCE(m.file_key, ''), m.created_at
		FROM messages m
		WHERE m.room_id = $1
		  AND ($2::timestamptz IS NULL OR m.created_at < $2)
		ORDER BY m.created_at DESC
		LIMIT $3`

	var beforeArg any
	if !before.IsZero() {
		beforeArg = before
	}

	rows, err := r.pool.Query(ctx, query, roomID, beforeArg, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []MessageRecord
	for rows.Next() {
		var m MessageRecord
		if err := rows.Scan(&m.ID, &m.RoomID, &m.SenderID, &m.Kind, &m.Content, &m.FileKey, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
