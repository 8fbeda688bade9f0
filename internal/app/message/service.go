package message

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"parley/internal/app/db"
	"parley/internal/app/user"
	"parley/internal/pkg/errs"
	"parley/internal/pkg/logx"
)

// Service persists messages and answers membership checks for the realtime
// layer.
type Service struct {
	messages *db.MessageRepo
	rooms    *db.RoomRepo
	logger   zerolog.Logger
}

// NewService constructs a Service over the given repositories.
func NewService(messages *db.MessageRepo, rooms *db.RoomRepo) *Service {
	return &Service{
		messages: messages,
		rooms:    rooms,
		logger:   logx.Logger().With().Str("component", "message.Service").Logger(),
	}
}

// Create validates and persists a message, returning the stored record with
// its server-assigned id and timestamp. The caller broadcasts the result.
func (s *Service) Create(ctx context.Context, roomID string, sender user.User, kind Kind, content, fileKey string) (*Message, error) {
	if !IsValidKind(kind) {
		return nil, errs.New(errs.ErrMessageKindInvalid)
	}

	if len(content) > MaxContentBytes {
		return nil, errs.New(errs.ErrMessageContentTooLong)
	}

	if kind == KindText && strings.TrimSpace(content) == "" {
		return nil, errs.New(errs.ErrInvalidParams)
	}

	if kind == KindImage && fileKey == "" {
		return nil, errs.New(errs.ErrFileKeyInvalid)
	}

	record, err := s.messages.Insert(ctx, roomID, sender.ID, string(kind), content, fileKey)
	if err != nil {
		s.logger.Error().Err(err).
			Str("room_id", roomID).
			Str("sender_id", sender.ID).
			Msg("Failed to persist message")
		return nil, errs.New(errs.ErrDeliveryFailed)
	}

	return &Message{
		ID:        record.ID,
		RoomID:    record.RoomID,
		Sender:    sender,
		Kind:      Kind(record.Kind),
		Content:   record.Content,
		FileKey:   record.FileKey,
		CreatedAt: record.CreatedAt,
	}, nil
}

// IsMember reports whether userID belongs to roomID. Database failures are
// logged and treated as "not a member" so a storage hiccup never grants
// access.
func (s *Service) IsMember(ctx context.Context, roomID, userID string) bool {
	ok, err := s.rooms.IsMember(ctx, roomID, userID)
	if err != nil {
		s.logger.Error().Err(err).
			Str("room_id", roomID).
			Str("user_id", userID).
			Msg("Membership check failed")
		return false
	}
	return ok
}

// History returns up to limit messages for a room, newest first.
func (s *Service) History(ctx context.Context, roomID string, before time.Time, limit int) ([]MessageRecordView, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	records, err := s.messages.ListRecent(ctx, roomID, before, limit)
	if err != nil {
		return nil, errs.New(errs.ErrUnknown, err)
	}

	views := make([]MessageRecordView, 0, len(records))
	for _, rec := range records {
		views = append(views, MessageRecordView{
			ID:        rec.ID,
			RoomID:    rec.RoomID,
			SenderID:  rec.SenderID,
			Kind:      Kind(rec.Kind),
			Content:   rec.Content,
			FileKey:   rec.FileKey,
			CreatedAt: rec.CreatedAt,
		})
	}
	return views, nil
}

// MessageRecordView is the history page item returned to the REST layer.
type MessageRecordView struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"roomId"`
	SenderID  string    `json:"senderId"`
	Kind      Kind      `json:"kind"`
	Content   string    `json:"content"`
	FileKey   string    `json:"fileKey,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
