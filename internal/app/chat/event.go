/*
Package chat contains the real-time broadcast core: live connections, per-room
fan-out, and presence tracking.

This file defines the Event envelope pushed to clients and the payload
structures for every event type. An Event is produced once per triggering
action and fanned out read-only; it is never mutated after creation.
*/
package chat

import (
	"encoding/json"
	"time"

	"parley/internal/app/user"
)

// EventType enumerates the closed set of server-to-client event types.
type EventType string

const (
	// EventWelcome acknowledges a successful authenticated handshake.
	EventWelcome EventType = "welcome"

	// EventMessage carries a chat message, echoing the sender's
	// client_message_id untouched so the sender can correlate it.
	EventMessage EventType = "message"

	// EventUserJoined announces a member joining the room.
	EventUserJoined EventType = "user_joined"

	// EventUserLeft announces a member leaving the room.
	EventUserLeft EventType = "user_left"

	// EventTyping relays an ephemeral typing indicator. Never persisted.
	EventTyping EventType = "typing"

	// EventReadStatus relays an ephemeral read receipt. Never persisted.
	EventReadStatus EventType = "read_status_response"

	// EventPresenceSnapshot carries the full member list, sent once to a
	// connection right after it joins.
	EventPresenceSnapshot EventType = "presence_snapshot"

	// EventError reports a rejected frame or failed operation to a single
	// connection. The connection stays open.
	EventError EventType = "error"
)

// Event is the immutable envelope broadcast to room members.
type Event struct {
	Type      EventType       `json:"type"`
	RoomID    string          `json:"room_id,omitempty"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// NewEvent builds an Event, marshaling the payload exactly once.
func NewEvent(eventType EventType, roomID string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}

	return Event{
		Type:      eventType,
		RoomID:    roomID,
		Timestamp: time.Now().UnixMilli(),
		Payload:   raw,
	}, nil
}

// WelcomePayload is sent once after the authenticated upgrade.
type WelcomePayload struct {
	ConnectionID string    `json:"connection_id"`
	User         user.User `json:"user"`
}

// MessagePayload carries one chat message to every member of a room,
// including the sender. ClientMessageID round-trips the sender's own id;
// the server never mutates or drops it.
type MessagePayload struct {
	ID              string    `json:"id"`
	ClientMessageID string    `json:"client_message_id,omitempty"`
	Sender          user.User `json:"sender"`
	Kind            string    `json:"message_type"`
	Content         string    `json:"content"`
	FileKey         string    `json:"file_key,omitempty"`
	CreatedAt       int64     `json:"created_at"`
}

// UserEventPayload announces a join or leave.
type UserEventPayload struct {
	User user.User `json:"user"`
}

// TypingPayload relays a typing indicator.
type TypingPayload struct {
	User     user.User `json:"user"`
	IsTyping bool      `json:"is_typing"`
}

// ReadStatusPayload relays a read receipt for one message.
type ReadStatusPayload struct {
	User      user.User `json:"user"`
	MessageID string    `json:"message_id"`
}

// PresenceSnapshotPayload carries the room's current member list.
type PresenceSnapshotPayload struct {
	Members []user.User `json:"members"`
}

// ErrorPayload reports an error to a single connection.
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
