/*
This file mirrors the server's wire protocol: the Event envelope pushed over
the socket, the payload structures for each event type, and the outbound
frame the client writes.
*/
package client

import "encoding/json"

// Event type values pushed by the server.
const (
	EventWelcome          = "welcome"
	EventMessage          = "message"
	EventUserJoined       = "user_joined"
	EventUserLeft         = "user_left"
	EventTyping           = "typing"
	EventReadStatus       = "read_status_response"
	EventPresenceSnapshot = "presence_snapshot"
	EventError            = "error"
)

// Event is the envelope for every server-to-client push.
type Event struct {
	Type      string          `json:"type"`
	RoomID    string          `json:"room_id,omitempty"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// User identifies a chat participant.
type User struct {
	ID       string `json:"id"`
	Nickname string `json:"nickname"`
}

// WelcomePayload acknowledges a successful handshake.
type WelcomePayload struct {
	ConnectionID string `json:"connection_id"`
	User         User   `json:"user"`
}

// MessagePayload carries one chat message. ClientMessageID round-trips the
// sender's own id untouched; the client uses it to mark a pending message
// as sent.
type MessagePayload struct {
	ID              string `json:"id"`
	ClientMessageID string `json:"client_message_id,omitempty"`
	Sender          User   `json:"sender"`
	Kind            string `json:"message_type"`
	Content         string `json:"content"`
	FileKey         string `json:"file_key,omitempty"`
	CreatedAt       int64  `json:"created_at"`
}

// UserEventPayload announces a join or leave.
type UserEventPayload struct {
	User User `json:"user"`
}

// TypingPayload relays a typing indicator.
type TypingPayload struct {
	User     User `json:"user"`
	IsTyping bool `json:"is_typing"`
}

// ReadStatusPayload relays a read receipt for one message.
type ReadStatusPayload struct {
	User      User   `json:"user"`
	MessageID string `json:"message_id"`
}

// PresenceSnapshotPayload carries the room's current member list.
type PresenceSnapshotPayload struct {
	Members []User `json:"members"`
}

// ErrorPayload reports a rejected frame or failed operation.
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// outboundFrame is the single client-to-server frame shape. Unused fields
// are omitted per frame type.
type outboundFrame struct {
	Type            string `json:"type"`
	Content         string `json:"content,omitempty"`
	MessageType     string `json:"message_type,omitempty"`
	ClientMessageID string `json:"client_message_id,omitempty"`
	FileKey         string `json:"file_key,omitempty"`
	RoomID          string `json:"room_id,omitempty"`
	IsTyping        bool   `json:"is_typing,omitempty"`
	MessageID       string `json:"message_id,omitempty"`
}

// Update is emitted on the Updates channel whenever a pending message
// changes status.
type Update struct {
	MessageID string
	Status    Status
	Retries   int

	// Err is the error behind a failed transition, if any.
	Err error
}
