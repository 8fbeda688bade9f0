/*
Package message owns the chat message domain: validation, persistence, and the
history queries used by the REST layer.

The realtime layer calls into this package to persist a message before
broadcasting it; durability beyond the database's own guarantees is out of
scope here.
*/
package message

import (
	"time"

	"parley/internal/app/user"
)

// Kind distinguishes the supported message content types.
type Kind string

const (
	// KindText is a plain text message.
	KindText Kind = "text"

	// KindImage is a message referencing an uploaded image by storage key.
	KindImage Kind = "image"
)

// MaxContentBytes caps the length of text content.
const MaxContentBytes = 5000

// IsValidKind reports whether k is one of the supported kinds.
func IsValidKind(k Kind) bool {
	return k == KindText || k == KindImage
}

// Message is a persisted chat message.
type Message struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"roomId"`
	Sender    user.User `json:"sender"`
	Kind      Kind      `json:"kind"`
	Content   string    `json:"content"`
	FileKey   string    `json:"fileKey,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
