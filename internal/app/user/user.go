/*
Package user contains the basic representation of a participant identity.

The User struct is passed both internally and to clients inside WebSocket
events, so its fields carry JSON tags.
*/
package user

// User represents the identity of a chat participant.
type User struct {
	// ID is the unique account identifier.
	ID string `json:"id"`

	// Nickname is the display name shown in rooms.
	Nickname string `json:"nickname"`
}
