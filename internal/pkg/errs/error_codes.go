/*
Package errs provides the application's error type and error code constants.

The codes identify specific business or system failures both inside the server
and in payloads sent to clients.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates the Content-Type header is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates the request body is not well-formed JSON.
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates trailing content after valid JSON data.
	ErrExtraContentInBody = 1004

	// ErrRequestEntityTooLarge indicates the request body exceeded the server limit.
	ErrRequestEntityTooLarge = 1005

	// ErrRateLimitExceeded indicates the request rate exceeded the configured limit.
	ErrRateLimitExceeded = 1006
)

// 2xxx: Room and Content Errors
const (
	// ErrRoomNotFound indicates the referenced room does not exist.
	ErrRoomNotFound = 2101

	// ErrNotRoomMember indicates the acting user is not a member of the room.
	ErrNotRoomMember = 2102

	// ErrAlreadyMember indicates the user already belongs to the room.
	ErrAlreadyMember = 2103

	// ErrMessageContentTooLong indicates message content exceeded the length limit.
	ErrMessageContentTooLong = 2201

	// ErrMessageKindInvalid indicates an unsupported message type was submitted.
	ErrMessageKindInvalid = 2202

	// ErrFileSizeTooLarge indicates an attachment exceeded the size limit.
	ErrFileSizeTooLarge = 2301

	// ErrFileTypeInvalid indicates an attachment with a disallowed type or extension.
	ErrFileTypeInvalid = 2302

	// ErrFileKeyInvalid indicates a storage key outside the room's namespace.
	ErrFileKeyInvalid = 2303
)

// 3xxx: User, Session, and Security Errors
const (
	// ErrUnauthorized indicates a missing or invalid session credential.
	ErrUnauthorized = 3001

	// ErrInvalidCredentials indicates a failed username/password check.
	ErrInvalidCredentials = 3002

	// ErrInvalidUsername indicates a username that fails validation rules.
	ErrInvalidUsername = 3003

	// ErrInvalidPassword indicates a password that fails validation rules.
	ErrInvalidPassword = 3004

	// ErrUserAlreadyExists indicates the chosen username is taken.
	ErrUserAlreadyExists = 3005

	// ErrUserNotFound indicates the referenced account does not exist.
	ErrUserNotFound = 3006
)

// 4xxx: Real-time Delivery Errors
const (
	// ErrFrameInvalid indicates a client frame that could not be parsed.
	ErrFrameInvalid = 4001

	// ErrFrameTypeUnknown indicates a client frame with an unrecognized type.
	ErrFrameTypeUnknown = 4002

	// ErrNotJoined indicates a room-scoped command sent before joining a room.
	ErrNotJoined = 4003

	// ErrAlreadyJoined indicates a join command from a connection already in a room.
	ErrAlreadyJoined = 4004

	// ErrDeliveryFailed indicates the server could not persist or fan out a message.
	ErrDeliveryFailed = 4005
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified internal server error.
	ErrUnknown = 5000

	// ErrFileStorageFailed indicates a failure talking to the object store.
	ErrFileStorageFailed = 5001
)
