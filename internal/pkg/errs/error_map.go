/*
Package errs provides the application's error type and error code constants.

This file maps every error code to its CustomError template, standardizing
HTTP responses and WebSocket error events.
*/
package errs

import "net/http"

// errorMap stores the CustomError template for every application error code.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrInvalidParams:         {Code: ErrInvalidParams, Message: "Invalid request parameters."},
	ErrUnsupportedMediaType:  {Code: ErrUnsupportedMediaType, Message: "Unsupported request format."},
	ErrInvalidJSONFormat:     {Code: ErrInvalidJSONFormat, Message: "Unsupported request format."},
	ErrExtraContentInBody:    {Code: ErrExtraContentInBody, Message: "Request contains unexpected data."},
	ErrRequestEntityTooLarge: {Code: ErrRequestEntityTooLarge, Message: "Request size is too large."},
	ErrRateLimitExceeded:     {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},

	// 2xxx: Room and Content Errors
	ErrRoomNotFound:          {Code: ErrRoomNotFound, Message: "Chat room not found.", Status: http.StatusNotFound},
	ErrNotRoomMember:         {Code: ErrNotRoomMember, Message: "You are not a member of this room.", Status: http.StatusForbidden},
	ErrAlreadyMember:         {Code: ErrAlreadyMember, Message: "You already belong to this room."},
	ErrMessageContentTooLong: {Code: ErrMessageContentTooLong, Message: "Message is too long."},
	ErrMessageKindInvalid:    {Code: ErrMessageKindInvalid, Message: "Unsupported message type."},
	ErrFileSizeTooLarge:      {Code: ErrFileSizeTooLarge, Message: "File is too large."},
	ErrFileTypeInvalid:       {Code: ErrFileTypeInvalid, Message: "Unsupported file type."},
	ErrFileKeyInvalid:        {Code: ErrFileKeyInvalid, Message: "Invalid file reference."},

	// 3xxx: User, Session, and Security Errors
	ErrUnauthorized:       {Code: ErrUnauthorized, Message: "Please sign in to continue.", Status: http.StatusUnauthorized},
	ErrInvalidCredentials: {Code: ErrInvalidCredentials, Message: "Incorrect username or password."},
	ErrInvalidUsername:    {Code: ErrInvalidUsername, Message: "Invalid username."},
	ErrInvalidPassword:    {Code: ErrInvalidPassword, Message: "Invalid password."},
	ErrUserAlreadyExists:  {Code: ErrUserAlreadyExists, Message: "Username is already taken."},
	ErrUserNotFound:       {Code: ErrUserNotFound, Message: "Account not found."},

	// 4xxx: Real-time Delivery Errors
	ErrFrameInvalid:     {Code: ErrFrameInvalid, Message: "Malformed message frame."},
	ErrFrameTypeUnknown: {Code: ErrFrameTypeUnknown, Message: "Unknown message frame type."},
	ErrNotJoined:        {Code: ErrNotJoined, Message: "Join a room before sending."},
	ErrAlreadyJoined:    {Code: ErrAlreadyJoined, Message: "This connection already joined a room."},
	ErrDeliveryFailed:   {Code: ErrDeliveryFailed, Message: "Message could not be delivered. Please retry."},

	// 5xxx: Internal System Errors
	ErrUnknown:           {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
	ErrFileStorageFailed: {Code: ErrFileStorageFailed, Message: "File upload failed. Please try again."},
}
