/*
Package errs provides the application's error type and error code constants.

This file defines CustomError, which implements the error interface and carries
a business code, a user-facing message, and an HTTP status for unified reporting
over both REST responses and WebSocket error events.
*/
package errs

import (
	"fmt"
	"net/http"
	"strings"

	"parley/internal/pkg/logx"
)

// CustomError is the error structure used throughout the application.
type CustomError struct {
	// Code is the business error code (see constants definition).
	Code int

	// Message is the user-friendly error description.
	Message string

	// Status is the HTTP status code corresponding to this error.
	Status int
}

// Error implements the error interface.
func (e CustomError) Error() string {
	return fmt.Sprintf("Error Code %d (HTTP %d): %s", e.Code, e.Status, e.Message)
}

// New constructs a *CustomError from a predefined error code. Optional details
// are applied printf-style when the message template contains placeholders.
// An unknown code falls back to ErrUnknown.
func New(code int, details ...any) *CustomError {
	template, ok := errorMap[code]

	if !ok {
		logx.Error(
			fmt.Errorf("attempted to create an error with a code missing from errorMap"),
			"Unknown error code requested",
			"requested_code", code,
		)

		fallback := errorMap[ErrUnknown]
		return &CustomError{
			Code:    fallback.Code,
			Message: fallback.Message,
			Status:  fallback.Status,
		}
	}

	customErr := template

	if customErr.Status == 0 {
		customErr.Status = http.StatusOK
	}

	if code == ErrUnknown && len(details) > 0 {
		if original, ok := details[0].(error); ok {
			logx.Error(original, "Handling ErrUnknown with underlying error")
		}
	} else if len(details) > 0 {
		if strings.Contains(customErr.Message, "%") {
			customErr.Message = fmt.Sprintf(customErr.Message, details...)
		} else {
			logx.Warn("Details provided for error, but message template has no placeholders. Details ignored.")
		}
	}

	return &customErr
}
