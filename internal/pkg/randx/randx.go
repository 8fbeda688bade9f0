/*
Package randx generates cryptographically secure random identifiers.

It produces fixed-length Base62 room codes and UUID message/connection ids.
*/
package randx

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

const (
	// Base62Chars is the character set used for Base62 encoding.
	Base62Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	// RoomCodeLength is the fixed length of generated room codes.
	RoomCodeLength = 6
)

var base62Len = big.NewInt(int64(len(Base62Chars)))

// RoomCode generates a Base62 room code of RoomCodeLength characters
// using crypto/rand.
func RoomCode() (string, error) {
	result := make([]byte, RoomCodeLength)

	for i := range RoomCodeLength {
		num, err := rand.Int(rand.Reader, base62Len)
		if err != nil {
			return "", fmt.Errorf("failed to generate random number for room code: %w", err)
		}
		result[i] = Base62Chars[num.Int64()]
	}

	return string(result), nil
}

// IsValidRoomCode reports whether code has the right length and alphabet.
func IsValidRoomCode(code string) bool {
	if len(code) != RoomCodeLength {
		return false
	}

	for _, char := range code {
		if !strings.ContainsRune(Base62Chars, char) {
			return false
		}
	}

	return true
}

// MessageID generates a UUID v4 string for a server-assigned message id.
func MessageID() string {
	return uuid.New().String()
}

// ConnectionID generates a UUID v4 string identifying one live connection.
func ConnectionID() string {
	return uuid.New().String()
}

// Nickname generates a display name with a "User_" prefix and six random
// Base62 characters.
func Nickname() (string, error) {
	const randomLength = 6
	result := make([]byte, randomLength)

	for i := range randomLength {
		num, err := rand.Int(rand.Reader, base62Len)
		if err != nil {
			return "", fmt.Errorf("failed to generate random number for nickname: %w", err)
		}
		result[i] = Base62Chars[num.Int64()]
	}

	return "User_" + string(result), nil
}
