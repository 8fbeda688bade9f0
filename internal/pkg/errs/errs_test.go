package errs

import (
	"net/http"
	"testing"
)

func TestNewKnownCode(t *testing.T) {
	err := New(ErrRoomNotFound)
	if err.Code != ErrRoomNotFound {
		t.Fatalf("Code = %d, want %d", err.Code, ErrRoomNotFound)
	}
	if err.Status != http.StatusNotFound {
		t.Fatalf("Status = %d, want %d", err.Status, http.StatusNotFound)
	}
	if err.Message == "" {
		t.Fatal("Message empty")
	}
}

func TestNewUnknownCodeFallsBack(t *testing.T) {
	err := New(999999)
	if err.Code != ErrUnknown {
		t.Fatalf("Code = %d, want fallback %d", err.Code, ErrUnknown)
	}
}

func TestNewReturnsIsolatedCopies(t *testing.T) {
	first := New(ErrRoomNotFound)
	second := New(ErrRoomNotFound)

	first.Message = "mutated"
	if second.Message == "mutated" {
		t.Fatal("instances share the template")
	}
}

func TestDeliveryCodesMapped(t *testing.T) {
	for _, code := range []int{ErrFrameInvalid, ErrFrameTypeUnknown, ErrNotJoined, ErrAlreadyJoined, ErrDeliveryFailed} {
		err := New(code)
		if err.Code != code {
			t.Errorf("New(%d) fell back to %d; code missing from errorMap", code, err.Code)
		}
	}
}
