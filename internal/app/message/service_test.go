package message

import (
	"context"
	"errors"
	"strings"
	"testing"

	"parley/internal/app/user"
	"parley/internal/pkg/errs"
)

// TestCreateValidation covers the rejections that happen before any
// persistence is attempted.
func TestCreateValidation(t *testing.T) {
	svc := NewService(nil, nil)
	sender := user.User{ID: "u1", Nickname: "alice"}

	cases := []struct {
		name     string
		kind     Kind
		content  string
		fileKey  string
		wantCode int
	}{
		{"unknown kind", Kind("video"), "hi", "", errs.ErrMessageKindInvalid},
		{"empty kind", Kind(""), "hi", "", errs.ErrMessageKindInvalid},
		{"too long", KindText, strings.Repeat("a", MaxContentBytes+1), "", errs.ErrMessageContentTooLong},
		{"blank text", KindText, "   \n\t ", "", errs.ErrInvalidParams},
		{"image without file", KindImage, "caption", "", errs.ErrFileKeyInvalid},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), "room1", sender, tc.kind, tc.content, tc.fileKey)
			var customErr *errs.CustomError
			if !errors.As(err, &customErr) {
				t.Fatalf("Create returned %v, want *errs.CustomError", err)
			}
			if customErr.Code != tc.wantCode {
				t.Fatalf("Create code = %d, want %d", customErr.Code, tc.wantCode)
			}
		})
	}
}

func TestIsValidKind(t *testing.T) {
	if !IsValidKind(KindText) || !IsValidKind(KindImage) {
		t.Fatal("supported kinds rejected")
	}
	if IsValidKind(Kind("gif")) || IsValidKind(Kind("")) {
		t.Fatal("unsupported kinds accepted")
	}
}
