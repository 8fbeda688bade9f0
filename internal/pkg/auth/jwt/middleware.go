package jwt

import (
	"context"
	"net/http"
	"strings"

	"parley/internal/pkg/logx"
)

// contextKey prevents collisions with context keys from other packages.
type contextKey string

// ContextAuthPayloadKey stores the parsed Payload in the request context.
const ContextAuthPayloadKey contextKey = "auth_payload"

// IdentityExtractor extracts and validates a bearer JWT from the Authorization
// header and injects its Payload into the context. It never interrupts the
// request: a missing or invalid token leaves the user anonymous.
func IdentityExtractor(secretKey string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				next.ServeHTTP(w, r)
				return
			}

			payload, err := ParseToken(parts[1], secretKey)
			if err != nil {
				logx.Warn("Invalid or expired JWT provided, treating as anonymous", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), ContextAuthPayloadKey, payload)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PayloadFromContext returns the authenticated Payload, or nil for anonymous
// requests.
func PayloadFromContext(r *http.Request) *Payload {
	payload, ok := r.Context().Value(ContextAuthPayloadKey).(*Payload)
	if !ok {
		return nil
	}
	return payload
}
