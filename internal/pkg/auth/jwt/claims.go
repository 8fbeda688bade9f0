package jwt

import "github.com/golang-jwt/jwt"

// Payload defines the JWT claims carried by a session token.
type Payload struct {
	// StandardClaims embeds the JWT standard fields (Exp, Iat, Iss) used for
	// validity checks.
	jwt.StandardClaims `json:"standard_claims"`

	// ID is the account identifier of the signed-in user.
	ID string `json:"id"`

	// Nickname is the display name carried so the realtime layer can announce
	// the user without a database round trip.
	Nickname string `json:"nickname"`
}
