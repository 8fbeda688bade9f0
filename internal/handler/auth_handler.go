/*
Package handler provides the HTTP handlers and routing for the Parley server.

This file holds account registration and login.
*/
package handler

import (
	"net/http"
	"regexp"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"parley/internal/app/db"
	"parley/internal/pkg/auth/jwt"
	"parley/internal/pkg/errs"
	"parley/internal/pkg/logx"
	"parley/internal/pkg/randx"
	"parley/internal/pkg/req"
	"parley/internal/pkg/resp"
)

var usernameRegex = regexp.MustCompile(`^[a-z0-9_]{4,20}$`)

// CredentialsInput is the JSON body for register and login.
type CredentialsInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// HandleRegister creates a new account and returns a session token.
func HandleRegister(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input CredentialsInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.Error(w, r, customErr)
			return
		}

		if !usernameRegex.MatchString(input.Username) {
			resp.Error(w, r, errs.New(errs.ErrInvalidUsername))
			return
		}

		passwordLen := utf8.RuneCountInString(input.Password)
		if passwordLen < 6 || passwordLen > 50 {
			resp.Error(w, r, errs.New(errs.ErrInvalidPassword))
			return
		}

		hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
		if err != nil {
			resp.Error(w, r, errs.New(errs.ErrUnknown, err))
			return
		}

		nickname, err := randx.Nickname()
		if err != nil {
			nickname = "User_X"
		}

		account, err := deps.Users.Create(r.Context(), input.Username, string(hashed), nickname)
		if err != nil {
			if db.IsUniqueViolation(err) {
				logx.Warn("Registration conflict: username already exists", "username", input.Username)
				resp.Error(w, r, errs.New(errs.ErrUserAlreadyExists))
				return
			}

			logx.Error(err, "Failed to create user")
			resp.Error(w, r, errs.New(errs.ErrUnknown))
			return
		}

		issueSession(w, r, deps, account)
	}
}

// HandleLogin checks credentials and returns a session token.
func HandleLogin(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input CredentialsInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.Error(w, r, customErr)
			return
		}

		account, err := deps.Users.GetByUsername(r.Context(), input.Username)
		if err != nil {
			if db.IsNotFound(err) {
				resp.Error(w, r, errs.New(errs.ErrInvalidCredentials))
				return
			}
			logx.Error(err, "Failed to look up user", "username", input.Username)
			resp.Error(w, r, errs.New(errs.ErrUnknown))
			return
		}

		if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(input.Password)) != nil {
			resp.Error(w, r, errs.New(errs.ErrInvalidCredentials))
			return
		}

		if err := deps.Users.TouchLastLogin(r.Context(), account.ID); err != nil {
			logx.Error(err, "Failed to update last_login_at", "user_id", account.ID)
		}

		issueSession(w, r, deps, account)
	}
}

// issueSession signs and returns a session token for the account.
func issueSession(w http.ResponseWriter, r *http.Request, deps *AppDeps, account *db.UserRecord) {
	payload := &jwt.Payload{
		ID:       account.ID,
		Nickname: account.Nickname,
	}

	tokenString, err := jwt.GenerateToken(payload, deps.Config.JWTSecret, jwt.SessionExpiration)
	if err != nil {
		logx.Error(err, "Failed to generate session token", "user_id", account.ID)
		resp.Error(w, r, errs.New(errs.ErrUnknown))
		return
	}

	resp.Success(w, r, map[string]any{
		"token": tokenString,
		"user": map[string]any{
			"id":       account.ID,
			"username": account.Username,
			"nickname": account.Nickname,
		},
	})
}
