/*
Package handler provides the HTTP handlers and routing for the Parley server.

This file upgrades authenticated requests to WebSocket sessions. The session
credential arrives as a query parameter because browsers cannot set headers on
WebSocket dials; authentication failure closes the request before any room
join is possible.
*/
package handler

import (
	"net/http"

	"github.com/gorilla/websocket"

	"parley/internal/app/chat"
	"parley/internal/app/user"
	"parley/internal/pkg/auth/jwt"
	"parley/internal/pkg/errs"
	"parley/internal/pkg/logx"
	"parley/internal/pkg/resp"
)

// HandleWebSocket authenticates the connection request, upgrades it, and
// starts the session's pumps. Joining rooms happens over the socket itself.
func HandleWebSocket(upgrader websocket.Upgrader, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" {
			logx.Warn("WebSocket request rejected: missing token")
			resp.Error(w, r, errs.New(errs.ErrUnauthorized))
			return
		}

		payload, err := jwt.ParseToken(token, deps.Config.JWTSecret)
		if err != nil {
			logx.Warn("WebSocket request rejected: invalid token", "error", err)
			resp.Error(w, r, errs.New(errs.ErrUnauthorized))
			return
		}

		currentUser := user.User{
			ID:       payload.ID,
			Nickname: payload.Nickname,
		}

		wsConn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		conn := chat.NewConn(wsConn, currentUser, deps.Manager)

		go conn.WritePump()

		if err := conn.SendWelcome(); err != nil {
			logx.Error(err, "Failed to send welcome event", "user_id", currentUser.ID)
		}

		logx.Info("WebSocket session established", "conn_id", conn.ID(), "user_id", currentUser.ID)

		conn.ReadPump()
	}
}
