/*
Package handler provides the HTTP handlers and routing for the Parley server.

This file wires the chi router: CORS, request logging, rate limiting, the
REST API, and the WebSocket endpoint.
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"parley/internal/pkg/auth/jwt"
	"parley/internal/pkg/limiter"
	"parley/internal/pkg/logx"
	"parley/internal/pkg/resp"
)

const (
	// AuthRate limits sign-in and registration attempts per IP.
	AuthRate  = 0.2
	AuthBurst = 5

	// ConnectRate limits WebSocket connection attempts per IP.
	ConnectRate  = 0.5
	ConnectBurst = 10
)

// Router builds the application's HTTP routing table.
func Router(deps *AppDeps) http.Handler {
	authLimiter := limiter.NewIPRateLimiter(rate.Limit(AuthRate), AuthBurst)
	connectLimiter := limiter.NewIPRateLimiter(rate.Limit(ConnectRate), ConnectBurst)

	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.Environment == "development" {
				return true
			}

			origin := r.Header.Get("Origin")
			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: origin not allowed", "origin", origin)
			return false
		},
	}

	corsOrigins := []string{}
	if deps.Config.Environment == "development" {
		corsOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		resp.Success(w, r, map[string]string{
			"status":  "ok",
			"service": "Parley Server",
		})
	})

	r.Route("/api", func(api chi.Router) {
		api.Use(jwt.IdentityExtractor(deps.Config.JWTSecret))

		api.Route("/auth", func(auth chi.Router) {
			auth.Use(authLimiter.Middleware)
			auth.Post("/register", HandleRegister(deps))
			auth.Post("/login", HandleLogin(deps))
		})

		api.Route("/rooms", func(rooms chi.Router) {
			rooms.Post("/", HandleCreateRoom(deps))
			rooms.Get("/", HandleListRooms(deps))
			rooms.Post("/join", HandleJoinRoom(deps))
			rooms.Get("/{roomID}/messages", HandleMessageHistory(deps))
		})

		api.Post("/files/presign-upload", HandlePresignUpload(deps))
		api.Get("/files/presign-download", HandlePresignDownload(deps))
	})

	r.With(connectLimiter.Middleware).Get("/ws", HandleWebSocket(upgrader, deps))

	return r
}
