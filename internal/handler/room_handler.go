/*
Package handler provides the HTTP handlers and routing for the Parley server.

This file holds room creation, joining, listing, and message history. Room
existence and durable membership live in the database; the realtime layer
only projects who is connected right now.
*/
package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"parley/internal/app/db"
	"parley/internal/pkg/auth/jwt"
	"parley/internal/pkg/errs"
	"parley/internal/pkg/logx"
	"parley/internal/pkg/randx"
	"parley/internal/pkg/req"
	"parley/internal/pkg/resp"
)

// CreateRoomInput is the JSON body for room creation.
type CreateRoomInput struct {
	Name string `json:"name"`
}

// HandleCreateRoom creates a room with a fresh join code; the creator becomes
// its first member.
func HandleCreateRoom(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.PayloadFromContext(r)
		if identity == nil {
			resp.Error(w, r, errs.New(errs.ErrUnauthorized))
			return
		}

		var input CreateRoomInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.Error(w, r, customErr)
			return
		}

		if input.Name == "" || len(input.Name) > 100 {
			resp.Error(w, r, errs.New(errs.ErrInvalidParams))
			return
		}

		code, err := randx.RoomCode()
		if err != nil {
			resp.Error(w, r, errs.New(errs.ErrUnknown, err))
			return
		}

		room, err := deps.Rooms.Create(r.Context(), code, input.Name, identity.ID)
		if err != nil {
			logx.Error(err, "Failed to create room", "user_id", identity.ID)
			resp.Error(w, r, errs.New(errs.ErrUnknown))
			return
		}

		resp.Success(w, r, map[string]any{
			"id":   room.ID,
			"code": room.Code,
			"name": room.Name,
		})
	}
}

// JoinRoomInput is the JSON body for joining a room by code.
type JoinRoomInput struct {
	Code string `json:"code"`
}

// HandleJoinRoom adds the caller to a room's durable membership.
func HandleJoinRoom(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.PayloadFromContext(r)
		if identity == nil {
			resp.Error(w, r, errs.New(errs.ErrUnauthorized))
			return
		}

		var input JoinRoomInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.Error(w, r, customErr)
			return
		}

		if !randx.IsValidRoomCode(input.Code) {
			resp.Error(w, r, errs.New(errs.ErrInvalidParams))
			return
		}

		room, err := deps.Rooms.GetByCode(r.Context(), input.Code)
		if err != nil {
			if db.IsNotFound(err) {
				resp.Error(w, r, errs.New(errs.ErrRoomNotFound))
				return
			}
			logx.Error(err, "Failed to look up room", "code", input.Code)
			resp.Error(w, r, errs.New(errs.ErrUnknown))
			return
		}

		if err := deps.Rooms.AddMember(r.Context(), room.ID, identity.ID); err != nil {
			if db.IsUniqueViolation(err) {
				resp.Error(w, r, errs.New(errs.ErrAlreadyMember))
				return
			}
			logx.Error(err, "Failed to add room member", "room_id", room.ID, "user_id", identity.ID)
			resp.Error(w, r, errs.New(errs.ErrUnknown))
			return
		}

		resp.Success(w, r, map[string]any{
			"id":   room.ID,
			"code": room.Code,
			"name": room.Name,
		})
	}
}

// HandleListRooms returns the caller's rooms with live presence counts from
// the registry projection.
func HandleListRooms(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.PayloadFromContext(r)
		if identity == nil {
			resp.Error(w, r, errs.New(errs.ErrUnauthorized))
			return
		}

		rooms, err := deps.Rooms.ListForUser(r.Context(), identity.ID)
		if err != nil {
			logx.Error(err, "Failed to list rooms", "user_id", identity.ID)
			resp.Error(w, r, errs.New(errs.ErrUnknown))
			return
		}

		presence := deps.Manager.Presence()

		items := make([]map[string]any, 0, len(rooms))
		for _, room := range rooms {
			items = append(items, map[string]any{
				"id":          room.ID,
				"code":        room.Code,
				"name":        room.Name,
				"onlineCount": presence.CountOf(room.ID),
			})
		}

		resp.Success(w, r, map[string]any{"rooms": items})
	}
}

// HandleMessageHistory serves one page of a room's message history.
func HandleMessageHistory(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.PayloadFromContext(r)
		if identity == nil {
			resp.Error(w, r, errs.New(errs.ErrUnauthorized))
			return
		}

		roomID := chi.URLParam(r, "roomID")
		if roomID == "" {
			resp.Error(w, r, errs.New(errs.ErrInvalidParams))
			return
		}

		if !deps.Messages.IsMember(r.Context(), roomID, identity.ID) {
			resp.Error(w, r, errs.New(errs.ErrNotRoomMember))
			return
		}

		var before time.Time
		if beforeStr := r.URL.Query().Get("before"); beforeStr != "" {
			millis, err := strconv.ParseInt(beforeStr, 10, 64)
			if err != nil {
				resp.Error(w, r, errs.New(errs.ErrInvalidParams))
				return
			}
			before = time.UnixMilli(millis)
		}

		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

		page, err := deps.Messages.History(r.Context(), roomID, before, limit)
		if err != nil {
			resp.Error(w, r, errs.New(errs.ErrUnknown))
			return
		}

		resp.Success(w, r, map[string]any{"messages": page})
	}
}
