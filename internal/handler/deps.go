package handler

import (
	"parley/internal/app/chat"
	"parley/internal/app/db"
	"parley/internal/app/message"
	"parley/internal/app/storage"
	"parley/internal/configs"
)

// AppDeps bundles the collaborators the handlers need.
type AppDeps struct {
	Config   *configs.AppConfig
	Manager  *chat.Manager
	Messages *message.Service
	Storage  storage.Service
	Users    *db.UserRepo
	Rooms    *db.RoomRepo
}
