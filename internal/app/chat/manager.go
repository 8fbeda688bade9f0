/*
Package chat contains the real-time broadcast core: live connections, per-room
fan-out, and presence tracking.

This file defines the Manager, the single authoritative path for pushing
events into a room. It owns every live connection, creates membership rooms
on demand, garbage-collects them when they empty, and exposes the thin
typing/read-status wrappers.
*/
package chat

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"parley/internal/app/message"
	"parley/internal/app/user"
	"parley/internal/pkg/errs"
	"parley/internal/pkg/logx"
)

// MessageStore is the persistence collaborator consumed by the realtime
// layer: messages are persisted before their broadcast is issued, and joins
// are gated on membership.
type MessageStore interface {
	Create(ctx context.Context, roomID string, sender user.User, kind message.Kind, content, fileKey string) (*message.Message, error)
	IsMember(ctx context.Context, roomID, userID string) bool
}

// Manager owns all live connections and their room registrations.
type Manager struct {
	mu    sync.RWMutex
	rooms map[string]*room

	presence *Registry
	store    MessageStore

	// cleanup receives notifications from room loops that have finished.
	cleanup chan roomCleanupMsg

	// wg waits for the cleanup loop during shutdown.
	wg sync.WaitGroup

	logger zerolog.Logger
}

// NewManager constructs a Manager and starts its cleanup loop.
func NewManager(store MessageStore) *Manager {
	m := &Manager{
		rooms:    make(map[string]*room),
		presence: NewRegistry(),
		store:    store,
		cleanup:  make(chan roomCleanupMsg, 32),
		logger:   logx.Logger().With().Str("component", "chat.Manager").Logger(),
	}

	m.wg.Add(1)
	go m.runCleanupLoop()

	return m
}

// Presence returns the registry projection of live membership.
func (m *Manager) Presence() *Registry {
	return m.presence
}

// runCleanupLoop drops finished rooms from the map.
func (m *Manager) runCleanupLoop() {
	defer m.wg.Done()

	for msg := range m.cleanup {
		m.deleteRoom(msg.roomID, msg.r)
	}
}

// deleteRoom removes a finished room, but only if the map still points at
// that exact instance: a fresh room may already occupy the id.
func (m *Manager) deleteRoom(roomID string, finished *room) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if current, ok := m.rooms[roomID]; ok && current == finished {
		delete(m.rooms, roomID)
		m.logger.Info().Str("room_id", roomID).Msg("Empty room removed")
	}
}

// getOrCreateRoom returns the live room for roomID, starting one if needed.
func (m *Manager) getOrCreateRoom(roomID string) *room {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.rooms[roomID]; ok {
		return r
	}

	r := newRoom(roomID, m.cleanup, m.presence)
	m.rooms[roomID] = r
	go r.run()

	m.logger.Info().Str("room_id", roomID).Msg("Room membership set created")
	return r
}

// getRoom returns the live room for roomID, or nil.
func (m *Manager) getRoom(roomID string) *room {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rooms[roomID]
}

// Register adds an authenticated connection to a room's membership set. The
// connection must not already be registered anywhere. The room loop sends
// the presence snapshot to the new member and announces it to the others.
func (m *Manager) Register(conn *Conn, roomID string) *errs.CustomError {
	if conn.Room() != "" {
		return errs.New(errs.ErrAlreadyJoined)
	}

	for {
		r := m.getOrCreateRoom(roomID)

		select {
		case r.register <- conn:
			return nil
		case <-r.done:
			// The room emptied and exited between lookup and send; make
			// sure the dead instance is unmapped, then retry with a fresh
			// one.
			m.deleteRoom(roomID, r)
		}
	}
}

// Unregister removes a connection from its room. Idempotent: unregistering a
// connection that is not registered is a no-op.
func (m *Manager) Unregister(conn *Conn) {
	roomID := conn.Room()
	if roomID == "" {
		return
	}

	r := m.getRoom(roomID)
	if r == nil {
		conn.setRoom("")
		return
	}

	select {
	case r.unregister <- conn:
	case <-r.done:
	}
}

// Broadcast pushes an event to every member of a room through the room's
// single-writer path. Broadcasting to a room with no live members is a no-op.
func (m *Manager) Broadcast(roomID string, evt Event) {
	r := m.getRoom(roomID)
	if r == nil {
		m.logger.Debug().Str("room_id", roomID).Msg("Broadcast to room with no live members dropped")
		return
	}

	select {
	case r.broadcast <- evt:
	case <-r.done:
		m.logger.Debug().Str("room_id", roomID).Msg("Broadcast raced room teardown, dropped")
	}
}

// HandleTyping fans out an ephemeral typing indicator. Nothing is persisted.
func (m *Manager) HandleTyping(roomID string, usr user.User, isTyping bool) {
	evt, err := NewEvent(EventTyping, roomID, TypingPayload{User: usr, IsTyping: isTyping})
	if err != nil {
		m.logger.Error().Err(err).Msg("Failed to build typing event")
		return
	}
	m.Broadcast(roomID, evt)
}

// HandleReadStatus fans out an ephemeral read receipt. Nothing is persisted.
func (m *Manager) HandleReadStatus(roomID string, usr user.User, messageID string) {
	evt, err := NewEvent(EventReadStatus, roomID, ReadStatusPayload{User: usr, MessageID: messageID})
	if err != nil {
		m.logger.Error().Err(err).Msg("Failed to build read status event")
		return
	}
	m.Broadcast(roomID, evt)
}

// Shutdown stops every room loop and waits for cleanup to finish.
func (m *Manager) Shutdown() {
	m.logger.Info().Msg("Shutting down connection manager")

	m.mu.Lock()
	rooms := make([]*room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.rooms = make(map[string]*room)
	m.mu.Unlock()

	for _, r := range rooms {
		close(r.stop)
		<-r.done
	}

	close(m.cleanup)
	m.wg.Wait()

	m.logger.Info().Msg("Connection manager shutdown complete")
}
