/*
Package chat contains the real-time broadcast core: live connections, per-room
fan-out, and presence tracking.

This file defines the room, the single-writer path for one room's membership
and broadcasts. Every mutation and every fan-out for a room goes through its
run loop, which gives the per-room ordering guarantee: events reach all
members registered at send time in the order the broadcasts were issued.
Different rooms run fully in parallel.
*/
package chat

import (
	"sync"

	"github.com/rs/zerolog"

	"parley/internal/app/user"
	"parley/internal/pkg/logx"
)

// broadcastBuffer bounds the per-room broadcast queue.
const broadcastBuffer = 1024

// roomCleanupMsg tells the Manager a room loop has finished.
type roomCleanupMsg struct {
	roomID string
	r      *room
}

// room holds the membership set for one room and serializes all operations on
// it. It holds membership only; room existence is owned by the CRUD layer.
type room struct {
	id string

	// conns maps connection id to connection. Mutated only inside run.
	conns map[string]*Conn

	// mu additionally guards conns for snapshot reads from outside the loop.
	mu sync.RWMutex

	register   chan *Conn
	unregister chan *Conn
	broadcast  chan Event

	// stop forces the loop to exit during Manager shutdown.
	stop chan struct{}

	// done is closed when the loop has exited; senders select on it so they
	// never block on a dead room.
	done chan struct{}

	// cleanup notifies the Manager to drop this room from its map.
	cleanup chan<- roomCleanupMsg

	// presence is the registry projection kept in step with conns.
	presence *Registry

	logger zerolog.Logger
}

// newRoom creates a room ready to run.
func newRoom(roomID string, cleanup chan<- roomCleanupMsg, presence *Registry) *room {
	return &room{
		id:         roomID,
		conns:      make(map[string]*Conn),
		register:   make(chan *Conn),
		unregister: make(chan *Conn),
		broadcast:  make(chan Event, broadcastBuffer),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
		cleanup:    cleanup,
		presence:   presence,
		logger:     logx.Logger().With().Str("room_id", roomID).Logger(),
	}
}

// run is the room's event loop. It exits when the membership set empties or
// the Manager forces a stop, notifying the Manager either way.
func (r *room) run() {
	defer func() {
		r.evictAll()

		// Notify before closing done: Shutdown waits on done and then
		// closes the cleanup channel, so this send must already be behind us.
		select {
		case r.cleanup <- roomCleanupMsg{roomID: r.id, r: r}:
		default:
			r.logger.Warn().Msg("Manager cleanup channel blocked, skipping notification")
		}

		close(r.done)
		r.logger.Info().Msg("Room loop finished")
	}()

	for {
		select {
		case conn := <-r.register:
			r.addConn(conn)
			if r.size() == 0 {
				// The only registration attempt failed immediately.
				return
			}

		case conn := <-r.unregister:
			r.removeConn(conn, false)
			if r.size() == 0 {
				return
			}

		case evt := <-r.broadcast:
			r.fanOut(evt)
			if r.size() == 0 {
				// Every member failed during fan-out.
				return
			}

		case <-r.stop:
			r.logger.Info().Msg("Room forced stop")
			return
		}
	}
}

// addConn registers a connection: it joins the membership set, receives a
// presence snapshot, and the other members learn about it. The snapshot is
// sent before any later broadcast is processed, so a late joiner never sees
// events issued before its own snapshot.
func (r *room) addConn(conn *Conn) {
	r.mu.Lock()
	if _, exists := r.conns[conn.id]; exists {
		r.mu.Unlock()
		r.logger.Warn().Str("conn_id", conn.id).Msg("Duplicate register ignored")
		return
	}
	r.conns[conn.id] = conn
	members := r.memberListLocked()
	r.mu.Unlock()

	conn.setRoom(r.id)
	r.presence.add(r.id, conn.id, conn.usr)

	r.logger.Info().
		Str("conn_id", conn.id).
		Str("user_id", conn.usr.ID).
		Int("members", len(members)).
		Msg("Connection joined room")

	snapshot, err := NewEvent(EventPresenceSnapshot, r.id, PresenceSnapshotPayload{Members: members})
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to build presence snapshot")
	} else if err := conn.enqueue(snapshot); err != nil {
		r.removeConn(conn, true)
		return
	}

	joined, err := NewEvent(EventUserJoined, r.id, UserEventPayload{User: conn.usr})
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to build user_joined event")
		return
	}

	r.fanOutExcept(joined, conn.id)
}

// removeConn takes a connection out of the membership set. Idempotent: it is
// a no-op for connections that are not registered here. When evict is true
// the connection's transport is shut down as well.
func (r *room) removeConn(conn *Conn, evict bool) {
	r.mu.Lock()
	current, ok := r.conns[conn.id]
	if !ok || current != conn {
		r.mu.Unlock()
		return
	}
	delete(r.conns, conn.id)
	remaining := len(r.conns)
	r.mu.Unlock()

	conn.setRoom("")
	r.presence.remove(r.id, conn.id, conn.usr.ID)

	if evict {
		conn.close()
	}

	r.logger.Info().
		Str("conn_id", conn.id).
		Str("user_id", conn.usr.ID).
		Int("members", remaining).
		Bool("evicted", evict).
		Msg("Connection left room")

	if remaining == 0 {
		return
	}

	left, err := NewEvent(EventUserLeft, r.id, UserEventPayload{User: conn.usr})
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to build user_left event")
		return
	}

	r.fanOut(left)
}

// fanOut delivers an event to every current member. A member whose queue
// rejects the event is evicted; delivery to the remaining members proceeds.
func (r *room) fanOut(evt Event) {
	r.fanOutExcept(evt, "")
}

func (r *room) fanOutExcept(evt Event, skipConnID string) {
	r.mu.RLock()
	targets := make([]*Conn, 0, len(r.conns))
	for id, conn := range r.conns {
		if id == skipConnID {
			continue
		}
		targets = append(targets, conn)
	}
	r.mu.RUnlock()

	var failed []*Conn
	for _, conn := range targets {
		if err := conn.enqueue(evt); err != nil {
			failed = append(failed, conn)
		}
	}

	for _, conn := range failed {
		r.removeConn(conn, true)
	}
}

// evictAll closes every remaining connection. Called on forced stop.
func (r *room) evictAll() {
	r.mu.Lock()
	conns := make([]*Conn, 0, len(r.conns))
	for _, conn := range r.conns {
		conns = append(conns, conn)
	}
	r.conns = make(map[string]*Conn)
	r.mu.Unlock()

	for _, conn := range conns {
		conn.setRoom("")
		r.presence.remove(r.id, conn.id, conn.usr.ID)
		conn.close()
	}
}

// size returns the current membership count.
func (r *room) size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// memberListLocked snapshots the member identities. Caller holds mu.
func (r *room) memberListLocked() []user.User {
	members := make([]user.User, 0, len(r.conns))
	for _, conn := range r.conns {
		members = append(members, conn.usr)
	}
	return members
}
