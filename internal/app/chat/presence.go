/*
Package chat contains the real-time broadcast core: live connections, per-room
fan-out, and presence tracking.

This file defines the Registry, a read-optimized projection of the Manager's
membership sets. It answers "who is in room X" and "is user Y online" for the
CRUD layer. It is never independently authoritative: the room loops update it
at the same point they mutate membership, and the Manager's live sets win on
any disagreement.
*/
package chat

import (
	"sync"

	"parley/internal/app/user"
)

// Registry projects room membership into presence queries.
type Registry struct {
	mu sync.RWMutex

	// rooms maps room id to connection id to member identity.
	rooms map[string]map[string]user.User

	// online maps user id to the number of live connections it owns.
	online map[string]int
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms:  make(map[string]map[string]user.User),
		online: make(map[string]int),
	}
}

// add records a connection joining a room.
func (p *Registry) add(roomID, connID string, usr user.User) {
	p.mu.Lock()
	defer p.mu.Unlock()

	members, ok := p.rooms[roomID]
	if !ok {
		members = make(map[string]user.User)
		p.rooms[roomID] = members
	}
	members[connID] = usr
	p.online[usr.ID]++
}

// remove records a connection leaving a room. Empty room entries are dropped.
func (p *Registry) remove(roomID, connID, userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	members, ok := p.rooms[roomID]
	if !ok {
		return
	}

	if _, present := members[connID]; !present {
		return
	}

	delete(members, connID)
	if len(members) == 0 {
		delete(p.rooms, roomID)
	}

	if p.online[userID] <= 1 {
		delete(p.online, userID)
	} else {
		p.online[userID]--
	}
}

// MembersOf returns the identities currently connected to a room.
func (p *Registry) MembersOf(roomID string) []user.User {
	p.mu.RLock()
	defer p.mu.RUnlock()

	members := p.rooms[roomID]
	out := make([]user.User, 0, len(members))
	for _, usr := range members {
		out = append(out, usr)
	}
	return out
}

// CountOf returns the number of connections registered to a room.
func (p *Registry) CountOf(roomID string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.rooms[roomID])
}

// IsOnline reports whether the user has at least one live connection in any
// room.
func (p *Registry) IsOnline(userID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.online[userID] > 0
}
