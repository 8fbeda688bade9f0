package chat

import (
	"testing"

	"parley/internal/app/user"
)

// TestRegistryTracksMembership exercises the add/remove bookkeeping.
func TestRegistryTracksMembership(t *testing.T) {
	reg := NewRegistry()
	alice := user.User{ID: "u1", Nickname: "alice"}
	bob := user.User{ID: "u2", Nickname: "bob"}

	reg.add("room1", "c1", alice)
	reg.add("room1", "c2", bob)
	reg.add("room2", "c3", alice)

	if n := reg.CountOf("room1"); n != 2 {
		t.Fatalf("CountOf(room1) = %d, want 2", n)
	}
	if !reg.IsOnline("u1") || !reg.IsOnline("u2") {
		t.Fatal("members not reported online")
	}

	members := reg.MembersOf("room1")
	seen := make(map[string]bool, len(members))
	for _, m := range members {
		seen[m.ID] = true
	}
	if !seen["u1"] || !seen["u2"] || len(members) != 2 {
		t.Fatalf("MembersOf(room1) = %+v", members)
	}

	// Alice still has a connection in room2, so she stays online.
	reg.remove("room1", "c1", "u1")
	if reg.CountOf("room1") != 1 {
		t.Fatalf("CountOf(room1) = %d after remove, want 1", reg.CountOf("room1"))
	}
	if !reg.IsOnline("u1") {
		t.Fatal("u1 went offline while still connected to room2")
	}

	reg.remove("room2", "c3", "u1")
	if reg.IsOnline("u1") {
		t.Fatal("u1 still online with no connections")
	}
}

// TestRegistryRemoveIdempotent verifies that double removes and removes of
// unknown connections never drive the counters negative.
func TestRegistryRemoveIdempotent(t *testing.T) {
	reg := NewRegistry()
	alice := user.User{ID: "u1"}

	reg.remove("room1", "c1", "u1")

	reg.add("room1", "c1", alice)
	reg.remove("room1", "c1", "u1")
	reg.remove("room1", "c1", "u1")

	if reg.IsOnline("u1") {
		t.Fatal("u1 online after removal")
	}
	if n := reg.CountOf("room1"); n != 0 {
		t.Fatalf("CountOf(room1) = %d, want 0", n)
	}

	// A fresh add after the noise still counts correctly.
	reg.add("room1", "c9", alice)
	if !reg.IsOnline("u1") || reg.CountOf("room1") != 1 {
		t.Fatal("registry corrupted by idempotent removes")
	}
}

// TestRegistryEmptyRoomDropped verifies empty room entries do not linger.
func TestRegistryEmptyRoomDropped(t *testing.T) {
	reg := NewRegistry()

	reg.add("room1", "c1", user.User{ID: "u1"})
	reg.remove("room1", "c1", "u1")

	if got := reg.MembersOf("room1"); len(got) != 0 {
		t.Fatalf("MembersOf(room1) = %+v after emptying, want none", got)
	}
	if reg.CountOf("room1") != 0 {
		t.Fatal("count lingering for emptied room")
	}
}
