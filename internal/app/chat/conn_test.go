package chat

import (
	"encoding/json"
	"testing"

	"parley/internal/app/user"
	"parley/internal/pkg/errs"
)

// drainQueue discards everything currently queued on a connection.
func drainQueue(c *Conn) {
	for {
		select {
		case <-c.send:
		default:
			return
		}
	}
}

func frame(t *testing.T, v any) []byte {
	t.Helper()

	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal frame: %v", err)
	}
	return raw
}

func expectError(t *testing.T, c *Conn, code int) {
	t.Helper()

	evt := recvEventOfType(t, c, EventError)
	var payload ErrorPayload
	if err := json.Unmarshal(evt.Payload, &payload); err != nil {
		t.Fatalf("unmarshal error payload: %v", err)
	}
	if payload.Code != code {
		t.Fatalf("error code = %d, want %d", payload.Code, code)
	}
}

// TestMessageEchoesClientID verifies that an inbound message reaches every
// room member, sender included, with the client's own id round-tripped
// untouched next to the server-assigned one.
func TestMessageEchoesClientID(t *testing.T) {
	store := newFakeStore()
	m := NewManager(store)
	defer m.Shutdown()

	alice := newTestConn(m, "c1", user.User{ID: "u1", Nickname: "alice"}, 64)
	bob := newTestConn(m, "c2", user.User{ID: "u2", Nickname: "bob"}, 64)
	for _, c := range []*Conn{alice, bob} {
		if err := m.Register(c, "room1"); err != nil {
			t.Fatalf("register %s: %v", c.id, err)
		}
	}
	waitFor(t, func() bool { return m.presence.CountOf("room1") == 2 }, "room never reached 2 members")
	drainQueue(alice)
	drainQueue(bob)

	alice.handleFrame(frame(t, map[string]any{
		"type":              "message",
		"content":           "hello there",
		"message_type":      "text",
		"client_message_id": "client-abc-123",
	}))

	for _, c := range []*Conn{alice, bob} {
		evt := recvEventOfType(t, c, EventMessage)
		var payload MessagePayload
		if err := json.Unmarshal(evt.Payload, &payload); err != nil {
			t.Fatalf("unmarshal message payload: %v", err)
		}
		if payload.ClientMessageID != "client-abc-123" {
			t.Fatalf("%s saw client_message_id %q, want client-abc-123", c.id, payload.ClientMessageID)
		}
		if payload.ID == "" {
			t.Fatalf("%s saw message without a server id", c.id)
		}
		if payload.Sender.ID != "u1" || payload.Content != "hello there" {
			t.Fatalf("%s saw payload %+v", c.id, payload)
		}
	}

	if n := store.createCount(); n != 1 {
		t.Fatalf("store.Create called %d times, want 1", n)
	}
}

// TestMessageWithoutRoomRejected verifies that sending before joining gets
// an error event and touches nothing.
func TestMessageWithoutRoomRejected(t *testing.T) {
	store := newFakeStore()
	m := NewManager(store)
	defer m.Shutdown()

	conn := newTestConn(m, "c1", user.User{ID: "u1"}, 64)
	conn.handleFrame(frame(t, map[string]any{
		"type":         "message",
		"content":      "hello",
		"message_type": "text",
	}))

	expectError(t, conn, errs.ErrNotJoined)
	if n := store.createCount(); n != 0 {
		t.Fatalf("store.Create called %d times, want 0", n)
	}
}

// TestJoinRequiresMembership verifies the membership gate on join.
func TestJoinRequiresMembership(t *testing.T) {
	store := newFakeStore()
	m := NewManager(store)
	defer m.Shutdown()

	conn := newTestConn(m, "c1", user.User{ID: "u1"}, 64)
	conn.handleFrame(frame(t, map[string]any{"type": "join", "room_id": "room1"}))
	expectError(t, conn, errs.ErrNotRoomMember)
	if conn.Room() != "" {
		t.Fatalf("rejected join still registered the connection to %q", conn.Room())
	}

	store.allow("room1", "u1")
	conn.handleFrame(frame(t, map[string]any{"type": "join", "room_id": "room1"}))
	recvEventOfType(t, conn, EventPresenceSnapshot)
	waitFor(t, func() bool { return conn.Room() == "room1" }, "member join never registered")
}

// TestLeaveKeepsConnectionOpen verifies that leave unregisters the
// connection but leaves the session usable for a later join.
func TestLeaveKeepsConnectionOpen(t *testing.T) {
	store := newFakeStore()
	m := NewManager(store)
	defer m.Shutdown()

	store.allow("room1", "u1")
	store.allow("room2", "u1")

	conn := newTestConn(m, "c1", user.User{ID: "u1"}, 64)
	conn.handleFrame(frame(t, map[string]any{"type": "join", "room_id": "room1"}))
	waitFor(t, func() bool { return conn.Room() == "room1" }, "join never registered")
	drainQueue(conn)

	conn.handleFrame(frame(t, map[string]any{"type": "leave"}))
	waitFor(t, func() bool { return conn.Room() == "" }, "leave never unregistered")
	if isClosed(conn) {
		t.Fatal("leave closed the connection")
	}

	conn.handleFrame(frame(t, map[string]any{"type": "join", "room_id": "room2"}))
	waitFor(t, func() bool { return conn.Room() == "room2" }, "join after leave never registered")
}

// TestUnknownFrameType verifies the error answer for unknown frames.
func TestUnknownFrameType(t *testing.T) {
	m := NewManager(newFakeStore())
	defer m.Shutdown()

	conn := newTestConn(m, "c1", user.User{ID: "u1"}, 64)

	conn.handleFrame(frame(t, map[string]any{"type": "dance"}))
	expectError(t, conn, errs.ErrFrameTypeUnknown)

	conn.handleFrame([]byte("{not json"))
	expectError(t, conn, errs.ErrFrameInvalid)

	if isClosed(conn) {
		t.Fatal("bad frames closed the connection")
	}
}

// TestTypingRequiresRoom verifies typing and read_status are rejected off
// room.
func TestTypingRequiresRoom(t *testing.T) {
	m := NewManager(newFakeStore())
	defer m.Shutdown()

	conn := newTestConn(m, "c1", user.User{ID: "u1"}, 64)

	conn.handleFrame(frame(t, map[string]any{"type": "typing", "is_typing": true}))
	expectError(t, conn, errs.ErrNotJoined)

	conn.handleFrame(frame(t, map[string]any{"type": "read_status", "message_id": "m1"}))
	expectError(t, conn, errs.ErrNotJoined)
}

// TestEnqueueAfterClose verifies that fan-out to a closed connection fails
// fast instead of blocking or panicking.
func TestEnqueueAfterClose(t *testing.T) {
	m := NewManager(newFakeStore())
	defer m.Shutdown()

	conn := newTestConn(m, "c1", user.User{ID: "u1"}, 1)
	conn.close()

	evt, err := NewEvent(EventMessage, "room1", MessagePayload{ID: "m1"})
	if err != nil {
		t.Fatalf("build event: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := conn.enqueue(evt); err == nil {
			t.Fatalf("enqueue %d after close succeeded", i)
		}
	}
}
