package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"parley/pkg/client"
)

var errWireDown = errors.New("wire down")

// fakeWire is an in-memory transport end. Tests feed inbound frames and
// read back what the client wrote.
type fakeWire struct {
	inbound chan []byte
	writes  chan []byte

	mu       sync.Mutex
	writeErr error

	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeWire() *fakeWire {
	return &fakeWire{
		inbound: make(chan []byte, 64),
		writes:  make(chan []byte, 64),
		closed:  make(chan struct{}),
	}
}

func (w *fakeWire) ReadMessage() ([]byte, error) {
	select {
	case data := <-w.inbound:
		return data, nil
	case <-w.closed:
		return nil, errWireDown
	}
}

func (w *fakeWire) WriteMessage(data []byte) error {
	w.mu.Lock()
	err := w.writeErr
	w.mu.Unlock()
	if err != nil {
		return err
	}

	select {
	case w.writes <- data:
		return nil
	case <-w.closed:
		return errWireDown
	}
}

func (w *fakeWire) Close() error {
	w.closeOnce.Do(func() { close(w.closed) })
	return nil
}

func (w *fakeWire) setWriteErr(err error) {
	w.mu.Lock()
	w.writeErr = err
	w.mu.Unlock()
}

// fakeDialer hands out fakeWires, or fails while failErr is set. Every
// successful dial is announced on the wires channel.
type fakeDialer struct {
	mu      sync.Mutex
	failErr error
	dials   int

	wires chan *fakeWire
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{wires: make(chan *fakeWire, 16)}
}

func (d *fakeDialer) Dial(_ context.Context, _ string) (client.Wire, error) {
	d.mu.Lock()
	d.dials++
	err := d.failErr
	d.mu.Unlock()
	if err != nil {
		return nil, err
	}

	w := newFakeWire()
	d.wires <- w
	return w, nil
}

func (d *fakeDialer) setFailErr(err error) {
	d.mu.Lock()
	d.failErr = err
	d.mu.Unlock()
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

// testOptions returns Options tuned for fast, deterministic tests.
func testOptions(d *fakeDialer) client.Options {
	return client.Options{
		URL:                  "ws://test/api/ws",
		Token:                "test-token",
		Dialer:               d,
		MaxRetries:           3,
		AckTimeout:           40 * time.Millisecond,
		RetryBase:            10 * time.Millisecond,
		RetryCap:             40 * time.Millisecond,
		ReconnectBase:        5 * time.Millisecond,
		ReconnectCap:         20 * time.Millisecond,
		MaxReconnectAttempts: 3,
		ResendStagger:        5 * time.Millisecond,
	}
}

// connect establishes a client over a fresh fake wire.
func connect(t *testing.T, c *client.Client, d *fakeDialer) *fakeWire {
	t.Helper()

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	select {
	case w := <-d.wires:
		return w
	case <-time.After(2 * time.Second):
		t.Fatal("dialer never produced a wire")
		return nil
	}
}

// readFrame decodes the next frame the client wrote to the wire.
func readFrame(t *testing.T, w *fakeWire) map[string]any {
	t.Helper()

	select {
	case data := <-w.writes:
		var frame map[string]any
		if err := json.Unmarshal(data, &frame); err != nil {
			t.Fatalf("unmarshal written frame: %v", err)
		}
		return frame
	case <-time.After(2 * time.Second):
		t.Fatal("client never wrote a frame")
		return nil
	}
}

// echo feeds the server's broadcast echo for a client message id back in.
func echo(t *testing.T, w *fakeWire, clientMessageID string) {
	t.Helper()

	payload, err := json.Marshal(client.MessagePayload{
		ID:              "srv-1",
		ClientMessageID: clientMessageID,
		Sender:          client.User{ID: "u1", Nickname: "alice"},
		Kind:            "text",
		Content:         "hello",
		CreatedAt:       time.Now().UnixMilli(),
	})
	if err != nil {
		t.Fatalf("marshal echo payload: %v", err)
	}

	frame, err := json.Marshal(client.Event{
		Type:      client.EventMessage,
		RoomID:    "room1",
		Timestamp: time.Now().UnixMilli(),
		Payload:   payload,
	})
	if err != nil {
		t.Fatalf("marshal echo frame: %v", err)
	}

	w.inbound <- frame
}

// waitStatus consumes Updates until the wanted status shows up for id.
func waitStatus(t *testing.T, c *client.Client, id string, want client.Status) client.Update {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case u, ok := <-c.Updates():
			if !ok {
				t.Fatal("updates channel closed")
			}
			if u.MessageID == id && u.Status == want {
				return u
			}
		case <-deadline:
			t.Fatalf("timed out waiting for status %v", want)
		}
	}
}

// waitState consumes States until the wanted connection state shows up.
func waitState(t *testing.T, c *client.Client, want client.ConnectionState) {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case s, ok := <-c.States():
			if !ok {
				t.Fatal("states channel closed")
			}
			if s.New == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for state %v", want)
		}
	}
}

// TestSendSentOnEcho verifies the happy path: the frame carries the client
// message id and the server echo finalizes the pending record.
func TestSendSentOnEcho(t *testing.T) {
	d := newFakeDialer()
	c := client.New(testOptions(d))
	defer c.Close()
	w := connect(t, c, d)

	id, err := c.Send("hello")
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	frame := readFrame(t, w)
	if frame["type"] != "message" || frame["client_message_id"] != id {
		t.Fatalf("frame = %v, want message carrying %s", frame, id)
	}
	if frame["content"] != "hello" || frame["message_type"] != "text" {
		t.Fatalf("frame = %v", frame)
	}

	echo(t, w, id)
	waitStatus(t, c, id, client.StatusSent)

	if _, _, ok := c.Pending(id); ok {
		t.Fatal("sent message still in the pending table")
	}
}

// TestWriteFailureExhaustsAfterThreeRetries verifies the automatic retry
// budget: one initial attempt, three retries, then terminal exhaustion.
func TestWriteFailureExhaustsAfterThreeRetries(t *testing.T) {
	d := newFakeDialer()
	c := client.New(testOptions(d))
	defer c.Close()
	w := connect(t, c, d)
	w.setWriteErr(errWireDown)

	id, err := c.Send("doomed")
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	attempts := 0
	deadline := time.After(2 * time.Second)
	for {
		var u client.Update
		select {
		case u = <-c.Updates():
		case <-deadline:
			t.Fatal("timed out waiting for exhaustion")
		}
		if u.MessageID != id {
			continue
		}

		switch u.Status {
		case client.StatusSending:
			attempts++
		case client.StatusExhausted:
			if attempts != 4 {
				t.Fatalf("exhausted after %d attempts, want 4 (1 initial + 3 retries)", attempts)
			}
			if u.Retries != 3 {
				t.Fatalf("exhausted with retry count %d, want 3", u.Retries)
			}
			return
		}
	}
}

// TestAckTimeoutSchedulesRetry verifies that a written but never echoed
// message fails with the ack timeout and recovers once the echo arrives.
func TestAckTimeoutSchedulesRetry(t *testing.T) {
	d := newFakeDialer()
	c := client.New(testOptions(d))
	defer c.Close()
	w := connect(t, c, d)

	id, err := c.Send("slow server")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	readFrame(t, w)

	u := waitStatus(t, c, id, client.StatusFailed)
	if !errors.Is(u.Err, client.ErrAckTimeout) {
		t.Fatalf("failed with %v, want ErrAckTimeout", u.Err)
	}

	// The scheduled retry writes again; this time the echo lands.
	readFrame(t, w)
	echo(t, w, id)
	waitStatus(t, c, id, client.StatusSent)
}

// TestManualRetryResetsBudget verifies that ManualRetry works from the
// terminal exhausted state and starts with a zero retry count.
func TestManualRetryResetsBudget(t *testing.T) {
	d := newFakeDialer()
	c := client.New(testOptions(d))
	defer c.Close()
	w := connect(t, c, d)
	w.setWriteErr(errWireDown)

	id, err := c.Send("doomed")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	waitStatus(t, c, id, client.StatusExhausted)

	w.setWriteErr(nil)
	if err := c.ManualRetry(id); err != nil {
		t.Fatalf("manual retry: %v", err)
	}

	frame := readFrame(t, w)
	if frame["client_message_id"] != id {
		t.Fatalf("manual retry wrote frame %v", frame)
	}
	if status, retries, ok := c.Pending(id); !ok || status != client.StatusSending || retries != 0 {
		t.Fatalf("after manual retry: status=%v retries=%d ok=%v", status, retries, ok)
	}

	echo(t, w, id)
	waitStatus(t, c, id, client.StatusSent)
}

// TestManualRetryUnknownID verifies the error for ids outside the pending
// table.
func TestManualRetryUnknownID(t *testing.T) {
	d := newFakeDialer()
	c := client.New(testOptions(d))
	defer c.Close()

	if err := c.ManualRetry("nope"); !errors.Is(err, client.ErrUnknownMessage) {
		t.Fatalf("manual retry of unknown id = %v, want ErrUnknownMessage", err)
	}
}

// TestSendWhileDisconnected verifies that an offline send fails without a
// timed retry and is re-attempted automatically after the next connect.
func TestSendWhileDisconnected(t *testing.T) {
	d := newFakeDialer()
	c := client.New(testOptions(d))
	defer c.Close()

	id, err := c.Send("queued offline")
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	u := waitStatus(t, c, id, client.StatusFailed)
	if !errors.Is(u.Err, client.ErrNotConnected) {
		t.Fatalf("failed with %v, want ErrNotConnected", u.Err)
	}

	// Still failed after the retry table would have fired: offline
	// messages wait for the reconnect, they do not burn the budget.
	time.Sleep(60 * time.Millisecond)
	if status, retries, ok := c.Pending(id); !ok || status != client.StatusFailed || retries != 0 {
		t.Fatalf("offline pending: status=%v retries=%d ok=%v", status, retries, ok)
	}

	w := connect(t, c, d)
	frame := readFrame(t, w)
	if frame["client_message_id"] != id {
		t.Fatalf("post-connect resend wrote frame %v", frame)
	}

	echo(t, w, id)
	waitStatus(t, c, id, client.StatusSent)
}

// TestReconnectBackoffToTerminal verifies that a dropped connection drives
// automatic reconnection until the attempt budget is spent, and that
// ManualReconnect recovers from the terminal state.
func TestReconnectBackoffToTerminal(t *testing.T) {
	d := newFakeDialer()
	c := client.New(testOptions(d))
	defer c.Close()
	w := connect(t, c, d)
	waitState(t, c, client.StateConnected)

	d.setFailErr(errWireDown)
	w.Close()

	waitState(t, c, client.StateReconnectFailed)
	if got := d.dialCount(); got != 4 {
		t.Fatalf("dialed %d times, want 4 (1 initial + 3 reconnect attempts)", got)
	}
	if c.State() != client.StateReconnectFailed {
		t.Fatalf("state = %v, want reconnect_failed", c.State())
	}

	d.setFailErr(nil)
	if err := c.ManualReconnect(); err != nil {
		t.Fatalf("manual reconnect: %v", err)
	}
	waitState(t, c, client.StateConnected)

	select {
	case <-d.wires:
	case <-time.After(2 * time.Second):
		t.Fatal("manual reconnect never dialed")
	}
}

// TestReconnectResetsAttemptCounter verifies a successful reconnect arms a
// full budget for the next outage.
func TestReconnectResetsAttemptCounter(t *testing.T) {
	d := newFakeDialer()
	c := client.New(testOptions(d))
	defer c.Close()
	w := connect(t, c, d)

	// First outage recovers on the first attempt.
	w.Close()
	var w2 *fakeWire
	select {
	case w2 = <-d.wires:
	case <-time.After(2 * time.Second):
		t.Fatal("no automatic reconnect")
	}
	waitState(t, c, client.StateConnected)

	// Second outage gets the full budget again before going terminal.
	dialsBefore := d.dialCount()
	d.setFailErr(errWireDown)
	w2.Close()
	waitState(t, c, client.StateReconnectFailed)

	if got := d.dialCount() - dialsBefore; got != 3 {
		t.Fatalf("second outage used %d attempts, want 3", got)
	}
}

// TestCloseIsTerminal verifies Close stops reconnection and every
// operation afterwards reports ErrClosed.
func TestCloseIsTerminal(t *testing.T) {
	d := newFakeDialer()
	c := client.New(testOptions(d))
	w := connect(t, c, d)

	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	select {
	case <-w.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("close never tore down the wire")
	}

	if _, err := c.Send("too late"); !errors.Is(err, client.ErrClosed) {
		t.Fatalf("send after close = %v, want ErrClosed", err)
	}
	if err := c.ManualReconnect(); !errors.Is(err, client.ErrClosed) {
		t.Fatalf("manual reconnect after close = %v, want ErrClosed", err)
	}

	// No reconnect dials after an explicit close.
	dials := d.dialCount()
	time.Sleep(50 * time.Millisecond)
	if d.dialCount() != dials {
		t.Fatal("client dialed after explicit close")
	}
}

// TestControlFrames verifies the join/leave/typing/read_status frames.
func TestControlFrames(t *testing.T) {
	d := newFakeDialer()
	c := client.New(testOptions(d))
	defer c.Close()
	w := connect(t, c, d)

	if err := c.Join("room1"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if f := readFrame(t, w); f["type"] != "join" || f["room_id"] != "room1" {
		t.Fatalf("join frame = %v", f)
	}

	if err := c.Typing(true); err != nil {
		t.Fatalf("typing: %v", err)
	}
	if f := readFrame(t, w); f["type"] != "typing" || f["is_typing"] != true {
		t.Fatalf("typing frame = %v", f)
	}

	if err := c.MarkRead("srv-42"); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if f := readFrame(t, w); f["type"] != "read_status" || f["message_id"] != "srv-42" {
		t.Fatalf("read_status frame = %v", f)
	}

	if err := c.Leave(); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if f := readFrame(t, w); f["type"] != "leave" {
		t.Fatalf("leave frame = %v", f)
	}
}

// TestEventsSurfaced verifies that non-correlated events reach the Events
// stream untouched.
func TestEventsSurfaced(t *testing.T) {
	d := newFakeDialer()
	c := client.New(testOptions(d))
	defer c.Close()
	w := connect(t, c, d)

	payload, err := json.Marshal(client.TypingPayload{
		User:     client.User{ID: "u2", Nickname: "bob"},
		IsTyping: true,
	})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	frame, err := json.Marshal(client.Event{
		Type:      client.EventTyping,
		RoomID:    "room1",
		Timestamp: time.Now().UnixMilli(),
		Payload:   payload,
	})
	if err != nil {
		t.Fatalf("marshal frame: %v", err)
	}
	w.inbound <- frame

	select {
	case ev := <-c.Events():
		if ev.Type != client.EventTyping || ev.RoomID != "room1" {
			t.Fatalf("surfaced event = %+v", ev)
		}
		var tp client.TypingPayload
		if err := json.Unmarshal(ev.Payload, &tp); err != nil {
			t.Fatalf("unmarshal surfaced payload: %v", err)
		}
		if tp.User.ID != "u2" || !tp.IsTyping {
			t.Fatalf("surfaced payload = %+v", tp)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event never surfaced")
	}
}
