/*
Package client is a self-contained SDK for the Parley chat server.

It owns the three client-side state machines: the connection lifecycle with
automatic reconnection, the per-message delivery state machine, and the
retry scheduler. All state is guarded by one mutex; timer callbacks
re-acquire it. Nothing here is fatal to the process.
*/
package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("client: closed")

	// ErrNotConnected marks a send attempt made without a live connection.
	ErrNotConnected = errors.New("client: not connected")

	// ErrAckTimeout marks a send attempt the server never echoed back.
	ErrAckTimeout = errors.New("client: timed out waiting for server echo")

	// ErrUnknownMessage is returned by ManualRetry for an id that is not
	// in the pending table.
	ErrUnknownMessage = errors.New("client: unknown message id")
)

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	// URL is the WebSocket endpoint, e.g. ws://localhost:8080/api/ws.
	URL string

	// Token is the session JWT, passed as a query parameter on dial.
	Token string

	// Dialer overrides the transport. Defaults to gorilla/websocket.
	Dialer Dialer

	// MaxRetries bounds automatic delivery retries per message. Default 3.
	MaxRetries int

	// AckTimeout bounds the wait for the server echo. Default 10s.
	AckTimeout time.Duration

	// RetryBase and RetryCap shape the delivery retry backoff table.
	// Defaults 1s and 30s.
	RetryBase time.Duration
	RetryCap  time.Duration

	// ReconnectBase and ReconnectCap shape the reconnection backoff.
	// Defaults 1s and 30s.
	ReconnectBase time.Duration
	ReconnectCap  time.Duration

	// MaxReconnectAttempts bounds automatic reconnection. Default 10.
	MaxReconnectAttempts int

	// ResendStagger spaces out the re-attempts of failed messages after a
	// reconnect. Default 250ms.
	ResendStagger time.Duration

	// Logger receives diagnostic output. Defaults to a no-op logger.
	Logger zerolog.Logger
}

func (o *Options) applyDefaults() {
	if o.Dialer == nil {
		o.Dialer = websocketDialer{}
	}
	if o.MaxRetries == 0 {
		o.MaxRetries = 3
	}
	if o.AckTimeout == 0 {
		o.AckTimeout = 10 * time.Second
	}
	if o.RetryBase == 0 {
		o.RetryBase = time.Second
	}
	if o.RetryCap == 0 {
		o.RetryCap = 30 * time.Second
	}
	if o.ReconnectBase == 0 {
		o.ReconnectBase = time.Second
	}
	if o.ReconnectCap == 0 {
		o.ReconnectCap = 30 * time.Second
	}
	if o.MaxReconnectAttempts == 0 {
		o.MaxReconnectAttempts = 10
	}
	if o.ResendStagger == 0 {
		o.ResendStagger = 250 * time.Millisecond
	}
}

// Client maintains one connection to the chat server and tracks every
// in-flight message until the server echoes it back.
type Client struct {
	opts   Options
	logger zerolog.Logger

	mu       sync.Mutex
	closed   bool
	state    ConnectionState
	wire     Wire
	pendings map[string]*pending

	reconnectAttempts int
	reconnectTimer    *time.Timer

	events  chan Event
	updates chan Update
	states  chan StateChange
}

// New builds a Client. The connection is not established until Connect.
func New(opts Options) *Client {
	opts.applyDefaults()

	return &Client{
		opts:     opts,
		logger:   opts.Logger,
		state:    StateDisconnected,
		pendings: make(map[string]*pending),
		events:   make(chan Event, 64),
		updates:  make(chan Update, 64),
		states:   make(chan StateChange, 16),
	}
}

// Events streams room events (messages, joins, typing, errors) for the UI.
func (c *Client) Events() <-chan Event { return c.events }

// Updates streams pending message transitions for the UI.
func (c *Client) Updates() <-chan Update { return c.updates }

// States streams connection state transitions for the UI.
func (c *Client) States() <-chan StateChange { return c.states }

// State returns the current connection state.
func (c *Client) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect dials the server. On success a read loop runs until the
// connection drops, after which reconnection is automatic.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state == StateConnected || c.state == StateConnecting {
		c.mu.Unlock()
		return nil
	}
	c.setStateLocked(StateConnecting, nil)
	c.mu.Unlock()

	w, err := c.opts.Dialer.Dial(ctx, c.dialURL())

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		if w != nil {
			w.Close()
		}
		return ErrClosed
	}
	if err != nil {
		c.setStateLocked(StateDisconnected, err)
		return err
	}

	c.adoptWireLocked(w)
	return nil
}

// dialURL appends the session token to the configured endpoint.
func (c *Client) dialURL() string {
	if c.opts.Token == "" {
		return c.opts.URL
	}

	q := url.Values{}
	q.Set("token", c.opts.Token)
	return c.opts.URL + "?" + q.Encode()
}

// adoptWireLocked installs a freshly dialed connection, resets the
// reconnect counter, and re-attempts every failed message. Caller holds mu.
func (c *Client) adoptWireLocked(w Wire) {
	c.wire = w
	c.reconnectAttempts = 0
	c.setStateLocked(StateConnected, nil)
	c.resendFailedLocked()

	go c.readLoop(w)
}

// readLoop pulls frames off one wire until it errors, then hands off to the
// disconnect path. A stale loop (the client already moved to a newer wire)
// exits without side effects.
func (c *Client) readLoop(w Wire) {
	for {
		data, err := w.ReadMessage()
		if err != nil {
			c.handleDisconnect(w, err)
			return
		}

		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			c.logger.Warn().Err(err).Msg("Dropping malformed frame")
			continue
		}

		c.dispatch(ev)
	}
}

// dispatch correlates an inbound event against the pending table before
// surfacing it on the Events channel.
func (c *Client) dispatch(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	if ev.Type == EventMessage {
		var payload MessagePayload
		if err := json.Unmarshal(ev.Payload, &payload); err == nil && payload.ClientMessageID != "" {
			c.markSentLocked(payload.ClientMessageID)
		}
	}

	select {
	case c.events <- ev:
	default:
		c.logger.Warn().Str("type", ev.Type).Msg("Events channel full, dropping event")
	}
}

// handleDisconnect tears down a dead wire and schedules reconnection.
func (c *Client) handleDisconnect(w Wire, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.wire != w {
		return
	}

	c.wire = nil
	w.Close()
	c.logger.Info().Err(err).Msg("Connection lost")
	c.setStateLocked(StateDisconnected, err)
	c.scheduleReconnectLocked()
}

// setStateLocked transitions the connection state and emits the change.
// Caller holds mu.
func (c *Client) setStateLocked(next ConnectionState, err error) {
	if c.state == next {
		return
	}

	change := StateChange{Old: c.state, New: next, Err: err}
	c.state = next

	select {
	case c.states <- change:
	default:
	}
}

// emitUpdateLocked surfaces a pending message transition. Caller holds mu.
func (c *Client) emitUpdateLocked(p *pending) {
	u := Update{MessageID: p.id, Status: p.status, Retries: p.retries, Err: p.lastErr}

	select {
	case c.updates <- u:
	default:
	}
}

// writeFrameLocked marshals and writes one frame. Caller holds mu.
func (c *Client) writeFrameLocked(f outboundFrame) error {
	if c.wire == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(f)
	if err != nil {
		return err
	}

	return c.wire.WriteMessage(data)
}

// Join asks the server to place this connection into a room.
func (c *Client) Join(roomID string) error {
	return c.writeControl(outboundFrame{Type: "join", RoomID: roomID})
}

// Leave removes this connection from its current room. The connection
// stays open.
func (c *Client) Leave() error {
	return c.writeControl(outboundFrame{Type: "leave"})
}

// Typing broadcasts an ephemeral typing indicator to the current room.
func (c *Client) Typing(isTyping bool) error {
	return c.writeControl(outboundFrame{Type: "typing", IsTyping: isTyping})
}

// MarkRead broadcasts an ephemeral read receipt for one message.
func (c *Client) MarkRead(messageID string) error {
	return c.writeControl(outboundFrame{Type: "read_status", MessageID: messageID})
}

func (c *Client) writeControl(f outboundFrame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	return c.writeFrameLocked(f)
}

// Close tears the client down. It never triggers reconnection and no
// events are emitted afterwards.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true

	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	for _, p := range c.pendings {
		p.stopTimers()
	}
	c.setStateLocked(StateClosed, nil)

	w := c.wire
	c.wire = nil
	c.mu.Unlock()

	if w != nil {
		w.Close()
	}

	close(c.events)
	close(c.updates)
	close(c.states)
	return nil
}
