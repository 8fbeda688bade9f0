/*
Package chat contains the real-time broadcast core: live connections, per-room
fan-out, and presence tracking.

This file defines Conn, one live authenticated WebSocket session. It owns the
read and write pumps, the bounded outbound queue, and inbound frame dispatch.
*/
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"parley/internal/app/message"
	"parley/internal/app/user"
	"parley/internal/pkg/errs"
	"parley/internal/pkg/logx"
	"parley/internal/pkg/randx"
)

const (
	// writeWait bounds a single write to the WebSocket connection.
	writeWait = 10 * time.Second

	// pongWait is how long the server waits for a Pong from the client.
	pongWait = 60 * time.Second

	// pingPeriod is the heartbeat interval; must be shorter than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxFrameBytes caps the size of an inbound client frame.
	maxFrameBytes = 16384

	// sendQueueSize bounds the per-connection outbound queue. A member that
	// cannot drain this many events is considered broken and gets evicted so
	// it never stalls delivery to its siblings.
	sendQueueSize = 256

	// createTimeout bounds the persistence call for one inbound message.
	createTimeout = 5 * time.Second
)

// errQueueFull reports an outbound queue that rejected an event.
var errQueueFull = errors.New("connection send queue full")

// errConnClosed reports an enqueue on a connection that is already shut down.
var errConnClosed = errors.New("connection closed")

// Conn represents one live authenticated transport session. It belongs to at
// most one room at a time and is owned exclusively by the Manager.
type Conn struct {
	// id is the opaque connection identifier.
	id string

	// usr is the authenticated owner of this connection.
	usr user.User

	// ws is the underlying WebSocket connection.
	ws *websocket.Conn

	// manager is the connection's single authority for room operations.
	manager *Manager

	// send is the bounded outbound event queue drained by WritePump.
	send chan []byte

	// done is closed exactly once when the connection shuts down. The send
	// channel itself is never closed, so fan-out can race with teardown
	// without panicking.
	done chan struct{}

	// createdAt records when the session was established.
	createdAt time.Time

	// mu guards roomID.
	mu     sync.Mutex
	roomID string

	// closeOnce makes close idempotent.
	closeOnce sync.Once

	logger zerolog.Logger
}

// NewConn constructs a Conn for an authenticated upgrade.
func NewConn(ws *websocket.Conn, usr user.User, manager *Manager) *Conn {
	id := randx.ConnectionID()

	connLogger := logx.Logger().With().
		Str("conn_id", id).
		Str("user_id", usr.ID).
		Logger()

	return &Conn{
		id:        id,
		usr:       usr,
		ws:        ws,
		manager:   manager,
		send:      make(chan []byte, sendQueueSize),
		done:      make(chan struct{}),
		createdAt: time.Now(),
		logger:    connLogger,
	}
}

// ID returns the opaque connection identifier.
func (c *Conn) ID() string {
	return c.id
}

// User returns the connection's authenticated owner.
func (c *Conn) User() user.User {
	return c.usr
}

// Room returns the id of the room this connection is registered to, or "".
func (c *Conn) Room() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomID
}

func (c *Conn) setRoom(roomID string) {
	c.mu.Lock()
	c.roomID = roomID
	c.mu.Unlock()
}

// ReadPump reads frames until the transport closes, then unregisters the
// connection. Runs on the connection's own goroutine.
func (c *Conn) ReadPump() {
	defer c.cleanupOnDisconnect()

	c.ws.SetReadLimit(maxFrameBytes)

	if err := c.ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frameBytes, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Transport closed unexpectedly")
			}
			break
		}

		c.handleFrame(frameBytes)
	}
}

// cleanupOnDisconnect removes the connection from its room and closes the
// transport when ReadPump terminates.
func (c *Conn) cleanupOnDisconnect() {
	c.logger.Info().Msg("Connection cleanup starting")

	c.manager.Unregister(c)
	c.close()
}

// close signals shutdown and closes the underlying transport. Idempotent and
// safe to call from any goroutine.
func (c *Conn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.ws != nil {
			if err := c.ws.Close(); err != nil {
				c.logger.Debug().Err(err).Msg("Transport close error")
			}
		}
	})
}

// inboundFrame is the single shape every client command parses into.
type inboundFrame struct {
	Type            string `json:"type"`
	Content         string `json:"content,omitempty"`
	MessageType     string `json:"message_type,omitempty"`
	ClientMessageID string `json:"client_message_id,omitempty"`
	FileKey         string `json:"file_key,omitempty"`
	RoomID          string `json:"room_id,omitempty"`
	IsTyping        bool   `json:"is_typing,omitempty"`
	MessageID       string `json:"message_id,omitempty"`
}

// handleFrame dispatches one inbound client frame. A malformed or
// unauthorized frame is answered with an error event on this connection only;
// the connection stays open.
func (c *Conn) handleFrame(frameBytes []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(frameBytes, &frame); err != nil {
		c.logger.Warn().Err(err).Msg("Client sent an unparseable frame")
		c.sendError(errs.New(errs.ErrFrameInvalid))
		return
	}

	switch frame.Type {
	case "message":
		c.handleMessage(frame)

	case "join":
		c.handleJoin(frame.RoomID)

	case "leave":
		c.manager.Unregister(c)

	case "typing":
		if roomID := c.Room(); roomID != "" {
			c.manager.HandleTyping(roomID, c.usr, frame.IsTyping)
		} else {
			c.sendError(errs.New(errs.ErrNotJoined))
		}

	case "read_status":
		if roomID := c.Room(); roomID != "" {
			c.manager.HandleReadStatus(roomID, c.usr, frame.MessageID)
		} else {
			c.sendError(errs.New(errs.ErrNotJoined))
		}

	default:
		c.logger.Warn().Str("frame_type", frame.Type).Msg("Client sent an unknown frame type")
		c.sendError(errs.New(errs.ErrFrameTypeUnknown))
	}
}

// handleJoin registers the connection to a room after the membership gate.
func (c *Conn) handleJoin(roomID string) {
	if roomID == "" {
		c.sendError(errs.New(errs.ErrInvalidParams))
		return
	}

	if c.Room() != "" {
		c.sendError(errs.New(errs.ErrAlreadyJoined))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), createTimeout)
	defer cancel()

	if !c.manager.store.IsMember(ctx, roomID, c.usr.ID) {
		c.logger.Warn().Str("room_id", roomID).Msg("Join rejected: not a room member")
		c.sendError(errs.New(errs.ErrNotRoomMember))
		return
	}

	if customErr := c.manager.Register(c, roomID); customErr != nil {
		c.sendError(customErr)
	}
}

// handleMessage persists an inbound message and hands the resulting event to
// the room's broadcast path. The client's message id is echoed untouched.
func (c *Conn) handleMessage(frame inboundFrame) {
	roomID := c.Room()
	if roomID == "" {
		c.sendError(errs.New(errs.ErrNotJoined))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), createTimeout)
	defer cancel()

	msg, err := c.manager.store.Create(ctx, roomID, c.usr, message.Kind(frame.MessageType), frame.Content, frame.FileKey)
	if err != nil {
		var customErr *errs.CustomError
		if !errors.As(err, &customErr) {
			customErr = errs.New(errs.ErrDeliveryFailed)
		}
		c.sendError(customErr)
		return
	}

	payload := MessagePayload{
		ID:              msg.ID,
		ClientMessageID: frame.ClientMessageID,
		Sender:          c.usr,
		Kind:            string(msg.Kind),
		Content:         msg.Content,
		FileKey:         msg.FileKey,
		CreatedAt:       msg.CreatedAt.UnixMilli(),
	}

	evt, evtErr := NewEvent(EventMessage, roomID, payload)
	if evtErr != nil {
		c.logger.Error().Err(evtErr).Msg("Failed to build message event")
		c.sendError(errs.New(errs.ErrDeliveryFailed))
		return
	}

	c.manager.Broadcast(roomID, evt)
}

// enqueue appends a marshaled event to the outbound queue without blocking.
// A full queue means this consumer is broken or too slow to keep.
func (c *Conn) enqueue(evt Event) error {
	raw, err := json.Marshal(evt)
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to marshal event for send")
		return err
	}

	select {
	case <-c.done:
		return errConnClosed
	default:
	}

	select {
	case c.send <- raw:
		return nil
	default:
		c.logger.Warn().Int("queue_len", len(c.send)).Msg("Send queue full, treating connection as dead")
		return errQueueFull
	}
}

// sendError delivers an error event to this connection only.
func (c *Conn) sendError(customErr *errs.CustomError) {
	evt, err := NewEvent(EventError, c.Room(), ErrorPayload{
		Code:    customErr.Code,
		Message: customErr.Message,
	})
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to build error event")
		return
	}

	if err := c.enqueue(evt); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to queue error event")
	}
}

// SendWelcome acknowledges the authenticated handshake.
func (c *Conn) SendWelcome() error {
	evt, err := NewEvent(EventWelcome, "", WelcomePayload{
		ConnectionID: c.id,
		User:         c.usr,
	})
	if err != nil {
		return err
	}
	return c.enqueue(evt)
}

// WritePump drains the outbound queue to the transport and keeps the
// heartbeat alive. Runs on the connection's own goroutine.
func (c *Conn) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		if err := c.ws.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Transport close error in WritePump")
		}
	}()

	for {
		select {
		case <-c.done:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
				c.logger.Debug().Err(err).Msg("Error writing close message")
			}
			return

		case raw := <-c.send:
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error().Err(err).Msg("Failed to set write deadline")
				return
			}

			if err := c.ws.WriteMessage(websocket.TextMessage, raw); err != nil {
				c.logger.Warn().Err(err).Msg("Error writing event")
				return
			}

		case <-ticker.C:
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
				return
			}

			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Warn().Err(err).Msg("Error writing ping")
				return
			}
		}
	}
}
