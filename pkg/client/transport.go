package client

import (
	"context"

	"github.com/gorilla/websocket"
)

// Wire is a single established connection to the server. Reads and writes
// may run on different goroutines; the client never issues concurrent
// writes.
type Wire interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// Dialer establishes a Wire to the server. The default implementation uses
// gorilla/websocket; tests substitute their own.
type Dialer interface {
	Dial(ctx context.Context, url string) (Wire, error)
}

type websocketDialer struct{}

func (websocketDialer) Dial(ctx context.Context, url string) (Wire, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}

	return &websocketWire{ws: ws}, nil
}

type websocketWire struct {
	ws *websocket.Conn
}

func (w *websocketWire) ReadMessage() ([]byte, error) {
	_, data, err := w.ws.ReadMessage()
	return data, err
}

func (w *websocketWire) WriteMessage(data []byte) error {
	return w.ws.WriteMessage(websocket.TextMessage, data)
}

func (w *websocketWire) Close() error {
	return w.ws.Close()
}
