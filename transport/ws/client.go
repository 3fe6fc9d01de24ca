package ws

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/coder/websocket"

	"github.com/hollowcrest/orbstorm-mp/shared/wire"
	"github.com/hollowcrest/orbstorm-mp/transport"
)

// Conn is a client-side WebSocket connection.
type Conn struct {
	conn   *websocket.Conn
	events chan transport.Event

	mu     sync.Mutex
	closed bool
}

// Dial connects to a server at host:port.
func Dial(ctx context.Context, addr string) (*Conn, error) {
	wsConn, _, err := websocket.Dial(ctx, "ws://"+addr, nil)
	if err != nil {
		return nil, fmt.Errorf("ws dial %s: %w", addr, err)
	}
	wsConn.SetReadLimit(transport.MaxFrameSize)

	c := &Conn{
		conn:   wsConn,
		events: make(chan transport.Event, eventBuffer),
	}
	go c.readLoop()
	return c, nil
}

// Events returns the inbound event channel. The consumer must drain it
// from its own tick context.
func (c *Conn) Events() <-chan transport.Event { return c.events }

func (c *Conn) readLoop() {
	var readErr error
	for {
		_, data, err := c.conn.Read(context.Background())
		if err != nil {
			readErr = err
			break
		}
		op, payload, err := transport.DecodeFrame(data)
		if err != nil {
			log.Printf("[transport/ws] bad frame from server: %v", err)
			continue
		}
		select {
		case c.events <- transport.Event{Kind: transport.EventData, Opcode: op, Payload: payload}:
		default:
			log.Printf("[transport/ws] event queue full, dropping %s", op)
		}
	}

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if !closed {
		c.events <- transport.Event{Kind: transport.EventDisconnect, Err: readErr}
	}
}

// Send writes one message to the server.
func (c *Conn) Send(op wire.Opcode, payload []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return c.conn.Write(ctx, websocket.MessageBinary, transport.EncodeFrame(op, payload))
}

// SendReliable is identical to Send on this backend.
func (c *Conn) SendReliable(op wire.Opcode, payload []byte) error {
	return c.Send(op, payload)
}

// Close tears the connection down. No further events are delivered.
func (c *Conn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return c.conn.Close(websocket.StatusNormalClosure, "")
}

var _ transport.Conn = (*Conn)(nil)
