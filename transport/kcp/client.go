package kcp

import (
	"fmt"
	"log"
	"sync"

	kcpgo "github.com/xtaci/kcp-go/v5"

	"github.com/hollowcrest/orbstorm-mp/shared/wire"
	"github.com/hollowcrest/orbstorm-mp/transport"
)

// Conn is a client-side KCP session.
type Conn struct {
	peer   *peer
	events chan transport.Event

	mu     sync.Mutex
	closed bool
}

// Dial opens a KCP session to a server at host:port.
func Dial(addr string) (*Conn, error) {
	session, err := kcpgo.DialWithOptions(addr, nil, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("kcp dial %s: %w", addr, err)
	}

	c := &Conn{
		peer:   &peer{conn: session},
		events: make(chan transport.Event, eventBuffer),
	}
	go c.readLoop()
	return c, nil
}

// Events returns the inbound event channel.
func (c *Conn) Events() <-chan transport.Event { return c.events }

func (c *Conn) readLoop() {
	var readErr error
	for {
		frame, err := readFrame(c.peer.conn)
		if err != nil {
			readErr = err
			break
		}
		op, payload, err := transport.DecodeFrame(frame)
		if err != nil {
			log.Printf("[transport/kcp] bad frame from server: %v", err)
			continue
		}
		select {
		case c.events <- transport.Event{Kind: transport.EventData, Opcode: op, Payload: payload}:
		default:
			log.Printf("[transport/kcp] event queue full, dropping %s", op)
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
	return writeFrame(c.peer, transport.EncodeFrame(op, payload))
}

// SendReliable is identical to Send: KCP already retransmits.
func (c *Conn) SendReliable(op wire.Opcode, payload []byte) error {
	return c.Send(op, payload)
}

// Close tears the session down.
func (c *Conn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return c.peer.conn.Close()
}

var _ transport.Conn = (*Conn)(nil)
