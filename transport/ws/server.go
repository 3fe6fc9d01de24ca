// Package ws implements the transport over WebSocket: one binary frame
// per message, opcode byte first. WebSocket rides TCP, so Send and
// SendReliable are both ordered and reliable here.
package ws

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/hollowcrest/orbstorm-mp/shared/wire"
	"github.com/hollowcrest/orbstorm-mp/transport"
)

const (
	writeTimeout = 2 * time.Second

	// Per-peer inbound budget: a healthy client sends at most the tick
	// rate plus a few reliable events. Peers exceeding it get messages
	// dropped, not disconnected — bursts after a hiccup are normal.
	inboundPerSec = 120
	inboundBurst  = 60

	eventBuffer = 1024
)

// Server accepts WebSocket peers over HTTP.
type Server struct {
	addr    string
	httpSrv *http.Server
	events  chan transport.Event

	mu     sync.RWMutex
	peers  map[uuid.UUID]*websocket.Conn
	closed bool
}

// NewServer creates a server that will listen on addr.
func NewServer(addr string) *Server {
	s := &Server{
		addr:   addr,
		events: make(chan transport.Event, eventBuffer),
		peers:  make(map[uuid.UUID]*websocket.Conn),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleUpgrade)
	s.httpSrv = &http.Server{Addr: addr, Handler: mux}
	return s
}

// Start blocks serving connections until Close.
func (s *Server) Start() error {
	log.Printf("[transport/ws] listening on %s", s.addr)
	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Events returns the single inbound event channel.
func (s *Server) Events() <-chan transport.Event { return s.events }

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // game clients are not browsers; no origin check
	})
	if err != nil {
		log.Printf("[transport/ws] upgrade failed: %v", err)
		return
	}
	conn.SetReadLimit(transport.MaxFrameSize)

	id := uuid.New()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close(websocket.StatusGoingAway, "server closing")
		return
	}
	s.peers[id] = conn
	s.mu.Unlock()

	s.events <- transport.Event{Kind: transport.EventConnect, Peer: id}
	s.readLoop(id, conn)
}

// readLoop pumps frames from one peer into the shared event channel until
// the connection dies.
func (s *Server) readLoop(id uuid.UUID, conn *websocket.Conn) {
	limiter := rate.NewLimiter(inboundPerSec, inboundBurst)

	var readErr error
	for {
		_, data, err := conn.Read(context.Background())
		if err != nil {
			readErr = err
			break
		}
		if !limiter.Allow() {
			log.Printf("[transport/ws] peer %s over rate limit, dropping %d bytes", id, len(data))
			continue
		}
		op, payload, err := transport.DecodeFrame(data)
		if err != nil {
			log.Printf("[transport/ws] peer %s sent bad frame: %v", id, err)
			continue
		}
		select {
		case s.events <- transport.Event{Kind: transport.EventData, Peer: id, Opcode: op, Payload: payload}:
		default:
			// Consumer is behind; state traffic is superseded next tick.
			log.Printf("[transport/ws] event queue full, dropping %s from %s", op, id)
		}
	}

	s.mu.Lock()
	delete(s.peers, id)
	closed := s.closed
	s.mu.Unlock()
	if !closed {
		s.events <- transport.Event{Kind: transport.EventDisconnect, Peer: id, Err: readErr}
	}
}

// Send writes one message to a peer.
func (s *Server) Send(peer uuid.UUID, op wire.Opcode, payload []byte) error {
	s.mu.RLock()
	conn, ok := s.peers[peer]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", transport.ErrPeerNotFound, peer)
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageBinary, transport.EncodeFrame(op, payload))
}

// SendReliable is identical to Send on this backend: TCP already gives
// ordered reliable delivery.
func (s *Server) SendReliable(peer uuid.UUID, op wire.Opcode, payload []byte) error {
	return s.Send(peer, op, payload)
}

// Close shuts the listener and every peer down.
func (s *Server) Close() error {
	s.mu.Lock()
	s.closed = true
	peers := make([]*websocket.Conn, 0, len(s.peers))
	for _, c := range s.peers {
		peers = append(peers, c)
	}
	s.peers = make(map[uuid.UUID]*websocket.Conn)
	s.mu.Unlock()

	for _, c := range peers {
		c.Close(websocket.StatusGoingAway, "server closing")
	}
	return s.httpSrv.Close()
}
