// Package kcp implements the transport over kcp-go: a low-latency ARQ
// protocol on UDP. Messages are length-prefixed on the session stream
// (u32 big-endian, then opcode byte, then payload) so no stream mode is
// needed. KCP retransmits lost segments itself, so Send and SendReliable
// share one path.
package kcp

import (
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	kcpgo "github.com/xtaci/kcp-go/v5"
	"golang.org/x/time/rate"

	"github.com/hollowcrest/orbstorm-mp/shared/wire"
	"github.com/hollowcrest/orbstorm-mp/transport"
)

const (
	writeTimeout = 2 * time.Second

	inboundPerSec = 120
	inboundBurst  = 60

	eventBuffer = 1024
)

type peer struct {
	conn    net.Conn
	writeMu sync.Mutex
}

// Server accepts KCP sessions.
type Server struct {
	addr     string
	listener *kcpgo.Listener
	events   chan transport.Event

	mu     sync.RWMutex
	peers  map[uuid.UUID]*peer
	closed bool
}

// NewServer creates a server that will listen on the given UDP addr.
func NewServer(addr string) *Server {
	return &Server{
		addr:   addr,
		events: make(chan transport.Event, eventBuffer),
		peers:  make(map[uuid.UUID]*peer),
	}
}

// Start blocks accepting sessions until Close.
func (s *Server) Start() error {
	listener, err := kcpgo.ListenWithOptions(s.addr, nil, 0, 0)
	if err != nil {
		return fmt.Errorf("kcp listen %s: %w", s.addr, err)
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return listener.Close()
	}
	s.listener = listener
	s.mu.Unlock()

	log.Printf("[transport/kcp] listening on %s", s.addr)
	for {
		session, err := listener.AcceptKCP()
		if err != nil {
			s.mu.RLock()
			closed := s.closed
			s.mu.RUnlock()
			if closed {
				return nil
			}
			return fmt.Errorf("kcp accept: %w", err)
		}
		go s.handleSession(session)
	}
}

// Events returns the single inbound event channel.
func (s *Server) Events() <-chan transport.Event { return s.events }

func (s *Server) handleSession(conn net.Conn) {
	id := uuid.New()
	p := &peer{conn: conn}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.peers[id] = p
	s.mu.Unlock()

	s.events <- transport.Event{Kind: transport.EventConnect, Peer: id}

	limiter := rate.NewLimiter(inboundPerSec, inboundBurst)
	var readErr error
	for {
		frame, err := readFrame(conn)
		if err != nil {
			readErr = err
			break
		}
		if !limiter.Allow() {
			log.Printf("[transport/kcp] peer %s over rate limit, dropping %d bytes", id, len(frame))
			continue
		}
		op, payload, err := transport.DecodeFrame(frame)
		if err != nil {
			log.Printf("[transport/kcp] peer %s sent bad frame: %v", id, err)
			continue
		}
		select {
		case s.events <- transport.Event{Kind: transport.EventData, Peer: id, Opcode: op, Payload: payload}:
		default:
			log.Printf("[transport/kcp] event queue full, dropping %s from %s", op, id)
		}
	}

	conn.Close()
	s.mu.Lock()
	delete(s.peers, id)
	closed := s.closed
	s.mu.Unlock()
	if !closed {
		s.events <- transport.Event{Kind: transport.EventDisconnect, Peer: id, Err: readErr}
	}
}

// Send writes one message to a peer.
func (s *Server) Send(peerID uuid.UUID, op wire.Opcode, payload []byte) error {
	s.mu.RLock()
	p, ok := s.peers[peerID]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", transport.ErrPeerNotFound, peerID)
	}
	return writeFrame(p, transport.EncodeFrame(op, payload))
}

// SendReliable is identical to Send: KCP already retransmits.
func (s *Server) SendReliable(peerID uuid.UUID, op wire.Opcode, payload []byte) error {
	return s.Send(peerID, op, payload)
}

// Close shuts the listener and every session down.
func (s *Server) Close() error {
	s.mu.Lock()
	s.closed = true
	listener := s.listener
	peers := make([]*peer, 0, len(s.peers))
	for _, p := range s.peers {
		peers = append(peers, p)
	}
	s.peers = make(map[uuid.UUID]*peer)
	s.mu.Unlock()

	for _, p := range peers {
		p.conn.Close()
	}
	if listener != nil {
		return listener.Close()
	}
	return nil
}

// readFrame reads one length-prefixed frame off a session stream.
func readFrame(conn net.Conn) ([]byte, error) {
	var length uint32
	if err := binary.Read(conn, binary.BigEndian, &length); err != nil {
		return nil, err
	}
	if length == 0 || length > transport.MaxFrameSize {
		return nil, fmt.Errorf("transport: bad frame length %d", length)
	}
	frame := make([]byte, length)
	if _, err := io.ReadFull(conn, frame); err != nil {
		return nil, err
	}
	return frame, nil
}

// writeFrame writes one length-prefixed frame. The per-peer mutex keeps
// concurrent sends from interleaving prefix and body.
func writeFrame(p *peer, frame []byte) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := binary.Write(p.conn, binary.BigEndian, uint32(len(frame))); err != nil {
		return err
	}
	_, err := p.conn.Write(frame)
	return err
}
