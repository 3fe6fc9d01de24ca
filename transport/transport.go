// Package transport defines the message-passing boundary between the sync
// core and the network: peers exchange (opcode, payload, sender) tuples
// over an implementation-defined channel. Implementations deliver inbound
// traffic on a single event channel so the consumer can drain it once per
// tick inside its own execution context — handlers never run on transport
// goroutines.
package transport

import (
	"errors"

	"github.com/google/uuid"

	"github.com/hollowcrest/orbstorm-mp/shared/wire"
)

// EventKind discriminates inbound events.
type EventKind int

const (
	EventConnect EventKind = iota
	EventData
	EventDisconnect
)

// Event is one inbound occurrence: a peer arriving, a message, or a peer
// leaving. Payload is only set for EventData; Err only for EventDisconnect.
type Event struct {
	Kind    EventKind
	Peer    uuid.UUID
	Opcode  wire.Opcode
	Payload []byte
	Err     error
}

// ErrPeerNotFound is returned when sending to a peer that is gone.
var ErrPeerNotFound = errors.New("transport: peer not found")

// ErrClosed is returned when using a closed transport.
var ErrClosed = errors.New("transport: closed")

// Server accepts peers and exchanges messages with them.
//
// Send is the fast path for per-tick state traffic and may drop under
// pressure; SendReliable is for events that must arrive (match lifecycle,
// kills, upgrades). Backends that are inherently reliable implement both
// the same way — the split is kept at the interface so an unreliable
// datagram backend can slot in without touching callers.
type Server interface {
	// Start runs the accept loop and blocks until Close or failure.
	Start() error
	// Events returns the single inbound channel. Connect, data and
	// disconnect events for all peers arrive here in order per peer.
	Events() <-chan Event
	Send(peer uuid.UUID, op wire.Opcode, payload []byte) error
	SendReliable(peer uuid.UUID, op wire.Opcode, payload []byte) error
	Close() error
}

// Conn is a client's connection to a server.
type Conn interface {
	Events() <-chan Event
	Send(op wire.Opcode, payload []byte) error
	SendReliable(op wire.Opcode, payload []byte) error
	Close() error
}
