package core

import (
	"log"

	"github.com/hollowcrest/orbstorm-mp/shared/netstate"
	"github.com/hollowcrest/orbstorm-mp/shared/wire"
)

const statsLogInterval = 600 // ticks, 30s at 20 Hz

// broadcast sends this tick's state traffic: a full snapshot on the
// snapshot interval, otherwise a delta when anything is due. Empty ticks
// send nothing.
func (s *Server) broadcast() {
	if s.PlayerCount() == 0 {
		return
	}

	if s.sync.ShouldSendSnapshot() {
		snap := s.sync.CreateSnapshot(s.waves.WaveNumber(), s.waves.Orbs())
		payload := wire.EncodeSnapshot(snap)
		s.sendToAll(wire.OpStateSnapshot, payload)
		s.sync.RecordPayload(len(payload) * s.PlayerCount())
	} else if delta := s.sync.CreateDelta(); delta != nil {
		payload, err := wire.EncodeDelta(delta)
		if err != nil {
			log.Printf("[server] encode delta: %v", err)
			return
		}
		s.sendToAll(wire.OpStateDelta, payload)
		s.sync.RecordPayload(len(payload) * s.PlayerCount())
	}

	if tick := s.sync.CurrentTick(); tick > 0 && tick%statsLogInterval == 0 {
		stats := s.sync.Stats()
		log.Printf("[server] tick %d: %d entities, %d msgs, %d bytes out",
			tick, s.sync.EntityCount(), stats.MessagesSent, stats.BytesSent)
	}
}

// ackInputs tells every peer which of its input ticks the simulation has
// reached, with the authoritative state after that input. The ack tick is
// in the client's input-tick domain, so prediction reconciles against its
// own history instead of the server's global tick. Sent every tick on the
// fast path; a lost ack is superseded by the next one.
func (s *Server) ackInputs() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for peer, ps := range s.peers {
		entry := s.world.Entry(ps.entity)
		if !entry.Valid() {
			continue
		}
		payload, err := wire.EncodeTagged(netstate.PlayerPositionEvent{
			Tick:  Player.Get(entry).LastInputTick,
			State: NetState.Get(entry).EntityState,
		})
		if err != nil {
			log.Printf("[server] encode input ack: %v", err)
			continue
		}
		if err := s.ts.Send(peer, wire.OpPlayerPosition, payload); err != nil {
			log.Printf("[server] ack to %s: %v", peer, err)
		}
	}
}

// sendToAll uses the fast path: state traffic is superseded next tick, so
// a dropped frame costs nothing.
func (s *Server) sendToAll(op wire.Opcode, payload []byte) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for peer := range s.peers {
		if err := s.ts.Send(peer, op, payload); err != nil {
			log.Printf("[server] send %s to %s: %v", op, peer, err)
		}
	}
}
