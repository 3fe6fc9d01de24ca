// Package core implements the authoritative game server: a donburi world
// stepped at a fixed tick rate, fed into the state synchronizer and
// broadcast to connected peers.
package core

import (
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/yohamta/donburi"

	"github.com/hollowcrest/orbstorm-mp/netsync"
	"github.com/hollowcrest/orbstorm-mp/shared/netconfig"
	"github.com/hollowcrest/orbstorm-mp/shared/netstate"
	"github.com/hollowcrest/orbstorm-mp/shared/wire"
	"github.com/hollowcrest/orbstorm-mp/transport"
)

const (
	defaultMoveSpeed = 5.0
	xpPickupRadius   = 1.5
	xpPerLevel       = 100
)

type peerState struct {
	entity donburi.Entity
	netID  uint32
	name   string
	ready  bool
}

// Server owns the match state. Everything except PlayerCount runs on the
// game-loop goroutine; transport events are drained once per tick.
type Server struct {
	cfg   netconfig.Config
	world donburi.World
	ts    transport.Server
	sync  *netsync.Synchronizer
	arena *Arena
	waves *WaveDirector

	peers  map[uuid.UUID]*peerState
	byID   map[uint32]donburi.Entity
	nextID uint32

	matchStarted bool
	paused       bool
	startedAt    time.Time
	seed         int64
	rng          *rand.Rand

	mu sync.RWMutex // guards peers for cross-goroutine PlayerCount
}

// NewServer creates a server over an already-constructed transport.
func NewServer(cfg netconfig.Config, ts transport.Server, arenaSize float64) *Server {
	seed := time.Now().UnixNano()
	s := &Server{
		cfg:   cfg,
		world: donburi.NewWorld(),
		ts:    ts,
		sync:  netsync.NewSynchronizer(cfg),
		arena: NewArena(arenaSize, arenaSize),
		peers: make(map[uuid.UUID]*peerState),
		byID:  make(map[uint32]donburi.Entity),
		seed:  seed,
		rng:   rand.New(rand.NewSource(seed)),
	}
	s.waves = NewWaveDirector(cfg, s.rng)
	return s
}

// TickOnce runs one authoritative tick: drain transport, step the
// simulation, feed the synchronizer, broadcast.
func (s *Server) TickOnce() {
	s.drainEvents()

	if !s.matchStarted || s.paused {
		return
	}

	s.sync.Tick()
	s.applyPlayerInputs()
	s.waves.Update(s)
	s.stepSwarm()
	s.collectOrbs()
	s.publishStates()
	s.ackInputs()
	s.broadcast()
}

func (s *Server) drainEvents() {
	for {
		select {
		case ev := <-s.ts.Events():
			switch ev.Kind {
			case transport.EventConnect:
				s.onConnect(ev.Peer)
			case transport.EventData:
				s.onData(ev)
			case transport.EventDisconnect:
				s.onDisconnect(ev.Peer, ev.Err)
			}
		default:
			return
		}
	}
}

func (s *Server) onConnect(peer uuid.UUID) {
	id := s.allocID()

	spawnX := float32(s.rng.Float64() * s.arena.Width * 0.5)
	spawnY := float32(s.rng.Float64() * s.arena.Height * 0.5)

	state := netstate.NewEntityState(id)
	state.X, state.Y = spawnX, spawnY
	state.DiscreteState = netconfig.StateIdle

	entity := s.world.Create(NetState, Player, Body)
	entry := s.world.Entry(entity)
	NetState.Set(entry, &NetStateData{EntityState: state})
	Player.Set(entry, &PlayerData{Peer: peer, MoveSpeed: defaultMoveSpeed})
	Body.Set(entry, &BodyData{Object: s.arena.AddBody(float64(spawnX), float64(spawnY), "player")})

	// Players carry the local-prediction stream, so every tick counts.
	s.sync.RegisterEntity(id, netsync.PriorityCritical)

	s.mu.Lock()
	s.peers[peer] = &peerState{entity: entity, netID: id}
	s.mu.Unlock()
	s.byID[id] = entity

	log.Printf("[server] peer %s connected, entity %d spawned at (%.0f, %.0f)", peer, id, spawnX, spawnY)

	if s.matchStarted {
		// Late joiner: match context plus an immediate full snapshot so it
		// never waits out the snapshot interval on a bare delta stream.
		// Peek, don't create: a unicast snapshot must not clear the dirty
		// flags or baseline the broadcast stream depends on.
		s.sendStartMatch(peer, id)
		snap := s.sync.PeekSnapshot(s.waves.WaveNumber(), s.waves.Orbs())
		if err := s.ts.SendReliable(peer, wire.OpStateSnapshot, wire.EncodeSnapshot(snap)); err != nil {
			log.Printf("[server] late-join snapshot to %s: %v", peer, err)
		}
	}
}

func (s *Server) onDisconnect(peer uuid.UUID, err error) {
	s.mu.Lock()
	ps, ok := s.peers[peer]
	if ok {
		delete(s.peers, peer)
	}
	remaining := len(s.peers)
	s.mu.Unlock()
	if !ok {
		return
	}

	if err != nil {
		log.Printf("[server] peer %s dropped: %v", peer, err)
	} else {
		log.Printf("[server] peer %s left", peer)
	}

	s.despawnEntity(ps.netID)

	if remaining == 0 && s.matchStarted {
		log.Println("[server] all peers gone, resetting match")
		s.resetMatch()
	}
}

func (s *Server) onData(ev transport.Event) {
	s.mu.RLock()
	ps, ok := s.peers[ev.Peer]
	s.mu.RUnlock()
	if !ok {
		return
	}

	switch ev.Opcode {
	case wire.OpPlayerInput:
		in, err := wire.DecodeInput(ev.Payload)
		if err != nil {
			log.Printf("[server] bad input from %s: %v", ev.Peer, err)
			return
		}
		entry := s.world.Entry(ps.entity)
		if !entry.Valid() {
			return
		}
		pd := Player.Get(entry)
		pd.PendingInputs = append(pd.PendingInputs, in)

	case wire.OpPlayerReady:
		var ready netstate.PlayerReadyEvent
		if err := wire.DecodeTagged(ev.Payload, &ready); err != nil {
			log.Printf("[server] bad ready from %s: %v", ev.Peer, err)
			return
		}
		ps.name = ready.PlayerName
		ps.ready = ready.Ready
		if entry := s.world.Entry(ps.entity); entry.Valid() {
			Player.Get(entry).Name = ready.PlayerName
		}
		log.Printf("[server] peer %s (%q) ready=%v", ev.Peer, ready.PlayerName, ready.Ready)
		s.maybeStartMatch()

	case wire.OpUpgradeSelected:
		var up netstate.UpgradeSelectedEvent
		if err := wire.DecodeTagged(ev.Payload, &up); err != nil {
			log.Printf("[server] bad upgrade from %s: %v", ev.Peer, err)
			return
		}
		s.applyUpgrade(ps, up.UpgradeID)

	case wire.OpPauseMatch:
		var pause netstate.PauseMatchEvent
		if err := wire.DecodeTagged(ev.Payload, &pause); err != nil {
			return
		}
		s.paused = pause.Paused
		s.broadcastReliable(wire.OpPauseMatch, pause)
		log.Printf("[server] paused=%v by %s", pause.Paused, ev.Peer)

	default:
		log.Printf("[server] unhandled opcode %s from %s", ev.Opcode, ev.Peer)
	}
}

func (s *Server) maybeStartMatch() {
	if s.matchStarted {
		return
	}
	s.mu.RLock()
	ready := len(s.peers) > 0
	for _, ps := range s.peers {
		if !ps.ready {
			ready = false
			break
		}
	}
	s.mu.RUnlock()
	if !ready {
		return
	}

	s.matchStarted = true
	s.startedAt = time.Now()
	log.Printf("[server] match starting: %d players, seed %d", s.PlayerCount(), s.seed)

	s.mu.RLock()
	for peer, ps := range s.peers {
		s.sendStartMatch(peer, ps.netID)
	}
	s.mu.RUnlock()
}

func (s *Server) sendStartMatch(peer uuid.UUID, localID uint32) {
	payload, err := wire.EncodeTagged(netstate.StartMatchEvent{
		TickRate: s.cfg.TickRate,
		Seed:     s.seed,
		LocalID:  localID,
	})
	if err != nil {
		log.Printf("[server] encode start match: %v", err)
		return
	}
	if err := s.ts.SendReliable(peer, wire.OpStartMatch, payload); err != nil {
		log.Printf("[server] start match to %s: %v", peer, err)
	}
}

func (s *Server) applyUpgrade(ps *peerState, upgradeID uint8) {
	entry := s.world.Entry(ps.entity)
	if !entry.Valid() {
		return
	}
	pd := Player.Get(entry)
	ns := NetState.Get(entry)
	switch upgradeID {
	case 1: // move speed
		pd.MoveSpeed *= 1.1
	case 2: // heal to full
		ns.Health = netstate.DefaultHealth
	}
	log.Printf("[server] %q took upgrade %d", pd.Name, upgradeID)
}

// resetMatch drops all sync, wave and world state from the finished
// match. Still-connected peers keep their entities, revived at full
// health; everything the wave director spawned is despawned and the
// stream starts cold.
func (s *Server) resetMatch() {
	s.matchStarted = false
	s.paused = false

	var leftovers []uint32
	NetState.Each(s.world, func(entry *donburi.Entry) {
		if !entry.HasComponent(Player) {
			leftovers = append(leftovers, NetState.Get(entry).EntityState.EntityID)
		}
	})
	for _, id := range leftovers {
		s.despawnEntity(id)
	}

	s.sync.Reset()
	s.waves.Reset()

	s.mu.RLock()
	for _, ps := range s.peers {
		ps.ready = false
		if entry := s.world.Entry(ps.entity); entry.Valid() {
			ns := NetState.Get(entry)
			ns.Health = netstate.DefaultHealth
			ns.DiscreteState = netconfig.StateIdle
			ns.VelocityX, ns.VelocityY = 0, 0
			pd := Player.Get(entry)
			pd.PendingInputs = pd.PendingInputs[:0]
			pd.LastInputTick = 0
			pd.XP = 0
			pd.Level = 0
		}
		s.sync.RegisterEntity(ps.netID, netsync.PriorityCritical)
	}
	s.mu.RUnlock()
}

func (s *Server) despawnEntity(id uint32) {
	entity, ok := s.byID[id]
	if !ok {
		return
	}
	delete(s.byID, id)
	entry := s.world.Entry(entity)
	if entry.Valid() {
		if entry.HasComponent(Body) {
			s.arena.RemoveBody(Body.Get(entry).Object)
		}
		s.world.Remove(entity)
	}
	s.sync.UnregisterEntity(id)
}

// spawnEntity creates a non-player entity, registered at the given
// priority. Used by the wave director.
func (s *Server) spawnEntity(state netstate.EntityState, p netsync.Priority, extra ...donburi.IComponentType) *donburi.Entry {
	comps := append([]donburi.IComponentType{NetState, Body}, extra...)
	entity := s.world.Create(comps...)
	entry := s.world.Entry(entity)
	NetState.Set(entry, &NetStateData{EntityState: state})
	Body.Set(entry, &BodyData{Object: s.arena.AddBody(float64(state.X), float64(state.Y))})
	s.byID[state.EntityID] = entity
	s.sync.RegisterEntity(state.EntityID, p)
	return entry
}

func (s *Server) allocID() uint32 {
	s.nextID++
	return s.nextID
}

// broadcastReliable fallback-encodes v and sends it to every peer.
func (s *Server) broadcastReliable(op wire.Opcode, v any) {
	payload, err := wire.EncodeTagged(v)
	if err != nil {
		log.Printf("[server] encode %s: %v", op, err)
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for peer := range s.peers {
		if err := s.ts.SendReliable(peer, op, payload); err != nil {
			log.Printf("[server] send %s to %s: %v", op, peer, err)
		}
	}
}

// World exposes the ECS world, mainly for tests.
func (s *Server) World() donburi.World { return s.world }

// Sync exposes the synchronizer for diagnostics.
func (s *Server) Sync() *netsync.Synchronizer { return s.sync }

// PlayerCount is safe to call from other goroutines.
func (s *Server) PlayerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.peers)
}

// MatchStarted reports whether the match loop is live.
func (s *Server) MatchStarted() bool { return s.matchStarted }

func (s *Server) sinceStart() time.Duration { return time.Since(s.startedAt) }
