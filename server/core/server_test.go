package core

import (
	"testing"

	"github.com/google/uuid"
	"github.com/yohamta/donburi"

	"github.com/hollowcrest/orbstorm-mp/shared/netconfig"
	"github.com/hollowcrest/orbstorm-mp/shared/netstate"
	"github.com/hollowcrest/orbstorm-mp/shared/wire"
	"github.com/hollowcrest/orbstorm-mp/transport"
)

type sentMsg struct {
	peer    uuid.UUID
	op      wire.Opcode
	payload []byte
}

// fakeTransport records outbound traffic and lets tests inject events.
type fakeTransport struct {
	events   chan transport.Event
	sent     []sentMsg
	reliable []sentMsg
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{events: make(chan transport.Event, 64)}
}

func (f *fakeTransport) Start() error { return nil }

func (f *fakeTransport) Events() <-chan transport.Event { return f.events }

func (f *fakeTransport) Close() error { return nil }

func (f *fakeTransport) Send(peer uuid.UUID, op wire.Opcode, payload []byte) error {
	f.sent = append(f.sent, sentMsg{peer, op, payload})
	return nil
}

func (f *fakeTransport) SendReliable(peer uuid.UUID, op wire.Opcode, payload []byte) error {
	f.reliable = append(f.reliable, sentMsg{peer, op, payload})
	return nil
}

func (f *fakeTransport) connect(peer uuid.UUID) {
	f.events <- transport.Event{Kind: transport.EventConnect, Peer: peer}
}

func (f *fakeTransport) data(t *testing.T, peer uuid.UUID, op wire.Opcode, v any) {
	t.Helper()
	payload, err := wire.EncodeTagged(v)
	if err != nil {
		t.Fatalf("encode %s: %v", op, err)
	}
	f.events <- transport.Event{Kind: transport.EventData, Peer: peer, Opcode: op, Payload: payload}
}

func (f *fakeTransport) reliableOps() []wire.Opcode {
	ops := make([]wire.Opcode, len(f.reliable))
	for i, m := range f.reliable {
		ops[i] = m.op
	}
	return ops
}

func startedServer(t *testing.T, ft *fakeTransport) (*Server, uuid.UUID) {
	t.Helper()
	s := NewServer(netconfig.Default(), ft, 100)
	peer := uuid.New()
	ft.connect(peer)
	ft.data(t, peer, wire.OpPlayerReady, netstate.PlayerReadyEvent{PlayerName: "tester", Ready: true})
	s.TickOnce()
	if !s.MatchStarted() {
		t.Fatal("match did not start after all peers readied")
	}
	return s, peer
}

func TestReadyUpStartsMatch(t *testing.T) {
	ft := newFakeTransport()
	s, peer := startedServer(t, ft)

	found := false
	for _, m := range ft.reliable {
		if m.op != wire.OpStartMatch || m.peer != peer {
			continue
		}
		var start netstate.StartMatchEvent
		if err := wire.DecodeTagged(m.payload, &start); err != nil {
			t.Fatalf("decode start: %v", err)
		}
		if start.TickRate != 20 {
			t.Fatalf("tick rate = %d, want 20", start.TickRate)
		}
		if start.LocalID == 0 {
			t.Fatal("LocalID not assigned")
		}
		found = true
	}
	if !found {
		t.Fatalf("no StartMatch sent to peer, reliable ops: %v", ft.reliableOps())
	}
	if s.PlayerCount() != 1 {
		t.Fatalf("player count = %d, want 1", s.PlayerCount())
	}
}

func TestNotReadyPeerHoldsMatch(t *testing.T) {
	ft := newFakeTransport()
	s := NewServer(netconfig.Default(), ft, 100)

	a, b := uuid.New(), uuid.New()
	ft.connect(a)
	ft.connect(b)
	ft.data(t, a, wire.OpPlayerReady, netstate.PlayerReadyEvent{PlayerName: "a", Ready: true})
	s.TickOnce()

	if s.MatchStarted() {
		t.Fatal("match started with one peer not ready")
	}

	ft.data(t, b, wire.OpPlayerReady, netstate.PlayerReadyEvent{PlayerName: "b", Ready: true})
	s.TickOnce()
	if !s.MatchStarted() {
		t.Fatal("match did not start once both readied")
	}
}

func TestInputMovesPlayer(t *testing.T) {
	ft := newFakeTransport()
	s, peer := startedServer(t, ft)

	entry, ok := s.entryByID(1)
	if !ok {
		t.Fatal("player entity missing")
	}
	before := NetState.Get(entry).EntityState

	in := netstate.InputSample{Tick: 1, MoveX: 1}
	ft.events <- transport.Event{
		Kind: transport.EventData, Peer: peer,
		Opcode: wire.OpPlayerInput, Payload: wire.EncodeInput(in),
	}
	s.TickOnce()

	after := NetState.Get(entry).EntityState
	want := before.X + defaultMoveSpeed*s.cfg.FixedDt()
	if diff := after.X - want; diff > 0.01 || diff < -0.01 {
		t.Fatalf("X = %v after one input tick, want about %v (started at %v)", after.X, want, before.X)
	}
	if after.VelocityX != defaultMoveSpeed {
		t.Fatalf("VelocityX = %v, want %v", after.VelocityX, defaultMoveSpeed)
	}

	// The tick acks the processed input in the client's tick domain, with
	// the post-input authoritative state.
	var ack netstate.PlayerPositionEvent
	found := false
	for _, m := range ft.sent {
		if m.op != wire.OpPlayerPosition || m.peer != peer {
			continue
		}
		if err := wire.DecodeTagged(m.payload, &ack); err != nil {
			t.Fatalf("decode ack: %v", err)
		}
		found = true
	}
	if !found {
		t.Fatal("no input ack sent")
	}
	if ack.Tick != 1 {
		t.Fatalf("acked tick = %d, want 1", ack.Tick)
	}
	if diff := ack.State.X - after.X; diff > 0.001 || diff < -0.001 {
		t.Fatalf("acked X = %v, want %v", ack.State.X, after.X)
	}
}

func TestMatchEndResetsWorld(t *testing.T) {
	ft := newFakeTransport()
	s, _ := startedServer(t, ft)

	// Run up to the first wave so the world holds swarm entities.
	for i := 0; i < 3*s.cfg.TickRate+2; i++ {
		s.TickOnce()
	}
	if s.waves.WaveNumber() == 0 {
		t.Fatal("first wave never started")
	}

	s.damagePlayer(1, 1e6)

	if s.MatchStarted() {
		t.Fatal("match still running after the last player died")
	}
	foundEnd := false
	for _, op := range ft.reliableOps() {
		if op == wire.OpEndMatch {
			foundEnd = true
		}
	}
	if !foundEnd {
		t.Fatal("no EndMatch announced")
	}

	// The finished match leaves no swarm behind, in the world or the sync
	// stream, and the player comes back revived for the next ready-up.
	swarm := 0
	Swarm.Each(s.world, func(entry *donburi.Entry) { swarm++ })
	if swarm != 0 {
		t.Fatalf("%d swarm entities survived the reset", swarm)
	}
	if n := s.sync.EntityCount(); n != 1 {
		t.Fatalf("synchronized entities = %d, want 1 (the player)", n)
	}

	entry, ok := s.entryByID(1)
	if !ok {
		t.Fatal("player entity missing after reset")
	}
	ns := NetState.Get(entry)
	if ns.Health != netstate.DefaultHealth || ns.DiscreteState != netconfig.StateIdle {
		t.Fatalf("player health=%v state=%d after reset, want %v and idle",
			ns.Health, ns.DiscreteState, float32(netstate.DefaultHealth))
	}
	pd := Player.Get(entry)
	if pd.XP != 0 || pd.Level != 0 || pd.LastInputTick != 0 {
		t.Fatalf("player progress survived reset: xp=%d level=%d lastTick=%d", pd.XP, pd.Level, pd.LastInputTick)
	}
}

func TestFirstTickBroadcastsDelta(t *testing.T) {
	ft := newFakeTransport()
	s, _ := startedServer(t, ft)
	s.TickOnce()

	var delta *netstate.Delta
	for _, m := range ft.sent {
		if m.op == wire.OpStateDelta {
			d, err := wire.DecodeDelta(m.payload)
			if err != nil {
				t.Fatalf("decode delta: %v", err)
			}
			delta = d
			break
		}
	}
	if delta == nil {
		t.Fatal("no state delta broadcast after first simulated tick")
	}
	if len(delta.Added) != 1 {
		t.Fatalf("delta added = %d entities, want 1 (the player)", len(delta.Added))
	}
	if delta.Added[0].Health != netstate.DefaultHealth {
		t.Fatalf("player health = %v, want %v", delta.Added[0].Health, netstate.DefaultHealth)
	}
}

func TestWaveSpawnsSwarm(t *testing.T) {
	ft := newFakeTransport()
	s, _ := startedServer(t, ft)

	// First wave is scheduled 3 seconds in.
	for i := 0; i < 3*s.cfg.TickRate+2; i++ {
		s.TickOnce()
	}

	if s.waves.WaveNumber() != 1 {
		t.Fatalf("wave = %d, want 1", s.waves.WaveNumber())
	}
	if s.sync.EntityCount() < 2 {
		t.Fatalf("entity count = %d, want player plus swarm", s.sync.EntityCount())
	}

	found := false
	for _, m := range ft.reliable {
		if m.op == wire.OpWaveStart {
			var ev netstate.WaveStartEvent
			if err := wire.DecodeTagged(m.payload, &ev); err != nil {
				t.Fatalf("decode wave start: %v", err)
			}
			if ev.WaveNumber != 1 || ev.EnemyCount < 1 {
				t.Fatalf("wave start = %+v", ev)
			}
			found = true
			break
		}
	}
	if !found {
		t.Fatal("no WaveStart announced")
	}
}

func TestDisconnectOfLastPeerResetsMatch(t *testing.T) {
	ft := newFakeTransport()
	s, peer := startedServer(t, ft)
	s.TickOnce()

	ft.events <- transport.Event{Kind: transport.EventDisconnect, Peer: peer}
	s.TickOnce()

	if s.MatchStarted() {
		t.Fatal("match still live after last peer left")
	}
	if s.PlayerCount() != 0 {
		t.Fatalf("player count = %d, want 0", s.PlayerCount())
	}
	if s.sync.EntityCount() != 0 {
		t.Fatalf("synchronizer still tracks %d entities after reset", s.sync.EntityCount())
	}
}

func TestOrbPickupAwardsXP(t *testing.T) {
	ft := newFakeTransport()
	s, _ := startedServer(t, ft)

	entry, _ := s.entryByID(1)
	ns := NetState.Get(entry)
	s.waves.DropOrb(ns.X, ns.Y, 120)

	s.TickOnce()

	pd := Player.Get(entry)
	if pd.XP != 120 {
		t.Fatalf("player XP = %d, want 120", pd.XP)
	}
	if pd.Level != 1 {
		t.Fatalf("player level = %d, want 1 after crossing threshold", pd.Level)
	}
	if len(s.waves.Orbs()) != 0 {
		t.Fatalf("orb field still holds %d orbs", len(s.waves.Orbs()))
	}

	ops := ft.reliableOps()
	var sawXP, sawLevel bool
	for _, op := range ops {
		if op == wire.OpXPCollected {
			sawXP = true
		}
		if op == wire.OpLevelUp {
			sawLevel = true
		}
	}
	if !sawXP || !sawLevel {
		t.Fatalf("expected XPCollected and LevelUp events, got %v", ops)
	}
}
