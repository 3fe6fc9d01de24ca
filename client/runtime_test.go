package client

import (
	"math"
	"testing"
	"time"

	"github.com/hollowcrest/orbstorm-mp/network"
	"github.com/hollowcrest/orbstorm-mp/shared/netconfig"
	"github.com/hollowcrest/orbstorm-mp/shared/netstate"
	"github.com/hollowcrest/orbstorm-mp/shared/wire"
	"github.com/hollowcrest/orbstorm-mp/transport"
)

// fakeConn queues inbound events and records what the client sends.
type fakeConn struct {
	events chan transport.Event
	sent   []wire.Opcode
}

func newFakeConn() *fakeConn {
	return &fakeConn{events: make(chan transport.Event, 64)}
}

func (c *fakeConn) Events() <-chan transport.Event { return c.events }

func (c *fakeConn) Close() error { return nil }

func (c *fakeConn) Send(op wire.Opcode, payload []byte) error {
	c.sent = append(c.sent, op)
	return nil
}

func (c *fakeConn) SendReliable(op wire.Opcode, payload []byte) error {
	c.sent = append(c.sent, op)
	return nil
}

func (c *fakeConn) push(t *testing.T, op wire.Opcode, v any) {
	t.Helper()
	payload, err := wire.EncodeTagged(v)
	if err != nil {
		t.Fatalf("encode %s: %v", op, err)
	}
	c.events <- transport.Event{Kind: transport.EventData, Opcode: op, Payload: payload}
}

func (c *fakeConn) pushSnapshot(snap netstate.Snapshot) {
	c.events <- transport.Event{
		Kind:    transport.EventData,
		Opcode:  wire.OpStateSnapshot,
		Payload: wire.EncodeSnapshot(snap),
	}
}

func (c *fakeConn) pushAck(t *testing.T, tick uint32, state netstate.EntityState) {
	t.Helper()
	c.push(t, wire.OpPlayerPosition, netstate.PlayerPositionEvent{Tick: tick, State: state})
}

func joinedRuntime(t *testing.T, conn *fakeConn) *Runtime {
	t.Helper()
	cfg := netconfig.Default()
	rt := NewRuntime(cfg, network.NewClient(), nil)
	rt.SetInput(StaticInput{})
	if err := rt.Connect(conn, "tester"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	conn.push(t, wire.OpStartMatch, netstate.StartMatchEvent{TickRate: 20, Seed: 7, LocalID: 1})
	return rt
}

func TestRuntimeAccumulatorTicks(t *testing.T) {
	conn := newFakeConn()
	rt := joinedRuntime(t, conn)

	// Half a tick: nothing fires.
	rt.Update(25 * time.Millisecond)
	if rt.Tick() != 0 {
		t.Fatalf("tick = %d after half a tick of time", rt.Tick())
	}

	// Carry accumulates across frames: 25+30 = 55ms → one 50ms tick.
	rt.Update(30 * time.Millisecond)
	if rt.Tick() != 1 {
		t.Fatalf("tick = %d, want 1", rt.Tick())
	}

	// A long frame runs multiple ticks.
	rt.Update(100 * time.Millisecond)
	if rt.Tick() != 3 {
		t.Fatalf("tick = %d, want 3 after catching up", rt.Tick())
	}
}

func TestRuntimeSendsInputEachTick(t *testing.T) {
	conn := newFakeConn()
	rt := joinedRuntime(t, conn)

	rt.Update(100 * time.Millisecond) // two ticks

	inputs := 0
	for _, op := range conn.sent {
		if op == wire.OpPlayerInput {
			inputs++
		}
	}
	if inputs != 2 {
		t.Fatalf("sent %d input samples, want 2", inputs)
	}
}

func TestRuntimeRoutesSnapshotStates(t *testing.T) {
	conn := newFakeConn()
	rt := joinedRuntime(t, conn)

	local := netstate.NewEntityState(1)
	local.X = 3
	remote := netstate.NewEntityState(2)
	remote.X = 8

	conn.pushSnapshot(netstate.Snapshot{
		Tick:        1,
		TimestampMs: float64(time.Now().UnixMilli()),
		Entities:    []netstate.EntityState{local, remote},
		WaveNumber:  4,
	})
	// The spawn ack seeds the predictor; the snapshot's copy of the local
	// entity carries the server's tick domain and must not touch it.
	conn.pushAck(t, 0, local)
	rt.Update(50 * time.Millisecond)

	states := rt.RenderStates()
	if len(states) != 2 {
		t.Fatalf("render states = %d entities, want 2", len(states))
	}

	localState, ok := rt.LocalState()
	if !ok {
		t.Fatal("no local state")
	}
	// Tick 1 predicted zero input on top of the acked server state.
	if localState.X != 3 {
		t.Fatalf("local X = %v, want 3 from input ack", localState.X)
	}
	if rt.interp.BufferLen(1) != 0 {
		t.Fatal("local entity leaked into the interpolation buffer")
	}
	if rt.Wave() != 4 {
		t.Fatalf("wave = %d, want 4", rt.Wave())
	}
}

func TestRuntimeAckKeepsCorrectPrediction(t *testing.T) {
	// An ack confirming exactly what the client predicted must discard the
	// acked inputs and leave the predicted position alone, even though the
	// simulation is ticks ahead of the acked state.
	conn := newFakeConn()
	rt := joinedRuntime(t, conn)
	rt.SetInput(StaticInput{Sampled: netstate.InputSample{MoveX: 1}})

	rt.Update(250 * time.Millisecond) // ticks 1-5, X = 1.25 predicted

	acked := netstate.NewEntityState(1)
	acked.X = 0.5 // the client's own tick-2 prediction
	acked.VelocityX = 5
	conn.pushAck(t, 2, acked)
	rt.Update(50 * time.Millisecond) // reconcile, then tick 6

	localState, ok := rt.LocalState()
	if !ok {
		t.Fatal("no local state")
	}
	if math.Abs(float64(localState.X)-1.5) > 1e-4 {
		t.Fatalf("local X = %v, want 1.5 (no snap-back to the acked state)", localState.X)
	}
	// Ticks 1-2 acked, 3-6 still pending.
	if n := rt.pred.PendingInputs(); n != 4 {
		t.Fatalf("pending inputs = %d, want 4", n)
	}
}

func TestRuntimeAppliesDeltaOnBase(t *testing.T) {
	conn := newFakeConn()
	rt := joinedRuntime(t, conn)

	remote := netstate.NewEntityState(2)
	remote.X, remote.Y = 8, 6
	conn.pushSnapshot(netstate.Snapshot{
		Tick:        1,
		TimestampMs: 1000,
		Entities:    []netstate.EntityState{remote},
	})
	rt.Update(50 * time.Millisecond)

	d := &netstate.Delta{
		Tick:        2,
		TimestampMs: 1050,
		Updated: []netstate.EntityDelta{{
			EntityID: 2,
			Mask:     netstate.FieldPosition,
			X:        9, Y: 6,
		}},
	}
	payload, err := wire.EncodeDelta(d)
	if err != nil {
		t.Fatalf("encode delta: %v", err)
	}
	conn.events <- transport.Event{Kind: transport.EventData, Opcode: wire.OpStateDelta, Payload: payload}
	rt.Update(50 * time.Millisecond)

	// The merged view keeps unlisted fields from the snapshot base.
	st, ok := rt.known[2]
	if !ok {
		t.Fatal("entity 2 missing from known set")
	}
	if st.X != 9 || st.Y != 6 {
		t.Fatalf("merged position = (%v, %v), want (9, 6)", st.X, st.Y)
	}
	if st.Health != netstate.DefaultHealth {
		t.Fatalf("merged health = %v, want untouched default", st.Health)
	}
}

func TestRuntimeRemovesDroppedEntities(t *testing.T) {
	conn := newFakeConn()
	rt := joinedRuntime(t, conn)

	remote := netstate.NewEntityState(2)
	conn.pushSnapshot(netstate.Snapshot{
		Tick: 1, TimestampMs: 1000,
		Entities: []netstate.EntityState{remote},
	})
	rt.Update(50 * time.Millisecond)

	d := &netstate.Delta{Tick: 2, TimestampMs: 1050, Removed: []uint32{2}}
	payload, err := wire.EncodeDelta(d)
	if err != nil {
		t.Fatalf("encode delta: %v", err)
	}
	conn.events <- transport.Event{Kind: transport.EventData, Opcode: wire.OpStateDelta, Payload: payload}
	rt.Update(50 * time.Millisecond)

	if _, ok := rt.known[2]; ok {
		t.Fatal("entity 2 still known after removal")
	}
	if rt.interp.BufferLen(2) != 0 {
		t.Fatal("interpolation buffer survived removal")
	}
}

func TestRuntimeResetColdStart(t *testing.T) {
	conn := newFakeConn()
	rt := joinedRuntime(t, conn)

	remote := netstate.NewEntityState(2)
	conn.pushSnapshot(netstate.Snapshot{
		Tick: 1, TimestampMs: 1000,
		Entities: []netstate.EntityState{remote},
	})
	rt.Update(100 * time.Millisecond)

	rt.Reset()

	if rt.Tick() != 0 {
		t.Fatalf("tick = %d after reset", rt.Tick())
	}
	if len(rt.known) != 0 {
		t.Fatalf("known set has %d entities after reset", len(rt.known))
	}
	if len(rt.RenderStates()) != 0 {
		t.Fatal("render states survived reset")
	}
}
