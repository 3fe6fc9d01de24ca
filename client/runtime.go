// Package client is the headless client runtime: a fixed-tick loop fed
// from a frame callback, wiring the transport stream into the predictor
// and the interpolator and exposing render-ready states.
package client

import (
	"log"
	"time"

	"github.com/hollowcrest/orbstorm-mp/network"
	"github.com/hollowcrest/orbstorm-mp/shared/gamemath"
	"github.com/hollowcrest/orbstorm-mp/shared/netconfig"
	"github.com/hollowcrest/orbstorm-mp/shared/netstate"
	"github.com/hollowcrest/orbstorm-mp/transport"
)

const localMoveSpeed = 5.0

// InputSource produces one input sample per tick. The runtime fills in
// the tick number.
type InputSource interface {
	Sample(tick uint32) netstate.InputSample
}

// Runtime owns the client-side tick loop. Call Update from the host's
// frame callback with the frame delta; ticks fire on the fixed-step
// accumulator inside. Everything runs on the caller's goroutine.
type Runtime struct {
	cfg    netconfig.Config
	net    *network.Client
	pred   *network.Predictor
	interp *network.Interpolator
	input  InputSource

	carry    time.Duration
	tick     uint32
	inMatch  bool
	paused   bool
	localSet bool

	// known is the client's view of the replicated set: last snapshot
	// merged with deltas since, keyed by entity id. Delta application
	// needs the base state; renderers need the id list.
	known map[uint32]netstate.EntityState

	wave uint16
	orbs []netstate.XPOrb

	now func() time.Time
}

// NewRuntime wires a runtime over a connected client.
func NewRuntime(cfg netconfig.Config, net *network.Client, input InputSource) *Runtime {
	return &Runtime{
		cfg:    cfg,
		net:    net,
		pred:   network.NewPredictor(cfg),
		interp: network.NewInterpolator(cfg),
		input:  input,
		known:  make(map[uint32]netstate.EntityState),
		now:    time.Now,
	}
}

// SetInput swaps the input source. An input source that steers off the
// runtime's own state has to be built after the runtime, so this is the
// usual way to attach one.
func (r *Runtime) SetInput(input InputSource) { r.input = input }

// Connect attaches a transport connection and sends the ready handshake.
func (r *Runtime) Connect(conn transport.Conn, playerName string) error {
	return r.net.Connect(conn, playerName)
}

// Update advances the accumulator by the frame delta and runs however
// many fixed ticks fit. Call once per frame.
func (r *Runtime) Update(dt time.Duration) {
	r.carry += dt
	tickDur := r.cfg.TickDuration()
	for r.carry >= tickDur {
		r.carry -= tickDur
		r.tickOnce()
	}
}

func (r *Runtime) tickOnce() {
	batch, err := r.net.Drain()
	if err != nil {
		// Codec failure poisons the stream; prediction state from the
		// dead connection is worthless.
		r.Reset()
		return
	}
	// Drain decodes StartMatch inline, so the join state is already set
	// even when it arrived in the same batch as the first snapshot.
	if r.net.State() == network.StateJoinedGame && !r.inMatch {
		r.onMatchStart()
	}

	for _, snap := range batch.Snapshots {
		r.applySnapshot(snap)
	}
	for _, d := range batch.Deltas {
		r.applyDelta(d)
	}
	// Input acks are the only reconciliation source for the local entity:
	// their tick is this client's own input tick, which is the domain the
	// predictor's history is keyed by.
	if r.localSet {
		for _, ack := range batch.Acks {
			r.pred.Reconcile(ack.Tick, ack.State)
		}
	}
	if !r.inMatch || r.paused {
		return
	}

	r.tick++
	var in netstate.InputSample
	if r.input != nil {
		in = r.input.Sample(r.tick)
	}
	in.Tick = r.tick

	r.pred.StoreInput(r.tick, in)
	if err := r.net.SendInput(in); err != nil {
		log.Printf("[runtime] send input: %v", err)
	}

	r.interp.ClearOld(r.renderTimeMs() - r.cfg.InterpolationDelayMs)
}

func (r *Runtime) onMatchStart() {
	r.inMatch = true
	r.tick = 0
	if tr := r.net.TickRate(); tr > 0 && tr != r.cfg.TickRate {
		// The server's rate wins; prediction must step at the same dt.
		r.cfg.TickRate = tr
		r.pred = network.NewPredictor(r.cfg)
		r.interp = network.NewInterpolator(r.cfg)
	}
	log.Printf("[runtime] joined match as entity %d at %d Hz", r.net.LocalID(), r.cfg.TickRate)

	initial := netstate.NewEntityState(r.net.LocalID())
	r.pred.SetLocalEntity(r.net.LocalID(), initial, localMoveSpeed)
	r.localSet = true
}

func (r *Runtime) applySnapshot(snap netstate.Snapshot) {
	r.wave = snap.WaveNumber
	r.orbs = snap.XPOrbs

	seen := make(map[uint32]bool, len(snap.Entities))
	for _, e := range snap.Entities {
		seen[e.EntityID] = true
		r.known[e.EntityID] = e
		r.routeState(e, snap.TimestampMs)
	}
	// Entities absent from a full snapshot are gone.
	for id := range r.known {
		if !seen[id] {
			r.dropEntity(id)
		}
	}
}

func (r *Runtime) applyDelta(d *netstate.Delta) {
	for _, e := range d.Added {
		r.known[e.EntityID] = e
		r.routeState(e, d.TimestampMs)
	}
	for _, ed := range d.Updated {
		base, ok := r.known[ed.EntityID]
		if !ok {
			// Update for an entity we never saw; treat it as an add with
			// whatever fields the delta carries.
			base = netstate.NewEntityState(ed.EntityID)
		}
		next := ed.Apply(base)
		r.known[ed.EntityID] = next
		r.routeState(next, d.TimestampMs)
	}
	for _, id := range d.Removed {
		r.dropEntity(id)
	}
}

// routeState feeds an authoritative state into the interpolation buffer.
// The local entity is skipped: snapshots and deltas carry the server's
// global simulation tick, which says nothing about which of this client's
// inputs are reflected in the state — only input acks reconcile the
// predictor.
func (r *Runtime) routeState(state netstate.EntityState, timestampMs float64) {
	if r.localSet && state.EntityID == r.net.LocalID() {
		return
	}
	r.interp.AddSnapshot(state.EntityID, state, timestampMs)
}

func (r *Runtime) dropEntity(id uint32) {
	delete(r.known, id)
	r.interp.RemoveEntity(id)
	r.pred.RemoveEntity(id)
}

func (r *Runtime) renderTimeMs() float64 {
	return float64(r.now().UnixMilli())
}

// RenderStates returns every entity at its display position: the local
// entity predicted at the current tick, remote entities interpolated at
// now minus the interpolation delay.
func (r *Runtime) RenderStates() []netstate.EntityState {
	renderAt := r.renderTimeMs() - r.cfg.InterpolationDelayMs

	out := make([]netstate.EntityState, 0, len(r.known))
	for id := range r.known {
		if r.localSet && id == r.net.LocalID() {
			continue
		}
		if st, ok := r.interp.GetState(id, renderAt); ok {
			out = append(out, st)
		}
	}
	if r.localSet {
		if st, ok := r.pred.GetPredictedState(r.net.LocalID()); ok {
			out = append(out, st)
		}
	}
	return out
}

// LocalState returns the predicted local entity.
func (r *Runtime) LocalState() (netstate.EntityState, bool) {
	if !r.localSet {
		return netstate.EntityState{}, false
	}
	return r.pred.GetPredictedState(r.net.LocalID())
}

// NearestOrb returns the closest orb to (x, y), for bot steering.
func (r *Runtime) NearestOrb(x, y float32) (netstate.XPOrb, bool) {
	var best netstate.XPOrb
	bestDist := float32(0)
	found := false
	for _, orb := range r.orbs {
		d := gamemath.Dist(x, y, orb.X, orb.Y)
		if !found || d < bestDist {
			best, bestDist, found = orb, d, true
		}
	}
	return best, found
}

// Wave returns the wave number from the latest snapshot.
func (r *Runtime) Wave() uint16 { return r.wave }

// Net exposes the underlying client for event draining.
func (r *Runtime) Net() *network.Client { return r.net }

// SetPaused is driven by PauseMatch events from the server.
func (r *Runtime) SetPaused(paused bool) { r.paused = paused }

// Tick returns the client's current predicted tick.
func (r *Runtime) Tick() uint32 { return r.tick }

// Reset drops all session state, back to cold start.
func (r *Runtime) Reset() {
	r.pred.Reset()
	r.interp.Reset()
	r.known = make(map[uint32]netstate.EntityState)
	r.carry = 0
	r.tick = 0
	r.inMatch = false
	r.paused = false
	r.localSet = false
	r.wave = 0
	r.orbs = nil
}
