package network

import (
	"log"
	"sort"

	"github.com/hollowcrest/orbstorm-mp/shared/gamemath"
	"github.com/hollowcrest/orbstorm-mp/shared/netconfig"
	"github.com/hollowcrest/orbstorm-mp/shared/netstate"
)

// inputRecord stores an input alongside the predicted state after applying
// it, for server reconciliation.
type inputRecord struct {
	input     netstate.InputSample
	predicted netstate.EntityState
}

// Predictor simulates the local entity ahead of server confirmation so its
// movement feels latency-free, and reconciles against authoritative state
// when it arrives. Remote entity states pass through unpredicted.
//
// Not safe for concurrent use: input storage and reconciliation must both
// run on the tick path.
type Predictor struct {
	cfg netconfig.Config

	localID  uint32
	hasLocal bool

	moveSpeed float32
	current   netstate.EntityState
	history   map[uint32]inputRecord // tick -> record, bounded ring

	lastServerTick  uint32
	lastServerState netstate.EntityState
	seenServer      bool

	// Direct-applied states for entities this client does not control.
	remote map[uint32]netstate.EntityState
}

// NewPredictor creates a predictor with the given tuning.
func NewPredictor(cfg netconfig.Config) *Predictor {
	return &Predictor{
		cfg:     cfg,
		history: make(map[uint32]inputRecord),
		remote:  make(map[uint32]netstate.EntityState),
	}
}

// SetLocalEntity declares which entity this client controls and seeds its
// simulated state. moveSpeed must match the authority's value or every
// prediction will miss.
func (p *Predictor) SetLocalEntity(id uint32, initial netstate.EntityState, moveSpeed float32) {
	p.localID = id
	p.hasLocal = true
	p.moveSpeed = moveSpeed
	initial.EntityID = id
	p.current = initial
	clear(p.history)
	p.seenServer = false
}

// LocalID returns the controlled entity id and whether one is set.
func (p *Predictor) LocalID() (uint32, bool) { return p.localID, p.hasLocal }

// StoreInput applies one tick of input to the simulated state ("predict
// ahead"), records the (input, result) pair for later reconciliation, and
// evicts history older than the input buffer window.
func (p *Predictor) StoreInput(tick uint32, in netstate.InputSample) {
	if !p.hasLocal {
		return
	}
	gamemath.Step(&p.current, in, p.moveSpeed, p.cfg.FixedDt())
	p.history[tick] = inputRecord{input: in, predicted: p.current}

	if tick > uint32(p.cfg.InputBufferSize) {
		p.ClearOldInputs(tick - uint32(p.cfg.InputBufferSize))
	}
}

// GetPredictedState returns the current simulated state for the local
// entity, or the last server state for a remote one.
func (p *Predictor) GetPredictedState(id uint32) (netstate.EntityState, bool) {
	if p.hasLocal && id == p.localID {
		return p.current, true
	}
	s, ok := p.remote[id]
	return s, ok
}

// Reconcile applies authoritative state for one entity. Remote entities
// are overwritten outright. For the local entity, serverTick must be the
// server's acknowledgement of the client's own input tick — the local
// input-tick domain, not the server's global simulation tick. It compares
// the stored prediction at that tick with the server's state: below the
// error threshold the prediction stands and acknowledged inputs are
// discarded; above it the simulation rolls back to the server state and
// replays the still-unacknowledged inputs. Acks repeat while newer inputs
// are in flight, so anything at or below the last handled tick is
// ignored. Returns true when a visible correction was applied.
func (p *Predictor) Reconcile(serverTick uint32, serverState netstate.EntityState) bool {
	if !p.hasLocal || serverState.EntityID != p.localID {
		p.remote[serverState.EntityID] = serverState
		return false
	}
	if p.seenServer && serverTick <= p.lastServerTick {
		return false
	}

	p.lastServerTick = serverTick
	p.lastServerState = serverState
	p.seenServer = true

	rec, ok := p.history[serverTick]
	if !ok {
		// No stored input for that tick: trust the server. Not an error —
		// happens on spawn and after long stalls.
		log.Printf("[predict] no input stored for acked tick %d, accepting server state", serverTick)
		p.current = serverState
		p.ClearOldInputs(serverTick + 1)
		return true
	}

	err := gamemath.Dist(rec.predicted.X, rec.predicted.Y, serverState.X, serverState.Y)
	if err < p.cfg.ReconcileThreshold {
		// Prediction was right; drop everything the server has confirmed.
		// Health, rotation and discrete state are not predicted, so the
		// server's values carry over even without a rollback.
		p.current.Health = serverState.Health
		p.current.DiscreteState = serverState.DiscreteState
		p.ClearOldInputs(serverTick + 1)
		return false
	}

	p.rollbackReplay(serverTick, serverState)
	return true
}

// rollbackReplay resets to the authoritative state and re-simulates the
// pending inputs in tick order. The replay is truncated to the newest
// MaxReplayWindow inputs so a deep buffer cannot make a single correction
// arbitrarily expensive.
func (p *Predictor) rollbackReplay(serverTick uint32, serverState netstate.EntityState) {
	pending := make([]uint32, 0, len(p.history))
	for tick := range p.history {
		if tick > serverTick {
			pending = append(pending, tick)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i] < pending[j] })

	if len(pending) > p.cfg.MaxReplayWindow {
		// Keep the newest window: replay must end at the present.
		dropped := pending[:len(pending)-p.cfg.MaxReplayWindow]
		for _, tick := range dropped {
			delete(p.history, tick)
		}
		pending = pending[len(pending)-p.cfg.MaxReplayWindow:]
	}

	p.current = serverState
	p.current.EntityID = p.localID
	for _, tick := range pending {
		rec := p.history[tick]
		gamemath.Step(&p.current, rec.input, p.moveSpeed, p.cfg.FixedDt())
		rec.predicted = p.current
		p.history[tick] = rec
	}

	p.ClearOldInputs(serverTick + 1)
}

// ClearOldInputs drops stored inputs with tick < beforeTick.
func (p *Predictor) ClearOldInputs(beforeTick uint32) {
	for tick := range p.history {
		if tick < beforeTick {
			delete(p.history, tick)
		}
	}
}

// RemoveEntity forgets a remote entity's state.
func (p *Predictor) RemoveEntity(id uint32) {
	delete(p.remote, id)
}

// PendingInputs returns the number of stored, unacknowledged inputs.
func (p *Predictor) PendingInputs() int { return len(p.history) }

// Reset clears all prediction state. Leaving a match is a cold start.
func (p *Predictor) Reset() {
	p.hasLocal = false
	p.localID = 0
	p.current = netstate.EntityState{}
	clear(p.history)
	clear(p.remote)
	p.lastServerTick = 0
	p.lastServerState = netstate.EntityState{}
	p.seenServer = false
}
