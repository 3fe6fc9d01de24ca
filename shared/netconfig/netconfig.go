// Package netconfig defines the tunables and lightweight enums shared
// between client and server. It must have zero dependencies on any engine
// or transport so both binaries stay headless.
package netconfig

import "time"

// Action bits packed into InputSample.ActionBits.
const (
	ActionFire uint8 = 1 << iota
	ActionDash
	ActionInteract
	ActionUpgrade
)

// Discrete entity states carried in EntityState.DiscreteState. Categorical:
// never interpolated.
const (
	StateIdle uint8 = iota
	StateMoving
	StateDashing
	StateAttacking
	StateStunned
	StateDead
)

// Config holds every recognized network tunable with its effect documented
// in one place. Zero value is not usable; start from Default().
type Config struct {
	// TickRate is the fixed simulation rate in Hz. It derives the step
	// duration used by prediction on both endpoints.
	TickRate int

	// InterpolationDelayMs offsets render time into the past so a
	// bracketing sample pair is almost always available despite jitter.
	InterpolationDelayMs float64

	// MaxReplayWindow bounds how many stored inputs a reconciliation
	// rollback may re-simulate.
	MaxReplayWindow int

	// InputBufferSize bounds how many ticks of input history the
	// predictor retains.
	InputBufferSize int

	// SnapshotInterval is the tick period of unconditional full
	// snapshots, bounding drift from lost delta packets.
	SnapshotInterval uint32

	// PositionThreshold and VelocityThreshold control dirty-marking
	// sensitivity on the authority, in units and units/s.
	PositionThreshold float32
	VelocityThreshold float32

	// ReconcileThreshold is the prediction error (units) below which a
	// server correction is accepted silently with no rollback.
	ReconcileThreshold float32

	// MaxInterpBufferSize bounds per-entity interpolation memory.
	MaxInterpBufferSize int

	// StrictRegistration turns the authority's auto-registration of
	// unknown entity ids into a hard error. Lenient in release builds;
	// the strict form surfaces double-unregister and ordering bugs.
	StrictRegistration bool
}

// Default returns the standard tuning used by both shipped binaries.
func Default() Config {
	return Config{
		TickRate:             20,
		InterpolationDelayMs: 100,
		MaxReplayWindow:      10,
		InputBufferSize:      32,
		SnapshotInterval:     100,
		PositionThreshold:    0.1,
		VelocityThreshold:    0.1,
		ReconcileThreshold:   0.1,
		MaxInterpBufferSize:  30,
	}
}

// TickDuration returns the fixed step duration.
func (c Config) TickDuration() time.Duration {
	return time.Second / time.Duration(c.TickRate)
}

// FixedDt returns the step duration in seconds, for the shared step
// function. Independent of actual frame rate.
func (c Config) FixedDt() float32 {
	return 1 / float32(c.TickRate)
}
