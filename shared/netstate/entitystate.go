// Package netstate defines the data shapes synchronized between the
// authoritative server and observing clients. It must have zero dependencies
// on any engine or transport so both binaries can share it.
package netstate

// DefaultHealth is the wire default applied when a producer never set a
// health value. It is part of the wire contract, not a tuning knob.
const DefaultHealth = 100

// EntityState is the synchronized view of one entity at one tick.
// Transient: regenerated every tick, never persisted.
type EntityState struct {
	EntityID      uint32
	X, Y          float32
	VelocityX     float32
	VelocityY     float32
	Health        float32 // defaults to DefaultHealth when unknown
	Rotation      float32 // radians, defaults to 0
	DiscreteState uint8
}

// NewEntityState returns a state with the wire defaults applied.
func NewEntityState(id uint32) EntityState {
	return EntityState{
		EntityID: id,
		Health:   DefaultHealth,
	}
}

// XPOrb is a collectible experience orb included in full snapshots.
type XPOrb struct {
	X, Y  float32
	Value uint32
}

// Snapshot is the complete synchronized world at one tick. Immutable once
// built; superseded by the next snapshot.
type Snapshot struct {
	Tick        uint32
	TimestampMs float64
	Entities    []EntityState
	WaveNumber  uint16
	XPOrbs      []XPOrb
}

// InputSample is one network tick worth of local player input. Axis values
// are normalized to [-1, 1].
type InputSample struct {
	Tick       uint32
	MoveX      float32
	MoveY      float32
	AimX       float32
	AimY       float32
	ActionBits uint8
}
