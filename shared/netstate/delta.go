package netstate

// FieldMask marks which fields of an EntityDelta carry a changed value.
type FieldMask uint8

const (
	FieldPosition FieldMask = 1 << iota
	FieldVelocity
	FieldHealth
	FieldRotation
	FieldDiscrete
)

// Has reports whether the mask includes f.
func (m FieldMask) Has(f FieldMask) bool { return m&f != 0 }

// EntityDelta is a partial EntityState: only fields present in Mask are
// meaningful. Absent fields keep their previous value on the recipient.
type EntityDelta struct {
	EntityID      uint32    `json:"id"`
	Mask          FieldMask `json:"mask"`
	X             float32   `json:"x,omitempty"`
	Y             float32   `json:"y,omitempty"`
	VelocityX     float32   `json:"vx,omitempty"`
	VelocityY     float32   `json:"vy,omitempty"`
	Health        float32   `json:"hp,omitempty"`
	Rotation      float32   `json:"rot,omitempty"`
	DiscreteState uint8     `json:"st,omitempty"`
}

// Apply folds the delta's present fields into base and returns the result.
func (d EntityDelta) Apply(base EntityState) EntityState {
	base.EntityID = d.EntityID
	if d.Mask.Has(FieldPosition) {
		base.X, base.Y = d.X, d.Y
	}
	if d.Mask.Has(FieldVelocity) {
		base.VelocityX, base.VelocityY = d.VelocityX, d.VelocityY
	}
	if d.Mask.Has(FieldHealth) {
		base.Health = d.Health
	}
	if d.Mask.Has(FieldRotation) {
		base.Rotation = d.Rotation
	}
	if d.Mask.Has(FieldDiscrete) {
		base.DiscreteState = d.DiscreteState
	}
	return base
}

// Delta is the minimal change set relative to the previous snapshot the
// recipient is known to hold.
type Delta struct {
	Tick        uint32        `json:"tick"`
	TimestampMs float64       `json:"ts"`
	Added       []EntityState `json:"added,omitempty"`
	Updated     []EntityDelta `json:"updated,omitempty"`
	Removed     []uint32      `json:"removed,omitempty"`
}

// Empty reports whether the delta carries no changes at all.
func (d *Delta) Empty() bool {
	return len(d.Added) == 0 && len(d.Updated) == 0 && len(d.Removed) == 0
}
