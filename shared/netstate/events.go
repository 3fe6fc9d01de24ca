package netstate

// Event payloads carried over the reliable channel with the versioned
// fallback encoding. These are boundary messages: the sync core never
// inspects them beyond routing by opcode.

// WeaponFireEvent is broadcast when an entity fires.
type WeaponFireEvent struct {
	ShooterID uint32  `json:"shooter"`
	AimX      float32 `json:"aimX"`
	AimY      float32 `json:"aimY"`
	WeaponID  uint8   `json:"weapon"`
}

// DamageDealtEvent is broadcast when an attack connects.
type DamageDealtEvent struct {
	AttackerID uint32  `json:"attacker"`
	TargetID   uint32  `json:"target"`
	Amount     float32 `json:"amount"`
}

// EntityKilledEvent is broadcast when an entity dies.
type EntityKilledEvent struct {
	VictimID uint32 `json:"victim"`
	KillerID uint32 `json:"killer"` // 0 if environmental
}

// XPCollectedEvent is broadcast when a player collects an orb.
type XPCollectedEvent struct {
	PlayerID uint32 `json:"player"`
	Value    uint32 `json:"value"`
}

// WaveStartEvent announces a new wave.
type WaveStartEvent struct {
	WaveNumber uint16 `json:"wave"`
	EnemyCount int    `json:"enemies"`
}

// WaveEndEvent announces a cleared wave.
type WaveEndEvent struct {
	WaveNumber uint16 `json:"wave"`
}

// BossSpawnEvent announces a boss entity entering the arena.
type BossSpawnEvent struct {
	EntityID uint32  `json:"id"`
	X        float32 `json:"x"`
	Y        float32 `json:"y"`
}

// UpgradeSelectedEvent is sent by a client choosing a level-up upgrade.
type UpgradeSelectedEvent struct {
	PlayerID  uint32 `json:"player"`
	UpgradeID uint8  `json:"upgrade"`
}

// LevelUpEvent is broadcast when a player reaches a new level.
type LevelUpEvent struct {
	PlayerID uint32 `json:"player"`
	Level    uint16 `json:"level"`
}

// StartMatchEvent is broadcast when the match begins. Tick zero starts here.
type StartMatchEvent struct {
	TickRate int    `json:"tickRate"`
	Seed     int64  `json:"seed"`
	LocalID  uint32 `json:"localId"` // entity assigned to the receiving client
}

// PauseMatchEvent toggles the paused state.
type PauseMatchEvent struct {
	Paused bool `json:"paused"`
}

// EndMatchEvent is broadcast when the match ends.
type EndMatchEvent struct {
	WinnerID   uint32 `json:"winner"`
	FinalWave  uint16 `json:"finalWave"`
	DurationMs int64  `json:"durationMs"`
}

// PlayerReadyEvent is sent by a client during ready-up.
type PlayerReadyEvent struct {
	PlayerName string `json:"name"`
	Ready      bool   `json:"ready"`
}

// PlayerPositionEvent acknowledges the last input tick the server has
// applied for the receiving client, with the authoritative state after
// that input. Tick is in the client's own input-tick domain, which is what
// prediction reconciliation compares against.
type PlayerPositionEvent struct {
	Tick  uint32      `json:"tick"`
	State EntityState `json:"state"`
}
