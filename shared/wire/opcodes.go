// Package wire implements the binary message codec shared by both
// endpoints. Layouts are little-endian and fixed: any change here breaks
// interoperability with unmodified peers, so field order and byte widths
// are part of the contract.
package wire

// Opcode identifies a message kind on the wire. Values are stable
// constants and must match across endpoints.
type Opcode uint8

const (
	OpPlayerInput    Opcode = 1
	OpPlayerPosition Opcode = 2
	OpPlayerAction   Opcode = 3

	OpWeaponFire   Opcode = 10
	OpDamageDealt  Opcode = 11
	OpEntityKilled Opcode = 12
	OpXPCollected  Opcode = 13

	OpStateSnapshot Opcode = 20
	OpStateDelta    Opcode = 21
	OpWaveStart     Opcode = 22
	OpWaveEnd       Opcode = 23
	OpBossSpawn     Opcode = 24

	OpUpgradeSelected Opcode = 30
	OpLevelUp         Opcode = 31

	OpStartMatch  Opcode = 40
	OpPauseMatch  Opcode = 41
	OpEndMatch    Opcode = 42
	OpPlayerReady Opcode = 43
)

func (o Opcode) String() string {
	switch o {
	case OpPlayerInput:
		return "playerInput"
	case OpPlayerPosition:
		return "playerPosition"
	case OpPlayerAction:
		return "playerAction"
	case OpWeaponFire:
		return "weaponFire"
	case OpDamageDealt:
		return "damageDealt"
	case OpEntityKilled:
		return "entityKilled"
	case OpXPCollected:
		return "xpCollected"
	case OpStateSnapshot:
		return "stateSnapshot"
	case OpStateDelta:
		return "stateDelta"
	case OpWaveStart:
		return "waveStart"
	case OpWaveEnd:
		return "waveEnd"
	case OpBossSpawn:
		return "bossSpawn"
	case OpUpgradeSelected:
		return "upgradeSelected"
	case OpLevelUp:
		return "levelUp"
	case OpStartMatch:
		return "startMatch"
	case OpPauseMatch:
		return "pauseMatch"
	case OpEndMatch:
		return "endMatch"
	case OpPlayerReady:
		return "playerReady"
	}
	return "unknown"
}
