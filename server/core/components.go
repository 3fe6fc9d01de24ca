package core

import (
	"github.com/google/uuid"
	"github.com/solarlune/resolv"
	"github.com/yohamta/donburi"

	"github.com/hollowcrest/orbstorm-mp/shared/netstate"
)

// NetStateData is the replicated portion of an entity. The synchronizer is
// fed from this component every tick; everything else stays server-side.
type NetStateData struct {
	netstate.EntityState
}

var NetState = donburi.NewComponentType[NetStateData]()

// PlayerData ties a connected peer to its entity. PendingInputs is the
// per-tick mailbox: transport goroutines never touch it, the loop appends
// decoded samples while draining events and consumes them in the same tick.
type PlayerData struct {
	Peer          uuid.UUID
	Name          string
	MoveSpeed     float32
	PendingInputs []netstate.InputSample
	LastInputTick uint32
	XP            uint32
	Level         uint16
}

var Player = donburi.NewComponentType[PlayerData]()

// SwarmData drives a wave enemy: drift toward the nearest living player.
type SwarmData struct {
	Speed         float32
	ContactDamage float32
	XPValue       uint32
}

var Swarm = donburi.NewComponentType[SwarmData]()

// BossData marks a boss entity. Bosses sync at critical priority.
type BossData struct {
	Wave uint16
}

var Boss = donburi.NewComponentType[BossData]()

// BodyData is the entity's collision object in the arena space.
type BodyData struct {
	Object *resolv.Object
}

var Body = donburi.NewComponentType[BodyData]()
