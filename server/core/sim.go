package core

import (
	"log"

	"github.com/yohamta/donburi"

	"github.com/hollowcrest/orbstorm-mp/shared/gamemath"
	"github.com/hollowcrest/orbstorm-mp/shared/netconfig"
	"github.com/hollowcrest/orbstorm-mp/shared/netstate"
	"github.com/hollowcrest/orbstorm-mp/shared/wire"
)

// applyPlayerInputs consumes each player's input mailbox in tick order,
// running every sample through the shared step function. The body moves
// through the arena so walls hold even if the raw step would pass them;
// the resolved position is what gets replicated.
func (s *Server) applyPlayerInputs() {
	dt := s.cfg.FixedDt()

	Player.Each(s.world, func(entry *donburi.Entry) {
		pd := Player.Get(entry)
		ns := NetState.Get(entry)
		body := Body.Get(entry)

		if ns.DiscreteState == netconfig.StateDead {
			pd.PendingInputs = pd.PendingInputs[:0]
			return
		}

		for _, in := range pd.PendingInputs {
			if in.Tick < pd.LastInputTick {
				continue // stale duplicate
			}
			pd.LastInputTick = in.Tick

			prevX, prevY := ns.X, ns.Y
			gamemath.Step(&ns.EntityState, in, pd.MoveSpeed, dt)

			nx, ny := s.arena.MoveBody(body.Object, float64(ns.X-prevX), float64(ns.Y-prevY))
			ns.X, ns.Y = float32(nx), float32(ny)

			ns.Rotation = gamemath.AimAngle(in.AimX, in.AimY)
			if in.ActionBits&netconfig.ActionFire != 0 {
				s.fireWeapon(ns.EntityState.EntityID, in)
			}
			if ns.VelocityX != 0 || ns.VelocityY != 0 {
				ns.DiscreteState = netconfig.StateMoving
			} else {
				ns.DiscreteState = netconfig.StateIdle
			}
		}
		pd.PendingInputs = pd.PendingInputs[:0]
	})
}

// fireWeapon resolves an instant-hit attack against the nearest swarm
// entity in range and announces it on the reliable channel.
func (s *Server) fireWeapon(shooterID uint32, in netstate.InputSample) {
	shooterEntry, ok := s.entryByID(shooterID)
	if !ok {
		return
	}
	shooter := NetState.Get(shooterEntry)

	const fireRange = 8.0
	const damage = 25.0

	var best *donburi.Entry
	bestDist := float32(fireRange)
	Swarm.Each(s.world, func(entry *donburi.Entry) {
		ns := NetState.Get(entry)
		if ns.DiscreteState == netconfig.StateDead {
			return
		}
		d := gamemath.Dist(shooter.X, shooter.Y, ns.X, ns.Y)
		if d < bestDist {
			bestDist = d
			best = entry
		}
	})

	s.broadcastReliable(wire.OpWeaponFire, netstate.WeaponFireEvent{
		ShooterID: shooterID,
		AimX:      in.AimX,
		AimY:      in.AimY,
	})

	if best == nil {
		return
	}
	target := NetState.Get(best)
	target.Health -= damage
	s.broadcastReliable(wire.OpDamageDealt, netstate.DamageDealtEvent{
		AttackerID: shooterID,
		TargetID:   target.EntityState.EntityID,
		Amount:     damage,
	})
	if target.Health <= 0 {
		s.killEntity(best, shooterID)
	}
}

// stepSwarm drifts every living swarm entity toward the nearest living
// player and applies contact damage.
func (s *Server) stepSwarm() {
	dt := s.cfg.FixedDt()

	type playerPos struct {
		id   uint32
		x, y float32
	}
	var players []playerPos
	Player.Each(s.world, func(entry *donburi.Entry) {
		ns := NetState.Get(entry)
		if ns.DiscreteState != netconfig.StateDead {
			players = append(players, playerPos{ns.EntityState.EntityID, ns.X, ns.Y})
		}
	})
	if len(players) == 0 {
		return
	}

	Swarm.Each(s.world, func(entry *donburi.Entry) {
		ns := NetState.Get(entry)
		if ns.DiscreteState == netconfig.StateDead {
			return
		}
		sw := Swarm.Get(entry)
		body := Body.Get(entry)

		nearest := players[0]
		nearestDist := gamemath.Dist(ns.X, ns.Y, nearest.x, nearest.y)
		for _, p := range players[1:] {
			if d := gamemath.Dist(ns.X, ns.Y, p.x, p.y); d < nearestDist {
				nearest, nearestDist = p, d
			}
		}

		if nearestDist > 0.01 {
			dirX := (nearest.x - ns.X) / nearestDist
			dirY := (nearest.y - ns.Y) / nearestDist
			ns.VelocityX = dirX * sw.Speed
			ns.VelocityY = dirY * sw.Speed
			nx, ny := s.arena.MoveBody(body.Object, float64(ns.VelocityX*dt), float64(ns.VelocityY*dt))
			ns.X, ns.Y = float32(nx), float32(ny)
			ns.Rotation = gamemath.AimAngle(dirX, dirY)
			ns.DiscreteState = netconfig.StateMoving
		}

		if nearestDist < 1.0 {
			s.damagePlayer(nearest.id, sw.ContactDamage*dt)
		}
	})
}

func (s *Server) damagePlayer(id uint32, amount float32) {
	entry, ok := s.entryByID(id)
	if !ok {
		return
	}
	ns := NetState.Get(entry)
	if ns.DiscreteState == netconfig.StateDead {
		return
	}
	ns.Health -= amount
	if ns.Health <= 0 {
		ns.Health = 0
		ns.DiscreteState = netconfig.StateDead
		ns.VelocityX, ns.VelocityY = 0, 0
		log.Printf("[server] player entity %d died", id)
		s.broadcastReliable(wire.OpEntityKilled, netstate.EntityKilledEvent{VictimID: id})
		s.checkMatchEnd()
	}
}

// killEntity marks a swarm or boss entity dead, drops its orb and
// schedules despawn. The death is announced once; the entity leaves the
// replicated set on the next sync pass.
func (s *Server) killEntity(entry *donburi.Entry, killerID uint32) {
	ns := NetState.Get(entry)
	ns.Health = 0
	ns.DiscreteState = netconfig.StateDead
	ns.VelocityX, ns.VelocityY = 0, 0

	id := ns.EntityState.EntityID
	s.broadcastReliable(wire.OpEntityKilled, netstate.EntityKilledEvent{VictimID: id, KillerID: killerID})

	if entry.HasComponent(Swarm) {
		s.waves.DropOrb(ns.X, ns.Y, Swarm.Get(entry).XPValue)
	}
	if entry.HasComponent(Boss) {
		s.waves.OnBossKilled()
	} else if entry.HasComponent(Swarm) {
		s.waves.OnSwarmKilled()
	}

	s.despawnEntity(id)
}

// collectOrbs awards orbs within pickup range of a living player. Level
// thresholds are flat; each level-up is announced and invites an upgrade.
func (s *Server) collectOrbs() {
	Player.Each(s.world, func(entry *donburi.Entry) {
		ns := NetState.Get(entry)
		if ns.DiscreteState == netconfig.StateDead {
			return
		}
		pd := Player.Get(entry)

		collected := s.waves.CollectOrbsNear(ns.X, ns.Y, xpPickupRadius)
		for _, orb := range collected {
			pd.XP += orb.Value
			s.broadcastReliable(wire.OpXPCollected, netstate.XPCollectedEvent{
				PlayerID: ns.EntityState.EntityID,
				Value:    orb.Value,
			})
		}
		for pd.XP >= uint32(pd.Level+1)*xpPerLevel {
			pd.Level++
			s.broadcastReliable(wire.OpLevelUp, netstate.LevelUpEvent{
				PlayerID: ns.EntityState.EntityID,
				Level:    pd.Level,
			})
		}
	})
}

// checkMatchEnd ends the match when every player is dead.
func (s *Server) checkMatchEnd() {
	anyAlive := false
	Player.Each(s.world, func(entry *donburi.Entry) {
		if NetState.Get(entry).DiscreteState != netconfig.StateDead {
			anyAlive = true
		}
	})
	if anyAlive {
		return
	}

	log.Printf("[server] all players down, match over at wave %d", s.waves.WaveNumber())
	s.broadcastReliable(wire.OpEndMatch, netstate.EndMatchEvent{
		FinalWave:  s.waves.WaveNumber(),
		DurationMs: s.sinceStart().Milliseconds(),
	})
	s.resetMatch()
}

// publishStates pushes every replicated entity into the synchronizer.
func (s *Server) publishStates() {
	NetState.Each(s.world, func(entry *donburi.Entry) {
		ns := NetState.Get(entry)
		if err := s.sync.UpdateEntityState(ns.EntityState.EntityID, ns.EntityState); err != nil {
			log.Printf("[server] update entity %d: %v", ns.EntityState.EntityID, err)
		}
	})
}

func (s *Server) entryByID(id uint32) (*donburi.Entry, bool) {
	entity, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	entry := s.world.Entry(entity)
	if !entry.Valid() {
		return nil, false
	}
	return entry, true
}
