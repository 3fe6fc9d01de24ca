package core

import (
	"log"
	"math"
	"math/rand"

	"github.com/hollowcrest/orbstorm-mp/netsync"
	"github.com/hollowcrest/orbstorm-mp/shared/gamemath"
	"github.com/hollowcrest/orbstorm-mp/shared/netconfig"
	"github.com/hollowcrest/orbstorm-mp/shared/netstate"
	"github.com/hollowcrest/orbstorm-mp/shared/wire"
)

const (
	bossWaveInterval = 5
	maxOrbs          = 256
)

// WaveDirector schedules enemy waves and owns the orb field. It runs
// entirely inside the server tick; the rng is the match rng so wave
// composition follows the match seed.
type WaveDirector struct {
	cfg netconfig.Config
	rng *rand.Rand

	waveNumber   uint16
	aliveSwarm   int
	bossAlive    bool
	nextWaveTick uint32
	orbs         []netstate.XPOrb
}

func NewWaveDirector(cfg netconfig.Config, rng *rand.Rand) *WaveDirector {
	return &WaveDirector{cfg: cfg, rng: rng}
}

// Update advances the wave schedule by one tick.
func (w *WaveDirector) Update(s *Server) {
	tick := s.sync.CurrentTick()

	if w.waveNumber == 0 {
		// First wave starts a few seconds in so clients settle.
		if w.nextWaveTick == 0 {
			w.nextWaveTick = tick + 3*uint32(w.cfg.TickRate)
		}
		if tick >= w.nextWaveTick {
			w.startWave(s)
		}
		return
	}

	if w.aliveSwarm == 0 && !w.bossAlive {
		if w.nextWaveTick == 0 {
			// Breather between waves.
			w.nextWaveTick = tick + 5*uint32(w.cfg.TickRate)
			s.broadcastReliable(wire.OpWaveEnd, netstate.WaveEndEvent{WaveNumber: w.waveNumber})
			log.Printf("[waves] wave %d cleared", w.waveNumber)
		} else if tick >= w.nextWaveTick {
			w.startWave(s)
		}
	}
}

func (w *WaveDirector) startWave(s *Server) {
	w.waveNumber++
	w.nextWaveTick = 0

	count := 4 + int(w.waveNumber)*2
	speed := float32(1.5) + float32(w.waveNumber)*0.1
	for i := 0; i < count; i++ {
		w.spawnSwarm(s, speed)
	}
	w.aliveSwarm = count

	s.broadcastReliable(wire.OpWaveStart, netstate.WaveStartEvent{
		WaveNumber: w.waveNumber,
		EnemyCount: count,
	})
	log.Printf("[waves] wave %d: %d enemies", w.waveNumber, count)

	if w.waveNumber%bossWaveInterval == 0 {
		w.spawnBoss(s)
	}
}

// spawnSwarm places one enemy on the arena edge. Swarm entities are low
// priority: there are many of them and interpolation hides the coarser
// delta cadence.
func (w *WaveDirector) spawnSwarm(s *Server, speed float32) {
	x, y := w.edgePoint(s)
	state := netstate.NewEntityState(s.allocID())
	state.X, state.Y = x, y
	state.Health = 50
	state.DiscreteState = netconfig.StateMoving
	state.Rotation = gamemath.AimAngle(-x, -y)

	entry := s.spawnEntity(state, netsync.PriorityLow, Swarm)
	Swarm.Get(entry).Speed = speed
	Swarm.Get(entry).ContactDamage = 10
	Swarm.Get(entry).XPValue = 5 + uint32(w.waveNumber)
}

func (w *WaveDirector) spawnBoss(s *Server) {
	x, y := w.edgePoint(s)
	state := netstate.NewEntityState(s.allocID())
	state.X, state.Y = x, y
	state.Health = 500 + float32(w.waveNumber)*50
	state.DiscreteState = netconfig.StateMoving

	entry := s.spawnEntity(state, netsync.PriorityCritical, Swarm, Boss)
	Swarm.Get(entry).Speed = 1.0
	Swarm.Get(entry).ContactDamage = 30
	Swarm.Get(entry).XPValue = 50
	Boss.Get(entry).Wave = w.waveNumber
	w.bossAlive = true

	s.broadcastReliable(wire.OpBossSpawn, netstate.BossSpawnEvent{
		EntityID: state.EntityID,
		X:        x,
		Y:        y,
	})
	log.Printf("[waves] boss %d spawned for wave %d", state.EntityID, w.waveNumber)
}

// edgePoint picks a uniformly random point on the arena boundary.
func (w *WaveDirector) edgePoint(s *Server) (float32, float32) {
	angle := w.rng.Float64() * 2 * math.Pi
	cx, cy := s.arena.Width/2, s.arena.Height/2
	x := cx + math.Cos(angle)*cx*0.95
	y := cy + math.Sin(angle)*cy*0.95
	return float32(x), float32(y)
}

// DropOrb adds an orb to the field, evicting the oldest when full.
func (w *WaveDirector) DropOrb(x, y float32, value uint32) {
	if len(w.orbs) >= maxOrbs {
		w.orbs = w.orbs[1:]
	}
	w.orbs = append(w.orbs, netstate.XPOrb{X: x, Y: y, Value: value})
}

// CollectOrbsNear removes and returns all orbs within radius of (x, y).
func (w *WaveDirector) CollectOrbsNear(x, y, radius float32) []netstate.XPOrb {
	var collected []netstate.XPOrb
	kept := w.orbs[:0]
	for _, orb := range w.orbs {
		if gamemath.Dist(x, y, orb.X, orb.Y) <= radius {
			collected = append(collected, orb)
		} else {
			kept = append(kept, orb)
		}
	}
	w.orbs = kept
	return collected
}

func (w *WaveDirector) OnSwarmKilled() {
	if w.aliveSwarm > 0 {
		w.aliveSwarm--
	}
}

func (w *WaveDirector) OnBossKilled() {
	w.bossAlive = false
}

func (w *WaveDirector) WaveNumber() uint16 { return w.waveNumber }

// Orbs returns the live orb field for snapshot assembly.
func (w *WaveDirector) Orbs() []netstate.XPOrb { return w.orbs }

// Reset returns the director to its pre-match state.
func (w *WaveDirector) Reset() {
	w.waveNumber = 0
	w.aliveSwarm = 0
	w.bossAlive = false
	w.nextWaveTick = 0
	w.orbs = nil
}
