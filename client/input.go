package client

import (
	"math"
	"math/rand"

	"github.com/hollowcrest/orbstorm-mp/shared/gamemath"
	"github.com/hollowcrest/orbstorm-mp/shared/netconfig"
	"github.com/hollowcrest/orbstorm-mp/shared/netstate"
)

// StaticInput replays the same sample every tick. Useful for tests and
// as a stand-in input source before a real one is attached.
type StaticInput struct {
	Sampled netstate.InputSample
}

func (s StaticInput) Sample(tick uint32) netstate.InputSample {
	return s.Sampled
}

// BotInput is a soak-test input source: wander in a heading for a while,
// steer toward the nearest orb when one is known, fire periodically.
// Decisions re-roll on a tick cooldown, the same shape the server's
// enemies use, so traffic looks like a real player session.
type BotInput struct {
	rt  *Runtime
	rng *rand.Rand

	heading       float64
	decisionTimer int
	fireTimer     int
}

// NewBotInput seeds a bot. Pass the match seed for reproducible runs.
func NewBotInput(rt *Runtime, seed int64) *BotInput {
	return &BotInput{
		rt:  rt,
		rng: rand.New(rand.NewSource(seed)),
	}
}

func (b *BotInput) Sample(tick uint32) netstate.InputSample {
	if b.decisionTimer > 0 {
		b.decisionTimer--
	}
	if b.fireTimer > 0 {
		b.fireTimer--
	}

	if b.decisionTimer == 0 {
		b.decisionTimer = 10 + b.rng.Intn(30)
		b.heading = b.rng.Float64() * 2 * math.Pi

		// Prefer orbs over wandering when the field has any.
		if local, ok := b.rt.LocalState(); ok {
			if orb, found := b.rt.NearestOrb(local.X, local.Y); found {
				b.heading = float64(gamemath.AimAngle(orb.X-local.X, orb.Y-local.Y))
			}
		}
	}

	in := netstate.InputSample{
		MoveX: float32(math.Cos(b.heading)),
		MoveY: float32(math.Sin(b.heading)),
		AimX:  float32(math.Cos(b.heading)),
		AimY:  float32(math.Sin(b.heading)),
	}

	if b.fireTimer == 0 {
		b.fireTimer = 20 + b.rng.Intn(20)
		in.ActionBits |= netconfig.ActionFire
	}

	return in
}
