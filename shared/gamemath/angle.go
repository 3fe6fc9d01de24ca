package gamemath

import (
	"math"

	"github.com/hollowcrest/orbstorm-mp/shared/netstate"
)

// NormalizeAngle wraps an angle into [-π, π].
func NormalizeAngle(a float32) float32 {
	r := math.Mod(float64(a), 2*math.Pi)
	if r > math.Pi {
		r -= 2 * math.Pi
	} else if r < -math.Pi {
		r += 2 * math.Pi
	}
	return float32(r)
}

// Lerp linearly interpolates between a and b by t.
func Lerp(a, b, t float32) float32 {
	return a + (b-a)*t
}

// LerpAngle interpolates between two angles along the shortest angular path.
// Both angles are normalized first so wraparound across ±π blends correctly.
func LerpAngle(a, b, t float32) float32 {
	a = NormalizeAngle(a)
	b = NormalizeAngle(b)
	diff := NormalizeAngle(b - a)
	return NormalizeAngle(a + diff*t)
}

// LerpState blends two entity states for render-time interpolation.
// Position, velocity and health are linear; rotation takes the shortest
// angular path; DiscreteState is categorical and comes from `to` unmodified.
func LerpState(from, to netstate.EntityState, t float32) netstate.EntityState {
	return netstate.EntityState{
		EntityID:      to.EntityID,
		X:             Lerp(from.X, to.X, t),
		Y:             Lerp(from.Y, to.Y, t),
		VelocityX:     Lerp(from.VelocityX, to.VelocityX, t),
		VelocityY:     Lerp(from.VelocityY, to.VelocityY, t),
		Health:        Lerp(from.Health, to.Health, t),
		Rotation:      LerpAngle(from.Rotation, to.Rotation, t),
		DiscreteState: to.DiscreteState,
	}
}
