// Package gamemath holds the deterministic math shared by the authoritative
// server and the client predictor. Client-side prediction is only correct if
// both sides run exactly this code — keep it free of platform-dependent
// behavior.
package gamemath

import (
	"math"

	"github.com/hollowcrest/orbstorm-mp/shared/netstate"
)

// Step advances one entity by one fixed tick using the given input.
// velocity = move axes × moveSpeed; position += velocity × dt.
// dt must be the fixed tick duration (1/tickRate), never the frame delta.
func Step(s *netstate.EntityState, in netstate.InputSample, moveSpeed, dt float32) {
	s.VelocityX = ClampAxis(in.MoveX) * moveSpeed
	s.VelocityY = ClampAxis(in.MoveY) * moveSpeed
	s.X += s.VelocityX * dt
	s.Y += s.VelocityY * dt
}

// ClampAxis clamps a normalized input axis to [-1, 1].
func ClampAxis(v float32) float32 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}

// Clamp01 clamps v to [0, 1].
func Clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Dist returns the Euclidean distance between two points.
func Dist(x1, y1, x2, y2 float32) float32 {
	dx := float64(x2 - x1)
	dy := float64(y2 - y1)
	return float32(math.Sqrt(dx*dx + dy*dy))
}

// AimAngle converts an aim vector to a rotation in radians. A zero vector
// returns 0 so idle entities keep a stable facing.
func AimAngle(aimX, aimY float32) float32 {
	if aimX == 0 && aimY == 0 {
		return 0
	}
	return float32(math.Atan2(float64(aimY), float64(aimX)))
}
