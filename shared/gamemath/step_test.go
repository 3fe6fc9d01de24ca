package gamemath

import (
	"math"
	"testing"

	"github.com/hollowcrest/orbstorm-mp/shared/netstate"
)

func TestStepMovesByVelocityTimesDt(t *testing.T) {
	s := netstate.NewEntityState(1)
	in := netstate.InputSample{MoveX: 1, MoveY: -0.5}

	Step(&s, in, 5.0, 0.05)

	if s.VelocityX != 5.0 || s.VelocityY != -2.5 {
		t.Fatalf("velocity = (%v, %v), want (5, -2.5)", s.VelocityX, s.VelocityY)
	}
	if s.X != 0.25 || s.Y != -0.125 {
		t.Fatalf("position = (%v, %v), want (0.25, -0.125)", s.X, s.Y)
	}
}

func TestStepClampsAxes(t *testing.T) {
	s := netstate.NewEntityState(1)
	Step(&s, netstate.InputSample{MoveX: 3, MoveY: -7}, 10.0, 0.05)

	if s.VelocityX != 10.0 || s.VelocityY != -10.0 {
		t.Fatalf("velocity = (%v, %v), want clamped (10, -10)", s.VelocityX, s.VelocityY)
	}
}

func TestStepZeroInputStops(t *testing.T) {
	s := netstate.NewEntityState(1)
	s.VelocityX, s.VelocityY = 4, 4
	s.X, s.Y = 2, 3

	Step(&s, netstate.InputSample{}, 5.0, 0.05)

	if s.VelocityX != 0 || s.VelocityY != 0 {
		t.Fatalf("velocity = (%v, %v), want zero", s.VelocityX, s.VelocityY)
	}
	if s.X != 2 || s.Y != 3 {
		t.Fatalf("position moved to (%v, %v)", s.X, s.Y)
	}
}

func TestAimAngle(t *testing.T) {
	if got := AimAngle(0, 0); got != 0 {
		t.Fatalf("zero aim vector angle = %v, want 0", got)
	}
	if got := AimAngle(0, 1); math.Abs(float64(got)-math.Pi/2) > 1e-6 {
		t.Fatalf("aim (0,1) angle = %v, want pi/2", got)
	}
	if got := AimAngle(-1, 0); math.Abs(float64(got)-math.Pi) > 1e-6 {
		t.Fatalf("aim (-1,0) angle = %v, want pi", got)
	}
}

func TestDist(t *testing.T) {
	if got := Dist(0, 0, 3, 4); got != 5 {
		t.Fatalf("Dist = %v, want 5", got)
	}
}
