package core

import (
	"log"

	"github.com/solarlune/resolv"
)

const (
	tagSolid  = "solid"
	wallThick = 16.0
	bodySize  = 16.0
)

// Arena holds the collision space for a match: a bounded rectangle walled
// in with solid objects. Entities move through MoveBody so nothing ever
// tunnels out of bounds regardless of speed.
type Arena struct {
	Space  *resolv.Space
	Width  float64
	Height float64
}

// NewArena builds a walled collision space of the given interior size.
func NewArena(width, height float64) *Arena {
	space := resolv.NewSpace(int(width+2*wallThick), int(height+2*wallThick), 16, 16)

	// Top, bottom, left, right.
	walls := []struct{ x, y, w, h float64 }{
		{0, 0, width + 2*wallThick, wallThick},
		{0, height + wallThick, width + 2*wallThick, wallThick},
		{0, wallThick, wallThick, height},
		{width + wallThick, wallThick, wallThick, height},
	}
	for _, w := range walls {
		obj := resolv.NewObject(w.x, w.y, w.w, w.h, tagSolid)
		obj.SetShape(resolv.NewRectangle(0, 0, w.w, w.h))
		space.Add(obj)
	}

	log.Printf("[arena] %vx%v space ready", width, height)

	return &Arena{Space: space, Width: width, Height: height}
}

// AddBody places a square collision body at x, y (body center).
func (a *Arena) AddBody(x, y float64, tags ...string) *resolv.Object {
	obj := resolv.NewObject(x+wallThick-bodySize/2, y+wallThick-bodySize/2, bodySize, bodySize, tags...)
	a.Space.Add(obj)
	return obj
}

// RemoveBody takes a body out of the space.
func (a *Arena) RemoveBody(obj *resolv.Object) {
	if obj != nil {
		a.Space.Remove(obj)
	}
}

// MoveBody moves a body by (dx, dy), stopping each axis at solid contact.
// Returns the body's new center in arena coordinates.
func (a *Arena) MoveBody(obj *resolv.Object, dx, dy float64) (float64, float64) {
	if dx != 0 {
		if check := obj.Check(dx, 0, tagSolid); check != nil {
			if solids := check.ObjectsByTags(tagSolid); len(solids) > 0 {
				dx = check.ContactWithObject(solids[0]).X()
			}
		}
		obj.X += dx
	}
	if dy != 0 {
		if check := obj.Check(0, dy, tagSolid); check != nil {
			if solids := check.ObjectsByTags(tagSolid); len(solids) > 0 {
				dy = check.ContactWithObject(solids[0]).Y()
			}
		}
		obj.Y += dy
	}
	obj.Update()
	return a.BodyCenter(obj)
}

// BodyCenter converts a body's top-left space position back to an arena
// coordinate center.
func (a *Arena) BodyCenter(obj *resolv.Object) (float64, float64) {
	return obj.X - wallThick + bodySize/2, obj.Y - wallThick + bodySize/2
}
