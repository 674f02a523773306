package world

import (
	"errors"
	"fmt"
	"slices"

	"gonum.org/v1/gonum/spatial/r3"
)

// ErrDuplicate is returned when an actor or shape name is already taken.
var ErrDuplicate = errors.New("duplicate name")

// Clock supplies the simulation time used to derive actor velocities.
type Clock interface {
	Now() float64
}

// DefaultVelocityHold is how long a derived velocity stays valid after the
// actor last moved. After that the actor is considered at rest.
const DefaultVelocityHold = 0.1

// World is the in-process stand-in for the physics engine: it holds actors,
// their collision shapes and the current overlap pairs, and dispatches
// overlap callbacks.
type World struct {
	clock        Clock
	VelocityHold float64

	actors    map[string]*Actor
	order     []*Actor
	shapes    map[string]*Shape
	links     []link
	graspJnts map[*Constraint]struct{}
}

type link struct{ a, b *Actor }

// New returns an empty world reading time from clock.
func New(clock Clock) *World {
	return &World{
		clock:        clock,
		VelocityHold: DefaultVelocityHold,
		actors:       make(map[string]*Actor),
		shapes:       make(map[string]*Shape),
		graspJnts:    make(map[*Constraint]struct{}),
	}
}

// Now returns the simulation time.
func (w *World) Now() float64 { return w.clock.Now() }

// AddActor registers a. The actor starts with gravity enabled and a mass
// scale of one unless the caller set them.
func (w *World) AddActor(a *Actor) error {
	if a.Name == "" {
		return errors.New("actor name is empty")
	}
	if _, ok := w.actors[a.Name]; ok {
		return fmt.Errorf("actor %q: %w", a.Name, ErrDuplicate)
	}
	if a.MassScale == 0 {
		a.MassScale = 1
	}
	a.world = w
	a.movedAt = w.Now()
	w.actors[a.Name] = a
	w.order = append(w.order, a)
	return nil
}

// Actor returns the actor named name, or nil.
func (w *World) Actor(name string) *Actor { return w.actors[name] }

// Actors returns every actor in insertion order.
func (w *World) Actors() []*Actor { return slices.Clone(w.order) }

// AddShape attaches a collision shape to owner. Bone shapes must name a bone
// of a skeletal owner.
func (w *World) AddShape(owner *Actor, name string, g Geometry, bone string) (*Shape, error) {
	if owner == nil || owner.world != w {
		return nil, fmt.Errorf("shape %q: owner is not part of this world", name)
	}
	if _, ok := w.shapes[name]; ok {
		return nil, fmt.Errorf("shape %q: %w", name, ErrDuplicate)
	}
	if !g.Valid() {
		return nil, fmt.Errorf("shape %q: invalid %s geometry", name, g.Kind)
	}
	s := &Shape{
		Name:             name,
		Owner:            owner,
		Geometry:         g,
		Bone:             bone,
		generateOverlaps: g.Kind == KindMesh,
		overlaps:         make(map[*Shape]struct{}),
	}
	w.shapes[name] = s
	owner.shapes = append(owner.shapes, s)
	return s, nil
}

// Shape returns the shape named name, or nil.
func (w *World) Shape(name string) *Shape { return w.shapes[name] }

// Attach makes child follow parent in the attachment hierarchy.
func (w *World) Attach(child, parent *Actor) error {
	for p := parent; p != nil; p = p.parent {
		if p == child {
			return fmt.Errorf("attaching %s to %s would create a cycle", child.Name, parent.Name)
		}
	}
	if child.parent != nil {
		child.parent.children = slices.DeleteFunc(child.parent.children, func(c *Actor) bool { return c == child })
	}
	child.parent = parent
	parent.children = append(parent.children, child)
	return nil
}

// Link connects a and b with a physics constraint such as a hinge.
func (w *World) Link(a, b *Actor) {
	w.links = append(w.links, link{a: a, b: b})
}

// Linked returns the actors one constraint hop away from a.
func (w *World) Linked(a *Actor) []*Actor {
	var out []*Actor
	for _, l := range w.links {
		switch a {
		case l.a:
			out = append(out, l.b)
		case l.b:
			out = append(out, l.a)
		}
	}
	return out
}

// Move sets a's location and derives its velocity from the previous sample.
// Attached children are moved by the same offset.
func (w *World) Move(a *Actor, loc r3.Vec) {
	now := w.Now()
	delta := r3.Sub(loc, a.location)
	w.displace(a, delta, now)
}

func (w *World) displace(a *Actor, delta r3.Vec, now float64) {
	if dt := now - a.movedAt; dt > 0 {
		a.velocity = r3.Scale(1/dt, delta)
	}
	a.location = r3.Add(a.location, delta)
	a.movedAt = now
	for _, c := range a.children {
		w.displace(c, delta, now)
	}
}

// SetVelocity overrides a's velocity as of now.
func (w *World) SetVelocity(a *Actor, v r3.Vec) {
	a.velocity = v
	a.movedAt = w.Now()
}

// BeginOverlap records that a and b started intersecting and notifies the
// listeners of each side that generates overlap events.
func (w *World) BeginOverlap(a, b *Shape) {
	if a == b {
		return
	}
	if _, ok := a.overlaps[b]; ok {
		return
	}
	a.overlaps[b] = struct{}{}
	b.overlaps[a] = struct{}{}
	a.dispatchBegin(b)
	b.dispatchBegin(a)
}

// EndOverlap records that a and b stopped intersecting.
func (w *World) EndOverlap(a, b *Shape) {
	if _, ok := a.overlaps[b]; !ok {
		return
	}
	delete(a.overlaps, b)
	delete(b.overlaps, a)
	a.dispatchEnd(b)
	b.dispatchEnd(a)
}
