package world

import (
	"slices"

	"gonum.org/v1/gonum/spatial/r3"
)

// TagContainer marks actors that are containers (drawers, lids, doors).
const TagContainer = "Container"

// Actor is a simulated object. Fields set before AddActor describe the
// actor; runtime state is reached through methods.
type Actor struct {
	Name    string
	Tags    []string
	Movable bool     // static mesh actor with movable mobility
	Bones   []string // non-empty for skeletal actors

	MassScale      float64
	GravityEnabled bool

	world    *World
	location r3.Vec
	velocity r3.Vec
	movedAt  float64
	parent   *Actor
	children []*Actor
	shapes   []*Shape
}

// NewActor returns a movable-or-static actor at loc with gravity enabled.
func NewActor(name string, loc r3.Vec, movable bool, tags ...string) *Actor {
	return &Actor{
		Name:           name,
		Tags:           tags,
		Movable:        movable,
		GravityEnabled: true,
		location:       loc,
	}
}

// Location returns the actor's world location.
func (a *Actor) Location() r3.Vec { return a.location }

// Velocity returns the last derived velocity, or zero once it is older than
// the world's velocity hold.
func (a *Actor) Velocity() r3.Vec {
	if a.world != nil && a.world.Now()-a.movedAt > a.world.VelocityHold {
		return r3.Vec{}
	}
	return a.velocity
}

// HasTag reports whether the actor carries tag.
func (a *Actor) HasTag(tag string) bool { return slices.Contains(a.Tags, tag) }

// IsSkeletal reports whether the actor has bones.
func (a *Actor) IsSkeletal() bool { return len(a.Bones) > 0 }

// HasBone reports whether the skeleton contains bone.
func (a *Actor) HasBone(bone string) bool { return slices.Contains(a.Bones, bone) }

// Parent returns the attach parent, or nil.
func (a *Actor) Parent() *Actor { return a.parent }

// Children returns the directly attached actors.
func (a *Actor) Children() []*Actor { return slices.Clone(a.children) }

// Shapes returns the actor's collision shapes.
func (a *Actor) Shapes() []*Shape { return slices.Clone(a.shapes) }

// Root walks the attachment hierarchy to the outermost ancestor.
func (a *Actor) Root() *Actor {
	r := a
	for r.parent != nil {
		r = r.parent
	}
	return r
}

// Descendants returns a and every actor attached below it, depth first.
func (a *Actor) Descendants() []*Actor {
	out := []*Actor{a}
	for _, c := range a.children {
		out = append(out, c.Descendants()...)
	}
	return out
}

func (a *Actor) String() string {
	if a == nil {
		return "<nil>"
	}
	return a.Name
}
