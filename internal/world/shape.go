package world

import (
	"slices"
	"sort"
)

// OverlapFunc receives the other shape of an overlap pair.
type OverlapFunc func(other *Shape)

type overlapBinding struct {
	id    uint64
	begin OverlapFunc
	end   OverlapFunc
}

// Shape is a collision volume owned by an actor. At most one monitor owns a
// shape's callbacks; it is reachable through Component so other monitors can
// recognise a contact shape on the far side of an overlap.
type Shape struct {
	Name     string
	Owner    *Actor
	Geometry Geometry
	Bone     string

	// Component is the monitor attached to this shape, if any.
	Component any

	generateOverlaps bool
	overlaps         map[*Shape]struct{}
	bindings         []overlapBinding
	nextBinding      uint64
}

// SetGenerateOverlapEvents toggles callback delivery. Overlap state is
// tracked regardless so a later snapshot still sees it.
func (s *Shape) SetGenerateOverlapEvents(enabled bool) { s.generateOverlaps = enabled }

// GeneratesOverlapEvents reports whether callbacks are delivered.
func (s *Shape) GeneratesOverlapEvents() bool { return s.generateOverlaps }

// Bind registers begin and end callbacks and returns a function that
// removes them.
func (s *Shape) Bind(begin, end OverlapFunc) (unbind func()) {
	s.nextBinding++
	id := s.nextBinding
	s.bindings = append(s.bindings, overlapBinding{id: id, begin: begin, end: end})
	return func() {
		s.bindings = slices.DeleteFunc(s.bindings, func(b overlapBinding) bool { return b.id == id })
	}
}

// Overlaps returns the shapes currently intersecting s, sorted by name for
// deterministic snapshots.
func (s *Shape) Overlaps() []*Shape {
	out := make([]*Shape, 0, len(s.overlaps))
	for o := range s.overlaps {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// IsOverlapping reports whether s currently intersects other.
func (s *Shape) IsOverlapping(other *Shape) bool {
	_, ok := s.overlaps[other]
	return ok
}

// Siblings returns the other shapes of the same owner.
func (s *Shape) Siblings() []*Shape {
	return slices.DeleteFunc(s.Owner.Shapes(), func(o *Shape) bool { return o == s })
}

func (s *Shape) dispatchBegin(other *Shape) {
	if !s.generateOverlaps {
		return
	}
	for _, b := range slices.Clone(s.bindings) {
		if b.begin != nil {
			b.begin(other)
		}
	}
}

func (s *Shape) dispatchEnd(other *Shape) {
	if !s.generateOverlaps {
		return
	}
	for _, b := range slices.Clone(s.bindings) {
		if b.end != nil {
			b.end(other)
		}
	}
}

func (s *Shape) String() string {
	if s == nil {
		return "<nil>"
	}
	return s.Name
}
