package world

import (
	"errors"
	"fmt"
)

// ErrBoneNotFound is returned when a constraint names a bone the skeleton
// does not have.
var ErrBoneNotFound = errors.New("bone not found")

// ConstraintParams configures a linear spring-damper joint.
type ConstraintParams struct {
	Limit           float64
	Stiffness       float64
	Damping         float64
	ContactDistance float64
}

// Constraint is a physics joint between a bone of one actor and another
// actor. It does not take part in Linked; those are static scene links.
type Constraint struct {
	Name   string
	Owner  *Actor
	Bone   string
	Item   *Actor
	Params ConstraintParams
}

// Constrain creates and activates a joint between owner's bone and item.
func (w *World) Constrain(name string, owner *Actor, bone string, item *Actor, p ConstraintParams) (*Constraint, error) {
	if owner == nil || item == nil {
		return nil, errors.New("constraint needs an owner and an item")
	}
	if !owner.HasBone(bone) {
		return nil, fmt.Errorf("constraint %q on %s: %q: %w", name, owner.Name, bone, ErrBoneNotFound)
	}
	c := &Constraint{Name: name, Owner: owner, Bone: bone, Item: item, Params: p}
	w.graspJnts[c] = struct{}{}
	return c, nil
}

// Release deactivates c. Releasing twice is a no-op.
func (w *World) Release(c *Constraint) {
	delete(w.graspJnts, c)
}

// IsActive reports whether c is currently holding its item.
func (w *World) IsActive(c *Constraint) bool {
	_, ok := w.graspJnts[c]
	return ok
}
