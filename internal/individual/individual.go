// Package individual maps simulated actors to stable semantic entities.
package individual

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/banshee-data/semlog/internal/world"
)

// ErrAlreadyAnnotated is returned when an actor already has an entity.
var ErrAlreadyAnnotated = errors.New("actor already annotated")

// Entity is an annotated object instance. Identity is pointer identity;
// ID is the stable numeric id used for pairing and SemID the string id
// written to OWL documents.
type Entity struct {
	ID    uint64
	SemID string
	Class string
	Actor *world.Actor
}

// UniqueID returns the numeric id used for pairing.
func (e *Entity) UniqueID() uint64 { return e.ID }

// ParentActor returns the annotated actor, for diagnostics.
func (e *Entity) ParentActor() *world.Actor { return e.Actor }

// Name returns the actor name, or the semantic id when detached.
func (e *Entity) Name() string {
	if e == nil {
		return "<nil>"
	}
	if e.Actor != nil {
		return e.Actor.Name
	}
	return e.SemID
}

func (e *Entity) String() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s(%d)", e.Name(), e.ID)
}

// Lookup resolves an actor to its entity, or nil when it is not annotated.
type Lookup interface {
	Lookup(a *world.Actor) *Entity
}

// Registry is the in-memory annotation table.
type Registry struct {
	byActor map[*world.Actor]*Entity
	byID    map[uint64]*Entity
	nextID  uint64
}

// NewRegistry returns an empty registry. Generated ids start at 1.
func NewRegistry() *Registry {
	return &Registry{
		byActor: make(map[*world.Actor]*Entity),
		byID:    make(map[uint64]*Entity),
	}
}

// Annotate gives a the next free id.
func (r *Registry) Annotate(a *world.Actor, class string) (*Entity, error) {
	id := r.nextID + 1
	for r.byID[id] != nil {
		id++
	}
	return r.AnnotateWithID(a, id, class)
}

// AnnotateWithID gives a a caller-chosen id. The semantic id is derived
// from a fresh UUID.
func (r *Registry) AnnotateWithID(a *world.Actor, id uint64, class string) (*Entity, error) {
	if a == nil {
		return nil, errors.New("cannot annotate nil actor")
	}
	if _, ok := r.byActor[a]; ok {
		return nil, fmt.Errorf("%s: %w", a.Name, ErrAlreadyAnnotated)
	}
	if id == 0 {
		return nil, errors.New("entity id 0 is reserved")
	}
	if other, ok := r.byID[id]; ok {
		return nil, fmt.Errorf("entity id %d already used by %s", id, other.Name())
	}
	if class == "" {
		class = a.Name
	}
	e := &Entity{ID: id, SemID: NewSemID(), Class: class, Actor: a}
	r.byActor[a] = e
	r.byID[id] = e
	if id > r.nextID {
		r.nextID = id
	}
	return e, nil
}

// Lookup implements Lookup.
func (r *Registry) Lookup(a *world.Actor) *Entity {
	if a == nil {
		return nil
	}
	return r.byActor[a]
}

// ByID returns the entity with the given numeric id, or nil.
func (r *Registry) ByID(id uint64) *Entity { return r.byID[id] }

// Len returns the number of annotated actors.
func (r *Registry) Len() int { return len(r.byActor) }

// NewSemID returns a compact random semantic id.
func NewSemID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:22]
}
