package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/semlog/internal/individual"
	"github.com/banshee-data/semlog/internal/timeutil"
	"github.com/banshee-data/semlog/internal/world"
)

// Scene is a world driven by a deterministic loop, with its own annotation
// registry.
type Scene struct {
	T     testing.TB
	Loop  *timeutil.Loop
	World *world.World
	Reg   *individual.Registry
}

// NewScene returns an empty scene at time zero.
func NewScene(t testing.TB) *Scene {
	t.Helper()
	loop := timeutil.NewLoop(0)
	return &Scene{T: t, Loop: loop, World: world.New(loop), Reg: individual.NewRegistry()}
}

// Actor adds an actor annotated with id. The class is the actor name.
func (s *Scene) Actor(name string, id uint64, loc r3.Vec, movable bool, bones ...string) *world.Actor {
	s.T.Helper()
	a := world.NewActor(name, loc, movable)
	a.Bones = bones
	require.NoError(s.T, s.World.AddActor(a))
	_, err := s.Reg.AnnotateWithID(a, id, name)
	require.NoError(s.T, err)
	return a
}

// Shape adds a collision shape to owner.
func (s *Scene) Shape(owner *world.Actor, name string, g world.Geometry, bone string) *world.Shape {
	s.T.Helper()
	sh, err := s.World.AddShape(owner, name, g, bone)
	require.NoError(s.T, err)
	return sh
}

// Entity returns the annotation of a.
func (s *Scene) Entity(a *world.Actor) *individual.Entity { return s.Reg.Lookup(a) }

// At advances the loop to t, firing due timers.
func (s *Scene) At(t float64) { s.Loop.AdvanceTo(t) }

// BoneGeometry returns a bone collision capsule of radius r.
func BoneGeometry(r float64) world.Geometry { return world.Geometry{Kind: world.KindBone, Radius: r} }

// Kitchen is a table with a cup on it and a right hand next to them.
//
//	table (id 3)  static, box volume and mesh at the origin
//	cup   (id 2)  movable, box volume and mesh resting at z=10
//	hand  (id 1)  skeletal, thumb_01 and index_01 bones, reach sphere
type Kitchen struct {
	*Scene
	Table, Cup, Hand *world.Actor

	TableBox, TableMesh *world.Shape
	CupBox, CupMesh     *world.Shape
	Thumb, Index, Reach *world.Shape
}

// NewKitchen builds the kitchen scene. No monitors are attached.
func NewKitchen(t testing.TB) *Kitchen {
	t.Helper()
	s := NewScene(t)
	k := &Kitchen{Scene: s}
	k.Hand = s.Actor("hand", 1, r3.Vec{X: 40, Z: 10}, true, "thumb_01", "index_01")
	k.Cup = s.Actor("cup", 2, r3.Vec{Z: 10}, true)
	k.Table = s.Actor("table", 3, r3.Vec{}, false)

	k.TableBox = s.Shape(k.Table, "table.box", world.Box(r3.Vec{X: 50, Y: 50, Z: 5}), "")
	k.TableMesh = s.Shape(k.Table, "table.mesh", world.Mesh(), "")
	k.CupBox = s.Shape(k.Cup, "cup.box", world.Box(r3.Vec{X: 4, Y: 4, Z: 5}), "")
	k.CupMesh = s.Shape(k.Cup, "cup.mesh", world.Mesh(), "")
	k.Thumb = s.Shape(k.Hand, "hand.thumb", BoneGeometry(1), "thumb_01")
	k.Index = s.Shape(k.Hand, "hand.index", BoneGeometry(1), "index_01")
	k.Reach = s.Shape(k.Hand, "hand.reach", world.Sphere(30), "")
	return k
}
