package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

type fixedClock struct{ now float64 }

func (c *fixedClock) Now() float64 { return c.now }

func newTestWorld(t *testing.T) (*World, *fixedClock) {
	t.Helper()
	clock := &fixedClock{}
	return New(clock), clock
}

func TestWorld_AddActorRejectsDuplicates(t *testing.T) {
	w, _ := newTestWorld(t)
	require.NoError(t, w.AddActor(NewActor("cup", r3.Vec{}, true)))
	err := w.AddActor(NewActor("cup", r3.Vec{}, true))
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.Len(t, w.Actors(), 1)
}

func TestWorld_OverlapDispatch(t *testing.T) {
	w, _ := newTestWorld(t)
	cup := NewActor("cup", r3.Vec{}, true)
	table := NewActor("table", r3.Vec{}, false)
	require.NoError(t, w.AddActor(cup))
	require.NoError(t, w.AddActor(table))

	cupBox, err := w.AddShape(cup, "cup.box", Box(r3.Vec{X: 1, Y: 1, Z: 1}), "")
	require.NoError(t, err)
	tableMesh, err := w.AddShape(table, "table.mesh", Mesh(), "")
	require.NoError(t, err)

	var began, ended []string
	unbind := cupBox.Bind(
		func(o *Shape) { began = append(began, o.Name) },
		func(o *Shape) { ended = append(ended, o.Name) },
	)

	// Callbacks are muted until the volume generates overlap events.
	w.BeginOverlap(cupBox, tableMesh)
	assert.Empty(t, began)
	assert.True(t, cupBox.IsOverlapping(tableMesh))
	assert.Equal(t, []*Shape{tableMesh}, cupBox.Overlaps())

	w.EndOverlap(cupBox, tableMesh)
	cupBox.SetGenerateOverlapEvents(true)
	w.BeginOverlap(cupBox, tableMesh)
	w.BeginOverlap(cupBox, tableMesh) // already overlapping
	w.EndOverlap(cupBox, tableMesh)
	assert.Equal(t, []string{"table.mesh"}, began)
	assert.Equal(t, []string{"table.mesh"}, ended)

	unbind()
	w.BeginOverlap(cupBox, tableMesh)
	assert.Len(t, began, 1)
}

func TestWorld_MoveDerivesVelocityAndCarriesChildren(t *testing.T) {
	w, clock := newTestWorld(t)
	drawer := NewActor("drawer", r3.Vec{Z: 10}, true)
	handle := NewActor("handle", r3.Vec{X: 1, Z: 10}, true)
	require.NoError(t, w.AddActor(drawer))
	require.NoError(t, w.AddActor(handle))
	require.NoError(t, w.Attach(handle, drawer))

	clock.now = 0.5
	w.Move(drawer, r3.Vec{X: 5, Z: 10})

	assert.Equal(t, r3.Vec{X: 6, Z: 10}, handle.Location())
	assert.InDelta(t, 10.0, drawer.Velocity().X, 1e-9)

	clock.now = 0.5 + DefaultVelocityHold + 0.01
	assert.Equal(t, r3.Vec{}, drawer.Velocity())
}

func TestWorld_AttachRejectsCycles(t *testing.T) {
	w, _ := newTestWorld(t)
	a := NewActor("a", r3.Vec{}, true)
	b := NewActor("b", r3.Vec{}, true)
	require.NoError(t, w.AddActor(a))
	require.NoError(t, w.AddActor(b))
	require.NoError(t, w.Attach(b, a))

	assert.Error(t, w.Attach(a, b))
	assert.Same(t, a, b.Root())
	assert.Equal(t, []*Actor{a, b}, a.Descendants())
}

func TestWorld_LinkedAndConstraints(t *testing.T) {
	w, _ := newTestWorld(t)
	box := NewActor("box", r3.Vec{}, false, TagContainer)
	lid := NewActor("lid", r3.Vec{}, true)
	hand := &Actor{Name: "hand", Bones: []string{"palm", "index_01"}}
	require.NoError(t, w.AddActor(box))
	require.NoError(t, w.AddActor(lid))
	require.NoError(t, w.AddActor(hand))

	w.Link(lid, box)
	assert.Equal(t, []*Actor{box}, w.Linked(lid))
	assert.Equal(t, []*Actor{lid}, w.Linked(box))
	assert.True(t, box.HasTag(TagContainer))

	_, err := w.Constrain("grasp", hand, "thumb_03", lid, ConstraintParams{})
	assert.ErrorIs(t, err, ErrBoneNotFound)

	c, err := w.Constrain("grasp", hand, "palm", lid, ConstraintParams{Stiffness: 500})
	require.NoError(t, err)
	assert.True(t, w.IsActive(c))
	w.Release(c)
	w.Release(c)
	assert.False(t, w.IsActive(c))
}

func TestGeometry(t *testing.T) {
	assert.True(t, Box(r3.Vec{X: 1, Y: 2, Z: 3}).IsContactVolume())
	assert.True(t, Sphere(2).IsContactVolume())
	assert.False(t, Mesh().IsContactVolume())
	assert.False(t, Box(r3.Vec{X: 1}).Valid())
	assert.False(t, Sphere(0).Valid())

	kind, err := ParseShapeKind("sphere")
	require.NoError(t, err)
	assert.Equal(t, KindSphere, kind)
	_, err = ParseShapeKind("capsule")
	assert.Error(t, err)

	assert.InDelta(t, 5.0, DistXY(r3.Vec{X: 3, Z: 100}, r3.Vec{Y: 4}), 1e-9)
	assert.InDelta(t, 13.0, Distance(r3.Vec{X: 3, Y: 4, Z: 12}, r3.Vec{}), 1e-9)
}
