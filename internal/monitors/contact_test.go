package monitors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/semlog/internal/pairing"
	"github.com/banshee-data/semlog/internal/world"
)

func contactConfig(supportedBy bool) ContactConfig {
	cfg := DefaultContactConfig()
	cfg.LogSupportedBy = supportedBy
	return cfg
}

func TestContactMonitor_Init(t *testing.T) {
	t.Run("unannotated owner", func(t *testing.T) {
		s := newScene(t)
		a := world.NewActor("ghost", r3.Vec{}, true)
		require.NoError(t, s.world.AddActor(a))
		box := s.shape(a, "ghost.box", world.Box(r3.Vec{X: 1, Y: 1, Z: 1}), "")

		m := NewContactMonitor(box, s.loop, contactConfig(false))
		assert.ErrorIs(t, m.Init(s.reg), ErrNotAnnotated)
		assert.False(t, m.IsInit())
	})

	t.Run("mesh is not a contact volume", func(t *testing.T) {
		s := newScene(t)
		a := s.actor("cup", 2, r3.Vec{}, true)
		mesh := s.shape(a, "cup.mesh", world.Mesh(), "")

		m := NewContactMonitor(mesh, s.loop, contactConfig(false))
		assert.ErrorIs(t, m.Init(s.reg), ErrNoGeometry)
	})

	t.Run("events are off until Start", func(t *testing.T) {
		s := newScene(t)
		a := s.actor("cup", 2, r3.Vec{}, true)
		box := s.shape(a, "cup.box", world.Box(r3.Vec{X: 1, Y: 1, Z: 1}), "")

		m := NewContactMonitor(box, s.loop, contactConfig(false))
		require.NoError(t, m.Init(s.reg))
		assert.False(t, box.GeneratesOverlapEvents())
		m.Start()
		assert.True(t, box.GeneratesOverlapEvents())
	})
}

func TestContactMonitor_SimpleContactWithFlicker(t *testing.T) {
	s := newScene(t)
	a := s.actor("hand", 1, r3.Vec{}, true)
	b := s.actor("cup", 2, r3.Vec{X: 1}, true)
	box := s.shape(a, "hand.box", world.Box(r3.Vec{X: 2, Y: 2, Z: 2}), "")
	mesh := s.shape(b, "cup.mesh", world.Mesh(), "")

	m := NewContactMonitor(box, s.loop, contactConfig(false))
	require.NoError(t, m.Init(s.reg))
	m.Start()
	begins := record(&m.OnBeginContact)
	ends := record(&m.OnEndContact)

	s.at(1.0)
	s.world.BeginOverlap(box, mesh)
	s.at(1.05)
	s.world.EndOverlap(box, mesh)
	s.at(1.10)
	s.world.BeginOverlap(box, mesh)
	s.at(3.0)
	s.world.EndOverlap(box, mesh)
	s.at(4.0)

	require.Len(t, begins.got, 1)
	assert.Equal(t, 1.0, begins.got[0].Time)
	assert.Equal(t, s.entity(b), begins.got[0].Other)
	assert.False(t, begins.got[0].OtherIsContactShape)
	require.Len(t, ends.got, 1)
	assert.Equal(t, ContactEnd{Self: s.entity(a), Other: s.entity(b), Time: 3.0}, ends.got[0])
}

func TestContactMonitor_IgnoresUnannotatedAndSiblings(t *testing.T) {
	s := newScene(t)
	a := s.actor("cup", 1, r3.Vec{}, true)
	box := s.shape(a, "cup.box", world.Box(r3.Vec{X: 1, Y: 1, Z: 1}), "")
	ownMesh := s.shape(a, "cup.mesh", world.Mesh(), "")
	ghost := world.NewActor("ghost", r3.Vec{}, true)
	require.NoError(t, s.world.AddActor(ghost))
	ghostMesh := s.shape(ghost, "ghost.mesh", world.Mesh(), "")

	m := NewContactMonitor(box, s.loop, contactConfig(false))
	require.NoError(t, m.Init(s.reg))
	m.Start()
	begins := record(&m.OnBeginContact)

	s.at(1)
	s.world.BeginOverlap(box, ownMesh)
	s.world.BeginOverlap(box, ghostMesh)
	assert.Empty(t, begins.got)
}

func TestContactMonitor_StartSynthesizesExistingOverlaps(t *testing.T) {
	s := newScene(t)
	a := s.actor("cup", 1, r3.Vec{}, true)
	b := s.actor("table", 2, r3.Vec{}, false)
	box := s.shape(a, "cup.box", world.Box(r3.Vec{X: 1, Y: 1, Z: 1}), "")
	mesh := s.shape(b, "table.mesh", world.Mesh(), "")

	m := NewContactMonitor(box, s.loop, contactConfig(false))
	require.NoError(t, m.Init(s.reg))
	s.world.BeginOverlap(box, mesh)

	begins := record(&m.OnBeginContact)
	s.at(0.5)
	m.Start()
	require.Len(t, begins.got, 1)
	assert.Equal(t, 0.5, begins.got[0].Time)
}

func TestContactMonitor_DualTriggerEmitsOnce(t *testing.T) {
	s := newScene(t)
	a := s.actor("cup", 2, r3.Vec{}, true)
	b := s.actor("plate", 1, r3.Vec{}, true)
	boxA := s.shape(a, "cup.box", world.Box(r3.Vec{X: 1, Y: 1, Z: 1}), "")
	boxB := s.shape(b, "plate.box", world.Box(r3.Vec{X: 1, Y: 1, Z: 1}), "")

	ma := NewContactMonitor(boxA, s.loop, contactConfig(false))
	mb := NewContactMonitor(boxB, s.loop, contactConfig(false))
	require.NoError(t, ma.Init(s.reg))
	require.NoError(t, mb.Init(s.reg))
	ma.Start()
	mb.Start()
	beginsA, beginsB := record(&ma.OnBeginContact), record(&mb.OnBeginContact)
	endsA, endsB := record(&ma.OnEndContact), record(&mb.OnEndContact)

	s.at(1)
	s.world.BeginOverlap(boxA, boxB)
	s.at(2)
	s.world.EndOverlap(boxA, boxB)
	s.at(3)

	assert.Len(t, beginsA.got, 1)
	assert.Empty(t, beginsB.got)
	assert.True(t, beginsA.got[0].OtherIsContactShape)
	assert.Len(t, endsA.got, 1)
	assert.Empty(t, endsB.got)
}

func TestContactMonitor_SupportedBy(t *testing.T) {
	s := newScene(t)
	cup := s.actor("cup", 2, r3.Vec{Z: 5}, true)
	table := s.actor("table", 3, r3.Vec{}, false)
	box := s.shape(cup, "cup.box", world.Box(r3.Vec{X: 1, Y: 1, Z: 1}), "")
	mesh := s.shape(table, "table.mesh", world.Mesh(), "")

	m := NewContactMonitor(box, s.loop, contactConfig(true))
	require.NoError(t, m.Init(s.reg))
	m.Start()
	sup := record(&m.OnBeginSupportedBy)
	supEnd := record(&m.OnEndSupportedBy)

	s.at(1.0)
	s.world.BeginOverlap(box, mesh)
	assert.False(t, m.IsSupportedBySomething(), "not classified before the first poll")

	s.at(1.2)
	require.Len(t, sup.got, 1)
	want := pairing.Cantor(2, 3)
	assert.Equal(t, s.entity(cup), sup.got[0].Supported)
	assert.Equal(t, s.entity(table), sup.got[0].Supporting)
	assert.Equal(t, want, sup.got[0].PairID)
	assert.True(t, m.IsSupportedBySomething())
	assert.Equal(t, 0, s.loop.Pending(), "polling stops with no candidates left")

	s.at(2.0)
	s.world.EndOverlap(box, mesh)
	s.at(3.0)
	require.Len(t, supEnd.got, 1)
	assert.Equal(t, 2.0, supEnd.got[0].Time)
	assert.Contains(t, []uint64{supEnd.got[0].PairID1, supEnd.got[0].PairID2}, want)
	assert.False(t, m.IsSupportedBySomething())
	assert.Equal(t, 2.0, m.LastSupportedByEndTime())
}

func TestContactMonitor_SupportedByWaitsForRest(t *testing.T) {
	s := newScene(t)
	cup := s.actor("cup", 2, r3.Vec{Z: 5}, true)
	table := s.actor("table", 3, r3.Vec{}, false)
	box := s.shape(cup, "cup.box", world.Box(r3.Vec{X: 1, Y: 1, Z: 1}), "")
	mesh := s.shape(table, "table.mesh", world.Mesh(), "")

	m := NewContactMonitor(box, s.loop, contactConfig(true))
	require.NoError(t, m.Init(s.reg))
	m.Start()
	sup := record(&m.OnBeginSupportedBy)

	s.world.VelocityHold = 0.3
	s.at(1.0)
	s.world.BeginOverlap(box, mesh)
	s.world.SetVelocity(cup, r3.Vec{Z: -20})
	s.at(1.25)
	assert.Empty(t, sup.got, "still falling at the first two polls")
	assert.False(t, m.IsSupportedBySomething())

	// The velocity expires after the hold and the cup comes to rest.
	s.at(1.5)
	assert.Len(t, sup.got, 1)
}

func TestContactMonitor_SupportedByBetweenContactShapes(t *testing.T) {
	s := newScene(t)
	cup := s.actor("cup", 2, r3.Vec{Z: 5}, true)
	plate := s.actor("plate", 1, r3.Vec{Z: 0}, true)
	cupBox := s.shape(cup, "cup.box", world.Box(r3.Vec{X: 1, Y: 1, Z: 1}), "")
	plateBox := s.shape(plate, "plate.box", world.Box(r3.Vec{X: 3, Y: 3, Z: 1}), "")

	mc := NewContactMonitor(cupBox, s.loop, contactConfig(true))
	mp := NewContactMonitor(plateBox, s.loop, contactConfig(true))
	require.NoError(t, mc.Init(s.reg))
	require.NoError(t, mp.Init(s.reg))
	mc.Start()
	mp.Start()
	supC, supP := record(&mc.OnBeginSupportedBy), record(&mp.OnBeginSupportedBy)

	s.at(1)
	s.world.BeginOverlap(cupBox, plateBox)
	s.at(1.5)

	// Only the cup (larger id) emits; the cup is on top.
	require.Len(t, supC.got, 1)
	assert.Empty(t, supP.got)
	assert.Equal(t, s.entity(cup), supC.got[0].Supported)
	assert.True(t, mc.IsSupportedBySomething())
	assert.False(t, mp.IsSupportedBySomething())

	s.at(2)
	s.world.EndOverlap(cupBox, plateBox)
	s.at(3)
	assert.False(t, mc.IsSupportedBySomething())
	assert.Equal(t, 2.0, mc.LastSupportedByEndTime())
}

func TestContactMonitor_SupportedByMarksOtherContactShape(t *testing.T) {
	s := newScene(t)
	tray := s.actor("tray", 2, r3.Vec{Z: 0}, true)
	cup := s.actor("cup", 1, r3.Vec{Z: 5}, true)
	trayBox := s.shape(tray, "tray.box", world.Box(r3.Vec{X: 3, Y: 3, Z: 1}), "")
	cupBox := s.shape(cup, "cup.box", world.Box(r3.Vec{X: 1, Y: 1, Z: 1}), "")

	mt := NewContactMonitor(trayBox, s.loop, contactConfig(true))
	mc := NewContactMonitor(cupBox, s.loop, contactConfig(true))
	require.NoError(t, mt.Init(s.reg))
	require.NoError(t, mc.Init(s.reg))
	mt.Start()
	mc.Start()
	sup := record(&mt.OnBeginSupportedBy)

	s.at(1)
	s.world.BeginOverlap(trayBox, cupBox)
	s.at(1.5)

	require.Len(t, sup.got, 1)
	assert.Equal(t, s.entity(cup), sup.got[0].Supported)
	assert.Equal(t, s.entity(tray), sup.got[0].Supporting)
	assert.True(t, mc.IsSupportedBySomething(), "the tray's monitor marks the cup")
	assert.False(t, mt.IsSupportedBySomething())

	s.at(2)
	s.world.EndOverlap(trayBox, cupBox)
	s.at(3)
	assert.False(t, mc.IsSupportedBySomething())
	assert.Equal(t, 2.0, mc.LastSupportedByEndTime())
}

func TestContactMonitor_FinishClosesOpenContacts(t *testing.T) {
	s := newScene(t)
	a := s.actor("cup", 1, r3.Vec{}, true)
	b := s.actor("table", 2, r3.Vec{}, false)
	c := s.actor("plate", 3, r3.Vec{}, true)
	box := s.shape(a, "cup.box", world.Box(r3.Vec{X: 1, Y: 1, Z: 1}), "")
	tableMesh := s.shape(b, "table.mesh", world.Mesh(), "")
	plateMesh := s.shape(c, "plate.mesh", world.Mesh(), "")

	m := NewContactMonitor(box, s.loop, contactConfig(false))
	require.NoError(t, m.Init(s.reg))
	m.Start()
	ends := record(&m.OnEndContact)

	s.at(1)
	s.world.BeginOverlap(box, tableMesh)
	s.world.BeginOverlap(box, plateMesh)
	s.at(1.5)
	s.world.EndOverlap(box, plateMesh) // still inside the jitter window at Finish

	s.at(1.6)
	m.Finish(true)
	m.Finish(true)

	require.Len(t, ends.got, 2)
	assert.Equal(t, s.entity(c), ends.got[0].Other)
	assert.Equal(t, 1.5, ends.got[0].Time)
	assert.Equal(t, s.entity(b), ends.got[1].Other)
	assert.Equal(t, 1.6, ends.got[1].Time)
	assert.True(t, m.IsFinished())
	assert.False(t, box.GeneratesOverlapEvents())

	s.at(5)
	assert.Len(t, ends.got, 2)
}
