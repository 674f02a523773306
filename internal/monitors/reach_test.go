package monitors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/semlog/internal/world"
)

type reachFixture struct {
	*scene
	h       *hand
	cup     *world.Actor
	cupMesh *world.Shape
	reach   *ReachAndPreGraspMonitor
	results *recorder[ReachResult]
}

func newReachFixture(t *testing.T) *reachFixture {
	t.Helper()
	s := newScene(t)
	h := s.hand(DefaultManipulatorConfig())
	cup := s.actor("cup", 2, r3.Vec{X: 25}, true)
	f := &reachFixture{scene: s, h: h, cup: cup, cupMesh: s.shape(cup, "cup.mesh", world.Mesh(), "")}
	h.start(t, s.reg)
	f.reach = NewReachAndPreGraspMonitor(h.sphere, h.manip, s.loop, DefaultReachConfig())
	require.NoError(t, f.reach.Init(s.reg))
	f.reach.Start()
	f.results = record(&f.reach.OnPreAndReach)
	return f
}

func (f *reachFixture) contact(begin bool, t float64) {
	f.at(t)
	self, cup := f.entity(f.h.actor), f.entity(f.cup)
	if begin {
		f.h.manip.OnBeginManipulatorContact.Emit(ContactResult{Self: self, Other: cup, Time: t})
		return
	}
	f.h.manip.OnEndManipulatorContact.Emit(ContactEnd{Self: self, Other: cup, Time: t})
}

func (f *reachFixture) grasp(begin bool, t float64) {
	f.at(t)
	self, cup := f.entity(f.h.actor), f.entity(f.cup)
	if begin {
		f.h.manip.OnBeginGrasp.Emit(GraspResult{Self: self, Other: cup, Time: t, GraspType: DefaultGraspType})
		return
	}
	f.h.manip.OnEndGrasp.Emit(GraspEnd{Self: self, Other: cup, Time: t})
}

func TestReachAndPreGraspMonitor_Init(t *testing.T) {
	t.Run("no manipulator", func(t *testing.T) {
		s := newScene(t)
		h := s.hand(DefaultManipulatorConfig())
		m := NewReachAndPreGraspMonitor(h.sphere, nil, s.loop, DefaultReachConfig())
		assert.ErrorIs(t, m.Init(s.reg), ErrNoSiblingManipulator)
	})

	t.Run("manipulator not initialised", func(t *testing.T) {
		s := newScene(t)
		h := s.hand(DefaultManipulatorConfig())
		m := NewReachAndPreGraspMonitor(h.sphere, h.manip, s.loop, DefaultReachConfig())
		assert.ErrorIs(t, m.Init(s.reg), ErrNoSiblingManipulator)
	})

	t.Run("not a sphere", func(t *testing.T) {
		s := newScene(t)
		h := s.hand(DefaultManipulatorConfig())
		h.start(t, s.reg)
		m := NewReachAndPreGraspMonitor(h.thumb, h.manip, s.loop, DefaultReachConfig())
		assert.ErrorIs(t, m.Init(s.reg), ErrNoGeometry)
	})
}

func TestReachAndPreGraspMonitor_ReachThenPreGrasp(t *testing.T) {
	f := newReachFixture(t)
	cup := f.entity(f.cup)

	f.at(1.0)
	f.world.BeginOverlap(f.h.sphere, f.cupMesh)
	require.Equal(t, []*Entity{cup}, f.reach.Candidates())
	since, ok := f.reach.ReachStart(cup)
	require.True(t, ok)
	assert.Equal(t, 1.0, since)

	// Backing off restarts the approach at the next update.
	f.at(1.5)
	f.world.Move(f.h.actor, r3.Vec{X: -5})
	f.at(1.6)
	since, _ = f.reach.ReachStart(cup)
	assert.InDelta(t, 1.518, since, 1e-6)

	// Closing in keeps it.
	f.at(2.0)
	f.world.Move(f.h.actor, r3.Vec{X: 10})
	f.at(2.2)
	since, _ = f.reach.ReachStart(cup)
	assert.InDelta(t, 1.518, since, 1e-6)

	// A contact flicker shorter than the window is one pre-grasp.
	f.contact(true, 2.5)
	f.contact(false, 2.6)
	f.contact(true, 2.7)

	f.grasp(true, 3.0)
	require.Len(t, f.results.got, 1)
	got := f.results.got[0]
	assert.Equal(t, cup, got.Other)
	assert.Equal(t, f.entity(f.h.actor), got.Self)
	assert.InDelta(t, 1.518, got.ReachStart, 1e-6)
	assert.Equal(t, 2.5, got.ContactTime)
	assert.Equal(t, 3.0, got.GraspTime)

	assert.Empty(t, f.reach.Candidates())
	assert.False(t, f.h.sphere.GeneratesOverlapEvents())
	assert.Zero(t, f.reach.ticker)

	f.grasp(false, 4.0)
	assert.True(t, f.h.sphere.GeneratesOverlapEvents())
	require.Equal(t, []*Entity{cup}, f.reach.Candidates(), "objects still inside are re-acquired")
	since, _ = f.reach.ReachStart(cup)
	assert.Equal(t, 4.0, since)
}

func TestReachAndPreGraspMonitor_ContactEndRestartsApproach(t *testing.T) {
	f := newReachFixture(t)
	cup := f.entity(f.cup)

	f.at(1.0)
	f.world.BeginOverlap(f.h.sphere, f.cupMesh)
	f.contact(true, 1.2)
	f.contact(false, 1.3)
	f.at(2.0)

	since, ok := f.reach.ReachStart(cup)
	require.True(t, ok)
	assert.InDelta(t, 1.75, since, 1e-6, "restarted when the end was flushed")

	f.grasp(true, 2.0)
	assert.Empty(t, f.results.got, "no contact before the grasp")
}

func TestReachAndPreGraspMonitor_IgnoresNonCandidates(t *testing.T) {
	f := newReachFixture(t)
	table := f.actor("table", 3, r3.Vec{X: 20}, false)
	tableMesh := f.shape(table, "table.mesh", world.Mesh(), "")
	box := f.shape(f.cup, "cup.box", world.Box(r3.Vec{X: 1, Y: 1, Z: 1}), "")

	f.at(1.0)
	f.world.BeginOverlap(f.h.sphere, tableMesh)
	f.world.BeginOverlap(f.h.sphere, box)
	assert.Empty(t, f.reach.Candidates())
	assert.Zero(t, f.loop.Pending(), "no ticking without candidates")

	f.contact(true, 1.5)
	f.grasp(true, 2.0)
	assert.Empty(t, f.results.got)
}

func TestReachAndPreGraspMonitor_CandidateNeedsAllShapesToLeave(t *testing.T) {
	f := newReachFixture(t)
	handle := f.shape(f.cup, "cup.handle", world.Mesh(), "")

	f.at(1.0)
	f.world.BeginOverlap(f.h.sphere, f.cupMesh)
	f.world.BeginOverlap(f.h.sphere, handle)
	f.at(1.5)
	f.world.EndOverlap(f.h.sphere, f.cupMesh)
	assert.Len(t, f.reach.Candidates(), 1)

	f.world.EndOverlap(f.h.sphere, handle)
	assert.Empty(t, f.reach.Candidates())
	assert.Zero(t, f.reach.ticker)
}

func TestReachAndPreGraspMonitor_FinishEmitsNothing(t *testing.T) {
	f := newReachFixture(t)

	f.at(1.0)
	f.world.BeginOverlap(f.h.sphere, f.cupMesh)
	f.contact(true, 1.5)
	f.at(2.0)
	f.reach.Finish(true)

	assert.Empty(t, f.results.got)
	assert.Empty(t, f.reach.Candidates())
	assert.False(t, f.h.sphere.GeneratesOverlapEvents())
	assert.True(t, f.reach.IsFinished())
}
