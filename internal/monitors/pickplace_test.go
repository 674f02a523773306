package monitors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/semlog/internal/world"
)

type fakeSupport struct {
	supported bool
	lastEnd   float64
}

func (f *fakeSupport) IsSupportedBySomething() bool   { return f.supported }
func (f *fakeSupport) LastSupportedByEndTime() float64 { return f.lastEnd }

type pickPlaceFixture struct {
	*scene
	h   *hand
	cup *world.Actor
	sup *fakeSupport
	pp  *PickAndPlaceMonitor

	slides, pickUps, transports, putDowns *recorder[ManipulationResult]
}

func newPickPlaceFixture(t *testing.T) *pickPlaceFixture {
	t.Helper()
	s := newScene(t)
	h := s.hand(DefaultManipulatorConfig())
	cup := s.actor("cup", 2, r3.Vec{}, true)
	h.start(t, s.reg)

	f := &pickPlaceFixture{scene: s, h: h, cup: cup, sup: &fakeSupport{supported: true}}
	f.pp = NewPickAndPlaceMonitor(h.manip, s.loop, DefaultPickPlaceConfig())
	f.pp.Querier = func(a *world.Actor) SupportedByQuerier {
		if a == cup {
			return f.sup
		}
		return nil
	}
	require.NoError(t, f.pp.Init())
	f.pp.Start()
	f.slides = record(&f.pp.OnSlide)
	f.pickUps = record(&f.pp.OnPickUp)
	f.transports = record(&f.pp.OnTransport)
	f.putDowns = record(&f.pp.OnPutDown)
	return f
}

func (f *pickPlaceFixture) grasp(t float64) {
	f.at(t)
	f.h.manip.OnBeginGrasp.Emit(GraspResult{Self: f.entity(f.h.actor), Other: f.entity(f.cup), Time: t})
}

func (f *pickPlaceFixture) release(t float64) {
	f.at(t)
	f.h.manip.OnEndGrasp.Emit(GraspEnd{Self: f.entity(f.h.actor), Other: f.entity(f.cup), Time: t})
}

// drive advances in 10ms host ticks from the current time to end. Before
// each tick, state(t) sets the cup's support and location.
func (f *pickPlaceFixture) drive(end float64, state func(t float64) (supported bool, loc r3.Vec)) {
	for {
		t := f.loop.Now() + 0.01
		if t > end+1e-9 {
			return
		}
		f.at(t)
		supported, loc := state(t)
		if f.sup.supported && !supported {
			f.sup.lastEnd = t
		}
		f.sup.supported = supported
		f.world.Move(f.cup, loc)
	}
}

func (f *pickPlaceFixture) all() []ManipulationResult {
	var out []ManipulationResult
	out = append(out, f.slides.got...)
	out = append(out, f.pickUps.got...)
	out = append(out, f.transports.got...)
	out = append(out, f.putDowns.got...)
	return out
}

func assertNoOverlap(t *testing.T, events []ManipulationResult) {
	t.Helper()
	for i, a := range events {
		assert.LessOrEqual(t, a.Start, a.End, "event %d runs backwards", i)
		for j, b := range events {
			if i == j {
				continue
			}
			overlap := a.Start < b.End-1e-9 && b.Start < a.End-1e-9
			assert.False(t, overlap, "events %+v and %+v overlap", a, b)
		}
	}
}

func TestPickAndPlace_InitNeedsManipulator(t *testing.T) {
	s := newScene(t)
	m := NewPickAndPlaceMonitor(nil, s.loop, DefaultPickPlaceConfig())
	assert.ErrorIs(t, m.Init(), ErrNoSiblingManipulator)
}

func TestPickAndPlace_IgnoresUnsupportedOrUnmonitoredGrasps(t *testing.T) {
	f := newPickPlaceFixture(t)

	f.sup.supported = false
	f.grasp(1)
	assert.Equal(t, StateNone, f.pp.CurrentState())

	f.pp.Querier = DefaultQuerier
	f.sup.supported = true
	f.grasp(2)
	assert.Equal(t, StateNone, f.pp.CurrentState(), "cup has no contact monitor")
	assert.Nil(t, DefaultQuerier(f.cup))
}

func TestPickAndPlace_SlideRejectedForShortDistance(t *testing.T) {
	f := newPickPlaceFixture(t)
	f.grasp(1.0)
	assert.Equal(t, StateSlide, f.pp.CurrentState())

	// 3cm over 2s, then lifted off the surface.
	f.drive(3.1, func(t float64) (bool, r3.Vec) {
		x := 3 * min(t-1.0, 2.0) / 2.0
		return t < 2.995, r3.Vec{X: x}
	})

	assert.Empty(t, f.slides.got)
	assert.Equal(t, StatePickUp, f.pp.CurrentState())
}

func TestPickAndPlace_SlideEmittedAtSupportEnd(t *testing.T) {
	f := newPickPlaceFixture(t)
	f.grasp(1.0)

	f.drive(3.1, func(t float64) (bool, r3.Vec) {
		x := 20 * min(t-1.0, 2.0) / 2.0
		return t < 2.995, r3.Vec{X: x}
	})

	require.Len(t, f.slides.got, 1)
	assert.Equal(t, 1.0, f.slides.got[0].Start)
	assert.InDelta(t, 3.0, f.slides.got[0].End, 1e-6)
	assert.Equal(t, StatePickUp, f.pp.CurrentState())
}

// pickUpAndPutDown lifts the cup off the table at 9.47, raises it 5cm, moves
// it 20cm sideways, carries it and lowers it until it rests again at 12.375.
func pickUpAndPutDown(t float64) (bool, r3.Vec) {
	supported := t < 9.475 || t >= 12.375
	switch {
	case t < 9.875:
		return supported, r3.Vec{}
	case t < 9.975:
		return supported, r3.Vec{Z: 5}
	case t < 11.875:
		return supported, r3.Vec{X: 20, Z: 8}
	case t < 11.925:
		return supported, r3.Vec{X: 20, Z: 10}
	case t < 12.175:
		return supported, r3.Vec{X: 20, Z: 7}
	case t < 12.275:
		return supported, r3.Vec{X: 20, Z: 3}
	default:
		return supported, r3.Vec{X: 20}
	}
}

func TestPickAndPlace_PickUpTransportPutDown(t *testing.T) {
	f := newPickPlaceFixture(t)
	f.grasp(9.0)

	f.drive(10.02, pickUpAndPutDown)
	require.Len(t, f.pickUps.got, 1)
	assert.Equal(t, 9.0, f.pickUps.got[0].Start)
	assert.InDelta(t, 10.0, f.pickUps.got[0].End, 1e-6)
	assert.Equal(t, StateTransportOrPutDown, f.pp.CurrentState())

	f.drive(12.42, pickUpAndPutDown)
	require.Len(t, f.transports.got, 1)
	require.Len(t, f.putDowns.got, 1)
	assert.InDelta(t, 10.0, f.transports.got[0].Start, 1e-6)
	assert.InDelta(t, 11.9, f.transports.got[0].End, 1e-6)
	assert.InDelta(t, 11.9, f.putDowns.got[0].Start, 1e-6)
	assert.InDelta(t, 12.4, f.putDowns.got[0].End, 1e-6)
	assert.Equal(t, StateSlide, f.pp.CurrentState())

	f.release(13.0)
	require.Len(t, f.slides.got, 1, "release while sliding closes the slide")
	assert.InDelta(t, 12.4, f.slides.got[0].Start, 1e-6)
	assert.Equal(t, 13.0, f.slides.got[0].End)
	assert.Equal(t, StateNone, f.pp.CurrentState())

	assertNoOverlap(t, f.all())
	assert.Zero(t, f.loop.Pending(), "ticking stops on release")
}

func TestPickAndPlace_PutDownFallsBackToOldestSample(t *testing.T) {
	f := newPickPlaceFixture(t)
	f.grasp(1.0)

	// Lifted 4cm and carried low; nothing in the buffer is high or far
	// enough to mark the split, so the oldest sample is used.
	f.drive(2.52, func(t float64) (bool, r3.Vec) {
		switch {
		case t < 1.075:
			return true, r3.Vec{}
		case t < 1.175:
			return false, r3.Vec{Z: 4}
		case t < 1.225:
			return false, r3.Vec{X: 12, Z: 4}
		case t < 2.475:
			return false, r3.Vec{X: 14, Z: 4}
		default:
			return true, r3.Vec{X: 14}
		}
	})

	require.Len(t, f.pickUps.got, 1)
	require.Len(t, f.transports.got, 1)
	require.Len(t, f.putDowns.got, 1)
	split := f.transports.got[0].End
	assert.InDelta(t, f.pickUps.got[0].End+0.05, split, 1e-6, "first buffered sample")
	assert.Equal(t, split, f.putDowns.got[0].Start)
	assert.InDelta(t, 2.5, f.putDowns.got[0].End, 1e-6)
	assertNoOverlap(t, f.all())
}

func TestPickAndPlace_TransportWithoutDrop(t *testing.T) {
	f := newPickPlaceFixture(t)
	f.grasp(1.0)

	// Lifted, carried and set down without ever being higher than the
	// resting spot, e.g. onto a taller shelf.
	f.drive(2.52, func(t float64) (bool, r3.Vec) {
		switch {
		case t < 1.075:
			return true, r3.Vec{}
		case t < 1.175:
			return false, r3.Vec{Z: 4}
		case t < 2.475:
			return false, r3.Vec{X: 12, Z: 4}
		default:
			return true, r3.Vec{X: 20, Z: 4}
		}
	})

	require.Len(t, f.transports.got, 1)
	assert.Empty(t, f.putDowns.got)
	assert.InDelta(t, 2.5, f.transports.got[0].End, 1e-6)
}

func TestPickAndPlace_ReleaseDuringPickUpEmitsPickUp(t *testing.T) {
	f := newPickPlaceFixture(t)
	f.grasp(1.0)
	f.drive(1.52, func(t float64) (bool, r3.Vec) {
		if t < 1.075 {
			return true, r3.Vec{}
		}
		return false, r3.Vec{Z: 4}
	})
	require.Equal(t, StatePickUp, f.pp.CurrentState())

	f.release(1.6)
	require.Len(t, f.pickUps.got, 1)
	assert.Equal(t, 1.0, f.pickUps.got[0].Start)
	assert.Equal(t, 1.6, f.pickUps.got[0].End)
	assert.Empty(t, f.slides.got)
}

func TestPickAndPlace_ReleaseDuringPickUpWithoutLiftEmitsNothing(t *testing.T) {
	f := newPickPlaceFixture(t)
	f.grasp(1.0)
	f.drive(1.52, func(t float64) (bool, r3.Vec) { return t < 1.075, r3.Vec{} })
	require.Equal(t, StatePickUp, f.pp.CurrentState())

	f.release(1.6)
	assert.Empty(t, f.all())
}

func TestPickAndPlace_ReleaseMidTransportEmitsNothing(t *testing.T) {
	f := newPickPlaceFixture(t)
	f.grasp(9.0)
	f.drive(11.0, pickUpAndPutDown)
	require.Equal(t, StateTransportOrPutDown, f.pp.CurrentState())

	f.release(11.0)
	assert.Len(t, f.pickUps.got, 1)
	assert.Empty(t, f.transports.got)
	assert.Empty(t, f.putDowns.got)
	assert.Equal(t, StateNone, f.pp.CurrentState())
}

func TestPickAndPlace_ReturnsToSlideWhenPutBackWithoutLift(t *testing.T) {
	f := newPickPlaceFixture(t)
	f.grasp(1.0)
	f.drive(1.52, func(t float64) (bool, r3.Vec) {
		return t < 1.075 || t >= 1.375, r3.Vec{Z: 1}
	})
	assert.Equal(t, StateSlide, f.pp.CurrentState())
	assert.Empty(t, f.all())
}

func TestPickAndPlace_FinishClosesSlide(t *testing.T) {
	f := newPickPlaceFixture(t)
	f.grasp(1.0)
	f.at(2.0)
	f.pp.Finish(true)
	f.pp.Finish(true)

	require.Len(t, f.slides.got, 1)
	assert.Equal(t, 2.0, f.slides.got[0].End)
	assert.Equal(t, StateNone, f.pp.CurrentState())
}

func TestPickAndPlace_MovementBufferIsBounded(t *testing.T) {
	f := newPickPlaceFixture(t)
	f.pp.Config.RecentMovementBufferSize = 10
	f.grasp(1.0)
	f.drive(3.0, func(t float64) (bool, r3.Vec) {
		switch {
		case t < 1.075:
			return true, r3.Vec{}
		case t < 1.175:
			return false, r3.Vec{Z: 4}
		default:
			return false, r3.Vec{X: 20, Z: 4}
		}
	})
	require.Equal(t, StateTransportOrPutDown, f.pp.CurrentState())
	assert.Len(t, f.pp.movement, 10)
}
