package scenario

import (
	"context"
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/semlog/internal/monitoring"
	"github.com/banshee-data/semlog/internal/symbolic"
	"github.com/banshee-data/semlog/internal/timeutil"
)

// stepEpsilon absorbs float drift when matching step times to ticks.
const stepEpsilon = 1e-9

type motion struct {
	step     Step
	from, to r3.Vec
	start    float64
}

// Run starts logger and replays the scene in ticks of dt simulated seconds
// until the loop reaches until. Tick k happens at exactly start + k*dt; a
// step is applied at the first tick at or after its time. Within a tick the
// steps are applied before the timers due in that tick fire, as in RunPaced.
// logger must have been initialised with the scene's monitors and entities.
// Run does not finish the logger.
func (s *Scene) Run(logger *symbolic.Logger, until, dt float64) error {
	if dt <= 0 {
		return fmt.Errorf("tick must be positive, got %g", dt)
	}
	if !logger.IsInit() {
		return errors.New("symbolic logger is not initialised")
	}
	logger.Start()

	t0 := s.Loop.Now()
	if t0 > until+stepEpsilon {
		return nil
	}
	for i := 1; ; i++ {
		if err := s.apply(s.Loop.Now()); err != nil {
			return err
		}
		next := t0 + float64(i)*dt
		if next > until+stepEpsilon {
			break
		}
		s.Loop.AdvanceTo(next)
	}
	s.Loop.AdvanceTo(until)
	return nil
}

// RunPaced replays the scene against clock, one tick of dt per wall-clock
// tick, until the tick at until has been applied or ctx is cancelled. The
// loop ends one tick past until.
func (s *Scene) RunPaced(ctx context.Context, clock timeutil.Clock, logger *symbolic.Logger, until, dt float64) error {
	if dt <= 0 {
		return fmt.Errorf("tick must be positive, got %g", dt)
	}
	if !logger.IsInit() {
		return errors.New("symbolic logger is not initialised")
	}
	logger.Start()

	var applyErr error
	err := timeutil.RunPaced(ctx, clock, s.Loop, dt, func(now float64) bool {
		if applyErr = s.apply(now); applyErr != nil {
			return false
		}
		return now < until-stepEpsilon
	})
	if applyErr != nil {
		return applyErr
	}
	return err
}

// Done reports whether every step has been applied and every move finished.
func (s *Scene) Done() bool { return s.next >= len(s.steps) && len(s.motions) == 0 }

func (s *Scene) apply(now float64) error {
	s.advanceMotions(now)
	for s.next < len(s.steps) && s.steps[s.next].At <= now+stepEpsilon {
		st := s.steps[s.next]
		s.next++
		if err := s.applyStep(st, now); err != nil {
			return fmt.Errorf("step %s at %g: %w", st.Action, st.At, err)
		}
	}
	return nil
}

func (s *Scene) applyStep(st Step, now float64) error {
	w := s.World
	switch st.Action {
	case ActionOverlapBegin:
		w.BeginOverlap(w.Shape(st.A), w.Shape(st.B))
	case ActionOverlapEnd:
		w.EndOverlap(w.Shape(st.A), w.Shape(st.B))
	case ActionMove:
		a := w.Actor(st.Actor)
		if st.Over <= 0 {
			w.Move(a, st.Location.R3())
			break
		}
		s.motions = append(s.motions, &motion{step: st, from: a.Location(), to: st.Location.R3(), start: now})
	case ActionInput:
		s.manips[st.Actor].SetInputAxis(st.Axis)
	case ActionSliceBegin:
		s.blades[st.Blade].BeginSlice(w.Actor(st.Performer), w.Actor(st.Object), now)
	case ActionSliceEnd:
		b := s.blades[st.Blade]
		if !st.Success {
			b.EndSliceFail(now)
			break
		}
		b.EndSliceSuccess(w.Actor(st.Output), now)
	default:
		return fmt.Errorf("unknown action %q", st.Action)
	}
	monitoring.Debugf("[%.4f] scenario: %s %s%s%s", now, st.Action, st.A, st.Actor, st.Blade)
	return nil
}

// advanceMotions moves every actor with a timed move to its interpolated
// location at now and drops the moves that completed.
func (s *Scene) advanceMotions(now float64) {
	active := s.motions[:0]
	for _, m := range s.motions {
		frac := (now - m.start) / m.step.Over
		if frac >= 1-stepEpsilon {
			frac = 1
		}
		loc := r3.Add(m.from, r3.Scale(frac, r3.Sub(m.to, m.from)))
		s.World.Move(s.World.Actor(m.step.Actor), loc)
		if frac < 1 {
			active = append(active, m)
		}
	}
	s.motions = active
}
