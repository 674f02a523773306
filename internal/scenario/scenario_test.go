package scenario

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/semlog/internal/events"
	"github.com/banshee-data/semlog/internal/monitoring"
	"github.com/banshee-data/semlog/internal/symbolic"
	"github.com/banshee-data/semlog/internal/timeutil"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	os.Exit(m.Run())
}

func loadKitchen(t *testing.T) *Scene {
	t.Helper()
	cfg, err := Load(filepath.Join("testdata", "kitchen.yaml"))
	require.NoError(t, err)
	s, err := Build(cfg, nil)
	require.NoError(t, err)
	return s
}

func newLogger(t *testing.T, s *Scene, sinks ...events.Sink) *symbolic.Logger {
	t.Helper()
	l := symbolic.New(s.Loop, sinks...)
	require.NoError(t, l.Init(symbolic.Options{TaskID: s.Config.TaskID, EpisodeID: "ep-1"}, s.Monitors, s.Entities))
	return l
}

func spanOf(t *testing.T, evs []events.Event, kind events.Kind) (float64, float64) {
	t.Helper()
	var found []events.Event
	for _, ev := range evs {
		if ev.Kind == kind {
			found = append(found, ev)
		}
	}
	require.Len(t, found, 1, kind)
	return found[0].Start, found[0].End
}

func TestLoad_Kitchen(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "kitchen.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "kitchen", cfg.Name)
	assert.Equal(t, "breakfast", cfg.TaskID)
	assert.Len(t, cfg.Actors, 3)
	assert.Len(t, cfg.Shapes, 7)
	assert.Len(t, cfg.Steps, 5)
	assert.Equal(t, []string{"thumb_01", "index_01"}, cfg.Actors[0].Bones)
	require.NotNil(t, cfg.Steps[2].Location)
	assert.Equal(t, r3.Vec{X: 10, Z: 10}, cfg.Steps[2].Location.R3())
	assert.Equal(t, 3.0, cfg.End())
}

func TestLoad_Extension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.toml")
	require.NoError(t, os.WriteFile(path, []byte("name: x\n"), 0o644))
	_, err := Load(path)
	assert.ErrorContains(t, err, "extension")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read scenario")
}

func TestParse_JSON(t *testing.T) {
	cfg, err := Parse([]byte(`{"name": "j", "actors": [{"name": "cup", "location": [1, 2, 3]}],
		"steps": [{"at": 2, "action": "move", "actor": "cup", "location": [0, 0, 0], "over": 1}]}`))
	require.NoError(t, err)
	assert.Equal(t, Vec{1, 2, 3}, cfg.Actors[0].Location)
	assert.Equal(t, 4.0, cfg.End(), "last step plus its duration plus one second")
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"unknown field", "name: x\ncolour: red\n", "failed to parse"},
		{"unnamed actor", "actors: [{location: [0, 0, 0]}]\n", "without a name"},
		{"duplicate actor", "actors: [{name: a}, {name: a}]\n", "duplicate actor"},
		{"skeletal without bones", "actors: [{name: a, skeletal: true}]\n", "no bones"},
		{"shape owner", "shapes: [{name: s, owner: ghost, kind: mesh}]\n", "unknown actor"},
		{"bone group", "actors: [{name: a}]\nshapes: [{name: s, owner: a, kind: bone, group: C}]\n", "want A or B"},
		{"negative time", "steps: [{at: -1, action: input}]\n", "negative time"},
		{"unknown action", "steps: [{at: 1, action: jump}]\n", "unknown action"},
		{"move without location", "steps: [{at: 1, action: move, actor: a}]\n", "without a location"},
		{"negative duration", "duration: -2\n", "negative duration"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.ErrorContains(t, err, tt.want)
			if tt.want != "failed to parse" {
				assert.ErrorIs(t, err, ErrInvalid)
			}
		})
	}
}

func TestBuild_Kitchen(t *testing.T) {
	s := loadKitchen(t)

	assert.Equal(t, 3, s.Entities.Len())
	assert.Equal(t, uint64(2), s.Entities.Lookup(s.World.Actor("cup")).ID)
	assert.Equal(t, 5, s.Monitors.Len())
	require.NotNil(t, s.Manipulator("hand"))
	assert.Len(t, s.Manipulator("hand").Bones, 2)
	assert.Nil(t, s.Blade("hand"))
	assert.False(t, s.Done())
}

func TestBuild_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(`
actors:
  - {name: hand, skeletal: true, bones: [thumb_01], movable: true}
  - {name: knife, class: BreadKnife, movable: true}
  - {name: tray, unannotated: true}
shapes:
  - {name: hand.reach, owner: hand, kind: sphere}
`))
	require.NoError(t, err)
	s, err := Build(cfg, nil)
	require.NoError(t, err)

	hand := s.Entities.Lookup(s.World.Actor("hand"))
	knife := s.Entities.Lookup(s.World.Actor("knife"))
	require.NotNil(t, hand)
	require.NotNil(t, knife)
	assert.Equal(t, "hand", hand.Class)
	assert.Equal(t, "BreadKnife", knife.Class)
	assert.NotEqual(t, hand.ID, knife.ID)
	assert.Nil(t, s.Entities.Lookup(s.World.Actor("tray")))
	assert.Equal(t, 30.0, s.World.Shape("hand.reach").Geometry.Radius)
}

func TestBuild_Errors(t *testing.T) {
	base := "actors: [{name: hand, skeletal: true, bones: [thumb_01]}, {name: cup}]\n" +
		"shapes: [{name: cup.mesh, owner: cup, kind: mesh}]\n"
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"unknown parent", "actors: [{name: a, parent: b}]\n", "unknown parent"},
		{"unknown constraint", "actors: [{name: a, constraints: [b]}]\n", "unknown actor"},
		{"shape kind", "actors: [{name: a}]\nshapes: [{name: s, owner: a, kind: cone}]\n", "shape \"s\""},
		{"contact shape", base + "monitors: {contact: [ghost]}\n", "unknown shape"},
		{"manipulator actor", base + "monitors: {manipulator: [{actor: ghost}]}\n", "unknown actor"},
		{"reach shape", base + "monitors: {reach: [{manipulator: hand, sphere: ghost}]}\n", "unknown shape"},
		{"pickplace", base + "monitors: {pickplace: [hand]}\n", "needs manipulator"},
		{"container", base + "monitors: {container: [cup]}\n", "needs manipulator"},
		{"blade", base + "monitors: {blade: [ghost]}\n", "unknown actor"},
		{"overlap step", base + "steps: [{at: 1, action: overlap_begin, a: cup.mesh, b: ghost}]\n", "unknown shape"},
		{"input step", base + "steps: [{at: 1, action: input, actor: hand}]\n", "no manipulator"},
		{"slice step", base + "steps: [{at: 1, action: slice_end, blade: cup}]\n", "no blade"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(tt.doc))
			require.NoError(t, err)
			_, err = Build(cfg, nil)
			require.Error(t, err)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestScene_RunKitchen(t *testing.T) {
	s := loadKitchen(t)
	sink := &events.Collector{}
	l := newLogger(t, s, sink)

	require.NoError(t, s.Run(l, s.Config.End(), 0.25))
	assert.True(t, s.Done())
	assert.InDelta(t, 3.0, s.Loop.Now(), 1e-9)
	require.NoError(t, l.Finish(true))

	evs := sink.Events()
	for _, c := range []struct {
		kind       events.Kind
		start, end float64
	}{
		{events.KindContact, 0, 3},
		{events.KindReach, 1, 2},
		{events.KindPreGrasp, 2, 2.5},
		{events.KindGrasp, 2.5, 3},
		{events.KindManipulatorContact, 2, 3},
	} {
		start, end := spanOf(t, evs, c.kind)
		assert.InDelta(t, c.start, start, 1e-6, "%s start", c.kind)
		assert.InDelta(t, c.end, end, 1e-6, "%s end", c.kind)
	}
	for _, ev := range evs {
		assert.Equal(t, "ep-1", ev.EpisodeID)
	}
}

func TestScene_RunRequiresInit(t *testing.T) {
	s := loadKitchen(t)
	l := symbolic.New(s.Loop)
	assert.ErrorContains(t, s.Run(l, 1, 0.1), "not initialised")

	l = newLogger(t, s)
	assert.ErrorContains(t, s.Run(l, 1, 0), "tick must be positive")
}

func TestScene_TimedMove(t *testing.T) {
	cfg, err := Parse([]byte(`
actors: [{name: cup, location: [0, 0, 10], movable: true}]
steps:
  - {at: 1, action: move, actor: cup, location: [20, 0, 10], over: 2}
`))
	require.NoError(t, err)
	s, err := Build(cfg, nil)
	require.NoError(t, err)
	l := newLogger(t, s)
	cup := s.World.Actor("cup")

	require.NoError(t, s.Run(l, 2, 0.5))
	assert.InDelta(t, 10.0, cup.Location().X, 1e-9, "half way at t=2")
	assert.False(t, s.Done())

	require.NoError(t, s.Run(l, 4, 0.5))
	assert.InDelta(t, 20.0, cup.Location().X, 1e-9)
	assert.True(t, s.Done())
}

func TestScene_Slicing(t *testing.T) {
	cfg, err := Parse([]byte(`
actors:
  - {name: hand, id: 1, movable: true}
  - {name: knife, id: 4, class: BreadKnife, movable: true}
  - {name: bread, id: 5, class: Bread}
  - {name: slice, id: 6, class: BreadSlice}
monitors:
  blade: [knife]
steps:
  - {at: 1, action: slice_begin, blade: knife, performer: hand, object: bread}
  - {at: 2, action: slice_end, blade: knife, success: true, output: slice}
  - {at: 3, action: slice_begin, blade: knife, performer: hand, object: bread}
  - {at: 3.5, action: slice_end, blade: knife}
`))
	require.NoError(t, err)
	s, err := Build(cfg, nil)
	require.NoError(t, err)
	sink := &events.Collector{}
	l := newLogger(t, s, sink)

	require.NoError(t, s.Run(l, cfg.End(), 0.5))
	require.NoError(t, l.Finish(true))

	cuts := sink.OfKind(events.KindSlicing)
	require.Len(t, cuts, 2)
	assert.Equal(t, 1.0, cuts[0].Start)
	assert.Equal(t, 2.0, cuts[0].End)
	assert.Equal(t, "true", cuts[0].Properties[events.PropTaskSuccess])
	out, ok := cuts[0].Participant(events.RoleOutputsCreated)
	require.True(t, ok)
	assert.Equal(t, "slice", out.Name)

	assert.Equal(t, "false", cuts[1].Properties[events.PropTaskSuccess])
	_, ok = cuts[1].Participant(events.RoleOutputsCreated)
	assert.False(t, ok)
}

func TestScene_InputPausesGrasp(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "kitchen.yaml"))
	require.NoError(t, err)
	cfg.Monitors.Manipulator[0].AutoPauseOnInput = true
	cfg.Steps = append(cfg.Steps, Step{At: 2.75, Action: ActionInput, Actor: "hand", Axis: 0.1})
	s, err := Build(cfg, nil)
	require.NoError(t, err)

	l := newLogger(t, s)
	require.NoError(t, s.Run(l, 3, 0.25))
	assert.True(t, s.Manipulator("hand").IsGraspDetectionPaused())
	require.NoError(t, l.Finish(true))
}

func TestScene_RunPaced(t *testing.T) {
	s := loadKitchen(t)
	sink := &events.Collector{}
	l := newLogger(t, s, sink)
	clock := timeutil.NewMockClock(time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC))

	done := make(chan error, 1)
	go func() { done <- s.RunPaced(context.Background(), clock, l, 3, 0.25) }()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case err := <-done:
			require.NoError(t, err)
			assert.True(t, s.Done())
			assert.InDelta(t, 3.25, s.Loop.Now(), 1e-9)
			require.NoError(t, l.Finish(true))
			start, _ := spanOf(t, sink.Events(), events.KindGrasp)
			assert.InDelta(t, 2.5, start, 1e-6)
			return
		case <-deadline:
			t.Fatal("RunPaced did not return")
		default:
			clock.Advance(250 * time.Millisecond)
			time.Sleep(time.Millisecond)
		}
	}
}

func TestScene_RunPacedCancelled(t *testing.T) {
	s := loadKitchen(t)
	l := newLogger(t, s)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	clock := timeutil.NewMockClock(time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, s.RunPaced(ctx, clock, l, 3, 0.25), context.Canceled)
}

func runPaced(t *testing.T, s *Scene, l *symbolic.Logger, until, dt float64) {
	t.Helper()
	clock := timeutil.NewMockClock(time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC))
	done := make(chan error, 1)
	go func() { done <- s.RunPaced(context.Background(), clock, l, until, dt) }()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case err := <-done:
			require.NoError(t, err)
			return
		case <-deadline:
			t.Fatal("RunPaced did not return")
		default:
			clock.Advance(time.Duration(dt * float64(time.Second)))
			time.Sleep(time.Millisecond)
		}
	}
}

func TestScene_StepsBeforeTimersOfTheirTick(t *testing.T) {
	for name, run := range map[string]func(*testing.T, *Scene, *symbolic.Logger){
		"run":   func(t *testing.T, s *Scene, l *symbolic.Logger) { require.NoError(t, s.Run(l, 2, 0.5)) },
		"paced": func(t *testing.T, s *Scene, l *symbolic.Logger) { runPaced(t, s, l, 2, 0.5) },
	} {
		t.Run(name, func(t *testing.T) {
			cfg, err := Parse([]byte(`
actors: [{name: cup, location: [0, 0, 10], movable: true}]
steps:
  - {at: 1, action: move, actor: cup, location: [20, 0, 10]}
`))
			require.NoError(t, err)
			s, err := Build(cfg, nil)
			require.NoError(t, err)
			l := newLogger(t, s)
			cup := s.World.Actor("cup")

			var seen []float64
			observe := func() { seen = append(seen, cup.Location().X) }
			s.Loop.ScheduleOnce(1, observe)
			s.Loop.ScheduleOnce(1.25, observe)

			run(t, s, l)
			// A timer due on the tick boundary belongs to the previous tick.
			assert.Equal(t, []float64{0, 20}, seen)
		})
	}
}
