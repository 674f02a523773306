package scenario

import (
	"fmt"
	"sort"

	"github.com/banshee-data/semlog/internal/config"
	"github.com/banshee-data/semlog/internal/individual"
	"github.com/banshee-data/semlog/internal/monitors"
	"github.com/banshee-data/semlog/internal/symbolic"
	"github.com/banshee-data/semlog/internal/timeutil"
	"github.com/banshee-data/semlog/internal/world"
)

// Scene is a built scenario: a world on its own simulation loop, the
// annotations of its actors and the monitors to hand to a symbolic logger.
type Scene struct {
	Config   *Config
	Loop     *timeutil.Loop
	World    *world.World
	Entities *individual.Registry
	Monitors *symbolic.Registry

	manips map[string]*monitors.ManipulatorMonitor
	blades map[string]*monitors.SlicingBlade

	steps   []Step
	next    int
	motions []*motion
}

// Build constructs the scene described by cfg. A nil tuning uses the
// built-in defaults.
func Build(cfg *Config, tuning *config.TuningConfig) (*Scene, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if tuning == nil {
		tuning = config.EmptyTuningConfig()
	}
	loop := timeutil.NewLoop(0)
	s := &Scene{
		Config:   cfg,
		Loop:     loop,
		World:    world.New(loop),
		Entities: individual.NewRegistry(),
		Monitors: &symbolic.Registry{},
		manips:   make(map[string]*monitors.ManipulatorMonitor),
		blades:   make(map[string]*monitors.SlicingBlade),
	}
	if err := s.addActors(cfg.Actors); err != nil {
		return nil, err
	}
	groups, err := s.addShapes(cfg.Shapes, tuning)
	if err != nil {
		return nil, err
	}
	if err := s.addMonitors(cfg.Monitors, groups, tuning); err != nil {
		return nil, err
	}

	s.steps = append([]Step(nil), cfg.Steps...)
	sort.SliceStable(s.steps, func(i, j int) bool { return s.steps[i].At < s.steps[j].At })
	for i, st := range s.steps {
		if err := s.check(st); err != nil {
			return nil, fmt.Errorf("%w: step %d (%s at %g): %v", ErrInvalid, i, st.Action, st.At, err)
		}
	}
	return s, nil
}

func (s *Scene) addActors(specs []ActorSpec) error {
	for _, spec := range specs {
		a := world.NewActor(spec.Name, spec.Location.R3(), spec.Movable, spec.Tags...)
		a.Bones = spec.Bones
		if err := s.World.AddActor(a); err != nil {
			return err
		}
		if spec.Unannotated {
			continue
		}
		class := spec.Class
		if class == "" {
			class = spec.Name
		}
		var err error
		if spec.ID != 0 {
			_, err = s.Entities.AnnotateWithID(a, spec.ID, class)
		} else {
			_, err = s.Entities.Annotate(a, class)
		}
		if err != nil {
			return fmt.Errorf("actor %q: %w", spec.Name, err)
		}
	}
	for _, spec := range specs {
		a := s.World.Actor(spec.Name)
		if spec.Parent != "" {
			p := s.World.Actor(spec.Parent)
			if p == nil {
				return fmt.Errorf("%w: actor %q has unknown parent %q", ErrInvalid, spec.Name, spec.Parent)
			}
			if err := s.World.Attach(a, p); err != nil {
				return err
			}
		}
		for _, name := range spec.Constraints {
			other := s.World.Actor(name)
			if other == nil {
				return fmt.Errorf("%w: actor %q constrained to unknown actor %q", ErrInvalid, spec.Name, name)
			}
			s.World.Link(a, other)
		}
	}
	return nil
}

func (s *Scene) addShapes(specs []ShapeSpec, tuning *config.TuningConfig) (map[*world.Shape]monitors.BoneGroup, error) {
	groups := make(map[*world.Shape]monitors.BoneGroup)
	for _, spec := range specs {
		kind, err := world.ParseShapeKind(spec.Kind)
		if err != nil {
			return nil, fmt.Errorf("%w: shape %q: %v", ErrInvalid, spec.Name, err)
		}
		var g world.Geometry
		switch kind {
		case world.KindBox:
			g = world.Box(spec.Extent.R3())
		case world.KindSphere:
			r := spec.Radius
			if r == 0 {
				r = tuning.GetReachSphereRadius()
			}
			g = world.Sphere(r)
		case world.KindBone:
			g = world.Geometry{Kind: world.KindBone, Radius: spec.Radius}
		default:
			g = world.Mesh()
		}
		sh, err := s.World.AddShape(s.World.Actor(spec.Owner), spec.Name, g, spec.Bone)
		if err != nil {
			return nil, err
		}
		if kind == world.KindBone {
			groups[sh] = monitors.GroupA
			if spec.Group == "B" {
				groups[sh] = monitors.GroupB
			}
		}
	}
	return groups, nil
}

func (s *Scene) addMonitors(specs MonitorSpecs, groups map[*world.Shape]monitors.BoneGroup, tuning *config.TuningConfig) error {
	reg := s.Monitors
	for _, name := range specs.Contact {
		sh := s.World.Shape(name)
		if sh == nil {
			return fmt.Errorf("%w: contact monitor on unknown shape %q", ErrInvalid, name)
		}
		reg.Contacts = append(reg.Contacts, monitors.NewContactMonitor(sh, s.Loop, monitors.ContactConfigFromTuning(tuning)))
	}

	for _, spec := range specs.Manipulator {
		a := s.World.Actor(spec.Actor)
		if a == nil {
			return fmt.Errorf("%w: manipulator on unknown actor %q", ErrInvalid, spec.Actor)
		}
		var bones []*monitors.BoneContactMonitor
		for _, sh := range a.Shapes() {
			if g, ok := groups[sh]; ok {
				bones = append(bones, monitors.NewBoneContactMonitor(sh, sh.Bone, g, s.Loop, monitors.BoneConfigFromTuning(tuning)))
			}
		}
		cfg := monitors.ManipulatorConfigFromTuning(tuning)
		if spec.GraspType != "" {
			cfg.GraspType = spec.GraspType
		}
		cfg.AutoPauseOnInput = spec.AutoPauseOnInput
		m := monitors.NewManipulatorMonitor(s.World, a, s.Loop, cfg, bones...)
		s.manips[spec.Actor] = m
		reg.Manipulators = append(reg.Manipulators, m)
	}

	for _, spec := range specs.Reach {
		sh := s.World.Shape(spec.Sphere)
		if sh == nil {
			return fmt.Errorf("%w: reach monitor on unknown shape %q", ErrInvalid, spec.Sphere)
		}
		reg.Reaches = append(reg.Reaches,
			monitors.NewReachAndPreGraspMonitor(sh, s.manips[spec.Manipulator], s.Loop, monitors.ReachConfigFromTuning(tuning)))
	}
	for _, name := range specs.PickAndPlace {
		m, ok := s.manips[name]
		if !ok {
			return fmt.Errorf("%w: pick-and-place monitor needs manipulator %q", ErrInvalid, name)
		}
		reg.PickAndPlaces = append(reg.PickAndPlaces, monitors.NewPickAndPlaceMonitor(m, s.Loop, monitors.PickPlaceConfigFromTuning(tuning)))
	}
	for _, name := range specs.Container {
		m, ok := s.manips[name]
		if !ok {
			return fmt.Errorf("%w: container monitor needs manipulator %q", ErrInvalid, name)
		}
		reg.Containers = append(reg.Containers, monitors.NewContainerMonitor(s.World, m, monitors.ContainerConfigFromTuning(tuning)))
	}
	for _, name := range specs.Blade {
		a := s.World.Actor(name)
		if a == nil {
			return fmt.Errorf("%w: blade on unknown actor %q", ErrInvalid, name)
		}
		b := monitors.NewSlicingBlade(a, s.Loop.Now)
		s.blades[name] = b
		reg.Blades = append(reg.Blades, b)
	}
	return nil
}

// check resolves the names a step refers to.
func (s *Scene) check(st Step) error {
	switch st.Action {
	case ActionOverlapBegin, ActionOverlapEnd:
		if s.World.Shape(st.A) == nil || s.World.Shape(st.B) == nil {
			return fmt.Errorf("unknown shape %q or %q", st.A, st.B)
		}
	case ActionMove:
		if s.World.Actor(st.Actor) == nil {
			return fmt.Errorf("unknown actor %q", st.Actor)
		}
	case ActionInput:
		if s.manips[st.Actor] == nil {
			return fmt.Errorf("no manipulator on %q", st.Actor)
		}
	case ActionSliceBegin:
		if s.blades[st.Blade] == nil {
			return fmt.Errorf("no blade %q", st.Blade)
		}
		if s.World.Actor(st.Performer) == nil || s.World.Actor(st.Object) == nil {
			return fmt.Errorf("unknown performer %q or object %q", st.Performer, st.Object)
		}
	case ActionSliceEnd:
		if s.blades[st.Blade] == nil {
			return fmt.Errorf("no blade %q", st.Blade)
		}
		if st.Output != "" && s.World.Actor(st.Output) == nil {
			return fmt.Errorf("unknown output %q", st.Output)
		}
	}
	return nil
}

// Manipulator returns the manipulator monitor of actor, or nil.
func (s *Scene) Manipulator(actor string) *monitors.ManipulatorMonitor { return s.manips[actor] }

// Blade returns the slicing blade of actor, or nil.
func (s *Scene) Blade(actor string) *monitors.SlicingBlade { return s.blades[actor] }
