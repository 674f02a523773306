// Package scenario replays a scripted episode: a file describes the actors,
// their collision shapes, the monitors to attach and a timed list of host
// events (overlaps, moves, input, cuts) that drive them.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"
)

// Step actions.
const (
	ActionOverlapBegin = "overlap_begin"
	ActionOverlapEnd   = "overlap_end"
	ActionMove         = "move"
	ActionInput        = "input"
	ActionSliceBegin   = "slice_begin"
	ActionSliceEnd     = "slice_end"
)

// ErrInvalid wraps every validation failure of a scenario file.
var ErrInvalid = errors.New("invalid scenario")

// Vec is an [x, y, z] triple in centimetres.
type Vec [3]float64

// R3 converts v.
func (v Vec) R3() r3.Vec { return r3.Vec{X: v[0], Y: v[1], Z: v[2]} }

// Config is a scenario file.
type Config struct {
	Name     string  `yaml:"name" json:"name"`
	TaskID   string  `yaml:"task_id,omitempty" json:"task_id,omitempty"`
	Duration float64 `yaml:"duration,omitempty" json:"duration,omitempty"` // simulated seconds; 0 ends one second after the last step

	Actors   []ActorSpec  `yaml:"actors" json:"actors"`
	Shapes   []ShapeSpec  `yaml:"shapes" json:"shapes"`
	Monitors MonitorSpecs `yaml:"monitors" json:"monitors"`
	Steps    []Step       `yaml:"steps" json:"steps"`
}

// ActorSpec declares one actor and its annotation.
type ActorSpec struct {
	Name        string   `yaml:"name" json:"name"`
	Class       string   `yaml:"class,omitempty" json:"class,omitempty"` // defaults to the name
	ID          uint64   `yaml:"id,omitempty" json:"id,omitempty"`       // 0 assigns the next free id
	Unannotated bool     `yaml:"unannotated,omitempty" json:"unannotated,omitempty"`
	Tags        []string `yaml:"tags,omitempty" json:"tags,omitempty"`
	Location    Vec      `yaml:"location" json:"location"`
	Movable     bool     `yaml:"movable,omitempty" json:"movable,omitempty"`
	Skeletal    bool     `yaml:"skeletal,omitempty" json:"skeletal,omitempty"`
	Bones       []string `yaml:"bones,omitempty" json:"bones,omitempty"`
	Parent      string   `yaml:"parent,omitempty" json:"parent,omitempty"`
	Constraints []string `yaml:"constraints,omitempty" json:"constraints,omitempty"` // actors physically linked to this one
}

// ShapeSpec declares a collision shape.
type ShapeSpec struct {
	Name   string  `yaml:"name" json:"name"`
	Owner  string  `yaml:"owner" json:"owner"`
	Kind   string  `yaml:"kind" json:"kind"` // box, sphere, mesh or bone
	Extent Vec     `yaml:"extent,omitempty" json:"extent,omitempty"`
	Radius float64 `yaml:"radius,omitempty" json:"radius,omitempty"`
	Bone   string  `yaml:"bone,omitempty" json:"bone,omitempty"`
	Group  string  `yaml:"group,omitempty" json:"group,omitempty"` // A or B, bones only
}

// MonitorSpecs lists the monitors to attach.
type MonitorSpecs struct {
	Contact      []string          `yaml:"contact,omitempty" json:"contact,omitempty"` // contact shape names
	Manipulator  []ManipulatorSpec `yaml:"manipulator,omitempty" json:"manipulator,omitempty"`
	Reach        []ReachSpec       `yaml:"reach,omitempty" json:"reach,omitempty"`
	PickAndPlace []string          `yaml:"pickplace,omitempty" json:"pickplace,omitempty"` // manipulator actors
	Container    []string          `yaml:"container,omitempty" json:"container,omitempty"` // manipulator actors
	Blade        []string          `yaml:"blade,omitempty" json:"blade,omitempty"`         // blade actors
}

// ManipulatorSpec attaches a manipulator monitor to a skeletal actor. Every
// bone shape of the actor gets a bone contact monitor.
type ManipulatorSpec struct {
	Actor            string `yaml:"actor" json:"actor"`
	GraspType        string `yaml:"grasp_type,omitempty" json:"grasp_type,omitempty"`
	AutoPauseOnInput bool   `yaml:"auto_pause_on_input,omitempty" json:"auto_pause_on_input,omitempty"`
}

// ReachSpec attaches a reach monitor to a manipulator's capture sphere.
type ReachSpec struct {
	Manipulator string `yaml:"manipulator" json:"manipulator"`
	Sphere      string `yaml:"sphere" json:"sphere"`
}

// Step is one timed host event. Which fields are read depends on Action.
type Step struct {
	At     float64 `yaml:"at" json:"at"`
	Action string  `yaml:"action" json:"action"`

	A string `yaml:"a,omitempty" json:"a,omitempty"` // overlap shapes
	B string `yaml:"b,omitempty" json:"b,omitempty"`

	Actor    string  `yaml:"actor,omitempty" json:"actor,omitempty"` // move target, or input manipulator
	Location *Vec    `yaml:"location,omitempty" json:"location,omitempty"`
	Over     float64 `yaml:"over,omitempty" json:"over,omitempty"` // move duration; 0 teleports
	Axis     float64 `yaml:"axis,omitempty" json:"axis,omitempty"`

	Blade     string `yaml:"blade,omitempty" json:"blade,omitempty"`
	Performer string `yaml:"performer,omitempty" json:"performer,omitempty"`
	Object    string `yaml:"object,omitempty" json:"object,omitempty"`
	Output    string `yaml:"output,omitempty" json:"output,omitempty"`
	Success   bool   `yaml:"success,omitempty" json:"success,omitempty"`
}

// Load reads a .yaml, .yml or .json scenario file.
func Load(path string) (*Config, error) {
	ext := filepath.Ext(path)
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("scenario file must have .json, .yaml or .yml extension, got %q", ext)
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}
	return Parse(data)
}

// Parse decodes a scenario. JSON is accepted as the YAML subset it is.
// Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks names and references. Build repeats the reference checks
// against the constructed world.
func (c *Config) Validate() error {
	actors := make(map[string]bool, len(c.Actors))
	for _, a := range c.Actors {
		if a.Name == "" {
			return fmt.Errorf("%w: actor without a name", ErrInvalid)
		}
		if actors[a.Name] {
			return fmt.Errorf("%w: duplicate actor %q", ErrInvalid, a.Name)
		}
		if a.Skeletal && len(a.Bones) == 0 {
			return fmt.Errorf("%w: skeletal actor %q has no bones", ErrInvalid, a.Name)
		}
		actors[a.Name] = true
	}
	for _, s := range c.Shapes {
		if !actors[s.Owner] {
			return fmt.Errorf("%w: shape %q owned by unknown actor %q", ErrInvalid, s.Name, s.Owner)
		}
		if s.Group != "" && s.Group != "A" && s.Group != "B" {
			return fmt.Errorf("%w: shape %q has group %q, want A or B", ErrInvalid, s.Name, s.Group)
		}
	}
	for i, st := range c.Steps {
		if st.At < 0 {
			return fmt.Errorf("%w: step %d at negative time %g", ErrInvalid, i, st.At)
		}
		switch st.Action {
		case ActionOverlapBegin, ActionOverlapEnd, ActionInput, ActionSliceBegin, ActionSliceEnd:
		case ActionMove:
			if st.Location == nil {
				return fmt.Errorf("%w: step %d moves %q without a location", ErrInvalid, i, st.Actor)
			}
		default:
			return fmt.Errorf("%w: step %d has unknown action %q", ErrInvalid, i, st.Action)
		}
	}
	if c.Duration < 0 {
		return fmt.Errorf("%w: negative duration", ErrInvalid)
	}
	return nil
}

// End returns the simulated time the replay stops at.
func (c *Config) End() float64 {
	if c.Duration > 0 {
		return c.Duration
	}
	var last float64
	for _, st := range c.Steps {
		last = max(last, st.At+st.Over)
	}
	return last + 1
}
