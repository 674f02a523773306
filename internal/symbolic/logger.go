// Package symbolic runs one logging episode: it initialises the monitors of
// a Registry, attaches an event handler to each signal source and delivers
// the resulting events to the configured sinks.
package symbolic

import (
	"errors"
	"fmt"
	"io"
	"math"
	"slices"

	"github.com/google/uuid"

	"github.com/banshee-data/semlog/internal/config"
	"github.com/banshee-data/semlog/internal/events"
	"github.com/banshee-data/semlog/internal/individual"
	"github.com/banshee-data/semlog/internal/monitoring"
	"github.com/banshee-data/semlog/internal/timeutil"
)

// Options configures an episode.
type Options struct {
	TaskID    string // generated when empty
	EpisodeID string // generated when empty

	// Tuning supplies the event thresholds. Nil uses the defaults.
	Tuning *config.TuningConfig

	// Kinds restricts the published event kinds. Empty means all.
	Kinds []events.Kind

	// StartDelay postpones Start by this many simulation seconds.
	StartDelay float64
}

func (o Options) logs(k events.Kind) bool {
	return len(o.Kinds) == 0 || slices.Contains(o.Kinds, k)
}

// Logger orchestrates one episode. It is driven from the simulation
// goroutine and is not safe for concurrent use; the collected events are.
type Logger struct {
	sched     timeutil.Scheduler
	sinks     []events.Sink
	collector *events.Collector

	opts     Options
	registry *Registry
	handlers []events.Handler
	startAt  timeutil.Handle

	isInit     bool
	isStarted  bool
	isFinished bool
}

// New returns a logger publishing to an internal collector and to sinks.
func New(sched timeutil.Scheduler, sinks ...events.Sink) *Logger {
	return &Logger{sched: sched, sinks: sinks, collector: &events.Collector{}}
}

// Init assigns the task and episode ids, initialises every monitor and
// creates their handlers. A monitor that fails to initialise is logged and
// left out of the episode.
func (l *Logger) Init(opts Options, reg *Registry, lookup individual.Lookup) error {
	if l.isInit {
		return nil
	}
	if reg == nil || lookup == nil {
		return errors.New("symbolic logger: registry and lookup are required")
	}
	if opts.TaskID == "" {
		opts.TaskID = uuid.NewString()
	}
	if opts.EpisodeID == "" {
		opts.EpisodeID = uuid.NewString()
	}
	if opts.Tuning == nil {
		opts.Tuning = config.EmptyTuningConfig()
	}
	l.opts = opts
	l.registry = &Registry{}

	sink := events.MultiSink(append([]events.Sink{l.collector}, l.sinks...))
	hopts := events.OptionsFromTuning(opts.Tuning, opts.EpisodeID)
	attach := func(parent any, enabled bool, h events.Handler) {
		if !enabled {
			return
		}
		if !h.Init(parent) {
			monitoring.Errorf("symbolic logger: %T rejected %T", h, parent)
			return
		}
		l.handlers = append(l.handlers, h)
	}

	for _, m := range reg.Contacts {
		if err := m.Init(lookup); err != nil {
			continue
		}
		l.registry.Contacts = append(l.registry.Contacts, m)
		attach(m, opts.logs(events.KindContact), events.NewContactHandler(sink, hopts))
		attach(m, opts.logs(events.KindSupportedBy), events.NewSupportedByHandler(sink, hopts))
	}
	for _, m := range reg.Manipulators {
		if err := m.Init(lookup, true, true); err != nil {
			continue
		}
		l.registry.Manipulators = append(l.registry.Manipulators, m)
		attach(m, opts.logs(events.KindGrasp), events.NewGraspHandler(sink, hopts))
		attach(m, opts.logs(events.KindManipulatorContact), events.NewManipulatorContactHandler(sink, hopts))
	}
	for _, m := range reg.Reaches {
		if err := m.Init(lookup); err != nil {
			continue
		}
		l.registry.Reaches = append(l.registry.Reaches, m)
		attach(m, opts.logs(events.KindReach) || opts.logs(events.KindPreGrasp),
			events.NewReachAndPreGraspHandler(sink, reachOptions(hopts, opts)))
	}
	for _, m := range reg.PickAndPlaces {
		if err := m.Init(); err != nil {
			continue
		}
		l.registry.PickAndPlaces = append(l.registry.PickAndPlaces, m)
		attach(m, opts.logs(events.KindSlide) || opts.logs(events.KindPickUp) ||
			opts.logs(events.KindTransport) || opts.logs(events.KindPutDown),
			events.NewPickAndPlaceHandler(sink, hopts))
	}
	for _, m := range reg.Containers {
		if err := m.Init(lookup); err != nil {
			continue
		}
		l.registry.Containers = append(l.registry.Containers, m)
		attach(m, opts.logs(events.KindContainer), events.NewContainerHandler(sink, hopts))
	}
	for _, b := range reg.Blades {
		if err := b.Init(lookup); err != nil {
			continue
		}
		l.registry.Blades = append(l.registry.Blades, b)
		attach(b, opts.logs(events.KindSlicing), events.NewSlicingHandler(sink, hopts))
	}

	if skipped := reg.Len() - l.registry.Len(); skipped > 0 {
		monitoring.Warnf("symbolic logger: %d of %d monitors skipped", skipped, reg.Len())
	}
	monitoring.Logf("symbolic logger: task %s episode %s, %d monitors, %d handlers",
		opts.TaskID, opts.EpisodeID, l.registry.Len(), len(l.handlers))
	l.isInit = true
	return nil
}

var inf = math.Inf(1)

// reachOptions gives a disabled half of the reach-and-pre-grasp pair an
// unreachable threshold.
func reachOptions(h events.Options, opts Options) events.Options {
	if !opts.logs(events.KindReach) {
		h.ReachEventMin = inf
	}
	if !opts.logs(events.KindPreGrasp) {
		h.PreGraspEventMin = inf
	}
	return h
}

// Start starts handlers, then monitors, so that overlaps reported at start
// are not lost. With a StartDelay it only schedules the start.
func (l *Logger) Start() {
	if !l.isInit || l.isStarted || l.startAt != 0 {
		return
	}
	if l.opts.StartDelay > 0 {
		l.startAt = l.sched.ScheduleOnce(l.opts.StartDelay, func() {
			l.startAt = 0
			l.start()
		})
		return
	}
	l.start()
}

func (l *Logger) start() {
	for _, h := range l.handlers {
		h.Start()
	}
	r := l.registry
	for _, m := range r.Contacts {
		m.Start()
	}
	for _, m := range r.Manipulators {
		m.Start()
	}
	for _, m := range r.Reaches {
		m.Start()
	}
	for _, m := range r.PickAndPlaces {
		m.Start()
	}
	for _, m := range r.Containers {
		m.Start()
	}
	for _, b := range r.Blades {
		b.Start()
	}
	l.isStarted = true
	monitoring.Logf("[%.4f] symbolic logger: episode %s started", l.sched.Now(), l.opts.EpisodeID)
}

// Finish ends the episode at the current simulation time. Monitors finish
// first so that their pending ends reach the handlers, then handlers publish
// what is still open. Sinks implementing io.Closer are closed last. Finish
// runs once; later calls return nil.
func (l *Logger) Finish(forced bool) error {
	if l.isFinished || !(l.isInit || l.isStarted) {
		return nil
	}
	if l.startAt != 0 {
		l.sched.Cancel(l.startAt)
		l.startAt = 0
	}
	now := l.sched.Now()
	r := l.registry
	// Manipulators and contacts flush their buffered ends first so the
	// monitors built on top of them still see those ends at their own times.
	for _, m := range r.Manipulators {
		m.Finish(forced)
	}
	for _, m := range r.Contacts {
		m.Finish(forced)
	}
	for _, m := range r.Reaches {
		m.Finish(forced)
	}
	for _, m := range r.PickAndPlaces {
		m.Finish(forced)
	}
	for _, m := range r.Containers {
		m.Finish(forced)
	}
	for _, b := range r.Blades {
		b.Finish(forced)
	}
	for _, h := range l.handlers {
		h.Finish(now, forced)
	}

	var errs []error
	for _, s := range l.sinks {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("closing %T: %w", s, err))
			}
		}
	}
	l.isInit = false
	l.isStarted = false
	l.isFinished = true
	monitoring.Logf("[%.4f] symbolic logger: episode %s finished with %d events (forced=%t)",
		now, l.opts.EpisodeID, l.collector.Len(), forced)
	return errors.Join(errs...)
}

// IsInit reports whether Init succeeded and Finish has not run.
func (l *Logger) IsInit() bool { return l.isInit }

// IsStarted reports whether the episode is running.
func (l *Logger) IsStarted() bool { return l.isStarted }

// IsFinished reports whether Finish has run.
func (l *Logger) IsFinished() bool { return l.isFinished }

// TaskID returns the task id assigned at Init.
func (l *Logger) TaskID() string { return l.opts.TaskID }

// EpisodeID returns the episode id assigned at Init.
func (l *Logger) EpisodeID() string { return l.opts.EpisodeID }

// Events returns the events published so far.
func (l *Logger) Events() []events.Event { return l.collector.Events() }

// Handlers returns the number of active handlers.
func (l *Logger) Handlers() int { return len(l.handlers) }

// Monitors returns the monitors that initialised successfully.
func (l *Logger) Monitors() *Registry { return l.registry }
