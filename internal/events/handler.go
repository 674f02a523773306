package events

import (
	"github.com/google/uuid"

	"github.com/banshee-data/semlog/internal/config"
)

// Handler converts the signals of one monitor into events.
//
// Init binds the handler to its monitor and reports whether the monitor is
// of the type the handler understands. Finish publishes every event still
// open at endTime; it is idempotent.
type Handler interface {
	Init(parent any) bool
	Start()
	Finish(endTime float64, forced bool)
	IsInit() bool
	IsStarted() bool
	IsFinished() bool
}

// Options are shared by every handler of an episode.
type Options struct {
	EpisodeID string

	// Events this short or shorter are dropped.
	ContactEventMin     float64
	GraspEventMin       float64
	SupportedByEventMin float64
	ReachEventMin       float64
	PreGraspEventMin    float64
}

// OptionsFromTuning reads the event thresholds from cfg.
func OptionsFromTuning(cfg *config.TuningConfig, episodeID string) Options {
	return Options{
		EpisodeID:           episodeID,
		ContactEventMin:     cfg.GetContactEventMin(),
		GraspEventMin:       cfg.GetGraspEventMin(),
		SupportedByEventMin: cfg.GetSupportedByEventMin(),
		ReachEventMin:       cfg.GetReachEventMin(),
		PreGraspEventMin:    cfg.GetPreGraspEventMin(),
	}
}

// DefaultOptions returns the built-in thresholds for episodeID.
func DefaultOptions(episodeID string) Options {
	return OptionsFromTuning(config.EmptyTuningConfig(), episodeID)
}

// base carries the lifecycle flags, sink and subscriptions of a handler.
type base struct {
	sink Sink
	opts Options

	isInit     bool
	isStarted  bool
	isFinished bool

	unsubscribe []func()
}

func (b *base) IsInit() bool     { return b.isInit }
func (b *base) IsStarted() bool  { return b.isStarted }
func (b *base) IsFinished() bool { return b.isFinished }

// canStart marks the handler started if it is initialised and not yet
// running.
func (b *base) canStart() bool {
	if b.isStarted || !b.isInit {
		return false
	}
	b.isStarted = true
	return true
}

// canFinish unsubscribes and marks the handler finished once.
func (b *base) canFinish() bool {
	if b.isFinished || !(b.isInit || b.isStarted) {
		return false
	}
	for _, unsub := range b.unsubscribe {
		unsub()
	}
	b.unsubscribe = nil
	b.isInit = false
	b.isStarted = false
	b.isFinished = true
	return true
}

func (b *base) subscribe(cancel ...func()) {
	b.unsubscribe = append(b.unsubscribe, cancel...)
}

// publish stamps ev with a fresh id and the episode and delivers it.
func (b *base) publish(ev Event) {
	ev.ID = uuid.NewString()
	ev.EpisodeID = b.opts.EpisodeID
	b.sink.OnSemanticEvent(ev)
}

// publishIfLonger delivers ev only if it lasts longer than threshold.
func (b *base) publishIfLonger(ev Event, threshold float64) {
	if ev.Duration() > threshold {
		b.publish(ev)
	}
}

type openEvent[K comparable] struct {
	key K
	ev  Event
}

// openEvents holds started events in begin order.
type openEvents[K comparable] struct {
	items []openEvent[K]
}

func (s *openEvents[K]) add(key K, ev Event) {
	s.items = append(s.items, openEvent[K]{key: key, ev: ev})
}

// take removes and returns the oldest event whose key matches.
func (s *openEvents[K]) take(match func(K) bool) (Event, bool) {
	for i, it := range s.items {
		if match(it.key) {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return it.ev, true
		}
	}
	return Event{}, false
}

func (s *openEvents[K]) drain() []Event {
	out := make([]Event, len(s.items))
	for i, it := range s.items {
		out[i] = it.ev
	}
	s.items = nil
	return out
}

func (s *openEvents[K]) len() int { return len(s.items) }
