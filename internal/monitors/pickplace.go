package monitors

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/semlog/internal/monitoring"
	"github.com/banshee-data/semlog/internal/timeutil"
	"github.com/banshee-data/semlog/internal/world"
)

// State is the phase of a pick-and-place episode.
type State int

const (
	StateNone State = iota
	StateSlide
	StatePickUp
	StateTransportOrPutDown
)

func (s State) String() string {
	switch s {
	case StateSlide:
		return "Slide"
	case StatePickUp:
		return "PickUp"
	case StateTransportOrPutDown:
		return "TransportOrPutDown"
	default:
		return "None"
	}
}

type movementSample struct {
	time float64
	loc  r3.Vec
}

// QuerierFunc resolves the supported-by state of a grasped actor. It returns
// nil when the actor has no contact monitor.
type QuerierFunc func(a *world.Actor) SupportedByQuerier

// DefaultQuerier finds the actor's contact monitor.
func DefaultQuerier(a *world.Actor) SupportedByQuerier {
	if m := ContactMonitorOf(a); m != nil {
		return m
	}
	return nil
}

// PickAndPlaceMonitor splits a grasp into slide, pick-up, transport and
// put-down phases from the grasped object's supported-by state and position.
// Only one grasped object is tracked at a time.
type PickAndPlaceMonitor struct {
	lifecycle

	Config  PickPlaceConfig
	Querier QuerierFunc

	OnSlide     Signal[ManipulationResult]
	OnPickUp    Signal[ManipulationResult]
	OnTransport Signal[ManipulationResult]
	OnPutDown   Signal[ManipulationResult]

	manip *ManipulatorMonitor
	sched timeutil.Scheduler
	self  *Entity

	state   State
	current *Entity
	querier SupportedByQuerier
	ticker  timeutil.Handle

	prevTime float64
	prevLoc  r3.Vec

	liftedOff  bool
	liftOffLoc r3.Vec

	movement []movementSample

	unsubscribe []func()
}

// NewPickAndPlaceMonitor returns a monitor fed by manip's grasps.
func NewPickAndPlaceMonitor(manip *ManipulatorMonitor, sched timeutil.Scheduler, cfg PickPlaceConfig) *PickAndPlaceMonitor {
	return &PickAndPlaceMonitor{
		Config:  cfg,
		Querier: DefaultQuerier,
		manip:   manip,
		sched:   sched,
	}
}

// Init requires an initialised sibling manipulator.
func (m *PickAndPlaceMonitor) Init() error {
	if m.isInit {
		return nil
	}
	if m.manip == nil || !m.manip.IsInit() {
		err := fmt.Errorf("pick-and-place monitor: %w", ErrNoSiblingManipulator)
		monitoring.Errorf("%v", err)
		return err
	}
	m.self = m.manip.Self()
	if m.Querier == nil {
		m.Querier = DefaultQuerier
	}
	m.isInit = true
	return nil
}

// Start subscribes to the manipulator's grasps.
func (m *PickAndPlaceMonitor) Start() {
	if !m.isInit || m.isStarted {
		return
	}
	m.unsubscribe = append(m.unsubscribe,
		m.manip.OnBeginGrasp.Subscribe(m.onGraspBegin),
		m.manip.OnEndGrasp.Subscribe(m.onGraspEnd),
	)
	m.isStarted = true
}

// Finish closes the current phase as if the grasp ended now.
func (m *PickAndPlaceMonitor) Finish(forced bool) {
	if !m.canFinish() {
		return
	}
	if m.current != nil {
		m.finishEpisode(m.sched.Now())
	}
	for _, unsub := range m.unsubscribe {
		unsub()
	}
	m.unsubscribe = nil
}

// CurrentState returns the phase of the tracked grasp.
func (m *PickAndPlaceMonitor) CurrentState() State { return m.state }

// Current returns the tracked object, or nil.
func (m *PickAndPlaceMonitor) Current() *Entity { return m.current }

func (m *PickAndPlaceMonitor) setState(s State) {
	monitoring.Debugf("[%.4f] pick-and-place %s: %s -> %s", m.sched.Now(), m.current, m.state, s)
	m.state = s
}

func (m *PickAndPlaceMonitor) emit(sig *Signal[ManipulationResult], start, end float64) {
	sig.Emit(ManipulationResult{Self: m.self, Other: m.current, Start: start, End: end})
}

func (m *PickAndPlaceMonitor) location() r3.Vec { return m.current.Actor.Location() }

func (m *PickAndPlaceMonitor) onGraspBegin(g GraspResult) {
	if m.current != nil {
		monitoring.Debugf("[%.4f] pick-and-place: already tracking %s, ignoring %s", g.Time, m.current, g.Other)
		return
	}
	q := m.Querier(g.Other.Actor)
	if q == nil {
		monitoring.Debugf("[%.4f] pick-and-place: %s has no contact monitor", g.Time, g.Other)
		return
	}
	if !q.IsSupportedBySomething() {
		return
	}
	m.current = g.Other
	m.querier = q
	m.prevTime = g.Time
	m.prevLoc = m.location()
	m.setState(StateSlide)
	m.ticker = m.sched.ScheduleEvery(m.Config.UpdateRate, m.update)
}

func (m *PickAndPlaceMonitor) onGraspEnd(g GraspEnd) {
	if m.current == nil || g.Other != m.current {
		return
	}
	m.finishEpisode(g.Time)
}

// finishEpisode closes the phase in progress at t. An unresolved transport is
// dropped since no put-down confirmed it.
func (m *PickAndPlaceMonitor) finishEpisode(t float64) {
	switch m.state {
	case StateSlide:
		m.emit(&m.OnSlide, m.prevTime, t)
	case StatePickUp:
		if m.liftedOff {
			m.emit(&m.OnPickUp, m.prevTime, t)
		}
	case StateTransportOrPutDown:
		monitoring.Debugf("[%.4f] pick-and-place %s: released mid transport, nothing emitted", t, m.current)
	}
	if m.ticker != 0 {
		m.sched.Cancel(m.ticker)
		m.ticker = 0
	}
	m.setState(StateNone)
	m.current = nil
	m.querier = nil
	m.liftedOff = false
	m.movement = m.movement[:0]
}

func (m *PickAndPlaceMonitor) update() {
	if m.current == nil {
		return
	}
	switch m.state {
	case StateSlide:
		m.updateSlide()
	case StatePickUp:
		m.updatePickUp()
	case StateTransportOrPutDown:
		m.updateTransport()
	}
}

func (m *PickAndPlaceMonitor) updateSlide() {
	if m.querier.IsSupportedBySomething() {
		return
	}
	now := m.sched.Now()
	cur := m.location()
	if world.DistXY(m.prevLoc, cur) > m.Config.MinSlideDistXY && now-m.prevTime > m.Config.MinSlideDuration {
		end := m.querier.LastSupportedByEndTime()
		m.emit(&m.OnSlide, m.prevTime, end)
		m.prevTime = end
		m.prevLoc = cur
	}
	m.liftedOff = false
	m.setState(StatePickUp)
}

func (m *PickAndPlaceMonitor) updatePickUp() {
	now := m.sched.Now()
	cur := m.location()
	if m.querier.IsSupportedBySomething() {
		if m.liftedOff {
			m.emit(&m.OnPickUp, m.prevTime, now)
		}
		m.prevTime = now
		m.prevLoc = cur
		m.setState(StateSlide)
		return
	}
	switch {
	case m.liftedOff:
		if cur.Z-m.liftOffLoc.Z > m.Config.MaxPickUpHeight || world.DistXY(m.liftOffLoc, cur) > m.Config.MaxPickUpDistXY {
			m.emit(&m.OnPickUp, m.prevTime, now)
			m.prevTime = now
			m.prevLoc = cur
			m.setState(StateTransportOrPutDown)
		}
	case cur.Z-m.prevLoc.Z > m.Config.MinPickUpHeight:
		m.liftedOff = true
		m.liftOffLoc = cur
	case world.DistXY(m.prevLoc, cur) > m.Config.MaxPickUpDistXY:
		// Moved away without lifting: repositioning, not a pick-up.
		m.setState(StateTransportOrPutDown)
	}
}

func (m *PickAndPlaceMonitor) updateTransport() {
	now := m.sched.Now()
	cur := m.location()
	if !m.querier.IsSupportedBySomething() {
		m.record(now, cur)
		return
	}

	if split, ok := m.putDownSplit(now, cur); ok {
		m.emit(&m.OnTransport, m.prevTime, split)
		m.emit(&m.OnPutDown, split, now)
	} else {
		m.emit(&m.OnTransport, m.prevTime, now)
	}
	m.movement = m.movement[:0]
	m.prevTime = now
	m.prevLoc = cur
	m.setState(StateSlide)
}

// record appends a sample and evicts the ones that are too old or over the
// size limit.
func (m *PickAndPlaceMonitor) record(now float64, loc r3.Vec) {
	m.movement = append(m.movement, movementSample{time: now, loc: loc})
	drop := 0
	for drop < len(m.movement) && now-m.movement[drop].time > m.Config.RecentMovementBufferDuration {
		drop++
	}
	if excess := len(m.movement) - drop - m.Config.RecentMovementBufferSize; excess > 0 {
		drop += excess
	}
	if drop > 0 {
		m.movement = append(m.movement[:0], m.movement[drop:]...)
	}
}

// putDownSplit backtracks through the recent movement for the instant the
// object started being lowered. It first looks, within the backtrack
// duration, for a sample clearly above the resting height; from there it
// keeps going back until the object was high or far enough to count as
// transport.
func (m *PickAndPlaceMonitor) putDownSplit(now float64, cur r3.Vec) (float64, bool) {
	if len(m.movement) == 0 {
		return 0, false
	}
	idx := len(m.movement) - 1
	dropped := false
	for ; idx > 0 && now-m.movement[idx].time < m.Config.PutDownMovementBacktrackDuration; idx-- {
		if m.movement[idx].loc.Z-cur.Z > m.Config.MinPutDownHeight {
			dropped = true
			break
		}
	}
	if !dropped {
		return 0, false
	}
	for ; idx > 0; idx-- {
		s := m.movement[idx]
		if s.loc.Z-cur.Z > m.Config.MaxPutDownHeight || world.DistXY(s.loc, cur) > m.Config.MaxPutDownDistXY {
			return s.time, true
		}
	}
	// Nothing crossed the thresholds: the oldest sample becomes the split.
	// Very short transports are reported as transport plus put-down.
	return m.movement[0].time, true
}
