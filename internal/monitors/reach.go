package monitors

import (
	"fmt"

	"github.com/banshee-data/semlog/internal/individual"
	"github.com/banshee-data/semlog/internal/monitoring"
	"github.com/banshee-data/semlog/internal/timeutil"
	"github.com/banshee-data/semlog/internal/world"
)

// reachCandidate tracks the start of the current approach towards one
// object: when the hand last stopped moving away from it, and how far it was
// at the last tick.
type reachCandidate struct {
	since  float64
	dist   float64
	shapes int
}

// ReachAndPreGraspMonitor segments the approach before a grasp into a reach
// (hand closing in on the object) and a pre-grasp (hand touching but not yet
// holding it). It listens to a capture sphere around the hand and to the
// sibling manipulator's contact and grasp signals.
type ReachAndPreGraspMonitor struct {
	lifecycle

	Sphere *world.Shape
	Config ReachConfig

	OnPreAndReach Signal[ReachResult]

	manip  *ManipulatorMonitor
	sched  timeutil.Scheduler
	lookup individual.Lookup
	self   *Entity

	candidates   map[*Entity]*reachCandidate
	contactTimes map[*Entity]float64
	grasped      map[*Entity]struct{}
	buffer       *JitterBuffer[*Entity]
	ticker       timeutil.Handle

	unbind      func()
	unsubscribe []func()
}

// NewReachAndPreGraspMonitor returns a monitor for the capture sphere of
// manip's owner.
func NewReachAndPreGraspMonitor(sphere *world.Shape, manip *ManipulatorMonitor, sched timeutil.Scheduler, cfg ReachConfig) *ReachAndPreGraspMonitor {
	return &ReachAndPreGraspMonitor{
		Sphere:       sphere,
		Config:       cfg,
		manip:        manip,
		sched:        sched,
		candidates:   make(map[*Entity]*reachCandidate),
		contactTimes: make(map[*Entity]float64),
		grasped:      make(map[*Entity]struct{}),
	}
}

// Init requires an initialised sibling manipulator on the same owner.
func (m *ReachAndPreGraspMonitor) Init(lookup individual.Lookup) error {
	if m.isInit {
		return nil
	}
	if m.manip == nil || !m.manip.IsInit() || m.manip.Owner != m.Sphere.Owner {
		err := fmt.Errorf("reach monitor %s: %w", m.Sphere.Name, ErrNoSiblingManipulator)
		monitoring.Errorf("%v", err)
		return err
	}
	if m.Sphere.Geometry.Kind != world.KindSphere {
		err := fmt.Errorf("reach monitor %s (%s): %w", m.Sphere.Name, m.Sphere.Geometry.Kind, ErrNoGeometry)
		monitoring.Errorf("%v", err)
		return err
	}
	m.self = m.manip.Self()
	m.lookup = lookup
	m.buffer = NewJitterBuffer(m.sched, m.Config.ContactWindow, m.Config.ContactWindow+m.Config.FlushDelay,
		m.contactEnded)
	m.Sphere.SetGenerateOverlapEvents(false)
	m.isInit = true
	return nil
}

// Start subscribes to the manipulator and to the capture sphere.
func (m *ReachAndPreGraspMonitor) Start() {
	if !m.isInit || m.isStarted {
		return
	}
	m.unsubscribe = append(m.unsubscribe,
		m.manip.OnBeginManipulatorContact.Subscribe(m.onContactBegin),
		m.manip.OnEndManipulatorContact.Subscribe(m.onContactEnd),
		m.manip.OnBeginGrasp.Subscribe(m.onGraspBegin),
		m.manip.OnEndGrasp.Subscribe(m.onGraspEnd),
	)
	m.unbind = m.Sphere.Bind(m.onSphereBegin, m.onSphereEnd)
	m.isStarted = true
	m.enableSphere()
}

// Finish stops tracking. Nothing is emitted; a reach only completes on grasp.
func (m *ReachAndPreGraspMonitor) Finish(forced bool) {
	if !m.canFinish() {
		return
	}
	m.stopTicker()
	m.buffer.Clear()
	clear(m.candidates)
	clear(m.contactTimes)
	if m.unbind != nil {
		m.unbind()
		m.unbind = nil
	}
	for _, unsub := range m.unsubscribe {
		unsub()
	}
	m.unsubscribe = nil
	m.Sphere.SetGenerateOverlapEvents(false)
}

// Candidates returns the objects currently inside the capture sphere.
func (m *ReachAndPreGraspMonitor) Candidates() []*Entity { return sortedEntities(m.candidates) }

// ReachStart returns the reference time of e, if e is a candidate.
func (m *ReachAndPreGraspMonitor) ReachStart(e *Entity) (float64, bool) {
	c, ok := m.candidates[e]
	if !ok {
		return 0, false
	}
	return c.since, true
}

// enableSphere turns overlap events back on. The world does not refire begins
// for objects already inside, so they are re-acquired from a snapshot.
func (m *ReachAndPreGraspMonitor) enableSphere() {
	m.Sphere.SetGenerateOverlapEvents(true)
	for _, o := range m.Sphere.Overlaps() {
		m.onSphereBegin(o)
	}
}

func (m *ReachAndPreGraspMonitor) candidate(s *world.Shape) *Entity {
	a := s.Owner
	if a == m.Sphere.Owner || s.Geometry.Kind != world.KindMesh || !a.Movable || a.IsSkeletal() {
		return nil
	}
	return m.lookup.Lookup(a)
}

func (m *ReachAndPreGraspMonitor) distance(e *Entity) float64 {
	return world.Distance(m.Sphere.Owner.Location(), e.Actor.Location())
}

func (m *ReachAndPreGraspMonitor) onSphereBegin(other *world.Shape) {
	e := m.candidate(other)
	if e == nil {
		return
	}
	if c, ok := m.candidates[e]; ok {
		c.shapes++
		return
	}
	m.candidates[e] = &reachCandidate{since: m.sched.Now(), dist: m.distance(e), shapes: 1}
	if !m.sched.IsScheduled(m.ticker) {
		m.ticker = m.sched.ScheduleEvery(m.Config.UpdateRate, m.update)
	}
}

func (m *ReachAndPreGraspMonitor) onSphereEnd(other *world.Shape) {
	e := m.candidate(other)
	if e == nil {
		return
	}
	c, ok := m.candidates[e]
	if !ok {
		return
	}
	if c.shapes > 1 {
		c.shapes--
		return
	}
	delete(m.candidates, e)
	if len(m.candidates) == 0 {
		m.stopTicker()
	}
}

// update keeps each candidate's reference time at the start of the current
// approach. Moving away by more than the noise floor restarts it.
func (m *ReachAndPreGraspMonitor) update() {
	now := m.sched.Now()
	for e, c := range m.candidates {
		d := m.distance(e)
		diff := c.dist - d
		switch {
		case diff > m.Config.MinMovement:
			c.dist = d
		case diff < -m.Config.MinMovement:
			c.since = now
			c.dist = d
		}
	}
}

func (m *ReachAndPreGraspMonitor) onContactBegin(r ContactResult) {
	if len(m.grasped) > 0 {
		return
	}
	if _, ok := m.candidates[r.Other]; !ok {
		return
	}
	if m.buffer.Begin(r.Other, r.Time) {
		m.contactTimes[r.Other] = r.Time
	}
}

func (m *ReachAndPreGraspMonitor) onContactEnd(r ContactEnd) {
	if len(m.grasped) > 0 {
		return
	}
	if _, ok := m.contactTimes[r.Other]; !ok {
		return
	}
	m.buffer.End(r.Other, r.Time)
}

// contactEnded runs once a contact end survived the window: the pre-grasp is
// over and the approach starts again from now.
func (m *ReachAndPreGraspMonitor) contactEnded(e *Entity, _ float64) {
	delete(m.contactTimes, e)
	if c, ok := m.candidates[e]; ok {
		c.since = m.sched.Now()
		c.dist = m.distance(e)
	}
}

func (m *ReachAndPreGraspMonitor) onGraspBegin(g GraspResult) {
	c, isCandidate := m.candidates[g.Other]
	ct, hasContact := m.contactTimes[g.Other]
	if isCandidate && hasContact {
		m.OnPreAndReach.Emit(ReachResult{
			Self:        m.self,
			Other:       g.Other,
			ReachStart:  c.since,
			ContactTime: ct,
			GraspTime:   g.Time,
		})
	} else {
		monitoring.Debugf("[%.4f] reach %s: grasp of %s without tracked approach (candidate=%t contact=%t)",
			g.Time, m.Sphere.Name, g.Other, isCandidate, hasContact)
	}

	m.grasped[g.Other] = struct{}{}
	clear(m.candidates)
	clear(m.contactTimes)
	m.stopTicker()
	m.buffer.Clear()
	m.Sphere.SetGenerateOverlapEvents(false)
}

func (m *ReachAndPreGraspMonitor) onGraspEnd(g GraspEnd) {
	if _, ok := m.grasped[g.Other]; !ok {
		return
	}
	delete(m.grasped, g.Other)
	if len(m.grasped) == 0 && m.isStarted {
		m.enableSphere()
	}
}

func (m *ReachAndPreGraspMonitor) stopTicker() {
	if m.ticker != 0 {
		m.sched.Cancel(m.ticker)
		m.ticker = 0
	}
}
