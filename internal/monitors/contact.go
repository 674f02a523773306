package monitors

import (
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/banshee-data/semlog/internal/individual"
	"github.com/banshee-data/semlog/internal/monitoring"
	"github.com/banshee-data/semlog/internal/pairing"
	"github.com/banshee-data/semlog/internal/timeutil"
	"github.com/banshee-data/semlog/internal/world"
)

// SupportedByQuerier is what the pick-and-place monitor needs from the
// grasped object.
type SupportedByQuerier interface {
	IsSupportedBySomething() bool
	LastSupportedByEndTime() float64
}

// contactKey identifies one side of an overlap. Two shapes of the same
// entity are tracked separately.
type contactKey struct {
	other *Entity
	shape *world.Shape
}

type supportCandidate struct {
	key            contactKey
	otherIsContact bool
}

// ContactMonitor tracks contacts between the annotated owner of a Box or
// Sphere volume and other annotated actors. When two contact volumes touch,
// only the side with the larger entity id emits.
type ContactMonitor struct {
	lifecycle

	Shape  *world.Shape
	Config ContactConfig

	OnBeginContact     Signal[ContactResult]
	OnEndContact       Signal[ContactEnd]
	OnBeginSupportedBy Signal[SupportedByResult]
	OnEndSupportedBy   Signal[SupportedByEnd]

	sched  timeutil.Scheduler
	lookup individual.Lookup
	owner  *Entity
	buffer *JitterBuffer[contactKey]
	unbind func()

	active       map[contactKey]struct{}
	candidates   []supportCandidate
	supportTimer timeutil.Handle
	supportedBy  map[uint64]struct{}
	prevSupEnd   float64
}

// NewContactMonitor attaches a monitor to shape. The shape's Component is set
// so that other monitors can recognise it as a contact volume.
func NewContactMonitor(shape *world.Shape, sched timeutil.Scheduler, cfg ContactConfig) *ContactMonitor {
	m := &ContactMonitor{
		Shape:       shape,
		Config:      cfg,
		sched:       sched,
		active:      make(map[contactKey]struct{}),
		supportedBy: make(map[uint64]struct{}),
	}
	shape.Component = m
	return m
}

// ContactMonitorOf returns the first contact monitor attached to one of a's
// shapes, or nil.
func ContactMonitorOf(a *world.Actor) *ContactMonitor {
	if a == nil {
		return nil
	}
	for _, s := range a.Shapes() {
		if m, ok := s.Component.(*ContactMonitor); ok {
			return m
		}
	}
	return nil
}

// Owner returns the annotated owner, or nil before Init.
func (m *ContactMonitor) Owner() *Entity { return m.owner }

// Init checks that the owner is annotated and the shape is a contact volume.
func (m *ContactMonitor) Init(lookup individual.Lookup) error {
	if m.isInit {
		return nil
	}
	m.owner = lookup.Lookup(m.Shape.Owner)
	if m.owner == nil {
		err := fmt.Errorf("contact monitor %s: %w", m.Shape.Name, ErrNotAnnotated)
		monitoring.Errorf("%v", err)
		return err
	}
	if !m.Shape.Geometry.IsContactVolume() || !m.Shape.Geometry.Valid() {
		err := fmt.Errorf("contact monitor %s (%s): %w", m.Shape.Name, m.Shape.Geometry.Kind, ErrNoGeometry)
		monitoring.Errorf("%v", err)
		return err
	}
	m.lookup = lookup
	m.buffer = NewJitterBuffer(m.sched, m.Config.ConcatenateWindow,
		m.Config.ConcatenateWindow+m.Config.FlushDelay, m.publishEnd)
	m.Shape.SetGenerateOverlapEvents(false)
	m.isInit = true
	return nil
}

// Start enables overlap events and reports overlaps that already exist.
func (m *ContactMonitor) Start() {
	if !m.isInit || m.isStarted {
		return
	}
	m.unbind = m.Shape.Bind(m.onOverlapBegin, m.onOverlapEnd)
	m.Shape.SetGenerateOverlapEvents(true)
	m.isStarted = true
	for _, o := range m.Shape.Overlaps() {
		m.onOverlapBegin(o)
	}
}

// Finish publishes pending ends, then ends every contact still active at the
// current time.
func (m *ContactMonitor) Finish(forced bool) {
	if !m.canFinish() {
		return
	}
	m.buffer.FlushAll()

	now := m.sched.Now()
	keys := make([]contactKey, 0, len(m.active))
	for k := range m.active {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].other.ID < keys[j].other.ID })
	for _, k := range keys {
		delete(m.active, k)
		m.publishEnd(k, now)
	}

	m.stopSupportTimer()
	if m.unbind != nil {
		m.unbind()
		m.unbind = nil
	}
	m.Shape.SetGenerateOverlapEvents(false)
	monitoring.Debugf("[%.4f] contact monitor %s finished (forced=%t)", now, m.Shape.Name, forced)
}

// IsSupportedBySomething reports whether the owner currently rests on
// another entity.
func (m *ContactMonitor) IsSupportedBySomething() bool { return len(m.supportedBy) > 0 }

// LastSupportedByEndTime returns when the last supported-by relation
// involving the owner ended.
func (m *ContactMonitor) LastSupportedByEndTime() float64 { return m.prevSupEnd }

// markSupported records that the owner rests on something, as detected by
// the monitor on the other side of the pair.
func (m *ContactMonitor) markSupported(pairID uint64) {
	m.supportedBy[pairID] = struct{}{}
}

// classify resolves the other side of an overlap. ok is false for shapes the
// monitor does not care about.
func (m *ContactMonitor) classify(other *world.Shape) (key contactKey, otherIsContact, ok bool) {
	if other.Owner == m.Shape.Owner {
		return contactKey{}, false, false
	}
	ent := m.lookup.Lookup(other.Owner)
	if ent == nil {
		return contactKey{}, false, false
	}
	switch {
	case other.Geometry.Kind == world.KindMesh:
		return contactKey{other: ent, shape: other}, false, true
	case isContactShape(other):
		return contactKey{other: ent, shape: other}, true, true
	}
	return contactKey{}, false, false
}

func isContactShape(s *world.Shape) bool {
	_, ok := s.Component.(*ContactMonitor)
	return ok
}

// emits reports whether this side publishes events for key.
func (m *ContactMonitor) emits(key contactKey, otherIsContact bool) bool {
	return !otherIsContact || key.other.ID < m.owner.ID
}

func (m *ContactMonitor) onOverlapBegin(other *world.Shape) {
	key, otherIsContact, ok := m.classify(other)
	if !ok {
		return
	}
	now := m.sched.Now()
	if _, dup := m.active[key]; dup {
		monitoring.Errorf("[%.4f] contact monitor %s: %s already active", now, m.Shape.Name, key.other)
		return
	}
	m.active[key] = struct{}{}
	if !m.buffer.Begin(key, now) {
		monitoring.Debugf("[%.4f] contact %s->%s concatenated", now, m.owner, key.other)
		return
	}
	if !m.emits(key, otherIsContact) {
		return
	}
	m.OnBeginContact.Emit(ContactResult{
		Self:                m.owner,
		Other:               key.other,
		Time:                now,
		OtherIsContactShape: otherIsContact,
	})
	if m.Config.LogSupportedBy {
		m.candidates = append(m.candidates, supportCandidate{key: key, otherIsContact: otherIsContact})
		if !m.sched.IsScheduled(m.supportTimer) {
			m.supportTimer = m.sched.ScheduleEvery(m.Config.SupportedByUpdateRate, m.checkSupportedBy)
		}
	}
}

func (m *ContactMonitor) onOverlapEnd(other *world.Shape) {
	key, _, ok := m.classify(other)
	if !ok {
		return
	}
	now := m.sched.Now()
	if _, found := m.active[key]; !found {
		monitoring.Errorf("[%.4f] contact monitor %s: ending %s which is not active", now, m.Shape.Name, key.other)
		return
	}
	delete(m.active, key)
	m.buffer.End(key, now)
}

// publishEnd runs once a contact end survived the jitter window.
func (m *ContactMonitor) publishEnd(key contactKey, t float64) {
	otherIsContact := isContactShape(key.shape)
	emits := m.emits(key, otherIsContact)
	if emits {
		m.OnEndContact.Emit(ContactEnd{Self: m.owner, Other: key.other, Time: t})
	}
	if !m.Config.LogSupportedBy {
		return
	}
	if m.removeCandidate(key) {
		return
	}

	p1 := pairing.Cantor(m.owner.ID, key.other.ID)
	p2 := pairing.Cantor(key.other.ID, m.owner.ID)
	_, had1 := m.supportedBy[p1]
	_, had2 := m.supportedBy[p2]
	delete(m.supportedBy, p1)
	delete(m.supportedBy, p2)

	if emits {
		m.OnEndSupportedBy.Emit(SupportedByEnd{PairID1: p1, PairID2: p2, Time: t})
		m.prevSupEnd = t
	} else if had1 || had2 {
		m.prevSupEnd = t
	}
}

func (m *ContactMonitor) removeCandidate(key contactKey) bool {
	i := slices.IndexFunc(m.candidates, func(c supportCandidate) bool { return c.key == key })
	if i < 0 {
		return false
	}
	m.candidates = slices.Delete(m.candidates, i, i+1)
	if len(m.candidates) == 0 {
		m.stopSupportTimer()
	}
	return true
}

// checkSupportedBy promotes candidates whose vertical speed matches the
// owner's to supported-by relations.
func (m *ContactMonitor) checkSupportedBy() {
	now := m.sched.Now()
	self := m.Shape.Owner
	kept := m.candidates[:0]
	var promoted []supportCandidate
	for _, c := range m.candidates {
		other := c.key.shape.Owner
		rel := math.Abs(self.Velocity().Z - other.Velocity().Z)
		if rel < m.Config.SupportedByMaxVertSpeed {
			promoted = append(promoted, c)
		} else {
			kept = append(kept, c)
		}
	}
	m.candidates = kept
	if len(m.candidates) == 0 {
		m.stopSupportTimer()
	}

	for _, c := range promoted {
		supported, supporting := m.owner, c.key.other
		if c.otherIsContact && self.Location().Z <= c.key.shape.Owner.Location().Z {
			supported, supporting = c.key.other, m.owner
		}
		pairID := pairing.Cantor(supported.ID, supporting.ID)
		if supported == m.owner {
			m.supportedBy[pairID] = struct{}{}
		} else if om, ok := c.key.shape.Component.(*ContactMonitor); ok {
			om.markSupported(pairID)
		}
		m.OnBeginSupportedBy.Emit(SupportedByResult{
			Supported:  supported,
			Supporting: supporting,
			Time:       now,
			PairID:     pairID,
		})
	}
}

func (m *ContactMonitor) stopSupportTimer() {
	if m.supportTimer != 0 {
		m.sched.Cancel(m.supportTimer)
		m.supportTimer = 0
	}
}
