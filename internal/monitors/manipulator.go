package monitors

import (
	"fmt"

	"github.com/banshee-data/semlog/internal/individual"
	"github.com/banshee-data/semlog/internal/monitoring"
	"github.com/banshee-data/semlog/internal/timeutil"
	"github.com/banshee-data/semlog/internal/world"
)

// DefaultGraspType is reported until a grasp type is set.
const DefaultGraspType = "Default"

// ManipulatorMonitor aggregates bone monitors into grasps and manipulator
// contacts. An entity is grasped while at least one bone from each group
// touches it.
type ManipulatorMonitor struct {
	lifecycle

	Owner  *world.Actor
	Bones  []*BoneContactMonitor
	Config ManipulatorConfig

	OnBeginGrasp              Signal[GraspResult]
	OnEndGrasp                Signal[GraspEnd]
	OnBeginManipulatorContact Signal[ContactResult]
	OnEndManipulatorContact   Signal[ContactEnd]

	world  *world.World
	sched  timeutil.Scheduler
	self   *Entity
	helper *GraspHelper

	detectGrasps   bool
	detectContacts bool
	paused         bool
	graspType      string

	groupA      map[*Entity]int
	groupB      map[*Entity]int
	grasped     map[*Entity]struct{}
	numContacts map[*Entity]int

	graspBuffer   *JitterBuffer[*Entity]
	contactBuffer *JitterBuffer[*Entity]
	unsubscribe   []func()
}

// NewManipulatorMonitor returns a monitor for owner built from bones.
func NewManipulatorMonitor(w *world.World, owner *world.Actor, sched timeutil.Scheduler, cfg ManipulatorConfig, bones ...*BoneContactMonitor) *ManipulatorMonitor {
	return &ManipulatorMonitor{
		Owner:       owner,
		Bones:       bones,
		Config:      cfg,
		world:       w,
		sched:       sched,
		graspType:   cfg.GraspType,
		groupA:      make(map[*Entity]int),
		groupB:      make(map[*Entity]int),
		grasped:     make(map[*Entity]struct{}),
		numContacts: make(map[*Entity]int),
	}
}

// Self returns the annotated owner, or nil before Init.
func (m *ManipulatorMonitor) Self() *Entity { return m.self }

// Init validates the owner and initialises every bone. A group without bones
// disables grasp detection; bones that fail to initialise are dropped.
func (m *ManipulatorMonitor) Init(lookup individual.Lookup, grasps, contacts bool) error {
	if m.isInit {
		return nil
	}
	m.self = lookup.Lookup(m.Owner)
	if m.self == nil {
		err := fmt.Errorf("manipulator %s: %w", m.Owner.Name, ErrNotAnnotated)
		monitoring.Errorf("%v", err)
		return err
	}
	if len(m.Bones) == 0 {
		err := fmt.Errorf("manipulator %s: %w", m.Owner.Name, ErrNoBones)
		monitoring.Errorf("%v", err)
		return err
	}

	var nA, nB int
	for _, b := range m.Bones {
		if b.Group == GroupA {
			nA++
		} else {
			nB++
		}
	}
	if grasps && (nA == 0 || nB == 0) {
		monitoring.Warnf("manipulator %s: group A has %d bones, group B has %d; grasp detection disabled",
			m.Owner.Name, nA, nB)
		grasps = false
	}
	if !grasps && !contacts {
		err := fmt.Errorf("manipulator %s: nothing to detect: %w", m.Owner.Name, ErrNoBones)
		monitoring.Errorf("%v", err)
		return err
	}
	m.detectGrasps = grasps
	m.detectContacts = contacts

	m.graspType = m.Config.GraspType
	if m.graspType == "" {
		m.graspType = DefaultGraspType
	}
	if grasps && m.Config.Helper.Enabled {
		h, err := NewGraspHelper(m.world, m.Owner, m.Config.Helper)
		if err != nil {
			monitoring.Errorf("manipulator %s: grasp helper disabled: %v", m.Owner.Name, err)
		} else {
			m.helper = h
		}
	}

	ready := m.Bones[:0]
	for _, b := range m.Bones {
		if err := b.Init(lookup, grasps, contacts); err != nil {
			continue
		}
		ready = append(ready, b)
	}
	m.Bones = ready
	if len(m.Bones) == 0 {
		return fmt.Errorf("manipulator %s: no bone initialised: %w", m.Owner.Name, ErrNoBones)
	}

	m.graspBuffer = NewJitterBuffer(m.sched, m.Config.GraspWindow, m.Config.GraspWindow+m.Config.FlushDelay,
		func(e *Entity, t float64) {
			m.OnEndGrasp.Emit(GraspEnd{Self: m.self, Other: e, Time: t})
			if m.helper != nil && m.helper.Item() == e.Actor {
				m.helper.Stop()
			}
		})
	m.contactBuffer = NewJitterBuffer(m.sched, m.Config.ContactWindow, m.Config.ContactWindow+m.Config.FlushDelay,
		func(e *Entity, t float64) {
			m.OnEndManipulatorContact.Emit(ContactEnd{Self: m.self, Other: e, Time: t})
		})

	m.isInit = true
	monitoring.Logf("manipulator %s initialised with %d bones", m.Owner.Name, len(m.Bones))
	return nil
}

// Start subscribes to the bones and starts them.
func (m *ManipulatorMonitor) Start() {
	if !m.isInit || m.isStarted {
		return
	}
	for _, b := range m.Bones {
		b := b
		if m.detectContacts {
			m.unsubscribe = append(m.unsubscribe,
				b.OnBeginContact.Subscribe(m.onBoneContactBegin),
				b.OnEndContact.Subscribe(m.onBoneContactEnd))
		}
		if m.detectGrasps {
			m.unsubscribe = append(m.unsubscribe,
				b.OnBeginGraspContact.Subscribe(func(c BoneContact) { m.onGraspContactBegin(b.Group, c) }),
				b.OnEndGraspContact.Subscribe(func(c BoneContact) { m.onGraspContactEnd(b.Group, c) }))
		}
		b.Start()
	}
	m.isStarted = true
}

// SetGraspType changes the type reported with subsequent grasps.
func (m *ManipulatorMonitor) SetGraspType(t string) {
	if t == "" {
		t = DefaultGraspType
	}
	m.graspType = t
}

// SetInputAxis feeds the grasp input. With AutoPauseOnInput, values below
// the threshold pause grasp detection and values at or above resume it.
func (m *ManipulatorMonitor) SetInputAxis(v float64) {
	if !m.Config.AutoPauseOnInput || !m.detectGrasps {
		return
	}
	m.PauseGraspDetection(v < m.Config.InputAxisThreshold)
}

// PauseGraspDetection forwards to every bone. Pausing ends every grasp.
func (m *ManipulatorMonitor) PauseGraspDetection(pause bool) {
	if pause == m.paused {
		return
	}
	m.paused = pause
	for _, b := range m.Bones {
		b.PauseGraspDetection(pause)
	}
	if !pause {
		return
	}
	now := m.sched.Now()
	for _, e := range sortedEntities(m.grasped) {
		m.OnEndGrasp.Emit(GraspEnd{Self: m.self, Other: e, Time: now})
	}
	if m.helper != nil {
		m.helper.Stop()
	}
	clear(m.grasped)
	clear(m.groupA)
	clear(m.groupB)
}

// IsGraspDetectionPaused reports the pause flag.
func (m *ManipulatorMonitor) IsGraspDetectionPaused() bool { return m.paused }

// IsGrasped reports whether e is currently held.
func (m *ManipulatorMonitor) IsGrasped(e *Entity) bool {
	_, ok := m.grasped[e]
	return ok
}

// GroupContacts returns how many bones of g touch e.
func (m *ManipulatorMonitor) GroupContacts(g BoneGroup, e *Entity) int {
	if g == GroupA {
		return m.groupA[e]
	}
	return m.groupB[e]
}

// Helper returns the grasp helper, or nil when disabled.
func (m *ManipulatorMonitor) Helper() *GraspHelper { return m.helper }

// Finish finishes the bones, then publishes pending grasp ends, then pending
// contact ends.
func (m *ManipulatorMonitor) Finish(forced bool) {
	if !m.canFinish() {
		return
	}
	for _, b := range m.Bones {
		b.Finish(forced)
	}
	m.graspBuffer.FlushAll()
	m.contactBuffer.FlushAll()

	// Anything still grasped lost its bone contacts without a matching end.
	now := m.sched.Now()
	for _, e := range sortedEntities(m.grasped) {
		m.OnEndGrasp.Emit(GraspEnd{Self: m.self, Other: e, Time: now})
	}
	clear(m.grasped)
	if m.helper != nil {
		m.helper.Stop()
	}
	for _, unsub := range m.unsubscribe {
		unsub()
	}
	m.unsubscribe = nil
	monitoring.Logf("manipulator %s finished at %.4fs", m.Owner.Name, now)
}

func (m *ManipulatorMonitor) groups(g BoneGroup) (mine, other map[*Entity]int) {
	if g == GroupA {
		return m.groupA, m.groupB
	}
	return m.groupB, m.groupA
}

func (m *ManipulatorMonitor) onGraspContactBegin(g BoneGroup, c BoneContact) {
	mine, other := m.groups(g)
	if n, ok := mine[c.Other]; ok {
		mine[c.Other] = n + 1
		return
	}
	mine[c.Other] = 1
	if m.IsGrasped(c.Other) {
		return
	}
	if other[c.Other] > 0 {
		m.graspStarted(c.Other)
	}
}

func (m *ManipulatorMonitor) onGraspContactEnd(g BoneGroup, c BoneContact) {
	mine, other := m.groups(g)
	n, ok := mine[c.Other]
	if !ok {
		monitoring.Errorf("[%.4f] manipulator %s: group %s has no contact with %s",
			m.sched.Now(), m.Owner.Name, g, c.Other)
		return
	}
	if n > 1 {
		mine[c.Other] = n - 1
		return
	}
	delete(mine, c.Other)
	if _, ok := other[c.Other]; !ok {
		return
	}
	if !m.IsGrasped(c.Other) {
		monitoring.Errorf("[%.4f] manipulator %s: %s touched by both groups but not grasped",
			m.sched.Now(), m.Owner.Name, c.Other)
		return
	}
	m.graspEnded(c.Other, c.Time)
}

func (m *ManipulatorMonitor) graspStarted(e *Entity) {
	now := m.sched.Now()
	m.grasped[e] = struct{}{}
	if !m.graspBuffer.Begin(e, now) {
		monitoring.Debugf("[%.4f] manipulator %s: grasp of %s concatenated", now, m.Owner.Name, e)
		// Pausing releases the helper while the grasp end is still pending.
		if m.helper != nil && !m.helper.IsActive() {
			m.helper.Start(e.Actor)
		}
		return
	}
	m.OnBeginGrasp.Emit(GraspResult{Self: m.self, Other: e, Time: now, GraspType: m.graspType})
	if m.helper != nil {
		m.helper.Start(e.Actor)
	}
}

func (m *ManipulatorMonitor) graspEnded(e *Entity, t float64) {
	delete(m.grasped, e)
	m.graspBuffer.End(e, t)
}

func (m *ManipulatorMonitor) onBoneContactBegin(c BoneContact) {
	if n, ok := m.numContacts[c.Other]; ok {
		m.numContacts[c.Other] = n + 1
		return
	}
	m.numContacts[c.Other] = 1
	now := m.sched.Now()
	if m.contactBuffer.Begin(c.Other, now) {
		m.OnBeginManipulatorContact.Emit(ContactResult{Self: m.self, Other: c.Other, Time: now})
	}
}

func (m *ManipulatorMonitor) onBoneContactEnd(c BoneContact) {
	n, ok := m.numContacts[c.Other]
	if !ok {
		monitoring.Errorf("[%.4f] manipulator %s: no contact with %s to end",
			m.sched.Now(), m.Owner.Name, c.Other)
		return
	}
	if n > 1 {
		m.numContacts[c.Other] = n - 1
		return
	}
	delete(m.numContacts, c.Other)
	m.contactBuffer.End(c.Other, c.Time)
}
