package monitors

import (
	"fmt"
	"slices"
	"sort"

	"github.com/banshee-data/semlog/internal/individual"
	"github.com/banshee-data/semlog/internal/monitoring"
	"github.com/banshee-data/semlog/internal/timeutil"
	"github.com/banshee-data/semlog/internal/world"
)

// BoneGroup is the side of the hand a bone belongs to. A grasp needs contact
// from both groups.
type BoneGroup int

const (
	GroupA BoneGroup = iota
	GroupB
)

func (g BoneGroup) String() string {
	if g == GroupB {
		return "B"
	}
	return "A"
}

// BoneContactMonitor watches one skeletal bone. It has two channels: grasp
// contacts, which can be paused, and plain contacts, which cannot.
type BoneContactMonitor struct {
	lifecycle

	Shape      *world.Shape
	Bone       string
	Group      BoneGroup
	IgnoreList []string // actor names never treated as candidates
	Config     BoneConfig

	OnBeginGraspContact Signal[BoneContact]
	OnEndGraspContact   Signal[BoneContact]
	OnBeginContact      Signal[BoneContact]
	OnEndContact        Signal[BoneContact]

	sched  timeutil.Scheduler
	lookup individual.Lookup

	detectGrasps   bool
	detectContacts bool
	paused         bool

	graspBuffer   *JitterBuffer[*Entity]
	contactBuffer *JitterBuffer[*Entity]
	// Overlapping shapes per entity. An entity with several meshes is one
	// contact until its last shape separates.
	activeGrasp   map[*Entity]int
	activeContact map[*Entity]int

	unbindGrasp   func()
	unbindContact func()
}

// NewBoneContactMonitor returns a monitor for bone on shape's skeletal owner.
func NewBoneContactMonitor(shape *world.Shape, bone string, group BoneGroup, sched timeutil.Scheduler, cfg BoneConfig) *BoneContactMonitor {
	m := &BoneContactMonitor{
		Shape:         shape,
		Bone:          bone,
		Group:         group,
		Config:        cfg,
		sched:         sched,
		activeGrasp:   make(map[*Entity]int),
		activeContact: make(map[*Entity]int),
	}
	shape.Component = m
	return m
}

// Init binds the requested channels. Overlap events stay off until Start.
func (m *BoneContactMonitor) Init(lookup individual.Lookup, grasps, contacts bool) error {
	if m.isInit {
		return nil
	}
	if !grasps && !contacts {
		return nil
	}
	if !m.Shape.Owner.HasBone(m.Bone) {
		err := fmt.Errorf("bone monitor %s: %q on %s: %w", m.Shape.Name, m.Bone, m.Shape.Owner.Name, ErrBoneNotFound)
		monitoring.Errorf("%v", err)
		return err
	}
	m.lookup = lookup
	m.detectGrasps = grasps
	m.detectContacts = contacts

	delay := m.Config.ConcatenateWindow * m.Config.FlushMultiplier
	m.graspBuffer = NewJitterBuffer(m.sched, m.Config.ConcatenateWindow, delay, func(e *Entity, t float64) {
		m.OnEndGraspContact.Emit(BoneContact{Other: e, Bone: m.Bone, Time: t})
	})
	m.contactBuffer = NewJitterBuffer(m.sched, m.Config.ConcatenateWindow, delay, func(e *Entity, t float64) {
		m.OnEndContact.Emit(BoneContact{Other: e, Bone: m.Bone, Time: t})
	})

	m.Shape.SetGenerateOverlapEvents(false)
	if m.detectGrasps && !m.paused {
		m.bindGrasp()
	}
	if m.detectContacts {
		m.unbindContact = m.Shape.Bind(m.onContactBegin, m.onContactEnd)
	}
	m.isInit = true
	return nil
}

// Start enables overlap events.
func (m *BoneContactMonitor) Start() {
	if !m.isInit || m.isStarted {
		return
	}
	m.Shape.SetGenerateOverlapEvents(true)
	m.isStarted = true
}

// PauseGraspDetection stops or resumes the grasp channel. Pausing ends every
// active grasp contact immediately; resuming re-reports current overlaps.
func (m *BoneContactMonitor) PauseGraspDetection(pause bool) {
	if pause == m.paused {
		return
	}
	m.paused = pause
	if !m.detectGrasps || m.graspBuffer == nil {
		return
	}
	now := m.sched.Now()
	if pause {
		monitoring.Debugf("[%.4f] bone %s: pausing grasp detection", now, m.Bone)
		m.graspBuffer.FlushAll()
		for _, e := range sortedEntities(m.activeGrasp) {
			m.OnEndGraspContact.Emit(BoneContact{Other: e, Bone: m.Bone, Time: now})
		}
		clear(m.activeGrasp)
		if m.unbindGrasp != nil {
			m.unbindGrasp()
			m.unbindGrasp = nil
		}
		return
	}
	monitoring.Debugf("[%.4f] bone %s: resuming grasp detection", now, m.Bone)
	for _, o := range m.Shape.Overlaps() {
		m.onGraspBegin(o)
	}
	m.bindGrasp()
}

// IsGraspDetectionPaused reports the pause flag.
func (m *BoneContactMonitor) IsGraspDetectionPaused() bool { return m.paused }

// ActiveGraspContacts returns the entities touching the grasp channel.
func (m *BoneContactMonitor) ActiveGraspContacts() []*Entity { return sortedEntities(m.activeGrasp) }

// Finish publishes pending ends, then ends every active contact on both
// channels at the current time.
func (m *BoneContactMonitor) Finish(forced bool) {
	if !m.canFinish() {
		return
	}
	now := m.sched.Now()
	m.graspBuffer.FlushAll()
	m.contactBuffer.FlushAll()
	for _, e := range sortedEntities(m.activeGrasp) {
		m.OnEndGraspContact.Emit(BoneContact{Other: e, Bone: m.Bone, Time: now})
	}
	clear(m.activeGrasp)
	for _, e := range sortedEntities(m.activeContact) {
		m.OnEndContact.Emit(BoneContact{Other: e, Bone: m.Bone, Time: now})
	}
	clear(m.activeContact)

	if m.unbindGrasp != nil {
		m.unbindGrasp()
		m.unbindGrasp = nil
	}
	if m.unbindContact != nil {
		m.unbindContact()
		m.unbindContact = nil
	}
	m.Shape.SetGenerateOverlapEvents(false)
}

func (m *BoneContactMonitor) bindGrasp() {
	if m.unbindGrasp != nil {
		monitoring.Errorf("[%.4f] bone %s: grasp callbacks already bound", m.sched.Now(), m.Bone)
		return
	}
	m.unbindGrasp = m.Shape.Bind(m.onGraspBegin, m.onGraspEnd)
}

// candidate resolves the entity behind other. Only movable, non-skeletal
// meshes outside the ignore list qualify.
func (m *BoneContactMonitor) candidate(other *world.Shape) *Entity {
	a := other.Owner
	if a == m.Shape.Owner || other.Geometry.Kind != world.KindMesh {
		return nil
	}
	if !a.Movable || a.IsSkeletal() || slices.Contains(m.IgnoreList, a.Name) {
		return nil
	}
	return m.lookup.Lookup(a)
}

func (m *BoneContactMonitor) onGraspBegin(other *world.Shape) {
	if e := m.candidate(other); e != nil && m.overlapBegan(m.activeGrasp, e) {
		now := m.sched.Now()
		if m.graspBuffer.Begin(e, now) {
			m.OnBeginGraspContact.Emit(BoneContact{Other: e, Bone: m.Bone, Time: now})
		}
	}
}

func (m *BoneContactMonitor) onGraspEnd(other *world.Shape) {
	if e := m.candidate(other); e != nil && m.overlapEnded(m.activeGrasp, e, "grasp contact") {
		m.graspBuffer.End(e, m.sched.Now())
	}
}

func (m *BoneContactMonitor) onContactBegin(other *world.Shape) {
	if e := m.candidate(other); e != nil && m.overlapBegan(m.activeContact, e) {
		now := m.sched.Now()
		if m.contactBuffer.Begin(e, now) {
			m.OnBeginContact.Emit(BoneContact{Other: e, Bone: m.Bone, Time: now})
		}
	}
}

func (m *BoneContactMonitor) onContactEnd(other *world.Shape) {
	if e := m.candidate(other); e != nil && m.overlapEnded(m.activeContact, e, "contact") {
		m.contactBuffer.End(e, m.sched.Now())
	}
}

// overlapBegan counts one more shape of e and reports whether it is the
// first.
func (m *BoneContactMonitor) overlapBegan(active map[*Entity]int, e *Entity) bool {
	active[e]++
	return active[e] == 1
}

// overlapEnded counts one shape of e less and reports whether it was the
// last.
func (m *BoneContactMonitor) overlapEnded(active map[*Entity]int, e *Entity, what string) bool {
	n, ok := active[e]
	if !ok {
		monitoring.Errorf("[%.4f] bone %s: %s with %s is not registered", m.sched.Now(), m.Bone, what, e)
		return false
	}
	if n > 1 {
		active[e] = n - 1
		return false
	}
	delete(active, e)
	return true
}

func sortedEntities[V any](set map[*Entity]V) []*Entity {
	out := make([]*Entity, 0, len(set))
	for e := range set {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
