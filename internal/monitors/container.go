package monitors

import (
	"fmt"
	"sort"

	"github.com/banshee-data/semlog/internal/individual"
	"github.com/banshee-data/semlog/internal/monitoring"
	"github.com/banshee-data/semlog/internal/world"
)

type containerGrasp struct {
	start      float64
	containers map[*Entity]float64 // distance at grasp begin
}

// ContainerMonitor detects drawers, doors and lids opened or closed by
// moving a grasped handle that is physically linked to them.
type ContainerMonitor struct {
	lifecycle

	Config ContainerConfig

	OnContainerManipulation Signal[ContainerResult]

	world  *world.World
	manip  *ManipulatorMonitor
	lookup individual.Lookup
	self   *Entity

	active      map[*Entity]*containerGrasp
	unsubscribe []func()
}

// NewContainerMonitor returns a monitor fed by manip's grasps.
func NewContainerMonitor(w *world.World, manip *ManipulatorMonitor, cfg ContainerConfig) *ContainerMonitor {
	return &ContainerMonitor{
		Config: cfg,
		world:  w,
		manip:  manip,
		active: make(map[*Entity]*containerGrasp),
	}
}

// Init requires an initialised sibling manipulator.
func (m *ContainerMonitor) Init(lookup individual.Lookup) error {
	if m.isInit {
		return nil
	}
	if m.manip == nil || !m.manip.IsInit() {
		err := fmt.Errorf("container monitor: %w", ErrNoSiblingManipulator)
		monitoring.Errorf("%v", err)
		return err
	}
	m.self = m.manip.Self()
	m.lookup = lookup
	m.isInit = true
	return nil
}

// Start subscribes to the manipulator's grasps.
func (m *ContainerMonitor) Start() {
	if !m.isInit || m.isStarted {
		return
	}
	m.unsubscribe = append(m.unsubscribe,
		m.manip.OnBeginGrasp.Subscribe(m.onGraspBegin),
		m.manip.OnEndGrasp.Subscribe(func(g GraspEnd) { m.graspEnded(g.Other, g.Time) }),
	)
	m.isStarted = true
}

// Finish ends every active grasp at the current time.
func (m *ContainerMonitor) Finish(forced bool) {
	if !m.canFinish() {
		return
	}
	now := m.world.Now()
	for _, e := range sortedEntities(m.active) {
		m.graspEnded(e, now)
	}
	for _, unsub := range m.unsubscribe {
		unsub()
	}
	m.unsubscribe = nil
}

// Containers returns the containers linked to e for its current grasp.
func (m *ContainerMonitor) Containers(e *Entity) []*Entity {
	g, ok := m.active[e]
	if !ok {
		return nil
	}
	return sortedEntities(g.containers)
}

func (m *ContainerMonitor) onGraspBegin(g GraspResult) {
	item := g.Other.Actor
	found := m.linkedContainers(item)
	if len(found) == 0 {
		return
	}
	cg := &containerGrasp{start: g.Time, containers: make(map[*Entity]float64, len(found))}
	for _, c := range found {
		cg.containers[c] = world.Distance(item.Location(), c.Actor.Location())
	}
	m.active[g.Other] = cg
}

func (m *ContainerMonitor) graspEnded(e *Entity, t float64) {
	cg, ok := m.active[e]
	if !ok {
		return
	}
	delete(m.active, e)
	for _, c := range sortedEntities(cg.containers) {
		diff := world.Distance(e.Actor.Location(), c.Actor.Location()) - cg.containers[c]
		var typ string
		switch {
		case diff > m.Config.MinDistance:
			typ = ContainerOpen
		case diff < -m.Config.MinDistance:
			typ = ContainerClose
		default:
			continue
		}
		m.OnContainerManipulation.Emit(ContainerResult{
			Self:      m.self,
			Container: c,
			Start:     cg.start,
			End:       t,
			Type:      typ,
		})
	}
}

// linkedContainers walks from item up to its outermost attach parent, takes
// every actor one constraint hop away from that subtree, and collects the
// annotated container-tagged actors in their attachment trees.
func (m *ContainerMonitor) linkedContainers(item *world.Actor) []*Entity {
	var linked []*world.Actor
	for _, a := range item.Root().Descendants() {
		linked = append(linked, m.world.Linked(a)...)
	}

	seen := make(map[*Entity]struct{})
	for _, l := range linked {
		for _, a := range l.Root().Descendants() {
			if a == item || !a.HasTag(world.TagContainer) {
				continue
			}
			if e := m.lookup.Lookup(a); e != nil {
				seen[e] = struct{}{}
			}
		}
	}
	out := make([]*Entity, 0, len(seen))
	for e := range seen {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
