package events

import (
	"github.com/banshee-data/semlog/internal/monitors"
	"github.com/banshee-data/semlog/internal/pairing"
)

// GraspHandler publishes Grasp events carrying the grasp type.
type GraspHandler struct {
	base
	parent *monitors.ManipulatorMonitor
	open   openEvents[*monitors.Entity]
}

// NewGraspHandler returns a handler publishing to sink.
func NewGraspHandler(sink Sink, opts Options) *GraspHandler {
	return &GraspHandler{base: base{sink: sink, opts: opts}}
}

// Init accepts a *monitors.ManipulatorMonitor.
func (h *GraspHandler) Init(parent any) bool {
	if h.isInit {
		return true
	}
	m, ok := parent.(*monitors.ManipulatorMonitor)
	if !ok || m == nil {
		return false
	}
	h.parent = m
	h.isInit = true
	return true
}

// Start subscribes to the monitor.
func (h *GraspHandler) Start() {
	if !h.canStart() {
		return
	}
	h.subscribe(
		h.parent.OnBeginGrasp.Subscribe(h.onBegin),
		h.parent.OnEndGrasp.Subscribe(h.onEnd),
	)
}

// Finish publishes every open grasp at endTime.
func (h *GraspHandler) Finish(endTime float64, forced bool) {
	if !h.canFinish() {
		return
	}
	for _, ev := range h.open.drain() {
		ev.End = endTime
		h.publishIfLonger(ev, h.opts.GraspEventMin)
	}
}

func (h *GraspHandler) onBegin(r monitors.GraspResult) {
	h.open.add(r.Other, Event{
		Kind:         KindGrasp,
		Start:        r.Time,
		PairID:       pairing.Cantor(r.Self.ID, r.Other.ID),
		Participants: actedOn(r.Self, r.Other),
		Properties:   map[string]string{PropGraspType: r.GraspType},
	})
}

func (h *GraspHandler) onEnd(r monitors.GraspEnd) {
	ev, ok := h.open.take(func(o *monitors.Entity) bool { return o == r.Other })
	if !ok {
		return
	}
	ev.End = r.Time
	h.publishIfLonger(ev, h.opts.GraspEventMin)
}

func actedOn(performer, object *monitors.Entity) []Participant {
	return []Participant{
		NewParticipant(RolePerformedBy, performer),
		NewParticipant(RoleObjectActedOn, object),
	}
}

// ReachAndPreGraspHandler splits each reach result into a Reach and a
// PreGrasp event, each published only if longer than its threshold.
type ReachAndPreGraspHandler struct {
	base
	parent *monitors.ReachAndPreGraspMonitor
}

// NewReachAndPreGraspHandler returns a handler publishing to sink.
func NewReachAndPreGraspHandler(sink Sink, opts Options) *ReachAndPreGraspHandler {
	return &ReachAndPreGraspHandler{base: base{sink: sink, opts: opts}}
}

// Init accepts a *monitors.ReachAndPreGraspMonitor.
func (h *ReachAndPreGraspHandler) Init(parent any) bool {
	if h.isInit {
		return true
	}
	m, ok := parent.(*monitors.ReachAndPreGraspMonitor)
	if !ok || m == nil {
		return false
	}
	h.parent = m
	h.isInit = true
	return true
}

// Start subscribes to the monitor.
func (h *ReachAndPreGraspHandler) Start() {
	if !h.canStart() {
		return
	}
	h.subscribe(h.parent.OnPreAndReach.Subscribe(h.onResult))
}

// Finish stops listening. Reach results are complete when emitted, so
// nothing is left open.
func (h *ReachAndPreGraspHandler) Finish(endTime float64, forced bool) {
	h.canFinish()
}

func (h *ReachAndPreGraspHandler) onResult(r monitors.ReachResult) {
	pairID := pairing.Cantor(r.Self.ID, r.Other.ID)
	if r.ContactTime-r.ReachStart > h.opts.ReachEventMin {
		h.publish(Event{
			Kind:         KindReach,
			Start:        r.ReachStart,
			End:          r.ContactTime,
			PairID:       pairID,
			Participants: actedOn(r.Self, r.Other),
		})
	}
	if r.GraspTime-r.ContactTime > h.opts.PreGraspEventMin {
		h.publish(Event{
			Kind:         KindPreGrasp,
			Start:        r.ContactTime,
			End:          r.GraspTime,
			PairID:       pairID,
			Participants: actedOn(r.Self, r.Other),
		})
	}
}
