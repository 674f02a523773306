package events

import (
	"github.com/banshee-data/semlog/internal/monitors"
	"github.com/banshee-data/semlog/internal/pairing"
)

// ContactHandler publishes Contact events from a ContactMonitor.
type ContactHandler struct {
	base
	parent *monitors.ContactMonitor
	open   openEvents[*monitors.Entity]
}

// NewContactHandler returns a handler publishing to sink.
func NewContactHandler(sink Sink, opts Options) *ContactHandler {
	return &ContactHandler{base: base{sink: sink, opts: opts}}
}

// Init accepts a *monitors.ContactMonitor.
func (h *ContactHandler) Init(parent any) bool {
	if h.isInit {
		return true
	}
	m, ok := parent.(*monitors.ContactMonitor)
	if !ok || m == nil {
		return false
	}
	h.parent = m
	h.isInit = true
	return true
}

// Start subscribes to the monitor.
func (h *ContactHandler) Start() {
	if !h.canStart() {
		return
	}
	h.subscribe(
		h.parent.OnBeginContact.Subscribe(h.onBegin),
		h.parent.OnEndContact.Subscribe(h.onEnd),
	)
}

// Finish publishes every open contact at endTime.
func (h *ContactHandler) Finish(endTime float64, forced bool) {
	if !h.canFinish() {
		return
	}
	for _, ev := range h.open.drain() {
		ev.End = endTime
		h.publishIfLonger(ev, h.opts.ContactEventMin)
	}
}

func (h *ContactHandler) onBegin(r monitors.ContactResult) {
	h.open.add(r.Other, contactEvent(KindContact, r))
}

func (h *ContactHandler) onEnd(r monitors.ContactEnd) {
	ev, ok := h.open.take(func(o *monitors.Entity) bool { return o == r.Other })
	if !ok {
		return
	}
	ev.End = r.Time
	h.publishIfLonger(ev, h.opts.ContactEventMin)
}

func contactEvent(kind Kind, r monitors.ContactResult) Event {
	return Event{
		Kind:   kind,
		Start:  r.Time,
		PairID: pairing.Cantor(r.Self.ID, r.Other.ID),
		Participants: []Participant{
			NewParticipant(RoleInContact, r.Self),
			NewParticipant(RoleInContact, r.Other),
		},
	}
}

// ManipulatorContactHandler publishes ManipulatorContact events: any bone of
// a hand touching an object.
type ManipulatorContactHandler struct {
	base
	parent *monitors.ManipulatorMonitor
	open   openEvents[*monitors.Entity]
}

// NewManipulatorContactHandler returns a handler publishing to sink.
func NewManipulatorContactHandler(sink Sink, opts Options) *ManipulatorContactHandler {
	return &ManipulatorContactHandler{base: base{sink: sink, opts: opts}}
}

// Init accepts a *monitors.ManipulatorMonitor.
func (h *ManipulatorContactHandler) Init(parent any) bool {
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
func (h *ManipulatorContactHandler) Start() {
	if !h.canStart() {
		return
	}
	h.subscribe(
		h.parent.OnBeginManipulatorContact.Subscribe(func(r monitors.ContactResult) {
			h.open.add(r.Other, contactEvent(KindManipulatorContact, r))
		}),
		h.parent.OnEndManipulatorContact.Subscribe(h.onEnd),
	)
}

// Finish publishes every open contact at endTime.
func (h *ManipulatorContactHandler) Finish(endTime float64, forced bool) {
	if !h.canFinish() {
		return
	}
	for _, ev := range h.open.drain() {
		ev.End = endTime
		h.publishIfLonger(ev, h.opts.ContactEventMin)
	}
}

func (h *ManipulatorContactHandler) onEnd(r monitors.ContactEnd) {
	ev, ok := h.open.take(func(o *monitors.Entity) bool { return o == r.Other })
	if !ok {
		return
	}
	ev.End = r.Time
	h.publishIfLonger(ev, h.opts.ContactEventMin)
}

// SupportedByHandler publishes SupportedBy events. Ends are matched by pair
// id in either order.
type SupportedByHandler struct {
	base
	parent *monitors.ContactMonitor
	open   openEvents[uint64]
}

// NewSupportedByHandler returns a handler publishing to sink.
func NewSupportedByHandler(sink Sink, opts Options) *SupportedByHandler {
	return &SupportedByHandler{base: base{sink: sink, opts: opts}}
}

// Init accepts a *monitors.ContactMonitor.
func (h *SupportedByHandler) Init(parent any) bool {
	if h.isInit {
		return true
	}
	m, ok := parent.(*monitors.ContactMonitor)
	if !ok || m == nil {
		return false
	}
	h.parent = m
	h.isInit = true
	return true
}

// Start subscribes to the monitor.
func (h *SupportedByHandler) Start() {
	if !h.canStart() {
		return
	}
	h.subscribe(
		h.parent.OnBeginSupportedBy.Subscribe(h.onBegin),
		h.parent.OnEndSupportedBy.Subscribe(h.onEnd),
	)
}

// Finish publishes every open supported-by event at endTime.
func (h *SupportedByHandler) Finish(endTime float64, forced bool) {
	if !h.canFinish() {
		return
	}
	for _, ev := range h.open.drain() {
		ev.End = endTime
		h.publishIfLonger(ev, h.opts.SupportedByEventMin)
	}
}

func (h *SupportedByHandler) onBegin(r monitors.SupportedByResult) {
	h.open.add(r.PairID, Event{
		Kind:   KindSupportedBy,
		Start:  r.Time,
		PairID: r.PairID,
		Participants: []Participant{
			NewParticipant(RoleIsSupported, r.Supported),
			NewParticipant(RoleIsSupporting, r.Supporting),
		},
	})
}

func (h *SupportedByHandler) onEnd(r monitors.SupportedByEnd) {
	ev, ok := h.open.take(func(id uint64) bool { return id == r.PairID1 || id == r.PairID2 })
	if !ok {
		return
	}
	ev.End = r.Time
	h.publishIfLonger(ev, h.opts.SupportedByEventMin)
}
