package events

import (
	"github.com/banshee-data/semlog/internal/monitors"
	"github.com/banshee-data/semlog/internal/pairing"
)

// PickAndPlaceHandler publishes Slide, PickUp, Transport and PutDown events.
type PickAndPlaceHandler struct {
	base
	parent *monitors.PickAndPlaceMonitor
}

// NewPickAndPlaceHandler returns a handler publishing to sink.
func NewPickAndPlaceHandler(sink Sink, opts Options) *PickAndPlaceHandler {
	return &PickAndPlaceHandler{base: base{sink: sink, opts: opts}}
}

// Init accepts a *monitors.PickAndPlaceMonitor.
func (h *PickAndPlaceHandler) Init(parent any) bool {
	if h.isInit {
		return true
	}
	m, ok := parent.(*monitors.PickAndPlaceMonitor)
	if !ok || m == nil {
		return false
	}
	h.parent = m
	h.isInit = true
	return true
}

// Start subscribes to the four phase signals.
func (h *PickAndPlaceHandler) Start() {
	if !h.canStart() {
		return
	}
	h.subscribe(
		h.parent.OnSlide.Subscribe(h.publisher(KindSlide)),
		h.parent.OnPickUp.Subscribe(h.publisher(KindPickUp)),
		h.parent.OnTransport.Subscribe(h.publisher(KindTransport)),
		h.parent.OnPutDown.Subscribe(h.publisher(KindPutDown)),
	)
}

// Finish stops listening. The monitor closes its own phases when it
// finishes.
func (h *PickAndPlaceHandler) Finish(endTime float64, forced bool) {
	h.canFinish()
}

func (h *PickAndPlaceHandler) publisher(kind Kind) func(monitors.ManipulationResult) {
	return func(r monitors.ManipulationResult) {
		h.publish(Event{
			Kind:         kind,
			Start:        r.Start,
			End:          r.End,
			PairID:       pairing.Cantor(r.Self.ID, r.Other.ID),
			Participants: actedOn(r.Self, r.Other),
		})
	}
}

// ContainerHandler publishes Container events typed Open or Close.
type ContainerHandler struct {
	base
	parent *monitors.ContainerMonitor
}

// NewContainerHandler returns a handler publishing to sink.
func NewContainerHandler(sink Sink, opts Options) *ContainerHandler {
	return &ContainerHandler{base: base{sink: sink, opts: opts}}
}

// Init accepts a *monitors.ContainerMonitor.
func (h *ContainerHandler) Init(parent any) bool {
	if h.isInit {
		return true
	}
	m, ok := parent.(*monitors.ContainerMonitor)
	if !ok || m == nil {
		return false
	}
	h.parent = m
	h.isInit = true
	return true
}

// Start subscribes to the monitor.
func (h *ContainerHandler) Start() {
	if !h.canStart() {
		return
	}
	h.subscribe(h.parent.OnContainerManipulation.Subscribe(func(r monitors.ContainerResult) {
		h.publish(Event{
			Kind:         KindContainer,
			Start:        r.Start,
			End:          r.End,
			PairID:       pairing.Cantor(r.Self.ID, r.Container.ID),
			Participants: actedOn(r.Self, r.Container),
			Properties:   map[string]string{PropContainerType: r.Type},
		})
	}))
}

// Finish stops listening.
func (h *ContainerHandler) Finish(endTime float64, forced bool) {
	h.canFinish()
}
