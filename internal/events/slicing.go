package events

import (
	"strconv"

	"github.com/banshee-data/semlog/internal/monitors"
	"github.com/banshee-data/semlog/internal/pairing"
)

// SlicingHandler publishes Slicing events. A slice still open at Finish is
// published as failed.
type SlicingHandler struct {
	base
	parent *monitors.SlicingBlade
	open   *Event
}

// NewSlicingHandler returns a handler publishing to sink.
func NewSlicingHandler(sink Sink, opts Options) *SlicingHandler {
	return &SlicingHandler{base: base{sink: sink, opts: opts}}
}

// Init accepts a *monitors.SlicingBlade.
func (h *SlicingHandler) Init(parent any) bool {
	if h.isInit {
		return true
	}
	b, ok := parent.(*monitors.SlicingBlade)
	if !ok || b == nil {
		return false
	}
	h.parent = b
	h.isInit = true
	return true
}

// Start subscribes to the blade.
func (h *SlicingHandler) Start() {
	if !h.canStart() {
		return
	}
	h.subscribe(
		h.parent.OnBeginSlicing.Subscribe(h.onBegin),
		h.parent.OnEndSlicing.Subscribe(h.onEnd),
	)
}

// Finish publishes an open slice at endTime as failed.
func (h *SlicingHandler) Finish(endTime float64, forced bool) {
	if !h.canFinish() || h.open == nil {
		return
	}
	h.close(endTime, nil, false)
}

func (h *SlicingHandler) onBegin(r monitors.SlicingBegin) {
	h.open = &Event{
		Kind:   KindSlicing,
		Start:  r.Time,
		PairID: pairing.Cantor(r.PerformedBy.ID, r.ObjectActedOn.ID),
		Participants: []Participant{
			NewParticipant(RolePerformedBy, r.PerformedBy),
			NewParticipant(RoleDeviceUsed, r.DeviceUsed),
			NewParticipant(RoleObjectActedOn, r.ObjectActedOn),
		},
	}
}

func (h *SlicingHandler) onEnd(r monitors.SlicingEnd) {
	if h.open == nil {
		return
	}
	h.close(r.Time, r.Output, r.Success)
}

func (h *SlicingHandler) close(t float64, output *monitors.Entity, success bool) {
	ev := *h.open
	h.open = nil
	ev.End = t
	ev.Properties = map[string]string{PropTaskSuccess: strconv.FormatBool(success)}
	if output != nil {
		ev.Participants = append(ev.Participants, NewParticipant(RoleOutputsCreated, output))
		ev.Properties[PropOutputsCreated] = output.SemID
	}
	h.publish(ev)
}
