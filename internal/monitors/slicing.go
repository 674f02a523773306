package monitors

import (
	"fmt"

	"github.com/banshee-data/semlog/internal/individual"
	"github.com/banshee-data/semlog/internal/monitoring"
	"github.com/banshee-data/semlog/internal/world"
)

// SlicingBlade reports cuts made with a blade actor. The host detects when a
// cut starts and how it ends; the blade resolves the actors to entities and
// keeps at most one slice open.
type SlicingBlade struct {
	lifecycle

	Blade *world.Actor

	OnBeginSlicing Signal[SlicingBegin]
	OnEndSlicing   Signal[SlicingEnd]

	lookup individual.Lookup
	device *Entity
	open   *SlicingBegin
	now    func() float64
}

// NewSlicingBlade returns a blade source for blade. now supplies the time
// used when Finish closes an open slice.
func NewSlicingBlade(blade *world.Actor, now func() float64) *SlicingBlade {
	return &SlicingBlade{Blade: blade, now: now}
}

// Init requires the blade to be annotated.
func (b *SlicingBlade) Init(lookup individual.Lookup) error {
	if b.isInit {
		return nil
	}
	b.device = lookup.Lookup(b.Blade)
	if b.device == nil {
		err := fmt.Errorf("slicing blade %s: %w", b.Blade.Name, ErrNotAnnotated)
		monitoring.Errorf("%v", err)
		return err
	}
	b.lookup = lookup
	b.isInit = true
	return nil
}

// Start enables reporting.
func (b *SlicingBlade) Start() {
	if b.isInit {
		b.isStarted = true
	}
}

// BeginSlice opens a slice of object by performer.
func (b *SlicingBlade) BeginSlice(performer, object *world.Actor, t float64) {
	if !b.isStarted {
		return
	}
	if b.open != nil {
		monitoring.Errorf("[%.4f] slicing blade %s: slice of %s still open, ignoring %s",
			t, b.Blade.Name, b.open.ObjectActedOn, object)
		return
	}
	who, what := b.lookup.Lookup(performer), b.lookup.Lookup(object)
	if who == nil || what == nil {
		monitoring.Warnf("[%.4f] slicing blade %s: unannotated performer %s or object %s",
			t, b.Blade.Name, performer, object)
		return
	}
	ev := SlicingBegin{PerformedBy: who, DeviceUsed: b.device, ObjectActedOn: what, Time: t}
	b.open = &ev
	b.OnBeginSlicing.Emit(ev)
}

// EndSliceFail closes the open slice without output.
func (b *SlicingBlade) EndSliceFail(t float64) { b.end(nil, t, false) }

// EndSliceSuccess closes the open slice. output is the piece that was cut
// off and may be unannotated.
func (b *SlicingBlade) EndSliceSuccess(output *world.Actor, t float64) {
	var out *Entity
	if output != nil {
		out = b.lookup.Lookup(output)
	}
	b.end(out, t, true)
}

// IsSlicing reports whether a slice is open.
func (b *SlicingBlade) IsSlicing() bool { return b.open != nil }

// Finish fails any open slice at the current time.
func (b *SlicingBlade) Finish(forced bool) {
	if !b.canFinish() {
		return
	}
	if b.open != nil {
		b.closeSlice(nil, b.now(), false)
	}
}

func (b *SlicingBlade) end(output *Entity, t float64, success bool) {
	if !b.isStarted {
		return
	}
	b.closeSlice(output, t, success)
}

func (b *SlicingBlade) closeSlice(output *Entity, t float64, success bool) {
	if b.open == nil {
		monitoring.Errorf("[%.4f] slicing blade %s: no slice to end", t, b.Blade.Name)
		return
	}
	ev := b.open
	b.open = nil
	b.OnEndSlicing.Emit(SlicingEnd{
		PerformedBy:   ev.PerformedBy,
		DeviceUsed:    ev.DeviceUsed,
		ObjectActedOn: ev.ObjectActedOn,
		Output:        output,
		Time:          t,
		Success:       success,
	})
}
