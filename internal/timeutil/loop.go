package timeutil

import (
	"container/heap"
	"context"
	"time"
)

// Handle identifies a scheduled callback. The zero Handle is never issued.
type Handle uint64

// Scheduler is the deferred-callback surface the monitors depend on. Time is
// simulation seconds. Implementations are single-threaded: callbacks run on
// the goroutine that advances the scheduler.
type Scheduler interface {
	// Now returns the current simulation time in seconds.
	Now() float64

	// ScheduleOnce runs fn once, delay seconds from now.
	ScheduleOnce(delay float64, fn func()) Handle

	// ScheduleEvery runs fn every interval seconds until cancelled.
	ScheduleEvery(interval float64, fn func()) Handle

	// Cancel removes a scheduled callback. Unknown handles are ignored.
	Cancel(h Handle)

	// IsScheduled reports whether h is still pending.
	IsScheduled(h Handle) bool
}

type loopTimer struct {
	handle   Handle
	due      float64
	seq      uint64
	interval float64 // 0 for one-shot timers
	fn       func()
	index    int
}

type timerHeap []*loopTimer

func (h timerHeap) Len() int { return len(h) }
func (h timerHeap) Less(i, j int) bool {
	if h[i].due != h[j].due {
		return h[i].due < h[j].due
	}
	return h[i].seq < h[j].seq
}
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *timerHeap) Push(x any) {
	t := x.(*loopTimer)
	t.index = len(*h)
	*h = append(*h, t)
}
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}

// Loop is the host event loop: a simulation clock plus a timer queue.
// Timers due at the same instant fire in scheduling order.
type Loop struct {
	now    float64
	seq    uint64
	next   Handle
	timers timerHeap
	byID   map[Handle]*loopTimer
}

// NewLoop returns a Loop whose clock starts at start seconds.
func NewLoop(start float64) *Loop {
	return &Loop{now: start, byID: make(map[Handle]*loopTimer)}
}

// Now returns the current simulation time.
func (l *Loop) Now() float64 { return l.now }

// ScheduleOnce implements Scheduler.
func (l *Loop) ScheduleOnce(delay float64, fn func()) Handle {
	return l.add(delay, 0, fn)
}

// ScheduleEvery implements Scheduler. Non-positive intervals are clamped to
// a single tick of 1ms so a misconfigured rate cannot spin the loop.
func (l *Loop) ScheduleEvery(interval float64, fn func()) Handle {
	if interval <= 0 {
		interval = 0.001
	}
	return l.add(interval, interval, fn)
}

func (l *Loop) add(delay, interval float64, fn func()) Handle {
	if delay < 0 {
		delay = 0
	}
	l.next++
	l.seq++
	t := &loopTimer{
		handle:   l.next,
		due:      l.now + delay,
		seq:      l.seq,
		interval: interval,
		fn:       fn,
	}
	heap.Push(&l.timers, t)
	l.byID[t.handle] = t
	return t.handle
}

// Cancel implements Scheduler.
func (l *Loop) Cancel(h Handle) {
	t, ok := l.byID[h]
	if !ok {
		return
	}
	delete(l.byID, h)
	if t.index >= 0 {
		heap.Remove(&l.timers, t.index)
	}
}

// IsScheduled implements Scheduler.
func (l *Loop) IsScheduled(h Handle) bool {
	_, ok := l.byID[h]
	return ok
}

// Pending returns the number of scheduled callbacks.
func (l *Loop) Pending() int { return len(l.byID) }

// AdvanceTo moves the clock to t, firing every callback due at or before t.
// While a callback runs, Now reports its due time.
func (l *Loop) AdvanceTo(t float64) {
	for len(l.timers) > 0 && l.timers[0].due <= t {
		tm := heap.Pop(&l.timers).(*loopTimer)
		if tm.due > l.now {
			l.now = tm.due
		}
		if tm.interval > 0 {
			l.seq++
			tm.due += tm.interval
			tm.seq = l.seq
			heap.Push(&l.timers, tm)
		} else {
			delete(l.byID, tm.handle)
		}
		tm.fn()
	}
	if t > l.now {
		l.now = t
	}
}

// Advance moves the clock forward by dt seconds.
func (l *Loop) Advance(dt float64) {
	l.AdvanceTo(l.now + dt)
}

// Step runs one host tick: hook sees the start-of-tick time and applies the
// tick's physics updates, then timers due within the tick fire. This keeps
// collision callbacks ahead of timer callbacks for the same tick.
func (l *Loop) Step(dt float64, hook func(now float64)) {
	if hook != nil {
		hook(l.now)
	}
	l.Advance(dt)
}

// RunPaced steps the loop by dt for every wall-clock tick of clock until ctx
// is cancelled or hook returns false.
func RunPaced(ctx context.Context, clock Clock, loop *Loop, dt float64, hook func(now float64) bool) error {
	ticker := clock.NewTicker(time.Duration(dt * float64(time.Second)))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
			keepGoing := true
			loop.Step(dt, func(now float64) {
				if hook != nil {
					keepGoing = hook(now)
				}
			})
			if !keepGoing {
				return nil
			}
		}
	}
}
