package monitors

import (
	"slices"

	"github.com/banshee-data/semlog/internal/monitoring"
	"github.com/banshee-data/semlog/internal/timeutil"
)

type pendingEnd[K comparable] struct {
	key  K
	time float64
}

// JitterBuffer holds end signals for a short window so that an end followed
// closely by a begin for the same key collapses into one uninterrupted
// interval. Ends that survive the window are delivered to onEnd with their
// original timestamps.
type JitterBuffer[K comparable] struct {
	sched  timeutil.Scheduler
	window float64
	delay  float64
	onEnd  func(key K, t float64)

	pending []pendingEnd[K]
	timer   timeutil.Handle
}

// NewJitterBuffer returns a buffer that concatenates intervals separated by
// less than window and checks for expired ends every delay seconds. A delay
// shorter than the window is raised to it.
func NewJitterBuffer[K comparable](sched timeutil.Scheduler, window, delay float64, onEnd func(key K, t float64)) *JitterBuffer[K] {
	if delay < window {
		delay = window
	}
	return &JitterBuffer[K]{
		sched:  sched,
		window: window,
		delay:  delay,
		onEnd:  onEnd,
	}
}

// Window returns the concatenation window.
func (b *JitterBuffer[K]) Window() float64 { return b.window }

// Begin reports whether a begin for key at t is real. It returns false when a
// pending end for key is younger than the window; that end is discarded and
// the interval continues.
func (b *JitterBuffer[K]) Begin(key K, t float64) bool {
	for i, p := range b.pending {
		if p.key == key && t-p.time < b.window {
			b.pending = slices.Delete(b.pending, i, i+1)
			if len(b.pending) == 0 {
				b.cancelTimer()
			}
			return false
		}
	}
	return true
}

// End queues an end for key at t and makes sure a flush is scheduled.
func (b *JitterBuffer[K]) End(key K, t float64) {
	b.pending = append(b.pending, pendingEnd[K]{key: key, time: t})
	if !b.sched.IsScheduled(b.timer) {
		b.timer = b.sched.ScheduleOnce(b.delay, b.Flush)
	}
}

// Flush delivers every end older than the window and reschedules itself while
// younger ends remain.
func (b *JitterBuffer[K]) Flush() {
	b.cancelTimer()
	now := b.sched.Now()

	var ready []pendingEnd[K]
	kept := b.pending[:0]
	for _, p := range b.pending {
		if now-p.time > b.window {
			ready = append(ready, p)
		} else {
			kept = append(kept, p)
		}
	}
	b.pending = kept
	if len(b.pending) > 0 {
		b.timer = b.sched.ScheduleOnce(b.delay, b.Flush)
	}
	for _, p := range ready {
		b.onEnd(p.key, p.time)
	}
}

// FlushAll delivers every pending end regardless of age.
func (b *JitterBuffer[K]) FlushAll() {
	b.cancelTimer()
	ready := b.pending
	b.pending = nil
	for _, p := range ready {
		b.onEnd(p.key, p.time)
	}
}

// Clear drops every pending end without delivering it.
func (b *JitterBuffer[K]) Clear() {
	b.cancelTimer()
	b.pending = nil
}

// Remove drops the oldest pending end for key without delivering it.
// Removing a key that is not pending is logged and ignored.
func (b *JitterBuffer[K]) Remove(key K) bool {
	i := slices.IndexFunc(b.pending, func(p pendingEnd[K]) bool { return p.key == key })
	if i < 0 {
		monitoring.Errorf("[%.4f] jitter buffer: removing %v which is not pending", b.sched.Now(), key)
		return false
	}
	b.pending = slices.Delete(b.pending, i, i+1)
	if len(b.pending) == 0 {
		b.cancelTimer()
	}
	return true
}

// IsPending reports whether an end for key is waiting.
func (b *JitterBuffer[K]) IsPending(key K) bool {
	return slices.ContainsFunc(b.pending, func(p pendingEnd[K]) bool { return p.key == key })
}

// Len returns the number of pending ends.
func (b *JitterBuffer[K]) Len() int { return len(b.pending) }

func (b *JitterBuffer[K]) cancelTimer() {
	if b.timer != 0 {
		b.sched.Cancel(b.timer)
		b.timer = 0
	}
}
