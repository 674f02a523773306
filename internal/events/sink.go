package events

import (
	"slices"
	"sync"
)

// Sink receives finished events in emission order.
type Sink interface {
	OnSemanticEvent(ev Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ev Event)

// OnSemanticEvent calls f(ev).
func (f SinkFunc) OnSemanticEvent(ev Event) { f(ev) }

// MultiSink delivers each event to every sink in order.
type MultiSink []Sink

// OnSemanticEvent implements Sink.
func (m MultiSink) OnSemanticEvent(ev Event) {
	for _, s := range m {
		s.OnSemanticEvent(ev)
	}
}

// Collector keeps every event it receives. It is safe for concurrent use so
// that an HTTP handler can read while a replay is writing.
type Collector struct {
	mu     sync.Mutex
	events []Event
}

// OnSemanticEvent implements Sink.
func (c *Collector) OnSemanticEvent(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

// Events returns a copy of the collected events.
func (c *Collector) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.events)
}

// OfKind returns the collected events of kind k.
func (c *Collector) OfKind(k Kind) []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Event
	for _, ev := range c.events {
		if ev.Kind == k {
			out = append(out, ev)
		}
	}
	return out
}

// Len returns the number of collected events.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

// Reset drops every collected event.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = nil
}
