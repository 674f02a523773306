package monitors

import "slices"

// Signal is a multicast notification. Subscribers receive values in
// subscription order.
type Signal[T any] struct {
	subs []subscriber[T]
	next uint64
}

type subscriber[T any] struct {
	id uint64
	fn func(T)
}

// Subscribe registers fn and returns a function that removes it.
func (s *Signal[T]) Subscribe(fn func(T)) (cancel func()) {
	s.next++
	id := s.next
	s.subs = append(s.subs, subscriber[T]{id: id, fn: fn})
	return func() {
		s.subs = slices.DeleteFunc(s.subs, func(sub subscriber[T]) bool { return sub.id == id })
	}
}

// Emit delivers v to every subscriber. Subscriptions added or removed during
// delivery take effect on the next Emit.
func (s *Signal[T]) Emit(v T) {
	for _, sub := range slices.Clone(s.subs) {
		sub.fn(v)
	}
}

// Len returns the number of subscribers.
func (s *Signal[T]) Len() int { return len(s.subs) }
