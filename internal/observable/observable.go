// Package observable provides the change-notification primitive that wires
// application state to components.
//
// A Subject fans a value out to every current subscriber. There is no
// buffering, no backpressure and no error channel: a panicking subscriber is
// recovered and skipped so it cannot break delivery to the others.
// BehaviorSubject additionally remembers the last value and replays it to new
// subscribers before Subscribe returns.
package observable

import (
	"sync"
)

// Observable is a stream of values that callers can subscribe to.
type Observable[T any] interface {
	// Subscribe registers fn and returns a function that removes it.
	// The returned function is idempotent.
	Subscribe(fn func(T)) (unsubscribe func())
}

// Subject is a multicast notifier with no retained value.
//
// Next calls subscribers synchronously on the calling goroutine. Delivery
// order between subscribers is unspecified. Subscribers added or removed
// while a Next is in flight take effect from the next call.
type Subject[T any] struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]func(T)

	// OnPanic, if set, receives the value recovered from a panicking
	// subscriber. The core never logs; wrapping layers decide.
	OnPanic func(recovered any)
}

// NewSubject creates a Subject with no subscribers.
func NewSubject[T any]() *Subject[T] {
	return &Subject[T]{subs: make(map[uint64]func(T))}
}

// Next delivers v to every current subscriber exactly once.
func (s *Subject[T]) Next(v T) {
	s.mu.Lock()
	snapshot := make([]func(T), 0, len(s.subs))
	for _, fn := range s.subs {
		snapshot = append(snapshot, fn)
	}
	onPanic := s.OnPanic
	s.mu.Unlock()

	for _, fn := range snapshot {
		deliver(fn, v, onPanic)
	}
}

// Subscribe implements Observable.
func (s *Subject[T]) Subscribe(fn func(T)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.subs == nil {
		s.subs = make(map[uint64]func(T))
	}
	s.nextID++
	id := s.nextID
	s.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// Len returns the number of active subscribers.
func (s *Subject[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *Subject[T]) panicHook() func(any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.OnPanic
}

// deliver calls fn, swallowing any panic.
func deliver[T any](fn func(T), v T, onPanic func(any)) {
	defer func() {
		if r := recover(); r != nil && onPanic != nil {
			onPanic(r)
		}
	}()
	fn(v)
}

// BehaviorSubject is a Subject that retains the most recent value.
type BehaviorSubject[T any] struct {
	mu      sync.Mutex
	value   T
	subject *Subject[T]
}

// NewBehaviorSubject creates a BehaviorSubject holding initial.
func NewBehaviorSubject[T any](initial T) *BehaviorSubject[T] {
	return &BehaviorSubject[T]{
		value:   initial,
		subject: NewSubject[T](),
	}
}

// Next stores v and delivers it to every subscriber.
func (b *BehaviorSubject[T]) Next(v T) {
	b.mu.Lock()
	b.value = v
	b.mu.Unlock()
	b.subject.Next(v)
}

// Value returns the most recently published value.
func (b *BehaviorSubject[T]) Value() T {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.value
}

// Subscribe registers fn and replays the current value to it synchronously,
// before returning. A panic during replay is swallowed like any delivery.
func (b *BehaviorSubject[T]) Subscribe(fn func(T)) func() {
	unsubscribe := b.subject.Subscribe(fn)
	deliver(fn, b.Value(), b.subject.panicHook())
	return unsubscribe
}

// SetOnPanic installs a panic hook for subscriber failures.
func (b *BehaviorSubject[T]) SetOnPanic(fn func(recovered any)) {
	b.subject.mu.Lock()
	defer b.subject.mu.Unlock()
	b.subject.OnPanic = fn
}

// Len returns the number of active subscribers.
func (b *BehaviorSubject[T]) Len() int {
	return b.subject.Len()
}
