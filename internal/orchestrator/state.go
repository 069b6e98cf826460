// Package orchestrator provides the building blocks feature coordinators use
// to drive gateway calls into UI-facing state machines: an observable
// request/response state and a partial-failure-tolerant parallel fetch.
package orchestrator

import (
	"sync"

	"github.com/promptshield/console-client/internal/gateway"
)

// Status is the phase of a request/response cycle.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusSucceeded
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Snapshot is an immutable view of the state, handed to subscribers.
type Snapshot[T any] struct {
	Status Status
	Value  T
	Err    *gateway.APIError
}

// State is an observable request state machine. Transitions are strictly
// Idle -> Loading -> {Succeeded | Failed} -> Loading -> ...; each transition
// is applied atomically and published to subscribers as a snapshot.
type State[T any] struct {
	mu        sync.Mutex
	snap      Snapshot[T]
	nextSub   int
	listeners map[int]func(Snapshot[T])
}

// NewState creates an Idle state.
func NewState[T any]() *State[T] {
	return &State[T]{listeners: make(map[int]func(Snapshot[T]))}
}

// Subscribe registers a listener and returns an unsubscribe func. The
// listener immediately receives the current snapshot.
func (s *State[T]) Subscribe(fn func(Snapshot[T])) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.listeners[id] = fn
	snap := s.snap
	s.mu.Unlock()

	fn(snap)
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Snapshot returns the current snapshot.
func (s *State[T]) Snapshot() Snapshot[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Begin transitions to Loading. The previous value is retained so the UI
// does not flicker to an empty state while refreshing.
func (s *State[T]) Begin() {
	s.transition(func(snap *Snapshot[T]) {
		snap.Status = StatusLoading
		snap.Err = nil
	})
}

// Succeed transitions to Succeeded with a new value and a cleared error.
func (s *State[T]) Succeed(v T) {
	s.transition(func(snap *Snapshot[T]) {
		snap.Status = StatusSucceeded
		snap.Value = v
		snap.Err = nil
	})
}

// Fail transitions to Failed, retaining the previous value. A canceled
// outcome is a non-event: the request was superseded by a newer one whose
// settlement will drive the next transition.
func (s *State[T]) Fail(err *gateway.APIError) {
	if err != nil && err.Kind == gateway.KindCanceled {
		return
	}
	s.transition(func(snap *Snapshot[T]) {
		snap.Status = StatusFailed
		snap.Err = err
	})
}

func (s *State[T]) transition(apply func(*Snapshot[T])) {
	s.mu.Lock()
	apply(&s.snap)
	snap := s.snap
	fns := make([]func(Snapshot[T]), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	// Listeners run outside the lock; they receive a copy and cannot
	// observe partial mutation.
	for _, fn := range fns {
		fn(snap)
	}
}
