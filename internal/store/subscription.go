package store

import (
	"sync/atomic"
)

// SubscriptionState represents the state of a subscription.
type SubscriptionState int32

const (
	// SubscriptionStateActive means the subscription is receiving values.
	SubscriptionStateActive SubscriptionState = iota

	// SubscriptionStatePaused means the subscription is temporarily not receiving values.
	SubscriptionStatePaused

	// SubscriptionStateCancelled means the subscription has been permanently cancelled.
	SubscriptionStateCancelled
)

// String returns a human-readable state name.
func (s SubscriptionState) String() string {
	switch s {
	case SubscriptionStateActive:
		return "active"
	case SubscriptionStatePaused:
		return "paused"
	case SubscriptionStateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Subscription is a live attachment to a store feed. Owners must Cancel it
// when they are torn down; the store never unsubscribes on their behalf
// except on Close.
type Subscription interface {
	// ID returns the unique subscription identifier.
	ID() string

	// State returns the current subscription state.
	State() SubscriptionState

	// IsActive returns true if the subscription receives values.
	IsActive() bool

	// Pause temporarily stops delivery. Values published meanwhile are skipped.
	Pause()

	// Resume restarts delivery after a pause.
	Resume()

	// Cancel permanently cancels the subscription.
	Cancel()
}

type subscriber[T any] struct {
	id     string
	fn     func(T)
	state  atomic.Int32
	remove func(*subscriber[T])
}

func newSubscriber[T any](id string, fn func(T), remove func(*subscriber[T])) *subscriber[T] {
	s := &subscriber[T]{id: id, fn: fn, remove: remove}
	s.state.Store(int32(SubscriptionStateActive))
	return s
}

func (s *subscriber[T]) ID() string {
	return s.id
}

func (s *subscriber[T]) State() SubscriptionState {
	return SubscriptionState(s.state.Load())
}

func (s *subscriber[T]) IsActive() bool {
	return s.State() == SubscriptionStateActive
}

func (s *subscriber[T]) Pause() {
	s.state.CompareAndSwap(int32(SubscriptionStateActive), int32(SubscriptionStatePaused))
}

func (s *subscriber[T]) Resume() {
	s.state.CompareAndSwap(int32(SubscriptionStatePaused), int32(SubscriptionStateActive))
}

func (s *subscriber[T]) Cancel() {
	if SubscriptionState(s.state.Swap(int32(SubscriptionStateCancelled))) == SubscriptionStateCancelled {
		return
	}
	if s.remove != nil {
		s.remove(s)
	}
}
