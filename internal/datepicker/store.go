package datepicker

import (
	"github.com/dshills/storekit/internal/store"
)

// Store is a date picker store.
type Store struct {
	*store.Store[State]
}

// New creates a date picker store holding the cleared state.
func New(opts ...store.Option) *Store {
	return &Store{Store: store.New(Actions, State{}, opts...)}
}

// NewWithState creates a date picker store holding initial.
func NewWithState(initial State, opts ...store.Option) *Store {
	return &Store{Store: store.New(Actions, initial.Clone(), opts...)}
}

// Clear publishes the cleared state.
func (s *Store) Clear() {
	s.Publish(State{})
}
