package store

import (
	"context"
	"sort"
	"sync"
)

// Handler mutates a store in response to an action.
//
// It receives the snapshot taken at dispatch time and the caller's payload.
// A handler commits new state by calling s.Publish (or s.Update) itself,
// either before returning or from its own goroutine; the returned Result
// only describes when the dispatch completes.
type Handler[T any] func(ctx context.Context, s *Store[T], state T, payload any) *Result

// Descriptor names an action and the handler implementing it.
type Descriptor struct {
	// Name is the action name used by Dispatch.
	Name string

	// HandlerName is a human-readable name of the handler, for diagnostics.
	HandlerName string
}

type entry[T any] struct {
	desc Descriptor
	fn   Handler[T]
}

// Actions is the action table of one store kind.
//
// A table is built once, usually from a package-level var and init function,
// and shared by every Store of that kind.
type Actions[T any] struct {
	mu      sync.RWMutex
	kind    string
	actions map[string]entry[T]
}

// NewActions creates an empty action table for the named kind.
func NewActions[T any](kind string) *Actions[T] {
	return &Actions[T]{
		kind:    kind,
		actions: make(map[string]entry[T]),
	}
}

// Kind returns the name of the store kind the table belongs to.
func (a *Actions[T]) Kind() string {
	return a.kind
}

// Register associates an action name with a handler.
// An empty name defaults to handlerName. Registering a name again replaces
// the previous descriptor.
func (a *Actions[T]) Register(name, handlerName string, fn Handler[T]) error {
	if name == "" {
		name = handlerName
	}
	if name == "" {
		return ErrMissingActionName
	}
	if handlerName == "" {
		handlerName = name
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.actions[name] = entry[T]{
		desc: Descriptor{Name: name, HandlerName: handlerName},
		fn:   fn,
	}
	return nil
}

// MustRegister is like Register but panics on error.
// It is meant for package initialisation, where a bad table must fail loudly.
func (a *Actions[T]) MustRegister(name, handlerName string, fn Handler[T]) {
	if err := a.Register(name, handlerName, fn); err != nil {
		panic(err)
	}
}

// Resolve looks up an action by name.
func (a *Actions[T]) Resolve(name string) (Descriptor, Handler[T], bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	e, ok := a.actions[name]
	if !ok {
		return Descriptor{}, nil, false
	}
	return e.desc, e.fn, true
}

// Has returns true if the action is registered.
func (a *Actions[T]) Has(name string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.actions[name]
	return ok
}

// Len returns the number of registered actions.
func (a *Actions[T]) Len() int {
	if a == nil {
		return 0
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.actions)
}

// Names returns all registered action names, sorted.
func (a *Actions[T]) Names() []string {
	if a == nil {
		return nil
	}
	a.mu.RLock()
	defer a.mu.RUnlock()

	names := make([]string, 0, len(a.actions))
	for name := range a.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Descriptors returns the descriptors of all registered actions, sorted by name.
func (a *Actions[T]) Descriptors() []Descriptor {
	if a == nil {
		return nil
	}
	a.mu.RLock()
	defer a.mu.RUnlock()

	descs := make([]Descriptor, 0, len(a.actions))
	for _, e := range a.actions {
		descs = append(descs, e.desc)
	}
	sort.Slice(descs, func(i, j int) bool {
		return descs[i].Name < descs[j].Name
	})
	return descs
}
