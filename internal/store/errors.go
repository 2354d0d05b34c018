package store

import (
	"errors"
	"fmt"
)

// Store errors.
var (
	// ErrMissingActionName indicates a registration resolved to an empty action name.
	ErrMissingActionName = errors.New("store: action is missing a name")

	// ErrActionNotRegistered indicates the kind has actions, but not the requested one.
	ErrActionNotRegistered = errors.New("store: action not registered")

	// ErrHandlerMissingMetadata indicates the store kind never registered any action.
	ErrHandlerMissingMetadata = errors.New("store: kind has no registered actions")

	// ErrHandlerExecution indicates the handler failed, panicked or its result rejected.
	ErrHandlerExecution = errors.New("store: handler execution failed")

	// ErrNilHandler indicates a descriptor whose handler reference is nil.
	ErrNilHandler = errors.New("store: handler is nil")

	// ErrStoreClosed indicates a dispatch on a closed store.
	ErrStoreClosed = errors.New("store: store is closed")
)

// DispatchError wraps a failure of a single dispatch with its context.
type DispatchError struct {
	// Kind is one of the sentinel errors above.
	Kind error

	// Action is the dispatched action name.
	Action string

	// DispatchID identifies the completion handle that failed.
	DispatchID string

	// Err is the underlying cause. It may be nil for resolution failures.
	Err error
}

// Error implements the error interface.
func (e *DispatchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v: %q", e.Kind, e.Action)
	}
	return fmt.Sprintf("%v: %q: %v", e.Kind, e.Action, e.Err)
}

// Unwrap exposes both the sentinel kind and the cause to errors.Is/As.
func (e *DispatchError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// PanicError wraps a value recovered from a panicking handler.
type PanicError struct {
	// Action is the action whose handler panicked.
	Action string

	// Value is the value passed to panic().
	Value any

	// Stack is the stack trace at the time of the panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("handler panic for %s: %v", e.Action, e.Value)
}

// Is allows errors.Is to match PanicError with ErrHandlerExecution.
func (e *PanicError) Is(target error) bool {
	return target == ErrHandlerExecution
}
