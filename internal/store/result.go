package store

import (
	"fmt"
	"iter"
	"runtime"
	"sync"
)

// ResultKind tells how a handler's work completes.
type ResultKind uint8

const (
	// KindDone completes immediately with an empty result.
	KindDone ResultKind = iota
	// KindImmediate completes immediately with a single value.
	KindImmediate
	// KindFailed fails immediately.
	KindFailed
	// KindDeferred completes when a Future settles.
	KindDeferred
	// KindStreaming completes when a sequence ends.
	KindStreaming
)

// String returns a string representation of the kind.
func (k ResultKind) String() string {
	switch k {
	case KindDone:
		return "done"
	case KindImmediate:
		return "immediate"
	case KindFailed:
		return "failed"
	case KindDeferred:
		return "deferred"
	case KindStreaming:
		return "streaming"
	default:
		return "unknown"
	}
}

// Result is what a handler returns. Construct it with Done, Immediate, Fail,
// Deferred, Async or Streaming. A nil *Result is the same as Done().
type Result struct {
	kind   ResultKind
	value  any
	err    error
	future *Future
	seq    iter.Seq2[any, error]
}

// Kind returns the result kind.
func (r *Result) Kind() ResultKind {
	if r == nil {
		return KindDone
	}
	return r.kind
}

// Done completes the dispatch immediately with no value.
func Done() *Result {
	return &Result{kind: KindDone}
}

// Immediate completes the dispatch immediately with v as its only emission.
func Immediate(v any) *Result {
	return &Result{kind: KindImmediate, value: v}
}

// Fail fails the dispatch immediately.
func Fail(err error) *Result {
	return &Result{kind: KindFailed, err: err}
}

// Failf fails the dispatch immediately with a formatted error.
func Failf(format string, args ...any) *Result {
	return Fail(fmt.Errorf(format, args...))
}

// Deferred completes the dispatch when f settles.
func Deferred(f *Future) *Result {
	return &Result{kind: KindDeferred, future: f}
}

// Async runs fn on a new goroutine right away and completes the dispatch with
// its outcome. A panic inside fn rejects the future.
func Async(fn func() (any, error)) *Result {
	f := NewFuture()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				f.Reject(&PanicError{Value: r, Stack: stack()})
			}
		}()
		v, err := fn()
		if err != nil {
			f.Reject(err)
			return
		}
		f.Resolve(v)
	}()
	return Deferred(f)
}

// Streaming completes the dispatch when seq ends. Each (value, nil) pair is
// passed through to the handle's observers; a non-nil error fails the dispatch
// and stops iteration. The store iterates seq eagerly on its own goroutine.
func Streaming(seq iter.Seq2[any, error]) *Result {
	return &Result{kind: KindStreaming, seq: seq}
}

// Future is a value that settles exactly once, from any goroutine.
type Future struct {
	once  sync.Once
	done  chan struct{}
	value any
	err   error
}

// NewFuture creates an unsettled future.
func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Resolve settles the future with a value. Later calls are ignored.
func (f *Future) Resolve(v any) {
	f.once.Do(func() {
		f.value = v
		close(f.done)
	})
}

// Reject settles the future with an error. Later calls are ignored.
func (f *Future) Reject(err error) {
	if err == nil {
		err = ErrHandlerExecution
	}
	f.once.Do(func() {
		f.err = err
		close(f.done)
	})
}

// Done returns a channel closed once the future settles.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Result returns the settled value and error. It blocks until settlement.
func (f *Future) Result() (any, error) {
	<-f.done
	return f.value, f.err
}

func stack() string {
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}
