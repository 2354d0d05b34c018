package store

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Completion is the handle returned by Dispatch. It settles exactly once,
// either successfully or with an error, and records the values the handler's
// result emitted on the way.
type Completion struct {
	id      string
	action  string
	started time.Time

	done chan struct{}

	mu        sync.Mutex
	values    []any
	err       error
	elapsed   time.Duration
	observers []func(any)
	onError   []func(error)

	observed atomic.Bool
	waiters  atomic.Int32

	// kind and async are set by the store before the handle is shared.
	kind  ResultKind
	async bool

	finished bool

	// record runs once just before done is closed, report just after.
	record func(c *Completion, err error)
	report func(c *Completion, err error)
}

func newCompletion(id, action string) *Completion {
	return &Completion{
		id:      id,
		action:  action,
		started: time.Now(),
		done:    make(chan struct{}),
	}
}

// ID returns the unique dispatch identifier.
func (c *Completion) ID() string {
	return c.id
}

// Action returns the dispatched action name.
func (c *Completion) Action() string {
	return c.action
}

// Done returns a channel that is closed once the dispatch settles.
func (c *Completion) Done() <-chan struct{} {
	return c.done
}

// Settled returns true if the dispatch has settled.
func (c *Completion) Settled() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Err returns the failure of a settled dispatch, or nil while it is pending
// or when it succeeded. Calling Err on a settled handle counts as observing
// the failure; a call while pending does not.
func (c *Completion) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.finished {
		c.observed.Store(true)
	}
	return c.err
}

// Wait blocks until the dispatch settles or ctx is done. It returns the last
// emitted value (nil for an empty result) and the failure, if any.
// A cancelled ctx only stops waiting; the handler keeps running, and a later
// failure still counts as unobserved.
func (c *Completion) Wait(ctx context.Context) (any, error) {
	c.waiters.Add(1)
	select {
	case <-c.done:
		c.observed.Store(true)
		c.waiters.Add(-1)
	case <-ctx.Done():
		c.waiters.Add(-1)
		return nil, ctx.Err()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	if len(c.values) == 0 {
		return nil, nil
	}
	return c.values[len(c.values)-1], nil
}

// Values returns the values emitted so far.
func (c *Completion) Values() []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]any, len(c.values))
	copy(out, c.values)
	return out
}

// Observe calls fn for every emitted value: first the ones already emitted,
// then each new one as it arrives.
func (c *Completion) Observe(fn func(any)) {
	c.mu.Lock()
	past := make([]any, len(c.values))
	copy(past, c.values)
	if !c.finished {
		c.observers = append(c.observers, fn)
	}
	c.mu.Unlock()

	for _, v := range past {
		fn(v)
	}
}

// OnError registers fn to be called if the dispatch fails. If it already
// failed, fn is called immediately. Registering counts as observing.
func (c *Completion) OnError(fn func(error)) {
	c.observed.Store(true)
	c.mu.Lock()
	if c.finished {
		err := c.err
		c.mu.Unlock()
		if err != nil {
			fn(err)
		}
		return
	}
	c.onError = append(c.onError, fn)
	c.mu.Unlock()
}

// Observed reports whether anyone has looked at the outcome of the dispatch
// or is blocked in Wait for it.
func (c *Completion) Observed() bool {
	return c.observed.Load() || c.waiters.Load() > 0
}

// Duration returns the time from dispatch until now, or until settlement.
func (c *Completion) Duration() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.finished {
		return c.elapsed
	}
	return time.Since(c.started)
}

func (c *Completion) emit(v any) {
	c.mu.Lock()
	if c.finished {
		c.mu.Unlock()
		return
	}
	c.values = append(c.values, v)
	observers := make([]func(any), len(c.observers))
	copy(observers, c.observers)
	c.mu.Unlock()

	for _, fn := range observers {
		fn(v)
	}
}

func (c *Completion) settle(err error) {
	c.mu.Lock()
	if c.finished {
		c.mu.Unlock()
		return
	}
	c.finished = true
	c.err = err
	c.elapsed = time.Since(c.started)
	onError := c.onError
	c.observers = nil
	c.onError = nil
	c.mu.Unlock()

	if c.record != nil {
		c.record(c, err)
	}
	close(c.done)

	if err != nil {
		for _, fn := range onError {
			fn(err)
		}
	}
	if c.report != nil {
		c.report(c, err)
	}
}
