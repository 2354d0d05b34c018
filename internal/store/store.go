package store

import (
	"context"
	"slices"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Store owns one state value of type T. Publish is the only way to change it,
// and Subscribe (directly or through Select) the only way to observe it.
type Store[T any] struct {
	actions *Actions[T]
	opts    options
	logger  *log.Logger

	mu       sync.Mutex
	state    T
	version  uint64
	subs     []*subscriber[T]
	queue    []delivery[T]
	draining bool
	closed   bool
}

// delivery is one queued notification. targets is fixed when it is queued,
// so a subscriber never sees values published before it attached.
type delivery[T any] struct {
	value   T
	targets []*subscriber[T]
}

// New creates a store of the kind described by actions, holding initial.
// actions may be nil for a store that only publishes; every Dispatch on it
// fails with ErrHandlerMissingMetadata.
func New[T any](actions *Actions[T], initial T, opts ...Option) *Store[T] {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	o.finish(kindOf(actions))

	return &Store[T]{
		actions: actions,
		opts:    o,
		logger:  o.logger,
		state:   initial,
	}
}

func kindOf[T any](actions *Actions[T]) string {
	if actions == nil {
		return ""
	}
	return actions.Kind()
}

// Kind returns the store kind, or "" for a store without actions.
func (s *Store[T]) Kind() string {
	return kindOf(s.actions)
}

// Actions returns the store's action table (may be nil).
func (s *Store[T]) Actions() *Actions[T] {
	return s.actions
}

// Metrics returns the metrics collector (nil if disabled).
func (s *Store[T]) Metrics() *Metrics {
	return s.opts.metrics
}

// Config returns the store configuration.
func (s *Store[T]) Config() Config {
	return s.opts.config
}

// Snapshot returns the current state. Composite values are shared with the
// store and every subscriber; treat them as read-only.
func (s *Store[T]) Snapshot() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SnapshotVersion returns the current state and its version. The version
// increases by one on every publish.
func (s *Store[T]) SnapshotVersion() (T, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.version
}

// Publish replaces the current state and notifies every subscriber of the
// raw feed, even when state equals the previous value. Publishing on a
// closed store is a no-op.
func (s *Store[T]) Publish(state T) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.logger.Debug("publish on closed store dropped")
		return
	}
	run := s.publishLocked(state)
	s.mu.Unlock()

	s.afterPublish(run)
}

// Update applies fn to the current state and publishes the result as one
// atomic step. fn runs with the store locked and must not call back into it.
func (s *Store[T]) Update(fn func(T) T) T {
	s.mu.Lock()
	if s.closed {
		state := s.state
		s.mu.Unlock()
		return state
	}
	next := fn(s.state)
	run := s.publishLocked(next)
	s.mu.Unlock()

	s.afterPublish(run)
	return next
}

// CompareAndPublish publishes state only if the store is still at version.
// It reports whether the publish happened.
func (s *Store[T]) CompareAndPublish(version uint64, state T) bool {
	s.mu.Lock()
	if s.closed || s.version != version {
		s.mu.Unlock()
		return false
	}
	run := s.publishLocked(state)
	s.mu.Unlock()

	s.afterPublish(run)
	return true
}

func (s *Store[T]) publishLocked(state T) bool {
	s.state = state
	s.version++
	s.queue = append(s.queue, delivery[T]{value: state, targets: slices.Clone(s.subs)})
	return s.claimDrainLocked()
}

func (s *Store[T]) afterPublish(run bool) {
	if s.opts.metrics != nil {
		s.opts.metrics.RecordPublish()
	}
	if run {
		s.drain()
	}
}

// claimDrainLocked reports whether the caller must drain the queue.
func (s *Store[T]) claimDrainLocked() bool {
	if s.draining {
		return false
	}
	s.draining = true
	return true
}

// drain delivers queued notifications until the queue is empty. Only one
// goroutine drains at a time, so subscribers are called serially and in
// publish order; a publish from inside a callback is queued behind the
// current delivery.
func (s *Store[T]) drain() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.draining = false
			s.mu.Unlock()
			return
		}
		d := s.queue[0]
		s.queue[0] = delivery[T]{}
		s.queue = s.queue[1:]
		s.mu.Unlock()

		for _, sub := range d.targets {
			if sub.IsActive() {
				s.deliver(sub, d.value)
			}
		}
	}
}

func (s *Store[T]) deliver(sub *subscriber[T], value T) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("subscriber panic", "subscription", sub.id, "panic", r, "stack", stack())
		}
	}()
	sub.fn(value)
}

// Subscribe attaches fn to the raw state feed. fn first receives the current
// state, then every published state in order.
func (s *Store[T]) Subscribe(fn func(T)) Subscription {
	if fn == nil {
		fn = func(T) {}
	}
	sub := newSubscriber(uuid.NewString(), fn, s.remove)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		sub.state.Store(int32(SubscriptionStateCancelled))
		return sub
	}
	s.subs = append(s.subs, sub)
	s.queue = append(s.queue, delivery[T]{value: s.state, targets: []*subscriber[T]{sub}})
	run := s.claimDrainLocked()
	s.mu.Unlock()

	if run {
		s.drain()
	}
	return sub
}

// Changes returns the raw state feed, without duplicate suppression.
func (s *Store[T]) Changes() Feed[T] {
	return Feed[T]{subscribe: s.Subscribe}
}

// Subscribers returns the number of attached subscriptions.
func (s *Store[T]) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *Store[T]) remove(sub *subscriber[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = slices.DeleteFunc(s.subs, func(x *subscriber[T]) bool { return x == sub })
}

// Close cancels every subscription. Later publishes are dropped and later
// dispatches fail with ErrStoreClosed. Dispatches already running continue.
func (s *Store[T]) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()

	for _, sub := range subs {
		sub.state.Store(int32(SubscriptionStateCancelled))
	}
	s.logger.Debug("store closed", "subscribers", len(subs))
}

// Closed returns true once Close has been called.
func (s *Store[T]) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Dispatch runs the handler registered for name and returns a handle to its
// completion. It never blocks on the handler's asynchronous work, and the
// work runs whether or not anyone observes the handle.
//
// Resolution failures and synchronous handler failures are already settled on
// the returned handle. ctx is passed to the handler without its cancellation:
// cancelling it does not stop the handler.
func (s *Store[T]) Dispatch(ctx context.Context, name string, payload any) *Completion {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithoutCancel(ctx)

	id := uuid.NewString()
	ctx, span := s.opts.tracer.Start(ctx, "store.dispatch",
		trace.WithAttributes(
			attribute.String("store.kind", s.Kind()),
			attribute.String("store.action", name),
			attribute.String("store.dispatch_id", id),
		),
	)
	c := newCompletion(id, name)
	c.record = func(c *Completion, err error) {
		s.record(c, span, err)
	}
	c.report = s.report

	if s.opts.metrics != nil {
		s.opts.metrics.recordStart()
	}

	if s.Closed() {
		s.fail(c, ErrStoreClosed, nil)
		return c
	}
	if s.actions.Len() == 0 {
		s.fail(c, ErrHandlerMissingMetadata, nil)
		return c
	}
	desc, fn, ok := s.actions.Resolve(name)
	if !ok {
		s.fail(c, ErrActionNotRegistered, nil)
		return c
	}
	if fn == nil {
		s.fail(c, ErrHandlerExecution, ErrNilHandler)
		return c
	}

	res, err := s.invoke(ctx, c, desc, fn, payload)
	if err != nil {
		s.fail(c, ErrHandlerExecution, err)
		return c
	}
	s.normalize(c, res)
	return c
}

func (s *Store[T]) invoke(ctx context.Context, c *Completion, desc Descriptor, fn Handler[T], payload any) (res *Result, err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if s.opts.metrics != nil {
			s.opts.metrics.RecordPanic(desc.Name)
		}
		perr := &PanicError{Action: desc.Name, Value: r, Stack: stack()}
		if !s.opts.config.RecoverFromPanic {
			s.fail(c, ErrHandlerExecution, perr)
			panic(r)
		}
		err = perr
	}()

	return fn(ctx, s, s.Snapshot(), payload), nil
}

// normalize turns a handler result into the settlement of c.
func (s *Store[T]) normalize(c *Completion, res *Result) {
	c.kind = res.Kind()

	switch c.kind {
	case KindDone:
		c.settle(nil)

	case KindImmediate:
		c.emit(res.value)
		c.settle(nil)

	case KindFailed:
		s.fail(c, ErrHandlerExecution, res.err)

	case KindDeferred:
		if res.future == nil {
			c.settle(nil)
			return
		}
		c.async = true
		go func() {
			v, err := res.future.Result()
			if err != nil {
				s.fail(c, ErrHandlerExecution, err)
				return
			}
			c.emit(v)
			c.settle(nil)
		}()

	case KindStreaming:
		if res.seq == nil {
			c.settle(nil)
			return
		}
		c.async = true
		go s.stream(c, res)

	default:
		c.settle(nil)
	}
}

// stream iterates a streaming result. Panics are always recovered here:
// there is no caller left to propagate them to.
func (s *Store[T]) stream(c *Completion, res *Result) {
	defer func() {
		if r := recover(); r != nil {
			if s.opts.metrics != nil {
				s.opts.metrics.RecordPanic(c.action)
			}
			s.fail(c, ErrHandlerExecution, &PanicError{Action: c.action, Value: r, Stack: stack()})
		}
	}()

	for v, err := range res.seq {
		if err != nil {
			s.fail(c, ErrHandlerExecution, err)
			return
		}
		c.emit(v)
	}
	c.settle(nil)
}

func (s *Store[T]) fail(c *Completion, kind, cause error) {
	if c.kind == KindDone {
		c.kind = KindFailed
	}
	c.settle(&DispatchError{
		Kind:       kind,
		Action:     c.action,
		DispatchID: c.id,
		Err:        cause,
	})
}

// record finishes the bookkeeping of a settled dispatch before waiters wake.
func (s *Store[T]) record(c *Completion, span trace.Span, err error) {
	if s.opts.metrics != nil {
		s.opts.metrics.RecordDispatch(c.action, c.Duration(), c.kind, err)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.SetAttributes(attribute.String("store.result", c.kind.String()))
	span.End()
}

// report handles failures after waiters woke up. Synchronous failures were
// handed back to the Dispatch caller; asynchronous ones nobody observed are
// logged and passed to the unobserved-failure handler.
func (s *Store[T]) report(c *Completion, err error) {
	if err == nil {
		return
	}
	if !c.async {
		s.logger.Debug("dispatch failed", "action", c.action, "id", c.id, "err", err)
		return
	}
	if c.Observed() || s.opts.config.Unobserved == UnobservedIgnore {
		return
	}

	if s.opts.metrics != nil {
		s.opts.metrics.RecordUnobserved(c.action)
	}
	s.logger.Warn("unobserved dispatch failure", "action", c.action, "id", c.id, "err", err)
	if s.opts.onUnobserved != nil {
		s.opts.onUnobserved(c, err)
	}
}
