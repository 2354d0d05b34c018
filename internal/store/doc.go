// Package store provides an action-based reactive state container.
//
// A Store holds exactly one current value of some type T. Handlers registered
// by action name change it; observers subscribe to it and derive projections
// from it.
//
// # Architecture
//
// The package has two halves:
//
//  1. Action table: Actions[T] maps an action name to a Descriptor and the
//     Handler implementing it. A table is built once per store kind, usually
//     in a package init function, and shared by every Store of that kind.
//
//  2. Container: Store[T] owns the state. Dispatch resolves a handler,
//     invokes it and turns its Result into a Completion. Publish replaces the
//     state and notifies subscribers. Select derives duplicate-suppressed
//     feeds.
//
// # Dispatch
//
// When an action is dispatched:
//
//  1. The name is resolved in the store's action table. A kind without any
//     action fails with ErrHandlerMissingMetadata, an unknown name with
//     ErrActionNotRegistered.
//  2. The handler runs synchronously with the current snapshot and payload.
//  3. Its Result is normalized: Done and Immediate complete at once, Fail
//     fails at once, Deferred/Async wait for a Future, Streaming iterates a
//     sequence and passes its values through to the Completion.
//  4. The Completion is returned before any asynchronous work settles.
//
// Handlers do not return new state. They call Publish themselves:
//
//	var counterActions = store.NewActions[Counter]("counter")
//
//	func init() {
//	    counterActions.MustRegister("increment", "", func(ctx context.Context, s *store.Store[Counter], state Counter, _ any) *store.Result {
//	        s.Publish(Counter{Count: state.Count + 1})
//	        return store.Done()
//	    })
//	}
//
// # Observation
//
// Every subscriber first receives the current value, then each published
// value in publish order:
//
//	s := store.New(counterActions, Counter{})
//	sub := store.Select(s, func(c Counter) int { return c.Count }).Subscribe(func(n int) {
//	    fmt.Println(n)
//	})
//	defer sub.Cancel()
//
// The raw feed (Subscribe, Changes) reports every publish, even of an equal
// value. Select feeds drop a projected value equal to the one that
// subscriber saw last.
//
// # Concurrency
//
// Notifications go through one queue per store and are delivered serially.
// In-flight dispatches are not serialized: a handler that reads its snapshot
// argument, waits, then publishes may overwrite a concurrent handler's
// publish. Update and CompareAndPublish are the read-modify-write primitives
// for handlers that need it.
//
// Nothing is cancellable. Dropping a Completion, or cancelling the context
// passed to Dispatch or Wait, leaves the handler running.
//
// # Failures
//
// Every dispatch failure is a *DispatchError matching one of the sentinel
// errors with errors.Is. A failure that settles after Dispatch returned, on a
// handle nobody observed, is logged and reported to the handler set with
// WithUnobservedFailureHandler, unless the policy is UnobservedIgnore. A
// handle is observed once OnError is registered, or once Err or Wait returns
// its settled outcome. Observe only sees values and does not count.
package store
