package store

import (
	"context"
	"iter"
	"reflect"
	"sync"
)

// Feed is a restartable stream of values derived from a store. Every
// subscriber gets its own sequence: the current value first, then live ones.
type Feed[V any] struct {
	subscribe func(func(V)) Subscription
}

// Subscribe attaches fn to the feed. fn is called serially, never from two
// goroutines at once for the same store.
func (f Feed[V]) Subscribe(fn func(V)) Subscription {
	if fn == nil {
		fn = func(V) {}
	}
	return f.subscribe(fn)
}

// Values returns the feed as a lazy sequence. Iteration blocks waiting for
// new values and ends when ctx is done or the consumer stops; either way the
// underlying subscription is cancelled. Values are buffered, never dropped.
func (f Feed[V]) Values(ctx context.Context) iter.Seq[V] {
	return func(yield func(V) bool) {
		var (
			mu     sync.Mutex
			queue  []V
			signal = make(chan struct{}, 1)
		)

		sub := f.Subscribe(func(v V) {
			mu.Lock()
			queue = append(queue, v)
			mu.Unlock()
			select {
			case signal <- struct{}{}:
			default:
			}
		})
		defer sub.Cancel()

		for {
			mu.Lock()
			pending := queue
			queue = nil
			mu.Unlock()

			for _, v := range pending {
				if !yield(v) {
					return
				}
			}

			select {
			case <-ctx.Done():
				return
			case <-signal:
			}
		}
	}
}

// Select derives a feed of project(state), dropping a value when it equals
// the one this subscriber saw last.
func Select[T any, V comparable](s *Store[T], project func(T) V) Feed[V] {
	return SelectFunc(s, project, func(a, b V) bool { return a == b })
}

// SelectDeep is Select for projections that are not comparable with ==,
// such as slices, maps or pointers; values are compared with reflect.DeepEqual.
func SelectDeep[T, V any](s *Store[T], project func(T) V) Feed[V] {
	return SelectFunc(s, project, func(a, b V) bool { return reflect.DeepEqual(a, b) })
}

// SelectFunc derives a feed of project(state) using equal for duplicate
// suppression. Only consecutive duplicates are dropped.
func SelectFunc[T, V any](s *Store[T], project func(T) V, equal func(a, b V) bool) Feed[V] {
	return Feed[V]{
		subscribe: func(fn func(V)) Subscription {
			var (
				last V
				seen bool
			)
			return s.Subscribe(func(state T) {
				v := project(state)
				if seen && equal(last, v) {
					return
				}
				last, seen = v, true
				fn(v)
			})
		},
	}
}
