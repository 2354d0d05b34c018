package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/dshills/storekit/internal/store"
)

func noop(context.Context, *store.Store[counter], counter, any) *store.Result {
	return store.Done()
}

func TestActionsRegisterAndResolve(t *testing.T) {
	actions := store.NewActions[counter]("counter")

	if err := actions.Register("increment", "Increment", noop); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	desc, fn, ok := actions.Resolve("increment")
	if !ok {
		t.Fatal("expected action to resolve")
	}
	if fn == nil {
		t.Fatal("expected non-nil handler")
	}
	if desc.Name != "increment" || desc.HandlerName != "Increment" {
		t.Errorf("unexpected descriptor: %+v", desc)
	}
}

func TestActionsResolveMissing(t *testing.T) {
	actions := store.NewActions[counter]("counter")

	if _, _, ok := actions.Resolve("missing"); ok {
		t.Error("expected missing action not to resolve")
	}
	if actions.Has("missing") {
		t.Error("expected Has('missing') to return false")
	}
}

func TestActionsRegisterDefaultsToHandlerName(t *testing.T) {
	actions := store.NewActions[counter]("counter")

	if err := actions.Register("", "reset", noop); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	desc, _, ok := actions.Resolve("reset")
	if !ok {
		t.Fatal("expected action registered under its handler name")
	}
	if desc.Name != "reset" {
		t.Errorf("expected name reset, got %q", desc.Name)
	}
}

func TestActionsRegisterMissingName(t *testing.T) {
	actions := store.NewActions[counter]("counter")

	err := actions.Register("", "", noop)
	if !errors.Is(err, store.ErrMissingActionName) {
		t.Fatalf("expected ErrMissingActionName, got %v", err)
	}
	if actions.Len() != 0 {
		t.Errorf("expected empty table, got %d entries", actions.Len())
	}
}

func TestActionsMustRegisterPanics(t *testing.T) {
	actions := store.NewActions[counter]("counter")

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected panic")
		}
		err, ok := r.(error)
		if !ok || !errors.Is(err, store.ErrMissingActionName) {
			t.Errorf("expected ErrMissingActionName panic, got %v", r)
		}
	}()

	actions.MustRegister("", "", noop)
}

func TestActionsReRegisterReplaces(t *testing.T) {
	actions := store.NewActions[counter]("counter")

	actions.MustRegister("foo", "first", func(_ context.Context, s *store.Store[counter], _ counter, _ any) *store.Result {
		s.Publish(counter{Count: 1})
		return store.Done()
	})
	actions.MustRegister("foo", "second", func(_ context.Context, s *store.Store[counter], _ counter, _ any) *store.Result {
		s.Publish(counter{Count: 2})
		return store.Done()
	})

	if actions.Len() != 1 {
		t.Fatalf("expected 1 action, got %d", actions.Len())
	}
	desc, _, _ := actions.Resolve("foo")
	if desc.HandlerName != "second" {
		t.Errorf("expected second descriptor, got %q", desc.HandlerName)
	}

	s := newCounterStore(t, actions, 0)
	if _, err := s.Dispatch(context.Background(), "foo", nil).Wait(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := s.Snapshot().Count; got != 2 {
		t.Errorf("expected second handler to run, count = %d", got)
	}
}

func TestActionsNamesAndDescriptors(t *testing.T) {
	actions := store.NewActions[counter]("counter")
	actions.MustRegister("b", "", noop)
	actions.MustRegister("a", "", noop)
	actions.MustRegister("c", "", noop)

	names := actions.Names()
	want := []string{"a", "b", "c"}
	if len(names) != len(want) {
		t.Fatalf("expected %d names, got %d", len(want), len(names))
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names[%d] = %q, want %q", i, names[i], want[i])
		}
	}

	descs := actions.Descriptors()
	if len(descs) != 3 || descs[0].Name != "a" || descs[2].Name != "c" {
		t.Errorf("unexpected descriptors: %+v", descs)
	}
	if actions.Kind() != "counter" {
		t.Errorf("expected kind counter, got %q", actions.Kind())
	}
}

func TestActionsNilLen(t *testing.T) {
	var actions *store.Actions[counter]
	if actions.Len() != 0 {
		t.Error("expected nil table to have no actions")
	}
	if names := actions.Names(); len(names) != 0 {
		t.Errorf("expected no names, got %v", names)
	}
	if descs := actions.Descriptors(); len(descs) != 0 {
		t.Errorf("expected no descriptors, got %v", descs)
	}
}

func TestActionlessStoreListsNoActions(t *testing.T) {
	s := newCounterStore(t, nil, 0)
	if names := s.Actions().Names(); len(names) != 0 {
		t.Errorf("expected no names, got %v", names)
	}
}
