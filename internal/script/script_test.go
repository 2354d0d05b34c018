package script_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dshills/storekit/internal/script"
	"github.com/dshills/storekit/internal/store"
)

const counterScript = `
actions = {}

function actions.increment(state, payload)
    local by = 1
    if payload ~= nil and payload.by ~= nil then
        by = payload.by
    end
    store.publish({ count = state.count + by, label = state.label })
end

function actions.double(state)
    store.dispatch("increment", { by = state.count })
    return store.snapshot().count
end

function actions.kind()
    return store.kind
end

function actions.fail()
    error("refusing to fail quietly")
end

function actions.spin()
    while true do end
end

function actions.tags(state)
    store.publish({ count = state.count, tags = { "a", "b" } })
end

function actions.bad()
    store.publish({ 1, 2, 3 })
end

function actions.say(state)
    print("count is", state.count)
end

helper = "not an action"
`

func quiet() *log.Logger {
	return log.New(io.Discard)
}

func loadCounter(t *testing.T, opts ...script.Option) *script.Script {
	t.Helper()
	opts = append([]script.Option{script.WithLogger(quiet())}, opts...)
	s, err := script.Load("counter", counterScript, opts...)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func newStore(t *testing.T, s *script.Script, initial script.State) *store.Store[script.State] {
	t.Helper()
	st := s.NewStore(initial, store.WithLogger(quiet()))
	t.Cleanup(st.Close)
	return st
}

func TestLoadRegistersActions(t *testing.T) {
	s := loadCounter(t)

	want := []string{"bad", "double", "fail", "increment", "kind", "say", "spin", "tags"}
	if got := s.Actions().Names(); !slices.Equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if s.Actions().Kind() != "counter" {
		t.Errorf("expected kind counter, got %q", s.Actions().Kind())
	}
	desc, _, ok := s.Actions().Resolve("increment")
	if !ok || desc.HandlerName != "actions.increment" {
		t.Errorf("unexpected descriptor: %+v", desc)
	}
}

func TestLoadWithoutActionsTable(t *testing.T) {
	_, err := script.Load("empty", `x = 1`, script.WithLogger(quiet()))
	if !errors.Is(err, script.ErrNoActions) {
		t.Errorf("expected ErrNoActions, got %v", err)
	}
}

func TestLoadSyntaxError(t *testing.T) {
	if _, err := script.Load("broken", `actions = {`, script.WithLogger(quiet())); err == nil {
		t.Error("expected compile error")
	}
}

func TestIncrement(t *testing.T) {
	s := loadCounter(t)
	st := newStore(t, s, script.State{"count": 1, "label": "clicks"})

	if err := st.Dispatch(context.Background(), "increment", nil).Err(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := st.Dispatch(context.Background(), "increment", map[string]any{"by": 5}).Err(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := st.Snapshot()
	if got["count"] != 7 || got["label"] != "clicks" {
		t.Errorf("unexpected state: %v", got)
	}
}

func TestNestedDispatchAndReturnValue(t *testing.T) {
	s := loadCounter(t)
	st := newStore(t, s, script.State{"count": 3})

	v, err := st.Dispatch(context.Background(), "double", nil).Wait(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 6 {
		t.Errorf("expected immediate value 6, got %v", v)
	}
	if got := st.Snapshot()["count"]; got != 6 {
		t.Errorf("expected count 6, got %v", got)
	}
}

func TestStoreKind(t *testing.T) {
	s := loadCounter(t, script.WithKind("clicker"))
	st := newStore(t, s, nil)

	v, err := st.Dispatch(context.Background(), "kind", nil).Wait(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "clicker" {
		t.Errorf("expected clicker, got %v", v)
	}
}

func TestLuaErrorFailsDispatch(t *testing.T) {
	s := loadCounter(t)
	st := newStore(t, s, script.State{"count": 1})

	err := st.Dispatch(context.Background(), "fail", nil).Err()
	if !errors.Is(err, store.ErrHandlerExecution) {
		t.Fatalf("expected ErrHandlerExecution, got %v", err)
	}
	if !strings.Contains(err.Error(), "refusing to fail quietly") {
		t.Errorf("expected Lua message in error, got %q", err.Error())
	}
	if got := st.Snapshot()["count"]; got != 1 {
		t.Errorf("failed action changed state: %v", got)
	}
}

func TestTimeout(t *testing.T) {
	s := loadCounter(t, script.WithTimeout(50*time.Millisecond))
	st := newStore(t, s, script.State{"count": 1})

	err := st.Dispatch(context.Background(), "spin", nil).Err()
	if !errors.Is(err, script.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}

	// The VM is usable after a timeout.
	if err := st.Dispatch(context.Background(), "increment", nil).Err(); err != nil {
		t.Errorf("unexpected error after timeout: %v", err)
	}
}

func TestPublishArrays(t *testing.T) {
	s := loadCounter(t)
	st := newStore(t, s, script.State{"count": 0})

	if err := st.Dispatch(context.Background(), "tags", nil).Err(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tags, ok := st.Snapshot()["tags"].([]any)
	if !ok || !slices.Equal(tags, []any{"a", "b"}) {
		t.Errorf("expected tags [a b], got %#v", st.Snapshot()["tags"])
	}

	err := st.Dispatch(context.Background(), "bad", nil).Err()
	if err == nil || !strings.Contains(err.Error(), script.ErrInvalidState.Error()) {
		t.Errorf("expected invalid state error, got %v", err)
	}
}

func TestPrintGoesToLogger(t *testing.T) {
	var buf bytes.Buffer
	s, err := script.Load("counter", counterScript, script.WithLogger(log.New(&buf)))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	defer s.Close()
	st := newStore(t, s, script.State{"count": 4})

	if err := st.Dispatch(context.Background(), "say", nil).Err(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out := buf.String(); !strings.Contains(out, "count is") || !strings.Contains(out, "4") {
		t.Errorf("expected print output in log, got %q", buf.String())
	}
}

func TestSandboxRemovesLoaders(t *testing.T) {
	src := `
actions = {}
function actions.probe()
    return { dofile = dofile == nil, load = load == nil, require = require == nil, io = io == nil, os = os == nil }
end
`
	s, err := script.Load("probe", src, script.WithLogger(quiet()))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	defer s.Close()
	st := newStore(t, s, nil)

	v, err := st.Dispatch(context.Background(), "probe", nil).Wait(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	probe, ok := v.(map[string]any)
	if !ok {
		t.Fatalf("expected table result, got %T", v)
	}
	for name, removed := range probe {
		if removed != true {
			t.Errorf("%s is reachable from the sandbox", name)
		}
	}
}

func TestConcurrentDispatchesAreSerialized(t *testing.T) {
	src := `
actions = {}
function actions.increment()
    local s = store.snapshot()
    store.publish({ count = s.count + 1 })
end
`
	s, err := script.Load("serial", src, script.WithLogger(quiet()))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	defer s.Close()
	st := newStore(t, s, script.State{"count": 0})

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := st.Dispatch(context.Background(), "increment", nil).Err(); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := st.Snapshot()["count"]; got != 20 {
		t.Errorf("expected 20, got %v", got)
	}
}

func TestClosedScript(t *testing.T) {
	s, err := script.Load("counter", counterScript, script.WithLogger(quiet()))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	st := newStore(t, s, script.State{"count": 0})
	s.Close()

	err = st.Dispatch(context.Background(), "increment", nil).Err()
	if !errors.Is(err, script.ErrScriptClosed) {
		t.Errorf("expected ErrScriptClosed, got %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clicks.lua")
	if err := os.WriteFile(path, []byte(counterScript), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := script.LoadFile(path, script.WithLogger(quiet()))
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	defer s.Close()

	if s.Name() != "clicks" || s.Actions().Kind() != "clicks" {
		t.Errorf("expected name and kind clicks, got %q and %q", s.Name(), s.Actions().Kind())
	}

	if _, err := script.LoadFile(filepath.Join(t.TempDir(), "missing.lua")); err == nil {
		t.Error("expected error for missing file")
	}
}
