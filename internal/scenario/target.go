package scenario

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/dshills/storekit/internal/datepicker"
	"github.com/dshills/storekit/internal/script"
	"github.com/dshills/storekit/internal/store"
)

// target is a store of some kind driven by a scenario.
type target interface {
	kind() string
	actions() []string
	dispatch(ctx context.Context, name string, payload *yaml.Node) (*store.Completion, error)
	state() any
	selectFeed(name string) (store.Feed[any], error)
	metrics() *store.Metrics
	close()
}

func isEmpty(n *yaml.Node) bool {
	return n == nil || n.Kind == 0 || (n.Kind == yaml.ScalarNode && n.Tag == "!!null")
}

type datepickerTarget struct {
	s *datepicker.Store
}

func newDatepickerTarget(sc *Scenario, opts []store.Option) (*datepickerTarget, error) {
	var initial datepicker.State
	if !isEmpty(&sc.Initial) {
		if err := sc.Initial.Decode(&initial); err != nil {
			return nil, fmt.Errorf("decode initial state: %w", err)
		}
	}
	return &datepickerTarget{s: datepicker.NewWithState(initial, opts...)}, nil
}

func (t *datepickerTarget) kind() string {
	return datepicker.Kind
}

func (t *datepickerTarget) actions() []string {
	return datepicker.Actions.Names()
}

func (t *datepickerTarget) dispatch(ctx context.Context, name string, payload *yaml.Node) (*store.Completion, error) {
	var p any
	switch {
	case isEmpty(payload):
	case payload.Kind == yaml.ScalarNode:
		// Scalar payloads, like a bare view mode, go through as strings.
		var s string
		if err := payload.Decode(&s); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", name, err)
		}
		p = s
	default:
		typed, ok := datepicker.NewPayload(name)
		if !ok {
			// Unknown action: let the store report it.
			return t.s.Dispatch(ctx, name, nil), nil
		}
		if err := payload.Decode(typed); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", name, err)
		}
		p = typed
	}
	return t.s.Dispatch(ctx, name, p), nil
}

func (t *datepickerTarget) state() any {
	return t.s.Snapshot()
}

func (t *datepickerTarget) selectFeed(name string) (store.Feed[any], error) {
	fn, ok := datepicker.Selector(name)
	if !ok {
		return store.Feed[any]{}, fmt.Errorf("unknown datepicker selector %q", name)
	}
	return store.SelectDeep(t.s.Store, fn), nil
}

func (t *datepickerTarget) metrics() *store.Metrics {
	return t.s.Metrics()
}

func (t *datepickerTarget) close() {
	t.s.Close()
}

type scriptTarget struct {
	sc *script.Script
	s  *store.Store[script.State]
}

func newScriptTarget(sc *Scenario, storeOpts []store.Option, scriptOpts []script.Option) (*scriptTarget, error) {
	loaded, err := script.LoadFile(sc.ScriptPath(), scriptOpts...)
	if err != nil {
		return nil, err
	}

	initial := script.State{}
	if !isEmpty(&sc.Initial) {
		if err := sc.Initial.Decode(&initial); err != nil {
			loaded.Close()
			return nil, fmt.Errorf("decode initial state: %w", err)
		}
	}
	return &scriptTarget{sc: loaded, s: loaded.NewStore(initial, storeOpts...)}, nil
}

func (t *scriptTarget) kind() string {
	return t.s.Kind()
}

func (t *scriptTarget) actions() []string {
	return t.sc.Actions().Names()
}

func (t *scriptTarget) dispatch(ctx context.Context, name string, payload *yaml.Node) (*store.Completion, error) {
	var p any
	if !isEmpty(payload) {
		if err := payload.Decode(&p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", name, err)
		}
	}
	return t.s.Dispatch(ctx, name, p), nil
}

func (t *scriptTarget) state() any {
	return t.s.Snapshot()
}

func (t *scriptTarget) selectFeed(name string) (store.Feed[any], error) {
	return store.SelectDeep(t.s, func(m script.State) any {
		return lookup(m, name)
	}), nil
}

func (t *scriptTarget) metrics() *store.Metrics {
	return t.s.Metrics()
}

func (t *scriptTarget) close() {
	t.s.Close()
	t.sc.Close()
}
