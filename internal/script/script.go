package script

import (
	"context"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dshills/storekit/internal/store"
)

// State is the state type of scripted stores.
type State = map[string]any

// Script is a loaded Lua script and the action table built from it.
type Script struct {
	name    string
	vm      *vm
	actions *store.Actions[State]
}

// Option configures a Script.
type Option func(*options)

type options struct {
	timeout time.Duration
	logger  *log.Logger
	kind    string
}

// WithTimeout bounds each top-level action call and the initial load.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithLogger sets the logger print writes to.
func WithLogger(l *log.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithKind overrides the store kind, which defaults to the script name.
func WithKind(kind string) Option {
	return func(o *options) {
		o.kind = kind
	}
}

// LoadFile loads a script from path. The kind defaults to the file name
// without its extension.
func LoadFile(path string, opts ...Option) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("script: read %s: %w", path, err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return Load(name, string(data), opts...)
}

// Load compiles and runs source, then registers one action per function in
// its actions table.
func Load(name, source string, opts ...Option) (*Script, error) {
	o := options{
		timeout: DefaultTimeout,
		kind:    name,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "script"})
	}
	o.logger = o.logger.With("script", name)

	v := newVM(o.timeout, o.logger)
	if err := v.load(name, source); err != nil {
		v.close()
		return nil, err
	}

	names, err := v.names()
	if err != nil {
		v.close()
		return nil, err
	}
	slices.Sort(names)

	s := &Script{
		name:    name,
		vm:      v,
		actions: store.NewActions[State](o.kind),
	}
	for _, action := range names {
		s.actions.MustRegister(action, "actions."+action, s.handler(action))
	}
	o.logger.Debug("script loaded", "actions", len(names))
	return s, nil
}

// Name returns the script name.
func (s *Script) Name() string {
	return s.name
}

// Actions returns the action table built from the script.
func (s *Script) Actions() *store.Actions[State] {
	return s.actions
}

// NewStore creates a store of the script's kind holding initial. A nil
// initial state starts empty.
func (s *Script) NewStore(initial State, opts ...store.Option) *store.Store[State] {
	if initial == nil {
		initial = State{}
	}
	return store.New(s.actions, initial, opts...)
}

// Close releases the Lua VM. Dispatching a scripted action afterwards fails
// with ErrScriptClosed.
func (s *Script) Close() {
	s.vm.close()
}

func (s *Script) handler(action string) store.Handler[State] {
	return func(ctx context.Context, st *store.Store[State], state State, payload any) *store.Result {
		v, err := s.vm.call(ctx, storeAPI{st}, action, state, payload)
		if err != nil {
			return store.Fail(err)
		}
		if v == nil {
			return store.Done()
		}
		return store.Immediate(v)
	}
}

// storeAPI exposes a store to the store module.
type storeAPI struct {
	s *store.Store[State]
}

func (a storeAPI) kind() string {
	return a.s.Kind()
}

func (a storeAPI) publish(state map[string]any) {
	a.s.Publish(state)
}

func (a storeAPI) snapshot() map[string]any {
	return maps.Clone(a.s.Snapshot())
}

func (a storeAPI) dispatch(ctx context.Context, name string, payload any) error {
	return a.s.Dispatch(ctx, name, payload).Err()
}
