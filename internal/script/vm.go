package script

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	lua "github.com/yuin/gopher-lua"
)

// DefaultTimeout bounds one top-level action call.
const DefaultTimeout = 5 * time.Second

// vm wraps a sandboxed Lua state. gopher-lua's LState is not goroutine-safe;
// mu serializes top-level calls and frames tracks the nested ones.
type vm struct {
	L *lua.LState

	mu      sync.Mutex
	timeout time.Duration
	logger  *log.Logger
	frames  []frame
	closed  bool
}

// frame binds the store module to the store and context of the running call.
type frame struct {
	api api
	ctx context.Context
}

// api is what the store module can do for the running action.
type api interface {
	kind() string
	publish(state map[string]any)
	snapshot() map[string]any
	dispatch(ctx context.Context, name string, payload any) error
}

func newVM(timeout time.Duration, logger *log.Logger) *vm {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibraries(L)

	v := &vm{L: L, timeout: timeout, logger: logger}
	v.installSandbox()
	v.installStoreModule()
	return v
}

// openSafeLibraries opens only the libraries without file or process access.
func openSafeLibraries(L *lua.LState) {
	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(lib.fn))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}
}

func (v *vm) installSandbox() {
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require", "module"} {
		v.L.SetGlobal(name, lua.LNil)
	}

	v.L.SetGlobal("print", v.L.NewFunction(func(L *lua.LState) int {
		parts := make([]string, 0, L.GetTop())
		for i := 1; i <= L.GetTop(); i++ {
			parts = append(parts, L.ToStringMeta(L.Get(i)).String())
		}
		v.logger.Info(strings.Join(parts, "\t"))
		return 0
	}))
}

func (v *vm) installStoreModule() {
	mod := v.L.NewTable()
	v.L.SetFuncs(mod, map[string]lua.LGFunction{
		"publish":  v.luaPublish,
		"snapshot": v.luaSnapshot,
		"dispatch": v.luaDispatch,
	})

	// store.kind resolves against the running frame.
	mt := v.L.NewTable()
	v.L.SetField(mt, "__index", v.L.NewFunction(func(L *lua.LState) int {
		if L.CheckString(2) != "kind" {
			L.Push(lua.LNil)
			return 1
		}
		f, ok := v.current()
		if !ok {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(lua.LString(f.api.kind()))
		return 1
	}))
	v.L.SetMetatable(mod, mt)
	v.L.SetGlobal("store", mod)
}

func (v *vm) current() (frame, bool) {
	if len(v.frames) == 0 {
		return frame{}, false
	}
	return v.frames[len(v.frames)-1], true
}

func (v *vm) luaPublish(L *lua.LState) int {
	f, ok := v.current()
	if !ok {
		L.RaiseError("store.publish called outside an action")
		return 0
	}
	state, ok := toGo(L.CheckTable(1)).(map[string]any)
	if !ok {
		// An array-shaped table is not a valid state.
		L.RaiseError("%s", ErrInvalidState.Error())
		return 0
	}
	f.api.publish(state)
	return 0
}

func (v *vm) luaSnapshot(L *lua.LState) int {
	f, ok := v.current()
	if !ok {
		L.RaiseError("store.snapshot called outside an action")
		return 0
	}
	L.Push(toLua(L, f.api.snapshot()))
	return 1
}

func (v *vm) luaDispatch(L *lua.LState) int {
	f, ok := v.current()
	if !ok {
		L.RaiseError("store.dispatch called outside an action")
		return 0
	}
	name := L.CheckString(1)
	payload := toGo(L.Get(2))
	if err := f.api.dispatch(f.ctx, name, payload); err != nil {
		L.RaiseError("%s", err.Error())
	}
	return 0
}

type heldKey struct{}

// call runs the global actions[name] with state and payload converted to Lua.
// A nested call, made through store.dispatch while the VM is already held by
// the same call chain, reuses the lock and the deadline of the outer call.
func (v *vm) call(ctx context.Context, a api, name string, state map[string]any, payload any) (any, error) {
	nested := ctx.Value(heldKey{}) == v
	if !nested {
		v.mu.Lock()
		defer v.mu.Unlock()
	}
	if v.closed {
		return nil, ErrScriptClosed
	}

	if !nested {
		runCtx, cancel := context.WithTimeout(ctx, v.timeout)
		defer cancel()
		v.L.SetContext(runCtx)
		defer v.L.RemoveContext()
		ctx = context.WithValue(runCtx, heldKey{}, v)
	}

	v.frames = append(v.frames, frame{api: a, ctx: ctx})
	defer func() { v.frames = v.frames[:len(v.frames)-1] }()

	fn, err := v.lookup(name)
	if err != nil {
		return nil, err
	}

	top := v.L.GetTop()
	err = v.protect(func() error {
		return v.L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, toLua(v.L, state), toLua(v.L, payload))
	})
	if err != nil {
		v.L.SetTop(top)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s after %s", ErrTimeout, name, v.timeout)
		}
		return nil, err
	}

	ret := v.L.Get(-1)
	v.L.SetTop(top)
	return toGo(ret), nil
}

func (v *vm) lookup(name string) (*lua.LFunction, error) {
	tbl, ok := v.L.GetGlobal("actions").(*lua.LTable)
	if !ok {
		return nil, ErrNoActions
	}
	fn, ok := tbl.RawGetString(name).(*lua.LFunction)
	if !ok {
		return nil, fmt.Errorf("script: actions.%s is not a function", name)
	}
	return fn, nil
}

// names returns the string keys of the actions table bound to functions.
func (v *vm) names() ([]string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	tbl, ok := v.L.GetGlobal("actions").(*lua.LTable)
	if !ok {
		return nil, ErrNoActions
	}
	var names []string
	tbl.ForEach(func(k, val lua.LValue) {
		if ks, ok := k.(lua.LString); ok && val.Type() == lua.LTFunction {
			names = append(names, string(ks))
		}
	})
	return names, nil
}

// load runs the script's top-level chunk.
func (v *vm) load(name, source string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), v.timeout)
	defer cancel()
	v.L.SetContext(ctx)
	defer v.L.RemoveContext()

	fn, err := v.L.Load(strings.NewReader(source), name)
	if err != nil {
		return fmt.Errorf("script: compile %s: %w", name, err)
	}
	err = v.protect(func() error {
		return v.L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true})
	})
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: loading %s", ErrTimeout, name)
		}
		return fmt.Errorf("script: run %s: %w", name, err)
	}
	return nil
}

// protect turns a Go panic escaping the VM into an error.
func (v *vm) protect(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return fn()
}

func (v *vm) close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.closed = true
	v.L.Close()
}
