// Package script builds store action tables from Lua scripts.
//
// A script defines its actions as functions of a global actions table. Each
// function receives the current state and the payload as Lua values and
// changes the store through the store module:
//
//	actions = {}
//
//	function actions.increment(state, payload)
//	    local by = (payload and payload.by) or 1
//	    store.publish({ count = state.count + by })
//	end
//
//	function actions.double(state)
//	    store.dispatch("increment", { by = state.count })
//	    return store.snapshot().count
//	end
//
// The store module provides:
//   - store.publish(tbl): publish a new state
//   - store.snapshot(): the current state
//   - store.dispatch(name, payload): run another action of the same store
//   - store.kind: the store kind
//
// State is a map[string]any. Lua tables with consecutive integer keys from 1
// become []any, other tables map[string]any; integral numbers become int.
//
// # Sandbox
//
// Only the base, table, string and math libraries are opened, and dofile,
// loadfile, load, loadstring, require and module are removed. print writes to
// the script's logger. Every top-level call is bounded by the script timeout.
//
// # Concurrency
//
// A Script owns one Lua VM guarded by a mutex, so its actions run one at a
// time. store.dispatch from inside an action runs the nested action on the
// same VM without releasing it. A subscriber must not synchronously dispatch
// a scripted action of the store that is publishing to it.
package script
