// Package simengine is an in-process script engine used by tests, examples,
// and the monitor command. It models the parts of a real embedding that the
// bridge depends on: a single script thread, persistent references backed by
// a handle table, slot storage with a teardown finalizer, a pending-exception
// register, and thread-safe signalers.
//
// The engine runs one goroutine locked to an OS thread. Every Env method
// verifies it is reached from that goroutine and panics otherwise, counting
// the violation, so tests can prove that no code path touches engine state
// off the script thread:
//
//	eng := simengine.New()
//	defer eng.Shutdown()
//
//	eng.RunSync(func(env scriptbridge.Env) {
//	    r := handle.New(env, "payload")
//	    go r.Release() // legal: never touches the engine directly
//	})
//
// Shutdown runs the registered instance finalizer on the script thread, then
// stops delivering signals; callbacks registered through NewSignaler are
// never invoked after teardown completes.
package simengine
