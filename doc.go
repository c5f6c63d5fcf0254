// Package scriptbridge lets native goroutines safely hand work back to a
// single-threaded, garbage-collected script engine.
//
// Embedded script engines (JavaScript isolates, WASM instances, interpreter
// VMs) share one invariant: all engine memory is owned by a single logical
// thread, and touching it from anywhere else is undefined behavior. This
// library provides the two primitives that make multi-threaded native code
// safe against that invariant:
//
//   - dispatch.Channel: a cloneable, thread-safe handle through which any
//     goroutine can schedule a closure to run on the script thread, with FIFO
//     ordering per channel and an optional JoinHandle for the result.
//   - handle.Root: an owned, thread-transferable reference to a single engine
//     value. Roots can be cloned and released from any goroutine; the actual
//     engine-level disposal always happens on the script thread, deferred
//     through a drop queue when the release is requested elsewhere.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	scriptbridge/        Root package with the Env/Signaler engine boundary
//	├── dispatch/        Channel, JoinHandle, and the script-thread dispatcher
//	├── handle/          Root: persistent-reference ownership across threads
//	├── instance/        Per-environment identity, drop queue, and shutdown
//	├── errors/          Structured error types (wrong instance, closed, ...)
//	├── simengine/       Instrumented in-process engine for tests and demos
//	└── wasmhost/        Env adapter for a wazero-hosted WebAssembly guest
//
// # Quick Start
//
// Schedule work from a worker goroutine and wait for its result:
//
//	eng := simengine.New()
//	defer eng.Shutdown()
//
//	var ch *dispatch.Channel
//	eng.RunSync(func(env scriptbridge.Env) {
//	    ch, _ = dispatch.New(env)
//	})
//
//	go func() {
//	    n := expensiveComputation()
//	    handle := ch.Send(func(cx *dispatch.Context) (any, error) {
//	        return n + 1, nil
//	    })
//	    result, err := handle.Join()
//	    // ...
//	}()
//
// # Thread Safety
//
// Channel, JoinHandle, and Root are safe to clone, send, and release from any
// goroutine. Everything reachable through an Env (local values, persistent
// reference operations, signaler registration) is script-thread only; an Env
// is a capability token proving the caller is on that thread.
//
// # Multiple Instances
//
// Several independent environments may coexist in one process (one per
// engine). Every Root and Channel is tagged with the instance that created
// it, and using one against a different instance fails with a WrongInstance
// error instead of corrupting a foreign heap.
package scriptbridge
