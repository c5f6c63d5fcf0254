// Package wasmhost adapts a wazero-hosted WebAssembly module to the bridge's
// engine boundary. The module is compiled once, instantiated on a dedicated
// script goroutine, and from then on every guest call happens through an Env
// obtained on that goroutine:
//
//	host, err := wasmhost.New(ctx, wasmBytes, wasmhost.Config{Name: "worker"})
//	...
//	defer host.Shutdown(ctx)
//
//	host.RunSync(func(env scriptbridge.Env) {
//	    ch, _ = dispatch.New(env)
//	})
//
//	// later, from any goroutine
//	ch.Send(func(cx *dispatch.Context) (any, error) {
//	    out, err := host.Call(ctx, cx.Env(), "add", 5, 37)
//	    ...
//	})
//
// Guest traps surface as engine-phase exception errors from Call; a task that
// returns them is classified by the dispatch failure boundary like any other
// thrown failure.
package wasmhost
