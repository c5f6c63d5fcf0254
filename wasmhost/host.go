package wasmhost

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	scriptbridge "github.com/wippyai/script-bridge"
	"github.com/wippyai/script-bridge/errors"
	"github.com/wippyai/script-bridge/internal/reftable"
)

// Config holds configuration for host creation.
type Config struct {
	// Name is the wazero module instance name. Empty means "main".
	Name string

	// MemoryLimitPages sets the maximum guest memory in pages (64KB each).
	// 0 means the wazero default.
	MemoryLimitPages uint32
}

// Host owns one instantiated WebAssembly module and the script goroutine it
// lives on. Host methods are safe from any goroutine; the Env handed to
// RunSync and to dispatched tasks is only valid on the script goroutine.
type Host struct {
	runtime  wazero.Runtime
	compiled wazero.CompiledModule
	module   api.Module

	env      *environment
	loopGoid uint64

	mu    sync.Mutex
	queue []func(scriptbridge.Env)

	wake chan struct{}
	done chan struct{}

	closed   atomic.Bool
	shutting atomic.Bool

	// script-goroutine state
	instanceData any
	finalizer    func(scriptbridge.Env)
	pending      *thrownBox
	refs         *reftable.Table
}

type thrownBox struct {
	v scriptbridge.Value
}

// New compiles wasmBytes, starts the script goroutine, and instantiates the
// module on it. The returned Host is ready for RunSync and Call.
func New(ctx context.Context, wasmBytes []byte, cfg Config) (*Host, error) {
	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	rt := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)

	compiled, err := rt.CompileModule(ctx, wasmBytes)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, errors.Wrap(errors.PhaseEngine, errors.KindInvalidInput, err, "compile module")
	}

	h := &Host{
		runtime:  rt,
		compiled: compiled,
		refs:     reftable.New(),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	h.env = &environment{h: h}

	ready := make(chan struct{})
	go h.loop(ready)
	<-ready

	name := cfg.Name
	if name == "" {
		name = "main"
	}

	// instantiate on the script goroutine so the module never runs anywhere
	// else
	var instErr error
	h.runSync(func(scriptbridge.Env) {
		h.module, instErr = rt.InstantiateModule(ctx, compiled,
			wazero.NewModuleConfig().WithName(name))
	})
	if instErr != nil {
		h.stop()
		_ = rt.Close(ctx)
		return nil, errors.Wrap(errors.PhaseEngine, errors.KindInvalidInput, instErr, "instantiate module")
	}

	Logger().Debug("module instantiated", zap.String("name", name))
	return h, nil
}

func (h *Host) loop(ready chan struct{}) {
	runtime.LockOSThread()
	h.loopGoid = goid()
	close(ready)
	defer close(h.done)

	for {
		fn, ok := h.pop()
		if ok {
			if !h.closed.Load() {
				fn(h.env)
			}
			continue
		}
		if h.closed.Load() {
			return
		}
		<-h.wake
	}
}

func (h *Host) pop() (func(scriptbridge.Env), bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.queue) == 0 {
		return nil, false
	}
	fn := h.queue[0]
	h.queue = h.queue[1:]
	return fn, true
}

func (h *Host) post(fn func(scriptbridge.Env)) {
	h.mu.Lock()
	h.queue = append(h.queue, fn)
	h.mu.Unlock()

	select {
	case h.wake <- struct{}{}:
	default:
	}
}

func (h *Host) runSync(fn func(scriptbridge.Env)) {
	if goid() == h.loopGoid {
		fn(h.env)
		return
	}
	ran := make(chan struct{})
	h.post(func(env scriptbridge.Env) {
		defer close(ran)
		fn(env)
	})

	// teardown can race the post and discard the task; done unblocks waiters
	select {
	case <-ran:
	case <-h.done:
	}
}

// RunSync executes fn on the script goroutine and waits. Panics if the host
// has shut down.
func (h *Host) RunSync(fn func(scriptbridge.Env)) {
	if h.closed.Load() {
		panic("wasmhost: RunSync after Shutdown")
	}
	h.runSync(fn)
}

// Call invokes an exported guest function. Must be called on the script
// goroutine with this host's Env; a guest trap comes back as an
// engine-phase exception error.
func (h *Host) Call(ctx context.Context, env scriptbridge.Env, name string, args ...uint64) ([]uint64, error) {
	h.env.check("Call")
	if env != scriptbridge.Env(h.env) {
		return nil, errors.InvalidInput(errors.PhaseEngine, "Env does not belong to this host")
	}

	fn := h.module.ExportedFunction(name)
	if fn == nil {
		return nil, errors.InvalidInput(errors.PhaseEngine, "no exported function "+name)
	}

	out, err := fn.Call(ctx, args...)
	if err != nil {
		return nil, errors.New(errors.PhaseEngine, errors.KindException).
			Detail("guest trap in %s", name).
			Cause(err).
			Build()
	}
	return out, nil
}

// Shutdown runs the instance finalizer on the script goroutine, closes the
// module and runtime, and stops the goroutine. Safe to call repeatedly from
// any goroutine.
func (h *Host) Shutdown(ctx context.Context) {
	if h.shutting.Swap(true) {
		<-h.done
		return
	}
	h.post(func(env scriptbridge.Env) {
		if fin := h.finalizer; fin != nil {
			h.finalizer = nil
			fin(env)
		}
		if dropped := h.refs.Clear(); dropped > 0 {
			Logger().Debug("dropped refs with the environment", zap.Int("count", dropped))
		}
		if h.module != nil {
			if err := h.module.Close(ctx); err != nil {
				Logger().Warn("close module", zap.Error(err))
			}
		}
		h.closed.Store(true)
	})
	<-h.done

	if err := h.runtime.Close(ctx); err != nil {
		Logger().Warn("close runtime", zap.Error(err))
	}
	Logger().Debug("host stopped")
}

// LiveRefs returns the number of persistent references not yet disposed.
func (h *Host) LiveRefs() int {
	return h.refs.Len()
}

// stop halts the loop without teardown, for failed construction.
func (h *Host) stop() {
	h.shutting.Store(true)
	h.post(func(scriptbridge.Env) {
		h.closed.Store(true)
	})
	<-h.done
}
