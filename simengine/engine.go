package simengine

import (
	"runtime"
	"sync"
	"sync/atomic"

	scriptbridge "github.com/wippyai/script-bridge"
	"github.com/wippyai/script-bridge/internal/reftable"
)

// Engine is one simulated script environment. Create with New, drive script
// code with RunSync, and tear down with Shutdown. All Env access happens on
// the engine's own goroutine; the Engine methods themselves are safe from any
// goroutine.
type Engine struct {
	refs     *reftable.Table
	env      *environment
	loopGoid uint64

	mu       sync.Mutex
	queue    []func(scriptbridge.Env)
	uncaught []scriptbridge.Value

	wake chan struct{}
	done chan struct{}

	closed    atomic.Bool
	shutting  atomic.Bool
	offThread atomic.Int64

	// script-thread state, touched only from the loop goroutine
	instanceData any
	finalizer    func(scriptbridge.Env)
	pending      *thrownBox
}

type thrownBox struct {
	v scriptbridge.Value
}

// New starts an engine. The script goroutine is locked to its OS thread and
// runs until Shutdown.
func New() *Engine {
	e := &Engine{
		refs: reftable.New(),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	e.env = &environment{e: e}

	ready := make(chan struct{})
	go e.loop(ready)
	<-ready
	return e
}

func (e *Engine) loop(ready chan struct{}) {
	runtime.LockOSThread()
	e.loopGoid = goid()
	close(ready)
	defer close(e.done)

	for {
		fn, ok := e.pop()
		if ok {
			// Work queued behind the teardown task is dropped, matching an
			// engine that stops delivering callbacks once the environment
			// is gone.
			if !e.closed.Load() {
				fn(e.env)
			}
			continue
		}
		if e.closed.Load() {
			return
		}
		<-e.wake
	}
}

func (e *Engine) pop() (func(scriptbridge.Env), bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.queue) == 0 {
		return nil, false
	}
	fn := e.queue[0]
	e.queue = e.queue[1:]
	return fn, true
}

func (e *Engine) post(fn func(scriptbridge.Env)) {
	e.mu.Lock()
	e.queue = append(e.queue, fn)
	e.mu.Unlock()

	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// RunSync executes fn on the script thread and waits for it to finish. A
// panic inside fn is rethrown on the caller's goroutine, keeping the script
// thread alive. Calling from the script thread itself runs fn inline.
//
// RunSync panics if the engine has already shut down.
func (e *Engine) RunSync(fn func(scriptbridge.Env)) {
	if e.closed.Load() {
		panic("simengine: RunSync after Shutdown")
	}
	if goid() == e.loopGoid {
		fn(e.env)
		return
	}

	var (
		p        any
		panicked bool
	)
	ran := make(chan struct{})
	e.post(func(env scriptbridge.Env) {
		defer close(ran)
		defer func() {
			if r := recover(); r != nil {
				p, panicked = r, true
			}
		}()
		fn(env)
	})

	// teardown can race the post and discard the task; done unblocks waiters
	// instead of leaving them hanging on a dead loop
	select {
	case <-ran:
	case <-e.done:
	}
	if panicked {
		panic(p)
	}
}

// BeginShutdown queues the teardown task and returns without waiting. The
// instance finalizer registered via SetInstanceData will run on the script
// thread after everything already queued; work queued later is dropped.
// Safe to call from any goroutine; only the first call queues teardown.
func (e *Engine) BeginShutdown() {
	if e.shutting.Swap(true) {
		return
	}
	e.post(func(env scriptbridge.Env) {
		if fin := e.finalizer; fin != nil {
			e.finalizer = nil
			fin(env)
		}
		// the engine heap goes away with the environment; anything still
		// rooted is dropped wholesale
		e.refs.Clear()
		e.closed.Store(true)
	})
}

// Shutdown tears the environment down and waits: the instance finalizer runs
// on the script thread, signal delivery stops, and the script goroutine
// exits. Safe to call from any goroutine, repeatedly.
func (e *Engine) Shutdown() {
	e.BeginShutdown()
	<-e.done
	Logger().Debug("engine stopped")
}

// OffThreadCalls returns how many Env methods were reached from a goroutine
// other than the script thread. Each violation also panicked at the call
// site; a zero count proves thread confinement held.
func (e *Engine) OffThreadCalls() int64 {
	return e.offThread.Load()
}

// LiveRefs returns the number of persistent references not yet disposed.
func (e *Engine) LiveRefs() int {
	return e.refs.Len()
}

// Uncaught returns a snapshot of the values delivered through ReportUncaught.
func (e *Engine) Uncaught() []scriptbridge.Value {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]scriptbridge.Value, len(e.uncaught))
	copy(out, e.uncaught)
	return out
}

// Closed reports whether teardown has completed.
func (e *Engine) Closed() bool {
	return e.closed.Load()
}
