package simengine

import (
	"runtime"
	"sync/atomic"

	"go.uber.org/zap"

	scriptbridge "github.com/wippyai/script-bridge"
	"github.com/wippyai/script-bridge/errors"
	"github.com/wippyai/script-bridge/internal/reftable"
)

// ErrorValue is the engine's error object. NewError produces one and
// SetProperty attaches named properties to it; tests inspect both.
type ErrorValue struct {
	Message string
	Props   map[string]scriptbridge.Value
}

// environment implements scriptbridge.Env on top of the engine's loop
// goroutine. Every method asserts thread affinity first.
type environment struct {
	e *Engine
}

func (v *environment) check(op string) {
	if goid() != v.e.loopGoid {
		v.e.offThread.Add(1)
		panic("simengine: " + op + " called off the script thread")
	}
}

func (v *environment) InstanceData() any {
	v.check("InstanceData")
	return v.e.instanceData
}

func (v *environment) SetInstanceData(data any, finalizer func(scriptbridge.Env)) {
	v.check("SetInstanceData")
	v.e.instanceData = data
	v.e.finalizer = finalizer
}

func (v *environment) NewRef(val scriptbridge.Value) scriptbridge.Ref {
	v.check("NewRef")
	return v.e.refs.Create(val)
}

func (v *environment) Deref(ref scriptbridge.Ref) scriptbridge.Value {
	v.check("Deref")
	val, ok := v.e.refs.Get(ref.(reftable.Handle))
	if !ok {
		panic("simengine: Deref on a dead reference")
	}
	return val
}

func (v *environment) DisposeRef(ref scriptbridge.Ref) {
	v.check("DisposeRef")
	if _, ok := v.e.refs.Release(ref.(reftable.Handle)); !ok {
		panic("simengine: DisposeRef on a dead reference")
	}
}

func (v *environment) Try(fn func(scriptbridge.Env)) (scriptbridge.Value, bool) {
	v.check("Try")
	prev := v.e.pending
	v.e.pending = nil
	fn(v)
	thrown := v.e.pending
	v.e.pending = prev
	if thrown == nil {
		return nil, false
	}
	return thrown.v, true
}

func (v *environment) Throw(val scriptbridge.Value) {
	v.check("Throw")
	v.e.pending = &thrownBox{v: val}
}

func (v *environment) NewError(msg string) scriptbridge.Value {
	v.check("NewError")
	return &ErrorValue{
		Message: msg,
		Props:   map[string]scriptbridge.Value{},
	}
}

func (v *environment) SetProperty(obj scriptbridge.Value, key string, val scriptbridge.Value) {
	v.check("SetProperty")
	ev, ok := obj.(*ErrorValue)
	if !ok {
		panic("simengine: SetProperty on a non-object value")
	}
	ev.Props[key] = val
}

func (v *environment) ReportUncaught(err scriptbridge.Value) {
	v.check("ReportUncaught")
	v.e.mu.Lock()
	v.e.uncaught = append(v.e.uncaught, err)
	v.e.mu.Unlock()

	if ev, ok := err.(*ErrorValue); ok {
		Logger().Warn("uncaught failure", zap.String("message", ev.Message))
	} else {
		Logger().Warn("uncaught failure", zap.Any("value", err))
	}
}

func (v *environment) NewSignaler(fn func(scriptbridge.Env)) (scriptbridge.Signaler, error) {
	v.check("NewSignaler")
	if v.e.closed.Load() {
		return nil, errors.NotInitialized(errors.PhaseEngine, "engine loop")
	}
	return &signaler{e: v.e, fn: fn}, nil
}

// signaler posts its callback to the engine loop. Signal is callable from any
// goroutine; after Release or engine teardown it reports the channel closed
// and delivers nothing.
type signaler struct {
	e        *Engine
	fn       func(scriptbridge.Env)
	released atomic.Bool
}

func (s *signaler) Signal() error {
	if s.released.Load() || s.e.closed.Load() {
		return errors.ChannelClosed(errors.PhaseEngine)
	}
	s.e.post(func(env scriptbridge.Env) {
		if !s.released.Load() {
			s.fn(env)
		}
	})
	return nil
}

func (s *signaler) Release() {
	s.e.env.check("Signaler.Release")
	s.released.Store(true)
}

// goid parses the current goroutine id from the stack header. Fine for an
// assertion path; never called on hot engine operations in real embeddings.
func goid() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	// header: "goroutine 123 [running]:"
	const prefix = len("goroutine ")
	var id uint64
	for _, c := range buf[prefix:n] {
		if c < '0' || c > '9' {
			break
		}
		id = id*10 + uint64(c-'0')
	}
	return id
}
