package wasmhost

import (
	"runtime"
	"sync/atomic"

	"go.uber.org/zap"

	scriptbridge "github.com/wippyai/script-bridge"
	"github.com/wippyai/script-bridge/errors"
	"github.com/wippyai/script-bridge/internal/reftable"
)

// ErrorValue is the host-side error object: wasm core modules have no
// exception objects of their own, so the host materializes failures for the
// bridge's triage path.
type ErrorValue struct {
	Message string
	Props   map[string]scriptbridge.Value
}

type environment struct {
	h *Host
}

func (v *environment) check(op string) {
	if goid() != v.h.loopGoid {
		panic("wasmhost: " + op + " called off the script goroutine")
	}
}

func (v *environment) InstanceData() any {
	v.check("InstanceData")
	return v.h.instanceData
}

func (v *environment) SetInstanceData(data any, finalizer func(scriptbridge.Env)) {
	v.check("SetInstanceData")
	v.h.instanceData = data
	v.h.finalizer = finalizer
}

func (v *environment) NewRef(val scriptbridge.Value) scriptbridge.Ref {
	v.check("NewRef")
	return v.h.refs.Create(val)
}

func (v *environment) Deref(ref scriptbridge.Ref) scriptbridge.Value {
	v.check("Deref")
	val, ok := v.h.refs.Get(ref.(reftable.Handle))
	if !ok {
		panic("wasmhost: Deref on a dead reference")
	}
	return val
}

func (v *environment) DisposeRef(ref scriptbridge.Ref) {
	v.check("DisposeRef")
	if _, ok := v.h.refs.Release(ref.(reftable.Handle)); !ok {
		panic("wasmhost: DisposeRef on a dead reference")
	}
}

func (v *environment) Try(fn func(scriptbridge.Env)) (scriptbridge.Value, bool) {
	v.check("Try")
	prev := v.h.pending
	v.h.pending = nil
	fn(v)
	thrown := v.h.pending
	v.h.pending = prev
	if thrown == nil {
		return nil, false
	}
	return thrown.v, true
}

func (v *environment) Throw(val scriptbridge.Value) {
	v.check("Throw")
	v.h.pending = &thrownBox{v: val}
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
		panic("wasmhost: SetProperty on a non-object value")
	}
	ev.Props[key] = val
}

func (v *environment) ReportUncaught(err scriptbridge.Value) {
	v.check("ReportUncaught")
	if ev, ok := err.(*ErrorValue); ok {
		Logger().Error("uncaught failure", zap.String("message", ev.Message))
	} else {
		Logger().Error("uncaught failure", zap.Any("value", err))
	}
}

func (v *environment) NewSignaler(fn func(scriptbridge.Env)) (scriptbridge.Signaler, error) {
	v.check("NewSignaler")
	if v.h.closed.Load() {
		return nil, errors.NotInitialized(errors.PhaseEngine, "host loop")
	}
	return &signaler{h: v.h, fn: fn}, nil
}

type signaler struct {
	h        *Host
	fn       func(scriptbridge.Env)
	released atomic.Bool
}

func (s *signaler) Signal() error {
	if s.released.Load() || s.h.closed.Load() {
		return errors.ChannelClosed(errors.PhaseEngine)
	}
	s.h.post(func(env scriptbridge.Env) {
		if !s.released.Load() {
			s.fn(env)
		}
	})
	return nil
}

func (s *signaler) Release() {
	s.h.env.check("Signaler.Release")
	s.released.Store(true)
}

// goid parses the current goroutine id from the stack header, the cheapest
// reliable affinity assertion available without engine support.
func goid() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
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
