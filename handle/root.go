package handle

import (
	"runtime"
	"sync/atomic"

	"go.uber.org/zap"

	scriptbridge "github.com/wippyai/script-bridge"
	"github.com/wippyai/script-bridge/errors"
	"github.com/wippyai/script-bridge/instance"
)

// Root owns one engine value on behalf of Go code. It may be moved or cloned
// across goroutines; reading the value back requires an Env of the instance
// that created it.
//
// The zero Root is invalid. Create with New, duplicate with Clone, and
// consume every *Root exactly once with Into, Unroot, or Release.
type Root struct {
	inner    *inner
	consumed atomic.Bool
}

// inner is the state shared by all clones of one Root. The engine reference
// is disposed exactly once, when the clone count reaches zero.
type inner struct {
	ref      scriptbridge.Ref
	instance instance.ID
	clones   atomic.Int32
}

// New roots value in env's engine and returns an owning Root. Must be called
// on the script thread.
func New(env scriptbridge.Env, value scriptbridge.Value) *Root {
	in := &inner{
		ref:      env.NewRef(value),
		instance: instance.Get(env).ID(),
	}
	in.clones.Store(1)
	return guarded(&Root{inner: in})
}

// Clone returns a new Root sharing the same engine value. Safe to call from
// any goroutine. The clone must itself be consumed exactly once.
func (r *Root) Clone() *Root {
	r.ensureLive("Clone")
	r.inner.clones.Add(1)
	return guarded(&Root{inner: r.inner})
}

// InstanceID returns the id of the instance that created this Root. Safe to
// call from any goroutine.
func (r *Root) InstanceID() instance.ID {
	r.ensureLive("InstanceID")
	return r.inner.instance
}

// Value reads the rooted value without consuming the Root. Must be called on
// the script thread of the creating instance; an Env from any other instance
// yields a WrongInstance error.
func (r *Root) Value(env scriptbridge.Env) (scriptbridge.Value, error) {
	r.ensureLive("Value")
	if err := r.checkInstance(env); err != nil {
		return nil, err
	}
	return env.Deref(r.inner.ref), nil
}

// Into reads the rooted value back and consumes the Root in one step, the
// common pattern inside a dispatched task. Must be called on the script
// thread of the creating instance.
//
// On a WrongInstance error the Root is not consumed; release it through its
// own instance instead.
func (r *Root) Into(env scriptbridge.Env) (scriptbridge.Value, error) {
	r.ensureLive("Into")
	if err := r.checkInstance(env); err != nil {
		return nil, err
	}
	v := env.Deref(r.inner.ref)
	r.consume()
	if r.inner.clones.Add(-1) == 0 {
		env.DisposeRef(r.inner.ref)
	}
	return v, nil
}

// Unroot consumes the Root without reading it, disposing the engine
// reference immediately when this was the last clone. Must be called on the
// script thread of the creating instance.
func (r *Root) Unroot(env scriptbridge.Env) error {
	r.ensureLive("Unroot")
	if err := r.checkInstance(env); err != nil {
		return err
	}
	r.consume()
	if r.inner.clones.Add(-1) == 0 {
		env.DisposeRef(r.inner.ref)
	}
	return nil
}

// Release consumes the Root from any goroutine. If this was the last clone,
// the engine reference is parked on the instance drop queue and disposed by
// the script thread during a later tick or at teardown. Release never touches
// engine memory itself.
func (r *Root) Release() {
	r.ensureLive("Release")
	r.consume()
	if r.inner.clones.Add(-1) == 0 {
		instance.QueueDrop(r.inner.instance, r.inner.ref)
	}
}

func (r *Root) checkInstance(env scriptbridge.Env) error {
	current := instance.Get(env).ID()
	if current != r.inner.instance {
		return errors.WrongInstance(errors.PhaseRoot, uint32(r.inner.instance), uint32(current))
	}
	return nil
}

func (r *Root) ensureLive(op string) {
	if r.consumed.Load() {
		panic("scriptbridge: " + op + " on a released Root")
	}
}

func (r *Root) consume() {
	if r.consumed.Swap(true) {
		panic("scriptbridge: Root released twice")
	}
	runtime.SetFinalizer(r, nil)
}

// guarded attaches a leak detector: a Root collected without being consumed
// holds its engine value alive forever. The warning names the instance so
// leaks can be traced back under multi-instance embedding.
func guarded(r *Root) *Root {
	runtime.SetFinalizer(r, func(leaked *Root) {
		Logger().Warn("Root leaked without Into, Unroot, or Release",
			zap.Uint32("instance", uint32(leaked.inner.instance)))
		leaked.consumed.Store(true)
		if leaked.inner.clones.Add(-1) == 0 {
			instance.QueueDrop(leaked.inner.instance, leaked.inner.ref)
		}
	})
	return r
}
