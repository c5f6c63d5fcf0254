package dispatch

import (
	scriptbridge "github.com/wippyai/script-bridge"
	"github.com/wippyai/script-bridge/errors"
)

// runBoundary executes one task inside a fresh exception scope, catching both
// Go panics and script exceptions. The returned error, when non-nil, is a
// *errors.Error of kind panic, exception, or panic_and_exception.
func runBoundary(cx *Context, task Task) (any, error) {
	var (
		result   any
		taskErr  error
		panicked any
		didPanic bool
	)

	thrown, threw := cx.env.Try(func(env scriptbridge.Env) {
		defer func() {
			if r := recover(); r != nil {
				panicked = r
				didPanic = true
			}
		}()
		result, taskErr = task(cx)
		if taskErr != nil {
			env.Throw(env.NewError(taskErr.Error()))
		}
	})

	switch {
	case didPanic && threw:
		return nil, errors.PanicAndException(panicked, thrown)
	case didPanic:
		return nil, errors.PanicFailure(panicked)
	case threw:
		f := errors.ExceptionFailure(thrown)
		// keep the Go error the task returned, if any, for errors.Is chains
		f.Cause = taskErr
		return nil, f
	default:
		return result, nil
	}
}

// failureObject renders a boundary failure as an engine error value. The
// message describes the failure class; the thrown exception is attached as
// the `cause` property and the panic as the `panic` property.
func failureObject(env scriptbridge.Env, f *errors.Error) scriptbridge.Value {
	obj := env.NewError(f.Detail)
	if f.Thrown != nil {
		env.SetProperty(obj, "cause", f.Thrown)
	}
	if f.Panic != nil {
		env.SetProperty(obj, "panic", panicValue(env, f.Panic))
	}
	return obj
}

// panicValue turns a recovered panic payload into an engine error. Payloads
// without a printable message become an "unknown panic" error carrying the
// raw payload as its own `cause`.
func panicValue(env scriptbridge.Env, p any) scriptbridge.Value {
	msg, printable := errors.PanicDetail(p)
	obj := env.NewError(msg)
	if !printable {
		env.SetProperty(obj, "cause", p)
	}
	return obj
}
