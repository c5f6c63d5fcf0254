package dispatch

import (
	scriptbridge "github.com/wippyai/script-bridge"
	"github.com/wippyai/script-bridge/handle"
	"github.com/wippyai/script-bridge/instance"
)

// Task is one unit of work executed on the script thread. The returned value
// travels to the JoinHandle as plain Go data; engine Values must not escape
// the task, root them instead. A non-nil error is raised as a script
// exception and classified by the failure boundary.
type Task func(cx *Context) (any, error)

// Context is the execution context handed to a Task. It is only valid for
// the duration of the task; do not retain it.
type Context struct {
	env  scriptbridge.Env
	inst *instance.Data
}

// Env returns the live engine environment.
func (cx *Context) Env() scriptbridge.Env {
	return cx.env
}

// InstanceID returns the id of the instance executing this task.
func (cx *Context) InstanceID() instance.ID {
	return cx.inst.ID()
}

// Root wraps an engine value in a handle.Root owned by this instance, the
// way to carry a value beyond the task's scope.
func (cx *Context) Root(v scriptbridge.Value) *handle.Root {
	return handle.New(cx.env, v)
}

// Throw raises v as the pending script exception. The boundary will catch it
// when the task returns.
func (cx *Context) Throw(v scriptbridge.Value) {
	cx.env.Throw(v)
}
