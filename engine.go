package scriptbridge

// Value is an opaque handle to an engine-owned script value. A Value is only
// valid on the script thread, inside the scope that produced it. To keep a
// value alive across scopes or goroutines, wrap it in a handle.Root.
type Value any

// Ref is an engine persistent reference: a handle to a script value that
// survives beyond a single local scope. A Ref may be carried across
// goroutines as an opaque token, but every engine operation on it (Deref,
// DisposeRef) must happen on the script thread, and it must be disposed
// exactly once.
type Ref any

// Env is a live engine environment. An Env is a capability token: holding one
// means the caller is executing on the engine's script thread. Implementations
// may panic when a method is reached from any other goroutine.
type Env interface {
	// InstanceData returns the value stored by SetInstanceData, or nil.
	InstanceData() any

	// SetInstanceData stores per-environment data. The finalizer runs on the
	// script thread when the environment begins tearing down, before the
	// engine stops delivering signals.
	SetInstanceData(data any, finalizer func(Env))

	// NewRef creates a persistent reference that keeps v alive until the
	// reference is disposed.
	NewRef(v Value) Ref

	// Deref returns a local, scope-bound Value for a persistent reference.
	Deref(ref Ref) Value

	// DisposeRef releases a persistent reference. Exactly one DisposeRef is
	// permitted per Ref.
	DisposeRef(ref Ref)

	// Try invokes fn and catches an exception raised during it, returning the
	// thrown value and whether anything was thrown. A caught exception is
	// cleared and does not remain pending.
	Try(fn func(Env)) (thrown Value, threw bool)

	// Throw raises v as the pending exception.
	Throw(v Value)

	// NewError builds an engine error value with the given message.
	NewError(msg string) Value

	// SetProperty sets a named property on an engine object value.
	SetProperty(obj Value, key string, v Value)

	// ReportUncaught delivers err through the host's unhandled-failure path,
	// the equivalent of an uncaught exception notification.
	ReportUncaught(err Value)

	// NewSignaler registers fn to run on the script thread whenever the
	// returned Signaler is triggered. Registration is comparatively
	// expensive; share one signaler across clones rather than creating one
	// per clone.
	NewSignaler(fn func(Env)) (Signaler, error)
}

// Signaler is the engine callback primitive: a thread-safe, coalescing
// "run my callback on the script thread soon" trigger.
//
// Signal may be called from any goroutine. The engine guarantees the callback
// is never invoked after the environment finishes tearing down; once the
// engine stops accepting triggers, Signal returns an error.
//
// Release drops the registration and must be called on the script thread.
type Signaler interface {
	Signal() error
	Release()
}
