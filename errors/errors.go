package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in the bridge the error occurred
type Phase string

const (
	PhaseInstance Phase = "instance" // environment identity and slot storage
	PhaseRoot     Phase = "root"     // persistent-reference handles
	PhaseDispatch Phase = "dispatch" // channel send and drain
	PhaseShutdown Phase = "shutdown" // environment teardown
	PhaseEngine   Phase = "engine"   // engine adapter internals
)

// Kind categorizes the error
type Kind string

const (
	// KindWrongInstance marks a Root or Channel used against a different
	// module instance than the one that created it. Always a programmer
	// error; never recoverable at the call site.
	KindWrongInstance Kind = "wrong_instance"

	// KindChannelClosed marks work submitted or still queued after the
	// owning instance began shutting down.
	KindChannelClosed Kind = "channel_closed"

	// KindPanic, KindException, and KindPanicAndException classify failures
	// of a dispatched closure caught at the dispatcher boundary.
	KindPanic             Kind = "panic"
	KindException         Kind = "exception"
	KindPanicAndException Kind = "panic_and_exception"

	KindInvalidInput   Kind = "invalid_input"
	KindNotInitialized Kind = "not_initialized"
)

// Error is the structured error type used throughout the library
type Error struct {
	// Panic holds the recovered panic payload when Kind is KindPanic or
	// KindPanicAndException.
	Panic any

	// Thrown holds the thrown script value when Kind is KindException or
	// KindPanicAndException.
	Thrown any

	Cause  error
	Phase  Phase
	Kind   Kind
	Detail string

	// Created and Current identify the instance pair for wrong_instance
	// errors: the instance that created the handle and the one that tried
	// to use it.
	Created uint32
	Current uint32
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Kind == KindWrongInstance {
		fmt.Fprintf(&b, " (created by instance %d, used under instance %d)", e.Created, e.Current)
	}

	if e.Panic != nil {
		b.WriteString(" (panic: ")
		b.WriteString(PanicMessage(e.Panic))
		b.WriteByte(')')
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// IsKind reports whether err (or any error in its chain) is a bridge Error of
// the given kind, regardless of phase.
func IsKind(err error, kind Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Kind == kind {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Panic sets the recovered panic payload
func (b *Builder) Panic(p any) *Builder {
	b.err.Panic = p
	return b
}

// Thrown sets the thrown script value
func (b *Builder) Thrown(v any) *Builder {
	b.err.Thrown = v
	return b
}

// Instances sets the creating and current instance ids
func (b *Builder) Instances(created, current uint32) *Builder {
	b.err.Created = created
	b.err.Current = current
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// WrongInstance creates a cross-instance misuse error
func WrongInstance(phase Phase, created, current uint32) *Error {
	return &Error{
		Phase:   phase,
		Kind:    KindWrongInstance,
		Detail:  "handle used under a different module instance",
		Created: created,
		Current: current,
	}
}

// ChannelClosed creates an error for work discarded after shutdown began
func ChannelClosed(phase Phase) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindChannelClosed,
		Detail: "instance shut down before the item executed",
	}
}

// PanicFailure creates an error for a closure that panicked
func PanicFailure(p any) *Error {
	return &Error{
		Phase:  PhaseDispatch,
		Kind:   KindPanic,
		Detail: "a panic occurred while executing a dispatched closure",
		Panic:  p,
	}
}

// ExceptionFailure creates an error for a closure that threw
func ExceptionFailure(thrown any) *Error {
	return &Error{
		Phase:  PhaseDispatch,
		Kind:   KindException,
		Detail: "an exception occurred while executing a dispatched closure",
		Thrown: thrown,
	}
}

// PanicAndException creates an error for a closure that both panicked and threw
func PanicAndException(p, thrown any) *Error {
	return &Error{
		Phase:  PhaseDispatch,
		Kind:   KindPanicAndException,
		Detail: "a panic and an exception occurred while executing a dispatched closure",
		Panic:  p,
		Thrown: thrown,
	}
}

// NotInitialized creates a not-initialized error for a missing component
func NotInitialized(phase Phase, component string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotInitialized,
		Detail: fmt.Sprintf("%s not initialized", component),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

const unknownPanicMessage = "unknown panic"

// PanicMessage extracts a human-readable message from a recovered panic
// payload. Strings and errors render directly; anything else reports as an
// unknown panic (the raw payload stays available on Error.Panic).
func PanicMessage(p any) string {
	msg, _ := PanicDetail(p)
	return msg
}

// PanicDetail is PanicMessage plus a flag reporting whether the payload
// carried a printable message at all.
func PanicDetail(p any) (string, bool) {
	switch v := p.(type) {
	case string:
		return v, true
	case error:
		return v.Error(), true
	case fmt.Stringer:
		return v.String(), true
	default:
		return unknownPanicMessage, false
	}
}
