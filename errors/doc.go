// Package errors provides structured error types for the script-bridge library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error
// category). The Error type carries the recovered panic payload and/or the
// thrown script value for dispatch failures, and the instance pair for
// cross-instance misuse.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseDispatch, errors.KindChannelClosed).
//		Detail("queued after shutdown began").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.WrongInstance(errors.PhaseRoot, created, current)
//	err := errors.PanicFailure(recovered)
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
