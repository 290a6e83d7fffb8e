// Package errors provides structured error types for the edge runtime host.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the guest export involved, a field path and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseBridge, errors.KindOutOfBounds).
//		Export("allocate").
//		Value(ptr).
//		Detail("reply of %d bytes does not fit", n).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.GuestExit(1, stderrTail)
//	err := errors.Serialization(errors.PhaseInvoke, "request", cause)
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
