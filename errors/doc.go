// Package errors provides structured error types for the Ecsact runtime binding.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the C entry point involved, a detail message and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseCall, errors.KindNativeFailure).
//		Symbol("ecsact_execute_systems").
//		Detail("returned %d", code).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.MissingEntryPoint("ecsact_async_connect")
//	err := errors.InvalidReference(errors.PhaseCall, "registry", id)
//
// errors.Is matches on Phase and Kind; IsKind matches on Kind alone.
package errors
