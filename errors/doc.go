// Package errors provides the structured error type shared by the pod
// library, its validator and the podgen tool.
//
// Errors are categorized by Phase (where the error occurred) and Kind (which
// rule or precondition failed). Validator diagnostics name the type and the
// offending field through Type and Path:
//
//	err := errors.New(errors.PhaseValidate, errors.KindFinalizer).
//		Type("Handle").
//		Path("fd").
//		Detail("field type declares Close").
//		Build()
//
// View contract violations carry the offset and region length:
//
//	err := errors.OutOfBounds(errors.PhaseView, "uint32", 6, 4, 8)
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
