package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseValidate Phase = "validate" // derivation checks
	PhaseCast     Phase = "cast"     // byte reinterpretation
	PhaseView     Phase = "view"     // buffer view accessors
	PhaseParse    Phase = "parse"    // source annotation parsing
	PhaseGenerate Phase = "generate" // code generation
	PhaseConfig   Phase = "config"   // tool configuration
)

// Kind categorizes the error
type Kind string

const (
	// Validator rules
	KindLayoutMode     Kind = "layout-mode"
	KindFinalizer      Kind = "finalizer"
	KindNotPOD         Kind = "field-not-pod"
	KindBitPattern     Kind = "invalid-bit-pattern"
	KindImplLayout     Kind = "implementation-defined-layout"
	KindPointer        Kind = "pointer"
	KindPackedPadding  Kind = "packed-padding"
	KindOffsetMismatch Kind = "offset-mismatch"
	KindSizeMismatch   Kind = "size-mismatch"

	// Runtime contract violations
	KindOutOfBounds    Kind = "out_of_bounds"
	KindMisaligned     Kind = "misaligned"
	KindOverflow       Kind = "overflow"
	KindLengthMismatch Kind = "length_mismatch"
	KindReadOnly       Kind = "read_only"
	KindAliased        Kind = "aliased"
	KindNilPointer     Kind = "nil_pointer"

	KindInvalidInput Kind = "invalid_input"
	KindUnsupported  Kind = "unsupported"
)

// Error is the structured error type used throughout the module
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Type   string
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Type != "" {
		b.WriteString(" in ")
		b.WriteString(e.Type)
	}

	if len(e.Path) > 0 {
		if e.Type != "" {
			b.WriteByte('.')
		} else {
			b.WriteString(" at ")
		}
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
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

// Type sets the name of the type the error is about
func (b *Builder) Type(name string) *Builder {
	b.err.Type = name
	return b
}

// Path sets the field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
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

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for view and cast contract violations

// OutOfBounds creates an out of bounds error for an access of size bytes at
// offset inside a region of length bytes.
func OutOfBounds(phase Phase, typeName string, offset, size, length int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Type:   typeName,
		Detail: fmt.Sprintf("access [%d, %d+%d) outside region of %d bytes", offset, offset, size, length),
		Value:  offset,
	}
}

// Misaligned creates a misalignment error
func Misaligned(phase Phase, typeName string, offset int, align uintptr) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindMisaligned,
		Type:   typeName,
		Detail: fmt.Sprintf("offset %d is not %d-byte aligned", offset, align),
		Value:  offset,
	}
}

// MisalignedAddress creates an alignment error for a buffer whose start
// address is not a multiple of align
func MisalignedAddress(phase Phase, typeName string, addr, align uintptr) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindMisaligned,
		Type:   typeName,
		Detail: fmt.Sprintf("buffer address %#x is not %d-byte aligned", addr, align),
		Value:  addr,
	}
}

// Overflow creates an arithmetic overflow error for count elements of size bytes
func Overflow(phase Phase, typeName string, count, size int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOverflow,
		Type:   typeName,
		Detail: fmt.Sprintf("%d elements of %d bytes overflows int", count, size),
		Value:  count,
	}
}

// LengthMismatch creates an error for a byte slice whose length does not fit the type
func LengthMismatch(phase Phase, typeName string, got, want int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindLengthMismatch,
		Type:   typeName,
		Detail: fmt.Sprintf("got %d bytes, want %d", got, want),
		Value:  got,
	}
}

// ReadOnly creates an error for a mutating access through a read-only view
func ReadOnly(typeName string, offset int) *Error {
	return &Error{
		Phase:  PhaseView,
		Kind:   KindReadOnly,
		Type:   typeName,
		Detail: fmt.Sprintf("mutable access at offset %d through a read-only view", offset),
		Value:  offset,
	}
}

// Aliased creates an error for an access overlapping a live exclusive borrow
func Aliased(typeName string, start, end, heldStart, heldEnd int) *Error {
	return &Error{
		Phase: PhaseView,
		Kind:  KindAliased,
		Type:  typeName,
		Detail: fmt.Sprintf("access [%d, %d) overlaps exclusive borrow [%d, %d)",
			start, end, heldStart, heldEnd),
		Value: start,
	}
}

// NilPointer creates a nil pointer error
func NilPointer(phase Phase, typeName string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNilPointer,
		Type:   typeName,
		Detail: "nil pointer",
	}
}

// NotPOD creates an error for a type that does not carry the POD marker
func NotPOD(phase Phase, typeName string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotPOD,
		Type:   typeName,
		Detail: "type does not carry the POD marker",
		Cause:  cause,
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
