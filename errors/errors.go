package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseDecode  Phase = "decode"  // binary to model
	PhaseEncode  Phase = "encode"  // model to binary
	PhaseLayout  Phase = "layout"  // offset and address assignment
	PhaseBuild   Phase = "build"   // structured document to model
	PhaseDump    Phase = "dump"    // model to structured document
	PhaseExtract Phase = "extract" // raw image extraction
)

// Kind categorizes the error
type Kind string

const (
	KindMalformedHeader     Kind = "malformed_header"
	KindUnsupportedFormat   Kind = "unsupported_format"
	KindInvalidRevision     Kind = "invalid_revision"
	KindUnresolvedReference Kind = "unresolved_reference"
	KindOverflow            Kind = "overflow"
	KindOverlap             Kind = "overlap"
	KindShape               Kind = "shape"
	KindFieldUnknown        Kind = "field_unknown"
	KindFieldMissing        Kind = "field_missing"
	KindOutOfBounds         Kind = "out_of_bounds"
	KindInvalidData         Kind = "invalid_data"
	KindInvalidEnum         Kind = "invalid_enum"
)

// Error is the structured error type used throughout the module
type Error struct {
	Value   any
	Cause   error
	Phase   Phase
	Kind    Kind
	File    string
	Section string
	Detail  string
	Path    []string
	Offset  int64

	hasOffset bool
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	if e.File != "" {
		b.WriteString(e.File)
		b.WriteString(": ")
	}

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Section != "" {
		b.WriteString(" in section ")
		b.WriteString(e.Section)
	}

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.hasOffset {
		fmt.Fprintf(&b, " (offset 0x%x)", e.Offset)
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

// HasOffset reports whether the error carries a byte offset.
func (e *Error) HasOffset() bool {
	return e.hasOffset
}

// IsKind reports whether any error in err's chain is an *Error of the given kind,
// regardless of phase.
func IsKind(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if !errors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Cause
	}
	return false
}

// WithFile attaches the artifact path to err. Errors that are not *Error are
// wrapped as invalid data in the given phase.
func WithFile(phase Phase, err error, file string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		c := *e
		c.File = file
		return &c
	}
	return &Error{
		Phase: phase,
		Kind:  KindInvalidData,
		File:  file,
		Cause: err,
	}
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

// Path sets the field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Section names the section the error refers to
func (b *Builder) Section(index int, name string) *Builder {
	if name == "" {
		b.err.Section = fmt.Sprintf("%d", index)
	} else {
		b.err.Section = fmt.Sprintf("%d %q", index, name)
	}
	return b
}

// Offset sets the byte offset within the input
func (b *Builder) Offset(off int64) *Builder {
	b.err.Offset = off
	b.err.hasOffset = true
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

// Convenience constructors for common error patterns

// MalformedHeader creates a malformed header error at a byte offset
func MalformedHeader(off int64, detail string, args ...any) *Error {
	return New(PhaseDecode, KindMalformedHeader).Offset(off).Detail(detail, args...).Build()
}

// UnsupportedFormat creates an unsupported format error
func UnsupportedFormat(phase Phase, what string, value any) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupportedFormat,
		Detail: fmt.Sprintf("unsupported %s %v", what, value),
		Value:  value,
	}
}

// InvalidRevision creates the version-definition revision error
func InvalidRevision(index int, name string, off int64, version uint16) *Error {
	return New(PhaseDecode, KindInvalidRevision).
		Section(index, name).
		Offset(off).
		Value(version).
		Detail("invalid version-definition section version: %d", version).
		Build()
}

// Unresolved creates an unresolved reference error
func Unresolved(phase Phase, path []string, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnresolvedReference,
		Path:   path,
		Detail: fmt.Sprintf("%s %q does not exist", what, name),
		Value:  name,
	}
}

// Overflow creates an overflow error
func Overflow(phase Phase, path []string, value any, targetType string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOverflow,
		Path:   path,
		Detail: fmt.Sprintf("value %v overflows %s", value, targetType),
		Value:  value,
	}
}

// Overlap creates an overlap error between two named ranges
func Overlap(phase Phase, first, second string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOverlap,
		Detail: fmt.Sprintf("%s overlaps %s", first, second),
	}
}

// Shape creates a structured document shape error
func Shape(path []string, want, got string) *Error {
	return &Error{
		Phase:  PhaseBuild,
		Kind:   KindShape,
		Path:   path,
		Detail: fmt.Sprintf("expected %s, got %s", want, got),
	}
}

// FieldMissing creates a missing field error
func FieldMissing(phase Phase, path []string, fieldName string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindFieldMissing,
		Path:   path,
		Detail: fmt.Sprintf("required field %q not found", fieldName),
	}
}

// FieldUnknown creates an unknown field error
func FieldUnknown(phase Phase, path []string, fieldName string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindFieldUnknown,
		Path:   path,
		Detail: fmt.Sprintf("unknown field %q", fieldName),
	}
}

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, off, size, length int64) *Error {
	return New(phase, KindOutOfBounds).
		Offset(off).
		Value(off).
		Detail("range [0x%x, 0x%x) exceeds input length 0x%x", off, off+size, length).
		Build()
}

// InvalidEnum creates an invalid enum value error
func InvalidEnum(phase Phase, path []string, value any, enumType string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidEnum,
		Path:   path,
		Detail: fmt.Sprintf("invalid %s value %v", enumType, value),
		Value:  value,
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Path:   path,
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
