// Package errors provides structured error types for the elfkit library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries location context: the artifact path, the section, the byte
// offset within the input and the field path within a structured document.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseDecode, errors.KindMalformedHeader).
//		Section(3, ".symtab").
//		Offset(0x1f8).
//		Detail("entry size %d, want %d", 12, 24).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.InvalidRevision(4, ".gnu.version_d", off, 2)
//	err := errors.Unresolved(errors.PhaseEncode, path, "section", ".dynstr")
//
// Every error is terminal for the conversion that produced it. All errors implement
// the standard error interface and support errors.Is/As; IsKind matches a Kind
// anywhere in the cause chain.
package errors
