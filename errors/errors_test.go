package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:   PhaseBuild,
				Kind:    KindShape,
				File:    "in.yaml",
				Section: `2 ".text"`,
				Path:    []string{"Sections[2]", "Flags"},
				Detail:  "expected sequence, got scalar",
			},
			contains: []string{"in.yaml: ", "[build]", "shape", `in section 2 ".text"`, "Sections[2].Flags", "expected sequence"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseDecode,
				Kind:  KindOutOfBounds,
			},
			contains: []string{"[decode]", "out_of_bounds"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseEncode,
				Kind:   KindInvalidData,
				Detail: "write failed",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[encode]", "invalid_data", "write failed", "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{
		Phase: PhaseEncode,
		Kind:  KindInvalidData,
		Cause: cause,
	}

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}
	if !errors.Is(errors.Unwrap(err), cause) {
		t.Error("errors.Unwrap did not return cause")
	}
}

func TestError_Is(t *testing.T) {
	err := &Error{
		Phase: PhaseEncode,
		Kind:  KindOverflow,
		Path:  []string{"Entry"},
	}

	if !err.Is(&Error{Phase: PhaseEncode, Kind: KindOverflow}) {
		t.Error("Is should match same phase and kind")
	}
	if err.Is(&Error{Phase: PhaseDecode, Kind: KindOverflow}) {
		t.Error("Is should not match different phase")
	}
	if err.Is(&Error{Phase: PhaseEncode, Kind: KindOutOfBounds}) {
		t.Error("Is should not match different kind")
	}

	target := &Error{Phase: PhaseEncode, Kind: KindOverflow}
	if !errors.Is(fmt.Errorf("wrapped: %w", err), target) {
		t.Error("errors.Is should match through fmt wrapping")
	}
}

func TestIsKind(t *testing.T) {
	inner := Unresolved(PhaseEncode, []string{"Link"}, "section", ".dynstr")
	outer := Wrap(PhaseEncode, KindInvalidData, inner, "resolve links")

	if !IsKind(outer, KindInvalidData) {
		t.Error("IsKind should match outer kind")
	}
	if !IsKind(outer, KindUnresolvedReference) {
		t.Error("IsKind should match kind in the cause chain")
	}
	if IsKind(outer, KindOverlap) {
		t.Error("IsKind should not match absent kind")
	}
	if IsKind(errors.New("plain"), KindOverlap) {
		t.Error("IsKind should not match plain errors")
	}
}

func TestWithFile(t *testing.T) {
	err := WithFile(PhaseDecode, MalformedHeader(0, "bad magic"), "a.out")
	if !strings.HasPrefix(err.Error(), "a.out: [decode] malformed_header") {
		t.Errorf("unexpected message %q", err.Error())
	}

	plain := WithFile(PhaseDecode, errors.New("short read"), "b.out")
	var e *Error
	if !errors.As(plain, &e) {
		t.Fatal("expected *Error")
	}
	if e.File != "b.out" || e.Kind != KindInvalidData {
		t.Errorf("File=%q Kind=%v", e.File, e.Kind)
	}

	if WithFile(PhaseDecode, nil, "c.out") != nil {
		t.Error("nil error should stay nil")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseDecode, KindMalformedHeader).
		Path("Sections", "3").
		Section(3, ".symtab").
		Offset(0x40).
		Value(42).
		Cause(cause).
		Detail("entry size %d, want %d", 12, 24).
		Build()

	if err.Phase != PhaseDecode {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseDecode)
	}
	if err.Kind != KindMalformedHeader {
		t.Errorf("Kind = %v, want %v", err.Kind, KindMalformedHeader)
	}
	if len(err.Path) != 2 || err.Path[0] != "Sections" || err.Path[1] != "3" {
		t.Errorf("Path = %v, want [Sections 3]", err.Path)
	}
	if err.Section != `3 ".symtab"` {
		t.Errorf("Section = %v", err.Section)
	}
	if !err.HasOffset() || err.Offset != 0x40 {
		t.Errorf("Offset = %v (set %v), want 0x40", err.Offset, err.HasOffset())
	}
	if err.Value != 42 {
		t.Errorf("Value = %v, want 42", err.Value)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "entry size 12, want 24" {
		t.Errorf("Detail = %v", err.Detail)
	}
	if !strings.Contains(err.Error(), "(offset 0x40)") {
		t.Errorf("message %q missing offset", err.Error())
	}
}

func TestConvenienceConstructors(t *testing.T) {
	t.Run("InvalidRevision", func(t *testing.T) {
		err := InvalidRevision(4, ".gnu.version_d", 0x300, 2)
		if err.Kind != KindInvalidRevision {
			t.Errorf("Kind = %v, want %v", err.Kind, KindInvalidRevision)
		}
		msg := err.Error()
		if !strings.Contains(msg, "invalid version-definition section version: 2") {
			t.Errorf("message %q", msg)
		}
		if !strings.Contains(msg, ".gnu.version_d") {
			t.Errorf("message %q does not name the section", msg)
		}
	})

	t.Run("UnsupportedFormat", func(t *testing.T) {
		err := UnsupportedFormat(PhaseDecode, "class", 3)
		if err.Kind != KindUnsupportedFormat || err.Value != 3 {
			t.Errorf("Kind = %v Value = %v", err.Kind, err.Value)
		}
	})

	t.Run("Unresolved", func(t *testing.T) {
		err := Unresolved(PhaseEncode, []string{"ProgramHeaders[0]", "FirstSec"}, "section", ".nope")
		if err.Kind != KindUnresolvedReference {
			t.Errorf("Kind = %v", err.Kind)
		}
		if !strings.Contains(err.Error(), `".nope"`) {
			t.Errorf("message %q", err.Error())
		}
	})

	t.Run("Overflow", func(t *testing.T) {
		err := Overflow(PhaseEncode, []string{"Entry"}, uint64(1)<<40, "Elf32_Addr")
		if err.Kind != KindOverflow {
			t.Errorf("Kind = %v", err.Kind)
		}
	})

	t.Run("Overlap", func(t *testing.T) {
		err := Overlap(PhaseExtract, "segment 0", "segment 1")
		if err.Kind != KindOverlap || err.Detail != "segment 0 overlaps segment 1" {
			t.Errorf("Kind = %v Detail = %q", err.Kind, err.Detail)
		}
	})

	t.Run("Shape", func(t *testing.T) {
		err := Shape([]string{"Sections[0]", "Entries"}, "sequence", "scalar")
		if err.Phase != PhaseBuild || err.Kind != KindShape {
			t.Errorf("Phase = %v Kind = %v", err.Phase, err.Kind)
		}
	})

	t.Run("OutOfBounds", func(t *testing.T) {
		err := OutOfBounds(PhaseDecode, 0x100, 0x20, 0x80)
		if err.Kind != KindOutOfBounds || !err.HasOffset() {
			t.Errorf("Kind = %v offset set = %v", err.Kind, err.HasOffset())
		}
	})

	t.Run("InvalidEnum", func(t *testing.T) {
		err := InvalidEnum(PhaseBuild, []string{"Type"}, "SHT_BOGUS", "section type")
		if err.Kind != KindInvalidEnum || err.Value != "SHT_BOGUS" {
			t.Errorf("Kind = %v Value = %v", err.Kind, err.Value)
		}
	})
}
