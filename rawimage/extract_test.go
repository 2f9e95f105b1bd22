package rawimage_test

import (
	"bytes"
	"debug/elf"
	"strings"
	"testing"

	"github.com/wippyai/elfkit/errors"
	"github.com/wippyai/elfkit/object"
	"github.com/wippyai/elfkit/rawimage"
)

func raw(name string, addr uint64, content ...byte) *object.RawSection {
	return &object.RawSection{
		SectionHeader: object.SectionHeader{
			Name:         name,
			Type:         elf.SHT_PROGBITS,
			Flags:        elf.SHF_ALLOC,
			Address:      object.Uint64(addr),
			AddressAlign: 1,
		},
		Content: content,
	}
}

func load(first, last string) object.ProgramHeader {
	return object.ProgramHeader{Type: elf.PT_LOAD, Flags: elf.PF_R, FirstSec: first, LastSec: last}
}

func image(sections []object.Section, segments ...object.ProgramHeader) *object.File {
	return &object.File{
		Header:         object.FileHeader{Class: elf.ELFCLASS64, Data: elf.ELFDATA2LSB, Type: elf.ET_EXEC, Machine: elf.EM_X86_64},
		Sections:       sections,
		ProgramHeaders: segments,
	}
}

func TestExtractZeroFillsGaps(t *testing.T) {
	f := image(
		[]object.Section{
			raw(".text", 0x00, 0xc3, 0xc3, 0xc3, 0xc3),
			raw(".data", 0x08, 0x32, 0x32),
		},
		load(".data", ""),
		load(".text", ""),
	)
	got, err := rawimage.Extract(f)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	want := []byte{0xc3, 0xc3, 0xc3, 0xc3, 0, 0, 0, 0, 0x32, 0x32}
	if !bytes.Equal(got, want) {
		t.Errorf("image = % x, want % x", got, want)
	}
}

func TestExtractRebasesToLowestAddress(t *testing.T) {
	f := image(
		[]object.Section{
			raw(".text", 0x401000, 0x90, 0xc3),
			&object.NoBitsSection{
				SectionHeader: object.SectionHeader{Name: ".bss", Type: elf.SHT_NOBITS, Flags: elf.SHF_ALLOC | elf.SHF_WRITE, AddressAlign: 8},
				Size:          0x100,
			},
		},
		load(".text", ".bss"),
	)
	got, err := rawimage.Extract(f)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	// .bss holds no file contents and does not extend the image
	if want := []byte{0x90, 0xc3}; !bytes.Equal(got, want) {
		t.Errorf("image = % x, want % x", got, want)
	}
}

func TestExtractOverlap(t *testing.T) {
	f := image(
		[]object.Section{
			raw(".a", 0x00, 1, 2, 3, 4),
			raw(".b", 0x02, 5, 6),
		},
		load(".a", ""),
		load(".b", ""),
	)
	_, err := rawimage.Extract(f)
	if !errors.IsKind(err, errors.KindOverlap) {
		t.Fatalf("expected overlap error, got %v", err)
	}
}

func TestExtractRejectsOversizedImage(t *testing.T) {
	f := image(
		[]object.Section{
			raw(".a", 0x0, 0x01),
			raw(".b", 0x4000000000000000, 0x02),
		},
		load(".a", ""),
		load(".b", ""),
	)
	got, err := rawimage.Extract(f)
	if !errors.IsKind(err, errors.KindOverflow) {
		t.Fatalf("expected overflow error, got %v", err)
	}
	if got != nil {
		t.Errorf("image of %d bytes returned with error", len(got))
	}
	for _, want := range []string{"ProgramHeaders[0]", "ProgramHeaders[1]"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not name %s", err, want)
		}
	}
}

func TestExtractRejectsAddressWrap(t *testing.T) {
	f := image([]object.Section{raw(".top", 0xffffffffffffffff, 0x01, 0x02)}, load(".top", ""))
	_, err := rawimage.Extract(f)
	if !errors.IsKind(err, errors.KindOverflow) {
		t.Fatalf("expected overflow error, got %v", err)
	}
}

func TestExtractIgnoresOtherSegments(t *testing.T) {
	f := image(
		[]object.Section{
			raw(".note", 0x00, 0xaa, 0xaa),
			raw(".text", 0x10, 0xc3),
		},
		object.ProgramHeader{Type: elf.PT_NOTE, FirstSec: ".note", LastSec: ".note"},
		load(".text", ""),
	)
	got, err := rawimage.Extract(f)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if want := []byte{0xc3}; !bytes.Equal(got, want) {
		t.Errorf("image = % x, want % x", got, want)
	}
}

func TestExtractEmpty(t *testing.T) {
	f := image([]object.Section{raw(".text", 0, 0xc3)})
	got, err := rawimage.Extract(f)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("image = % x, want empty", got)
	}
}

func TestExtractPropagatesLayoutErrors(t *testing.T) {
	f := image([]object.Section{raw(".text", 0, 0xc3)}, load(".missing", ""))
	_, err := rawimage.Extract(f)
	if !errors.IsKind(err, errors.KindUnresolvedReference) {
		t.Fatalf("expected unresolved reference, got %v", err)
	}
}
