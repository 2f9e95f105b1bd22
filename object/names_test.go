package object_test

import (
	"debug/elf"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wippyai/elfkit/object"
)

func TestEnumNames(t *testing.T) {
	if got := object.SectionTypes.Name(elf.SHT_GNU_VERDEF); got != "SHT_GNU_VERDEF" {
		t.Errorf("Name(SHT_GNU_VERDEF) = %q", got)
	}
	if got := object.SectionTypes.Name(elf.SectionType(0x6fff4700)); got != "0x6FFF4700" {
		t.Errorf("unknown type name = %q", got)
	}
	if got := object.Machines.Name(elf.EM_X86_64); got != "EM_X86_64" {
		t.Errorf("Name(EM_X86_64) = %q", got)
	}
	if object.ProgTypes.Known(elf.ProgType(0x12345)) {
		t.Error("unexpected known program header type")
	}
}

func TestEnumParse(t *testing.T) {
	tests := []struct {
		in   string
		want elf.SectionType
		ok   bool
	}{
		{"SHT_PROGBITS", elf.SHT_PROGBITS, true},
		{"SHT_GNU_versym", 0, false},
		{"0x6FFF4700", 0x6fff4700, true},
		{"12", 12, true},
		{"0x100000000", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := object.SectionTypes.Parse(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("Parse(%q) = %v, %v, want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}

	if _, ok := object.Classes.Parse("0x100"); ok {
		t.Error("class literal wider than a byte was accepted")
	}
}

func TestFlagSet(t *testing.T) {
	v := elf.SHF_ALLOC | elf.SHF_EXECINSTR | elf.SectionFlag(0x100000)
	names := object.SectionFlags.Names(v)
	want := []string{"SHF_ALLOC", "SHF_EXECINSTR", "0x100000"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("Names mismatch (-want +got):\n%s", diff)
	}
	back, err := object.SectionFlags.Parse(names)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if back != v {
		t.Errorf("Parse = %v, want %v", back, v)
	}
	if names := object.ProgFlags.Names(0); names != nil {
		t.Errorf("Names(0) = %v, want nil", names)
	}
	if _, err := object.ProgFlags.Parse([]string{"PF_Q"}); err == nil {
		t.Error("unknown flag accepted")
	}
}
