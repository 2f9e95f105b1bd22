package elfyaml_test

import (
	"bytes"
	"debug/elf"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/elfkit/elfyaml"
	"github.com/wippyai/elfkit/errors"
	"github.com/wippyai/elfkit/object"
)

var modelOpts = cmp.Options{
	cmpopts.EquateEmpty(),
	cmpopts.IgnoreUnexported(object.StringTableSection{}),
}

func hdr(name string, typ elf.SectionType, flags elf.SectionFlag, align uint64) object.SectionHeader {
	return object.SectionHeader{Name: name, Type: typ, Flags: flags, AddressAlign: align}
}

func sharedObject() *object.File {
	return &object.File{
		Header: object.FileHeader{
			Class:   elf.ELFCLASS64,
			Data:    elf.ELFDATA2LSB,
			Type:    elf.ET_DYN,
			Machine: elf.EM_X86_64,
		},
		Sections: []object.Section{
			&object.RawSection{
				SectionHeader: hdr(".text", elf.SHT_PROGBITS, elf.SHF_ALLOC|elf.SHF_EXECINSTR, 16),
				Content:       []byte{0xc3},
			},
			&object.SymbolTableSection{
				SectionHeader: hdr(".dynsym", elf.SHT_DYNSYM, elf.SHF_ALLOC, 8),
				Symbols: []object.Symbol{
					{Name: "foo", Type: elf.STT_FUNC, Binding: elf.STB_GLOBAL, Section: ".text", Size: 1},
					{Name: "bar", Binding: elf.STB_WEAK, Index: elf.SHN_ABS, Value: 0x10},
				},
			},
			&object.VersionSymbolSection{
				SectionHeader: hdr(".gnu.version", elf.SHT_GNU_VERSYM, elf.SHF_ALLOC, 2),
				Versions:      []uint16{0, 1, 2},
			},
			&object.VersionDefinitionSection{
				SectionHeader: hdr(".gnu.version_d", elf.SHT_GNU_VERDEF, elf.SHF_ALLOC, 4),
				Entries: []object.VersionDefinition{
					{Version: 1, Names: []string{"libfoo.so"}},
					{Version: 1, VersionNdx: 2, Hash: 0x1234, Names: []string{"V1"}},
				},
			},
			&object.StringTableSection{
				SectionHeader: hdr(".dynstr", elf.SHT_STRTAB, elf.SHF_ALLOC, 1),
			},
			&object.NoBitsSection{
				SectionHeader: hdr(".bss", elf.SHT_NOBITS, elf.SHF_ALLOC|elf.SHF_WRITE, 8),
				Size:          0x40,
			},
		},
		ProgramHeaders: []object.ProgramHeader{
			{
				Type:     elf.PT_LOAD,
				Flags:    elf.PF_R | elf.PF_X,
				VAddr:    object.Uint64(0),
				FirstSec: ".text",
				LastSec:  ".bss",
			},
		},
	}
}

// sections returns the key/value tree of the dumped Sections list.
func sections(t *testing.T, doc []byte) []map[string]any {
	t.Helper()
	var out struct {
		Sections []map[string]any `yaml:"Sections"`
	}
	if err := yaml.Unmarshal(doc, &out); err != nil {
		t.Fatalf("dump is not valid YAML: %v\n%s", err, doc)
	}
	return out.Sections
}

func TestDumpBuildRoundTrip(t *testing.T) {
	data, err := sharedObject().Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := object.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	doc, err := elfyaml.Dump(decoded)
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}
	built, err := elfyaml.Build(doc)
	if err != nil {
		t.Fatalf("Build: %v\n%s", err, doc)
	}
	if diff := cmp.Diff(decoded, built, modelOpts); diff != "" {
		t.Errorf("model mismatch after Dump/Build (-want +got):\n%s\n%s", diff, doc)
	}

	again, err := built.Encode()
	if err != nil {
		t.Fatalf("re-Encode: %v", err)
	}
	if !bytes.Equal(data, again) {
		t.Error("binary changed across obj2yaml/yaml2obj")
	}
}

func TestBuildDumpRoundTrip(t *testing.T) {
	doc := `
FileHeader:
  Class: ELFCLASS32
  Data: ELFDATA2MSB
  Type: ET_REL
  Machine: EM_PPC
  Flags: 0x80000000
Sections:
  - Name: .text
    Type: SHT_PROGBITS
    Flags: [ SHF_ALLOC, SHF_EXECINSTR ]
    AddressAlign: 0x4
    Content: 4e800020
  - Name: .symtab
    Type: SHT_SYMTAB
    Symbols:
      - Name: local
        Section: .text
      - Name: f
        Type: STT_FUNC
        Binding: STB_GLOBAL
        Section: .text
        Size: 4
  - Name: .note.custom
    Type: 0x6FFF4700
    Link: "7"
    Info: 0x7
    Content: "0001"
`
	f, err := elfyaml.Build([]byte(doc))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if f.Header.Flags != 0x80000000 || f.Header.Class != elf.ELFCLASS32 || f.Header.Data != elf.ELFDATA2MSB {
		t.Errorf("header = %+v", f.Header)
	}
	// .strtab and .shstrtab are appended explicitly
	if n := len(f.Sections); n != 5 {
		t.Fatalf("got %d sections, want 5", n)
	}
	if raw, ok := f.Sections[2].(*object.RawSection); !ok || raw.Link != "7" || !bytes.Equal(raw.Content, []byte{0, 1}) {
		t.Errorf("passthrough section = %#v", f.Sections[2])
	}

	out, err := elfyaml.Dump(f)
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}
	again, err := elfyaml.Build(out)
	if err != nil {
		t.Fatalf("Build of dump: %v\n%s", err, out)
	}
	if diff := cmp.Diff(f, again, modelOpts); diff != "" {
		t.Errorf("Build(Dump(f)) mismatch (-want +got):\n%s", diff)
	}
	if bytes.Contains(out, []byte(".shstrtab")) || bytes.Contains(out, []byte(".strtab")) {
		t.Errorf("implicit string tables leaked into dump:\n%s", out)
	}
}

func TestDumpOmitsDefaults(t *testing.T) {
	f := &object.File{
		Header: object.FileHeader{Class: elf.ELFCLASS64, Data: elf.ELFDATA2LSB, Type: elf.ET_REL, Machine: elf.EM_X86_64},
		Sections: []object.Section{
			&object.RawSection{SectionHeader: hdr(".text", elf.SHT_PROGBITS, elf.SHF_ALLOC, 1), Content: []byte{0xc3}},
			&object.RawSection{SectionHeader: hdr(".data", elf.SHT_PROGBITS, 0, 8)},
		},
	}
	doc, err := elfyaml.Dump(f)
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}
	for _, absent := range []string{"OSABI", "Entry", "Address:", "Offset:", "EntSize", "Info", "Link", "ProgramHeaders"} {
		if bytes.Contains(doc, []byte(absent)) {
			t.Errorf("dump contains default field %s:\n%s", absent, doc)
		}
	}

	secs := sections(t, doc)
	if len(secs) != 2 {
		t.Fatalf("got %d sections, want 2:\n%s", len(secs), doc)
	}
	if _, ok := secs[0]["AddressAlign"]; ok {
		t.Errorf("AddressAlign 1 was emitted: %v", secs[0])
	}
	if got := secs[1]["AddressAlign"]; got != 8 {
		t.Errorf(".data AddressAlign = %v, want 8", got)
	}
	if _, ok := secs[1]["Content"]; ok {
		t.Errorf("empty content was emitted: %v", secs[1])
	}
	if !bytes.Contains(doc, []byte("Flags: [SHF_ALLOC]")) {
		t.Errorf("flags not rendered as a flow list:\n%s", doc)
	}
}

func TestDumpVersionDefinitionEntries(t *testing.T) {
	f := sharedObject()
	f.Sections[3].(*object.VersionDefinitionSection).Entries = []object.VersionDefinition{
		{Version: 1, Names: []string{"libfoo.so"}},
		{Version: 1, Hash: 0x1234, Names: []string{"V1"}},
		{Version: 1, Names: []string{"V2", "V1"}},
	}
	doc, err := elfyaml.Dump(f)
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}
	entries, ok := sections(t, doc)[3]["Entries"].([]any)
	if !ok || len(entries) != 3 {
		t.Fatalf("entries = %#v", sections(t, doc)[3]["Entries"])
	}
	wantKeys := [][]string{
		{"Names"},
		{"Flags", "Hash", "Names", "Version", "VersionNdx"},
		{"Flags", "Hash", "Names", "Version", "VersionNdx"},
	}
	for i, e := range entries {
		var keys []string
		for k := range e.(map[string]any) {
			keys = append(keys, k)
		}
		if diff := cmp.Diff(wantKeys[i], keys, cmpopts.SortSlices(func(a, b string) bool { return a < b })); diff != "" {
			t.Errorf("entry %d keys (-want +got):\n%s", i, diff)
		}
	}

	built, err := elfyaml.Build(doc)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	_, s := built.Section(".gnu.version_d")
	got := s.(*object.VersionDefinitionSection).Entries
	want := f.Sections[3].(*object.VersionDefinitionSection).Entries
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("entries after Build (-want +got):\n%s", diff)
	}
}

func TestBuildDefaults(t *testing.T) {
	doc := `
FileHeader:
  Type: ET_EXEC
  Machine: EM_X86_64
Sections:
  - Name: .dynsym
    Type: SHT_DYNSYM
    Symbols:
      - Name: foo
  - Name: .gnu.version_d
    Type: SHT_GNU_VERDEF
    Entries:
      - Names: [ libfoo.so ]
`
	f, err := elfyaml.Build([]byte(doc))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	want := &object.File{
		Header: object.FileHeader{Class: elf.ELFCLASS64, Data: elf.ELFDATA2LSB, Type: elf.ET_EXEC, Machine: elf.EM_X86_64},
		Sections: []object.Section{
			&object.SymbolTableSection{
				SectionHeader: hdr(".dynsym", elf.SHT_DYNSYM, 0, 1),
				Symbols:       []object.Symbol{{Name: "foo"}},
			},
			&object.VersionDefinitionSection{
				SectionHeader: hdr(".gnu.version_d", elf.SHT_GNU_VERDEF, 0, 1),
				Entries:       []object.VersionDefinition{{Version: 1, Names: []string{"libfoo.so"}}},
			},
			object.ImplicitStringTable(object.DynamicStringTable),
			object.ImplicitStringTable(object.SectionHeaderStringTable),
		},
	}
	if diff := cmp.Diff(want, f, modelOpts); diff != "" {
		t.Errorf("built model mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildStringTableKind(t *testing.T) {
	doc := `
FileHeader: { Type: ET_REL, Machine: EM_X86_64 }
Sections:
  - Name: .symtab
    Type: SHT_SYMTAB
    Link: .mystr
  - Name: .mystr
    Type: SHT_STRTAB
  - Name: .comment.str
    Type: SHT_STRTAB
    Content: 00474343
`
	f, err := elfyaml.Build([]byte(doc))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, ok := f.Sections[1].(*object.StringTableSection); !ok {
		t.Errorf("linked table built as %T", f.Sections[1])
	}
	if _, ok := f.Sections[2].(*object.RawSection); !ok {
		t.Errorf("unreferenced SHT_STRTAB built as %T", f.Sections[2])
	}
	if _, s := f.Section(object.SymbolStringTable); s != nil {
		t.Error(".strtab appended although .symtab links elsewhere")
	}
}

func TestBuildErrors(t *testing.T) {
	const header = "FileHeader: { Type: ET_DYN, Machine: EM_X86_64 }\n"
	tests := []struct {
		name string
		doc  string
		kind errors.Kind
		path string
	}{
		{
			name: "names not a sequence",
			doc: header + `Sections:
  - { Name: .a, Type: SHT_PROGBITS }
  - { Name: .b, Type: SHT_PROGBITS }
  - Name: .gnu.version_d
    Type: SHT_GNU_VERDEF
    Entries:
      - Names: libfoo.so
`,
			kind: errors.KindShape,
			path: "Sections[2].Entries[0].Names",
		},
		{
			name: "unknown key",
			doc:  header + "Sections:\n  - { Name: .a, Type: SHT_PROGBITS, Colour: red }\n",
			kind: errors.KindFieldUnknown,
			path: "Sections[0].Colour",
		},
		{
			name: "key of another kind",
			doc:  header + "Sections:\n  - { Name: .bss, Type: SHT_NOBITS, Content: c3 }\n",
			kind: errors.KindFieldUnknown,
			path: "Sections[0].Content",
		},
		{
			name: "missing file header",
			doc:  "Sections: []\n",
			kind: errors.KindFieldMissing,
		},
		{
			name: "missing machine",
			doc:  "FileHeader: { Type: ET_DYN }\n",
			kind: errors.KindFieldMissing,
			path: "FileHeader",
		},
		{
			name: "missing section type",
			doc:  header + "Sections:\n  - { Name: .a }\n",
			kind: errors.KindFieldMissing,
			path: "Sections[0]",
		},
		{
			name: "version overflow",
			doc:  header + "Sections:\n  - { Name: .gnu.version, Type: SHT_GNU_VERSYM, Versions: [ 1, 70000 ] }\n",
			kind: errors.KindOverflow,
			path: "Sections[0].Versions[1]",
		},
		{
			name: "machine overflow",
			doc:  "FileHeader: { Type: ET_DYN, Machine: 0x10000 }\n",
			kind: errors.KindOverflow,
			path: "FileHeader.Machine",
		},
		{
			name: "bad enum",
			doc:  header + "Sections:\n  - { Name: .a, Type: SHT_BOGUS }\n",
			kind: errors.KindInvalidEnum,
			path: "Sections[0].Type",
		},
		{
			name: "bad flag",
			doc:  header + "Sections:\n  - { Name: .a, Type: SHT_PROGBITS, Flags: [ SHF_ALLOC, SHF_NOPE ] }\n",
			kind: errors.KindInvalidEnum,
			path: "Sections[0].Flags[1]",
		},
		{
			name: "bad hex content",
			doc:  header + "Sections:\n  - { Name: .a, Type: SHT_PROGBITS, Content: xyz }\n",
			kind: errors.KindShape,
			path: "Sections[0].Content",
		},
		{
			name: "sections not a list",
			doc:  header + "Sections: { Name: .a }\n",
			kind: errors.KindShape,
			path: "Sections",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := elfyaml.Build([]byte(tt.doc))
			if err == nil {
				t.Fatal("expected an error")
			}
			if !errors.IsKind(err, tt.kind) {
				t.Fatalf("error kind mismatch, want %s: %v", tt.kind, err)
			}
			if tt.path != "" && !strings.Contains(err.Error(), "at "+tt.path) {
				t.Errorf("error %q does not name path %s", err, tt.path)
			}
		})
	}
}

func TestDumpKeepsNonDefaultTrailingTable(t *testing.T) {
	f := sharedObject()
	shstrtab := object.ImplicitStringTable(object.SectionHeaderStringTable)
	shstrtab.AddressAlign = 4
	f.Sections = append(f.Sections, shstrtab)

	doc, err := elfyaml.Dump(f)
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}
	if !bytes.Contains(doc, []byte(".shstrtab")) {
		t.Errorf("customised .shstrtab was dropped:\n%s", doc)
	}
	built, err := elfyaml.Build(doc)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if diff := cmp.Diff(f, built, modelOpts); diff != "" {
		t.Errorf("model mismatch (-want +got):\n%s", diff)
	}
}
