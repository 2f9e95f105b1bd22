package elfyaml

import (
	"bytes"
	"debug/elf"
	"encoding/hex"
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/elfkit/errors"
	"github.com/wippyai/elfkit/object"
)

// Dump renders f as a YAML document. Fields holding their default value are
// omitted, except that the revision, flags, index and hash of a version
// definition entry are omitted together or emitted together. Trailing string
// tables that layout would append on its own are left out.
func Dump(f *object.File) ([]byte, error) {
	sections := trimImplicit(f.Sections)
	doc := document{
		FileHeader: fileHeader{
			Class:      object.Classes.Name(f.Header.Class),
			Data:       object.DataEncodings.Name(f.Header.Data),
			ABIVersion: hex64(f.Header.ABIVersion),
			Type:       object.FileTypes.Name(f.Header.Type),
			Machine:    object.Machines.Name(f.Header.Machine),
			Flags:      hex64(f.Header.Flags),
			Entry:      hex64(f.Header.Entry),
		},
	}
	if f.Header.OSABI != elf.ELFOSABI_NONE {
		doc.FileHeader.OSABI = object.OSABIs.Name(f.Header.OSABI)
	}

	for i, s := range sections {
		if s == nil {
			return nil, errors.InvalidData(errors.PhaseDump, []string{fmt.Sprintf("Sections[%d]", i)}, "nil section")
		}
		doc.Sections = append(doc.Sections, dumpSection(s))
	}
	for _, p := range f.ProgramHeaders {
		doc.ProgramHeaders = append(doc.ProgramHeaders, dumpProgramHeader(p))
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return nil, errors.Wrap(errors.PhaseDump, errors.KindInvalidData, err, "encode YAML")
	}
	if err := enc.Close(); err != nil {
		return nil, errors.Wrap(errors.PhaseDump, errors.KindInvalidData, err, "encode YAML")
	}
	Logger().Debug("dumped document",
		zap.Int("sections", len(doc.Sections)),
		zap.Int("omitted", len(f.Sections)-len(sections)))
	return buf.Bytes(), nil
}

// trimImplicit drops the longest tail of sections that equals what layout
// would append to the remaining sections.
func trimImplicit(sections []object.Section) []object.Section {
	for k := min(3, len(sections)); k > 0; k-- {
		head, tail := sections[:len(sections)-k], sections[len(sections)-k:]
		if len(head) == 0 {
			continue
		}
		implicit := object.ImplicitSections(head)
		if len(implicit) != k {
			continue
		}
		match := true
		for i, s := range tail {
			if !isImplicit(s, implicit[i]) {
				match = false
				break
			}
		}
		if match {
			return head
		}
	}
	return sections
}

func isImplicit(s object.Section, want *object.StringTableSection) bool {
	st, ok := s.(*object.StringTableSection)
	if !ok || len(st.Content) != 0 {
		return false
	}
	h, w := st.SectionHeader, want.SectionHeader
	return h.Name == w.Name && h.Type == w.Type && h.Flags == w.Flags &&
		h.Address == nil && h.Offset == nil &&
		h.AddressAlign == w.AddressAlign && h.EntSize == 0 &&
		h.Link == "" && h.Info == 0
}

func dumpSection(s object.Section) section {
	h := s.Header()
	out := section{
		Name:    h.Name,
		Type:    object.SectionTypes.Name(h.Type),
		Flags:   object.SectionFlags.Names(h.Flags),
		Address: hexPtr(h.Address),
		Offset:  hexPtr(h.Offset),
		Link:    h.Link,
		EntSize: hex64(h.EntSize),
		Info:    hex64(h.Info),
	}
	if h.AddressAlign != 1 {
		out.AddressAlign = hexPtr(&h.AddressAlign)
	}

	switch s := s.(type) {
	case *object.RawSection:
		out.Content = hex.EncodeToString(s.Content)
	case *object.NoBitsSection:
		out.Size = hex64(s.Size)
	case *object.StringTableSection:
		out.Content = hex.EncodeToString(s.Content)
	case *object.SymbolTableSection:
		for _, sym := range s.Symbols {
			out.Symbols = append(out.Symbols, dumpSymbol(sym))
		}
	case *object.VersionSymbolSection:
		out.Versions = s.Versions
	case *object.VersionDefinitionSection:
		for _, e := range s.Entries {
			out.Entries = append(out.Entries, dumpEntry(e))
		}
	}
	return out
}

func dumpSymbol(sym object.Symbol) symbol {
	out := symbol{
		Name:    sym.Name,
		Other:   hex64(sym.Other),
		Section: sym.Section,
		Value:   hex64(sym.Value),
		Size:    hex64(sym.Size),
	}
	if sym.Type != elf.STT_NOTYPE {
		out.Type = object.SymTypes.Name(sym.Type)
	}
	if sym.Binding != elf.STB_LOCAL {
		out.Binding = object.SymBinds.Name(sym.Binding)
	}
	if sym.Index != elf.SHN_UNDEF {
		out.Index = object.SpecialSections.Name(sym.Index)
	}
	return out
}

func dumpEntry(e object.VersionDefinition) verdefEntry {
	out := verdefEntry{Names: e.Names}
	if e.IsDefault() {
		return out
	}
	version, flags, ndx, hash := hex64(e.Version), hex64(e.Flags), hex64(e.VersionNdx), hex64(e.Hash)
	out.Version = &version
	out.Flags = &flags
	out.VersionNdx = &ndx
	out.Hash = &hash
	return out
}

func dumpProgramHeader(p object.ProgramHeader) programHeader {
	return programHeader{
		Type:     object.ProgTypes.Name(p.Type),
		Flags:    object.ProgFlags.Names(p.Flags),
		VAddr:    hexPtr(p.VAddr),
		PAddr:    hexPtr(p.PAddr),
		Align:    hex64(p.Align),
		FirstSec: p.FirstSec,
		LastSec:  p.LastSec,
		Offset:   hexPtr(p.Offset),
		FileSize: hexPtr(p.FileSize),
		MemSize:  hexPtr(p.MemSize),
	}
}
