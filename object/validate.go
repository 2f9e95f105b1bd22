package object

import (
	"debug/elf"
	"encoding/binary"
	"fmt"

	"github.com/wippyai/elfkit/errors"
	bin "github.com/wippyai/elfkit/object/internal/binary"
)

// Validate checks the model for structural consistency: a supported class and
// byte order, section kinds that agree with their type tags, and program
// header spans whose ends are either both absent or in section order.
func (f *File) Validate() error {
	if _, err := f.layout(); err != nil {
		return err
	}
	if err := f.validateSectionKinds(); err != nil {
		return err
	}
	if err := f.validateSpans(); err != nil {
		return err
	}
	return nil
}

func (f *File) layout() (bin.Layout, error) {
	var l bin.Layout
	switch f.Header.Class {
	case elf.ELFCLASS32:
	case elf.ELFCLASS64:
		l.Wide = true
	default:
		return l, errors.UnsupportedFormat(errors.PhaseLayout, "class", f.Header.Class)
	}
	switch f.Header.Data {
	case elf.ELFDATA2LSB:
		l.Order = binary.LittleEndian
	case elf.ELFDATA2MSB:
		l.Order = binary.BigEndian
	default:
		return l, errors.UnsupportedFormat(errors.PhaseLayout, "data encoding", f.Header.Data)
	}
	return l, nil
}

func sectionPath(i int, field ...string) []string {
	return append([]string{fmt.Sprintf("Sections[%d]", i)}, field...)
}

func segmentPath(i int, field ...string) []string {
	return append([]string{fmt.Sprintf("ProgramHeaders[%d]", i)}, field...)
}

func (f *File) validateSectionKinds() error {
	for i, s := range f.Sections {
		if s == nil {
			return errors.InvalidData(errors.PhaseLayout, sectionPath(i), "nil section")
		}
		h := s.Header()
		var ok bool
		switch s.(type) {
		case *RawSection:
			ok = true
		case *NoBitsSection:
			ok = h.Type == elf.SHT_NOBITS
		case *StringTableSection:
			ok = h.Type == elf.SHT_STRTAB
		case *SymbolTableSection:
			ok = h.Type == elf.SHT_SYMTAB || h.Type == elf.SHT_DYNSYM
		case *VersionSymbolSection:
			ok = h.Type == elf.SHT_GNU_VERSYM
		case *VersionDefinitionSection:
			ok = h.Type == elf.SHT_GNU_VERDEF
		}
		if !ok {
			return errors.New(errors.PhaseLayout, errors.KindInvalidData).
				Path(sectionPath(i, "Type")...).
				Section(i+1, h.Name).
				Value(h.Type).
				Detail("section kind %T cannot carry type %s", s, SectionTypes.Name(h.Type)).
				Build()
		}
	}
	return nil
}

func (f *File) validateSpans() error {
	for i, p := range f.ProgramHeaders {
		if p.FirstSec == "" && p.LastSec != "" {
			return errors.FieldMissing(errors.PhaseLayout, segmentPath(i), "FirstSec")
		}
	}
	return nil
}
