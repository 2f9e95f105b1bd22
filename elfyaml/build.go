package elfyaml

import (
	"debug/elf"
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/elfkit/errors"
	"github.com/wippyai/elfkit/object"
)

// Build parses a YAML document into a File. Absent fields take their
// defaults: ELFCLASS64, ELFDATA2LSB, an AddressAlign of 1, revision 1 for
// version definition entries, STB_LOCAL and STT_NOTYPE for symbols, and zero
// for everything else. Errors name the offending field by path, for example
// Sections[2].Entries[0].Names.
func Build(doc []byte) (*object.File, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(doc, &root); err != nil {
		return nil, errors.Wrap(errors.PhaseBuild, errors.KindShape, err, "invalid YAML")
	}
	if root.Kind == 0 || len(root.Content) == 0 {
		return nil, errors.FieldMissing(errors.PhaseBuild, nil, "FileHeader")
	}
	top, err := mapping(root.Content[0], nil, documentKeys)
	if err != nil {
		return nil, err
	}

	f := &object.File{}
	hn, ok := top["FileHeader"]
	if !ok {
		return nil, errors.FieldMissing(errors.PhaseBuild, nil, "FileHeader")
	}
	if f.Header, err = buildFileHeader(hn, []string{"FileHeader"}); err != nil {
		return nil, err
	}

	if n, ok := top["Sections"]; ok {
		if f.Sections, err = buildSections(n, []string{"Sections"}); err != nil {
			return nil, err
		}
	}
	if n, ok := top["ProgramHeaders"]; ok {
		if f.ProgramHeaders, err = buildProgramHeaders(n, []string{"ProgramHeaders"}); err != nil {
			return nil, err
		}
	}

	// Tables layout would append are made explicit, as Decode does.
	implicit := object.ImplicitSections(f.Sections)
	for _, s := range implicit {
		f.Sections = append(f.Sections, s)
	}
	Logger().Debug("built document",
		zap.Int("sections", len(f.Sections)),
		zap.Int("implicit", len(implicit)),
		zap.Int("segments", len(f.ProgramHeaders)))
	return f, nil
}

func buildFileHeader(n *yaml.Node, path []string) (object.FileHeader, error) {
	h := object.FileHeader{Class: elf.ELFCLASS64, Data: elf.ELFDATA2LSB}
	m, err := mapping(n, path, fileHeaderKeys)
	if err != nil {
		return h, err
	}
	for _, key := range []string{"Type", "Machine"} {
		if _, ok := m[key]; !ok {
			return h, errors.FieldMissing(errors.PhaseBuild, path, key)
		}
	}
	fb := fields{m: m, path: path}
	enumField(&fb, "Class", "class", 8, object.Classes, &h.Class)
	enumField(&fb, "Data", "data encoding", 8, object.DataEncodings, &h.Data)
	enumField(&fb, "OSABI", "OS ABI", 8, object.OSABIs, &h.OSABI)
	fb.uint8("ABIVersion", &h.ABIVersion)
	enumField(&fb, "Type", "file type", 16, object.FileTypes, &h.Type)
	enumField(&fb, "Machine", "machine", 16, object.Machines, &h.Machine)
	fb.uint32("Flags", &h.Flags)
	fb.uint64("Entry", &h.Entry)
	return h, fb.err
}

// sectionDraft holds the kind-independent fields of a section until every
// section has been read and string tables can be told apart from raw
// SHT_STRTAB sections.
type sectionDraft struct {
	path   []string
	m      map[string]*yaml.Node
	header object.SectionHeader
}

func buildSections(n *yaml.Node, path []string) ([]object.Section, error) {
	items, err := sequence(n, path)
	if err != nil {
		return nil, err
	}
	drafts := make([]*sectionDraft, len(items))
	for i, item := range items {
		p := indexPath(path, i)
		m, err := mapping(item, p, sectionKeys)
		if err != nil {
			return nil, err
		}
		for _, key := range []string{"Name", "Type"} {
			if _, ok := m[key]; !ok {
				return nil, errors.FieldMissing(errors.PhaseBuild, p, key)
			}
		}
		d := &sectionDraft{path: p, m: m, header: object.SectionHeader{AddressAlign: 1}}
		h := &d.header
		fb := fields{m: m, path: p}
		fb.string("Name", &h.Name)
		enumField(&fb, "Type", "section type", 32, object.SectionTypes, &h.Type)
		flagsField(&fb, "Flags", object.SectionFlags, &h.Flags)
		fb.optional("Address", &h.Address)
		fb.optional("Offset", &h.Offset)
		fb.string("Link", &h.Link)
		fb.uint64("AddressAlign", &h.AddressAlign)
		fb.uint64("EntSize", &h.EntSize)
		fb.uint32("Info", &h.Info)
		if fb.err != nil {
			return nil, fb.err
		}
		drafts[i] = d
	}

	tables := stringTables(drafts)
	out := make([]object.Section, len(drafts))
	for i, d := range drafts {
		s, err := d.build(tables[i])
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

// stringTables marks the SHT_STRTAB sections that are string tables in the
// encoder's sense: .shstrtab and the link targets of symbol tables and
// version definitions. Other SHT_STRTAB sections stay raw.
func stringTables(drafts []*sectionDraft) []bool {
	first := make(map[string]int)
	for i, d := range drafts {
		if _, ok := first[d.header.Name]; !ok {
			first[d.header.Name] = i
		}
	}
	out := make([]bool, len(drafts))
	mark := func(ref string) {
		if i, ok := first[ref]; ok {
			out[i] = true
			return
		}
		if n, err := strconv.ParseUint(ref, 10, 32); err == nil && n > 0 && int(n) <= len(drafts) {
			out[n-1] = true
		}
	}
	mark(object.SectionHeaderStringTable)
	for _, d := range drafts {
		var target string
		switch d.header.Type {
		case elf.SHT_SYMTAB:
			target = object.SymbolStringTable
		case elf.SHT_DYNSYM, elf.SHT_GNU_VERDEF:
			target = object.DynamicStringTable
		default:
			continue
		}
		if d.header.Link != "" {
			target = d.header.Link
		}
		mark(target)
	}
	for i, d := range drafts {
		out[i] = out[i] && d.header.Type == elf.SHT_STRTAB
	}
	return out
}

// kindKeys lists the keys only some section kinds accept.
var kindKeys = []string{"Content", "Size", "Symbols", "Entries", "Versions"}

func (d *sectionDraft) allow(keys ...string) error {
	for _, key := range kindKeys {
		if _, ok := d.m[key]; ok && !slices.Contains(keys, key) {
			return errors.New(errors.PhaseBuild, errors.KindFieldUnknown).
				Path(append(slices.Clone(d.path), key)...).
				Detail("field %q is not valid for a %s section", key, object.SectionTypes.Name(d.header.Type)).
				Build()
		}
	}
	return nil
}

func (d *sectionDraft) build(stringTable bool) (object.Section, error) {
	h := d.header
	fb := fields{m: d.m, path: d.path}
	switch {
	case h.Type == elf.SHT_NOBITS:
		s := &object.NoBitsSection{SectionHeader: h}
		fb.uint64("Size", &s.Size)
		return s, first(d.allow("Size"), fb.err)
	case h.Type == elf.SHT_SYMTAB || h.Type == elf.SHT_DYNSYM:
		s := &object.SymbolTableSection{SectionHeader: h}
		if n, ok := d.m["Symbols"]; ok {
			syms, err := buildSymbols(n, d.fieldPath("Symbols"))
			if err != nil {
				return nil, err
			}
			s.Symbols = syms
		}
		return s, d.allow("Symbols")
	case h.Type == elf.SHT_GNU_VERSYM:
		s := &object.VersionSymbolSection{SectionHeader: h}
		if n, ok := d.m["Versions"]; ok {
			items, err := sequence(n, d.fieldPath("Versions"))
			if err != nil {
				return nil, err
			}
			for j, item := range items {
				v, err := uintValue(item, indexPath(d.fieldPath("Versions"), j), 16)
				if err != nil {
					return nil, err
				}
				s.Versions = append(s.Versions, uint16(v))
			}
		}
		return s, d.allow("Versions")
	case h.Type == elf.SHT_GNU_VERDEF:
		s := &object.VersionDefinitionSection{SectionHeader: h}
		if n, ok := d.m["Entries"]; ok {
			entries, err := buildEntries(n, d.fieldPath("Entries"))
			if err != nil {
				return nil, err
			}
			s.Entries = entries
		}
		return s, d.allow("Entries")
	case stringTable:
		s := &object.StringTableSection{SectionHeader: h}
		fb.bytes("Content", &s.Content)
		return s, first(d.allow("Content"), fb.err)
	default:
		s := &object.RawSection{SectionHeader: h}
		fb.bytes("Content", &s.Content)
		return s, first(d.allow("Content"), fb.err)
	}
}

func (d *sectionDraft) fieldPath(key string) []string {
	return append(slices.Clone(d.path), key)
}

func buildSymbols(n *yaml.Node, path []string) ([]object.Symbol, error) {
	items, err := sequence(n, path)
	if err != nil {
		return nil, err
	}
	out := make([]object.Symbol, 0, len(items))
	for i, item := range items {
		p := indexPath(path, i)
		m, err := mapping(item, p, symbolKeys)
		if err != nil {
			return nil, err
		}
		var sym object.Symbol
		fb := fields{m: m, path: p}
		fb.string("Name", &sym.Name)
		enumField(&fb, "Type", "symbol type", 4, object.SymTypes, &sym.Type)
		enumField(&fb, "Binding", "symbol binding", 4, object.SymBinds, &sym.Binding)
		fb.uint8("Other", &sym.Other)
		fb.string("Section", &sym.Section)
		enumField(&fb, "Index", "section index", 16, object.SpecialSections, &sym.Index)
		fb.uint64("Value", &sym.Value)
		fb.uint64("Size", &sym.Size)
		if fb.err != nil {
			return nil, fb.err
		}
		out = append(out, sym)
	}
	return out, nil
}

func buildEntries(n *yaml.Node, path []string) ([]object.VersionDefinition, error) {
	items, err := sequence(n, path)
	if err != nil {
		return nil, err
	}
	out := make([]object.VersionDefinition, 0, len(items))
	for i, item := range items {
		p := indexPath(path, i)
		m, err := mapping(item, p, entryKeys)
		if err != nil {
			return nil, err
		}
		e := object.VersionDefinition{Version: object.VersionDefinitionRevision}
		fb := fields{m: m, path: p}
		fb.uint16("Version", &e.Version)
		fb.uint16("Flags", &e.Flags)
		fb.uint16("VersionNdx", &e.VersionNdx)
		fb.uint32("Hash", &e.Hash)
		fb.strings("Names", &e.Names)
		if fb.err != nil {
			return nil, fb.err
		}
		out = append(out, e)
	}
	return out, nil
}

func buildProgramHeaders(n *yaml.Node, path []string) ([]object.ProgramHeader, error) {
	items, err := sequence(n, path)
	if err != nil {
		return nil, err
	}
	out := make([]object.ProgramHeader, 0, len(items))
	for i, item := range items {
		p := indexPath(path, i)
		m, err := mapping(item, p, programHeaderKeys)
		if err != nil {
			return nil, err
		}
		if _, ok := m["Type"]; !ok {
			return nil, errors.FieldMissing(errors.PhaseBuild, p, "Type")
		}
		var ph object.ProgramHeader
		fb := fields{m: m, path: p}
		enumField(&fb, "Type", "program header type", 32, object.ProgTypes, &ph.Type)
		flagsField(&fb, "Flags", object.ProgFlags, &ph.Flags)
		fb.optional("VAddr", &ph.VAddr)
		fb.optional("PAddr", &ph.PAddr)
		fb.uint64("Align", &ph.Align)
		fb.string("FirstSec", &ph.FirstSec)
		fb.string("LastSec", &ph.LastSec)
		fb.optional("Offset", &ph.Offset)
		fb.optional("FileSize", &ph.FileSize)
		fb.optional("MemSize", &ph.MemSize)
		if fb.err != nil {
			return nil, fb.err
		}
		out = append(out, ph)
	}
	return out, nil
}

func first(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func indexPath(path []string, i int) []string {
	p := slices.Clone(path)
	last := len(p) - 1
	p[last] = fmt.Sprintf("%s[%d]", p[last], i)
	return p
}

func kindName(n *yaml.Node) string {
	switch n.Kind {
	case yaml.MappingNode:
		return "mapping"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.ScalarNode:
		if n.Tag == "!!null" {
			return "null"
		}
		return fmt.Sprintf("scalar %q", n.Value)
	}
	return "document"
}

func resolve(n *yaml.Node) *yaml.Node {
	if n.Kind == yaml.AliasNode && n.Alias != nil {
		return n.Alias
	}
	return n
}

// mapping checks that n is a mapping whose keys are all in allowed.
func mapping(n *yaml.Node, path, allowed []string) (map[string]*yaml.Node, error) {
	n = resolve(n)
	if n.Kind != yaml.MappingNode {
		return nil, errors.Shape(path, "mapping", kindName(n))
	}
	m := make(map[string]*yaml.Node, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		k := n.Content[i]
		if k.Kind != yaml.ScalarNode {
			return nil, errors.Shape(path, "scalar key", kindName(k))
		}
		key := k.Value
		p := append(slices.Clone(path), key)
		if !slices.Contains(allowed, key) {
			return nil, errors.FieldUnknown(errors.PhaseBuild, p, key)
		}
		if _, dup := m[key]; dup {
			return nil, errors.InvalidData(errors.PhaseBuild, p, fmt.Sprintf("duplicate field %q", key))
		}
		m[key] = n.Content[i+1]
	}
	return m, nil
}

func sequence(n *yaml.Node, path []string) ([]*yaml.Node, error) {
	n = resolve(n)
	if n.Kind == yaml.ScalarNode && n.Tag == "!!null" {
		return nil, nil
	}
	if n.Kind != yaml.SequenceNode {
		return nil, errors.Shape(path, "sequence", kindName(n))
	}
	return n.Content, nil
}

func scalar(n *yaml.Node, path []string) (string, error) {
	n = resolve(n)
	if n.Kind != yaml.ScalarNode {
		return "", errors.Shape(path, "scalar", kindName(n))
	}
	if n.Tag == "!!null" {
		return "", nil
	}
	return n.Value, nil
}

func uintValue(n *yaml.Node, path []string, bits int) (uint64, error) {
	s, err := scalar(n, path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(strings.ReplaceAll(s, "_", ""), 0, bits)
	if err == nil {
		return v, nil
	}
	if stderrors.Is(err, strconv.ErrRange) {
		return 0, errors.Overflow(errors.PhaseBuild, path, s, fmt.Sprintf("%d-bit field", bits))
	}
	return 0, errors.Shape(path, "unsigned integer", kindName(resolve(n)))
}

// fields reads typed values out of one mapping, keeping the first error.
// Absent keys leave the destination untouched.
type fields struct {
	m    map[string]*yaml.Node
	path []string
	err  error
}

func (fb *fields) node(key string) (*yaml.Node, []string, bool) {
	if fb.err != nil {
		return nil, nil, false
	}
	n, ok := fb.m[key]
	if !ok {
		return nil, nil, false
	}
	return n, append(slices.Clone(fb.path), key), true
}

func (fb *fields) uint(key string, bits int) (uint64, bool) {
	n, p, ok := fb.node(key)
	if !ok {
		return 0, false
	}
	v, err := uintValue(n, p, bits)
	if err != nil {
		fb.err = err
		return 0, false
	}
	return v, true
}

func (fb *fields) uint8(key string, dst *uint8) {
	if v, ok := fb.uint(key, 8); ok {
		*dst = uint8(v)
	}
}

func (fb *fields) uint16(key string, dst *uint16) {
	if v, ok := fb.uint(key, 16); ok {
		*dst = uint16(v)
	}
}

func (fb *fields) uint32(key string, dst *uint32) {
	if v, ok := fb.uint(key, 32); ok {
		*dst = uint32(v)
	}
}

func (fb *fields) uint64(key string, dst *uint64) {
	if v, ok := fb.uint(key, 64); ok {
		*dst = v
	}
}

func (fb *fields) optional(key string, dst **uint64) {
	if v, ok := fb.uint(key, 64); ok {
		*dst = object.Uint64(v)
	}
}

func (fb *fields) string(key string, dst *string) {
	n, p, ok := fb.node(key)
	if !ok {
		return
	}
	s, err := scalar(n, p)
	if err != nil {
		fb.err = err
		return
	}
	*dst = s
}

func (fb *fields) strings(key string, dst *[]string) {
	n, p, ok := fb.node(key)
	if !ok {
		return
	}
	items, err := sequence(n, p)
	if err != nil {
		fb.err = err
		return
	}
	for i, item := range items {
		s, err := scalar(item, indexPath(p, i))
		if err != nil {
			fb.err = err
			return
		}
		*dst = append(*dst, s)
	}
}

func (fb *fields) bytes(key string, dst *[]byte) {
	var s string
	fb.string(key, &s)
	if fb.err != nil || s == "" {
		return
	}
	b, err := hex.DecodeString(strings.Join(strings.Fields(s), ""))
	if err != nil {
		fb.err = errors.New(errors.PhaseBuild, errors.KindShape).
			Path(append(slices.Clone(fb.path), key)...).
			Detail("expected hex string").
			Cause(err).
			Build()
		return
	}
	*dst = b
}

type integer interface {
	~uint8 | ~uint16 | ~uint32 | ~int
}

// enumField reads a canonical name or an integer literal of the given width.
func enumField[T integer](fb *fields, key, what string, bits int, e *object.Enum[T], dst *T) {
	n, p, ok := fb.node(key)
	if !ok {
		return
	}
	s, err := scalar(n, p)
	if err != nil {
		fb.err = err
		return
	}
	if v, ok := e.Parse(s); ok {
		*dst = v
		return
	}
	if _, err := strconv.ParseUint(s, 0, 64); err == nil {
		fb.err = errors.Overflow(errors.PhaseBuild, p, s, fmt.Sprintf("%d-bit %s", bits, what))
	} else {
		fb.err = errors.InvalidEnum(errors.PhaseBuild, p, s, what)
	}
}

func flagsField[T ~uint32](fb *fields, key string, fs *object.FlagSet[T], dst *T) {
	var names []string
	fb.strings(key, &names)
	if fb.err != nil || len(names) == 0 {
		return
	}
	for i, name := range names {
		if _, err := fs.Parse([]string{name}); err != nil {
			fb.err = errors.InvalidEnum(errors.PhaseBuild, indexPath(append(slices.Clone(fb.path), key), i), name, "flag")
			return
		}
	}
	*dst, _ = fs.Parse(names)
}
