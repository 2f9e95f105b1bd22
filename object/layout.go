package object

import (
	"debug/elf"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/wippyai/elfkit/errors"
	bin "github.com/wippyai/elfkit/object/internal/binary"
)

// Layout is the resolved placement of a File: every implicit string table
// materialized, every link and span resolved to an index, and every offset,
// address and size assigned. Encode serializes a Layout verbatim.
type Layout struct {
	Header   FileHeader
	Encoding bin.Layout
	Sections []*PlacedSection // Sections[i] has section header index i+1
	Segments []*PlacedSegment
	PhOff    uint64
	ShOff    uint64
	ShStrNdx uint16
	Size     uint64 // total image size
}

// PlacedSection is a section with its final header values and contents.
type PlacedSection struct {
	Section  Section
	Index    int
	Implicit bool // appended by layout, absent from the model
	NameOff  uint32
	Address  uint64
	Offset   uint64
	Size     uint64
	Link     uint32
	Info     uint32
	EntSize  uint64
	Align    uint64
	Content  []byte // nil for SHT_NOBITS

	defaultAddress uint64
	defaultOffset  uint64
}

// Header returns the model header of the placed section.
func (s *PlacedSection) Header() *SectionHeader {
	return s.Section.Header()
}

// NoBits reports whether the section occupies no file space.
func (s *PlacedSection) NoBits() bool {
	_, ok := s.Section.(*NoBitsSection)
	return ok
}

// FileSize returns the number of bytes the section occupies in the file.
func (s *PlacedSection) FileSize() uint64 {
	if s.NoBits() {
		return 0
	}
	return s.Size
}

// PlacedSegment is a program header with its derived values and overrides
// applied. First and Last are section header indices, 0 when the segment
// spans no section.
type PlacedSegment struct {
	Header   *ProgramHeader
	First    int
	Last     int
	Offset   uint64
	VAddr    uint64
	PAddr    uint64
	FileSize uint64
	MemSize  uint64
	Align    uint64

	defaultOffset   uint64
	defaultPAddr    uint64
	defaultFileSize uint64
	defaultMemSize  uint64
	defaultAlign    uint64
}

// Spans returns the sections the segment covers, in order.
func (l *Layout) Spans(seg *PlacedSegment) []*PlacedSection {
	if seg.First == 0 {
		return nil
	}
	return l.Sections[seg.First-1 : seg.Last]
}

// Plan resolves and lays out f without serializing it. It fails with an
// unresolved_reference, overlap or overflow error when f cannot be encoded.
func Plan(f *File) (*Layout, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	enc, _ := f.layout()
	p := &planner{
		f:      f,
		out:    &Layout{Header: f.Header, Encoding: enc},
		byName: make(map[string]int),
	}
	steps := []func() error{
		p.materialize,
		p.resolveLinks,
		p.resolveSpans,
		p.buildContents,
		p.placeOffsets,
		p.placeAddresses,
		p.placeSegments,
		p.checkLimits,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}
	Logger().Debug("planned layout",
		zap.Int("sections", len(p.out.Sections)),
		zap.Int("segments", len(p.out.Segments)),
		zap.Uint64("size", p.out.Size))
	return p.out, nil
}

type planner struct {
	f      *File
	out    *Layout
	byName map[string]int // first section with each name
}

func (p *planner) add(s Section, implicit bool) {
	ps := &PlacedSection{
		Section:  s,
		Index:    len(p.out.Sections) + 1,
		Implicit: implicit,
	}
	p.out.Sections = append(p.out.Sections, ps)
	if _, ok := p.byName[s.Header().Name]; !ok {
		p.byName[s.Header().Name] = ps.Index
	}
}

// lookup resolves a symbolic reference: a section name first, then a
// decimal section index no greater than the last section's.
func (p *planner) lookup(ref string) (int, bool) {
	if i, ok := p.byName[ref]; ok {
		return i, true
	}
	n, err := strconv.ParseUint(ref, 10, 32)
	if err != nil || n > uint64(len(p.out.Sections)) {
		return 0, false
	}
	return int(n), true
}

func linkName(s Section) string {
	if l := s.Header().Link; l != "" {
		return l
	}
	return defaultLink(s)
}

// materialize appends the implicit string tables after the model's sections.
func (p *planner) materialize() error {
	for _, s := range p.f.Sections {
		p.add(s, false)
	}
	for _, s := range ImplicitSections(p.f.Sections) {
		p.add(s, true)
		Logger().Debug("implicit string table", zap.String("name", s.Name))
	}
	return nil
}

// ImplicitSections returns the string tables layout appends to sections:
// .dynstr and .strtab, in that order, when a section links to them by name
// and none defines them, then .shstrtab when absent. A file without sections
// gets none.
func ImplicitSections(sections []Section) []*StringTableSection {
	if len(sections) == 0 {
		return nil
	}
	defined := make(map[string]bool, len(sections))
	referenced := make(map[string]bool)
	for _, s := range sections {
		defined[s.Header().Name] = true
		referenced[linkName(s)] = true
	}
	var out []*StringTableSection
	for _, name := range []string{DynamicStringTable, SymbolStringTable} {
		if referenced[name] && !defined[name] {
			out = append(out, ImplicitStringTable(name))
		}
	}
	if !defined[SectionHeaderStringTable] {
		out = append(out, ImplicitStringTable(SectionHeaderStringTable))
	}
	return out
}

// ImplicitStringTable returns the string table layout appends for name when a
// model refers to it without defining it.
func ImplicitStringTable(name string) *StringTableSection {
	s := &StringTableSection{SectionHeader: SectionHeader{
		Name:         name,
		Type:         elf.SHT_STRTAB,
		AddressAlign: 1,
	}}
	if name == DynamicStringTable {
		s.Flags = elf.SHF_ALLOC
	}
	return s
}

func (p *planner) resolveLinks() error {
	for i, ps := range p.out.Sections {
		name := linkName(ps.Section)
		if name == "" {
			continue
		}
		idx, ok := p.lookup(name)
		if !ok {
			err := errors.Unresolved(errors.PhaseLayout, sectionPath(i, "Link"), "link target section", name)
			err.Section = fmt.Sprintf("%d %q", ps.Index, ps.Header().Name)
			return err
		}
		ps.Link = uint32(idx)
	}
	return nil
}

func (p *planner) resolveSpans() error {
	for i := range p.f.ProgramHeaders {
		ph := &p.f.ProgramHeaders[i]
		seg := &PlacedSegment{Header: ph}
		p.out.Segments = append(p.out.Segments, seg)
		if ph.FirstSec == "" {
			continue
		}
		first, ok := p.byName[ph.FirstSec]
		if !ok {
			return errors.Unresolved(errors.PhaseLayout, segmentPath(i, "FirstSec"), "section", ph.FirstSec)
		}
		last := first
		if ph.LastSec != "" {
			if last, ok = p.byName[ph.LastSec]; !ok {
				return errors.Unresolved(errors.PhaseLayout, segmentPath(i, "LastSec"), "section", ph.LastSec)
			}
		}
		if last < first {
			return errors.InvalidData(errors.PhaseLayout, segmentPath(i, "LastSec"),
				fmt.Sprintf("section %q precedes first section %q", ph.LastSec, ph.FirstSec))
		}
		seg.First, seg.Last = first, last
	}
	return nil
}

func (p *planner) buildContents() error {
	enc := p.out.Encoding
	tables := make(map[int]*stringTable)
	for _, ps := range p.out.Sections {
		if st, ok := ps.Section.(*StringTableSection); ok {
			tables[ps.Index] = newStringTable(st.Content, st.offsets)
		}
	}

	if idx, ok := p.byName[SectionHeaderStringTable]; ok {
		shstr, ok := tables[idx]
		if !ok {
			return errors.InvalidData(errors.PhaseLayout, sectionPath(idx-1, "Type"),
				"section header string table must be SHT_STRTAB")
		}
		p.out.ShStrNdx = uint16(idx)
		for _, ps := range p.out.Sections {
			ps.NameOff = shstr.add(ps.Header().Name)
		}
	}

	for i, ps := range p.out.Sections {
		h := ps.Header()
		ps.Align = h.AddressAlign
		ps.Info = h.Info
		ps.EntSize = h.EntSize
		if ps.EntSize == 0 {
			ps.EntSize = defaultEntSize(ps.Section, enc.Wide)
		}

		var err error
		switch s := ps.Section.(type) {
		case *RawSection:
			ps.Content = s.Content
		case *NoBitsSection:
		case *StringTableSection:
			// filled once every table user has added its strings
		case *SymbolTableSection:
			ps.Content, err = p.encodeSymbols(i, ps, s, tables[int(ps.Link)])
			if ps.Info == 0 {
				ps.Info = 1
				for _, sym := range s.Symbols {
					if sym.Binding == elf.STB_LOCAL {
						ps.Info++
					}
				}
			}
		case *VersionSymbolSection:
			w := bin.NewWriter(enc)
			for _, v := range s.Versions {
				w.WriteU16(v)
			}
			ps.Content = w.Bytes()
		case *VersionDefinitionSection:
			ps.Content, err = p.encodeVersionDefinitions(i, ps, s, tables[int(ps.Link)])
			if ps.Info == 0 {
				ps.Info = uint32(len(s.Entries))
			}
		}
		if err != nil {
			return err
		}
	}

	for _, ps := range p.out.Sections {
		if t, ok := tables[ps.Index]; ok {
			ps.Content = t.bytes()
		}
		ps.Size = sectionSize(ps.Section, ps.Content)
	}
	return nil
}

func (p *planner) stringTableFor(i int, ps *PlacedSection, t *stringTable) (*stringTable, error) {
	if t != nil {
		return t, nil
	}
	return nil, errors.New(errors.PhaseLayout, errors.KindInvalidData).
		Path(sectionPath(i, "Link")...).
		Section(ps.Index, ps.Header().Name).
		Detail("link %d is not a string table", ps.Link).
		Build()
}

func (p *planner) encodeSymbols(i int, ps *PlacedSection, s *SymbolTableSection, t *stringTable) ([]byte, error) {
	enc := p.out.Encoding
	w := bin.NewWriter(enc)
	if enc.Wide {
		w.PadTo(sym64Size)
	} else {
		w.PadTo(sym32Size)
	}
	for j, sym := range s.Symbols {
		var name uint32
		if sym.Name != "" {
			st, err := p.stringTableFor(i, ps, t)
			if err != nil {
				return nil, err
			}
			name = st.add(sym.Name)
		}
		shndx := uint16(sym.Index)
		if sym.Section != "" {
			idx, ok := p.byName[sym.Section]
			if !ok {
				return nil, errors.Unresolved(errors.PhaseLayout,
					sectionPath(i, fmt.Sprintf("Symbols[%d]", j), "Section"), "section", sym.Section)
			}
			shndx = uint16(idx)
		}
		if !enc.FitsWord(sym.Value) {
			return nil, errors.Overflow(errors.PhaseLayout,
				sectionPath(i, fmt.Sprintf("Symbols[%d]", j), "Value"), fmt.Sprintf("0x%x", sym.Value), "ELF32 word")
		}
		if !enc.FitsWord(sym.Size) {
			return nil, errors.Overflow(errors.PhaseLayout,
				sectionPath(i, fmt.Sprintf("Symbols[%d]", j), "Size"), fmt.Sprintf("0x%x", sym.Size), "ELF32 word")
		}
		info := byte(sym.Binding)<<4 | byte(sym.Type)&0xf
		w.WriteU32(name)
		if enc.Wide {
			w.Byte(info)
			w.Byte(sym.Other)
			w.WriteU16(shndx)
			w.WriteU64(sym.Value)
			w.WriteU64(sym.Size)
		} else {
			w.WriteU32(uint32(sym.Value))
			w.WriteU32(uint32(sym.Size))
			w.Byte(info)
			w.Byte(sym.Other)
			w.WriteU16(shndx)
		}
	}
	return w.Bytes(), nil
}

// encodeVersionDefinitions chains the entries: each Elf_Verdef is followed by
// its Elf_Verdaux records, and the last entry and last name carry a zero next.
func (p *planner) encodeVersionDefinitions(i int, ps *PlacedSection, s *VersionDefinitionSection, t *stringTable) ([]byte, error) {
	w := bin.NewWriter(p.out.Encoding)
	for j, e := range s.Entries {
		if len(e.Names) > 0xffff {
			return nil, errors.Overflow(errors.PhaseLayout,
				sectionPath(i, fmt.Sprintf("Entries[%d]", j), "Names"), len(e.Names), "vd_cnt")
		}
		var next uint32
		if j < len(s.Entries)-1 {
			next = uint32(verdefSize + verdauxSize*len(e.Names))
		}
		w.WriteU16(e.Version)
		w.WriteU16(e.Flags)
		w.WriteU16(e.VersionNdx)
		w.WriteU16(uint16(len(e.Names)))
		w.WriteU32(e.Hash)
		w.WriteU32(verdefSize)
		w.WriteU32(next)
		for k, name := range e.Names {
			st, err := p.stringTableFor(i, ps, t)
			if err != nil {
				return nil, err
			}
			var auxNext uint32
			if k < len(e.Names)-1 {
				auxNext = verdauxSize
			}
			w.WriteU32(st.add(name))
			w.WriteU32(auxNext)
		}
	}
	return w.Bytes(), nil
}

// fileRange is a byte range of the file image that holds data.
type fileRange struct {
	start, end uint64
	what       string
}

// placeOffsets assigns file offsets. The ELF header and program headers come
// first. A section without an explicit Offset is aligned to its AddressAlign
// after the furthest byte placed so far. An explicit Offset may point below
// earlier sections as long as the contents do not intersect anything already
// placed. NOBITS sections take an offset but occupy no file space.
func (p *planner) placeOffsets() error {
	wide := p.out.Encoding.Wide
	end := ehdrSize(wide)
	if n := len(p.f.ProgramHeaders); n > 0 {
		p.out.PhOff = end
		end += uint64(n) * phdrSize(wide)
	}
	placed := []fileRange{{0, end, "file headers"}}
	for i, ps := range p.out.Sections {
		h := ps.Header()
		ps.defaultOffset = alignUp(end, ps.Align)
		ps.Offset = ps.defaultOffset
		field := "AddressAlign"
		if h.Offset != nil {
			ps.Offset = *h.Offset
			field = "Offset"
		}
		if ps.NoBits() {
			continue
		}
		size := ps.FileSize()
		wrapped := h.Offset == nil && ps.Offset < end
		if wrapped || size > MaxImageSize || ps.Offset > MaxImageSize-size {
			return errors.New(errors.PhaseLayout, errors.KindOverflow).
				Path(sectionPath(i, field)...).
				Section(ps.Index, h.Name).
				Value(fmt.Sprintf("0x%x", ps.Offset)).
				Detail("0x%x bytes at this offset exceed the 0x%x byte image limit", size, uint64(MaxImageSize)).
				Build()
		}
		r := fileRange{ps.Offset, ps.Offset + size, fmt.Sprintf("section %d %q", ps.Index, h.Name)}
		end = max(end, r.end)
		if size == 0 {
			continue
		}
		for _, q := range placed {
			if r.start < q.end && q.start < r.end {
				return errors.New(errors.PhaseLayout, errors.KindOverlap).
					Path(sectionPath(i, "Offset")...).
					Section(ps.Index, h.Name).
					Offset(int64(r.start)).
					Detail("section contents [0x%x, 0x%x) overlap %s at [0x%x, 0x%x)", r.start, r.end, q.what, q.start, q.end).
					Build()
			}
		}
		placed = append(placed, r)
	}
	if len(p.out.Sections) > 0 {
		p.out.ShOff = alignUp(end, uint64(p.out.Encoding.WordSize()))
		end = p.out.ShOff + uint64(len(p.out.Sections)+1)*shdrSize(wide)
	}
	p.out.Size = end
	return nil
}

// placeAddresses assigns virtual addresses: an explicit Address wins, then
// the VAddr of a segment the section starts, then for allocated sections of
// linked files the location counter aligned to AddressAlign.
func (p *planner) placeAddresses() error {
	starts := make(map[int]uint64)
	for _, seg := range p.out.Segments {
		if seg.First == 0 || seg.Header.VAddr == nil {
			continue
		}
		if _, ok := starts[seg.First]; !ok {
			starts[seg.First] = *seg.Header.VAddr
		}
	}
	relocatable := p.f.Header.Type == elf.ET_REL
	var lc uint64
	for _, ps := range p.out.Sections {
		h := ps.Header()
		alloc := h.Flags&elf.SHF_ALLOC != 0
		if v, ok := starts[ps.Index]; ok {
			ps.defaultAddress = v
		} else if alloc && !relocatable {
			ps.defaultAddress = alignUp(lc, ps.Align)
		}
		ps.Address = ps.defaultAddress
		if h.Address != nil {
			ps.Address = *h.Address
		}
		if alloc || ps.Address != 0 {
			lc = ps.Address + ps.Size
		}
	}
	return nil
}

func (p *planner) placeSegments() error {
	for i, seg := range p.out.Segments {
		ph := seg.Header
		seg.defaultAlign = 1
		if seg.First == 0 {
			if ph.VAddr != nil {
				seg.VAddr = *ph.VAddr
			}
		} else {
			first := p.out.Sections[seg.First-1]
			seg.VAddr = first.Address
			if ph.VAddr != nil {
				seg.VAddr = *ph.VAddr
			}
			if seg.VAddr > first.Address {
				return errors.InvalidData(errors.PhaseLayout, segmentPath(i, "VAddr"),
					fmt.Sprintf("segment address 0x%x is above first section %q at 0x%x",
						seg.VAddr, first.Header().Name, first.Address))
			}
			delta := first.Address - seg.VAddr
			if delta > first.Offset {
				return errors.InvalidData(errors.PhaseLayout, segmentPath(i, "VAddr"),
					fmt.Sprintf("segment would start 0x%x bytes before the file", delta-first.Offset))
			}
			seg.defaultOffset = first.Offset - delta
			fileEnd, memEnd := seg.defaultOffset, seg.VAddr
			for _, s := range p.out.Spans(seg) {
				if s.FileSize() > 0 {
					fileEnd = max(fileEnd, s.Offset+s.FileSize())
				}
				memEnd = max(memEnd, s.Address+s.Size)
				seg.defaultAlign = max(seg.defaultAlign, s.Align)
			}
			seg.defaultFileSize = fileEnd - seg.defaultOffset
			seg.defaultMemSize = max(memEnd-seg.VAddr, seg.defaultFileSize)
		}
		seg.defaultPAddr = seg.VAddr

		seg.Offset = override(ph.Offset, seg.defaultOffset)
		seg.PAddr = override(ph.PAddr, seg.defaultPAddr)
		seg.FileSize = override(ph.FileSize, seg.defaultFileSize)
		seg.MemSize = override(ph.MemSize, seg.defaultMemSize)
		seg.Align = seg.defaultAlign
		if ph.Align != 0 {
			seg.Align = ph.Align
		}
	}
	return nil
}

func override(v *uint64, def uint64) uint64 {
	if v != nil {
		return *v
	}
	return def
}

func (p *planner) checkLimits() error {
	if n := len(p.out.Sections) + 1; n >= shnLoReserve {
		return errors.Overflow(errors.PhaseLayout, []string{"Sections"}, n, "e_shnum")
	}
	if n := len(p.out.Segments); n >= pnXNum {
		return errors.Overflow(errors.PhaseLayout, []string{"ProgramHeaders"}, n, "e_phnum")
	}
	enc := p.out.Encoding
	if enc.Wide {
		return nil
	}
	check := func(path []string, v uint64) error {
		if enc.FitsWord(v) {
			return nil
		}
		return errors.Overflow(errors.PhaseLayout, path, fmt.Sprintf("0x%x", v), "ELF32 word")
	}
	if err := check([]string{"FileHeader", "Entry"}, p.f.Header.Entry); err != nil {
		return err
	}
	for i, s := range p.out.Sections {
		for _, field := range []struct {
			name string
			v    uint64
		}{
			{"Address", s.Address},
			{"Offset", s.Offset},
			{"Size", s.Size},
			{"AddressAlign", s.Align},
			{"EntSize", s.EntSize},
		} {
			if err := check(sectionPath(i, field.name), field.v); err != nil {
				return err
			}
		}
	}
	for i, seg := range p.out.Segments {
		for _, field := range []struct {
			name string
			v    uint64
		}{
			{"VAddr", seg.VAddr},
			{"PAddr", seg.PAddr},
			{"Offset", seg.Offset},
			{"FileSize", seg.FileSize},
			{"MemSize", seg.MemSize},
			{"Align", seg.Align},
		} {
			if err := check(segmentPath(i, field.name), field.v); err != nil {
				return err
			}
		}
	}
	return check([]string{"SectionHeaderOffset"}, p.out.ShOff)
}
