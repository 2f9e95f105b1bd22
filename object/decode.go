package object

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/wippyai/elfkit/errors"
	bin "github.com/wippyai/elfkit/object/internal/binary"
)

type sectionHeader struct {
	name    uint32
	typ     elf.SectionType
	flags   uint64
	addr    uint64
	off     uint64
	size    uint64
	link    uint32
	info    uint32
	align   uint64
	entsize uint64
}

type decoder struct {
	data     []byte
	enc      bin.Layout
	f        *File
	phoff    uint64
	phnum    int
	shoff    uint64
	shnum    int
	shstrndx int
	shdrs    []sectionHeader // index 0 is the null section
	names    []string
	offsets  map[int]map[string]uint32 // string table index -> string -> first offset
}

// referenced records that a string of table was read at off.
func (d *decoder) referenced(table int, s string, off uint32) {
	if d.offsets == nil {
		d.offsets = make(map[int]map[string]uint32)
	}
	m := d.offsets[table]
	if m == nil {
		m = make(map[string]uint32)
		d.offsets[table] = m
	}
	if _, ok := m[s]; !ok {
		m[s] = off
	}
}

// sticky reads fixed-width fields and keeps the first error.
type sticky struct {
	r   *bin.Reader
	err error
}

func (s *sticky) u16() uint16 {
	v, err := s.r.ReadU16()
	if s.err == nil {
		s.err = err
	}
	return v
}

func (s *sticky) u32() uint32 {
	v, err := s.r.ReadU32()
	if s.err == nil {
		s.err = err
	}
	return v
}

func (s *sticky) word() uint64 {
	v, err := s.r.ReadWord()
	if s.err == nil {
		s.err = err
	}
	return v
}

func (s *sticky) u8() byte {
	v, err := s.r.ReadByte()
	if s.err == nil {
		s.err = err
	}
	return v
}

// Decode parses an ELF binary into a File. Fields that layout would derive
// on its own are left implicit, so encoding the result reproduces the
// input's structure. No File is returned when the input is malformed.
func Decode(data []byte) (*File, error) {
	d := &decoder{data: data, f: &File{}}
	steps := []func() error{
		d.readFileHeader,
		d.readSectionHeaders,
		d.readSectionNames,
		d.readSections,
		d.readProgramHeaders,
		d.normalize,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}
	return d.f, nil
}

func inBounds(off, size uint64, length int) bool {
	n := uint64(length)
	return off <= n && size <= n-off
}

func (d *decoder) readFileHeader() error {
	if len(d.data) < identSize {
		return errors.MalformedHeader(0, "input of %d bytes is too short for an ELF identification", len(d.data))
	}
	if !bytes.Equal(d.data[:4], Magic[:]) {
		return errors.MalformedHeader(0, "bad magic % x", d.data[:4])
	}

	h := &d.f.Header
	h.Class = elf.Class(d.data[identClass])
	h.Data = elf.Data(d.data[identData])
	switch h.Class {
	case elf.ELFCLASS32:
	case elf.ELFCLASS64:
		d.enc.Wide = true
	default:
		return errors.UnsupportedFormat(errors.PhaseDecode, "class", h.Class)
	}
	switch h.Data {
	case elf.ELFDATA2LSB:
		d.enc.Order = binary.LittleEndian
	case elf.ELFDATA2MSB:
		d.enc.Order = binary.BigEndian
	default:
		return errors.UnsupportedFormat(errors.PhaseDecode, "data encoding", h.Data)
	}
	if v := elf.Version(d.data[identVersion]); v != elf.EV_CURRENT {
		return errors.UnsupportedFormat(errors.PhaseDecode, "identification version", uint8(v))
	}
	h.OSABI = elf.OSABI(d.data[identOSABI])
	h.ABIVersion = d.data[identABIVersion]

	wide := d.enc.Wide
	if !inBounds(0, ehdrSize(wide), len(d.data)) {
		return errors.OutOfBounds(errors.PhaseDecode, 0, int64(ehdrSize(wide)), int64(len(d.data)))
	}
	r := bin.NewReader(d.data, d.enc)
	if err := r.Seek(identSize); err != nil {
		return errors.Wrap(errors.PhaseDecode, errors.KindMalformedHeader, err, "file header")
	}
	s := &sticky{r: r}
	h.Type = elf.Type(s.u16())
	h.Machine = elf.Machine(s.u16())
	version := s.u32()
	h.Entry = s.word()
	d.phoff = s.word()
	d.shoff = s.word()
	h.Flags = s.u32()
	ehsizeOff := r.Position()
	ehsize := s.u16()
	phentsizeOff := r.Position()
	phentsize := s.u16()
	d.phnum = int(s.u16())
	shentsizeOff := r.Position()
	shentsize := s.u16()
	d.shnum = int(s.u16())
	shstrndxOff := r.Position()
	d.shstrndx = int(s.u16())
	if s.err != nil {
		return errors.Wrap(errors.PhaseDecode, errors.KindMalformedHeader, s.err, "file header")
	}

	switch {
	case version != uint32(elf.EV_CURRENT):
		return errors.UnsupportedFormat(errors.PhaseDecode, "version", version)
	case uint64(ehsize) != ehdrSize(wide):
		return errors.MalformedHeader(int64(ehsizeOff), "e_ehsize %d, want %d", ehsize, ehdrSize(wide))
	case d.phnum > 0 && uint64(phentsize) != phdrSize(wide):
		return errors.MalformedHeader(int64(phentsizeOff), "e_phentsize %d, want %d", phentsize, phdrSize(wide))
	case d.shnum > 0 && uint64(shentsize) != shdrSize(wide):
		return errors.MalformedHeader(int64(shentsizeOff), "e_shentsize %d, want %d", shentsize, shdrSize(wide))
	case d.phnum == pnXNum:
		return errors.UnsupportedFormat(errors.PhaseDecode, "extended program header count", d.phnum)
	case d.shnum == 0 && d.shoff != 0:
		return errors.UnsupportedFormat(errors.PhaseDecode, "extended section numbering at offset", fmt.Sprintf("0x%x", d.shoff))
	case d.shstrndx == shnXIndex:
		return errors.UnsupportedFormat(errors.PhaseDecode, "extended section name index", d.shstrndx)
	case d.shnum > 0 && d.shstrndx >= d.shnum:
		return errors.MalformedHeader(int64(shstrndxOff), "e_shstrndx %d outside %d sections", d.shstrndx, d.shnum)
	}
	Logger().Debug("decoded file header",
		zap.String("class", Classes.Name(h.Class)),
		zap.String("data", DataEncodings.Name(h.Data)),
		zap.String("type", FileTypes.Name(h.Type)),
		zap.Int("sections", d.shnum),
		zap.Int("segments", d.phnum))
	return nil
}

func (d *decoder) readSectionHeaders() error {
	if d.shnum == 0 {
		return nil
	}
	size := uint64(d.shnum) * shdrSize(d.enc.Wide)
	if !inBounds(d.shoff, size, len(d.data)) {
		return errors.OutOfBounds(errors.PhaseDecode, int64(d.shoff), int64(size), int64(len(d.data)))
	}
	r := bin.NewReader(d.data, d.enc)
	if err := r.Seek(int(d.shoff)); err != nil {
		return errors.Wrap(errors.PhaseDecode, errors.KindOutOfBounds, err, "section header table")
	}
	s := &sticky{r: r}
	d.shdrs = make([]sectionHeader, d.shnum)
	for i := range d.shdrs {
		sh := &d.shdrs[i]
		sh.name = s.u32()
		sh.typ = elf.SectionType(s.u32())
		sh.flags = s.word()
		sh.addr = s.word()
		sh.off = s.word()
		sh.size = s.word()
		sh.link = s.u32()
		sh.info = s.u32()
		sh.align = s.word()
		sh.entsize = s.word()
		if s.err != nil {
			return errors.Wrap(errors.PhaseDecode, errors.KindMalformedHeader, s.err, "section header table")
		}
		if i > 0 && sh.typ != elf.SHT_NOBITS && !inBounds(sh.off, sh.size, len(d.data)) {
			e := errors.OutOfBounds(errors.PhaseDecode, int64(sh.off), int64(sh.size), int64(len(d.data)))
			e.Section = strconv.Itoa(i)
			return e
		}
	}
	return nil
}

func (d *decoder) headerOffset(i int) int64 {
	return int64(d.shoff + uint64(i)*shdrSize(d.enc.Wide))
}

func (d *decoder) content(i int) []byte {
	sh := d.shdrs[i]
	if sh.typ == elf.SHT_NOBITS {
		return nil
	}
	return d.data[sh.off : sh.off+sh.size]
}

func (d *decoder) readSectionNames() error {
	d.names = make([]string, d.shnum)
	if d.shnum == 0 || d.shstrndx == 0 {
		return nil
	}
	if d.shdrs[d.shstrndx].typ == elf.SHT_NOBITS {
		return errors.MalformedHeader(d.headerOffset(d.shstrndx), "section name table %d has no contents", d.shstrndx)
	}
	table := bin.NewReader(d.content(d.shstrndx), d.enc)
	for i := 1; i < d.shnum; i++ {
		name, err := table.ReadString(int(d.shdrs[i].name))
		if err != nil {
			e := errors.New(errors.PhaseDecode, errors.KindMalformedHeader).
				Section(i, "").
				Offset(d.headerOffset(i)).
				Detail("section name offset %d", d.shdrs[i].name).
				Cause(err).
				Build()
			return e
		}
		d.names[i] = name
		d.referenced(d.shstrndx, name, d.shdrs[i].name)
	}
	return nil
}

// sectionRef renders a section index symbolically: the section's name when
// the name resolves back to it, the decimal index otherwise.
func (d *decoder) sectionRef(idx int) string {
	if idx > 0 && idx < d.shnum {
		name := d.names[idx]
		for j := 1; j < d.shnum; j++ {
			if d.names[j] == name {
				if j == idx && name != "" && strconv.Itoa(idx) != name {
					return name
				}
				break
			}
		}
	}
	return strconv.Itoa(idx)
}

func stringTableUser(t elf.SectionType) bool {
	return t == elf.SHT_SYMTAB || t == elf.SHT_DYNSYM || t == elf.SHT_GNU_VERDEF
}

func (d *decoder) readSections() error {
	strtabs := make(map[int]bool)
	// A name table under another name stays raw; layout emits a fresh
	// .shstrtab for it.
	if d.shstrndx != 0 && d.names[d.shstrndx] == SectionHeaderStringTable {
		strtabs[d.shstrndx] = true
	}
	for i := 1; i < d.shnum; i++ {
		sh := d.shdrs[i]
		if !stringTableUser(sh.typ) {
			continue
		}
		link := int(sh.link)
		if link == 0 || link >= d.shnum || d.shdrs[link].typ != elf.SHT_STRTAB {
			return errors.New(errors.PhaseDecode, errors.KindMalformedHeader).
				Section(i, d.names[i]).
				Offset(d.headerOffset(i)).
				Detail("%s links to section %d, which is not a string table", SectionTypes.Name(sh.typ), link).
				Build()
		}
		strtabs[link] = true
	}

	for i := 1; i < d.shnum; i++ {
		sh := d.shdrs[i]
		if int(sh.link) >= d.shnum {
			return errors.New(errors.PhaseDecode, errors.KindMalformedHeader).
				Section(i, d.names[i]).
				Offset(d.headerOffset(i)).
				Detail("sh_link %d is past the last section %d", sh.link, d.shnum-1).
				Build()
		}
		hdr := SectionHeader{
			Name:         d.names[i],
			Type:         sh.typ,
			Flags:        elf.SectionFlag(sh.flags),
			Address:      Uint64(sh.addr),
			Offset:       Uint64(sh.off),
			AddressAlign: sh.align,
			EntSize:      sh.entsize,
			Info:         sh.info,
		}
		var (
			s   Section
			err error
		)
		switch {
		case sh.typ == elf.SHT_NOBITS:
			s = &NoBitsSection{SectionHeader: hdr, Size: sh.size}
		case sh.typ == elf.SHT_STRTAB && strtabs[i]:
			s = &StringTableSection{SectionHeader: hdr, Content: bytes.Clone(d.content(i))}
		case sh.typ == elf.SHT_SYMTAB || sh.typ == elf.SHT_DYNSYM:
			s, err = d.readSymbols(i, hdr)
		case sh.typ == elf.SHT_GNU_VERSYM:
			s, err = d.readVersionSymbols(i, hdr)
		case sh.typ == elf.SHT_GNU_VERDEF:
			s, err = d.readVersionDefinitions(i, hdr)
		default:
			s = &RawSection{SectionHeader: hdr, Content: bytes.Clone(d.content(i))}
		}
		if err != nil {
			return err
		}

		h := s.Header()
		def := defaultLink(s)
		switch {
		case sh.link == 0 && def == "":
		case sh.link == 0:
			h.Link = "0"
		default:
			h.Link = d.sectionRef(int(sh.link))
			if h.Link == def {
				h.Link = ""
			}
		}
		d.f.Sections = append(d.f.Sections, s)
		Logger().Debug("decoded section",
			zap.Int("index", i),
			zap.String("name", h.Name),
			zap.String("type", SectionTypes.Name(h.Type)),
			zap.String("kind", fmt.Sprintf("%T", s)))
	}
	for i, s := range d.f.Sections {
		if st, ok := s.(*StringTableSection); ok {
			st.offsets = d.offsets[i+1]
		}
	}
	return nil
}

func (d *decoder) readSymbols(i int, hdr SectionHeader) (Section, error) {
	entSize := uint64(sym32Size)
	if d.enc.Wide {
		entSize = sym64Size
	}
	sh := d.shdrs[i]
	if sh.size%entSize != 0 {
		return nil, errors.MalformedHeader(d.headerOffset(i),
			"symbol table %q size %d is not a multiple of %d", hdr.Name, sh.size, entSize)
	}
	names := bin.NewReader(d.content(int(sh.link)), d.enc)
	r := bin.NewReader(d.content(i), d.enc)
	s := &sticky{r: r}
	out := &SymbolTableSection{SectionHeader: hdr}
	for j := uint64(1); j < sh.size/entSize; j++ {
		pos := j * entSize
		if err := r.Seek(int(pos)); err != nil {
			return nil, errors.Wrap(errors.PhaseDecode, errors.KindOutOfBounds, err, "symbol table")
		}
		var (
			nameOff     uint32
			value, size uint64
			info, other byte
			shndx       uint16
		)
		nameOff = s.u32()
		if d.enc.Wide {
			info, other, shndx = s.u8(), s.u8(), s.u16()
			value, size = s.word(), s.word()
		} else {
			value, size = s.word(), s.word()
			info, other, shndx = s.u8(), s.u8(), s.u16()
		}
		if s.err != nil {
			return nil, errors.Wrap(errors.PhaseDecode, errors.KindMalformedHeader, s.err, "symbol table")
		}
		name, err := names.ReadString(int(nameOff))
		if err != nil {
			return nil, errors.New(errors.PhaseDecode, errors.KindMalformedHeader).
				Section(i, hdr.Name).
				Offset(int64(sh.off+pos)).
				Detail("symbol %d name offset %d", j, nameOff).
				Cause(err).
				Build()
		}
		d.referenced(int(sh.link), name, nameOff)
		sym := Symbol{
			Name:    name,
			Type:    elf.SymType(info & 0xf),
			Binding: elf.SymBind(info >> 4),
			Other:   other,
			Value:   value,
			Size:    size,
		}
		ref := ""
		if shndx > 0 && int(shndx) < d.shnum && shndx < shnLoReserve {
			ref = d.sectionRef(int(shndx))
			if ref == strconv.Itoa(int(shndx)) {
				ref = ""
			}
		}
		if ref != "" {
			sym.Section = ref
		} else {
			sym.Index = elf.SectionIndex(shndx)
		}
		out.Symbols = append(out.Symbols, sym)
	}
	return out, nil
}

func (d *decoder) readVersionSymbols(i int, hdr SectionHeader) (Section, error) {
	sh := d.shdrs[i]
	if sh.size%versymSize != 0 {
		return nil, errors.MalformedHeader(d.headerOffset(i),
			"version symbol table %q size %d is not a multiple of %d", hdr.Name, sh.size, versymSize)
	}
	r := bin.NewReader(d.content(i), d.enc)
	out := &VersionSymbolSection{SectionHeader: hdr}
	for r.Len() > 0 {
		v, err := r.ReadU16()
		if err != nil {
			return nil, errors.Wrap(errors.PhaseDecode, errors.KindMalformedHeader, err, "version symbol table")
		}
		out.Versions = append(out.Versions, v)
	}
	return out, nil
}

// readVersionDefinitions walks sh_info Elf_Verdef entries through their
// vd_next chain, and each entry's names through vd_aux and vda_next.
func (d *decoder) readVersionDefinitions(i int, hdr SectionHeader) (Section, error) {
	sh := d.shdrs[i]
	data := d.content(i)
	names := bin.NewReader(d.content(int(sh.link)), d.enc)
	r := bin.NewReader(data, d.enc)
	s := &sticky{r: r}
	out := &VersionDefinitionSection{SectionHeader: hdr}

	bounds := func(off, size uint64) error {
		if inBounds(off, size, len(data)) {
			return nil
		}
		e := errors.OutOfBounds(errors.PhaseDecode, int64(sh.off+off), int64(size), int64(sh.off)+int64(len(data)))
		e.Section = fmt.Sprintf("%d %q", i, hdr.Name)
		return e
	}

	var off uint64
	for k := uint32(0); k < sh.info; k++ {
		if err := bounds(off, verdefSize); err != nil {
			return nil, err
		}
		_ = r.Seek(int(off))
		version := s.u16()
		if version != VersionDefinitionRevision {
			return nil, errors.InvalidRevision(i, hdr.Name, int64(sh.off+off), version)
		}
		e := VersionDefinition{Version: version}
		e.Flags = s.u16()
		e.VersionNdx = s.u16()
		cnt := s.u16()
		e.Hash = s.u32()
		aux := s.u32()
		next := s.u32()
		if s.err != nil {
			return nil, errors.Wrap(errors.PhaseDecode, errors.KindMalformedHeader, s.err, "version definition")
		}

		auxOff := off + uint64(aux)
		for j := uint16(0); j < cnt; j++ {
			if err := bounds(auxOff, verdauxSize); err != nil {
				return nil, err
			}
			_ = r.Seek(int(auxOff))
			nameOff := s.u32()
			auxNext := s.u32()
			if s.err != nil {
				return nil, errors.Wrap(errors.PhaseDecode, errors.KindMalformedHeader, s.err, "version definition")
			}
			name, err := names.ReadString(int(nameOff))
			if err != nil {
				return nil, errors.New(errors.PhaseDecode, errors.KindMalformedHeader).
					Section(i, hdr.Name).
					Offset(int64(sh.off+auxOff)).
					Detail("version name offset %d", nameOff).
					Cause(err).
					Build()
			}
			d.referenced(int(sh.link), name, nameOff)
			e.Names = append(e.Names, name)
			auxOff += uint64(auxNext)
		}
		out.Entries = append(out.Entries, e)

		if next == 0 && k+1 < sh.info {
			return nil, errors.MalformedHeader(int64(sh.off+off),
				"version definition chain ends after %d of %d entries", k+1, sh.info)
		}
		off += uint64(next)
	}
	return out, nil
}

func (d *decoder) readProgramHeaders() error {
	if d.phnum == 0 {
		return nil
	}
	size := uint64(d.phnum) * phdrSize(d.enc.Wide)
	if !inBounds(d.phoff, size, len(d.data)) {
		return errors.OutOfBounds(errors.PhaseDecode, int64(d.phoff), int64(size), int64(len(d.data)))
	}
	r := bin.NewReader(d.data, d.enc)
	if err := r.Seek(int(d.phoff)); err != nil {
		return errors.Wrap(errors.PhaseDecode, errors.KindOutOfBounds, err, "program header table")
	}
	s := &sticky{r: r}
	for n := 0; n < d.phnum; n++ {
		var (
			ph    ProgramHeader
			flags uint32
		)
		ph.Type = elf.ProgType(s.u32())
		if d.enc.Wide {
			flags = s.u32()
		}
		ph.Offset = Uint64(s.word())
		ph.VAddr = Uint64(s.word())
		ph.PAddr = Uint64(s.word())
		ph.FileSize = Uint64(s.word())
		ph.MemSize = Uint64(s.word())
		if !d.enc.Wide {
			flags = s.u32()
		}
		ph.Align = s.word()
		if s.err != nil {
			return errors.Wrap(errors.PhaseDecode, errors.KindMalformedHeader, s.err, "program header table")
		}
		ph.Flags = elf.ProgFlag(flags)
		d.f.ProgramHeaders = append(d.f.ProgramHeaders, ph)
	}
	return nil
}

// inferSpans assigns FirstSec and LastSec from the allocated sections each
// segment contains: by file range for sections with contents, by memory
// range for NOBITS and empty sections.
func (d *decoder) inferSpans() {
	for k := range d.f.ProgramHeaders {
		ph := &d.f.ProgramHeaders[k]
		first, last := 0, 0
		for i := 1; i < d.shnum; i++ {
			sh := d.shdrs[i]
			if sh.flags&uint64(elf.SHF_ALLOC) == 0 || sh.addr < *ph.VAddr {
				continue
			}
			var inside bool
			if sh.typ != elf.SHT_NOBITS && sh.size > 0 {
				inside = sh.off >= *ph.Offset && sh.off+sh.size <= *ph.Offset+*ph.FileSize
			} else {
				inside = sh.addr+sh.size <= *ph.VAddr+*ph.MemSize
			}
			if !inside {
				continue
			}
			if first == 0 {
				first = i
			}
			last = i
		}
		if first == 0 {
			continue
		}
		ph.FirstSec = d.sectionRef(first)
		if last != first {
			ph.LastSec = d.sectionRef(last)
		}
	}
}

// normalize turns the explicit decoded model into its canonical form: every
// value layout would derive by itself is cleared.
func (d *decoder) normalize() error {
	f := d.f
	d.inferSpans()
	l, err := Plan(f)
	if err != nil {
		Logger().Debug("segment span inference rejected", zap.Error(err))
		for k := range f.ProgramHeaders {
			f.ProgramHeaders[k].FirstSec = ""
			f.ProgramHeaders[k].LastSec = ""
		}
		if l, err = Plan(f); err != nil {
			return errors.Wrap(errors.PhaseDecode, errors.KindMalformedHeader, err, "decoded file cannot be laid out")
		}
	}

	d.dropSeeds()

	for i, s := range f.Sections {
		ps := l.Sections[i]
		h := s.Header()
		if h.Address != nil && *h.Address == ps.defaultAddress {
			h.Address = nil
		}
		if h.Offset != nil && *h.Offset == ps.defaultOffset {
			h.Offset = nil
		}
		if h.EntSize == defaultEntSize(s, l.Encoding.Wide) {
			h.EntSize = 0
		}
		switch s := s.(type) {
		case *SymbolTableSection:
			locals := uint32(1)
			for _, sym := range s.Symbols {
				if sym.Binding == elf.STB_LOCAL {
					locals++
				}
			}
			if h.Info == locals {
				h.Info = 0
			}
		case *VersionDefinitionSection:
			if h.Info == uint32(len(s.Entries)) {
				h.Info = 0
			}
		}
	}

	for k := range f.ProgramHeaders {
		ph := &f.ProgramHeaders[k]
		seg := l.Segments[k]
		if *ph.PAddr == seg.defaultPAddr {
			ph.PAddr = nil
		}
		if ph.Align == seg.defaultAlign {
			ph.Align = 0
		}
		if *ph.Offset == seg.defaultOffset {
			ph.Offset = nil
		}
		if *ph.FileSize == seg.defaultFileSize {
			ph.FileSize = nil
		}
		if *ph.MemSize == seg.defaultMemSize {
			ph.MemSize = nil
		}
	}
	return nil
}

// dropSeeds clears the original bytes of every string table that a fresh
// build reproduces exactly, at the offsets the input referenced.
func (d *decoder) dropSeeds() {
	type seed struct {
		content []byte
		offsets map[string]uint32
	}
	seeds := make(map[*StringTableSection]seed)
	for _, s := range d.f.Sections {
		if st, ok := s.(*StringTableSection); ok {
			seeds[st] = seed{st.Content, st.offsets}
			st.Content, st.offsets = nil, nil
		}
	}
	if len(seeds) == 0 {
		return
	}
	if fresh, err := Plan(d.f); err == nil {
		for _, ps := range fresh.Sections {
			st, ok := ps.Section.(*StringTableSection)
			if ok && !ps.Implicit && bytes.Equal(ps.Content, seeds[st].content) &&
				newStringTable(ps.Content, nil).agrees(seeds[st].offsets) {
				delete(seeds, st)
			}
		}
	}
	for st, s := range seeds {
		st.Content, st.offsets = s.content, s.offsets
	}
}
