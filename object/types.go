package object

import "debug/elf"

// VersionDefinitionRevision is the only vd_version value a conforming
// SHT_GNU_verdef entry may carry (VER_DEF_CURRENT).
const VersionDefinitionRevision = 1

// Implicit string table names. The encoder appends these when a section refers
// to them and the model does not list them.
const (
	SectionHeaderStringTable = ".shstrtab"
	SymbolStringTable        = ".strtab"
	DynamicStringTable       = ".dynstr"
	DynamicSymbolTable       = ".dynsym"
)

// File is the in-memory model of an ELF object: header, ordered sections and
// ordered program headers. A File is a plain value; it is produced by one
// decoder and consumed by one encoder and is never shared between goroutines.
type File struct {
	Header         FileHeader
	Sections       []Section // null section at index 0 is implicit
	ProgramHeaders []ProgramHeader
}

// FileHeader holds the identification and header fields of an ELF file.
// Class and Data fix the word size and byte order of every multi-byte field.
type FileHeader struct {
	Class      elf.Class
	Data       elf.Data
	OSABI      elf.OSABI
	ABIVersion uint8
	Type       elf.Type
	Machine    elf.Machine
	Flags      uint32
	Entry      uint64
}

// SectionHeader holds the attributes common to every section kind.
//
// Nil Address and Offset are assigned by layout. An empty Link selects the
// kind's default link target; otherwise Link is a section name or, failing a
// name match, a decimal section index. Zero Info and EntSize select the value
// derived from the section kind.
type SectionHeader struct {
	Name         string
	Type         elf.SectionType
	Flags        elf.SectionFlag
	Address      *uint64
	Offset       *uint64
	AddressAlign uint64
	EntSize      uint64
	Link         string
	Info         uint32
}

// Header returns the common header of a section.
func (h *SectionHeader) Header() *SectionHeader {
	return h
}

// Section is one entry of the section sequence. The set of implementations is
// closed: RawSection, NoBitsSection, StringTableSection, SymbolTableSection,
// VersionSymbolSection and VersionDefinitionSection.
type Section interface {
	Header() *SectionHeader
	isSection()
}

// RawSection carries opaque contents. Sections with unrecognized types decode
// to RawSection and re-encode byte for byte.
type RawSection struct {
	SectionHeader
	Content []byte
}

// NoBitsSection occupies memory but no file space (SHT_NOBITS).
type NoBitsSection struct {
	SectionHeader
	Size uint64
}

// StringTableSection is a string table whose contents are generated by the
// encoder from the strings of every section linked to it. Content, when set,
// seeds the table so that existing offsets stay valid; strings missing from
// it are appended.
type StringTableSection struct {
	SectionHeader
	Content []byte

	// offsets holds, for a decoded table, the offset each string was first
	// referenced at. They are reused while Content still holds the string there.
	offsets map[string]uint32
}

// SymbolTableSection is a SHT_SYMTAB or SHT_DYNSYM section. The null symbol
// at index 0 is implicit.
type SymbolTableSection struct {
	SectionHeader
	Symbols []Symbol
}

// Symbol is one symbol table entry. Section names the defining section; when
// it is empty Index holds the raw section index (SHN_UNDEF, SHN_ABS, ...).
type Symbol struct {
	Name    string
	Type    elf.SymType
	Binding elf.SymBind
	Other   uint8
	Section string
	Index   elf.SectionIndex
	Value   uint64
	Size    uint64
}

// VersionSymbolSection is a SHT_GNU_versym section: one version index per
// dynamic symbol.
type VersionSymbolSection struct {
	SectionHeader
	Versions []uint16
}

// VersionDefinitionSection is a SHT_GNU_verdef section.
type VersionDefinitionSection struct {
	SectionHeader
	Entries []VersionDefinition
}

// VersionDefinition is one Elf_Verdef record with its Elf_Verdaux names.
// Names[0] is the version's own identifier, the rest are its predecessors.
type VersionDefinition struct {
	Version    uint16
	Flags      uint16
	VersionNdx uint16
	Hash       uint32
	Names      []string
}

// IsDefault reports whether the entry holds the canonical defaults: current
// revision, no flags, no index, no hash and no predecessors.
func (d VersionDefinition) IsDefault() bool {
	return d.Version == VersionDefinitionRevision &&
		d.Flags == 0 && d.VersionNdx == 0 && d.Hash == 0 &&
		len(d.Names) <= 1
}

func (*RawSection) isSection()               {}
func (*NoBitsSection) isSection()            {}
func (*StringTableSection) isSection()       {}
func (*SymbolTableSection) isSection()       {}
func (*VersionSymbolSection) isSection()     {}
func (*VersionDefinitionSection) isSection() {}

// ProgramHeader describes a segment spanning the contiguous sections
// FirstSec..LastSec. Nil pointers and a zero Align are derived by layout.
type ProgramHeader struct {
	Type     elf.ProgType
	Flags    elf.ProgFlag
	VAddr    *uint64
	PAddr    *uint64
	Align    uint64
	FirstSec string
	LastSec  string
	Offset   *uint64
	FileSize *uint64
	MemSize  *uint64
}

// Uint64 returns a pointer to v, for optional model fields.
func Uint64(v uint64) *uint64 {
	return &v
}

// Section returns the index (1-based, as in the section header table) and the
// section with the given name, or 0 and nil.
func (f *File) Section(name string) (int, Section) {
	for i, s := range f.Sections {
		if s.Header().Name == name {
			return i + 1, s
		}
	}
	return 0, nil
}

// defaultLink returns the link target a section kind uses when Link is empty.
func defaultLink(s Section) string {
	switch s := s.(type) {
	case *SymbolTableSection:
		if s.Type == elf.SHT_DYNSYM {
			return DynamicStringTable
		}
		return SymbolStringTable
	case *VersionDefinitionSection:
		return DynamicStringTable
	case *VersionSymbolSection:
		return DynamicSymbolTable
	}
	return ""
}

// defaultEntSize returns the sh_entsize a section kind uses when EntSize is zero.
func defaultEntSize(s Section, wide bool) uint64 {
	switch s.(type) {
	case *SymbolTableSection:
		if wide {
			return sym64Size
		}
		return sym32Size
	case *VersionSymbolSection:
		return 2
	}
	return 0
}

// sectionSize returns the memory size of a section.
func sectionSize(s Section, content []byte) uint64 {
	if nb, ok := s.(*NoBitsSection); ok {
		return nb.Size
	}
	return uint64(len(content))
}
