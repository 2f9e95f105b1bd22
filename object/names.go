package object

import (
	"debug/elf"
	"fmt"
	"strconv"
	"strings"
)

type integer interface {
	~uint8 | ~uint16 | ~uint32 | ~int
}

// Enum maps the values of one ELF enumeration to their canonical names
// (SHT_PROGBITS, EM_X86_64, ...). Values without a name render as hex literals.
type Enum[T integer] struct {
	byValue map[T]string
	byName  map[string]T
	bits    int
}

func newEnum[T interface {
	integer
	fmt.Stringer
}](bits int, vals ...T) *Enum[T] {
	e := &Enum[T]{
		byValue: make(map[T]string, len(vals)),
		byName:  make(map[string]T, len(vals)),
		bits:    bits,
	}
	for _, v := range vals {
		name := v.String()
		e.byValue[v] = name
		e.byName[name] = v
	}
	return e
}

// Name returns the canonical name of v, or a hex literal.
func (e *Enum[T]) Name(v T) string {
	if s, ok := e.byValue[v]; ok {
		return s
	}
	return fmt.Sprintf("0x%X", uint64(v))
}

// Known reports whether v has a canonical name.
func (e *Enum[T]) Known(v T) bool {
	_, ok := e.byValue[v]
	return ok
}

// Parse accepts a canonical name or an integer literal that fits the field.
func (e *Enum[T]) Parse(s string) (T, bool) {
	if v, ok := e.byName[s]; ok {
		return v, true
	}
	n, err := strconv.ParseUint(s, 0, e.bits)
	if err != nil {
		return 0, false
	}
	return T(n), true
}

// FlagSet maps single-bit flags to their canonical names.
type FlagSet[T ~uint32] struct {
	order  []T
	names  []string
	byName map[string]T
}

func newFlagSet[T interface {
	~uint32
	fmt.Stringer
}](flags ...T) *FlagSet[T] {
	f := &FlagSet[T]{byName: make(map[string]T, len(flags))}
	for _, v := range flags {
		f.order = append(f.order, v)
		f.names = append(f.names, v.String())
		f.byName[v.String()] = v
	}
	return f
}

// Names splits v into flag names in declaration order. Bits without a name
// are collected into one trailing hex literal.
func (f *FlagSet[T]) Names(v T) []string {
	var out []string
	for i, flag := range f.order {
		if v&flag != 0 {
			out = append(out, f.names[i])
			v &^= flag
		}
	}
	if v != 0 {
		out = append(out, fmt.Sprintf("0x%X", uint32(v)))
	}
	return out
}

// Parse ORs together flag names and integer literals.
func (f *FlagSet[T]) Parse(names []string) (T, error) {
	var v T
	for _, name := range names {
		name = strings.TrimSpace(name)
		if flag, ok := f.byName[name]; ok {
			v |= flag
			continue
		}
		n, err := strconv.ParseUint(name, 0, 32)
		if err != nil {
			return 0, fmt.Errorf("unknown flag %q", name)
		}
		v |= T(n)
	}
	return v, nil
}

// Enumerations used by the structured document and the CLI.
var (
	Classes = newEnum(8, elf.ELFCLASS32, elf.ELFCLASS64)

	DataEncodings = newEnum(8, elf.ELFDATA2LSB, elf.ELFDATA2MSB)

	OSABIs = newEnum(8,
		elf.ELFOSABI_NONE, elf.ELFOSABI_HPUX, elf.ELFOSABI_NETBSD, elf.ELFOSABI_LINUX,
		elf.ELFOSABI_HURD, elf.ELFOSABI_86OPEN, elf.ELFOSABI_SOLARIS, elf.ELFOSABI_AIX,
		elf.ELFOSABI_IRIX, elf.ELFOSABI_FREEBSD, elf.ELFOSABI_TRU64, elf.ELFOSABI_MODESTO,
		elf.ELFOSABI_OPENBSD, elf.ELFOSABI_OPENVMS, elf.ELFOSABI_NSK, elf.ELFOSABI_AROS,
		elf.ELFOSABI_FENIXOS, elf.ELFOSABI_CLOUDABI, elf.ELFOSABI_ARM, elf.ELFOSABI_STANDALONE,
	)

	FileTypes = newEnum(16, elf.ET_NONE, elf.ET_REL, elf.ET_EXEC, elf.ET_DYN, elf.ET_CORE)

	Machines = newEnum(16,
		elf.EM_NONE, elf.EM_SPARC, elf.EM_386, elf.EM_68K, elf.EM_MIPS, elf.EM_PPC,
		elf.EM_PPC64, elf.EM_S390, elf.EM_ARM, elf.EM_SPARCV9, elf.EM_IA_64, elf.EM_X86_64,
		elf.EM_AVR, elf.EM_AARCH64, elf.EM_RISCV, elf.EM_BPF, elf.EM_LOONGARCH,
	)

	SectionTypes = newEnum(32,
		elf.SHT_NULL, elf.SHT_PROGBITS, elf.SHT_SYMTAB, elf.SHT_STRTAB, elf.SHT_RELA,
		elf.SHT_HASH, elf.SHT_DYNAMIC, elf.SHT_NOTE, elf.SHT_NOBITS, elf.SHT_REL,
		elf.SHT_SHLIB, elf.SHT_DYNSYM, elf.SHT_INIT_ARRAY, elf.SHT_FINI_ARRAY,
		elf.SHT_PREINIT_ARRAY, elf.SHT_GROUP, elf.SHT_SYMTAB_SHNDX, elf.SHT_GNU_ATTRIBUTES,
		elf.SHT_GNU_HASH, elf.SHT_GNU_LIBLIST, elf.SHT_GNU_VERDEF, elf.SHT_GNU_VERNEED,
		elf.SHT_GNU_VERSYM,
	)

	SectionFlags = newFlagSet(
		elf.SHF_WRITE, elf.SHF_ALLOC, elf.SHF_EXECINSTR, elf.SHF_MERGE, elf.SHF_STRINGS,
		elf.SHF_INFO_LINK, elf.SHF_LINK_ORDER, elf.SHF_OS_NONCONFORMING, elf.SHF_GROUP,
		elf.SHF_TLS, elf.SHF_COMPRESSED,
	)

	ProgTypes = newEnum(32,
		elf.PT_NULL, elf.PT_LOAD, elf.PT_DYNAMIC, elf.PT_INTERP, elf.PT_NOTE, elf.PT_SHLIB,
		elf.PT_PHDR, elf.PT_TLS, elf.PT_GNU_EH_FRAME, elf.PT_GNU_STACK, elf.PT_GNU_RELRO,
		elf.PT_GNU_PROPERTY,
	)

	ProgFlags = newFlagSet(elf.PF_R, elf.PF_W, elf.PF_X)

	SymTypes = newEnum(4,
		elf.STT_NOTYPE, elf.STT_OBJECT, elf.STT_FUNC, elf.STT_SECTION, elf.STT_FILE,
		elf.STT_COMMON, elf.STT_TLS,
	)

	SymBinds = newEnum(4, elf.STB_LOCAL, elf.STB_GLOBAL, elf.STB_WEAK)

	SpecialSections = newEnum(16, elf.SHN_UNDEF, elf.SHN_ABS, elf.SHN_COMMON, elf.SHN_XINDEX)
)
