package object

// On-disk record sizes, in bytes.
const (
	ehdr32Size = 52
	ehdr64Size = 64
	shdr32Size = 40
	shdr64Size = 64
	phdr32Size = 32
	phdr64Size = 56
	sym32Size  = 16
	sym64Size  = 24

	verdefSize  = 20 // Elf_Verdef, identical for both classes
	verdauxSize = 8  // Elf_Verdaux
	versymSize  = 2
)

// identSize is the length of e_ident.
const identSize = 16

// Offsets within e_ident.
const (
	identClass      = 4
	identData       = 5
	identVersion    = 6
	identOSABI      = 7
	identABIVersion = 8
)

// MaxImageSize bounds the file image Plan lays out and the memory image a
// raw extraction allocates.
const MaxImageSize = 1 << 32

// Magic is the ELF identification prefix.
var Magic = [4]byte{0x7f, 'E', 'L', 'F'}

// Section index limits.
const (
	shnLoReserve = 0xff00
	shnXIndex    = 0xffff
	pnXNum       = 0xffff
)

func ehdrSize(wide bool) uint64 {
	if wide {
		return ehdr64Size
	}
	return ehdr32Size
}

func shdrSize(wide bool) uint64 {
	if wide {
		return shdr64Size
	}
	return shdr32Size
}

func phdrSize(wide bool) uint64 {
	if wide {
		return phdr64Size
	}
	return phdr32Size
}

func alignUp(v, align uint64) uint64 {
	if align <= 1 {
		return v
	}
	return (v + align - 1) / align * align
}
