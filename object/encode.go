package object

import (
	"debug/elf"

	bin "github.com/wippyai/elfkit/object/internal/binary"
)

// Encode lays out the file and serializes it to the ELF binary format.
// Nothing is returned when layout fails.
func (f *File) Encode() ([]byte, error) {
	l, err := Plan(f)
	if err != nil {
		return nil, err
	}
	return l.Encode(), nil
}

// Encode serializes a planned layout: ELF header, program headers, section
// contents at their offsets in any order, then the section header table.
func (l *Layout) Encode() []byte {
	w := bin.NewWriter(l.Encoding)
	l.writeFileHeader(w)

	if len(l.Segments) > 0 {
		w.PadTo(int(l.PhOff))
		for _, seg := range l.Segments {
			l.writeProgramHeader(w, seg)
		}
	}

	for _, s := range l.Sections {
		if s.FileSize() == 0 {
			continue
		}
		w.WriteAt(int(s.Offset), s.Content)
	}

	if len(l.Sections) > 0 {
		w.PadTo(int(l.ShOff))
		w.PadTo(w.Len() + int(shdrSize(l.Encoding.Wide))) // null section header
		for _, s := range l.Sections {
			l.writeSectionHeader(w, s)
		}
	}
	w.PadTo(int(l.Size))
	return w.Bytes()
}

func (l *Layout) shnum() uint16 {
	if len(l.Sections) == 0 {
		return 0
	}
	return uint16(len(l.Sections) + 1)
}

func (l *Layout) writeFileHeader(w *bin.Writer) {
	h := l.Header
	wide := l.Encoding.Wide

	w.WriteBytes(Magic[:])
	w.Byte(byte(h.Class))
	w.Byte(byte(h.Data))
	w.Byte(byte(elf.EV_CURRENT))
	w.Byte(byte(h.OSABI))
	w.Byte(h.ABIVersion)
	w.PadTo(identSize)

	w.WriteU16(uint16(h.Type))
	w.WriteU16(uint16(h.Machine))
	w.WriteU32(uint32(elf.EV_CURRENT))
	w.WriteWord(h.Entry)
	w.WriteWord(l.PhOff)
	w.WriteWord(l.ShOff)
	w.WriteU32(h.Flags)
	w.WriteU16(uint16(ehdrSize(wide)))
	if len(l.Segments) > 0 {
		w.WriteU16(uint16(phdrSize(wide)))
	} else {
		w.WriteU16(0)
	}
	w.WriteU16(uint16(len(l.Segments)))
	w.WriteU16(uint16(shdrSize(wide)))
	w.WriteU16(l.shnum())
	w.WriteU16(l.ShStrNdx)
}

func (l *Layout) writeProgramHeader(w *bin.Writer, seg *PlacedSegment) {
	ph := seg.Header
	if l.Encoding.Wide {
		w.WriteU32(uint32(ph.Type))
		w.WriteU32(uint32(ph.Flags))
		w.WriteU64(seg.Offset)
		w.WriteU64(seg.VAddr)
		w.WriteU64(seg.PAddr)
		w.WriteU64(seg.FileSize)
		w.WriteU64(seg.MemSize)
		w.WriteU64(seg.Align)
		return
	}
	w.WriteU32(uint32(ph.Type))
	w.WriteU32(uint32(seg.Offset))
	w.WriteU32(uint32(seg.VAddr))
	w.WriteU32(uint32(seg.PAddr))
	w.WriteU32(uint32(seg.FileSize))
	w.WriteU32(uint32(seg.MemSize))
	w.WriteU32(uint32(ph.Flags))
	w.WriteU32(uint32(seg.Align))
}

func (l *Layout) writeSectionHeader(w *bin.Writer, s *PlacedSection) {
	h := s.Header()
	w.WriteU32(s.NameOff)
	w.WriteU32(uint32(h.Type))
	w.WriteWord(uint64(h.Flags))
	w.WriteWord(s.Address)
	w.WriteWord(s.Offset)
	w.WriteWord(s.Size)
	w.WriteU32(s.Link)
	w.WriteU32(s.Info)
	w.WriteWord(s.Align)
	w.WriteWord(s.EntSize)
}
