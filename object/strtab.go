package object

import "bytes"

// stringTable accumulates a NUL-terminated string table. A seeded table starts
// from existing bytes so that offsets already handed out stay valid.
type stringTable struct {
	buf   []byte
	hints map[string]uint32
}

func newStringTable(seed []byte, hints map[string]uint32) *stringTable {
	if len(seed) == 0 {
		return &stringTable{buf: []byte{0}}
	}
	buf := make([]byte, len(seed))
	copy(buf, seed)
	return &stringTable{buf: buf, hints: hints}
}

// add returns the offset of s: its hinted offset when the table still holds s
// there, else the first existing entry (or entry suffix) that matches, else a
// newly appended entry.
func (t *stringTable) add(s string) uint32 {
	needle := make([]byte, 0, len(s)+1)
	needle = append(needle, s...)
	needle = append(needle, 0)
	if off, ok := t.hints[s]; ok && uint64(off)+uint64(len(needle)) <= uint64(len(t.buf)) &&
		bytes.Equal(t.buf[off:int(off)+len(needle)], needle) {
		return off
	}
	if i := bytes.Index(t.buf, needle); i >= 0 {
		return uint32(i)
	}
	off := uint32(len(t.buf))
	t.buf = append(t.buf, needle...)
	return off
}

// agrees reports whether every hinted string resolves to its hinted offset
// without the hints.
func (t *stringTable) agrees(hints map[string]uint32) bool {
	for s, off := range hints {
		if t.add(s) != off {
			return false
		}
	}
	return true
}

func (t *stringTable) bytes() []byte {
	return t.buf
}
