package binary

// Writer accumulates an object file image in the layout's byte order.
type Writer struct {
	buf    []byte
	layout Layout
}

// NewWriter creates a new Writer.
func NewWriter(l Layout) *Writer {
	return &Writer{layout: l}
}

// Bytes returns the written bytes.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Len returns the number of bytes written.
func (w *Writer) Len() int {
	return len(w.buf)
}

// Byte writes a single byte.
func (w *Writer) Byte(b byte) {
	w.buf = append(w.buf, b)
}

// WriteBytes writes a byte slice.
func (w *Writer) WriteBytes(data []byte) {
	w.buf = append(w.buf, data...)
}

// WriteAt copies data to the absolute offset off, zero-filling up to off
// first. Bytes already written in that range are overwritten.
func (w *Writer) WriteAt(off int, data []byte) {
	w.PadTo(off + len(data))
	copy(w.buf[off:], data)
}

// WriteU16 writes a 16-bit value.
func (w *Writer) WriteU16(v uint16) {
	var b [2]byte
	w.layout.Order.PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// WriteU32 writes a 32-bit value.
func (w *Writer) WriteU32(v uint32) {
	var b [4]byte
	w.layout.Order.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// WriteU64 writes a 64-bit value.
func (w *Writer) WriteU64(v uint64) {
	var b [8]byte
	w.layout.Order.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// WriteWord writes an address-sized value. Callers check Layout.FitsWord first;
// 32-bit words are truncated.
func (w *Writer) WriteWord(v uint64) {
	if w.layout.Wide {
		w.WriteU64(v)
		return
	}
	w.WriteU32(uint32(v))
}

// PadTo zero-fills up to the absolute offset n. It does nothing when the writer
// is already at or past n.
func (w *Writer) PadTo(n int) {
	if n > len(w.buf) {
		w.buf = append(w.buf, make([]byte, n-len(w.buf))...)
	}
}
