package binary

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrShort is returned when a read runs past the end of the input.
var ErrShort = errors.New("unexpected end of input")

// Layout is the byte order and word size that every multi-byte field of an
// object file is encoded with. It is fixed by the file header.
type Layout struct {
	Order binary.ByteOrder
	Wide  bool // 64-bit words and addresses
}

// WordSize returns the size in bytes of an address-sized field.
func (l Layout) WordSize() int {
	if l.Wide {
		return 8
	}
	return 4
}

// FitsWord reports whether v can be stored in an address-sized field.
func (l Layout) FitsWord(v uint64) bool {
	return l.Wide || v <= 0xffffffff
}

// Reader is a position-tracking cursor over an in-memory object file.
type Reader struct {
	data   []byte
	pos    int
	layout Layout
}

// NewReader creates a new Reader over data.
func NewReader(data []byte, l Layout) *Reader {
	return &Reader{data: data, layout: l}
}

// Position returns the current byte position.
func (r *Reader) Position() int {
	return r.pos
}

// Len returns the number of unread bytes.
func (r *Reader) Len() int {
	return len(r.data) - r.pos
}

// Seek moves to the given absolute position.
func (r *Reader) Seek(pos int) error {
	if pos < 0 || pos > len(r.data) {
		return r.wrapError(fmt.Errorf("seek to %d outside input of %d bytes", pos, len(r.data)))
	}
	r.pos = pos
	return nil
}

func (r *Reader) next(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.data) {
		return nil, r.wrapError(ErrShort)
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// ReadByte reads a single byte and advances the position.
func (r *Reader) ReadByte() (byte, error) {
	b, err := r.next(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadBytes reads exactly n bytes. The result is a copy.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	b, err := r.next(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

// ReadU16 reads a 16-bit value in the layout's byte order.
func (r *Reader) ReadU16() (uint16, error) {
	b, err := r.next(2)
	if err != nil {
		return 0, err
	}
	return r.layout.Order.Uint16(b), nil
}

// ReadU32 reads a 32-bit value in the layout's byte order.
func (r *Reader) ReadU32() (uint32, error) {
	b, err := r.next(4)
	if err != nil {
		return 0, err
	}
	return r.layout.Order.Uint32(b), nil
}

// ReadU64 reads a 64-bit value in the layout's byte order.
func (r *Reader) ReadU64() (uint64, error) {
	b, err := r.next(8)
	if err != nil {
		return 0, err
	}
	return r.layout.Order.Uint64(b), nil
}

// ReadWord reads an address-sized value: 4 bytes for 32-bit files, 8 for 64-bit.
func (r *Reader) ReadWord() (uint64, error) {
	if r.layout.Wide {
		return r.ReadU64()
	}
	v, err := r.ReadU32()
	return uint64(v), err
}

// ReadString reads a NUL-terminated string starting at off without moving the cursor.
func (r *Reader) ReadString(off int) (string, error) {
	if off < 0 || off >= len(r.data) {
		return "", r.wrapError(fmt.Errorf("string offset %d outside table of %d bytes", off, len(r.data)))
	}
	for i := off; i < len(r.data); i++ {
		if r.data[i] == 0 {
			return string(r.data[off:i]), nil
		}
	}
	return "", r.wrapError(fmt.Errorf("string at offset %d is not terminated", off))
}

func (r *Reader) wrapError(err error) error {
	return fmt.Errorf("at position %d: %w", r.pos, err)
}

// ParseError represents an error during binary parsing with position information.
type ParseError struct {
	Err      error
	Section  string
	Position int
}

func (e *ParseError) Error() string {
	if e.Section != "" {
		return fmt.Sprintf("elf: %s at position %d: %v", e.Section, e.Position, e.Err)
	}
	return fmt.Sprintf("elf: at position %d: %v", e.Position, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// WrapError creates a ParseError with the current position.
func (r *Reader) WrapError(section string, err error) error {
	return &ParseError{
		Position: r.pos,
		Section:  section,
		Err:      err,
	}
}
