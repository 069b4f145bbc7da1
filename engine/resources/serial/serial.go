// Package serial implements the structured binary codec used by cooked
// asset descriptors. All multi-byte values are little-endian; floats are
// IEEE-754. Strings and vectors are length-prefixed with a 4-byte count.
package serial

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"github.com/spaghettifunk/oxygen/engine/core"
)

// DefaultMaxElements bounds length-prefixed strings and vectors unless a
// reader/writer overrides it.
const DefaultMaxElements = 1 << 24

// AlignUp rounds v up to the next multiple of alignment. Alignment must be
// a power of two.
func AlignUp(v, alignment uint64) uint64 {
	return (v + alignment - 1) &^ (alignment - 1)
}

// Writer serializes primitives into an in-memory buffer. Alignment scopes
// pad with zero bytes so the next write lands on the scope's boundary.
type Writer struct {
	buf         bytes.Buffer
	maxElements uint32
}

func NewWriter() *Writer {
	return &Writer{maxElements: DefaultMaxElements}
}

// SetMaxElements overrides the element cap for strings and vectors.
func (w *Writer) SetMaxElements(max uint32) { w.maxElements = max }

// Bytes returns the serialized contents.
func (w *Writer) Bytes() []byte { return w.buf.Bytes() }

// Len returns how many bytes have been written.
func (w *Writer) Len() uint64 { return uint64(w.buf.Len()) }

// ScopedAlignment pads to alignment, runs fn, then pads to alignment again
// so following writes are also aligned.
func (w *Writer) ScopedAlignment(alignment uint64, fn func(*Writer) error) error {
	if alignment == 0 || alignment&(alignment-1) != 0 {
		return core.NewError(core.KindInvalidRequest, "alignment %d is not a power of two", alignment)
	}
	w.pad(alignment)
	if err := fn(w); err != nil {
		return err
	}
	w.pad(alignment)
	return nil
}

func (w *Writer) pad(alignment uint64) {
	cur := uint64(w.buf.Len())
	for i := cur; i < AlignUp(cur, alignment); i++ {
		w.buf.WriteByte(0)
	}
}

func (w *Writer) WriteU8(v uint8) { w.buf.WriteByte(v) }

func (w *Writer) WriteBool(v bool) {
	if v {
		w.WriteU8(1)
	} else {
		w.WriteU8(0)
	}
}

func (w *Writer) WriteU16(v uint16) { w.writeLE(v) }
func (w *Writer) WriteU32(v uint32) { w.writeLE(v) }
func (w *Writer) WriteU64(v uint64) { w.writeLE(v) }
func (w *Writer) WriteI32(v int32)  { w.writeLE(uint32(v)) }
func (w *Writer) WriteI64(v int64)  { w.writeLE(uint64(v)) }

func (w *Writer) WriteF32(v float32) { w.writeLE(math.Float32bits(v)) }
func (w *Writer) WriteF64(v float64) { w.writeLE(math.Float64bits(v)) }

func (w *Writer) writeLE(v interface{}) {
	// bytes.Buffer writes never fail.
	_ = binary.Write(&w.buf, binary.LittleEndian, v)
}

// WriteString writes a 4-byte length followed by the raw bytes.
func (w *Writer) WriteString(s string) error {
	if uint32(len(s)) > w.maxElements {
		return core.NewError(core.KindInvalidRequest, "string length %d exceeds cap %d", len(s), w.maxElements)
	}
	w.WriteU32(uint32(len(s)))
	w.buf.WriteString(s)
	return nil
}

// WriteBytes writes a 4-byte length followed by the raw bytes.
func (w *Writer) WriteBytes(b []byte) error {
	if uint32(len(b)) > w.maxElements {
		return core.NewError(core.KindInvalidRequest, "vector length %d exceeds cap %d", len(b), w.maxElements)
	}
	w.WriteU32(uint32(len(b)))
	w.buf.Write(b)
	return nil
}

// WriteVector writes a 4-byte count then each element via elem.
func WriteVector[T any](w *Writer, items []T, elem func(*Writer, T) error) error {
	if uint32(len(items)) > w.maxElements {
		return core.NewError(core.KindInvalidRequest, "vector length %d exceeds cap %d", len(items), w.maxElements)
	}
	w.WriteU32(uint32(len(items)))
	for _, it := range items {
		if err := elem(w, it); err != nil {
			return err
		}
	}
	return nil
}

// Reader deserializes data produced by Writer. Every read checks bounds
// and fails with an integrity error on truncation.
type Reader struct {
	data        []byte
	pos         uint64
	maxElements uint32
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data, maxElements: DefaultMaxElements}
}

// SetMaxElements overrides the element cap for strings and vectors.
func (r *Reader) SetMaxElements(max uint32) { r.maxElements = max }

// Remaining returns how many bytes are left.
func (r *Reader) Remaining() uint64 { return uint64(len(r.data)) - r.pos }

// ScopedAlignment skips to alignment, runs fn, then skips to alignment
// again, mirroring the writer's padding.
func (r *Reader) ScopedAlignment(alignment uint64, fn func(*Reader) error) error {
	if alignment == 0 || alignment&(alignment-1) != 0 {
		return core.NewError(core.KindInvalidRequest, "alignment %d is not a power of two", alignment)
	}
	if err := r.skipTo(alignment); err != nil {
		return err
	}
	if err := fn(r); err != nil {
		return err
	}
	return r.skipTo(alignment)
}

func (r *Reader) skipTo(alignment uint64) error {
	target := AlignUp(r.pos, alignment)
	if target > uint64(len(r.data)) {
		return core.WrapError(core.KindIntegrityError, io.ErrUnexpectedEOF, "padding past end of data")
	}
	r.pos = target
	return nil
}

func (r *Reader) take(n uint64) ([]byte, error) {
	if r.Remaining() < n {
		return nil, core.WrapError(core.KindIntegrityError, io.ErrUnexpectedEOF,
			"need %d bytes at offset %d, have %d", n, r.pos, r.Remaining())
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *Reader) ReadU8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) ReadBool() (bool, error) {
	v, err := r.ReadU8()
	return v != 0, err
}

func (r *Reader) ReadU16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *Reader) ReadU32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *Reader) ReadU64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *Reader) ReadI32() (int32, error) {
	v, err := r.ReadU32()
	return int32(v), err
}

func (r *Reader) ReadI64() (int64, error) {
	v, err := r.ReadU64()
	return int64(v), err
}

func (r *Reader) ReadF32() (float32, error) {
	v, err := r.ReadU32()
	return math.Float32frombits(v), err
}

func (r *Reader) ReadF64() (float64, error) {
	v, err := r.ReadU64()
	return math.Float64frombits(v), err
}

func (r *Reader) readLength() (uint32, error) {
	n, err := r.ReadU32()
	if err != nil {
		return 0, err
	}
	if n > r.maxElements {
		return 0, core.NewError(core.KindIntegrityError, "length %d exceeds cap %d", n, r.maxElements)
	}
	return n, nil
}

func (r *Reader) ReadString() (string, error) {
	n, err := r.readLength()
	if err != nil {
		return "", err
	}
	b, err := r.take(uint64(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *Reader) ReadBytes() ([]byte, error) {
	n, err := r.readLength()
	if err != nil {
		return nil, err
	}
	b, err := r.take(uint64(n))
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

// ReadVector reads a 4-byte count then each element via elem.
func ReadVector[T any](r *Reader, elem func(*Reader) (T, error)) ([]T, error) {
	n, err := r.readLength()
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, n)
	for i := uint32(0); i < n; i++ {
		v, err := elem(r)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
