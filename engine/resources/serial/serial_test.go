package serial

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/oxygen/engine/core"
)

func TestAlignUp(t *testing.T) {
	assert.Equal(t, uint64(0), AlignUp(0, 16))
	assert.Equal(t, uint64(16), AlignUp(1, 16))
	assert.Equal(t, uint64(16), AlignUp(16, 16))
	assert.Equal(t, uint64(32), AlignUp(17, 16))
}

func TestPrimitiveRoundTrip(t *testing.T) {
	w := NewWriter()
	w.WriteU8(0xAB)
	w.WriteBool(true)
	w.WriteU16(0xBEEF)
	w.WriteU32(0xDEADBEEF)
	w.WriteU64(0x0123456789ABCDEF)
	w.WriteI32(-42)
	w.WriteI64(-1 << 40)
	w.WriteF32(3.5)
	w.WriteF64(-0.25)
	require.NoError(t, w.WriteString("oxygen"))
	require.NoError(t, w.WriteBytes([]byte{1, 2, 3}))

	r := NewReader(w.Bytes())
	u8, err := r.ReadU8()
	require.NoError(t, err)
	assert.Equal(t, uint8(0xAB), u8)
	b, err := r.ReadBool()
	require.NoError(t, err)
	assert.True(t, b)
	u16, err := r.ReadU16()
	require.NoError(t, err)
	assert.Equal(t, uint16(0xBEEF), u16)
	u32, err := r.ReadU32()
	require.NoError(t, err)
	assert.Equal(t, uint32(0xDEADBEEF), u32)
	u64, err := r.ReadU64()
	require.NoError(t, err)
	assert.Equal(t, uint64(0x0123456789ABCDEF), u64)
	i32, err := r.ReadI32()
	require.NoError(t, err)
	assert.Equal(t, int32(-42), i32)
	i64, err := r.ReadI64()
	require.NoError(t, err)
	assert.Equal(t, int64(-1<<40), i64)
	f32, err := r.ReadF32()
	require.NoError(t, err)
	assert.Equal(t, float32(3.5), f32)
	f64, err := r.ReadF64()
	require.NoError(t, err)
	assert.Equal(t, -0.25, f64)
	s, err := r.ReadString()
	require.NoError(t, err)
	assert.Equal(t, "oxygen", s)
	raw, err := r.ReadBytes()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, raw)
	assert.Equal(t, uint64(0), r.Remaining())
}

func TestLittleEndianLayout(t *testing.T) {
	w := NewWriter()
	w.WriteU32(0x04030201)
	assert.Equal(t, []byte{1, 2, 3, 4}, w.Bytes())
}

func TestScopedAlignment(t *testing.T) {
	w := NewWriter()
	w.WriteU8(7)
	require.NoError(t, w.ScopedAlignment(16, func(w *Writer) error {
		assert.Equal(t, uint64(16), w.Len())
		w.WriteU32(0xCAFE)
		return nil
	}))
	// Trailing pad brings the stream back onto the boundary.
	assert.Equal(t, uint64(32), w.Len())
	w.WriteU8(9)

	r := NewReader(w.Bytes())
	v8, err := r.ReadU8()
	require.NoError(t, err)
	assert.Equal(t, uint8(7), v8)
	require.NoError(t, r.ScopedAlignment(16, func(r *Reader) error {
		v, err := r.ReadU32()
		require.NoError(t, err)
		assert.Equal(t, uint32(0xCAFE), v)
		return nil
	}))
	v8, err = r.ReadU8()
	require.NoError(t, err)
	assert.Equal(t, uint8(9), v8)
}

func TestBadAlignmentRejected(t *testing.T) {
	w := NewWriter()
	err := w.ScopedAlignment(3, func(*Writer) error { return nil })
	assert.ErrorIs(t, err, core.ErrInvalidRequest)
}

func TestVectorRoundTrip(t *testing.T) {
	w := NewWriter()
	names := []string{"albedo", "normal", "orm"}
	require.NoError(t, WriteVector(w, names, func(w *Writer, s string) error {
		return w.WriteString(s)
	}))

	r := NewReader(w.Bytes())
	got, err := ReadVector(r, func(r *Reader) (string, error) {
		return r.ReadString()
	})
	require.NoError(t, err)
	assert.Equal(t, names, got)
}

func TestTruncationFailsIntegrity(t *testing.T) {
	w := NewWriter()
	require.NoError(t, w.WriteString("scene-root"))

	r := NewReader(w.Bytes()[:6])
	_, err := r.ReadString()
	assert.ErrorIs(t, err, core.ErrIntegrityError)
}

func TestLengthCap(t *testing.T) {
	w := NewWriter()
	w.SetMaxElements(4)
	assert.ErrorIs(t, w.WriteString("too long"), core.ErrInvalidRequest)

	wide := NewWriter()
	require.NoError(t, wide.WriteString("too long"))
	r := NewReader(wide.Bytes())
	r.SetMaxElements(4)
	_, err := r.ReadString()
	assert.ErrorIs(t, err, core.ErrIntegrityError)
}
