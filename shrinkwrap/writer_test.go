package shrinkwrap

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rony4d/shrinkwrap-go/bitio"
)

func TestReverseU16Aligned(t *testing.T) {
	buf := make([]byte, 8)
	w := NewWriter(buf)
	require.NoError(t, w.PutU8(0xAA))
	require.NoError(t, w.PutU8(0xCC))
	require.NoError(t, w.PutU16Rev(3))
	require.NoError(t, w.PutU16Rev(5))
	require.Equal(t, 2, w.NibblesLeft()/2)

	out, err := w.Finish()
	require.NoError(t, err)
	require.Equal(t, []byte{0xAA, 0xCC, 0b0101_0011}, out)
}

func TestReverseU16Unaligned(t *testing.T) {
	buf := make([]byte, 10)
	w := NewWriter(buf)
	require.NoError(t, w.PutU8(0xAA))
	require.NoError(t, w.PutU8(0xCC))
	require.NoError(t, w.PutU16Rev(3))
	require.NoError(t, w.PutU16Rev(5))
	require.NoError(t, w.PutU16Rev(7))

	out, err := w.Finish()
	require.NoError(t, err)
	require.Equal(t, []byte{0xAA, 0xCC, 0b0000_0111, 0b0101_0011}, out)
}

func TestReverseU16ExpandsPastReservedPlaceholder(t *testing.T) {
	// A single reservation only carves out 16 bits (2 bytes), but a value
	// near u16::MAX needs 6 Vlu16N nibbles (24 bits) once re-encoded. The
	// buffer has 32 bits total, more than enough for the true trailer even
	// though it exceeds the reserved 16 bits -- Finish must grow its
	// window back out to the buffer's real end to succeed here instead of
	// treating the shrunk reservation as a hard ceiling.
	buf := make([]byte, 4)
	w := NewWriter(buf)
	require.NoError(t, w.PutU16Rev(0xFFFF))
	out, err := w.Finish()
	require.NoError(t, err)
	require.Equal(t, []byte{0x7F, 0xFF, 0xF9}, out)

	r := NewReader(out)
	v, err := r.GetU16Rev()
	require.NoError(t, err)
	require.Equal(t, uint16(0xFFFF), v)
}

func TestReverseU16TrailerTooLargeForBufferIsCompactError(t *testing.T) {
	// Buffer sized tightly to just the reservation itself: there is no
	// physical room for the expanded 24-bit trailer, so this must fail,
	// not silently truncate or succeed with garbage.
	buf := make([]byte, 2)
	w := NewWriter(buf)
	require.NoError(t, w.PutU16Rev(0xFFFF))
	_, err := w.Finish()
	require.Equal(t, ErrOutOfBoundsReverseCompact, err)
}

func TestReverseU16RoundTripThroughReader(t *testing.T) {
	buf := make([]byte, 8)
	w := NewWriter(buf)
	require.NoError(t, w.PutU8(0xAA))
	require.NoError(t, w.PutU8(0xCC))
	require.NoError(t, w.PutU16Rev(3))
	require.NoError(t, w.PutU16Rev(5))
	out, err := w.Finish()
	require.NoError(t, err)

	r := NewReader(out)
	a, err := r.GetU8()
	require.NoError(t, err)
	require.Equal(t, uint8(0xAA), a)
	c, err := r.GetU8()
	require.NoError(t, err)
	require.Equal(t, uint8(0xCC), c)

	// GetU16Rev recovers values in the order they were reserved, regardless
	// of the order Finish physically lays them out in the trailer.
	first, err := r.GetU16Rev()
	require.NoError(t, err)
	require.Equal(t, uint16(3), first)
	second, err := r.GetU16Rev()
	require.NoError(t, err)
	require.Equal(t, uint16(5), second)
}

func TestReverseU16OddNibbleTrailerRoundTrip(t *testing.T) {
	// Three single-nibble reservations force an odd valNibbles count, so
	// Finish inserts a leading pad nibble before the trailer. GetU16Rev must
	// still recover all three values in original call order, unaffected by
	// the pad.
	buf := make([]byte, 10)
	w := NewWriter(buf)
	require.NoError(t, w.PutU8(0xAA))
	require.NoError(t, w.PutU8(0xCC))
	require.NoError(t, w.PutU16Rev(3))
	require.NoError(t, w.PutU16Rev(5))
	require.NoError(t, w.PutU16Rev(7))
	out, err := w.Finish()
	require.NoError(t, err)
	require.Equal(t, []byte{0xAA, 0xCC, 0b0000_0111, 0b0101_0011}, out)

	r := NewReader(out)
	a, err := r.GetU8()
	require.NoError(t, err)
	require.Equal(t, uint8(0xAA), a)
	c, err := r.GetU8()
	require.NoError(t, err)
	require.Equal(t, uint8(0xCC), c)

	first, err := r.GetU16Rev()
	require.NoError(t, err)
	require.Equal(t, uint16(3), first)
	second, err := r.GetU16Rev()
	require.NoError(t, err)
	require.Equal(t, uint16(5), second)
	third, err := r.GetU16Rev()
	require.NoError(t, err)
	require.Equal(t, uint16(7), third)
}

func TestSaveAndRestoreState(t *testing.T) {
	buf := make([]byte, 4)
	w := NewWriter(buf)
	require.NoError(t, w.PutU8(1))
	s := w.SaveState()
	require.NoError(t, w.PutU8(2))
	require.NoError(t, w.RestoreState(s))
	require.NoError(t, w.PutU8(3))
	out, err := w.Finish()
	require.NoError(t, err)
	require.Equal(t, []byte{1, 3}, out)
}

func TestRestoreStateRejectsForeignBuffer(t *testing.T) {
	w := NewWriter(make([]byte, 4))
	s := w.SaveState()
	other := NewWriter(make([]byte, 4))
	require.Equal(t, ErrOutOfBounds, other.RestoreState(s))
}

func TestReplaceNibbleDoesNotMoveCursor(t *testing.T) {
	buf := make([]byte, 2)
	w := NewWriter(buf)
	require.NoError(t, w.PutU8(0x12))
	pos := w.NibblePos()
	require.NoError(t, w.ReplaceNibble(0, 0xF))
	require.Equal(t, pos, w.NibblePos())
	require.NoError(t, w.PutU8(0x34))
	out, err := w.Finish()
	require.NoError(t, err)
	require.Equal(t, []byte{0xF2, 0x34}, out)
}

func TestReplaceNibbleRejectsPositionAtOrPastCursor(t *testing.T) {
	buf := make([]byte, 2)
	w := NewWriter(buf)
	require.NoError(t, w.PutU8(0x12))
	require.Equal(t, ErrOutOfBounds, w.ReplaceNibble(2, 0x0))
}

func TestSubReaderConsumesParentNibblesUpFront(t *testing.T) {
	buf := []byte{0x01, 0x02, 0x03, 0x04}
	r := NewReader(buf)
	sub, err := r.SubReader(4)
	require.NoError(t, err)
	v, err := sub.GetU8()
	require.NoError(t, err)
	require.Equal(t, uint8(1), v)

	// The parent skipped all 4 nibbles at SubReader time, even though the
	// sub-reader has only consumed half of its window so far.
	rest, err := r.GetU8()
	require.NoError(t, err)
	require.Equal(t, uint8(3), rest)

	// The sub-reader is bounded to its window: one more byte fits, a
	// second does not.
	v, err = sub.GetU8()
	require.NoError(t, err)
	require.Equal(t, uint8(2), v)
	_, err = sub.GetU8()
	require.Error(t, err)
}

func TestAsBitWriterPacksHeaderBits(t *testing.T) {
	buf := make([]byte, 2)
	w := NewWriter(buf)
	require.NoError(t, w.AsBitWriter(func(bw *bitio.Writer) error {
		if err := bw.PutBool(true); err != nil {
			return err
		}
		return bw.PutUpTo8(3, 0b101)
	}))
	require.NoError(t, w.PutNibble(0xC))
	out, err := w.Finish()
	require.NoError(t, err)
	require.Equal(t, []byte{0b1101_1100}, out)
}

func TestAsBitWriterRejectsUnalignedClosure(t *testing.T) {
	w := NewWriter(make([]byte, 2))
	err := w.AsBitWriter(func(bw *bitio.Writer) error {
		return bw.PutBool(true)
	})
	require.Equal(t, ErrUnalignedAccess, err)
}

func TestRewindRunsClosureAtEarlierCursor(t *testing.T) {
	buf := make([]byte, 4)
	w := NewWriter(buf)
	require.NoError(t, w.Skip(2)) // placeholder byte, patched below
	require.NoError(t, w.PutU8(0x22))
	require.NoError(t, w.Rewind(0, func(w *Writer) error {
		return w.PutU8(0x11)
	}))
	require.NoError(t, w.PutU8(0x33))
	out, err := w.Finish()
	require.NoError(t, err)
	require.Equal(t, []byte{0x11, 0x22, 0x33}, out)
}

func TestNibbleWritesPackAndBound(t *testing.T) {
	buf := make([]byte, 2)
	w := NewWriter(buf)
	for i := 1; i <= 4; i++ {
		require.NoError(t, w.PutNibble(uint8(i)))
	}
	require.Equal(t, 4, w.NibblePos())
	require.True(t, w.IsAtByteBoundary())
	require.Equal(t, ErrOutOfBounds, w.PutNibble(5))
	out, err := w.Finish()
	require.NoError(t, err)
	require.Equal(t, []byte{0x12, 0x34}, out)
}

func TestPutNibbleBufAlignedFastPath(t *testing.T) {
	src := NewReader([]byte{0xAB, 0xCD})
	dst := NewWriter(make([]byte, 2))
	require.NoError(t, dst.PutNibbleBuf(src))
	out, err := dst.Finish()
	require.NoError(t, err)
	require.Equal(t, []byte{0xAB, 0xCD}, out)
}

func TestPutNibbleBufBothMidBytePath(t *testing.T) {
	dst := NewWriter(make([]byte, 3))
	require.NoError(t, dst.PutNibble(0x1)) // leaves dst mid-byte

	src := NewReader([]byte{0xAB, 0xCD})
	_, err := src.GetNibble() // consume 0xA, leaving src mid-byte too
	require.NoError(t, err)

	require.NoError(t, dst.PutNibbleBuf(src))
	out, err := dst.Finish()
	require.NoError(t, err)
	require.Equal(t, []byte{0x1B, 0xCD}, out)
}

func TestPutNibbleBufShiftedFallback(t *testing.T) {
	src := NewReader([]byte{0xAB})
	_, err := src.GetNibble() // consume the high nibble, leaving src misaligned
	require.NoError(t, err)

	dst := NewWriter(make([]byte, 1))
	require.NoError(t, dst.PutNibbleBuf(src))
	out, err := dst.Finish()
	require.NoError(t, err)
	require.Equal(t, []byte{0xB0}, out)
}
