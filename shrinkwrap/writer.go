package shrinkwrap

import (
	"unsafe"

	"github.com/rony4d/shrinkwrap-go/bitio"
)

// Writer packs values nibble-by-nibble (and, through AsBitWriter, bit-by-bit)
// into a byte slice borrowed from the caller. It never grows buf; every
// write is bounds-checked against the slice it was built with. It does
// make small heap allocations of its own: PutU16Rev records each reserved
// value in a growing slice, and cursor moves (Rewind, RestoreState,
// AsBitWriter, Finish) build a fresh bit cursor. The zero value is not
// usable -- construct with NewWriter.
type Writer struct {
	bw          *bitio.Writer
	buf         []byte
	reverseVals []uint16
}

// WriterState is an opaque cursor snapshot produced by SaveState and
// consumed by RestoreState. It is only valid against the Writer that
// produced it: RestoreState rejects a state captured from a different
// backing buffer.
type WriterState struct {
	bufID   uintptr
	bitPos  int
	lenBits int
}

// NewWriter wraps the whole of buf for nibble-level writing.
func NewWriter(buf []byte) *Writer {
	return &Writer{bw: bitio.NewWriter(buf), buf: buf}
}

func bufIdentity(buf []byte) uintptr {
	if len(buf) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&buf[0]))
}

// NibblePos returns the current cursor position in nibbles from the start
// of buf.
func (w *Writer) NibblePos() int { return w.bw.BitPos() / 4 }

// NibblesLeft returns how many whole nibbles remain writable in the
// forward region (it does not include space reserved for reverse fields).
func (w *Writer) NibblesLeft() int { return w.bw.BitsLeft() / 4 }

// IsAtByteBoundary reports whether the cursor sits at the start of a byte.
func (w *Writer) IsAtByteBoundary() bool { return w.bw.AtByteBoundary() }

// IsAtEnd reports whether the forward region is exhausted.
func (w *Writer) IsAtEnd() bool { return w.bw.BitsLeft() == 0 }

// PutBool writes a single bit flag, escaping to bit resolution for one bit
// without otherwise disturbing the nibble cursor.
func (w *Writer) PutBool(v bool) error { return w.bw.PutBool(v) }

// PutNibble writes the low 4 bits of v.
func (w *Writer) PutNibble(v uint8) error { return w.bw.PutU4(v) }

// PutU8 writes a full byte starting at the next nibble boundary. It does
// not require byte alignment: mid-byte, the value's two nibbles span the
// byte boundary.
func (w *Writer) PutU8(v uint8) error {
	if err := w.bw.AlignToNibble(); err != nil {
		return err
	}
	return w.bw.PutUpTo8(8, v)
}

// PutU16BE writes v as two big-endian bytes.
func (w *Writer) PutU16BE(v uint16) error {
	if w.NibblesLeft() < 4 {
		return ErrOutOfBounds
	}
	if err := w.PutU8(uint8(v >> 8)); err != nil {
		return err
	}
	return w.PutU8(uint8(v))
}

// PutU32BE writes v as four big-endian bytes.
func (w *Writer) PutU32BE(v uint32) error {
	if w.NibblesLeft() < 8 {
		return ErrOutOfBounds
	}
	if err := w.PutU16BE(uint16(v >> 16)); err != nil {
		return err
	}
	return w.PutU16BE(uint16(v))
}

// Skip writes n zero nibbles, reserving space a later ReplaceNibble can
// fill in.
func (w *Writer) Skip(n int) error {
	if n < 0 || w.NibblesLeft() < n {
		return ErrOutOfBounds
	}
	for i := 0; i < n; i++ {
		if err := w.PutNibble(0); err != nil {
			return err
		}
	}
	return nil
}

// AlignToNibble zeroes and skips any pending bits before the next nibble.
func (w *Writer) AlignToNibble() error { return w.bw.AlignToNibble() }

// AlignToByte zeroes and skips any pending bits before the next byte.
func (w *Writer) AlignToByte() error { return w.bw.AlignToByte() }

// PutSlice byte-aligns (inserting one zero pad nibble if needed) and copies
// raw bytes verbatim.
func (w *Writer) PutSlice(b []byte) error {
	if err := w.AlignToByte(); err != nil {
		return err
	}
	if w.NibblesLeft() < len(b)*2 {
		return ErrOutOfBounds
	}
	for _, c := range b {
		if err := w.PutU8(c); err != nil {
			return err
		}
	}
	return nil
}

// PutNibbleBuf copies another reader's unread nibble stream into this
// writer. Both byte-aligned: a straight byte-for-byte copy (plus one
// trailing nibble). Both mid-byte: one nibble is moved by hand to bring
// both sides onto a byte boundary, then the rest copies as whole bytes.
// Otherwise (mismatched parity) every nibble is shifted into place one at
// a time, so bulk field copies stay linear time in the common aligned
// cases.
func (w *Writer) PutNibbleBuf(src *Reader) error {
	nibbles := src.NibblesLeft()
	if nibbles == 0 {
		return nil
	}
	switch {
	case w.IsAtByteBoundary() && src.IsAtByteBoundary():
		full := nibbles / 2
		for i := 0; i < full; i++ {
			b, err := src.GetU8()
			if err != nil {
				return err
			}
			if err := w.PutU8(b); err != nil {
				return err
			}
		}
		if nibbles%2 == 1 {
			n, err := src.GetNibble()
			if err != nil {
				return err
			}
			if err := w.PutNibble(n); err != nil {
				return err
			}
		}
		return nil
	case !w.IsAtByteBoundary() && !src.IsAtByteBoundary():
		// Both mid-byte with one partial nibble pending in their current
		// byte: consuming exactly one nibble from each completes that
		// byte on both sides and leaves both byte-aligned, so the
		// remainder can fall back to the aligned whole-byte copy above.
		n, err := src.GetNibble()
		if err != nil {
			return err
		}
		if err := w.PutNibble(n); err != nil {
			return err
		}
		remaining := nibbles - 1
		full := remaining / 2
		for i := 0; i < full; i++ {
			b, err := src.GetU8()
			if err != nil {
				return err
			}
			if err := w.PutU8(b); err != nil {
				return err
			}
		}
		if remaining%2 == 1 {
			n, err := src.GetNibble()
			if err != nil {
				return err
			}
			if err := w.PutNibble(n); err != nil {
				return err
			}
		}
		return nil
	default:
		for i := 0; i < nibbles; i++ {
			n, err := src.GetNibble()
			if err != nil {
				return err
			}
			if err := w.PutNibble(n); err != nil {
				return err
			}
		}
		return nil
	}
}

// ReplaceNibble overwrites the nibble at absolute position pos (counted in
// nibbles from the start of buf) without moving the writer's own cursor.
// pos must be strictly before the current cursor -- it exists to patch a
// value that was not yet known when that nibble was first written (for
// instance VecBuilder's count placeholder).
func (w *Writer) ReplaceNibble(pos int, v uint8) error {
	if pos < 0 || pos >= w.NibblePos() {
		return ErrOutOfBounds
	}
	byteIdx := pos / 2
	if pos%2 == 0 {
		w.buf[byteIdx] = (w.buf[byteIdx] & 0x0F) | (v&0xF)<<4
	} else {
		w.buf[byteIdx] = (w.buf[byteIdx] & 0xF0) | (v & 0xF)
	}
	return nil
}

// PutU16Rev reserves two bytes at the tail of the writable window and
// remembers val for Finish to encode as a Vlu16N once every reverse field
// is known. Finish writes the trailer so that a back-to-front reader
// (GetU16Rev) recovers values in the same order they were reserved here:
// the Nth GetU16Rev call returns the Nth PutU16Rev call's value, so a
// Deserialize implementation must call GetU16Rev in the same order its
// matching Serialize called PutU16Rev.
func (w *Writer) PutU16Rev(val uint16) error {
	if err := w.bw.ShrinkLen(16); err != nil {
		return ErrOutOfBoundsReverse
	}
	pos := w.bw.LenBits() / 8
	w.buf[pos] = byte(val >> 8)
	w.buf[pos+1] = byte(val)
	w.reverseVals = append(w.reverseVals, val)
	return nil
}

// Rewind runs fn with the cursor moved back to the absolute nibble position
// toNibble, then restores the original cursor regardless of fn's outcome.
// fn must not write past the position the cursor was rewound from; nothing
// enforces that at runtime.
func (w *Writer) Rewind(toNibble int, fn func(*Writer) error) error {
	if toNibble < 0 || toNibble > w.NibblePos() {
		return ErrOutOfBounds
	}
	saved := w.bw
	nw, err := bitio.NewWriterAt(w.buf, toNibble*4, saved.LenBits()-toNibble*4)
	if err != nil {
		return err
	}
	w.bw = nw
	err = fn(w)
	w.bw = saved
	return err
}

// SaveState snapshots the current cursor.
func (w *Writer) SaveState() WriterState {
	return WriterState{bufID: bufIdentity(w.buf), bitPos: w.bw.BitPos(), lenBits: w.bw.LenBits()}
}

// RestoreState rewinds to a previously saved cursor position. It rejects a
// state saved against a different backing buffer.
func (w *Writer) RestoreState(s WriterState) error {
	if s.bufID != bufIdentity(w.buf) {
		return ErrOutOfBounds
	}
	nw, err := bitio.NewWriterAt(w.buf, s.bitPos, s.lenBits-s.bitPos)
	if err != nil {
		return err
	}
	w.bw = nw
	return nil
}

// AsBitWriter hands the remainder of the writable window to a bit-level
// writer for the duration of fn, for packing fields finer than a nibble
// (1-bit flags, 3-bit tags). fn must leave the bit cursor on a nibble
// boundary; otherwise the nibble cursor cannot take over again and
// ErrUnalignedAccess is returned. On success the nibble cursor resumes
// right after the last bit fn wrote.
func (w *Writer) AsBitWriter(fn func(*bitio.Writer) error) error {
	bw, err := bitio.NewWriterAt(w.buf, w.bw.BitPos(), w.bw.BitsLeft())
	if err != nil {
		return err
	}
	if err := fn(bw); err != nil {
		return err
	}
	if !bw.AtNibbleBoundary() {
		return ErrUnalignedAccess
	}
	nw, err := bitio.NewWriterAt(w.buf, bw.BitPos(), w.bw.LenBits()-bw.BitPos())
	if err != nil {
		return err
	}
	w.bw = nw
	return nil
}

// Finish closes out the writer: any reverse fields reserved via PutU16Rev
// are re-encoded as Vlu16N groups and written forward starting right
// after the current (forward) cursor, with a single zero pad nibble
// inserted up front if needed so the whole trailer ends on a byte
// boundary. Each value's groups are written with putVluGroupsReversed
// (least significant group first, continuation bit toggled to match) so
// that GetU16Rev, walking the finished buffer back-to-front from its true
// end, decodes the most significant group first -- a normal Vlu16N
// accumulation, just traversed toward lower addresses. Slots are visited
// most-recently-reserved first, which places each one physically nearer
// the forward cursor than the slot reserved before it; combined with
// back-to-front reading this is what recovers PutU16Rev's original call
// order on the read side. The returned slice is the prefix of buf
// actually used.
//
// This is what makes the trailing reverse region self-describing without a
// declared count, recoverable by a decoder that only knows the buffer's
// total length.
func (w *Writer) Finish() ([]byte, error) {
	if len(w.reverseVals) == 0 {
		if err := w.AlignToByte(); err != nil {
			return nil, err
		}
		return w.buf[:w.bw.BitPos()/8], nil
	}
	valNibbles := 0
	for _, v := range w.reverseVals {
		valNibbles += vluLenNibbles(uint64(v))
	}
	if err := w.AlignToNibble(); err != nil {
		return nil, err
	}
	parity := valNibbles
	if !w.IsAtByteBoundary() {
		parity++
	}
	needPad := parity%2 != 0
	neededBits := valNibbles * 4
	if needPad {
		neededBits += 4
	}
	// ShrinkLen only ever protected the forward region from colliding with
	// a reservation's raw placeholder bytes; the re-encoded trailer can be
	// narrower or wider than what was reserved, so the true bound here is
	// whatever remains to the buffer's actual end, not the shrunk window.
	fullBits := len(w.buf)*8 - w.bw.BitPos()
	if neededBits > fullBits {
		return nil, ErrOutOfBoundsReverseCompact
	}
	nw, err := bitio.NewWriterAt(w.buf, w.bw.BitPos(), fullBits)
	if err != nil {
		return nil, ErrOutOfBoundsReverseCompact
	}
	w.bw = nw
	if needPad {
		if err := w.PutNibble(0); err != nil {
			return nil, ErrOutOfBoundsReverseCompact
		}
	}
	for i := len(w.reverseVals) - 1; i >= 0; i-- {
		if err := putVluGroupsReversed(w.bw, vlu3bitGroups(uint64(w.reverseVals[i]))); err != nil {
			return nil, ErrOutOfBoundsReverseCompact
		}
	}
	if !w.IsAtByteBoundary() {
		panic("shrinkwrap: reverse trailer left writer unaligned")
	}
	return w.buf[:w.bw.BitPos()/8], nil
}

// String renders what has been written so far as hex, for debugging. A
// trailing half-written byte shows with its unused nibble as written.
func (w *Writer) String() string {
	end := (w.NibblePos() + 1) / 2
	const hexdigits = "0123456789abcdef"
	out := make([]byte, 0, end*2)
	for _, c := range w.buf[:end] {
		out = append(out, hexdigits[c>>4], hexdigits[c&0xF])
	}
	return string(out)
}
