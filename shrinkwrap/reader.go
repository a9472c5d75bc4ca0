package shrinkwrap

import "github.com/rony4d/shrinkwrap-go/bitio"

// Reader reads nibble-by-nibble (and, through BitReader, bit-by-bit) from a
// byte slice borrowed from the caller. Multiple readers may share the same
// backing slice; a Reader never mutates it. A Reader may expose a bounded
// sub-window of its buffer (see SubReader): startNib/lenNib delimit that
// window in nibbles from the start of buf.
type Reader struct {
	br       *bitio.Reader
	buf      []byte
	startNib int
	lenNib   int // window end, in nibbles from buf's start
	revPos   int // next nibble index to consume going backward, or -1 before the first GetU16Rev call
}

// ReaderState is an opaque cursor snapshot, see WriterState.
type ReaderState struct {
	bufID   uintptr
	bitPos  int
	lenBits int
}

// NewReader wraps the whole of buf for nibble-level reading.
func NewReader(buf []byte) *Reader {
	return &Reader{br: bitio.NewReader(buf), buf: buf, lenNib: len(buf) * 2, revPos: -1}
}

// nibbleAt returns the nibble at absolute position pos (counted in
// nibbles from the start of buf).
func nibbleAt(buf []byte, pos int) uint8 {
	b := buf[pos/2]
	if pos%2 == 0 {
		return b >> 4
	}
	return b & 0xF
}

// NibblePos returns the current cursor position in nibbles.
func (r *Reader) NibblePos() int { return r.br.BitPos() / 4 }

// NibblesLeft returns how many whole nibbles remain readable ahead of the
// cursor, up to the end of the window. Nibbles already consumed from the
// tail by GetU16Rev are still counted.
func (r *Reader) NibblesLeft() int { return r.br.BitsLeft() / 4 }

// IsAtByteBoundary reports whether the cursor sits at the start of a byte.
func (r *Reader) IsAtByteBoundary() bool { return r.br.AtByteBoundary() }

// IsAtEnd reports whether the readable region is exhausted.
func (r *Reader) IsAtEnd() bool { return r.br.BitsLeft() == 0 }

// GetBool reads a single bit flag.
func (r *Reader) GetBool() (bool, error) { return r.br.GetBool() }

// GetNibble reads the next 4 bits.
func (r *Reader) GetNibble() (uint8, error) { return r.br.GetU4() }

// GetU8 reads a full byte starting at the next nibble boundary. It does not
// require byte alignment: mid-byte, the value is synthesized from two
// nibbles spanning the byte boundary.
func (r *Reader) GetU8() (uint8, error) {
	if err := r.br.AlignToNibble(); err != nil {
		return 0, err
	}
	return r.br.GetUpTo8(8)
}

// GetU16BE reads two big-endian bytes.
func (r *Reader) GetU16BE() (uint16, error) {
	if r.NibblesLeft() < 4 {
		return 0, ErrOutOfBounds
	}
	hi, err := r.GetU8()
	if err != nil {
		return 0, err
	}
	lo, err := r.GetU8()
	if err != nil {
		return 0, err
	}
	return uint16(hi)<<8 | uint16(lo), nil
}

// GetU32BE reads four big-endian bytes.
func (r *Reader) GetU32BE() (uint32, error) {
	if r.NibblesLeft() < 8 {
		return 0, ErrOutOfBounds
	}
	hi, err := r.GetU16BE()
	if err != nil {
		return 0, err
	}
	lo, err := r.GetU16BE()
	if err != nil {
		return 0, err
	}
	return uint32(hi)<<16 | uint32(lo), nil
}

// Skip advances the cursor past n whole nibbles without decoding them.
func (r *Reader) Skip(n int) error {
	if n < 0 || r.NibblesLeft() < n {
		return ErrOutOfBounds
	}
	if err := r.br.AlignToNibble(); err != nil {
		return err
	}
	nr, err := bitio.NewReaderAt(r.buf, r.br.BitPos()+n*4, r.br.LenBits()-r.br.BitPos()-n*4)
	if err != nil {
		return err
	}
	r.br = nr
	return nil
}

// AlignToNibble skips any pending bits before the next nibble boundary.
func (r *Reader) AlignToNibble() error { return r.br.AlignToNibble() }

// AlignToByte skips forward to the next byte boundary, consuming up to one
// padding nibble (the zero nibble a writer's own AlignToByte inserted).
func (r *Reader) AlignToByte() error { return r.br.AlignToByte() }

// GetSlice aligns to the next byte boundary (consuming the pad nibble the
// writer inserted, if any) and returns the next n bytes. The returned slice
// shares memory with the reader's backing buffer.
func (r *Reader) GetSlice(n int) ([]byte, error) {
	if err := r.br.AlignToByte(); err != nil {
		return nil, err
	}
	if n < 0 || r.NibblesLeft() < n*2 {
		return nil, ErrOutOfBounds
	}
	start := r.br.BitPos() / 8
	if err := r.Skip(n * 2); err != nil {
		return nil, err
	}
	return r.buf[start : start+n], nil
}

// SubReader carves out an independent reader over the next n nibbles,
// sharing the backing buffer, and advances this reader past all n of them
// whether or not the sub-reader is ever fully consumed.
func (r *Reader) SubReader(nNibbles int) (*Reader, error) {
	if nNibbles < 0 || r.NibblesLeft() < nNibbles {
		return nil, ErrOutOfBounds
	}
	if err := r.br.AlignToNibble(); err != nil {
		return nil, err
	}
	start := r.NibblePos()
	br, err := bitio.NewReaderAt(r.buf, start*4, nNibbles*4)
	if err != nil {
		return nil, err
	}
	if err := r.Skip(nNibbles); err != nil {
		return nil, err
	}
	return &Reader{br: br, buf: r.buf, startNib: start, lenNib: start + nNibbles, revPos: -1}, nil
}

// BitReader carves out a bit-level reader covering exactly nNibbles*4 bits
// starting at the current nibble, for fields packed finer than a nibble,
// and advances this reader past those nibbles.
func (r *Reader) BitReader(nNibbles int) (*bitio.Reader, error) {
	if nNibbles < 0 || r.NibblesLeft() < nNibbles {
		return nil, ErrOutOfBounds
	}
	if err := r.br.AlignToNibble(); err != nil {
		return nil, err
	}
	br, err := bitio.NewReaderAt(r.buf, r.br.BitPos(), nNibbles*4)
	if err != nil {
		return nil, err
	}
	if err := r.Skip(nNibbles); err != nil {
		return nil, err
	}
	return br, nil
}

// GetU16Rev reads the next reverse-written field by walking the trailer
// back-to-front from the end of the readable window, one Vlu16N group at a
// time. The first call anchors the walk at the window's last nibble; each
// call consumes nibbles moving toward lower addresses, stopping at the
// first nibble whose continuation bit is clear. Finish arranges each
// value's groups (via putVluGroupsReversed) so this traversal meets the
// most significant group first, exactly like a normal forward Vlu16N
// decode -- and writes slots most-recently-reserved-first, physically
// nearest the forward cursor, so reading back-to-front from the tail
// recovers PutU16Rev's original call order: the Nth GetU16Rev call returns
// the Nth PutU16Rev call's value.
func (r *Reader) GetU16Rev() (uint16, error) {
	if r.revPos < 0 {
		r.revPos = r.lenNib
	}
	var v uint64
	for {
		if r.revPos <= r.startNib {
			return 0, ErrOutOfBoundsReverse
		}
		r.revPos--
		nib := nibbleAt(r.buf, r.revPos)
		v = (v << 3) | uint64(nib&0x7)
		if v > 0xFFFF {
			return 0, ErrMalformedVlu16N
		}
		if nib&0x8 == 0 {
			return uint16(v), nil
		}
	}
}

// Rewind resets the cursor to the start of the reader's window.
func (r *Reader) Rewind() {
	nr, err := bitio.NewReaderAt(r.buf, r.startNib*4, (r.lenNib-r.startNib)*4)
	if err != nil {
		panic(err)
	}
	r.br = nr
	r.revPos = -1
}

// SaveState snapshots the current cursor.
func (r *Reader) SaveState() ReaderState {
	return ReaderState{bufID: bufIdentity(r.buf), bitPos: r.br.BitPos(), lenBits: r.br.LenBits()}
}

// RestoreState rewinds to a previously saved cursor position. It rejects a
// state saved against a different backing buffer.
func (r *Reader) RestoreState(s ReaderState) error {
	if s.bufID != bufIdentity(r.buf) {
		return ErrOutOfBounds
	}
	nr, err := bitio.NewReaderAt(r.buf, s.bitPos, s.lenBits-s.bitPos)
	if err != nil {
		return err
	}
	r.br = nr
	return nil
}

// String renders the unread portion of the window as hex, for debugging.
func (r *Reader) String() string {
	start := r.br.BitPos() / 8
	end := (r.lenNib + 1) / 2
	if start > end {
		start = end
	}
	b := r.buf[start:end]
	const hexdigits = "0123456789abcdef"
	out := make([]byte, 0, len(b)*2)
	for _, c := range b {
		out = append(out, hexdigits[c>>4], hexdigits[c&0xF])
	}
	return string(out)
}
