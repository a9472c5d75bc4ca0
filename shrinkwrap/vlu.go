package shrinkwrap

import "github.com/rony4d/shrinkwrap-go/bitio"

// Vlu16N and Vlu32N pack an unsigned integer into a stream of 4-bit groups:
// the top bit of each nibble is a continuation flag (1 = more groups
// follow), the low 3 bits carry payload, groups are emitted most
// significant group first. Decoders accept non-minimal encodings (extra
// leading zero groups) but reject a stream whose accumulated value would
// not fit the target width -- overflow is what makes a stream malformed,
// not the number of groups read.

// vlu3bitGroups splits v into big-endian 3-bit groups, most significant
// group first, using the minimal number of groups (zero itself is one
// all-zero group).
func vlu3bitGroups(v uint64) []uint8 {
	if v == 0 {
		return []uint8{0}
	}
	var groups []uint8
	for v > 0 {
		groups = append(groups, uint8(v&0x7))
		v >>= 3
	}
	for i, j := 0, len(groups)-1; i < j; i, j = i+1, j-1 {
		groups[i], groups[j] = groups[j], groups[i]
	}
	return groups
}

// vluLenNibbles reports how many nibbles vlu3bitGroups(v) would produce,
// without allocating -- used by Finish to size the reverse-field trailer.
func vluLenNibbles(v uint64) int {
	if v == 0 {
		return 1
	}
	n := 0
	for v > 0 {
		n++
		v >>= 3
	}
	return n
}

func putVluGroups(w *bitio.Writer, groups []uint8) error {
	last := len(groups) - 1
	for i, g := range groups {
		cont := uint8(0)
		if i != last {
			cont = 0x8
		}
		if err := w.PutU4(cont | (g & 0x7)); err != nil {
			return err
		}
	}
	return nil
}

// putVluGroupsReversed writes groups (as produced by vlu3bitGroups, most
// significant group first) physically in the opposite order -- least
// significant group first -- with the continuation bit toggled to match:
// set on every group except the one written first (the LSB group), which
// carries the terminal marker instead of the MSB group. A decoder walking
// this span back-to-front therefore encounters the MSB group first and
// the LSB (terminal) group last, exactly reproducing a normal forward
// Vlu16N decode's accumulation order. Used only by Finish's reverse-u16
// trailer.
func putVluGroupsReversed(w *bitio.Writer, groups []uint8) error {
	last := len(groups) - 1
	for i := last; i >= 0; i-- {
		cont := uint8(0)
		if i != last {
			cont = 0x8
		}
		if err := w.PutU4(cont | (groups[i] & 0x7)); err != nil {
			return err
		}
	}
	return nil
}

func getVlu(r *bitio.Reader, max uint64, overflow error) (uint64, error) {
	var v uint64
	for {
		nib, err := r.GetU4()
		if err != nil {
			return 0, err
		}
		v = (v << 3) | uint64(nib&0x7)
		if v > max {
			return 0, overflow
		}
		if nib&0x8 == 0 {
			return v, nil
		}
	}
}

// Vlu16NLenNibbles reports exactly how many nibbles PutVlu16N(v) writes.
// The estimate is always exact, so callers can plan buffer space with it.
func Vlu16NLenNibbles(v uint16) int { return vluLenNibbles(uint64(v)) }

// Vlu32NLenNibbles reports exactly how many nibbles PutVlu32N(v) writes.
func Vlu32NLenNibbles(v uint32) int { return vluLenNibbles(uint64(v)) }

// PutVlu16N writes v as a forward Vlu16N nibble group sequence.
func (w *Writer) PutVlu16N(v uint16) error {
	return putVluGroups(w.bw, vlu3bitGroups(uint64(v)))
}

// PutVlu32N writes v as a forward Vlu32N nibble group sequence.
func (w *Writer) PutVlu32N(v uint32) error {
	return putVluGroups(w.bw, vlu3bitGroups(uint64(v)))
}

// GetVlu16N reads a forward Vlu16N nibble group sequence.
func (r *Reader) GetVlu16N() (uint16, error) {
	v, err := getVlu(r.br, 0xFFFF, ErrMalformedVlu16N)
	return uint16(v), err
}

// GetVlu32N reads a forward Vlu32N nibble group sequence.
func (r *Reader) GetVlu32N() (uint32, error) {
	v, err := getVlu(r.br, 0xFFFFFFFF, ErrMalformedVlu32N)
	return uint32(v), err
}
