package shrinkwrap

// VecBuilder assembles a Vlu4Vec when the element count is not known ahead
// of time: Vlu32N(count) followed by each element's own encoding back to
// back, with no per-element length prefix. Since the count's own nibble
// width depends on a value only known once every element has been
// appended, the builder reserves a fixed-width placeholder sized to the
// writer's remaining capacity up front, writes every element directly into
// the destination writer at its true final position, and back-patches the
// placeholder at Finish with a zero-padded (non-minimal, but wire-valid --
// see vlu.go) Vlu32N. Elements are not staged into an independent scratch
// buffer: a scratch that starts its own nibble numbering at zero would
// make every alignment decision inside an element's own Serialize
// (PutSlice and friends, which align to a byte boundary) wrong by up to
// one nibble whenever the count's real width at the destination's
// position doesn't match the scratch's assumed starting parity -- writing
// elements directly keeps every alignment decision correct by
// construction.
type VecBuilder struct {
	w         *Writer
	countPos  int
	reservedW int
	count     uint32
}

// NewVecBuilder starts a vector that will be written into w. The
// placeholder reserved for the count is sized from w's own remaining
// capacity at this point: every element that writes at least one nibble
// uses up capacity, so a count of such elements cannot outgrow it.
// Elements that write nothing can push the count past it; Finish reports
// that as ErrVectorCorruption.
func NewVecBuilder(w *Writer) (*VecBuilder, error) {
	reservedW := vluLenNibbles(uint64(w.NibblesLeft()))
	countPos := w.NibblePos()
	for i := 0; i < reservedW; i++ {
		if err := w.PutNibble(0); err != nil {
			return nil, err
		}
	}
	return &VecBuilder{w: w, countPos: countPos, reservedW: reservedW}, nil
}

// Append serializes one element directly into the destination writer.
func (vb *VecBuilder) Append(elem Serializer) error {
	if err := elem.SerializeShrinkWrap(vb.w); err != nil {
		return err
	}
	vb.count++
	return nil
}

// Unfold repeatedly calls next and appends every element it returns,
// stopping at the first (nil, false) -- the natural shape for streaming an
// unknown number of elements from a generator instead of a pre-built slice.
func (vb *VecBuilder) Unfold(next func() (Serializer, bool)) error {
	for {
		elem, ok := next()
		if !ok {
			return nil
		}
		if err := vb.Append(elem); err != nil {
			return err
		}
	}
}

// Finish back-patches the reserved count placeholder with the real element
// count, encoded as a Vlu32N zero-padded on the left to exactly fill the
// reserved width. If the count's minimal encoding needs more nibbles than
// were reserved, Finish fails with ErrVectorCorruption -- defensive, since
// the placeholder is sized from the writer's capacity at construction
// time, not from the eventual count.
func (vb *VecBuilder) Finish() error {
	groups := vlu3bitGroups(uint64(vb.count))
	if len(groups) > vb.reservedW {
		return ErrVectorCorruption
	}
	padded := make([]uint8, vb.reservedW)
	copy(padded[vb.reservedW-len(groups):], groups)
	last := vb.reservedW - 1
	for i, g := range padded {
		cont := uint8(0)
		if i != last {
			cont = 0x8
		}
		if err := vb.w.ReplaceNibble(vb.countPos+i, cont|(g&0x7)); err != nil {
			return ErrVectorCorruption
		}
	}
	return nil
}

// WriteVlu4Vec writes a Vlu4Vec for a caller that already has every element
// collected in a slice: the count is known upfront, so it is written as a
// single minimal Vlu32N directly, followed by each element in turn -- no
// placeholder or back-patch needed, unlike VecBuilder/Unfold's
// incremental, unknown-length path.
func WriteVlu4Vec(w *Writer, elems []Serializer) error {
	if err := w.PutVlu32N(uint32(len(elems))); err != nil {
		return err
	}
	for _, e := range elems {
		if err := e.SerializeShrinkWrap(w); err != nil {
			return err
		}
	}
	return nil
}

// ReadVlu4Vec reads a Vlu32N count followed by that many elements, each
// produced by newElem and then decoded in place. newElem is called once
// per element so callers can return freshly constructed values of their
// own concrete type. Works identically whether the vector was written by
// WriteVlu4Vec or by VecBuilder, since a zero-padded Vlu32N count decodes
// the same as a minimal one.
func ReadVlu4Vec(r *Reader, newElem func() Deserializer) ([]Deserializer, error) {
	count, err := r.GetVlu32N()
	if err != nil {
		return nil, err
	}
	out := make([]Deserializer, 0, count)
	for i := uint32(0); i < count; i++ {
		elem := newElem()
		if err := elem.DeserializeShrinkWrap(r); err != nil {
			return nil, err
		}
		out = append(out, elem)
	}
	return out, nil
}
