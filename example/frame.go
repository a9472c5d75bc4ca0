// Package example provides a small, concrete payload type exercising every
// primitive in package shrinkwrap end to end: a version tag, a Vlu4Vec of
// variable-length byte-string arguments, and a reverse-written trailing
// field finalized at Finish.
package example

import (
	"errors"

	"github.com/rony4d/shrinkwrap-go/shrinkwrap"
)

// MaxVersion is the highest Frame wire version this package understands.
const MaxVersion = 1

// ErrUnknownVersion is returned when a Frame's version tag is newer than
// this package understands; the rest of the payload cannot be trusted to
// follow a layout this decoder knows.
var ErrUnknownVersion = errors.New("example: unknown frame version")

// Arg is one variable-length byte-string argument inside a Frame. It
// carries its own Vlu32N length prefix since Vlu4Vec elements are not
// individually length-framed by the vector codec itself.
type Arg []byte

// SerializeShrinkWrap writes the argument as Vlu32N(len) followed by its
// raw bytes.
func (a Arg) SerializeShrinkWrap(w *shrinkwrap.Writer) error {
	if err := w.PutVlu32N(uint32(len(a))); err != nil {
		return err
	}
	return w.PutSlice(a)
}

// DeserializeShrinkWrap reads an Arg written by SerializeShrinkWrap.
func (a *Arg) DeserializeShrinkWrap(r *shrinkwrap.Reader) error {
	n, err := r.GetVlu32N()
	if err != nil {
		return err
	}
	b, err := r.GetSlice(int(n))
	if err != nil {
		return err
	}
	*a = append(make([]byte, 0, len(b)), b...)
	return nil
}

// Frame is a minimal, versioned payload: a tag byte, a vector of
// arguments, and a reverse-written checksum-length trailer recording how
// many of the argument bytes a caller should checksum. It gives the vector
// builder and the Serializer/Deserializer pair a realistic collaborator to
// round-trip.
type Frame struct {
	Version     uint8
	Args        []Arg
	ChecksumLen uint16
}

// SerializeShrinkWrap writes the frame: version byte, Vlu4Vec of args,
// then the reverse checksum-length trailer. The trailer is reserved after
// the args are written but is physically finalized by Writer.Finish.
func (f *Frame) SerializeShrinkWrap(w *shrinkwrap.Writer) error {
	if err := w.PutU8(f.Version); err != nil {
		return err
	}
	elems := make([]shrinkwrap.Serializer, len(f.Args))
	for i, a := range f.Args {
		elems[i] = a
	}
	if err := shrinkwrap.WriteVlu4Vec(w, elems); err != nil {
		return err
	}
	return w.PutU16Rev(f.ChecksumLen)
}

// DeserializeShrinkWrap reads a frame written by SerializeShrinkWrap.
// Rejecting an unknown version here is what lets a future, wire-
// incompatible Frame version fail fast instead of silently misreading a
// field layout it doesn't understand.
func (f *Frame) DeserializeShrinkWrap(r *shrinkwrap.Reader) error {
	v, err := r.GetU8()
	if err != nil {
		return err
	}
	if v > MaxVersion {
		return ErrUnknownVersion
	}
	f.Version = v

	elems, err := shrinkwrap.ReadVlu4Vec(r, func() shrinkwrap.Deserializer { return new(Arg) })
	if err != nil {
		return err
	}
	f.Args = make([]Arg, len(elems))
	for i, e := range elems {
		f.Args[i] = *e.(*Arg)
	}

	f.ChecksumLen, err = r.GetU16Rev()
	return err
}

// ShrinkWrapSize reports an upper bound: version byte, worst-case Vlu32N
// element count, then for each argument a worst-case Vlu32N length prefix,
// a possible alignment pad nibble and its bytes, plus the checksum
// trailer. Frame's size is data-dependent, so it can only ever be a bound,
// never an exact Sized estimate.
func (f *Frame) ShrinkWrapSize() shrinkwrap.Size {
	nibbles := 2  // version byte
	nibbles += 11 // worst-case Vlu32N element count
	for _, a := range f.Args {
		nibbles += 11 // worst-case Vlu32N length prefix
		nibbles++     // pad nibble PutSlice may insert to reach a byte boundary
		nibbles += len(a) * 2
	}
	nibbles += 6 + 1 // checksum trailer: worst-case Vlu16N plus Finish's parity pad nibble
	return shrinkwrap.UnsizedBound(nibbles)
}
