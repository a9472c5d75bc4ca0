// Package shrinkwrap implements the nibble-addressable wire codec used by
// collaborator types to serialize themselves into a borrowed byte slice:
// Vlu16N/Vlu32N variable-length integers, a reverse-written trailer field,
// a length-prefixed vector builder, and the Serialize/Deserialize pair that
// ties them together. It is built directly on top of package bitio, which
// owns the bit-level cursor arithmetic.
package shrinkwrap

import (
	"errors"

	"github.com/rony4d/shrinkwrap-go/bitio"
)

// Error values are a flat, comparable enumeration, not a type hierarchy --
// callers distinguish conditions with errors.Is/==. The two conditions the
// underlying bit cursor can also report are aliased to bitio's values, so
// a bounds failure compares equal no matter which layer detected it.
var (
	// ErrOutOfBounds is returned when a forward read or write runs past the
	// end of the writable/readable window.
	ErrOutOfBounds = bitio.ErrOutOfBounds
	// ErrOutOfBoundsReverse is returned when there is no room left to
	// reserve a reverse field.
	ErrOutOfBoundsReverse = errors.New("shrinkwrap: out of bounds (reverse)")
	// ErrOutOfBoundsReverseCompact is returned when Finish has no room
	// between the forward cursor and the end of the buffer for the
	// re-encoded reverse trailer, including its parity pad nibble.
	ErrOutOfBoundsReverseCompact = errors.New("shrinkwrap: out of bounds (reverse compact)")
	// ErrMalformedVlu16N is returned when a Vlu16N nibble stream decodes to
	// a value that does not fit in 16 bits.
	ErrMalformedVlu16N = errors.New("shrinkwrap: malformed Vlu16N")
	// ErrMalformedVlu32N is returned when a Vlu32N nibble stream decodes to
	// a value that does not fit in 32 bits.
	ErrMalformedVlu32N = errors.New("shrinkwrap: malformed Vlu32N")
	// ErrUnalignedAccess is returned by operations that require the cursor
	// to already sit on a byte or nibble boundary, such as AsBitWriter when
	// its closure leaves the bit cursor mid-nibble.
	ErrUnalignedAccess = bitio.ErrUnalignedAccess
	// ErrInvalidSizedEstimate is returned in strict mode when a type's
	// declared Sized(n) estimate does not match what it actually wrote.
	ErrInvalidSizedEstimate = errors.New("shrinkwrap: invalid sized estimate")
	// ErrVectorCorruption is returned by VecBuilder.Finish when the real
	// element count cannot be back-patched into the placeholder reserved
	// for it (it needs more nibbles than were reserved).
	ErrVectorCorruption = errors.New("shrinkwrap: vector corruption")
)
