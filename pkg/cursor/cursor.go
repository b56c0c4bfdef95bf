package cursor

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// Cursor is an 8-byte big-endian commit sequence used as a resume position.
type Cursor [8]byte

// Zero is the cursor preceding the first entry of the log.
var Zero Cursor

// FromSeq returns the cursor for a commit sequence.
func FromSeq(seq uint64) Cursor {
	var c Cursor
	binary.BigEndian.PutUint64(c[:], seq)
	return c
}

// Seq returns the commit sequence the cursor encodes.
func (c Cursor) Seq() uint64 { return binary.BigEndian.Uint64(c[:]) }

// Bytes returns the raw 8-byte representation.
func (c Cursor) Bytes() []byte { b := make([]byte, 8); copy(b, c[:]); return b }

// IsZero reports whether the cursor precedes the first entry.
func (c Cursor) IsZero() bool { return c == Zero }

// String returns the fixed-width hex form.
func (c Cursor) String() string { return fmtHex(c[:]) }

// Compare returns -1, 0, 1 based on lexical comparison.
func (c Cursor) Compare(other Cursor) int {
	for i := 0; i < 8; i++ {
		if c[i] < other[i] {
			return -1
		}
		if c[i] > other[i] {
			return 1
		}
	}
	return 0
}

// Parse decodes the fixed-width hex form produced by String. The empty
// string parses to Zero so absent resume parameters need no special case.
func Parse(s string) (Cursor, error) {
	if s == "" {
		return Zero, nil
	}
	if len(s) != 16 {
		return Zero, fmt.Errorf("cursor: want 16 hex digits, got %d", len(s))
	}
	var c Cursor
	if _, err := hex.Decode(c[:], []byte(s)); err != nil {
		return Zero, fmt.Errorf("cursor: %w", err)
	}
	return c, nil
}

// fmtHex is a small, allocation-lean hex encoder for fixed-size cursors.
func fmtHex(b []byte) string {
	const hexdigits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = hexdigits[v>>4]
		out[i*2+1] = hexdigits[v&0x0f]
	}
	return string(out)
}
