// Package cursor provides the opaque resume position handed to log
// consumers.
//
// # Format
//
// A cursor is 8 bytes big-endian holding the commit sequence of the last
// entry the consumer has observed. Byte-wise comparison therefore matches
// commit order, and the fixed-width hex text form sorts the same way.
//
// # Semantics
//
// The zero cursor means "before the first entry"; resuming from it delivers
// the full log. Resuming from any other cursor delivers entries strictly
// after the encoded sequence, so a consumer that persists the cursor of the
// last entry it processed sees every entry exactly once across reconnects.
//
// Usage
//
//	c := cursor.FromSeq(42)
//	s := c.String()          // "000000000000002a"
//	c2, _ := cursor.Parse(s) // round-trips
package cursor
