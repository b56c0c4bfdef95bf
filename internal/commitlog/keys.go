package commitlog

import (
	"encoding/binary"
)

// Keyspace helpers for Pebble keys.
//
// Layout (byte-wise, lexicographically sortable):
// - log/m               (meta: lastSeq BE8 | lastMs BE8)
// - log/e/{seq_be8}     (records)
// - tag/{tag}           (first seq BE8)
// - rev/root/{seq_be8}  (root seq BE8)
// - rev/head/{root_be8} (head seq BE8)

var (
	metaKey       = []byte("log/m")
	entryPrefix   = []byte("log/e/")
	tagPrefix     = []byte("tag/")
	revRootPrefix = []byte("rev/root/")
	revHeadPrefix = []byte("rev/head/")
)

func appendBE8(dst []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(dst, b[:]...)
}

// KeyMeta returns the log metadata key.
func KeyMeta() []byte { return metaKey }

// KeyEntry builds the record key with a big-endian sequence for proper
// ordering.
func KeyEntry(seq uint64) []byte {
	k := make([]byte, 0, len(entryPrefix)+8)
	k = append(k, entryPrefix...)
	return appendBE8(k, seq)
}

// KeyTag builds the tag catalog key.
func KeyTag(tag string) []byte {
	k := make([]byte, 0, len(tagPrefix)+len(tag))
	k = append(k, tagPrefix...)
	return append(k, tag...)
}

// KeyRevRoot builds the chain-root key for a revision entry.
func KeyRevRoot(seq uint64) []byte {
	k := make([]byte, 0, len(revRootPrefix)+8)
	k = append(k, revRootPrefix...)
	return appendBE8(k, seq)
}

// KeyRevHead builds the chain-head key for a root entry.
func KeyRevHead(root uint64) []byte {
	k := make([]byte, 0, len(revHeadPrefix)+8)
	k = append(k, revHeadPrefix...)
	return appendBE8(k, root)
}

// seqFromEntryKey extracts the sequence from a record key.
func seqFromEntryKey(key []byte) uint64 {
	if len(key) < 8 {
		return 0
	}
	return binary.BigEndian.Uint64(key[len(key)-8:])
}
