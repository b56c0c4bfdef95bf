package commitlog

import (
	"encoding/binary"
	"errors"

	pebblestore "github.com/hyperrixel/logos/internal/storage/pebble"
)

// Root returns the revision-chain root for a committed sequence. Entries
// that are not revisions are their own root. Root identity never changes
// once an entry is committed.
func (l *Log) Root(seq uint64) (uint64, error) {
	if seq == 0 || seq > l.LastSeq() {
		return 0, ErrNotFound
	}
	v, err := l.db.Get(KeyRevRoot(seq))
	if errors.Is(err, pebblestore.ErrKeyNotFound) {
		return seq, nil
	}
	if err != nil {
		return 0, err
	}
	if len(v) >= 8 {
		return binary.BigEndian.Uint64(v[:8]), nil
	}
	return seq, nil
}

// Head returns the current head of seq's revision chain: the latest
// committed revision, or seq itself when the chain was never extended.
// This is the "current view" lookup.
func (l *Log) Head(seq uint64) (uint64, error) {
	root, err := l.Root(seq)
	if err != nil {
		return 0, err
	}
	v, err := l.db.Get(KeyRevHead(root))
	if errors.Is(err, pebblestore.ErrKeyNotFound) {
		return root, nil
	}
	if err != nil {
		return 0, err
	}
	if len(v) >= 8 {
		return binary.BigEndian.Uint64(v[:8]), nil
	}
	return root, nil
}
