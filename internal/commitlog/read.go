package commitlog

import (
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"

	pebblestore "github.com/hyperrixel/logos/internal/storage/pebble"
)

// ReadOptions bounds a range read. FromSeq and ToSeq are inclusive; zero
// means unbounded on that side. Limit 0 means no limit.
type ReadOptions struct {
	FromSeq uint64
	ToSeq   uint64
	Limit   int
	Reverse bool
}

// Item is one committed record.
type Item struct {
	Seq           uint64
	CommittedAtMs int64
	Payload       []byte
}

// ReadRange returns up to Limit items inside the bounds, in commit order
// (or reverse). The second result is the sequence to resume from, 0 when
// the range is exhausted.
func (l *Log) ReadRange(opts ReadOptions) ([]Item, uint64) {
	low := KeyEntry(0)
	if opts.FromSeq > 0 {
		low = KeyEntry(opts.FromSeq)
	}
	hiSeq := ^uint64(0)
	if opts.ToSeq > 0 {
		hiSeq = opts.ToSeq
	}
	hi := append(KeyEntry(hiSeq), 0x00)

	capHint := opts.Limit
	if capHint <= 0 || capHint > 64 {
		capHint = 64
	}
	items := make([]Item, 0, capHint)
	iter, err := l.db.NewIter(&pebble.IterOptions{LowerBound: low, UpperBound: hi})
	if err != nil {
		return items, 0
	}
	defer iter.Close()

	position, advance := iter.First, iter.Next
	if opts.Reverse {
		position, advance = iter.Last, iter.Prev
	}

	ok := position()
	for ok && (opts.Limit == 0 || len(items) < opts.Limit) {
		seq := seqFromEntryKey(iter.Key())
		if dec, okDec := DecodeRecord(iter.Value()); okDec {
			ts, _ := HeaderTimestamp(dec.Header)
			items = append(items, Item{Seq: seq, CommittedAtMs: ts, Payload: dec.Payload})
		}
		ok = advance()
	}
	var next uint64
	if ok {
		next = seqFromEntryKey(iter.Key())
	}
	return items, next
}

// Get returns the record at seq, or ErrNotFound.
func (l *Log) Get(seq uint64) (Item, error) {
	if seq == 0 {
		return Item{}, ErrNotFound
	}
	v, err := l.db.Get(KeyEntry(seq))
	if errors.Is(err, pebblestore.ErrKeyNotFound) {
		return Item{}, ErrNotFound
	}
	if err != nil {
		return Item{}, err
	}
	dec, ok := DecodeRecord(v)
	if !ok {
		return Item{}, fmt.Errorf("entry %d: corrupt record", seq)
	}
	ts, _ := HeaderTimestamp(dec.Header)
	return Item{Seq: seq, CommittedAtMs: ts, Payload: dec.Payload}, nil
}

// StartSeqAtTime returns the first sequence whose commit timestamp is at or
// after atMs: a binary search over commit headers, valid because commit
// times are monotonic. An anchor past the end returns LastSeq+1 (live
// only); an empty log returns 1.
func (l *Log) StartSeqAtTime(atMs int64) uint64 {
	last := l.LastSeq()
	if last == 0 {
		return 1
	}
	lo, hi := uint64(1), last+1
	for lo < hi {
		mid := lo + (hi-lo)/2
		item, err := l.Get(mid)
		if err != nil {
			return lo
		}
		if item.CommittedAtMs < atMs {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}
