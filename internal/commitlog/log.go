package commitlog

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"

	pebblestore "github.com/hyperrixel/logos/internal/storage/pebble"
)

// ErrNotFound is returned for sequences outside the committed range.
var ErrNotFound = errors.New("entry not found")

// ErrPersistenceUnavailable reports a failed durable write. The attempt
// assigned no sequence; the caller may retry the whole commit.
var ErrPersistenceUnavailable = errors.New("persistence unavailable")

// EncodeFunc renders the durable payload once the commit stamp is known.
// It runs inside the commit gate and must be quick.
type EncodeFunc func(seq uint64, committedAtMs int64) ([]byte, error)

// AppendRequest carries one entry through the commit gate.
type AppendRequest struct {
	Encode EncodeFunc
	// Tags are admitted into the tag catalog on first use.
	Tags []string
	// RevisionRoot, when nonzero, names the chain root this entry revises;
	// the gate updates the revision index in the same batch.
	RevisionRoot uint64
}

// Log is the append-only commit log. The embedded mutex is the commit gate:
// the single point where global order is decided.
type Log struct {
	db *pebblestore.DB

	mu      sync.Mutex
	lastSeq uint64
	lastMs  int64

	tagMu sync.RWMutex
	tags  map[string]uint64 // tag -> first seq

	nowMs func() int64
}

// Open initializes the log, loading the last sequence and the tag catalog
// from the store.
func Open(db *pebblestore.DB) (*Log, error) {
	l := &Log{
		db:    db,
		tags:  make(map[string]uint64),
		nowMs: func() int64 { return time.Now().UnixMilli() },
	}
	meta, err := db.Get(KeyMeta())
	switch {
	case err == nil:
		if len(meta) >= 8 {
			l.lastSeq = binary.BigEndian.Uint64(meta[:8])
		}
		if len(meta) >= 16 {
			l.lastMs = int64(binary.BigEndian.Uint64(meta[8:16]))
		}
	case errors.Is(err, pebblestore.ErrKeyNotFound):
		// fresh log
	default:
		return nil, err
	}
	if err := l.loadTagCatalog(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Log) loadTagCatalog() error {
	hi := append(append([]byte(nil), tagPrefix...), 0xff)
	iter, err := l.db.NewIter(&pebble.IterOptions{LowerBound: tagPrefix, UpperBound: hi})
	if err != nil {
		return err
	}
	defer iter.Close()
	for ok := iter.First(); ok; ok = iter.Next() {
		tag := string(iter.Key()[len(tagPrefix):])
		var first uint64
		if v := iter.Value(); len(v) >= 8 {
			first = binary.BigEndian.Uint64(v[:8])
		}
		l.tags[tag] = first
	}
	return nil
}

// Append commits one entry through the gate: assign the next contiguous
// sequence, stamp the commit timestamp, encode, and write the record plus
// catalog and revision index as one durable batch. The sequence advances
// only after the store acknowledges, so a failed commit leaves no gap.
func (l *Log) Append(ctx context.Context, req AppendRequest) (uint64, int64, error) {
	if req.Encode == nil {
		return 0, 0, errors.New("commitlog: AppendRequest.Encode is required")
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	seq := l.lastSeq + 1
	ms := l.nowMs()
	if ms < l.lastMs {
		// pin on clock regression so commit times stay monotonic
		ms = l.lastMs
	}

	payload, err := req.Encode(seq, ms)
	if err != nil {
		return 0, 0, err
	}

	b := l.db.NewBatch()
	defer b.Close()

	record := EncodeRecord(EncodeHeader(ms), payload)
	if err := b.Set(KeyEntry(seq), record, nil); err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}

	var meta [16]byte
	binary.BigEndian.PutUint64(meta[:8], seq)
	binary.BigEndian.PutUint64(meta[8:], uint64(ms))
	if err := b.Set(KeyMeta(), meta[:], nil); err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}

	var seqBE [8]byte
	binary.BigEndian.PutUint64(seqBE[:], seq)

	var newTags []string
	l.tagMu.RLock()
	for _, tag := range req.Tags {
		if _, known := l.tags[tag]; !known {
			newTags = append(newTags, tag)
		}
	}
	l.tagMu.RUnlock()
	for _, tag := range newTags {
		if err := b.Set(KeyTag(tag), seqBE[:], nil); err != nil {
			return 0, 0, fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
		}
	}

	if req.RevisionRoot != 0 {
		var rootBE [8]byte
		binary.BigEndian.PutUint64(rootBE[:], req.RevisionRoot)
		if err := b.Set(KeyRevRoot(seq), rootBE[:], nil); err != nil {
			return 0, 0, fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
		}
		if err := b.Set(KeyRevHead(req.RevisionRoot), seqBE[:], nil); err != nil {
			return 0, 0, fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
		}
	}

	if err := l.db.CommitBatch(ctx, b); err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}

	// The store acknowledged; only now does the log advance.
	l.lastSeq = seq
	l.lastMs = ms
	if len(newTags) > 0 {
		l.tagMu.Lock()
		for _, tag := range newTags {
			l.tags[tag] = seq
		}
		l.tagMu.Unlock()
	}
	return seq, ms, nil
}

// LastSeq returns the highest committed sequence, 0 for an empty log.
func (l *Log) LastSeq() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastSeq
}

// Stats describes the committed range. Entries equals LastSeq because the
// log never deletes.
type Stats struct {
	FirstSeq    uint64
	LastSeq     uint64
	Entries     uint64
	ApproxBytes uint64
}

// Stats reports the committed range and approximate on-disk size.
func (l *Log) Stats() (Stats, error) {
	last := l.LastSeq()
	s := Stats{LastSeq: last, Entries: last}
	if last > 0 {
		s.FirstSeq = 1
	}
	bytes, err := l.db.EstimateDiskUsage(KeyEntry(0), append(KeyEntry(^uint64(0)), 0x00))
	if err != nil {
		return s, err
	}
	s.ApproxBytes = bytes
	return s, nil
}
