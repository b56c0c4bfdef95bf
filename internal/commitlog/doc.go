// Package commitlog implements the append-only commit log: the single
// source of truth for global entry ordering.
//
// # Overview
//
// Entries are committed one at a time through a mutex gate that assigns the
// next contiguous sequence (from 1), stamps the commit timestamp and writes
// the record, the tag catalog and the revision index in one durable batch.
// Storage failures leave the sequence untouched, so the log never exposes a
// gap. Entries are never deleted, only superseded by later revisions that
// reference the original.
//
// Keys are lexicographically ordered in Pebble for efficient range scans:
//   - log/m               (meta: lastSeq, last commit ms)
//   - log/e/{seq_be8}     (records)
//   - tag/{tag}           (catalog: first seq that used the tag)
//   - rev/root/{seq_be8}  (chain root for a revision entry)
//   - rev/head/{root_be8} (current head of a revision chain)
//
// Records are stored as: varint headerLen | header | payload |
// crc32c(header|payload). The header carries the commit timestamp (8 bytes
// big-endian ms); the payload is the canonical encoded entry.
//
// API surface (internal)
//
//	l, _ := commitlog.Open(db)
//	seq, ms, _ := l.Append(ctx, commitlog.AppendRequest{
//		Encode: func(seq uint64, ms int64) ([]byte, error) { ... },
//		Tags:   []string{"ops/eva1"},
//	})
//
//	item, _ := l.Get(seq)
//	items, next := l.ReadRange(commitlog.ReadOptions{FromSeq: 1, Limit: 100})
//	_ = next // resume position
//
//	// Time-anchored backfill start
//	start := l.StartSeqAtTime(anchorMs)
//
// The commit timestamp is pinned monotonic: if the wall clock regresses the
// gate reuses the last committed millisecond, so time-anchored lookups can
// binary search commit headers.
package commitlog
