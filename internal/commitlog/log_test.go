package commitlog

import (
	"context"
	"fmt"
	"sync"
	"testing"

	pebblestore "github.com/hyperrixel/logos/internal/storage/pebble"
)

func newTestDB(t *testing.T, dir string) *pebblestore.DB {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: dir, Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	return db
}

func newTestLog(t *testing.T) *Log {
	t.Helper()
	db := newTestDB(t, t.TempDir())
	t.Cleanup(func() { _ = db.Close() })
	l, err := Open(db)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	return l
}

// appendPlain commits one record whose payload records its stamp.
func appendPlain(t *testing.T, l *Log, tags ...string) uint64 {
	t.Helper()
	seq, _, err := l.Append(context.Background(), AppendRequest{
		Encode: func(seq uint64, ms int64) ([]byte, error) {
			return []byte(fmt.Sprintf("p:%d:%d", seq, ms)), nil
		},
		Tags: tags,
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	return seq
}

func TestAppendAssignsContiguous(t *testing.T) {
	l := newTestLog(t)
	for want := uint64(1); want <= 5; want++ {
		if got := appendPlain(t, l); got != want {
			t.Fatalf("seq = %d, want %d", got, want)
		}
	}
	if l.LastSeq() != 5 {
		t.Fatalf("LastSeq = %d, want 5", l.LastSeq())
	}
}

func TestAppendDurableAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	db := newTestDB(t, dir)
	l, err := Open(db)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	first := appendPlain(t, l, "ops/eva1")
	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// reopen and ensure lastSeq and the tag catalog are restored via meta
	db2 := newTestDB(t, dir)
	t.Cleanup(func() { _ = db2.Close() })
	l2, err := Open(db2)
	if err != nil {
		t.Fatalf("reopen log: %v", err)
	}
	if !l2.HasTag("ops/eva1") {
		t.Fatalf("tag catalog lost across reopen")
	}
	second := appendPlain(t, l2)
	if second != first+1 {
		t.Fatalf("seq after reopen = %d, want %d", second, first+1)
	}
	item, err := l2.Get(first)
	if err != nil {
		t.Fatalf("get first: %v", err)
	}
	if string(item.Payload) != fmt.Sprintf("p:%d:%d", first, item.CommittedAtMs) {
		t.Fatalf("payload mismatch after reopen: %q", item.Payload)
	}
}

func TestConcurrentAppendsContiguous(t *testing.T) {
	l := newTestLog(t)
	const producers = 8
	const perProducer = 25

	var wg sync.WaitGroup
	seqCh := make(chan uint64, producers*perProducer)
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				seq, _, err := l.Append(context.Background(), AppendRequest{
					Encode: func(seq uint64, ms int64) ([]byte, error) {
						return []byte(fmt.Sprintf("p:%d", seq)), nil
					},
				})
				if err != nil {
					t.Errorf("append: %v", err)
					return
				}
				seqCh <- seq
			}
		}()
	}
	wg.Wait()
	close(seqCh)

	seen := make(map[uint64]bool, producers*perProducer)
	for seq := range seqCh {
		if seen[seq] {
			t.Fatalf("sequence %d assigned twice", seq)
		}
		seen[seq] = true
	}
	if len(seen) != producers*perProducer {
		t.Fatalf("got %d distinct seqs, want %d", len(seen), producers*perProducer)
	}
	for want := uint64(1); want <= producers*perProducer; want++ {
		if !seen[want] {
			t.Fatalf("gap at sequence %d", want)
		}
	}
}

func TestEncodeFailureLeavesNoGap(t *testing.T) {
	l := newTestLog(t)
	appendPlain(t, l)

	_, _, err := l.Append(context.Background(), AppendRequest{
		Encode: func(uint64, int64) ([]byte, error) {
			return nil, fmt.Errorf("boom")
		},
	})
	if err == nil {
		t.Fatalf("expected encode error")
	}
	if l.LastSeq() != 1 {
		t.Fatalf("failed append advanced the log: LastSeq = %d", l.LastSeq())
	}
	if got := appendPlain(t, l); got != 2 {
		t.Fatalf("seq after failed attempt = %d, want 2", got)
	}
}

func TestCommitTimesMonotonicUnderClockRegression(t *testing.T) {
	l := newTestLog(t)
	now := int64(10_000)
	l.nowMs = func() int64 { return now }

	_, ms1, err := l.Append(context.Background(), AppendRequest{
		Encode: func(uint64, int64) ([]byte, error) { return []byte("a"), nil },
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	now = 9_000 // clock went backwards
	_, ms2, err := l.Append(context.Background(), AppendRequest{
		Encode: func(uint64, int64) ([]byte, error) { return []byte("b"), nil },
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if ms2 < ms1 {
		t.Fatalf("commit time regressed: %d then %d", ms1, ms2)
	}
}

func TestTagCatalog(t *testing.T) {
	l := newTestLog(t)
	if l.HasTag("sample") {
		t.Fatalf("empty log knows a tag")
	}
	first := appendPlain(t, l, "sample", "ops/eva1")
	appendPlain(t, l, "sample") // already in the catalog

	if !l.HasTag("sample") || !l.HasTag("ops/eva1") {
		t.Fatalf("catalog missing admitted tags: %v", l.Tags())
	}
	if got := l.Tags(); len(got) != 2 || got[0] != "ops/eva1" || got[1] != "sample" {
		t.Fatalf("Tags() = %v", got)
	}
	if seq, ok := l.TagFirstSeq("sample"); !ok || seq != first {
		t.Fatalf("TagFirstSeq = %d %v, want %d", seq, ok, first)
	}
}

func TestStats(t *testing.T) {
	l := newTestLog(t)
	s, err := l.Stats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if s.FirstSeq != 0 || s.LastSeq != 0 || s.Entries != 0 {
		t.Fatalf("empty log stats: %+v", s)
	}
	appendPlain(t, l)
	appendPlain(t, l)
	s, err = l.Stats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if s.FirstSeq != 1 || s.LastSeq != 2 || s.Entries != 2 {
		t.Fatalf("stats after appends: %+v", s)
	}
}
