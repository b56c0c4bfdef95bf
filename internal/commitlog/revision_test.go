package commitlog

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func appendRevision(t *testing.T, l *Log, root uint64) uint64 {
	t.Helper()
	seq, _, err := l.Append(context.Background(), AppendRequest{
		Encode: func(seq uint64, ms int64) ([]byte, error) {
			return []byte(fmt.Sprintf("rev:%d", seq)), nil
		},
		RevisionRoot: root,
	})
	if err != nil {
		t.Fatalf("append revision: %v", err)
	}
	return seq
}

func TestRevisionChain(t *testing.T) {
	l := newTestLog(t)
	orig := appendPlain(t, l) // seq 1
	appendPlain(t, l)         // unrelated, seq 2

	// No revisions yet: the entry is its own root and head.
	if root, err := l.Root(orig); err != nil || root != orig {
		t.Fatalf("Root = %d %v", root, err)
	}
	if head, err := l.Head(orig); err != nil || head != orig {
		t.Fatalf("Head = %d %v", head, err)
	}

	rev1 := appendRevision(t, l, orig) // seq 3
	rev2 := appendRevision(t, l, orig) // seq 4, revises the same chain

	for _, seq := range []uint64{orig, rev1, rev2} {
		root, err := l.Root(seq)
		if err != nil || root != orig {
			t.Fatalf("Root(%d) = %d %v, want %d", seq, root, err, orig)
		}
		head, err := l.Head(seq)
		if err != nil || head != rev2 {
			t.Fatalf("Head(%d) = %d %v, want %d", seq, head, err, rev2)
		}
	}

	// The original record is still readable as committed.
	item, err := l.Get(orig)
	if err != nil {
		t.Fatalf("get original: %v", err)
	}
	if string(item.Payload) != fmt.Sprintf("p:%d:%d", orig, item.CommittedAtMs) {
		t.Fatalf("original payload changed: %q", item.Payload)
	}
}

func TestRevisionDurableAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	db := newTestDB(t, dir)
	l, err := Open(db)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	orig := appendPlain(t, l)
	rev := appendRevision(t, l, orig)
	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	db2 := newTestDB(t, dir)
	t.Cleanup(func() { _ = db2.Close() })
	l2, err := Open(db2)
	if err != nil {
		t.Fatalf("reopen log: %v", err)
	}
	if head, err := l2.Head(orig); err != nil || head != rev {
		t.Fatalf("Head after reopen = %d %v, want %d", head, err, rev)
	}
}

func TestRevisionLookupMiss(t *testing.T) {
	l := newTestLog(t)
	if _, err := l.Root(0); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Root(0): %v", err)
	}
	if _, err := l.Head(42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Head(uncommitted): %v", err)
	}
}
