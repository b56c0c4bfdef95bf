package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/hyperrixel/logos/internal/access"
	"github.com/hyperrixel/logos/internal/commitlog"
	"github.com/hyperrixel/logos/internal/entry"
	pebblestore "github.com/hyperrixel/logos/internal/storage/pebble"
	"github.com/hyperrixel/logos/internal/wire"
	"github.com/hyperrixel/logos/pkg/log"
)

// recordingDispatcher captures post-commit fan-out calls.
type recordingDispatcher struct {
	mu   sync.Mutex
	seqs []uint64
}

func (d *recordingDispatcher) Dispatch(seq uint64, e *entry.Entry) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seqs = append(d.seqs, seq)
}

type testRig struct {
	db    *pebblestore.DB
	log   *commitlog.Log
	reg   *access.Registry
	blobs *BlobRegistry
	pres  *access.Presence
	disp  *recordingDispatcher
	pipe  *Pipeline
}

// newTestRig builds the full ingest stack over a throwaway store. Crew:
// root (admin), ada (science role, full grants under mission/), and
// sensor-7 (telemetry role, write-only under telemetry/).
func newTestRig(t *testing.T) *testRig {
	t.Helper()
	ctx := context.Background()

	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	lg, err := commitlog.Open(db)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	reg, err := access.OpenRegistry(db)
	if err != nil {
		t.Fatalf("open registry: %v", err)
	}
	if _, err := reg.EnsureAdmin(ctx, "root", "Mission Control"); err != nil {
		t.Fatalf("ensure admin: %v", err)
	}
	principals := []access.Principal{
		{ID: "ada", Kind: access.KindHuman, Role: "science"},
		{ID: "sensor-7", Kind: access.KindDevice, Role: "telemetry"},
	}
	for _, p := range principals {
		if err := reg.PutPrincipal(ctx, p); err != nil {
			t.Fatalf("put principal %s: %v", p.ID, err)
		}
	}
	rules := []access.Rule{
		{ID: "science-all", Role: "science", TagPattern: "mission/*",
			Actions: access.NewActionSet(access.ActionRead, access.ActionWrite, access.ActionLink, access.ActionAttach)},
		{ID: "telemetry-write", Role: "telemetry", TagPattern: "telemetry/*",
			Actions: access.NewActionSet(access.ActionWrite)},
		{ID: "telemetry-read", Role: "telemetry", TagPattern: "mission/*",
			Actions: access.NewActionSet(access.ActionRead)},
	}
	for _, r := range rules {
		if _, err := reg.PutRule(ctx, r); err != nil {
			t.Fatalf("put rule %s: %v", r.ID, err)
		}
	}

	blobs := NewBlobRegistry(db)
	pres := access.NewPresence(nil)
	disp := &recordingDispatcher{}
	pipe := New(Options{
		Log:        lg,
		Engine:     access.NewEngine(reg),
		Blobs:      blobs,
		Presence:   pres,
		Dispatcher: disp,
		Logger:     log.NewLogger(log.WithOutput(log.NullOutput{})),
	})
	return &testRig{db: db, log: lg, reg: reg, blobs: blobs, pres: pres, disp: disp, pipe: pipe}
}

func draftFor(author, tag string) entry.Draft {
	return entry.Draft{
		Author:      author,
		CreatedAtMs: 1_700_000_000_000,
		Tags:        []string{tag},
		Attributes:  []entry.Attribute{entry.Str("note", "hello")},
	}
}

func TestSubmitCommits(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	rcpt, err := rig.pipe.Submit(ctx, draftFor("ada", "mission/alpha"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if rcpt.State != StateCommitted || rcpt.Seq != 1 || rcpt.CommittedAtMs == 0 {
		t.Fatalf("receipt = %+v", rcpt)
	}

	item, err := rig.log.Get(1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	stored, err := wire.DecodeStored(item.Payload)
	if err != nil {
		t.Fatalf("decode stored: %v", err)
	}
	if stored.Seq != 1 || stored.Author != "ada" || stored.CommittedAtMs != rcpt.CommittedAtMs {
		t.Fatalf("stored entry = %+v", stored)
	}
	if !rig.log.HasTag("mission/alpha") {
		t.Fatalf("tag not admitted to catalog")
	}
	if got := rig.pres.State("ada"); got != access.PresenceWriting {
		t.Fatalf("presence after commit = %s, want writing", got)
	}
}

func TestSubmitValidationRejects(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	d := draftFor("ada", "mission/alpha")
	d.CreatedAtMs = 0
	rcpt, err := rig.pipe.Submit(ctx, d)
	if !errors.Is(err, ErrValidationFailed) {
		t.Fatalf("err = %v, want ErrValidationFailed", err)
	}
	if rcpt.State != StateRejected || rcpt.RejectCode != "validation_failed" {
		t.Fatalf("receipt = %+v", rcpt)
	}
	if rig.log.LastSeq() != 0 {
		t.Fatalf("rejected submission reached the log")
	}
}

func TestSubmitUnregisteredBlobRejects(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	d := draftFor("ada", "mission/alpha")
	d.Attachments = []entry.Attachment{{BlobID: "no-such-blob", ContentType: "image/png", Size: 4}}
	_, err := rig.pipe.Submit(ctx, d)
	if !errors.Is(err, ErrValidationFailed) || !errors.Is(err, ErrUnknownBlob) {
		t.Fatalf("err = %v, want ErrValidationFailed wrapping ErrUnknownBlob", err)
	}

	info, err := rig.blobs.Register("image/png", 4)
	if err != nil {
		t.Fatalf("register blob: %v", err)
	}
	d.Attachments[0].BlobID = info.ID
	rcpt, err := rig.pipe.Submit(ctx, d)
	if err != nil {
		t.Fatalf("submit with registered blob: %v", err)
	}
	if rcpt.State != StateCommitted {
		t.Fatalf("receipt = %+v", rcpt)
	}
}

func TestSubmitAuthorizationGates(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	// No write grant outside telemetry/.
	_, err := rig.pipe.Submit(ctx, draftFor("sensor-7", "mission/alpha"))
	if !errors.Is(err, access.ErrDenied) {
		t.Fatalf("err = %v, want ErrDenied", err)
	}

	// sensor-7 can read the target via the mission read grant, and can
	// write telemetry/, but holds no link grant there.
	if _, err := rig.pipe.Submit(ctx, draftFor("ada", "mission/alpha")); err != nil {
		t.Fatalf("seed entry: %v", err)
	}
	d := draftFor("sensor-7", "telemetry/eva1")
	d.Links = []uint64{1}
	_, err = rig.pipe.Submit(ctx, d)
	if !errors.Is(err, access.ErrDenied) {
		t.Fatalf("err = %v, want ErrDenied for missing link grant", err)
	}

	// Attach gate works the same way.
	info, err := rig.blobs.Register("text/plain", 1)
	if err != nil {
		t.Fatalf("register blob: %v", err)
	}
	d = draftFor("sensor-7", "telemetry/eva1")
	d.Attachments = []entry.Attachment{{BlobID: info.ID, ContentType: "text/plain", Size: 1}}
	if _, err := rig.pipe.Submit(ctx, d); !errors.Is(err, access.ErrDenied) {
		t.Fatalf("err = %v, want ErrDenied for missing attach grant", err)
	}
}

func TestSubmitNewTagAdmission(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	// mission/gamma is new but covered by the science write grant.
	if _, err := rig.pipe.Submit(ctx, draftFor("ada", "mission/gamma")); err != nil {
		t.Fatalf("covered new tag: %v", err)
	}

	// ops/new is new and covered by nothing ada holds.
	d := draftFor("ada", "mission/alpha")
	d.Tags = append(d.Tags, "ops/new")
	_, err := rig.pipe.Submit(ctx, d)
	if !errors.Is(err, access.ErrTagNotAuthorized) {
		t.Fatalf("err = %v, want ErrTagNotAuthorized", err)
	}

	// Admins introduce any tag.
	if _, err := rig.pipe.Submit(ctx, draftFor("root", "ops/new")); err != nil {
		t.Fatalf("admin new tag: %v", err)
	}
}

func TestSubmitDanglingLink(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	d := draftFor("ada", "mission/alpha")
	d.Links = []uint64{42}
	rcpt, err := rig.pipe.Submit(ctx, d)
	if !errors.Is(err, ErrDanglingLink) {
		t.Fatalf("err = %v, want ErrDanglingLink", err)
	}
	if rcpt.RejectCode != "dangling_link" {
		t.Fatalf("receipt = %+v", rcpt)
	}

	// Committed and readable target passes.
	if _, err := rig.pipe.Submit(ctx, draftFor("ada", "mission/alpha")); err != nil {
		t.Fatalf("seed entry: %v", err)
	}
	d.Links = []uint64{1}
	if _, err := rig.pipe.Submit(ctx, d); err != nil {
		t.Fatalf("valid link: %v", err)
	}
}

func TestSubmitRevisionChain(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	first, err := rig.pipe.Submit(ctx, draftFor("ada", "mission/alpha"))
	if err != nil {
		t.Fatalf("original: %v", err)
	}

	d := draftFor("ada", "mission/alpha")
	d.RevisionOf = first.Seq
	rev1, err := rig.pipe.Submit(ctx, d)
	if err != nil {
		t.Fatalf("revision 1: %v", err)
	}
	d.RevisionOf = rev1.Seq
	rev2, err := rig.pipe.Submit(ctx, d)
	if err != nil {
		t.Fatalf("revision 2: %v", err)
	}

	root, err := rig.log.Root(rev2.Seq)
	if err != nil || root != first.Seq {
		t.Fatalf("root(%d) = %d, %v, want %d", rev2.Seq, root, err, first.Seq)
	}
	head, err := rig.log.Head(first.Seq)
	if err != nil || head != rev2.Seq {
		t.Fatalf("head(%d) = %d, %v, want %d", first.Seq, head, err, rev2.Seq)
	}

	// Revising an entry the author cannot read is dangling.
	d = draftFor("sensor-7", "telemetry/eva1")
	d.RevisionOf = first.Seq
	if _, err := rig.pipe.Submit(ctx, d); !errors.Is(err, ErrDanglingLink) {
		t.Fatalf("err = %v, want ErrDanglingLink", err)
	}
}

// Concurrent submissions must each land on a distinct contiguous seq no
// matter how the gates interleave.
func TestSubmitConcurrentDistinctSeqs(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	const producers = 6
	const perProducer = 20

	var wg sync.WaitGroup
	seqs := make(chan uint64, producers*perProducer)
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				d := draftFor("ada", "mission/alpha")
				d.Attributes = []entry.Attribute{entry.Str("origin", fmt.Sprintf("p%d-%d", p, i))}
				rcpt, err := rig.pipe.Submit(ctx, d)
				if err != nil {
					t.Errorf("submit p%d-%d: %v", p, i, err)
					return
				}
				seqs <- rcpt.Seq
			}
		}(p)
	}
	wg.Wait()
	close(seqs)

	seen := make(map[uint64]bool)
	var max uint64
	for s := range seqs {
		if seen[s] {
			t.Fatalf("seq %d assigned twice", s)
		}
		seen[s] = true
		if s > max {
			max = s
		}
	}
	if len(seen) != producers*perProducer {
		t.Fatalf("committed %d entries, want %d", len(seen), producers*perProducer)
	}
	if max != uint64(producers*perProducer) {
		t.Fatalf("max seq %d, want %d (contiguous)", max, producers*perProducer)
	}

	// Every commit reached fan-out exactly once.
	rig.disp.mu.Lock()
	defer rig.disp.mu.Unlock()
	if len(rig.disp.seqs) != producers*perProducer {
		t.Fatalf("dispatched %d entries, want %d", len(rig.disp.seqs), producers*perProducer)
	}
	dispatched := make(map[uint64]bool, len(rig.disp.seqs))
	for _, s := range rig.disp.seqs {
		if dispatched[s] {
			t.Fatalf("seq %d dispatched twice", s)
		}
		dispatched[s] = true
	}
}
