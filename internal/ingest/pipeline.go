package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hyperrixel/logos/internal/access"
	"github.com/hyperrixel/logos/internal/commitlog"
	"github.com/hyperrixel/logos/internal/entry"
	"github.com/hyperrixel/logos/internal/metrics"
	"github.com/hyperrixel/logos/internal/wire"
	"github.com/hyperrixel/logos/pkg/log"
)

var (
	// ErrValidationFailed reports a draft that breaks entry model rules
	// or names an unregistered attachment blob.
	ErrValidationFailed = errors.New("validation failed")

	// ErrDanglingLink reports a link or revision target that is not
	// committed, or that the author cannot read. The two cases are
	// deliberately indistinguishable.
	ErrDanglingLink = errors.New("dangling link")
)

// State is a submission's position in the pipeline. Receipts carry only
// the two terminal states.
type State string

const (
	StateReceived   State = "received"
	StateValidated  State = "validated"
	StateAuthorized State = "authorized"
	StateCommitted  State = "committed"
	StateRejected   State = "rejected"
)

// Receipt reports the terminal outcome of one submission.
type Receipt struct {
	State         State  `json:"state"`
	Seq           uint64 `json:"seq,omitempty"`
	CommittedAtMs int64  `json:"committedAtMs,omitempty"`
	RejectCode    string `json:"rejectCode,omitempty"`
}

// RejectCode maps a pipeline or decode error to a stable short code used
// in receipts and rejection metrics.
func RejectCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, wire.ErrMalformedPayload):
		return "malformed_payload"
	case errors.Is(err, wire.ErrUnsupportedField):
		return "unsupported_field"
	case errors.Is(err, wire.ErrSchemaVersionMismatch):
		return "schema_version_mismatch"
	case errors.Is(err, ErrDanglingLink):
		return "dangling_link"
	case errors.Is(err, ErrValidationFailed):
		return "validation_failed"
	case errors.Is(err, access.ErrTagNotAuthorized):
		return "tag_not_authorized"
	case errors.Is(err, access.ErrDenied):
		return "denied"
	case errors.Is(err, commitlog.ErrPersistenceUnavailable):
		return "persistence_unavailable"
	default:
		return "internal"
	}
}

// Dispatcher receives every committed entry once the store has
// acknowledged it. The fan-out router implements this.
type Dispatcher interface {
	Dispatch(seq uint64, e *entry.Entry)
}

// Options wires a pipeline. Log, Engine and Blobs are required;
// Presence, Dispatcher, Metrics and Logger are optional.
type Options struct {
	Log        *commitlog.Log
	Engine     *access.Engine
	Blobs      *BlobRegistry
	Presence   *access.Presence
	Dispatcher Dispatcher
	Metrics    *metrics.Metrics
	Logger     log.Logger
}

// Pipeline carries submissions from draft to committed entry.
type Pipeline struct {
	log      *commitlog.Log
	eng      *access.Engine
	blobs    *BlobRegistry
	presence *access.Presence
	dispatch Dispatcher
	met      *metrics.Metrics
	logger   log.Logger
}

// New builds a pipeline from its collaborators.
func New(opts Options) *Pipeline {
	p := &Pipeline{
		log:      opts.Log,
		eng:      opts.Engine,
		blobs:    opts.Blobs,
		presence: opts.Presence,
		dispatch: opts.Dispatcher,
		met:      opts.Metrics,
		logger:   opts.Logger,
	}
	if p.met == nil {
		p.met = metrics.NewMetrics()
	}
	if p.logger == nil {
		p.logger = log.NewLogger()
	}
	p.logger = p.logger.With(log.Component("ingest"))
	return p
}

// Submit runs one draft through validate, authorize and commit. The
// returned receipt is always non-nil; err is non-nil exactly when the
// receipt state is rejected.
func (p *Pipeline) Submit(ctx context.Context, draft entry.Draft) (*Receipt, error) {
	start := time.Now()

	// Validated: entry model rules plus attachment registration.
	e, err := entry.New(draft)
	if err != nil {
		return p.reject(draft.Author, fmt.Errorf("%w: %v", ErrValidationFailed, err))
	}
	for _, a := range e.Attachments {
		if !p.blobs.Has(a.BlobID) {
			return p.reject(e.Author, fmt.Errorf("%w: %w: %q", ErrValidationFailed, ErrUnknownBlob, a.BlobID))
		}
	}
	// Link and revision targets must be committed and readable.
	for _, seq := range e.Links {
		if !p.readableBy(e.Author, seq) {
			return p.reject(e.Author, fmt.Errorf("%w: seq %d", ErrDanglingLink, seq))
		}
	}
	if e.RevisionOf != 0 && !p.readableBy(e.Author, e.RevisionOf) {
		return p.reject(e.Author, fmt.Errorf("%w: revision of seq %d", ErrDanglingLink, e.RevisionOf))
	}

	// Authorized: write on the tag set, link/attach when used, and
	// admission for tags the catalog has never seen.
	if err := p.eng.Authorize(e.Author, access.ActionWrite, e.Tags).Err(); err != nil {
		return p.reject(e.Author, err)
	}
	if len(e.Links) > 0 {
		if err := p.eng.Authorize(e.Author, access.ActionLink, e.Tags).Err(); err != nil {
			return p.reject(e.Author, err)
		}
	}
	if len(e.Attachments) > 0 {
		if err := p.eng.Authorize(e.Author, access.ActionAttach, e.Tags).Err(); err != nil {
			return p.reject(e.Author, err)
		}
	}
	if err := p.eng.CheckNewTags(e.Author, e.Tags, p.log.HasTag); err != nil {
		return p.reject(e.Author, err)
	}

	// Revision chains index by their root; resolve it before the gate.
	var root uint64
	if e.RevisionOf != 0 {
		root, err = p.log.Root(e.RevisionOf)
		if err != nil {
			return p.reject(e.Author, fmt.Errorf("%w: revision of seq %d", ErrDanglingLink, e.RevisionOf))
		}
	}

	// Committed: seq assignment, stamp and canonical encode happen
	// inside the commit gate.
	seq, committedAtMs, err := p.log.Append(ctx, commitlog.AppendRequest{
		Tags:         e.Tags,
		RevisionRoot: root,
		Encode: func(seq uint64, ms int64) ([]byte, error) {
			if err := e.Commit(seq, ms); err != nil {
				return nil, err
			}
			return wire.EncodeStored(e)
		},
	})
	if err != nil {
		return p.reject(e.Author, err)
	}

	if p.dispatch != nil {
		p.dispatch.Dispatch(seq, e)
	}
	if p.presence != nil {
		p.presence.MarkWriting(e.Author)
	}
	p.met.IncCommits()
	p.met.ObserveCommitLatency(time.Since(start).Seconds())
	p.logger.Debug("entry committed",
		log.Uint64("seq", seq),
		log.Str("author", e.Author),
		log.Int("tags", len(e.Tags)))

	return &Receipt{State: StateCommitted, Seq: seq, CommittedAtMs: committedAtMs}, nil
}

// readableBy reports whether seq names a committed entry the author may
// read. Storage or decode trouble counts as unreadable.
func (p *Pipeline) readableBy(author string, seq uint64) bool {
	item, err := p.log.Get(seq)
	if err != nil {
		return false
	}
	e, err := wire.DecodeStored(item.Payload)
	if err != nil {
		return false
	}
	return p.eng.Authorize(author, access.ActionRead, e.Tags).Allowed
}

func (p *Pipeline) reject(author string, err error) (*Receipt, error) {
	code := RejectCode(err)
	p.met.IncRejections(code)
	p.logger.Debug("submission rejected",
		log.Str("author", author),
		log.Str("code", code),
		log.Err(err))
	return &Receipt{State: StateRejected, RejectCode: code}, err
}
