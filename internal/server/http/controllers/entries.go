package controllers

import (
	"errors"
	"io"
	"net/http"

	"github.com/hyperrixel/logos/internal/access"
	"github.com/hyperrixel/logos/internal/commitlog"
	"github.com/hyperrixel/logos/internal/runtime"
	"github.com/hyperrixel/logos/internal/wire"
	"github.com/hyperrixel/logos/pkg/cursor"
	logpkg "github.com/hyperrixel/logos/pkg/log"
)

// EntriesController handles entry submission and queries.
//
// Submission decodes the payload with the codec the Content-Type names,
// then hands the draft to the ingest pipeline; the response is the
// receipt. Queries re-check authorization per entry and keep denials
// indistinguishable from absence.
type EntriesController struct {
	rt     *runtime.Runtime
	logger logpkg.Logger
}

// NewEntriesController creates a new entries controller.
func NewEntriesController(rt *runtime.Runtime, logger logpkg.Logger) *EntriesController {
	if logger == nil {
		logger = rt.Logger()
	}
	return &EntriesController{rt: rt, logger: logger.With(logpkg.Component("http"))}
}

// RegisterRoutes registers entry routes with the given mux.
//
// This method sets up HTTP endpoints for:
// - Submission (POST /v1/entries)
// - Point lookups (/v1/entries/get, /v1/entries/current)
// - Ordered range reads (/v1/entries/range)
func (c *EntriesController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/entries", c.handleSubmit)
	mux.HandleFunc("/v1/entries/get", c.handleGet)
	mux.HandleFunc("/v1/entries/current", c.handleCurrent)
	mux.HandleFunc("/v1/entries/range", c.handleRange)
}

// handleSubmit accepts one entry submission.
//
// The Content-Type selects the codec (application/json or
// application/cbor). The principal header names the verified author;
// a payload naming a different author is denied. Rejections carry the
// taxonomy code and never partially commit.
func (c *EntriesController) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
		return
	}
	principal := principalID(r)
	if principal == "" {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "missing principal header")
		return
	}
	codec, err := c.submitCodec(r)
	if err != nil {
		writeError(w, http.StatusUnsupportedMediaType, "unknown_format", err.Error())
		return
	}

	maxBytes := int64(c.rt.Config().PayloadMaxBytes)
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "payload exceeds limit")
			return
		}
		writeError(w, http.StatusBadRequest, "malformed_payload", "unreadable body")
		return
	}

	e, err := codec.Decode(body)
	if err != nil {
		writeReject(w, err)
		return
	}
	if e.Author != "" && e.Author != principal {
		writeError(w, http.StatusForbidden, "denied", "denied")
		return
	}
	draft := e.Draft()
	draft.Author = principal

	receipt, err := c.rt.Ingest().Submit(r.Context(), draft)
	if err != nil {
		writeReject(w, err)
		return
	}
	writeJSON(w, submitResp{Receipt: *receipt})
}

// submitCodec picks the payload codec: the Content-Type header when
// present, otherwise the configured default format.
func (c *EntriesController) submitCodec(r *http.Request) (wire.Codec, error) {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		return wire.LookupContentType(ct)
	}
	return wire.Lookup(c.rt.Config().DefaultFormat)
}

// loadReadable fetches one committed entry if the principal may read it.
// Absent and unreadable entries both come back as ok=false: transports
// never reveal which.
func (c *EntriesController) loadReadable(principal string, seq uint64) (*wire.Envelope, bool) {
	it, err := c.rt.Log().Get(seq)
	if err != nil {
		return nil, false
	}
	e, err := wire.DecodeStored(it.Payload)
	if err != nil {
		c.logger.Warn("undecodable entry", logpkg.Uint64("seq", seq), logpkg.Err(err))
		return nil, false
	}
	if !c.rt.Engine().Authorize(principal, access.ActionRead, e.Tags).Allowed {
		return nil, false
	}
	env := wire.FromEntry(e)
	return &env, true
}

// handleGet returns one entry by identifier, or an opaque 404.
func (c *EntriesController) handleGet(w http.ResponseWriter, r *http.Request) {
	principal := principalID(r)
	if principal == "" {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "missing principal header")
		return
	}
	seq := parseSeq(r.URL.Query().Get("id"))
	if seq == 0 {
		writeError(w, http.StatusBadRequest, "malformed_payload", "id is required")
		return
	}
	env, ok := c.loadReadable(principal, seq)
	if !ok {
		writeNotFound(w)
		return
	}
	writeJSON(w, env)
}

// handleCurrent resolves the revision head of an entry's chain and
// returns the head entry, or an opaque 404. Readability is checked on
// the head: the chain member used for lookup is not revealed.
func (c *EntriesController) handleCurrent(w http.ResponseWriter, r *http.Request) {
	principal := principalID(r)
	if principal == "" {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "missing principal header")
		return
	}
	seq := parseSeq(r.URL.Query().Get("id"))
	if seq == 0 {
		writeError(w, http.StatusBadRequest, "malformed_payload", "id is required")
		return
	}
	head, err := c.rt.Log().Head(seq)
	if err != nil {
		writeNotFound(w)
		return
	}
	env, ok := c.loadReadable(principal, head)
	if !ok {
		writeNotFound(w)
		return
	}
	writeJSON(w, env)
}

// handleRange returns authorized entries inside [from_seq, to_seq] in
// commit order. Entries the principal cannot read are skipped, never
// surfaced. Query params: from_seq, to_seq, limit, reverse, cursor.
func (c *EntriesController) handleRange(w http.ResponseWriter, r *http.Request) {
	principal := principalID(r)
	if principal == "" {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "missing principal header")
		return
	}
	q := r.URL.Query()
	opts := commitlog.ReadOptions{
		FromSeq: parseSeq(q.Get("from_seq")),
		ToSeq:   parseSeq(q.Get("to_seq")),
		Limit:   parseLimit(q.Get("limit")),
		Reverse: parseBool(q.Get("reverse")),
	}
	// The cursor carries the last consumed seq, so resumption tightens
	// the bound on the side the read advances toward.
	if cur, err := cursor.Parse(q.Get("cursor")); err != nil {
		writeError(w, http.StatusBadRequest, "malformed_payload", err.Error())
		return
	} else if !cur.IsZero() {
		if opts.Reverse {
			if cur.Seq() <= 1 {
				writeJSON(w, rangeResp{Entries: []wire.Envelope{}})
				return
			}
			opts.ToSeq = cur.Seq() - 1
		} else {
			opts.FromSeq = cur.Seq() + 1
		}
	}
	if opts.Limit <= 0 || opts.Limit > 1000 {
		opts.Limit = 100
	}

	items, next := c.rt.Log().ReadRange(opts)
	resp := rangeResp{Entries: make([]wire.Envelope, 0, len(items))}
	for _, it := range items {
		e, err := wire.DecodeStored(it.Payload)
		if err != nil {
			c.logger.Warn("undecodable entry", logpkg.Uint64("seq", it.Seq), logpkg.Err(err))
			continue
		}
		if !c.rt.Engine().Authorize(principal, access.ActionRead, e.Tags).Allowed {
			continue
		}
		resp.Entries = append(resp.Entries, wire.FromEntry(e))
	}
	if next != 0 {
		last := next - 1
		if opts.Reverse {
			last = next + 1
		}
		resp.Next = cursor.FromSeq(last).String()
	}
	writeJSON(w, resp)
}
