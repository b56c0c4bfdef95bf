package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/hyperrixel/logos/internal/access"
	"github.com/hyperrixel/logos/internal/archive"
	"github.com/hyperrixel/logos/internal/runtime"
	logpkg "github.com/hyperrixel/logos/pkg/log"
)

// AdminController manages the access registry and the blob registry.
//
// Principal and rule mutation is limited to admin-role principals; every
// change is persisted before the response returns.
type AdminController struct {
	rt     *runtime.Runtime
	logger logpkg.Logger
}

// NewAdminController creates a new admin controller.
func NewAdminController(rt *runtime.Runtime, logger logpkg.Logger) *AdminController {
	if logger == nil {
		logger = rt.Logger()
	}
	return &AdminController{rt: rt, logger: logger.With(logpkg.Component("http"))}
}

// RegisterRoutes registers admin routes with the given mux.
//
// This method sets up HTTP endpoints for:
// - Principal management (/v1/admin/principals)
// - Rule management (/v1/admin/rules)
// - Attachment blob registration (/v1/blobs)
// - Archive export (/v1/export)
func (c *AdminController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/admin/principals", c.handlePrincipals)
	mux.HandleFunc("/v1/admin/rules", c.handleRules)
	mux.HandleFunc("/v1/blobs", c.handleBlobRegister)
	mux.HandleFunc("/v1/export", c.handleExport)
}

// requireAdmin resolves the caller and enforces the admin role. The
// error response is already written when ok is false.
func (c *AdminController) requireAdmin(w http.ResponseWriter, r *http.Request) (access.Principal, bool) {
	id := principalID(r)
	if id == "" {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "missing principal header")
		return access.Principal{}, false
	}
	p, ok := c.rt.Access().Principal(id)
	if !ok || !p.IsAdmin() {
		writeError(w, http.StatusForbidden, "denied", "denied")
		return access.Principal{}, false
	}
	return p, true
}

// handlePrincipals lists, upserts or deletes principals (admin only).
func (c *AdminController) handlePrincipals(w http.ResponseWriter, r *http.Request) {
	admin, ok := c.requireAdmin(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, map[string]any{"principals": c.rt.Access().Principals()})
	case http.MethodPost:
		var p access.Principal
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			writeError(w, http.StatusBadRequest, "malformed_payload", "Invalid request body")
			return
		}
		if err := c.rt.Access().PutPrincipal(r.Context(), p); err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
			return
		}
		c.logger.Info("principal stored",
			logpkg.Str("id", p.ID), logpkg.Str("by", admin.ID))
		writeJSON(w, p)
	case http.MethodDelete:
		id := r.URL.Query().Get("id")
		if id == "" {
			writeError(w, http.StatusBadRequest, "malformed_payload", "id is required")
			return
		}
		if err := c.rt.Access().DeletePrincipal(r.Context(), id); err != nil {
			writeError(w, http.StatusInternalServerError, "internal", err.Error())
			return
		}
		c.logger.Info("principal deleted",
			logpkg.Str("id", id), logpkg.Str("by", admin.ID))
		writeNoContent(w)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
	}
}

// handleRules lists, upserts or deletes access rules (admin only).
func (c *AdminController) handleRules(w http.ResponseWriter, r *http.Request) {
	admin, ok := c.requireAdmin(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, map[string]any{"rules": c.rt.Access().Rules()})
	case http.MethodPost:
		var rule access.Rule
		if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
			writeError(w, http.StatusBadRequest, "malformed_payload", "Invalid request body")
			return
		}
		stored, err := c.rt.Access().PutRule(r.Context(), rule)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
			return
		}
		c.logger.Info("rule stored",
			logpkg.Str("id", stored.ID),
			logpkg.Str("pattern", stored.TagPattern),
			logpkg.Str("by", admin.ID))
		writeJSON(w, stored)
	case http.MethodDelete:
		id := r.URL.Query().Get("id")
		if id == "" {
			writeError(w, http.StatusBadRequest, "malformed_payload", "id is required")
			return
		}
		if err := c.rt.Access().DeleteRule(r.Context(), id); err != nil {
			writeError(w, http.StatusInternalServerError, "internal", err.Error())
			return
		}
		c.logger.Info("rule deleted",
			logpkg.Str("id", id), logpkg.Str("by", admin.ID))
		writeNoContent(w)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
	}
}

// handleBlobRegister records attachment metadata ahead of submission.
// Any known principal may register; the attach grant is checked when an
// entry references the blob.
func (c *AdminController) handleBlobRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
		return
	}
	id := principalID(r)
	if id == "" {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "missing principal header")
		return
	}
	if _, ok := c.rt.Access().Principal(id); !ok {
		writeError(w, http.StatusForbidden, "denied", "denied")
		return
	}
	var req blobRegisterReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed_payload", "Invalid request body")
		return
	}
	info, err := c.rt.Blobs().Register(req.ContentType, req.Size)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}
	writeJSON(w, info)
}

// handleExport streams a log extract as a compressed archive (admin
// only). Query params: from_seq, to_seq, from_ms.
func (c *AdminController) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
		return
	}
	admin, ok := c.requireAdmin(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	opts := archive.ExportOptions{
		FromSeq: parseSeq(q.Get("from_seq")),
		ToSeq:   parseSeq(q.Get("to_seq")),
		FromMs:  parseTimestamp(q.Get("from_ms")),
	}

	w.Header().Set("Content-Type", "application/zstd")
	w.Header().Set("Content-Disposition", `attachment; filename="logos-archive.zst"`)
	sum, err := archive.Export(w, c.rt.Log(), opts)
	if err != nil {
		// The status line is already on the wire; all that is left is
		// to cut the stream short and log.
		c.logger.Error("archive export failed", logpkg.Err(err))
		return
	}
	c.logger.Info("archive exported",
		logpkg.Int("entries", sum.Entries),
		logpkg.Uint64("firstSeq", sum.FirstSeq),
		logpkg.Uint64("lastSeq", sum.LastSeq),
		logpkg.Str("by", admin.ID))
}
