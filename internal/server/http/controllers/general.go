package controllers

import (
	"net/http"

	"github.com/hyperrixel/logos/internal/entry"
	"github.com/hyperrixel/logos/internal/runtime"
	"github.com/hyperrixel/logos/internal/wire"
)

// GeneralController handles general HTTP endpoints: health, the tag
// catalog, the attribute schema, and presence.
type GeneralController struct {
	rt *runtime.Runtime
}

// NewGeneralController creates a new general controller.
func NewGeneralController(rt *runtime.Runtime) *GeneralController {
	return &GeneralController{rt: rt}
}

// RegisterRoutes registers general routes with the given mux.
//
// This method sets up HTTP endpoints for:
// - Health checks (/v1/healthz)
// - Tag catalog (/v1/tags)
// - Attribute types and wire formats (/v1/schema/types)
// - Presence (/v1/presence, /v1/presence/heartbeat)
func (c *GeneralController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/healthz", c.handleHealth)
	mux.HandleFunc("/v1/tags", c.handleTags)
	mux.HandleFunc("/v1/schema/types", c.handleSchemaTypes)
	mux.HandleFunc("/v1/presence", c.handlePresence)
	mux.HandleFunc("/v1/presence/heartbeat", c.handleHeartbeat)
}

// handleHealth returns the health status of the service.
//
// Returns 200 OK with {"status": "ok"} if healthy, 503 Service Unavailable otherwise.
func (c *GeneralController) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := c.rt.CheckHealth(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "not_serving", "not_serving")
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

// handleTags lists every tag the commit catalog has seen.
func (c *GeneralController) handleTags(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"tags": c.rt.Log().Tags()})
}

// handleSchemaTypes lists the registered attribute types and wire formats
// so clients can discover the extensible schema.
func (c *GeneralController) handleSchemaTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"attributeTypes": entry.Types(),
		"formats":        wire.Names(),
	})
}

// handlePresence lists the activity state of every known principal.
func (c *GeneralController) handlePresence(w http.ResponseWriter, r *http.Request) {
	if principalID(r) == "" {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "missing principal header")
		return
	}
	writeJSON(w, map[string]any{"presence": c.rt.Presence().Snapshot()})
}

// handleHeartbeat refreshes the caller's online window.
func (c *GeneralController) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
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
	c.rt.Presence().Heartbeat(id)
	writeJSON(w, heartbeatResp{PrincipalID: id, State: string(c.rt.Presence().State(id))})
}
