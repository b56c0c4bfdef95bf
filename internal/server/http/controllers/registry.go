package controllers

import (
	"net/http"

	"github.com/hyperrixel/logos/internal/metrics"
	"github.com/hyperrixel/logos/internal/runtime"
	logpkg "github.com/hyperrixel/logos/pkg/log"
)

// ControllerRegistry manages all HTTP controllers.
//
// It provides a centralized way to register all controller routes
// and manages the lifecycle of individual controllers.
type ControllerRegistry struct {
	rt        *runtime.Runtime
	general   *GeneralController
	entries   *EntriesController
	subscribe *SubscribeController
	admin     *AdminController
}

// NewControllerRegistry creates a new controller registry.
//
// It initializes all controllers with the provided runtime and logger.
func NewControllerRegistry(rt *runtime.Runtime, logger logpkg.Logger) *ControllerRegistry {
	return &ControllerRegistry{
		rt:        rt,
		general:   NewGeneralController(rt),
		entries:   NewEntriesController(rt, logger),
		subscribe: NewSubscribeController(rt, logger),
		admin:     NewAdminController(rt, logger),
	}
}

// RegisterAllRoutes registers all controller routes with the given mux.
//
// This method sets up all HTTP endpoints for the Logos service: general
// endpoints (health, tags, schema, presence, metrics), entry submission
// and queries, live subscriptions, and admin operations.
func (r *ControllerRegistry) RegisterAllRoutes(mux *http.ServeMux) {
	r.general.RegisterRoutes(mux)
	r.entries.RegisterRoutes(mux)
	r.subscribe.RegisterRoutes(mux)
	r.admin.RegisterRoutes(mux)
	mux.Handle("/metrics", metrics.Handler(r.rt.MetricsRegistry()))
}
