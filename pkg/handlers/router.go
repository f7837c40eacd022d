// Package handlers exposes the catalog over HTTP: a JSON API, health
// checks, and the streamable-HTTP MCP endpoint.
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-catalog/pkg/middleware"
)

// NewRouter mounts the health and catalog routes, and mcpHandler at /mcp
// when it is non-nil.
func NewRouter(health *HealthHandler, catalog *CatalogHandler, mcpHandler http.Handler, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogger(logger))

	health.RegisterRoutes(r)
	catalog.RegisterRoutes(r)
	if mcpHandler != nil {
		r.Handle("/mcp", mcpHandler)
	}
	return r
}
