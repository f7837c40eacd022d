package handlers

import (
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-catalog/pkg/config"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	// Catalog is false until the first scan has written metadata.db.
	Catalog bool `json:"catalog"`
}

// HealthHandler reports whether the server is up and has a catalog to serve.
type HealthHandler struct {
	version  string
	metadata string
	logger   *zap.Logger
}

func NewHealthHandler(cfg *config.Config, logger *zap.Logger) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{version: cfg.Version, metadata: cfg.Paths.Metadata, logger: logger}
}

func (h *HealthHandler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.Health)
}

// Health always answers 200 while the process serves requests. Status is
// "no_catalog" before the first scan so callers can tell an empty server
// from a broken one.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Version: h.version, Catalog: true}
	if _, err := os.Stat(h.metadata); err != nil {
		resp.Status = "no_catalog"
		resp.Catalog = false
	}
	if err := WriteJSON(w, http.StatusOK, resp); err != nil {
		h.logger.Error("Failed to encode health response", zap.Error(err))
	}
}
