package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-catalog/pkg/annotations"
	"github.com/ekaya-inc/ekaya-catalog/pkg/catalog"
	"github.com/ekaya-inc/ekaya-catalog/pkg/models"
	"github.com/ekaya-inc/ekaya-catalog/pkg/services"
)

// CatalogHandler serves the read-only catalog API.
type CatalogHandler struct {
	catalog     services.CatalogService
	annotations *annotations.Store
	logger      *zap.Logger
}

// NewCatalogHandler creates a CatalogHandler. annotations may be nil.
func NewCatalogHandler(svc services.CatalogService, notes *annotations.Store, logger *zap.Logger) *CatalogHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogHandler{catalog: svc, annotations: notes, logger: logger.Named("api")}
}

// RegisterRoutes registers the catalog routes under /api.
func (h *CatalogHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/search", h.Search)
		r.Get("/tables/{target}", h.Table)
		r.Get("/status", h.Status)
	})
}

// SearchResponse is the body of GET /api/search.
type SearchResponse struct {
	Keywords []string           `json:"keywords"`
	Results  []models.ScoredRow `json:"results"`
}

// Search handles GET /api/search?q=customer,email&limit=20. Keywords are
// comma separated or repeated as q parameters.
func (h *CatalogHandler) Search(w http.ResponseWriter, r *http.Request) {
	var keywords []string
	for _, q := range r.URL.Query()["q"] {
		for _, kw := range strings.Split(q, ",") {
			if kw = strings.TrimSpace(kw); kw != "" {
				keywords = append(keywords, kw)
			}
		}
	}
	if len(keywords) == 0 {
		h.writeError(w, http.StatusBadRequest, "invalid_parameters", "query parameter q is required")
		return
	}

	limit := catalog.DefaultSearchLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.writeError(w, http.StatusBadRequest, "invalid_parameters", "limit must be a positive integer")
			return
		}
		limit = n
	}

	results, err := h.catalog.Search(r.Context(), keywords, limit)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.write(w, SearchResponse{Keywords: keywords, Results: results})
}

// TableResponse is the body of GET /api/tables/{target}.
type TableResponse struct {
	Table       string              `json:"table"`
	Columns     []models.CatalogRow `json:"columns"`
	Joins       *catalog.JoinPaths  `json:"joins"`
	Annotations []models.Annotation `json:"annotations"`
}

// Table handles GET /api/tables/{database.schema.table}.
func (h *CatalogHandler) Table(w http.ResponseWriter, r *http.Request) {
	target := chi.URLParam(r, "target")
	cols, err := h.catalog.Describe(r.Context(), target)
	if err != nil {
		h.fail(w, err)
		return
	}
	joins, err := h.catalog.Joins(r.Context(), target)
	if err != nil {
		h.fail(w, err)
		return
	}

	resp := TableResponse{Table: target, Columns: cols, Joins: joins, Annotations: []models.Annotation{}}
	if h.annotations != nil {
		notes, err := h.annotations.ForTarget(target)
		if err != nil {
			h.logger.Warn("Failed to read annotations", zap.String("table", target), zap.Error(err))
		} else {
			resp.Annotations = notes
		}
	}
	h.write(w, resp)
}

// Status handles GET /api/status.
func (h *CatalogHandler) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.catalog.Status(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	h.write(w, status)
}

func (h *CatalogHandler) write(w http.ResponseWriter, v any) {
	if err := WriteJSON(w, http.StatusOK, v); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (h *CatalogHandler) fail(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("Catalog request failed", zap.Error(err))
		h.writeError(w, status, code, "internal error")
		return
	}
	h.writeError(w, status, code, err.Error())
}

func (h *CatalogHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	if err := ErrorResponse(w, status, code, message); err != nil {
		h.logger.Error("Failed to encode error response", zap.Error(err))
	}
}
