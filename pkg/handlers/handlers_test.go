package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ekaya-inc/ekaya-catalog/pkg/annotations"
	"github.com/ekaya-inc/ekaya-catalog/pkg/catalog"
	"github.com/ekaya-inc/ekaya-catalog/pkg/config"
	"github.com/ekaya-inc/ekaya-catalog/pkg/models"
	"github.com/ekaya-inc/ekaya-catalog/pkg/services"
	"github.com/ekaya-inc/ekaya-catalog/pkg/testhelpers"
)

func newTestRouter(t *testing.T, paths config.Paths) (http.Handler, *annotations.Store) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	reader, err := catalog.NewReader(catalog.NewStore(paths.Metadata, logger), logger)
	require.NoError(t, err)

	notes := annotations.NewStore(paths.AnnotationsDir, logger)
	svc := services.NewCatalogService(reader, paths.LastScan, catalog.DefaultStaleDays, logger)
	cfg := &config.Config{Env: "test", Version: "1.2.3", Paths: paths}
	return NewRouter(NewHealthHandler(cfg, logger), NewCatalogHandler(svc, notes, logger), nil, logger), notes
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name    string
		paths   config.Paths
		status  string
		catalog bool
	}{
		{name: "before first scan", paths: config.NewPaths(t.TempDir()), status: "no_catalog"},
		{name: "with snapshot", paths: testhelpers.WriteCatalog(t, testhelpers.SalesCatalog()), status: "ok", catalog: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestRouter(t, tt.paths)

			rec := get(t, h, "/health")
			require.Equal(t, http.StatusOK, rec.Code)
			got := decode[HealthResponse](t, rec)
			assert.Equal(t, tt.status, got.Status)
			assert.Equal(t, tt.catalog, got.Catalog)
			assert.Equal(t, "1.2.3", got.Version)

			assert.Equal(t, http.StatusNotFound, get(t, h, "/ping").Code)
		})
	}
}

func TestSearch(t *testing.T) {
	h, _ := newTestRouter(t, testhelpers.WriteCatalog(t, testhelpers.SalesCatalog()))

	rec := get(t, h, "/api/search?q=customer,email&limit=2")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[SearchResponse](t, rec)
	assert.Equal(t, []string{"customer", "email"}, got.Keywords)
	require.Len(t, got.Results, 2)
	assert.Equal(t, "Customers", got.Results[0].TableName)
}

func TestSearch_BadRequests(t *testing.T) {
	h, _ := newTestRouter(t, testhelpers.WriteCatalog(t, testhelpers.SalesCatalog()))

	tests := []struct {
		name  string
		url   string
		code  int
		error string
	}{
		{"missing q", "/api/search", http.StatusBadRequest, "invalid_parameters"},
		{"bad limit", "/api/search?q=order&limit=zero", http.StatusBadRequest, "invalid_parameters"},
		{"negative limit", "/api/search?q=order&limit=-1", http.StatusBadRequest, "invalid_parameters"},
		{"injection", "/api/search?q=%27%20OR%20%271%27%3D%271", http.StatusBadRequest, "validation_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, h, tt.url)
			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, tt.error, decode[map[string]string](t, rec)["error"])
		})
	}
}

func TestSearch_NoCatalog(t *testing.T) {
	h, _ := newTestRouter(t, config.NewPaths(t.TempDir()))

	rec := get(t, h, "/api/search?q=order")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "catalog_not_found", decode[map[string]string](t, rec)["error"])

	rec = get(t, h, "/api/status")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[models.CatalogStatus](t, rec).Available)
}

func TestTable(t *testing.T) {
	h, notes := newTestRouter(t, testhelpers.WriteCatalog(t, testhelpers.SalesCatalog()))
	_, _, err := notes.Add("ana", "Sales.dbo.Customers", models.AnnotationNote, "PII in Email")
	require.NoError(t, err)

	rec := get(t, h, "/api/tables/Sales.dbo.Customers")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[TableResponse](t, rec)
	assert.Equal(t, "Sales.dbo.Customers", got.Table)
	require.Len(t, got.Columns, 2)
	assert.Equal(t, "CustomerID", got.Columns[0].ColumnName)
	require.NotNil(t, got.Joins)
	require.Len(t, got.Joins.Inbound, 1)
	assert.Equal(t, "Orders", got.Joins.Inbound[0].TableName)
	require.Len(t, got.Annotations, 1)
	assert.Equal(t, "PII in Email", got.Annotations[0].Content)

	rec = get(t, h, "/api/tables/Sales.dbo.Missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = get(t, h, "/api/tables/Customers")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatus(t *testing.T) {
	h, _ := newTestRouter(t, testhelpers.WriteCatalog(t, testhelpers.SalesCatalog()))

	rec := get(t, h, "/api/status")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[models.CatalogStatus](t, rec)
	assert.True(t, got.Available)
	assert.Equal(t, 3, got.Tables)
	assert.Equal(t, 6, got.Columns)
}
