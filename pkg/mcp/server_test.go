package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/ekaya-inc/ekaya-catalog/pkg/annotations"
	"github.com/ekaya-inc/ekaya-catalog/pkg/catalog"
	"github.com/ekaya-inc/ekaya-catalog/pkg/mcp/tools"
	"github.com/ekaya-inc/ekaya-catalog/pkg/services"
	"github.com/ekaya-inc/ekaya-catalog/pkg/testhelpers"
)

func TestNewServer(t *testing.T) {
	logger := zap.NewNop()
	s := NewServer("test-server", "1.0.0", logger)

	require.NotNil(t, s)
	require.NotNil(t, s.mcp)
	assert.Same(t, logger, s.logger)
	assert.Same(t, s.mcp, s.MCP())
	assert.NotNil(t, s.NewStreamableHTTPServer())
}

func newCatalogServer(t *testing.T) *Server {
	t.Helper()
	logger := zaptest.NewLogger(t)
	paths := testhelpers.WriteCatalog(t, testhelpers.SalesCatalog())
	reader, err := catalog.NewReader(catalog.NewStore(paths.Metadata, logger), logger)
	require.NoError(t, err)

	return NewCatalogServer("ekaya-catalog", "1.2.3", &tools.CatalogToolDeps{
		Catalog:     services.NewCatalogService(reader, paths.LastScan, 7, logger),
		Annotations: annotations.NewStore(paths.AnnotationsDir, logger),
		Author:      "tester",
		Logger:      logger,
	}, logger)
}

func TestCatalogServer_ListsTools(t *testing.T) {
	s := newCatalogServer(t)

	result := s.MCP().HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","method":"tools/list","id":1}`))
	raw, err := json.Marshal(result)
	require.NoError(t, err)

	var response struct {
		Result struct {
			Tools []struct {
				Name string `json:"name"`
			} `json:"tools"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(raw, &response))

	var names []string
	for _, tool := range response.Result.Tools {
		names = append(names, tool.Name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{
		"add_annotation", "catalog_status", "describe_table", "find_join_paths",
		"get_annotations", "health", "search_catalog",
	}, names)
}

func TestCatalogServer_SearchOverHTTP(t *testing.T) {
	s := newCatalogServer(t)
	httpServer := s.NewStreamableHTTPServer()

	body, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"method":  "tools/call",
		"params": map[string]any{
			"name":      "search_catalog",
			"arguments": map[string]any{"keywords": []string{"customer"}, "limit": 2},
		},
		"id": 1,
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	httpServer.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var response struct {
		Result struct {
			Content []mcp.TextContent `json:"content"`
			IsError bool              `json:"isError"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	require.False(t, response.Result.IsError)
	require.Len(t, response.Result.Content, 1)

	var payload struct {
		TotalCount int `json:"total_count"`
		Results    []struct {
			TableName  string `json:"table_name"`
			ColumnName string `json:"column_name"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(response.Result.Content[0].Text), &payload))
	assert.Equal(t, 2, payload.TotalCount)
	assert.Equal(t, "Customers", payload.Results[0].TableName)
}
