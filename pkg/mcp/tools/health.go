package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ekaya-inc/ekaya-catalog/pkg/services"
)

type healthResult struct {
	Status           string `json:"status"`
	Version          string `json:"version"`
	CatalogAvailable bool   `json:"catalog_available"`
}

// RegisterHealthTool adds a health check tool that reports the server
// version and whether a catalog snapshot exists.
func RegisterHealthTool(s *server.MCPServer, version string, catalog services.CatalogService) {
	tool := mcp.NewTool(
		"health",
		mcp.WithDescription("Returns server health status and version"),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result := healthResult{Status: "ok", Version: version}
		if catalog != nil {
			if status, err := catalog.Status(ctx); err == nil {
				result.CatalogAvailable = status.Available
			} else {
				result.Status = "degraded"
			}
		}
		return jsonResult(result)
	})
}
