// Package tools provides the MCP tools of ekaya-catalog.
package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-catalog/pkg/annotations"
	"github.com/ekaya-inc/ekaya-catalog/pkg/catalog"
	"github.com/ekaya-inc/ekaya-catalog/pkg/models"
	"github.com/ekaya-inc/ekaya-catalog/pkg/services"
)

const maxSearchLimit = 100

// CatalogToolDeps contains dependencies for the catalog tools.
type CatalogToolDeps struct {
	Catalog     services.CatalogService
	Annotations *annotations.Store
	// Author attributes annotations added through MCP.
	Author string
	Logger *zap.Logger
}

func (d *CatalogToolDeps) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

// RegisterCatalogTools registers the catalog query and annotation tools.
func RegisterCatalogTools(s *server.MCPServer, deps *CatalogToolDeps) {
	registerSearchCatalogTool(s, deps)
	registerDescribeTableTool(s, deps)
	registerFindJoinPathsTool(s, deps)
	registerCatalogStatusTool(s, deps)
	registerAddAnnotationTool(s, deps)
	registerGetAnnotationsTool(s, deps)
}

type searchResult struct {
	Keywords   []string           `json:"keywords"`
	Results    []models.ScoredRow `json:"results"`
	TotalCount int                `json:"total_count"`
}

func registerSearchCatalogTool(s *server.MCPServer, deps *CatalogToolDeps) {
	tool := mcp.NewTool(
		"search_catalog",
		mcp.WithDescription(
			"Keyword search over every scanned table and column. "+
				"Each keyword scores 3 on a table name match, 2 on a column name match and 1 on a database name match; "+
				"primary and foreign keys rank higher. "+
				"Example: search_catalog(keywords=['customer','email']).",
		),
		mcp.WithArray(
			"keywords",
			mcp.Required(),
			mcp.Description("Keywords to match (case-insensitive substrings)"),
		),
		mcp.WithNumber(
			"limit",
			mcp.Description(fmt.Sprintf("Maximum number of results (default %d, max %d)", catalog.DefaultSearchLimit, maxSearchLimit)),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		keywords := getStringSlice(req, "keywords")
		if len(keywords) == 0 {
			return NewErrorResult(CodeInvalidParameters, "keywords parameter cannot be empty"), nil
		}
		limit := min(getOptionalInt(req, "limit", catalog.DefaultSearchLimit), maxSearchLimit)

		results, err := deps.Catalog.Search(ctx, keywords, limit)
		if err != nil {
			if result := ErrorResultFor(err); result != nil {
				return result, nil
			}
			return nil, fmt.Errorf("search catalog: %w", err)
		}
		return jsonResult(searchResult{Keywords: keywords, Results: results, TotalCount: len(results)})
	})
}

type describeResult struct {
	Table       string              `json:"table"`
	Columns     []models.CatalogRow `json:"columns"`
	Annotations []models.Annotation `json:"annotations,omitempty"`
}

func registerDescribeTableTool(s *server.MCPServer, deps *CatalogToolDeps) {
	tool := mcp.NewTool(
		"describe_table",
		mcp.WithDescription("Lists the columns of one table in ordinal order with key flags, foreign key references and any profiling stats, plus the table's annotations."),
		mcp.WithString(
			"table",
			mcp.Required(),
			mcp.Description("Table as database.schema.table (e.g. 'Sales.dbo.Orders')"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		table, err := req.RequireString("table")
		if err != nil {
			return NewErrorResult(CodeInvalidParameters, err.Error()), nil
		}
		cols, err := deps.Catalog.Describe(ctx, table)
		if err != nil {
			if result := ErrorResultFor(err); result != nil {
				return result, nil
			}
			return nil, fmt.Errorf("describe table: %w", err)
		}

		result := describeResult{Table: table, Columns: cols}
		if deps.Annotations != nil {
			notes, err := deps.Annotations.ForTarget(table)
			if err != nil {
				deps.logger().Warn("Failed to read annotations", zap.String("table", table), zap.Error(err))
			}
			result.Annotations = notes
		}
		return jsonResult(result)
	})
}

func registerFindJoinPathsTool(s *server.MCPServer, deps *CatalogToolDeps) {
	tool := mcp.NewTool(
		"find_join_paths",
		mcp.WithDescription("Lists the foreign keys of a table (outbound) and the foreign keys of other tables that reference it (inbound)."),
		mcp.WithString(
			"table",
			mcp.Required(),
			mcp.Description("Table as database.schema.table"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		table, err := req.RequireString("table")
		if err != nil {
			return NewErrorResult(CodeInvalidParameters, err.Error()), nil
		}
		paths, err := deps.Catalog.Joins(ctx, table)
		if err != nil {
			if result := ErrorResultFor(err); result != nil {
				return result, nil
			}
			return nil, fmt.Errorf("find join paths: %w", err)
		}
		return jsonResult(paths)
	})
}

func registerCatalogStatusTool(s *server.MCPServer, deps *CatalogToolDeps) {
	tool := mcp.NewTool(
		"catalog_status",
		mcp.WithDescription("Reports catalog size, when each target was last scanned, and which targets are stale."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		status, err := deps.Catalog.Status(ctx)
		if err != nil {
			return nil, fmt.Errorf("catalog status: %w", err)
		}
		return jsonResult(status)
	})
}
