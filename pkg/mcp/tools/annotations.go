package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ekaya-inc/ekaya-catalog/pkg/models"
)

type annotationResult struct {
	Target     string            `json:"target"`
	Annotation models.Annotation `json:"annotation"`
}

func registerAddAnnotationTool(s *server.MCPServer, deps *CatalogToolDeps) {
	tool := mcp.NewTool(
		"add_annotation",
		mcp.WithDescription(
			"Attaches a note, quality flag or deprecation notice to a table. "+
				"Quality flags are one of TRUSTED, STALE, INCOMPLETE, EXPERIMENTAL.",
		),
		mcp.WithString(
			"table",
			mcp.Required(),
			mcp.Description("Table as database.schema.table"),
		),
		mcp.WithString(
			"type",
			mcp.Required(),
			mcp.Enum(models.AnnotationNote, models.AnnotationQualityFlag, models.AnnotationDeprecation),
			mcp.Description("Annotation type"),
		),
		mcp.WithString(
			"content",
			mcp.Required(),
			mcp.Description("Annotation text (max 10000 characters)"),
		),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.Annotations == nil {
			return NewErrorResult("annotations_unavailable", "annotations are not configured on this server"), nil
		}
		table, err := req.RequireString("table")
		if err != nil {
			return NewErrorResult(CodeInvalidParameters, err.Error()), nil
		}
		typ, err := req.RequireString("type")
		if err != nil {
			return NewErrorResult(CodeInvalidParameters, err.Error()), nil
		}
		content, err := req.RequireString("content")
		if err != nil {
			return NewErrorResult(CodeInvalidParameters, err.Error()), nil
		}

		a, _, err := deps.Annotations.Add(deps.Author, table, typ, content)
		if err != nil {
			if result := ErrorResultFor(err); result != nil {
				return result, nil
			}
			return nil, fmt.Errorf("add annotation: %w", err)
		}
		return jsonResult(annotationResult{Target: table, Annotation: a})
	})
}

type annotationsResult struct {
	Tables map[string][]models.Annotation `json:"tables"`
	Count  int                            `json:"count"`
}

func registerGetAnnotationsTool(s *server.MCPServer, deps *CatalogToolDeps) {
	tool := mcp.NewTool(
		"get_annotations",
		mcp.WithDescription("Returns the annotations of one table, or of every table when no table is given, merged across all authors."),
		mcp.WithString(
			"table",
			mcp.Description("Optional: table as database.schema.table"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result := annotationsResult{Tables: map[string][]models.Annotation{}}
		if deps.Annotations == nil {
			return jsonResult(result)
		}

		if table := getOptionalString(req, "table"); table != "" {
			list, err := deps.Annotations.ForTarget(table)
			if err != nil {
				return nil, fmt.Errorf("get annotations: %w", err)
			}
			if len(list) > 0 {
				result.Tables[table] = list
			}
			result.Count = len(list)
			return jsonResult(result)
		}

		all, err := deps.Annotations.All()
		if err != nil {
			return nil, fmt.Errorf("get annotations: %w", err)
		}
		for target, list := range all {
			result.Tables[target] = list
			result.Count += len(list)
		}
		return jsonResult(result)
	})
}
