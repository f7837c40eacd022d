package tools

import (
	"encoding/json"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ekaya-inc/ekaya-catalog/pkg/apperrors"
)

// ErrorResponse represents a structured error in tool results. Recoverable
// problems are returned as successful tool results carrying this payload so
// the client sees the details instead of a bare protocol error.
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Error codes returned by catalog tools.
const (
	CodeInvalidParameters = "invalid_parameters"
	CodeNotFound          = "not_found"
	CodeCatalogNotFound   = "catalog_not_found"
	CodeValidation        = "validation_error"
)

// NewErrorResult creates a tool result containing a structured error.
// Use this for recoverable errors the caller can act on (invalid
// parameters, unknown tables). System failures should still return Go
// errors.
func NewErrorResult(code, message string) *mcp.CallToolResult {
	return NewErrorResultWithDetails(code, message, nil)
}

// NewErrorResultWithDetails creates an error result with additional context.
func NewErrorResultWithDetails(code, message string, details any) *mcp.CallToolResult {
	resp := ErrorResponse{
		Error:   true,
		Code:    code,
		Message: message,
		Details: details,
	}
	jsonBytes, _ := json.Marshal(resp)
	result := mcp.NewToolResultText(string(jsonBytes))
	result.IsError = true
	return result
}

// ErrorResultFor maps application errors a caller can fix to tool results.
// It returns nil for anything else, which the handler returns as a Go error.
func ErrorResultFor(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperrors.ErrCatalogNotFound):
		return NewErrorResult(CodeCatalogNotFound,
			"no catalog found; run `ekaya-catalog refresh` to scan the configured targets")
	case errors.Is(err, apperrors.ErrNotFound):
		return NewErrorResult(CodeNotFound, err.Error())
	case errors.Is(err, apperrors.ErrValidation):
		return NewErrorResult(CodeValidation, err.Error())
	}
	return nil
}

// jsonResult marshals v into a text tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(b)), nil
}
