package mcp

import (
	"context"
	"strings"
	"sync"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

// maxParamSize bounds logged string arguments; annotation content can be long.
const maxParamSize = 512

// maxPreviewSize bounds the logged preview of a tool result.
const maxPreviewSize = 200

// Security levels attached to logged tool calls.
const (
	securityNormal   = "normal"
	securityWarning  = "warning"
	securityCritical = "critical"
)

// CallLogger writes one structured log entry per MCP tool call.
type CallLogger struct {
	logger *zap.Logger

	// startTimes tracks when tool calls begin, keyed by request ID.
	startTimes sync.Map
}

// NewCallLogger creates a CallLogger.
func NewCallLogger(logger *zap.Logger) *CallLogger {
	return &CallLogger{logger: logger.Named("mcp-calls")}
}

// Hooks returns mcp-go Hooks configured to capture tool call events.
func (a *CallLogger) Hooks() *server.Hooks {
	hooks := &server.Hooks{}
	hooks.AddBeforeCallTool(a.beforeCallTool)
	hooks.AddAfterCallTool(a.afterCallTool)
	hooks.AddOnError(a.onError)
	return hooks
}

func (a *CallLogger) beforeCallTool(_ context.Context, id any, _ *mcplib.CallToolRequest) {
	a.startTimes.Store(id, time.Now())
}

func (a *CallLogger) afterCallTool(_ context.Context, id any, req *mcplib.CallToolRequest, result *mcplib.CallToolResult) {
	duration := a.elapsed(id)
	summary := summarizeResult(result)
	level := classifyToolCallSecurity(result)

	fields := []zap.Field{
		zap.String("tool", req.Params.Name),
		zap.Duration("duration", duration),
		zap.Any("params", sanitizeParams(req.Params.Arguments)),
		zap.Any("result", summary),
		zap.String("security_level", level),
	}
	switch level {
	case securityNormal:
		a.logger.Info("Tool call", fields...)
	default:
		a.logger.Warn("Tool call", fields...)
	}
}

func (a *CallLogger) onError(_ context.Context, id any, method mcplib.MCPMethod, message any, err error) {
	if method != mcplib.MethodToolsCall {
		return
	}
	req, ok := message.(*mcplib.CallToolRequest)
	if !ok {
		return
	}

	a.logger.Error("Tool call failed",
		zap.String("tool", req.Params.Name),
		zap.Duration("duration", a.elapsed(id)),
		zap.Any("params", sanitizeParams(req.Params.Arguments)),
		zap.String("security_level", classifyErrorSecurity(err.Error())),
		zap.Error(err))
}

func (a *CallLogger) elapsed(id any) time.Duration {
	if v, ok := a.startTimes.LoadAndDelete(id); ok {
		return time.Since(v.(time.Time))
	}
	return 0
}

// sanitizeParams truncates long string arguments before they are logged.
func sanitizeParams(args any) map[string]any {
	params, ok := args.(map[string]any)
	if !ok || len(params) == 0 {
		return nil
	}
	sanitized := make(map[string]any, len(params))
	for k, v := range params {
		sanitized[k] = sanitizeValue(v)
	}
	return sanitized
}

func sanitizeValue(value any) any {
	switch val := value.(type) {
	case string:
		if len(val) > maxParamSize {
			return val[:maxParamSize] + "...[truncated]"
		}
		return val
	case map[string]any:
		return sanitizeParams(val)
	default:
		return value
	}
}

// summarizeResult creates a compact summary of the tool result.
func summarizeResult(result *mcplib.CallToolResult) map[string]any {
	if result == nil {
		return nil
	}
	summary := map[string]any{
		"is_error": result.IsError,
	}
	if len(result.Content) > 0 {
		summary["content_count"] = len(result.Content)
		for _, c := range result.Content {
			if tc, ok := c.(mcplib.TextContent); ok {
				text := tc.Text
				if len(text) > maxPreviewSize {
					text = text[:maxPreviewSize] + "...[truncated]"
				}
				summary["preview"] = text
				break
			}
		}
	}
	return summary
}

// classifyToolCallSecurity flags error results that report rejected
// injection-like input.
func classifyToolCallSecurity(result *mcplib.CallToolResult) string {
	if result == nil || !result.IsError {
		return securityNormal
	}
	for _, c := range result.Content {
		tc, ok := c.(mcplib.TextContent)
		if !ok {
			continue
		}
		if strings.Contains(strings.ToLower(tc.Text), "injection") {
			return securityCritical
		}
	}
	return securityWarning
}

func classifyErrorSecurity(errMsg string) string {
	if strings.Contains(strings.ToLower(errMsg), "injection") {
		return securityCritical
	}
	return securityWarning
}
