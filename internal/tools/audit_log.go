package tools

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/loglens/loglens-mcp-server/internal/audit"
)

// GetAuditLogTool exposes the in-memory audit trail of tool executions.
type GetAuditLogTool struct {
	*BaseTool
	auditLogger *audit.Logger
}

// NewGetAuditLogTool creates a new tool instance
func NewGetAuditLogTool(auditLogger *audit.Logger, logger *zap.Logger) *GetAuditLogTool {
	return &GetAuditLogTool{
		BaseTool:    NewBaseTool(nil, logger),
		auditLogger: auditLogger,
	}
}

// Name returns the tool name
func (t *GetAuditLogTool) Name() string {
	return "get_audit_log"
}

// Annotations returns tool hints for LLMs
func (t *GetAuditLogTool) Annotations() *mcp.ToolAnnotations {
	return ReadOnlyAnnotations("Get Audit Log")
}

// Description returns the tool description
func (t *GetAuditLogTool) Description() string {
	return `Retrieve recent tool executions from the server's audit trail.

Entries carry the tool name, outcome, duration, and trace ID. Filter by
tool name or trace ID to follow one investigation across calls.`
}

// InputSchema returns the input schema
func (t *GetAuditLogTool) InputSchema() interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"limit": map[string]interface{}{
				"type":        "integer",
				"description": "Maximum entries to return. Defaults to 20.",
				"default":     20,
			},
			"tool_name": map[string]interface{}{
				"type":        "string",
				"description": "Only return entries for this tool.",
			},
			"trace_id": map[string]interface{}{
				"type":        "string",
				"description": "Only return entries for this trace.",
			},
			"include_stats": map[string]interface{}{
				"type":        "boolean",
				"description": "Include aggregate audit statistics.",
				"default":     false,
			},
		},
	}
}

// DefaultTimeout returns the recommended timeout
func (t *GetAuditLogTool) DefaultTimeout() time.Duration {
	return metaToolTimeout
}

// Execute executes the tool
func (t *GetAuditLogTool) Execute(ctx context.Context, arguments map[string]interface{}) (*mcp.CallToolResult, error) {
	if t.auditLogger == nil || !t.auditLogger.IsEnabled() {
		return NewToolResultError("audit logging is disabled; set LOGS_ENABLE_AUDIT_LOG=true"), nil
	}

	limit, err := GetIntParam(arguments, "limit", false)
	if err != nil {
		return NewToolResultError(err.Error()), nil
	}
	if limit <= 0 {
		limit = 20
	}
	toolName, err := GetStringParam(arguments, "tool_name", false)
	if err != nil {
		return NewToolResultError(err.Error()), nil
	}
	traceID, err := GetStringParam(arguments, "trace_id", false)
	if err != nil {
		return NewToolResultError(err.Error()), nil
	}
	includeStats, err := GetBoolParam(arguments, "include_stats", false)
	if err != nil {
		return NewToolResultError(err.Error()), nil
	}

	var entries []audit.Entry
	switch {
	case traceID != "":
		entries = t.auditLogger.GetEntriesByTraceID(traceID)
	case toolName != "":
		entries = t.auditLogger.GetEntriesByTool(toolName, limit)
	default:
		entries = t.auditLogger.GetRecentEntries(limit)
	}

	result := map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	}
	if includeStats {
		result["stats"] = t.auditLogger.GetStats()
	}

	return t.FormatResponse(result)
}
