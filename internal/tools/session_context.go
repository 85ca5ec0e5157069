package tools

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

// SessionContextTool reports the investigation state accumulated across tool
// calls: analyzed windows, accessed artifacts, and suggested next tools.
type SessionContextTool struct {
	*BaseTool
}

// NewSessionContextTool creates a new tool instance
func NewSessionContextTool(logger *zap.Logger) *SessionContextTool {
	return &SessionContextTool{
		BaseTool: NewBaseTool(nil, logger),
	}
}

// Name returns the tool name
func (t *SessionContextTool) Name() string {
	return "session_context"
}

// Annotations returns tool hints for LLMs
func (t *SessionContextTool) Annotations() *mcp.ToolAnnotations {
	return ReadOnlyAnnotations("Session Context")
}

// Description returns the tool description
func (t *SessionContextTool) Description() string {
	return `Report the current investigation state.

Returns the last analyzed window, recently analyzed windows, recent errors,
cache statistics, and tool suggestions derived from what has been found so
far. Pass clear=true to reset the session and drop cached analyses.`
}

// InputSchema returns the input schema
func (t *SessionContextTool) InputSchema() interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"clear": map[string]interface{}{
				"type":        "boolean",
				"description": "Reset the session state and invalidate cached analyses.",
				"default":     false,
			},
		},
	}
}

// DefaultTimeout returns the recommended timeout
func (t *SessionContextTool) DefaultTimeout() time.Duration {
	return metaToolTimeout
}

// Execute executes the tool
func (t *SessionContextTool) Execute(ctx context.Context, arguments map[string]interface{}) (*mcp.CallToolResult, error) {
	sess := GetSessionFromContext(ctx)
	if sess == nil {
		return NewToolResultError("no session context available"), nil
	}

	clearSession, err := GetBoolParam(arguments, "clear", false)
	if err != nil {
		return NewToolResultError(err.Error()), nil
	}
	if clearSession {
		sess.Clear()
		invalidated := GetCacheHelper().InvalidateAnalysis()
		return t.FormatResponse(map[string]interface{}{
			"cleared":                   true,
			"cache_entries_invalidated": invalidated,
		})
	}

	result := map[string]interface{}{
		"stats":                sess.GetStats(),
		"last_window":          sess.GetLastWindow(),
		"recent_windows":       sess.GetRecentWindows(),
		"recent_errors":        sess.GetRecentErrors(),
		"suggested_next_tools": sess.SuggestNextTools(),
		"cache":                GetCacheHelper().Stats(),
	}

	return t.FormatResponse(result)
}
