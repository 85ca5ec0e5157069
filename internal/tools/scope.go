package tools

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/loglens/loglens-mcp-server/internal/analysis"
	"github.com/loglens/loglens-mcp-server/internal/tracing"
)

// AnalyzeLogScopeTool summarizes how widespread a problem is in one window:
// record count, density, status and service breakdowns.
type AnalyzeLogScopeTool struct {
	*BaseTool
}

// NewAnalyzeLogScopeTool creates a new tool instance
func NewAnalyzeLogScopeTool(fetcher Fetcher, logger *zap.Logger) *AnalyzeLogScopeTool {
	return &AnalyzeLogScopeTool{
		BaseTool: NewBaseTool(fetcher, logger),
	}
}

// Name returns the tool name
func (t *AnalyzeLogScopeTool) Name() string {
	return "analyze_log_scope"
}

// Annotations returns tool hints for LLMs
func (t *AnalyzeLogScopeTool) Annotations() *mcp.ToolAnnotations {
	return AnalysisAnnotations("Analyze Log Scope")
}

// Description returns the tool description
func (t *AnalyzeLogScopeTool) Description() string {
	return `Measure how widespread a problem is within a log window.

Returns the record count, density per minute, a status breakdown, the top
affected services, and an interpretation with a suggested next step.

**When to use:**
- First call of an investigation, to size the blast radius
- After narrowing a query, to verify the filter matches what you expect

**Related tools:** build_event_timeline, cluster_error_signatures, auto_analyze`
}

// InputSchema returns the input schema
func (t *AnalyzeLogScopeTool) InputSchema() interface{} {
	return windowSchema(nil)
}

// DefaultTimeout returns the recommended timeout
func (t *AnalyzeLogScopeTool) DefaultTimeout() time.Duration {
	return analysisToolTimeout
}

// Execute executes the tool
func (t *AnalyzeLogScopeTool) Execute(ctx context.Context, arguments map[string]interface{}) (*mcp.CallToolResult, error) {
	w, err := ParseWindowArgs(arguments)
	if err != nil {
		return NewToolResultError(err.Error()), nil
	}
	key := w.CacheKey()
	if text, ok := GetCacheHelper().Get(t.Name(), key); ok {
		return cachedResult(text), nil
	}

	rs, err := t.FetchWindow(ctx, w)
	if err != nil {
		return NewToolResultError(err.Error()), nil
	}

	ctx, span := tracing.AnalyzerSpan(ctx, "log_scope", len(rs.Records))
	defer span.End()

	report := analysis.AnalyzeScope(rs, w.End.Sub(w.Start))
	return t.finishAnalysis(ctx, span, t.Name(), "log_scope", key, w, rs, report, nil)
}
