package tools

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/loglens/loglens-mcp-server/internal/analysis"
	"github.com/loglens/loglens-mcp-server/internal/tracing"
)

// AnalyzeFieldStatsTool computes descriptive statistics and outliers for one
// numeric attribute across a window.
type AnalyzeFieldStatsTool struct {
	*BaseTool
}

// NewAnalyzeFieldStatsTool creates a new tool instance
func NewAnalyzeFieldStatsTool(fetcher Fetcher, logger *zap.Logger) *AnalyzeFieldStatsTool {
	return &AnalyzeFieldStatsTool{
		BaseTool: NewBaseTool(fetcher, logger),
	}
}

// Name returns the tool name
func (t *AnalyzeFieldStatsTool) Name() string {
	return "analyze_field_stats"
}

// Annotations returns tool hints for LLMs
func (t *AnalyzeFieldStatsTool) Annotations() *mcp.ToolAnnotations {
	return AnalysisAnnotations("Analyze Field Stats")
}

// Description returns the tool description
func (t *AnalyzeFieldStatsTool) Description() string {
	return `Compute descriptive statistics for a numeric field across a log window.

Returns min/max/mean/median/p95/p99/stddev, a 10-bucket distribution, and
IQR-based outliers with the record IDs that produced them. Dotted paths
reach into nested attributes, including message_parsed.* keys recovered
during normalization (e.g. "message_parsed.latency_ms").

**When to use:**
- A latency, size, or count field looks suspicious and you need its shape
- To confirm whether outlier records line up with an error cluster

**Related tools:** cluster_error_signatures, compare_batch_outcomes`
}

// InputSchema returns the input schema
func (t *AnalyzeFieldStatsTool) InputSchema() interface{} {
	return windowSchema(map[string]interface{}{
		"field": map[string]interface{}{
			"type":        "string",
			"description": "Dotted path of the numeric attribute to analyze, e.g. 'duration_ms' or 'message_parsed.total_fee'.",
		},
	}, "field")
}

// DefaultTimeout returns the recommended timeout
func (t *AnalyzeFieldStatsTool) DefaultTimeout() time.Duration {
	return analysisToolTimeout
}

// Execute executes the tool
func (t *AnalyzeFieldStatsTool) Execute(ctx context.Context, arguments map[string]interface{}) (*mcp.CallToolResult, error) {
	field, err := GetStringParam(arguments, "field", true)
	if err != nil {
		return NewToolResultError(err.Error()), nil
	}

	w, err := ParseWindowArgs(arguments)
	if err != nil {
		return NewToolResultError(err.Error()), nil
	}
	key := w.CacheKey("field=" + field)
	if text, ok := GetCacheHelper().Get(t.Name(), key); ok {
		return cachedResult(text), nil
	}

	rs, err := t.FetchWindow(ctx, w)
	if err != nil {
		return NewToolResultError(err.Error()), nil
	}

	ctx, span := tracing.AnalyzerSpan(ctx, "field_stats", len(rs.Records))
	defer span.End()

	stats, err := analysis.ComputeFieldStats(rs, field)
	return t.finishAnalysis(ctx, span, t.Name(), "field_stats", key, w, rs, stats, err)
}
