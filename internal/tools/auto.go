package tools

import (
	"context"
	"strconv"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/loglens/loglens-mcp-server/internal/analysis"
	"github.com/loglens/loglens-mcp-server/internal/tracing"
)

// AutoAnalyzeTool inspects a window and dispatches the applicable analyzers
// in one call.
type AutoAnalyzeTool struct {
	*BaseTool
}

// NewAutoAnalyzeTool creates a new tool instance
func NewAutoAnalyzeTool(fetcher Fetcher, logger *zap.Logger) *AutoAnalyzeTool {
	return &AutoAnalyzeTool{
		BaseTool: NewBaseTool(fetcher, logger),
	}
}

// Name returns the tool name
func (t *AutoAnalyzeTool) Name() string {
	return "auto_analyze"
}

// Annotations returns tool hints for LLMs
func (t *AutoAnalyzeTool) Annotations() *mcp.ToolAnnotations {
	return WorkflowAnnotations("Auto Analyze")
}

// Description returns the tool description
func (t *AutoAnalyzeTool) Description() string {
	return `Run every applicable analyzer over one window in a single call.

Inspects the fetched records and dispatches signature clustering when
errors are present, batch comparison when a batch identifier is detectable,
and causal chain reconstruction when a correlation identifier exists. The
combined report merges the results with per-analysis insights and a usage
hint naming what did not run and why.

**When to use:**
- Start of an investigation when you don't yet know which analyzer applies
- As a one-shot triage over a suspicious window

**Related tools:** analyze_log_scope, cluster_error_signatures, compare_batch_outcomes, trace_causal_chain`
}

// InputSchema returns the input schema
func (t *AutoAnalyzeTool) InputSchema() interface{} {
	return windowSchema(map[string]interface{}{
		"batch_field": map[string]interface{}{
			"type":        "string",
			"description": "Batch grouping attribute, auto-detected when omitted.",
		},
		"correlation_field": map[string]interface{}{
			"type":        "string",
			"description": "Correlation attribute for chain reconstruction, auto-detected when omitted.",
		},
		"lookback_minutes": map[string]interface{}{
			"type":        "integer",
			"description": "Causal chain lookback. Defaults to 30.",
			"default":     defaultLookbackMinutes,
		},
	})
}

// DefaultTimeout returns the recommended timeout
func (t *AutoAnalyzeTool) DefaultTimeout() time.Duration {
	return workflowToolTimeout
}

// Execute executes the tool
func (t *AutoAnalyzeTool) Execute(ctx context.Context, arguments map[string]interface{}) (*mcp.CallToolResult, error) {
	batchField, err := GetStringParam(arguments, "batch_field", false)
	if err != nil {
		return NewToolResultError(err.Error()), nil
	}
	correlationField, err := GetStringParam(arguments, "correlation_field", false)
	if err != nil {
		return NewToolResultError(err.Error()), nil
	}
	lookback, err := GetIntParam(arguments, "lookback_minutes", false)
	if err != nil {
		return NewToolResultError(err.Error()), nil
	}
	if lookback <= 0 {
		lookback = defaultLookbackMinutes
	}

	w, err := ParseWindowArgs(arguments)
	if err != nil {
		return NewToolResultError(err.Error()), nil
	}
	key := w.CacheKey("batch_field="+batchField, "correlation_field="+correlationField,
		"lookback="+strconv.Itoa(lookback))
	if text, ok := GetCacheHelper().Get(t.Name(), key); ok {
		return cachedResult(text), nil
	}

	rs, err := t.FetchWindow(ctx, w)
	if err != nil {
		return NewToolResultError(err.Error()), nil
	}

	ctx, span := tracing.AnalyzerSpan(ctx, "auto", len(rs.Records))
	defer span.End()

	report := analysis.AnalyzeAuto(rs, batchField, correlationField, lookback)
	tracing.SetToolResult(span, "combined_report", len(report.AnalysesRun))
	return t.finishAnalysis(ctx, span, t.Name(), "auto", key, w, rs, report, nil)
}
