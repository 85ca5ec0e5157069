package tools

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/loglens/loglens-mcp-server/internal/analysis"
	"github.com/loglens/loglens-mcp-server/internal/tracing"
)

// CompareBatchOutcomesTool contrasts failed and successful items inside one
// batch to surface what distinguishes them.
type CompareBatchOutcomesTool struct {
	*BaseTool
}

// NewCompareBatchOutcomesTool creates a new tool instance
func NewCompareBatchOutcomesTool(fetcher Fetcher, logger *zap.Logger) *CompareBatchOutcomesTool {
	return &CompareBatchOutcomesTool{
		BaseTool: NewBaseTool(fetcher, logger),
	}
}

// Name returns the tool name
func (t *CompareBatchOutcomesTool) Name() string {
	return "compare_batch_outcomes"
}

// Annotations returns tool hints for LLMs
func (t *CompareBatchOutcomesTool) Annotations() *mcp.ToolAnnotations {
	return AnalysisAnnotations("Compare Batch Outcomes")
}

// Description returns the tool description
func (t *CompareBatchOutcomesTool) Description() string {
	return `Compare failed against successful items within the same batch.

Picks the largest batch with mixed outcomes, then contrasts the two groups
on timing, services, and shared attributes. The result is a hypothesis with
a confidence score and key differences, e.g. failures clustering in the
last seconds of a batch run point at a timeout or resource exhaustion.

**When to use:**
- A batch job partially failed and you need to know what set the failures apart
- After cluster_error_signatures shows one dominant batch-scoped failure

**Related tools:** cluster_error_signatures, analyze_field_stats, trace_causal_chain`
}

// InputSchema returns the input schema
func (t *CompareBatchOutcomesTool) InputSchema() interface{} {
	return windowSchema(map[string]interface{}{
		"batch_field": map[string]interface{}{
			"type":        "string",
			"description": "Attribute that groups records into batches. Auto-detected (batch_id, transaction_id, feed_id, correlation_id) when omitted.",
		},
	})
}

// DefaultTimeout returns the recommended timeout
func (t *CompareBatchOutcomesTool) DefaultTimeout() time.Duration {
	return analysisToolTimeout
}

// Execute executes the tool
func (t *CompareBatchOutcomesTool) Execute(ctx context.Context, arguments map[string]interface{}) (*mcp.CallToolResult, error) {
	batchField, err := GetStringParam(arguments, "batch_field", false)
	if err != nil {
		return NewToolResultError(err.Error()), nil
	}

	w, err := ParseWindowArgs(arguments)
	if err != nil {
		return NewToolResultError(err.Error()), nil
	}
	key := w.CacheKey("batch_field=" + batchField)
	if text, ok := GetCacheHelper().Get(t.Name(), key); ok {
		return cachedResult(text), nil
	}

	rs, err := t.FetchWindow(ctx, w)
	if err != nil {
		return NewToolResultError(err.Error()), nil
	}

	ctx, span := tracing.AnalyzerSpan(ctx, "batch_comparison", len(rs.Records))
	defer span.End()

	comparison, err := analysis.CompareBatches(rs, batchField)
	if err == nil {
		if sess := GetSessionFromContext(ctx); sess != nil {
			sess.RecordResource("batch_comparison", comparison.BatchID, comparison.BatchField)
		}
	}
	return t.finishAnalysis(ctx, span, t.Name(), "batch_comparison", key, w, rs, comparison, err)
}
