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

// Default lookback when reconstructing the events that led up to a failure.
const defaultLookbackMinutes = 30

// TraceCausalChainTool reconstructs the ordered chain of events sharing a
// correlation identifier, leading up to and including a failure.
type TraceCausalChainTool struct {
	*BaseTool
}

// NewTraceCausalChainTool creates a new tool instance
func NewTraceCausalChainTool(fetcher Fetcher, logger *zap.Logger) *TraceCausalChainTool {
	return &TraceCausalChainTool{
		BaseTool: NewBaseTool(fetcher, logger),
	}
}

// Name returns the tool name
func (t *TraceCausalChainTool) Name() string {
	return "trace_causal_chain"
}

// Annotations returns tool hints for LLMs
func (t *TraceCausalChainTool) Annotations() *mcp.ToolAnnotations {
	return AnalysisAnnotations("Trace Causal Chain")
}

// Description returns the tool description
func (t *TraceCausalChainTool) Description() string {
	return `Reconstruct the chain of events that led to a failure.

Starting from the most recent error, walks backward through records sharing
the same correlation identifier within the lookback window and orders them
chronologically. Gaps (an expected step that never logged) and timing
bursts are flagged as anomalies, and the conclusion names the first failing
step.

**When to use:**
- You have a failing entity (order, transaction, request) and need the story of how it got there
- After cluster_error_signatures identified which failure to chase

**Related tools:** build_event_timeline, cluster_error_signatures, auto_analyze`
}

// InputSchema returns the input schema
func (t *TraceCausalChainTool) InputSchema() interface{} {
	return windowSchema(map[string]interface{}{
		"correlation_field": map[string]interface{}{
			"type":        "string",
			"description": "Attribute linking records to one entity. Auto-detected (order_id, trace_id, transaction_id, request_id, correlation_id) when omitted.",
		},
		"lookback_minutes": map[string]interface{}{
			"type":        "integer",
			"description": "How far back from the failure to include chain events. Defaults to 30.",
			"default":     defaultLookbackMinutes,
		},
	})
}

// DefaultTimeout returns the recommended timeout
func (t *TraceCausalChainTool) DefaultTimeout() time.Duration {
	return analysisToolTimeout
}

// Execute executes the tool
func (t *TraceCausalChainTool) Execute(ctx context.Context, arguments map[string]interface{}) (*mcp.CallToolResult, error) {
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
	key := w.CacheKey("correlation_field="+correlationField, "lookback="+strconv.Itoa(lookback))
	if text, ok := GetCacheHelper().Get(t.Name(), key); ok {
		return cachedResult(text), nil
	}

	rs, err := t.FetchWindow(ctx, w)
	if err != nil {
		return NewToolResultError(err.Error()), nil
	}

	ctx, span := tracing.AnalyzerSpan(ctx, "causal_chain", len(rs.Records))
	defer span.End()

	chain, err := analysis.BuildCausalChain(rs, correlationField, lookback)
	if err == nil {
		if sess := GetSessionFromContext(ctx); sess != nil {
			sess.RecordResource("causal_chain", chain.EntityID, chain.CorrelationField)
		}
	}
	return t.finishAnalysis(ctx, span, t.Name(), "causal_chain", key, w, rs, chain, err)
}
