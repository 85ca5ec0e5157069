package tools

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/loglens/loglens-mcp-server/internal/analysis"
	"github.com/loglens/loglens-mcp-server/internal/tracing"
)

// BuildEventTimelineTool renders a chronological timeline of classified
// events with recurring-pattern detection.
type BuildEventTimelineTool struct {
	*BaseTool
}

// NewBuildEventTimelineTool creates a new tool instance
func NewBuildEventTimelineTool(fetcher Fetcher, logger *zap.Logger) *BuildEventTimelineTool {
	return &BuildEventTimelineTool{
		BaseTool: NewBaseTool(fetcher, logger),
	}
}

// Name returns the tool name
func (t *BuildEventTimelineTool) Name() string {
	return "build_event_timeline"
}

// Annotations returns tool hints for LLMs
func (t *BuildEventTimelineTool) Annotations() *mcp.ToolAnnotations {
	return AnalysisAnnotations("Build Event Timeline")
}

// Description returns the tool description
func (t *BuildEventTimelineTool) Description() string {
	return `Build a chronological timeline of events from a log window.

Each entry carries the classified event type, severity, service, and a
truncated message. Recurring patterns (repeated failures, error bursts,
retry storms) are called out separately with suggested actions.

**When to use:**
- To understand the order of events around an incident
- After trace_causal_chain, to see the surrounding context of a chain

**Related tools:** analyze_log_scope, trace_causal_chain`
}

// InputSchema returns the input schema
func (t *BuildEventTimelineTool) InputSchema() interface{} {
	return windowSchema(nil)
}

// DefaultTimeout returns the recommended timeout
func (t *BuildEventTimelineTool) DefaultTimeout() time.Duration {
	return analysisToolTimeout
}

// Execute executes the tool
func (t *BuildEventTimelineTool) Execute(ctx context.Context, arguments map[string]interface{}) (*mcp.CallToolResult, error) {
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

	ctx, span := tracing.AnalyzerSpan(ctx, "event_timeline", len(rs.Records))
	defer span.End()

	timeline := analysis.BuildTimeline(rs)
	return t.finishAnalysis(ctx, span, t.Name(), "event_timeline", key, w, rs, timeline, nil)
}
