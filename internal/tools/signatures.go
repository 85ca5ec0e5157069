package tools

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/loglens/loglens-mcp-server/internal/analysis"
	"github.com/loglens/loglens-mcp-server/internal/tracing"
)

// ClusterErrorSignaturesTool groups error records into signature clusters by
// normalized message template.
type ClusterErrorSignaturesTool struct {
	*BaseTool
}

// NewClusterErrorSignaturesTool creates a new tool instance
func NewClusterErrorSignaturesTool(fetcher Fetcher, logger *zap.Logger) *ClusterErrorSignaturesTool {
	return &ClusterErrorSignaturesTool{
		BaseTool: NewBaseTool(fetcher, logger),
	}
}

// Name returns the tool name
func (t *ClusterErrorSignaturesTool) Name() string {
	return "cluster_error_signatures"
}

// Annotations returns tool hints for LLMs
func (t *ClusterErrorSignaturesTool) Annotations() *mcp.ToolAnnotations {
	return AnalysisAnnotations("Cluster Error Signatures")
}

// Description returns the tool description
func (t *ClusterErrorSignaturesTool) Description() string {
	return `Group error records into clusters of the same underlying failure.

Messages are normalized (UUIDs, URLs, paths, IPs, timestamps and long
numbers replaced with placeholders) so that variable tokens don't split one
failure across many clusters. Clusters come back ranked by occurrence count
with severity, trend, affected services, and a recommendation each.

**When to use:**
- A window has many errors and you need to know how many distinct problems they represent
- To pick the dominant failure before tracing its causal chain

**Related tools:** trace_causal_chain, compare_batch_outcomes, auto_analyze`
}

// InputSchema returns the input schema
func (t *ClusterErrorSignaturesTool) InputSchema() interface{} {
	return windowSchema(nil)
}

// DefaultTimeout returns the recommended timeout
func (t *ClusterErrorSignaturesTool) DefaultTimeout() time.Duration {
	return analysisToolTimeout
}

// Execute executes the tool
func (t *ClusterErrorSignaturesTool) Execute(ctx context.Context, arguments map[string]interface{}) (*mcp.CallToolResult, error) {
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

	ctx, span := tracing.AnalyzerSpan(ctx, "error_signatures", len(rs.Records))
	defer span.End()

	sigs, err := analysis.ClusterErrorSignatures(rs)
	if err == nil && len(sigs) > 0 {
		if sess := GetSessionFromContext(ctx); sess != nil {
			sess.RecordResource("signature_cluster", sigs[0].TemplateHash, sigs[0].PatternName)
		}
	}
	return t.finishAnalysis(ctx, span, t.Name(), "error_signatures", key, w, rs, sigs, err)
}
