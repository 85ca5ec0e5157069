package tools

import (
	"go.uber.org/zap"

	"github.com/loglens/loglens-mcp-server/internal/audit"
	"github.com/loglens/loglens-mcp-server/internal/metrics"
)

// AllTools returns every tool the server registers, wired to the shared
// fetcher, audit trail, and metrics recorder.
func AllTools(fetcher Fetcher, auditLogger *audit.Logger, m *metrics.Metrics, logger *zap.Logger) []Tool {
	analyzers := []Tool{
		NewAnalyzeLogScopeTool(fetcher, logger),
		NewBuildEventTimelineTool(fetcher, logger),
		NewClusterErrorSignaturesTool(fetcher, logger),
		NewAnalyzeFieldStatsTool(fetcher, logger),
		NewCompareBatchOutcomesTool(fetcher, logger),
		NewTraceCausalChainTool(fetcher, logger),
		NewAutoAnalyzeTool(fetcher, logger),
	}

	all := make([]Tool, 0, len(analyzers)+2)
	for _, tool := range analyzers {
		if bt, ok := tool.(interface{ WithMetrics(*metrics.Metrics) *BaseTool }); ok {
			bt.WithMetrics(m)
		}
		all = append(all, tool)
	}

	all = append(all,
		NewGetAuditLogTool(auditLogger, logger),
		NewSessionContextTool(logger),
	)
	return all
}
