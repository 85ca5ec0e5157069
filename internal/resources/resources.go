// Package resources provides MCP resource handlers for the log analytics server.
// Resources expose read-only data to MCP clients for context and status information.
package resources

import (
	"context"
	"encoding/json"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/loglens/loglens-mcp-server/internal/config"
	"github.com/loglens/loglens-mcp-server/internal/metrics"
)

// Registry holds all registered resources and their handlers
type Registry struct {
	config  *config.Config
	metrics *metrics.Metrics
	logger  *zap.Logger
	version string
}

// NewRegistry creates a new resource registry
func NewRegistry(cfg *config.Config, m *metrics.Metrics, logger *zap.Logger, version string) *Registry {
	return &Registry{
		config:  cfg,
		metrics: m,
		logger:  logger,
		version: version,
	}
}

// RegisteredResource represents a resource with its definition and handler
type RegisteredResource struct {
	Resource *mcp.Resource
	Handler  mcp.ResourceHandler
}

// GetResources returns all registered resources with their handlers
func (r *Registry) GetResources() []RegisteredResource {
	return []RegisteredResource{
		r.aboutResource(),
		r.configResource(),
		r.metricsResource(),
		r.healthResource(),
	}
}

// aboutResource returns the about://service resource describing the analyzers
func (r *Registry) aboutResource() RegisteredResource {
	return RegisteredResource{
		Resource: &mcp.Resource{
			URI:         "about://service",
			Name:        "about://service",
			Title:       "About LogLens",
			Description: "Service information, analyzer catalog, and capabilities",
			MIMEType:    "application/json",
		},
		Handler: func(_ context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			aboutInfo := map[string]interface{}{
				"service": map[string]interface{}{
					"name":        "LogLens",
					"description": "Deterministic log analysis server that condenses raw log windows into structured findings",
					"aliases": []string{
						"LogLens",
						"log analyzer",
					},
				},
				"query_language": map[string]interface{}{
					"name":    "field filters",
					"type":    "key:value filter expressions passed to the upstream log store",
					"example": "status:error AND service:payment",
				},
				"analyzers": map[string]string{
					"analyze_log_scope":        "Window shape: counts, density, per-service and per-status breakdowns",
					"build_event_timeline":     "Chronological event sequence with burst and repetition detection",
					"cluster_error_signatures": "Error clustering by normalized message template",
					"analyze_field_stats":      "Numeric distribution and outliers for one field",
					"compare_batch_outcomes":   "Failed versus successful items within a batch run",
					"trace_causal_chain":       "Backward walk over a correlation identifier to the first failure",
					"auto_analyze":             "Runs the full pipeline and assembles a combined report",
				},
				"mcp_server": map[string]interface{}{
					"version":      r.version,
					"capabilities": []string{"tools", "prompts", "resources"},
				},
			}

			content, err := json.MarshalIndent(aboutInfo, "", "  ")
			if err != nil {
				r.logger.Error("Failed to marshal about info", zap.Error(err))
				return nil, err
			}

			return &mcp.ReadResourceResult{
				Contents: []*mcp.ResourceContents{
					{
						URI:      "about://service",
						MIMEType: "application/json",
						Text:     string(content),
					},
				},
			}, nil
		},
	}
}

// configResource returns the config://current resource
func (r *Registry) configResource() RegisteredResource {
	return RegisteredResource{
		Resource: &mcp.Resource{
			URI:         "config://current",
			Name:        "config://current",
			Title:       "Server Configuration",
			Description: "Current server configuration (sensitive values masked)",
			MIMEType:    "application/json",
		},
		Handler: func(_ context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			// Create a safe config representation (mask sensitive values)
			safeConfig := map[string]interface{}{
				"service_url":        r.config.ServiceURL,
				"region":             r.config.Region,
				"instance_name":      r.config.InstanceName,
				"timeout":            r.config.Timeout.String(),
				"fetch_timeout":      r.config.FetchTimeout.String(),
				"max_page_size":      r.config.MaxPageSize,
				"max_retries":        r.config.MaxRetries,
				"rate_limit":         r.config.RateLimit,
				"rate_limit_burst":   r.config.RateLimitBurst,
				"rate_limit_enabled": r.config.EnableRateLimit,
				"tls_verify":         r.config.TLSVerify,
				"tracing_enabled":    r.config.EnableTracing,
				"audit_log_enabled":  r.config.EnableAuditLog,
				"log_level":          r.config.LogLevel,
				"log_format":         r.config.LogFormat,
				"server_version":     r.version,
				"api_key_configured": r.config.APIKey != "",
			}

			content, err := json.MarshalIndent(safeConfig, "", "  ")
			if err != nil {
				r.logger.Error("Failed to marshal config", zap.Error(err))
				return nil, err
			}

			return &mcp.ReadResourceResult{
				Contents: []*mcp.ResourceContents{
					{
						URI:      "config://current",
						MIMEType: "application/json",
						Text:     string(content),
					},
				},
			}, nil
		},
	}
}

// metricsResource returns the metrics://server resource
func (r *Registry) metricsResource() RegisteredResource {
	return RegisteredResource{
		Resource: &mcp.Resource{
			URI:         "metrics://server",
			Name:        "metrics://server",
			Title:       "Server Metrics",
			Description: "Operational metrics including request counts, latency, and tool usage statistics",
			MIMEType:    "application/json",
		},
		Handler: func(_ context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			stats := r.metrics.GetStats()

			// Convert to JSON-friendly format
			metricsData := map[string]interface{}{
				"requests": map[string]interface{}{
					"total":      stats.TotalRequests,
					"successful": stats.SuccessfulRequests,
					"failed":     stats.FailedRequests,
					"retried":    stats.RetriedRequests,
				},
				"rate_limiting": map[string]interface{}{
					"hits": stats.RateLimitHits,
				},
				"latency": map[string]interface{}{
					"average_ms": stats.AverageLatency.Milliseconds(),
					"max_ms":     stats.MaxLatency.Milliseconds(),
					"min_ms":     stats.MinLatency.Milliseconds(),
				},
				"errors_by_status": stats.ErrorsByStatus,
				"tools": map[string]interface{}{
					"usage":   stats.ToolUsage,
					"errors":  stats.ToolErrors,
					"latency": formatToolLatency(stats.ToolLatency),
				},
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			}

			content, err := json.MarshalIndent(metricsData, "", "  ")
			if err != nil {
				r.logger.Error("Failed to marshal metrics", zap.Error(err))
				return nil, err
			}

			return &mcp.ReadResourceResult{
				Contents: []*mcp.ResourceContents{
					{
						URI:      "metrics://server",
						MIMEType: "application/json",
						Text:     string(content),
					},
				},
			}, nil
		},
	}
}

// healthResource returns the health://status resource
func (r *Registry) healthResource() RegisteredResource {
	return RegisteredResource{
		Resource: &mcp.Resource{
			URI:         "health://status",
			Name:        "health://status",
			Title:       "Health Status",
			Description: "Current health status of the server and upstream log store connectivity",
			MIMEType:    "application/json",
		},
		Handler: func(_ context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			// Simple health status based on metrics
			stats := r.metrics.GetStats()

			var status string
			var statusMessage string
			errorRate := float64(0)
			if stats.TotalRequests > 0 {
				errorRate = float64(stats.FailedRequests) / float64(stats.TotalRequests) * 100
			}

			if errorRate > 50 {
				status = "unhealthy"
				statusMessage = "High error rate detected"
			} else if errorRate > 10 {
				status = "degraded"
				statusMessage = "Elevated error rate"
			} else {
				status = "healthy"
				statusMessage = "All systems operational"
			}

			healthData := map[string]interface{}{
				"status":  status,
				"message": statusMessage,
				"details": map[string]interface{}{
					"error_rate_percent": errorRate,
					"total_requests":     stats.TotalRequests,
					"failed_requests":    stats.FailedRequests,
					"rate_limit_hits":    stats.RateLimitHits,
				},
				"server": map[string]interface{}{
					"version":  r.version,
					"region":   r.config.Region,
					"instance": r.config.InstanceName,
				},
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			}

			content, err := json.MarshalIndent(healthData, "", "  ")
			if err != nil {
				r.logger.Error("Failed to marshal health status", zap.Error(err))
				return nil, err
			}

			return &mcp.ReadResourceResult{
				Contents: []*mcp.ResourceContents{
					{
						URI:      "health://status",
						MIMEType: "application/json",
						Text:     string(content),
					},
				},
			}, nil
		},
	}
}

// formatToolLatency converts time.Duration map to milliseconds for JSON
func formatToolLatency(latency map[string]time.Duration) map[string]int64 {
	result := make(map[string]int64, len(latency))
	for tool, duration := range latency {
		result[tool] = duration.Milliseconds()
	}
	return result
}

// GetResourceTemplates returns resource templates for analyzer reference docs.
// These templates help LLMs understand the analyzers before calling them.
func (r *Registry) GetResourceTemplates() []mcp.ResourceTemplate {
	return []mcp.ResourceTemplate{
		{
			URITemplate: "reference://analyzer/{name}",
			Name:        "Analyzer Reference",
			Description: "Reference documentation for one analyzer: what it computes, its parameters, and how to read the result. Names: log_scope, event_timeline, error_signatures, field_stats, batch_comparison, causal_chain, auto.",
			MIMEType:    "application/json",
		},
		{
			URITemplate: "reference://query/{topic}",
			Name:        "Filter Query Reference",
			Description: "Filter query syntax examples for narrowing analysis windows. Topics: 'basics' and 'fields'.",
			MIMEType:    "application/json",
		},
	}
}

// GetTemplateHandler returns a handler for resource templates
func (r *Registry) GetTemplateHandler() mcp.ResourceHandler {
	return func(_ context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		uri := req.Params.URI

		var content map[string]interface{}

		switch {
		case matchTemplate(uri, "reference://analyzer/"):
			name := extractTemplateName(uri, "reference://analyzer/")
			content = getAnalyzerReference(name)
		case matchTemplate(uri, "reference://query/"):
			topic := extractTemplateName(uri, "reference://query/")
			content = getQueryReference(topic)
		default:
			content = map[string]interface{}{
				"error": "Unknown reference type",
				"available_templates": []string{
					"reference://analyzer/{name}",
					"reference://query/{topic}",
				},
			}
		}

		jsonContent, err := json.MarshalIndent(content, "", "  ")
		if err != nil {
			r.logger.Error("Failed to marshal template", zap.Error(err))
			return nil, err
		}

		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{
				{
					URI:      uri,
					MIMEType: "application/json",
					Text:     string(jsonContent),
				},
			},
		}, nil
	}
}

func matchTemplate(uri, prefix string) bool {
	return len(uri) > len(prefix) && uri[:len(prefix)] == prefix
}

func extractTemplateName(uri, prefix string) string {
	return uri[len(prefix):]
}

// getAnalyzerReference returns reference documentation for one analyzer
func getAnalyzerReference(name string) map[string]interface{} {
	refs := map[string]map[string]interface{}{
		"log_scope": {
			"tool":    "analyze_log_scope",
			"purpose": "Sizes the blast radius of a log window before deeper analysis",
			"parameters": map[string]string{
				"start_date": "RFC3339 window start (default: one hour ago)",
				"end_date":   "RFC3339 window end (default: now)",
				"query":      "optional filter narrowing the window",
			},
			"reading_the_result": []string{
				"density_per_minute above the service's normal rate signals a burst",
				"dominant_services lists who produced most records",
				"status_breakdown shows the error share of the window",
			},
		},
		"event_timeline": {
			"tool":    "build_event_timeline",
			"purpose": "Orders the window's events chronologically and flags bursts and repetitions",
			"reading_the_result": []string{
				"bursts mark sub-windows where event rate spiked",
				"repeated_sequences expose retry loops",
				"the first error event is usually the place to start reading",
			},
		},
		"error_signatures": {
			"tool":    "cluster_error_signatures",
			"purpose": "Collapses error records into clusters by normalized message template",
			"reading_the_result": []string{
				"one cluster means one bug; many clusters suggest a cascade",
				"trend 'rising' means the failure is still getting worse",
				"template_hash is stable across windows, use it to track a failure over time",
			},
		},
		"field_stats": {
			"tool":    "analyze_field_stats",
			"purpose": "Computes the numeric distribution of one field and lists outliers",
			"parameters": map[string]string{
				"field": "required; attribute name, or message_parsed.<key> for values recovered from message payloads",
			},
			"reading_the_result": []string{
				"a large p99/median ratio means a slow tail rather than uniform slowness",
				"outliers carry record identifiers for follow-up tracing",
			},
		},
		"batch_comparison": {
			"tool":    "compare_batch_outcomes",
			"purpose": "Contrasts failed and successful items of one batch run",
			"parameters": map[string]string{
				"batch_field": "optional; attribute grouping records into batches (auto-detected when omitted)",
			},
			"reading_the_result": []string{
				"the hypothesis names the attribute or timing pattern that separates failures",
				"check the confidence score before acting on the hypothesis",
			},
		},
		"causal_chain": {
			"tool":    "trace_causal_chain",
			"purpose": "Walks backward from the most recent failure over a correlation identifier",
			"parameters": map[string]string{
				"correlation_field": "optional; attribute linking an entity's records (auto-detected when omitted)",
				"lookback_minutes":  "how far before the failure to search (default 30)",
			},
			"reading_the_result": []string{
				"the conclusion names the first failing step",
				"a missing_event anomaly means an expected step never logged",
			},
		},
		"auto": {
			"tool":    "auto_analyze",
			"purpose": "Runs scope, timeline, signatures, batch, and causal analysis and assembles a combined report",
			"reading_the_result": []string{
				"analyses_run lists which analyzers produced findings and which were skipped",
				"the summary ranks findings by severity",
			},
		},
	}

	ref, ok := refs[name]
	if !ok {
		names := make([]string, 0, len(refs))
		for n := range refs {
			names = append(names, n)
		}
		return map[string]interface{}{
			"error":               "Unknown analyzer: " + name,
			"available_analyzers": names,
		}
	}
	return ref
}

// getQueryReference returns filter query syntax examples
func getQueryReference(topic string) map[string]interface{} {
	if topic == "fields" {
		return map[string]interface{}{
			"_reference_info": map[string]interface{}{
				"description": "Field addressing in filters and analyzers",
				"topic":       "fields",
			},
			"fields": map[string]string{
				"service":              "Emitting service name",
				"status":               "Record status: ok, error, or unknown",
				"message":              "Raw log message",
				"message_parsed.<key>": "Value recovered from a structured message payload",
			},
			"examples": []map[string]interface{}{
				{
					"name":        "Payload field in field stats",
					"field":       "message_parsed.duration_ms",
					"description": "Analyze a numeric value embedded in the message body",
				},
			},
		}
	}

	// Default to basics
	return map[string]interface{}{
		"_reference_info": map[string]interface{}{
			"description": "Filter query syntax for narrowing analysis windows",
			"topic":       "basics",
		},
		"examples": []map[string]interface{}{
			{
				"name":        "Field exact match",
				"query":       "status:error",
				"description": "Match exact value in field",
			},
			{
				"name":        "Service filter",
				"query":       "service:payment",
				"description": "Restrict the window to one service",
			},
			{
				"name":        "Boolean AND",
				"query":       "status:error AND service:payment",
				"description": "Combine conditions with AND",
			},
			{
				"name":        "Boolean OR",
				"query":       "service:payment OR service:checkout",
				"description": "Match either condition",
			},
			{
				"name":        "Phrase search",
				"query":       "message:\"connection refused\"",
				"description": "Match exact phrase in the message",
			},
		},
		"operators": []string{
			"AND", "OR", "NOT", ":",
		},
	}
}
