// Package prompts provides pre-built investigation prompts for the log
// analytics server. Each prompt walks the model through a tool sequence for a
// common diagnostic workflow.
package prompts

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

// PromptDefinition represents a prompt with its metadata and handler
type PromptDefinition struct {
	// Prompt is the MCP prompt metadata
	Prompt *mcp.Prompt
	// Handler is the function that generates the prompt content
	Handler mcp.PromptHandler
}

// Registry holds all registered prompts
type Registry struct {
	logger  *zap.Logger
	prompts []*PromptDefinition
}

// NewRegistry creates a new prompt registry with all available prompts
func NewRegistry(logger *zap.Logger) *Registry {
	r := &Registry{
		logger: logger,
	}
	r.registerPrompts()
	return r
}

// GetPrompts returns all registered prompt definitions
func (r *Registry) GetPrompts() []*PromptDefinition {
	return r.prompts
}

// registerPrompts registers all available prompts
func (r *Registry) registerPrompts() {
	r.prompts = []*PromptDefinition{
		r.investigateErrorsPrompt(),
		r.triageBatchFailurePrompt(),
		r.traceEntityFailurePrompt(),
		r.performanceOutliersPrompt(),
		r.compareWindowsPrompt(),
	}
}

// Helper to create a prompt result with user role
func createPromptResult(description, content string) *mcp.GetPromptResult {
	return &mcp.GetPromptResult{
		Description: description,
		Messages: []*mcp.PromptMessage{
			{
				Role: "user",
				Content: &mcp.TextContent{
					Text: content,
				},
			},
		},
	}
}

// getStringArg safely extracts a string argument with a default value
func getStringArg(args map[string]string, key, defaultVal string) string {
	if val, ok := args[key]; ok && val != "" {
		return val
	}
	return defaultVal
}

// investigateErrorsPrompt creates the "investigate_errors" prompt definition
func (r *Registry) investigateErrorsPrompt() *PromptDefinition {
	return &PromptDefinition{
		Prompt: &mcp.Prompt{
			Name:        "investigate_errors",
			Title:       "Investigate Error Spike",
			Description: "Guide through investigating an error spike from blast radius to root cause",
			Arguments: []*mcp.PromptArgument{
				{
					Name:        "query",
					Description: "Filter query narrowing the investigation (e.g. 'service:payment')",
					Required:    false,
				},
			},
		},
		Handler: func(_ context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
			query := getStringArg(req.Params.Arguments, "query", "status:error")

			content := fmt.Sprintf(`Let's investigate this error spike systematically.

**Step 1: Size the blast radius**
- Use: analyze_log_scope with query "%s"
- Note the record count, density per minute, and which services dominate

**Step 2: Count the distinct failures**
- Use: cluster_error_signatures over the same window
- One cluster means one bug; many clusters mean a cascading or infrastructure problem

**Step 3: Chase the dominant failure**
- Take the top cluster and use: trace_causal_chain
- The chain shows the ordered steps that led to the failure and flags missing steps

**Step 4: Confirm with the timeline**
- Use: build_event_timeline to see the surrounding context
- Look for bursts or repeated patterns the chain does not explain

After these four calls I'll correlate the findings and name the most likely root cause.`, query)

			return createPromptResult("Investigate error spike workflow", content), nil
		},
	}
}

// triageBatchFailurePrompt creates the "triage_batch_failure" prompt definition
func (r *Registry) triageBatchFailurePrompt() *PromptDefinition {
	return &PromptDefinition{
		Prompt: &mcp.Prompt{
			Name:        "triage_batch_failure",
			Title:       "Triage Partial Batch Failure",
			Description: "Work out why some items of a batch failed while others succeeded",
			Arguments: []*mcp.PromptArgument{
				{
					Name:        "batch_field",
					Description: "Attribute that groups records into batches (auto-detected if omitted)",
					Required:    false,
				},
			},
		},
		Handler: func(_ context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
			batchField := getStringArg(req.Params.Arguments, "batch_field", "batch_id")

			content := fmt.Sprintf(`A batch partially failed. Let's find what set the failures apart.

**Step 1: Compare outcomes within the batch**
- Use: compare_batch_outcomes with batch_field "%s"
- The comparison contrasts failed and successful items on timing, services, and shared attributes
- Pay attention to the hypothesis and its confidence score

**Step 2: Check the failure shape**
- If the hypothesis mentions timing, use: analyze_field_stats on a duration field to confirm the distribution
- If it mentions a specific service, use: cluster_error_signatures filtered to that service

**Step 3: Reconstruct one failing item**
- Pick a failed item's identifier and use: trace_causal_chain with the matching correlation field
- The chain shows exactly where that item diverged from the successful ones

A timing hypothesis with failures clustered at the end of the run usually means a timeout or quota; an attribute hypothesis usually means bad input data.`, batchField)

			return createPromptResult("Triage batch failure workflow", content), nil
		},
	}
}

// traceEntityFailurePrompt creates the "trace_entity_failure" prompt definition
func (r *Registry) traceEntityFailurePrompt() *PromptDefinition {
	return &PromptDefinition{
		Prompt: &mcp.Prompt{
			Name:        "trace_entity_failure",
			Title:       "Trace Entity Failure",
			Description: "Reconstruct how a single order, transaction, or request came to fail",
			Arguments: []*mcp.PromptArgument{
				{
					Name:        "correlation_field",
					Description: "Attribute linking the entity's records (e.g. 'order_id', 'trace_id')",
					Required:    false,
				},
			},
		},
		Handler: func(_ context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
			correlationField := getStringArg(req.Params.Arguments, "correlation_field", "order_id")

			content := fmt.Sprintf(`Let's reconstruct the story of this failing entity.

**Step 1: Build the causal chain**
- Use: trace_causal_chain with correlation_field "%s"
- The chain starts from the most recent failure and walks backward through every record sharing the identifier
- Anomalies flag missing steps and suspicious timing

**Step 2: Read the conclusion**
- The conclusion names the first failing step, which is usually the cause
- A "missing_event" anomaly means an expected step never logged at all

**Step 3: Widen if needed**
- If the chain is too short, raise lookback_minutes
- Use: build_event_timeline over the same window to see what else happened around the failure
- Use: analyze_log_scope to check whether other entities failed the same way

If several entities share the same first failing step, switch to cluster_error_signatures to quantify the pattern.`, correlationField)

			return createPromptResult("Trace entity failure workflow", content), nil
		},
	}
}

// performanceOutliersPrompt creates the "performance_outliers" prompt definition
func (r *Registry) performanceOutliersPrompt() *PromptDefinition {
	return &PromptDefinition{
		Prompt: &mcp.Prompt{
			Name:        "performance_outliers",
			Title:       "Hunt Performance Outliers",
			Description: "Find and explain latency or size outliers in a log window",
			Arguments: []*mcp.PromptArgument{
				{
					Name:        "field",
					Description: "Numeric field to analyze (e.g. 'duration_ms')",
					Required:    false,
				},
			},
		},
		Handler: func(_ context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
			field := getStringArg(req.Params.Arguments, "field", "duration_ms")

			content := fmt.Sprintf(`Let's hunt for performance outliers.

**Step 1: Get the field's shape**
- Use: analyze_field_stats with field "%s"
- Compare median against p95/p99; a wide gap means a slow tail rather than uniform slowness
- The outlier list carries the record IDs that produced the extremes

**Step 2: Correlate outliers with errors**
- Use: cluster_error_signatures over the same window
- If outlier record IDs appear in a cluster's examples, latency and failures are linked

**Step 3: Check whether outliers cluster in time**
- Use: build_event_timeline and look for bursts around the outlier timestamps

**Step 4: Follow one outlier end to end**
- Take one outlier record's correlation identifier and use: trace_causal_chain

Remember that fields recovered from message payloads are addressable as message_parsed.<key>.`, field)

			return createPromptResult("Performance outlier workflow", content), nil
		},
	}
}

// compareWindowsPrompt creates the "compare_windows" prompt definition
func (r *Registry) compareWindowsPrompt() *PromptDefinition {
	return &PromptDefinition{
		Prompt: &mcp.Prompt{
			Name:        "compare_windows",
			Title:       "Compare Two Windows",
			Description: "Contrast a problem window against a healthy baseline window",
			Arguments: []*mcp.PromptArgument{
				{
					Name:        "query",
					Description: "Filter query applied to both windows",
					Required:    false,
				},
			},
		},
		Handler: func(_ context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
			query := getStringArg(req.Params.Arguments, "query", "")

			content := fmt.Sprintf(`Let's contrast the problem window against a healthy baseline.

**Step 1: Scope both windows**
- Use: analyze_log_scope twice with query "%s": once with the problem window's start_date/end_date, once with a baseline window of the same length
- Compare density per minute and the status breakdowns

**Step 2: Compare failure populations**
- Use: cluster_error_signatures on both windows
- New clusters present only in the problem window are your prime suspects

**Step 3: Compare field distributions**
- Use: analyze_field_stats on a latency field for both windows
- A shifted median means systemic slowdown; a fatter tail means a subset of requests degraded

**Step 4: Summarize the deltas**
I'll line up the two sets of results and call out what changed between baseline and problem window.

Tip: session_context keeps the recently analyzed windows so you don't have to re-enter the dates.`, query)

			return createPromptResult("Compare windows workflow", content), nil
		},
	}
}
