package tools

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/loglens/loglens-mcp-server/internal/analysis"
	"github.com/loglens/loglens-mcp-server/internal/metrics"
	"github.com/loglens/loglens-mcp-server/internal/tracing"
)

var titleCaser = cases.Title(language.English)

// toolTitle renders a snake_case tool name as a human-readable heading,
// e.g. "cluster_error_signatures" becomes "Cluster Error Signatures".
func toolTitle(name string) string {
	return titleCaser.String(strings.ReplaceAll(name, "_", " "))
}

// NewToolResultError creates an error result the model can act on.
func NewToolResultError(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: message}},
	}
}

// WindowSummary echoes the fetched window back to the caller so follow-up
// calls can reuse or adjust it.
type WindowSummary struct {
	StartDate     string `json:"start_date"`
	EndDate       string `json:"end_date"`
	Query         string `json:"query,omitempty"`
	RecordCount   int    `json:"record_count"`
	HasMore       bool   `json:"has_more,omitempty"`
	NextPageToken string `json:"next_page_token,omitempty"`
}

// Envelope is the uniform analyzer response shape.
type Envelope struct {
	Tool               string        `json:"tool"`
	Title              string        `json:"title"`
	Window             WindowSummary `json:"window"`
	Result             interface{}   `json:"result"`
	SuggestedNextTools []string      `json:"suggested_next_tools,omitempty"`
	Cached             bool          `json:"cached,omitempty"`
}

func summarizeWindow(w WindowArgs, rs analysis.ResultSet) WindowSummary {
	return WindowSummary{
		StartDate:     w.Start.Format(time.RFC3339),
		EndDate:       w.End.Format(time.RFC3339),
		Query:         w.Query,
		RecordCount:   len(rs.Records),
		HasMore:       rs.HasMore,
		NextPageToken: rs.NextPageToken,
	}
}

// FormatAnalysis wraps an analyzer result in the uniform envelope, attaches
// session-driven suggestions, and caches the rendered text under the window
// key.
func (t *BaseTool) FormatAnalysis(ctx context.Context, toolName, cacheKey string, w WindowArgs, rs analysis.ResultSet, result interface{}) (*mcp.CallToolResult, error) {
	env := Envelope{
		Tool:   toolName,
		Title:  toolTitle(toolName),
		Window: summarizeWindow(w, rs),
		Result: result,
	}
	if sess := GetSessionFromContext(ctx); sess != nil {
		env.SuggestedNextTools = sess.SuggestNextTools()
	}

	res, err := t.FormatResponse(env)
	if err != nil {
		return nil, err
	}
	if text, ok := resultText(res); ok && cacheKey != "" {
		GetCacheHelper().Set(toolName, cacheKey, text)
	}
	return res, nil
}

// finishAnalysis is the single exit point for analyzer tool executions. It
// records the span outcome and the analyzer run metric, then maps the result
// or error to an MCP response.
func (t *BaseTool) finishAnalysis(ctx context.Context, span trace.Span, toolName, analyzer, cacheKey string, w WindowArgs, rs analysis.ResultSet, result interface{}, err error) (*mcp.CallToolResult, error) {
	if err == nil {
		tracing.SetSuccess(span)
		t.recordAnalyzer(analyzer, metrics.OutcomeOK)
		return t.FormatAnalysis(ctx, toolName, cacheKey, w, rs, result)
	}

	if analysis.IsNotApplicable(err) {
		tracing.SetSuccess(span)
		t.recordAnalyzer(analyzer, metrics.OutcomeNotApplicable)
	} else {
		tracing.RecordError(span, err)
		t.recordAnalyzer(analyzer, metrics.OutcomeError)
	}
	return t.AnalysisResult(toolName, result, err)
}

// resultText extracts the text payload from a single-content result.
func resultText(res *mcp.CallToolResult) (string, bool) {
	if res == nil || res.IsError || len(res.Content) != 1 {
		return "", false
	}
	tc, ok := res.Content[0].(*mcp.TextContent)
	if !ok {
		return "", false
	}
	return tc.Text, true
}

// cachedResult rebuilds a tool result from cached rendered text, flipping the
// envelope's cached marker when the payload is an envelope.
func cachedResult(text string) *mcp.CallToolResult {
	var env Envelope
	if err := json.Unmarshal([]byte(text), &env); err == nil && env.Tool != "" {
		env.Cached = true
		if b, err := json.MarshalIndent(env, "", "  "); err == nil {
			text = string(b)
		}
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}
