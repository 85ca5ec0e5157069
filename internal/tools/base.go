package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/loglens/loglens-mcp-server/internal/analysis"
	"github.com/loglens/loglens-mcp-server/internal/client"
	mcperrors "github.com/loglens/loglens-mcp-server/internal/errors"
	"github.com/loglens/loglens-mcp-server/internal/metrics"
	"github.com/loglens/loglens-mcp-server/internal/session"
)

// Fetch defaults shared by all analyzer tools. A one-hour window ending now
// is the fallback when the caller gives no dates.
const (
	defaultWindowDuration = time.Hour
	defaultFetchLimit     = 100

	// Responses above this size are truncated with a notice rather than
	// flooding the model context.
	maxResponseBytes = 512 * 1024
)

// BaseTool provides common functionality for all tools
type BaseTool struct {
	fetcher Fetcher
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewBaseTool creates a new base tool
func NewBaseTool(fetcher Fetcher, logger *zap.Logger) *BaseTool {
	return &BaseTool{
		fetcher: fetcher,
		logger:  logger,
	}
}

// WithMetrics attaches a metrics recorder for analyzer run outcomes.
func (t *BaseTool) WithMetrics(m *metrics.Metrics) *BaseTool {
	t.metrics = m
	return t
}

func (t *BaseTool) recordAnalyzer(analyzer, outcome string) {
	if t.metrics != nil {
		t.metrics.RecordAnalyzerRun(analyzer, outcome)
	}
}

// resolveFetcher prefers a request-scoped fetcher from the context over the
// one the tool was constructed with.
func (t *BaseTool) resolveFetcher(ctx context.Context) (Fetcher, error) {
	if f, err := GetFetcherFromContext(ctx); err == nil {
		return f, nil
	}
	if t.fetcher != nil {
		return t.fetcher, nil
	}
	return nil, ErrNoFetcherInContext
}

// WindowArgs holds the fetch-window parameters common to every analyzer tool.
type WindowArgs struct {
	Start     time.Time
	End       time.Time
	Query     string
	Limit     int
	PageToken string
	KeepNoisy bool
}

// ParseWindowArgs extracts the shared window parameters from tool arguments.
// start_date and end_date are RFC 3339; omitted dates default to the last
// hour. An inverted window is rejected up front.
func ParseWindowArgs(arguments map[string]interface{}) (WindowArgs, error) {
	var w WindowArgs

	startStr, err := GetStringParam(arguments, "start_date", false)
	if err != nil {
		return w, err
	}
	endStr, err := GetStringParam(arguments, "end_date", false)
	if err != nil {
		return w, err
	}

	now := time.Now().UTC()
	w.End = now
	w.Start = now.Add(-defaultWindowDuration)

	if startStr != "" {
		ts, err := time.Parse(time.RFC3339, startStr)
		if err != nil {
			return w, fmt.Errorf("invalid start_date %q: expected RFC 3339 timestamp", startStr)
		}
		w.Start = ts
	}
	if endStr != "" {
		ts, err := time.Parse(time.RFC3339, endStr)
		if err != nil {
			return w, fmt.Errorf("invalid end_date %q: expected RFC 3339 timestamp", endStr)
		}
		w.End = ts
	}
	if !w.End.After(w.Start) {
		return w, fmt.Errorf("end_date must be after start_date")
	}

	if w.Query, err = GetStringParam(arguments, "query", false); err != nil {
		return w, err
	}
	if w.Limit, err = GetIntParam(arguments, "limit", false); err != nil {
		return w, err
	}
	if w.Limit <= 0 {
		w.Limit = defaultFetchLimit
	}
	if w.PageToken, err = GetStringParam(arguments, "page_token", false); err != nil {
		return w, err
	}
	if w.KeepNoisy, err = GetBoolParam(arguments, "keep_noisy_attributes", false); err != nil {
		return w, err
	}

	return w, nil
}

// CacheKey derives a cache key from the window parameters plus any
// tool-specific extras. Two calls with identical explicit windows hit the
// same entry.
func (w WindowArgs) CacheKey(extra ...string) string {
	key := fmt.Sprintf("%s|%s|%s|%d|%s|%t",
		w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339),
		w.Query, w.Limit, w.PageToken, w.KeepNoisy)
	for _, e := range extra {
		key += "|" + e
	}
	return key
}

// FetchWindow fetches one page of records for the given window and runs
// normalization over it. The returned result set is what every analyzer
// consumes. Session state, when present, is updated with the window summary.
func (t *BaseTool) FetchWindow(ctx context.Context, w WindowArgs) (analysis.ResultSet, error) {
	fetcher, err := t.resolveFetcher(ctx)
	if err != nil {
		return analysis.ResultSet{}, err
	}

	rs, err := fetcher.FetchPage(ctx, client.FetchParams{
		Start:     w.Start,
		End:       w.End,
		Query:     w.Query,
		Limit:     w.Limit,
		PageToken: w.PageToken,
	})
	if err != nil {
		return analysis.ResultSet{}, fmt.Errorf("log fetch failed: %w", err)
	}

	rs = analysis.NormalizeAll(rs, analysis.NormalizeOptions{KeepNoisyAttributes: w.KeepNoisy})

	if sess := GetSessionFromContext(ctx); sess != nil {
		sess.RecordWindow(windowInfo(w, rs))
	}

	return rs, nil
}

// windowInfo summarizes a fetched window for session tracking.
func windowInfo(w WindowArgs, rs analysis.ResultSet) session.WindowInfo {
	hasErrors := false
	seen := make(map[string]bool)
	var services []string
	for _, rec := range rs.Records {
		if rec.IsError() {
			hasErrors = true
		}
		if svc := rec.Service(); svc != "" && !seen[svc] && len(services) < 5 {
			seen[svc] = true
			services = append(services, svc)
		}
	}
	return session.WindowInfo{
		Query:       w.Query,
		StartDate:   w.Start.Format(time.RFC3339),
		EndDate:     w.End.Format(time.RFC3339),
		RecordCount: len(rs.Records),
		HasErrors:   hasErrors,
		TopServices: services,
	}
}

// FormatResponse formats the response as text content for MCP
func (t *BaseTool) FormatResponse(result interface{}) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to format response: %w", err)
	}

	text := string(jsonBytes)
	if len(text) > maxResponseBytes {
		text = text[:maxResponseBytes] + "\n... [response truncated, narrow the window or lower the limit]"
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil
}

// AnalysisResult maps an analyzer outcome to an MCP result. Not-applicable
// outcomes are soft: the caller gets a structured explanation with a
// suggestion instead of a protocol error. Missing-input failures surface as
// tool errors the model can correct.
func (t *BaseTool) AnalysisResult(toolName string, result interface{}, err error) (*mcp.CallToolResult, error) {
	if err == nil {
		return t.FormatResponse(result)
	}

	var na *analysis.NotApplicableError
	if errors.As(err, &na) {
		structured := mcperrors.NewAnalysisNotApplicable(na.Analyzer, na.Reason, na.Suggestion)
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: structured.ToJSON()}},
		}, nil
	}

	var mi *analysis.MissingInputError
	if errors.As(err, &mi) {
		structured := mcperrors.NewMissingParameter(mi.Param).WithDetails(mi.Detail)
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{&mcp.TextContent{Text: structured.ToJSON()}},
		}, nil
	}

	if t.logger != nil {
		t.logger.Error("tool execution failed",
			zap.String("tool", toolName),
			zap.Error(err))
	}
	return nil, err
}

// GetStringParam safely gets a string parameter from arguments.
// Numeric identifiers are accepted and converted, since models frequently
// pass IDs as numbers.
func GetStringParam(arguments map[string]interface{}, key string, required bool) (string, error) {
	val, exists := arguments[key]
	if !exists {
		if required {
			return "", fmt.Errorf("missing required parameter: %s", key)
		}
		return "", nil
	}

	switch v := val.(type) {
	case string:
		return v, nil
	case int:
		return strconv.Itoa(v), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("parameter %s must be a string", key)
	}
}

// GetObjectParam safely gets an object parameter from arguments
func GetObjectParam(arguments map[string]interface{}, key string, required bool) (map[string]interface{}, error) {
	val, exists := arguments[key]
	if !exists {
		if required {
			return nil, fmt.Errorf("missing required parameter: %s", key)
		}
		return nil, nil
	}

	obj, ok := val.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("parameter %s must be an object", key)
	}

	return obj, nil
}

// GetIntParam safely gets an integer parameter from arguments
func GetIntParam(arguments map[string]interface{}, key string, required bool) (int, error) {
	val, exists := arguments[key]
	if !exists {
		if required {
			return 0, fmt.Errorf("missing required parameter: %s", key)
		}
		return 0, nil
	}

	// Handle both float64 (JSON numbers) and int
	switch v := val.(type) {
	case float64:
		return int(v), nil
	case int:
		return v, nil
	default:
		return 0, fmt.Errorf("parameter %s must be a number", key)
	}
}

// GetBoolParam safely gets a boolean parameter from arguments.
// The strings "true" and "false" are accepted as a convenience.
func GetBoolParam(arguments map[string]interface{}, key string, required bool) (bool, error) {
	val, exists := arguments[key]
	if !exists {
		if required {
			return false, fmt.Errorf("missing required parameter: %s", key)
		}
		return false, nil
	}

	switch v := val.(type) {
	case bool:
		return v, nil
	case string:
		if v == "true" {
			return true, nil
		}
		if v == "false" {
			return false, nil
		}
		return false, fmt.Errorf("parameter %s must be a boolean", key)
	default:
		return false, fmt.Errorf("parameter %s must be a boolean", key)
	}
}
