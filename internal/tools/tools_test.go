package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/loglens/loglens-mcp-server/internal/analysis"
	"github.com/loglens/loglens-mcp-server/internal/cache"
	"github.com/loglens/loglens-mcp-server/internal/client"
	"github.com/loglens/loglens-mcp-server/internal/session"
)

// stubFetcher returns a canned result set and records the params it was
// called with.
type stubFetcher struct {
	rs     analysis.ResultSet
	err    error
	params client.FetchParams
	calls  int
}

func (f *stubFetcher) FetchPage(_ context.Context, params client.FetchParams) (analysis.ResultSet, error) {
	f.calls++
	f.params = params
	if f.err != nil {
		return analysis.ResultSet{}, f.err
	}
	return f.rs, nil
}

func rec(id string, attrs map[string]any) analysis.Record {
	return analysis.Record{ID: id, Attributes: attrs}
}

func errorWindow() analysis.ResultSet {
	return analysis.ResultSet{Records: []analysis.Record{
		rec("log-1", map[string]any{
			"timestamp": "2024-01-15T10:00:00Z",
			"service":   "order-service",
			"status":    "ok",
			"message":   "order received",
			"order_id":  "ord-1",
		}),
		rec("log-2", map[string]any{
			"timestamp": "2024-01-15T10:01:00Z",
			"service":   "payment-service",
			"status":    "error",
			"message":   "payment failed for order 12345678901: insufficient funds",
			"order_id":  "ord-1",
		}),
		rec("log-3", map[string]any{
			"timestamp": "2024-01-15T10:02:00Z",
			"service":   "payment-service",
			"status":    "error",
			"message":   "payment failed for order 12345678902: insufficient funds",
			"order_id":  "ord-2",
		}),
	}}
}

func explicitWindowArgs(extra map[string]interface{}) map[string]interface{} {
	args := map[string]interface{}{
		"start_date": "2024-01-15T10:00:00Z",
		"end_date":   "2024-01-15T11:00:00Z",
	}
	for k, v := range extra {
		args[k] = v
	}
	return args
}

func decodeEnvelope(t *testing.T, text string) Envelope {
	t.Helper()
	var env Envelope
	if err := json.Unmarshal([]byte(text), &env); err != nil {
		t.Fatalf("response is not an envelope: %v\n%s", err, text)
	}
	return env
}

func TestAnalyzeLogScopeExecute(t *testing.T) {
	cache.GetManager().SetEnabled(false)
	defer cache.GetManager().SetEnabled(true)

	fetcher := &stubFetcher{rs: errorWindow()}
	tool := NewAnalyzeLogScopeTool(fetcher, zap.NewNop())

	res, err := tool.Execute(context.Background(), explicitWindowArgs(map[string]interface{}{
		"query": "status:error",
		"limit": float64(50),
	}))
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if res.IsError {
		t.Fatal("Execute() returned tool error")
	}

	if fetcher.params.Query != "status:error" || fetcher.params.Limit != 50 {
		t.Errorf("fetch params = %+v", fetcher.params)
	}

	text, ok := resultText(res)
	if !ok {
		t.Fatal("expected single text content")
	}
	env := decodeEnvelope(t, text)
	if env.Tool != "analyze_log_scope" {
		t.Errorf("Tool = %q", env.Tool)
	}
	if env.Title != "Analyze Log Scope" {
		t.Errorf("Title = %q", env.Title)
	}
	if env.Window.RecordCount != 3 {
		t.Errorf("RecordCount = %d", env.Window.RecordCount)
	}
}

func TestAnalyzeLogScopeFetchFailure(t *testing.T) {
	cache.GetManager().SetEnabled(false)
	defer cache.GetManager().SetEnabled(true)

	fetcher := &stubFetcher{err: errors.New("HTTP 503: upstream down")}
	tool := NewAnalyzeLogScopeTool(fetcher, zap.NewNop())

	res, err := tool.Execute(context.Background(), explicitWindowArgs(nil))
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected tool error for fetch failure")
	}
}

func TestClusterErrorSignaturesExecute(t *testing.T) {
	cache.GetManager().SetEnabled(false)
	defer cache.GetManager().SetEnabled(true)

	fetcher := &stubFetcher{rs: errorWindow()}
	tool := NewClusterErrorSignaturesTool(fetcher, zap.NewNop())

	res, err := tool.Execute(context.Background(), explicitWindowArgs(nil))
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	text, ok := resultText(res)
	if !ok {
		t.Fatal("expected single text content")
	}
	env := decodeEnvelope(t, text)
	if env.Tool != "cluster_error_signatures" {
		t.Errorf("Tool = %q", env.Tool)
	}

	// Two structurally identical failures must collapse to one cluster.
	raw, _ := json.Marshal(env.Result)
	var sigs []analysis.ErrorSignature
	if err := json.Unmarshal(raw, &sigs); err != nil {
		t.Fatalf("result is not a signature list: %v", err)
	}
	if len(sigs) != 1 {
		t.Fatalf("clusters = %d, want 1", len(sigs))
	}
	if sigs[0].Count != 2 {
		t.Errorf("top cluster count = %d, want 2", sigs[0].Count)
	}
}

func TestClusterErrorSignaturesNotApplicable(t *testing.T) {
	cache.GetManager().SetEnabled(false)
	defer cache.GetManager().SetEnabled(true)

	fetcher := &stubFetcher{rs: analysis.ResultSet{Records: []analysis.Record{
		rec("log-1", map[string]any{
			"timestamp": "2024-01-15T10:00:00Z",
			"status":    "ok",
			"message":   "all good",
		}),
	}}}
	tool := NewClusterErrorSignaturesTool(fetcher, zap.NewNop())

	res, err := tool.Execute(context.Background(), explicitWindowArgs(nil))
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if res.IsError {
		t.Fatal("not-applicable must be a soft result, not a tool error")
	}
	text, _ := resultText(res)
	if !strings.Contains(text, "not_applicable") {
		t.Errorf("expected not_applicable payload, got: %s", text)
	}
}

func TestAnalyzeFieldStatsExecute(t *testing.T) {
	cache.GetManager().SetEnabled(false)
	defer cache.GetManager().SetEnabled(true)

	rs := analysis.ResultSet{Records: []analysis.Record{
		rec("log-1", map[string]any{"timestamp": "2024-01-15T10:00:00Z", "duration_ms": 100.0}),
		rec("log-2", map[string]any{"timestamp": "2024-01-15T10:01:00Z", "duration_ms": 110.0}),
		rec("log-3", map[string]any{"timestamp": "2024-01-15T10:02:00Z", "duration_ms": 120.0}),
	}}
	fetcher := &stubFetcher{rs: rs}
	tool := NewAnalyzeFieldStatsTool(fetcher, zap.NewNop())

	res, err := tool.Execute(context.Background(), explicitWindowArgs(map[string]interface{}{
		"field": "duration_ms",
	}))
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	text, _ := resultText(res)
	env := decodeEnvelope(t, text)

	raw, _ := json.Marshal(env.Result)
	var stats analysis.FieldStatsResult
	if err := json.Unmarshal(raw, &stats); err != nil {
		t.Fatalf("result is not field stats: %v", err)
	}
	if stats.Count != 3 || stats.Min != 100 || stats.Max != 120 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestAnalyzeFieldStatsMissingField(t *testing.T) {
	fetcher := &stubFetcher{rs: errorWindow()}
	tool := NewAnalyzeFieldStatsTool(fetcher, zap.NewNop())

	res, err := tool.Execute(context.Background(), explicitWindowArgs(nil))
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected tool error for missing field parameter")
	}
	if fetcher.calls != 0 {
		t.Error("must not fetch when required parameter is missing")
	}
}

func TestTraceCausalChainExecute(t *testing.T) {
	cache.GetManager().SetEnabled(false)
	defer cache.GetManager().SetEnabled(true)

	fetcher := &stubFetcher{rs: errorWindow()}
	tool := NewTraceCausalChainTool(fetcher, zap.NewNop())

	res, err := tool.Execute(context.Background(), explicitWindowArgs(map[string]interface{}{
		"correlation_field": "order_id",
	}))
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	text, _ := resultText(res)
	env := decodeEnvelope(t, text)

	raw, _ := json.Marshal(env.Result)
	var chain analysis.CausalChain
	if err := json.Unmarshal(raw, &chain); err != nil {
		t.Fatalf("result is not a causal chain: %v", err)
	}
	if chain.CorrelationField != "order_id" {
		t.Errorf("CorrelationField = %q", chain.CorrelationField)
	}
	if len(chain.Chain) == 0 {
		t.Error("expected at least one chain step")
	}
}

func TestAutoAnalyzeExecute(t *testing.T) {
	cache.GetManager().SetEnabled(false)
	defer cache.GetManager().SetEnabled(true)

	fetcher := &stubFetcher{rs: errorWindow()}
	tool := NewAutoAnalyzeTool(fetcher, zap.NewNop())

	res, err := tool.Execute(context.Background(), explicitWindowArgs(nil))
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	text, _ := resultText(res)
	env := decodeEnvelope(t, text)

	raw, _ := json.Marshal(env.Result)
	var report analysis.CombinedReport
	if err := json.Unmarshal(raw, &report); err != nil {
		t.Fatalf("result is not a combined report: %v", err)
	}
	if len(report.AnalysesRun) == 0 {
		t.Error("expected at least one analysis to run on an error window")
	}
}

func TestExecuteRecordsSessionWindow(t *testing.T) {
	cache.GetManager().SetEnabled(false)
	defer cache.GetManager().SetEnabled(true)

	fetcher := &stubFetcher{rs: errorWindow()}
	tool := NewAnalyzeLogScopeTool(fetcher, zap.NewNop())

	sess := session.New()
	ctx := WithSession(context.Background(), sess)
	if _, err := tool.Execute(ctx, explicitWindowArgs(nil)); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	last := sess.GetLastWindow()
	if last == nil {
		t.Fatal("session window not recorded")
	}
	if last.RecordCount != 3 || !last.HasErrors {
		t.Errorf("window = %+v", last)
	}
}

func TestExecuteCachesByWindow(t *testing.T) {
	cache.GetManager().SetEnabled(true)

	fetcher := &stubFetcher{rs: errorWindow()}
	tool := NewBuildEventTimelineTool(fetcher, zap.NewNop())

	// A window distinct from every other test's, so the shared manager
	// cannot serve a stale entry.
	args := map[string]interface{}{
		"start_date": "2023-06-01T00:00:00Z",
		"end_date":   "2023-06-01T01:00:00Z",
		"query":      "cache-window-test",
	}

	if _, err := tool.Execute(context.Background(), args); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	res, err := tool.Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	if fetcher.calls != 1 {
		t.Errorf("fetch calls = %d, want 1 (second call served from cache)", fetcher.calls)
	}
	text, _ := resultText(res)
	env := decodeEnvelope(t, text)
	if !env.Cached {
		t.Error("second response should be marked cached")
	}
}

func TestFetcherFromContextOverridesConstructor(t *testing.T) {
	cache.GetManager().SetEnabled(false)
	defer cache.GetManager().SetEnabled(true)

	constructorFetcher := &stubFetcher{rs: analysis.ResultSet{}}
	contextFetcher := &stubFetcher{rs: errorWindow()}
	tool := NewAnalyzeLogScopeTool(constructorFetcher, zap.NewNop())

	ctx := WithFetcher(context.Background(), contextFetcher)
	if _, err := tool.Execute(ctx, explicitWindowArgs(nil)); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	if contextFetcher.calls != 1 || constructorFetcher.calls != 0 {
		t.Errorf("context fetcher calls = %d, constructor fetcher calls = %d",
			contextFetcher.calls, constructorFetcher.calls)
	}
}

func TestSessionContextToolExecute(t *testing.T) {
	tool := NewSessionContextTool(zap.NewNop())

	res, err := tool.Execute(context.Background(), map[string]interface{}{})
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected tool error without a session in context")
	}

	sess := session.New()
	sess.RecordWindow(session.WindowInfo{Query: "status:error", RecordCount: 10, HasErrors: true})
	ctx := WithSession(context.Background(), sess)

	res, err = tool.Execute(ctx, map[string]interface{}{})
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	text, _ := resultText(res)
	if !strings.Contains(text, "cluster_error_signatures") {
		t.Errorf("expected error-driven suggestion in response: %s", text)
	}
}

func TestToolNamesAndTimeouts(t *testing.T) {
	all := AllTools(&stubFetcher{}, nil, nil, zap.NewNop())
	want := []string{
		"analyze_log_scope",
		"build_event_timeline",
		"cluster_error_signatures",
		"analyze_field_stats",
		"compare_batch_outcomes",
		"trace_causal_chain",
		"auto_analyze",
		"get_audit_log",
		"session_context",
	}
	if len(all) != len(want) {
		t.Fatalf("tool count = %d, want %d", len(all), len(want))
	}
	for i, tool := range all {
		if tool.Name() != want[i] {
			t.Errorf("tool[%d] = %q, want %q", i, tool.Name(), want[i])
		}
		if tool.DefaultTimeout() <= 0 {
			t.Errorf("tool %q has no default timeout", tool.Name())
		}
		if tool.Annotations() == nil {
			t.Errorf("tool %q has no annotations", tool.Name())
		}
		if tool.InputSchema() == nil {
			t.Errorf("tool %q has no input schema", tool.Name())
		}
	}
}
