package analysis

import (
	"strings"
	"testing"
)

func timelineRecord(ts, service, status, message string) Record {
	return Record{ID: ts, Attributes: map[string]any{
		"timestamp": ts,
		"service":   service,
		"status":    status,
		"message":   message,
	}}
}

func TestBuildTimelineOrdersChronologically(t *testing.T) {
	rs := ResultSet{Records: []Record{
		timelineRecord("2024-01-15T10:05:00Z", "api", "info", "third"),
		timelineRecord("2024-01-15T10:01:00Z", "api", "info", "first"),
		timelineRecord("2024-01-15T10:03:00Z", "api", "info", "second"),
	}}

	tl := BuildTimeline(rs)

	for i := 1; i < len(tl.Entries); i++ {
		if tl.Entries[i-1].Timestamp > tl.Entries[i].Timestamp {
			t.Fatalf("entries out of order at %d: %s > %s", i, tl.Entries[i-1].Timestamp, tl.Entries[i].Timestamp)
		}
	}
	if tl.Entries[0].Message != "first" {
		t.Errorf("first entry message = %q", tl.Entries[0].Message)
	}
}

func TestBuildTimelineTruncatesMessages(t *testing.T) {
	long := strings.Repeat("x", 500)
	rs := ResultSet{Records: []Record{
		timelineRecord("2024-01-15T10:00:00Z", "api", "info", long),
	}}
	tl := BuildTimeline(rs)
	if len(tl.Entries[0].Message) != 200 {
		t.Errorf("message length = %d, want 200", len(tl.Entries[0].Message))
	}
}

func TestTimelinePatterns(t *testing.T) {
	tests := []struct {
		name    string
		records []Record
		want    string
	}{
		{
			name: "error cascade across services",
			records: []Record{
				timelineRecord("2024-01-15T10:00:00Z", "api", "error", "error in handler"),
				timelineRecord("2024-01-15T10:01:00Z", "db", "error", "error in query"),
			},
			want: PatternErrorCascade,
		},
		{
			name: "deployment immediately followed by error",
			records: []Record{
				timelineRecord("2024-01-15T10:00:00Z", "api", "info", "Deployment of api started"),
				timelineRecord("2024-01-15T10:01:00Z", "api", "error", "error: handler panic"),
			},
			want: PatternDeployError,
		},
		{
			name: "repeated errors in one service",
			records: []Record{
				timelineRecord("2024-01-15T10:00:00Z", "api", "error", "error one"),
				timelineRecord("2024-01-15T10:01:00Z", "api", "error", "error two"),
				timelineRecord("2024-01-15T10:02:00Z", "api", "error", "error three"),
			},
			want: PatternRepeatedErrors,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tl := BuildTimeline(ResultSet{Records: tt.records})
			found := false
			for _, p := range tl.Patterns {
				if p.Type == tt.want {
					found = true
					if p.Description == "" {
						t.Error("pattern has empty description")
					}
				}
			}
			if !found {
				t.Errorf("pattern %q not detected; got %v", tt.want, tl.Patterns)
			}
		})
	}
}

func TestTimelineSuggestedActions(t *testing.T) {
	t.Run("rollback guidance after deploy then error", func(t *testing.T) {
		tl := BuildTimeline(ResultSet{Records: []Record{
			timelineRecord("2024-01-15T10:00:00Z", "api", "info", "Deployment of api started"),
			timelineRecord("2024-01-15T10:01:00Z", "api", "error", "error: handler panic"),
		}})
		if !containsSubstring(tl.SuggestedActions, "rolling it back") {
			t.Errorf("no rollback guidance in %v", tl.SuggestedActions)
		}
	})

	t.Run("timeout guidance above threshold", func(t *testing.T) {
		var records []Record
		for i := 0; i < 4; i++ {
			records = append(records, timelineRecord("2024-01-15T10:00:00Z", "api", "error", "request timed out"))
		}
		tl := BuildTimeline(ResultSet{Records: records})
		if !containsSubstring(tl.SuggestedActions, "timeout") {
			t.Errorf("no timeout guidance in %v", tl.SuggestedActions)
		}
	})

	t.Run("tracing suggestion when trace ids present with errors", func(t *testing.T) {
		rec := timelineRecord("2024-01-15T10:00:00Z", "api", "error", "error: boom")
		rec.Attributes["trace_id"] = "t-1"
		tl := BuildTimeline(ResultSet{Records: []Record{rec}})
		if !containsSubstring(tl.SuggestedActions, "trace_id") {
			t.Errorf("no tracing suggestion in %v", tl.SuggestedActions)
		}
	})

	t.Run("normal operation fallback", func(t *testing.T) {
		tl := BuildTimeline(ResultSet{Records: []Record{
			timelineRecord("2024-01-15T10:00:00Z", "api", "info", "Heartbeat"),
		}})
		if len(tl.SuggestedActions) != 1 || !strings.Contains(tl.SuggestedActions[0], "normal operation") {
			t.Errorf("want single normal-operation action, got %v", tl.SuggestedActions)
		}
	})
}

func containsSubstring(actions []string, sub string) bool {
	for _, a := range actions {
		if strings.Contains(a, sub) {
			return true
		}
	}
	return false
}
