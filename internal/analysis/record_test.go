package analysis

import (
	"testing"
	"unicode/utf8"
)

func TestLookupPath(t *testing.T) {
	attrs := map[string]any{
		"flat":         "v",
		"dotted.key":   "direct",
		"user":         map[string]any{"profile": map[string]any{"id": "u1"}},
		"message_tags": []any{"a"},
	}

	tests := []struct {
		name   string
		path   string
		want   any
		wantOK bool
	}{
		{"flat key", "flat", "v", true},
		{"direct match beats dot traversal", "dotted.key", "direct", true},
		{"nested traversal", "user.profile.id", "u1", true},
		{"missing leaf", "user.profile.name", nil, false},
		{"traversal through non-map", "message_tags.x", nil, false},
		{"absent", "nope", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := LookupPath(attrs, tt.path)
			if ok != tt.wantOK || (ok && got != tt.want) {
				t.Errorf("LookupPath(%q) = (%v, %v), want (%v, %v)", tt.path, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestNumericValue(t *testing.T) {
	tests := []struct {
		name   string
		in     any
		want   float64
		wantOK bool
	}{
		{"float64", 12.5, 12.5, true},
		{"int", 7, 7, true},
		{"numeric string", " 42.5 ", 42.5, true},
		{"non-numeric string", "abc", 0, false},
		{"nil", nil, 0, false},
		{"bool", true, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NumericValue(tt.in)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("NumericValue(%v) = (%v, %v), want (%v, %v)", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestRecordAccessors(t *testing.T) {
	rec := Record{ID: "r1", Attributes: map[string]any{
		"timestamp": "2024-01-15T10:00:00Z",
		"service":   "api",
		"status":    "ERROR",
		"message":   "boom",
	}}

	if rec.Status() != "error" {
		t.Errorf("Status() = %q, want lowercased error", rec.Status())
	}
	if !rec.IsError() {
		t.Error("IsError() = false for ERROR status")
	}
	if _, ok := rec.Time(); !ok {
		t.Error("Time() failed to parse an RFC3339 timestamp")
	}
}

func TestParseTimestampLayouts(t *testing.T) {
	valid := []string{
		"2024-01-15T10:00:00Z",
		"2024-01-15T10:00:00.123Z",
		"2024-01-15T10:00:00+02:00",
		"2024-01-15T10:00:00",
		"2024-01-15 10:00:00",
	}
	for _, ts := range valid {
		if _, ok := parseTimestamp(ts); !ok {
			t.Errorf("parseTimestamp(%q) failed", ts)
		}
	}
	for _, ts := range []string{"", "not a time", "15/01/2024"} {
		if _, ok := parseTimestamp(ts); ok {
			t.Errorf("parseTimestamp(%q) unexpectedly succeeded", ts)
		}
	}
}

func TestIsReservedAttribute(t *testing.T) {
	for _, name := range []string{"service", "env", "status", "host", "source", "version", "trace_id"} {
		if !IsReservedAttribute(name) {
			t.Errorf("%q should be reserved", name)
		}
	}
	if IsReservedAttribute("user_id") {
		t.Error("user_id should not be reserved")
	}
}

func TestTruncateMessage(t *testing.T) {
	tests := []struct {
		name  string
		msg   string
		limit int
		want  string
	}{
		{"under limit", "short", 10, "short"},
		{"exact limit", "abcde", 5, "abcde"},
		{"ascii cut", "abcdef", 4, "abcd"},
		// "héllo": é is two bytes (0xc3 0xa9); a byte cut at 2 would split it.
		{"rune boundary backs off", "héllo", 2, "h"},
		{"multibyte kept when whole", "héllo", 3, "hé"},
		{"all multibyte", "日本語", 4, "日"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncateMessage(tt.msg, tt.limit)
			if got != tt.want {
				t.Errorf("truncateMessage(%q, %d) = %q, want %q", tt.msg, tt.limit, got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("truncateMessage(%q, %d) produced invalid UTF-8", tt.msg, tt.limit)
			}
		})
	}
}
