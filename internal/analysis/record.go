// Package analysis implements the log-analytics engine: pure, synchronous
// transformations that turn a fetched page of log records into diagnostic
// artifacts (scope reports, timelines, error signatures, field statistics,
// batch comparisons and causal chains).
//
// Nothing in this package performs I/O. The caller supplies an already
// fetched ResultSet; every analyzer is deterministic for a given input.
package analysis

import (
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Record is one structured log entry. Attributes always include "timestamp"
// (ISO-8601 string) and usually "service", "status" and "message". The engine
// never mutates Attributes; analyzers build derived maps instead.
type Record struct {
	ID         string         `json:"id"`
	Attributes map[string]any `json:"attributes"`
}

// ResultSet is an ordered page of records as returned by the upstream log
// API. Insertion order is API-return order, not guaranteed chronological.
type ResultSet struct {
	Records       []Record `json:"records"`
	HasMore       bool     `json:"has_more"`
	NextPageToken string   `json:"next_page_token,omitempty"`
}

// reservedAttributes are the well-known top-level attribute names that keep
// their position during normalization and prefixing decisions.
var reservedAttributes = map[string]bool{
	"service":  true,
	"env":      true,
	"status":   true,
	"host":     true,
	"source":   true,
	"version":  true,
	"trace_id": true,
}

// IsReservedAttribute reports whether name is one of the fixed well-known
// record attributes.
func IsReservedAttribute(name string) bool {
	return reservedAttributes[name]
}

// StringAttr returns the attribute as a string, or "" when missing or not a
// string-like scalar.
func StringAttr(attrs map[string]any, key string) string {
	return anyToString(attrs[key])
}

// LookupPath resolves a direct or dot-separated nested attribute path, e.g.
// "user.id" or "message_parsed.latency_ms".
func LookupPath(attrs map[string]any, path string) (any, bool) {
	if v, ok := attrs[path]; ok {
		return v, true
	}
	parts := strings.Split(path, ".")
	var current any = attrs
	for _, part := range parts {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// NumericValue converts a scalar attribute value to float64. Strings holding
// numbers are accepted since log APIs frequently stringify metrics.
func NumericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Timestamp returns the record's ISO-8601 timestamp string ("" if absent).
func (r Record) Timestamp() string {
	return StringAttr(r.Attributes, "timestamp")
}

// Time parses the record timestamp. RFC3339 with or without sub-second
// precision is accepted.
func (r Record) Time() (time.Time, bool) {
	return parseTimestamp(r.Timestamp())
}

// Service returns the record's service attribute ("" if absent).
func (r Record) Service() string {
	return StringAttr(r.Attributes, "service")
}

// Status returns the record's lowercased status attribute ("" if absent).
func (r Record) Status() string {
	return strings.ToLower(StringAttr(r.Attributes, "status"))
}

// Message returns the record's message attribute ("" if absent).
func (r Record) Message() string {
	return StringAttr(r.Attributes, "message")
}

// IsError reports whether the record carries an error status.
func (r Record) IsError() bool {
	return r.Status() == "error"
}

func parseTimestamp(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func anyToString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case bool:
		return strconv.FormatBool(s)
	default:
		return ""
	}
}

// sortedKeys returns map keys in ascending order. Aggregates are emitted in
// key order so repeated runs over the same ResultSet are byte-identical.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// truncateMessage cuts msg to at most limit bytes without splitting a
// multi-byte rune.
func truncateMessage(msg string, limit int) string {
	if len(msg) <= limit {
		return msg
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut]
}
