package analysis

import (
	"fmt"
	"sort"
	"strings"
)

// Timeline pattern types (closed set).
const (
	PatternErrorCascade   = "error_cascade"
	PatternDeployError    = "deploy_then_error"
	PatternRepeatedErrors = "repeated_errors"
)

const timelineMessageLimit = 200

// TimelineEntry is one chronologically ordered event.
type TimelineEntry struct {
	Timestamp string          `json:"timestamp"`
	Event     ClassifiedEvent `json:"event"`
	Message   string          `json:"message"`
	Service   string          `json:"service,omitempty"`
}

// TimelinePattern is a cross-record pattern detected over the whole
// ordered timeline.
type TimelinePattern struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// Timeline is the categorized, chronologically ordered view of a result set.
type Timeline struct {
	Entries          []TimelineEntry   `json:"entries"`
	Patterns         []TimelinePattern `json:"patterns"`
	SuggestedActions []string          `json:"suggested_actions"`
}

// BuildTimeline orders records chronologically, classifies each one,
// detects cross-record patterns and derives suggested actions. Timestamps
// are compared as ISO-8601 strings; lexicographic order is chronological
// order for that format.
func BuildTimeline(rs ResultSet) Timeline {
	entries := make([]TimelineEntry, 0, len(rs.Records))
	for _, rec := range rs.Records {
		entries = append(entries, TimelineEntry{
			Timestamp: rec.Timestamp(),
			Event:     Classify(rec.Attributes),
			Message:   truncateMessage(rec.Message(), timelineMessageLimit),
			Service:   rec.Service(),
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp < entries[j].Timestamp
	})

	patterns := detectTimelinePatterns(entries)
	return Timeline{
		Entries:          entries,
		Patterns:         patterns,
		SuggestedActions: suggestTimelineActions(entries, patterns),
	}
}

func detectTimelinePatterns(entries []TimelineEntry) []TimelinePattern {
	var patterns []TimelinePattern

	// Error cascade: errors spread over two or more distinct services.
	errorServices := make(map[string]int)
	var errorServiceOrder []string
	for _, e := range entries {
		if e.Event.Category != CategoryError || e.Service == "" {
			continue
		}
		if _, seen := errorServices[e.Service]; !seen {
			errorServiceOrder = append(errorServiceOrder, e.Service)
		}
		errorServices[e.Service]++
	}
	if len(errorServices) >= 2 {
		patterns = append(patterns, TimelinePattern{
			Type: PatternErrorCascade,
			Description: fmt.Sprintf("Errors span %d services (%s), suggesting a cascading failure.",
				len(errorServices), strings.Join(errorServiceOrder, ", ")),
		})
	}

	// Deployment immediately followed by an error.
	for i := 0; i+1 < len(entries); i++ {
		if entries[i].Event.Category == CategoryDeployment && entries[i+1].Event.Category == CategoryError {
			patterns = append(patterns, TimelinePattern{
				Type: PatternDeployError,
				Description: fmt.Sprintf("Deployment event at %s is immediately followed by an error at %s.",
					entries[i].Timestamp, entries[i+1].Timestamp),
			})
			break
		}
	}

	// Repeated errors: any service with three or more error entries.
	var repeated []string
	for _, svc := range errorServiceOrder {
		if errorServices[svc] >= 3 {
			repeated = append(repeated, fmt.Sprintf("%s (%d)", svc, errorServices[svc]))
		}
	}
	if len(repeated) > 0 {
		patterns = append(patterns, TimelinePattern{
			Type:        PatternRepeatedErrors,
			Description: fmt.Sprintf("Repeated errors in: %s.", strings.Join(repeated, ", ")),
		})
	}

	return patterns
}

func suggestTimelineActions(entries []TimelineEntry, patterns []TimelinePattern) []string {
	var actions []string

	hasPattern := func(t string) bool {
		for _, p := range patterns {
			if p.Type == t {
				return true
			}
		}
		return false
	}

	if hasPattern(PatternDeployError) {
		actions = append(actions, "A deployment immediately precedes an error: review the release and consider rolling it back.")
	}

	errorCount := 0
	timeoutEvents := 0
	connectionEvents := 0
	hasTraceID := false
	for _, e := range entries {
		if e.Event.Category == CategoryError {
			errorCount++
		}
		label := strings.ToLower(e.Event.EventType)
		if strings.Contains(label, "timeout") {
			timeoutEvents++
		}
		if strings.Contains(label, "connection") {
			connectionEvents++
		}
		if e.Event.RelatedEntities["trace_id"] != "" {
			hasTraceID = true
		}
	}

	if errorCount > 0 {
		actions = append(actions, fmt.Sprintf("Investigate the root cause of the %d error event(s), starting with the earliest.", errorCount))
		if timeoutEvents > 2 {
			actions = append(actions, "Multiple timeout events detected: check downstream latency and timeout budgets.")
		}
		if connectionEvents > 2 {
			actions = append(actions, "Multiple connection failures detected: verify network paths and connection pool health.")
		}
		if hasTraceID {
			actions = append(actions, "Trace identifiers are present: follow a trace_id through the failing requests to pinpoint the faulty hop.")
		}
	}

	if len(actions) == 0 {
		actions = append(actions, "Timeline shows normal operation; no action required.")
	}
	return actions
}
