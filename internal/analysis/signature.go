package analysis

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Severity levels for an error signature, ordered low to critical.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Trend labels for cluster density over the cluster's own time range.
const (
	TrendIncreasing = "increasing"
	TrendStable     = "stable"
	TrendDecreasing = "decreasing"
)

// Signature severity calibration. Empirically chosen thresholds, kept as
// constants so recalibration is a one-line change.
const (
	sigCriticalCount     = 100
	sigHighCount         = 50
	sigMediumCount       = 10
	sigManyServices      = 3
	sigTrendUpFactor     = 1.2
	sigTrendDownFactor   = 0.8
	sigHighConfCount     = 20
	sigMediumConfCount   = 5
	sigHighConfidence    = 0.9
	sigMediumConfidence  = 0.7
	sigDefaultConfidence = 0.5
)

// ErrorSignature aggregates a cluster of error records sharing a normalized
// message template. Built fresh per invocation; never persisted.
type ErrorSignature struct {
	PatternName        string   `json:"pattern_name"`
	NormalizedTemplate string   `json:"normalized_template"`
	TemplateHash       string   `json:"template_hash"`
	Count              int      `json:"count"`
	Severity           string   `json:"severity"`
	Trend              string   `json:"trend"`
	Confidence         float64  `json:"confidence"`
	FirstSeen          string   `json:"first_seen,omitempty"`
	LastSeen           string   `json:"last_seen,omitempty"`
	AffectedServices   []string `json:"affected_services,omitempty"`
	AffectedUserCount  int      `json:"affected_user_count"`
	ExampleMessage     string   `json:"example_message"`
	Recommendation     string   `json:"recommendation"`
}

// Template placeholder substitutions, applied in declaration order so an
// earlier placeholder cannot be re-matched by a later pattern (a UUID must
// not decay into [NUM] fragments).
var templateSubstitutions = []struct {
	pattern     *regexp.Regexp
	placeholder string
}{
	{regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\b`), "[UUID]"},
	{regexp.MustCompile(`https?://[^\s"']+`), "[URL]"},
	{regexp.MustCompile(`(?:/[\w.-]+)+\.(?:go|py|js|ts|java|rb|rs|c|cpp|h|php|log|json|ya?ml|xml|txt)\b`), "[PATH]"},
	{regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`), "[IP]"},
	{regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:?\d{2})?`), "[TIMESTAMP]"},
}

// reLongNumber matches 5+-digit runs, capturing an optional "HTTP "/"error "/
// "code "/"status " prefix. Prefixed numbers are status-code-like and are
// kept verbatim; bare long numbers collapse to [NUM]. Short numbers (404,
// 500) never match at all.
var reLongNumber = regexp.MustCompile(`(?i)\b(?:(?:HTTP|error|code|status) )?\d{5,}\b`)

// NormalizeErrorMessage collapses variable tokens (UUIDs, URLs, paths, IPs,
// timestamps, long numbers) into fixed placeholders so messages differing
// only in those tokens share one template.
func NormalizeErrorMessage(msg string) string {
	out := msg
	for _, sub := range templateSubstitutions {
		out = sub.pattern.ReplaceAllString(out, sub.placeholder)
	}
	out = reLongNumber.ReplaceAllStringFunc(out, func(m string) string {
		if m[0] < '0' || m[0] > '9' {
			return m
		}
		return "[NUM]"
	})
	return strings.TrimSpace(out)
}

// templateHash is a stable short identifier for a normalized template.
func templateHash(template string) string {
	h := sha256.Sum256([]byte(template))
	return hex.EncodeToString(h[:8])
}

// patternNameRules maps template keywords to human-readable pattern names.
// Checked top to bottom; the compound database/http rules must precede their
// generic fallbacks.
var patternNameRules = []struct {
	keywords []string
	name     string
}{
	{[]string{"database", "timeout"}, "Database Connection Timeout"},
	{[]string{"database", "connection"}, "Database Connection Failure"},
	{[]string{"database"}, "Database Error"},
	{[]string{"http", "timeout"}, "HTTP Timeout Error"},
	{[]string{"http", "500"}, "HTTP 500 Internal Server Error"},
	{[]string{"http", "404"}, "HTTP 404 Not Found"},
	{[]string{"http"}, "HTTP Error"},
	{[]string{"auth"}, "Authentication Failure"},
	{[]string{"connection"}, "Connection Error"},
	{[]string{"timeout"}, "Timeout Error"},
	{[]string{"not found"}, "Resource Not Found"},
}

func patternName(template string) string {
	lower := strings.ToLower(template)
	for _, rule := range patternNameRules {
		all := true
		for _, kw := range rule.keywords {
			if !strings.Contains(lower, kw) {
				all = false
				break
			}
		}
		if all {
			return rule.name
		}
	}
	return "Error Pattern"
}

var patternRecommendations = map[string]string{
	"Database Connection Timeout":   "Check database connection pool settings and query latency; consider raising the pool size or lowering the statement timeout.",
	"Database Connection Failure":   "Verify database availability and network connectivity from the affected services; check for connection pool exhaustion.",
	"Database Error":                "Review recent schema or query changes and inspect the database server logs for the same window.",
	"HTTP Timeout Error":            "Check downstream service latency and tune client timeout budgets; look for slow endpoints in tracing data.",
	"HTTP 500 Internal Server Error": "Inspect the failing service's application logs for the underlying exception behind the 500 responses.",
	"HTTP 404 Not Found":            "Verify request routing and resource identifiers; a recent deploy may have changed endpoint paths.",
	"HTTP Error":                    "Inspect upstream and downstream HTTP interactions for the affected endpoints.",
	"Authentication Failure":        "Verify credential validity and token expiry; check for recent changes to the identity provider configuration.",
	"Connection Error":              "Verify network paths, DNS resolution and firewall rules between the affected services.",
	"Timeout Error":                 "Identify the slow dependency behind the timeouts and review its capacity and latency.",
	"Resource Not Found":            "Confirm the referenced resources exist and that identifiers are propagated correctly between services.",
}

const genericRecommendation = "Review the example message and the affected services' logs around first_seen to identify the failure mode."

type signatureCluster struct {
	template   string
	count      int
	timestamps []string
	services   map[string]bool
	users      map[string]bool
	example    string
}

// ClusterErrorSignatures groups error records by normalized message template
// and ranks the resulting signatures by occurrence count. Records qualify
// when their status is "error" or they carry an error attribute. Returns
// NotApplicableError when the set contains no error records.
func ClusterErrorSignatures(rs ResultSet) ([]ErrorSignature, error) {
	clusters := make(map[string]*signatureCluster)
	var order []string
	totalErrors := 0

	for _, rec := range rs.Records {
		_, hasErrorAttr := rec.Attributes["error"]
		if !rec.IsError() && !hasErrorAttr {
			continue
		}
		totalErrors++

		msg := rec.Message()
		if msg == "" {
			msg = StringAttr(rec.Attributes, "error")
		}
		template := NormalizeErrorMessage(msg)

		c, ok := clusters[template]
		if !ok {
			c = &signatureCluster{
				template: template,
				services: make(map[string]bool),
				users:    make(map[string]bool),
				example:  msg,
			}
			clusters[template] = c
			order = append(order, template)
		}
		c.count++
		if ts := rec.Timestamp(); ts != "" {
			c.timestamps = append(c.timestamps, ts)
		}
		if svc := rec.Service(); svc != "" {
			c.services[svc] = true
		}
		if user := StringAttr(rec.Attributes, "user_id"); user != "" {
			c.users[user] = true
		}
	}

	if totalErrors == 0 {
		return nil, NewNotApplicable("error signature clustering",
			"no error records in the result set",
			"Re-run against a window that contains errors, or analyze the scope first to locate one.")
	}

	signatures := make([]ErrorSignature, 0, len(order))
	for _, template := range order {
		c := clusters[template]
		sort.Strings(c.timestamps)

		sig := ErrorSignature{
			PatternName:        patternName(template),
			NormalizedTemplate: template,
			TemplateHash:       templateHash(template),
			Count:              c.count,
			Severity:           signatureSeverity(c.count, totalErrors, len(c.services)),
			Trend:              clusterTrend(c.timestamps),
			Confidence:         signatureConfidence(c.count),
			AffectedServices:   sortedSet(c.services),
			AffectedUserCount:  len(c.users),
			ExampleMessage:     c.example,
		}
		if len(c.timestamps) > 0 {
			sig.FirstSeen = c.timestamps[0]
			sig.LastSeen = c.timestamps[len(c.timestamps)-1]
		}
		sig.Recommendation = signatureRecommendation(sig.PatternName, sig.Severity, len(c.services))
		signatures = append(signatures, sig)
	}

	sort.SliceStable(signatures, func(i, j int) bool {
		if signatures[i].Count != signatures[j].Count {
			return signatures[i].Count > signatures[j].Count
		}
		return signatures[i].NormalizedTemplate < signatures[j].NormalizedTemplate
	})
	return signatures, nil
}

// signatureSeverity is monotonic in count: raising count with the other
// inputs fixed never lowers the severity rank.
func signatureSeverity(count, totalErrors, serviceCount int) string {
	switch {
	case count > sigCriticalCount || count*2 > totalErrors:
		return SeverityCritical
	case count > sigHighCount || serviceCount > sigManyServices:
		return SeverityHigh
	case count > sigMediumCount:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// clusterTrend compares event counts in the second half of the cluster's
// time range against the first half. Fewer than two parseable timestamps or
// a zero-width range degrade to stable.
func clusterTrend(sortedTimestamps []string) string {
	var times []int64
	for _, ts := range sortedTimestamps {
		if t, ok := parseTimestamp(ts); ok {
			times = append(times, t.UnixNano())
		}
	}
	if len(times) < 2 {
		return TrendStable
	}
	first, last := times[0], times[len(times)-1]
	if last <= first {
		return TrendStable
	}

	mid := first + (last-first)/2
	firstHalf, secondHalf := 0, 0
	for _, t := range times {
		if t <= mid {
			firstHalf++
		} else {
			secondHalf++
		}
	}
	switch {
	case float64(secondHalf) > sigTrendUpFactor*float64(firstHalf):
		return TrendIncreasing
	case float64(secondHalf) < sigTrendDownFactor*float64(firstHalf):
		return TrendDecreasing
	default:
		return TrendStable
	}
}

func signatureConfidence(count int) float64 {
	switch {
	case count > sigHighConfCount:
		return sigHighConfidence
	case count > sigMediumConfCount:
		return sigMediumConfidence
	default:
		return sigDefaultConfidence
	}
}

func signatureRecommendation(name, severity string, serviceCount int) string {
	rec, ok := patternRecommendations[name]
	if !ok {
		rec = genericRecommendation
	}
	if severity == SeverityCritical {
		rec = "CRITICAL: " + rec
	}
	if serviceCount > sigManyServices {
		rec += fmt.Sprintf(" This pattern spans %d services; coordinate the investigation across owning teams.", serviceCount)
	}
	return rec
}

func sortedSet(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
