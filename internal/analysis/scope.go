package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// Scope confidence calibration. Empirically chosen; kept as constants so
// recalibration is a one-line change.
const (
	scopeBaseConfidence      = 0.5
	scopeLargeSetBonus       = 0.2 // count > 100
	scopeMediumSetBonus      = 0.1 // count > 20
	scopeMultiServiceBonus   = 0.2
	scopeLongWindowBonus     = 0.1 // span > 1h
	scopeLargeSetThreshold   = 100
	scopeMediumSetThreshold  = 20
	scopeSparseSetThreshold  = 5
	scopeManyServices        = 3
	scopeErrorShareThreshold = 0.5
)

// ServiceCount is one row of the per-service breakdown.
type ServiceCount struct {
	Service string `json:"service"`
	Count   int    `json:"count"`
}

// ScopeReport summarizes the volume and shape of one fetched page.
type ScopeReport struct {
	Count            int            `json:"count"`
	DensityPerMinute float64        `json:"density_per_minute"`
	ByStatus         map[string]int `json:"by_status"`
	ByService        []ServiceCount `json:"by_service"`
	HasMore          bool           `json:"has_more"`
	Confidence       float64        `json:"confidence"`
	Interpretation   string         `json:"interpretation"`
	SuggestedAction  string         `json:"suggested_action"`
}

// AnalyzeScope computes volume/density metrics and status/service breakdowns
// for a result set over the queried time span. Zero spans degrade to zero
// density rather than failing.
func AnalyzeScope(rs ResultSet, timeSpan time.Duration) ScopeReport {
	report := ScopeReport{
		Count:    len(rs.Records),
		ByStatus: make(map[string]int),
		HasMore:  rs.HasMore,
	}

	if minutes := timeSpan.Minutes(); minutes > 0 {
		report.DensityPerMinute = float64(report.Count) / minutes
	}

	serviceCounts := make(map[string]int)
	serviceFirstSeen := make(map[string]int)
	for i, rec := range rs.Records {
		if status := rec.Status(); status != "" {
			report.ByStatus[status]++
		}
		if svc := rec.Service(); svc != "" {
			if _, seen := serviceCounts[svc]; !seen {
				serviceFirstSeen[svc] = i
			}
			serviceCounts[svc]++
		}
	}

	// Count-descending, ties broken by first-encountered order.
	services := make([]ServiceCount, 0, len(serviceCounts))
	for svc, n := range serviceCounts {
		services = append(services, ServiceCount{Service: svc, Count: n})
	}
	sort.SliceStable(services, func(i, j int) bool {
		if services[i].Count != services[j].Count {
			return services[i].Count > services[j].Count
		}
		return serviceFirstSeen[services[i].Service] < serviceFirstSeen[services[j].Service]
	})
	if len(services) > 5 {
		services = services[:5]
	}
	report.ByService = services

	report.Confidence = scopeConfidence(report.Count, len(serviceCounts), timeSpan)
	report.Interpretation, report.SuggestedAction = scopeNarrative(report, len(serviceCounts))
	return report
}

func scopeConfidence(count, distinctServices int, timeSpan time.Duration) float64 {
	confidence := scopeBaseConfidence
	switch {
	case count > scopeLargeSetThreshold:
		confidence += scopeLargeSetBonus
	case count > scopeMediumSetThreshold:
		confidence += scopeMediumSetBonus
	}
	if distinctServices > 1 {
		confidence += scopeMultiServiceBonus
	}
	if timeSpan > time.Hour {
		confidence += scopeLongWindowBonus
	}
	// The bonuses are tenths; snap the binary-float sum back to one decimal
	// so 0.5+0.2+0.2+0.1 is exactly 1.0 and not 0.999....
	confidence = math.Round(confidence*10) / 10
	if confidence > 1.0 {
		confidence = 1.0
	}
	return confidence
}

// scopeNarrative is the decision table behind the human-readable summary.
// Every branch emits both an interpretation and a concrete next action.
func scopeNarrative(report ScopeReport, distinctServices int) (string, string) {
	switch {
	case report.Count == 0:
		return "No logs matched the current scope.",
			"Broaden the time range or relax the filters, then re-run the query."

	case report.Count < scopeSparseSetThreshold:
		return fmt.Sprintf("Limited dataset: only %d records matched, which is too few for reliable pattern analysis.", report.Count),
			"Broaden the time range or relax filters to collect a larger sample before deeper analysis."
	}

	errorCount := report.ByStatus["error"]
	errorShare := float64(errorCount) / float64(report.Count)

	switch {
	case errorShare > scopeErrorShareThreshold && distinctServices == 1:
		svc := report.ByService[0].Service
		return fmt.Sprintf("Critical issue: %d of %d records (%.0f%%) are errors, concentrated in service %q.",
				errorCount, report.Count, errorShare*100, svc),
			fmt.Sprintf("Cluster the error messages for %q to identify the dominant failure signature.", svc)

	case errorShare > scopeErrorShareThreshold:
		return fmt.Sprintf("Critical issue: %d of %d records (%.0f%%) are errors across %d services.",
				errorCount, report.Count, errorShare*100, distinctServices),
			"Build an event timeline to check for an error cascade across services."

	case distinctServices == 1:
		return fmt.Sprintf("Activity is isolated to a single service (%q) with %d records.",
				report.ByService[0].Service, report.Count),
			fmt.Sprintf("Compare %q against its dependencies over the same window to rule out upstream causes.", report.ByService[0].Service)

	case distinctServices > scopeManyServices:
		return fmt.Sprintf("Activity is distributed across %d services (%d records); top contributor is %q.",
				distinctServices, report.Count, report.ByService[0].Service),
			"Narrow the scope to the top service or filter by a correlation identifier to follow a single flow."

	default:
		return fmt.Sprintf("Moderate activity: %d records across %d services with no dominant error signal.",
				report.Count, distinctServices),
			"Run field statistics on a latency or size attribute to look for performance drift."
	}
}

// StatusSummary renders the status breakdown in deterministic key order,
// e.g. "error=3 info=9".
func (r ScopeReport) StatusSummary() string {
	parts := make([]string, 0, len(r.ByStatus))
	for _, k := range sortedKeys(r.ByStatus) {
		parts = append(parts, fmt.Sprintf("%s=%d", k, r.ByStatus[k]))
	}
	return strings.Join(parts, " ")
}
