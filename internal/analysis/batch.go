package analysis

import (
	"fmt"
	"strings"
	"time"
)

// Batch field auto-detection candidates, checked in order.
var batchFieldCandidates = []string{"batch_id", "transaction_id", "feed_id", "correlation_id"}

// Significance labels for key differences.
const (
	SignificanceHigh   = "high"
	SignificanceMedium = "medium"
	SignificanceLow    = "low"
)

const batchTimingThreshold = 5 * time.Minute

// OutcomeMetrics aggregates one partition (success or failure) of a mixed
// batch.
type OutcomeMetrics struct {
	Count           int            `json:"count"`
	Services        map[string]int `json:"services,omitempty"`
	TimeSpanMinutes float64        `json:"time_span_minutes"`
}

// KeyDifference is one attribute whose value differs between the success and
// failure partitions.
type KeyDifference struct {
	Attribute      string `json:"attribute"`
	SuccessValue   string `json:"success_value"`
	FailureValue   string `json:"failure_value"`
	Interpretation string `json:"interpretation"`
	Significance   string `json:"significance"`
}

// BatchComparison contrasts the failed and successful records of the largest
// mixed-outcome batch.
type BatchComparison struct {
	BatchField       string          `json:"batch_field"`
	BatchID          string          `json:"batch_id"`
	FailedOrders     int             `json:"failed_orders"`
	SuccessfulOrders int             `json:"successful_orders"`
	FailureMetrics   OutcomeMetrics  `json:"failure_metrics"`
	SuccessMetrics   OutcomeMetrics  `json:"success_metrics"`
	KeyDifferences   []KeyDifference `json:"key_differences"`
	Hypothesis       string          `json:"hypothesis"`
	Confidence       float64         `json:"confidence"`
	Recommendation   string          `json:"recommendation"`
}

// DetectBatchField returns the first candidate identifier attribute present
// on any record, or "" when none is.
func DetectBatchField(rs ResultSet) string {
	for _, field := range batchFieldCandidates {
		for _, rec := range rs.Records {
			if StringAttr(rec.Attributes, field) != "" {
				return field
			}
		}
	}
	return ""
}

// CompareBatches groups records by a shared batch identifier, picks the
// largest group with mixed success/failure outcomes, and contrasts the two
// partitions. With an empty batchField the identifier attribute is
// auto-detected. Returns NotApplicableError when no batch field or no mixed
// group exists.
func CompareBatches(rs ResultSet, batchField string) (BatchComparison, error) {
	if batchField == "" {
		batchField = DetectBatchField(rs)
		if batchField == "" {
			return BatchComparison{}, NewNotApplicable("batch comparison",
				"no batch identifier attribute found on any record",
				fmt.Sprintf("Pass a batch_field explicitly, or include one of %s in the fetched attributes.",
					strings.Join(batchFieldCandidates, ", ")))
		}
	}

	groups := make(map[string][]Record)
	for _, rec := range rs.Records {
		if v := StringAttr(rec.Attributes, batchField); v != "" {
			groups[v] = append(groups[v], rec)
		}
	}

	// Largest mixed group wins; equal sizes break toward the smaller batch
	// value so repeated runs pick the same group.
	var bestID string
	var best []Record
	for _, id := range sortedKeys(groups) {
		recs := groups[id]
		hasError, hasSuccess := false, false
		for _, rec := range recs {
			if rec.IsError() {
				hasError = true
			} else {
				hasSuccess = true
			}
		}
		if hasError && hasSuccess && len(recs) > len(best) {
			bestID, best = id, recs
		}
	}
	if bestID == "" {
		return BatchComparison{}, NewNotApplicable("batch comparison",
			fmt.Sprintf("no %s group contains both failed and successful records", batchField),
			"Widen the time range so both outcomes of the same batch are in scope.")
	}

	var failures, successes []Record
	for _, rec := range best {
		if rec.IsError() {
			failures = append(failures, rec)
		} else {
			successes = append(successes, rec)
		}
	}

	comparison := BatchComparison{
		BatchField:       batchField,
		BatchID:          bestID,
		FailedOrders:     len(failures),
		SuccessfulOrders: len(successes),
		FailureMetrics:   outcomeMetrics(failures),
		SuccessMetrics:   outcomeMetrics(successes),
	}
	comparison.KeyDifferences = batchDifferences(successes, failures)
	comparison.Hypothesis = batchHypothesis(comparison.KeyDifferences)
	comparison.Confidence = batchConfidence(len(successes), len(failures), len(comparison.KeyDifferences))
	comparison.Recommendation = batchRecommendation(comparison.KeyDifferences)
	return comparison, nil
}

func outcomeMetrics(recs []Record) OutcomeMetrics {
	m := OutcomeMetrics{Count: len(recs)}
	var earliest, latest time.Time
	for _, rec := range recs {
		if svc := rec.Service(); svc != "" {
			if m.Services == nil {
				m.Services = make(map[string]int)
			}
			m.Services[svc]++
		}
		if t, ok := rec.Time(); ok {
			if earliest.IsZero() || t.Before(earliest) {
				earliest = t
			}
			if latest.IsZero() || t.After(latest) {
				latest = t
			}
		}
	}
	if !earliest.IsZero() {
		m.TimeSpanMinutes = latest.Sub(earliest).Minutes()
	}
	return m
}

// batchDifferences computes the ordered difference list. Timing differences
// come first since they carry the highest significance.
func batchDifferences(successes, failures []Record) []KeyDifference {
	var diffs []KeyDifference

	sMean, sOK := meanTime(successes)
	fMean, fOK := meanTime(failures)
	if sOK && fOK {
		gap := fMean.Sub(sMean)
		if gap < 0 {
			gap = -gap
		}
		if gap > batchTimingThreshold {
			direction := "later"
			if fMean.Before(sMean) {
				direction = "earlier"
			}
			diffs = append(diffs, KeyDifference{
				Attribute:    "timing",
				SuccessValue: sMean.UTC().Format(time.RFC3339),
				FailureValue: fMean.UTC().Format(time.RFC3339),
				Interpretation: fmt.Sprintf("Failed records occurred on average %.1f minutes %s than successful ones.",
					gap.Minutes(), direction),
				Significance: SignificanceHigh,
			})
		}
	}

	successServices := make(map[string]bool)
	for _, rec := range successes {
		if svc := rec.Service(); svc != "" {
			successServices[svc] = true
		}
	}
	failureOnly := make(map[string]bool)
	for _, rec := range failures {
		if svc := rec.Service(); svc != "" && !successServices[svc] {
			failureOnly[svc] = true
		}
	}
	if len(failureOnly) > 0 {
		only := sortedSet(failureOnly)
		diffs = append(diffs, KeyDifference{
			Attribute:    "services",
			SuccessValue: strings.Join(sortedSet(successServices), ", "),
			FailureValue: strings.Join(only, ", "),
			Interpretation: fmt.Sprintf("Failures involve service(s) absent from the successful path: %s.",
				strings.Join(only, ", ")),
			Significance: SignificanceMedium,
		})
	}

	return diffs
}

func meanTime(recs []Record) (time.Time, bool) {
	var sum int64
	n := 0
	for _, rec := range recs {
		if t, ok := rec.Time(); ok {
			sum += t.Unix()
			n++
		}
	}
	if n == 0 {
		return time.Time{}, false
	}
	return time.Unix(sum/int64(n), 0), true
}

// batchHypothesis keys off the first (most significant) difference.
func batchHypothesis(diffs []KeyDifference) string {
	if len(diffs) == 0 {
		return "No structural difference detected between failed and successful records; the failure cause is likely in per-record payload data."
	}
	switch diffs[0].Attribute {
	case "timing":
		return "The timing gap between outcomes suggests a race condition or a transient dependency failure during the failed records' window."
	case "services":
		return "Failures involve services the successful records never touched; the failure cause likely lies in that extra service hop."
	default:
		return "Failed and successful records differ in " + diffs[0].Attribute + "; investigate that attribute first."
	}
}

func batchConfidence(successCount, failureCount, diffCount int) float64 {
	smaller := successCount
	if failureCount < smaller {
		smaller = failureCount
	}
	var sampleTerm float64
	switch {
	case smaller > 20:
		sampleTerm = 0.9
	case smaller > 5:
		sampleTerm = 0.7
	default:
		sampleTerm = 0.5
	}
	var diffTerm float64
	switch {
	case diffCount > 2:
		diffTerm = 0.9
	case diffCount >= 1:
		diffTerm = 0.7
	default:
		diffTerm = 0.3
	}
	return (sampleTerm + diffTerm) / 2
}

func batchRecommendation(diffs []KeyDifference) string {
	if len(diffs) == 0 {
		return "Diff the full attribute maps of one failed and one successful record to find the discriminating field."
	}
	switch diffs[0].Attribute {
	case "timing":
		return "Correlate the failure window with deployments, cron jobs and dependency incidents in the same minutes."
	case "services":
		return "Inspect the failure-only service(s) for errors in the same window; the shared batch succeeded without them."
	default:
		return "Investigate the differing attribute across both partitions."
	}
}
