package analysis

import (
	"errors"
	"fmt"
	"strings"
)

// Analyzer names as reported in CombinedReport.AnalysesRun.
const (
	analyzerSignatures = "error_signatures"
	analyzerBatch      = "batch_comparison"
	analyzerCausal     = "causal_chain"
)

// CombinedReport merges the outputs of the analyzers the dispatcher chose to
// run.
type CombinedReport struct {
	AnalysesRun     []string         `json:"analyses_run"`
	ErrorSignatures []ErrorSignature `json:"error_signatures,omitempty"`
	BatchComparison *BatchComparison `json:"batch_comparison,omitempty"`
	CausalChain     *CausalChain     `json:"causal_chain,omitempty"`
	Insights        []string         `json:"insights"`
	UsageHint       string           `json:"usage_hint"`
}

// AnalyzeAuto inspects the result set's characteristics and runs the
// applicable analyzers: signature clustering whenever errors are present,
// batch comparison when a batch identifier is detectable, and causal chain
// reconstruction when the first record carries a correlation identifier.
// Sub-analyses that turn out not applicable are silently omitted.
func AnalyzeAuto(rs ResultSet, batchField, correlationField string, lookbackMinutes int) CombinedReport {
	hasErrors := false
	for _, rec := range rs.Records {
		if rec.IsError() {
			hasErrors = true
			break
		}
	}
	hasBatches := batchField != "" || DetectBatchField(rs) != ""
	hasCorrelation := correlationField != ""
	if !hasCorrelation && len(rs.Records) > 0 {
		hasCorrelation = DetectCorrelationField(rs.Records[0]) != ""
	}

	report := CombinedReport{AnalysesRun: []string{}, Insights: []string{}}

	if hasErrors {
		if sigs, err := ClusterErrorSignatures(rs); err == nil && len(sigs) > 0 {
			report.ErrorSignatures = sigs
			report.AnalysesRun = append(report.AnalysesRun, analyzerSignatures)
			top := sigs[0]
			report.Insights = append(report.Insights,
				fmt.Sprintf("Top error signature: %s (%d occurrences, severity %s, trend %s).",
					top.PatternName, top.Count, top.Severity, top.Trend))
		}
	}

	if hasBatches && hasErrors {
		comparison, err := CompareBatches(rs, batchField)
		var na *NotApplicableError
		if err == nil {
			report.BatchComparison = &comparison
			report.AnalysesRun = append(report.AnalysesRun, analyzerBatch)
			report.Insights = append(report.Insights,
				fmt.Sprintf("Batch comparison (confidence %.2f): %s %s",
					comparison.Confidence, comparison.Hypothesis, comparison.Recommendation))
		} else if !errors.As(err, &na) {
			report.Insights = append(report.Insights, "Batch comparison failed: "+err.Error())
		}
	}

	if hasCorrelation && hasErrors {
		chain, err := BuildCausalChain(rs, correlationField, lookbackMinutes)
		var na *NotApplicableError
		if err == nil {
			report.CausalChain = &chain
			report.AnalysesRun = append(report.AnalysesRun, analyzerCausal)
			insight := fmt.Sprintf("Causal chain (%d anomalies): %s", len(chain.Anomalies), chain.Conclusion)
			if len(chain.Recommendations) > 0 {
				insight += " " + chain.Recommendations[0]
			}
			report.Insights = append(report.Insights, insight)
		} else if !errors.As(err, &na) {
			report.Insights = append(report.Insights, "Causal chain failed: "+err.Error())
		}
	}

	report.UsageHint = usageHint(report.AnalysesRun)
	return report
}

func usageHint(ran []string) string {
	switch len(ran) {
	case 0:
		return "No analyses were applicable to this result set. Fetch a window containing errors, or pass batch_field/correlation_field explicitly."
	case 1:
		return fmt.Sprintf("Only %s ran. Supply batch_field or correlation_field parameters, or fetch richer records, to enable the other analyzers.", ran[0])
	default:
		return "Analyses run: " + strings.Join(ran, ", ") + "."
	}
}
