package analysis

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Correlation field auto-detection candidates, checked in order against the
// target error record.
var correlationFieldCandidates = []string{"order_id", "trace_id", "transaction_id", "request_id", "correlation_id"}

// Chain anomaly types.
const (
	AnomalyMissingEvent = "missing_event"
	AnomalyTimingBurst  = "timing_burst"
)

// ChainStep is one event in the reconstructed chain leading to the error.
type ChainStep struct {
	Step         int    `json:"step"`
	Event        string `json:"event"`
	Timestamp    string `json:"timestamp"`
	DeltaToError int    `json:"delta_to_error"`
	Category     string `json:"category"`
	Service      string `json:"service,omitempty"`
}

// ChainAnomaly is a deviation from the expected event sequence.
type ChainAnomaly struct {
	Type         string `json:"type"`
	Expected     string `json:"expected"`
	Impact       string `json:"impact"`
	Significance string `json:"significance"`
}

// CausalChain is the ordered sequence of prior events that share a
// correlation identifier with a target error, inside a lookback window.
type CausalChain struct {
	EntityID         string         `json:"entity_id"`
	CorrelationField string         `json:"correlation_field"`
	Chain            []ChainStep    `json:"chain"`
	Anomalies        []ChainAnomaly `json:"anomalies,omitempty"`
	Conclusion       string         `json:"conclusion"`
	Recommendations  []string       `json:"recommendations"`
}

// DetectCorrelationField returns the first candidate identifier present with
// a value on the given record, or "".
func DetectCorrelationField(rec Record) string {
	for _, field := range correlationFieldCandidates {
		if StringAttr(rec.Attributes, field) != "" {
			return field
		}
	}
	return ""
}

// BuildCausalChain targets the first error record in the set, resolves its
// correlation identifier (explicit or auto-detected), and reconstructs the
// chronological chain of events sharing that identifier within the lookback
// window ending at the error. An explicitly requested correlation field
// absent from the target is a caller contract violation; an undetectable one
// is a soft failure.
func BuildCausalChain(rs ResultSet, correlationField string, lookbackMinutes int) (CausalChain, error) {
	var target *Record
	for i := range rs.Records {
		if rs.Records[i].IsError() {
			target = &rs.Records[i]
			break
		}
	}
	if target == nil {
		return CausalChain{}, NewNotApplicable("causal chain",
			"no error records in the result set",
			"Causal chains are built backwards from an error; fetch a window that contains one.")
	}

	if correlationField != "" {
		if StringAttr(target.Attributes, correlationField) == "" {
			return CausalChain{}, NewMissingInput(correlationField,
				"the requested correlation field has no value on the target error record")
		}
	} else {
		correlationField = DetectCorrelationField(*target)
		if correlationField == "" {
			return CausalChain{}, NewNotApplicable("causal chain",
				fmt.Sprintf("target error carries none of the known correlation fields (%s)",
					strings.Join(correlationFieldCandidates, ", ")),
				"Pass a correlation_field explicitly, or include an identifier attribute in the fetched records.")
		}
	}
	entityID := StringAttr(target.Attributes, correlationField)

	errTime, ok := target.Time()
	if !ok {
		return CausalChain{}, NewNotApplicable("causal chain",
			"target error record has no parseable timestamp",
			"Ensure the fetcher supplies ISO-8601 timestamps on every record.")
	}
	windowStart := errTime.Add(-time.Duration(lookbackMinutes) * time.Minute)

	var members []chainMember
	for _, rec := range rs.Records {
		if StringAttr(rec.Attributes, correlationField) != entityID {
			continue
		}
		t, ok := rec.Time()
		if !ok || t.Before(windowStart) || t.After(errTime) {
			continue
		}
		members = append(members, chainMember{rec: rec, t: t})
	}
	sort.SliceStable(members, func(i, j int) bool { return members[i].t.Before(members[j].t) })

	chain := make([]ChainStep, 0, len(members))
	times := make([]time.Time, 0, len(members))
	for i, m := range members {
		ev := Classify(m.rec.Attributes)
		chain = append(chain, ChainStep{
			Step:         i + 1,
			Event:        ev.EventType,
			Timestamp:    m.rec.Timestamp(),
			DeltaToError: int(errTime.Sub(m.t).Minutes()),
			Category:     string(ev.Category),
			Service:      m.rec.Service(),
		})
		times = append(times, m.t)
	}

	anomalies := detectChainAnomalies(members, times, chain)

	result := CausalChain{
		EntityID:         entityID,
		CorrelationField: correlationField,
		Chain:            chain,
		Anomalies:        anomalies,
	}
	result.Conclusion = chainConclusion(chain, anomalies)
	result.Recommendations = chainRecommendations(anomalies)
	return result, nil
}

type chainMember struct {
	rec Record
	t   time.Time
}

func detectChainAnomalies(members []chainMember, times []time.Time, chain []ChainStep) []ChainAnomaly {
	var anomalies []ChainAnomaly

	// An acknowledgement with no prior fetch/details step means the entity
	// was acted on before its data was loaded.
	sawFetch := false
	for i, m := range members {
		label := strings.ToLower(chain[i].Event + " " + m.rec.Message())
		if strings.Contains(label, "fetch") || strings.Contains(label, "details") {
			sawFetch = true
		}
		if strings.Contains(label, "acknowledg") && !sawFetch {
			anomalies = append(anomalies, ChainAnomaly{
				Type:         AnomalyMissingEvent,
				Expected:     "a fetch/details event should precede the acknowledgement",
				Impact:       "the entity was acknowledged without its details being loaded first",
				Significance: SignificanceHigh,
			})
			break
		}
	}

	for i := 1; i < len(times); i++ {
		if times[i].Sub(times[i-1]) < time.Second {
			anomalies = append(anomalies, ChainAnomaly{
				Type:         AnomalyTimingBurst,
				Expected:     "consecutive processing steps normally take longer than one second",
				Impact:       "sub-second event spacing suggests automated retries or a tight failure loop",
				Significance: SignificanceMedium,
			})
			break
		}
	}

	return anomalies
}

func chainConclusion(chain []ChainStep, anomalies []ChainAnomaly) string {
	if len(anomalies) > 0 {
		return fmt.Sprintf("Anomaly detected: %s. %s.", anomalies[0].Expected, capitalizeFirst(anomalies[0].Impact))
	}
	if len(chain) <= 1 {
		return "Only a single event shares this correlation identifier inside the lookback window; there is no prior context to analyze."
	}
	return fmt.Sprintf("The %d-step chain shows no sequence or timing anomalies before the error.", len(chain))
}

func chainRecommendations(anomalies []ChainAnomaly) []string {
	if len(anomalies) == 0 {
		return []string{"Widen the lookback window or follow a different correlation identifier to capture more preceding context."}
	}
	recs := make([]string, 0, len(anomalies))
	for _, a := range anomalies {
		switch a.Type {
		case AnomalyMissingEvent:
			recs = append(recs, "Check why the expected preceding step is missing; the producing service may have failed silently or logged under a different identifier.")
		case AnomalyTimingBurst:
			recs = append(recs, "Inspect retry configuration and loop guards in the services emitting the sub-second events.")
		default:
			recs = append(recs, "Review the flagged chain step against the service's expected processing sequence.")
		}
	}
	return recs
}

func capitalizeFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
