package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Field statistics calibration.
const (
	statsMaxOutliers      = 10
	statsMaxBuckets       = 10
	statsIQRFenceFactor   = 1.5
	statsExtremeMaxFactor = 10.0
	statsHighConfCount    = 100
	statsMediumConfCount  = 20
	statsLowConfCount     = 5
)

// DistributionBucket is one equal-width histogram bucket.
type DistributionBucket struct {
	Range string `json:"range"`
	Count int    `json:"count"`
}

// Outlier is a value outside the IQR fences, with its originating record
// context.
type Outlier struct {
	Value     float64 `json:"value"`
	RecordID  string  `json:"record_id,omitempty"`
	Service   string  `json:"service,omitempty"`
	Timestamp string  `json:"timestamp,omitempty"`
}

// FieldStatsResult holds descriptive statistics for one numeric attribute
// across a result set.
type FieldStatsResult struct {
	Field             string               `json:"field"`
	Count             int                  `json:"count"`
	Min               float64              `json:"min"`
	Max               float64              `json:"max"`
	Mean              float64              `json:"mean"`
	Median            float64              `json:"median"`
	P95               float64              `json:"p95"`
	P99               float64              `json:"p99"`
	StdDev            float64              `json:"stddev"`
	Distribution      []DistributionBucket `json:"distribution,omitempty"`
	Outliers          []Outlier            `json:"outliers,omitempty"`
	Interpretation    string               `json:"interpretation"`
	AnomaliesDetected bool                 `json:"anomalies_detected"`
	Confidence        float64              `json:"confidence"`
}

// ComputeFieldStats extracts a numeric attribute (direct key or dot path)
// across the result set and computes descriptive statistics, a histogram,
// and IQR outliers. Non-numeric and missing values are skipped silently. An
// empty field name is a caller contract violation; a field with no numeric
// values yields a null-stats result with confidence 0.
func ComputeFieldStats(rs ResultSet, field string) (FieldStatsResult, error) {
	if strings.TrimSpace(field) == "" {
		return FieldStatsResult{}, NewMissingInput("field", "a field name is required for statistics")
	}

	type sample struct {
		value float64
		rec   Record
	}
	var samples []sample
	for _, rec := range rs.Records {
		v, ok := LookupPath(rec.Attributes, field)
		if !ok {
			continue
		}
		n, ok := NumericValue(v)
		if !ok {
			continue
		}
		samples = append(samples, sample{value: n, rec: rec})
	}

	if len(samples) == 0 {
		return FieldStatsResult{
			Field:          field,
			Interpretation: fmt.Sprintf("No numeric values found for field %q; nothing to analyze.", field),
		}, nil
	}

	values := make([]float64, len(samples))
	for i, s := range samples {
		values[i] = s.value
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	result := FieldStatsResult{
		Field:  field,
		Count:  len(sorted),
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Mean:   mean(sorted),
		Median: Percentile(sorted, 50),
		P95:    Percentile(sorted, 95),
		P99:    Percentile(sorted, 99),
	}
	result.StdDev = stddev(sorted, result.Mean)
	result.Distribution = buildDistribution(sorted)

	q1 := Percentile(sorted, 25)
	q3 := Percentile(sorted, 75)
	iqr := q3 - q1
	lowFence := q1 - statsIQRFenceFactor*iqr
	highFence := q3 + statsIQRFenceFactor*iqr

	var outliers []Outlier
	for _, s := range samples {
		if s.value < lowFence || s.value > highFence {
			outliers = append(outliers, Outlier{
				Value:     s.value,
				RecordID:  s.rec.ID,
				Service:   s.rec.Service(),
				Timestamp: s.rec.Timestamp(),
			})
		}
	}
	sort.SliceStable(outliers, func(i, j int) bool { return outliers[i].Value > outliers[j].Value })
	if len(outliers) > statsMaxOutliers {
		outliers = outliers[:statsMaxOutliers]
	}
	result.Outliers = outliers

	result.AnomaliesDetected = result.Max > statsExtremeMaxFactor*result.Mean ||
		result.StdDev > result.Mean ||
		len(outliers) > 0
	result.Confidence = statsConfidence(result.Count)
	result.Interpretation = interpretFieldStats(result)
	return result, nil
}

// Percentile computes the p-th percentile of a sorted slice using linear
// interpolation: index = p/100 * (n-1), interpolated between the
// surrounding elements.
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	idx := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(idx))
	hi := int(math.Ceil(idx))
	if lo == hi {
		return sorted[lo]
	}
	frac := idx - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stddev is the population standard deviation.
func stddev(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sumSq := 0.0
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(values)))
}

// buildDistribution splits min..max into up to 10 equal-width buckets.
// Membership is right-open except the final bucket, which is closed so the
// maximum lands somewhere. A zero-width range degrades to a single bucket.
func buildDistribution(sorted []float64) []DistributionBucket {
	min, max := sorted[0], sorted[len(sorted)-1]
	if max == min {
		return []DistributionBucket{{
			Range: fmt.Sprintf("%.2f-%.2f", min, max),
			Count: len(sorted),
		}}
	}

	buckets := statsMaxBuckets
	if len(sorted) < buckets {
		buckets = len(sorted)
	}
	width := (max - min) / float64(buckets)
	counts := make([]int, buckets)
	for _, v := range sorted {
		idx := int((v - min) / width)
		if idx >= buckets {
			idx = buckets - 1
		}
		counts[idx]++
	}

	out := make([]DistributionBucket, buckets)
	for i := 0; i < buckets; i++ {
		lo := min + float64(i)*width
		hi := lo + width
		out[i] = DistributionBucket{
			Range: fmt.Sprintf("%.2f-%.2f", lo, hi),
			Count: counts[i],
		}
	}
	return out
}

func statsConfidence(count int) float64 {
	switch {
	case count > statsHighConfCount:
		return 0.9
	case count > statsMediumConfCount:
		return 0.7
	case count > statsLowConfCount:
		return 0.5
	default:
		return 0.3
	}
}

// interpretFieldStats composes the textual summary from fixed templates.
func interpretFieldStats(r FieldStatsResult) string {
	var parts []string
	parts = append(parts, fmt.Sprintf("Field %q has %d values centered around a median of %.2f (mean %.2f).",
		r.Field, r.Count, r.Median, r.Mean))

	switch {
	case r.StdDev > r.Mean:
		parts = append(parts, fmt.Sprintf("Values are highly dispersed (stddev %.2f exceeds the mean).", r.StdDev))
	case r.StdDev > 0.5*r.Mean:
		parts = append(parts, fmt.Sprintf("Values show moderate variance (stddev %.2f).", r.StdDev))
	}

	if r.P99 > 2*r.Median {
		parts = append(parts, fmt.Sprintf("The p99 (%.2f) is more than twice the median, indicating a long tail.", r.P99))
	}
	if n := len(r.Outliers); n > 0 {
		parts = append(parts, fmt.Sprintf("%d outlier value(s) fall outside the interquartile fences.", n))
	}
	if r.Max > statsExtremeMaxFactor*r.Mean {
		parts = append(parts, fmt.Sprintf("The maximum (%.2f) is more than 10x the mean; investigate the extreme records first.", r.Max))
	}
	return strings.Join(parts, " ")
}
