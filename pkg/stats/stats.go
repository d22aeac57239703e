// Package stats summarises similarity score distributions.
package stats

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Summary describes a set of scores.
type Summary struct {
	Count int     `json:"count" yaml:"count" toon:"count"`
	Mean  float64 `json:"mean" yaml:"mean" toon:"mean"`
	P50   float64 `json:"p50" yaml:"p50" toon:"p50"`
	P95   float64 `json:"p95" yaml:"p95" toon:"p95"`
	Max   float64 `json:"max" yaml:"max" toon:"max"`
}

// Summarize computes the summary of values. values is not modified.
// An empty input yields the zero Summary.
func Summarize(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	return Summary{
		Count: len(sorted),
		Mean:  stat.Mean(sorted, nil),
		P50:   Percentile(sorted, 50),
		P95:   Percentile(sorted, 95),
		Max:   sorted[len(sorted)-1],
	}
}

// Percentile returns the p-th percentile (0-100) of a slice sorted in ascending order,
// using the empirical quantile. Returns 0 if the slice is empty.
func Percentile(sorted []float64, p int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	switch {
	case p <= 0:
		return sorted[0]
	case p >= 100:
		return sorted[len(sorted)-1]
	}
	return stat.Quantile(float64(p)/100, stat.Empirical, sorted, nil)
}
