// Package stats summarizes complexity scores.
package stats

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Summary describes the distribution of function scores in a report.
type Summary struct {
	Files     int     `json:"files" yaml:"files" toon:"files"`
	Functions int     `json:"functions" yaml:"functions" toon:"functions"`
	Mean      float64 `json:"mean" yaml:"mean" toon:"mean"`
	StdDev    float64 `json:"std_dev" yaml:"std_dev" toon:"std_dev"`
	Max       int     `json:"max" yaml:"max" toon:"max"`
	P50       float64 `json:"p50" yaml:"p50" toon:"p50"`
	P90       float64 `json:"p90" yaml:"p90" toon:"p90"`
	P95       float64 `json:"p95" yaml:"p95" toon:"p95"`
	// OverThreshold counts functions at or above the threshold.
	OverThreshold int `json:"over_threshold" yaml:"over_threshold" toon:"over_threshold"`
}

// Summarize computes a Summary for scores collected across files.
// threshold <= 0 leaves OverThreshold at zero.
func Summarize(files int, scores []int, threshold int) Summary {
	s := Summary{Files: files, Functions: len(scores)}
	if len(scores) == 0 {
		return s
	}

	values := make([]float64, len(scores))
	for i, v := range scores {
		values[i] = float64(v)
		if v > s.Max {
			s.Max = v
		}
		if threshold > 0 && v >= threshold {
			s.OverThreshold++
		}
	}
	sort.Float64s(values)

	s.Mean, s.StdDev = stat.MeanStdDev(values, nil)
	if len(values) < 2 {
		s.StdDev = 0
	}
	s.P50 = Percentile(values, 50)
	s.P90 = Percentile(values, 90)
	s.P95 = Percentile(values, 95)
	return s
}

// Percentile calculates the p-th percentile of a sorted slice using the
// empirical distribution. Returns 0 if the slice is empty.
func Percentile(sorted []float64, p int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}
	return stat.Quantile(float64(p)/100, stat.Empirical, sorted, nil)
}
