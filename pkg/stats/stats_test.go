package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPercentile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	tests := []struct {
		p    int
		want float64
	}{
		{0, 1},
		{50, 5},
		{90, 9},
		{100, 10},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Percentile(sorted, tt.p), "p%d", tt.p)
	}
	assert.Zero(t, Percentile(nil, 50))
}

func TestSummarize(t *testing.T) {
	s := Summarize(2, []int{1, 3, 2, 10}, 10)

	assert.Equal(t, 2, s.Files)
	assert.Equal(t, 4, s.Functions)
	assert.InDelta(t, 4.0, s.Mean, 1e-9)
	assert.Equal(t, 10, s.Max)
	assert.Equal(t, 2.0, s.P50)
	assert.Equal(t, 10.0, s.P95)
	assert.Equal(t, 1, s.OverThreshold)
	assert.Greater(t, s.StdDev, 0.0)
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(3, nil, 10)
	assert.Equal(t, Summary{Files: 3}, s)
}

func TestSummarize_Single(t *testing.T) {
	s := Summarize(1, []int{4}, 0)
	assert.Equal(t, 4.0, s.Mean)
	assert.Zero(t, s.StdDev)
	assert.Equal(t, 4.0, s.P90)
	assert.Zero(t, s.OverThreshold)
}
