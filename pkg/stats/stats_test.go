package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummarize(t *testing.T) {
	values := []float64{1, 0.3, 0.9, 0.4, 0.6, 0.5, 0.2, 0.8, 0.7, 0.1}
	s := Summarize(values)

	assert.Equal(t, 10, s.Count)
	assert.InDelta(t, 0.55, s.Mean, 1e-9)
	assert.Equal(t, 0.5, s.P50)
	assert.Equal(t, 1.0, s.P95)
	assert.Equal(t, 1.0, s.Max)
	assert.Equal(t, 1.0, values[0], "input must not be reordered")
}

func TestSummarizeEmpty(t *testing.T) {
	assert.Equal(t, Summary{}, Summarize(nil))
}

func TestPercentile(t *testing.T) {
	sorted := []float64{10, 20, 30, 40}

	tests := []struct {
		p    int
		want float64
	}{
		{-5, 10},
		{0, 10},
		{25, 10},
		{50, 20},
		{75, 30},
		{90, 40},
		{100, 40},
		{150, 40},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Percentile(sorted, tt.p), "p=%d", tt.p)
	}
	assert.Equal(t, 0.0, Percentile(nil, 50))
}
