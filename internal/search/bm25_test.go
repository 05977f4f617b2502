package search

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBM25_KnownValue(t *testing.T) {
	// Given: two documents of equal length
	docs := [][]string{{"cat", "sat"}, {"dog", "ran"}}
	b := NewBM25(docs, DefaultBM25Config())

	// When: scoring "cat"
	got := b.Score(0, []string{"cat"})

	// Then: idf = ln(1 + 1.5/1.5), tf part = 1*(2.2)/(1+1.2*1) = 1
	assert.InDelta(t, math.Log(2), got, 1e-9)
	assert.Equal(t, 0.0, b.Score(1, []string{"cat"}))
}

func TestBM25_RareTermsWeighMore(t *testing.T) {
	docs := [][]string{
		{"meeting", "notes", "budget"},
		{"meeting", "notes", "travel"},
		{"meeting", "agenda", "travel"},
	}
	b := NewBM25(docs, DefaultBM25Config())

	scores := b.ScoreAll([]string{"meeting", "budget"})

	require.Len(t, scores, 3)
	assert.Greater(t, scores[0], scores[1])
	assert.InDelta(t, scores[1], scores[2], 1e-9)
}

func TestBM25_LengthNormalization(t *testing.T) {
	docs := [][]string{
		{"alpha", "beta"},
		{"alpha", "beta", "gamma", "delta", "epsilon", "zeta"},
	}
	b := NewBM25(docs, DefaultBM25Config())

	assert.Greater(t, b.Score(0, []string{"alpha"}), b.Score(1, []string{"alpha"}))
}

func TestBM25_EmptyCorpus(t *testing.T) {
	b := NewBM25(nil, DefaultBM25Config())
	assert.Equal(t, 0.0, b.Score(0, []string{"x"}))
	assert.Empty(t, b.ScoreAll([]string{"x"}))
}

func TestMinMax(t *testing.T) {
	tests := []struct {
		name string
		in   []float64
		want []float64
	}{
		{"spread", []float64{2, 4, 6}, []float64{0, 0.5, 1}},
		{"all equal", []float64{3, 3}, []float64{1, 1}},
		{"single", []float64{0.2}, []float64{1}},
		{"all zero", []float64{0, 0, 0}, []float64{1, 1, 1}},
		{"empty", nil, []float64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDeltaSlice(t, tt.want, MinMax(tt.in), 1e-9)
		})
	}
}
