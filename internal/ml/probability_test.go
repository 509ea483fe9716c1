package ml

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeProbability(t *testing.T) {
	tests := []struct {
		name    string
		raw     float64
		want    float64
		wantErr bool
	}{
		{name: "unit range passes through", raw: 0.42, want: 0.42},
		{name: "zero", raw: 0, want: 0},
		{name: "one", raw: 1, want: 1},
		{name: "percent scale divided", raw: 85.0, want: 0.85},
		{name: "just above one", raw: 1.5, want: 0.015},
		{name: "exactly one hundred", raw: 100, want: 1},
		{name: "above one hundred rejected", raw: 100.5, wantErr: true},
		{name: "negative rejected", raw: -0.1, wantErr: true},
		{name: "NaN rejected", raw: math.NaN(), wantErr: true},
		{name: "positive Inf rejected", raw: math.Inf(1), wantErr: true},
		{name: "negative Inf rejected", raw: math.Inf(-1), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeProbability(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidOutput)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestRoundProbabilityIdempotent(t *testing.T) {
	values := []float64{0.123456789, 0.85, 0.99995, 0.00004, 0.5}
	for _, v := range values {
		once := RoundProbability(v)
		twice := RoundProbability(once)
		assert.Equal(t, once, twice, "rounding %v twice changed the value", v)
	}
}

func TestRoundProbability(t *testing.T) {
	assert.Equal(t, 0.1235, RoundProbability(0.123456))
	assert.Equal(t, 0.85, RoundProbability(0.85))
	assert.Equal(t, 1.0, RoundProbability(0.99996))
}

func TestPredictionLabel(t *testing.T) {
	assert.Equal(t, LabelConfirmed, PredictionLabel(0.5, DefaultThreshold))
	assert.Equal(t, LabelConfirmed, PredictionLabel(0.95, DefaultThreshold))
	assert.Equal(t, LabelFalsePositive, PredictionLabel(0.4999, DefaultThreshold))
	assert.Equal(t, LabelFalsePositive, PredictionLabel(0, DefaultThreshold))
}

func TestConfidenceLevel(t *testing.T) {
	tests := []struct {
		probability float64
		want        string
	}{
		{0.95, ConfidenceHigh},
		{0.9, ConfidenceHigh},
		{0.05, ConfidenceHigh},
		{0.1, ConfidenceHigh},
		{0.89, ConfidenceMedium},
		{0.7, ConfidenceMedium},
		{0.3, ConfidenceMedium},
		{0.11, ConfidenceMedium},
		{0.69, ConfidenceLow},
		{0.5, ConfidenceLow},
		{0.31, ConfidenceLow},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ConfidenceLevel(tt.probability), "probability %v", tt.probability)
	}
}

// A raw output of 85.0 comes back as a medium-confidence CONFIRMED at 0.85.
func TestPercentOutputPipeline(t *testing.T) {
	p, err := NormalizeProbability(85.0)
	require.NoError(t, err)

	p = RoundProbability(p)
	assert.Equal(t, 0.85, p)
	assert.Equal(t, LabelConfirmed, PredictionLabel(p, DefaultThreshold))
	assert.Equal(t, ConfidenceMedium, ConfidenceLevel(p))
}
