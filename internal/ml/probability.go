package ml

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrModelUnavailable means the artifact could not be loaded; predict
	// endpoints surface this as 503.
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrInvalidOutput means the raw model output failed validation.
	ErrInvalidOutput = errors.New("invalid model output")
)

// Confidence buckets derived from the probability's distance from 0.5.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// Prediction labels.
const (
	LabelConfirmed     = "CONFIRMED"
	LabelFalsePositive = "FALSE POSITIVE"
)

// NormalizeProbability validates a raw model output and maps it into [0, 1].
// Outputs with magnitude above 1 are treated as 0-100 percentages and divided
// by 100; anything outside the resulting domain, NaN or Inf is rejected.
func NormalizeProbability(raw float64) (float64, error) {
	if math.IsNaN(raw) {
		return 0, fmt.Errorf("%w: output is NaN", ErrInvalidOutput)
	}
	if math.IsInf(raw, 0) {
		return 0, fmt.Errorf("%w: output is Inf", ErrInvalidOutput)
	}
	if raw < 0 {
		return 0, fmt.Errorf("%w: output %v is negative", ErrInvalidOutput, raw)
	}

	if raw > 1 {
		if raw > 100 {
			return 0, fmt.Errorf("%w: output %v outside valid range 0-100", ErrInvalidOutput, raw)
		}
		return raw / 100, nil
	}

	return raw, nil
}

// RoundProbability rounds to 4 decimal places for consistent storage.
// Rounding is idempotent.
func RoundProbability(p float64) float64 {
	return math.Round(p*10000) / 10000
}

// PredictionLabel applies the classification threshold.
func PredictionLabel(probability, threshold float64) string {
	if probability >= threshold {
		return LabelConfirmed
	}
	return LabelFalsePositive
}

// ConfidenceLevel buckets a probability by its distance from 0.5: high at the
// extremes, low near the decision boundary.
func ConfidenceLevel(probability float64) string {
	switch {
	case probability >= 0.9 || probability <= 0.1:
		return ConfidenceHigh
	case probability >= 0.7 || probability <= 0.3:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}
