package reward

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/exo-discovery/backend/internal/ml"
)

func TestCalculateTiers(t *testing.T) {
	tests := []struct {
		name        string
		label       string
		probability float64
		wantGranted bool
		wantPoints  int
		wantLevel   int
	}{
		{"high confidence", ml.LabelConfirmed, 0.95, true, 100, 3},
		{"tier 3 boundary", ml.LabelConfirmed, 0.9, true, 100, 3},
		{"tier 2", ml.LabelConfirmed, 0.8, true, 50, 2},
		{"tier 2 boundary", ml.LabelConfirmed, 0.7, true, 50, 2},
		{"tier 1", ml.LabelConfirmed, 0.6, true, 25, 1},
		{"tier 1 boundary", ml.LabelConfirmed, 0.5, true, 25, 1},
		{"confirmed below threshold", ml.LabelConfirmed, 0.49, false, 0, 0},
		{"false positive high probability", ml.LabelFalsePositive, 0.95, false, 0, 0},
		{"false positive", ml.LabelFalsePositive, 0.2, false, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome := Calculate(tt.label, tt.probability, 42)
			assert.Equal(t, tt.wantGranted, outcome.Granted)
			assert.Equal(t, tt.wantPoints, outcome.Points)
			assert.Equal(t, tt.wantLevel, outcome.UpgradeLevel)
			assert.NotEmpty(t, outcome.Message)
		})
	}
}

func TestCalculateMessageIncludesRowID(t *testing.T) {
	outcome := Calculate(ml.LabelConfirmed, 0.92, 1234)
	assert.Contains(t, outcome.Message, "rowid=1234")
	assert.Contains(t, outcome.Message, "92.00%")
}
