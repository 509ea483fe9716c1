// Package reward maps prediction outcomes to the gamification points and
// upgrade tiers shown by the frontend.
package reward

import (
	"fmt"

	"github.com/exo-discovery/backend/internal/ml"
)

// Outcome is the reward granted for a single planet discovery.
type Outcome struct {
	Granted      bool
	Points       int
	UpgradeLevel int // 0 means no tier
	Message      string
}

// Calculate maps (prediction label, probability) to points and tier:
// CONFIRMED at >=0.9 earns 100 points (tier 3), >=0.7 earns 50 (tier 2),
// >=0.5 earns 25 (tier 1); anything else earns nothing.
func Calculate(label string, probability float64, rowID int64) Outcome {
	if label != ml.LabelConfirmed {
		return Outcome{
			Message: fmt.Sprintf(
				"This planet (rowid=%d) is predicted as FALSE POSITIVE (prob=%.2f%%). Keep searching!",
				rowID, probability*100),
		}
	}

	switch {
	case probability >= 0.9:
		return Outcome{
			Granted:      true,
			Points:       100,
			UpgradeLevel: 3,
			Message: fmt.Sprintf(
				"Excellent! High confidence CONFIRMED exoplanet (rowid=%d, prob=%.2f%%)",
				rowID, probability*100),
		}
	case probability >= 0.7:
		return Outcome{
			Granted:      true,
			Points:       50,
			UpgradeLevel: 2,
			Message: fmt.Sprintf(
				"Great! Medium confidence CONFIRMED exoplanet (rowid=%d, prob=%.2f%%)",
				rowID, probability*100),
		}
	case probability >= 0.5:
		return Outcome{
			Granted:      true,
			Points:       25,
			UpgradeLevel: 1,
			Message: fmt.Sprintf(
				"Nice! Low confidence CONFIRMED exoplanet (rowid=%d, prob=%.2f%%)",
				rowID, probability*100),
		}
	default:
		return Outcome{
			Message: fmt.Sprintf(
				"This planet (rowid=%d) did not qualify for a reward (prob=%.2f%%).",
				rowID, probability*100),
		}
	}
}
