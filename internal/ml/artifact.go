package ml

import (
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/exo-discovery/backend/pkg/logger"
)

// Output scales an artifact may declare for its raw probabilities.
const (
	ScaleUnit    = "unit"    // 0-1
	ScalePercent = "percent" // 0-100
)

// Imputer holds the pre-computed fill value for each feature, applied to
// missing entries before inference (mean strategy at training time).
type Imputer struct {
	Strategy   string    `json:"strategy"`
	FillValues []float64 `json:"fill_values"`
}

// Artifact is the serialized model bundle: the forest, the ordered feature
// names the classifier was trained on, the label map and the imputer.
type Artifact struct {
	ModelVersion   string         `json:"model_version"`
	ModelType      string         `json:"model_type"`
	Features       []string       `json:"features"`
	LabelMap       map[string]int `json:"label_map"`
	Imputer        Imputer        `json:"imputer"`
	Trees          []Tree         `json:"trees"`
	Importances    []float64      `json:"feature_importances,omitempty"`
	OutputScale    string         `json:"output_scale,omitempty"`
	LibraryVersion string         `json:"library_version,omitempty"`
}

func LoadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("model artifact %s: %w", path, ErrModelUnavailable)
		}
		return nil, fmt.Errorf("reading model artifact: %w", err)
	}

	var artifact Artifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("decoding model artifact: %w", err)
	}

	if err := artifact.validate(); err != nil {
		return nil, fmt.Errorf("invalid model artifact %s: %w", path, err)
	}

	logger.Info("Model artifact loaded",
		zap.String("path", path),
		zap.String("version", artifact.ModelVersion),
		zap.Int("features", len(artifact.Features)),
		zap.Int("trees", len(artifact.Trees)),
	)

	return &artifact, nil
}

func (a *Artifact) validate() error {
	if len(a.Features) == 0 {
		return fmt.Errorf("artifact has no features")
	}
	if len(a.Trees) == 0 {
		return fmt.Errorf("artifact has no trees")
	}
	if len(a.Imputer.FillValues) != len(a.Features) {
		return fmt.Errorf("imputer fill values (%d) do not match features (%d)",
			len(a.Imputer.FillValues), len(a.Features))
	}
	if a.Importances != nil && len(a.Importances) != len(a.Features) {
		return fmt.Errorf("feature importances (%d) do not match features (%d)",
			len(a.Importances), len(a.Features))
	}
	if a.OutputScale == "" {
		a.OutputScale = ScaleUnit
	}
	if a.OutputScale != ScaleUnit && a.OutputScale != ScalePercent {
		return fmt.Errorf("unknown output scale %q", a.OutputScale)
	}
	for i := range a.Trees {
		if err := a.Trees[i].validate(len(a.Features)); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return nil
}

// FeatureImportances returns the per-feature importance vector, preferring
// the values stored in the artifact and falling back to split counts.
func (a *Artifact) FeatureImportances() []float64 {
	if a.Importances != nil {
		return a.Importances
	}
	return splitCountImportances(a.Trees, len(a.Features))
}
