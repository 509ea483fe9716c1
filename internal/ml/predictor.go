package ml

import (
	"math"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/exo-discovery/backend/pkg/logger"
)

// DefaultThreshold separates CONFIRMED from FALSE POSITIVE.
const DefaultThreshold = 0.5

// FeatureContribution reports how much a single feature contributed to a
// prediction, estimated as importance times the imputed value's magnitude.
type FeatureContribution struct {
	FeatureName  string  `json:"feature_name"`
	Value        float64 `json:"value"`
	Contribution float64 `json:"contribution"`
	Importance   float64 `json:"importance"`
}

// Result is a single prediction outcome.
type Result struct {
	Probability    float64 `json:"probability"`
	ProbabilityPct float64 `json:"probability_pct"`
	RawOutput      float64 `json:"raw_output"`
	Prediction     string  `json:"prediction"`
	Confidence     string  `json:"confidence"`
	ModelVersion   string  `json:"model_version"`

	FeatureContributions []FeatureContribution `json:"feature_contributions,omitempty"`
	TopCorrelations      map[string]float64    `json:"top_correlations,omitempty"`
}

// Info describes the loaded model for the /model endpoints.
type Info struct {
	ModelVersion   string         `json:"model_version"`
	ModelType      string         `json:"model_type"`
	NumTrees       int            `json:"n_estimators"`
	NumFeatures    int            `json:"n_features"`
	FeatureNames   []string       `json:"feature_names"`
	LabelMap       map[string]int `json:"label_map"`
	LibraryVersion string         `json:"library_version"`
	ArtifactPath   string         `json:"artifact_path"`
}

// Predictor wraps the loaded artifact behind a lazily-initialized shared
// instance. Loading happens once; a missing artifact is reported per call so
// the server can boot without a trained model.
type Predictor struct {
	artifactPath string
	threshold    float64

	loadOnce sync.Once
	artifact *Artifact
	loadErr  error
}

func NewPredictor(artifactPath string, threshold float64) *Predictor {
	if threshold <= 0 || threshold >= 1 {
		threshold = DefaultThreshold
	}
	return &Predictor{
		artifactPath: artifactPath,
		threshold:    threshold,
	}
}

func (p *Predictor) load() (*Artifact, error) {
	p.loadOnce.Do(func() {
		p.artifact, p.loadErr = LoadArtifact(p.artifactPath)
	})
	return p.artifact, p.loadErr
}

// Ready reports whether the artifact can be loaded.
func (p *Predictor) Ready() bool {
	_, err := p.load()
	return err == nil
}

// Threshold returns the configured classification threshold.
func (p *Predictor) Threshold() float64 {
	return p.threshold
}

// AlignFeatures orders an unordered feature map into the model's canonical
// feature vector, substituting NaN for absent names so the imputer fills them.
func AlignFeatures(features map[string]float64, order []string) []float64 {
	vector := make([]float64, len(order))
	for i, name := range order {
		if value, ok := features[name]; ok {
			vector[i] = value
		} else {
			vector[i] = math.NaN()
		}
	}
	return vector
}

// impute replaces NaN entries with the artifact's per-feature fill values.
func (a *Artifact) impute(vector []float64) []float64 {
	imputed := make([]float64, len(vector))
	for i, v := range vector {
		if math.IsNaN(v) {
			imputed[i] = a.Imputer.FillValues[i]
		} else {
			imputed[i] = v
		}
	}
	return imputed
}

// Predict runs the full inference pipeline for one feature map: align,
// impute, forest vote, then validate/normalize/round/threshold/bucket.
func (p *Predictor) Predict(features map[string]float64, includeContributions bool) (*Result, error) {
	artifact, err := p.load()
	if err != nil {
		return nil, err
	}

	aligned := AlignFeatures(features, artifact.Features)
	sample := artifact.impute(aligned)

	raw := forestProbability(artifact.Trees, sample)
	if artifact.OutputScale == ScalePercent {
		raw *= 100
	}

	normalized, err := NormalizeProbability(raw)
	if err != nil {
		logger.Error("Model output rejected", zap.Float64("raw", raw), zap.Error(err))
		return nil, err
	}

	probability := RoundProbability(normalized)
	label := PredictionLabel(probability, p.threshold)
	confidence := ConfidenceLevel(probability)

	logger.Debug("Prediction computed",
		zap.Float64("raw", raw),
		zap.Float64("probability", probability),
		zap.String("prediction", label),
		zap.String("confidence", confidence),
	)

	result := &Result{
		Probability:    probability,
		ProbabilityPct: probability * 100,
		RawOutput:      raw,
		Prediction:     label,
		Confidence:     confidence,
		ModelVersion:   artifact.ModelVersion,
	}

	if includeContributions {
		result.FeatureContributions = p.featureContributions(artifact, sample)
		result.TopCorrelations = p.topCorrelations(artifact, 10)
	}

	return result, nil
}

// BatchPredict runs Predict over many feature maps, skipping failures and
// reporting how many succeeded.
func (p *Predictor) BatchPredict(featuresList []map[string]float64, includeContributions bool) ([]*Result, int) {
	results := make([]*Result, 0, len(featuresList))
	succeeded := 0

	for i, features := range featuresList {
		result, err := p.Predict(features, includeContributions)
		if err != nil {
			logger.Warn("Batch item prediction failed", zap.Int("index", i), zap.Error(err))
			results = append(results, nil)
			continue
		}
		results = append(results, result)
		succeeded++
	}

	return results, succeeded
}

// featureContributions estimates each feature's contribution as importance
// times the imputed value's magnitude, returning the top 20 by importance.
func (p *Predictor) featureContributions(artifact *Artifact, sample []float64) []FeatureContribution {
	importances := artifact.FeatureImportances()

	contributions := make([]FeatureContribution, len(artifact.Features))
	for i, name := range artifact.Features {
		contributions[i] = FeatureContribution{
			FeatureName:  name,
			Value:        sample[i],
			Contribution: importances[i] * math.Abs(sample[i]),
			Importance:   importances[i],
		}
	}

	sort.Slice(contributions, func(i, j int) bool {
		return contributions[i].Importance > contributions[j].Importance
	})

	if len(contributions) > 20 {
		contributions = contributions[:20]
	}
	return contributions
}

// topCorrelations returns the N most important features keyed by name, with
// importance standing in for correlation strength.
func (p *Predictor) topCorrelations(artifact *Artifact, topN int) map[string]float64 {
	importances := artifact.FeatureImportances()

	type ranked struct {
		name       string
		importance float64
	}
	all := make([]ranked, len(artifact.Features))
	for i, name := range artifact.Features {
		all[i] = ranked{name: name, importance: importances[i]}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].importance > all[j].importance })

	if topN > len(all) {
		topN = len(all)
	}
	correlations := make(map[string]float64, topN)
	for _, r := range all[:topN] {
		correlations[r.name] = r.importance
	}
	return correlations
}

// ModelInfo returns metadata about the loaded artifact.
func (p *Predictor) ModelInfo() (*Info, error) {
	artifact, err := p.load()
	if err != nil {
		return nil, err
	}
	return &Info{
		ModelVersion:   artifact.ModelVersion,
		ModelType:      artifact.ModelType,
		NumTrees:       len(artifact.Trees),
		NumFeatures:    len(artifact.Features),
		FeatureNames:   artifact.Features,
		LabelMap:       artifact.LabelMap,
		LibraryVersion: artifact.LibraryVersion,
		ArtifactPath:   p.artifactPath,
	}, nil
}

// FeatureImportanceRanking returns the top N (name, importance) pairs.
func (p *Predictor) FeatureImportanceRanking(topN int) ([]FeatureContribution, error) {
	artifact, err := p.load()
	if err != nil {
		return nil, err
	}

	importances := artifact.FeatureImportances()
	ranking := make([]FeatureContribution, len(artifact.Features))
	for i, name := range artifact.Features {
		ranking[i] = FeatureContribution{FeatureName: name, Importance: importances[i]}
	}
	sort.Slice(ranking, func(i, j int) bool { return ranking[i].Importance > ranking[j].Importance })

	if topN > 0 && len(ranking) > topN {
		ranking = ranking[:topN]
	}
	return ranking, nil
}
