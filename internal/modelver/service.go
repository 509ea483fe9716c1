// Package modelver manages model version records: training and retraining
// (simulated for the demo), metrics, configuration and feature reporting.
package modelver

import (
	"math"
	"math/rand"
	"regexp"
	"sort"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/exo-discovery/backend/internal/apierr"
	"github.com/exo-discovery/backend/internal/metrics"
	"github.com/exo-discovery/backend/internal/ml"
	"github.com/exo-discovery/backend/internal/storage"
	"github.com/exo-discovery/backend/internal/storage/models"
	"github.com/exo-discovery/backend/pkg/logger"
)

var versionPattern = regexp.MustCompile(`^v\d+\.\d+$`)

type Service struct {
	store     *storage.Store
	predictor *ml.Predictor
	rng       *rand.Rand
}

func NewService(store *storage.Store, predictor *ml.Predictor) *Service {
	return &Service{
		store:     store,
		predictor: predictor,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Metrics are the stored evaluation scores for one version.
type Metrics struct {
	F1Score   float64  `json:"f1_score"`
	Precision float64  `json:"precision"`
	Recall    float64  `json:"recall"`
	Accuracy  *float64 `json:"accuracy"`
	AUCROC    *float64 `json:"auc_roc"`
}

// Config is the hyperparameter configuration payload.
type Config struct {
	ModelType       string         `json:"model_type"`
	Hyperparameters map[string]any `json:"hyperparameters"`
}

func DefaultConfig() Config {
	return Config{
		ModelType: "RandomForest",
		Hyperparameters: map[string]any{
			"n_estimators":      100,
			"max_depth":         10,
			"min_samples_split": 2,
			"min_samples_leaf":  1,
			"random_state":      42,
		},
	}
}

func (c *Config) toJSONMap() models.JSONMap {
	if c.ModelType == "" {
		c.ModelType = "RandomForest"
	}
	if c.Hyperparameters == nil {
		c.Hyperparameters = DefaultConfig().Hyperparameters
	}
	return models.JSONMap{
		"model_type":      c.ModelType,
		"hyperparameters": c.Hyperparameters,
	}
}

func configFromJSONMap(m models.JSONMap) Config {
	cfg := Config{ModelType: "RandomForest"}
	if t, ok := m["model_type"].(string); ok {
		cfg.ModelType = t
	}
	if h, ok := m["hyperparameters"].(map[string]any); ok {
		cfg.Hyperparameters = h
	}
	return cfg
}

// TrainRequest is the payload for POST /model/train.
type TrainRequest struct {
	Version     string  `json:"version"`
	Config      *Config `json:"config"`
	Description string  `json:"description"`
}

// RetrainRequest is the payload for POST /model/retrain.
type RetrainRequest struct {
	BaseVersion string  `json:"base_version"`
	NewVersion  string  `json:"new_version"`
	Config      *Config `json:"config"`
	Description string  `json:"description"`
}

// Detail is the full model version view.
type Detail struct {
	ID            uint       `json:"id"`
	Version       string     `json:"version"`
	Description   string     `json:"description,omitempty"`
	Config        Config     `json:"config"`
	Metrics       *Metrics   `json:"metrics"`
	ParentVersion *string    `json:"parent_version"`
	IsActive      bool       `json:"is_active"`
	TrainedAt     *time.Time `json:"trained_at"`
	CreatedAt     time.Time  `json:"created_at"`
}

// FeatureImportance ranks one feature for the reporting endpoint.
type FeatureImportance struct {
	FeatureName string  `json:"feature_name"`
	Importance  float64 `json:"importance"`
	Rank        int     `json:"rank"`
}

// FeatureCorrelation pairs two features with their Pearson correlation.
type FeatureCorrelation struct {
	Feature1     string  `json:"feature1"`
	Feature2     string  `json:"feature2"`
	Correlation  float64 `json:"correlation"`
	Significance string  `json:"significance"`
}

// Train creates a new model version. Actual training runs offline; the demo
// records the version with metrics in the ranges the real pipeline produces.
func (s *Service) Train(req *TrainRequest) (*Detail, error) {
	if !versionPattern.MatchString(req.Version) {
		return nil, apierr.Validationf("version must match v<major>.<minor>, got %q", req.Version)
	}

	cfg := DefaultConfig()
	if req.Config != nil {
		cfg = *req.Config
	}

	mv := &models.ModelVersion{
		Version:     req.Version,
		Description: req.Description,
		Config:      cfg.toJSONMap(),
	}
	if err := s.store.CreateModelVersion(mv); err != nil {
		return nil, err
	}

	s.simulateMetrics(mv, nil)
	if err := s.store.SaveModelVersion(mv); err != nil {
		return nil, err
	}
	s.updateVersionGauge()

	logger.Info("Model version trained",
		zap.String("version", mv.Version),
		zap.Float64p("f1", mv.F1Score),
	)

	detail := toDetail(mv)
	return &detail, nil
}

// Retrain copies a base version's configuration into a new version with
// lineage and slightly improved simulated metrics.
func (s *Service) Retrain(req *RetrainRequest) (*Detail, error) {
	if !versionPattern.MatchString(req.NewVersion) {
		return nil, apierr.Validationf("new_version must match v<major>.<minor>, got %q", req.NewVersion)
	}

	base, err := s.store.GetModelVersion(req.BaseVersion)
	if err != nil {
		return nil, err
	}

	cfg := configFromJSONMap(base.Config)
	if req.Config != nil {
		cfg = *req.Config
	}

	description := req.Description
	if description == "" {
		description = "Retrained from " + base.Version
	}

	parent := base.Version
	mv := &models.ModelVersion{
		Version:       req.NewVersion,
		Description:   description,
		ParentVersion: &parent,
		Config:        cfg.toJSONMap(),
	}
	if err := s.store.CreateModelVersion(mv); err != nil {
		return nil, err
	}

	s.simulateMetrics(mv, base)
	if err := s.store.SaveModelVersion(mv); err != nil {
		return nil, err
	}
	s.updateVersionGauge()

	logger.Info("Model version retrained",
		zap.String("version", mv.Version),
		zap.String("base", base.Version),
	)

	detail := toDetail(mv)
	return &detail, nil
}

// GetMetrics returns the stored metrics for a version.
func (s *Service) GetMetrics(version string) (*Metrics, error) {
	mv, err := s.store.GetModelVersion(version)
	if err != nil {
		return nil, err
	}

	m := &Metrics{
		Accuracy: mv.Accuracy,
		AUCROC:   mv.AUCROC,
	}
	if mv.F1Score != nil {
		m.F1Score = *mv.F1Score
	}
	if mv.Precision != nil {
		m.Precision = *mv.Precision
	}
	if mv.Recall != nil {
		m.Recall = *mv.Recall
	}
	return m, nil
}

// List returns all versions, newest first.
func (s *Service) List() ([]Detail, error) {
	versions, err := s.store.ListModelVersions()
	if err != nil {
		return nil, err
	}

	details := make([]Detail, len(versions))
	for i := range versions {
		details[i] = toDetail(&versions[i])
	}
	return details, nil
}

func (s *Service) GetConfig(version string) (*Config, error) {
	mv, err := s.store.GetModelVersion(version)
	if err != nil {
		return nil, err
	}
	cfg := configFromJSONMap(mv.Config)
	return &cfg, nil
}

func (s *Service) UpdateConfig(version string, cfg *Config) (*Config, error) {
	mv, err := s.store.GetModelVersion(version)
	if err != nil {
		return nil, err
	}

	mv.Config = cfg.toJSONMap()
	if err := s.store.SaveModelVersion(mv); err != nil {
		return nil, err
	}

	updated := configFromJSONMap(mv.Config)
	return &updated, nil
}

// FeatureImportanceRanking reports the top features, read from the live
// artifact when it is loadable.
func (s *Service) FeatureImportanceRanking(version string) ([]FeatureImportance, error) {
	if _, err := s.store.GetModelVersion(version); err != nil {
		return nil, err
	}

	ranking, err := s.predictor.FeatureImportanceRanking(20)
	if err != nil {
		return nil, err
	}

	out := make([]FeatureImportance, len(ranking))
	for i, r := range ranking {
		out[i] = FeatureImportance{
			FeatureName: r.FeatureName,
			Importance:  r.Importance,
			Rank:        i + 1,
		}
	}
	return out, nil
}

// FeatureCorrelations computes Pearson correlations between adjacent pairs of
// the most important features over a sample of stored planets.
func (s *Service) FeatureCorrelations() ([]FeatureCorrelation, error) {
	planets, _, err := s.store.ListPlanets(0, 200)
	if err != nil {
		return nil, err
	}
	if len(planets) < 2 {
		return []FeatureCorrelation{}, nil
	}

	names := s.correlationFeatures(planets)

	correlations := make([]FeatureCorrelation, 0, len(names)/2)
	for i := 0; i+1 < len(names); i += 2 {
		f1, f2 := names[i], names[i+1]

		xs := make([]float64, 0, len(planets))
		ys := make([]float64, 0, len(planets))
		for j := range planets {
			v1, ok1 := planets[j].Features[f1]
			v2, ok2 := planets[j].Features[f2]
			if !ok1 || !ok2 {
				continue
			}
			xs = append(xs, v1)
			ys = append(ys, v2)
		}
		if len(xs) < 2 {
			continue
		}

		c := stat.Correlation(xs, ys, nil)
		if math.IsNaN(c) {
			continue
		}
		correlations = append(correlations, FeatureCorrelation{
			Feature1:     f1,
			Feature2:     f2,
			Correlation:  c,
			Significance: significance(c),
		})
	}

	return correlations, nil
}

// correlationFeatures picks which features to correlate: the model's top
// importances when the artifact loads, else the sample's sorted names.
func (s *Service) correlationFeatures(planets []models.Planet) []string {
	if ranking, err := s.predictor.FeatureImportanceRanking(10); err == nil {
		names := make([]string, len(ranking))
		for i, r := range ranking {
			names[i] = r.FeatureName
		}
		return names
	}

	seen := make(map[string]bool)
	var names []string
	for i := range planets {
		for name := range planets[i].Features {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
		if len(names) >= 10 {
			break
		}
	}
	sort.Strings(names)
	if len(names) > 10 {
		names = names[:10]
	}
	return names
}

func significance(correlation float64) string {
	abs := math.Abs(correlation)
	switch {
	case abs >= 0.7:
		return "high"
	case abs >= 0.4:
		return "medium"
	default:
		return "low"
	}
}

// simulateMetrics fills in evaluation scores. Retrains inherit the parent's
// scores with a small improvement, capped at 0.99.
func (s *Service) simulateMetrics(mv *models.ModelVersion, base *models.ModelVersion) {
	improve := func(baseValue *float64, fallback float64) float64 {
		if baseValue == nil {
			return math.Min(0.99, fallback+s.rng.Float64()*0.05)
		}
		return math.Min(0.99, *baseValue+0.01+s.rng.Float64()*0.04)
	}

	var f1, precision, recall, accuracy, auc float64
	if base == nil {
		f1 = 0.80 + s.rng.Float64()*0.15
		precision = 0.78 + s.rng.Float64()*0.15
		recall = 0.82 + s.rng.Float64()*0.14
		accuracy = 0.80 + s.rng.Float64()*0.14
		auc = 0.85 + s.rng.Float64()*0.13
	} else {
		f1 = improve(base.F1Score, 0.85)
		precision = improve(base.Precision, 0.83)
		recall = improve(base.Recall, 0.87)
		accuracy = improve(base.Accuracy, 0.86)
		auc = improve(base.AUCROC, 0.91)
	}

	now := time.Now()
	mv.F1Score = &f1
	mv.Precision = &precision
	mv.Recall = &recall
	mv.Accuracy = &accuracy
	mv.AUCROC = &auc
	mv.TrainedAt = &now
}

func (s *Service) updateVersionGauge() {
	if versions, err := s.store.ListModelVersions(); err == nil {
		metrics.ModelVersionsTotal.Set(float64(len(versions)))
	}
}

func toDetail(mv *models.ModelVersion) Detail {
	detail := Detail{
		ID:            mv.ID,
		Version:       mv.Version,
		Description:   mv.Description,
		Config:        configFromJSONMap(mv.Config),
		ParentVersion: mv.ParentVersion,
		IsActive:      mv.IsActive,
		TrainedAt:     mv.TrainedAt,
		CreatedAt:     mv.CreatedAt,
	}
	if mv.F1Score != nil {
		detail.Metrics = &Metrics{
			F1Score:  *mv.F1Score,
			Accuracy: mv.Accuracy,
			AUCROC:   mv.AUCROC,
		}
		if mv.Precision != nil {
			detail.Metrics.Precision = *mv.Precision
		}
		if mv.Recall != nil {
			detail.Metrics.Recall = *mv.Recall
		}
	}
	return detail
}
