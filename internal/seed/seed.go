// Package seed populates the database with demo data when the service boots
// with an empty planets table.
package seed

import (
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/exo-discovery/backend/internal/storage"
	"github.com/exo-discovery/backend/internal/storage/models"
	"github.com/exo-discovery/backend/pkg/logger"
)

// FeatureCount matches the NASA dataset's numeric feature count.
const FeatureCount = 122

// Result reports what Initialize created.
type Result struct {
	Planets       int    `json:"planets"`
	ModelVersions int    `json:"model_versions"`
	Message       string `json:"message"`
}

// GenerateFeatures produces a synthetic feature map with per-band value
// ranges loosely shaped like the real dataset's columns.
func GenerateFeatures(rng *rand.Rand) models.FeatureMap {
	features := make(models.FeatureMap, FeatureCount)
	for i := 0; i < FeatureCount; i++ {
		name := fmt.Sprintf("feature_%03d", i)

		var value float64
		switch {
		case i < 20:
			// transit shape
			value = 0.8 + rng.Float64()*0.4
		case i < 40:
			// flux residuals
			value = -0.5 + rng.Float64()
		case i < 60:
			// orbital periods
			value = 1 + rng.Float64()*99
		case i < 80:
			// transit depths
			value = 0.0001 + rng.Float64()*0.0099
		case i < 100:
			// signal to noise
			value = 5 + rng.Float64()*45
		default:
			value = rng.NormFloat64()
		}
		features[name] = value
	}
	return features
}

// betaLike draws a beta(a,b)-shaped value from averaged uniforms, good
// enough for demo probability distributions.
func betaLike(rng *rand.Rand, a, b float64) float64 {
	x := 0.0
	for i := 0; i < int(a); i++ {
		x += rng.Float64()
	}
	y := 0.0
	for i := 0; i < int(b); i++ {
		y += rng.Float64()
	}
	if x+y == 0 {
		return 0.5
	}
	return x / (x + y)
}

// GeneratePlanets builds count dummy planets with skewed probability mass:
// most candidates look like non-planets, a minority look promising.
func GeneratePlanets(count int, modelVersion string, rng *rand.Rand) []models.Planet {
	planets := make([]models.Planet, 0, count)
	dispositions := []string{
		models.DispositionConfirmed,
		models.DispositionFalsePositive,
		models.DispositionCandidate,
	}

	for i := 0; i < count; i++ {
		ra := rng.Float64() * 360
		dec := rng.Float64()*180 - 90
		r := 10 + rng.Float64()*90

		var probability float64
		if rng.Float64() < 0.7 {
			probability = betaLike(rng, 2, 5)
		} else {
			probability = betaLike(rng, 5, 2)
		}

		var disposition string
		switch {
		case probability >= 0.9:
			disposition = models.DispositionConfirmed
		case probability >= 0.7:
			disposition = models.DispositionCandidate
		default:
			disposition = dispositions[rng.Intn(len(dispositions))]
		}

		version := modelVersion
		planets = append(planets, models.Planet{
			RowID:         int64(1000 + i),
			RA:            ra,
			Dec:           dec,
			R:             r,
			Disposition:   disposition,
			AIProbability: &probability,
			ModelVersion:  &version,
			Features:      GenerateFeatures(rng),
		})
	}

	return planets
}

func defaultModelVersion(store *storage.Store, version string) (*models.ModelVersion, error) {
	existing, err := store.GetModelVersion(version)
	if err == nil {
		return existing, nil
	}

	f1, precision, recall := 0.85, 0.83, 0.87
	accuracy, auc := 0.86, 0.91
	now := time.Now()

	mv := &models.ModelVersion{
		Version:     version,
		Description: "Default model version for dummy data",
		Config: models.JSONMap{
			"model_type": "RandomForest",
			"hyperparameters": map[string]any{
				"n_estimators":      100,
				"max_depth":         10,
				"min_samples_split": 2,
				"min_samples_leaf":  1,
				"random_state":      42,
			},
		},
		F1Score:   &f1,
		Precision: &precision,
		Recall:    &recall,
		Accuracy:  &accuracy,
		AUCROC:    &auc,
		IsActive:  true,
		TrainedAt: &now,
	}

	if err := store.CreateModelVersion(mv); err != nil {
		return nil, err
	}
	return mv, nil
}

// Initialize seeds the default model version and dummy planets. With force
// it clears existing data first; otherwise existing data is left alone.
func Initialize(store *storage.Store, count int, modelVersion string, force bool) (*Result, error) {
	existing, err := store.CountPlanets()
	if err != nil {
		return nil, err
	}

	if existing > 0 && !force {
		versions, err := store.ListModelVersions()
		if err != nil {
			return nil, err
		}
		return &Result{
			Planets:       int(existing),
			ModelVersions: len(versions),
			Message:       "Data already exists. Use force to recreate.",
		}, nil
	}

	if force {
		if err := store.DeleteAllPlanets(); err != nil {
			return nil, err
		}
		if err := store.DeleteAllModelVersions(); err != nil {
			return nil, err
		}
	}

	mv, err := defaultModelVersion(store, modelVersion)
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	planets := GeneratePlanets(count, mv.Version, rng)
	if err := store.BulkInsertPlanets(planets); err != nil {
		return nil, err
	}

	logger.Info("Dummy data seeded",
		zap.Int("planets", len(planets)),
		zap.String("model_version", mv.Version),
	)

	return &Result{
		Planets:       len(planets),
		ModelVersions: 1,
		Message:       "Dummy data initialized successfully",
	}, nil
}
