package modelver

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exo-discovery/backend/internal/apierr"
	"github.com/exo-discovery/backend/internal/ml"
	"github.com/exo-discovery/backend/internal/storage"
	"github.com/exo-discovery/backend/internal/storage/models"
)

func newTestService(t *testing.T) (*Service, *storage.Store) {
	t.Helper()

	store, err := storage.OpenInMemory()
	require.NoError(t, err)
	require.NoError(t, store.Migrate())
	t.Cleanup(func() { store.Close() })

	// predictor pointing at a missing artifact; tests that need a model
	// build their own service
	predictor := ml.NewPredictor(filepath.Join(t.TempDir(), "absent.json"), ml.DefaultThreshold)
	return NewService(store, predictor), store
}

func artifactPredictor(t *testing.T) *ml.Predictor {
	t.Helper()

	artifact := &ml.Artifact{
		ModelVersion: "v0.1",
		ModelType:    "RandomForest",
		Features:     []string{"koi_score", "koi_period"},
		LabelMap:     map[string]int{"FALSE POSITIVE": 0, "CONFIRMED": 1},
		Imputer:      ml.Imputer{Strategy: "mean", FillValues: []float64{0.5, 100}},
		Trees: []ml.Tree{
			{
				ChildrenLeft:  []int{1, -1, -1},
				ChildrenRight: []int{2, -1, -1},
				Feature:       []int{0, -1, -1},
				Threshold:     []float64{0.5, 0, 0},
				Value:         [][2]float64{{0, 0}, {8, 2}, {1, 9}},
			},
		},
	}

	data, err := json.Marshal(artifact)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return ml.NewPredictor(path, ml.DefaultThreshold)
}

func TestTrain(t *testing.T) {
	svc, _ := newTestService(t)

	detail, err := svc.Train(&TrainRequest{Version: "v1.0", Description: "first"})
	require.NoError(t, err)

	assert.Equal(t, "v1.0", detail.Version)
	assert.Equal(t, "RandomForest", detail.Config.ModelType)
	assert.Nil(t, detail.ParentVersion)
	require.NotNil(t, detail.Metrics)
	assert.GreaterOrEqual(t, detail.Metrics.F1Score, 0.80)
	assert.LessOrEqual(t, detail.Metrics.F1Score, 0.95)
	require.NotNil(t, detail.TrainedAt)
}

func TestTrainInvalidVersion(t *testing.T) {
	svc, _ := newTestService(t)

	for _, version := range []string{"1.0", "v1", "va.b", "", "v1.0.0"} {
		_, err := svc.Train(&TrainRequest{Version: version})
		require.Error(t, err, "version %q should be rejected", version)
		assert.ErrorIs(t, err, apierr.ErrValidation)
	}
}

func TestTrainDuplicateVersion(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Train(&TrainRequest{Version: "v1.0"})
	require.NoError(t, err)

	_, err = svc.Train(&TrainRequest{Version: "v1.0"})
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrDuplicate)
}

func TestRetrainLineageAndImprovement(t *testing.T) {
	svc, _ := newTestService(t)

	base, err := svc.Train(&TrainRequest{Version: "v1.0"})
	require.NoError(t, err)

	detail, err := svc.Retrain(&RetrainRequest{
		BaseVersion: "v1.0",
		NewVersion:  "v1.1",
	})
	require.NoError(t, err)

	require.NotNil(t, detail.ParentVersion)
	assert.Equal(t, "v1.0", *detail.ParentVersion)
	assert.Contains(t, detail.Description, "v1.0")

	require.NotNil(t, detail.Metrics)
	assert.Greater(t, detail.Metrics.F1Score, base.Metrics.F1Score)
	assert.LessOrEqual(t, detail.Metrics.F1Score, 0.99)
}

func TestRetrainUnknownBase(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Retrain(&RetrainRequest{BaseVersion: "v9.9", NewVersion: "v1.0"})
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestGetMetrics(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Train(&TrainRequest{Version: "v1.0"})
	require.NoError(t, err)

	metrics, err := svc.GetMetrics("v1.0")
	require.NoError(t, err)
	assert.Greater(t, metrics.F1Score, 0.0)
	require.NotNil(t, metrics.Accuracy)

	_, err = svc.GetMetrics("v9.9")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestListNewestFirst(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Train(&TrainRequest{Version: "v1.0"})
	require.NoError(t, err)
	_, err = svc.Train(&TrainRequest{Version: "v1.1"})
	require.NoError(t, err)

	versions, err := svc.List()
	require.NoError(t, err)
	require.Len(t, versions, 2)
}

func TestConfigRoundTrip(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Train(&TrainRequest{Version: "v1.0"})
	require.NoError(t, err)

	cfg, err := svc.GetConfig("v1.0")
	require.NoError(t, err)
	assert.Equal(t, "RandomForest", cfg.ModelType)

	updated, err := svc.UpdateConfig("v1.0", &Config{
		ModelType:       "RandomForest",
		Hyperparameters: map[string]any{"n_estimators": 200},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 200, updated.Hyperparameters["n_estimators"])

	reloaded, err := svc.GetConfig("v1.0")
	require.NoError(t, err)
	assert.EqualValues(t, 200, reloaded.Hyperparameters["n_estimators"])
}

func TestFeatureImportanceRanking(t *testing.T) {
	store, err := storage.OpenInMemory()
	require.NoError(t, err)
	require.NoError(t, store.Migrate())
	t.Cleanup(func() { store.Close() })

	svc := NewService(store, artifactPredictor(t))

	_, err = svc.Train(&TrainRequest{Version: "v1.0"})
	require.NoError(t, err)

	ranking, err := svc.FeatureImportanceRanking("v1.0")
	require.NoError(t, err)
	require.NotEmpty(t, ranking)
	assert.Equal(t, 1, ranking[0].Rank)

	_, err = svc.FeatureImportanceRanking("v9.9")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestFeatureCorrelations(t *testing.T) {
	svc, store := newTestService(t)

	// two correlated features over a handful of planets
	planets := make([]models.Planet, 20)
	for i := range planets {
		v := float64(i)
		planets[i] = models.Planet{
			RowID:       int64(i + 1),
			RA:          10,
			Dec:         10,
			R:           10,
			Disposition: models.DispositionCandidate,
			Features: models.FeatureMap{
				"feature_a": v,
				"feature_b": 2 * v,
			},
		}
	}
	require.NoError(t, store.BulkInsertPlanets(planets))

	correlations, err := svc.FeatureCorrelations()
	require.NoError(t, err)
	require.NotEmpty(t, correlations)

	c := correlations[0]
	assert.InDelta(t, 1.0, c.Correlation, 1e-9)
	assert.Equal(t, "high", c.Significance)
}

func TestSignificanceBuckets(t *testing.T) {
	assert.Equal(t, "high", significance(0.85))
	assert.Equal(t, "high", significance(-0.7))
	assert.Equal(t, "medium", significance(0.5))
	assert.Equal(t, "low", significance(0.1))
}
