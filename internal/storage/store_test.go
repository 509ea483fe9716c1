package storage

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exo-discovery/backend/internal/storage/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := OpenInMemory()
	require.NoError(t, err)
	require.NoError(t, store.Migrate())
	t.Cleanup(func() { store.Close() })
	return store
}

func testPlanet(rowID int64) models.Planet {
	return models.Planet{
		RowID:       rowID,
		RA:          291.0,
		Dec:         48.1,
		R:           42.0,
		Disposition: models.DispositionCandidate,
		Features:    models.FeatureMap{"koi_score": 0.9, "koi_period": 12.3},
	}
}

func TestCreatePlanetDuplicateRowID(t *testing.T) {
	store := newTestStore(t)

	p1 := testPlanet(100)
	require.NoError(t, store.CreatePlanet(&p1))

	p2 := testPlanet(100)
	err := store.CreatePlanet(&p2)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestGetPlanetNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetPlanet(9999)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetPlanetByRowID(t *testing.T) {
	store := newTestStore(t)

	p := testPlanet(77)
	require.NoError(t, store.CreatePlanet(&p))

	got, err := store.GetPlanetByRowID(77)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, 0.9, got.Features["koi_score"])

	_, err = store.GetPlanetByRowID(78)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBulkInsertAndList(t *testing.T) {
	store := newTestStore(t)

	planets := make([]models.Planet, 10)
	for i := range planets {
		planets[i] = testPlanet(int64(i + 1))
	}
	require.NoError(t, store.BulkInsertPlanets(planets))

	page, total, err := store.ListPlanets(0, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(10), total)
	require.Len(t, page, 3)
	assert.Equal(t, int64(1), page[0].RowID)

	page, _, err = store.ListPlanets(9, 3)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, int64(10), page[0].RowID)
}

func TestFilterPlanets(t *testing.T) {
	store := newTestStore(t)

	low, high := 0.2, 0.95
	planets := []models.Planet{
		testPlanet(1),
		testPlanet(2),
		testPlanet(3),
	}
	planets[0].AIProbability = &low
	planets[0].Disposition = models.DispositionFalsePositive
	planets[1].AIProbability = &high
	planets[1].Disposition = models.DispositionConfirmed
	planets[2].RA = 10
	planets[2].Dec = -45
	require.NoError(t, store.BulkInsertPlanets(planets))

	minProb := 0.5
	got, total, err := store.FilterPlanets(PlanetFilter{
		MinProbability: &minProb,
		Limit:          50,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, got, 1)
	assert.Equal(t, int64(2), got[0].RowID)

	got, total, err = store.FilterPlanets(PlanetFilter{
		Dispositions: []string{models.DispositionConfirmed, models.DispositionFalsePositive},
		Limit:        50,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, got, 2)

	maxRA := 100.0
	got, _, err = store.FilterPlanets(PlanetFilter{MaxRA: &maxRA, Limit: 50})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(3), got[0].RowID)
}

func TestUpdatePlanetPrediction(t *testing.T) {
	store := newTestStore(t)

	p := testPlanet(5)
	require.NoError(t, store.CreatePlanet(&p))

	updated, err := store.UpdatePlanetPrediction(p.ID, 0.85, "CONFIRMED", "medium", "v0.1")
	require.NoError(t, err)
	require.NotNil(t, updated.AIProbability)
	assert.Equal(t, 0.85, *updated.AIProbability)
	assert.Equal(t, "CONFIRMED", *updated.PredictionLabel)
	assert.Equal(t, "medium", *updated.Confidence)
	assert.Equal(t, "v0.1", *updated.ModelVersion)

	got, err := store.GetPlanet(p.ID)
	require.NoError(t, err)
	require.NotNil(t, got.AIProbability)
	assert.Equal(t, 0.85, *got.AIProbability)
}

func TestDeleteAllPlanets(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.BulkInsertPlanets([]models.Planet{testPlanet(1), testPlanet(2)}))
	require.NoError(t, store.DeleteAllPlanets())

	count, err := store.CountPlanets()
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestModelVersionLifecycle(t *testing.T) {
	store := newTestStore(t)

	mv := &models.ModelVersion{
		Version:  "v0.1",
		Config:   models.JSONMap{"model_type": "RandomForest"},
		IsActive: true,
	}
	require.NoError(t, store.CreateModelVersion(mv))

	dup := &models.ModelVersion{Version: "v0.1", Config: models.JSONMap{}}
	assert.ErrorIs(t, store.CreateModelVersion(dup), ErrDuplicate)

	got, err := store.GetModelVersion("v0.1")
	require.NoError(t, err)
	assert.Equal(t, "RandomForest", got.Config["model_type"])

	active, err := store.GetActiveModelVersion()
	require.NoError(t, err)
	assert.Equal(t, "v0.1", active.Version)

	f1 := 0.9
	got.F1Score = &f1
	require.NoError(t, store.SaveModelVersion(got))

	reloaded, err := store.GetModelVersion("v0.1")
	require.NoError(t, err)
	require.NotNil(t, reloaded.F1Score)
	assert.Equal(t, 0.9, *reloaded.F1Score)

	_, err = store.GetModelVersion("v9.9")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPredictionRecords(t *testing.T) {
	store := newTestStore(t)

	for i := 0; i < 3; i++ {
		rec := &models.PredictionRecord{
			ID:           uuid.New().String(),
			PlanetID:     uint(i + 1),
			RowID:        int64(i + 1),
			Probability:  0.5,
			Label:        "CONFIRMED",
			Confidence:   "low",
			ModelVersion: "v0.1",
			LatencyMS:    int64(i),
		}
		require.NoError(t, store.InsertPredictionRecord(rec))
	}

	records, err := store.RecentPredictionRecords(2)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}
