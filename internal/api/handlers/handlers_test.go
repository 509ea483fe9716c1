package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exo-discovery/backend/internal/apierr"
	"github.com/exo-discovery/backend/internal/ml"
	"github.com/exo-discovery/backend/internal/modelver"
	"github.com/exo-discovery/backend/internal/planet"
	"github.com/exo-discovery/backend/internal/prediction"
	"github.com/exo-discovery/backend/internal/storage"
	"github.com/exo-discovery/backend/internal/storage/models"
)

func fixturePredictor(t *testing.T) *ml.Predictor {
	t.Helper()

	artifact := &ml.Artifact{
		ModelVersion: "v0.1",
		ModelType:    "RandomForest",
		Features:     []string{"koi_score"},
		LabelMap:     map[string]int{"FALSE POSITIVE": 0, "CONFIRMED": 1},
		Imputer:      ml.Imputer{Strategy: "mean", FillValues: []float64{0.5}},
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

func newTestApp(t *testing.T) (*fiber.App, *planet.Service) {
	t.Helper()

	store, err := storage.OpenInMemory()
	require.NoError(t, err)
	require.NoError(t, store.Migrate())
	t.Cleanup(func() { store.Close() })

	predictor := fixturePredictor(t)
	planetService := planet.NewService(store)
	predictionService := prediction.NewService(store, planetService, predictor, nil)
	versionService := modelver.NewService(store, predictor)

	app := fiber.New(fiber.Config{ErrorHandler: apierr.Handler})

	planetsHandler := NewPlanetsHandler(planetService)
	predictHandler := NewPredictHandler(predictionService)
	modelHandler := NewModelHandler(versionService, predictor)
	rewardHandler := NewRewardHandler(predictionService)

	app.Get("/planets", planetsHandler.ListPlanets)
	app.Post("/planets", planetsHandler.CreatePlanet)
	app.Post("/planets/filter", planetsHandler.FilterPlanets)
	app.Get("/planets/:id", planetsHandler.GetPlanet)
	app.Get("/predict/simple/:id", predictHandler.PredictSimple)
	app.Post("/predict/batch", predictHandler.PredictBatch)
	app.Get("/predict/:id", predictHandler.Predict)
	app.Post("/model/train", modelHandler.Train)
	app.Get("/model/versions", modelHandler.ListVersions)
	app.Get("/reward/:id", rewardHandler.GetReward)

	return app, planetService
}

func seedPlanet(t *testing.T, planets *planet.Service, rowID int64, koiScore float64) uint {
	t.Helper()

	detail, err := planets.Create(&planet.CreateRequest{
		RowID:       rowID,
		RA:          100,
		Dec:         20,
		R:           50,
		Disposition: models.DispositionCandidate,
		Features:    map[string]float64{"koi_score": koiScore},
	})
	require.NoError(t, err)
	return detail.ID
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	var decoded map[string]any
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(data) > 0 {
		require.NoError(t, json.Unmarshal(data, &decoded))
	}
	return resp, decoded
}

func TestListPlanetsEnvelope(t *testing.T) {
	app, planets := newTestApp(t)
	seedPlanet(t, planets, 1, 0.9)
	seedPlanet(t, planets, 2, 0.2)

	resp, body := doJSON(t, app, "GET", "/planets?page=1&page_size=1", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	assert.Equal(t, true, body["success"])
	assert.EqualValues(t, 2, body["total"])
	assert.EqualValues(t, 1, body["page"])
	assert.EqualValues(t, 2, body["total_pages"])

	items, ok := body["data"].([]any)
	require.True(t, ok)
	assert.Len(t, items, 1)

	item := items[0].(map[string]any)
	assert.Contains(t, item, "coordinates_3d")
	assert.Contains(t, item, "rowid")
}

func TestGetPlanetNotFoundEnvelope(t *testing.T) {
	app, _ := newTestApp(t)

	resp, body := doJSON(t, app, "GET", "/planets/999", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, false, body["success"])

	errs, ok := body["errors"].([]any)
	require.True(t, ok)
	require.Len(t, errs, 1)
	assert.Equal(t, "NotFoundError", errs[0].(map[string]any)["error_type"])
}

func TestCreatePlanet(t *testing.T) {
	app, _ := newTestApp(t)

	resp, body := doJSON(t, app, "POST", "/planets", map[string]any{
		"rowid":       10,
		"ra":          120.5,
		"dec":         -45.0,
		"r":           30.0,
		"disposition": "CANDIDATE",
		"features":    map[string]float64{"koi_score": 0.7},
	})
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, true, body["success"])

	// duplicate rowid conflicts
	resp, _ = doJSON(t, app, "POST", "/planets", map[string]any{
		"rowid":       10,
		"ra":          1.0,
		"dec":         1.0,
		"r":           1.0,
		"disposition": "CANDIDATE",
	})
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	// invalid coordinates get 422
	resp, _ = doJSON(t, app, "POST", "/planets", map[string]any{
		"rowid":       11,
		"ra":          999.0,
		"dec":         0.0,
		"r":           1.0,
		"disposition": "CANDIDATE",
	})
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
}

func TestPredictEndpoints(t *testing.T) {
	app, planets := newTestApp(t)
	id := seedPlanet(t, planets, 1, 0.9)

	resp, body := doJSON(t, app, "GET", "/predict/simple/1", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	data := body["data"].(map[string]any)
	assert.Equal(t, true, data["is_confirmed"])
	assert.Equal(t, "high", data["confidence_level"])

	resp, body = doJSON(t, app, "GET", "/predict/1", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	data = body["data"].(map[string]any)
	assert.Contains(t, data, "feature_contributions")

	resp, body = doJSON(t, app, "POST", "/predict/batch", map[string]any{
		"planet_ids": []uint{id, 999},
	})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	data = body["data"].(map[string]any)
	assert.EqualValues(t, 1, data["total_processed"])
}

func TestPredictBatchEmptyRejected(t *testing.T) {
	app, _ := newTestApp(t)

	resp, _ := doJSON(t, app, "POST", "/predict/batch", map[string]any{
		"planet_ids": []uint{},
	})
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
}

func TestTrainAndListVersions(t *testing.T) {
	app, _ := newTestApp(t)

	resp, body := doJSON(t, app, "POST", "/model/train", map[string]any{
		"version": "v1.0",
	})
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	data := body["data"].(map[string]any)
	assert.Equal(t, "v1.0", data["version"])

	resp, body = doJSON(t, app, "GET", "/model/versions", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	versions := body["data"].([]any)
	assert.Len(t, versions, 1)

	// malformed version string
	resp, _ = doJSON(t, app, "POST", "/model/train", map[string]any{
		"version": "not-a-version",
	})
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
}

func TestRewardEndpoint(t *testing.T) {
	app, planets := newTestApp(t)
	seedPlanet(t, planets, 7, 0.9)

	resp, body := doJSON(t, app, "GET", "/reward/1", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	data := body["data"].(map[string]any)
	assert.Equal(t, true, data["reward_granted"])
	assert.EqualValues(t, 100, data["points_earned"])
	assert.Equal(t, "rowid_7", data["planet_name"])
}

func TestIdentifyPlanetsEndpoint(t *testing.T) {
	store, err := storage.OpenInMemory()
	require.NoError(t, err)
	require.NoError(t, store.Migrate())
	t.Cleanup(func() { store.Close() })

	predictor := fixturePredictor(t)
	versionService := modelver.NewService(store, predictor)
	uploadHandler := NewUploadHandler(store, versionService, predictor)

	app := fiber.New(fiber.Config{ErrorHandler: apierr.Handler})
	app.Post("/upload/identify-planets", uploadHandler.IdentifyPlanets)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "candidates.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte("koi_score\n0.9\n0.1\n"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest("POST", "/upload/identify-planets", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/csv")
	assert.Equal(t, "2", resp.Header.Get("X-Rows-Processed"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := string(body)
	assert.Contains(t, out, "koi_score,ai_prediction,ai_probability,ai_confidence")
	assert.Contains(t, out, "0.9,CONFIRMED,0.9000,high")
	assert.Contains(t, out, "0.1,FALSE POSITIVE,0.2000,medium")
}

func TestFilterEndpoint(t *testing.T) {
	app, planets := newTestApp(t)
	seedPlanet(t, planets, 1, 0.9)

	resp, body := doJSON(t, app, "POST", "/planets/filter", map[string]any{
		"disposition": []string{"CANDIDATE"},
	})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["total"])

	// inverted probability range
	resp, _ = doJSON(t, app, "POST", "/planets/filter", map[string]any{
		"min_probability": 0.9,
		"max_probability": 0.1,
	})
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
}
