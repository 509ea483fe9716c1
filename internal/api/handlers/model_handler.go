package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/exo-discovery/backend/internal/apierr"
	"github.com/exo-discovery/backend/internal/ml"
	"github.com/exo-discovery/backend/internal/modelver"
)

type ModelHandler struct {
	versions  *modelver.Service
	predictor *ml.Predictor
}

func NewModelHandler(versions *modelver.Service, predictor *ml.Predictor) *ModelHandler {
	return &ModelHandler{versions: versions, predictor: predictor}
}

// Train handles POST /model/train.
func (h *ModelHandler) Train(c *fiber.Ctx) error {
	var req modelver.TrainRequest
	if err := c.BodyParser(&req); err != nil {
		return apierr.Validationf("invalid request body: %v", err)
	}

	detail, err := h.versions.Train(&req)
	if err != nil {
		return err
	}

	return created(c, "Model training completed", detail)
}

// Retrain handles POST /model/retrain.
func (h *ModelHandler) Retrain(c *fiber.Ctx) error {
	var req modelver.RetrainRequest
	if err := c.BodyParser(&req); err != nil {
		return apierr.Validationf("invalid request body: %v", err)
	}

	detail, err := h.versions.Retrain(&req)
	if err != nil {
		return err
	}

	return created(c, "Model retraining completed", detail)
}

// GetMetrics handles GET /model/metrics/:version.
func (h *ModelHandler) GetMetrics(c *fiber.Ctx) error {
	metrics, err := h.versions.GetMetrics(c.Params("version"))
	if err != nil {
		return err
	}

	return ok(c, metrics)
}

// ListVersions handles GET /model/versions.
func (h *ModelHandler) ListVersions(c *fiber.Ctx) error {
	versions, err := h.versions.List()
	if err != nil {
		return err
	}

	return ok(c, versions)
}

// GetConfig handles GET /model/config/:version.
func (h *ModelHandler) GetConfig(c *fiber.Ctx) error {
	cfg, err := h.versions.GetConfig(c.Params("version"))
	if err != nil {
		return err
	}

	return ok(c, cfg)
}

// UpdateConfig handles PUT /model/config/:version.
func (h *ModelHandler) UpdateConfig(c *fiber.Ctx) error {
	var cfg modelver.Config
	if err := c.BodyParser(&cfg); err != nil {
		return apierr.Validationf("invalid request body: %v", err)
	}

	updated, err := h.versions.UpdateConfig(c.Params("version"), &cfg)
	if err != nil {
		return err
	}

	return okMessage(c, "Model config updated", updated)
}

// FeatureImportance handles GET /model/features/importance/:version.
func (h *ModelHandler) FeatureImportance(c *fiber.Ctx) error {
	ranking, err := h.versions.FeatureImportanceRanking(c.Params("version"))
	if err != nil {
		return err
	}

	return ok(c, ranking)
}

// FeatureCorrelations handles GET /model/features/correlation.
func (h *ModelHandler) FeatureCorrelations(c *fiber.Ctx) error {
	correlations, err := h.versions.FeatureCorrelations()
	if err != nil {
		return err
	}

	return ok(c, correlations)
}

// ModelInfo handles GET /model/info, describing the loaded artifact.
func (h *ModelHandler) ModelInfo(c *fiber.Ctx) error {
	info, err := h.predictor.ModelInfo()
	if err != nil {
		return err
	}

	return ok(c, info)
}
