package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/exo-discovery/backend/internal/apierr"
	"github.com/exo-discovery/backend/internal/prediction"
)

type PredictHandler struct {
	predictions *prediction.Service
}

func NewPredictHandler(predictions *prediction.Service) *PredictHandler {
	return &PredictHandler{predictions: predictions}
}

// Predict handles GET /predict/:id with feature contributions.
func (h *PredictHandler) Predict(c *fiber.Ctx) error {
	id, err := planetID(c)
	if err != nil {
		return err
	}

	resp, err := h.predictions.Predict(c.Context(), id, true)
	if err != nil {
		return err
	}

	return ok(c, resp)
}

// PredictSimple handles GET /predict/simple/:id.
func (h *PredictHandler) PredictSimple(c *fiber.Ctx) error {
	id, err := planetID(c)
	if err != nil {
		return err
	}

	resp, err := h.predictions.PredictSimple(c.Context(), id)
	if err != nil {
		return err
	}

	return ok(c, resp)
}

// PredictBatch handles POST /predict/batch.
func (h *PredictHandler) PredictBatch(c *fiber.Ctx) error {
	var req prediction.BatchRequest
	if err := c.BodyParser(&req); err != nil {
		return apierr.Validationf("invalid request body: %v", err)
	}

	resp, err := h.predictions.BatchPredict(c.Context(), &req, nil)
	if err != nil {
		return err
	}

	return ok(c, resp)
}

// History handles GET /predict/history.
func (h *PredictHandler) History(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	if limit < 1 || limit > 500 {
		limit = 50
	}

	records, err := h.predictions.History(limit)
	if err != nil {
		return err
	}

	return ok(c, records)
}
