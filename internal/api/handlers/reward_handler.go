package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/exo-discovery/backend/internal/prediction"
)

type RewardHandler struct {
	predictions *prediction.Service
}

func NewRewardHandler(predictions *prediction.Service) *RewardHandler {
	return &RewardHandler{predictions: predictions}
}

// GetReward handles GET /reward/:id. Planets without a stored probability
// get predicted first.
func (h *RewardHandler) GetReward(c *fiber.Ctx) error {
	id, err := planetID(c)
	if err != nil {
		return err
	}

	resp, err := h.predictions.Reward(c.Context(), id)
	if err != nil {
		return err
	}

	return ok(c, resp)
}
