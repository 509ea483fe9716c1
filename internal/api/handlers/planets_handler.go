package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/exo-discovery/backend/internal/apierr"
	"github.com/exo-discovery/backend/internal/planet"
)

type PlanetsHandler struct {
	planets *planet.Service
}

func NewPlanetsHandler(planets *planet.Service) *PlanetsHandler {
	return &PlanetsHandler{planets: planets}
}

// ListPlanets handles GET /planets.
func (h *PlanetsHandler) ListPlanets(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	pageSize := c.QueryInt("page_size", planet.DefaultPageSize)

	items, total, err := h.planets.List(page, pageSize)
	if err != nil {
		return err
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > planet.MaxPageSize {
		pageSize = planet.DefaultPageSize
	}

	return paginated(c, items, total, page, pageSize)
}

// GetPlanet handles GET /planets/:id.
func (h *PlanetsHandler) GetPlanet(c *fiber.Ctx) error {
	id, err := planetID(c)
	if err != nil {
		return err
	}

	detail, err := h.planets.GetDetail(id)
	if err != nil {
		return err
	}

	return ok(c, detail)
}

// CreatePlanet handles POST /planets.
func (h *PlanetsHandler) CreatePlanet(c *fiber.Ctx) error {
	var req planet.CreateRequest
	if err := c.BodyParser(&req); err != nil {
		return apierr.Validationf("invalid request body: %v", err)
	}

	detail, err := h.planets.Create(&req)
	if err != nil {
		return err
	}

	return created(c, "Planet created", detail)
}

// FilterPlanets handles POST /planets/filter.
func (h *PlanetsHandler) FilterPlanets(c *fiber.Ctx) error {
	var req planet.FilterRequest
	if err := c.BodyParser(&req); err != nil {
		return apierr.Validationf("invalid request body: %v", err)
	}

	items, total, err := h.planets.Filter(&req)
	if err != nil {
		return err
	}

	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize < 1 {
		pageSize = planet.DefaultPageSize
	}

	return paginated(c, items, total, page, pageSize)
}

// planetID parses the :id path parameter.
func planetID(c *fiber.Ctx) (uint, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return 0, apierr.Validationf("planet id must be a positive integer")
	}
	return uint(id), nil
}
