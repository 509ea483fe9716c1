// Package validation rejects malformed requests before they reach the
// handlers: wrong content types, oversized batches and nonsensical filter
// ranges.
package validation

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/exo-discovery/backend/pkg/logger"
)

type Config struct {
	MaxBatchSize        int
	MaxPageSize         int
	AllowedContentTypes []string
}

func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxBatchSize == 0 {
		cfg.MaxBatchSize = 100
	}
	if cfg.MaxPageSize == 0 {
		cfg.MaxPageSize = 500
	}
	if len(cfg.AllowedContentTypes) == 0 {
		cfg.AllowedContentTypes = []string{"application/json", "multipart/form-data"}
	}

	return func(c *fiber.Ctx) error {
		if c.Method() == fiber.MethodPost || c.Method() == fiber.MethodPut {
			contentType := c.Get(fiber.HeaderContentType)
			if contentType != "" && !contentTypeAllowed(contentType, cfg.AllowedContentTypes) {
				return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
					"success": false,
					"message": "Unsupported content type",
				})
			}
		}

		path := c.Path()

		if strings.HasSuffix(path, "/predict/batch") {
			var req struct {
				PlanetIDs []uint `json:"planet_ids"`
			}
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"success": false,
					"message": "Invalid JSON format",
				})
			}
			if len(req.PlanetIDs) > cfg.MaxBatchSize {
				logger.Warn("Oversized batch request rejected",
					zap.String("ip", c.IP()),
					zap.Int("requested", len(req.PlanetIDs)),
				)
				return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
					"success": false,
					"message": "Batch size exceeds maximum",
				})
			}
		}

		if strings.HasSuffix(path, "/planets/filter") {
			var req struct {
				PageSize int `json:"page_size"`
			}
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"success": false,
					"message": "Invalid JSON format",
				})
			}
			if req.PageSize > cfg.MaxPageSize {
				return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
					"success": false,
					"message": "page_size exceeds maximum",
				})
			}
		}

		return c.Next()
	}
}

func contentTypeAllowed(contentType string, allowed []string) bool {
	for _, allowedType := range allowed {
		if strings.Contains(contentType, allowedType) {
			return true
		}
	}
	return false
}
