package handlers

import "github.com/gofiber/fiber/v2"

// APIResponse is the success envelope shared by every endpoint.
type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data"`
}

// PaginatedResponse wraps list payloads with paging metadata.
type PaginatedResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message,omitempty"`
	Data       any    `json:"data"`
	Total      int64  `json:"total"`
	Page       int    `json:"page"`
	PageSize   int    `json:"page_size"`
	TotalPages int    `json:"total_pages"`
}

func ok(c *fiber.Ctx, data any) error {
	return c.JSON(APIResponse{Success: true, Data: data})
}

func okMessage(c *fiber.Ctx, message string, data any) error {
	return c.JSON(APIResponse{Success: true, Message: message, Data: data})
}

func created(c *fiber.Ctx, message string, data any) error {
	return c.Status(fiber.StatusCreated).JSON(APIResponse{Success: true, Message: message, Data: data})
}

func paginated(c *fiber.Ctx, data any, total int64, page, pageSize int) error {
	totalPages := 0
	if pageSize > 0 {
		totalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return c.JSON(PaginatedResponse{
		Success:    true,
		Data:       data,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	})
}
