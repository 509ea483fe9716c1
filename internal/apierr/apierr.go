// Package apierr maps domain errors onto HTTP statuses and the JSON error
// envelope shared by every endpoint.
package apierr

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/exo-discovery/backend/internal/ml"
	"github.com/exo-discovery/backend/internal/storage"
	"github.com/exo-discovery/backend/pkg/logger"
)

// ErrValidation marks request payloads that fail validation (422).
var ErrValidation = errors.New("validation error")

// Validationf builds a wrapped validation error.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// ErrorDetail is one entry in the error envelope.
type ErrorDetail struct {
	Field     string `json:"field,omitempty"`
	Message   string `json:"message"`
	ErrorType string `json:"error_type,omitempty"`
}

// ErrorResponse is the JSON body returned for every failed request.
type ErrorResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Errors  []ErrorDetail `json:"errors,omitempty"`
}

// statusFor classifies an error into an HTTP status and a machine-readable
// error type.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return fiber.StatusNotFound, "NotFoundError"
	case errors.Is(err, storage.ErrDuplicate):
		return fiber.StatusConflict, "AlreadyExistsError"
	case errors.Is(err, ErrValidation), errors.Is(err, ml.ErrInvalidOutput):
		return fiber.StatusUnprocessableEntity, "ValidationError"
	case errors.Is(err, ml.ErrModelUnavailable):
		return fiber.StatusServiceUnavailable, "ModelUnavailableError"
	default:
		return fiber.StatusInternalServerError, "InternalServerError"
	}
}

// Handler is the fiber app-level error handler producing the shared
// error envelope.
func Handler(c *fiber.Ctx, err error) error {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(ErrorResponse{
			Message: fiberErr.Message,
			Errors:  []ErrorDetail{{Message: fiberErr.Message, ErrorType: "HTTPError"}},
		})
	}

	status, errorType := statusFor(err)

	message := err.Error()
	if status == fiber.StatusInternalServerError {
		logger.Error("Unhandled request error",
			zap.String("path", c.Path()),
			zap.String("method", c.Method()),
			zap.Error(err),
		)
		message = "An unexpected error occurred"
	} else {
		logger.Warn("Request failed",
			zap.String("path", c.Path()),
			zap.String("method", c.Method()),
			zap.Int("status", status),
			zap.Error(err),
		)
	}

	return c.Status(status).JSON(ErrorResponse{
		Message: message,
		Errors:  []ErrorDetail{{Message: message, ErrorType: errorType}},
	})
}
