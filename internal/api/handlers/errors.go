package handlers

import (
	"errors"
	"strconv"

	"evade-competitive/internal/apperr"
	"evade-competitive/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// statusFor maps service errors onto HTTP status codes
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, apperr.ErrPartialFailure):
		return fiber.StatusInternalServerError, "Partial failure"
	case errors.Is(err, apperr.ErrAuth):
		return fiber.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, apperr.ErrForbidden):
		return fiber.StatusForbidden, "Forbidden"
	case errors.Is(err, apperr.ErrNotFound):
		return fiber.StatusNotFound, "Not found"
	case errors.Is(err, apperr.ErrConfirmation):
		return fiber.StatusBadRequest, "Confirmation required"
	case errors.Is(err, apperr.ErrValidation):
		return fiber.StatusBadRequest, "Validation failed"
	default:
		return fiber.StatusInternalServerError, "Request failed"
	}
}

func fail(c *fiber.Ctx, err error) error {
	status, title := statusFor(err)
	return c.Status(status).JSON(models.ErrorResponse{
		Error:   title,
		Message: err.Error(),
	})
}

// bind parses the JSON body into req and validates it. A non-nil error has already been written.
func bind(c *fiber.Ctx, v *validator.Validate, req interface{}) (bool, error) {
	if err := c.BodyParser(req); err != nil {
		return false, c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error:   "Invalid request body",
			Message: err.Error(),
		})
	}

	if err := v.Struct(req); err != nil {
		var validationErrors validator.ValidationErrors
		message := err.Error()
		if errors.As(err, &validationErrors) {
			message = validationErrors.Error()
		}
		return false, c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error:   "Validation failed",
			Message: message,
		})
	}
	return true, nil
}

// pagination reads offset and limit, clamping limit to 100
func pagination(c *fiber.Ctx) (int, int) {
	offset, err := strconv.Atoi(c.Query("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	limit, err := strconv.Atoi(c.Query("limit", "50"))
	if err != nil || limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100 // Max limit to prevent abuse
	}
	return offset, limit
}
