package server

import (
	"errors"
	"strconv"

	"inkwell/internal/models"
	"inkwell/internal/observability"

	"github.com/gofiber/fiber/v2"
)

// codeUnauthorized is used only at the HTTP edge; the service never sees
// unauthenticated credentials.
const codeUnauthorized = "UNAUTHORIZED"

// errorResponse is the JSON body of every failed request.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Field string `json:"field,omitempty"`
}

// statusFor maps a typed error to its HTTP status.
func statusFor(appErr *models.AppError) int {
	switch appErr.Code {
	case models.CodeValidation:
		return fiber.StatusBadRequest
	case models.CodeRateLimited:
		if appErr.Err != nil {
			return fiber.StatusServiceUnavailable
		}
		return fiber.StatusTooManyRequests
	case models.CodeNotFound:
		return fiber.StatusNotFound
	case models.CodeForbidden:
		return fiber.StatusForbidden
	case models.CodeConflict:
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

func respondWithError(c *fiber.Ctx, err error) error {
	var appErr *models.AppError
	if !errors.As(err, &appErr) {
		appErr = models.NewInternalError(err)
	}

	status := statusFor(appErr)
	if status >= fiber.StatusInternalServerError {
		observability.Logger.ErrorContext(c.UserContext(), "request error", "code", appErr.Code, "error", err)
	}

	body := errorResponse{Error: appErr.Message, Code: appErr.Code, Field: appErr.Field}
	// Internal details stay in the logs.
	if status == fiber.StatusInternalServerError {
		body.Error = "Internal server error"
	}
	return c.Status(status).JSON(body)
}

func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(errorResponse{Error: fe.Message, Code: strconv.Itoa(fe.Code)})
	}
	return respondWithError(c, err)
}
