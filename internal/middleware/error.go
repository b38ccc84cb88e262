package middleware

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"activity-hub/internal/domain"
)

type SuccessResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorHandler renders every error in the response envelope. Anything
// that is not an AppError or a fiber.Error is reported as INTERNAL with a
// generic message; the detail only goes to the log.
func NewErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		traceID := uuid.New().String()[:8]

		var appErr *domain.AppError
		if errors.As(err, &appErr) && appErr.Kind != domain.KindInternal {
			return c.Status(appErr.Kind.HTTPStatus()).JSON(ErrorResponse{
				Error:   appErr.Message,
				Code:    appErr.ResponseCode(),
				TraceID: traceID,
			})
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) && fiberErr.Code < fiber.StatusInternalServerError {
			return c.Status(fiberErr.Code).JSON(ErrorResponse{
				Error:   fiberErr.Message,
				Code:    codeForStatus(fiberErr.Code),
				TraceID: traceID,
			})
		}

		logger.Error("request failed",
			"trace_id", traceID,
			"method", c.Method(),
			"path", c.Path(),
			"user_id", GetCurrentUserID(c),
			"error", err,
		)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "Internal server error",
			Code:    string(domain.KindInternal),
			TraceID: traceID,
		})
	}
}

func codeForStatus(status int) string {
	switch status {
	case fiber.StatusBadRequest, fiber.StatusUnprocessableEntity, fiber.StatusRequestEntityTooLarge:
		return string(domain.KindBadRequest)
	case fiber.StatusUnauthorized:
		return string(domain.KindUnauthorized)
	case fiber.StatusForbidden:
		return string(domain.KindForbidden)
	case fiber.StatusNotFound, fiber.StatusMethodNotAllowed:
		return string(domain.KindNotFound)
	case fiber.StatusConflict:
		return string(domain.KindConflict)
	case fiber.StatusTooManyRequests:
		return string(domain.KindRateLimited)
	default:
		return string(domain.KindBadRequest)
	}
}

// OK writes data in the success envelope.
func OK(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusOK).JSON(SuccessResponse{Success: true, Data: data})
}

func Created(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusCreated).JSON(SuccessResponse{Success: true, Data: data})
}
