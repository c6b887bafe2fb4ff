package http

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/ogcview/internal/core/domain"
	"github.com/samirrijal/ogcview/internal/core/usecases"
	"github.com/samirrijal/ogcview/internal/pkg/logging"
)

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`    // bad_request, upstream_error, decode_error, ...
	Message   string `json:"message"` // Human-readable message
	RequestID string `json:"request_id,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: reqID,
	})
}

// errBadRequest returns a 400 error.
func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusBadRequest, "bad_request", msg)
}

// errInternal returns a 500 error.
func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusInternalServerError, "internal_error", msg)
}

// errFromLoad maps a catalog or loader error onto an API error.
func errFromLoad(c *fiber.Ctx, err error) error {
	var (
		herr *domain.HTTPError
		derr *domain.DecodeError
		nerr *domain.NetworkError
	)
	switch {
	case errors.Is(err, usecases.ErrInvalidQuery):
		return errBadRequest(c, err.Error())
	case errors.As(err, &herr):
		return newError(c, fiber.StatusBadGateway, "upstream_error", err.Error())
	case errors.As(err, &derr):
		return newError(c, fiber.StatusBadGateway, "decode_error", err.Error())
	case errors.As(err, &nerr):
		return newError(c, fiber.StatusGatewayTimeout, "upstream_unreachable", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return newError(c, fiber.StatusGatewayTimeout, "timeout", "upstream request timed out")
	default:
		logging.FromContext(c.UserContext()).Error("unexpected load error", "error", err)
		return errInternal(c, err.Error())
	}
}
