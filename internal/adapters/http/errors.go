package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/routegate/internal/core/domain"
	"github.com/samirrijal/routegate/internal/pkg/logging"
)

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`    // Error code: bad_request, unknown_destination, upstream_timeout, etc.
	Message   string `json:"message"` // Human-readable message
	Details   string `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code, message, details string) error {
	reqID := logging.RequestID(c.UserContext())
	if reqID == "" {
		reqID, _ = c.Locals("requestid").(string)
	}
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		Details:   details,
		RequestID: reqID,
	})
}

// errBadRequest returns a 400 error.
func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusBadRequest, "bad_request", msg, "")
}

// errInternal returns a 500 error.
func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusInternalServerError, "internal_error", msg, "")
}

// errFromDomain maps service errors onto HTTP responses.
func errFromDomain(c *fiber.Ctx, err error) error {
	if e, ok := domain.AsError(err); ok {
		return newError(c, e.HTTPStatus(), string(e.Kind), e.Message, e.Details)
	}
	if errors.Is(err, fiber.ErrRequestTimeout) {
		return newError(c, fiber.StatusGatewayTimeout, string(domain.KindUpstreamTimeout), "Request timed out", "")
	}
	logging.FromContext(c.UserContext()).Error("unhandled error", "error", err)
	return errInternal(c, "internal server error")
}

// ErrorHandler renders errors that escape handlers and middleware as APIError.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code := "error"
		switch fe.Code {
		case fiber.StatusNotFound:
			code = "not_found"
		case fiber.StatusMethodNotAllowed:
			code = "method_not_allowed"
		case fiber.StatusRequestTimeout:
			code = "request_timeout"
		case fiber.StatusBadRequest:
			code = "bad_request"
		}
		return newError(c, fe.Code, code, fe.Message, "")
	}
	return errFromDomain(c, err)
}
