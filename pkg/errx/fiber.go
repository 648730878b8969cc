package errx

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// WriteFiber renders err as the standard JSON error body
func WriteFiber(c *fiber.Ctx, err *Error) error {
	resp := err.ToHTTPResponse()
	if rid, ok := c.Locals("requestid").(string); ok {
		resp.RequestID = rid
	}
	if err.Retryable() {
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(RetryAfterSeconds))
	}
	return c.Status(err.HTTPStatus).JSON(resp)
}

// FiberErrorHandler is the app-wide fiber.Config.ErrorHandler. *Error values
// keep their status; fiber errors keep theirs; anything else is an opaque 500.
func FiberErrorHandler(c *fiber.Ctx, err error) error {
	var e *Error
	if errors.As(err, &e) {
		return WriteFiber(c, e)
	}

	var fe *fiber.Error
	if errors.As(err, &fe) {
		return WriteFiber(c, &Error{
			Code:       "HTTP_" + strconv.Itoa(fe.Code),
			Message:    fe.Message,
			Type:       TypeValidation,
			HTTPStatus: fe.Code,
		})
	}

	return WriteFiber(c, Normalize(err))
}
