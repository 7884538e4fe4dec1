// Package response writes the JSON bodies of the processing API.
package response

import "github.com/gofiber/fiber/v2"

// Code classifies a failed request. Each code is sent with one HTTP status.
type Code string

const (
	CodeValidationError Code = "VALIDATION_ERROR"
	CodeNotFound        Code = "NOT_FOUND"
	CodeRateLimited     Code = "RATE_LIMITED"
	CodeServiceError    Code = "SERVICE_ERROR"
)

var statusOf = map[Code]int{
	CodeValidationError: fiber.StatusBadRequest,
	CodeNotFound:        fiber.StatusNotFound,
	CodeRateLimited:     fiber.StatusTooManyRequests,
	CodeServiceError:    fiber.StatusInternalServerError,
}

// Status is the HTTP status that accompanies code.
func (code Code) Status() int {
	if s, ok := statusOf[code]; ok {
		return s
	}
	return fiber.StatusInternalServerError
}

// CodeFor picks the code for a bare HTTP status, such as one raised by the
// router. Unknown statuses are service errors.
func CodeFor(status int) Code {
	for code, s := range statusOf {
		if s == status {
			return code
		}
	}
	return CodeServiceError
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error Problem `json:"error"`
}

// Problem describes a failure. Details maps request fields to the rule they
// broke.
type Problem struct {
	Code    Code              `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// Fail writes a Problem with the status belonging to code.
func Fail(c *fiber.Ctx, code Code, message string, details map[string]string) error {
	return FailWithStatus(c, code.Status(), code, message, details)
}

// FailWithStatus writes a Problem with an explicit status.
func FailWithStatus(c *fiber.Ctx, status int, code Code, message string, details map[string]string) error {
	return c.Status(status).JSON(ErrorResponse{
		Error: Problem{Code: code, Message: message, Details: details},
	})
}

func ValidationError(c *fiber.Ctx, message string, details map[string]string) error {
	return Fail(c, CodeValidationError, message, details)
}

func NotFound(c *fiber.Ctx, message string) error {
	return Fail(c, CodeNotFound, message, nil)
}

func RateLimited(c *fiber.Ctx) error {
	return Fail(c, CodeRateLimited, "Rate limit exceeded", nil)
}

func ServiceError(c *fiber.Ctx, message string) error {
	return Fail(c, CodeServiceError, message, nil)
}

func OK(c *fiber.Ctx, data any) error {
	return c.JSON(data)
}

func Accepted(c *fiber.Ctx, data any) error {
	return c.Status(fiber.StatusAccepted).JSON(data)
}
