package metrics

import "github.com/gofiber/fiber/v2"

// RequestMiddleware returns fiber middleware that records request count and
// error count (status >= 400).
func RequestMiddleware(m *Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()
		m.IncRequests()

		status := c.Response().StatusCode()
		if e, ok := err.(*fiber.Error); ok {
			status = e.Code
		}
		if err != nil && status < 400 {
			status = fiber.StatusInternalServerError
		}
		if status >= 400 {
			m.IncErrors()
		}
		return err
	}
}
