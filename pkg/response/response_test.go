package response

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func TestErrorEnvelope(t *testing.T) {
	app := fiber.New()
	app.Get("/missing", func(c *fiber.Ctx) error {
		return NotFound(c, "Job not found")
	})
	app.Get("/invalid", func(c *fiber.Ctx) error {
		return ValidationError(c, "Validation failed", map[string]string{"url": "required"})
	})

	tests := []struct {
		path    string
		status  int
		code    Code
		details bool
	}{
		{"/missing", fiber.StatusNotFound, CodeNotFound, false},
		{"/invalid", fiber.StatusBadRequest, CodeValidationError, true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest("GET", tt.path, nil))
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}

			body, _ := io.ReadAll(resp.Body)
			var got ErrorResponse
			if err := json.Unmarshal(body, &got); err != nil {
				t.Fatalf("invalid JSON %q: %v", body, err)
			}
			if got.Error.Code != tt.code {
				t.Errorf("code = %q, want %q", got.Error.Code, tt.code)
			}
			if (got.Error.Details != nil) != tt.details {
				t.Errorf("details = %v, want present=%v", got.Error.Details, tt.details)
			}
		})
	}
}

func TestCodeStatus(t *testing.T) {
	tests := []struct {
		code   Code
		status int
	}{
		{CodeValidationError, fiber.StatusBadRequest},
		{CodeNotFound, fiber.StatusNotFound},
		{CodeRateLimited, fiber.StatusTooManyRequests},
		{CodeServiceError, fiber.StatusInternalServerError},
		{Code("UNKNOWN"), fiber.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := tt.code.Status(); got != tt.status {
			t.Errorf("%s.Status() = %d, want %d", tt.code, got, tt.status)
		}
	}

	if got := CodeFor(fiber.StatusNotFound); got != CodeNotFound {
		t.Errorf("CodeFor(404) = %s", got)
	}
	if got := CodeFor(fiber.StatusMethodNotAllowed); got != CodeServiceError {
		t.Errorf("CodeFor(405) = %s", got)
	}
}
