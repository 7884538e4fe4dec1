package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/stemsync/karaoke/internal/model"
	"github.com/stemsync/karaoke/internal/service"
	"github.com/stemsync/karaoke/pkg/response"
)

type JobHandler struct {
	service   *service.JobService
	validator *validator.Validate
	publicURL string
}

// NewJobHandler creates the job handler. publicURL overrides the request
// host when building media URLs; leave empty to use the request's base URL.
func NewJobHandler(svc *service.JobService, v *validator.Validate, publicURL string) *JobHandler {
	return &JobHandler{
		service:   svc,
		validator: v,
		publicURL: publicURL,
	}
}

// Process handles POST /process
func (h *JobHandler) Process(c *fiber.Ctx) error {
	var req model.ProcessRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	baseURL := h.publicURL
	if baseURL == "" {
		baseURL = c.BaseURL()
	}

	result, err := h.service.StartSeparation(c.UserContext(), &req, baseURL)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.Accepted(c, result)
}

// Status handles GET /status/:jobId
func (h *JobHandler) Status(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := h.service.GetStatus(c.UserContext(), jobID)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			return response.NotFound(c, "Job not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}

func formatValidationErrors(err error) map[string]string {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		errs := make(map[string]string)
		for _, e := range validationErrors {
			errs[e.Field()] = e.Tag()
		}
		return errs
	}
	return nil
}
