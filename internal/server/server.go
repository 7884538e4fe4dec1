package server

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/stemsync/karaoke/internal/config"
	"github.com/stemsync/karaoke/internal/handler"
	"github.com/stemsync/karaoke/internal/metrics"
	"github.com/stemsync/karaoke/internal/middleware"
	"github.com/stemsync/karaoke/internal/service"
	ws "github.com/stemsync/karaoke/internal/websocket"
	"github.com/stemsync/karaoke/pkg/response"
)

// healthTimeout bounds all backend checks of one /health request.
const healthTimeout = 3 * time.Second

// HealthCheck reports whether an optional backend is reachable.
type HealthCheck func(ctx context.Context) error

// Deps are the components the HTTP app is assembled from.
type Deps struct {
	Config      *config.Config
	Jobs        *service.JobService
	Validator   *validator.Validate
	RateLimiter *middleware.RateLimiter
	Hub         *ws.Hub
	Metrics     *metrics.Metrics
	// Services reports optional backends on /health
	Services fiber.Map
	// Checks are probed on every /health request; each reports true when
	// it returns nil.
	Checks map[string]HealthCheck
	// DisableAccessLog silences the request logger, mainly for tests.
	DisableAccessLog bool
}

// NewApp builds the fiber app serving the processing API, finished media
// and job progress websockets.
func NewApp(d Deps) *fiber.App {
	cfg := d.Config

	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    1 * 1024 * 1024,
	})

	// Global middleware
	app.Use(recover.New())
	if !d.DisableAccessLog {
		logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
		if strings.EqualFold(cfg.Server.LogLevel, "debug") {
			logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} ${body}\n"
		}
		app.Use(logger.New(logger.Config{
			Format: logFormat,
		}))
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))
	if d.Metrics != nil {
		app.Use(metrics.RequestMiddleware(d.Metrics))
		app.Get("/metrics", adaptor.HTTPHandler(d.Metrics.Handler()))
	}

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		services := fiber.Map{}
		for name, v := range d.Services {
			services[name] = v
		}

		ctx, cancel := context.WithTimeout(c.UserContext(), healthTimeout)
		defer cancel()
		for name, check := range d.Checks {
			services[name] = check(ctx) == nil
		}

		return c.JSON(fiber.Map{
			"status":   "ok",
			"services": services,
		})
	})

	jobHandler := handler.NewJobHandler(d.Jobs, d.Validator, cfg.Server.PublicURL)

	app.Post("/process", d.RateLimiter.ProcessLimit(cfg.RateLimit.ProcessPerHour), jobHandler.Process)
	app.Get("/status/:jobId", jobHandler.Status)

	// Finished media
	app.Static("/songs", cfg.Storage.SongsDir, fiber.Static{
		ByteRange: true,
	})

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/jobs/:jobId", websocket.New(func(c *websocket.Conn) {
		d.Hub.HandleConnection(c, c.Params("jobId"))
	}))

	return app
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	message := "Internal Server Error"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		status = fe.Code
		message = fe.Message
	}

	return response.FailWithStatus(c, status, response.CodeFor(status), message, nil)
}
