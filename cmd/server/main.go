package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/stemsync/karaoke/internal/client"
	"github.com/stemsync/karaoke/internal/config"
	"github.com/stemsync/karaoke/internal/metrics"
	"github.com/stemsync/karaoke/internal/middleware"
	"github.com/stemsync/karaoke/internal/platform/logger"
	"github.com/stemsync/karaoke/internal/server"
	"github.com/stemsync/karaoke/internal/service"
	"github.com/stemsync/karaoke/internal/worker"
	ws "github.com/stemsync/karaoke/internal/websocket"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Server.LogLevel, cfg.Server.LogFormat)
	slog.SetDefault(log)

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Test Redis connection
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Warn("redis not available", slog.Any("error", err))
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	// Initialize Asynq client and inspector
	asynqClient := asynq.NewClient(redisOpt)
	defer asynqClient.Close()
	inspector := asynq.NewInspector(redisOpt)
	defer inspector.Close()

	// Initialize external clients
	var store client.MediaStore
	r2Client, err := client.NewR2Client(&cfg.R2)
	if err != nil {
		log.Info("R2 not configured, serving media from disk", slog.String("dir", cfg.Storage.SongsDir))
		local, err := client.NewLocalStorage(cfg.Storage.SongsDir)
		if err != nil {
			log.Error("failed to prepare songs directory", slog.Any("error", err))
			os.Exit(1)
		}
		store = local
	} else {
		store = r2Client
	}

	if err := os.MkdirAll(cfg.Storage.TmpDir, 0o755); err != nil {
		log.Error("failed to prepare tmp directory", slog.Any("error", err))
		os.Exit(1)
	}

	separatorClient := client.NewSeparatorClient(&cfg.Separator)
	if !separatorClient.IsConfigured() {
		log.Warn("separator service not configured, jobs will complete with the sample media set")
	}

	m := metrics.New()

	// Initialize WebSocket hub
	done := make(chan struct{})
	hub := ws.NewHub(log)
	go hub.Run(done)

	// Initialize services
	jobService := service.NewJobService(redisClient, asynqClient, inspector,
		service.WithMaxRetry(cfg.Worker.MaxRetry),
		service.WithMetrics(m),
		service.WithLogger(log),
	)

	services := fiber.Map{"r2": r2Client != nil}
	checks := map[string]server.HealthCheck{}
	if separatorClient.IsConfigured() {
		checks["separator"] = separatorClient.HealthCheck
	} else {
		services["separator"] = false
	}

	app := server.NewApp(server.Deps{
		Config:      cfg,
		Jobs:        jobService,
		Validator:   validator.New(),
		RateLimiter: middleware.NewRateLimiter(redisClient),
		Hub:         hub,
		Metrics:     m,
		Services:    services,
		Checks:      checks,
	})

	// Start Asynq worker server
	w := newSeparationWorker(cfg, jobService, separatorClient, store, hub, log)
	go startWorkerServer(cfg, redisOpt, w, log)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info("shutting down server")
		close(done)
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error("server shutdown error", slog.Any("error", err))
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.Info("server starting", slog.String("addr", addr), slog.String("env", cfg.Server.Env))
	if err := app.Listen(addr); err != nil {
		log.Error("server error", slog.Any("error", err))
		os.Exit(1)
	}
}

func newSeparationWorker(
	cfg *config.Config,
	jobService *service.JobService,
	separatorClient *client.SeparatorClient,
	store client.MediaStore,
	hub *ws.Hub,
	log *slog.Logger,
) *worker.SeparationWorker {
	// A typed nil would hide the missing service from the worker.
	var separator client.StemSeparator
	if separatorClient.IsConfigured() {
		separator = separatorClient
	}
	return worker.NewSeparationWorker(
		jobService,
		client.NewExecTools(&cfg.Tools),
		separator,
		store,
		hub,
		cfg.Storage.TmpDir,
		worker.WithLogger(log),
	)
}

func startWorkerServer(cfg *config.Config, redisOpt asynq.RedisClientOpt, w *worker.SeparationWorker, log *slog.Logger) {
	asynqLogLevel := asynq.InfoLevel
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		asynqLogLevel = asynq.DebugLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "warn") {
		asynqLogLevel = asynq.WarnLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "error") {
		asynqLogLevel = asynq.ErrorLevel
	}

	srv := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Worker.Concurrency,
			Queues: map[string]int{
				service.QueueSeparation: 1,
			},
			LogLevel: asynqLogLevel,
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(service.TaskTypeSeparation, w.ProcessTask)

	if err := srv.Run(mux); err != nil {
		log.Error("asynq worker error", slog.Any("error", err))
	}
}
