package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/i474232898/radar-imagery/internal/api/http"
	"github.com/i474232898/radar-imagery/internal/config"
	"github.com/i474232898/radar-imagery/internal/logging"
	"github.com/i474232898/radar-imagery/internal/metrics"
	"github.com/i474232898/radar-imagery/internal/radar"
	"github.com/i474232898/radar-imagery/internal/radar/nexrad"
	"github.com/i474232898/radar-imagery/internal/scheduler"
	"github.com/i474232898/radar-imagery/internal/store"
	"github.com/i474232898/radar-imagery/internal/sweep"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		logging.New("error").Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logging.New(cfg.LogLevel)

	// Anonymous client for the public NEXRAD archive.
	s3Store, err := nexrad.NewS3Store(context.Background(), cfg.Bucket, cfg.Region, cfg.StoreTimeout)
	if err != nil {
		log.Error("failed to create archive client", "error", err)
		os.Exit(1)
	}
	archive := nexrad.NewArchive(s3Store, log.With("component", "archive"))

	writer := store.NewFileWriter(cfg.OutputDir, log.With("component", "writer"))
	status := store.NewStatusStore()

	pipeline := radar.NewPipeline(radar.PipelineDeps{
		Locator:  archive,
		Fetcher:  archive,
		Renderer: sweep.NewPPIRenderer(cfg.ImageSize),
		Writer:   writer,
		Options:  cfg.Render,
		Logger:   log.With("component", "pipeline"),
	})

	sched := scheduler.New(cfg.Stations, pipeline, writer, status,
		scheduler.WithPolicy(scheduler.FixedDelay{Interval: cfg.CycleInterval}),
		scheduler.WithLogger(log.With("component", "scheduler")),
	)
	if err := sched.Start(); err != nil {
		log.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "radar-imagery",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "radar-imagery",
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	app.Static(httpapi.ImagePrefix, cfg.OutputDir)
	httpapi.RegisterRoutes(app, status, cfg.Stations)

	go func() {
		log.Info("http server listening", "port", cfg.Port, "stations", len(cfg.Stations))
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error("fiber server stopped", "error", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error("error during shutdown", "error", err)
	}
}
