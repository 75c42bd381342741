package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dafibh/fortuna/fortuna-engine/internal/config"
	"github.com/dafibh/fortuna/fortuna-engine/internal/events"
	"github.com/dafibh/fortuna/fortuna-engine/internal/handler"
	"github.com/dafibh/fortuna/fortuna-engine/internal/middleware"
	"github.com/dafibh/fortuna/fortuna-engine/internal/repository/postgres"
	"github.com/dafibh/fortuna/fortuna-engine/internal/repository/storage"
	"github.com/dafibh/fortuna/fortuna-engine/internal/service"
	"github.com/dafibh/fortuna/fortuna-engine/internal/util"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Initialize zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if !cfg.IsProduction() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	} else {
		log.Warn().Str("log_level", cfg.LogLevel).Msg("Unknown log level, using info")
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	// Apply schema migrations
	if cfg.RunMigrations {
		if err := postgres.RunMigrations(cfg.DatabaseURL); err != nil {
			log.Fatal().Err(err).Msg("Failed to run migrations")
		}
		log.Info().Msg("Migrations applied")
	}

	// Connect to database
	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pool.Close()

	// Verify database connection
	if err := pool.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}
	log.Info().Msg("Connected to database")

	// Initialize repositories
	templateRepo := postgres.NewRecurringTemplateRepository(pool)
	transactionRepo := postgres.NewTransactionRepository(pool)
	budgetRepo := postgres.NewBudgetRepository(pool)
	notificationRepo := postgres.NewNotificationRepository(pool)

	// Notification fan-out
	var publisher events.Publisher = events.NoOpPublisher{}
	if cfg.AMQP.Enabled() {
		amqpPublisher, err := events.NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange, cfg.AMQP.Queue, log.Logger)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to AMQP broker")
		}
		defer amqpPublisher.Close()
		publisher = amqpPublisher
		log.Info().Str("exchange", cfg.AMQP.Exchange).Msg("Publishing notification events")
	}

	// Run report archive
	var reports storage.RunReportRepository = storage.NoOpRunReportRepository{}
	if cfg.S3.Enabled() {
		s3Reports, err := storage.NewS3RunReportRepository(context.Background(), cfg.S3)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize run report storage")
		}
		reports = s3Reports
		log.Info().Str("bucket", cfg.S3.Bucket).Msg("Archiving run reports")
	}

	// Validated by config.Load
	defaultLoc, _ := util.LoadLocation(cfg.DefaultTimezone, time.UTC)

	// Initialize services
	claimer := service.NewTemplateClaimer(templateRepo, defaultLoc, log.Logger)
	materializer := service.NewTransactionMaterializer(transactionRepo, log.Logger)
	evaluator := service.NewBudgetAlertEvaluator(budgetRepo, transactionRepo, defaultLoc, log.Logger)
	deduplicator := service.NewNotificationDeduplicator(notificationRepo, publisher, log.Logger)
	processor := service.NewRecurringProcessor(
		claimer,
		materializer,
		evaluator,
		deduplicator,
		notificationRepo,
		publisher,
		reports,
		log.Logger,
		service.RecurringProcessorConfig{Concurrency: cfg.ProcessorConcurrency},
	)

	// Initialize handlers
	processorHandler := handler.NewRecurringProcessorHandler(processor)

	rateLimiter := middleware.NewRateLimiterWithConfig(cfg.TriggerRateLimit, cfg.TriggerBurst)
	defer rateLimiter.Stop()

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Request ID middleware
	e.Use(echomiddleware.RequestID())

	// Security headers middleware (helmet-like)
	e.Use(echomiddleware.SecureWithConfig(echomiddleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            31536000,
		ContentSecurityPolicy: "default-src 'self'",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
	}))

	// Request logging middleware with zerolog
	e.Use(zerologMiddleware())

	// Recovery middleware
	e.Use(echomiddleware.Recover())

	// Health check endpoint
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// Register API routes
	handler.RegisterRoutes(e, cfg.CronSecret, rateLimiter, processorHandler)

	// Start server in goroutine
	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// In-flight runs finish their current claims; anything unclaimed stays due
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// zerologMiddleware returns a middleware that logs requests using zerolog
func zerologMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()

			log.Info().
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Str("remote_ip", c.RealIP()).
				Int("status", res.Status).
				Dur("latency", time.Since(start)).
				Str("request_id", res.Header().Get(echo.HeaderXRequestID)).
				Msg("request")

			return nil
		}
	}
}
