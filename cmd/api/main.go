package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dafibh/condo/condo-backend/internal/config"
	"github.com/dafibh/condo/condo-backend/internal/domain"
	"github.com/dafibh/condo/condo-backend/internal/handler"
	"github.com/dafibh/condo/condo-backend/internal/middleware"
	"github.com/dafibh/condo/condo-backend/internal/notification"
	"github.com/dafibh/condo/condo-backend/internal/report"
	"github.com/dafibh/condo/condo-backend/internal/repository/cache"
	"github.com/dafibh/condo/condo-backend/internal/repository/postgres"
	"github.com/dafibh/condo/condo-backend/internal/repository/storage"
	"github.com/dafibh/condo/condo-backend/internal/service"
	"github.com/dafibh/condo/condo-backend/internal/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Initialize zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("ENV") != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pool.Close()

	if err := pool.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}
	log.Info().Msg("Connected to database")

	if err := postgres.Migrate(pool); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply migrations")
	}

	// Initialize repositories
	txManager := postgres.NewTxManager(pool)
	tenantRepo := postgres.NewTenantRepository(pool)
	unitRoster := postgres.NewUnitRoster(pool)
	fundAccountRepo := postgres.NewFundAccountRepository(pool)
	movementRepo := postgres.NewMovementRepository(pool)
	feeRepo := postgres.NewFeeRepository(pool)
	expenseRepo := postgres.NewExpenseRepository(pool)
	closingRepo := postgres.NewClosingRepository(pool)

	// Blob storage is optional: without it receipts are disabled and closings stay DRAFT
	var blobs domain.BlobStore
	var linker handler.ArtifactLinker
	if cfg.S3.AccessKeyID != "" || cfg.S3.Endpoint != "" {
		s3Store, err := storage.NewS3BlobStore(context.Background(), cfg.S3)
		if err != nil {
			log.Warn().Err(err).Msg("Blob storage unavailable, receipts and report artifacts disabled")
		} else {
			blobs = s3Store
			linker = s3Store
			log.Info().Str("bucket", cfg.S3.Bucket).Msg("Blob storage initialized")
		}
	} else {
		log.Info().Msg("Blob storage not configured")
	}

	var pdf service.PDFConverter
	if cfg.Reports.Format == "pdf" {
		renderer := report.NewPDFRenderer(cfg.Reports.ChromeRemoteURL, 0, log.Logger)
		defer renderer.Close()
		pdf = renderer
	}

	// Trigger guard: Redis when shared across replicas, otherwise per process
	var guard domain.TriggerGuard
	if cfg.Redis.Addr != "" {
		redisGuard, err := cache.NewRedisTriggerGuard(context.Background(), cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable, using in-process trigger guard")
			guard = cache.NewMemoryTriggerGuard()
		} else {
			defer redisGuard.Close()
			guard = redisGuard
		}
	} else {
		guard = cache.NewMemoryTriggerGuard()
	}

	var notifier domain.Notifier
	if cfg.SMTP.Enabled() {
		notifier = notification.NewSMTPNotifier(cfg.SMTP, log.Logger)
	} else {
		notifier = notification.NewLogNotifier(log.Logger)
	}

	// Initialize services
	fundService := service.NewFundService(txManager, fundAccountRepo, movementRepo)
	feeService := service.NewFeeService(txManager, feeRepo, unitRoster, fundService)
	expenseService := service.NewExpenseService(txManager, expenseRepo, fundService, blobs)
	packager := service.NewReportPackager(tenantRepo, feeRepo, expenseRepo, blobs, pdf, log.Logger, service.ReportPackagerConfig{
		ReceiptFetchTimeout:   cfg.Reports.ReceiptFetchTimeout,
		ReceiptBundleDeadline: cfg.Reports.ReceiptBundleDeadline,
	})
	closingService := service.NewClosingService(txManager, closingRepo, feeRepo, expenseRepo, packager)

	// WebSocket hub for realtime ledger updates
	hub := websocket.NewHub()
	fundService.SetEventPublisher(hub)
	feeService.SetEventPublisher(hub)
	expenseService.SetEventPublisher(hub)
	closingService.SetEventPublisher(hub)

	wsValidator, err := websocket.NewAuth0JWTValidator(cfg.Auth0Domain, cfg.Auth0Audience, tenantRepo)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create WebSocket JWT validator")
	}

	authMiddleware, err := middleware.NewAuthMiddleware(cfg.Auth0Domain, cfg.Auth0Audience, tenantRepo)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create auth middleware")
	}

	budgets := middleware.DefaultBudgets(cfg.RateLimitPerMinute)
	budgets[middleware.ClassBatch] = middleware.Budget{PerMinute: cfg.BatchLimitPerMinute, Burst: 2}
	rateLimiter := middleware.NewRateLimiterWithBudgets(budgets)
	defer rateLimiter.Stop()

	closingWorker := service.NewClosingWorker(feeService, closingService, tenantRepo, guard, notifier, log.Logger, service.ClosingWorkerConfig{
		Interval: cfg.ClosingInterval,
	})
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	closingWorker.Start(workerCtx)

	handlers := handler.Handlers{
		Fund:      handler.NewFundHandler(fundService),
		Fee:       handler.NewFeeHandler(feeService),
		Expense:   handler.NewExpenseHandler(expenseService),
		Closing:   handler.NewClosingHandler(closingService, linker),
		WebSocket: handler.NewWebSocketHandler(hub, wsValidator, cfg.CORSOrigins),
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewRequestValidator()

	e.Use(echomiddleware.RequestID())

	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		ExposeHeaders:    []string{"X-RateLimit-Class", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Security headers middleware (helmet-like)
	e.Use(echomiddleware.SecureWithConfig(echomiddleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            31536000,
		ContentSecurityPolicy: "default-src 'self'",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
	}))

	e.Use(zerologMiddleware())
	e.Use(echomiddleware.Recover())

	e.GET("/health", func(c echo.Context) error {
		if err := pool.Ping(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "degraded", "database": "unreachable"})
		}
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":        "ok",
			"closingWorker": closingWorker.IsRunning(),
			"wsClients":     hub.TotalClientCount(),
		})
	})

	handler.RegisterRoutes(e, authMiddleware, rateLimiter, handlers)

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

	closingWorker.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
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

			event := log.Info()
			if res.Status >= http.StatusInternalServerError {
				event = log.Error()
			}
			event.
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Int("status", res.Status).
				Dur("latency", time.Since(start)).
				Str("request_id", res.Header().Get(echo.HeaderXRequestID)).
				Int32("tenant_id", middleware.GetTenantID(c)).
				Msg("request")

			return nil
		}
	}
}
