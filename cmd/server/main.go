package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/scrapegate/scrapegate/internal"
	"github.com/scrapegate/scrapegate/internal/clock"
	"github.com/scrapegate/scrapegate/internal/domain"
	"github.com/scrapegate/scrapegate/internal/handler"
	"github.com/scrapegate/scrapegate/internal/metrics"
	"github.com/scrapegate/scrapegate/internal/middleware"
	"github.com/scrapegate/scrapegate/internal/places"
	"github.com/scrapegate/scrapegate/internal/places/mock"
	"github.com/scrapegate/scrapegate/internal/places/overpass"
	"github.com/scrapegate/scrapegate/internal/repository"
	"github.com/scrapegate/scrapegate/internal/service"
	"github.com/scrapegate/scrapegate/internal/storage"
	"github.com/scrapegate/scrapegate/internal/worker"
)

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize database connection
	db, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	// Run migrations
	if err := internal.RunMigrations(db); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database ready")

	// Initialize repository and shared domain state
	repo := repository.New(db)
	catalog := domain.DefaultPlanCatalog()
	clk := clock.System{}

	// Initialize services
	userService := service.NewUserService(repo, catalog, service.UserServiceConfig{
		JWTSecret: cfg.JWTSecret,
		TokenTTL:  cfg.TokenTTL,
	}, logger)
	guardService := service.NewGuardService(userService, service.NewSQLLedger(repo), catalog, clk, logger)
	usageService := service.NewUsageService(repo, catalog, clk, logger)

	// Places provider
	var provider places.Provider
	switch cfg.PlacesProvider {
	case "overpass":
		provider = overpass.New(overpass.Config{
			NominatimURL: cfg.NominatimURL,
			OverpassURL:  cfg.OverpassURL,
			Timeout:      cfg.PlacesTimeout,
		}, logger)
	default:
		provider = mock.New()
		logger.Info("using mock places provider")
	}

	// Snapshot archive
	var snapshotService service.SnapshotService
	if cfg.SnapshotsEnabled {
		var store storage.Storage
		switch cfg.StorageProvider {
		case storage.ProviderR2:
			store, err = storage.NewR2Storage(storage.R2Config{
				AccountID:       cfg.R2AccountID,
				AccessKeyID:     cfg.R2AccessKeyID,
				SecretAccessKey: cfg.R2SecretAccessKey,
				BucketName:      cfg.R2BucketName,
			}, logger)
		default:
			store, err = storage.NewLocalStorage(storage.LocalConfig{
				BasePath: cfg.LocalStoragePath,
			}, logger)
		}
		if err != nil {
			return fmt.Errorf("storage initialization failed: %w", err)
		}
		snapshotService = service.NewSnapshotService(store, clk, logger)
	}

	// Initialize middleware
	authMw := middleware.NewAuthMiddleware(userService, logger)
	loggingMw := middleware.NewRequestLoggingMiddleware(logger)
	securityMw := middleware.NewSecurityHeadersMiddleware(cfg.Env != "development")
	metricsAuthMw := middleware.NewMetricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword)
	authLimiter := middleware.NewAuthRateLimiter(logger)

	requireUser := middleware.Stack(authMw.WithUser, authMw.RequireUser)

	// Initialize handlers
	authHandler := handler.NewAuthHandler(userService, logger)
	apiHandler := handler.NewAPIHandler(guardService, provider, snapshotService, logger)
	usageHandler := handler.NewUsageHandler(usageService, logger)

	// Create router and register routes
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	mux.Handle("GET /metrics", metricsAuthMw.Handler(promhttp.Handler()))

	authHandler.RegisterRoutes(mux, handler.AuthRouteMiddleware{
		RequireUser:   requireUser,
		LimitLogin:    authLimiter.LimitLogin,
		LimitRegister: authLimiter.LimitRegister,
	})
	apiHandler.RegisterRoutes(mux)
	usageHandler.RegisterRoutes(mux, requireUser)

	// Outer middleware applied to every route
	root := middleware.Stack(
		securityMw.Handler,
		loggingMw.Handler,
		metrics.Middleware,
	)(mux)

	// Start maintenance worker
	if cfg.WorkerEnabled {
		maint, err := worker.New(repo, clk, worker.Config{
			Interval:        cfg.WorkerInterval,
			RunTimeout:      cfg.WorkerRunTimeout,
			ShutdownTimeout: 30 * time.Second,
			DailyRetention:  cfg.WorkerDailyRetention,
		}, logger)
		if err != nil {
			return fmt.Errorf("worker initialization failed: %w", err)
		}
		maint.Start(ctx)
		defer maint.Stop()
	}

	// Start server
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: root,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
		}
	}()

	<-sigChan
	logger.Info("Shutdown signal received, initiating graceful shutdown...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	logger.Info("Graceful shutdown complete")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
