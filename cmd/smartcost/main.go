package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/smartcost/backend/internal/apierrors"
	"github.com/smartcost/backend/internal/auth"
	"github.com/smartcost/backend/internal/config"
	"github.com/smartcost/backend/internal/container"
	"github.com/smartcost/backend/internal/correlation"
	"github.com/smartcost/backend/internal/handler"
)

var version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := cfg.Logging.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	// Initialize dependency container
	ctr, err := container.New(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize container", "error", err)
		os.Exit(1)
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(correlation.Middleware(correlation.NewGenerator()))
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(apierrors.ErrorHandler(logger))
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", auth.HeaderName, correlation.HeaderName},
		ExposedHeaders:   []string{"Content-Disposition", correlation.HeaderName},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	healthHandler := handler.NewHealthHandler(ctr.DB(), ctr.ProviderRegistry(), version)
	alertHandler := handler.NewAlertHandler(ctr.Engine(), ctr.CostRecordRepository(), cfg.Jobs.AlertLookbackDays, logger)
	thresholdHandler := handler.NewThresholdHandler(ctr.Thresholds(), logger)
	jobHandler := handler.NewJobHandler(ctr.Scheduler())

	// Health check (unauthenticated)
	r.Get("/health", healthHandler.Health)

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.Auth.APIKeyEnabled {
			r.Use(auth.Middleware(auth.NewKeySet(cfg.Auth.APIKeyHashes)))
		} else {
			logger.Warn("API key authentication disabled")
		}

		// Alerts
		r.Get("/alerts", alertHandler.List)
		r.Post("/alerts/evaluate", alertHandler.Evaluate)
		r.Get("/alerts/summary", alertHandler.Summary)
		r.Get("/alerts/export", alertHandler.Export)

		// Thresholds
		r.Get("/thresholds", thresholdHandler.List)
		r.Post("/thresholds", thresholdHandler.Create)
		r.Get("/thresholds/{id}", thresholdHandler.Get)
		r.Put("/thresholds/{id}", thresholdHandler.Update)
		r.Delete("/thresholds/{id}", thresholdHandler.Delete)

		// Jobs
		r.Get("/jobs", jobHandler.List)
		r.Post("/jobs/{name}/run", jobHandler.Run)
	})

	// Start background jobs
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := ctr.Start(ctx); err != nil {
		logger.Error("failed to start background jobs", "error", err)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "error", err)
		}

		if err := ctr.Stop(shutdownCtx); err != nil {
			logger.Error("container shutdown error", "error", err)
		}
	}()

	logger.Info("SmartCost API server starting", "addr", addr, "version", version)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	<-stopped
	logger.Info("server stopped")
}
