package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"pocketwise/internal/backend"
	"pocketwise/internal/cache"
	"pocketwise/internal/cli"
	apphttp "pocketwise/internal/http"
	"pocketwise/internal/lifecycle"
	applog "pocketwise/internal/log"
	"pocketwise/internal/services"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		applog.New(applog.DefaultConfig()).Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	logger, err := cli.SetupLogger(cfg, applog.ComponentApp)
	if err != nil {
		applog.New(applog.DefaultConfig()).Error("Failed to configure logging", "error", err)
		os.Exit(1)
	}

	ctx, stop := cli.SignalContext()
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.ErrorContext(ctx, "Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	be, err := backend.NewFactory(logger.Logger.With(applog.FieldComponent, applog.ComponentBackend)).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to create backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := be.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", "error", err)
		}
	}()

	views := cache.NewLRUCache[services.Trend](cfg.CacheSize, cfg.CacheTTL)
	sweeper := cache.NewManager(views)
	sweeper.Start(ctx, cfg.CacheSweepInterval)

	svc := apphttp.Services{
		Transactions:  services.NewTransactionService(be.Store, views),
		Analytics:     services.NewAnalyticsService(be.Store, views, be.Exporter),
		Subscriptions: services.NewSubscriptionService(be.Store, be.Notifier, views, lifecycle.Options{WarnWithin: cfg.WarnWithinDays}),
		Budget:        services.NewBudgetService(be.Store, be.Notifier),
	}
	srv, err := apphttp.NewServer(":"+cfg.Port, svc, apphttp.Options{
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Ready:              be.Store.Ping,
	})
	if err != nil {
		logger.ErrorContext(ctx, "Failed to build HTTP server", "error", err)
		os.Exit(1)
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.InfoContext(ctx, "Starting pocketwise server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"alerts", cfg.AMQPURL != "",
			"export", be.Exporter != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			logger.Error("Server error", "error", err, "port", cfg.Port)
		}
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}
	sweeper.Wait()

	m := srv.RequestMetrics()
	hits, misses := views.Stats()
	logger.Info("Server stopped gracefully",
		"requests", m.TotalRequests,
		"cache_hits", hits,
		"cache_misses", misses)
}
