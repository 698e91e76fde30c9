package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/stockmarks/internal/config"
	"github.com/kailas-cloud/stockmarks/internal/db"
	dbRedis "github.com/kailas-cloud/stockmarks/internal/db/redis"
	logpkg "github.com/kailas-cloud/stockmarks/internal/logger"
	"github.com/kailas-cloud/stockmarks/internal/metrics"
	analysisrepo "github.com/kailas-cloud/stockmarks/internal/repository/analysis"
	chiTransport "github.com/kailas-cloud/stockmarks/internal/transport/chi"
	analysisuc "github.com/kailas-cloud/stockmarks/internal/usecase/analysis"
	exportuc "github.com/kailas-cloud/stockmarks/internal/usecase/export"
	healthuc "github.com/kailas-cloud/stockmarks/internal/usecase/health"
	usageuc "github.com/kailas-cloud/stockmarks/internal/usecase/usage"
	"github.com/kailas-cloud/stockmarks/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	env := envName()

	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting stockmarks API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	// Redis and Valkey speak the same protocol; both go through rueidis.
	var store db.Store
	switch cfg.Database.Driver {
	case "redis", "valkey":
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Database.Addrs,
			Password: cfg.Database.Password,
		})
	default:
		return fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
	if err != nil {
		return fmt.Errorf("create database store: %w", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		return fmt.Errorf("database not ready: %w", err)
	}
	logger.Info("Connected to database")

	metrics.RegisterDomainMetrics()

	agg, err := buildAggregator(cfg, store, logger)
	if err != nil {
		return fmt.Errorf("create search client: %w", err)
	}
	chain := buildClassifier(ctx, cfg, store, logger)
	logger.Info("Classifier created",
		zap.String("model", chain.provider.Model()),
		zap.Bool("budget", chain.budget != nil),
	)

	repo := analysisrepo.New(store, cfg.Storage.KeyPrefix, logger)
	analysisSvc := analysisuc.New(agg, chain.classifier, repo, logger).
		WithTimeout(time.Duration(cfg.Analysis.TimeoutSec) * time.Second).
		WithLocale(cfg.Analysis.Tag())
	exportSvc := exportuc.New(analysisSvc, cfg.Bookmarks.LinkBaseURL, cfg.Bookmarks.FileName)

	var budgetReader usageuc.BudgetReader
	if chain.budget != nil {
		budgetReader = chain.budget
	}
	usageSvc := usageuc.New(budgetReader, chain.provider.Model())
	healthSvc := healthuc.New(store, chain.provider)

	server := chiTransport.NewServer(analysisSvc, exportSvc, usageSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		ReadTimeout:       time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-quit:
		logger.Info("Received shutdown signal")
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during HTTP shutdown", zap.Error(err))
	}
	// Background analyses get whatever is left of the shutdown window.
	if err := analysisSvc.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Analyses interrupted", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
	return nil
}
