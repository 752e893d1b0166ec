package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	httpadapter "github.com/couchcryptid/climate-ecs-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/climate-ecs-etl/internal/adapter/kafka"
	"github.com/couchcryptid/climate-ecs-etl/internal/adapter/weights"
	"github.com/couchcryptid/climate-ecs-etl/internal/config"
	"github.com/couchcryptid/climate-ecs-etl/internal/domain"
	"github.com/couchcryptid/climate-ecs-etl/internal/observability"
	"github.com/couchcryptid/climate-ecs-etl/internal/pipeline"
)

func main() {
	// A local .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	experiments, err := domain.ReadExperimentsFile(cfg.ExperimentsFile)
	if err != nil {
		logger.Error("failed to load experiments", "error", err, "path", cfg.ExperimentsFile)
		os.Exit(1)
	}
	forced := domain.ExperimentID(cfg.ForcedExperiment)
	doublings, err := experiments.Doublings(forced)
	if err != nil {
		logger.Error("invalid forced experiment", "error", err)
		os.Exit(1)
	}

	cache := weights.NewCache(domain.LatitudeWeights, cfg.WeightCacheSize, metrics)
	transformer := pipeline.NewTransformer(cache.Weights, logger)
	reader := kafkaadapter.NewReader(cfg, logger)
	writer := kafkaadapter.NewWriter(cfg, logger)

	p := pipeline.New(reader, transformer, writer, logger, metrics, pipeline.Config{
		BatchSize: cfg.BatchSize,
		Gregory: domain.GregoryConfig{
			Reference:   domain.ExperimentID(cfg.ReferenceExperiment),
			Forced:      forced,
			WindowStart: cfg.WindowStart,
			WindowYears: cfg.WindowYears,
			Doublings:   doublings,
		},
		Workers: cfg.EstimateWorkers,
	})

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, p, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start ETL pipeline.
	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}

	logger.Info("shutdown complete")
}
