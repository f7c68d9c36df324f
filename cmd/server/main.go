package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/station-quality-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/station-quality-service/internal/adapter/kafka"
	"github.com/couchcryptid/station-quality-service/internal/config"
	"github.com/couchcryptid/station-quality-service/internal/observability"
	"github.com/couchcryptid/station-quality-service/internal/pipeline"
	"github.com/joho/godotenv"
)

func main() {
	// A .env file is optional; real deployments set the environment directly.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to read .env file", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	opts := []pipeline.Option{pipeline.WithWorkers(cfg.Workers)}

	// Report publishing is feature-flagged via KAFKA_ENABLED / KAFKA_BROKERS.
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		opts = append(opts, pipeline.WithSink(writer))
		logger.Info("report publishing enabled", "topic", cfg.KafkaReportTopic, "brokers", cfg.KafkaBrokers)
	} else {
		logger.Info("report publishing disabled")
	}

	analyzer := pipeline.NewAnalyzer(cfg.Analysis, logger, metrics, opts...)
	svc := pipeline.NewCachedService(analyzer, cfg.CacheSize, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, analyzer, svc, httpadapter.Options{
		MaxUploadBytes: cfg.Analysis.MaxFileSizeBytes,
		RequestTimeout: cfg.RequestTimeout,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	logger.Info("analysis service started",
		"workers", cfg.Workers,
		"cache_size", cfg.CacheSize,
		"max_file_size_bytes", cfg.Analysis.MaxFileSizeBytes,
		"rules_file", cfg.RulesFile,
	)

	<-ctx.Done()
	logger.Info("shutting down")
	analyzer.Drain()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
