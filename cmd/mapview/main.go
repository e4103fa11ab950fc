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

	httpadapter "github.com/couchcryptid/submission-map/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/submission-map/internal/adapter/kafka"
	"github.com/couchcryptid/submission-map/internal/adapter/s3store"
	"github.com/couchcryptid/submission-map/internal/adapter/static"
	wsadapter "github.com/couchcryptid/submission-map/internal/adapter/websocket"
	"github.com/couchcryptid/submission-map/internal/catalog"
	"github.com/couchcryptid/submission-map/internal/config"
	"github.com/couchcryptid/submission-map/internal/interaction"
	"github.com/couchcryptid/submission-map/internal/markers"
	"github.com/couchcryptid/submission-map/internal/observability"
	"github.com/couchcryptid/submission-map/internal/pipeline"
	"github.com/couchcryptid/submission-map/internal/surface"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		logger.Error("failed to load catalog", "path", cfg.CatalogPath, "error", err)
		os.Exit(1)
	}
	defaultDataset := cfg.DefaultDataset
	if defaultDataset == "" {
		defaultDataset = cat.Default
	}
	logger.Info("catalog loaded", "path", cfg.CatalogPath, "datasets", len(cat.Datasets), "default", defaultDataset)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fetcher, err := newFetcher(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to create dataset fetcher", "source", cfg.DatasetSource, "error", err)
		os.Exit(1)
	}

	mapSurface := surface.NewHeadless()
	hub := wsadapter.NewHub(logger, metrics)
	mapSurface.Observe(hub.Broadcast)

	// Layer event sink (feature-flagged via KAFKA_BROKERS).
	var sink pipeline.EventSink
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaLayerTopic, logger)
		sink = writer
		logger.Info("layer events enabled", "topic", cfg.KafkaLayerTopic, "brokers", cfg.KafkaBrokers)
	} else {
		logger.Info("layer events disabled")
	}

	coord := pipeline.New(pipeline.Dependencies{
		Catalog:     cat,
		Fetcher:     fetcher,
		Transformer: pipeline.NewTransformer(logger),
		Layers:      markers.NewManager(),
		Surface:     mapSurface,
		Sink:        sink,
		OnTransition: func(s pipeline.Status) {
			logger.Debug("dataset switch state", "state", s.State.String(), "dataset", s.Dataset)
		},
	}, logger, metrics, cfg.DatasetFetchTimeout)

	lock := interaction.NewLockController(logger, metrics)
	overlay := interaction.NewOverlayListener(lock, mapSurface)

	srv := httpadapter.NewServer(cfg.HTTPAddr, httpadapter.Options{
		Ready:          coord,
		Selector:       coord,
		Datasets:       cat,
		DefaultDataset: defaultDataset,
		Overlay:        overlay,
		Stream:         hub.Handler(mapSurface),
		SelectTimeout:  cfg.DatasetFetchTimeout,
	}, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Load the default dataset. A failure leaves the map empty but the
	// service keeps serving so another dataset can be selected.
	go func() {
		if err := coord.Start(ctx, defaultDataset); err != nil {
			logger.Error("default dataset failed to load", "dataset", defaultDataset, "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	hub.Close()
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

func newFetcher(ctx context.Context, cfg *config.Config, logger *slog.Logger) (pipeline.Fetcher, error) {
	switch cfg.DatasetSource {
	case config.SourceHTTP:
		return static.NewHTTPFetcher(cfg.DatasetBaseURL, cfg.DatasetFetchTimeout, logger)
	case config.SourceDir:
		return static.NewDirFetcher(cfg.DatasetDir, logger), nil
	case config.SourceS3:
		return s3store.NewFetcher(ctx, cfg.AWSRegion, cfg.DatasetS3Bucket, cfg.DatasetS3Prefix, logger)
	default:
		return nil, fmt.Errorf("unsupported dataset source %q", cfg.DatasetSource)
	}
}
