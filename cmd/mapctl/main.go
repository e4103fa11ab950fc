package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/submission-map/internal/adapter/mapbox"
	"github.com/couchcryptid/submission-map/internal/cli"
	"github.com/couchcryptid/submission-map/internal/config"
	"github.com/couchcryptid/submission-map/internal/observability"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewStderrLogger(cfg.LogLevel)

	deps := cli.Dependencies{Logger: logger, Version: version}
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, nil, logger)
		deps.Geocoder = mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, nil)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := cli.Execute(ctx, os.Args[1:], deps, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
