package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Dataset sources.
const (
	SourceHTTP = "http"
	SourceDir  = "dir"
	SourceS3   = "s3"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Dataset catalog and content source.
	CatalogPath         string
	DefaultDataset      string
	DatasetSource       string
	DatasetBaseURL      string
	DatasetDir          string
	DatasetS3Bucket     string
	DatasetS3Prefix     string
	AWSRegion           string
	DatasetFetchTimeout time.Duration

	// Layer event sink, enabled when brokers are configured.
	KafkaBrokers    []string
	KafkaLayerTopic string
	KafkaEnabled    bool

	// Mapbox geocoding configuration.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	fetchTimeout, err := parsePositiveDuration("DATASET_FETCH_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}

	mapboxTimeout, err := parsePositiveDuration("MAPBOX_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}

	mapboxToken := os.Getenv("MAPBOX_TOKEN")
	mapboxEnabled := mapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		mapboxEnabled = v == "true"
	}

	var brokers []string
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		CatalogPath:         sharedcfg.EnvOrDefault("CATALOG_PATH", "datasets.yaml"),
		DefaultDataset:      os.Getenv("DEFAULT_DATASET"),
		DatasetSource:       sharedcfg.EnvOrDefault("DATASET_SOURCE", SourceHTTP),
		DatasetBaseURL:      sharedcfg.EnvOrDefault("DATASET_BASE_URL", "http://localhost:8000/"),
		DatasetDir:          sharedcfg.EnvOrDefault("DATASET_DIR", "."),
		DatasetS3Bucket:     os.Getenv("DATASET_S3_BUCKET"),
		DatasetS3Prefix:     os.Getenv("DATASET_S3_PREFIX"),
		AWSRegion:           sharedcfg.EnvOrDefault("AWS_REGION", "us-east-1"),
		DatasetFetchTimeout: fetchTimeout,

		KafkaBrokers:    brokers,
		KafkaLayerTopic: sharedcfg.EnvOrDefault("KAFKA_LAYER_TOPIC", "map-layer-events"),
		KafkaEnabled:    len(brokers) > 0,

		MapboxToken:     mapboxToken,
		MapboxEnabled:   mapboxEnabled,
		MapboxTimeout:   mapboxTimeout,
		MapboxCacheSize: parseMapboxCacheSize(),
	}

	switch cfg.DatasetSource {
	case SourceHTTP:
		if cfg.DatasetBaseURL == "" {
			return nil, errors.New("DATASET_BASE_URL is required for DATASET_SOURCE=http")
		}
	case SourceDir:
	case SourceS3:
		if cfg.DatasetS3Bucket == "" {
			return nil, errors.New("DATASET_S3_BUCKET is required for DATASET_SOURCE=s3")
		}
	default:
		return nil, fmt.Errorf("invalid DATASET_SOURCE %q (want http, dir or s3)", cfg.DatasetSource)
	}
	if cfg.KafkaEnabled && cfg.KafkaLayerTopic == "" {
		return nil, errors.New("KAFKA_LAYER_TOPIC is required when KAFKA_BROKERS is set")
	}
	if cfg.MapboxEnabled && cfg.MapboxToken == "" {
		return nil, errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}

	return cfg, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseMapboxCacheSize() int {
	if s := os.Getenv("MAPBOX_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}
