package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaSinkTopic   string
	KafkaGroupID     string
	HTTPAddr         string
	LogLevel         string
	LogFormat        string
	ShutdownTimeout  time.Duration

	BatchSize          int
	BatchFlushInterval time.Duration

	// Gregory estimation configuration.
	ReferenceExperiment string
	ForcedExperiment    string
	WindowStart         int
	WindowYears         int
	ExperimentsFile     string // empty uses the embedded catalog
	EstimateWorkers     int
	WeightCacheSize     int
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	windowStart, err := parseInt("GREGORY_WINDOW_START", 0, 0)
	if err != nil {
		return nil, err
	}
	windowYears, err := parseInt("GREGORY_WINDOW_YEARS", 150, 2)
	if err != nil {
		return nil, err
	}
	workers, err := parseInt("ESTIMATE_WORKERS", 4, 1)
	if err != nil {
		return nil, err
	}
	cacheSize, err := parseInt("WEIGHT_CACHE_SIZE", 64, 1)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "cmip6-run-fields"),
		KafkaSinkTopic:     sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "climate-sensitivity-estimates"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "climate-ecs-etl"),
		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,

		ReferenceExperiment: sharedcfg.EnvOrDefault("REFERENCE_EXPERIMENT", "piControl"),
		ForcedExperiment:    sharedcfg.EnvOrDefault("FORCED_EXPERIMENT", "abrupt-4xCO2"),
		WindowStart:         windowStart,
		WindowYears:         windowYears,
		ExperimentsFile:     os.Getenv("EXPERIMENTS_FILE"),
		EstimateWorkers:     workers,
		WeightCacheSize:     cacheSize,
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaSourceTopic == "" {
		return nil, errors.New("KAFKA_SOURCE_TOPIC is required")
	}
	if cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required")
	}
	if cfg.ReferenceExperiment == cfg.ForcedExperiment {
		return nil, errors.New("REFERENCE_EXPERIMENT and FORCED_EXPERIMENT must differ")
	}

	return cfg, nil
}

// parseInt reads an integer variable, rejecting values below minimum.
func parseInt(key string, def, minimum int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < minimum {
		return 0, fmt.Errorf("invalid %s: must be an integer >= %d", key, minimum)
	}
	return n, nil
}
