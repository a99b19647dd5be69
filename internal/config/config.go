package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Environment   string
	AWS           AWSConfig
	Pipeline      PipelineConfig
	Worker        WorkerConfig
	Observability ObservabilityConfig
}

// AWSConfig holds AWS-specific configuration.
type AWSConfig struct {
	Region        string
	RawBucket     string
	MediaBucket   string
	SQSQueueURL   string
	DynamoDBTable string
	CDNDomain     string
}

// PipelineConfig holds tunables for a single ingest job.
type PipelineConfig struct {
	SegmentSeconds    int
	ProbeTimeout      time.Duration
	TranscodeTimeout  time.Duration
	UploadConcurrency int
	WorkRoot          string
}

// WorkerConfig holds queue-consumer configuration.
type WorkerConfig struct {
	MaxConcurrentJobs int
	MetricsPort       int
}

// ObservabilityConfig holds observability configuration.
type ObservabilityConfig struct {
	OTLPEndpoint string
}

// Default values
const (
	DefaultRegion            = "us-west-2"
	DefaultSegmentSeconds    = 10
	DefaultProbeTimeout      = 30 * time.Second
	DefaultTranscodeTimeout  = 15 * time.Minute
	DefaultUploadConcurrency = 6
	DefaultWorkRoot          = "/tmp/ingest"
	DefaultMaxConcurrentJobs = 1
	DefaultMetricsPort       = 2112
	DefaultOTLPEndpoint      = "localhost:4317"
)

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("ENV", "dev"),
		AWS: AWSConfig{
			Region:        getEnv("AWS_REGION", DefaultRegion),
			RawBucket:     os.Getenv("RAW_BUCKET"),
			MediaBucket:   os.Getenv("MEDIA_BUCKET"),
			SQSQueueURL:   os.Getenv("SQS_QUEUE_URL"),
			DynamoDBTable: os.Getenv("DYNAMODB_TABLE"),
			CDNDomain:     os.Getenv("CDN_DOMAIN"),
		},
		Pipeline: PipelineConfig{
			SegmentSeconds:    getEnvInt("SEGMENT_SECONDS", DefaultSegmentSeconds),
			ProbeTimeout:      getEnvSeconds("PROBE_TIMEOUT_SECONDS", DefaultProbeTimeout),
			TranscodeTimeout:  getEnvSeconds("TRANSCODE_TIMEOUT_SECONDS", DefaultTranscodeTimeout),
			UploadConcurrency: getEnvInt("UPLOAD_CONCURRENCY", DefaultUploadConcurrency),
			WorkRoot:          getEnv("WORK_ROOT", DefaultWorkRoot),
		},
		Worker: WorkerConfig{
			MaxConcurrentJobs: getEnvInt("MAX_CONCURRENT_JOBS", DefaultMaxConcurrentJobs),
			MetricsPort:       getEnvInt("METRICS_PORT", DefaultMetricsPort),
		},
		Observability: ObservabilityConfig{
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", DefaultOTLPEndpoint),
		},
	}

	return cfg, nil
}

// LoadWorker loads and validates configuration for the worker service.
func LoadWorker() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	if err := cfg.ValidateWorker(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ValidateWorker validates configuration required for the worker service.
func (c *Config) ValidateWorker() error {
	var errs []string

	if c.AWS.RawBucket == "" {
		errs = append(errs, "RAW_BUCKET is required")
	}
	if c.AWS.MediaBucket == "" {
		errs = append(errs, "MEDIA_BUCKET is required")
	}
	if c.AWS.SQSQueueURL == "" {
		errs = append(errs, "SQS_QUEUE_URL is required")
	}
	if c.AWS.DynamoDBTable == "" {
		errs = append(errs, "DYNAMODB_TABLE is required")
	}
	if c.AWS.CDNDomain == "" {
		errs = append(errs, "CDN_DOMAIN is required")
	}
	if c.Pipeline.SegmentSeconds <= 0 {
		errs = append(errs, "SEGMENT_SECONDS must be positive")
	}
	if c.Pipeline.UploadConcurrency <= 0 {
		errs = append(errs, "UPLOAD_CONCURRENCY must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Environment)
	return env == "prod" || env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil && intVal > 0 {
			return intVal
		}
	}
	return defaultValue
}

func getEnvSeconds(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil && intVal > 0 {
			return time.Duration(intVal) * time.Second
		}
	}
	return defaultValue
}
