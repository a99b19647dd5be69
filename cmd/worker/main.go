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

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"

	"github.com/streamvault/ingest/internal/config"
	"github.com/streamvault/ingest/internal/health"
	"github.com/streamvault/ingest/internal/logger"
	"github.com/streamvault/ingest/internal/observability"
	"github.com/streamvault/ingest/internal/pipeline"
	"github.com/streamvault/ingest/internal/probe"
	"github.com/streamvault/ingest/internal/segmenter"
	"github.com/streamvault/ingest/internal/storage"
	"github.com/streamvault/ingest/internal/uploader"
	"github.com/streamvault/ingest/internal/worker"
)

const (
	AWSConfigTimeout = 10 * time.Second
	ShutdownTimeout  = 5 * time.Second
)

func main() {
	log := logger.New()
	slog.SetDefault(log)

	if err := godotenv.Load(); err != nil {
		logger.Info(context.Background(), log, "No .env file found, relying on system ENV variables")
	}

	cfg, err := config.LoadWorker()
	if err != nil {
		logger.Error(context.Background(), log, "Invalid configuration", "error", err)
		os.Exit(1)
	}

	shutdownTracer, err := observability.InitTracer(context.Background(), "ingest-worker", cfg.Observability.OTLPEndpoint, cfg.Environment)
	if err != nil {
		logger.Error(context.Background(), log, "Failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			logger.Error(context.Background(), log, "Failed to shutdown tracer", "error", err)
		}
	}()

	awsCtx, cancelAWS := context.WithTimeout(context.Background(), AWSConfigTimeout)
	awsCfg, err := awsconfig.LoadDefaultConfig(awsCtx, awsconfig.WithRegion(cfg.AWS.Region))
	cancelAWS()
	if err != nil {
		logger.Error(context.Background(), log, "Failed to load AWS config", "error", err)
		os.Exit(1)
	}
	otelaws.AppendMiddlewares(&awsCfg.APIOptions)

	s3Client := s3.NewFromConfig(awsCfg)
	sqsClient := sqs.NewFromConfig(awsCfg)
	dynamoClient := dynamodb.NewFromConfig(awsCfg)

	repo, err := storage.NewAssetRepository(dynamoClient, cfg.AWS.DynamoDBTable)
	if err != nil {
		logger.Error(context.Background(), log, "Failed to initialize asset repository", "error", err)
		os.Exit(1)
	}

	store := storage.NewS3Store(s3Client, cfg.AWS.MediaBucket, cfg.AWS.CDNDomain)

	coordinator := pipeline.New(
		probe.New(cfg.Pipeline.ProbeTimeout, log),
		segmenter.New(&segmenter.Config{
			SegmentSeconds: cfg.Pipeline.SegmentSeconds,
			Timeout:        cfg.Pipeline.TranscodeTimeout,
			Logger:         log,
		}),
		uploader.New(store, cfg.Pipeline.UploadConcurrency, log),
		store,
		repo,
		pipeline.Config{WorkRoot: cfg.Pipeline.WorkRoot},
		log,
	)

	stager := worker.NewStager(s3Client, cfg.AWS.RawBucket, cfg.Pipeline.WorkRoot, log)
	w := worker.New(sqsClient, stager, coordinator, cfg, log)

	checker := health.NewChecker(&health.Config{
		ServiceName:    "ingest-worker",
		S3Client:       s3Client,
		SQSClient:      sqsClient,
		DynamoDBClient: dynamoClient,
		SQSQueueURL:    cfg.AWS.SQSQueueURL,
		MediaBucket:    cfg.AWS.MediaBucket,
		DynamoDBTable:  cfg.AWS.DynamoDBTable,
		FFmpegBin:      "ffmpeg",
		FFprobeBin:     "ffprobe",
		WorkRoot:       cfg.Pipeline.WorkRoot,
		Logger:         log,
		CacheTTL:       health.DefaultCacheTTL,
		CheckTimeout:   health.DefaultCheckTimeout,
		DeepCheckLimit: health.DefaultDeepCheckLimit,
	})

	metricsServer := startMetricsServer(cfg.Worker.MetricsPort, checker, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-quit
		logger.Info(context.Background(), log, "Shutting down worker...")
		cancel()
	}()

	w.Run(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error(context.Background(), log, "Failed to shutdown metrics server", "error", err)
	}
}

func startMetricsServer(port int, checker *health.Checker, log *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", checker.Handler())
	mux.HandleFunc("/health/deep", checker.DeepHandler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info(context.Background(), log, "Starting metrics server", "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(context.Background(), log, "Metrics server error", "error", err)
		}
	}()

	return srv
}
