package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/streamvault/ingest/internal/config"
	"github.com/streamvault/ingest/internal/metrics"
	"github.com/streamvault/ingest/pkg/models"
)

// SQS polling constants
const (
	SQSMaxMessages       = 1
	SQSWaitTimeSeconds   = 20
	SQSVisibilityTimeout = 900 // covers the transcode timeout
	RetryBackoffPeriod   = 5 * time.Second
)

var tracer = otel.Tracer("ingest-worker")

// JobRunner executes one staged ingest request to a terminal state.
type JobRunner interface {
	Run(ctx context.Context, req models.IngestRequest) (*models.VideoAsset, error)
}

// RequestStager turns a queue message into a locally staged ingest request.
type RequestStager interface {
	Stage(ctx context.Context, msg *models.IngestMessage) (models.IngestRequest, error)
}

// Worker consumes ingest messages from SQS and drives them through the
// pipeline with bounded concurrency.
type Worker struct {
	sqsClient *sqs.Client
	stager    RequestStager
	runner    JobRunner
	cfg       *config.Config
	log       *slog.Logger
}

// New creates a Worker.
func New(sqsClient *sqs.Client, stager RequestStager, runner JobRunner, cfg *config.Config, log *slog.Logger) *Worker {
	return &Worker{
		sqsClient: sqsClient,
		stager:    stager,
		runner:    runner,
		cfg:       cfg,
		log:       log,
	}
}

// Run starts the polling loop and blocks until the context is cancelled,
// then waits for in-flight jobs to finish.
func (w *Worker) Run(ctx context.Context) {
	w.log.InfoContext(ctx, "Starting queue polling",
		"queueURL", w.cfg.AWS.SQSQueueURL,
		"maxConcurrent", w.cfg.Worker.MaxConcurrentJobs,
	)

	sem := make(chan struct{}, w.cfg.Worker.MaxConcurrentJobs)
	var wg sync.WaitGroup

messageLoop:
	for {
		select {
		case <-ctx.Done():
			break messageLoop
		default:
		}

		result, err := w.sqsClient.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(w.cfg.AWS.SQSQueueURL),
			MaxNumberOfMessages: SQSMaxMessages,
			WaitTimeSeconds:     SQSWaitTimeSeconds,
			VisibilityTimeout:   SQSVisibilityTimeout,
		})
		if err != nil {
			if ctx.Err() != nil {
				continue // shutting down
			}
			w.log.ErrorContext(ctx, "Failed to receive messages", "error", err)
			time.Sleep(RetryBackoffPeriod)
			continue
		}

		for _, msg := range result.Messages {
			select {
			case sem <- struct{}{}:
				wg.Add(1)
				go func(msg types.Message) {
					defer wg.Done()
					defer func() { <-sem }()

					terminal, err := w.handleMessage(ctx, msg)
					if err != nil {
						w.log.ErrorContext(ctx, "Message handling failed",
							"error", err,
							"terminal", terminal,
							"messageId", safeStringDeref(msg.MessageId),
						)
					}
					// Deleting only on terminal handling lets transient
					// staging failures redeliver after the visibility
					// timeout.
					if terminal {
						w.deleteMessage(ctx, msg)
					}
				}(msg)
			case <-ctx.Done():
				w.log.InfoContext(ctx, "Context cancelled, stopping message processing")
				break messageLoop
			}
		}
	}

	w.log.InfoContext(ctx, "Waiting for in-progress jobs to complete...")
	wg.Wait()
	w.log.InfoContext(ctx, "All jobs completed, shutting down")
}

// handleMessage parses, stages and runs one message. The terminal flag
// reports whether the message received its final handling and must not be
// redelivered.
func (w *Worker) handleMessage(ctx context.Context, msg types.Message) (terminal bool, err error) {
	ctx, span := tracer.Start(ctx, "handle-message")
	defer span.End()

	ingest, err := parseMessage(msg.Body)
	if err != nil {
		// A malformed message never becomes parseable; retrying is noise.
		metrics.MalformedMessages.Inc()
		return true, err
	}

	span.SetAttributes(
		attribute.String("ingest.request_id", ingest.RequestID),
		attribute.String("ingest.video_key", ingest.VideoKey),
		attribute.String("ingest.owner_id", ingest.OwnerID),
	)

	req, err := w.stager.Stage(ctx, ingest)
	if err != nil {
		return false, err
	}

	asset, err := w.runner.Run(ctx, req)
	if err != nil {
		// The job reached the Failed state; the pipeline already recorded
		// and cleaned up. The message is consumed.
		return true, err
	}

	w.log.InfoContext(ctx, "Ingest request committed",
		"requestId", ingest.RequestID,
		"assetId", asset.AssetID,
	)
	return true, nil
}

func parseMessage(body *string) (*models.IngestMessage, error) {
	if body == nil {
		return nil, fmt.Errorf("%w: empty message body", models.ErrMessageParse)
	}

	var msg models.IngestMessage
	if err := json.Unmarshal([]byte(*body), &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrMessageParse, err)
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (w *Worker) deleteMessage(ctx context.Context, msg types.Message) {
	// Deletion must outlive a shutdown that cancelled the polling context.
	_, err := w.sqsClient.DeleteMessage(context.WithoutCancel(ctx), &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(w.cfg.AWS.SQSQueueURL),
		ReceiptHandle: msg.ReceiptHandle,
	})
	if err != nil {
		w.log.ErrorContext(ctx, "Failed to delete message",
			"error", err,
			"messageId", safeStringDeref(msg.MessageId),
		)
	}
}

func safeStringDeref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
