package worker

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/streamvault/ingest/internal/config"
	"github.com/streamvault/ingest/pkg/models"
)

const validBody = `{
	"requestId": "req-1",
	"videoKey": "uploads/raw.mp4",
	"thumbnailKey": "uploads/thumb.jpg",
	"title": "clip",
	"description": "a clip",
	"ownerId": "user-1"
}`

type fakeStager struct {
	err   error
	calls int
}

func (f *fakeStager) Stage(ctx context.Context, msg *models.IngestMessage) (models.IngestRequest, error) {
	f.calls++
	if f.err != nil {
		return models.IngestRequest{}, f.err
	}
	return models.IngestRequest{
		SourcePath:    "/tmp/raw.mp4",
		ThumbnailPath: "/tmp/thumb.jpg",
		Title:         msg.Title,
		Description:   msg.Description,
		OwnerID:       msg.OwnerID,
	}, nil
}

type fakeRunner struct {
	err   error
	calls int
}

func (f *fakeRunner) Run(ctx context.Context, req models.IngestRequest) (*models.VideoAsset, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &models.VideoAsset{AssetID: "asset-1", Title: req.Title}, nil
}

func newTestWorker(stager *fakeStager, runner *fakeRunner) *Worker {
	cfg := &config.Config{}
	cfg.AWS.SQSQueueURL = "https://sqs.test/queue"
	cfg.Worker.MaxConcurrentJobs = 1
	return &Worker{
		stager: stager,
		runner: runner,
		cfg:    cfg,
		log:    slog.Default(),
	}
}

func TestParseMessage(t *testing.T) {
	tests := []struct {
		name string
		body *string
		ok   bool
	}{
		{"valid", aws.String(validBody), true},
		{"nil body", nil, false},
		{"not json", aws.String("not-json"), false},
		{"missing request id", aws.String(`{"videoKey":"k","thumbnailKey":"t","title":"x","ownerId":"u"}`), false},
		{"missing video key", aws.String(`{"requestId":"r","thumbnailKey":"t","title":"x","ownerId":"u"}`), false},
		{"missing thumbnail key", aws.String(`{"requestId":"r","videoKey":"k","title":"x","ownerId":"u"}`), false},
		{"missing title", aws.String(`{"requestId":"r","videoKey":"k","thumbnailKey":"t","ownerId":"u"}`), false},
		{"missing owner", aws.String(`{"requestId":"r","videoKey":"k","thumbnailKey":"t","title":"x"}`), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := parseMessage(tt.body)
			if tt.ok {
				if err != nil {
					t.Fatalf("parseMessage() error = %v", err)
				}
				if msg.RequestID != "req-1" || msg.VideoKey != "uploads/raw.mp4" {
					t.Errorf("parseMessage() = %+v", msg)
				}
				return
			}
			if !errors.Is(err, models.ErrMessageParse) {
				t.Errorf("parseMessage() error = %v, want ErrMessageParse", err)
			}
		})
	}
}

func TestHandleMessageSuccess(t *testing.T) {
	stager := &fakeStager{}
	runner := &fakeRunner{}
	w := newTestWorker(stager, runner)

	terminal, err := w.handleMessage(context.Background(), types.Message{Body: aws.String(validBody)})
	if err != nil {
		t.Fatalf("handleMessage() error = %v", err)
	}
	if !terminal {
		t.Error("successful handling must be terminal")
	}
	if stager.calls != 1 || runner.calls != 1 {
		t.Errorf("stager calls = %d, runner calls = %d", stager.calls, runner.calls)
	}
}

func TestHandleMessageMalformed(t *testing.T) {
	stager := &fakeStager{}
	runner := &fakeRunner{}
	w := newTestWorker(stager, runner)

	terminal, err := w.handleMessage(context.Background(), types.Message{Body: aws.String("{")})
	if err == nil {
		t.Fatal("handleMessage() expected error")
	}
	if !terminal {
		t.Error("malformed messages are consumed, not redelivered")
	}
	if stager.calls != 0 || runner.calls != 0 {
		t.Error("malformed message reached the pipeline")
	}
}

func TestHandleMessageStagingFailureRedelivers(t *testing.T) {
	stager := &fakeStager{err: models.ErrStagingFailed}
	runner := &fakeRunner{}
	w := newTestWorker(stager, runner)

	terminal, err := w.handleMessage(context.Background(), types.Message{Body: aws.String(validBody)})
	if !errors.Is(err, models.ErrStagingFailed) {
		t.Fatalf("handleMessage() error = %v", err)
	}
	if terminal {
		t.Error("staging failures are transient and must not consume the message")
	}
	if runner.calls != 0 {
		t.Error("runner invoked without staged files")
	}
}

func TestHandleMessagePipelineFailureIsTerminal(t *testing.T) {
	stager := &fakeStager{}
	runner := &fakeRunner{err: models.WrapKind(models.KindSegment, models.ErrTranscodeFailed)}
	w := newTestWorker(stager, runner)

	terminal, err := w.handleMessage(context.Background(), types.Message{Body: aws.String(validBody)})
	if err == nil {
		t.Fatal("handleMessage() expected error")
	}
	if !terminal {
		t.Error("a job that reached Failed received its final handling")
	}
}
