package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline metrics
var (
	// JobsProcessed counts terminal ingest jobs by outcome.
	JobsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ingest",
			Name:      "jobs_processed_total",
			Help:      "Total number of ingest jobs reaching a terminal state",
		},
		[]string{"status"},
	)

	// JobFailures counts failed jobs by error kind.
	JobFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ingest",
			Name:      "job_failures_total",
			Help:      "Total number of failed ingest jobs by error kind",
		},
		[]string{"kind"},
	)

	// StageDuration tracks time spent in each pipeline stage.
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ingest",
			Name:      "stage_duration_seconds",
			Help:      "Time taken by each pipeline stage",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"stage"},
	)

	// JobDuration tracks end-to-end job processing time.
	JobDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "ingest",
			Name:      "job_duration_seconds",
			Help:      "End-to-end ingest job duration",
			Buckets:   []float64{10, 30, 60, 120, 300, 600, 1200},
		},
	)

	// ActiveJobs tracks the number of in-flight ingest jobs.
	ActiveJobs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ingest",
			Name:      "active_jobs",
			Help:      "Number of currently processing ingest jobs",
		},
	)

	// SegmentsProduced counts HLS segments written by the segmenter.
	SegmentsProduced = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ingest",
			Name:      "segments_produced_total",
			Help:      "Total number of HLS segments produced",
		},
	)

	// ArtifactsUploaded counts artifacts pushed to durable storage.
	ArtifactsUploaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ingest",
			Name:      "artifacts_uploaded_total",
			Help:      "Total number of artifacts uploaded to durable storage",
		},
	)

	// CompensatingDeletes counts best-effort rollback deletions.
	CompensatingDeletes = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ingest",
			Name:      "compensating_deletes_total",
			Help:      "Total number of compensating artifact deletions attempted",
		},
	)

	// MalformedMessages counts queue messages that could not be parsed.
	MalformedMessages = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ingest",
			Name:      "malformed_messages_total",
			Help:      "Total number of unparseable ingest queue messages",
		},
	)

	// StagingBytes tracks the size of staged source files.
	StagingBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "ingest",
			Name:      "staging_bytes",
			Help:      "Size of staged raw video files in bytes",
			Buckets:   prometheus.ExponentialBuckets(1<<20, 4, 8),
		},
	)
)

// RecordSuccess records a committed ingest job.
func RecordSuccess() {
	JobsProcessed.WithLabelValues("committed").Inc()
}

// RecordFailure records a failed ingest job with its error kind.
func RecordFailure(kind string) {
	JobsProcessed.WithLabelValues("failed").Inc()
	JobFailures.WithLabelValues(kind).Inc()
}
