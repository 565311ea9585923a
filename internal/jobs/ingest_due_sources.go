package jobs

import (
	"context"
	"time"

	river "github.com/riverqueue/river"
	"go.uber.org/zap"

	"sempervigil.dev/sempervigil/internal/pkg/logger"
	"sempervigil.dev/sempervigil/internal/repository"
)

// IngestDueSourcesArgs is the periodic scheduler job (spec.md §4.C: "a
// scheduler job periodically enqueues ingest_source"). It carries no
// payload; due sources are resolved at run time by comparing each source's
// interval_minutes with the time of its latest source_health row.
type IngestDueSourcesArgs struct{}

// Kind returns the job kind identifier.
func (IngestDueSourcesArgs) Kind() string { return "ingest_due_sources" }

// InsertOpts allows at most one scheduler tick in flight at a time.
func (IngestDueSourcesArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       "fetch",
		MaxAttempts: 1,
		UniqueOpts: river.UniqueOpts{
			ByQueue: true,
			ByState: []river.JobState{river.JobStateAvailable, river.JobStateRunning, river.JobStateScheduled},
		},
	}
}

// IngestDueSourcesWorker fans the scheduler tick out into one ingest_source
// job per due source.
type IngestDueSourcesWorker struct {
	river.WorkerDefaults[IngestDueSourcesArgs]
	sources *repository.SourceRepository
}

// NewIngestDueSourcesWorker builds the scheduler worker.
func NewIngestDueSourcesWorker(sources *repository.SourceRepository) *IngestDueSourcesWorker {
	return &IngestDueSourcesWorker{sources: sources}
}

// Work lists every source whose next poll is due and enqueues an
// ingest_source job for each.
func (w *IngestDueSourcesWorker) Work(ctx context.Context, _ *river.Job[IngestDueSourcesArgs]) error {
	due, err := w.sources.ListDue(ctx, time.Now().UTC())
	if err != nil {
		return classify(err)
	}

	for _, source := range due {
		enqueue(ctx, IngestSourceArgs{SourceID: source.ID}, nil)
	}

	logger.Info("ingest_due_sources tick completed", zap.Int("due_sources", len(due)))
	return nil
}
