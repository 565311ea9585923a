package jobs

import (
	"context"
	"time"

	river "github.com/riverqueue/river"
	"go.uber.org/zap"

	"sempervigil.dev/sempervigil/internal/events"
	"sempervigil.dev/sempervigil/internal/pkg/logger"
)

// EventsRebuildArgs carries the clustering cutoff. A zero Since re-scans
// every CVE that was ever modified.
type EventsRebuildArgs struct {
	Since time.Time `json:"since"`
}

// Kind returns the job kind identifier.
func (EventsRebuildArgs) Kind() string { return "events_rebuild" }

// InsertOpts enforces the spec's "idempotency_key = events_rebuild so at
// most one runs at a time" guard (spec.md §5) via River's unique-job
// mechanism rather than a hand-rolled claim row.
func (EventsRebuildArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       "fetch",
		MaxAttempts: 3,
		UniqueOpts: river.UniqueOpts{
			ByQueue: true,
			ByState: []river.JobState{river.JobStateAvailable, river.JobStateRunning},
		},
	}
}

// EventsRebuildWorker drives one deterministic clustering pass (spec.md
// §4.D events_rebuild handler).
type EventsRebuildWorker struct {
	river.WorkerDefaults[EventsRebuildArgs]
	rebuilder *events.Rebuilder
}

// NewEventsRebuildWorker builds the worker.
func NewEventsRebuildWorker(rebuilder *events.Rebuilder) *EventsRebuildWorker {
	return &EventsRebuildWorker{rebuilder: rebuilder}
}

// Work runs the rebuild pass.
func (w *EventsRebuildWorker) Work(ctx context.Context, job *river.Job[EventsRebuildArgs]) error {
	result, err := w.rebuilder.Run(ctx, job.Args.Since)
	if err != nil {
		return classify(err)
	}
	logger.Info("events_rebuild completed",
		zap.Int("cves_processed", result.CVEsProcessed),
		zap.Int("events_created", result.EventsCreated),
		zap.Int("events_updated", result.EventsUpdated),
	)
	return nil
}
