package jobs

import (
	"context"
	"time"

	river "github.com/riverqueue/river"
	"go.uber.org/zap"

	"sempervigil.dev/sempervigil/internal/domain"
	"sempervigil.dev/sempervigil/internal/events"
	"sempervigil.dev/sempervigil/internal/pkg/logger"
)

// EventsPurgeArgs is the periodic weak-evidence cleanup job (spec.md §4.D:
// "an events_purge sub-operation removes events below a weak-evidence
// threshold").
type EventsPurgeArgs struct {
	MaxSeverity domain.Severity `json:"max_severity"`
}

// Kind returns the job kind identifier.
func (EventsPurgeArgs) Kind() string { return "events_purge" }

// InsertOpts allows at most one purge pass per day in flight.
func (EventsPurgeArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       "fetch",
		MaxAttempts: 1,
		UniqueOpts: river.UniqueOpts{
			ByPeriod: 24 * time.Hour,
			ByQueue:  true,
			ByArgs:   true,
		},
	}
}

// EventsPurgeWorker drops weak-evidence auto events (spec.md §4.D, "never
// touching manual events" — enforced by domain.Event.IsPurgeable).
type EventsPurgeWorker struct {
	river.WorkerDefaults[EventsPurgeArgs]
	purger *events.Purger
}

// NewEventsPurgeWorker builds the worker.
func NewEventsPurgeWorker(purger *events.Purger) *EventsPurgeWorker {
	return &EventsPurgeWorker{purger: purger}
}

// Work runs one purge pass.
func (w *EventsPurgeWorker) Work(ctx context.Context, job *river.Job[EventsPurgeArgs]) error {
	maxSeverity := job.Args.MaxSeverity
	if maxSeverity == "" {
		maxSeverity = domain.SeverityHigh
	}
	result, err := w.purger.Run(ctx, maxSeverity)
	if err != nil {
		return classify(err)
	}
	logger.Info("events_purge completed",
		zap.Int("inspected", result.Inspected),
		zap.Int("purged", result.Purged),
	)
	return nil
}
