package jobs

import (
	"context"
	"time"

	river "github.com/riverqueue/river"
	"go.uber.org/zap"

	"sempervigil.dev/sempervigil/internal/cvesync"
	"sempervigil.dev/sempervigil/internal/pkg/logger"
)

// CVESyncArgs is the periodic upstream vulnerability sync job (spec.md §4.D:
// "cve_sync handler (periodic)"). Since is the lookback cutoff; a zero value
// means "use the configured default lookback".
type CVESyncArgs struct {
	Since time.Time `json:"since"`
}

// Kind returns the job kind identifier.
func (CVESyncArgs) Kind() string { return "cve_sync" }

// InsertOpts allows at most one sync pass in flight at a time.
func (CVESyncArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       "fetch",
		MaxAttempts: 3,
		UniqueOpts: river.UniqueOpts{
			ByQueue: true,
			ByState: []river.JobState{river.JobStateAvailable, river.JobStateRunning},
		},
	}
}

// CVESyncWorker drives one cve_sync pass and, on finding any change,
// enqueues events_rebuild (spec.md §4.D: "a periodic cve_sync job refreshes
// CVEs and triggers events_rebuild").
type CVESyncWorker struct {
	river.WorkerDefaults[CVESyncArgs]
	syncer          *cvesync.Syncer
	defaultLookback time.Duration
}

// NewCVESyncWorker builds the worker. defaultLookback is used when the job
// args carry a zero Since.
func NewCVESyncWorker(syncer *cvesync.Syncer, defaultLookback time.Duration) *CVESyncWorker {
	return &CVESyncWorker{syncer: syncer, defaultLookback: defaultLookback}
}

// Work pages through the upstream delta API and, if anything changed,
// enqueues events_rebuild scoped to the same window.
func (w *CVESyncWorker) Work(ctx context.Context, job *river.Job[CVESyncArgs]) error {
	since := job.Args.Since
	if since.IsZero() {
		since = time.Now().UTC().Add(-w.defaultLookback)
	}

	result, err := w.syncer.Run(ctx, since)
	if err != nil {
		return classify(err)
	}

	logger.Info("cve_sync completed",
		zap.Int("processed", result.Processed),
		zap.Int("changed", result.Changed),
		zap.Int("inserted", result.Inserted),
	)

	if result.Changed > 0 || result.Inserted > 0 {
		enqueue(ctx, EventsRebuildArgs{Since: since}, nil)
	}

	return nil
}
