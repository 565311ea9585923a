package jobs

import (
	"context"
	"time"

	river "github.com/riverqueue/river"
	"go.uber.org/zap"

	"sempervigil.dev/sempervigil/internal/pkg/logger"
	"sempervigil.dev/sempervigil/internal/publish"
)

// BuildSiteArgs triggers one static-site-builder invocation. It carries no
// payload: the builder always rebuilds the full site from the current
// content directory.
type BuildSiteArgs struct{}

// Kind returns the job kind identifier.
func (BuildSiteArgs) Kind() string { return "build_site" }

// InsertOpts implements the debounce/coalesce rule from spec.md §4.E: "if a
// build_site job is already queued or running, do not enqueue another".
// River's unique-job dedupe on (queue, state) gives this for free, and the
// caller adds the run_after delay when inserting.
func (BuildSiteArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       "fetch",
		MaxAttempts: 3,
		UniqueOpts: river.UniqueOpts{
			ByQueue: true,
			ByState: []river.JobState{river.JobStateAvailable, river.JobStateRunning, river.JobStateScheduled},
		},
	}
}

// BuildSiteWorker invokes the external static site builder (spec.md §4.E
// build_site handler).
type BuildSiteWorker struct {
	river.WorkerDefaults[BuildSiteArgs]
	builder *publish.SiteBuilder
}

// NewBuildSiteWorker builds the worker.
func NewBuildSiteWorker(builder *publish.SiteBuilder) *BuildSiteWorker {
	return &BuildSiteWorker{builder: builder}
}

// Work runs the site builder and fails the job on a non-zero exit (the
// error message carries the clipped stdout/stderr tails) or on a missing
// index.html.
func (w *BuildSiteWorker) Work(ctx context.Context, _ *river.Job[BuildSiteArgs]) error {
	result, err := w.builder.Run(ctx)
	if err != nil {
		return classify(err)
	}
	logger.Info("build_site completed", zap.Duration("duration", result.Duration))
	return nil
}

// BuildSiteDebouncer is the narrow interface write_article_markdown (and
// any other content writer) uses to request a rebuild without knowing
// about River insert options directly.
type BuildSiteDebouncer interface {
	RequestBuild(ctx context.Context)
}

// buildSiteDebouncer enqueues BuildSiteArgs with a short run_after delay so
// multiple writers in the same window coalesce into a single build (spec.md
// §4.E "Debouncing").
type buildSiteDebouncer struct {
	delay time.Duration
}

// NewBuildSiteDebouncer builds a BuildSiteDebouncer with the configured
// debounce delay (RuntimeConfig.BuildSiteDebounceSeconds).
func NewBuildSiteDebouncer(delay time.Duration) BuildSiteDebouncer {
	if delay <= 0 {
		delay = 20 * time.Second
	}
	return &buildSiteDebouncer{delay: delay}
}

// RequestBuild enqueues a debounced build_site job. A failure to enqueue is
// logged, not propagated: the caller's own write already succeeded and a
// missed rebuild trigger self-heals on the next content write.
func (d *buildSiteDebouncer) RequestBuild(ctx context.Context) {
	enqueue(ctx, BuildSiteArgs{}, &river.InsertOpts{
		ScheduledAt: time.Now().Add(d.delay),
	})
}
