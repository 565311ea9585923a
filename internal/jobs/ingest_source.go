package jobs

import (
	"context"

	river "github.com/riverqueue/river"
	"go.uber.org/zap"

	"sempervigil.dev/sempervigil/internal/ingest"
	"sempervigil.dev/sempervigil/internal/pkg/logger"
	apperrors "sempervigil.dev/sempervigil/internal/pkg/errors"
	"sempervigil.dev/sempervigil/internal/repository"
)

// IngestSourceArgs carries only the source ID (claim-check pattern); every
// other field the job needs is looked up fresh from the database.
type IngestSourceArgs struct {
	SourceID string `json:"source_id"`
}

// Kind returns the job kind identifier.
func (IngestSourceArgs) Kind() string { return "ingest_source" }

// InsertOpts caps in-flight duplicates for the same source.
func (IngestSourceArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       "fetch",
		MaxAttempts: 5,
		UniqueOpts: river.UniqueOpts{
			ByArgs:  true,
			ByQueue: true,
			ByState: []river.JobState{river.JobStateAvailable, river.JobStateRunning, river.JobStateScheduled},
		},
	}
}

// IngestSourceWorker runs one ingest_source pass (spec.md §4.C steps 1-9)
// and enqueues downstream fetch_article_content jobs for every newly
// accepted article.
type IngestSourceWorker struct {
	river.WorkerDefaults[IngestSourceArgs]
	sources  *repository.SourceRepository
	pipeline *ingest.Pipeline
}

// NewIngestSourceWorker builds the worker over the shared pipeline.
func NewIngestSourceWorker(sources *repository.SourceRepository, pipeline *ingest.Pipeline) *IngestSourceWorker {
	return &IngestSourceWorker{sources: sources, pipeline: pipeline}
}

// Work fetches the source, runs the pipeline, and enqueues
// fetch_article_content for every accepted article that carries a URL.
func (w *IngestSourceWorker) Work(ctx context.Context, job *river.Job[IngestSourceArgs]) error {
	source, err := w.sources.GetByID(ctx, job.Args.SourceID)
	if err != nil {
		if ae, ok := apperrors.IsAppError(err); ok && ae.Kind == apperrors.KindNotFound {
			return river.JobCancel(err)
		}
		return classify(err)
	}

	result, err := w.pipeline.Run(ctx, source)
	if err != nil {
		logger.Error("ingest_source pipeline run failed",
			zap.String("source_id", source.ID), zap.Error(err))
		return classify(err)
	}
	if result.Skipped {
		logger.Info("ingest_source skipped", zap.String("source_id", source.ID), zap.String("reason", result.SkippedReason))
		return nil
	}

	for _, articleID := range result.Accepted {
		enqueue(ctx, FetchArticleContentArgs{ArticleID: articleID}, nil)
	}

	logger.Info("ingest_source completed",
		zap.String("source_id", source.ID),
		zap.Int("found", result.FoundCount),
		zap.Int("accepted", result.AcceptedCount),
		zap.Int("seen", result.SeenCount),
		zap.Int("filtered", result.FilteredCount),
	)
	return nil
}
