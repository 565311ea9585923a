package jobs

import (
	"context"

	river "github.com/riverqueue/river"
	"go.uber.org/zap"

	"sempervigil.dev/sempervigil/internal/domain"
	"sempervigil.dev/sempervigil/internal/ingest"
	apperrors "sempervigil.dev/sempervigil/internal/pkg/errors"
	"sempervigil.dev/sempervigil/internal/pkg/logger"
	"sempervigil.dev/sempervigil/internal/repository"
)

// FetchArticleContentArgs carries the article to fetch full content for.
type FetchArticleContentArgs struct {
	ArticleID string `json:"article_id"`
}

// Kind returns the job kind identifier.
func (FetchArticleContentArgs) Kind() string { return "fetch_article_content" }

// InsertOpts caps in-flight duplicates for the same article.
func (FetchArticleContentArgs) InsertOpts() river.InsertOpts {
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

// contentExcerptLen bounds the debug HTML excerpt stored on the article.
const contentExcerptLen = 2000

// FetchArticleContentWorker fetches the article's original URL, extracts
// readable text, and on success enqueues summarize_article_llm (spec.md
// §4.C fetch_article_content handler).
type FetchArticleContentWorker struct {
	river.WorkerDefaults[FetchArticleContentArgs]
	articles  *repository.ArticleRepository
	fetcher   *ingest.Fetcher
	llmRouted bool
}

// NewFetchArticleContentWorker builds the worker. llmRouted reports whether
// a profile is routed to the summarize_article stage (spec.md §4.C: "if an
// LLM profile is routed to that stage"); when false, summarize_article_llm
// is never enqueued and the pipeline publishes the article without a
// summary.
func NewFetchArticleContentWorker(articles *repository.ArticleRepository, fetcher *ingest.Fetcher, llmRouted bool) *FetchArticleContentWorker {
	return &FetchArticleContentWorker{articles: articles, fetcher: fetcher, llmRouted: llmRouted}
}

// Work fetches the article page, extracts readable content, and persists
// it (spec.md §4.C: "On failure records content_error"). A fetch failure
// records content_error and then fails the job with the classified error,
// so River may retry it; an extraction failure records content_error and
// completes the job.
func (w *FetchArticleContentWorker) Work(ctx context.Context, job *river.Job[FetchArticleContentArgs]) error {
	article, err := w.articles.GetByID(ctx, job.Args.ArticleID)
	if err != nil {
		if ae, ok := apperrors.IsAppError(err); ok && ae.Kind == apperrors.KindNotFound {
			return river.JobCancel(err)
		}
		return classify(err)
	}
	if article.OriginalURL == "" {
		return nil
	}

	pseudoSource := &domain.Source{URL: article.OriginalURL}
	fetched, err := w.fetcher.Fetch(ctx, pseudoSource)
	if err != nil {
		if updErr := w.articles.UpdateContent(ctx, article.ID, "", "", err.Error()); updErr != nil {
			logger.Error("failed to record content fetch error", zap.String("article_id", article.ID), zap.Error(updErr))
		}
		return classify(err)
	}

	text, htmlExcerpt, err := ingest.ExtractReadableContent(fetched.Body, contentExcerptLen)
	if err != nil {
		if updErr := w.articles.UpdateContent(ctx, article.ID, "", "", err.Error()); updErr != nil {
			logger.Error("failed to record content extraction error", zap.String("article_id", article.ID), zap.Error(updErr))
		}
		return nil
	}

	if err := w.articles.UpdateContent(ctx, article.ID, text, htmlExcerpt, ""); err != nil {
		return classify(err)
	}

	if w.llmRouted {
		enqueue(ctx, SummarizeArticleLLMArgs{ArticleID: article.ID}, nil)
	} else {
		enqueue(ctx, WriteArticleMarkdownArgs{ArticleID: article.ID}, nil)
	}

	return nil
}
