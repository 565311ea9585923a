package jobs

import (
	"context"
	"fmt"

	river "github.com/riverqueue/river"
	"go.uber.org/zap"

	"sempervigil.dev/sempervigil/internal/domain"
	"sempervigil.dev/sempervigil/internal/llm"
	apperrors "sempervigil.dev/sempervigil/internal/pkg/errors"
	"sempervigil.dev/sempervigil/internal/pkg/logger"
	"sempervigil.dev/sempervigil/internal/repository"
)

// summarizeSystemPrompt instructs the model to produce a short, factual
// summary suitable for the published site's article listing.
const summarizeSystemPrompt = "You summarize security news articles in two to three sentences, factual and neutral, for a vulnerability intelligence feed. Do not editorialize."

// SummarizeArticleLLMArgs carries the article to summarize.
type SummarizeArticleLLMArgs struct {
	ArticleID string `json:"article_id"`
}

// Kind returns the job kind identifier.
func (SummarizeArticleLLMArgs) Kind() string { return "summarize_article_llm" }

// InsertOpts routes summarization to the rate-limited llm queue (spec.md
// §5: "llm class — handles only summarize_article_llm").
func (SummarizeArticleLLMArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       "llm",
		MaxAttempts: 3,
		UniqueOpts: river.UniqueOpts{
			ByArgs:  true,
			ByQueue: true,
			ByState: []river.JobState{river.JobStateAvailable, river.JobStateRunning, river.JobStateScheduled},
		},
	}
}

// SummarizeArticleLLMWorker calls the routed provider and stores the
// resulting summary, or records a summary_error on failure (spec.md §4.C
// summarize_article_llm handler).
type SummarizeArticleLLMWorker struct {
	river.WorkerDefaults[SummarizeArticleLLMArgs]
	articles         *repository.ArticleRepository
	runner           *llm.Runner
	publishOnFailure bool
}

// NewSummarizeArticleLLMWorker builds the worker. publishOnFailure mirrors
// RuntimeConfig.PublishOnSummarizationFailure: when true, a failed
// summarization still enqueues write_article_markdown (fail-open); when
// false, publishing is withheld until a later retry succeeds (fail-closed).
func NewSummarizeArticleLLMWorker(articles *repository.ArticleRepository, runner *llm.Runner, publishOnFailure bool) *SummarizeArticleLLMWorker {
	return &SummarizeArticleLLMWorker{articles: articles, runner: runner, publishOnFailure: publishOnFailure}
}

// Work summarizes one article's content text.
func (w *SummarizeArticleLLMWorker) Work(ctx context.Context, job *river.Job[SummarizeArticleLLMArgs]) error {
	article, err := w.articles.GetByID(ctx, job.Args.ArticleID)
	if err != nil {
		if ae, ok := apperrors.IsAppError(err); ok && ae.Kind == apperrors.KindNotFound {
			return river.JobCancel(err)
		}
		return classify(err)
	}
	if article.ContentText == "" {
		return nil
	}

	userPrompt := fmt.Sprintf("Title: %s\n\n%s", article.Title, article.ContentText)
	resp, runErr := w.runner.Run(ctx, domain.LLMStageSummarizeArticle, "article", article.ID, summarizeSystemPrompt, userPrompt)

	if runErr != nil {
		logger.Warn("article summarization failed", zap.String("article_id", article.ID), zap.Error(runErr))
		if updErr := w.articles.UpdateSummary(ctx, article.ID, "", runErr.Error()); updErr != nil {
			logger.Error("failed to record summary error", zap.String("article_id", article.ID), zap.Error(updErr))
		}
		if w.publishOnFailure {
			w.enqueuePublish(ctx, article.ID)
			return nil
		}
		return classify(runErr)
	}

	if err := w.articles.UpdateSummary(ctx, article.ID, resp.Content, ""); err != nil {
		return classify(err)
	}

	w.enqueuePublish(ctx, article.ID)
	return nil
}

func (w *SummarizeArticleLLMWorker) enqueuePublish(ctx context.Context, articleID string) {
	enqueue(ctx, WriteArticleMarkdownArgs{ArticleID: articleID}, nil)
}
