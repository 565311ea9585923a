package jobs

import (
	"context"

	river "github.com/riverqueue/river"

	apperrors "sempervigil.dev/sempervigil/internal/pkg/errors"
	"sempervigil.dev/sempervigil/internal/publish"
	"sempervigil.dev/sempervigil/internal/repository"
)

// WriteArticleMarkdownArgs carries the article to publish.
type WriteArticleMarkdownArgs struct {
	ArticleID string `json:"article_id"`
}

// Kind returns the job kind identifier.
func (WriteArticleMarkdownArgs) Kind() string { return "write_article_markdown" }

// InsertOpts caps in-flight duplicates for the same article.
func (WriteArticleMarkdownArgs) InsertOpts() river.InsertOpts {
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

// WriteArticleMarkdownWorker writes the article's Markdown file and enqueues
// a debounced build_site (spec.md §4.C write_article_markdown handler).
type WriteArticleMarkdownWorker struct {
	river.WorkerDefaults[WriteArticleMarkdownArgs]
	articles     *repository.ArticleRepository
	sources      *repository.SourceRepository
	siteSrcDir   string
	debounce     BuildSiteDebouncer
}

// NewWriteArticleMarkdownWorker builds the worker.
func NewWriteArticleMarkdownWorker(articles *repository.ArticleRepository, sources *repository.SourceRepository, siteSrcDir string, debounce BuildSiteDebouncer) *WriteArticleMarkdownWorker {
	return &WriteArticleMarkdownWorker{articles: articles, sources: sources, siteSrcDir: siteSrcDir, debounce: debounce}
}

// Work renders and writes the Markdown file, records published_md_path, and
// requests a debounced site rebuild.
func (w *WriteArticleMarkdownWorker) Work(ctx context.Context, job *river.Job[WriteArticleMarkdownArgs]) error {
	article, err := w.articles.GetByID(ctx, job.Args.ArticleID)
	if err != nil {
		if ae, ok := apperrors.IsAppError(err); ok && ae.Kind == apperrors.KindNotFound {
			return river.JobCancel(err)
		}
		return classify(err)
	}

	sourceName := ""
	if source, err := w.sources.GetByID(ctx, article.SourceID); err == nil {
		sourceName = source.Name
	}

	path, err := publish.WriteArticleMarkdown(w.siteSrcDir, article, sourceName)
	if err != nil {
		return classify(err)
	}

	if err := w.articles.MarkPublished(ctx, article.ID, path); err != nil {
		return classify(err)
	}

	w.debounce.RequestBuild(ctx)
	return nil
}
