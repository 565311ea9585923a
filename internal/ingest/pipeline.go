package ingest

import (
	"context"
	"time"

	"github.com/google/uuid"

	"sempervigil.dev/sempervigil/internal/domain"
	apperrors "sempervigil.dev/sempervigil/internal/pkg/errors"
	"sempervigil.dev/sempervigil/internal/pkg/logger"
	"sempervigil.dev/sempervigil/internal/repository"

	"go.uber.org/zap"
)

// Clock lets tests substitute a fixed time; production uses time.Now.
type Clock func() time.Time

// Pipeline runs the full ingest_source handler body (spec.md §4.C steps
// 1-9) against the shared repository/fetcher stack.
type Pipeline struct {
	sources  *repository.SourceRepository
	articles *repository.ArticleRepository
	cves     *repository.CVERepository
	fetcher  *Fetcher
	clock    Clock

	globalAllowKeywords []string
	globalDenyKeywords  []string

	autoPauseZeroArticleRuns int
	autoPauseErrorRuns       int
	autoPauseDuration        time.Duration
}

// NewPipeline builds a Pipeline over the shared repositories and fetcher.
func NewPipeline(sources *repository.SourceRepository, articles *repository.ArticleRepository, cves *repository.CVERepository, fetcher *Fetcher) *Pipeline {
	return &Pipeline{
		sources:                  sources,
		articles:                 articles,
		cves:                     cves,
		fetcher:                  fetcher,
		clock:                    time.Now,
		autoPauseZeroArticleRuns: 5,
		autoPauseErrorRuns:       3,
		autoPauseDuration:        12 * time.Hour,
	}
}

// WithGlobalKeywords overrides the global allow/deny keyword lists applied
// on top of each source's own lists.
func (p *Pipeline) WithGlobalKeywords(allow, deny []string) *Pipeline {
	p.globalAllowKeywords = allow
	p.globalDenyKeywords = deny
	return p
}

// WithAutoPausePolicy overrides the Z/E thresholds and pause duration from
// the current RuntimeConfig snapshot (spec.md §4.C step 9).
func (p *Pipeline) WithAutoPausePolicy(zeroArticleRuns, errorRuns int, duration time.Duration) *Pipeline {
	p.autoPauseZeroArticleRuns = zeroArticleRuns
	p.autoPauseErrorRuns = errorRuns
	p.autoPauseDuration = duration
	return p
}

// RunResult summarizes one ingest_source execution for the caller (the
// River worker) to log and for health-row bookkeeping.
type RunResult struct {
	Accepted       []string // new article IDs
	FoundCount     int
	AcceptedCount  int
	SeenCount      int
	FilteredCount  int
	Skipped        bool
	SkippedReason  string
}

// Run executes one ingest_source pass against a single source (spec.md §4.C
// steps 1-9). It persists accepted Articles, records SourceHealth, and
// applies the auto-pause policy, returning the new article IDs so the
// caller can enqueue fetch_article_content for each.
func (p *Pipeline) Run(ctx context.Context, source *domain.Source) (*RunResult, error) {
	start := p.clock()
	now := start

	if source.IsPaused(now) {
		skipHealth := &domain.SourceHealth{
			SourceID:  source.ID,
			Ts:        now,
			OK:        true,
			LastError: "skipped: source paused",
		}
		if err := p.sources.RecordHealth(ctx, skipHealth); err != nil {
			logger.Error("failed to record skipped-run source health", zap.String("source_id", source.ID), zap.Error(err))
		}
		return &RunResult{Skipped: true, SkippedReason: "paused"}, nil
	}

	result := &RunResult{}
	var runErr error

	items, _, fetchErr := p.fetchAndFilter(ctx, source, result)

	corr := &correlator{cves: p.cves, articles: p.articles}

	for _, item := range items {
		article, err := p.draftArticle(source, item)
		if err != nil {
			continue
		}
		exists, err := p.articles.ExistsByStableID(ctx, source.ID, article.StableID)
		if err != nil {
			runErr = err
			break
		}
		if exists {
			result.SeenCount++
			continue
		}
		if err := p.articles.Insert(ctx, article); err != nil {
			if appErr, ok := apperrors.IsAppError(err); ok && appErr.Code == apperrors.CodeArticleDuplicate {
				result.SeenCount++
				continue
			}
			runErr = err
			break
		}
		if _, err := corr.correlateExplicitCVEs(ctx, article.ID, article.Title, article.ContentText); err != nil {
			logger.Warn("cve correlation failed for article", zap.String("article_id", article.ID), zap.Error(err))
		}
		result.Accepted = append(result.Accepted, article.ID)
		result.AcceptedCount++
	}

	duration := p.clock().Sub(start)
	healthErr := runErr
	if healthErr == nil {
		healthErr = fetchErr
	}
	health := &domain.SourceHealth{
		SourceID:      source.ID,
		Ts:            now,
		OK:            healthErr == nil,
		FoundCount:    result.FoundCount,
		AcceptedCount: result.AcceptedCount,
		SeenCount:     result.SeenCount,
		FilteredCount: result.FilteredCount,
		DurationMs:    duration.Milliseconds(),
	}
	if healthErr != nil {
		health.LastError = healthErr.Error()
	}
	if err := p.sources.RecordHealth(ctx, health); err != nil {
		logger.Error("failed to record source health", zap.String("source_id", source.ID), zap.Error(err))
	}

	p.applyAutoPause(ctx, source)

	return result, runErr
}

func (p *Pipeline) fetchAndFilter(ctx context.Context, source *domain.Source, result *RunResult) ([]RawItem, []FilterVerdict, error) {
	fetched, err := p.fetcher.Fetch(ctx, source)
	if err != nil {
		return nil, nil, err
	}
	if fetched.NotModified {
		return nil, nil, nil
	}
	if fetched.ETag != "" || fetched.LastModified != "" {
		if err := p.sources.UpdateHTTPCache(ctx, source.ID, fetched.ETag, fetched.LastModified); err != nil {
			logger.Warn("failed to persist http cache headers", zap.String("source_id", source.ID), zap.Error(err))
		}
	}

	rawItems, err := ParseFeed(source.Kind, source.HTMLSelector, fetched.Body)
	if err != nil {
		logger.Warn("feed parse failed", zap.String("source_id", source.ID), zap.Error(err))
		return nil, nil, apperrors.WrapPermanent(err, apperrors.CodeSourceParseFailed, "parse failed")
	}
	result.FoundCount = len(rawItems)

	var accepted []RawItem
	var verdicts []FilterVerdict
	for _, item := range rawItems {
		text := item.Title + " " + item.ContentText
		verdict := ApplyFilters(text, source.AllowKeywords, source.DenyKeywords, p.globalAllowKeywords, p.globalDenyKeywords)
		verdicts = append(verdicts, verdict)
		if !verdict.Accepted {
			result.FilteredCount++
			continue
		}
		accepted = append(accepted, item)
	}
	return accepted, verdicts, nil
}

func (p *Pipeline) draftArticle(source *domain.Source, item RawItem) (*domain.Article, error) {
	canonical, err := CanonicalizeURL(item.URL)
	if err != nil {
		return nil, err
	}
	stableID := StableID(canonical, source.ID)
	now := p.clock()
	return &domain.Article{
		ID:                 uuid.NewString(),
		SourceID:           source.ID,
		StableID:           stableID,
		ContentFingerprint: ContentFingerprint(item.Title, item.ContentText),
		Title:              item.Title,
		OriginalURL:        item.URL,
		CanonicalURL:       canonical,
		PublishedAt:        item.PublishedAt,
		IngestedAt:         now,
		Author:             item.Author,
		ContentText:        item.ContentText,
		ContentHTMLExcerpt: excerpt(item.ContentHTML, 500),
	}, nil
}

func excerpt(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// applyAutoPause pauses a source whose counters have crossed the
// configured thresholds (spec.md §4.C step 9).
func (p *Pipeline) applyAutoPause(ctx context.Context, source *domain.Source) {
	refreshed, err := p.sources.GetByID(ctx, source.ID)
	if err != nil {
		return
	}
	var reason string
	switch {
	case refreshed.ConsecutiveZeroArticleRuns >= p.autoPauseZeroArticleRuns:
		reason = "consecutive zero-article runs"
	case refreshed.ConsecutiveErrors >= p.autoPauseErrorRuns:
		reason = "consecutive fetch/parse errors"
	default:
		return
	}
	until := p.clock().Add(p.autoPauseDuration)
	if err := p.sources.Pause(ctx, source.ID, reason, until); err != nil {
		logger.Error("failed to auto-pause source", zap.String("source_id", source.ID), zap.Error(err))
	}
}

// TestSourceResult is the response to the admin-triggered test-source
// operation (spec.md §4.C "Test-source operation"): runs steps 1-5 against
// a single source in memory without persisting anything.
type TestSourceResult struct {
	FoundCount int
	Items      []TestSourceItem
}

// TestSourceItem carries one item's accept/reject verdict for display.
type TestSourceItem struct {
	Title    string
	URL      string
	Accepted bool
	Reason   string
}

// TestSource runs fetch+parse+filter (spec.md §4.C steps 1-5) against a
// single source without touching the database, for the admin "try this
// source config" workflow.
func (p *Pipeline) TestSource(ctx context.Context, source *domain.Source) (*TestSourceResult, error) {
	if source.IsPaused(p.clock()) {
		return nil, apperrors.Validation(apperrors.CodeSourcePaused, "source is paused")
	}
	fetched, err := p.fetcher.Fetch(ctx, source)
	if err != nil {
		return nil, err
	}
	if fetched.NotModified {
		return &TestSourceResult{}, nil
	}
	rawItems, err := ParseFeed(source.Kind, source.HTMLSelector, fetched.Body)
	if err != nil {
		return nil, apperrors.WrapPermanent(err, apperrors.CodeSourceParseFailed, "parse failed")
	}
	out := &TestSourceResult{FoundCount: len(rawItems)}
	for _, item := range rawItems {
		text := item.Title + " " + item.ContentText
		verdict := ApplyFilters(text, source.AllowKeywords, source.DenyKeywords, p.globalAllowKeywords, p.globalDenyKeywords)
		out.Items = append(out.Items, TestSourceItem{
			Title:    item.Title,
			URL:      item.URL,
			Accepted: verdict.Accepted,
			Reason:   verdict.Reason,
		})
	}
	return out, nil
}
