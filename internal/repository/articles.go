package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"sempervigil.dev/sempervigil/internal/domain"
	apperrors "sempervigil.dev/sempervigil/internal/pkg/errors"
)

// ArticleRepository persists domain.Article and domain.ArticleCVELink rows.
type ArticleRepository struct {
	db *sqlx.DB
}

const articleColumns = `
	id, source_id, stable_id, content_fingerprint,
	title, original_url, canonical_url, published_at, ingested_at, author,
	content_text, content_html_excerpt, content_fetched_at, content_error,
	summary_llm, summary_error, tags, published_md_path,
	created_at, updated_at`

// Insert creates a new Article. Per spec.md §9, uniqueness is enforced on
// (source_id, stable_id); a duplicate returns a Permanent AppError with code
// CodeArticleDuplicate so the ingest pipeline can treat it as a routine, non-fatal dedup hit.
func (r *ArticleRepository) Insert(ctx context.Context, a *domain.Article) error {
	const q = `
INSERT INTO articles (
	id, source_id, stable_id, content_fingerprint,
	title, original_url, canonical_url, published_at, ingested_at, author,
	content_text, content_html_excerpt, content_fetched_at, content_error,
	summary_llm, summary_error, tags, published_md_path,
	created_at, updated_at
) VALUES (
	:id, :source_id, :stable_id, :content_fingerprint,
	:title, :original_url, :canonical_url, :published_at, :ingested_at, :author,
	:content_text, :content_html_excerpt, :content_fetched_at, :content_error,
	:summary_llm, :summary_error, :tags, :published_md_path,
	now(), now()
)`
	_, err := r.db.NamedExecContext(ctx, q, a)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.Wrap(err, apperrors.KindPermanent, apperrors.CodeArticleDuplicate, "article already ingested")
		}
		return apperrors.WrapTransient(err, apperrors.CodeArticleNotFound, "insert article")
	}
	return nil
}

// ExistsByStableID reports whether an article with the given (source,
// stable_id) pair already exists, for cheap pre-insert dedup checks.
func (r *ArticleRepository) ExistsByStableID(ctx context.Context, sourceID, stableID string) (bool, error) {
	var exists bool
	const q = `SELECT EXISTS(SELECT 1 FROM articles WHERE source_id = $1 AND stable_id = $2)`
	if err := r.db.GetContext(ctx, &exists, q, sourceID, stableID); err != nil {
		return false, apperrors.WrapTransient(err, apperrors.CodeArticleNotFound, "check article existence")
	}
	return exists, nil
}

// GetByID loads an Article.
func (r *ArticleRepository) GetByID(ctx context.Context, id string) (*domain.Article, error) {
	var a domain.Article
	q := "SELECT " + articleColumns + " FROM articles WHERE id = $1"
	if err := r.db.GetContext(ctx, &a, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound(apperrors.CodeArticleNotFound, "article not found: "+id)
		}
		return nil, apperrors.WrapTransient(err, apperrors.CodeArticleNotFound, "get article")
	}
	return &a, nil
}

// UpdateContent persists fetched article body text after the
// fetch_article_content job runs.
func (r *ArticleRepository) UpdateContent(ctx context.Context, id, text, htmlExcerpt, fetchErr string) error {
	const q = `
UPDATE articles SET
	content_text = $2, content_html_excerpt = $3, content_error = $4,
	content_fetched_at = now(), updated_at = now()
WHERE id = $1`
	_, err := r.db.ExecContext(ctx, q, id, text, htmlExcerpt, fetchErr)
	if err != nil {
		return apperrors.WrapTransient(err, apperrors.CodeArticleContentFetch, "update article content")
	}
	return nil
}

// UpdateSummary persists the LLM-generated summary, or the error message if
// summarization failed.
func (r *ArticleRepository) UpdateSummary(ctx context.Context, id, summary, summaryErr string) error {
	const q = `UPDATE articles SET summary_llm = $2, summary_error = $3, updated_at = now() WHERE id = $1`
	_, err := r.db.ExecContext(ctx, q, id, summary, summaryErr)
	if err != nil {
		return apperrors.WrapTransient(err, apperrors.CodeArticleNotFound, "update article summary")
	}
	return nil
}

// MarkPublished records the Markdown path written for an article.
func (r *ArticleRepository) MarkPublished(ctx context.Context, id, mdPath string) error {
	const q = `UPDATE articles SET published_md_path = $2, updated_at = now() WHERE id = $1`
	_, err := r.db.ExecContext(ctx, q, id, mdPath)
	if err != nil {
		return apperrors.WrapTransient(err, apperrors.CodePublishWriteFailed, "mark article published")
	}
	return nil
}

// ListByFingerprint returns other articles sharing a content fingerprint,
// for cross-source duplicate grouping (spec.md §9 Open Question decision).
func (r *ArticleRepository) ListByFingerprint(ctx context.Context, fingerprint, excludeID string) ([]domain.Article, error) {
	var out []domain.Article
	q := "SELECT " + articleColumns + " FROM articles WHERE content_fingerprint = $1 AND id != $2"
	if err := r.db.SelectContext(ctx, &out, q, fingerprint, excludeID); err != nil {
		return nil, apperrors.WrapTransient(err, apperrors.CodeArticleNotFound, "list articles by fingerprint")
	}
	return out, nil
}

// UpsertCVELink idempotently inserts or refreshes an article-CVE
// correlation link (spec.md §4.D step 1).
func (r *ArticleRepository) UpsertCVELink(ctx context.Context, link *domain.ArticleCVELink) error {
	const q = `
INSERT INTO article_cves (article_id, cve_id, confidence, confidence_band, reasons, evidence_json, created_at)
VALUES (:article_id, :cve_id, :confidence, :confidence_band, :reasons, :evidence_json, now())
ON CONFLICT (article_id, cve_id) DO UPDATE SET
	confidence = GREATEST(article_cves.confidence, EXCLUDED.confidence),
	confidence_band = EXCLUDED.confidence_band,
	reasons = EXCLUDED.reasons,
	evidence_json = EXCLUDED.evidence_json`
	_, err := r.db.NamedExecContext(ctx, q, link)
	if err != nil {
		return apperrors.WrapTransient(err, apperrors.CodeCVENotFound, "upsert article cve link")
	}
	return nil
}

// CVELinksForArticle lists every CVE correlated to an article.
func (r *ArticleRepository) CVELinksForArticle(ctx context.Context, articleID string) ([]domain.ArticleCVELink, error) {
	const q = `
SELECT article_id, cve_id, confidence, confidence_band, reasons, evidence_json, created_at
FROM article_cves WHERE article_id = $1 ORDER BY confidence DESC`
	var out []domain.ArticleCVELink
	if err := r.db.SelectContext(ctx, &out, q, articleID); err != nil {
		return nil, apperrors.WrapTransient(err, apperrors.CodeCVENotFound, "list article cve links")
	}
	return out, nil
}

// ArticlesForCVE lists every article correlated to a CVE, newest first.
func (r *ArticleRepository) ArticlesForCVE(ctx context.Context, cveID string) ([]domain.ArticleCVELink, error) {
	const q = `
SELECT ac.article_id, ac.cve_id, ac.confidence, ac.confidence_band, ac.reasons, ac.evidence_json, ac.created_at
FROM article_cves ac
JOIN articles a ON a.id = ac.article_id
WHERE ac.cve_id = $1
ORDER BY a.published_at DESC NULLS LAST`
	var out []domain.ArticleCVELink
	if err := r.db.SelectContext(ctx, &out, q, cveID); err != nil {
		return nil, apperrors.WrapTransient(err, apperrors.CodeCVENotFound, "list articles for cve")
	}
	return out, nil
}

func isUniqueViolation(err error) bool {
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23505"
	}
	return false
}
