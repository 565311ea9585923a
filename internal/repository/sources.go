package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"sempervigil.dev/sempervigil/internal/domain"
	apperrors "sempervigil.dev/sempervigil/internal/pkg/errors"
)

// SourceRepository persists domain.Source and domain.SourceHealth rows.
type SourceRepository struct {
	db *sqlx.DB
}

const sourceColumns = `
	id, name, kind, url, enabled, interval_minutes, tags, pause_until, paused_reason,
	user_agent, headers, timeout_seconds, allow_keywords, deny_keywords,
	rate_limit_per_minute, min_interval_seconds, max_retries, backoff_seconds, html_selector,
	last_etag, last_modified_http,
	consecutive_zero_article_runs, consecutive_errors,
	created_at, updated_at`

// Upsert creates or updates a Source by ID.
func (r *SourceRepository) Upsert(ctx context.Context, s *domain.Source) error {
	const q = `
INSERT INTO sources (
	id, name, kind, url, enabled, interval_minutes, tags, pause_until, paused_reason,
	user_agent, headers, timeout_seconds, allow_keywords, deny_keywords,
	rate_limit_per_minute, min_interval_seconds, max_retries, backoff_seconds, html_selector,
	created_at, updated_at
) VALUES (
	:id, :name, :kind, :url, :enabled, :interval_minutes, :tags, :pause_until, :paused_reason,
	:user_agent, :headers, :timeout_seconds, :allow_keywords, :deny_keywords,
	:rate_limit_per_minute, :min_interval_seconds, :max_retries, :backoff_seconds, :html_selector,
	now(), now()
)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	kind = EXCLUDED.kind,
	url = EXCLUDED.url,
	enabled = EXCLUDED.enabled,
	interval_minutes = EXCLUDED.interval_minutes,
	tags = EXCLUDED.tags,
	pause_until = EXCLUDED.pause_until,
	paused_reason = EXCLUDED.paused_reason,
	user_agent = EXCLUDED.user_agent,
	headers = EXCLUDED.headers,
	timeout_seconds = EXCLUDED.timeout_seconds,
	allow_keywords = EXCLUDED.allow_keywords,
	deny_keywords = EXCLUDED.deny_keywords,
	rate_limit_per_minute = EXCLUDED.rate_limit_per_minute,
	min_interval_seconds = EXCLUDED.min_interval_seconds,
	max_retries = EXCLUDED.max_retries,
	backoff_seconds = EXCLUDED.backoff_seconds,
	html_selector = EXCLUDED.html_selector,
	updated_at = now()`
	_, err := r.db.NamedExecContext(ctx, q, s)
	if err != nil {
		return apperrors.WrapTransient(err, apperrors.CodeSourceFetchFailed, "upsert source")
	}
	return nil
}

// GetByID loads a Source, or a NotFound AppError if it does not exist.
func (r *SourceRepository) GetByID(ctx context.Context, id string) (*domain.Source, error) {
	var s domain.Source
	q := "SELECT " + sourceColumns + " FROM sources WHERE id = $1"
	if err := r.db.GetContext(ctx, &s, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound(apperrors.CodeSourceNotFound, "source not found: "+id)
		}
		return nil, apperrors.WrapTransient(err, apperrors.CodeSourceNotFound, "get source")
	}
	return &s, nil
}

// ListDue returns enabled, not-currently-paused sources whose last run was
// at least IntervalMinutes ago (spec.md §4.C scheduler query).
func (r *SourceRepository) ListDue(ctx context.Context, now time.Time) ([]domain.Source, error) {
	const q = `
SELECT ` + sourceColumns + ` FROM sources
WHERE enabled
  AND (pause_until IS NULL OR pause_until <= $1)
  AND NOT EXISTS (
    SELECT 1 FROM source_health sh
    WHERE sh.source_id = sources.id
      AND sh.ts > $1 - (sources.interval_minutes || ' minutes')::interval
  )
ORDER BY id`
	var out []domain.Source
	if err := r.db.SelectContext(ctx, &out, q, now); err != nil {
		return nil, apperrors.WrapTransient(err, apperrors.CodeSourceFetchFailed, "list due sources")
	}
	return out, nil
}

// ListAll returns every configured source, regardless of enabled/pause state.
func (r *SourceRepository) ListAll(ctx context.Context) ([]domain.Source, error) {
	var out []domain.Source
	q := "SELECT " + sourceColumns + " FROM sources ORDER BY id"
	if err := r.db.SelectContext(ctx, &out, q); err != nil {
		return nil, apperrors.WrapTransient(err, apperrors.CodeSourceFetchFailed, "list sources")
	}
	return out, nil
}

// RecordHealth inserts a SourceHealth row and updates the source's
// auto-pause bookkeeping counters in a single transaction.
func (r *SourceRepository) RecordHealth(ctx context.Context, h *domain.SourceHealth) error {
	if err := h.Validate(); err != nil {
		return apperrors.Wrap(err, apperrors.KindValidation, apperrors.CodeValidationFailed, "invalid source health")
	}

	return WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		const insertQ = `
INSERT INTO source_health (source_id, ts, ok, http_status, found_count, accepted_count, seen_count, filtered_count, duration_ms, last_error)
VALUES (:source_id, :ts, :ok, :http_status, :found_count, :accepted_count, :seen_count, :filtered_count, :duration_ms, :last_error)`
		if _, err := tx.NamedExecContext(ctx, insertQ, h); err != nil {
			return err
		}

		zeroArticles := h.AcceptedCount == 0
		hadError := !h.OK

		const bumpQ = `
UPDATE sources SET
	consecutive_zero_article_runs = CASE WHEN $2 THEN consecutive_zero_article_runs + 1 ELSE 0 END,
	consecutive_errors = CASE WHEN $3 THEN consecutive_errors + 1 ELSE 0 END,
	updated_at = now()
WHERE id = $1`
		_, err := tx.ExecContext(ctx, bumpQ, h.SourceID, zeroArticles, hadError)
		return err
	})
}

// Pause sets pause_until/paused_reason and resets the counters that
// triggered the pause (spec.md §4.C step 9 auto-pause).
func (r *SourceRepository) Pause(ctx context.Context, sourceID, reason string, until time.Time) error {
	const q = `
UPDATE sources SET
	pause_until = $2,
	paused_reason = $3,
	consecutive_zero_article_runs = 0,
	consecutive_errors = 0,
	updated_at = now()
WHERE id = $1`
	_, err := r.db.ExecContext(ctx, q, sourceID, until, reason)
	if err != nil {
		return apperrors.WrapTransient(err, apperrors.CodeSourceFetchFailed, "pause source")
	}
	return nil
}

// UpdateHTTPCache persists the ETag/Last-Modified values to replay on the
// next fetch (spec.md §6 conditional caching).
func (r *SourceRepository) UpdateHTTPCache(ctx context.Context, sourceID, etag, lastModified string) error {
	const q = `UPDATE sources SET last_etag = $2, last_modified_http = $3, updated_at = now() WHERE id = $1`
	_, err := r.db.ExecContext(ctx, q, sourceID, etag, lastModified)
	if err != nil {
		return apperrors.WrapTransient(err, apperrors.CodeSourceFetchFailed, "update source http cache")
	}
	return nil
}

// RecentHealth returns the most recent health rows for a source, newest first.
func (r *SourceRepository) RecentHealth(ctx context.Context, sourceID string, limit int) ([]domain.SourceHealth, error) {
	const q = `
SELECT id, source_id, ts, ok, http_status, found_count, accepted_count, seen_count, filtered_count, duration_ms, last_error
FROM source_health WHERE source_id = $1 ORDER BY ts DESC LIMIT $2`
	var out []domain.SourceHealth
	if err := r.db.SelectContext(ctx, &out, q, sourceID, limit); err != nil {
		return nil, apperrors.WrapTransient(err, apperrors.CodeSourceFetchFailed, "recent source health")
	}
	return out, nil
}
