package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"sempervigil.dev/sempervigil/internal/domain"
	apperrors "sempervigil.dev/sempervigil/internal/pkg/errors"
)

// RuntimeConfigRepository reads and updates the single runtime_config row
// (spec.md §3). The row always exists after migrations run the seed
// migration; Get falling through to domain.DefaultRuntimeConfig only
// guards against a hand-emptied table in a dev database.
type RuntimeConfigRepository struct {
	db *sqlx.DB
}

const runtimeConfigColumns = `
	consecutive_zero_article_runs_to_pause, consecutive_errors_to_pause, auto_pause_duration_minutes,
	event_clustering_window_hours, event_purge_min_articles, event_purge_max_severity,
	publish_on_summarization_failure, prefer_cvss_v4, default_source_rate_limit_per_minute,
	build_site_debounce_seconds, updated_at`

// Get loads the single runtime_config row.
func (r *RuntimeConfigRepository) Get(ctx context.Context) (*domain.RuntimeConfig, error) {
	var c domain.RuntimeConfig
	q := "SELECT " + runtimeConfigColumns + " FROM runtime_config WHERE id"
	if err := r.db.GetContext(ctx, &c, q); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			d := domain.DefaultRuntimeConfig()
			return &d, nil
		}
		return nil, apperrors.WrapTransient(err, apperrors.CodeValidationFailed, "get runtime config")
	}
	return &c, nil
}

// Update overwrites the single runtime_config row with new values, for the
// admin API's "adjust operational knobs without a restart" surface.
func (r *RuntimeConfigRepository) Update(ctx context.Context, c *domain.RuntimeConfig) error {
	const q = `
UPDATE runtime_config SET
	consecutive_zero_article_runs_to_pause = :consecutive_zero_article_runs_to_pause,
	consecutive_errors_to_pause = :consecutive_errors_to_pause,
	auto_pause_duration_minutes = :auto_pause_duration_minutes,
	event_clustering_window_hours = :event_clustering_window_hours,
	event_purge_min_articles = :event_purge_min_articles,
	event_purge_max_severity = :event_purge_max_severity,
	publish_on_summarization_failure = :publish_on_summarization_failure,
	prefer_cvss_v4 = :prefer_cvss_v4,
	default_source_rate_limit_per_minute = :default_source_rate_limit_per_minute,
	build_site_debounce_seconds = :build_site_debounce_seconds,
	updated_at = now()
WHERE id`
	res, err := r.db.NamedExecContext(ctx, q, c)
	if err != nil {
		return apperrors.WrapTransient(err, apperrors.CodeValidationFailed, "update runtime config")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.Internal(apperrors.CodeValidationFailed, "runtime config row missing; reapply migrations")
	}
	return nil
}
