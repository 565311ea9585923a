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

// CVERepository persists domain.CVE and domain.CveChange rows.
type CVERepository struct {
	db *sqlx.DB
}

const cveColumns = `
	cve_id, published_at, last_modified_at, last_seen_at, description_text,
	preferred_cvss_version, preferred_base_score, preferred_base_severity, preferred_vector,
	metrics_v31, metrics_v40, affected_products, affected_cpes, reference_domains,
	raw_upstream, content_hash, created_at, updated_at`

// GetByID loads a CVE by ID.
func (r *CVERepository) GetByID(ctx context.Context, cveID string) (*domain.CVE, error) {
	var c domain.CVE
	q := "SELECT " + cveColumns + " FROM cves WHERE cve_id = $1"
	if err := r.db.GetContext(ctx, &c, q, cveID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound(apperrors.CodeCVENotFound, "cve not found: "+cveID)
		}
		return nil, apperrors.WrapTransient(err, apperrors.CodeCVENotFound, "get cve")
	}
	return &c, nil
}

// ContentHash returns the stored content_hash for a CVE, or "" if it does
// not yet exist, so the sync loop can decide whether to journal a change
// without loading the full row.
func (r *CVERepository) ContentHash(ctx context.Context, cveID string) (string, error) {
	var hash string
	const q = `SELECT content_hash FROM cves WHERE cve_id = $1`
	err := r.db.GetContext(ctx, &hash, q, cveID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", apperrors.WrapTransient(err, apperrors.CodeCVENotFound, "get cve content hash")
	}
	return hash, nil
}

// Upsert creates or refreshes a CVE row.
func (r *CVERepository) Upsert(ctx context.Context, c *domain.CVE) error {
	const q = `
INSERT INTO cves (
	cve_id, published_at, last_modified_at, last_seen_at, description_text,
	preferred_cvss_version, preferred_base_score, preferred_base_severity, preferred_vector,
	metrics_v31, metrics_v40, affected_products, affected_cpes, reference_domains,
	raw_upstream, content_hash, created_at, updated_at
) VALUES (
	:cve_id, :published_at, :last_modified_at, :last_seen_at, :description_text,
	:preferred_cvss_version, :preferred_base_score, :preferred_base_severity, :preferred_vector,
	:metrics_v31, :metrics_v40, :affected_products, :affected_cpes, :reference_domains,
	:raw_upstream, :content_hash, now(), now()
)
ON CONFLICT (cve_id) DO UPDATE SET
	published_at = EXCLUDED.published_at,
	last_modified_at = EXCLUDED.last_modified_at,
	last_seen_at = EXCLUDED.last_seen_at,
	description_text = EXCLUDED.description_text,
	preferred_cvss_version = EXCLUDED.preferred_cvss_version,
	preferred_base_score = EXCLUDED.preferred_base_score,
	preferred_base_severity = EXCLUDED.preferred_base_severity,
	preferred_vector = EXCLUDED.preferred_vector,
	metrics_v31 = EXCLUDED.metrics_v31,
	metrics_v40 = EXCLUDED.metrics_v40,
	affected_products = EXCLUDED.affected_products,
	affected_cpes = EXCLUDED.affected_cpes,
	reference_domains = EXCLUDED.reference_domains,
	raw_upstream = EXCLUDED.raw_upstream,
	content_hash = EXCLUDED.content_hash,
	updated_at = now()`
	_, err := r.db.NamedExecContext(ctx, q, c)
	if err != nil {
		return apperrors.WrapTransient(err, apperrors.CodeCVESyncFailed, "upsert cve")
	}
	return nil
}

// InsertChange appends a CveChange journal row.
func (r *CVERepository) InsertChange(ctx context.Context, ch *domain.CveChange) error {
	const q = `
INSERT INTO cve_changes (cve_id, change_at, change_type, from_value, to_value, metric_diff)
VALUES (:cve_id, now(), :change_type, :from_value, :to_value, :metric_diff)`
	_, err := r.db.NamedExecContext(ctx, q, ch)
	if err != nil {
		return apperrors.WrapTransient(err, apperrors.CodeCVESyncFailed, "insert cve change")
	}
	return nil
}

// RecentChanges lists the most recent changes for a CVE, newest first.
func (r *CVERepository) RecentChanges(ctx context.Context, cveID string, limit int) ([]domain.CveChange, error) {
	const q = `
SELECT id, cve_id, change_at, change_type, from_value, to_value, metric_diff
FROM cve_changes WHERE cve_id = $1 ORDER BY change_at DESC LIMIT $2`
	var out []domain.CveChange
	if err := r.db.SelectContext(ctx, &out, q, cveID, limit); err != nil {
		return nil, apperrors.WrapTransient(err, apperrors.CodeCVESyncFailed, "recent cve changes")
	}
	return out, nil
}

// ListModifiedSince returns CVEs whose last_modified_at is at or after
// `since`, used by the event clustering pass to find candidates within the
// rolling window W.
func (r *CVERepository) ListModifiedSince(ctx context.Context, since time.Time) ([]domain.CVE, error) {
	var out []domain.CVE
	q := "SELECT " + cveColumns + " FROM cves WHERE last_modified_at >= $1 ORDER BY last_modified_at DESC"
	if err := r.db.SelectContext(ctx, &out, q, since); err != nil {
		return nil, apperrors.WrapTransient(err, apperrors.CodeCVESyncFailed, "list cves modified since")
	}
	return out, nil
}
