package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"sempervigil.dev/sempervigil/internal/domain"
	apperrors "sempervigil.dev/sempervigil/internal/pkg/errors"
)

// EventRepository persists domain.Event and its member-link tables.
type EventRepository struct {
	db *sqlx.DB
}

const eventColumns = `
	id, kind, status, title, summary, severity, window_start, window_end,
	last_rebuilt_at, published_md_path, created_at, updated_at`

// GetByID loads an Event.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	var e domain.Event
	q := "SELECT " + eventColumns + " FROM events WHERE id = $1"
	if err := r.db.GetContext(ctx, &e, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound(apperrors.CodeEventNotFound, "event not found: "+id)
		}
		return nil, apperrors.WrapTransient(err, apperrors.CodeEventNotFound, "get event")
	}
	return &e, nil
}

// FindAutoByProductKey locates the most recent auto event clustered around
// a product whose window still covers `at`, for the clustering pass to
// decide "join this event" vs "open a new one" (spec.md §4.D step 3).
func (r *EventRepository) FindAutoByProductKey(ctx context.Context, productKey string, at interface{}) (*domain.Event, error) {
	const q = `
SELECT e.` + "id, e.kind, e.status, e.title, e.summary, e.severity, e.window_start, e.window_end, e.last_rebuilt_at, e.published_md_path, e.created_at, e.updated_at" + `
FROM events e
JOIN event_products ep ON ep.event_id = e.id
WHERE e.kind = 'auto' AND ep.product_key = $1 AND e.status != 'closed' AND e.window_end >= $2
ORDER BY e.window_end DESC
LIMIT 1`
	var e domain.Event
	err := r.db.GetContext(ctx, &e, q, productKey, at)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.WrapTransient(err, apperrors.CodeEventNotFound, "find auto event by product")
	}
	return &e, nil
}

// Upsert creates or updates an Event.
func (r *EventRepository) Upsert(ctx context.Context, e *domain.Event) error {
	const q = `
INSERT INTO events (id, kind, status, title, summary, severity, window_start, window_end, last_rebuilt_at, published_md_path, created_at, updated_at)
VALUES (:id, :kind, :status, :title, :summary, :severity, :window_start, :window_end, :last_rebuilt_at, :published_md_path, now(), now())
ON CONFLICT (id) DO UPDATE SET
	status = EXCLUDED.status,
	title = EXCLUDED.title,
	summary = EXCLUDED.summary,
	severity = EXCLUDED.severity,
	window_start = LEAST(events.window_start, EXCLUDED.window_start),
	window_end = GREATEST(events.window_end, EXCLUDED.window_end),
	last_rebuilt_at = EXCLUDED.last_rebuilt_at,
	updated_at = now()`
	_, err := r.db.NamedExecContext(ctx, q, e)
	if err != nil {
		return apperrors.WrapTransient(err, apperrors.CodeEventNotFound, "upsert event")
	}
	return nil
}

// SetStatus applies a lifecycle transition, rejecting illegal edges before
// touching the database (domain.CanTransition is the source of truth).
func (r *EventRepository) SetStatus(ctx context.Context, id string, from, to domain.EventStatus) error {
	if !domain.CanTransition(from, to) {
		return apperrors.Validation(apperrors.CodeEventInvalidTransition, "illegal event transition "+string(from)+"->"+string(to))
	}
	const q = `UPDATE events SET status = $2, updated_at = now() WHERE id = $1 AND status = $3`
	res, err := r.db.ExecContext(ctx, q, id, to, from)
	if err != nil {
		return apperrors.WrapTransient(err, apperrors.CodeEventNotFound, "set event status")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.Wrap(apperrors.ErrConflict, apperrors.KindPermanent, apperrors.CodeEventInvalidTransition, "event status changed concurrently")
	}
	return nil
}

// LinkCVE idempotently associates an Event with a CVE.
func (r *EventRepository) LinkCVE(ctx context.Context, eventID, cveID string) error {
	const q = `INSERT INTO event_cves (event_id, cve_id, created_at) VALUES ($1, $2, now()) ON CONFLICT DO NOTHING`
	_, err := r.db.ExecContext(ctx, q, eventID, cveID)
	if err != nil {
		return apperrors.WrapTransient(err, apperrors.CodeEventNotFound, "link event cve")
	}
	return nil
}

// LinkProduct idempotently associates an Event with a product.
func (r *EventRepository) LinkProduct(ctx context.Context, eventID, productKey string) error {
	const q = `INSERT INTO event_products (event_id, product_key, created_at) VALUES ($1, $2, now()) ON CONFLICT DO NOTHING`
	_, err := r.db.ExecContext(ctx, q, eventID, productKey)
	if err != nil {
		return apperrors.WrapTransient(err, apperrors.CodeEventNotFound, "link event product")
	}
	return nil
}

// LinkArticle idempotently associates an Event with a supporting article,
// keeping the higher confidence on repeated rebuilds.
func (r *EventRepository) LinkArticle(ctx context.Context, link *domain.EventArticleLink) error {
	const q = `
INSERT INTO event_articles (event_id, article_id, confidence, confidence_band, reasons, created_at)
VALUES (:event_id, :article_id, :confidence, :confidence_band, :reasons, now())
ON CONFLICT (event_id, article_id) DO UPDATE SET
	confidence = GREATEST(event_articles.confidence, EXCLUDED.confidence),
	confidence_band = EXCLUDED.confidence_band,
	reasons = EXCLUDED.reasons`
	_, err := r.db.NamedExecContext(ctx, q, link)
	if err != nil {
		return apperrors.WrapTransient(err, apperrors.CodeEventNotFound, "link event article")
	}
	return nil
}

// ArticleCount returns the number of distinct articles linked to an event,
// used by the purge pass's "weak evidence" check.
func (r *EventRepository) ArticleCount(ctx context.Context, eventID string) (int, error) {
	var n int
	const q = `SELECT count(*) FROM event_articles WHERE event_id = $1`
	if err := r.db.GetContext(ctx, &n, q, eventID); err != nil {
		return 0, apperrors.WrapTransient(err, apperrors.CodeEventNotFound, "count event articles")
	}
	return n, nil
}

// ListAutoCandidatesForPurge returns non-closed auto events that are
// candidates for the purge pass (spec.md §9 weak-evidence rule); the caller
// still checks ArticleCount/severity per event since that logic lives in
// domain.Event.IsPurgeable.
func (r *EventRepository) ListAutoCandidatesForPurge(ctx context.Context) ([]domain.Event, error) {
	var out []domain.Event
	q := "SELECT " + eventColumns + " FROM events WHERE kind = 'auto' AND status != 'closed'"
	if err := r.db.SelectContext(ctx, &out, q); err != nil {
		return nil, apperrors.WrapTransient(err, apperrors.CodeEventNotFound, "list purge candidates")
	}
	return out, nil
}

// Delete removes an event and its link rows (cascade via FK).
func (r *EventRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return apperrors.WrapTransient(err, apperrors.CodeEventNotFound, "delete event")
	}
	return nil
}

// MarkPublished records the Markdown path written for an event.
func (r *EventRepository) MarkPublished(ctx context.Context, id, mdPath string) error {
	const q = `UPDATE events SET published_md_path = $2, updated_at = now() WHERE id = $1`
	_, err := r.db.ExecContext(ctx, q, id, mdPath)
	if err != nil {
		return apperrors.WrapTransient(err, apperrors.CodePublishWriteFailed, "mark event published")
	}
	return nil
}
