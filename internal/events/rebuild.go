package events

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"sempervigil.dev/sempervigil/internal/domain"
	apperrors "sempervigil.dev/sempervigil/internal/pkg/errors"
	"sempervigil.dev/sempervigil/internal/repository"
)

// Rebuilder drives the events_rebuild handler body (spec.md §4.D): group
// recently changed CVEs into product clusters within a rolling window,
// fall back to a lone-CVE event when a CVE carries no affected product,
// and roll up confidence/severity/title/summary from the member set.
type Rebuilder struct {
	cves     *repository.CVERepository
	articles *repository.ArticleRepository
	events   *repository.EventRepository
	window   time.Duration
}

// NewRebuilder builds a Rebuilder over the shared repositories, using
// window as the clustering window W (RuntimeConfig.EventClusteringWindow()).
func NewRebuilder(cves *repository.CVERepository, articles *repository.ArticleRepository, events *repository.EventRepository, window time.Duration) *Rebuilder {
	return &Rebuilder{cves: cves, articles: articles, events: events, window: window}
}

// Result summarizes one rebuild pass.
type Result struct {
	CVEsProcessed int
	EventsCreated int
	EventsUpdated int
}

// clusterBuilder accumulates the member CVEs and links for one product-keyed
// cluster event across the full candidate set before a single Upsert.
type clusterBuilder struct {
	eventID        string
	productKey     string
	vendorDisplay  string
	productDisplay string
	windowStart    time.Time
	windowEnd      time.Time
	existingStatus domain.EventStatus
	isNew          bool
	members        []memberCVE
	links          []domain.ArticleCVELink
}

// Run groups every CVE modified at or after `since` into cluster or
// lone-CVE events (spec.md §4.D steps 1-4), writing Event rows and their
// member links. Closed events are never reopened or modified.
func (r *Rebuilder) Run(ctx context.Context, since time.Time) (*Result, error) {
	result := &Result{}
	now := time.Now().UTC()

	candidates, err := r.cves.ListModifiedSince(ctx, since)
	if err != nil {
		return result, err
	}

	clusters := make(map[string]*clusterBuilder)

	for i := range candidates {
		cve := &candidates[i]

		windowStart := cve.PublishedAt
		if windowStart.IsZero() {
			windowStart = cve.LastModifiedAt
		}
		if windowStart.IsZero() {
			windowStart = now
		}
		windowEnd := windowStart.Add(r.window)

		links, err := r.articles.ArticlesForCVE(ctx, cve.CveID)
		if err != nil {
			return result, err
		}

		if len(cve.AffectedProducts) == 0 {
			if err := r.upsertLoneEvent(ctx, cve, links, windowStart, windowEnd, now, result); err != nil {
				return result, err
			}
			result.CVEsProcessed++
			continue
		}

		for _, ap := range cve.AffectedProducts {
			vendorNorm := normalizeKey(ap.Vendor)
			productNorm := normalizeKey(ap.Product)
			if vendorNorm == "" || productNorm == "" {
				continue
			}
			productKey := domain.ProductKeyOf(vendorNorm, productNorm)

			cb, ok := clusters[productKey]
			if !ok {
				existing, err := r.events.FindAutoByProductKey(ctx, productKey, windowStart)
				if err != nil {
					return result, err
				}
				cb = &clusterBuilder{productKey: productKey, vendorDisplay: ap.Vendor, productDisplay: ap.Product}
				if existing != nil {
					cb.eventID = existing.ID
					cb.windowStart = existing.WindowStart
					cb.windowEnd = existing.WindowEnd
					cb.existingStatus = existing.Status
				} else {
					cb.eventID = uuid.NewString()
					cb.windowStart = windowStart
					cb.windowEnd = windowEnd
					cb.isNew = true
				}
				clusters[productKey] = cb
			}
			if windowStart.Before(cb.windowStart) {
				cb.windowStart = windowStart
			}
			if windowEnd.After(cb.windowEnd) {
				cb.windowEnd = windowEnd
			}
			cb.members = append(cb.members, memberCVE{cve: cve, vendor: ap.Vendor, product: ap.Product})
			cb.links = append(cb.links, links...)
		}

		result.CVEsProcessed++
	}

	for _, cb := range clusters {
		if !cb.isNew && cb.existingStatus == domain.EventStatusClosed {
			continue
		}
		status := domain.EventStatusActive
		if !cb.isNew && cb.existingStatus != domain.EventStatusActive && !domain.CanTransition(cb.existingStatus, status) {
			status = cb.existingStatus
		}

		memberCVEs := make([]*domain.CVE, 0, len(cb.members))
		for _, m := range cb.members {
			memberCVEs = append(memberCVEs, m.cve)
		}

		ev := &domain.Event{
			ID:            cb.eventID,
			Kind:          domain.EventKindAuto,
			Status:        status,
			Title:         clusterTitle(cb.vendorDisplay, cb.productDisplay, cb.windowEnd.Format("2006-01-02")),
			Summary:       clusterSummary(cb.members),
			Severity:      rollupSeverity(memberCVEs),
			WindowStart:   cb.windowStart,
			WindowEnd:     cb.windowEnd,
			LastRebuiltAt: now,
		}
		if err := r.events.Upsert(ctx, ev); err != nil {
			return result, err
		}
		if err := r.events.LinkProduct(ctx, ev.ID, cb.productKey); err != nil {
			return result, err
		}
		for _, m := range cb.members {
			if err := r.events.LinkCVE(ctx, ev.ID, m.cve.CveID); err != nil {
				return result, err
			}
		}
		for _, link := range cb.links {
			reasons := append(append(domain.StringSlice{}, link.Reasons...), domain.ReasonProductCluster)
			if err := r.events.LinkArticle(ctx, &domain.EventArticleLink{
				EventID: ev.ID, ArticleID: link.ArticleID,
				Confidence: link.Confidence, ConfidenceBand: link.ConfidenceBand, Reasons: reasons,
			}); err != nil {
				return result, err
			}
		}
		if cb.isNew {
			result.EventsCreated++
		} else {
			result.EventsUpdated++
		}
	}

	return result, nil
}

// upsertLoneEvent handles a CVE with no correlated product: the event key
// is the deterministic "cve:<id>" form so repeated rebuilds always resolve
// to the same row.
func (r *Rebuilder) upsertLoneEvent(ctx context.Context, cve *domain.CVE, links []domain.ArticleCVELink, windowStart, windowEnd, now time.Time, result *Result) error {
	eventID := "cve:" + strings.ToLower(cve.CveID)

	existing, err := r.events.GetByID(ctx, eventID)
	isNew := false
	status := domain.EventStatusActive
	switch {
	case err == nil:
		if existing.Status == domain.EventStatusClosed {
			return nil
		}
		if existing.Status != domain.EventStatusActive && !domain.CanTransition(existing.Status, status) {
			status = existing.Status
		}
		if existing.WindowStart.Before(windowStart) {
			windowStart = existing.WindowStart
		}
		if existing.WindowEnd.After(windowEnd) {
			windowEnd = existing.WindowEnd
		}
	default:
		if ae, ok := apperrors.IsAppError(err); ok && ae.Kind == apperrors.KindNotFound {
			isNew = true
		} else {
			return err
		}
	}

	ev := &domain.Event{
		ID: eventID, Kind: domain.EventKindAuto, Status: status,
		Title: loneCVETitle(cve), Summary: loneCVESummary(cve),
		Severity: rollupSeverity([]*domain.CVE{cve}), WindowStart: windowStart, WindowEnd: windowEnd,
		LastRebuiltAt: now,
	}
	if err := r.events.Upsert(ctx, ev); err != nil {
		return err
	}
	if err := r.events.LinkCVE(ctx, ev.ID, cve.CveID); err != nil {
		return err
	}
	for _, link := range links {
		reasons := append(append(domain.StringSlice{}, link.Reasons...), domain.ReasonLoneCVE)
		if err := r.events.LinkArticle(ctx, &domain.EventArticleLink{
			EventID: ev.ID, ArticleID: link.ArticleID,
			Confidence: link.Confidence, ConfidenceBand: link.ConfidenceBand, Reasons: reasons,
		}); err != nil {
			return err
		}
	}
	if isNew {
		result.EventsCreated++
	} else {
		result.EventsUpdated++
	}
	return nil
}

// normalizeKey lower-cases and strips a vendor/product display name to a
// stable key component, mirroring internal/cvesync's normalization so the
// same vendor/product always resolves to the same product_key.
func normalizeKey(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			out = append(out, r)
		case r >= 'A' && r <= 'Z':
			out = append(out, r+('a'-'A'))
		case r == '_' || r == '-' || r == '.':
			out = append(out, '-')
		}
	}
	return string(out)
}
