package cvesync

import (
	"context"
	"fmt"
	"time"

	"sempervigil.dev/sempervigil/internal/domain"
	"sempervigil.dev/sempervigil/internal/pkg/logger"
	"sempervigil.dev/sempervigil/internal/repository"

	"go.uber.org/zap"
)

// Syncer drives the periodic cve_sync handler body (spec.md §4.D steps
// 1-7): canonicalize, hash-compare, upsert, journal changes, extract
// vendors/products.
type Syncer struct {
	client   *Client
	cves     *repository.CVERepository
	vendors  *repository.VendorRepository
	preferV4 bool
}

// NewSyncer builds a Syncer over the shared NVD client and repositories.
func NewSyncer(client *Client, cves *repository.CVERepository, vendors *repository.VendorRepository, preferV4 bool) *Syncer {
	return &Syncer{client: client, cves: cves, vendors: vendors, preferV4: preferV4}
}

// Result summarizes one sync pass.
type Result struct {
	Processed int
	Changed   int
	Inserted  int
}

// Run pages through every CVE modified at or after `since`, upserting each
// and journaling a CveChange row whenever its content hash differs from
// what is stored (spec.md §4.D: "all per-CVE work is idempotent; re-running
// the sync with the same upstream data is a no-op").
func (s *Syncer) Run(ctx context.Context, since time.Time) (*Result, error) {
	result := &Result{}

	err := s.client.FetchModifiedSince(ctx, since, func(page []nvdCVE) error {
		for _, rec := range page {
			if err := s.processOne(ctx, rec, result); err != nil {
				logger.Error("cve sync: failed to process record", zap.String("cve_id", rec.ID), zap.Error(err))
				continue
			}
			result.Processed++
		}
		return nil
	})
	if err != nil {
		return result, err
	}
	return result, nil
}

func (s *Syncer) processOne(ctx context.Context, rec nvdCVE, result *Result) error {
	cve := Canonicalize(rec)
	cve.SelectPreferred(s.preferV4)
	newHash := cve.SnapshotHash()
	cve.ContentHash = newHash

	oldHash, err := s.cves.ContentHash(ctx, cve.CveID)
	if err != nil {
		return err
	}

	isNew := oldHash == ""
	changed := isNew || oldHash != newHash

	var previous *domain.CVE
	if !isNew && changed {
		previous, err = s.cves.GetByID(ctx, cve.CveID)
		if err != nil {
			return err
		}
	}

	if err := s.cves.Upsert(ctx, cve); err != nil {
		return err
	}

	if isNew {
		result.Inserted++
	} else if changed {
		result.Changed++
		for _, ch := range diffChanges(previous, cve) {
			if err := s.cves.InsertChange(ctx, ch); err != nil {
				return err
			}
		}
	}

	for _, ap := range cve.AffectedProducts {
		vendorNorm := normalizeKey(ap.Vendor)
		productNorm := normalizeKey(ap.Product)
		if vendorNorm == "" || productNorm == "" {
			continue
		}
		if err := s.vendors.UpsertVendor(ctx, &domain.Vendor{VendorNorm: vendorNorm, DisplayName: ap.Vendor}); err != nil {
			return err
		}
		key := domain.ProductKeyOf(vendorNorm, productNorm)
		if err := s.vendors.UpsertProduct(ctx, &domain.Product{
			ProductKey:  key,
			VendorNorm:  vendorNorm,
			ProductNorm: productNorm,
			DisplayName: ap.Product,
		}); err != nil {
			return err
		}
	}

	return nil
}

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

// diffChanges computes the CveChange rows for a transition from `prev` to
// `next` (spec.md §4.D step 4): severity-upgrade, score-change,
// metrics-change, preferred-version-change.
func diffChanges(prev, next *domain.CVE) []*domain.CveChange {
	var changes []*domain.CveChange
	now := time.Now().UTC()

	if prev.PreferredCVSSVersion != next.PreferredCVSSVersion {
		changes = append(changes, &domain.CveChange{
			CveID: next.CveID, ChangeAt: now, ChangeType: domain.CveChangePreferredVersionChange,
			FromValue: string(prev.PreferredCVSSVersion), ToValue: string(next.PreferredCVSSVersion),
		})
	}

	prevSev := severityOf(prev.PreferredBaseSeverity)
	nextSev := severityOf(next.PreferredBaseSeverity)
	if prevSev != nextSev && domain.MaxSeverity(prevSev, nextSev) == nextSev && nextSev != domain.SeverityNone {
		changes = append(changes, &domain.CveChange{
			CveID: next.CveID, ChangeAt: now, ChangeType: domain.CveChangeSeverityUpgrade,
			FromValue: string(prevSev), ToValue: string(nextSev),
		})
	}

	prevScore := scoreOf(prev.PreferredBaseScore)
	nextScore := scoreOf(next.PreferredBaseScore)
	if prevScore != nextScore {
		changes = append(changes, &domain.CveChange{
			CveID: next.CveID, ChangeAt: now, ChangeType: domain.CveChangeScoreChange,
			FromValue: fmt.Sprintf("%.1f", prevScore), ToValue: fmt.Sprintf("%.1f", nextScore),
		})
	}

	if len(changes) == 0 {
		changes = append(changes, &domain.CveChange{
			CveID: next.CveID, ChangeAt: now, ChangeType: domain.CveChangeMetricsChange,
		})
	}

	return changes
}

func severityOf(s *domain.Severity) domain.Severity {
	if s == nil {
		return domain.SeverityNone
	}
	return *s
}

func scoreOf(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
