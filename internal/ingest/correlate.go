package ingest

import (
	"context"
	"time"

	"sempervigil.dev/sempervigil/internal/domain"
)

// correlator owns the CVE-stub-upsert + article_cves-link half of
// spec.md §4.C step 6, kept separate from the parse/filter stages so the
// test-source operation (which never persists) can skip it cleanly.
type correlator struct {
	cves     cveStore
	articles articleLinker
}

// cveStore is the minimal CVE persistence surface correlate.go needs,
// satisfied by *repository.CVERepository.
type cveStore interface {
	GetByID(ctx context.Context, cveID string) (*domain.CVE, error)
	Upsert(ctx context.Context, c *domain.CVE) error
}

// articleLinker is the minimal article_cves persistence surface,
// satisfied by *repository.ArticleRepository.
type articleLinker interface {
	UpsertCVELink(ctx context.Context, link *domain.ArticleCVELink) error
}

// correlateExplicitCVEs extracts CVE IDs from an article's title+content,
// upserts a minimal stub row for any CVE not yet known, and idempotently
// links the article to each (spec.md §4.C step 6).
func (c *correlator) correlateExplicitCVEs(ctx context.Context, articleID, title, text string) ([]string, error) {
	ids := ExtractCVEIDs(title + " " + text)
	for _, cveID := range ids {
		if _, err := c.cves.GetByID(ctx, cveID); err != nil {
			stub := &domain.CVE{
				CveID:       cveID,
				LastSeenAt:  time.Now().UTC(),
				RawUpstream: domain.JSONMap{},
			}
			if err := c.cves.Upsert(ctx, stub); err != nil {
				return nil, err
			}
		}
		link := &domain.ArticleCVELink{
			ArticleID:      articleID,
			CveID:          cveID,
			Confidence:     1.0,
			ConfidenceBand: domain.ConfidenceBandLinked,
			Reasons:        domain.StringSlice{domain.ReasonExplicitCVEMention},
			EvidenceJSON:   domain.JSONMap{"rule": domain.ReasonExplicitCVEMention},
		}
		if err := c.articles.UpsertCVELink(ctx, link); err != nil {
			return nil, err
		}
	}
	return ids, nil
}
