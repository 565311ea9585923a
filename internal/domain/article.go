package domain

import "time"

// Article is one ingested source item, normalized to a canonical shape.
//
// Per spec.md §9 Open Questions, uniqueness is on (source_id, stable_id) —
// a per-source stable identifier derived from the upstream item — with a
// separate ContentFingerprint used only for non-destructive cross-source
// duplicate grouping.
type Article struct {
	ID                string     `db:"id" json:"id"`
	SourceID          string     `db:"source_id" json:"source_id"`
	StableID          string     `db:"stable_id" json:"-"`
	ContentFingerprint string    `db:"content_fingerprint" json:"-"`

	Title              string     `db:"title" json:"title"`
	OriginalURL        string     `db:"original_url" json:"original_url"`
	CanonicalURL       string     `db:"canonical_url" json:"canonical_url"`
	PublishedAt        *time.Time `db:"published_at" json:"published_at,omitempty"`
	IngestedAt         time.Time  `db:"ingested_at" json:"ingested_at"`
	Author             string     `db:"author" json:"author,omitempty"`

	ContentText          string     `db:"content_text" json:"content_text,omitempty"`
	ContentHTMLExcerpt   string     `db:"content_html_excerpt" json:"content_html_excerpt,omitempty"`
	ContentFetchedAt     *time.Time `db:"content_fetched_at" json:"content_fetched_at,omitempty"`
	ContentError         string     `db:"content_error" json:"content_error,omitempty"`

	SummaryLLM   string `db:"summary_llm" json:"summary_llm,omitempty"`
	SummaryError string `db:"summary_error" json:"summary_error,omitempty"`

	Tags            StringSlice `db:"tags" json:"tags,omitempty"`
	PublishedMDPath string      `db:"published_md_path" json:"published_md_path,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ArticleCVELink is a row in article_cves: an explicit or inferred link
// between an Article and a CVE, carrying the confidence/evidence the
// correlation engine (internal/events) later consumes.
type ArticleCVELink struct {
	ArticleID      string      `db:"article_id" json:"article_id"`
	CveID          string      `db:"cve_id" json:"cve_id"`
	Confidence     float64     `db:"confidence" json:"confidence"`
	ConfidenceBand string      `db:"confidence_band" json:"confidence_band"`
	Reasons        StringSlice `db:"reasons" json:"reasons,omitempty"`
	EvidenceJSON   JSONMap     `db:"evidence_json" json:"evidence_json,omitempty"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at"`
}

// Confidence bands used consistently across article_cves and event links.
const (
	ConfidenceBandLinked   = "linked"
	ConfidenceBandLikely   = "likely"
	ConfidenceBandPossible = "possible"
)

// Rule identifiers recorded in ArticleCVELink.Reasons / event link Reasons.
const (
	ReasonExplicitCVEMention = "rule.cve.explicit"
	ReasonProductCluster     = "rule.cluster.product"
	ReasonLoneCVE            = "rule.cluster.lone_cve"
)
