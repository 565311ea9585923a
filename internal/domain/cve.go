package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"
)

// CVSSVersion is the preferred CVSS version selected for a CVE, per the
// "prefer_v4" runtime config knob (spec.md §4.D step 1).
type CVSSVersion string

const (
	CVSSVersion40   CVSSVersion = "4.0"
	CVSSVersion31   CVSSVersion = "3.1"
	CVSSVersionNone CVSSVersion = "none"
)

// Severity is the normalized CVSS qualitative severity.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
	SeverityNone     Severity = "NONE"
)

// severityRank orders severities for max-over-members computations (event.go's
// IsPurgeable and internal/events).
var severityRank = map[Severity]int{
	SeverityNone:     0,
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// MaxSeverity returns whichever of a, b ranks higher. Unknown/empty values
// rank below SeverityNone.
func MaxSeverity(a, b Severity) Severity {
	ra, okA := severityRank[a]
	rb, okB := severityRank[b]
	if !okA && !okB {
		return SeverityNone
	}
	if !okA {
		ra = -1
	}
	if !okB {
		rb = -1
	}
	if rb > ra {
		return b
	}
	return a
}

// CVSSMetrics holds one version's metric blob as received from the upstream
// authority, kept as opaque JSON beyond the fields the correlation engine
// and dashboards actually read (spec.md §9: "a single untyped-JSON escape
// hatch is acceptable for the raw upstream CVE payload").
type CVSSMetrics struct {
	BaseScore    float64 `json:"base_score"`
	BaseSeverity Severity `json:"base_severity"`
	VectorString string  `json:"vector_string"`
	Raw          JSONMap `json:"raw,omitempty"`
}

// AffectedProduct is one vendor/product/version range a CVE's configurations
// reference.
type AffectedProduct struct {
	Vendor   string   `json:"vendor"`
	Product  string   `json:"product"`
	Versions []string `json:"versions,omitempty"`
}

// CVE is a vulnerability identifier record with versioned CVSS metrics.
type CVE struct {
	CveID            string     `db:"cve_id" json:"cve_id"`
	PublishedAt      time.Time  `db:"published_at" json:"published_at"`
	LastModifiedAt   time.Time  `db:"last_modified_at" json:"last_modified_at"`
	LastSeenAt       time.Time  `db:"last_seen_at" json:"last_seen_at"`
	DescriptionText  string     `db:"description_text" json:"description_text"`

	PreferredCVSSVersion  CVSSVersion `db:"preferred_cvss_version" json:"preferred_cvss_version"`
	PreferredBaseScore    *float64    `db:"preferred_base_score" json:"preferred_base_score,omitempty"`
	PreferredBaseSeverity *Severity   `db:"preferred_base_severity" json:"preferred_base_severity,omitempty"`
	PreferredVector       *string     `db:"preferred_vector" json:"preferred_vector,omitempty"`

	MetricsV31 *CVSSMetrics `db:"metrics_v31" json:"metrics_v31,omitempty"`
	MetricsV40 *CVSSMetrics `db:"metrics_v40" json:"metrics_v40,omitempty"`

	AffectedProducts []AffectedProduct `db:"affected_products" json:"affected_products,omitempty"`
	AffectedCPEs     StringSlice       `db:"affected_cpes" json:"affected_cpes,omitempty"`
	ReferenceDomains StringSlice       `db:"reference_domains" json:"reference_domains,omitempty"`

	// RawUpstream is the untyped escape hatch: the full upstream payload for
	// the CVE, kept for audit purposes only.
	RawUpstream JSONMap `db:"raw_upstream" json:"-"`

	ContentHash string `db:"content_hash" json:"-"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// SnapshotHash computes a deterministic content hash over the fields that
// matter for change detection (spec.md §4.D step 2-3): preferred metrics,
// description, products, and references. Two CVE snapshots with identical
// hashes are considered unchanged, and the change journal (CveChange) is
// emitted iff this hash differs from the stored one (spec.md §3 CveChange
// invariant).
func (c *CVE) SnapshotHash() string {
	type hashable struct {
		PreferredVersion CVSSVersion       `json:"preferred_cvss_version"`
		PreferredScore   *float64          `json:"preferred_base_score"`
		PreferredSeverity *Severity        `json:"preferred_base_severity"`
		PreferredVector  *string           `json:"preferred_vector"`
		Description      string            `json:"description_text"`
		Products         []AffectedProduct `json:"affected_products"`
		References       []string          `json:"reference_domains"`
	}

	products := make([]AffectedProduct, len(c.AffectedProducts))
	copy(products, c.AffectedProducts)
	sort.Slice(products, func(i, j int) bool {
		if products[i].Vendor != products[j].Vendor {
			return products[i].Vendor < products[j].Vendor
		}
		return products[i].Product < products[j].Product
	})

	refs := make([]string, len(c.ReferenceDomains))
	copy(refs, c.ReferenceDomains)
	sort.Strings(refs)

	h := hashable{
		PreferredVersion:  c.PreferredCVSSVersion,
		PreferredScore:    c.PreferredBaseScore,
		PreferredSeverity: c.PreferredBaseSeverity,
		PreferredVector:   c.PreferredVector,
		Description:       c.DescriptionText,
		Products:          products,
		References:        refs,
	}
	b, _ := json.Marshal(h)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// SelectPreferred chooses preferred_cvss_version/score/severity/vector given
// the two metric slots and the prefer_v4 runtime-config flag (spec.md §4.D
// step 1 and the Testable Properties "Preferred selection" law).
func (c *CVE) SelectPreferred(preferV4 bool) {
	switch {
	case c.MetricsV40 != nil && preferV4:
		c.setPreferred(CVSSVersion40, c.MetricsV40)
	case c.MetricsV31 != nil:
		c.setPreferred(CVSSVersion31, c.MetricsV31)
	case c.MetricsV40 != nil:
		c.setPreferred(CVSSVersion40, c.MetricsV40)
	default:
		c.PreferredCVSSVersion = CVSSVersionNone
		c.PreferredBaseScore = nil
		c.PreferredBaseSeverity = nil
		c.PreferredVector = nil
	}
}

func (c *CVE) setPreferred(version CVSSVersion, m *CVSSMetrics) {
	c.PreferredCVSSVersion = version
	score := m.BaseScore
	sev := m.BaseSeverity
	vec := m.VectorString
	c.PreferredBaseScore = &score
	c.PreferredBaseSeverity = &sev
	c.PreferredVector = &vec
}

// CveChangeType enumerates the kinds of diffs the sync journals.
type CveChangeType string

const (
	CveChangeSeverityUpgrade        CveChangeType = "severity_upgrade"
	CveChangeScoreChange            CveChangeType = "score_change"
	CveChangeMetricsChange          CveChangeType = "metrics_change"
	CveChangePreferredVersionChange CveChangeType = "preferred_version_changed"
)

// CveChange is an append-only journal row emitted whenever a CVE's snapshot
// hash changes (spec.md §3).
type CveChange struct {
	ID           int64         `db:"id" json:"id"`
	CveID        string        `db:"cve_id" json:"cve_id"`
	ChangeAt     time.Time     `db:"change_at" json:"change_at"`
	ChangeType   CveChangeType `db:"change_type" json:"change_type"`
	FromValue    string        `db:"from_value" json:"from_value,omitempty"`
	ToValue      string        `db:"to_value" json:"to_value,omitempty"`
	MetricDiff   JSONMap       `db:"metric_diff" json:"metric_diff,omitempty"`
}

// Vendor is a normalized vendor entity.
type Vendor struct {
	VendorNorm  string    `db:"vendor_norm" json:"vendor_norm"`
	DisplayName string    `db:"display_name" json:"display_name"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Product is a normalized product entity, keyed by vendor_norm/product_norm.
type Product struct {
	ProductKey  string    `db:"product_key" json:"product_key"`
	VendorNorm  string    `db:"vendor_norm" json:"vendor_norm"`
	ProductNorm string    `db:"product_norm" json:"product_norm"`
	DisplayName string    `db:"display_name" json:"display_name"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// ProductKeyOf builds the stable vendor_norm/product_norm key.
func ProductKeyOf(vendorNorm, productNorm string) string {
	return vendorNorm + "/" + productNorm
}
