package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"sempervigil.dev/sempervigil/internal/domain"
)

func TestClusterTitle(t *testing.T) {
	title := clusterTitle("Acme", "Widget", "2026-07-31")
	assert.Equal(t, "Acme Widget vulnerabilities, 2026-07-31", title)
}

func TestLoneCVETitle_ClipsLongDescription(t *testing.T) {
	cve := &domain.CVE{CveID: "CVE-2024-0001", DescriptionText: "a very long description that goes on and on and on and on and on and on and on and on and on and on and on"}
	title := loneCVETitle(cve)
	assert.Contains(t, title, "CVE-2024-0001: ")
	assert.LessOrEqual(t, len(title), len("CVE-2024-0001: ")+96+len("…"))
}

func TestRollupSeverity_MaxOverMembers(t *testing.T) {
	low := domain.SeverityLow
	crit := domain.SeverityCritical
	cves := []*domain.CVE{
		{CveID: "CVE-1", PreferredBaseSeverity: &low},
		{CveID: "CVE-2", PreferredBaseSeverity: &crit},
	}
	assert.Equal(t, domain.SeverityCritical, rollupSeverity(cves))
}

func TestNormalizeKey(t *testing.T) {
	assert.Equal(t, "acme-widget", normalizeKey("Acme_Widget"))
	assert.Equal(t, "", normalizeKey(""))
}

func TestClusterSummary_ListsProductsAndCVEs(t *testing.T) {
	high := domain.SeverityHigh
	score := 8.1
	cve := &domain.CVE{CveID: "CVE-2024-0099", PreferredBaseSeverity: &high, PreferredBaseScore: &score, ReferenceDomains: domain.StringSlice{"example.com"}}
	members := []memberCVE{{cve: cve, vendor: "Acme", product: "Widget"}}
	summary := clusterSummary(members)
	assert.Contains(t, summary, "Acme Widget")
	assert.Contains(t, summary, "CVE-2024-0099")
	assert.Contains(t, summary, "example.com")
}

func TestDomainIsPurgeable_RespectsManualKind(t *testing.T) {
	ev := &domain.Event{Kind: domain.EventKindManual, Severity: domain.SeverityLow}
	assert.False(t, ev.IsPurgeable(0, domain.SeverityHigh))
}

func TestWindowArithmetic(t *testing.T) {
	start := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(14 * 24 * time.Hour)
	assert.Equal(t, "2026-07-15", end.Format("2006-01-02"))
}
