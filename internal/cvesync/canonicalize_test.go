package cvesync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sempervigil.dev/sempervigil/internal/domain"
)

func TestCanonicalize_PopulatesPreferredInputsAndProducts(t *testing.T) {
	rec := nvdCVE{
		ID:           "CVE-2024-0001",
		Published:    "2024-01-01T00:00:00.000",
		LastModified: "2024-01-02T00:00:00.000",
		Descriptions: []nvdDescription{{Lang: "es", Value: "descripcion"}, {Lang: "en", Value: "english desc"}},
		Metrics: nvdMetrics{
			CvssMetricV31: []nvdCvssMetricV31{{CvssData: struct {
				BaseScore    float64 `json:"baseScore"`
				BaseSeverity string  `json:"baseSeverity"`
				VectorString string  `json:"vectorString"`
			}{BaseScore: 7.5, BaseSeverity: "high", VectorString: "AV:N"}}},
		},
		Configurations: []nvdConfiguration{{
			Nodes: []nvdNode{{CpeMatch: []nvdCPEMatch{
				{Criteria: "cpe:2.3:a:Acme:Widget:1.2.3:*:*:*:*:*:*:*"},
			}}},
		}},
		References: []nvdReference{{URL: "https://example.com/advisory"}},
	}

	cve := Canonicalize(rec)
	assert.Equal(t, "english desc", cve.DescriptionText)
	require.NotNil(t, cve.MetricsV31)
	assert.Equal(t, domain.Severity("HIGH"), cve.MetricsV31.BaseSeverity)
	require.Len(t, cve.AffectedProducts, 1)
	assert.Equal(t, "Acme", cve.AffectedProducts[0].Vendor)
	assert.Equal(t, "Widget", cve.AffectedProducts[0].Product)
	assert.Contains(t, cve.ReferenceDomains, "example.com")

	cve.SelectPreferred(false)
	assert.Equal(t, domain.CVSSVersion31, cve.PreferredCVSSVersion)
}

func TestDiffChanges_DetectsSeverityUpgrade(t *testing.T) {
	low := domain.SeverityLow
	high := domain.SeverityHigh
	prev := &domain.CVE{CveID: "CVE-2024-0002", PreferredBaseSeverity: &low}
	next := &domain.CVE{CveID: "CVE-2024-0002", PreferredBaseSeverity: &high}

	changes := diffChanges(prev, next)
	found := false
	for _, c := range changes {
		if c.ChangeType == domain.CveChangeSeverityUpgrade {
			found = true
			assert.Equal(t, "LOW", c.FromValue)
			assert.Equal(t, "HIGH", c.ToValue)
		}
	}
	assert.True(t, found)
}

func TestNormalizeKey(t *testing.T) {
	assert.Equal(t, "acme-widget", normalizeKey("Acme_Widget"))
}
