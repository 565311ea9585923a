package cvesync

import (
	"net/url"
	"sort"
	"strings"
	"time"

	"sempervigil.dev/sempervigil/internal/domain"
)

// Canonicalize converts one upstream NVD record into the internal CVE shape
// (spec.md §4.D step 1), without yet selecting the preferred CVSS version —
// that is SelectPreferred's job, run by the caller once against the
// configured prefer_v4 flag.
func Canonicalize(rec nvdCVE) *domain.CVE {
	c := &domain.CVE{
		CveID:           rec.ID,
		PublishedAt:     parseNVDTime(rec.Published),
		LastModifiedAt:  parseNVDTime(rec.LastModified),
		LastSeenAt:      time.Now().UTC(),
		DescriptionText: pickEnglishDescription(rec.Descriptions),
	}

	if len(rec.Metrics.CvssMetricV31) > 0 {
		m := rec.Metrics.CvssMetricV31[0].CvssData
		c.MetricsV31 = &domain.CVSSMetrics{
			BaseScore:    m.BaseScore,
			BaseSeverity: domain.Severity(strings.ToUpper(m.BaseSeverity)),
			VectorString: m.VectorString,
		}
	}
	if len(rec.Metrics.CvssMetricV40) > 0 {
		m := rec.Metrics.CvssMetricV40[0].CvssData
		c.MetricsV40 = &domain.CVSSMetrics{
			BaseScore:    m.BaseScore,
			BaseSeverity: domain.Severity(strings.ToUpper(m.BaseSeverity)),
			VectorString: m.VectorString,
		}
	}

	c.AffectedProducts, c.AffectedCPEs = extractProducts(rec.Configurations)
	c.ReferenceDomains = extractReferenceDomains(rec.References)

	return c
}

func pickEnglishDescription(descs []nvdDescription) string {
	for _, d := range descs {
		if d.Lang == "en" {
			return d.Value
		}
	}
	if len(descs) > 0 {
		return descs[0].Value
	}
	return ""
}

func parseNVDTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02T15:04:05.000", s); err == nil {
		return t
	}
	return time.Time{}
}

// extractProducts parses CPE 2.3 URIs ("cpe:2.3:a:vendor:product:version:...")
// into AffectedProduct entries and the raw CPE string list.
func extractProducts(configs []nvdConfiguration) ([]domain.AffectedProduct, domain.StringSlice) {
	seen := make(map[string]*domain.AffectedProduct)
	var cpes domain.StringSlice

	for _, cfg := range configs {
		for _, node := range cfg.Nodes {
			for _, match := range node.CpeMatch {
				cpes = append(cpes, match.Criteria)
				vendor, product, version := parseCPE(match.Criteria)
				if vendor == "" || product == "" {
					continue
				}
				key := vendor + "/" + product
				ap, ok := seen[key]
				if !ok {
					ap = &domain.AffectedProduct{Vendor: vendor, Product: product}
					seen[key] = ap
				}
				if version != "" && version != "*" && !containsStr(ap.Versions, version) {
					ap.Versions = append(ap.Versions, version)
				}
			}
		}
	}

	out := make([]domain.AffectedProduct, 0, len(seen))
	for _, ap := range seen {
		out = append(out, *ap)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Vendor != out[j].Vendor {
			return out[i].Vendor < out[j].Vendor
		}
		return out[i].Product < out[j].Product
	})
	return out, cpes
}

// parseCPE splits a CPE 2.3 URI into (vendor, product, version). Malformed
// entries return empty strings, which the caller skips.
func parseCPE(cpe string) (vendor, product, version string) {
	parts := strings.Split(cpe, ":")
	// cpe:2.3:part:vendor:product:version:update:edition:language:...
	if len(parts) < 6 {
		return "", "", ""
	}
	return parts[3], parts[4], parts[5]
}

func containsStr(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// extractReferenceDomains returns the sorted, deduplicated set of reference
// URL hosts (spec.md §4.D step 6).
func extractReferenceDomains(refs []nvdReference) domain.StringSlice {
	seen := make(map[string]bool)
	var out domain.StringSlice
	for _, r := range refs {
		u, err := url.Parse(r.URL)
		if err != nil || u.Host == "" {
			continue
		}
		host := strings.ToLower(u.Host)
		if !seen[host] {
			seen[host] = true
			out = append(out, host)
		}
	}
	sort.Strings(out)
	return out
}
