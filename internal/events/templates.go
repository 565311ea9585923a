package events

import (
	"fmt"
	"sort"
	"strings"

	"sempervigil.dev/sempervigil/internal/domain"
)

// memberCVE is the minimal view of a clustered CVE the templating helpers
// need; built up by Rebuilder.Run as it walks candidates.
type memberCVE struct {
	cve      *domain.CVE
	vendor   string
	product  string
}

// clusterTitle composes the deterministic title for a product cluster event
// (spec.md §4.D: "<Vendor Product> vulnerabilities, <date>").
func clusterTitle(vendorDisplay, productDisplay string, windowEnd string) string {
	return fmt.Sprintf("%s %s vulnerabilities, %s", vendorDisplay, productDisplay, windowEnd)
}

// loneCVETitle composes the title for a lone-CVE event: the CVE ID plus a
// short clipped description.
func loneCVETitle(cve *domain.CVE) string {
	desc := clip(cve.DescriptionText, 96)
	if desc == "" {
		return cve.CveID
	}
	return fmt.Sprintf("%s: %s", cve.CveID, desc)
}

// clusterSummary deterministically composes the body for a product cluster
// event: affected products, member CVEs with scores, reference domains.
func clusterSummary(members []memberCVE) string {
	var b strings.Builder

	productSet := map[string]bool{}
	var products []string
	for _, m := range members {
		label := strings.TrimSpace(m.vendor + " " + m.product)
		if label != "" && !productSet[label] {
			productSet[label] = true
			products = append(products, label)
		}
	}
	sort.Strings(products)
	if len(products) > 0 {
		b.WriteString("Affected products: ")
		b.WriteString(strings.Join(products, ", "))
		b.WriteString(".\n")
	}

	cves := make([]*domain.CVE, 0, len(members))
	for _, m := range members {
		cves = append(cves, m.cve)
	}
	sort.Slice(cves, func(i, j int) bool { return cves[i].CveID < cves[j].CveID })

	b.WriteString("CVEs:\n")
	for _, c := range cves {
		b.WriteString(fmt.Sprintf("- %s (%s)\n", c.CveID, severityLabel(c)))
	}

	domains := referenceDomainSet(cves)
	if len(domains) > 0 {
		b.WriteString("References: ")
		b.WriteString(strings.Join(domains, ", "))
	}

	return strings.TrimSpace(b.String())
}

// loneCVESummary composes the summary for a single-CVE event.
func loneCVESummary(cve *domain.CVE) string {
	var b strings.Builder
	b.WriteString(clip(cve.DescriptionText, 480))
	b.WriteString(fmt.Sprintf("\n\nSeverity: %s.", severityLabel(cve)))
	domains := referenceDomainSet([]*domain.CVE{cve})
	if len(domains) > 0 {
		b.WriteString(" References: ")
		b.WriteString(strings.Join(domains, ", "))
	}
	return strings.TrimSpace(b.String())
}

func severityLabel(c *domain.CVE) string {
	if c.PreferredBaseSeverity == nil {
		return "severity unknown"
	}
	if c.PreferredBaseScore != nil {
		return fmt.Sprintf("%s, %.1f", string(*c.PreferredBaseSeverity), *c.PreferredBaseScore)
	}
	return string(*c.PreferredBaseSeverity)
}

func referenceDomainSet(cves []*domain.CVE) []string {
	seen := map[string]bool{}
	var out []string
	for _, c := range cves {
		for _, d := range c.ReferenceDomains {
			if !seen[d] {
				seen[d] = true
				out = append(out, d)
			}
		}
	}
	sort.Strings(out)
	return out
}

// rollupSeverity returns the max severity over a set of CVEs (spec.md §4.D
// step 4: "severity rolls up as the max over member CVEs").
func rollupSeverity(cves []*domain.CVE) domain.Severity {
	sev := domain.SeverityNone
	for _, c := range cves {
		if c.PreferredBaseSeverity != nil {
			sev = domain.MaxSeverity(sev, *c.PreferredBaseSeverity)
		}
	}
	return sev
}

func clip(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return strings.TrimSpace(s[:n]) + "…"
}
