package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"html"
	"net/url"
	"regexp"
	"sort"
	"strings"
)

// trackingParamPrefixes strips common campaign/tracking query parameters
// during URL canonicalization (spec.md §4.C step 3).
var trackingParamPrefixes = []string{"utm_", "fbclid", "gclid", "mc_cid", "mc_eid", "ref", "ref_src", "spm"}

// CanonicalizeURL lowercases the host, strips the fragment, and removes
// tracking query parameters, producing a stable identity for an article URL.
func CanonicalizeURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	if u.RawQuery != "" {
		q := u.Query()
		for key := range q {
			if isTrackingParam(key) {
				q.Del(key)
			}
		}
		u.RawQuery = q.Encode()
	}

	u.Path = strings.TrimSuffix(u.Path, "/")
	return u.String(), nil
}

func isTrackingParam(key string) bool {
	lower := strings.ToLower(key)
	for _, prefix := range trackingParamPrefixes {
		if lower == prefix || strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// StableID hashes the canonical URL with the source ID, giving each Article
// a per-source stable identifier independent of upstream item IDs
// (spec.md §4.C step 3, §9 Open Questions).
func StableID(canonicalURL, sourceID string) string {
	sum := sha256.Sum256([]byte(sourceID + "|" + canonicalURL))
	return hex.EncodeToString(sum[:])
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// ContentFingerprint hashes a normalized (lowercased, whitespace-collapsed)
// title+text for non-destructive cross-source duplicate grouping.
func ContentFingerprint(title, text string) string {
	norm := strings.ToLower(title + " " + text)
	norm = whitespaceRun.ReplaceAllString(norm, " ")
	norm = strings.TrimSpace(norm)
	sum := sha256.Sum256([]byte(norm))
	return hex.EncodeToString(sum[:])
}

var htmlTagRe = regexp.MustCompile(`<[^>]*>`)

// StripHTML removes tags and unescapes entities, used to clean titles pulled
// from feed XML that sometimes carries inline markup.
func StripHTML(s string) string {
	stripped := htmlTagRe.ReplaceAllString(s, "")
	return strings.TrimSpace(html.UnescapeString(stripped))
}

// cveIDRe matches CVE identifiers case-insensitively per spec.md §4.C step 6.
var cveIDRe = regexp.MustCompile(`(?i)CVE-\d{4}-\d{4,7}`)

// ExtractCVEIDs finds every distinct, uppercased CVE ID mentioned in text,
// in sorted order.
func ExtractCVEIDs(text string) []string {
	matches := cveIDRe.FindAllString(text, -1)
	seen := make(map[string]bool, len(matches))
	var out []string
	for _, m := range matches {
		id := strings.ToUpper(m)
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
