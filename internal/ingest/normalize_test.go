package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalizeURL_StripsTrackingParamsAndLowercasesHost(t *testing.T) {
	got, err := CanonicalizeURL("https://Example.COM/post/?utm_source=rss&id=42#section")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/post?id=42", got)
}

func TestStableID_DeterministicPerSource(t *testing.T) {
	a := StableID("https://example.com/x", "source-1")
	b := StableID("https://example.com/x", "source-1")
	c := StableID("https://example.com/x", "source-2")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestContentFingerprint_IgnoresCaseAndWhitespace(t *testing.T) {
	a := ContentFingerprint("Hello   World", "body text")
	b := ContentFingerprint("hello world", "body   text")
	assert.Equal(t, a, b)
}

func TestStripHTML(t *testing.T) {
	got := StripHTML("<b>Critical</b> &amp; urgent")
	assert.Equal(t, "Critical & urgent", got)
}

func TestExtractCVEIDs_UppercasesAndDedupes(t *testing.T) {
	ids := ExtractCVEIDs("Affects cve-2024-1234 and CVE-2024-1234, also CVE-2023-99999")
	assert.Equal(t, []string{"CVE-2023-99999", "CVE-2024-1234"}, ids)
}
