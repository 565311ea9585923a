package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sempervigil.dev/sempervigil/internal/domain"
)

const sampleRSS = `<?xml version="1.0"?>
<rss version="2.0"><channel>
<item>
  <title>CVE-2024-1234 disclosed in libfoo</title>
  <link>https://example.com/a?utm_source=rss</link>
  <author>jdoe@example.com</author>
  <pubDate>Mon, 02 Jan 2006 15:04:05 -0700</pubDate>
  <description>&lt;p&gt;Details about the flaw.&lt;/p&gt;</description>
</item>
</channel></rss>`

const sampleAtom = `<?xml version="1.0"?>
<feed xmlns="http://www.w3.org/2005/Atom">
<entry>
  <title>Security bulletin</title>
  <link rel="alternate" href="https://example.com/b"/>
  <author><name>Security Team</name></author>
  <published>2024-01-02T15:04:05Z</published>
  <summary>Summary text</summary>
</entry>
</feed>`

const sampleJSONFeed = `{"version":"https://jsonfeed.org/version/1.1","items":[
  {"title":"Advisory","url":"https://example.com/c","date_published":"2024-01-02T15:04:05Z","content_text":"plain text body"}
]}`

func TestParseFeed_RSS(t *testing.T) {
	items, err := ParseFeed(domain.SourceKindRSS, "", []byte(sampleRSS))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "CVE-2024-1234 disclosed in libfoo", items[0].Title)
	assert.Equal(t, "https://example.com/a?utm_source=rss", items[0].URL)
	assert.Equal(t, "jdoe@example.com", items[0].Author)
	require.NotNil(t, items[0].PublishedAt)
}

func TestParseFeed_Atom(t *testing.T) {
	items, err := ParseFeed(domain.SourceKindAtom, "", []byte(sampleAtom))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Security bulletin", items[0].Title)
	assert.Equal(t, "https://example.com/b", items[0].URL)
	assert.Equal(t, "Security Team", items[0].Author)
}

func TestParseFeed_JSONFeed(t *testing.T) {
	items, err := ParseFeed(domain.SourceKindJSONFeed, "", []byte(sampleJSONFeed))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Advisory", items[0].Title)
	assert.Equal(t, "plain text body", items[0].ContentText)
}

func TestParseFeed_HTMLRequiresSelector(t *testing.T) {
	_, err := ParseFeed(domain.SourceKindHTML, "", []byte("<html></html>"))
	assert.Error(t, err)
}

func TestParseFeed_HTML(t *testing.T) {
	body := `<html><body><div class="post"><a href="https://example.com/d">Title text</a></div></body></html>`
	items, err := ParseFeed(domain.SourceKindHTML, "div.post", []byte(body))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "https://example.com/d", items[0].URL)
}
