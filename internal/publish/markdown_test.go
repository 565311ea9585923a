package publish

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderMarkdown_EmitsFrontMatterDelimiters(t *testing.T) {
	fm := frontMatter{Title: "Widget CVE roundup", Date: "2026-07-31T00:00:00Z", Tags: []string{"acme"}}
	out, err := renderMarkdown(fm, "body text")
	require.NoError(t, err)
	s := string(out)
	assert.True(t, len(s) > 0)
	assert.Contains(t, s, "---\n")
	assert.Contains(t, s, "title: Widget CVE roundup")
	assert.Contains(t, s, "body text")
}
