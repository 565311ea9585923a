package publish

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"sempervigil.dev/sempervigil/internal/domain"
)

// frontMatter is the YAML block every generated Markdown file opens with
// (spec.md §4.C write_article_markdown handler: "title, date, source, tags,
// canonical URL, summary if present").
type frontMatter struct {
	Title        string   `yaml:"title"`
	Date         string   `yaml:"date"`
	Source       string   `yaml:"source,omitempty"`
	Tags         []string `yaml:"tags,omitempty"`
	CanonicalURL string   `yaml:"canonical_url,omitempty"`
	Summary      string   `yaml:"summary,omitempty"`
	Severity     string   `yaml:"severity,omitempty"`
	Draft        bool     `yaml:"draft"`
}

func renderMarkdown(fm frontMatter, body string) ([]byte, error) {
	header, err := yaml.Marshal(fm)
	if err != nil {
		return nil, fmt.Errorf("marshal front matter: %w", err)
	}
	var b strings.Builder
	b.WriteString("---\n")
	b.Write(header)
	b.WriteString("---\n\n")
	b.WriteString(strings.TrimSpace(body))
	b.WriteString("\n")
	return []byte(b.String()), nil
}

// WriteArticleMarkdown renders and atomically writes an Article's Markdown
// file under <siteSrcDir>/content/posts/<id>.md.
func WriteArticleMarkdown(siteSrcDir string, a *domain.Article, sourceName string) (string, error) {
	date := a.IngestedAt
	if a.PublishedAt != nil {
		date = *a.PublishedAt
	}
	fm := frontMatter{
		Title:        a.Title,
		Date:         date.UTC().Format(time.RFC3339),
		Source:       sourceName,
		Tags:         []string(a.Tags),
		CanonicalURL: a.CanonicalURL,
		Summary:      a.SummaryLLM,
	}
	body := a.ContentText
	if body == "" {
		body = a.ContentHTMLExcerpt
	}
	data, err := renderMarkdown(fm, body)
	if err != nil {
		return "", err
	}
	path := filepath.Join(siteSrcDir, "content", "posts", a.ID+".md")
	if err := writeFileAtomic(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// WriteEventMarkdown renders and atomically writes an Event's Markdown file
// under <siteSrcDir>/content/events/<id>.md.
func WriteEventMarkdown(siteSrcDir string, e *domain.Event) (string, error) {
	fm := frontMatter{
		Title:    e.Title,
		Date:     e.LastRebuiltAt.UTC().Format(time.RFC3339),
		Summary:  e.Summary,
		Severity: string(e.Severity),
		Draft:    e.Status == domain.EventStatusProposed,
	}
	data, err := renderMarkdown(fm, e.Summary)
	if err != nil {
		return "", err
	}
	path := filepath.Join(siteSrcDir, "content", "events", e.ID+".md")
	if err := writeFileAtomic(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// WriteCVEMarkdown renders and atomically writes a CVE's Markdown file under
// <siteSrcDir>/content/cves/<id>.md.
func WriteCVEMarkdown(siteSrcDir string, c *domain.CVE) (string, error) {
	severity := ""
	if c.PreferredBaseSeverity != nil {
		severity = string(*c.PreferredBaseSeverity)
	}
	tags := make([]string, 0, len(c.AffectedProducts))
	for _, ap := range c.AffectedProducts {
		tags = append(tags, strings.TrimSpace(ap.Vendor+" "+ap.Product))
	}
	fm := frontMatter{
		Title:    c.CveID,
		Date:     c.PublishedAt.UTC().Format(time.RFC3339),
		Tags:     tags,
		Severity: severity,
	}
	data, err := renderMarkdown(fm, c.DescriptionText)
	if err != nil {
		return "", err
	}
	path := filepath.Join(siteSrcDir, "content", "cves", c.CveID+".md")
	if err := writeFileAtomic(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
