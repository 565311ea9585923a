package publish

import (
	"encoding/json"
	"path/filepath"
	"time"

	"sempervigil.dev/sempervigil/internal/domain"
)

// Index entry shapes carry only the fields the site's client-side search
// needs (spec.md §4.E "JSON indexes"), not the full entity.

type articleIndexEntry struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	CanonicalURL string   `json:"canonical_url"`
	PublishedAt  string   `json:"published_at,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	Summary      string   `json:"summary,omitempty"`
}

type cveIndexEntry struct {
	CveID    string  `json:"cve_id"`
	Severity string  `json:"severity,omitempty"`
	Score    float64 `json:"score,omitempty"`
	Summary  string  `json:"summary,omitempty"`
}

type eventIndexEntry struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Severity string `json:"severity,omitempty"`
	Status   string `json:"status"`
	Updated  string `json:"updated_at"`
}

func indexPath(siteSrcDir, name string) string {
	return filepath.Join(siteSrcDir, "static", "index", name)
}

// WriteArticlesIndex atomically writes static/index/articles.json.
func WriteArticlesIndex(siteSrcDir string, articles []domain.Article) (string, error) {
	entries := make([]articleIndexEntry, 0, len(articles))
	for _, a := range articles {
		e := articleIndexEntry{
			ID: a.ID, Title: a.Title, CanonicalURL: a.CanonicalURL,
			Tags: []string(a.Tags), Summary: a.SummaryLLM,
		}
		if a.PublishedAt != nil {
			e.PublishedAt = a.PublishedAt.UTC().Format(time.RFC3339)
		}
		entries = append(entries, e)
	}
	return writeJSONIndex(indexPath(siteSrcDir, "articles.json"), entries)
}

// WriteCVEsIndex atomically writes static/index/cves.json.
func WriteCVEsIndex(siteSrcDir string, cves []domain.CVE) (string, error) {
	entries := make([]cveIndexEntry, 0, len(cves))
	for _, c := range cves {
		e := cveIndexEntry{CveID: c.CveID, Summary: c.DescriptionText}
		if c.PreferredBaseSeverity != nil {
			e.Severity = string(*c.PreferredBaseSeverity)
		}
		if c.PreferredBaseScore != nil {
			e.Score = *c.PreferredBaseScore
		}
		entries = append(entries, e)
	}
	return writeJSONIndex(indexPath(siteSrcDir, "cves.json"), entries)
}

// WriteEventsIndex atomically writes static/index/events.json.
func WriteEventsIndex(siteSrcDir string, events []domain.Event) (string, error) {
	entries := make([]eventIndexEntry, 0, len(events))
	for _, e := range events {
		entries = append(entries, eventIndexEntry{
			ID: e.ID, Title: e.Title, Severity: string(e.Severity),
			Status: string(e.Status), Updated: e.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	return writeJSONIndex(indexPath(siteSrcDir, "events.json"), entries)
}

func writeJSONIndex(path string, v interface{}) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	if err := writeFileAtomic(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
