package ingest

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"sempervigil.dev/sempervigil/internal/domain"
)

// RawItem is one normalized-but-not-yet-persisted feed entry, produced by a
// format-specific parser and consumed by the dedup/filter/correlate stages
// of the ingest pipeline (spec.md §4.C steps 3-6).
type RawItem struct {
	Title       string
	URL         string
	Author      string
	PublishedAt *time.Time
	ContentHTML string
	ContentText string
}

// ParseFeed parses a fetched body according to the source's kind.
func ParseFeed(kind domain.SourceKind, htmlSelector string, body []byte) ([]RawItem, error) {
	switch kind {
	case domain.SourceKindRSS:
		return parseRSS(body)
	case domain.SourceKindAtom:
		return parseAtom(body)
	case domain.SourceKindJSONFeed:
		return parseJSONFeed(body)
	case domain.SourceKindHTML:
		return parseHTML(body, htmlSelector)
	default:
		return nil, fmt.Errorf("ingest: unsupported source kind %q", kind)
	}
}

// --- RSS 2.0 -----------------------------------------------------------

type rssFeed struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Author      string `xml:"author"`
	Creator     string `xml:"http://purl.org/dc/elements/1.1/ creator"`
	PubDate     string `xml:"pubDate"`
	Description string `xml:"description"`
	Content     string `xml:"http://purl.org/rss/1.0/modules/content/ encoded"`
}

func parseRSS(body []byte) ([]RawItem, error) {
	var feed rssFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("ingest: parse rss: %w", err)
	}
	out := make([]RawItem, 0, len(feed.Channel.Items))
	for _, it := range feed.Channel.Items {
		author := it.Author
		if author == "" {
			author = it.Creator
		}
		content := it.Content
		if content == "" {
			content = it.Description
		}
		out = append(out, RawItem{
			Title:       StripHTML(it.Title),
			URL:         strings.TrimSpace(it.Link),
			Author:      strings.TrimSpace(author),
			PublishedAt: parseBestEffortTime(it.PubDate),
			ContentHTML: content,
			ContentText: StripHTML(content),
		})
	}
	return out, nil
}

// --- Atom ----------------------------------------------------------------

type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	Title   string `xml:"title"`
	Links   []struct {
		Rel  string `xml:"rel,attr"`
		Href string `xml:"href,attr"`
	} `xml:"link"`
	Author struct {
		Name string `xml:"name"`
	} `xml:"author"`
	Published string `xml:"published"`
	Updated   string `xml:"updated"`
	Summary   string `xml:"summary"`
	Content   string `xml:"content"`
}

func parseAtom(body []byte) ([]RawItem, error) {
	var feed atomFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("ingest: parse atom: %w", err)
	}
	out := make([]RawItem, 0, len(feed.Entries))
	for _, e := range feed.Entries {
		link := ""
		for _, l := range e.Links {
			if l.Rel == "" || l.Rel == "alternate" {
				link = l.Href
				break
			}
		}
		content := e.Content
		if content == "" {
			content = e.Summary
		}
		ts := e.Published
		if ts == "" {
			ts = e.Updated
		}
		out = append(out, RawItem{
			Title:       StripHTML(e.Title),
			URL:         strings.TrimSpace(link),
			Author:      strings.TrimSpace(e.Author.Name),
			PublishedAt: parseBestEffortTime(ts),
			ContentHTML: content,
			ContentText: StripHTML(content),
		})
	}
	return out, nil
}

// --- JSON Feed -------------------------------------------------------------

type jsonFeedDoc struct {
	Items []jsonFeedItem `json:"items"`
}

type jsonFeedItem struct {
	Title         string `json:"title"`
	URL           string `json:"url"`
	Author        *struct {
		Name string `json:"name"`
	} `json:"author"`
	Authors []struct {
		Name string `json:"name"`
	} `json:"authors"`
	DatePublished string `json:"date_published"`
	DateModified  string `json:"date_modified"`
	ContentHTML   string `json:"content_html"`
	ContentText   string `json:"content_text"`
}

func parseJSONFeed(body []byte) ([]RawItem, error) {
	var doc jsonFeedDoc
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("ingest: parse jsonfeed: %w", err)
	}
	out := make([]RawItem, 0, len(doc.Items))
	for _, it := range doc.Items {
		author := ""
		if it.Author != nil {
			author = it.Author.Name
		} else if len(it.Authors) > 0 {
			author = it.Authors[0].Name
		}
		ts := it.DatePublished
		if ts == "" {
			ts = it.DateModified
		}
		content := it.ContentHTML
		text := it.ContentText
		if text == "" {
			text = StripHTML(content)
		}
		out = append(out, RawItem{
			Title:       StripHTML(it.Title),
			URL:         strings.TrimSpace(it.URL),
			Author:      strings.TrimSpace(author),
			PublishedAt: parseBestEffortTime(ts),
			ContentHTML: content,
			ContentText: text,
		})
	}
	return out, nil
}

// --- HTML (selector-driven) -----------------------------------------------

func parseHTML(body []byte, selector string) ([]RawItem, error) {
	if selector == "" {
		return nil, fmt.Errorf("ingest: html source requires a selector")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("ingest: parse html: %w", err)
	}
	var out []RawItem
	doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		title := strings.TrimSpace(sel.Find("a").First().Text())
		href, _ := sel.Find("a").First().Attr("href")
		text := strings.TrimSpace(sel.Text())
		out = append(out, RawItem{
			Title:       title,
			URL:         strings.TrimSpace(href),
			ContentHTML: text,
			ContentText: text,
		})
	})
	return out, nil
}

// parseBestEffortTime tries a descending list of common feed timestamp
// layouts, returning nil when none match (spec.md §4.C step 3: "derive
// published_at best-effort").
func parseBestEffortTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	layouts := []string{
		time.RFC3339,
		time.RFC1123Z,
		time.RFC1123,
		"2006-01-02T15:04:05Z07:00",
		"2006-01-02 15:04:05",
		"Mon, 2 Jan 2006 15:04:05 -0700",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
