package ingest

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// stripSelectors removes markup that is never part of readable article body
// text before text extraction.
var stripSelectors = []string{"script", "style", "nav", "header", "footer", "noscript", "aside", "form"}

// ExtractReadableContent pulls the readable text and a short HTML excerpt
// out of a fetched article page (spec.md §4.C fetch_article_content:
// "extracts readable text (and a short HTML excerpt for debugging)").
func ExtractReadableContent(body []byte, excerptLen int) (text, htmlExcerpt string, err error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return "", "", err
	}
	for _, sel := range stripSelectors {
		doc.Find(sel).Remove()
	}

	article := doc.Find("article").First()
	scope := article
	if article.Length() == 0 {
		scope = doc.Find("body").First()
	}

	text = strings.TrimSpace(collapseWhitespace(scope.Text()))
	rawHTML, _ := scope.Html()
	htmlExcerpt = excerpt(strings.TrimSpace(rawHTML), excerptLen)
	return text, htmlExcerpt, nil
}

func collapseWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}
