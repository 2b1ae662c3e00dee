package crawler

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ErrNoTitle is returned when a fetched page carries no usable <title>
var ErrNoTitle = errors.New("page has no title")

const titleSuffix = " - Wikipedia"

// Body paragraphs of the main content area. Newer article markup wraps the
// paragraphs in div.mw-parser-output, older markup does not.
const paragraphSelector = "div#mw-content-text > p, div#mw-content-text > div.mw-parser-output > p"

// ParseDocument parses raw page markup
func ParseDocument(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}
	return doc, nil
}

// PageTitle returns the article title from the document's <title>,
// without the site suffix
func PageTitle(doc *goquery.Document) (string, error) {
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if idx := strings.Index(title, titleSuffix); idx != -1 {
		title = title[:idx]
	}
	if title == "" {
		return "", ErrNoTitle
	}
	return title, nil
}

// SelectLink returns the canonical URL of the first link in the body
// paragraphs that is neither italicized nor parenthesized and that
// ClassifyURL accepts. The document is modified: italic elements are removed.
func SelectLink(doc *goquery.Document) (string, bool) {
	doc.Find("i").Remove()

	var body strings.Builder
	doc.Find(paragraphSelector).Each(func(_ int, p *goquery.Selection) {
		html, err := goquery.OuterHtml(p)
		if err != nil {
			return
		}
		body.WriteString(html)
	})

	if body.Len() == 0 {
		return "", false
	}

	clean, err := goquery.NewDocumentFromReader(strings.NewReader(RemoveParens(body.String())))
	if err != nil {
		return "", false
	}

	var next string
	found := false
	clean.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if link, ok := ClassifyURL(href); ok {
			next = link
			found = true
			return false
		}
		return true
	})

	return next, found
}
