package browser

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/nao1215/productscan/internal/crawler"
)

// anchor is an <a> element of a DOM snapshot.
type anchor struct {
	sel *goquery.Selection
}

// Attribute returns the attribute as serialized by the browser. A
// snapshot cannot detach, so the error is always nil.
func (a anchor) Attribute(name string) (string, bool, error) {
	v, ok := a.sel.Attr(name)
	return v, ok, nil
}

// parseAnchors returns the anchors of html in document order.
func parseAnchors(html string) ([]crawler.Anchor, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse DOM: %w", err)
	}

	sel := doc.Find("a")
	anchors := make([]crawler.Anchor, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		anchors = append(anchors, anchor{sel: s})
	})
	return anchors, nil
}
