package crawler

import "regexp"

// hrefRegex matches href attributes in raw, unrendered markup that may
// not parse as HTML at all.
var hrefRegex = regexp.MustCompile(`href=["'](.*?)["']`)

// ExtractHrefs returns every href attribute value found in markup,
// in document order, duplicates included.
func ExtractHrefs(markup string) []string {
	matches := hrefRegex.FindAllStringSubmatch(markup, -1)
	hrefs := make([]string, 0, len(matches))
	for _, m := range matches {
		hrefs = append(hrefs, m[1])
	}
	return hrefs
}
