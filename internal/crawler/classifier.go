package crawler

import (
	"fmt"
	"regexp"
)

// Rule is one named product-URL pattern.
type Rule struct {
	// Name identifies the rule in logs.
	Name string

	// Pattern is matched anywhere in the URL (unanchored).
	Pattern *regexp.Regexp
}

// DefaultRules returns the built-in product URL heuristics.
//
// A URL is a product page if it:
//   - contains a /product/, /item/, /dp/, /p/ or /products/ segment
//   - contains 8-12 consecutive digits and ends in .html, .php or .aspx,
//     optionally followed by # and digits
//   - ends in # followed by 8-12 digits
func DefaultRules() []Rule {
	return []Rule{
		{Name: "product-segment", Pattern: regexp.MustCompile(`/product/`)},
		{Name: "item-segment", Pattern: regexp.MustCompile(`/item/`)},
		{Name: "dp-segment", Pattern: regexp.MustCompile(`/dp/`)},
		{Name: "p-segment", Pattern: regexp.MustCompile(`/p/`)},
		{Name: "products-segment", Pattern: regexp.MustCompile(`/products/`)},
		{Name: "numeric-html", Pattern: regexp.MustCompile(`\d{8,12}.*\.html#?\d*$`)},
		{Name: "numeric-php", Pattern: regexp.MustCompile(`\d{8,12}.*\.php#?\d*$`)},
		{Name: "numeric-aspx", Pattern: regexp.MustCompile(`\d{8,12}.*\.aspx#?\d*$`)},
		{Name: "numeric-fragment", Pattern: regexp.MustCompile(`#\d{8,12}$`)},
	}
}

// Classifier decides from URL shape alone whether a URL is a product page.
// It is immutable and safe for concurrent use.
type Classifier struct {
	rules []Rule
}

// NewClassifier creates a Classifier from the default rules plus any extra.
func NewClassifier(extra ...Rule) *Classifier {
	rules := DefaultRules()
	rules = append(rules, extra...)
	return &Classifier{rules: rules}
}

// CompileRules compiles user-supplied patterns into rules named
// "custom-1", "custom-2", ...
func CompileRules(patterns []string) ([]Rule, error) {
	rules := make([]Rule, 0, len(patterns))
	for i, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("product pattern %q: %w", p, err)
		}
		rules = append(rules, Rule{Name: fmt.Sprintf("custom-%d", i+1), Pattern: re})
	}
	return rules, nil
}

// Match returns the first rule that matches rawURL.
func (c *Classifier) Match(rawURL string) (Rule, bool) {
	if rawURL == "" {
		return Rule{}, false
	}
	for _, r := range c.rules {
		if r.Pattern.MatchString(rawURL) {
			return r, true
		}
	}
	return Rule{}, false
}

// IsProduct reports whether rawURL matches any rule.
func (c *Classifier) IsProduct(rawURL string) bool {
	_, ok := c.Match(rawURL)
	return ok
}

// Rules returns a copy of the rule table.
func (c *Classifier) Rules() []Rule {
	out := make([]Rule, len(c.rules))
	copy(out, c.rules)
	return out
}

var defaultClassifier = NewClassifier()

// IsProduct reports whether rawURL matches the default rules.
func IsProduct(rawURL string) bool {
	return defaultClassifier.IsProduct(rawURL)
}
