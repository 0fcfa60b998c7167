package model

import (
	"sort"
	"time"
)

// Strategy records how a domain's products were obtained.
type Strategy string

// Strategy constants.
const (
	// StrategyNone means neither the renderer nor the fallback produced a page.
	StrategyNone Strategy = "none"
	// StrategyRender means the homepage was rendered in a browser.
	StrategyRender Strategy = "render"
	// StrategyFallback means the plain-HTTP fallback fetched the homepage.
	StrategyFallback Strategy = "fallback"
)

// String returns the string representation of the Strategy.
func (s Strategy) String() string {
	if s == "" {
		return string(StrategyNone)
	}
	return string(s)
}

// DomainResult is the final, read-only state of one domain crawl.
type DomainResult struct {
	// Domain is the seed URL.
	Domain string `json:"domain"`

	// Products are the URLs classified as product pages, sorted.
	Products []string `json:"products"`

	// Categories are the same-site, non-product URLs discovered, sorted.
	// They are candidates for traversal.
	Categories []string `json:"categories"`

	// VisitedCount is the number of distinct URLs resolved on rendered pages.
	VisitedCount int `json:"visited_count"`

	// PagesRendered is the number of pages successfully rendered and extracted.
	PagesRendered int `json:"pages_rendered"`

	// Attempts is the number of homepage navigation attempts made.
	Attempts int `json:"attempts"`

	// Strategy is how the products were obtained.
	Strategy Strategy `json:"strategy"`

	// Duration is the wall-clock time spent on the domain.
	Duration time.Duration `json:"duration"`
}

// Result is the outcome of a whole crawl run.
type Result struct {
	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the last domain crawler finished.
	FinishedAt time.Time `json:"finished_at"`

	// Domains holds per-domain results in seed order.
	Domains []DomainResult `json:"domains"`

	// Errors is every CrawlError recorded during the run.
	Errors []CrawlError `json:"errors"`
}

// Products returns the product URLs keyed by seed domain.
// Every seed has an entry, possibly empty.
func (r *Result) Products() map[string][]string {
	out := make(map[string][]string, len(r.Domains))
	for _, d := range r.Domains {
		urls := make([]string, len(d.Products))
		copy(urls, d.Products)
		out[d.Domain] = urls
	}
	return out
}

// Domain returns the result for one seed domain.
func (r *Result) Domain(domain string) (DomainResult, bool) {
	for _, d := range r.Domains {
		if d.Domain == domain {
			return d, true
		}
	}
	return DomainResult{}, false
}

// TotalProducts returns the number of product URLs across all domains.
func (r *Result) TotalProducts() int {
	total := 0
	for _, d := range r.Domains {
		total += len(d.Products)
	}
	return total
}

// ErrorsFor returns the errors recorded for one domain.
func (r *Result) ErrorsFor(domain string) []CrawlError {
	out := make([]CrawlError, 0)
	for _, e := range r.Errors {
		if e.Domain == domain {
			out = append(out, e)
		}
	}
	return out
}

// SortedDomains returns the seed domains in lexical order.
func (r *Result) SortedDomains() []string {
	names := make([]string, 0, len(r.Domains))
	for _, d := range r.Domains {
		names = append(names, d.Domain)
	}
	sort.Strings(names)
	return names
}

// Elapsed returns the run duration.
func (r *Result) Elapsed() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
