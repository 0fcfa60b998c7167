package crawler

import "sort"

// Frontier is the URL state of one domain crawl.
//
//   - visited holds every URL ever resolved on a rendered page, whatever its
//     classification; it is the dedup gate
//   - toVisit holds same-site, non-product URLs (category pages)
//   - products holds URLs classified as product pages
//
// products and toVisit never share a URL.
//
// A Frontier is owned by exactly one DomainCrawler and is only mutated from
// that crawler's goroutine, so it carries no lock.
type Frontier struct {
	visited  map[string]struct{}
	toVisit  map[string]struct{}
	products map[string]struct{}
}

// NewFrontier creates an empty Frontier.
func NewFrontier() *Frontier {
	return &Frontier{
		visited:  make(map[string]struct{}),
		toVisit:  make(map[string]struct{}),
		products: make(map[string]struct{}),
	}
}

// MarkVisited adds u to the visited set.
// It returns true if u was not visited before.
func (f *Frontier) MarkVisited(u string) bool {
	if _, ok := f.visited[u]; ok {
		return false
	}
	f.visited[u] = struct{}{}
	return true
}

// IsVisited reports whether u is in the visited set.
func (f *Frontier) IsVisited(u string) bool {
	_, ok := f.visited[u]
	return ok
}

// RecordProduct adds u to the product set, removing it from toVisit.
func (f *Frontier) RecordProduct(u string) {
	delete(f.toVisit, u)
	f.products[u] = struct{}{}
}

// RecordToVisit adds u to the toVisit set unless it is a known product.
// It returns true if u was newly added.
func (f *Frontier) RecordToVisit(u string) bool {
	if _, ok := f.products[u]; ok {
		return false
	}
	if _, ok := f.toVisit[u]; ok {
		return false
	}
	f.toVisit[u] = struct{}{}
	return true
}

// Visited returns the visited URLs, sorted.
func (f *Frontier) Visited() []string { return sortedKeys(f.visited) }

// ToVisit returns the toVisit URLs, sorted.
func (f *Frontier) ToVisit() []string { return sortedKeys(f.toVisit) }

// Products returns the product URLs, sorted.
func (f *Frontier) Products() []string { return sortedKeys(f.products) }

// LenVisited returns the size of the visited set.
func (f *Frontier) LenVisited() int { return len(f.visited) }

// LenToVisit returns the size of the toVisit set.
func (f *Frontier) LenToVisit() int { return len(f.toVisit) }

// LenProducts returns the size of the product set.
func (f *Frontier) LenProducts() int { return len(f.products) }

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
