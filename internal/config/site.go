package config

import (
	"maps"
	"net/url"
	"strings"

	"github.com/nao1215/productscan/internal/crawler"
)

// SiteConfig holds overrides for one site.
type SiteConfig struct {
	// Headers are sent on every request to the site, on top of the
	// generated browser headers.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Retries overrides the number of navigation attempts. Zero keeps the
	// global value.
	Retries int `yaml:"retries,omitempty"`

	// Follow overrides category following. Nil keeps the global value.
	Follow *bool `yaml:"follow,omitempty"`

	// Depth overrides the maximum depth. Nil keeps the global value; zero
	// collects the root page only.
	Depth *int `yaml:"depth,omitempty"`

	// MaxPages overrides the traversal page limit. Zero keeps the global value.
	MaxPages int `yaml:"maxPages,omitempty"`

	// IgnorePatterns are glob patterns of category paths never traversed.
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`

	// FollowPatterns, if set, restrict traversal to matching category paths.
	FollowPatterns []string `yaml:"followPatterns,omitempty"`
}

// File is the structure of the .productscan file.
type File struct {
	// Domains are seed URLs crawled in addition to the command line ones.
	Domains []string `yaml:"domains,omitempty"`

	// ProductPatterns are extra product URL regular expressions.
	ProductPatterns []string `yaml:"productPatterns,omitempty"`

	// Defaults apply to every site unless overridden in Sites.
	Defaults SiteConfig `yaml:"defaults,omitempty"`

	// Sites maps a host (e.g. "shop.example.com") or a full seed URL to
	// its overrides.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`
}

// GetSiteConfig returns the configuration for domain, with the site
// entry merged over the defaults. Entries are looked up by the exact
// seed first, then by its lower-cased host.
func (cf *File) GetSiteConfig(domain string) SiteConfig {
	result := cf.Defaults
	result.Headers = maps.Clone(cf.Defaults.Headers)

	site, ok := cf.lookup(domain)
	if !ok {
		return result
	}

	if len(site.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string, len(site.Headers))
		}
		maps.Copy(result.Headers, site.Headers)
	}
	if site.Retries != 0 {
		result.Retries = site.Retries
	}
	if site.Follow != nil {
		result.Follow = site.Follow
	}
	if site.Depth != nil {
		result.Depth = site.Depth
	}
	if site.MaxPages != 0 {
		result.MaxPages = site.MaxPages
	}
	if len(site.IgnorePatterns) > 0 {
		result.IgnorePatterns = site.IgnorePatterns
	}
	if len(site.FollowPatterns) > 0 {
		result.FollowPatterns = site.FollowPatterns
	}
	return result
}

func (cf *File) lookup(domain string) (SiteConfig, bool) {
	if site, ok := cf.Sites[domain]; ok {
		return site, true
	}
	u, err := url.Parse(domain)
	if err != nil || u.Host == "" {
		return SiteConfig{}, false
	}
	host := strings.ToLower(u.Host)
	for key, site := range cf.Sites {
		if strings.ToLower(key) == host {
			return site, true
		}
	}
	return SiteConfig{}, false
}

// apply overlays the site configuration on opts.
func (s SiteConfig) apply(opts crawler.Options) crawler.Options {
	if len(s.Headers) > 0 {
		opts.Headers = maps.Clone(s.Headers)
	}
	if s.Retries > 0 {
		opts.Retries = s.Retries
	}
	if s.Follow != nil {
		opts.FollowCategories = *s.Follow
	}
	if s.Depth != nil {
		opts.MaxDepth = *s.Depth
	}
	if s.MaxPages > 0 {
		opts.MaxPages = s.MaxPages
	}
	opts.IgnorePatterns = s.IgnorePatterns
	opts.FollowPatterns = s.FollowPatterns
	return opts
}
