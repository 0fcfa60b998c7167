package config

import (
	"fmt"
	"path/filepath"
	"slices"
	"time"

	"github.com/adrg/xdg"
	"github.com/nao1215/productscan/internal/crawler"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "productscan"

	// DefaultOutput is the product artifact written after every run.
	DefaultOutput = "product_urls.json"

	// DefaultNavigationTimeout bounds one browser navigation.
	DefaultNavigationTimeout = crawler.DefaultNavigationTimeout

	// DefaultFetchTimeout bounds the plain GET of the fallback path.
	DefaultFetchTimeout = crawler.DefaultFetchTimeout

	// DefaultRetries is the number of navigation attempts per domain.
	DefaultRetries = crawler.DefaultRetries

	// DefaultMaxDepth is the deepest extraction depth.
	DefaultMaxDepth = crawler.DefaultMaxDepth

	// DefaultMaxPages caps category pages traversed per domain with --follow.
	DefaultMaxPages = crawler.DefaultMaxPages

	// DefaultConcurrency caps domains crawled at once; zero means no cap.
	DefaultConcurrency = crawler.DefaultConcurrency
)

// Config holds all options of a scan.
// It is filled from CLI flags and the optional config file and passed
// down explicitly; nothing reads global state.
//
// Design decision: a single flat struct. Per-site differences live in
// File and are resolved by SiteOptions.
type Config struct {
	// Domains are the seed URLs.
	Domains []string

	// ListFile is a file with one seed per line.
	ListFile string

	// ConfigFilePath is the explicit config file path. Empty means search
	// for .productscan in the current and home directory.
	ConfigFilePath string

	// SiteConfigs is the loaded config file. Never nil after NewConfig.
	SiteConfigs *File

	// Output is the JSON artifact path.
	Output string

	// MarkdownFile, if set, receives a Markdown run summary.
	MarkdownFile string

	// XLSXFile, if set, receives an Excel export of the run.
	XLSXFile string

	// Concurrency caps the domains crawled at once. Zero crawls every
	// domain at the same time.
	Concurrency int

	// Retries is the number of navigation attempts per domain.
	Retries int

	// RetryDelay is the pause between navigation attempts.
	RetryDelay time.Duration

	// NavigationTimeout bounds one browser navigation.
	NavigationTimeout time.Duration

	// FetchTimeout bounds the fallback GET.
	FetchTimeout time.Duration

	// MaxDepth is the deepest extraction depth.
	MaxDepth int

	// MaxPages caps traversed category pages per domain.
	MaxPages int

	// FollowCategories enables traversal of discovered category pages.
	FollowCategories bool

	// Headless runs Chrome without a window.
	Headless bool

	// ChromePath overrides the Chrome binary.
	ChromePath string

	// ProxyURL routes browser and fallback traffic through a proxy.
	ProxyURL string

	// RateLimit caps fallback requests per second. Zero disables it.
	RateLimit float64

	// ProductPatterns are extra product rules, appended to the defaults.
	ProductPatterns []string

	// DBDir is where the run history database lives.
	DBDir string

	// SaveToDB stores the run in the history database.
	SaveToDB bool

	// Verbose enables debug logging.
	Verbose bool

	// JSONLogs switches log output to JSON.
	JSONLogs bool
}

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		Output:            DefaultOutput,
		Concurrency:       DefaultConcurrency,
		Retries:           DefaultRetries,
		NavigationTimeout: DefaultNavigationTimeout,
		FetchTimeout:      DefaultFetchTimeout,
		MaxDepth:          DefaultMaxDepth,
		MaxPages:          DefaultMaxPages,
		Headless:          true,
		SaveToDB:          true,
		DBDir:             XDGDataDir(),
		SiteConfigs:       &File{Sites: make(map[string]SiteConfig)},
	}
}

// XDGDataDir returns the data directory for productscan.
// On Linux: ~/.local/share/productscan
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the config directory for productscan.
// On Linux: ~/.config/productscan
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Setting names accepted by ApplyFile. They match the scan flag names.
const (
	SettingRetries  = "retries"
	SettingFollow   = "follow"
	SettingDepth    = "depth"
	SettingMaxPages = "max-pages"
)

// ApplyFile merges the config file into c. Seeds and product patterns
// from the file are appended to the ones already set.
//
// The scalar settings of the file's defaults (retries, follow, depth,
// maxPages) replace the built-in values in c, except for the settings
// named in explicit: those were given on the command line and win.
// Per-site entries still override both in SiteOptions.
func (c *Config) ApplyFile(f *File, explicit ...string) {
	if f == nil {
		return
	}
	if f.Sites == nil {
		f.Sites = make(map[string]SiteConfig)
	}
	c.SiteConfigs = f
	c.Domains = append(c.Domains, f.Domains...)
	c.ProductPatterns = append(c.ProductPatterns, f.ProductPatterns...)

	d := f.Defaults
	if d.Retries > 0 && !slices.Contains(explicit, SettingRetries) {
		c.Retries = d.Retries
	}
	if d.Follow != nil && !slices.Contains(explicit, SettingFollow) {
		c.FollowCategories = *d.Follow
	}
	if d.Depth != nil && !slices.Contains(explicit, SettingDepth) {
		c.MaxDepth = *d.Depth
	}
	if d.MaxPages > 0 && !slices.Contains(explicit, SettingMaxPages) {
		c.MaxPages = d.MaxPages
	}
}

// Validate checks the configuration and returns the first problem found.
//
// Design decision: validate once after flag parsing so a bad value fails
// before the browser starts.
func (c *Config) Validate() error {
	if len(c.Domains) == 0 {
		return ErrNoDomain
	}
	for _, d := range c.Domains {
		if err := crawler.ValidateDomain(d); err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidDomain, d)
		}
	}

	if c.NavigationTimeout <= 0 || c.FetchTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.Concurrency < 0 {
		return ErrInvalidConcurrency
	}
	if c.Retries < 1 {
		return ErrInvalidRetries
	}
	if c.RetryDelay < 0 {
		return ErrInvalidRetryDelay
	}
	if c.MaxDepth < 0 {
		return ErrInvalidDepth
	}
	if c.SiteConfigs != nil {
		for name, site := range c.SiteConfigs.Sites {
			if site.Depth != nil && *site.Depth < 0 {
				return fmt.Errorf("%w: site %q", ErrInvalidDepth, name)
			}
		}
	}
	if c.MaxPages <= 0 {
		return ErrInvalidMaxPages
	}
	if c.RateLimit < 0 {
		return ErrInvalidRate
	}
	if c.Output == "" {
		return ErrNoOutput
	}
	if _, err := crawler.CompileRules(c.ProductPatterns); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidProductPattern, err)
	}
	return nil
}

// Classifier builds the product classifier: default rules plus
// ProductPatterns. Call Validate first.
func (c *Config) Classifier() (*crawler.Classifier, error) {
	rules, err := crawler.CompileRules(c.ProductPatterns)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidProductPattern, err)
	}
	return crawler.NewClassifier(rules...), nil
}

// CrawlOptions returns the crawler options shared by every domain.
func (c *Config) CrawlOptions() crawler.Options {
	return crawler.Options{
		NavigationTimeout: c.NavigationTimeout,
		FetchTimeout:      c.FetchTimeout,
		Retries:           c.Retries,
		RetryDelay:        c.RetryDelay,
		MaxDepth:          c.MaxDepth,
		FollowCategories:  c.FollowCategories,
		MaxPages:          c.MaxPages,
	}
}

// SiteOptions returns the crawler options for domain: CrawlOptions with
// the config file's default headers and patterns and the site entry
// applied on top. Default scalars are not applied again here; ApplyFile
// already folded them into c below any explicit flag.
func (c *Config) SiteOptions(domain string) crawler.Options {
	opts := c.CrawlOptions()
	if c.SiteConfigs == nil {
		return opts
	}
	sc := c.SiteConfigs.GetSiteConfig(domain)
	site, _ := c.SiteConfigs.lookup(domain)
	sc.Retries, sc.Follow, sc.Depth, sc.MaxPages = site.Retries, site.Follow, site.Depth, site.MaxPages
	return sc.apply(opts)
}
