package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/productscan/internal/model"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the default cap on domains crawled at once.
// Zero means no cap: every seed gets its own crawler immediately.
const DefaultConcurrency = 0

// Orchestrator crawls a set of seed domains concurrently with one shared
// browser and collects their products and errors.
//
// Design decision: one DomainCrawler per domain, fanned out on an
// errgroup. A crawler never returns an error to the group, so a failing
// domain cannot cancel the others. SetLimit is only applied when a cap
// is configured.
type Orchestrator struct {
	launcher    Launcher
	client      HTTPClient
	headers     HeaderGenerator
	classifier  *Classifier
	logger      *slog.Logger
	concurrency int
	opts        Options
	siteOptions func(domain string) Options
	onDone      func(result model.DomainResult)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithConcurrency caps how many domains are crawled at once.
// Zero removes the cap; negative values are ignored.
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n >= 0 {
			o.concurrency = n
		}
	}
}

// WithClassifier replaces the default product classifier.
func WithClassifier(classifier *Classifier) Option {
	return func(o *Orchestrator) {
		o.classifier = classifier
	}
}

// WithOptions sets the crawl options used for every domain.
func WithOptions(opts Options) Option {
	return func(o *Orchestrator) {
		o.opts = opts
	}
}

// WithSiteOptions sets a per-domain override of the crawl options.
// fn receives the seed and returns the options for it.
func WithSiteOptions(fn func(domain string) Options) Option {
	return func(o *Orchestrator) {
		o.siteOptions = fn
	}
}

// OnDomainDone registers a callback invoked as each domain finishes.
// It is called from the crawling goroutine and must be safe for
// concurrent use.
func OnDomainDone(fn func(result model.DomainResult)) Option {
	return func(o *Orchestrator) {
		o.onDone = fn
	}
}

// NewOrchestrator creates an Orchestrator. launcher may be nil, in which
// case every domain is fetched with client only.
func NewOrchestrator(launcher Launcher, client HTTPClient, headers HeaderGenerator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		launcher:    launcher,
		client:      client,
		headers:     headers,
		classifier:  defaultClassifier,
		concurrency: DefaultConcurrency,
		opts:        DefaultOptions(),
	}

	for _, opt := range opts {
		opt(o)
	}

	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.classifier == nil {
		o.classifier = defaultClassifier
	}
	return o
}

// Run crawls every unique domain and returns the combined result.
//
// The error is non-nil only for invalid input: an empty domain list or a
// seed that is not an absolute http(s) URL. Crawl failures end up in
// Result.Errors, and a domain that failed completely still has an entry
// in Result.Domains with no products.
func (o *Orchestrator) Run(ctx context.Context, domains []string) (*model.Result, error) {
	seeds, err := uniqueSeeds(domains)
	if err != nil {
		return nil, err
	}

	result := &model.Result{
		StartedAt: time.Now(),
		Domains:   make([]model.DomainResult, len(seeds)),
	}
	errs := model.NewErrorLog()

	o.logger.Info("starting crawl",
		"domains", len(seeds),
		"concurrency", o.concurrency,
	)

	browser, launchErr := o.launch(ctx)

	var g errgroup.Group
	if o.concurrency > 0 {
		g.SetLimit(o.concurrency)
	}

	for i, domain := range seeds {
		g.Go(func() error {
			crawler := NewDomainCrawler(domain, browser, o.client, o.headers, errs,
				WithDomainLogger(o.logger),
				WithDomainClassifier(o.classifier),
				WithDomainOptions(o.optionsFor(domain)),
				WithBrowserError(launchErr),
			)
			dr := crawler.Run(ctx)
			result.Domains[i] = dr

			o.logger.Info("domain finished",
				"domain", domain,
				"products", len(dr.Products),
				"strategy", dr.Strategy.String(),
				"elapsed", dr.Duration,
			)
			if o.onDone != nil {
				o.onDone(dr)
			}
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // crawlers never return errors

	if browser != nil {
		if err := browser.Close(); err != nil {
			o.logger.Warn("failed to close browser", "error", err)
		}
	}

	result.Errors = errs.Snapshot()
	result.FinishedAt = time.Now()

	o.logger.Info("crawl complete",
		"domains", len(seeds),
		"products", result.TotalProducts(),
		"errors", len(result.Errors),
		"elapsed", result.Elapsed(),
	)
	return result, nil
}

// launch starts the shared browser. A failure is logged and returned so
// that crawlers can mention it; the run continues in fallback-only mode.
func (o *Orchestrator) launch(ctx context.Context) (Browser, error) {
	if o.launcher == nil {
		return nil, nil
	}
	browser, err := o.launcher.Launch(ctx)
	if err != nil {
		o.logger.Warn("failed to launch browser, using plain fetch only", "error", err)
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	return browser, nil
}

func (o *Orchestrator) optionsFor(domain string) Options {
	if o.siteOptions != nil {
		return o.siteOptions(domain)
	}
	return o.opts
}

// uniqueSeeds validates seeds and drops repeats, keeping first-seen order.
func uniqueSeeds(domains []string) ([]string, error) {
	if len(domains) == 0 {
		return nil, ErrNoDomains
	}

	seen := make(map[string]struct{}, len(domains))
	seeds := make([]string, 0, len(domains))
	for _, d := range domains {
		if err := ValidateDomain(d); err != nil {
			return nil, fmt.Errorf("%w: %q", err, d)
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		seeds = append(seeds, d)
	}
	return seeds, nil
}
