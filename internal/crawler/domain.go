package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/productscan/internal/model"
)

// Crawl defaults.
const (
	// DefaultNavigationTimeout bounds a single page navigation.
	DefaultNavigationTimeout = 60 * time.Second

	// DefaultFetchTimeout bounds the fallback GET.
	DefaultFetchTimeout = 30 * time.Second

	// DefaultRetries is the number of homepage navigations before falling back.
	DefaultRetries = 3

	// DefaultMaxDepth is the number of hops below the homepage that
	// extraction may reach.
	DefaultMaxDepth = 3

	// DefaultMaxPages caps category traversal per domain.
	DefaultMaxPages = 100
)

// State is a step of the per-domain crawl.
type State int

// Domain crawler states.
const (
	// StateInit opens the browser context and page.
	StateInit State = iota
	// StateRendering navigates to the domain root.
	StateRendering
	// StateExtracting reads anchors from the rendered root.
	StateExtracting
	// StateRetry consumes one navigation attempt.
	StateRetry
	// StateFallbackFetch fetches the root over plain HTTP.
	StateFallbackFetch
	// StateDone is terminal.
	StateDone
)

// String returns the state name used in logs.
func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateRendering:
		return "rendering"
	case StateExtracting:
		return "extracting"
	case StateRetry:
		return "retry"
	case StateFallbackFetch:
		return "fallback"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Options tunes a single domain crawl.
// The zero value is not useful; start from DefaultOptions.
type Options struct {
	// NavigationTimeout bounds each browser navigation.
	NavigationTimeout time.Duration

	// FetchTimeout bounds the fallback GET.
	FetchTimeout time.Duration

	// Retries is the number of homepage navigation attempts.
	Retries int

	// RetryDelay is slept between homepage navigation attempts.
	RetryDelay time.Duration

	// MaxDepth is the deepest extraction depth; deeper calls are no-ops.
	MaxDepth int

	// FollowCategories enables breadth-first traversal of discovered
	// category URLs after the homepage has been extracted.
	FollowCategories bool

	// MaxPages caps the pages rendered per domain while following.
	MaxPages int

	// IgnorePatterns are path globs never followed.
	IgnorePatterns []string

	// FollowPatterns restrict following to matching paths when set.
	FollowPatterns []string

	// Headers are set on top of every generated header set.
	Headers map[string]string
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		NavigationTimeout: DefaultNavigationTimeout,
		FetchTimeout:      DefaultFetchTimeout,
		Retries:           DefaultRetries,
		MaxDepth:          DefaultMaxDepth,
		MaxPages:          DefaultMaxPages,
	}
}

// normalized fills unset fields with defaults.
func (o Options) normalized() Options {
	d := DefaultOptions()
	if o.NavigationTimeout <= 0 {
		o.NavigationTimeout = d.NavigationTimeout
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = d.FetchTimeout
	}
	if o.Retries <= 0 {
		o.Retries = d.Retries
	}
	if o.RetryDelay < 0 {
		o.RetryDelay = 0
	}
	if o.MaxDepth < 0 {
		o.MaxDepth = d.MaxDepth
	}
	if o.MaxPages <= 0 {
		o.MaxPages = d.MaxPages
	}
	return o
}

// queued is a category URL waiting for traversal.
type queued struct {
	url   string
	depth int
}

// DomainCrawler discovers product URLs for one seed domain.
//
// A DomainCrawler is single-use and owned by one goroutine: its Frontier
// is never shared, so nothing inside it is locked. The only shared state
// it touches is the browser (to open its own context) and the error log.
type DomainCrawler struct {
	domain     string
	browser    Browser
	browserErr error
	client     HTTPClient
	headers    HeaderGenerator
	classifier *Classifier
	errs       *model.ErrorLog
	logger     *slog.Logger
	opts       Options

	frontier *Frontier
	state    State

	retriesLeft   int
	attempts      int
	pagesRendered int
	strategy      model.Strategy
	navErr        error

	bctx  BrowserContext
	page  Page
	queue []queued
}

// DomainOption configures a DomainCrawler.
type DomainOption func(*DomainCrawler)

// WithDomainLogger sets the logger. The domain is added as an attribute.
func WithDomainLogger(logger *slog.Logger) DomainOption {
	return func(c *DomainCrawler) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithDomainClassifier replaces the default product classifier.
func WithDomainClassifier(classifier *Classifier) DomainOption {
	return func(c *DomainCrawler) {
		if classifier != nil {
			c.classifier = classifier
		}
	}
}

// WithDomainOptions sets the crawl options.
func WithDomainOptions(opts Options) DomainOption {
	return func(c *DomainCrawler) {
		c.opts = opts
	}
}

// WithBrowserError records why no browser is available. It becomes part
// of the fallback error message if the fallback also fails.
func WithBrowserError(err error) DomainOption {
	return func(c *DomainCrawler) {
		c.browserErr = err
	}
}

// NewDomainCrawler creates a crawler for domain. browser may be nil, in
// which case the crawl goes straight to the plain-HTTP fallback.
// Crawl errors are appended to errs.
func NewDomainCrawler(domain string, browser Browser, client HTTPClient, headers HeaderGenerator, errs *model.ErrorLog, opts ...DomainOption) *DomainCrawler {
	c := &DomainCrawler{
		domain:     domain,
		browser:    browser,
		client:     client,
		headers:    headers,
		classifier: defaultClassifier,
		errs:       errs,
		logger:     slog.Default(),
		opts:       DefaultOptions(),
		frontier:   NewFrontier(),
		state:      StateInit,
		strategy:   model.StrategyNone,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.opts = c.opts.normalized()
	c.retriesLeft = c.opts.Retries
	c.logger = c.logger.With("domain", domain)
	if c.errs == nil {
		c.errs = model.NewErrorLog()
	}
	if c.headers == nil {
		c.headers = noHeaders{}
	}
	return c
}

// noHeaders is used when no header generator is configured.
type noHeaders struct{}

func (noHeaders) Random() map[string]string { return map[string]string{} }

// Frontier returns the crawler's frontier. It must only be read after Run
// has returned.
func (c *DomainCrawler) Frontier() *Frontier {
	return c.frontier
}

// State returns the current state.
func (c *DomainCrawler) State() State {
	return c.state
}

// Run drives the state machine to Done and returns the domain's result.
// It never fails: problems are appended to the error log, and a panic is
// recovered and recorded so that other domains are unaffected.
func (c *DomainCrawler) Run(ctx context.Context) (result model.DomainResult) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("domain crawl panicked", "state", c.state.String(), "panic", r)
			c.record("", model.ErrorKindInternal, fmt.Sprintf("panic in state %s: %v", c.state, r))
			c.state = StateDone
		}
		c.release()
		result = c.result(time.Since(start))
	}()

	for c.state != StateDone {
		next := c.step(ctx)
		c.logger.Debug("state transition", "from", c.state.String(), "to", next.String())
		c.state = next
	}
	return result
}

func (c *DomainCrawler) step(ctx context.Context) State {
	switch c.state {
	case StateInit:
		return c.init(ctx)
	case StateRendering:
		return c.render(ctx)
	case StateExtracting:
		return c.extract(ctx)
	case StateRetry:
		return c.retry(ctx)
	case StateFallbackFetch:
		return c.fallback(ctx)
	default:
		return StateDone
	}
}

func (c *DomainCrawler) init(ctx context.Context) State {
	if c.browser == nil {
		c.navErr = ErrNoBrowser
		if c.browserErr != nil {
			c.navErr = fmt.Errorf("%w: %w", ErrNoBrowser, c.browserErr)
		}
		c.logger.Debug("no browser, using fallback fetch")
		return StateFallbackFetch
	}

	bctx, err := c.browser.NewContext(ctx, c.freshHeaders(), true)
	if err != nil {
		c.navErr = fmt.Errorf("open browser context: %w", err)
		c.logger.Warn("failed to open browser context", "error", err)
		return StateFallbackFetch
	}
	c.bctx = bctx

	page, err := bctx.NewPage(ctx)
	if err != nil {
		c.navErr = fmt.Errorf("open page: %w", err)
		c.logger.Warn("failed to open page", "error", err)
		return StateFallbackFetch
	}
	c.page = page

	return StateRendering
}

func (c *DomainCrawler) render(ctx context.Context) State {
	c.attempts++

	resp, err := c.page.Goto(ctx, c.domain, c.opts.NavigationTimeout, LoadStateDOMContentLoaded)
	if err != nil {
		c.navErr = &NavigationError{URL: c.domain, Err: err}
		return StateRetry
	}
	if !resp.OK() {
		status := 0
		if resp != nil {
			status = resp.Status
		}
		c.navErr = &NavigationError{URL: c.domain, Status: status}
		return StateRetry
	}
	return StateExtracting
}

func (c *DomainCrawler) extract(ctx context.Context) State {
	if err := c.ExtractProductURLs(ctx, c.page, 0); err != nil {
		c.navErr = &NavigationError{URL: c.domain, Err: err}
		return StateRetry
	}
	c.pagesRendered++
	c.strategy = model.StrategyRender

	if c.opts.FollowCategories {
		c.traverse(ctx)
	}
	return StateDone
}

func (c *DomainCrawler) retry(ctx context.Context) State {
	c.retriesLeft--
	c.logger.Warn("navigation failed",
		"attempt", c.attempts,
		"retries_left", c.retriesLeft,
		"error", c.navErr,
	)

	if c.retriesLeft <= 0 {
		c.logger.Warn("render attempts exhausted, falling back to plain fetch", "attempts", c.attempts)
		return StateFallbackFetch
	}

	if c.opts.RetryDelay > 0 {
		timer := time.NewTimer(c.opts.RetryDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
		case <-timer.C:
		}
	}
	return StateRendering
}

func (c *DomainCrawler) fallback(ctx context.Context) State {
	if c.client == nil {
		c.recordFallback(&FallbackError{URL: c.domain, Err: ErrNoHTTPClient})
		return StateDone
	}

	resp, err := c.client.Get(ctx, c.domain, c.freshHeaders(), c.opts.FetchTimeout)
	if err != nil {
		c.recordFallback(&FallbackError{URL: c.domain, Err: err})
		return StateDone
	}
	if resp == nil || resp.Status != 200 {
		status := 0
		if resp != nil {
			status = resp.Status
		}
		c.recordFallback(&FallbackError{URL: c.domain, Status: status})
		return StateDone
	}

	c.strategy = model.StrategyFallback
	found := 0
	for _, href := range ExtractHrefs(resp.Body) {
		full, ok := Resolve(c.domain, href)
		if !ok {
			continue
		}
		if c.classifier.IsProduct(full) {
			c.frontier.RecordProduct(full)
			found++
		}
	}
	c.logger.Info("fallback fetch finished", "products", found)
	return StateDone
}

// ExtractProductURLs reads every anchor on page and classifies the links
// it resolves, relative to the domain root. depth is the number of hops
// below the homepage; beyond MaxDepth the call does nothing.
//
// An error means the anchors could not be enumerated at all. A single
// unreadable anchor is recorded as an extraction error and skipped.
func (c *DomainCrawler) ExtractProductURLs(ctx context.Context, page Page, depth int) error {
	if depth > c.opts.MaxDepth {
		return nil
	}

	if err := page.WaitForLoadState(ctx, LoadStateDOMContentLoaded); err != nil {
		return fmt.Errorf("wait for load state: %w", err)
	}

	anchors, err := page.QueryAllAnchors(ctx)
	if err != nil {
		return fmt.Errorf("query anchors: %w", err)
	}

	for _, anchor := range anchors {
		href, ok, err := anchor.Attribute("href")
		if err != nil {
			c.logger.Warn("failed to read anchor", "error", err, "depth", depth)
			c.record("", model.ErrorKindExtraction, fmt.Sprintf("read href: %v", err))
			continue
		}
		if !ok || href == "" {
			continue
		}
		c.classify(href, depth)
	}
	return nil
}

// classify resolves href and files it into the frontier.
func (c *DomainCrawler) classify(href string, depth int) {
	full, ok := Resolve(c.domain, href)
	if !ok {
		return
	}
	if !c.frontier.MarkVisited(full) {
		return
	}

	if rule, ok := c.classifier.Match(full); ok {
		c.frontier.RecordProduct(full)
		c.logger.Debug("product found", "url", full, "rule", rule.Name)
		return
	}

	if SameSite(c.domain, full) && c.frontier.RecordToVisit(full) {
		c.queue = append(c.queue, queued{url: full, depth: depth + 1})
	}
}

// traverse renders queued category pages breadth-first until the queue is
// empty, MaxPages is reached or ctx is done. Each page gets one attempt.
func (c *DomainCrawler) traverse(ctx context.Context) {
	for len(c.queue) > 0 && c.pagesRendered < c.opts.MaxPages {
		if ctx.Err() != nil {
			return
		}

		next := c.queue[0]
		c.queue = c.queue[1:]

		if next.depth > c.opts.MaxDepth {
			continue
		}
		if !shouldFollow(next.url, c.opts.IgnorePatterns, c.opts.FollowPatterns) {
			c.logger.Debug("category skipped by pattern", "url", next.url)
			continue
		}

		resp, err := c.page.Goto(ctx, next.url, c.opts.NavigationTimeout, LoadStateDOMContentLoaded)
		if err != nil {
			c.record(next.url, model.ErrorKindNavigation, (&NavigationError{URL: next.url, Err: err}).Error())
			continue
		}
		if !resp.OK() {
			status := 0
			if resp != nil {
				status = resp.Status
			}
			c.record(next.url, model.ErrorKindNavigation, (&NavigationError{URL: next.url, Status: status}).Error())
			continue
		}

		if err := c.ExtractProductURLs(ctx, c.page, next.depth); err != nil {
			c.record(next.url, model.ErrorKindNavigation, (&NavigationError{URL: next.url, Err: err}).Error())
			continue
		}
		c.pagesRendered++
		c.logger.Debug("category extracted", "url", next.url, "depth", next.depth, "products", c.frontier.LenProducts())
	}
}

// freshHeaders generates a new header set with the configured overrides.
func (c *DomainCrawler) freshHeaders() map[string]string {
	headers := c.headers.Random()
	if headers == nil {
		headers = make(map[string]string, len(c.opts.Headers))
	}
	for k, v := range c.opts.Headers {
		headers[k] = v
	}
	return headers
}

func (c *DomainCrawler) recordFallback(err *FallbackError) {
	msg := err.Error()
	if c.navErr != nil {
		msg = fmt.Sprintf("%s (after render failure: %v)", msg, c.navErr)
	}
	c.logger.Warn("fallback fetch failed", "error", msg)
	c.record(c.domain, model.ErrorKindFallback, msg)
}

func (c *DomainCrawler) record(pageURL string, kind model.ErrorKind, message string) {
	c.errs.Append(model.NewCrawlError(c.domain, pageURL, kind, message))
}

// release closes the page and the browser context. Close errors only
// matter for debugging.
func (c *DomainCrawler) release() {
	if c.page != nil {
		if err := c.page.Close(); err != nil {
			c.logger.Debug("failed to close page", "error", err)
		}
		c.page = nil
	}
	if c.bctx != nil {
		if err := c.bctx.Close(); err != nil {
			c.logger.Debug("failed to close browser context", "error", err)
		}
		c.bctx = nil
	}
}

func (c *DomainCrawler) result(elapsed time.Duration) model.DomainResult {
	return model.DomainResult{
		Domain:        c.domain,
		Products:      c.frontier.Products(),
		Categories:    c.frontier.ToVisit(),
		VisitedCount:  c.frontier.LenVisited(),
		PagesRendered: c.pagesRendered,
		Attempts:      c.attempts,
		Strategy:      c.strategy,
		Duration:      elapsed,
	}
}
