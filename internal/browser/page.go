package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/security"
	"github.com/chromedp/chromedp"
	"github.com/nao1215/productscan/internal/crawler"
)

// DefaultWaitTimeout bounds WaitForLoadState and QueryAllAnchors.
const DefaultWaitTimeout = 30 * time.Second

// Context is an isolated Chrome browser context.
type Context struct {
	ctx             context.Context
	cancel          context.CancelFunc
	headers         map[string]string
	ignoreTLSErrors bool
	logger          *slog.Logger
}

// NewPage opens a tab in the context and applies its headers.
func (c *Context) NewPage(ctx context.Context) (crawler.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pctx, cancel := chromedp.NewContext(c.ctx)
	extra, userAgent, acceptLanguage := splitHeaders(c.headers)

	setup := chromedp.Tasks{
		network.Enable(),
		network.SetExtraHTTPHeaders(extra),
	}
	if userAgent != "" {
		setup = append(setup, emulation.SetUserAgentOverride(userAgent).WithAcceptLanguage(acceptLanguage))
	}
	if c.ignoreTLSErrors {
		setup = append(setup, security.SetIgnoreCertificateErrors(true))
	}
	if err := chromedp.Run(pctx, setup); err != nil {
		cancel()
		return nil, fmt.Errorf("open page: %w", err)
	}

	p := &Page{ctx: pctx, cancel: cancel, logger: c.logger}
	chromedp.ListenTarget(pctx, p.onEvent)
	return p, nil
}

// Close disposes the browser context and its tabs.
func (c *Context) Close() error {
	err := chromedp.Cancel(c.ctx)
	c.cancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("close browser context: %w", err)
	}
	return nil
}

// splitHeaders separates the headers Chrome sets through emulation from
// the ones sent as extra request headers. Accept-Encoding is left to
// Chrome, which decodes what it negotiates.
func splitHeaders(headers map[string]string) (network.Headers, string, string) {
	extra := make(network.Headers, len(headers))
	var userAgent, acceptLanguage string
	for k, v := range headers {
		switch http.CanonicalHeaderKey(k) {
		case "Accept-Encoding":
			continue
		case "User-Agent":
			userAgent = v
		case "Accept-Language":
			acceptLanguage = v
		}
		extra[k] = v
	}
	return extra, userAgent, acceptLanguage
}

// Page is a Chrome tab.
type Page struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger

	mu     sync.Mutex
	status int
}

// onEvent records the status of the first document response after a
// navigation starts.
func (p *Page) onEvent(ev any) {
	e, ok := ev.(*network.EventResponseReceived)
	if !ok || e.Type != network.ResourceTypeDocument || e.Response == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status == 0 {
		p.status = int(e.Response.Status)
	}
}

func (p *Page) observedStatus() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *Page) resetStatus() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = 0
}

// bound derives a command context from the tab that is also cancelled
// with ctx and, if timeout > 0, after timeout.
func (p *Page) bound(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	var (
		c      context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		c, cancel = context.WithTimeout(p.ctx, timeout)
	} else {
		c, cancel = context.WithCancel(p.ctx)
	}
	stop := context.AfterFunc(ctx, cancel)
	return c, func() {
		stop()
		cancel()
	}
}

// Goto navigates to rawURL.
//
// chromedp waits for the load event. When waitUntil is DOMContentLoaded
// and the timeout hits after the document was already parsed, the
// navigation still counts as successful.
func (p *Page) Goto(ctx context.Context, rawURL string, timeout time.Duration, waitUntil crawler.LoadState) (*crawler.Response, error) {
	p.resetStatus()

	navCtx, cancel := p.bound(ctx, timeout)
	defer cancel()

	resp, err := chromedp.RunResponse(navCtx, chromedp.Navigate(rawURL))
	if err != nil {
		if waitUntil == crawler.LoadStateDOMContentLoaded &&
			errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			if state, serr := p.readyState(ctx); serr == nil && reached(state, waitUntil) {
				p.logger.Debug("load event timed out after DOMContentLoaded", "url", rawURL)
				return &crawler.Response{Status: p.observedStatus()}, nil
			}
		}
		return nil, fmt.Errorf("navigate %s: %w", rawURL, err)
	}

	if resp == nil {
		return &crawler.Response{Status: p.observedStatus()}, nil
	}
	return &crawler.Response{Status: int(resp.Status)}, nil
}

// WaitForLoadState polls document.readyState until state is reached.
func (p *Page) WaitForLoadState(ctx context.Context, state crawler.LoadState) error {
	wctx, cancel := p.bound(ctx, DefaultWaitTimeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		var readyState string
		if err := chromedp.Run(wctx, chromedp.Evaluate(`document.readyState`, &readyState)); err != nil {
			return fmt.Errorf("wait for %s: %w", state, err)
		}
		if reached(readyState, state) {
			return nil
		}
		select {
		case <-ticker.C:
		case <-wctx.Done():
			return fmt.Errorf("wait for %s: %w", state, wctx.Err())
		}
	}
}

func (p *Page) readyState(ctx context.Context) (string, error) {
	rctx, cancel := p.bound(ctx, 5*time.Second)
	defer cancel()

	var readyState string
	err := chromedp.Run(rctx, chromedp.Evaluate(`document.readyState`, &readyState))
	return readyState, err
}

// reached reports whether a document.readyState value satisfies want.
func reached(readyState string, want crawler.LoadState) bool {
	switch want {
	case crawler.LoadStateLoad:
		return readyState == "complete"
	default:
		return readyState == "interactive" || readyState == "complete"
	}
}

// QueryAllAnchors serializes the rendered DOM and returns its anchors in
// document order.
func (p *Page) QueryAllAnchors(ctx context.Context) ([]crawler.Anchor, error) {
	qctx, cancel := p.bound(ctx, DefaultWaitTimeout)
	defer cancel()

	var html string
	if err := chromedp.Run(qctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return nil, fmt.Errorf("read DOM: %w", err)
	}
	return parseAnchors(html)
}

// Close closes the tab.
func (p *Page) Close() error {
	err := chromedp.Cancel(p.ctx)
	p.cancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("close page: %w", err)
	}
	return nil
}
