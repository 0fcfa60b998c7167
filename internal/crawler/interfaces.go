package crawler

import (
	"context"
	"time"
)

// LoadState is a page lifecycle milestone a navigation can wait for.
type LoadState string

// Load states understood by Page implementations.
const (
	// LoadStateDOMContentLoaded fires once the HTML is parsed; scripts and
	// images may still be loading.
	LoadStateDOMContentLoaded LoadState = "domcontentloaded"
	// LoadStateLoad fires once every subresource has loaded.
	LoadStateLoad LoadState = "load"
)

// Response is the outcome of a page navigation.
type Response struct {
	// Status is the HTTP status of the main document.
	// Zero means the renderer could not observe it.
	Status int
}

// OK reports whether the navigation produced a usable page.
func (r *Response) OK() bool {
	if r == nil {
		return false
	}
	return r.Status == 0 || (r.Status >= 200 && r.Status < 300)
}

// Anchor is an <a> element on a rendered page.
type Anchor interface {
	// Attribute returns the attribute value and whether it is present.
	// An error means the element could not be read (e.g. it was detached).
	Attribute(name string) (string, bool, error)
}

// Page is a browser tab.
type Page interface {
	// Goto navigates to rawURL, waiting until the given load state or the
	// timeout, whichever comes first.
	Goto(ctx context.Context, rawURL string, timeout time.Duration, waitUntil LoadState) (*Response, error)

	// WaitForLoadState blocks until the current document reaches state.
	WaitForLoadState(ctx context.Context, state LoadState) error

	// QueryAllAnchors returns every anchor on the current document in
	// document order.
	QueryAllAnchors(ctx context.Context) ([]Anchor, error)

	// Close releases the tab.
	Close() error
}

// BrowserContext is an isolated browsing session: cookies, cache and
// headers never leak between contexts.
type BrowserContext interface {
	// NewPage opens a tab in this context.
	NewPage(ctx context.Context) (Page, error)

	// Close releases the context and every page opened in it.
	Close() error
}

// Browser is a running browser process shared by all domain crawlers.
// It is only used to spawn contexts.
type Browser interface {
	// NewContext opens an isolated context that sends headers with every
	// request. With ignoreTLSErrors set, self-signed or expired
	// certificates do not abort navigation.
	NewContext(ctx context.Context, headers map[string]string, ignoreTLSErrors bool) (BrowserContext, error)

	// Close shuts the browser down.
	Close() error
}

// Launcher starts a Browser.
type Launcher interface {
	Launch(ctx context.Context) (Browser, error)
}

// HTTPResponse is the outcome of a plain HTTP GET.
type HTTPResponse struct {
	// Status is the HTTP status code.
	Status int

	// Body is the decoded response body.
	Body string
}

// HTTPClient performs the plain GET used by the fallback path.
type HTTPClient interface {
	Get(ctx context.Context, rawURL string, headers map[string]string, timeout time.Duration) (*HTTPResponse, error)
}

// HeaderGenerator produces a fresh set of browser-like request headers.
type HeaderGenerator interface {
	Random() map[string]string
}
