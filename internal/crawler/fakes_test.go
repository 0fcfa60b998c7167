package crawler

import (
	"context"
	"errors"
	"sync"
	"time"
)

var errFakeNavigation = errors.New("net::ERR_CONNECTION_REFUSED")

// fakeAnchor is an in-memory <a> element.
type fakeAnchor struct {
	href    string
	present bool
	err     error
}

func (a fakeAnchor) Attribute(name string) (string, bool, error) {
	if a.err != nil {
		return "", false, a.err
	}
	if name != "href" {
		return "", false, nil
	}
	return a.href, a.present, nil
}

// links builds anchors with an href attribute each.
func links(hrefs ...string) []Anchor {
	anchors := make([]Anchor, 0, len(hrefs))
	for _, h := range hrefs {
		anchors = append(anchors, fakeAnchor{href: h, present: true})
	}
	return anchors
}

// fakeDoc describes what the fake browser serves for one URL.
type fakeDoc struct {
	status int
	// gotoErr is returned by Goto. With failures > 0 only the first
	// failures calls fail.
	gotoErr  error
	failures int
	anchors  []Anchor
	queryErr error
}

// fakeBrowser serves fakeDocs by URL. Unknown URLs return 404.
type fakeBrowser struct {
	mu       sync.Mutex
	docs     map[string]fakeDoc
	calls    map[string]int
	headers  []map[string]string
	contexts int
	closed   int
	ctxErr   error
	pageErr  error
	panicOn  string
	// meet, when set, holds every Goto until all parties have arrived.
	meet *rendezvous

	openContexts int
	openPages    int
}

func newFakeBrowser(docs map[string]fakeDoc) *fakeBrowser {
	return &fakeBrowser{docs: docs, calls: make(map[string]int)}
}

func (b *fakeBrowser) NewContext(_ context.Context, headers map[string]string, _ bool) (BrowserContext, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ctxErr != nil {
		return nil, b.ctxErr
	}
	b.contexts++
	b.openContexts++
	b.headers = append(b.headers, headers)
	return &fakeContext{browser: b}, nil
}

func (b *fakeBrowser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed++
	return nil
}

func (b *fakeBrowser) gotoCalls(u string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[u]
}

func (b *fakeBrowser) open() (contexts, pages int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.openContexts, b.openPages
}

type fakeContext struct {
	browser *fakeBrowser
}

func (c *fakeContext) NewPage(_ context.Context) (Page, error) {
	c.browser.mu.Lock()
	defer c.browser.mu.Unlock()
	if c.browser.pageErr != nil {
		return nil, c.browser.pageErr
	}
	c.browser.openPages++
	return &fakePage{browser: c.browser}, nil
}

func (c *fakeContext) Close() error {
	c.browser.mu.Lock()
	defer c.browser.mu.Unlock()
	c.browser.openContexts--
	return nil
}

type fakePage struct {
	browser *fakeBrowser
	current string
}

func (p *fakePage) Goto(ctx context.Context, rawURL string, _ time.Duration, _ LoadState) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b := p.browser
	b.mu.Lock()
	b.calls[rawURL]++
	call := b.calls[rawURL]
	doc, ok := b.docs[rawURL]
	panicOn := b.panicOn
	meet := b.meet
	b.mu.Unlock()

	if meet != nil {
		if err := meet.arrive(ctx); err != nil {
			return nil, err
		}
	}

	if panicOn != "" && panicOn == rawURL {
		panic("renderer crashed")
	}
	if !ok {
		return &Response{Status: 404}, nil
	}
	if doc.gotoErr != nil && (doc.failures == 0 || call <= doc.failures) {
		return nil, doc.gotoErr
	}
	p.current = rawURL
	return &Response{Status: doc.status}, nil
}

func (p *fakePage) WaitForLoadState(ctx context.Context, _ LoadState) error {
	return ctx.Err()
}

func (p *fakePage) QueryAllAnchors(_ context.Context) ([]Anchor, error) {
	p.browser.mu.Lock()
	doc := p.browser.docs[p.current]
	p.browser.mu.Unlock()
	if doc.queryErr != nil {
		return nil, doc.queryErr
	}
	return doc.anchors, nil
}

func (p *fakePage) Close() error {
	p.browser.mu.Lock()
	defer p.browser.mu.Unlock()
	p.browser.openPages--
	return nil
}

var errRendezvousTimeout = errors.New("not every party arrived")

// rendezvous releases its parties only once all of them are waiting.
type rendezvous struct {
	mu      sync.Mutex
	parties int
	arrived int
	all     chan struct{}
}

func newRendezvous(parties int) *rendezvous {
	return &rendezvous{parties: parties, all: make(chan struct{})}
}

func (r *rendezvous) arrive(ctx context.Context) error {
	r.mu.Lock()
	r.arrived++
	if r.arrived == r.parties {
		close(r.all)
	}
	r.mu.Unlock()

	select {
	case <-r.all:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Second):
		return errRendezvousTimeout
	}
}

// fakeLauncher returns a fixed browser or error.
type fakeLauncher struct {
	browser Browser
	err     error
}

func (l fakeLauncher) Launch(_ context.Context) (Browser, error) {
	if l.err != nil {
		return nil, l.err
	}
	return l.browser, nil
}

// fakeHTTP serves fixed responses by URL. Unknown URLs fail.
type fakeHTTP struct {
	mu        sync.Mutex
	responses map[string]*HTTPResponse
	err       error
	calls     int
	timeouts  []time.Duration
}

func (h *fakeHTTP) Get(_ context.Context, rawURL string, _ map[string]string, timeout time.Duration) (*HTTPResponse, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
	h.timeouts = append(h.timeouts, timeout)
	if h.err != nil {
		return nil, h.err
	}
	resp, ok := h.responses[rawURL]
	if !ok {
		return nil, errors.New("connection refused")
	}
	return resp, nil
}

func (h *fakeHTTP) callCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

// fakeHeaders counts how often headers were generated.
type fakeHeaders struct {
	mu    sync.Mutex
	calls int
}

func (g *fakeHeaders) Random() map[string]string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	return map[string]string{"User-Agent": "productscan-test"}
}

func (g *fakeHeaders) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}
