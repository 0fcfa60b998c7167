package fetch

import (
	"bufio"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/andybalholm/brotli"
	"github.com/nao1215/productscan/internal/crawler"
	"golang.org/x/net/html/charset"
	"golang.org/x/net/proxy"
	"golang.org/x/time/rate"
)

const (
	// DefaultMaxBodySize is the number of decoded body bytes kept per response.
	DefaultMaxBodySize int64 = 10 * 1024 * 1024

	// maxRedirects is the redirect limit.
	maxRedirects = 10
)

// Client performs plain HTTP GETs for the fallback path.
// It is safe for concurrent use; all domain crawlers share one Client.
type Client struct {
	httpClient  *http.Client
	transport   *http.Transport
	limiter     *rate.Limiter
	maxBodySize int64
	logger      *slog.Logger

	proxyURL string
	rps      float64
	burst    int
}

// Option configures a Client.
type Option func(*Client)

// WithProxy routes every request through proxyURL. Supported schemes are
// http, https, socks5 and socks5h. An empty string disables the proxy.
func WithProxy(proxyURL string) Option {
	return func(c *Client) {
		c.proxyURL = strings.TrimSpace(proxyURL)
	}
}

// WithRateLimit caps the request rate of the whole client.
// rps <= 0 disables limiting. burst below 1 is treated as 1.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		c.rps = rps
		c.burst = burst
	}
}

// WithMaxBodySize sets how many decoded body bytes are kept.
// Larger bodies are truncated.
func WithMaxBodySize(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBodySize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a Client.
//
// Design decision: TLS certificates are not verified. The fallback exists
// to salvage product links from sites the browser could not load, and
// misconfigured certificates are a common reason for that.
func New(opts ...Option) (*Client, error) {
	c := &Client{
		maxBodySize: DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}

	c.transport = &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: true, //nolint:gosec // sites with broken certificates are still crawled
		},
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		// Bodies are decoded in readBody so that a caller-supplied
		// Accept-Encoding (including br) is honored.
		DisableCompression: true,
	}

	if err := c.configureProxy(); err != nil {
		return nil, err
	}

	if c.rps < 0 {
		return nil, ErrInvalidRate
	}
	if c.rps > 0 {
		burst := c.burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(c.rps), burst)
	}

	c.httpClient = &http.Client{
		Transport: c.transport,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
	return c, nil
}

func (c *Client) configureProxy() error {
	if c.proxyURL == "" {
		return nil
	}

	u, err := url.Parse(c.proxyURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidProxy, c.proxyURL)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		c.transport.Proxy = http.ProxyURL(u)
	case "socks5", "socks5h":
		dialer, err := proxy.FromURL(u, proxy.Direct)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidProxy, err)
		}
		c.transport.DialContext = contextDialer(dialer)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedProxy, u.Scheme)
	}
	return nil
}

// contextDialer adapts a proxy.Dialer to http.Transport.DialContext.
// The SOCKS5 dialer supports contexts; other dialers are wrapped so that
// cancellation is at least observed by the caller.
func contextDialer(d proxy.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	if cd, ok := d.(proxy.ContextDialer); ok {
		return cd.DialContext
	}
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		type dialResult struct {
			conn net.Conn
			err  error
		}
		resultCh := make(chan dialResult, 1)
		go func() {
			conn, err := d.Dial(network, addr)
			resultCh <- dialResult{conn, err}
		}()
		select {
		case r := <-resultCh:
			return r.conn, r.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Get fetches rawURL with the given headers. timeout bounds the whole
// exchange including reading the body. Any status is returned as-is;
// only transport failures are errors.
func (c *Client) Get(ctx context.Context, rawURL string, headers map[string]string, timeout time.Duration) (*crawler.HTTPResponse, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if req.Header.Get("Accept-Encoding") == "" {
		req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := c.readBody(resp)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("fallback response",
		"url", rawURL,
		"status", resp.StatusCode,
		"bytes", len(body),
	)
	return &crawler.HTTPResponse{Status: resp.StatusCode, Body: body}, nil
}

// readBody decompresses, truncates and charset-decodes the response body.
func (c *Client) readBody(resp *http.Response) (string, error) {
	reader := io.Reader(resp.Body)

	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip", "x-gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return "", fmt.Errorf("gzip decode: %w", err)
		}
		defer gz.Close()
		reader = gz
	case "br":
		reader = brotli.NewReader(resp.Body)
	case "deflate":
		fl, err := newDeflateReader(resp.Body)
		if err != nil {
			return "", fmt.Errorf("deflate decode: %w", err)
		}
		defer fl.Close()
		reader = fl
	}

	raw, err := io.ReadAll(io.LimitReader(reader, c.maxBodySize+1))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	if int64(len(raw)) > c.maxBodySize {
		c.logger.Debug("response body truncated", "limit", c.maxBodySize)
		raw = raw[:c.maxBodySize]
	}

	return decodeCharset(raw, resp.Header.Get("Content-Type")), nil
}

// newDeflateReader decodes a "deflate" body. The encoding is zlib-wrapped
// deflate, but some servers send raw deflate streams, so the zlib header
// is checked first.
func newDeflateReader(r io.Reader) (io.ReadCloser, error) {
	br := bufio.NewReader(r)
	header, err := br.Peek(2)
	switch {
	case err == nil && isZlibHeader(header[0], header[1]):
		return zlib.NewReader(br)
	case err != nil && !errors.Is(err, io.EOF):
		return nil, err
	}
	return flate.NewReader(br), nil
}

// isZlibHeader reports whether cmf and flg form a valid zlib header:
// deflate method, window of at most 32 KiB and a matching check value.
func isZlibHeader(cmf, flg byte) bool {
	return cmf&0x0f == 8 && cmf>>4 <= 7 && (uint16(cmf)<<8|uint16(flg))%31 == 0
}

// decodeCharset converts body to UTF-8 using the Content-Type charset, a
// <meta> declaration or a BOM. Undecodable bodies are returned unchanged.
//
// Detection only inspects the first 1024 bytes and guesses windows-1252
// for an ASCII prefix, so a guessed encoding never overrides a body that
// is already valid UTF-8.
func decodeCharset(body []byte, contentType string) string {
	enc, name, certain := charset.DetermineEncoding(body, contentType)
	if name == "utf-8" || (!certain && utf8.Valid(body)) {
		return string(body)
	}
	decoded, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return string(body)
	}
	return string(decoded)
}
