package fetch

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
)

func newTestClient(t *testing.T, opts ...Option) *Client {
	t.Helper()

	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	c, err := New(opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestClientGet(t *testing.T) {
	t.Parallel()

	t.Run("returns status and body", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(`<a href="/p/55">x</a>`))
		}))
		defer server.Close()

		resp, err := newTestClient(t).Get(context.Background(), server.URL, nil, time.Second)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if resp.Status != http.StatusOK {
			t.Errorf("expected 200, got %d", resp.Status)
		}
		if resp.Body != `<a href="/p/55">x</a>` {
			t.Errorf("unexpected body %q", resp.Body)
		}
	})

	t.Run("non-2xx is not an error", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "maintenance", http.StatusServiceUnavailable)
		}))
		defer server.Close()

		resp, err := newTestClient(t).Get(context.Background(), server.URL, nil, time.Second)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if resp.Status != http.StatusServiceUnavailable {
			t.Errorf("expected 503, got %d", resp.Status)
		}
	})

	t.Run("sends caller headers", func(t *testing.T) {
		t.Parallel()

		got := make(chan http.Header, 1)
		server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			got <- r.Header.Clone()
		}))
		defer server.Close()

		headers := map[string]string{
			"User-Agent":      "Mozilla/5.0 test",
			"Accept-Language": "de-DE,de;q=0.9",
			"Referer":         "https://www.google.com/",
		}
		if _, err := newTestClient(t).Get(context.Background(), server.URL, headers, time.Second); err != nil {
			t.Fatalf("Get: %v", err)
		}

		h := <-got
		for k, v := range headers {
			if h.Get(k) != v {
				t.Errorf("header %s = %q, want %q", k, h.Get(k), v)
			}
		}
		if h.Get("Accept-Encoding") != "gzip, deflate, br" {
			t.Errorf("expected default Accept-Encoding, got %q", h.Get("Accept-Encoding"))
		}
	})

	t.Run("times out", func(t *testing.T) {
		t.Parallel()

		release := make(chan struct{})
		server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer server.Close()
		defer close(release)

		_, err := newTestClient(t).Get(context.Background(), server.URL, nil, 50*time.Millisecond)
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline exceeded, got %v", err)
		}
	})

	t.Run("accepts self-signed certificates", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("secure"))
		}))
		defer server.Close()

		resp, err := newTestClient(t).Get(context.Background(), server.URL, nil, time.Second)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if resp.Body != "secure" {
			t.Errorf("unexpected body %q", resp.Body)
		}
	})

	t.Run("follows redirects", func(t *testing.T) {
		t.Parallel()

		mux := http.NewServeMux()
		mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/home", http.StatusFound)
		})
		mux.HandleFunc("/home", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("home"))
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		resp, err := newTestClient(t).Get(context.Background(), server.URL+"/", nil, time.Second)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if resp.Status != http.StatusOK || resp.Body != "home" {
			t.Errorf("expected redirected page, got %d %q", resp.Status, resp.Body)
		}
	})

	t.Run("stops after too many redirects", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, r.URL.Path+"x", http.StatusFound)
		}))
		defer server.Close()

		resp, err := newTestClient(t).Get(context.Background(), server.URL+"/", nil, time.Second)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if resp.Status != http.StatusFound {
			t.Errorf("expected the last redirect response, got %d", resp.Status)
		}
	})

	t.Run("invalid URL", func(t *testing.T) {
		t.Parallel()

		if _, err := newTestClient(t).Get(context.Background(), "://bad", nil, time.Second); err == nil {
			t.Error("expected an error")
		}
	})
}

func TestClientDecoding(t *testing.T) {
	t.Parallel()

	const page = `<html><a href="/dp/1">Product</a></html>`

	encoders := []struct {
		name      string
		encoding  string
		newWriter func(io.Writer) io.WriteCloser
	}{
		{"gzip", "gzip", func(w io.Writer) io.WriteCloser { return gzip.NewWriter(w) }},
		{"br", "br", func(w io.Writer) io.WriteCloser { return brotli.NewWriter(w) }},
		{"deflate", "deflate", func(w io.Writer) io.WriteCloser { return zlib.NewWriter(w) }},
		{"raw deflate", "deflate", func(w io.Writer) io.WriteCloser {
			fw, _ := flate.NewWriter(w, flate.DefaultCompression) //nolint:errcheck // valid level
			return fw
		}},
	}

	for _, tt := range encoders {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			w := tt.newWriter(&buf)
			if _, err := w.Write([]byte(page)); err != nil {
				t.Fatalf("compress: %v", err)
			}
			if err := w.Close(); err != nil {
				t.Fatalf("compress: %v", err)
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Encoding", tt.encoding)
				w.Header().Set("Content-Type", "text/html")
				_, _ = w.Write(buf.Bytes())
			}))
			defer server.Close()

			resp, err := newTestClient(t).Get(context.Background(), server.URL, nil, time.Second)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if resp.Body != page {
				t.Errorf("expected decoded body, got %q", resp.Body)
			}
		})
	}

	t.Run("corrupt gzip", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Encoding", "gzip")
			_, _ = w.Write([]byte("not gzip"))
		}))
		defer server.Close()

		if _, err := newTestClient(t).Get(context.Background(), server.URL, nil, time.Second); err == nil {
			t.Error("expected a decode error")
		}
	})

	t.Run("charset from content type", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=windows-1252")
			_, _ = w.Write([]byte("<a href=\"/p/caf\xe9\">caf\xe9</a>"))
		}))
		defer server.Close()

		resp, err := newTestClient(t).Get(context.Background(), server.URL, nil, time.Second)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if !strings.Contains(resp.Body, "café") {
			t.Errorf("expected UTF-8 body, got %q", resp.Body)
		}
	})

	t.Run("charset from meta tag", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html><head><meta charset=\"iso-8859-1\"></head><body>na\xefve</body></html>"))
		}))
		defer server.Close()

		resp, err := newTestClient(t).Get(context.Background(), server.URL, nil, time.Second)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if !strings.Contains(resp.Body, "naïve") {
			t.Errorf("expected UTF-8 body, got %q", resp.Body)
		}
	})

	t.Run("utf-8 after an ascii prefix", func(t *testing.T) {
		t.Parallel()

		body := "<html><!--" + strings.Repeat("a", 1100) + "--><a href=\"/p/café\">café</a></html>"
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(body))
		}))
		defer server.Close()

		resp, err := newTestClient(t).Get(context.Background(), server.URL, nil, time.Second)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if resp.Body != body {
			t.Errorf("expected the UTF-8 body unchanged, got %q", resp.Body[len(resp.Body)-40:])
		}
	})

	t.Run("body is truncated", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			_, _ = w.Write([]byte(strings.Repeat("a", 100)))
		}))
		defer server.Close()

		resp, err := newTestClient(t, WithMaxBodySize(10)).Get(context.Background(), server.URL, nil, time.Second)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if len(resp.Body) != 10 {
			t.Errorf("expected 10 bytes, got %d", len(resp.Body))
		}
	})
}

func TestClientProxy(t *testing.T) {
	t.Parallel()

	t.Run("http proxy receives the request", func(t *testing.T) {
		t.Parallel()

		seen := make(chan string, 1)
		proxyServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen <- r.URL.String()
			_, _ = w.Write([]byte("via proxy"))
		}))
		defer proxyServer.Close()

		c := newTestClient(t, WithProxy(proxyServer.URL))
		resp, err := c.Get(context.Background(), "http://shop.test/", nil, time.Second)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if resp.Body != "via proxy" {
			t.Errorf("unexpected body %q", resp.Body)
		}
		if got := <-seen; got != "http://shop.test/" {
			t.Errorf("proxy saw %q", got)
		}
	})

	t.Run("socks5 proxy is accepted", func(t *testing.T) {
		t.Parallel()

		if _, err := New(WithProxy("socks5://127.0.0.1:9050")); err != nil {
			t.Errorf("expected socks5 proxy to be accepted, got %v", err)
		}
	})

	t.Run("rejects unsupported scheme", func(t *testing.T) {
		t.Parallel()

		_, err := New(WithProxy("ftp://127.0.0.1:21"))
		if !errors.Is(err, ErrUnsupportedProxy) {
			t.Errorf("expected ErrUnsupportedProxy, got %v", err)
		}
	})

	t.Run("rejects proxy without host", func(t *testing.T) {
		t.Parallel()

		_, err := New(WithProxy("socks5://"))
		if !errors.Is(err, ErrInvalidProxy) {
			t.Errorf("expected ErrInvalidProxy, got %v", err)
		}
	})
}

func TestClientRateLimit(t *testing.T) {
	t.Parallel()

	t.Run("negative rate is rejected", func(t *testing.T) {
		t.Parallel()

		if _, err := New(WithRateLimit(-1, 1)); !errors.Is(err, ErrInvalidRate) {
			t.Errorf("expected ErrInvalidRate, got %v", err)
		}
	})

	t.Run("requests are spaced", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {}))
		defer server.Close()

		c := newTestClient(t, WithRateLimit(20, 1))
		start := time.Now()
		for range 3 {
			if _, err := c.Get(context.Background(), server.URL, nil, time.Second); err != nil {
				t.Fatalf("Get: %v", err)
			}
		}
		// 20 rps with burst 1: the second and third request wait 50ms each.
		if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
			t.Errorf("expected requests to be rate limited, took %v", elapsed)
		}
	})

	t.Run("cancelled wait fails", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {}))
		defer server.Close()

		c := newTestClient(t, WithRateLimit(0.001, 1))
		if _, err := c.Get(context.Background(), server.URL, nil, time.Second); err != nil {
			t.Fatalf("first Get: %v", err)
		}
		if _, err := c.Get(context.Background(), server.URL, nil, 50*time.Millisecond); err == nil {
			t.Error("expected the second request to fail waiting for the limiter")
		}
	})
}

func TestIsZlibHeader(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		cmf, flg byte
		want     bool
	}{
		{"default compression", 0x78, 0x9c, true},
		{"no compression", 0x78, 0x01, true},
		{"best compression", 0x78, 0xda, true},
		{"bad check value", 0x78, 0x9d, false},
		{"gzip magic", 0x1f, 0x8b, false},
		{"window too large", 0x88, 0x1c, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := isZlibHeader(tt.cmf, tt.flg); got != tt.want {
				t.Errorf("isZlibHeader(%#x, %#x) = %v, want %v", tt.cmf, tt.flg, got, tt.want)
			}
		})
	}
}
