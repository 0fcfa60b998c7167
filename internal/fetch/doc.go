// Package fetch implements the plain HTTP GET used when a page cannot be
// rendered in the browser.
//
// The Client sends the caller's browser-like headers, accepts any TLS
// certificate, follows up to ten redirects and decodes gzip, deflate and
// brotli bodies itself. The decompressed body is converted to UTF-8 from
// the charset declared in Content-Type or in a <meta> tag.
//
// An optional HTTP or SOCKS5 proxy and a client-wide request rate limit
// can be configured.
package fetch
