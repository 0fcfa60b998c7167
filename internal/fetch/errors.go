package fetch

import "errors"

var (
	// ErrInvalidProxy is returned when the proxy URL cannot be parsed or has
	// no host.
	ErrInvalidProxy = errors.New("invalid proxy URL")

	// ErrUnsupportedProxy is returned for proxy schemes other than http,
	// https, socks5 and socks5h.
	ErrUnsupportedProxy = errors.New("unsupported proxy scheme: expected http, https, socks5 or socks5h")

	// ErrInvalidRate is returned for a negative request rate.
	ErrInvalidRate = errors.New("request rate must not be negative")
)
