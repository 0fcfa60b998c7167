// Package log builds the application's slog loggers.
//
// Loggers created by NewLogger write through a RedactingHandler, which
// masks credentials that may show up in crawl logs:
//   - header values such as Cookie and Authorization, also inside
//     map[string]string attributes
//   - bearer, basic and JWT tokens
//   - proxy passwords and token-like query parameters inside URLs
//
// # Usage
//
//	logger := log.NewLogger(os.Stderr, verbose, false)
//	slog.SetDefault(logger)
package log
