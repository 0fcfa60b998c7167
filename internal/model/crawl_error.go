package model

import (
	"fmt"
	"sync"
	"time"
)

// ErrorKind classifies where in a domain crawl an error happened.
type ErrorKind string

// Error kind constants.
const (
	// ErrorKindNavigation is a failed or timed-out page navigation,
	// including non-2xx responses from the rendered page.
	ErrorKindNavigation ErrorKind = "navigation"
	// ErrorKindExtraction is a failure to read an anchor on a rendered page.
	ErrorKindExtraction ErrorKind = "extraction"
	// ErrorKindFallback is a failed plain-HTTP fallback fetch.
	ErrorKindFallback ErrorKind = "fallback"
	// ErrorKindInternal is an unexpected failure inside a domain crawl,
	// such as a recovered panic.
	ErrorKindInternal ErrorKind = "internal"
)

// String returns the string representation of the ErrorKind.
func (k ErrorKind) String() string {
	if k == "" {
		return "unknown"
	}
	return string(k)
}

// IsValid returns true if this is a known error kind.
func (k ErrorKind) IsValid() bool {
	switch k {
	case ErrorKindNavigation, ErrorKindExtraction, ErrorKindFallback, ErrorKindInternal:
		return true
	default:
		return false
	}
}

// ParseErrorKind converts a string to an ErrorKind.
// Unknown values map to the empty kind.
func ParseErrorKind(s string) ErrorKind {
	k := ErrorKind(s)
	if k.IsValid() {
		return k
	}
	return ""
}

// CrawlError is a diagnostic record of something that went wrong while
// crawling one domain. It is never fatal: the domain crawl always runs to
// completion and the error only ends up in the run's error list.
type CrawlError struct {
	// Domain is the seed URL whose crawl produced the error.
	Domain string `json:"domain"`

	// URL is the page involved, when it differs from the domain root
	// or is otherwise known.
	URL string `json:"url,omitempty"`

	// Kind tells which stage of the crawl failed.
	Kind ErrorKind `json:"kind"`

	// Message is the human-readable cause.
	Message string `json:"message"`

	// Time is when the error was recorded.
	Time time.Time `json:"time"`
}

// NewCrawlError creates a CrawlError stamped with the current time.
func NewCrawlError(domain, pageURL string, kind ErrorKind, message string) CrawlError {
	return CrawlError{
		Domain:  domain,
		URL:     pageURL,
		Kind:    kind,
		Message: message,
		Time:    time.Now(),
	}
}

// Error implements the error interface.
func (e CrawlError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("%s: %s error at %s: %s", e.Domain, e.Kind, e.URL, e.Message)
	}
	return fmt.Sprintf("%s: %s error: %s", e.Domain, e.Kind, e.Message)
}

// ErrorLog is an append-only list of CrawlErrors shared by every domain
// crawler of a run. Appends are safe for concurrent use.
type ErrorLog struct {
	mu      sync.Mutex
	entries []CrawlError
}

// NewErrorLog creates an empty ErrorLog.
func NewErrorLog() *ErrorLog {
	return &ErrorLog{entries: make([]CrawlError, 0)}
}

// Append records an error.
func (l *ErrorLog) Append(e CrawlError) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
}

// Len returns the number of recorded errors.
func (l *ErrorLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Snapshot returns a copy of the recorded errors in append order.
func (l *ErrorLog) Snapshot() []CrawlError {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]CrawlError, len(l.entries))
	copy(out, l.entries)
	return out
}

// ForDomain returns the errors recorded for one domain, in append order.
func (l *ErrorLog) ForDomain(domain string) []CrawlError {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]CrawlError, 0)
	for _, e := range l.entries {
		if e.Domain == domain {
			out = append(out, e)
		}
	}
	return out
}
