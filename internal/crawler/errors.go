package crawler

import (
	"errors"
	"fmt"
)

var (
	// ErrNoDomains is returned by Orchestrator.Run when no seed is given.
	ErrNoDomains = errors.New("no seed domains given")

	// ErrInvalidDomain is returned when a seed is not an absolute http(s) URL.
	ErrInvalidDomain = errors.New("seed domain must be an absolute http or https URL")

	// ErrNoBrowser is the navigation cause when the shared browser could not
	// be launched.
	ErrNoBrowser = errors.New("browser unavailable")

	// ErrNoHTTPClient is the fallback cause when no HTTP client is configured.
	ErrNoHTTPClient = errors.New("no http client configured")
)

// NavigationError is a failed homepage or category navigation.
// Status is set when the page loaded but with a non-2xx status.
type NavigationError struct {
	URL    string
	Status int
	Err    error
}

// Error implements the error interface.
func (e *NavigationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("navigate %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("navigate %s: unexpected status %d", e.URL, e.Status)
}

// Unwrap returns the underlying transport error, if any.
func (e *NavigationError) Unwrap() error {
	return e.Err
}

// FallbackError is a failed plain-HTTP fetch of the domain root.
type FallbackError struct {
	URL    string
	Status int
	Err    error
}

// Error implements the error interface.
func (e *FallbackError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fallback fetch %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fallback fetch %s: status %d", e.URL, e.Status)
}

// Unwrap returns the underlying request error, if any.
func (e *FallbackError) Unwrap() error {
	return e.Err
}
