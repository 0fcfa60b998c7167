package config

import "errors"

// Configuration validation errors returned by Config.Validate.
//
// Design decision: package-level sentinels so callers can branch with
// errors.Is while the message stays readable on the command line.
var (
	// ErrNoDomain is returned when no seed was given on the command line,
	// in a --list file, or under domains: in the config file.
	ErrNoDomain = errors.New("no domain specified: provide seed URLs, --list, or domains in the config file")

	// ErrInvalidDomain is returned when a seed is not an absolute http(s) URL.
	ErrInvalidDomain = errors.New("invalid domain: must be an absolute http or https URL")

	// ErrInvalidTimeout is returned when a navigation or fetch timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidConcurrency is returned when the concurrency limit is negative.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be zero (no limit) or positive")

	// ErrInvalidRetries is returned when the navigation attempt count is below one.
	ErrInvalidRetries = errors.New("invalid retries: must be at least 1")

	// ErrInvalidRetryDelay is returned when the retry delay is negative.
	ErrInvalidRetryDelay = errors.New("invalid retry delay: must be non-negative")

	// ErrInvalidDepth is returned when the maximum depth is negative.
	ErrInvalidDepth = errors.New("invalid depth: must be non-negative")

	// ErrInvalidMaxPages is returned when the traversal page limit is not positive.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be positive")

	// ErrInvalidRate is returned when the fallback rate limit is negative.
	ErrInvalidRate = errors.New("invalid rate: must be non-negative")

	// ErrNoOutput is returned when the artifact path is empty.
	ErrNoOutput = errors.New("no output path specified")

	// ErrInvalidProductPattern is returned when a productPatterns entry
	// does not compile.
	ErrInvalidProductPattern = errors.New("invalid product pattern")
)
