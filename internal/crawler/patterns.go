package crawler

import (
	"net/url"
	"path/filepath"
	"strings"
)

// shouldFollow reports whether a category URL may be traversed, based on
// the ignore and follow glob patterns.
//
//  1. a path matching any ignore pattern is skipped
//  2. with follow patterns set, a path must match at least one
//  3. everything else is followed
func shouldFollow(targetURL string, ignore, follow []string) bool {
	u, err := url.Parse(targetURL)
	if err != nil {
		return false
	}

	path := u.Path
	if path == "" {
		path = "/"
	}

	for _, pattern := range ignore {
		if matchPattern(pattern, path) {
			return false
		}
	}

	if len(follow) == 0 {
		return true
	}
	for _, pattern := range follow {
		if matchPattern(pattern, path) {
			return true
		}
	}
	return false
}

// matchPattern matches a URL path against a glob.
//
//   - "/cart/*" matches "/cart" and everything below it
//   - "*.pdf" matches any path ending in .pdf
//   - anything else goes through filepath.Match, and patterns without a
//     slash are also tried against the last path element
func matchPattern(pattern, path string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}

	if ext, ok := strings.CutPrefix(pattern, "*."); ok {
		if strings.HasSuffix(path, "."+ext) {
			return true
		}
	}

	if matched, err := filepath.Match(pattern, path); err == nil && matched {
		return true
	}

	if strings.Contains(pattern, "*") && !strings.Contains(pattern, "/") {
		if matched, err := filepath.Match(pattern, filepath.Base(path)); err == nil && matched {
			return true
		}
	}

	return false
}
