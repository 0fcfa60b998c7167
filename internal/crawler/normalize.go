package crawler

import (
	"net/url"
	"strings"
)

// Resolve turns an href found on a page of base into an absolute URL.
//
// The rules are applied in order:
//  1. "http://..." and "https://..." are returned unchanged
//  2. protocol-relative "//host/..." gets an https scheme
//  3. root-relative "/path" is joined to the scheme and host of base, with
//     dot segments removed as in RFC 3986 and the rest kept as written
//  4. anything else is rejected: relative paths without a leading slash,
//     javascript:, mailto:, bare fragments, the empty string, malformed input
//
// Rejection is not an error; callers skip the link silently.
func Resolve(base, candidate string) (string, bool) {
	candidate = strings.TrimSpace(candidate)

	switch {
	case strings.HasPrefix(candidate, "http://"), strings.HasPrefix(candidate, "https://"):
		return candidate, true
	case strings.HasPrefix(candidate, "//"):
		return "https:" + candidate, true
	case strings.HasPrefix(candidate, "/"):
		baseURL, err := url.Parse(base)
		if err != nil || baseURL.Scheme == "" || baseURL.Host == "" {
			return "", false
		}
		if _, err := url.Parse(candidate); err != nil {
			return "", false
		}
		// Kept raw like absolute hrefs: url.URL.String would percent-encode
		// non-ASCII paths.
		origin := (&url.URL{Scheme: baseURL.Scheme, User: baseURL.User, Host: baseURL.Host}).String()
		path, rest := candidate, ""
		if i := strings.IndexAny(candidate, "?#"); i >= 0 {
			path, rest = candidate[:i], candidate[i:]
		}
		return origin + removeDotSegments(path) + rest, true
	default:
		return "", false
	}
}

// removeDotSegments applies RFC 3986 section 5.2.4 to an absolute path.
func removeDotSegments(path string) string {
	if !strings.Contains(path, ".") {
		return path
	}
	segments := strings.Split(path[1:], "/")
	out := make([]string, 0, len(segments))
	for i, seg := range segments {
		last := i == len(segments)-1
		switch seg {
		case ".":
		case "..":
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, seg)
			continue
		}
		if last {
			out = append(out, "")
		}
	}
	return "/" + strings.Join(out, "/")
}

// SameSite reports whether target has the same scheme and host as root.
// Hosts are compared case-insensitively and include the port.
func SameSite(root, target string) bool {
	r, err := url.Parse(root)
	if err != nil {
		return false
	}
	t, err := url.Parse(target)
	if err != nil {
		return false
	}
	if r.Host == "" {
		return false
	}
	return strings.EqualFold(r.Scheme, t.Scheme) && strings.EqualFold(r.Host, t.Host)
}

// ValidateDomain checks that a seed is an absolute http(s) URL with a host.
func ValidateDomain(domain string) error {
	u, err := url.Parse(domain)
	if err != nil {
		return ErrInvalidDomain
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidDomain
	}
	return nil
}
