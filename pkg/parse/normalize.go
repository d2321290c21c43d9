package parse

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"contact-scraper/pkg/utils"
)

// SeedKey standardizes a seed URL for deduplication and state-store keys.
// It lowercases scheme and host, drops default ports, the fragment and a
// trailing path slash. The query is kept since it can select a different page.
// Does not modify the input *url.URL.
func SeedKey(u *url.URL) string {
	if u == nil {
		return ""
	}
	normalized := *u

	normalized.Scheme = strings.ToLower(normalized.Scheme)
	normalized.Host = strings.ToLower(normalized.Host)

	if host, port, err := net.SplitHostPort(normalized.Host); err == nil {
		if (normalized.Scheme == "http" && port == "80") ||
			(normalized.Scheme == "https" && port == "443") {
			normalized.Host = host
		}
	}

	if len(normalized.Path) > 1 && strings.HasSuffix(normalized.Path, "/") {
		normalized.Path = strings.TrimRight(normalized.Path, "/")
	}
	if normalized.Path == "/" {
		normalized.Path = ""
	}
	normalized.RawPath = ""
	normalized.Fragment = ""
	normalized.RawFragment = ""

	return normalized.String()
}

// CleanSeed trims raw, assumes https:// for bare hosts ("acme.com/about") and
// requires an http(s) URL with a host. Returns the cleaned URL string (as given,
// not normalized) and its SeedKey.
func CleanSeed(raw string) (cleaned, key string, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", fmt.Errorf("%w: URL: empty seed", utils.ErrParsing)
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("%w: URL: %w", utils.ErrParsing, err)
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", "", fmt.Errorf("%w: URL: unsupported scheme %q", utils.ErrParsing, parsed.Scheme)
	}
	if parsed.Hostname() == "" || parsed.User != nil || strings.ContainsAny(parsed.Host, " \t") {
		return "", "", fmt.Errorf("%w: URL: no host in %q", utils.ErrParsing, raw)
	}
	return raw, SeedKey(parsed), nil
}

// UnwrapRedirect returns the target of a search-engine redirect link
// (…/l/?uddg=<escaped-url>, …/url?q=<escaped-url>), or href unchanged.
// Relative hrefs are resolved against base first.
func UnwrapRedirect(href string, base *url.URL) string {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	params := []string{"uddg"}
	if u.Path == "/url" || u.Path == "/l" || u.Path == "/l/" {
		params = append(params, "q", "url")
	}
	q := u.Query()
	for _, param := range params {
		if target := q.Get(param); strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
			return target
		}
	}
	return u.String()
}
