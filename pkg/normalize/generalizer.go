package normalize

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// ErrInvalidProfile signals that a raw social reference is not a usable profile
var ErrInvalidProfile = errors.New("invalid social profile")

// ErrInvalidDomain signals that no registrable domain could be derived
var ErrInvalidDomain = errors.New("invalid domain")

// Generalizer reduces raw URLs to canonical forms used for validation
type Generalizer interface {
	// GeneralizeProfile returns the canonical profile URL of a social reference
	GeneralizeProfile(raw string) (string, error)
	// GeneralizeDomain returns the registrable domain of a URL
	GeneralizeDomain(raw string) (string, error)
}

// platform describes how one social network's profile paths are canonicalized
type platform struct {
	host     string
	segments int             // Path segments kept for a plain profile
	nested   map[string]int  // First-segment prefixes that keep more segments
	reserved map[string]bool // First segments that never denote a profile
}

func set(values ...string) map[string]bool {
	m := make(map[string]bool, len(values))
	for _, v := range values {
		m[v] = true
	}
	return m
}

var (
	facebook = &platform{
		host:     "facebook.com",
		segments: 1,
		nested:   map[string]int{"pages": 3, "groups": 2},
		reserved: set("sharer", "sharer.php", "share", "share.php", "dialog", "plugins", "tr", "login", "login.php",
			"hashtag", "events", "watch", "photo.php", "photos", "permalink.php", "story.php", "policies", "help",
			"privacy", "home.php", "search", "marketplace", "gaming", "business", "ads", "legal"),
	}
	twitter = &platform{
		host:     "twitter.com",
		segments: 1,
		reserved: set("share", "intent", "home", "hashtag", "search", "explore", "i", "login", "signup", "privacy",
			"tos", "settings", "notifications", "messages", "compose", "widgets.js"),
	}
	linkedin = &platform{
		host:     "linkedin.com",
		segments: 0,
		nested:   map[string]int{"in": 2, "pub": 2, "company": 2, "school": 2, "showcase": 2, "groups": 2},
		reserved: set("sharearticle", "share", "feed", "login", "signup", "jobs", "legal"),
	}
	instagram = &platform{
		host:     "instagram.com",
		segments: 1,
		reserved: set("p", "reel", "reels", "tv", "explore", "accounts", "stories", "direct", "about", "legal",
			"developer", "embed.js"),
	}
)

// hostPlatforms maps every recognized host (without www-like prefixes) to its platform
var hostPlatforms = map[string]*platform{
	"facebook.com":  facebook,
	"fb.com":        facebook,
	"fb.me":         facebook,
	"facebook.me":   facebook,
	"twitter.com":   twitter,
	"x.com":         twitter,
	"linkedin.com":  linkedin,
	"instagram.com": instagram,
	"instagr.am":    instagram,
}

// URLGeneralizer is the default Generalizer. It is stateless and safe for concurrent use.
type URLGeneralizer struct{}

// NewURLGeneralizer creates the default Generalizer
func NewURLGeneralizer() *URLGeneralizer {
	return &URLGeneralizer{}
}

// parseLoose parses raw, assuming https:// when no scheme is present
func parseLoose(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("empty URL")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + strings.TrimPrefix(raw, "//")
	}
	return url.Parse(raw)
}

// lookupPlatform strips subdomain prefixes (www., m., country codes) until a known host matches
func lookupPlatform(host string) *platform {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	for host != "" {
		if p, ok := hostPlatforms[host]; ok {
			return p
		}
		dot := strings.IndexByte(host, '.')
		if dot < 0 {
			break
		}
		host = host[dot+1:]
	}
	return nil
}

// GeneralizeProfile canonicalizes a social reference to https://<platform-host>/<path>.
// The result is lowercase with no query, fragment or trailing slash, except the
// Facebook numeric profile form which keeps its id parameter.
func (g *URLGeneralizer) GeneralizeProfile(raw string) (string, error) {
	u, err := parseLoose(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidProfile, raw, err)
	}
	p := lookupPlatform(u.Hostname())
	if p == nil {
		return "", fmt.Errorf("%w: unrecognized host %q", ErrInvalidProfile, u.Hostname())
	}

	var segs []string
	for _, s := range strings.Split(u.Path, "/") {
		if s != "" {
			segs = append(segs, strings.ToLower(s))
		}
	}
	if len(segs) == 0 {
		return "", fmt.Errorf("%w: no profile path in %q", ErrInvalidProfile, raw)
	}

	if p == facebook && segs[0] == "profile.php" {
		id := u.Query().Get("id")
		if id == "" || strings.Trim(id, "0123456789") != "" {
			return "", fmt.Errorf("%w: profile.php without numeric id", ErrInvalidProfile)
		}
		return "https://" + p.host + "/profile.php?id=" + id, nil
	}

	if p == twitter {
		segs[0] = strings.TrimPrefix(segs[0], "@")
	}
	if segs[0] == "" || p.reserved[segs[0]] {
		return "", fmt.Errorf("%w: reserved path %q", ErrInvalidProfile, segs[0])
	}

	keep := p.segments
	if n, ok := p.nested[segs[0]]; ok {
		if len(segs) < 2 {
			return "", fmt.Errorf("%w: incomplete profile path %q", ErrInvalidProfile, u.Path)
		}
		keep = n
	}
	if keep == 0 {
		return "", fmt.Errorf("%w: unsupported profile path %q", ErrInvalidProfile, u.Path)
	}
	if len(segs) > keep {
		segs = segs[:keep]
	}
	return "https://" + p.host + "/" + strings.Join(segs, "/"), nil
}

// GeneralizeDomain returns the registrable domain (eTLD+1) of raw's host.
// IP addresses and single-label hosts are returned as-is.
func (g *URLGeneralizer) GeneralizeDomain(raw string) (string, error) {
	u, err := parseLoose(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidDomain, raw, err)
	}
	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "" {
		return "", fmt.Errorf("%w: no host in %q", ErrInvalidDomain, raw)
	}
	if net.ParseIP(host) != nil || !strings.Contains(host, ".") {
		return host, nil
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidDomain, host, err)
	}
	return domain, nil
}
