package fetch

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/temoto/robotstxt"
)

// maxRobotsBytes caps the robots.txt body read per host
const maxRobotsBytes = 512 << 10

// RobotsPolicy fetches, parses and caches robots.txt per host and answers
// whether the configured user agent may fetch a URL.
type RobotsPolicy struct {
	client    *http.Client
	userAgent string
	cache     map[string]*robotstxt.RobotsData // host -> parsed data (nil = allow all)
	mu        sync.Mutex
	log       *logrus.Entry
}

// NewRobotsPolicy creates a RobotsPolicy using client for robots.txt requests
func NewRobotsPolicy(client *http.Client, userAgent string, log *logrus.Entry) *RobotsPolicy {
	return &RobotsPolicy{
		client:    client,
		userAgent: userAgent,
		cache:     make(map[string]*robotstxt.RobotsData),
		log:       log.WithField("component", "robots"),
	}
}

// Allowed reports whether target may be fetched. Hosts whose robots.txt cannot
// be obtained (network error, non-2xx, parse error) are treated as allowing everything.
func (rp *RobotsPolicy) Allowed(ctx context.Context, target *url.URL) bool {
	data := rp.dataFor(ctx, target)
	if data == nil {
		return true
	}
	return data.TestAgent(target.RequestURI(), rp.userAgent)
}

// dataFor returns the cached robots data for target's host, fetching on a miss
func (rp *RobotsPolicy) dataFor(ctx context.Context, target *url.URL) *robotstxt.RobotsData {
	host := target.Host

	rp.mu.Lock()
	data, found := rp.cache[host]
	rp.mu.Unlock()
	if found {
		return data
	}

	data = rp.fetch(ctx, target)

	rp.mu.Lock()
	rp.cache[host] = data
	rp.mu.Unlock()
	return data
}

func (rp *RobotsPolicy) fetch(ctx context.Context, target *url.URL) *robotstxt.RobotsData {
	robotsURL := &url.URL{Scheme: target.Scheme, Host: target.Host, Path: "/robots.txt"}
	robotsLog := rp.log.WithField("robots_url", robotsURL.String())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL.String(), nil)
	if err != nil {
		robotsLog.Debugf("Error creating request: %v", err)
		return nil
	}
	req.Header.Set("User-Agent", rp.userAgent)

	resp, err := rp.client.Do(req)
	if err != nil {
		robotsLog.Debugf("Fetching robots.txt failed: %v", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		robotsLog.WithField("status_code", resp.StatusCode).Debug("No usable robots.txt")
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBytes))
	if err != nil {
		robotsLog.Debugf("Error reading body: %v", err)
		return nil
	}

	data, err := robotstxt.FromBytes(body)
	if err != nil {
		robotsLog.Debugf("Error parsing content: %v", err)
		return nil
	}
	robotsLog.Debug("Parsed robots.txt")
	return data
}
