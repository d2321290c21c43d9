package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"contact-scraper/pkg/config"
	"contact-scraper/pkg/models"
	"contact-scraper/pkg/utils"
)

// PageFetcher resolves a URL to exactly one FetchOutcome
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) models.FetchOutcome
}

// Fetcher performs single-attempt page fetches. Failed fetches are never retried.
type Fetcher struct {
	client *http.Client
	cfg    *config.AppConfig
	robots *RobotsPolicy // nil when robots.txt is not honored
	hosts  *HostLimiter  // nil disables the per-host bound
	log    *logrus.Entry
}

// NewFetcher creates a Fetcher. robots and hosts are optional.
func NewFetcher(client *http.Client, cfg *config.AppConfig, robots *RobotsPolicy, hosts *HostLimiter, log *logrus.Entry) *Fetcher {
	return &Fetcher{
		client: client,
		cfg:    cfg,
		robots: robots,
		hosts:  hosts,
		log:    log,
	}
}

// NewFetcherFromConfig wires the robots policy (when respect_robots is set)
// and the per-host limiter from cfg
func NewFetcherFromConfig(client *http.Client, cfg *config.AppConfig, log *logrus.Entry) *Fetcher {
	var robots *RobotsPolicy
	if cfg.RespectRobots {
		robots = NewRobotsPolicy(client, cfg.UserAgent, log)
	}
	return NewFetcher(client, cfg, robots, NewHostLimiter(cfg.MaxRequestsPerHost, log), log)
}

// Fetch downloads rawURL and parses it into a document.
// Transport faults (including timeouts and robots denials) become TransportError,
// non-2xx responses become HTTPError.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) models.FetchOutcome {
	reqLog := f.log.WithField("url", rawURL)

	target, err := url.Parse(rawURL)
	if err != nil || (target.Scheme != "http" && target.Scheme != "https") || target.Host == "" {
		reqLog.Warn("Rejecting malformed URL")
		return models.TransportError(fmt.Errorf("%w: invalid URL %q", utils.ErrRequestCreation, rawURL))
	}

	if f.robots != nil && !f.robots.Allowed(ctx, target) {
		reqLog.Info("Disallowed by robots.txt")
		return models.TransportError(fmt.Errorf("%w: %s", utils.ErrRobotsDisallowed, rawURL))
	}

	if f.hosts != nil {
		if err := f.hosts.Acquire(ctx, target.Host); err != nil {
			return models.TransportError(fmt.Errorf("%w: waiting for host slot: %w", utils.ErrTransport, err))
		}
		defer f.hosts.Release(target.Host)
	}

	reqCtx := ctx
	if f.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, f.cfg.RequestTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, target.String(), nil)
	if err != nil {
		return models.TransportError(fmt.Errorf("%w: %w", utils.ErrRequestCreation, err))
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		reqLog.WithField("error_type", utils.CategorizeError(err)).Debugf("Transport error: %v", err)
		return models.TransportError(fmt.Errorf("%w: %w", utils.ErrTransport, err))
	}
	defer resp.Body.Close()

	resLog := reqLog.WithField("status_code", resp.StatusCode)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		resLog.Debug("Non-2xx response")
		return models.HTTPError(resp.StatusCode)
	}

	var body io.Reader = resp.Body
	if f.cfg.MaxPageSizeBytes > 0 {
		body = io.LimitReader(resp.Body, f.cfg.MaxPageSizeBytes)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return models.TransportError(fmt.Errorf("%w: %w", utils.ErrTransport, err))
		}
		return models.TransportError(fmt.Errorf("%w: %w", utils.ErrResponseBodyRead, err))
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return models.TransportError(fmt.Errorf("%w: HTML: %w", utils.ErrParsing, err))
	}
	doc.Url = resp.Request.URL

	resLog.WithField("bytes", len(data)).Debug("Fetched page")
	return models.Success(doc, resp.StatusCode)
}
