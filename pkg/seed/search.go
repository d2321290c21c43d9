package seed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"contact-scraper/pkg/config"
	"contact-scraper/pkg/parse"
	"contact-scraper/pkg/utils"
)

// SearchSource turns a search query into seed URLs by scraping an HTML
// search results page.
type SearchSource struct {
	client    *http.Client
	query     string
	limit     int
	cfg       config.SearchConfig
	userAgent string
	log       *logrus.Entry
}

// NewSearchSource creates a SearchSource. limit <= 0 falls back to the configured limit.
func NewSearchSource(client *http.Client, appCfg *config.AppConfig, query string, limit int, log *logrus.Entry) *SearchSource {
	return &SearchSource{
		client:    client,
		query:     query,
		limit:     config.GetEffectiveSearchLimit(limit, *appCfg),
		cfg:       appCfg.Search,
		userAgent: appCfg.UserAgent,
		log:       log.WithFields(logrus.Fields{"component": "seed_search", "query": query}),
	}
}

// Seeds queries the endpoint and returns up to limit distinct http(s) result
// URLs in result order. Zero results is ErrEmptyInput.
func (ss *SearchSource) Seeds(ctx context.Context) ([]string, error) {
	query := strings.TrimSpace(ss.query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty search query", utils.ErrEmptyInput)
	}

	endpoint := fmt.Sprintf(ss.cfg.Endpoint, url.QueryEscape(query))
	base, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid endpoint %q: %w", utils.ErrSearch, endpoint, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", utils.ErrRequestCreation, err)
	}
	req.Header.Set("User-Agent", ss.userAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := ss.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %w", utils.ErrSearch, utils.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: %w: status %d %s", utils.ErrSearch, utils.ErrHTTPStatus, resp.StatusCode, resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: HTML: %w", utils.ErrSearch, utils.ErrParsing, err)
	}

	seeds := ss.collect(doc, base)
	if len(seeds) == 0 {
		return nil, fmt.Errorf("%w: search for %q returned no result links", utils.ErrEmptyInput, query)
	}
	ss.log.WithField("count", len(seeds)).Info("Found result URLs")
	ss.log.Debugf("Found links: %v", seeds)
	return seeds, nil
}

// collect extracts result links from doc, unwrapping redirect hrefs
func (ss *SearchSource) collect(doc *goquery.Document, base *url.URL) []string {
	seen := make(map[string]bool)
	var seeds []string

	doc.Find(ss.cfg.ResultSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, ok := s.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return true
		}
		target := parse.UnwrapRedirect(href, base)
		cleaned, key, err := parse.CleanSeed(target)
		if err != nil || !strings.Contains(target, "://") {
			return true
		}
		// Links back into the search engine itself are navigation, not results
		if u, err := url.Parse(cleaned); err == nil && strings.EqualFold(u.Host, base.Host) {
			return true
		}
		if seen[key] {
			return true
		}
		seen[key] = true
		seeds = append(seeds, cleaned)
		return len(seeds) < ss.limit
	})
	return seeds
}
