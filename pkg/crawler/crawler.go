package crawler

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/sirupsen/logrus"

	"contact-scraper/pkg/extract"
	"contact-scraper/pkg/fetch"
	"contact-scraper/pkg/models"
	"contact-scraper/pkg/patterns"
	"contact-scraper/pkg/utils"
)

// Crawler extracts the contact record of one seed URL, following same-site
// contact/support links exactly one level deep.
type Crawler struct {
	fetcher    fetch.PageFetcher
	tagCatalog *patterns.Catalog // {email, phone} with the loose phone matcher
	docCatalog *patterns.Catalog // every category with the strict phone matcher
	log        *logrus.Entry
}

// NewCrawler creates a Crawler using the process-wide pattern catalogs
func NewCrawler(fetcher fetch.PageFetcher, log *logrus.Entry) *Crawler {
	return NewCrawlerWithCatalogs(fetcher, patterns.TagCatalog(), patterns.DocumentCatalog(), log)
}

// NewCrawlerWithCatalogs creates a Crawler with explicit catalogs
func NewCrawlerWithCatalogs(fetcher fetch.PageFetcher, tagCatalog, docCatalog *patterns.Catalog, log *logrus.Entry) *Crawler {
	return &Crawler{
		fetcher:    fetcher,
		tagCatalog: tagCatalog,
		docCatalog: docCatalog,
		log:        log.WithField("component", "crawler"),
	}
}

// Extract fetches url and returns its contact record together with the fetch
// outcome. The record is nil unless the outcome is a success. With crawl set,
// discovered contact sub-pages are extracted (without further crawling) and
// merged first; their failures are dropped silently.
func (c *Crawler) Extract(ctx context.Context, url string, crawl bool) (record *models.ContactRecord, outcome models.FetchOutcome) {
	taskLog := c.log.WithFields(logrus.Fields{"url": url, "crawl": crawl})
	startTime := time.Now()

	defer func() {
		if r := recover(); r != nil {
			taskLog.WithFields(logrus.Fields{
				"panic_info":  r,
				"stack_trace": string(debug.Stack()),
			}).Error("PANIC recovered during extraction")
			record = nil
			outcome = models.TransportError(fmt.Errorf("%w: panic: %v", utils.ErrTransport, r))
		}
	}()

	// 1. Fetch
	outcome = c.fetcher.Fetch(ctx, url)
	if !outcome.OK() {
		taskLog.WithField("outcome", outcome.String()).Debug("Fetch failed")
		return nil, outcome
	}
	doc := outcome.Document
	acc := models.NewContactRecord(url)

	// 2. One-level crawl of contact sub-pages
	if crawl {
		links := extract.ContactLinks(doc, url)
		if len(links) > 0 {
			taskLog.WithField("links", len(links)).Debug("Following contact links")
		}
		for _, link := range links {
			if ctx.Err() != nil {
				break
			}
			sub, subOutcome := c.Extract(ctx, link, false)
			if !subOutcome.OK() {
				taskLog.WithFields(logrus.Fields{"link": link, "outcome": subOutcome.String()}).Debug("Dropping failed contact sub-page")
				continue
			}
			acc.Merge(sub)
		}
	}

	// 3. Structured anchors (mailto:, tel:)
	acc.Merge(extract.FromTags(extract.StructuredAnchors(doc), c.tagCatalog))

	// 4. Document-wide scan for categories still empty
	var remaining []models.Category
	for _, cat := range c.docCatalog.Categories() {
		if !acc.Has(cat) {
			remaining = append(remaining, cat)
		}
	}
	if len(remaining) > 0 {
		html, err := doc.Html()
		if err != nil {
			taskLog.WithField("error_type", utils.CategorizeError(err)).Warnf("Serializing document failed: %v", err)
		} else {
			acc.Merge(extract.FromDocument(html, c.docCatalog.Subset(remaining...)))
		}
	}

	taskLog.WithFields(logrus.Fields{
		"duration": time.Since(startTime).String(),
		"empty":    acc.IsEmpty(),
	}).Debug("Extraction finished")

	return acc, outcome
}
