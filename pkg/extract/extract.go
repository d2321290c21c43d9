package extract

import (
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/dlclark/regexp2"

	"contact-scraper/pkg/models"
	"contact-scraper/pkg/patterns"
)

// StructuredAnchors selects every anchor whose href carries a mailto: or tel: scheme
func StructuredAnchors(doc *goquery.Document) *goquery.Selection {
	return doc.Find("a[href]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		href := strings.ToLower(s.AttrOr("href", ""))
		return strings.Contains(href, "mailto:") || strings.Contains(href, "tel:")
	})
}

// newScoped creates a record holding an (empty) entry for every category of catalog
func newScoped(catalog *patterns.Catalog) *models.ContactRecord {
	rec := models.NewContactRecord("")
	for _, cat := range catalog.Categories() {
		rec.Values[cat] = models.NewStringSet()
	}
	return rec
}

// FromTags applies every matcher of catalog to the href value (scheme and
// query stripped, percent-decoded) and the visible text of each anchor in
// fragments. Attributes and nested markup such as icons are not scanned.
// The result covers exactly the catalog's categories.
func FromTags(fragments *goquery.Selection, catalog *patterns.Catalog) *models.ContactRecord {
	rec := newScoped(catalog)
	if fragments == nil {
		return rec
	}
	fragments.Each(func(_ int, s *goquery.Selection) {
		texts := []string{anchorTarget(s.AttrOr("href", "")), strings.TrimSpace(s.Text())}
		for _, cat := range catalog.Categories() {
			for _, text := range texts {
				if text != "" {
					rec.AddAll(cat, catalog.FindAll(cat, text))
				}
			}
		}
	})
	return rec
}

// anchorTarget returns the address part of a mailto: or tel: href
func anchorTarget(href string) string {
	lower := strings.ToLower(href)
	for _, scheme := range []string{"mailto:", "tel:"} {
		if i := strings.Index(lower, scheme); i >= 0 {
			href = href[i+len(scheme):]
			break
		}
	}
	if i := strings.IndexByte(href, '?'); i >= 0 {
		href = href[:i]
	}
	if decoded, err := url.PathUnescape(href); err == nil {
		href = decoded
	}
	return strings.TrimSpace(href)
}

// FromDocument applies every matcher of catalog to the full serialized document
func FromDocument(text string, catalog *patterns.Catalog) *models.ContactRecord {
	rec := newScoped(catalog)
	if text == "" {
		return rec
	}
	for _, cat := range catalog.Categories() {
		rec.AddAll(cat, catalog.FindAll(cat, text))
	}
	return rec
}

// ContactLinks returns the hrefs of anchors that contain seedURL followed
// anywhere later by "contact", "reach" or "support" (case-insensitive).
// The result is deduplicated and sorted.
func ContactLinks(doc *goquery.Document, seedURL string) []string {
	if doc == nil || seedURL == "" {
		return nil
	}
	re, err := regexp2.Compile(regexp2.Escape(seedURL)+`.*(?:contact|reach|support)`, regexp2.IgnoreCase)
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := s.AttrOr("href", "")
		if href == "" {
			return
		}
		if ok, err := re.MatchString(href); err == nil && ok {
			seen[href] = struct{}{}
		}
	})

	links := make([]string, 0, len(seen))
	for href := range seen {
		links = append(links, href)
	}
	sort.Strings(links)
	return links
}
