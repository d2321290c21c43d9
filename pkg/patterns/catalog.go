package patterns

import (
	"sync"

	"github.com/dlclark/regexp2"

	"contact-scraper/pkg/models"
)

// Raw pattern sources. All are compiled case-insensitive.
const (
	// Local part, '@', domain, 2-63 letter TLD. The TLD must not be an image
	// extension and the match must not continue into one (logo@2x.png).
	emailPattern = `[a-z0-9#%$*!][a-z0-9.#$!_%+-]*@[a-z0-9.-]+\.(?!(?:png|jpe?g|gif|bmp)\b)[a-z]{2,63}\b(?!\.(?:png|jpe?g|gif|bmp))`

	phoneBody = `\d{1,4}[-.\s]?(?:\(\d{1,3}\))?[-.\s]?\d{1,4}[-.\s]?\d{1,4}[-.\s]?\d{1,9}`

	// Loose: optional '+', used inside structured anchors only
	phoneLoosePattern = `(?<![\w-])\+?` + phoneBody + `(?:,\+?` + phoneBody + `)*(?!\w)`

	// Strict: leading '+' mandatory on every listed number, used for free-text scans
	phoneStrictPattern = `(?<![\w+])\+` + phoneBody + `(?:,\+` + phoneBody + `)*(?!\w)`

	facebookProfileIDPattern = `(?:https?://)?(?:www\.|m\.|web\.)?(?:facebook|fb)\.(?:com|me)/profile\.php\?id=\d+`
	facebookVanityPattern    = `(?:https?://)?(?:www\.|m\.|web\.)?(?:facebook|fb)\.(?:com|me)/(?!profile\.php)(?:(?:pages|groups)/)?[a-z0-9._-]{2,}(?:/\d+)?`

	twitterPattern = `(?<![\w.-])(?:https?://)?(?:www\.|mobile\.)?(?:twitter|x)\.com/@?[a-z0-9_]{1,15}\b`

	linkedinProfilePattern = `(?:https?://)?(?:[a-z]{2,3}\.)?linkedin\.com/(?:in|pub|company|school|showcase)/[a-z0-9%_-]+`
	linkedinGroupPattern   = `(?:https?://)?(?:[a-z]{2,3}\.)?linkedin\.com/groups/\d+`

	instagramPattern = `(?:https?://)?(?:www\.)?(?:instagram\.com|instagr\.am)/[a-z0-9_.]{1,30}`
)

// Catalog maps each category to its ordered list of compiled matchers.
// A Catalog is read-only after construction and safe for concurrent use.
type Catalog struct {
	matchers map[models.Category][]*regexp2.Regexp
}

func compile(pattern string) *regexp2.Regexp {
	return regexp2.MustCompile(pattern, regexp2.IgnoreCase)
}

// shared holds the matchers common to both scan modes, compiled once
var (
	sharedOnce sync.Once
	shared     map[models.Category][]*regexp2.Regexp
)

func sharedMatchers() map[models.Category][]*regexp2.Regexp {
	sharedOnce.Do(func() {
		shared = map[models.Category][]*regexp2.Regexp{
			models.Email:     {compile(emailPattern)},
			models.Facebook:  {compile(facebookProfileIDPattern), compile(facebookVanityPattern)},
			models.Twitter:   {compile(twitterPattern)},
			models.LinkedIn:  {compile(linkedinProfilePattern), compile(linkedinGroupPattern)},
			models.Instagram: {compile(instagramPattern)},
		}
	})
	return shared
}

func newCatalog(phone *regexp2.Regexp) *Catalog {
	m := make(map[models.Category][]*regexp2.Regexp, len(models.AllCategories))
	for cat, list := range sharedMatchers() {
		m[cat] = list
	}
	m[models.Phone] = []*regexp2.Regexp{phone}
	return &Catalog{matchers: m}
}

// NewCatalog builds the full document catalog: strict phone plus every other category
func NewCatalog() *Catalog {
	return newCatalog(compile(phoneStrictPattern))
}

var (
	defaultOnce sync.Once
	defaultCat  *Catalog
	tagOnce     sync.Once
	tagCat      *Catalog
)

// Default returns the process-wide document catalog
func Default() *Catalog {
	defaultOnce.Do(func() { defaultCat = NewCatalog() })
	return defaultCat
}

// DocumentCatalog is the catalog used for whole-document scans (strict phone)
func DocumentCatalog() *Catalog { return Default() }

// TagCatalog is the {email, phone} catalog used for structured anchors (loose phone)
func TagCatalog() *Catalog {
	tagOnce.Do(func() {
		tagCat = newCatalog(compile(phoneLoosePattern)).Subset(models.Email, models.Phone)
	})
	return tagCat
}

// Subset returns a catalog restricted to the listed categories. Matchers are shared.
// Categories the receiver does not hold are ignored.
func (c *Catalog) Subset(cats ...models.Category) *Catalog {
	m := make(map[models.Category][]*regexp2.Regexp, len(cats))
	for _, cat := range cats {
		if list, ok := c.matchers[cat]; ok {
			m[cat] = list
		}
	}
	return &Catalog{matchers: m}
}

// Categories lists the catalog's categories in canonical (sink column) order
func (c *Catalog) Categories() []models.Category {
	out := make([]models.Category, 0, len(c.matchers))
	for _, cat := range models.AllCategories {
		if _, ok := c.matchers[cat]; ok {
			out = append(out, cat)
		}
	}
	return out
}

// Has reports whether the catalog holds matchers for cat
func (c *Catalog) Has(cat models.Category) bool {
	_, ok := c.matchers[cat]
	return ok
}

// Matchers returns the ordered matcher list for cat (nil if absent)
func (c *Catalog) Matchers(cat models.Category) []*regexp2.Regexp {
	return c.matchers[cat]
}

// FindAll applies every matcher of cat to text and returns the union of all matches
func (c *Catalog) FindAll(cat models.Category, text string) models.StringSet {
	found := models.NewStringSet()
	for _, re := range c.matchers[cat] {
		m, err := re.FindStringMatch(text)
		for err == nil && m != nil {
			found.Add(m.String())
			m, err = re.FindNextMatch(m)
		}
		// regexp2 only errors on match timeout, which is not configured; keep partial results
	}
	return found
}
