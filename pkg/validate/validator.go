package validate

import (
	"strings"

	"github.com/sirupsen/logrus"

	"contact-scraper/pkg/models"
	"contact-scraper/pkg/normalize"
)

// Validator filters a raw contact record against its seed URL.
// Emails must belong to the seed's registrable domain, social references are
// reduced to canonical profiles, phones pass through unchanged.
type Validator struct {
	gen normalize.Generalizer
	log *logrus.Entry
}

// NewValidator creates a Validator backed by gen
func NewValidator(gen normalize.Generalizer, log *logrus.Entry) *Validator {
	return &Validator{gen: gen, log: log.WithField("component", "validator")}
}

// Validate returns a new, validated record. The input is not modified.
// Validating an already validated record yields an equal record.
func (v *Validator) Validate(record *models.ContactRecord, seedURL string) *models.ContactRecord {
	out := models.NewContactRecord(record.URL)
	valLog := v.log.WithField("seed", seedURL)

	// Emails: domain after the last '@' must equal the seed's registrable domain
	seedDomain, err := v.gen.GeneralizeDomain(seedURL)
	if err != nil {
		if record.Has(models.Email) {
			valLog.Debugf("Dropping all emails, seed domain unknown: %v", err)
		}
	} else {
		for email := range record.Get(models.Email) {
			at := strings.LastIndex(email, "@")
			if at < 0 {
				continue
			}
			if strings.ToLower(email[at+1:]) == seedDomain {
				out.Add(models.Email, email)
			}
		}
	}

	// Phones pass through
	out.AddAll(models.Phone, record.Get(models.Phone))

	// Social references: canonicalize, drop invalid
	for _, cat := range models.AllCategories {
		if !cat.IsSocial() {
			continue
		}
		for raw := range record.Get(cat) {
			canonical, err := v.gen.GeneralizeProfile(raw)
			if err != nil {
				continue
			}
			out.Add(cat, canonical)
		}
	}

	return out
}
