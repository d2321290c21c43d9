package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneralizeProfile(t *testing.T) {
	g := NewURLGeneralizer()
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"facebook vanity", "https://www.facebook.com/AcmeCorp/", "https://facebook.com/acmecorp", false},
		{"facebook mobile host", "m.facebook.com/acmecorp?ref=bookmarks", "https://facebook.com/acmecorp", false},
		{"fb short host", "http://fb.com/acmecorp", "https://facebook.com/acmecorp", false},
		{"facebook profile id", "https://facebook.com/profile.php?id=1000123&sk=about", "https://facebook.com/profile.php?id=1000123", false},
		{"facebook profile without id", "https://facebook.com/profile.php", "", true},
		{"facebook pages", "fb.com/pages/Acme/12345", "https://facebook.com/pages/acme/12345", false},
		{"facebook sharer", "https://www.facebook.com/sharer/sharer.php?u=x", "", true},
		{"facebook pixel", "https://www.facebook.com/tr?id=1", "", true},
		{"twitter handle", "https://twitter.com/Acme_HQ", "https://twitter.com/acme_hq", false},
		{"x.com handle", "https://x.com/@acme", "https://twitter.com/acme", false},
		{"twitter intent", "https://twitter.com/intent/tweet?text=hi", "", true},
		{"twitter status keeps handle", "https://twitter.com/acme/status/123", "https://twitter.com/acme", false},
		{"linkedin company", "https://www.linkedin.com/company/acme-inc/about/", "https://linkedin.com/company/acme-inc", false},
		{"linkedin country host", "https://uk.linkedin.com/in/jane-doe", "https://linkedin.com/in/jane-doe", false},
		{"linkedin bare type", "https://linkedin.com/company", "", true},
		{"linkedin share", "https://www.linkedin.com/shareArticle?url=x", "", true},
		{"instagram", "https://instagram.com/acme.official/", "https://instagram.com/acme.official", false},
		{"instagr.am", "http://instagr.am/acme", "https://instagram.com/acme", false},
		{"instagram post", "https://www.instagram.com/p/Cxyz123/", "", true},
		{"unknown host", "https://myspace.com/acme", "", true},
		{"lookalike host", "https://notfacebook.com/acme", "", true},
		{"no path", "https://twitter.com/", "", true},
		{"empty", "  ", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := g.GeneralizeProfile(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidProfile)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGeneralizeProfile_Idempotent(t *testing.T) {
	g := NewURLGeneralizer()
	inputs := []string{
		"https://www.facebook.com/AcmeCorp/",
		"https://facebook.com/profile.php?id=42",
		"fb.com/pages/Acme/12345",
		"https://x.com/@acme",
		"https://uk.linkedin.com/in/jane-doe",
		"linkedin.com/groups/998877",
		"http://instagr.am/acme",
	}
	for _, in := range inputs {
		once, err := g.GeneralizeProfile(in)
		require.NoError(t, err, in)
		twice, err := g.GeneralizeProfile(once)
		require.NoError(t, err, once)
		assert.Equal(t, once, twice)
	}
}

func TestGeneralizeDomain(t *testing.T) {
	g := NewURLGeneralizer()
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{"https://acme.com", "acme.com", false},
		{"https://www.Acme.com/contact", "acme.com", false},
		{"http://shop.acme.co.uk:8080/x", "acme.co.uk", false},
		{"acme.com/about", "acme.com", false},
		{"http://127.0.0.1:4567/", "127.0.0.1", false},
		{"http://localhost/", "localhost", false},
		{"https://", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := g.GeneralizeDomain(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidDomain)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestURLGeneralizerImplementsGeneralizer(t *testing.T) {
	var _ Generalizer = NewURLGeneralizer()
}
