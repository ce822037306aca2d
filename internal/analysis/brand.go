package analysis

import (
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// BrandFromURL derives a display brand from a site's registrable domain:
// "https://www.acme-digital.co.uk/about" yields "Acme Digital". It returns
// "" when no domain can be determined.
func BrandFromURL(siteURL string) string {
	siteURL = strings.TrimSpace(siteURL)
	if !strings.HasPrefix(siteURL, "http://") && !strings.HasPrefix(siteURL, "https://") {
		siteURL = "https://" + siteURL
	}
	u, err := url.Parse(siteURL)
	if err != nil || u.Hostname() == "" {
		return ""
	}

	host := strings.ToLower(u.Hostname())
	base, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return ""
	}
	suffix, _ := publicsuffix.PublicSuffix(base)
	label := strings.TrimSuffix(strings.TrimSuffix(base, suffix), ".")
	if label == "" {
		return ""
	}

	words := strings.FieldsFunc(label, func(r rune) bool { return r == '-' || r == '_' })
	return cases.Title(language.Und).String(strings.Join(words, " "))
}

// ResolveBrand picks the brand used for mention detection: the name the
// user supplied, then the extracted company name, then the domain.
func ResolveBrand(supplied, companyName string, fallbackProfile bool, siteURL string) string {
	if b := strings.TrimSpace(supplied); b != "" {
		return b
	}
	if b := strings.TrimSpace(companyName); b != "" && !fallbackProfile {
		return b
	}
	return BrandFromURL(siteURL)
}
