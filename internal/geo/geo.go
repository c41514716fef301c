// Package geo normalizes the geo hints carried on prompts and job batches
// into the country codes and display names the scraping providers and
// LLM prompts expect. Adapted from the teacher's
// services/location_normalization.go and
// internal/providers/common/location_mapper.go, merged into one place
// since both were doing the same country-code lookup against two
// slightly different maps.
package geo

import "strings"

// Normalized is a location resolved to a canonical country code plus
// optional region/city, with country and code always populated.
type Normalized struct {
	CountryCode string
	CountryName string
	Region      string
	City        string
}

var countryNames = map[string]string{
	"US": "United States", "CA": "Canada", "GB": "United Kingdom", "IE": "Ireland",
	"AU": "Australia", "NZ": "New Zealand", "DE": "Germany", "FR": "France",
	"ES": "Spain", "PT": "Portugal", "IT": "Italy", "NL": "Netherlands",
	"BE": "Belgium", "CH": "Switzerland", "AT": "Austria", "SE": "Sweden",
	"NO": "Norway", "DK": "Denmark", "FI": "Finland", "IS": "Iceland",
	"PL": "Poland", "CZ": "Czech Republic", "SK": "Slovakia", "HU": "Hungary",
	"RO": "Romania", "BG": "Bulgaria", "GR": "Greece", "TR": "Turkey",
	"RU": "Russia", "UA": "Ukraine", "IL": "Israel", "AE": "United Arab Emirates",
	"SA": "Saudi Arabia", "QA": "Qatar", "KW": "Kuwait", "OM": "Oman",
	"IN": "India", "PK": "Pakistan", "BD": "Bangladesh", "SG": "Singapore",
	"MY": "Malaysia", "TH": "Thailand", "VN": "Vietnam", "PH": "Philippines",
	"ID": "Indonesia", "JP": "Japan", "KR": "South Korea", "TW": "Taiwan",
	"CN": "China", "HK": "Hong Kong", "BR": "Brazil", "AR": "Argentina",
	"CL": "Chile", "CO": "Colombia", "PE": "Peru", "MX": "Mexico",
	"ZA": "South Africa", "EG": "Egypt", "NG": "Nigeria", "KE": "Kenya",
}

// supportedByProviders restricts to the country codes the scraping
// providers accept; anything else falls back to US at dispatch time.
var supportedByProviders = map[string]bool{
	"US": true, "CA": true, "GB": true, "AU": true, "DE": true, "FR": true,
	"IT": true, "ES": true, "NL": true, "JP": true, "KR": true, "IN": true,
	"BR": true, "MX": true,
}

// Normalize resolves raw country/region/city strings into a canonical
// location, defaulting to the United States when country is empty. An
// unrecognized country code is kept as given and doubles as its own
// display name.
func Normalize(country, region, city string) Normalized {
	code := strings.ToUpper(strings.TrimSpace(country))
	if code == "" {
		code = "US"
	}
	if code == "UK" {
		code = "GB"
	}

	name := countryNames[code]
	if name == "" {
		name = code
	}

	return Normalized{
		CountryCode: code,
		CountryName: name,
		Region:      strings.TrimSpace(region),
		City:        strings.TrimSpace(city),
	}
}

// ProviderCountry maps a normalized location to the country code the
// scraping providers accept, falling back to US for anything outside
// their supported list.
func ProviderCountry(n Normalized) string {
	if supportedByProviders[n.CountryCode] {
		return n.CountryCode
	}
	return "US"
}

// PromptPhrase renders a location as a natural-language phrase suitable
// for embedding in an LLM prompt, e.g. "Austin, Texas, United States".
func (n Normalized) PromptPhrase() string {
	parts := make([]string, 0, 3)
	if n.City != "" {
		parts = append(parts, n.City)
	}
	if n.Region != "" {
		parts = append(parts, n.Region)
	}
	if n.CountryName != "" {
		parts = append(parts, n.CountryName)
	}
	if len(parts) == 0 {
		return "United States"
	}
	return strings.Join(parts, ", ")
}
