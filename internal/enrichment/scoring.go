package enrichment

import (
	"net/url"
	"strings"
	"time"

	"github.com/aivisible/prompt-pipeline/internal/models"
)

func clamp0to100(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}

// citationHostname strips scheme and a leading "www." from a citation's
// URL (falling back to its Domain field), per §4.5 step 5.
func citationHostname(c models.Citation) string {
	raw := c.URL
	if raw == "" {
		raw = c.Domain
	}
	host := raw
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		host = u.Host
	}
	host = strings.ToLower(strings.TrimPrefix(host, "www."))
	return host
}

func distinctHostnames(citations []models.Citation) []string {
	seen := make(map[string]bool, len(citations))
	var hosts []string
	for _, c := range citations {
		h := citationHostname(c)
		if h == "" || seen[h] {
			continue
		}
		seen[h] = true
		hosts = append(hosts, h)
	}
	return hosts
}

// LCP computes the 0-100 citation-potential score from §4.5 step 5.
func LCP(citations []models.Citation, features FeatureSet, now time.Time) int {
	score := 0

	hostCount := len(distinctHostnames(citations))
	if hostCount > 8 {
		hostCount = 8
	}
	score += hostCount * 8

	for _, c := range citations {
		if c.PublishedAt != nil && now.Sub(*c.PublishedAt) <= 90*24*time.Hour {
			score += 10
			break
		}
	}

	if len(features) >= 2 {
		score += 10
	}

	if _, ok := features["navigation_list"]; ok {
		score += 6
	}

	return clamp0to100(score)
}

// mostRecentCitationAge returns the age of the newest dated citation, or
// false if no citation carries a publication date.
func mostRecentCitationAge(citations []models.Citation, now time.Time) (time.Duration, bool) {
	var newest *time.Time
	for _, c := range citations {
		if c.PublishedAt == nil {
			continue
		}
		if newest == nil || c.PublishedAt.After(*newest) {
			newest = c.PublishedAt
		}
	}
	if newest == nil {
		return 0, false
	}
	return now.Sub(*newest), true
}

// Actionability computes the 0-100 actionability score from §4.5 step 6.
func Actionability(citations []models.Citation, features FeatureSet, now time.Time) int {
	score := 0

	if _, ok := features["table"]; ok {
		score += 30
	}
	if _, ok := features["products"]; ok {
		score += 20
	}
	if _, ok := features["local_businesses"]; ok {
		score += 20
	}
	if _, ok := features["images"]; ok {
		score += 10
	}
	if _, ok := features["navigation_list"]; ok {
		score += 10
	}

	if age, ok := mostRecentCitationAge(citations, now); ok && age > 365*24*time.Hour {
		score += 10
	}

	return clamp0to100(score)
}

// NormalizeCitation trims a citation to the §4.5 step 10 shape: URL has
// scheme, "www.", query, and fragment stripped but path kept; Domain is
// the bare host.
func NormalizeCitation(c models.Citation) models.Citation {
	raw := c.URL
	domain := citationHostname(c)
	path := ""
	if u, err := url.Parse(raw); err == nil {
		path = u.Path
	}

	return models.Citation{
		Title:       c.Title,
		Domain:      domain,
		URL:         domain + path,
		PublishedAt: c.PublishedAt,
	}
}
