package enrichment

import (
	"regexp"
	"strings"

	"github.com/aivisible/prompt-pipeline/internal/models"
)

var (
	imageRe = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	tableRowRe = regexp.MustCompile(`^\s*\|.*\|\s*$`)
)

// FeatureSet is the presence-with-count map required by §4.5 step 4:
// only detected features are present in the map.
type FeatureSet map[string]int

// DetectFeatures inspects a normalized response envelope and returns the
// binary-per-feature, count-valued map described in §4.5 step 4.
func DetectFeatures(resp models.NormalizedResponse) FeatureSet {
	features := FeatureSet{}

	if strings.TrimSpace(resp.AnswerText) != "" {
		features["text"] = 1
	}

	if resp.HasProducts || resp.ProductCount > 0 {
		count := resp.ProductCount
		if count == 0 {
			count = 1
		}
		features["products"] = count
	}

	imageMatches := len(imageRe.FindAllString(resp.RawMarkdown, -1))
	if imageMatches > 0 || resp.HasImages || resp.ImageCount > 0 {
		count := imageMatches
		if count == 0 {
			count = resp.ImageCount
		}
		if count == 0 {
			count = 1
		}
		features["images"] = count
	}

	if tableLineCount(resp.RawMarkdown) >= 3 {
		features["table"] = tableLineCount(resp.RawMarkdown)
	}

	if resp.AttachedLinks > 3 || resp.HasSources {
		count := resp.AttachedLinks
		if count == 0 {
			count = 1
		}
		features["navigation_list"] = count
	}

	if resp.HasLocalBiz || resp.LocalBizCount > 0 {
		count := resp.LocalBizCount
		if count == 0 {
			count = 1
		}
		features["local_businesses"] = count
	}

	return features
}

// tableLineCount counts lines that look like markdown table rows
// ("|...|"): header, separator, and at least one data row.
func tableLineCount(markdown string) int {
	count := 0
	for _, line := range strings.Split(markdown, "\n") {
		if tableRowRe.MatchString(line) {
			count++
		}
	}
	return count
}
