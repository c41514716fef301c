package enrichment

import "strings"

// IntentResult is the classified primary search intent plus a confidence
// score, per §4.5 step 7.
type IntentResult struct {
	Primary    string
	Confidence int
	Scores     map[string]int
}

// categoryKeywords is the annex from the GLOSSARY's category-keyword list.
var categoryKeywords = map[string][]string{
	"commercial": {
		"compare", "review", "rating", "best", "top", "price", "cost",
		"features", "vs", "versus", "pros", "cons", "recommendation",
		"brand", "model",
	},
	"local": {
		"near me", "nearby", "local", "address", "location", "directions",
		"hours", "map", "restaurant", "store", "business", "service area",
		"city", "town",
	},
	"transactional": {
		"buy", "purchase", "order", "booking", "reservation", "hire",
		"contact", "call", "quote", "estimate", "appointment", "schedule",
		"book now",
	},
	"navigational": {
		"website", "homepage", "official site", "main page", "portal",
		"directory", "login", "sign in", "dashboard", "menu", "navigation",
		"sitemap",
	},
	"informational": {
		"what", "why", "how", "when", "where", "definition", "meaning",
		"explain", "guide", "tutorial", "learn", "understand", "compare",
		"difference", "overview",
	},
}

// featureWeights is the fixed per-category weight applied when a given
// feature is present in the response.
var featureWeights = map[string]map[string]int{
	"commercial":     {"products": 25, "table": 10},
	"transactional":  {"products": 30, "navigation_list": 10},
	"local":          {"local_businesses": 40},
	"navigational":   {"navigation_list": 25},
	"informational":  {"text": 10},
}

// tieBreakOrder resolves equal top scores, per §4.5 step 7.
var tieBreakOrder = []string{"commercial", "transactional", "local", "navigational", "informational"}

const keywordCap = 30

// ClassifyIntent computes the five category scores from feature presence
// and keyword counts in the prompt/answer text, picks the argmax with the
// fixed tie-break order, and derives a confidence percentage.
func ClassifyIntent(promptAndAnswer string, features FeatureSet) IntentResult {
	lower := strings.ToLower(promptAndAnswer)
	scores := make(map[string]int, len(categoryKeywords))

	for category, keywords := range categoryKeywords {
		score := 0
		for _, kw := range keywords {
			count := strings.Count(lower, kw)
			if count > keywordCap {
				count = keywordCap
			}
			score += count
		}
		for feature, weight := range featureWeights[category] {
			if _, ok := features[feature]; ok {
				score += weight
			}
		}
		scores[category] = score
	}

	scores["informational"] += 20

	primary := tieBreakOrder[0]
	top := scores[primary]
	for _, category := range tieBreakOrder {
		if scores[category] > top {
			top = scores[category]
			primary = category
		}
	}

	second := 0
	for _, category := range tieBreakOrder {
		if category == primary {
			continue
		}
		if scores[category] > second {
			second = scores[category]
		}
	}

	confidence := 0
	if top > 0 {
		confidence = int((float64(top-second) / float64(top)) * 100)
	}

	return IntentResult{Primary: primary, Confidence: confidence, Scores: scores}
}
