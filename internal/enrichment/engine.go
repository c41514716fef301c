package enrichment

import (
	"context"
	"strconv"
	"time"

	"github.com/aivisible/prompt-pipeline/internal/llm"
	"github.com/aivisible/prompt-pipeline/internal/models"
	"github.com/aivisible/prompt-pipeline/internal/sanitize"
)

// sentimentRubric and salienceRubric are the deterministic scoring
// prompts for §4.5 steps 8-9. Both ask the model to answer with a bare
// integer, and the first integer in the reply is taken as the score.
const sentimentRubric = `You score the sentiment toward a brand expressed in a piece of text on a scale from 0 (extremely negative) to 100 (extremely positive), where 50 is neutral. Respond with ONLY the integer score, nothing else.`

const salienceRubric = `You score how prominently a brand features in a piece of text on a scale from 0 (barely mentioned, incidental) to 100 (the clear focus of the text). Respond with ONLY the integer score, nothing else.`

// Result is the full enrichment output for one TrackingResult.
type Result struct {
	SanitizedText  string
	BrandPresence  Presence
	DomainPresence Presence
	Features       FeatureSet
	LCP            int
	Actionability  int
	Intent         IntentResult
	Sentiment      int
	Salience       int
	Citations      []models.Citation
}

// Engine ties sanitization, presence/feature/score computation, and
// sentiment/salience LLM scoring into one per-response pipeline.
type Engine struct {
	now func() time.Time
}

// NewEngine constructs an Engine. now is injectable for deterministic
// testing of the recency-dependent LCP/Actionability scores.
func NewEngine(now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{now: now}
}

// Enrich runs the full per-response pipeline from §4.5. client may be nil
// only when brand presence has no match, in which case sentiment and
// salience are never invoked — callers should otherwise always pass a
// freshly constructed per-message llm.Client (see §5's "LLM clients are
// created per message" rule).
func (e *Engine) Enrich(ctx context.Context, resp models.NormalizedResponse, promptText, model string, brands, domains []string, client llm.Client) (Result, error) {
	sanitized := sanitize.Sanitize(resp.AnswerText, sanitize.DefaultOptions())

	citationDomains := make([]string, 0, len(resp.Citations))
	normalizedCitations := make([]models.Citation, 0, len(resp.Citations))
	for _, c := range resp.Citations {
		normalizedCitations = append(normalizedCitations, NormalizeCitation(c))
		citationDomains = append(citationDomains, c.Domain, c.URL)
	}

	brandPresence := BrandPresence(sanitized, brands)
	domainPresence := DomainPresence(citationDomains, domains)
	features := DetectFeatures(resp)
	now := e.now()

	result := Result{
		SanitizedText:  sanitized,
		BrandPresence:  brandPresence,
		DomainPresence: domainPresence,
		Features:       features,
		LCP:            LCP(normalizedCitations, features, now),
		Actionability:  Actionability(normalizedCitations, features, now),
		Intent:         ClassifyIntent(promptText+" "+sanitized, features),
		Sentiment:      0,
		Salience:       0,
		Citations:      normalizedCitations,
	}

	if !brandPresence.AnyMatch || client == nil {
		return result, nil
	}

	sentiment, err := scoreIntWithSpacer(ctx, client, model, sentimentRubric, sanitized, 0.1, 3, 50)
	if err == nil {
		result.Sentiment = sentiment
	}

	time.Sleep(300 * time.Millisecond)

	salience, err := scoreIntWithSpacer(ctx, client, model, salienceRubric, sanitized, 0.2, 4, 0)
	if err == nil {
		result.Salience = salience
	}

	return result, nil
}

// scoreIntWithSpacer issues one rubric completion and parses the first
// integer from the response, clamped to [0,100]; on any failure it
// returns the caller-supplied default rather than propagating the error,
// since a failed sentiment/salience call fails only the analysis, not the
// record (§5 cancellation rules).
func scoreIntWithSpacer(ctx context.Context, client llm.Client, model, rubric, text string, temperature float64, maxTokens, fallback int) (int, error) {
	completion, err := client.Complete(ctx, model, rubric, text, temperature, maxTokens)
	if err != nil {
		return fallback, nil
	}

	n, ok := firstInt(completion.Text)
	if !ok {
		return fallback, nil
	}
	return clamp0to100(n), nil
}

func firstInt(s string) (int, bool) {
	start := -1
	for i, r := range s {
		if r >= '0' && r <= '9' {
			if start == -1 {
				start = i
			}
			continue
		}
		if start != -1 {
			n, err := strconv.Atoi(s[start:i])
			return n, err == nil
		}
	}
	if start != -1 {
		n, err := strconv.Atoi(s[start:])
		return n, err == nil
	}
	return 0, false
}
