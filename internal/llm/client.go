// Package llm wraps the generative-LLM clients used for (a) the 1-token
// key/model validation probe at submission time (§4.1 step 2) and (b) the
// sentiment/salience rubric completions the enrichment engine issues per
// fulfilled TrackingResult (§4.5 steps 8-9). It is deliberately narrower
// than the teacher's services.AIProvider: this pipeline never uses an LLM
// to answer the tracked prompt itself — that is the scraping providers'
// job (internal/scrape) — it only uses one to validate credentials and to
// score an already-scraped answer.
package llm

import (
	"context"
	"strings"

	"github.com/aivisible/prompt-pipeline/internal/apierr"
)

// Completion is the result of a single scoring/validation call.
type Completion struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// Client issues short, deterministic completions against a generative
// model on behalf of a single request's carried API key.
type Client interface {
	// Validate issues a minimal (≈1 output token) probe to confirm the key
	// and model are usable, classifying failures per §4.1 step 2.
	Validate(ctx context.Context, model string) error

	// Complete issues a rubric-driven scoring completion at the given
	// temperature, capped at maxTokens output tokens.
	Complete(ctx context.Context, model, systemPrompt, userPrompt string, temperature float64, maxTokens int) (*Completion, error)

	// ProviderName identifies the underlying vendor for cost accounting.
	ProviderName() string
}

// New selects an OpenAI or Anthropic client based on the model name,
// mirroring the substring-dispatch idiom of the teacher's
// internal/providers/factory.go.
func New(apiKey, model string, cost CostService) (Client, error) {
	lower := strings.ToLower(model)
	switch {
	case strings.Contains(lower, "claude"), strings.Contains(lower, "sonnet"),
		strings.Contains(lower, "opus"), strings.Contains(lower, "haiku"):
		return newAnthropicClient(apiKey, cost), nil
	case strings.Contains(lower, "gpt"), strings.Contains(lower, "4.1"), strings.Contains(lower, "5"):
		return newOpenAIClient(apiKey, cost), nil
	default:
		return newOpenAIClient(apiKey, cost), nil
	}
}

// ClassifyValidationError maps an upstream key-validation failure to the
// taxonomy in §7. Both vendor clients funnel their raw HTTP status through
// this so the submission API sees one consistent error shape.
func ClassifyValidationError(statusCode int, cause error) error {
	switch statusCode {
	case 401:
		return apierr.Wrap(apierr.AuthFailed, "provider rejected credentials", cause)
	case 429:
		return apierr.Wrap(apierr.QuotaExceeded, "provider quota exceeded", cause)
	case 403:
		return apierr.Wrap(apierr.ModelForbidden, "model forbidden for this key", cause)
	case 404:
		return apierr.Wrap(apierr.ModelNotFound, "model not found", cause)
	default:
		return apierr.Wrap(apierr.UpstreamUnavailable, "provider validation call failed", cause)
	}
}
