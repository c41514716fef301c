package llm

import (
	"context"
	"errors"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// anthropicClient scores completions and validates keys against
// Anthropic's Messages API. Adapted from the teacher's
// services/anthropic_provider.go client-construction pattern
// (anthropic.NewClient(option.WithAPIKey(...))); unlike the teacher's
// runStructuredSearch this client doesn't need prompt-engineered JSON
// since the rubric completions it issues return a single bare token or
// short phrase, not a structured answer object.
type anthropicClient struct {
	apiKey string
	cost   CostService
}

func newAnthropicClient(apiKey string, cost CostService) Client {
	return &anthropicClient{apiKey: apiKey, cost: cost}
}

func (c *anthropicClient) ProviderName() string { return "anthropic" }

func (c *anthropicClient) client() *anthropic.Client {
	cl := anthropic.NewClient(option.WithAPIKey(c.apiKey))
	return &cl
}

func textMessage(text string) anthropic.MessageParam {
	return anthropic.MessageParam{
		Role: anthropic.MessageParamRoleUser,
		Content: []anthropic.ContentBlockParamUnion{{
			OfText: &anthropic.TextBlockParam{Text: text},
		}},
	}
}

// Validate issues a 1-output-token message to confirm the key can reach
// the given model.
func (c *anthropicClient) Validate(ctx context.Context, model string) error {
	cl := c.client()
	_, err := cl.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: 1,
		Messages:  []anthropic.MessageParam{textMessage("ping")},
	})
	if err == nil {
		return nil
	}
	return ClassifyValidationError(statusCodeOfAnthropic(err), err)
}

// Complete issues a single rubric-scoring message at the requested
// temperature, capped at maxTokens output tokens. Anthropic's Go SDK
// (as used by the teacher) has no native structured-output mode, so the
// rubric instructions are folded into the user turn rather than passed
// as a distinct system prompt field.
func (c *anthropicClient) Complete(ctx context.Context, model, systemPrompt, userPrompt string, temperature float64, maxTokens int) (*Completion, error) {
	cl := c.client()
	combined := systemPrompt + "\n\n" + userPrompt
	resp, err := cl.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		MaxTokens:   int64(maxTokens),
		Temperature: anthropic.Float(temperature),
		Messages:    []anthropic.MessageParam{textMessage(combined)},
	})
	if err != nil {
		return nil, ClassifyValidationError(statusCodeOfAnthropic(err), err)
	}

	var text string
	for _, block := range resp.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			text += tb.Text
		}
	}
	if text == "" {
		return nil, errors.New("anthropic: empty content in completion response")
	}

	return &Completion{
		Text:         text,
		InputTokens:  int(resp.Usage.InputTokens),
		OutputTokens: int(resp.Usage.OutputTokens),
	}, nil
}

func statusCodeOfAnthropic(err error) int {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
