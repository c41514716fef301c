package llm

import (
	"context"
	"errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// openAIClient scores completions and validates keys against OpenAI's
// chat-completions API. Adapted from the teacher's
// services/openai_provider.go, trimmed to the two operations this
// pipeline actually needs: a cheap validation probe and a rubric
// completion — the teacher's structured-output question-answering and
// web-search flow lives in internal/scrape instead, since in this
// pipeline the scraping providers answer the tracked prompt, not OpenAI.
type openAIClient struct {
	apiKey string
	cost   CostService
}

func newOpenAIClient(apiKey string, cost CostService) Client {
	return &openAIClient{apiKey: apiKey, cost: cost}
}

func (c *openAIClient) ProviderName() string { return "openai" }

func (c *openAIClient) client() *openai.Client {
	cl := openai.NewClient(option.WithAPIKey(c.apiKey))
	return &cl
}

// Validate issues a 1-output-token completion to confirm the key can
// reach the given model, per §4.1 step 2.
func (c *openAIClient) Validate(ctx context.Context, model string) error {
	cl := c.client()
	_, err := cl.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage("ping"),
		},
		MaxTokens: openai.Int(1),
	})
	if err == nil {
		return nil
	}
	return ClassifyValidationError(statusCodeOf(err), err)
}

// Complete issues a single rubric-scoring completion at the requested
// temperature, capped at maxTokens output tokens.
func (c *openAIClient) Complete(ctx context.Context, model, systemPrompt, userPrompt string, temperature float64, maxTokens int) (*Completion, error) {
	cl := c.client()
	resp, err := cl.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		Temperature: openai.Float(temperature),
		MaxTokens:   openai.Int(int64(maxTokens)),
	})
	if err != nil {
		return nil, ClassifyValidationError(statusCodeOf(err), err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai: empty choices in completion response")
	}

	return &Completion{
		Text:         resp.Choices[0].Message.Content,
		InputTokens:  int(resp.Usage.PromptTokens),
		OutputTokens: int(resp.Usage.CompletionTokens),
	}, nil
}

func statusCodeOf(err error) int {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
