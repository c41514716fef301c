package enrichment

import (
	"context"
	"testing"
	"time"

	"github.com/aivisible/prompt-pipeline/internal/llm"
	"github.com/aivisible/prompt-pipeline/internal/models"
)

type fakeClient struct {
	responses []string
	calls     int
}

func (f *fakeClient) ProviderName() string { return "fake" }

func (f *fakeClient) Validate(ctx context.Context, model string) error { return nil }

func (f *fakeClient) Complete(ctx context.Context, model, systemPrompt, userPrompt string, temperature float64, maxTokens int) (*llm.Completion, error) {
	text := f.responses[f.calls%len(f.responses)]
	f.calls++
	return &llm.Completion{Text: text, InputTokens: 10, OutputTokens: 1}, nil
}

func fixedNow() time.Time {
	return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
}

func TestEngineEnrichSkipsScoringWithoutBrandMatch(t *testing.T) {
	e := NewEngine(fixedNow)
	resp := models.NormalizedResponse{AnswerText: "nothing relevant here"}
	client := &fakeClient{responses: []string{"75"}}

	result, err := e.Enrich(context.Background(), resp, "prompt", "gpt-4.1", []string{"Acme"}, nil, client)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.BrandPresence.AnyMatch {
		t.Fatalf("expected no brand match")
	}
	if result.Sentiment != 0 || result.Salience != 0 {
		t.Errorf("expected zero sentiment/salience when no brand match, got %+v", result)
	}
	if client.calls != 0 {
		t.Errorf("expected no LLM calls when brand absent, got %d", client.calls)
	}
}

func TestEngineEnrichScoresWhenBrandPresent(t *testing.T) {
	e := NewEngine(fixedNow)
	resp := models.NormalizedResponse{AnswerText: "Acme Corp is the best choice for this."}
	client := &fakeClient{responses: []string{"80", "60"}}

	result, err := e.Enrich(context.Background(), resp, "prompt", "gpt-4.1", []string{"Acme Corp"}, nil, client)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.BrandPresence.AnyMatch {
		t.Fatalf("expected brand match")
	}
	if result.Sentiment != 80 {
		t.Errorf("expected sentiment 80, got %d", result.Sentiment)
	}
	if result.Salience != 60 {
		t.Errorf("expected salience 60, got %d", result.Salience)
	}
	if client.calls != 2 {
		t.Errorf("expected exactly 2 LLM calls (sentiment, salience), got %d", client.calls)
	}
}

func TestEngineEnrichParseFailureFallsBackToDefaults(t *testing.T) {
	e := NewEngine(fixedNow)
	resp := models.NormalizedResponse{AnswerText: "Acme Corp ships worldwide."}
	client := &fakeClient{responses: []string{"not a number"}}

	result, err := e.Enrich(context.Background(), resp, "prompt", "gpt-4.1", []string{"Acme Corp"}, nil, client)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Sentiment != 50 {
		t.Errorf("expected default sentiment 50 on parse failure, got %d", result.Sentiment)
	}
	if result.Salience != 0 {
		t.Errorf("expected default salience 0 on parse failure, got %d", result.Salience)
	}
}

func TestFirstInt(t *testing.T) {
	cases := []struct {
		in      string
		want    int
		wantOk  bool
	}{
		{"75", 75, true},
		{"Score: 42 out of 100", 42, true},
		{"no digits here", 0, false},
		{"", 0, false},
	}
	for _, c := range cases {
		got, ok := firstInt(c.in)
		if ok != c.wantOk || (ok && got != c.want) {
			t.Errorf("firstInt(%q) = (%d, %v), want (%d, %v)", c.in, got, ok, c.want, c.wantOk)
		}
	}
}
