package providera

import (
	"testing"

	"github.com/aivisible/prompt-pipeline/internal/scrape"
)

func TestMatchResultsByIndex(t *testing.T) {
	reqs := []scrape.SubmitRequest{{Prompt: "a"}, {Prompt: "b"}}
	results := []result{
		{Index: 2, AnswerTextMarkdown: "second"},
		{Index: 1, AnswerTextMarkdown: "first"},
	}

	out, err := matchResults(results, reqs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out[0].AnswerText != "first" || out[1].AnswerText != "second" {
		t.Errorf("expected index-ordered results, got %+v", out)
	}
}

func TestMatchResultsFallsBackToPromptText(t *testing.T) {
	reqs := []scrape.SubmitRequest{{Prompt: "a"}, {Prompt: "b"}}
	results := []result{
		{Index: 0, Prompt: "b", AnswerTextMarkdown: "second"},
		{Index: 0, Prompt: "a", AnswerTextMarkdown: "first"},
	}

	out, err := matchResults(results, reqs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out[0].AnswerText != "first" || out[1].AnswerText != "second" {
		t.Errorf("expected prompt-text matched results, got %+v", out)
	}
}

func TestMatchResultsMissingPromptErrors(t *testing.T) {
	reqs := []scrape.SubmitRequest{{Prompt: "a"}, {Prompt: "b"}}
	results := []result{
		{Index: 0, Prompt: "a", AnswerTextMarkdown: "first"},
	}

	if _, err := matchResults(results, reqs); err == nil {
		t.Fatalf("expected error for missing second result")
	}
}

func TestNormalizeEmptyAnswerYieldsZeroValue(t *testing.T) {
	r := &result{AnswerTextMarkdown: ""}
	out := normalize(r)
	if out.AnswerText != "" {
		t.Errorf("expected empty answer text, got %q", out.AnswerText)
	}
}

func TestNormalizeErrorResultYieldsZeroValue(t *testing.T) {
	r := &result{AnswerTextMarkdown: "some answer", Error: "boom"}
	out := normalize(r)
	if out.AnswerText != "" {
		t.Errorf("expected error result to produce empty normalized response, got %q", out.AnswerText)
	}
}

func TestExtractCitationsStringList(t *testing.T) {
	raw := []interface{}{"https://example.com/a", "https://example.com/b"}
	citations := extractCitations(raw)
	if len(citations) != 2 {
		t.Fatalf("expected 2 citations, got %d", len(citations))
	}
	if citations[0].URL != "https://example.com/a" {
		t.Errorf("unexpected citation URL: %s", citations[0].URL)
	}
}

func TestExtractCitationsObjectList(t *testing.T) {
	raw := []interface{}{
		map[string]interface{}{"title": "Example", "url": "https://example.com", "domain": "example.com"},
	}
	citations := extractCitations(raw)
	if len(citations) != 1 || citations[0].Title != "Example" || citations[0].Domain != "example.com" {
		t.Errorf("unexpected citations: %+v", citations)
	}
}

func TestSubmitRejectsOversizedBatch(t *testing.T) {
	c := New("key", "https://example.invalid", "dataset")
	reqs := make([]scrape.SubmitRequest, maxBatchSize+1)
	if _, err := c.Submit(nil, reqs); err == nil { //nolint:staticcheck // ctx intentionally nil: request never reaches the network
		t.Fatalf("expected error for oversized batch")
	}
}
