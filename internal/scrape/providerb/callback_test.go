package providerb

import "testing"

func TestParseCallbackRejectsEmptyTasks(t *testing.T) {
	if _, err := ParseCallback([]byte(`{"tasks":[]}`)); err == nil {
		t.Fatalf("expected error for empty tasks")
	}
}

func TestParseCallbackRejectsInvalidJSON(t *testing.T) {
	if _, err := ParseCallback([]byte(`not json`)); err == nil {
		t.Fatalf("expected error for invalid JSON")
	}
}

func TestSucceededOnStatusCode20000(t *testing.T) {
	body := []byte(`{"tasks":[{"id":"abc","status_code":20000,"result":[{"markdown":"hello"}]}]}`)
	p, err := ParseCallback(body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.Succeeded() {
		t.Errorf("expected Succeeded() true for status_code 20000")
	}
	if p.TaskID() != "abc" {
		t.Errorf("expected task id 'abc', got %s", p.TaskID())
	}
}

func TestSucceededFalseOnOtherStatusCode(t *testing.T) {
	body := []byte(`{"tasks":[{"id":"abc","status_code":40000}]}`)
	p, err := ParseCallback(body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Succeeded() {
		t.Errorf("expected Succeeded() false for non-success status_code")
	}
}

func TestNormalizeExtractsSourcesAndMarkdown(t *testing.T) {
	body := []byte(`{
		"tasks": [{
			"id": "abc",
			"status_code": 20000,
			"result": [{
				"markdown": "  some answer  ",
				"sources": [{"title": "Example", "url": "https://example.com"}],
				"items": [{"products": [{}], "images": ["a.png"]}]
			}]
		}]
	}`)
	p, err := ParseCallback(body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp := p.Normalize()
	if resp.AnswerText != "some answer" {
		t.Errorf("expected trimmed markdown, got %q", resp.AnswerText)
	}
	if len(resp.Citations) != 1 || resp.Citations[0].URL != "https://example.com" {
		t.Errorf("expected 1 citation, got %+v", resp.Citations)
	}
	if !resp.HasProducts || resp.ProductCount != 1 {
		t.Errorf("expected products detected, got HasProducts=%v count=%d", resp.HasProducts, resp.ProductCount)
	}
	if !resp.HasImages || resp.ImageCount != 1 {
		t.Errorf("expected images detected, got HasImages=%v count=%d", resp.HasImages, resp.ImageCount)
	}
}

func TestNormalizeEmptyResultYieldsZeroValue(t *testing.T) {
	body := []byte(`{"tasks":[{"id":"abc","status_code":40000}]}`)
	p, _ := ParseCallback(body)
	resp := p.Normalize()
	if resp.AnswerText != "" {
		t.Errorf("expected empty normalized response, got %+v", resp)
	}
}
