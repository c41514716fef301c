package sanitize

import (
	"strings"
	"testing"
)

func TestSanitizeMarkdownLink(t *testing.T) {
	got := Sanitize("Check out [our docs](https://example.com/docs) for more.", DefaultOptions())
	want := "Check out our docs (https://example.com/docs) for more."
	if got != want {
		t.Errorf("Sanitize() = %q, want %q", got, want)
	}
}

func TestSanitizeCodeFence(t *testing.T) {
	got := Sanitize("Run this:\n```go\nfmt.Println(\"hi\")\n```\ndone", DefaultOptions())
	if strings.Contains(got, "```") {
		t.Errorf("expected code fences stripped, got %q", got)
	}
	if !strings.Contains(got, "fmt.Println") {
		t.Errorf("expected inner code content kept, got %q", got)
	}
}

func TestSanitizeHeadings(t *testing.T) {
	got := Sanitize("## Section Title\nBody text", DefaultOptions())
	if strings.Contains(got, "#") {
		t.Errorf("expected heading markers removed, got %q", got)
	}
}

func TestSanitizeEmphasis(t *testing.T) {
	cases := []struct{ in, want string }{
		{"This is ***very*** important", "This is very important"},
		{"This is **bold** text", "This is bold text"},
		{"This is *italic* text", "This is italic text"},
		{"This is __bold__ text", "This is bold text"},
	}
	for _, c := range cases {
		got := Sanitize(c.in, DefaultOptions())
		if got != c.want {
			t.Errorf("Sanitize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestSanitizeBullets(t *testing.T) {
	got := Sanitize("Items:\n* first\n• second\n- third\n1. fourth", DefaultOptions())
	for _, line := range strings.Split(got, "\n")[1:] {
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "- ") {
			t.Errorf("expected normalized bullet prefix, got line %q in %q", line, got)
		}
	}
}

func TestSanitizeBulletsDropped(t *testing.T) {
	opts := DefaultOptions()
	opts.PreserveLists = false
	got := Sanitize("* first\n* second", opts)
	if strings.Contains(got, "-") {
		t.Errorf("expected bullets dropped entirely, got %q", got)
	}
}

func TestSanitizeHTMLTags(t *testing.T) {
	got := Sanitize("<p>Hello <b>world</b></p>", DefaultOptions())
	if strings.ContainsAny(got, "<>") {
		t.Errorf("expected HTML tags stripped, got %q", got)
	}
}

func TestSanitizeNamedEntities(t *testing.T) {
	got := Sanitize("Tom &amp; Jerry &mdash; a classic", DefaultOptions())
	want := "Tom & Jerry — a classic"
	if got != want {
		t.Errorf("Sanitize() = %q, want %q", got, want)
	}
}

func TestSanitizePunctuationSpacing(t *testing.T) {
	got := Sanitize("Hello.World", DefaultOptions())
	want := "Hello. World"
	if got != want {
		t.Errorf("Sanitize() = %q, want %q", got, want)
	}
}

func TestSanitizeCollapsesSpacesAndBlankLines(t *testing.T) {
	got := Sanitize("Hello    world\n\n\n\n\nSecond paragraph", DefaultOptions())
	if strings.Contains(got, "    ") {
		t.Errorf("expected runs of spaces collapsed, got %q", got)
	}
	if strings.Contains(got, "\n\n\n") {
		t.Errorf("expected blank-line runs collapsed, got %q", got)
	}
}

func TestSanitizeIdempotent(t *testing.T) {
	inputs := []string{
		"## Title\n\nCheck [this](http://a.com) and ***bold*** and `code`.\n\n\n* one\n* two",
		"Plain text with no markdown at all.",
		"<div>HTML &amp; entities &mdash; mixed with *emphasis*</div>",
		"",
		"   \n\n  trailing and leading whitespace  \n\n  ",
	}
	for _, in := range inputs {
		once := Sanitize(in, DefaultOptions())
		twice := Sanitize(once, DefaultOptions())
		if once != twice {
			t.Errorf("Sanitize not idempotent for %q:\n  once:  %q\n  twice: %q", in, once, twice)
		}
	}
}

func TestSanitizeUnescapesLiteralNewlines(t *testing.T) {
	got := Sanitize(`Line one\nLine two`, DefaultOptions())
	if !strings.Contains(got, "\n") {
		t.Errorf("expected literal \\n unescaped to newline, got %q", got)
	}
}
