// Package sanitize turns opaque provider answer text into normalized
// prose. The approach — compiled regexps plus strings.ReplaceAll passes
// over plain Go strings, no markdown-parser dependency — follows the
// teacher's own htmlToText/extractCitations helpers in
// services/perplexity_provider.go.
package sanitize

import (
	"regexp"
	"strings"
)

var (
	markdownLinkRe  = regexp.MustCompile(`\[([^\]]*)\]\(([^)]*)\)`)
	codeFenceRe     = regexp.MustCompile("(?s)```[a-zA-Z0-9]*\\n?(.*?)```")
	inlineCodeRe    = regexp.MustCompile("`([^`]*)`")
	headingRe       = regexp.MustCompile(`(?m)^[ \t]{0,3}#{1,6}[ \t]+`)
	boldItalic3Re   = regexp.MustCompile(`\*\*\*([^*]+)\*\*\*|___([^_]+)___`)
	boldItalic2Re   = regexp.MustCompile(`\*\*([^*]+)\*\*|__([^_]+)__`)
	boldItalic1Re   = regexp.MustCompile(`\*([^*]+)\*|_([^_]+)_`)
	bulletRe        = regexp.MustCompile(`(?m)^[ \t]*([*•\-]|\d+\.)[ \t]+`)
	htmlTagRe       = regexp.MustCompile(`<[^>]*>`)
	punctSpacingRe  = regexp.MustCompile(`([.?!;:])([^\s\n])`)
	multiSpaceRe    = regexp.MustCompile(`[ \t]{2,}`)
	multiBlankRe    = regexp.MustCompile(`\n{3,}`)
)

var namedEntities = map[string]string{
	"&amp;":   "&",
	"&lt;":    "<",
	"&gt;":    ">",
	"&quot;":  "\"",
	"&#39;":   "'",
	"&apos;":  "'",
	"&nbsp;":  " ",
	"&mdash;": "—",
	"&ndash;": "–",
	"&hellip;": "…",
}

// Options configures the sanitization pass. PreserveLists keeps normalized
// bullet markers ("- ") instead of dropping them entirely (§4.9 step 6).
// MaxBlankLines bounds how many consecutive blank lines survive collapse
// (default 1, i.e. no blank-line runs).
type Options struct {
	PreserveLists bool
	MaxBlankLines int
}

// DefaultOptions matches the enrichment engine's own call site: lists
// preserved, at most a single blank line between paragraphs.
func DefaultOptions() Options {
	return Options{PreserveLists: true, MaxBlankLines: 1}
}

// Sanitize runs the ordered normalization pipeline from §4.9. It is
// idempotent: Sanitize(Sanitize(x)) == Sanitize(x).
func Sanitize(input string, opts Options) string {
	if opts.MaxBlankLines < 1 {
		opts.MaxBlankLines = 1
	}

	text := input

	// 1. Unescape literal \n into newlines.
	text = strings.ReplaceAll(text, `\n`, "\n")

	// 2. Rewrite [text](url) to text (url).
	text = markdownLinkRe.ReplaceAllString(text, "$1 ($2)")

	// 3. Strip code fences and inline code markers, keeping inner content.
	text = codeFenceRe.ReplaceAllString(text, "$1")
	text = inlineCodeRe.ReplaceAllString(text, "$1")

	// 4. Remove heading markers at line starts.
	text = headingRe.ReplaceAllString(text, "")

	// 5. Strip emphasis markers, keeping inner text. Order matters: widest
	// markers first so "***x***" doesn't leave behind stray single stars.
	text = replaceEmphasis(boldItalic3Re, text)
	text = replaceEmphasis(boldItalic2Re, text)
	text = replaceEmphasis(boldItalic1Re, text)

	// 6. Normalize list bullets, or drop them entirely.
	if opts.PreserveLists {
		text = bulletRe.ReplaceAllString(text, "- ")
	} else {
		text = bulletRe.ReplaceAllString(text, "")
	}

	// 7. Remove backslash escapes (\* \_ \[ etc.) but not the newline
	// unescape already performed in step 1.
	text = removeBackslashEscapes(text)

	// 8. Strip HTML tags.
	text = htmlTagRe.ReplaceAllString(text, "")

	// 9. Decode common named HTML entities.
	for entity, replacement := range namedEntities {
		text = strings.ReplaceAll(text, entity, replacement)
	}

	// 10. Ensure a single space after .?!;: before non-newline content.
	text = punctSpacingRe.ReplaceAllString(text, "$1 $2")

	// 11. Collapse runs of spaces; collapse blank-line runs; trim lines
	// and the document.
	text = multiSpaceRe.ReplaceAllString(text, " ")
	text = collapseBlankLines(text, opts.MaxBlankLines)
	text = trimLines(text)

	return strings.TrimSpace(text)
}

func replaceEmphasis(re *regexp.Regexp, text string) string {
	return re.ReplaceAllStringFunc(text, func(match string) string {
		sub := re.FindStringSubmatch(match)
		for _, g := range sub[1:] {
			if g != "" {
				return g
			}
		}
		return ""
	})
}

func removeBackslashEscapes(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for i := 0; i < len(text); i++ {
		if text[i] == '\\' && i+1 < len(text) {
			next := text[i+1]
			if strings.ContainsRune(`*_[]()#+-.!~`, rune(next)) {
				b.WriteByte(next)
				i++
				continue
			}
		}
		b.WriteByte(text[i])
	}
	return b.String()
}

func collapseBlankLines(text string, maxBlank int) string {
	replacement := "\n" + strings.Repeat("\n", maxBlank)
	return multiBlankRe.ReplaceAllString(text, replacement)
}

func trimLines(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(strings.TrimLeft(line, " \t"), " \t")
	}
	return strings.Join(lines, "\n")
}
