package recovery

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// greedySpanRe matches from the first "{" to the last "}" in the text. Used
// as a coarse fallback when the balanced walk desyncs (mismatched quotes,
// braces embedded in unterminated string values).
var greedySpanRe = regexp.MustCompile(`(?s)\{.*\}`)

// parseRegexSpan applies the single greedy regex and attempts a parse of the
// matched span.
func parseRegexSpan(text string) (map[string]any, []string, bool) {
	span := greedySpanRe.FindString(text)
	if span == "" {
		return nil, nil, false
	}
	data, ok := tryParse(span)
	return data, nil, ok
}

// parseLargestCleaned collects every brace-delimited candidate at any nesting
// depth, sorts descending by length, and tries each after textual cleanup.
// Larger candidates first: the outermost object is the full record, inner
// objects are partial sub-structures we only want as a last resort.
func parseLargestCleaned(text string) (map[string]any, []string, bool) {
	candidates := nestedSpans(text)
	if len(candidates) == 0 {
		return nil, nil, false
	}

	sort.Slice(candidates, func(i, j int) bool {
		return len(candidates[i]) > len(candidates[j])
	})

	for _, span := range candidates {
		cleaned := CleanupText(span)
		if len(cleaned) < minSubstantialLen {
			continue
		}
		if data, ok := tryParse(cleaned); ok {
			return data, []string{"parsed after textual cleanup"}, true
		}
	}
	return nil, nil, false
}

// nestedSpans returns every balanced brace span, including nested and
// overlapping ones, via a simple open-brace stack.
func nestedSpans(text string) []string {
	var spans []string
	var stack []int
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '{':
			stack = append(stack, i)
		case '}':
			if len(stack) > 0 {
				start := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				spans = append(spans, text[start:i+1])
			}
		}
	}
	return spans
}

var (
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
	whitespaceRunRe = regexp.MustCompile(`[ \t]{2,}`)
	escapedNewline  = strings.NewReplacer(`\r\n`, `\n`, `\r`, ``)
)

// controlStripper removes non-printable control characters while keeping the
// whitespace JSON tolerates.
var controlStripper = runes.Remove(runes.Predicate(func(r rune) bool {
	if r == '\n' || r == '\t' || r == '\r' {
		return false
	}
	return unicode.IsControl(r)
}))

// CleanupText applies the textual repairs that precede a parse attempt in
// the largest-block strategy: markdown fences, escape-sequence
// normalization, whitespace collapsing, control characters, and trailing
// commas before a closing brace or bracket.
func CleanupText(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")

	text = escapedNewline.Replace(text)
	if stripped, _, err := transform.String(controlStripper, text); err == nil {
		text = stripped
	}

	// Collapse newline runs, then horizontal whitespace runs. Literal
	// newlines inside quoted values are invalid JSON anyway; joining the
	// lines gives the parse a chance.
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	text = strings.Join(lines, "\n")
	for strings.Contains(text, "\n\n") {
		text = strings.ReplaceAll(text, "\n\n", "\n")
	}
	text = whitespaceRunRe.ReplaceAllString(text, " ")

	text = trailingCommaRe.ReplaceAllString(text, "$1")

	return strings.TrimSpace(text)
}
