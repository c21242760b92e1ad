package recovery

import (
	"encoding/json"
	"regexp"
	"strings"
)

// bareKeyRe matches an unquoted property name after "{" or ",".
var bareKeyRe = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_-]*)\s*:`)

// keyValueRe tokenizes "key": value pairs for the manual fallback. Values run
// to the next quoted key or the end of the object.
var keyValueRe = regexp.MustCompile(`"([^"]+)"\s*:\s*("(?:[^"\\]|\\.)*"|\[[^\]]*\]|\{[^}]*\}|[^,}\n]+)`)

// parseWithRepair is the last-resort strategy: take the first "{" to last "}"
// span, apply aggressive fixes, and if the span still does not parse,
// reconstruct a flat object from tokenized key/value pairs. Results carry a
// warning because repaired data may be incomplete.
func parseWithRepair(text string) (map[string]any, []string, bool) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return nil, nil, false
	}
	span := text[start : end+1]

	repaired := repairSpan(span)
	if data, ok := tryParse(repaired); ok {
		return data, []string{"recovered via heuristic repair; data may be incomplete"}, true
	}

	// Manual tokenization: best-effort mapping of "key": value pairs.
	data := tokenizePairs(repaired)
	if len(data) == 0 {
		return nil, nil, false
	}
	return data, []string{"reconstructed from key/value tokens; data may be incomplete"}, true
}

// repairSpan applies the aggressive textual fixes: markdown stripping, bare
// key quoting, and quote balancing.
func repairSpan(span string) string {
	span = CleanupText(span)
	span = bareKeyRe.ReplaceAllString(span, `$1"$2":`)

	// Balance mismatched quotes: an odd count of unescaped quotes means an
	// unterminated string, usually from truncation. Close it before the
	// final brace.
	if countUnescapedQuotes(span)%2 == 1 {
		if idx := strings.LastIndexByte(span, '}'); idx >= 0 {
			span = span[:idx] + `"` + span[idx:]
		}
	}
	return span
}

func countUnescapedQuotes(s string) int {
	count := 0
	escaped := false
	for i := 0; i < len(s); i++ {
		switch {
		case escaped:
			escaped = false
		case s[i] == '\\':
			escaped = true
		case s[i] == '"':
			count++
		}
	}
	return count
}

// tokenizePairs extracts "key": value pairs by regex and coerces each value:
// JSON-parse when possible, plain trimmed string otherwise.
func tokenizePairs(span string) map[string]any {
	matches := keyValueRe.FindAllStringSubmatch(span, -1)
	if len(matches) == 0 {
		return nil
	}

	data := make(map[string]any, len(matches))
	for _, m := range matches {
		key := m[1]
		raw := strings.TrimSpace(m[2])

		var v any
		if err := json.Unmarshal([]byte(raw), &v); err == nil {
			data[key] = v
			continue
		}
		data[key] = strings.Trim(raw, `"`)
	}
	return data
}
