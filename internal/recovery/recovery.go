// Package recovery converts unreliable model output text into a structured
// record. Models are instructed to respond with a bare JSON object (or an XML
// envelope for specialized prompts), but in practice responses arrive wrapped
// in prose, fenced in markdown, truncated, or otherwise mangled. The engine
// runs an ordered cascade of extraction strategies over the raw text; the
// first strategy that yields a syntactically valid, substantial object wins.
//
// All strategies are pure functions over text and never perform I/O. The
// engine never returns an error: total exhaustion is reported as a Result
// value so one malformed response can never abort a run.
package recovery

import (
	"encoding/json"
	"strings"
)

// Shape selects the expected response format of the upstream prompt.
type Shape string

const (
	// ShapeJSON expects a single JSON object.
	ShapeJSON Shape = "json"
	// ShapeSustainabilityXML expects a <sustainability_analysis> envelope
	// with named child tags, used by industry-specialized prompts.
	ShapeSustainabilityXML Shape = "xml-sustainability"
)

// minSubstantialLen discards brace spans too short to be a real record
// (stray "{}" or tiny inline objects embedded in prose).
const minSubstantialLen = 50

// failureExcerptLen bounds how much of the original text a failure Result
// retains for diagnosis.
const failureExcerptLen = 500

// Result is the outcome of one recovery attempt.
type Result struct {
	OK       bool
	Data     map[string]any
	Strategy string
	Warnings []string

	// Set only when OK is false.
	Message  string
	Original string
}

// jsonStrategy is one step of the JSON cascade.
type jsonStrategy struct {
	name string
	run  func(text string) (map[string]any, []string, bool)
}

// jsonCascade is applied in priority order; cheaper and stricter first.
var jsonCascade = []jsonStrategy{
	{"direct", parseDirect},
	{"fenced_block", parseFencedBlocks},
	{"balanced_scan", parseBalancedSpans},
	{"regex_fallback", parseRegexSpan},
	{"largest_cleaned", parseLargestCleaned},
	{"heuristic_repair", parseWithRepair},
}

// Recover runs the strategy cascade for the expected shape over raw text.
func Recover(raw string, shape Shape) Result {
	if shape == ShapeSustainabilityXML {
		return recoverXML(raw)
	}

	for _, s := range jsonCascade {
		data, warnings, ok := s.run(raw)
		if !ok || !substantial(data) {
			continue
		}
		return Result{
			OK:       true,
			Data:     data,
			Strategy: s.name,
			Warnings: warnings,
		}
	}

	return failure(raw, "no strategy produced a parseable object")
}

func failure(raw, message string) Result {
	excerpt := raw
	if len(excerpt) > failureExcerptLen {
		excerpt = excerpt[:failureExcerptLen]
	}
	return Result{
		OK:       false,
		Message:  message,
		Original: excerpt,
	}
}

// substantial rejects empty objects; a valid parse of "{}" is not a record.
func substantial(data map[string]any) bool {
	return len(data) > 0
}

// tryParse attempts a strict JSON object parse of a candidate span.
func tryParse(candidate string) (map[string]any, bool) {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" || candidate[0] != '{' {
		return nil, false
	}
	var data map[string]any
	if err := json.Unmarshal([]byte(candidate), &data); err != nil {
		return nil, false
	}
	return data, true
}

// parseDirect handles the fully compliant case: the whole trimmed response
// is one JSON object.
func parseDirect(text string) (map[string]any, []string, bool) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "{") || !strings.HasSuffix(trimmed, "}") {
		return nil, nil, false
	}
	data, ok := tryParse(trimmed)
	return data, nil, ok
}

// parseFencedBlocks scans triple-backtick regions (optionally tagged "json")
// in document order and returns the first block that is itself a complete
// object and parses.
func parseFencedBlocks(text string) (map[string]any, []string, bool) {
	for _, block := range fencedRegions(text) {
		block = strings.TrimSpace(block)
		if !strings.HasPrefix(block, "{") || !strings.HasSuffix(block, "}") {
			continue
		}
		if data, ok := tryParse(block); ok {
			return data, nil, true
		}
	}
	return nil, nil, false
}

// fencedRegions extracts the contents of all ```-delimited regions, with any
// leading language tag line ("json", "JSON") stripped.
func fencedRegions(text string) []string {
	var regions []string
	for {
		start := strings.Index(text, "```")
		if start < 0 {
			break
		}
		rest := text[start+3:]
		end := strings.Index(rest, "```")
		if end < 0 {
			break
		}
		region := rest[:end]
		text = rest[end+3:]

		// Drop a language tag on the opening fence line.
		if nl := strings.IndexByte(region, '\n'); nl >= 0 {
			tag := strings.TrimSpace(region[:nl])
			if strings.EqualFold(tag, "json") || tag == "" {
				region = region[nl+1:]
			}
		}
		regions = append(regions, region)
	}
	return regions
}

// parseBalancedSpans walks the text tracking brace depth and collects every
// top-level balanced {...} span, then parses the spans in order. Spans below
// the substantive-length threshold are skipped.
func parseBalancedSpans(text string) (map[string]any, []string, bool) {
	for _, span := range topLevelSpans(text) {
		if len(span) < minSubstantialLen {
			continue
		}
		if data, ok := tryParse(span); ok {
			return data, nil, true
		}
	}
	return nil, nil, false
}

// topLevelSpans returns all depth-zero balanced brace spans in order. Brace
// characters inside JSON string values are skipped via quote tracking, so a
// description containing "{" does not desync the walk.
func topLevelSpans(text string) []string {
	var spans []string
	depth := 0
	start := -1
	inString := false
	escaped := false

	for i := 0; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			// Only strings inside a span matter for brace tracking.
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start >= 0 {
					spans = append(spans, text[start:i+1])
					start = -1
				}
			}
		}
	}
	return spans
}
