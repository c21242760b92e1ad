package normalize

import (
	"regexp"
	"strings"

	"github.com/sustain-group/esg-cli/internal/model"
)

// yearSuffixRe extracts the "(YYYY)" reporting-year token embedded in legacy
// flat carbon values, e.g. "12.3 t CO2e (2022)".
var yearSuffixRe = regexp.MustCompile(`\((\d{4})\)`)

// legacyDefaultYear applies when a legacy value carries no year token.
const legacyDefaultYear = "2023"

// carbonMatrix migrates the legacy flat shape to the year-keyed shape and
// guarantees every scope x year cell exists as a string. Already year-keyed
// input passes through untouched, which keeps normalization idempotent.
func carbonMatrix(raw map[string]any) map[string]string {
	out := make(map[string]string, len(model.CarbonScopes)*len(model.CarbonYears))
	for _, scope := range model.CarbonScopes {
		for _, year := range model.CarbonYears {
			out[model.CarbonKey(scope, year)] = ""
		}
	}

	for key, v := range raw {
		val := strings.TrimSpace(coerceString(v))
		if val == "" {
			continue
		}

		if isLegacyScopeKey(key) {
			year := legacyDefaultYear
			if m := yearSuffixRe.FindStringSubmatch(val); m != nil {
				year = m[1]
				val = strings.TrimSpace(yearSuffixRe.ReplaceAllString(val, ""))
			}
			out[model.CarbonKey(key, year)] = val
			continue
		}

		// Year-keyed values pass through; unknown years are kept so no
		// reported data is dropped, the exporters just ignore the extra
		// columns.
		out[key] = val
	}

	return out
}

// isLegacyScopeKey reports whether the key is a bare scope name with no
// year suffix.
func isLegacyScopeKey(key string) bool {
	for _, scope := range model.CarbonScopes {
		if key == scope {
			return true
		}
	}
	return false
}

// carbonLineRe parses one line of the free-text carbon block used by the
// XML response format: "scope1: 120 t CO2e (2023)".
var carbonLineRe = regexp.MustCompile(`(?i)^\s*(scope\s*1|scope\s*2|scope\s*3|total)\s*[:=]\s*(.+?)\s*$`)

// parseCarbonText converts the XML carbon text blob into the legacy flat
// shape, which carbonMatrix then migrates like any other legacy input.
func parseCarbonText(text string) map[string]any {
	out := make(map[string]any)
	for _, line := range strings.Split(text, "\n") {
		m := carbonLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		scope := strings.ReplaceAll(strings.ToLower(m[1]), " ", "")
		out[scope] = m[2]
	}
	return out
}
