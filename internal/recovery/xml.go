package recovery

import (
	"regexp"
	"strings"
)

// envelopeRe locates the sustainability analysis envelope produced by the
// industry-specialized prompts.
var envelopeRe = regexp.MustCompile(`(?s)<sustainability_analysis>(.*?)</sustainability_analysis>`)

// ExpectedXMLTags is the full set of named tags a specialized response may
// carry. Each is extracted independently so a partial or malformed envelope
// never blocks recovery of the remaining fields.
var ExpectedXMLTags = []string{
	"company_description",
	"abstract",
	"highlight_1",
	"highlight_2",
	"highlight_3",
	"criteria1_actions_solutions",
	"criteria2_actions_solutions",
	"criteria3_actions_solutions",
	"criteria4_actions_solutions",
	"criteria5_actions_solutions",
	"criteria6_actions_solutions",
	"criteria7_actions_solutions",
	"carbon_footprint_data",
	"climate_standards",
	"other_initiatives",
	"controversies",
}

// tagRes holds one compiled per-tag pattern, dot-matches-newline so values
// spanning lines are captured.
var tagRes = func() map[string]*regexp.Regexp {
	res := make(map[string]*regexp.Regexp, len(ExpectedXMLTags))
	for _, tag := range ExpectedXMLTags {
		res[tag] = regexp.MustCompile(`(?s)<` + tag + `>(.*?)</` + tag + `>`)
	}
	return res
}()

// recoverXML extracts the specialized XML-tag format. When the envelope is
// present only its interior is scanned; when absent each expected tag is
// pulled from the full text independently.
func recoverXML(raw string) Result {
	scope := raw
	strategy := "xml_tags"
	var warnings []string

	if m := envelopeRe.FindStringSubmatch(raw); m != nil {
		scope = m[1]
		strategy = "xml_envelope"
	} else {
		warnings = append(warnings, "sustainability_analysis envelope missing; extracted tags individually")
	}

	data := make(map[string]any)
	for _, tag := range ExpectedXMLTags {
		if m := tagRes[tag].FindStringSubmatch(scope); m != nil {
			if v := strings.TrimSpace(m[1]); v != "" {
				data[tag] = v
			}
		}
	}

	if len(data) == 0 {
		return failure(raw, "no expected XML tags found")
	}
	return Result{
		OK:       true,
		Data:     data,
		Strategy: strategy,
		Warnings: warnings,
	}
}
