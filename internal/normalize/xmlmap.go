package normalize

import (
	"fmt"
	"strings"

	"github.com/sustain-group/esg-cli/internal/model"
)

// cutColon splits "name: status" trimming both sides.
func cutColon(s string) (name, status string, found bool) {
	name, status, found = strings.Cut(s, ":")
	return strings.TrimSpace(name), strings.TrimSpace(status), found
}

// xmlCriteriaTagCount matches the seven generic criteria tags of the
// specialized response format; tag criteriaN maps positionally onto the
// industry's Nth criterion.
const xmlCriteriaTagCount = 7

// xmlFieldTargets declares where each non-criteria tag lands on the record.
// One table consumed by one loop, instead of per-field extraction code.
var xmlFieldTargets = map[string]func(rec *model.ExtractedRecord, value string){
	"company_description": func(rec *model.ExtractedRecord, v string) { rec.CompanyDetails.Description = v },
	"abstract":            func(rec *model.ExtractedRecord, v string) { rec.Abstract = v },
	"highlight_1":         func(rec *model.ExtractedRecord, v string) { rec.Highlights[0] = v },
	"highlight_2":         func(rec *model.ExtractedRecord, v string) { rec.Highlights[1] = v },
	"highlight_3":         func(rec *model.ExtractedRecord, v string) { rec.Highlights[2] = v },
	"other_initiatives":   func(rec *model.ExtractedRecord, v string) { rec.OtherInitiatives = v },
	"controversies":       func(rec *model.ExtractedRecord, v string) { rec.Controversies = v },
}

// FromXMLTags normalizes the tag map recovered from a specialized XML
// response. The generic criteriaN_actions_solutions tags are renamed into
// the industry's fixed semantic criterion slots; everything else gets the
// same defaults and completion guarantees as the JSON path.
func FromXMLTags(tags map[string]any, nctx Context) *model.ExtractedRecord {
	rec := Record(map[string]any{}, nctx)

	for tag, assign := range xmlFieldTargets {
		if v := lookupString(tags, tag); v != "" {
			assign(rec, v)
		}
	}

	for i := 1; i <= xmlCriteriaTagCount && i <= len(nctx.Criteria); i++ {
		tag := fmt.Sprintf("criteria%d_actions_solutions", i)
		v := lookupString(tags, tag)
		if v == "" {
			continue // placeholder from Record stays
		}
		c := nctx.Criteria[i-1]
		rec.Criteria[c.ID] = model.CriterionActions{Actions: bullets(splitLines(v))}
	}

	if v := lookupString(tags, "carbon_footprint_data"); v != "" {
		rec.CarbonFootprint = carbonMatrix(parseCarbonText(v))
	}
	if v := lookupString(tags, "climate_standards"); v != "" {
		rec.ClimateStandards = climateStandards(parseStandardsText(v))
	}

	return rec
}

// parseStandardsText converts "Standard: status" lines into the compliance
// map shape; lines without a colon count as bare compliance claims.
func parseStandardsText(text string) map[string]any {
	out := make(map[string]any)
	for _, line := range splitLines(text) {
		if name, status, found := cutColon(line); found {
			out[name] = status
		} else if line != "" {
			out[line] = "reported"
		}
	}
	return out
}
