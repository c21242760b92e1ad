// Package normalize post-processes parsed model responses into
// schema-complete records. The recovery engine guarantees syntax only; this
// package guarantees shape: every required criterion present, the full
// carbon matrix materialized, company details structurally complete.
// Normalization is idempotent: running it over an already-normalized record
// changes nothing.
package normalize

import (
	"fmt"
	"strings"

	"github.com/sustain-group/esg-cli/internal/criteria"
	"github.com/sustain-group/esg-cli/internal/model"
)

// maxActions caps the number of action bullets kept per criterion.
const maxActions = 10

// ClimateStandards are the compliance frameworks every record reports
// on, empty-valued when the model found nothing.
var ClimateStandards = []string{
	"GHG Protocol",
	"ISO 14001",
	"SBTi",
	"CSRD",
	"EU Taxonomy",
}

// Context carries the per-record inputs normalization needs.
type Context struct {
	Industry   string
	SourceURL  string
	SourceKind model.SourceKind
	Criteria   []criteria.Criterion

	// WithExtracts additionally fills the Extracts explanation on
	// placeholder criteria (stricter call sites).
	WithExtracts bool
}

// Record normalizes a parsed JSON-shaped response into a complete record.
func Record(parsed map[string]any, nctx Context) *model.ExtractedRecord {
	rec := &model.ExtractedRecord{
		Industry:   nctx.Industry,
		SourceType: string(nctx.SourceKind),
	}

	rec.CompanyDetails = companyDetails(parsed, nctx.SourceURL)
	rec.BasicInformation = basicInformation(parsed, nctx.SourceURL)
	rec.Abstract = lookupString(parsed, "abstract")
	rec.Highlights = highlights(parsed)
	rec.Criteria = criteriaBlocks(parsed, nctx)
	rec.CarbonFootprint = carbonMatrix(lookupMap(parsed, "carbonFootprint", "carbon_footprint"))
	rec.ClimateStandards = climateStandards(lookupAny(parsed, "climateStandards", "climate_standards"))
	rec.OtherInitiatives = lookupString(parsed, "otherInitiatives", "other_initiatives")
	rec.Controversies = lookupString(parsed, "controversies")

	return rec
}

// Fallback synthesizes a schema-complete record for a failed extraction so
// downstream export never encounters a missing row. The reason is carried
// verbatim.
func Fallback(nctx Context, reason, rawExcerpt string) *model.ExtractedRecord {
	rec := Record(map[string]any{}, nctx)
	rec.ExtractionError = reason
	rec.RawExcerpt = rawExcerpt
	return rec
}

// companyDetails resolves the company block, synthesizing an empty-but-
// complete structure when absent and backfilling the website from the
// source URL.
func companyDetails(parsed map[string]any, sourceURL string) *model.CompanyDetails {
	cd := &model.CompanyDetails{}
	if m := lookupMap(parsed, "companyDetails", "company_details"); m != nil {
		cd.LegalName = lookupString(m, "legalName", "legal_name", "name")
		cd.Description = lookupString(m, "description")
		cd.Sector = lookupString(m, "sector", "industry")
		cd.FoundingYear = lookupScalar(m, "foundingYear", "founding_year")
		cd.EmployeeRange = lookupString(m, "employeeRange", "employee_range", "employees")
		cd.RevenueRange = lookupString(m, "revenueRange", "revenue_range", "revenue")

		if addr := lookupMap(m, "address"); addr != nil {
			cd.Address = model.Address{
				Street:  lookupString(addr, "street"),
				ZipCode: lookupScalar(addr, "zipCode", "zip_code", "zip"),
				City:    lookupString(addr, "city"),
				Country: lookupString(addr, "country"),
			}
		}
		if contact := lookupMap(m, "contactInfo", "contact_info", "contact"); contact != nil {
			cd.ContactInfo = model.ContactInfo{
				Phone:   lookupScalar(contact, "phone"),
				Email:   lookupString(contact, "email"),
				Website: lookupString(contact, "website", "url"),
			}
		}
	}
	if cd.ContactInfo.Website == "" {
		cd.ContactInfo.Website = sourceURL
	}
	return cd
}

func basicInformation(parsed map[string]any, sourceURL string) *model.BasicInformation {
	bi := &model.BasicInformation{}
	if m := lookupMap(parsed, "basicInformation", "basic_information"); m != nil {
		bi.CompanyName = lookupString(m, "companyName", "company_name", "name")
		bi.ReportTitle = lookupString(m, "reportTitle", "report_title", "title")
		bi.ReportingPeriod = lookupScalar(m, "reportingPeriod", "reporting_period", "year")
		bi.ReportURL = lookupString(m, "reportUrl", "report_url")
	}
	if bi.ReportURL == "" {
		bi.ReportURL = sourceURL
	}
	return bi
}

// highlights returns exactly three strings, accepting either a "highlights"
// array or numbered highlight keys.
func highlights(parsed map[string]any) []string {
	out := make([]string, 3)

	if arr, ok := lookupAny(parsed, "highlights").([]any); ok {
		for i := 0; i < 3 && i < len(arr); i++ {
			out[i] = coerceString(arr[i])
		}
		return out
	}

	for i := 0; i < 3; i++ {
		n := fmt.Sprintf("%d", i+1)
		out[i] = lookupString(parsed, "highlight"+n, "highlight_"+n)
	}
	return out
}

// criteriaBlocks resolves one action block per required criterion. Missing
// criteria get an explicit placeholder so the record never silently omits a
// required field.
func criteriaBlocks(parsed map[string]any, nctx Context) map[string]model.CriterionActions {
	// Criterion blocks may sit at the top level or under a "criteria" map.
	scope := parsed
	if m := lookupMap(parsed, "criteria"); m != nil {
		scope = m
	}

	out := make(map[string]model.CriterionActions, len(nctx.Criteria))
	for _, c := range nctx.Criteria {
		v, ok := scope[c.ID]
		if !ok {
			v, ok = parsed[c.ID]
		}

		actions, extracts := coerceActions(v)
		if !ok || len(actions) == 0 {
			out[c.ID] = placeholder(c, nctx.WithExtracts)
			continue
		}
		out[c.ID] = model.CriterionActions{
			Actions:  bullets(actions),
			Extracts: extracts,
		}
	}
	return out
}

func placeholder(c criteria.Criterion, withExtracts bool) model.CriterionActions {
	ca := model.CriterionActions{
		Actions: []string{"# No specific actions found for " + c.DisplayName},
	}
	if withExtracts {
		ca.Extracts = "No supporting passages were identified in the report."
	}
	return ca
}

// coerceActions resolves the known legacy shapes of a criterion value, in
// order: {"actions": [...]}, a bare array, {"actions": "text"}, bare text.
func coerceActions(v any) (actions []string, extracts string) {
	switch t := v.(type) {
	case map[string]any:
		extracts = lookupString(t, "extracts", "extract", "quotes")
		switch inner := t["actions"].(type) {
		case []any:
			actions = stringList(inner)
		case string:
			actions = splitLines(inner)
		}
	case []any:
		actions = stringList(t)
	case string:
		actions = splitLines(t)
	}
	if len(actions) > maxActions {
		actions = actions[:maxActions]
	}
	return actions, extracts
}

// bullets prefixes each action as a bullet point unless it already is one.
func bullets(actions []string) []string {
	out := make([]string, 0, len(actions))
	for _, a := range actions {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if !strings.HasPrefix(a, "- ") && !strings.HasPrefix(a, "# ") {
			a = "- " + a
		}
		out = append(out, a)
	}
	return out
}

// climateStandards guarantees the default framework keys exist and keeps any
// extra frameworks the model reported.
func climateStandards(v any) map[string]string {
	out := make(map[string]string, len(ClimateStandards))
	for _, std := range ClimateStandards {
		out[std] = ""
	}

	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			out[k] = coerceString(val)
		}
	case []any:
		// A bare list means "complies with these".
		for _, item := range t {
			if s := coerceString(item); s != "" {
				out[s] = "reported"
			}
		}
	}
	return out
}

func splitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "-•* \t"))
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func stringList(arr []any) []string {
	var out []string
	for _, v := range arr {
		if s := strings.TrimSpace(coerceString(v)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
