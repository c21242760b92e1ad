package prompt

import (
	"fmt"
	"strings"

	"github.com/sustain-group/esg-cli/internal/criteria"
	"github.com/sustain-group/esg-cli/internal/model"
	"github.com/sustain-group/esg-cli/internal/recovery"
)

// Request carries everything the builder needs for one source record.
type Request struct {
	CompanyName string
	Industry    string
	SourceKind  model.SourceKind
	SourceURL   string
	Criteria    []criteria.Criterion

	// PageContent is the readable text of a website source. Empty for PDF
	// sources, where the report is attached as a document block instead.
	PageContent string

	// Custom overrides template selection entirely when set.
	Custom string

	// WithExtracts asks for verbatim supporting quotes per criterion.
	WithExtracts bool
}

// Built is a ready-to-send prompt pair plus the response shape the
// recovery engine should expect.
type Built struct {
	System string
	User   string
	Shape  recovery.Shape
}

const systemText = `You are an ESG analyst extracting sustainability disclosures from company reports and websites. Base every statement strictly on the provided material. Never invent figures. When a disclosure is absent, say so rather than estimating.`

const xmlSystemText = `You are an ESG analyst specializing in the construction sector. Base every statement strictly on the provided material and respond only with the requested XML tags.`

// Build selects a template in priority order: explicit custom prompt, then
// an industry-specialized XML template when one is registered, then the
// generic JSON template. The choice fixes the recovery shape downstream.
func Build(req Request) Built {
	if strings.TrimSpace(req.Custom) != "" {
		return Built{
			System: systemText,
			User:   withSourceMaterial(req.Custom, req),
			Shape:  recovery.ShapeJSON,
		}
	}

	if criteria.HasSpecializedPrompt(req.Industry) {
		return Built{
			System: xmlSystemText,
			User:   buildXML(req),
			Shape:  recovery.ShapeSustainabilityXML,
		}
	}

	return Built{
		System: systemText,
		User:   buildGeneric(req),
		Shape:  recovery.ShapeJSON,
	}
}

func buildGeneric(req Request) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Analyze the sustainability disclosures of %s (industry: %s).\n\n",
		displayName(req), req.Industry)

	b.WriteString("Respond with a single valid JSON object and nothing else. Use this structure:\n\n")
	b.WriteString("{\n")
	b.WriteString(`  "companyDetails": {"name": "", "foundingYear": "", "headquarters": {"street": "", "zip": "", "city": "", "country": ""}, "contact": {"email": "", "phone": "", "website": ""}},` + "\n")
	b.WriteString(`  "basicInformation": {"legalForm": "", "employees": "", "revenue": "", "reportYear": "", "reportUrl": ""},` + "\n")
	b.WriteString(`  "abstract": "2-3 sentence summary of the company's sustainability posture",` + "\n")
	b.WriteString(`  "highlights": ["three short highlight sentences"],` + "\n")
	b.WriteString(criteriaSchema(req))
	b.WriteString(carbonSchema())
	b.WriteString(`  "climateStandards": {"<standard name>": "reported | not reported | <detail>"},` + "\n")
	b.WriteString(`  "otherInitiatives": "",` + "\n")
	b.WriteString(`  "controversies": ""` + "\n")
	b.WriteString("}\n")

	b.WriteString("\nRules:\n")
	b.WriteString("- Every carbon footprint cell is a string; leave it empty when the report discloses nothing for that scope and year.\n")
	b.WriteString("- List concrete actions per criterion as short bullet phrases.\n")
	if req.WithExtracts {
		b.WriteString("- For each criterion include an \"extracts\" field quoting the supporting passages verbatim.\n")
	}

	return withSourceMaterial(b.String(), req)
}

func criteriaSchema(req Request) string {
	var b strings.Builder
	b.WriteString(`  "criteria": {` + "\n")
	for i, c := range req.Criteria {
		sep := ","
		if i == len(req.Criteria)-1 {
			sep = ""
		}
		if req.WithExtracts {
			fmt.Fprintf(&b, `    %q: {"actions": ["..."], "extracts": ""}%s`+"\n", c.ID, sep)
		} else {
			fmt.Fprintf(&b, `    %q: {"actions": ["actions addressing %s"]}%s`+"\n", c.ID, c.DisplayName, sep)
		}
	}
	b.WriteString("  },\n")
	return b.String()
}

func carbonSchema() string {
	var b strings.Builder
	b.WriteString(`  "carbonFootprint": {`)
	first := true
	for _, scope := range model.CarbonScopes {
		for _, year := range model.CarbonYears {
			if !first {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%q: \"\"", model.CarbonKey(scope, year))
			first = false
		}
	}
	b.WriteString("},\n")
	return b.String()
}

func buildXML(req Request) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Analyze the sustainability disclosures of %s, a construction-sector company.\n\n",
		displayName(req))

	b.WriteString("Respond inside a single <sustainability_analysis> envelope containing exactly these tags:\n\n")
	b.WriteString("<sustainability_analysis>\n")
	b.WriteString("<company_description>One paragraph describing the company.</company_description>\n")
	b.WriteString("<abstract>2-3 sentence sustainability summary.</abstract>\n")
	for i := 1; i <= 3; i++ {
		fmt.Fprintf(&b, "<highlight_%d>One notable sustainability highlight.</highlight_%d>\n", i, i)
	}
	for i, c := range req.Criteria {
		fmt.Fprintf(&b, "<criteria%d_actions_solutions>Concrete actions addressing %s, one per line prefixed with \"-\".</criteria%d_actions_solutions>\n",
			i+1, c.DisplayName, i+1)
	}
	b.WriteString("<carbon_footprint_data>Per line: scope 1|scope 2|scope 3|total: value with unit and year.</carbon_footprint_data>\n")
	b.WriteString("<climate_standards>Per line: standard name: status.</climate_standards>\n")
	b.WriteString("<other_initiatives>Further initiatives not covered above.</other_initiatives>\n")
	b.WriteString("<controversies>Known ESG controversies, or \"None reported\".</controversies>\n")
	b.WriteString("</sustainability_analysis>\n")

	return withSourceMaterial(b.String(), req)
}

// withSourceMaterial appends the source reference, and for website sources
// the fetched page text.
func withSourceMaterial(body string, req Request) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(body, "\n"))
	b.WriteString("\n\n")

	switch req.SourceKind {
	case model.SourceKindWebsite:
		fmt.Fprintf(&b, "Source: %s\n\nWebsite content:\n---\n%s\n---\n", req.SourceURL, req.PageContent)
	default:
		fmt.Fprintf(&b, "The sustainability report is attached as a document. Source: %s\n", req.SourceURL)
	}

	return b.String()
}

func displayName(req Request) string {
	if req.CompanyName != "" {
		return req.CompanyName
	}
	return "the company"
}
