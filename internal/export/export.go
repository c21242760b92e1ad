// Package export writes terminal extraction results as XLSX, CSV, or JSON.
// Every record in the store appears in the output, failed extractions
// included; the column set is fixed so downstream tooling can rely on it.
package export

import (
	"fmt"
	"strings"

	"github.com/sustain-group/esg-cli/internal/criteria"
	"github.com/sustain-group/esg-cli/internal/model"
	"github.com/sustain-group/esg-cli/internal/normalize"
	"github.com/sustain-group/esg-cli/internal/store"
)

// actionSeparator joins criterion action bullets inside one cell.
const actionSeparator = " | "

// Columns returns the stable tabular header. Criterion columns are
// positional (name + actions pairs) because the criterion IDs differ per
// industry while the count never does.
func Columns() []string {
	cols := []string{
		"record_id",
		"company",
		"industry",
		"source_type",
		"report_title",
		"reporting_period",
		"report_url",
		"abstract",
		"highlight_1",
		"highlight_2",
		"highlight_3",
	}
	for i := 1; i <= criteria.Count; i++ {
		cols = append(cols,
			fmt.Sprintf("criterion_%d_name", i),
			fmt.Sprintf("criterion_%d_actions", i),
		)
	}
	for _, scope := range model.CarbonScopes {
		for _, year := range model.CarbonYears {
			cols = append(cols, "carbon_"+model.CarbonKey(scope, year))
		}
	}
	for _, std := range normalize.ClimateStandards {
		cols = append(cols, "standard_"+slug(std))
	}
	cols = append(cols,
		"other_initiatives",
		"controversies",
		"extraction_error",
	)
	return cols
}

// BuildRow flattens one stored record into the column order of Columns.
func BuildRow(sr store.StoredRecord) []string {
	rec := sr.Record
	if rec == nil {
		rec = &model.ExtractedRecord{}
	}

	row := []string{
		sr.RecordID,
		companyName(rec),
		rec.Industry,
		rec.SourceType,
		basicField(rec, func(b *model.BasicInformation) string { return b.ReportTitle }),
		basicField(rec, func(b *model.BasicInformation) string { return b.ReportingPeriod }),
		basicField(rec, func(b *model.BasicInformation) string { return b.ReportURL }),
		rec.Abstract,
		highlight(rec, 0),
		highlight(rec, 1),
		highlight(rec, 2),
	}

	set := criteria.ForIndustry(rec.Industry)
	for _, c := range set {
		row = append(row, c.DisplayName, strings.Join(rec.Criteria[c.ID].Actions, actionSeparator))
	}

	for _, scope := range model.CarbonScopes {
		for _, year := range model.CarbonYears {
			row = append(row, rec.CarbonFootprint[model.CarbonKey(scope, year)])
		}
	}
	for _, std := range normalize.ClimateStandards {
		row = append(row, rec.ClimateStandards[std])
	}

	row = append(row,
		rec.OtherInitiatives,
		rec.Controversies,
		rec.ExtractionError,
	)
	return row
}

func companyName(rec *model.ExtractedRecord) string {
	if rec.BasicInformation != nil && rec.BasicInformation.CompanyName != "" {
		return rec.BasicInformation.CompanyName
	}
	if rec.CompanyDetails != nil {
		return rec.CompanyDetails.LegalName
	}
	return ""
}

func basicField(rec *model.ExtractedRecord, f func(*model.BasicInformation) string) string {
	if rec.BasicInformation == nil {
		return ""
	}
	return f(rec.BasicInformation)
}

func highlight(rec *model.ExtractedRecord, i int) string {
	if i >= len(rec.Highlights) {
		return ""
	}
	return rec.Highlights[i]
}

func slug(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
