package export

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sustain-group/esg-cli/internal/criteria"
	"github.com/sustain-group/esg-cli/internal/model"
	"github.com/sustain-group/esg-cli/internal/normalize"
	"github.com/sustain-group/esg-cli/internal/store"
)

func sampleStored(id, company, industry string) store.StoredRecord {
	set := criteria.ForIndustry(industry)
	crit := make(map[string]model.CriterionActions, len(set))
	for _, c := range set {
		crit[c.ID] = model.CriterionActions{Actions: []string{"Installed LED lighting", "Switched to green power"}}
	}

	carbon := make(map[string]string)
	for _, scope := range model.CarbonScopes {
		for _, year := range model.CarbonYears {
			carbon[model.CarbonKey(scope, year)] = ""
		}
	}
	carbon["scope1_2023"] = "1200"

	standards := make(map[string]string)
	for _, std := range normalize.ClimateStandards {
		standards[std] = ""
	}
	standards["ISO 14001"] = "certified"

	return store.StoredRecord{
		RecordID: id,
		Record: &model.ExtractedRecord{
			Industry: industry,
			BasicInformation: &model.BasicInformation{
				CompanyName:     company,
				ReportTitle:     "Sustainability Report 2024",
				ReportingPeriod: "2024",
			},
			Abstract:         "Cut operational emissions by 12%.",
			Highlights:       []string{"12% emissions cut", "ISO 14001 certified"},
			Criteria:         crit,
			CarbonFootprint:  carbon,
			ClimateStandards: standards,
		},
	}
}

func failedStored(id string) store.StoredRecord {
	rec := normalize.Fallback(normalize.Context{
		Industry: "construction",
		Criteria: criteria.ForIndustry("construction"),
	}, "no parseable payload in response", "garbled output...")
	return store.StoredRecord{RecordID: id, Record: rec}
}

func TestColumns_Shape(t *testing.T) {
	cols := Columns()

	// 11 leading fields, 7 criterion pairs, 12 carbon cells, the standards
	// block, 3 trailing fields.
	want := 11 + criteria.Count*2 +
		len(model.CarbonScopes)*len(model.CarbonYears) +
		len(normalize.ClimateStandards) + 3
	assert.Len(t, cols, want)

	assert.Equal(t, "record_id", cols[0])
	assert.Contains(t, cols, "carbon_scope1_2022")
	assert.Contains(t, cols, "carbon_total_2024")
	assert.Contains(t, cols, "standard_ghg_protocol")
	assert.Contains(t, cols, "standard_eu_taxonomy")
	assert.Equal(t, "extraction_error", cols[len(cols)-1])
}

func TestBuildRow_MatchesColumns(t *testing.T) {
	row := BuildRow(sampleStored("rec_1", "Acme Corp", "construction"))
	require.Len(t, row, len(Columns()))

	assert.Equal(t, "rec_1", row[0])
	assert.Equal(t, "Acme Corp", row[1])
	assert.Equal(t, "construction", row[2])
}

func TestBuildRow_CriteriaOrderFollowsIndustrySet(t *testing.T) {
	cols := Columns()
	row := BuildRow(sampleStored("rec_1", "Acme Corp", "construction"))

	idx := indexOf(cols, "criterion_1_name")
	require.GreaterOrEqual(t, idx, 0)
	assert.Equal(t, "Buildings", row[idx])
	assert.Contains(t, row[idx+1], "Installed LED lighting | Switched to green power")
}

func TestBuildRow_CarbonAndStandards(t *testing.T) {
	cols := Columns()
	row := BuildRow(sampleStored("rec_1", "Acme Corp", "construction"))

	assert.Equal(t, "1200", row[indexOf(cols, "carbon_scope1_2023")])
	assert.Equal(t, "", row[indexOf(cols, "carbon_scope3_2022")])
	assert.Equal(t, "certified", row[indexOf(cols, "standard_iso_14001")])
}

func TestBuildRow_FailedRecordKeepsErrorColumn(t *testing.T) {
	cols := Columns()
	row := BuildRow(failedStored("rec_9"))
	require.Len(t, row, len(cols))

	assert.Equal(t, "no parseable payload in response", row[indexOf(cols, "extraction_error")])
	// Placeholder actions still present, the row is never blank.
	assert.Contains(t, row[indexOf(cols, "criterion_1_actions")], "No specific actions found")
}

func TestBuildRow_NilRecord(t *testing.T) {
	row := BuildRow(store.StoredRecord{RecordID: "rec_x"})
	require.Len(t, row, len(Columns()))
	assert.Equal(t, "rec_x", row[0])
}

func TestWriteCSV_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	records := []store.StoredRecord{
		sampleStored("rec_1", "Acme Corp", "construction"),
		failedStored("rec_2"),
	}
	require.NoError(t, WriteCSV(records, path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, Columns(), rows[0])
	assert.Equal(t, "rec_1", rows[1][0])
	assert.Equal(t, "rec_2", rows[2][0])
}

func TestWriteXLSX_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")
	records := []store.StoredRecord{sampleStored("rec_1", "Acme Corp", "logistics")}
	require.NoError(t, WriteXLSX(records, path))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	sheet, ok := f.Sheet[sheetName]
	require.True(t, ok)
	require.Len(t, sheet.Rows, 2)

	assert.Equal(t, "record_id", sheet.Rows[0].Cells[0].String())
	assert.Equal(t, "rec_1", sheet.Rows[1].Cells[0].String())
	assert.Equal(t, "Acme Corp", sheet.Rows[1].Cells[1].String())
}

func TestWriteJSON_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	records := []store.StoredRecord{sampleStored("rec_1", "Acme Corp", "finance")}
	require.NoError(t, WriteJSON(records, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded []store.StoredRecord
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "rec_1", decoded[0].RecordID)
	assert.Equal(t, "Acme Corp", decoded[0].Record.BasicInformation.CompanyName)
}

func TestWriteJSON_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json")
	require.NoError(t, WriteJSON(nil, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(data))
}

func indexOf(cols []string, name string) int {
	for i, c := range cols {
		if c == name {
			return i
		}
	}
	return -1
}
