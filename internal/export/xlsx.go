package export

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sustain-group/esg-cli/internal/store"
)

const sheetName = "ESG Records"

// WriteXLSX writes all records as a single-sheet XLSX workbook with the
// stable column set.
func WriteXLSX(records []store.StoredRecord, outputPath string) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(sheetName)
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, col := range Columns() {
		header.AddCell().SetString(col)
	}

	for _, sr := range records {
		row := sheet.AddRow()
		for _, cell := range BuildRow(sr) {
			row.AddCell().SetString(cell)
		}
	}

	return eris.Wrap(f.Save(outputPath), "export: save xlsx")
}
