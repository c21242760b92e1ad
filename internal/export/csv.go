package export

import (
	"encoding/csv"
	"os"

	"github.com/rotisserie/eris"

	"github.com/sustain-group/esg-cli/internal/store"
)

// WriteCSV writes all records as a CSV file with the stable column set.
func WriteCSV(records []store.StoredRecord, outputPath string) error {
	f, err := os.Create(outputPath)
	if err != nil {
		return eris.Wrap(err, "export: create csv file")
	}
	defer f.Close() //nolint:errcheck

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write(Columns()); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	for _, sr := range records {
		if err := w.Write(BuildRow(sr)); err != nil {
			return eris.Wrapf(err, "export: write csv row %s", sr.RecordID)
		}
	}
	w.Flush()
	return eris.Wrap(w.Error(), "export: flush csv")
}
