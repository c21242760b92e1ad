package export

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"

	"github.com/sustain-group/esg-cli/internal/store"
)

// WriteJSON writes all records as a JSON array of {record_id, record}
// objects. Unlike the tabular formats, the full nested record structure is
// preserved.
func WriteJSON(records []store.StoredRecord, outputPath string) error {
	f, err := os.Create(outputPath)
	if err != nil {
		return eris.Wrap(err, "export: create json file")
	}
	defer f.Close() //nolint:errcheck

	if records == nil {
		records = []store.StoredRecord{}
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return eris.Wrap(err, "export: encode json")
	}
	return nil
}
