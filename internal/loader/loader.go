// Package loader reads source record lists from CSV files.
package loader

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sustain-group/esg-cli/internal/model"
)

// columnAliases maps canonical column names to accepted header spellings.
// Matching is case-insensitive and ignores surrounding whitespace.
var columnAliases = map[string][]string{
	"id":            {"id", "record_id", "record id"},
	"name":          {"name", "company", "company_name", "company name"},
	"source_url":    {"source_url", "source url", "url", "report_url", "report url", "link"},
	"industry":      {"industry", "sector", "branche"},
	"update":        {"update", "process", "enabled"},
	"custom_prompt": {"custom_prompt", "custom prompt", "prompt"},
}

// LoadCSV reads source records from a CSV file. The first row is the header;
// column order is free and unknown columns are ignored. Rows without a source
// URL are kept (they surface as skipped downstream), rows with a duplicate ID
// are dropped with a warning.
func LoadCSV(path string) ([]model.SourceRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "loader: open csv %s", path)
	}
	defer f.Close() //nolint:errcheck

	records, err := Parse(f)
	if err != nil {
		return nil, err
	}
	zap.L().Info("loaded source records",
		zap.Int("count", len(records)),
		zap.String("csv", path),
	)
	return records, nil
}

// Parse reads source records from CSV content.
func Parse(r io.Reader) ([]model.SourceRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // allow variable fields

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "loader: read csv")
	}
	if len(rows) < 2 {
		return nil, nil // header only or empty
	}

	cols := mapHeader(rows[0])
	if _, ok := cols["name"]; !ok {
		return nil, eris.New("loader: csv has no name column")
	}

	hasUpdateCol := false
	if _, ok := cols["update"]; ok {
		hasUpdateCol = true
	}

	seen := make(map[string]struct{})
	var out []model.SourceRecord

	for i, row := range rows[1:] {
		rec := model.SourceRecord{
			ID:           field(cols, row, "id"),
			Name:         field(cols, row, "name"),
			SourceURL:    field(cols, row, "source_url"),
			Industry:     field(cols, row, "industry"),
			CustomPrompt: field(cols, row, "custom_prompt"),
		}
		if rec.ID == "" {
			rec.ID = fmt.Sprintf("rec_%d", i+1)
		}

		// Records opt in to processing via the update column. A list
		// without one processes every row.
		if hasUpdateCol {
			rec.Update = parseBool(field(cols, row, "update"))
		} else {
			rec.Update = true
		}

		if _, dup := seen[rec.ID]; dup {
			zap.L().Warn("duplicate record id in csv, dropping row",
				zap.String("id", rec.ID),
				zap.Int("row", i+2),
			)
			continue
		}
		seen[rec.ID] = struct{}{}
		out = append(out, rec)
	}
	return out, nil
}

// mapHeader resolves header cells to canonical column names.
func mapHeader(header []string) map[string]int {
	cols := make(map[string]int)
	for i, h := range header {
		lower := strings.ToLower(strings.TrimSpace(h))
		for canonical, aliases := range columnAliases {
			for _, a := range aliases {
				if lower == a {
					if _, taken := cols[canonical]; !taken {
						cols[canonical] = i
					}
				}
			}
		}
	}
	return cols
}

func field(cols map[string]int, row []string, name string) string {
	idx, ok := cols[name]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "y", "x":
		return true
	}
	return false
}
