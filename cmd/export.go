package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sustain-group/esg-cli/internal/export"
)

var exportFormat string

var exportCmd = &cobra.Command{
	Use:   "export <output-file>",
	Short: "Export all extracted records to xlsx, csv, or json",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		outputPath := args[0]

		format := exportFormat
		if format == "" {
			format = strings.TrimPrefix(filepath.Ext(outputPath), ".")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		records, err := st.ListRecords(ctx)
		if err != nil {
			return err
		}

		switch format {
		case "xlsx":
			err = export.WriteXLSX(records, outputPath)
		case "csv":
			err = export.WriteCSV(records, outputPath)
		case "json":
			err = export.WriteJSON(records, outputPath)
		default:
			return eris.Errorf("unsupported export format: %s", format)
		}
		if err != nil {
			return err
		}

		fmt.Printf("exported %d records to %s\n", len(records), outputPath)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "", "output format (default from file extension)")
	rootCmd.AddCommand(exportCmd)
}
