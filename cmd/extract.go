package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sustain-group/esg-cli/internal/extractor"
	"github.com/sustain-group/esg-cli/internal/loader"
	anthropicpkg "github.com/sustain-group/esg-cli/pkg/anthropic"
)

var (
	extractConcurrency  int
	extractWithExtracts bool
)

var extractCmd = &cobra.Command{
	Use:   "extract <sources.csv>",
	Short: "Run extraction for every source record in a CSV",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("extract"); err != nil {
			return err
		}

		records, err := loader.LoadCSV(args[0])
		if err != nil {
			return eris.Wrap(err, "load sources")
		}
		if len(records) == 0 {
			return eris.New("no source records in input")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		concurrency := cfg.Extract.Concurrency
		if extractConcurrency > 0 {
			concurrency = extractConcurrency
		}

		ex := extractor.New(
			anthropicpkg.NewClient(cfg.Anthropic.Key),
			st,
			initWebExtractor(),
			extractor.Config{
				Model:             cfg.Anthropic.Model,
				MaxTokens:         cfg.Anthropic.MaxTokens,
				Concurrency:       concurrency,
				RequestsPerSecond: cfg.Extract.RequestsPerSecond,
				WithExtracts:      extractWithExtracts || cfg.Extract.WithExtracts,
			},
		)

		summary, err := ex.Run(ctx, records)
		if err != nil {
			return err
		}

		fmt.Printf("extraction finished: %d total, %d completed, %d failed, %d skipped\n",
			summary.Total, summary.Completed, summary.Failed, summary.Skipped)
		return nil
	},
}

func init() {
	extractCmd.Flags().IntVar(&extractConcurrency, "concurrency", 0, "parallel records (default from config)")
	extractCmd.Flags().BoolVar(&extractWithExtracts, "with-extracts", false, "fill extract explanations on placeholder criteria")
	rootCmd.AddCommand(extractCmd)
}
