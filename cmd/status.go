package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sustain-group/esg-cli/internal/model"
	"github.com/sustain-group/esg-cli/internal/store"
)

var (
	statusStage  string
	statusStatus string
	statusLimit  int
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "List per-record stage statuses",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		statuses, err := st.ListStatuses(ctx, store.StatusFilter{
			Stage:  model.Stage(statusStage),
			Status: model.Status(statusStatus),
			Limit:  statusLimit,
		})
		if err != nil {
			return err
		}
		if len(statuses) == 0 {
			fmt.Println("no matching statuses")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "RECORD\tSTAGE\tSTATUS\tMESSAGE")
		for _, s := range statuses {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.RecordID, s.Stage, s.Status, s.Message)
		}
		return w.Flush()
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusStage, "stage", "", "filter by stage (download, extraction)")
	statusCmd.Flags().StringVar(&statusStatus, "status", "", "filter by status (pending, in_progress, complete, failed, skipped)")
	statusCmd.Flags().IntVar(&statusLimit, "limit", 0, "maximum rows to list")
	rootCmd.AddCommand(statusCmd)
}
