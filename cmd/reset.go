package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sustain-group/esg-cli/internal/model"
)

var resetStage string

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Move failed records back to pending for the next run",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		n, err := st.ResetFailed(ctx, model.Stage(resetStage))
		if err != nil {
			return err
		}

		fmt.Printf("reset %d failed status rows to pending\n", n)
		return nil
	},
}

func init() {
	resetCmd.Flags().StringVar(&resetStage, "stage", "", "only reset one stage (download, extraction)")
	rootCmd.AddCommand(resetCmd)
}
