package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sustain-group/esg-cli/internal/batchjob"
	"github.com/sustain-group/esg-cli/internal/loader"
	"github.com/sustain-group/esg-cli/internal/model"
	"github.com/sustain-group/esg-cli/internal/store"
	anthropicpkg "github.com/sustain-group/esg-cli/pkg/anthropic"
)

var (
	batchPrimeCache  bool
	batchResultsWait bool
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Submit and track grouped batch extractions",
}

var batchSubmitCmd = &cobra.Command{
	Use:   "submit <sources.csv>",
	Short: "Submit PDF source records as one upstream batch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("batch"); err != nil {
			return err
		}

		records, err := loader.LoadCSV(args[0])
		if err != nil {
			return eris.Wrap(err, "load sources")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		result, err := newCoordinator(st).Submit(ctx, records)
		if result != nil && len(result.Skipped) > 0 {
			ids := make([]string, 0, len(result.Skipped))
			for id := range result.Skipped {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			for _, id := range ids {
				fmt.Printf("skipped %s: %s\n", id, result.Skipped[id])
			}
		}
		if err != nil {
			return err
		}

		fmt.Printf("batch %s submitted with %d members\n", result.Job.JobID, len(result.Submitted))
		return nil
	},
}

var batchStatusCmd = &cobra.Command{
	Use:   "status [job-id]",
	Short: "Check one batch job, or list all known jobs",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if len(args) == 0 {
			jobs, err := st.ListBatchJobs(ctx, "")
			if err != nil {
				return err
			}
			if len(jobs) == 0 {
				fmt.Println("no batch jobs recorded")
				return nil
			}
			for _, job := range jobs {
				fmt.Printf("%s  %s  %d members  age %s\n",
					job.JobID, job.State, len(job.MemberIDs), job.Age(time.Now().UTC()).Round(time.Minute))
			}
			return nil
		}

		report, err := newCoordinator(st).CheckStatus(ctx, args[0])
		if err != nil {
			return err
		}

		counts := report.Upstream.RequestCounts
		fmt.Printf("job %s: %s (processing %d, succeeded %d, errored %d)\n",
			report.Job.JobID, report.Job.State, counts.Processing, counts.Succeeded, counts.Errored)
		if report.NearExpiry {
			fmt.Printf("warning: job is %s old; results expire %s after creation\n",
				report.Job.Age(time.Now().UTC()).Round(time.Minute), model.BatchJobTTL)
		}
		return nil
	},
}

var batchResultsCmd = &cobra.Command{
	Use:   "results <job-id> <sources.csv>",
	Short: "Collect a finished batch into terminal records",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		jobID := args[0]

		if err := cfg.Validate("batch"); err != nil {
			return err
		}

		records, err := loader.LoadCSV(args[1])
		if err != nil {
			return eris.Wrap(err, "load sources")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if batchResultsWait {
			client := anthropicpkg.NewClient(cfg.Anthropic.Key)
			if _, err := anthropicpkg.PollBatch(ctx, client, jobID); err != nil {
				return err
			}
		}

		summary, err := newCoordinator(st).ProcessResults(ctx, jobID, records)
		if err != nil {
			return err
		}

		fmt.Printf("batch %s processed: %d completed, %d failed\n", jobID, summary.Completed, summary.Failed)
		return nil
	},
}

func newCoordinator(st store.Store) *batchjob.Coordinator {
	return batchjob.New(
		anthropicpkg.NewClient(cfg.Anthropic.Key),
		st,
		batchjob.Config{
			Model:      cfg.Anthropic.Model,
			MaxTokens:  cfg.Anthropic.MaxTokens,
			PrimeCache: batchPrimeCache || cfg.Batch.PrimeCache,
		},
	)
}

func init() {
	batchSubmitCmd.Flags().BoolVar(&batchPrimeCache, "prime-cache", false, "warm the prompt cache before submitting")
	batchResultsCmd.Flags().BoolVar(&batchResultsWait, "wait", false, "poll until the job ends before collecting")
	batchCmd.AddCommand(batchSubmitCmd, batchStatusCmd, batchResultsCmd)
	rootCmd.AddCommand(batchCmd)
}
