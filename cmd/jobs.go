package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"reviewminer/internal/bootstrap"
	"reviewminer/internal/errs"
	"reviewminer/internal/ports"
)

var jobsListLimit int

type jobsDeps struct {
	fx.In

	Jobs ports.JobRepository
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect and cancel scrape jobs",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent scrape jobs",
	RunE: withApp(func(cmd *cobra.Command, _ []string, _ *bootstrap.App, deps jobsDeps) error {
		jobs, err := deps.Jobs.ListJobs(cmd.Context(), jobsListLimit)
		if err != nil {
			return errs.Wrap(err, "list jobs")
		}

		out := cmd.OutOrStdout()
		for _, job := range jobs {
			fmt.Fprintf(out, "%4d  %-12s  %-9s  %4d reviews  %q", job.ID, job.Source, job.Status, job.ReviewsFound, job.Query)
			if job.ErrorMessage != "" {
				fmt.Fprintf(out, "  (%s)", job.ErrorMessage)
			}
			fmt.Fprintln(out)
		}
		return nil
	}),
}

var jobsCancelCmd = &cobra.Command{
	Use:   "cancel <job-id>",
	Short: "Request cancellation of a running scrape job",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, _ *bootstrap.App, deps jobsDeps) error {
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("job id must be a positive integer, got %q", args[0])
		}

		if err := deps.Jobs.RequestCancel(cmd.Context(), id); err != nil {
			return errs.Wrapf(err, "cancel job %d", id)
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "cancellation requested for job %d\n", id); err != nil {
			return errs.Wrap(err, "write cancel output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsCancelCmd)

	jobsListCmd.Flags().IntVar(&jobsListLimit, "limit", 20, "Maximum jobs to show")
}
