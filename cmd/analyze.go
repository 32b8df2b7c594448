package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"reviewminer/internal/bootstrap"
	"reviewminer/internal/bootstrap/logging"
	"reviewminer/internal/errs"
	"reviewminer/internal/ports"
	"reviewminer/internal/usecase/analysis"
)

var (
	analyzeBatchSize int
	analyzeLimit     int
)

type analyzeDeps struct {
	fx.In

	Reviews ports.ReviewRepository
	LLM     ports.ChatCompleter
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Extract pain points from unprocessed reviews",
	RunE: withApp(func(cmd *cobra.Command, _ []string, app *bootstrap.App, deps analyzeDeps) error {
		ctx := cmd.Context()

		cfg := app.Config.Analysis
		if analyzeBatchSize > 0 {
			cfg.BatchSize = analyzeBatchSize
		}
		engine := analysis.NewEngine(deps.Reviews, deps.LLM, cfg)

		result, err := engine.Run(ctx, analyzeLimit)
		if err != nil {
			logging.Error(ctx, "analysis run failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "run analysis")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(),
			"processed %d reviews, found %d pain points (%d batches ok, %d failed)\n",
			result.ReviewsProcessed, result.PainPointsFound,
			result.SuccessfulBatches, result.FailedBatches); err != nil {
			return errs.Wrap(err, "write analyze output")
		}
		for _, msg := range result.Errors {
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "batch error: %s\n", msg); err != nil {
				return errs.Wrap(err, "write analyze output")
			}
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().IntVar(&analyzeBatchSize, "batch-size", 0, "Reviews per LLM request (0 = config default)")
	analyzeCmd.Flags().IntVar(&analyzeLimit, "limit", 0, "Maximum reviews to process this run (0 = all)")
}
