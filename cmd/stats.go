package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"reviewminer/internal/bootstrap"
	"reviewminer/internal/errs"
	"reviewminer/internal/ports"
)

type statsDeps struct {
	fx.In

	Reviews ports.ReviewRepository
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show review and pain point totals",
	RunE: withApp(func(cmd *cobra.Command, _ []string, _ *bootstrap.App, deps statsDeps) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		reviewStats, err := deps.Reviews.GetReviewStats(ctx)
		if err != nil {
			return errs.Wrap(err, "load review stats")
		}
		painStats, err := deps.Reviews.GetPainPointStats(ctx)
		if err != nil {
			return errs.Wrap(err, "load pain point stats")
		}

		fmt.Fprintf(out, "reviews: %d total, %d processed, %d unprocessed\n",
			reviewStats.TotalReviews, reviewStats.ProcessedCount, reviewStats.UnprocessedCount)
		for _, source := range sortedKeys(reviewStats.BySource) {
			fmt.Fprintf(out, "  %-14s %d\n", source, reviewStats.BySource[source])
		}

		fmt.Fprintf(out, "pain points: %d total\n", painStats.TotalPainPoints)
		for _, category := range sortedKeys(painStats.ByCategory) {
			fmt.Fprintf(out, "  %-30s %d\n", category, painStats.ByCategory[category])
		}
		for _, intensity := range sortedKeys(painStats.ByIntensity) {
			fmt.Fprintf(out, "  intensity %-8s %d\n", intensity, painStats.ByIntensity[intensity])
		}
		return nil
	}),
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
