package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"reviewminer/internal/bootstrap"
	"reviewminer/internal/bootstrap/logging"
	"reviewminer/internal/domain/review"
	"reviewminer/internal/errs"
	"reviewminer/internal/scraper"
	"reviewminer/internal/usecase/ingest"
)

var (
	scrapeSource      string
	scrapeQuery       string
	scrapeMaxProducts int
	scrapeMaxReviews  int
	scrapeMinRating   int
	scrapeMaxRating   int
	scrapeConcurrency int
	scrapeSubreddits  []string
)

type scrapeDeps struct {
	fx.In

	Orchestrator *ingest.Orchestrator
	Scrapers     *scraper.Registry
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape reviews from one source for a search query",
	RunE: withApp(func(cmd *cobra.Command, _ []string, app *bootstrap.App, deps scrapeDeps) error {
		ctx := cmd.Context()

		source, err := review.ParseSource(scrapeSource)
		if err != nil {
			return err
		}
		s, err := deps.Scrapers.Get(source)
		if err != nil {
			return err
		}

		opts := ingest.Options{
			Query:                scrapeQuery,
			MaxProducts:          scrapeMaxProducts,
			MaxReviewsPerProduct: scrapeMaxReviews,
			Rating:               scraper.RatingFilter{Min: scrapeMinRating, Max: scrapeMaxRating},
			Concurrency:          scrapeConcurrency,
			Subreddits:           scrapeSubreddits,
		}
		if opts.MaxProducts <= 0 {
			opts.MaxProducts = app.Config.Scraping.DefaultMaxProducts
		}
		if opts.MaxReviewsPerProduct <= 0 {
			opts.MaxReviewsPerProduct = app.Config.Scraping.DefaultMaxReviews
		}
		if opts.Concurrency <= 0 {
			opts.Concurrency = app.Config.Scraping.Concurrency
		}

		job, err := deps.Orchestrator.Run(ctx, s, opts)
		if err != nil {
			logging.Error(ctx, "scrape run failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "run scrape")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "job %d %s: %d reviews stored\n",
			job.ID, job.Status, job.ReviewsFound); err != nil {
			return errs.Wrap(err, "write scrape output")
		}
		if job.ErrorMessage != "" {
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "error: %s\n", job.ErrorMessage); err != nil {
				return errs.Wrap(err, "write scrape output")
			}
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(scrapeCmd)

	scrapeCmd.Flags().StringVar(&scrapeSource, "source", "", "Source to scrape (amazon, goodreads, reddit, librarything)")
	scrapeCmd.Flags().StringVar(&scrapeQuery, "query", "", "Search query (book title, topic)")
	scrapeCmd.Flags().IntVar(&scrapeMaxProducts, "max-products", 0, "Maximum products/threads to visit (0 = config default)")
	scrapeCmd.Flags().IntVar(&scrapeMaxReviews, "max-reviews", 0, "Maximum reviews per product (0 = config default)")
	scrapeCmd.Flags().IntVar(&scrapeMinRating, "min-rating", 0, "Lowest star rating to keep (0 = no bound)")
	scrapeCmd.Flags().IntVar(&scrapeMaxRating, "max-rating", 0, "Highest star rating to keep (0 = no bound)")
	scrapeCmd.Flags().IntVar(&scrapeConcurrency, "concurrency", 0, "Concurrent product scrapes (0 = config default)")
	scrapeCmd.Flags().StringSliceVar(&scrapeSubreddits, "subreddits", nil, "Subreddits to search for this job (reddit only, default from config)")
	_ = scrapeCmd.MarkFlagRequired("source")
	_ = scrapeCmd.MarkFlagRequired("query")
}
