// Package ingest drives scraping runs: it owns the job lifecycle,
// persists reviews as they arrive and honors cancellation between
// items.
package ingest

import (
	"context"
	"errors"
	"log/slog"

	"reviewminer/internal/bootstrap/logging"
	"reviewminer/internal/domain/review"
	"reviewminer/internal/errs"
	"reviewminer/internal/ports"
	"reviewminer/internal/scraper"
)

const cancelledMessage = "cancelled by user"

// errCancelled halts the scrape loop from inside the onItem callback.
var errCancelled = errors.New("job cancel requested")

type Options struct {
	Query                string
	MaxProducts          int
	MaxReviewsPerProduct int
	Rating               scraper.RatingFilter
	Concurrency          int
	// Subreddits overrides the configured communities for this job;
	// empty keeps the adapter's default.
	Subreddits []string
}

// Orchestrator runs one scraper against one query under a tracked job.
type Orchestrator struct {
	reviews ports.ReviewRepository
	jobs    ports.JobRepository
	events  ports.JobEvents
}

func NewOrchestrator(reviews ports.ReviewRepository, jobs ports.JobRepository, events ports.JobEvents) *Orchestrator {
	return &Orchestrator{reviews: reviews, jobs: jobs, events: events}
}

// Prepare records the pending job, so callers that run the scrape in
// the background can hand the job id out first.
func (o *Orchestrator) Prepare(ctx context.Context, source review.Source, query string) (review.ScrapeJob, error) {
	job, err := o.jobs.CreateJob(ctx, source, query)
	if err != nil {
		return review.ScrapeJob{}, errs.Wrap(err, "create job")
	}
	o.publish(job.ID, source, review.JobPending, 0, "")
	return job, nil
}

// Run executes the full job lifecycle and returns the terminal job
// row. Scrape failures land in the job record, not in the returned
// error; the error is reserved for infrastructure faults (the store
// itself failing).
func (o *Orchestrator) Run(ctx context.Context, s scraper.Scraper, opts Options) (review.ScrapeJob, error) {
	job, err := o.Prepare(ctx, s.Source(), opts.Query)
	if err != nil {
		return review.ScrapeJob{}, err
	}
	return o.Execute(ctx, job, s, opts)
}

// Execute drives an already-prepared job to its terminal state.
func (o *Orchestrator) Execute(ctx context.Context, job review.ScrapeJob, s scraper.Scraper, opts Options) (review.ScrapeJob, error) {
	ctx = logging.WithAttrs(ctx,
		slog.Uint64("job_id", job.ID),
		slog.String("source", string(s.Source())),
		slog.String("query", opts.Query))

	if err := o.jobs.UpdateJobStatus(ctx, job.ID, review.JobRunning, ""); err != nil {
		return review.ScrapeJob{}, errs.Wrap(err, "start job")
	}
	o.publish(job.ID, s.Source(), review.JobRunning, 0, "")
	logging.Info(ctx, "scrape job started")

	inserted := 0
	var storeErr error
	onItem := func(item string, reviews []scraper.RawReview) error {
		for _, raw := range reviews {
			r := normalize(s.Source(), raw)
			if r.ReviewText == "" {
				continue
			}
			_, wasNew, err := o.reviews.InsertReview(ctx, r)
			if err != nil {
				storeErr = err
				return err
			}
			if wasNew {
				inserted++
			}
		}

		if err := o.jobs.SetReviewsFound(ctx, job.ID, inserted); err != nil {
			storeErr = err
			return err
		}
		logging.Info(ctx, "item scraped",
			slog.String("item", item),
			slog.Int("reviews_found", inserted))

		if err := ctx.Err(); err != nil {
			return errCancelled
		}
		cancelled, err := o.jobs.CancelRequested(ctx, job.ID)
		if err != nil {
			storeErr = err
			return err
		}
		if cancelled {
			return errCancelled
		}
		return nil
	}

	runErr := scraper.ScrapeFromSearch(ctx, s, scraper.SearchOptions{
		Query:                opts.Query,
		MaxProducts:          opts.MaxProducts,
		MaxReviewsPerProduct: opts.MaxReviewsPerProduct,
		Rating:               opts.Rating,
		Concurrency:          opts.Concurrency,
		Subreddits:           opts.Subreddits,
	}, onItem)

	switch {
	case storeErr != nil:
		// Persistence is down. Try to fail the job but surface the
		// original fault either way.
		_ = o.jobs.UpdateJobStatus(context.WithoutCancel(ctx), job.ID, review.JobFailed, storeErr.Error())
		o.publish(job.ID, s.Source(), review.JobFailed, inserted, storeErr.Error())
		return review.ScrapeJob{}, errs.Wrap(storeErr, "persist scrape results")

	case errors.Is(runErr, errCancelled) || errors.Is(runErr, context.Canceled):
		return o.finish(ctx, job.ID, s.Source(), review.JobFailed, inserted, cancelledMessage)

	case runErr != nil:
		logging.Error(ctx, "scrape job failed",
			slog.Int("reviews_found", inserted),
			slog.Any("err", errs.Loggable(runErr)))
		return o.finish(ctx, job.ID, s.Source(), review.JobFailed, inserted, runErr.Error())

	default:
		// Zero results is still a completed run.
		logging.Info(ctx, "scrape job completed", slog.Int("reviews_found", inserted))
		return o.finish(ctx, job.ID, s.Source(), review.JobCompleted, inserted, "")
	}
}

func (o *Orchestrator) finish(ctx context.Context, jobID uint64, source review.Source, status review.JobStatus, found int, message string) (review.ScrapeJob, error) {
	ctx = context.WithoutCancel(ctx)
	if err := o.jobs.UpdateJobStatus(ctx, jobID, status, message); err != nil {
		return review.ScrapeJob{}, errs.Wrap(err, "finish job")
	}
	o.publish(jobID, source, status, found, message)
	return o.jobs.GetJob(ctx, jobID)
}

func (o *Orchestrator) publish(jobID uint64, source review.Source, status review.JobStatus, found int, message string) {
	if o.events == nil {
		return
	}
	o.events.Publish(ports.JobEvent{
		JobID:        jobID,
		Source:       source,
		Status:       status,
		ReviewsFound: found,
		ErrorMessage: message,
	})
}
