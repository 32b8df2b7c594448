// Package scraper defines the capability contract every review source
// implements, plus the shared search-then-scrape composition.
package scraper

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"reviewminer/internal/bootstrap/logging"
	"reviewminer/internal/domain/review"
	"reviewminer/internal/errs"
)

// ErrFatal marks total source failures (cannot authenticate, host
// unreachable). Adapters wrap such errors with it; anything else is an
// item-level failure that gets skipped.
var ErrFatal = errors.New("source unavailable")

// RatingFilter is an inclusive star-rating range. The zero value
// accepts everything; ratingless reviews always pass.
type RatingFilter struct {
	Min int
	Max int
}

func (f RatingFilter) Accepts(rating *int) bool {
	if rating == nil {
		return true
	}
	if f.Min > 0 && *rating < f.Min {
		return false
	}
	if f.Max > 0 && *rating > f.Max {
		return false
	}
	return true
}

// RawReview is one review as a source yields it, before normalization.
type RawReview struct {
	SourceURL    string
	ProductTitle string
	ProductURL   string
	Author       string
	Rating       *int
	Text         string
	Date         string
}

// Scraper is the uniform contract over the structurally different
// sources. Search yields candidate item identifiers (product URLs, or
// thread references for Reddit); ScrapeReviews fetches one item.
type Scraper interface {
	Source() review.Source
	Search(ctx context.Context, query string, maxResults int) ([]string, error)
	ScrapeReviews(ctx context.Context, item string, maxReviews int, filter RatingFilter) ([]RawReview, error)
}

type SearchOptions struct {
	Query                string
	MaxProducts          int
	MaxReviewsPerProduct int
	Rating               RatingFilter
	// Concurrency bounds in-flight item scrapes; <=1 means sequential.
	Concurrency int
	// Subreddits narrows community-backed sources to these communities
	// for this run only; sources without communities ignore it.
	Subreddits []string
}

// SubredditScoper is implemented by adapters whose search space is a
// set of communities rather than a product catalog. WithSubreddits
// returns a scraper scoped to the given communities; the receiver is
// left untouched.
type SubredditScoper interface {
	WithSubreddits(subreddits []string) Scraper
}

// ScrapeFromSearch composes Search with per-item ScrapeReviews so
// adapters don't reimplement it. onItem receives each item's reviews
// as they arrive; returning an error from it halts the iteration and
// is propagated (this is the orchestrator's cancellation hook).
//
// Item-level scrape failures are logged and skipped; only ErrFatal
// aborts the whole run.
func ScrapeFromSearch(ctx context.Context, s Scraper, opts SearchOptions, onItem func(item string, reviews []RawReview) error) error {
	if len(opts.Subreddits) > 0 {
		if scoped, ok := s.(SubredditScoper); ok {
			s = scoped.WithSubreddits(opts.Subreddits)
		}
	}

	items, err := s.Search(ctx, opts.Query, opts.MaxProducts)
	if err != nil {
		return errs.Wrapf(err, "search %s", s.Source())
	}
	if opts.MaxProducts > 0 && len(items) > opts.MaxProducts {
		items = items[:opts.MaxProducts]
	}

	if opts.Concurrency <= 1 {
		return scrapeSequential(ctx, s, items, opts, onItem)
	}
	return scrapeConcurrent(ctx, s, items, opts, onItem)
}

func scrapeSequential(ctx context.Context, s Scraper, items []string, opts SearchOptions, onItem func(string, []RawReview) error) error {
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}

		reviews, err := s.ScrapeReviews(ctx, item, opts.MaxReviewsPerProduct, opts.Rating)
		if err != nil {
			if errors.Is(err, ErrFatal) {
				return err
			}
			logging.Warn(ctx, "item scrape failed, skipping",
				slog.String("source", string(s.Source())),
				slog.String("item", item),
				slog.Any("err", errs.Loggable(err)))
			continue
		}

		if err := onItem(item, reviews); err != nil {
			return err
		}
	}
	return nil
}

func scrapeConcurrent(ctx context.Context, s Scraper, items []string, opts SearchOptions, onItem func(string, []RawReview) error) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type itemResult struct {
		item    string
		reviews []RawReview
		err     error
	}

	workers := opts.Concurrency
	if workers > len(items) {
		workers = len(items)
	}

	itemCh := make(chan string)
	resultCh := make(chan itemResult)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range itemCh {
				reviews, err := s.ScrapeReviews(runCtx, item, opts.MaxReviewsPerProduct, opts.Rating)
				select {
				case resultCh <- itemResult{item: item, reviews: reviews, err: err}:
				case <-runCtx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(itemCh)
		for _, item := range items {
			select {
			case itemCh <- item:
			case <-runCtx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	var halt error
	for res := range resultCh {
		if halt != nil {
			continue // drain remaining workers
		}
		if res.err != nil {
			if errors.Is(res.err, ErrFatal) {
				halt = res.err
				cancel()
				continue
			}
			logging.Warn(ctx, "item scrape failed, skipping",
				slog.String("source", string(s.Source())),
				slog.String("item", res.item),
				slog.Any("err", errs.Loggable(res.err)))
			continue
		}
		if err := onItem(res.item, res.reviews); err != nil {
			halt = err
			cancel()
		}
	}
	if halt != nil {
		return halt
	}
	return ctx.Err()
}
