package ports

import (
	"context"
	"errors"

	"reviewminer/internal/domain/review"
)

var (
	ErrJobNotFound = errors.New("scrape job not found")

	// ErrInvalidJobTransition guards the monotonic job state machine:
	// terminal jobs never go back to running.
	ErrInvalidJobTransition = errors.New("invalid job status transition")
)

type JobRepository interface {
	// CreateJob records a new job in the pending state.
	CreateJob(ctx context.Context, source review.Source, query string) (review.ScrapeJob, error)
	GetJob(ctx context.Context, id uint64) (review.ScrapeJob, error)
	ListJobs(ctx context.Context, limit int) ([]review.ScrapeJob, error)

	// UpdateJobStatus applies a state-machine transition. Moving to
	// running stamps started_at; moving to a terminal state stamps
	// completed_at. Illegal transitions return ErrInvalidJobTransition.
	UpdateJobStatus(ctx context.Context, id uint64, status review.JobStatus, errorMessage string) error

	// SetReviewsFound persists the running counter so partially
	// successful jobs keep their progress.
	SetReviewsFound(ctx context.Context, id uint64, count int) error

	RequestCancel(ctx context.Context, id uint64) error
	CancelRequested(ctx context.Context, id uint64) (bool, error)
}
