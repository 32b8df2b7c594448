package ports

import (
	"context"
	"errors"

	"reviewminer/internal/domain/review"
)

var (
	ErrReviewNotFound = errors.New("review not found")

	// ErrOrphanedPainPoint is returned when a pain-point insert
	// references a review id that does not exist. The whole call is
	// rejected so nothing is silently attached to the wrong review.
	ErrOrphanedPainPoint = errors.New("pain point references unknown review")
)

type ReviewFilter struct {
	Source    review.Source
	Processed *bool
	Search    string
	Limit     int
	Offset    int
}

type PainPointFilter struct {
	Category  string
	Intensity review.EmotionalIntensity
	ReviewID  uint64
	Search    string
	Limit     int
	Offset    int
}

type ReviewStats struct {
	TotalReviews     int64
	BySource         map[string]int64
	ProcessedCount   int64
	UnprocessedCount int64
}

type PainPointStats struct {
	TotalPainPoints int64
	ByCategory      map[string]int64
	ByIntensity     map[string]int64
}

// ExportRow joins a pain point with the review it came from, shaped
// for the export writers and the dashboard.
type ExportRow struct {
	PainPoint    review.PainPoint
	Source       review.Source
	ProductTitle string
	Rating       *int
	ReviewText   string
}

type ReviewRepository interface {
	// InsertReview attempts an insert. On a dedup-key collision it
	// returns the existing row's id with inserted=false and performs
	// no mutation.
	InsertReview(ctx context.Context, r review.Review) (id uint64, inserted bool, err error)
	GetReview(ctx context.Context, id uint64) (review.Review, error)

	// ListUnprocessed returns unprocessed reviews in insertion order,
	// up to limit (0 = no limit).
	ListUnprocessed(ctx context.Context, limit int) ([]review.Review, error)

	// MarkProcessed flips the processed flag for all ids in one
	// transaction; partial application is not possible.
	MarkProcessed(ctx context.Context, ids []uint64) error

	// InsertPainPoints bulk-inserts, failing the whole call with
	// ErrOrphanedPainPoint if any review id is unknown.
	InsertPainPoints(ctx context.Context, points []review.PainPoint) error

	QueryReviews(ctx context.Context, filter ReviewFilter) ([]review.Review, error)
	QueryPainPoints(ctx context.Context, filter PainPointFilter) ([]review.PainPoint, error)

	DeleteReview(ctx context.Context, id uint64) error
	DeleteReviews(ctx context.Context, ids []uint64) error

	GetReviewStats(ctx context.Context) (ReviewStats, error)
	GetPainPointStats(ctx context.Context) (PainPointStats, error)
	RecentPainPoints(ctx context.Context, limit int) ([]review.PainPoint, error)
	ExportRows(ctx context.Context, category string) ([]ExportRow, error)

	// ResetAll drops every stored row. Destructive, admin-only.
	ResetAll(ctx context.Context) error
}
