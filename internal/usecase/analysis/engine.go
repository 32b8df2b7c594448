package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"reviewminer/internal/bootstrap/config"
	"reviewminer/internal/bootstrap/logging"
	"reviewminer/internal/domain/review"
	"reviewminer/internal/errs"
	"reviewminer/internal/ports"
)

const userPromptPrefix = "Analyze these reviews and extract pain points:\n\n"

// RunResult tallies one analysis pass.
type RunResult struct {
	ReviewsProcessed  int      `json:"reviews_processed"`
	PainPointsFound   int      `json:"pain_points_found"`
	SuccessfulBatches int      `json:"successful_batches"`
	FailedBatches     int      `json:"failed_batches"`
	Errors            []string `json:"errors,omitempty"`
}

// Engine batches unprocessed reviews through the LLM. A batch that
// fails stays unprocessed and is picked up by the next run; a review
// the model stays silent about is still marked processed so it is
// never re-analyzed.
type Engine struct {
	repo              ports.ReviewRepository
	llm               ports.ChatCompleter
	batchSize         int
	requireQuoteMatch bool
}

func NewEngine(repo ports.ReviewRepository, llm ports.ChatCompleter, cfg config.AnalysisConfig) *Engine {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 20
	}
	return &Engine{
		repo:              repo,
		llm:               llm,
		batchSize:         batchSize,
		requireQuoteMatch: cfg.RequireQuoteMatch,
	}
}

// Run analyzes up to limit unprocessed reviews (0 = all). The snapshot
// is taken once up front so a batch that keeps failing cannot put the
// run into an endless loop.
func (e *Engine) Run(ctx context.Context, limit int) (RunResult, error) {
	var result RunResult

	reviews, err := e.repo.ListUnprocessed(ctx, limit)
	if err != nil {
		return result, errs.Wrap(err, "list unprocessed reviews")
	}
	if len(reviews) == 0 {
		logging.Info(ctx, "no unprocessed reviews")
		return result, nil
	}

	totalBatches := (len(reviews) + e.batchSize - 1) / e.batchSize
	logging.Info(ctx, "starting analysis",
		slog.Int("reviews", len(reviews)),
		slog.Int("batches", totalBatches))

	for start := 0; start < len(reviews); start += e.batchSize {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		end := start + e.batchSize
		if end > len(reviews) {
			end = len(reviews)
		}
		batch := reviews[start:end]
		batchNum := start/e.batchSize + 1

		points, err := e.analyzeBatch(ctx, batch)
		if err != nil {
			if errors.Is(err, ports.ErrLLMAuth) {
				return result, err
			}
			result.FailedBatches++
			result.Errors = append(result.Errors, fmt.Sprintf("batch %d: %v", batchNum, err))
			logging.Warn(ctx, "batch failed, reviews stay unprocessed",
				slog.Int("batch", batchNum),
				slog.Any("err", errs.Loggable(err)))
			continue
		}

		if len(points) > 0 {
			if err := e.repo.InsertPainPoints(ctx, points); err != nil {
				result.FailedBatches++
				result.Errors = append(result.Errors, fmt.Sprintf("batch %d: %v", batchNum, err))
				continue
			}
		}

		ids := make([]uint64, len(batch))
		for i, r := range batch {
			ids[i] = r.ID
		}
		if err := e.repo.MarkProcessed(ctx, ids); err != nil {
			return result, errs.Wrap(err, "mark processed")
		}

		result.SuccessfulBatches++
		result.ReviewsProcessed += len(batch)
		result.PainPointsFound += len(points)
		logging.Debug(ctx, "batch done",
			slog.Int("batch", batchNum),
			slog.Int("pain_points", len(points)))
	}

	logging.Info(ctx, "analysis finished",
		slog.Int("reviews_processed", result.ReviewsProcessed),
		slog.Int("pain_points", result.PainPointsFound),
		slog.Int("failed_batches", result.FailedBatches))
	return result, nil
}

func (e *Engine) analyzeBatch(ctx context.Context, batch []review.Review) ([]review.PainPoint, error) {
	response, err := e.llm.Complete(ctx, painPointExtractor, userPromptPrefix+formatBatch(batch))
	if err != nil {
		return nil, err
	}

	extracted, err := parsePainPoints(response)
	if err != nil {
		return nil, err
	}

	points := make([]review.PainPoint, 0, len(extracted))
	for _, item := range extracted {
		if item.ReviewNumber < 1 || item.ReviewNumber > len(batch) {
			logging.Warn(ctx, "dropping pain point with out-of-range review number",
				slog.Int("review_number", item.ReviewNumber),
				slog.Int("batch_size", len(batch)))
			continue
		}

		quote := strings.TrimSpace(item.VerbatimQuote)
		if quote == "" {
			continue
		}

		src := batch[item.ReviewNumber-1]
		if e.requireQuoteMatch && !strings.Contains(src.ReviewText, quote) {
			logging.Warn(ctx, "dropping pain point with fabricated quote",
				slog.Uint64("review_id", src.ID))
			continue
		}

		category := strings.TrimSpace(item.PainPointCategory)
		if category == "" {
			category = "Unknown"
		}

		intensity, ok := review.NormalizeIntensity(item.EmotionalIntensity)
		if !ok {
			logging.Debug(ctx, "unrecognized intensity, defaulting to medium",
				slog.String("raw", item.EmotionalIntensity))
		}

		points = append(points, review.PainPoint{
			ReviewID:           src.ID,
			Category:           category,
			VerbatimQuote:      quote,
			EmotionalIntensity: intensity,
			ImpliedNeed:        strings.TrimSpace(item.ImpliedNeed),
		})
	}
	return points, nil
}
