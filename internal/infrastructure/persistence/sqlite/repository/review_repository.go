package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"reviewminer/internal/domain/review"
	"reviewminer/internal/errs"
	"reviewminer/internal/infrastructure/persistence/sqlite/model"
	"reviewminer/internal/ports"
)

type ReviewRepository struct {
	db *gorm.DB
}

func NewReviewRepository(db *gorm.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// InsertReview is the compare-and-insert primitive for the dedup key:
// a conflicting insert is a no-op and resolves to the existing row's
// id, so re-running a scrape never duplicates data or errors.
func (r *ReviewRepository) InsertReview(ctx context.Context, candidate review.Review) (uint64, bool, error) {
	if strings.TrimSpace(candidate.ReviewText) == "" {
		return 0, false, errors.New("review text is required")
	}

	row := model.Review{
		Source:       string(candidate.Source),
		SourceURL:    candidate.SourceURL,
		ProductTitle: candidate.ProductTitle,
		ProductURL:   candidate.ProductURL,
		Author:       candidate.Author,
		Rating:       candidate.Rating,
		ReviewText:   candidate.ReviewText,
		ReviewDate:   candidate.ReviewDate,
		ScrapedAt:    now(),
	}

	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "source"}, {Name: "source_url"}, {Name: "review_text"}},
		DoNothing: true,
	}).Create(&row)
	if result.Error != nil {
		return 0, false, errs.Wrap(result.Error, "insert review")
	}
	if result.RowsAffected > 0 {
		return row.ID, true, nil
	}

	var existing model.Review
	if err := r.db.WithContext(ctx).
		Where("source = ? AND source_url = ? AND review_text = ?",
			row.Source, row.SourceURL, row.ReviewText).
		Take(&existing).Error; err != nil {
		return 0, false, errs.Wrap(err, "load existing review")
	}
	return existing.ID, false, nil
}

func (r *ReviewRepository) GetReview(ctx context.Context, id uint64) (review.Review, error) {
	var row model.Review
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return review.Review{}, ports.ErrReviewNotFound
		}
		return review.Review{}, errs.Wrap(err, "query review")
	}
	return mapReview(row), nil
}

func (r *ReviewRepository) ListUnprocessed(ctx context.Context, limit int) ([]review.Review, error) {
	query := r.db.WithContext(ctx).Model(&model.Review{}).
		Where("processed = ?", false).
		Order("id asc")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []model.Review
	if err := query.Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query unprocessed reviews")
	}
	return mapReviews(rows), nil
}

func (r *ReviewRepository) MarkProcessed(ctx context.Context, ids []uint64) error {
	if len(ids) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Review{}).
			Where("id IN ?", ids).
			Update("processed", true).Error; err != nil {
			return errs.Wrap(err, "mark reviews processed")
		}
		return nil
	})
}

func (r *ReviewRepository) InsertPainPoints(ctx context.Context, points []review.PainPoint) error {
	if len(points) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Verify every referenced review exists before writing
		// anything; the batch is all-or-nothing.
		distinct := make(map[uint64]struct{}, len(points))
		for _, p := range points {
			distinct[p.ReviewID] = struct{}{}
		}
		ids := make([]uint64, 0, len(distinct))
		for id := range distinct {
			ids = append(ids, id)
		}

		var count int64
		if err := tx.Model(&model.Review{}).Where("id IN ?", ids).Count(&count).Error; err != nil {
			return errs.Wrap(err, "count referenced reviews")
		}
		if count != int64(len(ids)) {
			return ports.ErrOrphanedPainPoint
		}

		stamp := now()
		rows := make([]model.PainPoint, 0, len(points))
		for _, p := range points {
			rows = append(rows, model.PainPoint{
				ReviewID:           p.ReviewID,
				Category:           p.Category,
				VerbatimQuote:      p.VerbatimQuote,
				EmotionalIntensity: string(p.EmotionalIntensity),
				ImpliedNeed:        p.ImpliedNeed,
				ExtractedAt:        stamp,
			})
		}
		if err := tx.Omit(clause.Associations).Create(&rows).Error; err != nil {
			return errs.Wrap(err, "insert pain points")
		}
		return nil
	})
}

func (r *ReviewRepository) QueryReviews(ctx context.Context, filter ports.ReviewFilter) ([]review.Review, error) {
	query := r.db.WithContext(ctx).Model(&model.Review{})
	if filter.Source != "" {
		query = query.Where("source = ?", string(filter.Source))
	}
	if filter.Processed != nil {
		query = query.Where("processed = ?", *filter.Processed)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		query = query.Where("review_text LIKE ?", "%"+search+"%")
	}
	query = query.Order("id asc")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var rows []model.Review
	if err := query.Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query reviews")
	}
	return mapReviews(rows), nil
}

func (r *ReviewRepository) QueryPainPoints(ctx context.Context, filter ports.PainPointFilter) ([]review.PainPoint, error) {
	query := r.db.WithContext(ctx).Model(&model.PainPoint{})
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.Intensity != "" {
		query = query.Where("emotional_intensity = ?", string(filter.Intensity))
	}
	if filter.ReviewID != 0 {
		query = query.Where("review_id = ?", filter.ReviewID)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		query = query.Where("verbatim_quote LIKE ?", "%"+search+"%")
	}
	query = query.Order("id asc")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var rows []model.PainPoint
	if err := query.Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query pain points")
	}
	return mapPainPoints(rows), nil
}

func (r *ReviewRepository) DeleteReview(ctx context.Context, id uint64) error {
	return r.DeleteReviews(ctx, []uint64{id})
}

func (r *ReviewRepository) DeleteReviews(ctx context.Context, ids []uint64) error {
	if len(ids) == 0 {
		return nil
	}

	// Cascade is done in the transaction rather than trusting the
	// driver's foreign_keys pragma state.
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("review_id IN ?", ids).Delete(&model.PainPoint{}).Error; err != nil {
			return errs.Wrap(err, "delete pain points of reviews")
		}
		if err := tx.Where("id IN ?", ids).Delete(&model.Review{}).Error; err != nil {
			return errs.Wrap(err, "delete reviews")
		}
		return nil
	})
}

func (r *ReviewRepository) GetReviewStats(ctx context.Context) (ports.ReviewStats, error) {
	stats := ports.ReviewStats{BySource: map[string]int64{}}

	db := r.db.WithContext(ctx)
	if err := db.Model(&model.Review{}).Count(&stats.TotalReviews).Error; err != nil {
		return ports.ReviewStats{}, errs.Wrap(err, "count reviews")
	}
	if err := db.Model(&model.Review{}).Where("processed = ?", true).Count(&stats.ProcessedCount).Error; err != nil {
		return ports.ReviewStats{}, errs.Wrap(err, "count processed reviews")
	}
	stats.UnprocessedCount = stats.TotalReviews - stats.ProcessedCount

	var groups []struct {
		Source string
		Count  int64
	}
	if err := db.Model(&model.Review{}).
		Select("source, count(*) as count").
		Group("source").
		Find(&groups).Error; err != nil {
		return ports.ReviewStats{}, errs.Wrap(err, "count reviews by source")
	}
	for _, g := range groups {
		stats.BySource[g.Source] = g.Count
	}
	return stats, nil
}

func (r *ReviewRepository) GetPainPointStats(ctx context.Context) (ports.PainPointStats, error) {
	stats := ports.PainPointStats{
		ByCategory:  map[string]int64{},
		ByIntensity: map[string]int64{},
	}

	db := r.db.WithContext(ctx)
	if err := db.Model(&model.PainPoint{}).Count(&stats.TotalPainPoints).Error; err != nil {
		return ports.PainPointStats{}, errs.Wrap(err, "count pain points")
	}

	var categories []struct {
		Category string
		Count    int64
	}
	if err := db.Model(&model.PainPoint{}).
		Select("category, count(*) as count").
		Group("category").
		Find(&categories).Error; err != nil {
		return ports.PainPointStats{}, errs.Wrap(err, "count pain points by category")
	}
	for _, g := range categories {
		stats.ByCategory[g.Category] = g.Count
	}

	var intensities []struct {
		EmotionalIntensity string
		Count              int64
	}
	if err := db.Model(&model.PainPoint{}).
		Select("emotional_intensity, count(*) as count").
		Group("emotional_intensity").
		Find(&intensities).Error; err != nil {
		return ports.PainPointStats{}, errs.Wrap(err, "count pain points by intensity")
	}
	for _, g := range intensities {
		stats.ByIntensity[g.EmotionalIntensity] = g.Count
	}
	return stats, nil
}

func (r *ReviewRepository) RecentPainPoints(ctx context.Context, limit int) ([]review.PainPoint, error) {
	query := r.db.WithContext(ctx).Model(&model.PainPoint{}).Order("id desc")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []model.PainPoint
	if err := query.Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query recent pain points")
	}
	return mapPainPoints(rows), nil
}

func (r *ReviewRepository) ExportRows(ctx context.Context, category string) ([]ports.ExportRow, error) {
	query := r.db.WithContext(ctx).
		Table("pain_points").
		Select(`pain_points.id, pain_points.review_id, pain_points.category,
			pain_points.verbatim_quote, pain_points.emotional_intensity,
			pain_points.implied_need, pain_points.extracted_at,
			reviews.source, reviews.product_title, reviews.rating, reviews.review_text`).
		Joins("JOIN reviews ON reviews.id = pain_points.review_id").
		Order("pain_points.category asc, pain_points.id asc")
	if category != "" {
		query = query.Where("pain_points.category = ?", category)
	}

	var flat []struct {
		ID                 uint64
		ReviewID           uint64
		Category           string
		VerbatimQuote      string
		EmotionalIntensity string
		ImpliedNeed        string
		ExtractedAt        string
		Source             string
		ProductTitle       string
		Rating             *int
		ReviewText         string
	}
	if err := query.Find(&flat).Error; err != nil {
		return nil, errs.Wrap(err, "query export rows")
	}

	rows := make([]ports.ExportRow, 0, len(flat))
	for _, f := range flat {
		rows = append(rows, ports.ExportRow{
			PainPoint: review.PainPoint{
				ID:                 f.ID,
				ReviewID:           f.ReviewID,
				Category:           f.Category,
				VerbatimQuote:      f.VerbatimQuote,
				EmotionalIntensity: review.EmotionalIntensity(f.EmotionalIntensity),
				ImpliedNeed:        f.ImpliedNeed,
				ExtractedAt:        f.ExtractedAt,
			},
			Source:       review.Source(f.Source),
			ProductTitle: f.ProductTitle,
			Rating:       f.Rating,
			ReviewText:   f.ReviewText,
		})
	}
	return rows, nil
}

func (r *ReviewRepository) ResetAll(ctx context.Context) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&model.PainPoint{}).Error; err != nil {
			return errs.Wrap(err, "delete all pain points")
		}
		if err := tx.Where("1 = 1").Delete(&model.Review{}).Error; err != nil {
			return errs.Wrap(err, "delete all reviews")
		}
		if err := tx.Where("1 = 1").Delete(&model.ScrapeJob{}).Error; err != nil {
			return errs.Wrap(err, "delete all scrape jobs")
		}
		return nil
	})
}

func mapReview(row model.Review) review.Review {
	return review.Review{
		ID:           row.ID,
		Source:       review.Source(row.Source),
		SourceURL:    row.SourceURL,
		ProductTitle: row.ProductTitle,
		ProductURL:   row.ProductURL,
		Author:       row.Author,
		Rating:       row.Rating,
		ReviewText:   row.ReviewText,
		ReviewDate:   row.ReviewDate,
		ScrapedAt:    row.ScrapedAt,
		Processed:    row.Processed,
	}
}

func mapReviews(rows []model.Review) []review.Review {
	items := make([]review.Review, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapReview(row))
	}
	return items
}

func mapPainPoints(rows []model.PainPoint) []review.PainPoint {
	items := make([]review.PainPoint, 0, len(rows))
	for _, row := range rows {
		items = append(items, review.PainPoint{
			ID:                 row.ID,
			ReviewID:           row.ReviewID,
			Category:           row.Category,
			VerbatimQuote:      row.VerbatimQuote,
			EmotionalIntensity: review.EmotionalIntensity(row.EmotionalIntensity),
			ImpliedNeed:        row.ImpliedNeed,
			ExtractedAt:        row.ExtractedAt,
		})
	}
	return items
}
