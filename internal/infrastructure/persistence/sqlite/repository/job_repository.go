package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"reviewminer/internal/domain/review"
	"reviewminer/internal/errs"
	"reviewminer/internal/infrastructure/persistence/sqlite/model"
	"reviewminer/internal/ports"
)

type JobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) CreateJob(ctx context.Context, source review.Source, query string) (review.ScrapeJob, error) {
	row := model.ScrapeJob{
		Source:    string(source),
		Query:     query,
		Status:    string(review.JobPending),
		CreatedAt: now(),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return review.ScrapeJob{}, errs.Wrap(err, "insert scrape job")
	}
	return mapJob(row), nil
}

func (r *JobRepository) GetJob(ctx context.Context, id uint64) (review.ScrapeJob, error) {
	var row model.ScrapeJob
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return review.ScrapeJob{}, ports.ErrJobNotFound
		}
		return review.ScrapeJob{}, errs.Wrap(err, "query scrape job")
	}
	return mapJob(row), nil
}

func (r *JobRepository) ListJobs(ctx context.Context, limit int) ([]review.ScrapeJob, error) {
	query := r.db.WithContext(ctx).Model(&model.ScrapeJob{}).Order("id desc")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []model.ScrapeJob
	if err := query.Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query scrape jobs")
	}

	jobs := make([]review.ScrapeJob, 0, len(rows))
	for _, row := range rows {
		jobs = append(jobs, mapJob(row))
	}
	return jobs, nil
}

// UpdateJobStatus enforces the monotonic state machine inside one
// transaction: the current status is re-read and checked so a racing
// writer cannot regress a terminal job.
func (r *JobRepository) UpdateJobStatus(ctx context.Context, id uint64, status review.JobStatus, errorMessage string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row model.ScrapeJob
		if err := tx.Where("id = ?", id).Take(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ports.ErrJobNotFound
			}
			return errs.Wrap(err, "query scrape job")
		}

		current := review.JobStatus(row.Status)
		if !current.CanTransitionTo(status) {
			return errs.Wrapf(ports.ErrInvalidJobTransition, "%s -> %s", current, status)
		}

		updates := map[string]any{"status": string(status)}
		if status == review.JobRunning {
			updates["started_at"] = now()
		}
		if status.Terminal() {
			updates["completed_at"] = now()
		}
		if errorMessage != "" {
			updates["error_message"] = errorMessage
		}

		if err := tx.Model(&model.ScrapeJob{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return errs.Wrap(err, "update scrape job status")
		}
		return nil
	})
}

func (r *JobRepository) SetReviewsFound(ctx context.Context, id uint64, count int) error {
	if err := r.db.WithContext(ctx).Model(&model.ScrapeJob{}).
		Where("id = ?", id).
		Update("reviews_found", count).Error; err != nil {
		return errs.Wrap(err, "update reviews_found")
	}
	return nil
}

func (r *JobRepository) RequestCancel(ctx context.Context, id uint64) error {
	result := r.db.WithContext(ctx).Model(&model.ScrapeJob{}).
		Where("id = ?", id).
		Update("cancel_requested", true)
	if result.Error != nil {
		return errs.Wrap(result.Error, "request job cancel")
	}
	if result.RowsAffected == 0 {
		return ports.ErrJobNotFound
	}
	return nil
}

func (r *JobRepository) CancelRequested(ctx context.Context, id uint64) (bool, error) {
	var row model.ScrapeJob
	if err := r.db.WithContext(ctx).Select("cancel_requested").Where("id = ?", id).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, ports.ErrJobNotFound
		}
		return false, errs.Wrap(err, "query cancel flag")
	}
	return row.CancelRequested, nil
}

func mapJob(row model.ScrapeJob) review.ScrapeJob {
	return review.ScrapeJob{
		ID:           row.ID,
		Source:       review.Source(row.Source),
		Query:        row.Query,
		Status:       review.JobStatus(row.Status),
		ReviewsFound: row.ReviewsFound,
		StartedAt:    row.StartedAt,
		CompletedAt:  row.CompletedAt,
		ErrorMessage: row.ErrorMessage,
	}
}
