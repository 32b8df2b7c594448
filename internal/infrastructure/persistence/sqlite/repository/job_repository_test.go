package repository

import (
	"context"
	"errors"
	"testing"

	"reviewminer/internal/domain/review"
	"reviewminer/internal/ports"
)

func setupJobRepository(t *testing.T) *JobRepository {
	t.Helper()
	return NewJobRepository(setupDB(t))
}

func TestJobLifecycle(t *testing.T) {
	repo := setupJobRepository(t)
	ctx := context.Background()

	job, err := repo.CreateJob(ctx, review.SourceGoodreads, "deep work")
	if err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}
	if job.Status != review.JobPending {
		t.Fatalf("new job status = %s", job.Status)
	}

	if err := repo.UpdateJobStatus(ctx, job.ID, review.JobRunning, ""); err != nil {
		t.Fatalf("pending -> running: %v", err)
	}
	got, err := repo.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if got.Status != review.JobRunning || got.StartedAt == "" {
		t.Fatalf("running job = %+v", got)
	}

	if err := repo.SetReviewsFound(ctx, job.ID, 7); err != nil {
		t.Fatalf("SetReviewsFound() error = %v", err)
	}

	if err := repo.UpdateJobStatus(ctx, job.ID, review.JobCompleted, ""); err != nil {
		t.Fatalf("running -> completed: %v", err)
	}
	got, err = repo.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if got.Status != review.JobCompleted || got.CompletedAt == "" || got.ReviewsFound != 7 {
		t.Fatalf("completed job = %+v", got)
	}
}

func TestJobStatusIsMonotonic(t *testing.T) {
	repo := setupJobRepository(t)
	ctx := context.Background()

	job, err := repo.CreateJob(ctx, review.SourceAmazon, "atomic habits")
	if err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}
	if err := repo.UpdateJobStatus(ctx, job.ID, review.JobRunning, ""); err != nil {
		t.Fatalf("pending -> running: %v", err)
	}
	if err := repo.UpdateJobStatus(ctx, job.ID, review.JobFailed, "host unreachable"); err != nil {
		t.Fatalf("running -> failed: %v", err)
	}

	err = repo.UpdateJobStatus(ctx, job.ID, review.JobRunning, "")
	if !errors.Is(err, ports.ErrInvalidJobTransition) {
		t.Fatalf("failed -> running error = %v, want ErrInvalidJobTransition", err)
	}

	got, err := repo.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if got.ErrorMessage != "host unreachable" {
		t.Fatalf("error message = %q", got.ErrorMessage)
	}
}

func TestJobCancelFlag(t *testing.T) {
	repo := setupJobRepository(t)
	ctx := context.Background()

	job, err := repo.CreateJob(ctx, review.SourceReddit, "deep work")
	if err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}

	requested, err := repo.CancelRequested(ctx, job.ID)
	if err != nil || requested {
		t.Fatalf("fresh job cancel = %v, %v", requested, err)
	}

	if err := repo.RequestCancel(ctx, job.ID); err != nil {
		t.Fatalf("RequestCancel() error = %v", err)
	}
	requested, err = repo.CancelRequested(ctx, job.ID)
	if err != nil || !requested {
		t.Fatalf("cancel flag = %v, %v", requested, err)
	}

	if err := repo.RequestCancel(ctx, job.ID+5); !errors.Is(err, ports.ErrJobNotFound) {
		t.Fatalf("cancel unknown job error = %v", err)
	}
}
