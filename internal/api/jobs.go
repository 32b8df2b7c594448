package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"reviewminer/internal/bootstrap/logging"
	"reviewminer/internal/domain/review"
	"reviewminer/internal/errs"
	"reviewminer/internal/scraper"
	"reviewminer/internal/usecase/ingest"
)

type createJobRequest struct {
	Source               string   `json:"source"`
	Query                string   `json:"query"`
	MaxProducts          int      `json:"max_products"`
	MaxReviewsPerProduct int      `json:"max_reviews_per_product"`
	MinRating            int      `json:"min_rating"`
	MaxRating            int      `json:"max_rating"`
	Concurrency          int      `json:"concurrency"`
	Subreddits           []string `json:"subreddits"`
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.jobs.ListJobs(r.Context(), queryInt(r, "limit", defaultPageSize))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": toJobListJSON(jobs)})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	job, err := s.jobs.GetJob(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, toJobJSON(job))
}

// handleCreateJob records the job and answers 202; the scrape itself
// runs on the server's base context so it survives the request.
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, errors.New("query is required"))
		return
	}

	source, err := review.ParseSource(req.Source)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	src, err := s.scrapers.Get(source)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	opts := ingest.Options{
		Query:                req.Query,
		MaxProducts:          req.MaxProducts,
		MaxReviewsPerProduct: req.MaxReviewsPerProduct,
		Rating:               scraper.RatingFilter{Min: req.MinRating, Max: req.MaxRating},
		Concurrency:          req.Concurrency,
		Subreddits:           req.Subreddits,
	}
	if opts.MaxProducts <= 0 {
		opts.MaxProducts = s.cfg.Scraping.DefaultMaxProducts
	}
	if opts.MaxReviewsPerProduct <= 0 {
		opts.MaxReviewsPerProduct = s.cfg.Scraping.DefaultMaxReviews
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = s.cfg.Scraping.Concurrency
	}

	job, err := s.orch.Prepare(r.Context(), source, req.Query)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	go func() {
		if _, err := s.orch.Execute(s.baseCtx, job, src, opts); err != nil {
			logging.Error(s.baseCtx, "background scrape faulted",
				slog.Uint64("job_id", job.ID),
				slog.Any("err", errs.Loggable(err)))
		}
	}()

	writeJSON(w, http.StatusAccepted, toJobJSON(job))
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.jobs.RequestCancel(r.Context(), id); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"cancel_requested": id})
}
