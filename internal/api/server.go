// Package api exposes the dashboard contract over HTTP: reviews, pain
// points, jobs, stats, export/import and a websocket job-event stream.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"reviewminer/internal/bootstrap/config"
	"reviewminer/internal/ports"
	"reviewminer/internal/scraper"
	"reviewminer/internal/usecase/analysis"
	"reviewminer/internal/usecase/export"
	"reviewminer/internal/usecase/ingest"
)

type Server struct {
	cfg      config.Config
	reviews  ports.ReviewRepository
	jobs     ports.JobRepository
	events   ports.JobEvents
	scrapers *scraper.Registry
	orch     *ingest.Orchestrator
	importer *ingest.Importer
	exporter *export.Exporter
	engine   *analysis.Engine

	// baseCtx outlives individual requests; background scrapes and
	// analysis runs hang off it so server shutdown stops them.
	baseCtx context.Context

	analysisMu      sync.Mutex
	analysisRunning bool
	lastAnalysis    *analysis.RunResult
	lastAnalysisErr string
}

func NewServer(
	baseCtx context.Context,
	cfg config.Config,
	reviews ports.ReviewRepository,
	jobs ports.JobRepository,
	events ports.JobEvents,
	scrapers *scraper.Registry,
	orch *ingest.Orchestrator,
	importer *ingest.Importer,
	exporter *export.Exporter,
	engine *analysis.Engine,
) *Server {
	return &Server{
		cfg:      cfg,
		reviews:  reviews,
		jobs:     jobs,
		events:   events,
		scrapers: scrapers,
		orch:     orch,
		importer: importer,
		exporter: exporter,
		engine:   engine,
		baseCtx:  baseCtx,
	}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/reviews", func(r chi.Router) {
			r.Get("/", s.handleListReviews)
			r.Post("/import", s.handleImportReviews)
			r.Post("/bulk-delete", s.handleBulkDeleteReviews)
			r.Get("/{id}", s.handleGetReview)
			r.Delete("/{id}", s.handleDeleteReview)
		})

		r.Route("/pain-points", func(r chi.Router) {
			r.Get("/", s.handleListPainPoints)
			r.Get("/categories", s.handlePainPointCategories)
			r.Get("/export", s.handleExport)
		})

		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", s.handleListJobs)
			r.Post("/", s.handleCreateJob)
			r.Get("/{id}", s.handleGetJob)
			r.Delete("/{id}", s.handleCancelJob)
		})

		r.Route("/analysis", func(r chi.Router) {
			r.Post("/", s.handleStartAnalysis)
			r.Get("/status", s.handleAnalysisStatus)
		})

		r.Route("/stats", func(r chi.Router) {
			r.Get("/reviews", s.handleReviewStats)
			r.Get("/pain-points", s.handlePainPointStats)
			r.Get("/dashboard", s.handleDashboard)
		})

		r.Post("/admin/reset", s.handleReset)
		r.Get("/ws/jobs", s.handleJobEvents)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type apiError struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, apiError{Error: err.Error()})
}

// statusFor maps the known sentinel errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ports.ErrReviewNotFound), errors.Is(err, ports.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, ports.ErrInvalidJobTransition):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
