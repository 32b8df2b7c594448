package api

import (
	"net/http"
)

func (s *Server) handleReviewStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.reviews.GetReviewStats(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total_reviews": stats.TotalReviews,
		"by_source":     stats.BySource,
		"processed":     stats.ProcessedCount,
		"unprocessed":   stats.UnprocessedCount,
	})
}

func (s *Server) handlePainPointStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.reviews.GetPainPointStats(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total_pain_points": stats.TotalPainPoints,
		"by_category":       stats.ByCategory,
		"by_intensity":      stats.ByIntensity,
	})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	reviewStats, err := s.reviews.GetReviewStats(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	painStats, err := s.reviews.GetPainPointStats(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	recent, err := s.reviews.RecentPainPoints(r.Context(), 10)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total_reviews":      reviewStats.TotalReviews,
		"reviews_by_source":  reviewStats.BySource,
		"processed":          reviewStats.ProcessedCount,
		"unprocessed":        reviewStats.UnprocessedCount,
		"total_pain_points":  painStats.TotalPainPoints,
		"by_category":        painStats.ByCategory,
		"by_intensity":       painStats.ByIntensity,
		"recent_pain_points": toPainPointListJSON(recent),
	})
}
