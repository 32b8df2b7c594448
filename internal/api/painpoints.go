package api

import (
	"bytes"
	"fmt"
	"net/http"

	"reviewminer/internal/domain/review"
	"reviewminer/internal/ports"
	"reviewminer/internal/usecase/export"
)

func (s *Server) handleListPainPoints(w http.ResponseWriter, r *http.Request) {
	filter := ports.PainPointFilter{
		Category: r.URL.Query().Get("category"),
		Search:   r.URL.Query().Get("search"),
		Limit:    queryInt(r, "limit", defaultPageSize),
		Offset:   queryInt(r, "offset", 0),
	}

	if raw := r.URL.Query().Get("intensity"); raw != "" {
		intensity, ok := review.NormalizeIntensity(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, fmt.Errorf("unknown intensity %q", raw))
			return
		}
		filter.Intensity = intensity
	}

	points, err := s.reviews.QueryPainPoints(r.Context(), filter)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pain_points": toPainPointListJSON(points)})
}

func (s *Server) handlePainPointCategories(w http.ResponseWriter, r *http.Request) {
	stats, err := s.reviews.GetPainPointStats(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": stats.ByCategory})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	formatParam := r.URL.Query().Get("format")
	if formatParam == "" {
		formatParam = "csv"
	}
	format, err := export.ParseFormat(formatParam)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	// Buffered so an export failure can still become a JSON error
	// instead of a half-written body.
	var buf bytes.Buffer
	if _, err := s.exporter.Export(r.Context(), &buf, format, r.URL.Query().Get("category")); err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	switch format {
	case export.FormatCSV:
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="pain_points.csv"`)
	case export.FormatJSON:
		w.Header().Set("Content-Type", "application/json")
	case export.FormatMarkdown:
		w.Header().Set("Content-Type", "text/markdown")
		w.Header().Set("Content-Disposition", `attachment; filename="pain_points.md"`)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
