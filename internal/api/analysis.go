package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"reviewminer/internal/bootstrap/logging"
	"reviewminer/internal/errs"
	"reviewminer/internal/usecase/analysis"
)

type analysisStatusResponse struct {
	Running    bool                `json:"running"`
	LastResult *analysis.RunResult `json:"last_result,omitempty"`
	LastError  string              `json:"last_error,omitempty"`
}

// handleStartAnalysis kicks off one extraction run in the background.
// Only one run at a time; a second request gets 409.
func (s *Server) handleStartAnalysis(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Limit int `json:"limit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	s.analysisMu.Lock()
	if s.analysisRunning {
		s.analysisMu.Unlock()
		writeError(w, http.StatusConflict, errors.New("analysis already running"))
		return
	}
	s.analysisRunning = true
	s.analysisMu.Unlock()

	go func() {
		result, err := s.engine.Run(s.baseCtx, req.Limit)

		s.analysisMu.Lock()
		s.analysisRunning = false
		s.lastAnalysis = &result
		s.lastAnalysisErr = ""
		if err != nil {
			s.lastAnalysisErr = err.Error()
		}
		s.analysisMu.Unlock()

		if err != nil {
			logging.Error(s.baseCtx, "analysis run faulted", slog.Any("err", errs.Loggable(err)))
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (s *Server) handleAnalysisStatus(w http.ResponseWriter, _ *http.Request) {
	s.analysisMu.Lock()
	resp := analysisStatusResponse{
		Running:    s.analysisRunning,
		LastResult: s.lastAnalysis,
		LastError:  s.lastAnalysisErr,
	}
	s.analysisMu.Unlock()

	writeJSON(w, http.StatusOK, resp)
}
