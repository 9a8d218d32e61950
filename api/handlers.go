package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"dhc_scraper/models"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

type searchResponse struct {
	Status models.QueryStatus `json:"status"`
	Case   *models.CaseRecord `json:"case,omitempty"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}

	record, err := s.executor.Execute(r.Context(), req)
	if err != nil {
		s.writeSearchError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, searchResponse{Status: models.QueryStatusSuccess, Case: record})
}

// writeSearchError maps internal failures to operator-safe responses.
// Raw portal errors never reach the client; the correlation ID lets an
// operator find them in the audit log.
func (s *Server) writeSearchError(w http.ResponseWriter, err error) {
	correlationID := ""
	var qErr *models.QueryError
	if errors.As(err, &qErr) {
		correlationID = qErr.CorrelationID
	}

	var vErr *models.ValidationError
	var cErr *models.CaptchaError

	switch {
	case errors.As(err, &vErr):
		writeError(w, http.StatusBadRequest, vErr.Error(), "")
	case errors.Is(err, models.ErrNotFound):
		writeJSON(w, http.StatusNotFound, searchResponse{Status: models.QueryStatusNotFound})
	case errors.As(err, &cErr):
		writeError(w, http.StatusServiceUnavailable, "the court site could not verify the request, please try again later", correlationID)
	default:
		writeError(w, http.StatusBadGateway, "the court site could not be reached or returned an unexpected page", correlationID)
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	var (
		logs []models.QueryLog
		err  error
	)
	if status := r.URL.Query().Get("status"); status != "" {
		logs, err = s.store.QueriesByStatus(r.Context(), models.QueryStatus(status), limit)
	} else {
		logs, err = s.store.RecentQueries(r.Context(), limit)
	}
	if err != nil {
		log.Printf("[api] history query failed: %v", err)
		writeError(w, http.StatusInternalServerError, "could not load query history", "")
		return
	}
	if logs == nil {
		logs = []models.QueryLog{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"queries": logs})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		writeError(w, http.StatusBadRequest, "missing url parameter", "")
		return
	}

	path, err := s.docs.Fetch(r.Context(), rawURL)
	if err != nil {
		log.Printf("[api] document fetch failed: %v", err)
		writeError(w, http.StatusBadGateway, "the document could not be retrieved", "")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename=\""+filepath.Base(path)+"\"")
	http.ServeFile(w, r, path)
}

func (s *Server) handleCaseTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"case_types": s.portal.CaseTypes})
}

func (s *Server) handleYears(w http.ResponseWriter, r *http.Request) {
	current := time.Now().Year()
	years := make([]int, 0, 20)
	for y := current; y > current-20 && y >= models.MinFilingYear; y-- {
		years = append(years, y)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"years": years})
}

func (s *Server) handleCaptchaPending(w http.ResponseWriter, r *http.Request) {
	if s.manual == nil {
		writeError(w, http.StatusNotFound, "manual captcha entry is not enabled", "")
		return
	}
	pending := s.manual.Pending()
	if pending == nil {
		pending = []*models.CaptchaChallenge{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"pending": pending})
}

type captchaAnswerRequest struct {
	ID     string `json:"id"`
	Answer string `json:"answer"`
}

func (s *Server) handleCaptchaAnswer(w http.ResponseWriter, r *http.Request) {
	if s.manual == nil {
		writeError(w, http.StatusNotFound, "manual captcha entry is not enabled", "")
		return
	}

	var req captchaAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}
	if err := s.manual.Answer(req.ID, req.Answer); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

func (s *Server) handleMaintenanceRun(w http.ResponseWriter, r *http.Request) {
	if s.maintenance == nil {
		writeError(w, http.StatusNotFound, "maintenance is not enabled", "")
		return
	}
	s.maintenance.TriggerNow()
	writeJSON(w, http.StatusOK, map[string]string{"status": "completed"})
}

type errorResponse struct {
	Error         string `json:"error"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("[api] encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message, correlationID string) {
	writeJSON(w, status, errorResponse{Error: message, CorrelationID: correlationID})
}
