package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Ahmedhelmy006/nbo-linkedin-api/internal/model"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// lookupParams pulls the optional person hints from query parameters.
func lookupParams(r *http.Request, email string) model.LookupRequest {
	q := r.URL.Query()
	return model.LookupRequest{
		Email:     email,
		FirstName: q.Get("first_name"),
		LastName:  q.Get("last_name"),
		City:      q.Get("city"),
		State:     q.Get("state"),
		Country:   q.Get("country"),
	}
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")
	if !model.ValidEmail(email) {
		writeError(w, http.StatusBadRequest, "invalid email format")
		return
	}
	res := s.deps.Lookup.Lookup(r.Context(), lookupParams(r, email))
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleLookupPost(w http.ResponseWriter, r *http.Request) {
	var req model.LookupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !model.ValidEmail(req.Email) {
		writeError(w, http.StatusBadRequest, "invalid email format")
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Lookup.Lookup(r.Context(), req))
}

type scrapeRequest struct {
	LinkedInURL string `json:"linkedin_url"`
	Pool        string `json:"pool"`
}

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	if s.deps.Scraper == nil {
		writeError(w, http.StatusServiceUnavailable, "scraper not configured")
		return
	}
	var req scrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.LinkedInURL == "" {
		writeError(w, http.StatusBadRequest, "linkedin_url is required")
		return
	}
	if req.Pool == "" {
		req.Pool = "main"
	}
	res := s.deps.Scraper.Scrape(r.Context(), req.LinkedInURL, req.Pool)
	status := http.StatusOK
	if !res.Success && !res.RateLimit.IsAllowed {
		status = http.StatusTooManyRequests
	}
	writeJSON(w, status, res)
}

type bulkScrapeRequest struct {
	LinkedInURLs []string `json:"linkedin_urls"`
	Pool         string   `json:"pool"`
}

func (s *Server) handleScrapeBulk(w http.ResponseWriter, r *http.Request) {
	if s.deps.Scraper == nil {
		writeError(w, http.StatusServiceUnavailable, "scraper not configured")
		return
	}
	var req bulkScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.LinkedInURLs) == 0 {
		writeError(w, http.StatusBadRequest, "linkedin_urls is required")
		return
	}
	if req.Pool == "" {
		req.Pool = "main"
	}
	res := s.deps.Scraper.ScrapeBulk(r.Context(), req.LinkedInURLs, req.Pool)
	status := http.StatusOK
	if !res.Success && !res.RateLimit.IsAllowed {
		status = http.StatusTooManyRequests
	}
	writeJSON(w, status, res)
}

func (s *Server) handleScraperStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.Usage == nil {
		writeError(w, http.StatusServiceUnavailable, "scraper not configured")
		return
	}
	stats, err := s.deps.Usage.Stats(r.Context())
	if err != nil {
		zap.L().Error("failed to read pool stats", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read pool stats")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pools": stats})
}

func (s *Server) handleSubscriberStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.Stats == nil {
		writeError(w, http.StatusServiceUnavailable, "store not configured")
		return
	}
	stats, err := s.deps.Stats.SubscriberStats(r.Context())
	if err != nil {
		zap.L().Error("failed to read subscriber stats", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read subscriber stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
