package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/devraulu/scannr/pkg/storage"
)

type RunCreate struct {
	Domain   string   `json:"domain"`
	Keywords []string `json:"keywords"`
	Excludes []string `json:"excludes"`
}

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var input RunCreate
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	domain := strings.TrimRight(strings.TrimSpace(input.Domain), "/")
	if domain == "" {
		http.Error(w, "domain is required", http.StatusBadRequest)
		return
	}

	keywords := trimNonEmpty(input.Keywords)
	if len(keywords) == 0 {
		http.Error(w, "at least one keyword is required", http.StatusBadRequest)
		return
	}
	excludes := trimNonEmpty(input.Excludes)

	runID, err := s.store.CreateRun(r.Context(), domain, "api")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	// Read the row before launching the crawl so the response always shows
	// the run as created, never a later status.
	run, err := s.store.GetRun(r.Context(), runID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	// Fire and forget: the crawl outlives this request, so it runs on its
	// own context, not the request's.
	go s.crawler.Run(context.Background(), runID, domain, keywords, excludes)

	slog.Info("run created", "run_id", runID, "domain", domain, "keywords", len(keywords))
	writeJSON(w, http.StatusCreated, run)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.ListRuns(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []storage.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID, ok := parseID(w, r)
	if !ok {
		return
	}

	run, err := s.store.GetRun(r.Context(), runID)
	if err != nil {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleListPages(w http.ResponseWriter, r *http.Request) {
	runID, ok := parseID(w, r)
	if !ok {
		return
	}

	if _, err := s.store.GetRun(r.Context(), runID); err != nil {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}

	pages, err := s.store.ListPages(r.Context(), runID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if pages == nil {
		pages = []storage.Page{}
	}
	writeJSON(w, http.StatusOK, pages)
}

func (s *Server) handleListMatches(w http.ResponseWriter, r *http.Request) {
	pageID, ok := parseID(w, r)
	if !ok {
		return
	}

	if _, err := s.store.GetPage(r.Context(), pageID); err != nil {
		http.Error(w, "page not found", http.StatusNotFound)
		return
	}

	matches, err := s.store.ListMatches(r.Context(), pageID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if matches == nil {
		matches = []storage.Match{}
	}
	writeJSON(w, http.StatusOK, matches)
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func trimNonEmpty(values []string) []string {
	var out []string
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "err", err)
	}
}
