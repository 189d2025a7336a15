// Package server exposes the admin HTTP API of the synonym workers.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/at-ishikawa/dynsyn/internal/refresh"
)

// Sources looks up refresh workers by source name.
type Sources interface {
	Worker(name string) (*refresh.Worker, bool)
	Workers() []*refresh.Worker
}

// Handler serves the admin API.
type Handler struct {
	sources Sources
}

// NewHandler creates a new Handler.
func NewHandler(sources Sources) *Handler {
	return &Handler{sources: sources}
}

// Routes returns the mux of all admin endpoints.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.Health)
	mux.HandleFunc("GET /sources", h.ListSources)
	mux.HandleFunc("GET /sources/{name}", h.GetSource)
	mux.HandleFunc("GET /sources/{name}/synonyms", h.LookupSynonyms)
	mux.HandleFunc("POST /sources/{name}/refresh", h.RefreshSource)
	return mux
}

type errorResponse struct {
	Error string `json:"error"`
}

type synonymsResponse struct {
	Source   string   `json:"source"`
	Version  uint64   `json:"version"`
	Term     string   `json:"term"`
	Synonyms []string `json:"synonyms"`
}

type refreshResponse struct {
	Published bool           `json:"published"`
	Coalesced bool           `json:"coalesced"`
	Reload    bool           `json:"reload"`
	Resync    bool           `json:"resync"`
	Action    string         `json:"action,omitempty"`
	Error     string         `json:"error,omitempty"`
	Status    refresh.Status `json:"status"`
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) ListSources(w http.ResponseWriter, _ *http.Request) {
	workers := h.sources.Workers()
	statuses := make([]refresh.Status, 0, len(workers))
	for _, worker := range workers {
		statuses = append(statuses, worker.Status())
	}
	writeJSON(w, http.StatusOK, statuses)
}

func (h *Handler) GetSource(w http.ResponseWriter, r *http.Request) {
	worker, ok := h.worker(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, worker.Status())
}

func (h *Handler) LookupSynonyms(w http.ResponseWriter, r *http.Request) {
	worker, ok := h.worker(w, r)
	if !ok {
		return
	}
	term := r.URL.Query().Get("term")
	if strings.TrimSpace(term) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "term is required"})
		return
	}

	snapshot := worker.CurrentSnapshot()
	synonyms := snapshot.Dictionary.Lookup(term)
	if synonyms == nil {
		synonyms = []string{}
	}
	writeJSON(w, http.StatusOK, synonymsResponse{
		Source:   worker.Name(),
		Version:  snapshot.Version,
		Term:     term,
		Synonyms: synonyms,
	})
}

func (h *Handler) RefreshSource(w http.ResponseWriter, r *http.Request) {
	worker, ok := h.worker(w, r)
	if !ok {
		return
	}

	result, err := worker.Refresh(r.Context())
	if errors.Is(err, refresh.ErrStopped) {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		return
	}

	res := refreshResponse{
		Published: result.Published,
		Coalesced: result.Coalesced,
		Reload:    result.Decision.Reload,
		Resync:    result.Decision.Resync,
		Action:    string(result.Action),
		Status:    worker.Status(),
	}
	status := http.StatusOK
	switch {
	case err != nil:
		res.Error = err.Error()
		status = http.StatusBadGateway
	case result.Coalesced:
		status = http.StatusAccepted
	}
	writeJSON(w, status, res)
}

func (h *Handler) worker(w http.ResponseWriter, r *http.Request) (*refresh.Worker, bool) {
	name := r.PathValue("name")
	worker, ok := h.sources.Worker(name)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown synonym source " + name})
	}
	return worker, ok
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Warn("write response", "error", err)
	}
}
