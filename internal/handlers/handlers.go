// Package handlers exposes the scan service over a JSON HTTP API with SSE
// progress streams. There is no HTML front-end; graphical clients are
// external consumers of this API.
package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/dskmr/simscan/internal/config"
	"github.com/dskmr/simscan/internal/db"
	"github.com/dskmr/simscan/internal/services"
)

// Handler holds all HTTP handlers.
type Handler struct {
	db      *db.DB
	cfg     *config.Config
	scanner *services.Scanner
	version string
}

// New creates a new Handler.
func New(database *db.DB, cfg *config.Config, scanner *services.Scanner, version string) *Handler {
	return &Handler{
		db:      database,
		cfg:     cfg,
		scanner: scanner,
		version: version,
	}
}

// RegisterRoutes registers all HTTP routes.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", h.Health)

	// Scans
	mux.HandleFunc("POST /api/scans", h.CreateScan)
	mux.HandleFunc("GET /api/scans", h.ListScans)
	mux.HandleFunc("GET /api/scans/{id}", h.GetScan)
	mux.HandleFunc("POST /api/scans/{id}/cancel", h.CancelScan)
	mux.HandleFunc("GET /api/scans/{id}/progress", h.ScanProgressSSE)

	// Results
	mux.HandleFunc("GET /api/scans/{id}/duplicates", h.Duplicates)
	mux.HandleFunc("GET /api/scans/{id}/conflicts", h.NameConflicts)
	mux.HandleFunc("GET /api/scans/{id}/similar", h.SimilarNames)
	mux.HandleFunc("GET /api/scans/{id}/export", h.Export)

	// Scheduled jobs
	mux.HandleFunc("GET /api/jobs", h.ListJobs)
	mux.HandleFunc("POST /api/jobs", h.CreateJob)
	mux.HandleFunc("PUT /api/jobs/{id}", h.UpdateJob)
	mux.HandleFunc("DELETE /api/jobs/{id}", h.DeleteJob)
}

// Health reports server liveness and version.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": h.version})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("handlers: failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil
}
