package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/dskmr/simscan/internal/db"
	"github.com/dskmr/simscan/internal/types"
)

// ScanProgressData is sent via SSE during scans.
type ScanProgressData struct {
	Message    string   `json:"message"`
	Percentage *float64 `json:"percentage,omitempty"`
	FilesFound int64    `json:"files_found"`
	Status     string   `json:"status"`
}

// ScanProgressSSE handles SSE connections for scan progress.
func (h *Handler) ScanProgressSSE(w http.ResponseWriter, r *http.Request) {
	runID, ok := pathID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	// Subscribe to updates
	updates := h.scanner.Subscribe(runID)
	defer h.scanner.Unsubscribe(runID, updates)

	// Send initial state
	if run, err := h.db.GetScanRun(runID); err == nil {
		h.sendScanProgress(w, flusher, &types.ScanProgress{
			Message:    fmt.Sprintf("Scan of %s", run.Root),
			FilesFound: run.FilesScanned,
			Status:     string(run.Status),
		})
		if run.Status != db.ScanRunStatusRunning {
			h.sendEvent(w, flusher, "complete", fmt.Sprintf(`{"status":%q}`, run.Status))
			return
		}
	}

	// Listen for updates
	for {
		select {
		case <-r.Context().Done():
			return
		case update, ok := <-updates:
			if !ok {
				// Channel closed, send complete event
				h.sendEvent(w, flusher, "complete", `{"status":"completed"}`)
				return
			}
			h.sendScanProgress(w, flusher, update)
			if update.Status != "running" {
				h.sendEvent(w, flusher, "complete", fmt.Sprintf(`{"status":%q}`, update.Status))
				return
			}
		}
	}
}

func (h *Handler) sendScanProgress(w http.ResponseWriter, flusher http.Flusher, progress *types.ScanProgress) {
	data := ScanProgressData{
		Message:    progress.Message,
		FilesFound: progress.FilesFound,
		Status:     progress.Status,
	}
	if progress.HasPercent {
		pct := progress.Percentage
		data.Percentage = &pct
	}

	jsonData, _ := json.Marshal(data)
	h.sendEvent(w, flusher, "progress", string(jsonData))
}

func (h *Handler) sendEvent(w http.ResponseWriter, flusher http.Flusher, event, data string) {
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	flusher.Flush()
}
