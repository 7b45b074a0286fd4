package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/dskmr/simscan/internal/config"
	"github.com/dskmr/simscan/internal/db"
	"github.com/dskmr/simscan/internal/scheduler"
)

type jobRequest struct {
	Name           string `json:"name"`
	Root           string `json:"root"`
	Recursive      *bool  `json:"recursive"`
	CronExpression string `json:"cron_expression"`
	Enabled        *bool  `json:"enabled"`
}

type jobResponse struct {
	ID             int64      `json:"id"`
	Name           string     `json:"name"`
	Root           string     `json:"root"`
	Recursive      bool       `json:"recursive"`
	CronExpression string     `json:"cron_expression"`
	Enabled        bool       `json:"enabled"`
	LastRunAt      *time.Time `json:"last_run_at,omitempty"`
	NextRunAt      *time.Time `json:"next_run_at,omitempty"`
}

func toJobResponse(j *db.ScheduledJob) jobResponse {
	return jobResponse{
		ID:             j.ID,
		Name:           j.Name,
		Root:           j.Root,
		Recursive:      j.Recursive,
		CronExpression: j.CronExpression,
		Enabled:        j.Enabled,
		LastRunAt:      j.LastRunAt,
		NextRunAt:      j.NextRunAt,
	}
}

// ListJobs returns all scheduled jobs.
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.db.ListScheduledJobs()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := make([]jobResponse, 0, len(jobs))
	for _, j := range jobs {
		resp = append(resp, toJobResponse(j))
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateJob creates a scheduled scan job.
func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req jobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.Root == "" || req.CronExpression == "" {
		writeError(w, http.StatusBadRequest, "name, root and cron_expression are required")
		return
	}
	if !config.IsPathAllowed(h.cfg.ScanRoots, req.Root) {
		writeError(w, http.StatusBadRequest, "root is outside the allowed scan roots")
		return
	}

	nextRun, err := scheduler.NextRun(req.CronExpression, time.Now())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid cron expression: "+err.Error())
		return
	}

	job := &db.ScheduledJob{
		Name:           req.Name,
		Root:           req.Root,
		Recursive:      true,
		CronExpression: req.CronExpression,
		Enabled:        true,
		NextRunAt:      &nextRun,
	}
	if req.Recursive != nil {
		job.Recursive = *req.Recursive
	}
	if req.Enabled != nil {
		job.Enabled = *req.Enabled
	}

	created, err := h.db.CreateScheduledJob(job)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, toJobResponse(created))
}

// UpdateJob updates a scheduled job.
func (h *Handler) UpdateJob(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}
	job, err := h.db.GetScheduledJob(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	var req jobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name != "" {
		job.Name = req.Name
	}
	if req.Root != "" {
		if !config.IsPathAllowed(h.cfg.ScanRoots, req.Root) {
			writeError(w, http.StatusBadRequest, "root is outside the allowed scan roots")
			return
		}
		job.Root = req.Root
	}
	if req.Recursive != nil {
		job.Recursive = *req.Recursive
	}
	if req.Enabled != nil {
		job.Enabled = *req.Enabled
	}
	if req.CronExpression != "" {
		job.CronExpression = req.CronExpression
	}

	nextRun, err := scheduler.NextRun(job.CronExpression, time.Now())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid cron expression: "+err.Error())
		return
	}
	job.NextRunAt = &nextRun

	if err := h.db.UpdateScheduledJob(job); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toJobResponse(job))
}

// DeleteJob removes a scheduled job.
func (h *Handler) DeleteJob(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}
	if err := h.db.DeleteScheduledJob(id); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
