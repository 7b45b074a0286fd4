package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/dskmr/simscan/internal/db"
	"github.com/dskmr/simscan/internal/engine"
	"github.com/dskmr/simscan/internal/export"
	"github.com/dskmr/simscan/internal/fuzzy"
	"github.com/dskmr/simscan/internal/services"
)

type createScanRequest struct {
	Root      string `json:"root"`
	Recursive *bool  `json:"recursive"`
	Workers   int    `json:"workers"`
	Hash      string `json:"hash"`
}

type scanRunResponse struct {
	ID                 int64      `json:"id"`
	Root               string     `json:"root"`
	Recursive          bool       `json:"recursive"`
	Status             string     `json:"status"`
	StartedAt          time.Time  `json:"started_at"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	FilesScanned       int64      `json:"files_scanned"`
	BytesScanned       int64      `json:"bytes_scanned"`
	DuplicateGroups    int64      `json:"duplicate_groups"`
	NameConflictGroups int64      `json:"name_conflict_groups"`
	SimilarNamePairs   int64      `json:"similar_name_pairs"`
	WastedBytes        int64      `json:"wasted_bytes"`
	Error              string     `json:"error,omitempty"`
}

func toScanRunResponse(run *db.ScanRun) scanRunResponse {
	resp := scanRunResponse{
		ID:                 run.ID,
		Root:               run.Root,
		Recursive:          run.Recursive,
		Status:             string(run.Status),
		StartedAt:          run.StartedAt,
		CompletedAt:        run.CompletedAt,
		FilesScanned:       run.FilesScanned,
		BytesScanned:       run.BytesScanned,
		DuplicateGroups:    run.DuplicateGroups,
		NameConflictGroups: run.NameConflictGroups,
		SimilarNamePairs:   run.SimilarNamePairs,
		WastedBytes:        run.WastedBytes,
	}
	if run.ErrorMessage != nil {
		resp.Error = *run.ErrorMessage
	}
	return resp
}

// CreateScan starts a new scan run.
func (h *Handler) CreateScan(w http.ResponseWriter, r *http.Request) {
	var req createScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Root == "" {
		writeError(w, http.StatusBadRequest, "root is required")
		return
	}

	algo, err := engine.ParseDigestAlgo(req.Hash)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	recursive := true
	if req.Recursive != nil {
		recursive = *req.Recursive
	}
	workers := req.Workers
	if workers == 0 {
		workers = h.cfg.Workers
	}

	run, err := h.scanner.StartScan(services.ScanRequest{
		Root:      req.Root,
		Recursive: recursive,
		Workers:   workers,
		Algorithm: algo,
	}, nil)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, toScanRunResponse(run))
}

// ListScans returns the scan run history, newest first.
func (h *Handler) ListScans(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	runs, err := h.db.ListScanRuns(limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := make([]scanRunResponse, 0, len(runs))
	for _, run := range runs {
		resp = append(resp, toScanRunResponse(run))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetScan returns a single scan run.
func (h *Handler) GetScan(w http.ResponseWriter, r *http.Request) {
	run, ok := h.lookupRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toScanRunResponse(run))
}

// CancelScan requests cooperative cancellation of an active scan.
func (h *Handler) CancelScan(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid scan id")
		return
	}
	if !h.scanner.CancelScan(id) {
		writeError(w, http.StatusNotFound, "no active scan with that id")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling"})
}

type fileResponse struct {
	Path     string    `json:"path"`
	Name     string    `json:"name"`
	Size     int64     `json:"size_bytes"`
	Modified time.Time `json:"modified"`
	Hash     string    `json:"hash,omitempty"`
}

type groupResponse struct {
	Hash  string         `json:"hash"`
	Files []fileResponse `json:"files"`
}

type conflictResponse struct {
	BaseName  string          `json:"base_name"`
	Subgroups []groupResponse `json:"subgroups"`
}

type pairResponse struct {
	A     fileResponse `json:"file1"`
	B     fileResponse `json:"file2"`
	Score float64      `json:"similarity_percent"`
}

// Duplicates returns the duplicate groups of a completed run.
func (h *Handler) Duplicates(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid scan id")
		return
	}

	groups, err := h.scanner.Duplicates(id)
	if err != nil {
		writeResultError(w, err)
		return
	}

	resp := make([]groupResponse, 0, len(groups))
	for _, g := range groups {
		resp = append(resp, toGroupResponse(g))
	}
	writeJSON(w, http.StatusOK, resp)
}

// NameConflicts returns the name-conflict groups of a completed run.
func (h *Handler) NameConflicts(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid scan id")
		return
	}

	groups, err := h.scanner.NameConflicts(id, r.URL.Query().Get("fold_case") == "true")
	if err != nil {
		writeResultError(w, err)
		return
	}

	resp := make([]conflictResponse, 0, len(groups))
	for _, c := range groups {
		cr := conflictResponse{BaseName: c.BaseName}
		for _, sub := range c.Subgroups {
			cr.Subgroups = append(cr.Subgroups, toGroupResponse(sub))
		}
		resp = append(resp, cr)
	}
	writeJSON(w, http.StatusOK, resp)
}

// SimilarNames runs a fuzzy name query against a completed run.
func (h *Handler) SimilarNames(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid scan id")
		return
	}

	threshold, method, err := h.matchParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	pairs, err := h.scanner.SimilarNames(r.Context(), id, threshold, method)
	if err != nil {
		writeResultError(w, err)
		return
	}

	resp := make([]pairResponse, 0, len(pairs))
	for _, p := range pairs {
		resp = append(resp, pairResponse{
			A:     toFileResponse(p.A),
			B:     toFileResponse(p.B),
			Score: p.Score,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// Export streams a full report in the requested format.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid scan id")
		return
	}

	format, err := export.ParseFormat(defaultStr(r.URL.Query().Get("format"), "json"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	threshold, method, err := h.matchParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	session, ok := h.scanner.Session(id)
	if !ok {
		writeResultError(w, services.ErrNoSession)
		return
	}

	report, err := export.Build(r.Context(), session, export.BuildOptions{
		Threshold: threshold,
		Method:    method,
		Workers:   h.cfg.Workers,
	})
	if err != nil {
		writeResultError(w, err)
		return
	}

	contentTypes := map[export.Format]string{
		export.FormatText: "text/plain; charset=utf-8",
		export.FormatJSON: "application/json",
		export.FormatCSV:  "text/csv",
		export.FormatHTML: "text/html; charset=utf-8",
	}
	w.Header().Set("Content-Type", contentTypes[format])
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=simscan-%d.%s", id, format))
	if err := export.Write(w, format, report); err != nil {
		// Headers are already gone; just log.
		writeResultError(w, err)
	}
}

func (h *Handler) lookupRun(w http.ResponseWriter, r *http.Request) (*db.ScanRun, bool) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid scan id")
		return nil, false
	}
	run, err := h.db.GetScanRun(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "scan not found")
		return nil, false
	}
	return run, true
}

func (h *Handler) matchParams(r *http.Request) (float64, fuzzy.Method, error) {
	threshold := h.cfg.Threshold
	if v := r.URL.Query().Get("threshold"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f > 100 {
			return 0, 0, fmt.Errorf("invalid threshold %q", v)
		}
		threshold = f
	}
	method, err := fuzzy.ParseMethod(defaultStr(r.URL.Query().Get("method"), h.cfg.Method))
	if err != nil {
		return 0, 0, err
	}
	return threshold, method, nil
}

func writeResultError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrNoSession):
		writeError(w, http.StatusGone, err.Error())
	case errors.Is(err, engine.ErrIncompleteSession):
		writeError(w, http.StatusConflict, "scan has not completed; results are not available yet")
	case errors.Is(err, engine.ErrCancelled):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func toFileResponse(f *engine.FileRecord) fileResponse {
	resp := fileResponse{
		Path:     f.Path,
		Name:     f.BaseName,
		Size:     f.Size,
		Modified: f.ModTime,
	}
	if f.Hashed() {
		resp.Hash = fmt.Sprintf("%x", f.Digest)
	}
	return resp
}

func toGroupResponse(g engine.DuplicateGroup) groupResponse {
	resp := groupResponse{Hash: fmt.Sprintf("%x", g.Digest)}
	for _, f := range g.Files {
		resp.Files = append(resp.Files, toFileResponse(f))
	}
	return resp
}

func queryInt(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i >= 0 {
			return i
		}
	}
	return def
}

func defaultStr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
