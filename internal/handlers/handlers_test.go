package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dskmr/simscan/internal/config"
	"github.com/dskmr/simscan/internal/db"
	"github.com/dskmr/simscan/internal/services"
)

type testEnv struct {
	mux *http.ServeMux
	db  *db.DB
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	cfg := &config.Config{
		Threshold:   70,
		Method:      "ratio",
		ScanTimeout: time.Minute,
	}
	scanner := services.NewScanner(database, cfg)
	h := New(database, cfg, scanner, "test")

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return &testEnv{mux: mux, db: database}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

// scanFixture writes a tree with a duplicate pair and a similar-name pair,
// starts a scan through the API, and waits for it to complete.
func scanFixture(t *testing.T, env *testEnv) int64 {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"a.txt":              "same content",
		"b.txt":              "same content",
		"photo_final.jpg":    "img1",
		"photo_final_v2.jpg": "img2",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	rec := env.do(t, "POST", "/api/scans", map[string]any{"root": dir})
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /api/scans = %d: %s", rec.Code, rec.Body.String())
	}
	created := decode[scanRunResponse](t, rec)

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		rec := env.do(t, "GET", fmt.Sprintf("/api/scans/%d", created.ID), nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("GET scan = %d: %s", rec.Code, rec.Body.String())
		}
		run := decode[scanRunResponse](t, rec)
		if run.Status == "completed" {
			return created.ID
		}
		if run.Status == "failed" || run.Status == "cancelled" {
			t.Fatalf("scan ended with status %s: %s", run.Status, run.Error)
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("scan did not complete in time")
	return 0
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, "GET", "/api/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decode[map[string]string](t, rec)
	if body["status"] != "ok" || body["version"] != "test" {
		t.Errorf("body = %v", body)
	}
}

func TestCreateScan_Validation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body any
		want int
	}{
		{"missing root", map[string]any{}, http.StatusBadRequest},
		{"bad hash", map[string]any{"root": "/tmp", "hash": "md5"}, http.StatusBadRequest},
		{"invalid json", "not json", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, "POST", "/api/scans", tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestScanLifecycleAndResults(t *testing.T) {
	env := newTestEnv(t)
	id := scanFixture(t, env)

	// Final run row carries summary counts.
	run := decode[scanRunResponse](t, env.do(t, "GET", fmt.Sprintf("/api/scans/%d", id), nil))
	if run.FilesScanned != 4 {
		t.Errorf("files_scanned = %d, want 4", run.FilesScanned)
	}
	if run.DuplicateGroups != 1 {
		t.Errorf("duplicate_groups = %d, want 1", run.DuplicateGroups)
	}

	// Duplicates.
	rec := env.do(t, "GET", fmt.Sprintf("/api/scans/%d/duplicates", id), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("duplicates status = %d: %s", rec.Code, rec.Body.String())
	}
	groups := decode[[]groupResponse](t, rec)
	if len(groups) != 1 || len(groups[0].Files) != 2 {
		t.Errorf("groups = %v", groups)
	}

	// Conflicts (none in this fixture).
	rec = env.do(t, "GET", fmt.Sprintf("/api/scans/%d/conflicts", id), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("conflicts status = %d", rec.Code)
	}
	conflicts := decode[[]conflictResponse](t, rec)
	if len(conflicts) != 0 {
		t.Errorf("conflicts = %v", conflicts)
	}

	// Similar names with explicit params.
	rec = env.do(t, "GET", fmt.Sprintf("/api/scans/%d/similar?threshold=70&method=ratio", id), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("similar status = %d: %s", rec.Code, rec.Body.String())
	}
	pairs := decode[[]pairResponse](t, rec)
	if len(pairs) != 1 {
		t.Fatalf("pairs = %v", pairs)
	}
	if pairs[0].A.Name != "photo_final.jpg" {
		t.Errorf("file1 = %s", pairs[0].A.Name)
	}

	// Raising the threshold excludes the pair.
	pairs = decode[[]pairResponse](t, env.do(t, "GET",
		fmt.Sprintf("/api/scans/%d/similar?threshold=95", id), nil))
	if len(pairs) != 0 {
		t.Errorf("threshold 95: pairs = %v", pairs)
	}
}

func TestSimilar_ParamValidation(t *testing.T) {
	env := newTestEnv(t)
	id := scanFixture(t, env)

	for _, query := range []string{
		"threshold=142", "threshold=-5", "threshold=abc", "method=nope",
	} {
		rec := env.do(t, "GET", fmt.Sprintf("/api/scans/%d/similar?%s", id, query), nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", query, rec.Code)
		}
	}
}

func TestResults_UnknownRun(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "GET", "/api/scans/9999/duplicates", nil)
	if rec.Code != http.StatusGone {
		t.Errorf("duplicates for unknown run: status = %d, want 410", rec.Code)
	}

	rec = env.do(t, "GET", "/api/scans/9999", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get unknown run: status = %d, want 404", rec.Code)
	}
}

func TestCancelScan_NotActive(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, "POST", "/api/scans/9999/cancel", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestListScans(t *testing.T) {
	env := newTestEnv(t)
	scanFixture(t, env)
	scanFixture(t, env)

	runs := decode[[]scanRunResponse](t, env.do(t, "GET", "/api/scans", nil))
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	if runs[0].ID < runs[1].ID {
		t.Error("runs should be newest first")
	}

	limited := decode[[]scanRunResponse](t, env.do(t, "GET", "/api/scans?limit=1", nil))
	if len(limited) != 1 {
		t.Errorf("limit=1 returned %d runs", len(limited))
	}
}

func TestExport(t *testing.T) {
	env := newTestEnv(t)
	id := scanFixture(t, env)

	rec := env.do(t, "GET", fmt.Sprintf("/api/scans/%d/export?format=csv", id), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("export status = %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, ".csv") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if !strings.Contains(rec.Body.String(), "# summary") {
		t.Error("CSV export missing summary section")
	}

	// Default format is JSON.
	rec = env.do(t, "GET", fmt.Sprintf("/api/scans/%d/export", id), nil)
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("default Content-Type = %q", ct)
	}
	var doc map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("JSON export invalid: %v", err)
	}

	rec = env.do(t, "GET", fmt.Sprintf("/api/scans/%d/export?format=pdf", id), nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad format: status = %d, want 400", rec.Code)
	}
}

func TestJobsCRUD(t *testing.T) {
	env := newTestEnv(t)

	// Validation.
	rec := env.do(t, "POST", "/api/jobs", map[string]any{"name": "incomplete"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing fields: status = %d, want 400", rec.Code)
	}
	rec = env.do(t, "POST", "/api/jobs", map[string]any{
		"name": "bad cron", "root": "/tmp", "cron_expression": "nope",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad cron: status = %d, want 400", rec.Code)
	}

	// Create.
	rec = env.do(t, "POST", "/api/jobs", map[string]any{
		"name": "nightly", "root": "/tmp", "cron_expression": "0 2 * * *",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create job: status = %d: %s", rec.Code, rec.Body.String())
	}
	job := decode[jobResponse](t, rec)
	if job.ID == 0 || !job.Enabled || !job.Recursive {
		t.Errorf("job = %+v", job)
	}
	if job.NextRunAt == nil {
		t.Error("next_run_at should be computed on create")
	}

	// List.
	jobs := decode[[]jobResponse](t, env.do(t, "GET", "/api/jobs", nil))
	if len(jobs) != 1 {
		t.Fatalf("got %d jobs, want 1", len(jobs))
	}

	// Update.
	enabled := false
	rec = env.do(t, "PUT", fmt.Sprintf("/api/jobs/%d", job.ID), map[string]any{
		"enabled": &enabled, "cron_expression": "30 3 * * *",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update job: status = %d: %s", rec.Code, rec.Body.String())
	}
	updated := decode[jobResponse](t, rec)
	if updated.Enabled {
		t.Error("job should be disabled")
	}
	if updated.CronExpression != "30 3 * * *" {
		t.Errorf("cron = %q", updated.CronExpression)
	}

	// Delete.
	rec = env.do(t, "DELETE", fmt.Sprintf("/api/jobs/%d", job.ID), nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete job: status = %d, want 204", rec.Code)
	}
	jobs = decode[[]jobResponse](t, env.do(t, "GET", "/api/jobs", nil))
	if len(jobs) != 0 {
		t.Errorf("jobs after delete = %v", jobs)
	}
}

func TestScanProgressSSE_CompletedRun(t *testing.T) {
	env := newTestEnv(t)
	id := scanFixture(t, env)

	// For a finished run the stream replays the final state and closes.
	rec := env.do(t, "GET", fmt.Sprintf("/api/scans/%d/progress", id), nil)
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "event: progress") {
		t.Error("stream missing progress event")
	}
	if !strings.Contains(body, "event: complete") {
		t.Error("stream missing complete event")
	}
	if !strings.Contains(body, `"completed"`) {
		t.Errorf("stream should carry the completed status: %s", body)
	}
}

func TestUpdateJob_NotFound(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, "PUT", "/api/jobs/42", map[string]any{"name": "x"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
