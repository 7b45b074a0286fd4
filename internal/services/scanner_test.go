package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dskmr/simscan/internal/config"
	"github.com/dskmr/simscan/internal/db"
	"github.com/dskmr/simscan/internal/fuzzy"
	"github.com/dskmr/simscan/internal/types"
)

func testScanner(t *testing.T, cfg *config.Config) (*Scanner, *db.DB) {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if cfg == nil {
		cfg = &config.Config{
			Threshold:   70,
			Method:      "ratio",
			ScanTimeout: time.Minute,
		}
	}
	return NewScanner(database, cfg), database
}

func writeTestFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}

// waitForStatus polls the run row until it reaches a terminal status.
func waitForStatus(t *testing.T, database *db.DB, runID int64) *db.ScanRun {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		run, err := database.GetScanRun(runID)
		if err != nil {
			t.Fatalf("GetScanRun failed: %v", err)
		}
		if run.Status != db.ScanRunStatusRunning {
			return run
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("scan did not finish in time")
	return nil
}

func TestStartScan_Lifecycle(t *testing.T) {
	scanner, database := testScanner(t, nil)

	dir := t.TempDir()
	writeTestFiles(t, dir, map[string]string{
		"a.txt":        "same content",
		"b.txt":        "same content",
		"x/report.txt": "north",
		"y/report.txt": "south",
	})

	run, err := scanner.StartScan(ScanRequest{Root: dir, Recursive: true}, nil)
	if err != nil {
		t.Fatalf("StartScan failed: %v", err)
	}
	if run.Status != db.ScanRunStatusRunning {
		t.Errorf("initial status = %s, want running", run.Status)
	}

	final := waitForStatus(t, database, run.ID)
	if final.Status != db.ScanRunStatusCompleted {
		t.Fatalf("final status = %s, want completed (error: %v)", final.Status, final.ErrorMessage)
	}
	if final.FilesScanned != 4 {
		t.Errorf("FilesScanned = %d, want 4", final.FilesScanned)
	}
	if final.DuplicateGroups != 1 {
		t.Errorf("DuplicateGroups = %d, want 1", final.DuplicateGroups)
	}
	if final.NameConflictGroups != 1 {
		t.Errorf("NameConflictGroups = %d, want 1", final.NameConflictGroups)
	}
	if final.WastedBytes != int64(len("same content")) {
		t.Errorf("WastedBytes = %d, want %d", final.WastedBytes, len("same content"))
	}
	if final.CompletedAt == nil {
		t.Error("CompletedAt should be set")
	}
}

func TestStartScan_DisallowedRoot(t *testing.T) {
	scanner, _ := testScanner(t, &config.Config{
		ScanRoots:   []string{"/only/here"},
		ScanTimeout: time.Minute,
	})

	if _, err := scanner.StartScan(ScanRequest{Root: t.TempDir(), Recursive: true}, nil); err == nil {
		t.Error("expected error for root outside the allow list")
	}
}

func TestStartScan_MissingRootFails(t *testing.T) {
	scanner, database := testScanner(t, nil)

	run, err := scanner.StartScan(ScanRequest{
		Root: filepath.Join(t.TempDir(), "does-not-exist"), Recursive: true,
	}, nil)
	if err != nil {
		t.Fatalf("StartScan failed: %v", err)
	}

	final := waitForStatus(t, database, run.ID)
	if final.Status != db.ScanRunStatusFailed {
		t.Errorf("status = %s, want failed", final.Status)
	}
	if final.ErrorMessage == nil {
		t.Error("failed run should carry an error message")
	}
}

func TestResultQueries(t *testing.T) {
	scanner, database := testScanner(t, nil)

	dir := t.TempDir()
	writeTestFiles(t, dir, map[string]string{
		"holiday_2024.jpg": "one",
		"holiday_2025.jpg": "two",
		"copy1.dat":        "dup",
		"copy2.dat":        "dup",
	})

	run, err := scanner.StartScan(ScanRequest{Root: dir, Recursive: true}, nil)
	if err != nil {
		t.Fatalf("StartScan failed: %v", err)
	}
	waitForStatus(t, database, run.ID)

	dups, err := scanner.Duplicates(run.ID)
	if err != nil {
		t.Fatalf("Duplicates failed: %v", err)
	}
	if len(dups) != 1 {
		t.Errorf("got %d duplicate groups, want 1", len(dups))
	}

	conflicts, err := scanner.NameConflicts(run.ID, false)
	if err != nil {
		t.Fatalf("NameConflicts failed: %v", err)
	}
	if len(conflicts) != 0 {
		t.Errorf("got %d conflicts, want 0", len(conflicts))
	}

	pairs, err := scanner.SimilarNames(context.Background(), run.ID, 70, fuzzy.Ratio)
	if err != nil {
		t.Fatalf("SimilarNames failed: %v", err)
	}
	if len(pairs) != 1 {
		t.Errorf("got %d similar pairs, want 1", len(pairs))
	}

	// The pair count lands on the history row.
	got, err := database.GetScanRun(run.ID)
	if err != nil {
		t.Fatalf("GetScanRun failed: %v", err)
	}
	if got.SimilarNamePairs != int64(len(pairs)) {
		t.Errorf("SimilarNamePairs = %d, want %d", got.SimilarNamePairs, len(pairs))
	}
}

func TestResultQueries_UnknownRun(t *testing.T) {
	scanner, _ := testScanner(t, nil)

	if _, err := scanner.Duplicates(12345); !errors.Is(err, ErrNoSession) {
		t.Errorf("Duplicates on unknown run: got %v, want ErrNoSession", err)
	}
	if _, err := scanner.SimilarNames(context.Background(), 12345, 70, fuzzy.Ratio); !errors.Is(err, ErrNoSession) {
		t.Errorf("SimilarNames on unknown run: got %v, want ErrNoSession", err)
	}
}

func TestCancelScan_UnknownRun(t *testing.T) {
	scanner, _ := testScanner(t, nil)
	if scanner.CancelScan(999) {
		t.Error("CancelScan on unknown run should return false")
	}
}

func TestSubscribeBroadcast(t *testing.T) {
	scanner, _ := testScanner(t, nil)

	ch := scanner.Subscribe(7)

	scanner.broadcast(7, &types.ScanProgress{Message: "working", Status: "running"})

	select {
	case update := <-ch:
		if update.Message != "working" {
			t.Errorf("Message = %q, want working", update.Message)
		}
	case <-time.After(time.Second):
		t.Fatal("no update received")
	}

	// Unsubscribing closes the channel.
	scanner.Unsubscribe(7, ch)
	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected closed channel after Unsubscribe")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}

	// Broadcasting with no subscribers is a no-op.
	scanner.broadcast(7, &types.ScanProgress{Message: "late"})
}

func TestCloseSubscribers(t *testing.T) {
	scanner, _ := testScanner(t, nil)

	ch1 := scanner.Subscribe(3)
	ch2 := scanner.Subscribe(3)

	scanner.closeSubscribers(3)

	for _, ch := range []chan *types.ScanProgress{ch1, ch2} {
		select {
		case _, ok := <-ch:
			if ok {
				t.Error("expected closed channel")
			}
		case <-time.After(time.Second):
			t.Fatal("channel not closed")
		}
	}

	// Double close through Unsubscribe must not panic.
	scanner.Unsubscribe(3, ch1)
}

func TestSessionRetainedAfterScan(t *testing.T) {
	scanner, database := testScanner(t, nil)

	dir := t.TempDir()
	writeTestFiles(t, dir, map[string]string{"f.txt": "x"})

	run, err := scanner.StartScan(ScanRequest{Root: dir, Recursive: true}, nil)
	if err != nil {
		t.Fatalf("StartScan failed: %v", err)
	}
	waitForStatus(t, database, run.ID)

	session, ok := scanner.Session(run.ID)
	if !ok {
		t.Fatal("session should be retained after completion")
	}
	if !session.Completed() {
		t.Error("retained session should be completed")
	}
}
