package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/dskmr/simscan/internal/config"
	"github.com/dskmr/simscan/internal/db"
	"github.com/dskmr/simscan/internal/engine"
	"github.com/dskmr/simscan/internal/fuzzy"
	"github.com/dskmr/simscan/internal/types"
)

// subscriber wraps a channel with safe close handling.
type subscriber struct {
	ch        chan *types.ScanProgress
	closeOnce sync.Once
	closed    bool
}

func (sub *subscriber) close() {
	sub.closeOnce.Do(func() {
		sub.closed = true
		close(sub.ch)
	})
}

func (sub *subscriber) send(progress *types.ScanProgress) bool {
	if sub.closed {
		return false
	}
	select {
	case sub.ch <- progress:
		return true
	default:
		return false
	}
}

// Scanner orchestrates scan runs: it drives the engine, records run history,
// retains each run's session for queries, and fans progress out to SSE
// subscribers.
type Scanner struct {
	db  *db.DB
	cfg *config.Config

	// Active scans, their cancellation handles, and retained sessions.
	mu          sync.RWMutex
	activeScans map[int64]*engine.Session
	sessions    map[int64]*engine.Session

	// SSE subscribers.
	subMu       sync.RWMutex
	subscribers map[int64][]*subscriber
}

// NewScanner creates a new scanner service.
func NewScanner(database *db.DB, cfg *config.Config) *Scanner {
	return &Scanner{
		db:          database,
		cfg:         cfg,
		activeScans: make(map[int64]*engine.Session),
		sessions:    make(map[int64]*engine.Session),
		subscribers: make(map[int64][]*subscriber),
	}
}

// Subscribe subscribes to progress updates for a scan run.
func (s *Scanner) Subscribe(runID int64) chan *types.ScanProgress {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	sub := &subscriber{
		ch: make(chan *types.ScanProgress, 10),
	}
	s.subscribers[runID] = append(s.subscribers[runID], sub)
	return sub.ch
}

// Unsubscribe removes a subscriber.
func (s *Scanner) Unsubscribe(runID int64, ch chan *types.ScanProgress) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	subs := s.subscribers[runID]
	for i, sub := range subs {
		if sub.ch == ch {
			// Remove from slice first, then close safely.
			s.subscribers[runID] = append(subs[:i], subs[i+1:]...)
			sub.close()
			break
		}
	}

	if len(s.subscribers[runID]) == 0 {
		delete(s.subscribers, runID)
	}
}

// broadcast sends progress to all subscribers.
func (s *Scanner) broadcast(runID int64, progress *types.ScanProgress) {
	s.subMu.RLock()
	subs := make([]*subscriber, len(s.subscribers[runID]))
	copy(subs, s.subscribers[runID])
	s.subMu.RUnlock()

	for _, sub := range subs {
		sub.send(progress)
	}
}

// closeSubscribers closes all subscriber channels for a scan.
func (s *Scanner) closeSubscribers(runID int64) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for _, sub := range s.subscribers[runID] {
		sub.close()
	}
	delete(s.subscribers, runID)
}

// ScanRequest holds the parameters for one scan run.
type ScanRequest struct {
	Root      string
	Recursive bool
	Workers   int
	Algorithm engine.DigestAlgo
}

// StartScan records a new run and starts the scan in the background.
func (s *Scanner) StartScan(req ScanRequest, jobID *int64) (*db.ScanRun, error) {
	if !config.IsPathAllowed(s.cfg.ScanRoots, req.Root) {
		return nil, fmt.Errorf("path %s is outside the allowed scan roots", req.Root)
	}

	run, err := s.db.CreateScanRun(req.Root, req.Recursive, jobID)
	if err != nil {
		return nil, err
	}

	session := engine.NewSession(req.Root, req.Recursive)
	s.mu.Lock()
	s.activeScans[run.ID] = session
	s.sessions[run.ID] = session
	s.mu.Unlock()

	go s.runScan(run.ID, session, req)

	return run, nil
}

// runScan executes the actual scan.
func (s *Scanner) runScan(runID int64, session *engine.Session, req ScanRequest) {
	defer func() {
		s.mu.Lock()
		delete(s.activeScans, runID)
		s.mu.Unlock()
		s.closeSubscribers(runID)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ScanTimeout)
	defer cancel()

	var lastDBUpdate time.Time
	progress := func(ev engine.ProgressEvent) {
		s.broadcast(runID, &types.ScanProgress{
			Message:    ev.Message,
			Percentage: ev.Percentage,
			HasPercent: ev.HasPercent,
			FilesFound: session.HashedCount(),
			Status:     "running",
		})
		if time.Since(lastDBUpdate) >= time.Second {
			lastDBUpdate = time.Now()
			s.db.UpdateScanRunProgress(runID, int64(len(session.Files())), sessionBytes(session))
		}
	}

	err := engine.Run(ctx, session, engine.Options{
		Recursive: req.Recursive,
		Workers:   req.Workers,
		Algorithm: req.Algorithm,
		Progress:  progress,
	})

	if err != nil {
		status := db.ScanRunStatusFailed
		statusStr := "failed"
		if errors.Is(err, engine.ErrCancelled) || ctx.Err() != nil {
			status = db.ScanRunStatusCancelled
			statusStr = "cancelled"
		}
		errMsg := err.Error()
		s.db.CompleteScanRun(runID, status, 0, 0, 0, 0, &errMsg)
		s.broadcast(runID, &types.ScanProgress{Message: errMsg, Status: statusStr})
		return
	}

	meta, err := engine.Metadata(session)
	if err != nil {
		log.Printf("scanner: failed to summarize run %d: %v", runID, err)
	}

	s.db.UpdateScanRunProgress(runID, int64(meta.TotalFiles), meta.TotalSize)
	s.db.CompleteScanRun(runID, db.ScanRunStatusCompleted,
		int64(meta.DuplicateGroups), int64(meta.NameConflictGroups), 0,
		meta.PotentialSavings, nil)

	s.broadcast(runID, &types.ScanProgress{
		Message:    fmt.Sprintf("Scan complete: %d files", meta.TotalFiles),
		Percentage: 100,
		HasPercent: true,
		FilesFound: int64(meta.TotalFiles),
		Status:     "completed",
	})
}

func sessionBytes(s *engine.Session) int64 {
	var total int64
	for _, rec := range s.Files() {
		total += rec.Size
	}
	return total
}

// CancelScan requests cooperative cancellation of an active scan.
func (s *Scanner) CancelScan(runID int64) bool {
	s.mu.RLock()
	session, ok := s.activeScans[runID]
	s.mu.RUnlock()

	if ok {
		session.Cancel()
	}
	return ok
}

// Session returns the retained session for a run, if any. Sessions survive
// only for the server's lifetime; history rows outlive them.
func (s *Scanner) Session(runID int64) (*engine.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[runID]
	return session, ok
}

// ErrNoSession is returned when a run's session is no longer held in memory.
var ErrNoSession = errors.New("scan results are no longer available; run a new scan")

// Duplicates returns the duplicate groups of a completed run.
func (s *Scanner) Duplicates(runID int64) ([]engine.DuplicateGroup, error) {
	session, ok := s.Session(runID)
	if !ok {
		return nil, ErrNoSession
	}
	return engine.Duplicates(session)
}

// NameConflicts returns the name-conflict groups of a completed run.
func (s *Scanner) NameConflicts(runID int64, foldCase bool) ([]engine.NameConflictGroup, error) {
	session, ok := s.Session(runID)
	if !ok {
		return nil, ErrNoSession
	}
	return engine.NameConflicts(session, engine.ConflictOptions{FoldCase: foldCase})
}

// SimilarNames runs a fuzzy name query against a completed run and records
// the pair count on the run's history row.
func (s *Scanner) SimilarNames(ctx context.Context, runID int64, threshold float64, method fuzzy.Method) ([]engine.SimilarPair, error) {
	session, ok := s.Session(runID)
	if !ok {
		return nil, ErrNoSession
	}
	pairs, err := engine.SimilarNames(ctx, session, engine.MatchOptions{
		Threshold: threshold,
		Method:    method,
		Workers:   s.cfg.Workers,
	})
	if err != nil {
		return nil, err
	}
	if err := s.db.UpdateScanRunSimilarPairs(runID, int64(len(pairs))); err != nil {
		log.Printf("scanner: failed to record pair count for run %d: %v", runID, err)
	}
	return pairs, nil
}
