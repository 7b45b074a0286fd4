// Package scheduler runs scheduled scan jobs on cron expressions.
package scheduler

import (
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dskmr/simscan/internal/db"
	"github.com/dskmr/simscan/internal/services"
)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// NextRun parses a standard five-field cron expression and returns the next
// run time after from.
func NextRun(expr string, from time.Time) (time.Time, error) {
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return time.Time{}, err
	}
	return schedule.Next(from), nil
}

// Scheduler polls for due jobs and starts scans for them.
type Scheduler struct {
	db      *db.DB
	scanner *services.Scanner

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New creates a new scheduler.
func New(database *db.DB, scanner *services.Scanner) *Scheduler {
	return &Scheduler{
		db:      database,
		scanner: scanner,
	}
}

// Start starts the scheduler loop.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stopChan = make(chan struct{})

	s.wg.Add(1)
	go s.run(s.stopChan)
}

// Stop stops the scheduler loop. Scans already started keep running; they are
// cancelled individually through the scanner service if needed.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopChan)
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Scheduler) run(stop <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	// Check immediately on start.
	s.checkJobs()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.checkJobs()
		}
	}
}

// checkJobs starts scans for all jobs whose next run time has passed.
func (s *Scheduler) checkJobs() {
	jobs, err := s.db.GetEnabledJobs()
	if err != nil {
		log.Printf("scheduler: failed to get jobs: %v", err)
		return
	}

	now := time.Now()
	for _, job := range jobs {
		if job.NextRunAt == nil || now.Before(*job.NextRunAt) {
			continue
		}
		s.runJob(job, now)
	}
}

func (s *Scheduler) runJob(job *db.ScheduledJob, now time.Time) {
	log.Printf("scheduler: running job %d (%s)", job.ID, job.Name)

	run, err := s.scanner.StartScan(services.ScanRequest{
		Root:      job.Root,
		Recursive: job.Recursive,
	}, &job.ID)
	if err != nil {
		log.Printf("scheduler: failed to start scan for job %d: %v", job.ID, err)
		return
	}

	nextRun, err := NextRun(job.CronExpression, now)
	if err != nil {
		log.Printf("scheduler: invalid cron expression for job %d: %v", job.ID, err)
		return
	}
	if err := s.db.UpdateJobLastRun(job.ID, now, nextRun); err != nil {
		log.Printf("scheduler: failed to update job last run: %v", err)
	}

	log.Printf("scheduler: started scan run %d for job %d, next run at %v", run.ID, job.ID, nextRun)
}
