package db

import "time"

// ScanRunStatus represents the status of a scan run.
type ScanRunStatus string

const (
	ScanRunStatusRunning   ScanRunStatus = "running"
	ScanRunStatusCompleted ScanRunStatus = "completed"
	ScanRunStatusFailed    ScanRunStatus = "failed"
	ScanRunStatusCancelled ScanRunStatus = "cancelled"
)

// ScanRun records one execution of a directory scan: its parameters, status
// and summary counts. Result collections are not persisted; they live with
// the in-memory session for the lifetime of the run.
type ScanRun struct {
	ID             int64
	Root           string
	Recursive      bool
	ScheduledJobID *int64
	Status         ScanRunStatus
	StartedAt      time.Time
	CompletedAt    *time.Time

	FilesScanned       int64
	BytesScanned       int64
	DuplicateGroups    int64
	NameConflictGroups int64
	SimilarNamePairs   int64
	WastedBytes        int64

	ErrorMessage *string
}

// ScheduledJob is a cron-style recurring scan.
type ScheduledJob struct {
	ID             int64
	Name           string
	Root           string
	Recursive      bool
	CronExpression string
	Enabled        bool
	LastRunAt      *time.Time
	NextRunAt      *time.Time
	CreatedAt      time.Time
}
