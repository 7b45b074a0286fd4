package db

import (
	"database/sql"
	"time"
)

// ScanRun queries

// CreateScanRun creates a new scan run in the running state.
func (db *DB) CreateScanRun(root string, recursive bool, jobID *int64) (*ScanRun, error) {
	result, err := db.Exec(`
		INSERT INTO scan_runs (root, recursive, scheduled_job_id, status, started_at)
		VALUES (?, ?, ?, ?, ?)`,
		root, recursive, jobID, ScanRunStatusRunning, time.Now(),
	)
	if err != nil {
		return nil, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}

	return db.GetScanRun(id)
}

const scanRunColumns = `id, root, recursive, scheduled_job_id, status, started_at, completed_at,
	files_scanned, bytes_scanned, duplicate_groups, name_conflict_groups, similar_name_pairs,
	wasted_bytes, error_message`

// GetScanRun retrieves a scan run by ID.
func (db *DB) GetScanRun(id int64) (*ScanRun, error) {
	row := db.QueryRow(`SELECT `+scanRunColumns+` FROM scan_runs WHERE id = ?`, id)
	return scanScanRun(row)
}

// ListScanRuns returns scan runs newest-first with pagination.
func (db *DB) ListScanRuns(limit, offset int) ([]*ScanRun, error) {
	rows, err := db.Query(`SELECT `+scanRunColumns+`
		FROM scan_runs ORDER BY started_at DESC, id DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*ScanRun
	for rows.Next() {
		r, err := scanScanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetLastRunForJob returns the most recent scan run for a scheduled job.
func (db *DB) GetLastRunForJob(jobID int64) (*ScanRun, error) {
	row := db.QueryRow(`SELECT `+scanRunColumns+`
		FROM scan_runs WHERE scheduled_job_id = ? ORDER BY started_at DESC LIMIT 1`, jobID)
	return scanScanRun(row)
}

// UpdateScanRunProgress updates the live counters of a running scan.
func (db *DB) UpdateScanRunProgress(id int64, filesScanned, bytesScanned int64) error {
	_, err := db.Exec(`
		UPDATE scan_runs SET files_scanned = ?, bytes_scanned = ?
		WHERE id = ?`,
		filesScanned, bytesScanned, id)
	return err
}

// CompleteScanRun finalizes a run with its terminal status and summary counts.
func (db *DB) CompleteScanRun(id int64, status ScanRunStatus, groups, conflicts, pairs, wasted int64, errMsg *string) error {
	_, err := db.Exec(`
		UPDATE scan_runs SET
			status = ?, completed_at = ?,
			duplicate_groups = ?, name_conflict_groups = ?, similar_name_pairs = ?,
			wasted_bytes = ?, error_message = ?
		WHERE id = ?`,
		status, time.Now(), groups, conflicts, pairs, wasted, errMsg, id)
	return err
}

// UpdateScanRunSimilarPairs records the pair count of an on-demand
// similar-name query on the run's history row.
func (db *DB) UpdateScanRunSimilarPairs(id int64, pairs int64) error {
	_, err := db.Exec(`UPDATE scan_runs SET similar_name_pairs = ? WHERE id = ?`, pairs, id)
	return err
}

// CleanupOldData removes scan runs older than the retention window.
func (db *DB) CleanupOldData(retentionDays int) error {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	_, err := db.Exec(`DELETE FROM scan_runs WHERE started_at < ? AND status != ?`,
		cutoff, ScanRunStatusRunning)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanScanRun(row rowScanner) (*ScanRun, error) {
	var r ScanRun
	var jobID sql.NullInt64
	var completedAt sql.NullTime
	var errMsg sql.NullString

	err := row.Scan(&r.ID, &r.Root, &r.Recursive, &jobID, &r.Status, &r.StartedAt, &completedAt,
		&r.FilesScanned, &r.BytesScanned, &r.DuplicateGroups, &r.NameConflictGroups,
		&r.SimilarNamePairs, &r.WastedBytes, &errMsg)
	if err != nil {
		return nil, err
	}

	if jobID.Valid {
		r.ScheduledJobID = &jobID.Int64
	}
	if completedAt.Valid {
		r.CompletedAt = &completedAt.Time
	}
	if errMsg.Valid {
		r.ErrorMessage = &errMsg.String
	}
	return &r, nil
}

// ScheduledJob queries

const jobColumns = `id, name, root, recursive, cron_expression, enabled, last_run_at, next_run_at, created_at`

// CreateScheduledJob inserts a new job and returns it.
func (db *DB) CreateScheduledJob(job *ScheduledJob) (*ScheduledJob, error) {
	result, err := db.Exec(`
		INSERT INTO scheduled_jobs (name, root, recursive, cron_expression, enabled, next_run_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		job.Name, job.Root, job.Recursive, job.CronExpression, job.Enabled, job.NextRunAt)
	if err != nil {
		return nil, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return db.GetScheduledJob(id)
}

// GetScheduledJob retrieves a job by ID.
func (db *DB) GetScheduledJob(id int64) (*ScheduledJob, error) {
	row := db.QueryRow(`SELECT `+jobColumns+` FROM scheduled_jobs WHERE id = ?`, id)
	return scanScheduledJob(row)
}

// ListScheduledJobs returns all jobs.
func (db *DB) ListScheduledJobs() ([]*ScheduledJob, error) {
	return db.queryJobs(`SELECT ` + jobColumns + ` FROM scheduled_jobs ORDER BY id`)
}

// GetEnabledJobs returns all enabled jobs.
func (db *DB) GetEnabledJobs() ([]*ScheduledJob, error) {
	return db.queryJobs(`SELECT ` + jobColumns + ` FROM scheduled_jobs WHERE enabled = 1 ORDER BY id`)
}

func (db *DB) queryJobs(query string) ([]*ScheduledJob, error) {
	rows, err := db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*ScheduledJob
	for rows.Next() {
		j, err := scanScheduledJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// UpdateScheduledJob updates a job's mutable fields.
func (db *DB) UpdateScheduledJob(job *ScheduledJob) error {
	_, err := db.Exec(`
		UPDATE scheduled_jobs SET
			name = ?, root = ?, recursive = ?, cron_expression = ?, enabled = ?, next_run_at = ?
		WHERE id = ?`,
		job.Name, job.Root, job.Recursive, job.CronExpression, job.Enabled, job.NextRunAt, job.ID)
	return err
}

// UpdateJobLastRun records a job execution and its next scheduled time.
func (db *DB) UpdateJobLastRun(id int64, lastRun, nextRun time.Time) error {
	_, err := db.Exec(`UPDATE scheduled_jobs SET last_run_at = ?, next_run_at = ? WHERE id = ?`,
		lastRun, nextRun, id)
	return err
}

// DeleteScheduledJob removes a job.
func (db *DB) DeleteScheduledJob(id int64) error {
	_, err := db.Exec(`DELETE FROM scheduled_jobs WHERE id = ?`, id)
	return err
}

func scanScheduledJob(row rowScanner) (*ScheduledJob, error) {
	var j ScheduledJob
	var lastRun, nextRun sql.NullTime

	err := row.Scan(&j.ID, &j.Name, &j.Root, &j.Recursive, &j.CronExpression, &j.Enabled,
		&lastRun, &nextRun, &j.CreatedAt)
	if err != nil {
		return nil, err
	}
	if lastRun.Valid {
		j.LastRunAt = &lastRun.Time
	}
	if nextRun.Valid {
		j.NextRunAt = &nextRun.Time
	}
	return &j, nil
}

// Settings queries

// GetSetting returns the value for key, or "" when unset.
func (db *DB) GetSetting(key string) (string, error) {
	var value string
	err := db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// SetSetting upserts a settings value.
func (db *DB) SetSetting(key, value string) error {
	_, err := db.Exec(`
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}
