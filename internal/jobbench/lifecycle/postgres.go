package lifecycle

import (
	"context"
	"embed"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/armadaproject/jobbench/internal/common/database"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migrations returns the versioned schema of the job_results table.
func Migrations() ([]database.Migration, error) {
	return database.ReadMigrations(migrationFS, "migrations")
}

// ErrNotFound is returned when no row exists for a job.
var ErrNotFound = errors.New("job result not found")

const (
	markRunningSql = `
INSERT INTO job_results (job_id, task_name, worker_name, status, result, error_message, created_at, updated_at)
VALUES ($1, $2, $3, 'RUNNING', NULL, NULL, NOW(), NOW())
ON CONFLICT (job_id) DO UPDATE SET
    task_name     = EXCLUDED.task_name,
    worker_name   = EXCLUDED.worker_name,
    status        = EXCLUDED.status,
    result        = NULL,
    error_message = NULL,
    updated_at    = NOW()`

	markCompletedSql = `
UPDATE job_results
SET status = 'COMPLETED', result = $2, error_message = NULL, updated_at = NOW()
WHERE job_id = $1`

	markFailedSql = `
UPDATE job_results
SET status = 'FAILED', error_message = $2, result = NULL, updated_at = NOW()
WHERE job_id = $1`

	getSql = `
SELECT job_id, task_name, COALESCE(worker_name, ''), status, result, COALESCE(error_message, ''), created_at, updated_at
FROM job_results
WHERE job_id = $1`
)

// PostgresStore is a Store backed by the job_results table.
type PostgresStore struct {
	db database.Querier
}

func NewPostgresStore(db database.Querier) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) MarkRunning(ctx context.Context, jobID int64, taskName string, workerName string) error {
	_, err := s.db.Exec(ctx, markRunningSql, jobID, taskName, workerName)
	return errors.Wrapf(err, "marking job %d as running", jobID)
}

func (s *PostgresStore) MarkCompleted(ctx context.Context, jobID int64, result json.RawMessage) error {
	return s.update(ctx, markCompletedSql, jobID, result, StatusCompleted)
}

func (s *PostgresStore) MarkFailed(ctx context.Context, jobID int64, errorMessage string) error {
	return s.update(ctx, markFailedSql, jobID, errorMessage, StatusFailed)
}

func (s *PostgresStore) update(ctx context.Context, sql string, jobID int64, value any, status Status) error {
	tag, err := s.db.Exec(ctx, sql, jobID, value)
	if err != nil {
		return errors.Wrapf(err, "marking job %d as %s", jobID, status)
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(ErrNotFound, "marking job %d as %s", jobID, status)
	}
	return nil
}

// Get returns the current record of a job.
func (s *PostgresStore) Get(ctx context.Context, jobID int64) (JobRecord, error) {
	var record JobRecord
	var status string
	var result []byte
	err := s.db.QueryRow(ctx, getSql, jobID).Scan(
		&record.JobID,
		&record.TaskName,
		&record.WorkerName,
		&status,
		&result,
		&record.ErrorMessage,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return JobRecord{}, errors.Wrapf(ErrNotFound, "job %d", jobID)
	}
	if err != nil {
		return JobRecord{}, errors.WithStack(err)
	}
	record.Status = Status(status)
	if result != nil {
		record.Result = result
	}
	return record, nil
}
