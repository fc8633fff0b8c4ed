package lifecycle

import (
	"context"
	"encoding/json"
	"time"
)

type Status string

const (
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// JobRecord is the durable outcome of the most recent attempt of a job.
type JobRecord struct {
	JobID      int64
	TaskName   string
	WorkerName string
	Status     Status
	// Set only when Status is COMPLETED.
	Result json.RawMessage
	// Set only when Status is FAILED.
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Store records job lifecycle transitions. Every method is a single statement, so concurrent transitions for
// different jobs never block each other and a transition for one job is atomic.
type Store interface {
	// MarkRunning upserts the job as RUNNING, clearing any result or error from a previous attempt.
	// created_at is only set when the row is first inserted.
	MarkRunning(ctx context.Context, jobID int64, taskName string, workerName string) error
	// MarkCompleted stores the serialized result and clears any error message.
	MarkCompleted(ctx context.Context, jobID int64, result json.RawMessage) error
	// MarkFailed stores the error message and clears any result.
	MarkFailed(ctx context.Context, jobID int64, errorMessage string) error
}
