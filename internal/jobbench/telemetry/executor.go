package telemetry

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/armadaproject/jobbench/internal/common/logging"
	"github.com/armadaproject/jobbench/internal/jobbench/lifecycle"
)

// Writes made after the task returns must not be lost because the job's own context expired.
const completionWriteTimeout = 30 * time.Second

// Job identifies one attempt of a job.
type Job struct {
	// Stable across retries of the same job.
	ID         int64
	TaskName   string
	WorkerName string
	Attempt    int
}

func (j Job) logger() *logging.Logger {
	return logging.WithFields(map[string]any{
		"jobId":   j.ID,
		"task":    j.TaskName,
		"worker":  j.WorkerName,
		"attempt": j.Attempt,
	})
}

// Task is a unit of work taking arguments of type A and producing a T.
type Task[A, T any] interface {
	Run(ctx context.Context, job Job, args A) (T, error)
}

// TaskFunc adapts a function to the Task interface.
type TaskFunc[A, T any] func(ctx context.Context, job Job, args A) (T, error)

func (f TaskFunc[A, T]) Run(ctx context.Context, job Job, args A) (T, error) {
	return f(ctx, job, args)
}

// Result is the output of a successful task, tagged with the worker that produced it.
type Result[T any] struct {
	WorkerName string `json:"worker_name"`
	Output     T      `json:"output"`
}

type Executor[A, T any] interface {
	Execute(ctx context.Context, job Job, args A) (Result[T], error)
}

// TelemetryExecutor records a RUNNING transition before delegating to its task and a COMPLETED or FAILED
// transition afterwards.
type TelemetryExecutor[A, T any] struct {
	store   lifecycle.Store
	task    Task[A, T]
	metrics *Metrics
}

// Wrap returns an Executor that records every attempt of task in store. metrics may be nil.
func Wrap[A, T any](store lifecycle.Store, task Task[A, T], metrics *Metrics) *TelemetryExecutor[A, T] {
	return &TelemetryExecutor[A, T]{
		store:   store,
		task:    task,
		metrics: metrics,
	}
}

// Execute runs one attempt of the job. A task error is returned unchanged, after the failure has been recorded,
// so that the queue's retry policy sees exactly what the task produced.
func (e *TelemetryExecutor[A, T]) Execute(ctx context.Context, job Job, args A) (Result[T], error) {
	log := job.logger()

	err := e.record(lifecycle.StatusRunning, func() error {
		return e.store.MarkRunning(ctx, job.ID, job.TaskName, job.WorkerName)
	})
	if err != nil {
		return Result[T]{}, errors.WithMessagef(err, "recording start of job %d", job.ID)
	}
	log.Debug("Job running")

	start := time.Now()
	output, taskErr := e.task.Run(ctx, job, args)
	elapsed := time.Since(start)

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), completionWriteTimeout)
	defer cancel()

	result := Result[T]{WorkerName: job.WorkerName, Output: output}
	var payload []byte
	if taskErr == nil {
		if payload, err = json.Marshal(result); err != nil {
			taskErr = errors.Wrapf(err, "serializing result of job %d", job.ID)
		}
	}

	if taskErr != nil {
		e.metrics.observeExecution(job.TaskName, lifecycle.StatusFailed, elapsed)
		log.WithError(taskErr).Warnf("Job failed after %s", elapsed)
		err := e.record(lifecycle.StatusFailed, func() error {
			return e.store.MarkFailed(writeCtx, job.ID, taskErr.Error())
		})
		if err != nil {
			return Result[T]{}, multierror.Append(taskErr, errors.WithMessagef(err, "recording failure of job %d", job.ID))
		}
		return Result[T]{}, taskErr
	}

	err = e.record(lifecycle.StatusCompleted, func() error {
		return e.store.MarkCompleted(writeCtx, job.ID, payload)
	})
	if err != nil {
		return Result[T]{}, errors.WithMessagef(err, "recording completion of job %d", job.ID)
	}
	e.metrics.observeExecution(job.TaskName, lifecycle.StatusCompleted, elapsed)
	log.Debugf("Job completed in %s", elapsed)
	return result, nil
}

func (e *TelemetryExecutor[A, T]) record(status lifecycle.Status, write func() error) error {
	start := time.Now()
	err := write()
	e.metrics.observeTransition(status, time.Since(start), err)
	return err
}
