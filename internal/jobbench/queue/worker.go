package queue

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"

	"github.com/armadaproject/jobbench/internal/common/database"
	"github.com/armadaproject/jobbench/internal/common/logging"
	"github.com/armadaproject/jobbench/internal/jobbench/tasks"
	"github.com/armadaproject/jobbench/internal/jobbench/telemetry"
)

const (
	defaultStopTimeout = 30 * time.Second
	outstandingJobsSql = `
SELECT COUNT(*) FROM river_job
WHERE kind = ANY($1) AND state NOT IN ('completed', 'cancelled', 'discarded')`
)

type WorkerConfig struct {
	// Unique per process; recorded as worker_name on every job this worker runs.
	Name        string
	Concurrency int
	Queues      []string
	// Stop once no job of a registered kind is outstanding.
	ExitWhenDrained   bool
	DrainPollInterval time.Duration
	// How long running jobs get to finish on shutdown before they are cancelled.
	StopTimeout time.Duration
}

// sumWorker adapts the telemetry executor to river's worker interface.
type sumWorker struct {
	river.WorkerDefaults[tasks.SumArgs]
	name     string
	executor telemetry.Executor[tasks.SumArgs, tasks.SumOutput]
}

func (w *sumWorker) Work(ctx context.Context, job *river.Job[tasks.SumArgs]) error {
	_, err := w.executor.Execute(ctx, telemetry.Job{
		ID:         job.ID,
		TaskName:   job.Kind,
		WorkerName: w.name,
		Attempt:    job.Attempt,
	}, job.Args)
	return err
}

// Worker is one worker process: a river client working jobs through the telemetry executor. It is created at
// process start and owns no global state.
type Worker struct {
	config WorkerConfig
	db     database.Querier
	client *Client
	kinds  []string
}

func NewWorker(pool *pgxpool.Pool, executor telemetry.Executor[tasks.SumArgs, tasks.SumOutput], config WorkerConfig) (*Worker, error) {
	if config.Name == "" {
		return nil, errors.New("worker name must be set")
	}
	if config.Concurrency <= 0 {
		return nil, errors.Errorf("concurrency must be positive, got %d", config.Concurrency)
	}
	if config.StopTimeout <= 0 {
		config.StopTimeout = defaultStopTimeout
	}
	if config.DrainPollInterval <= 0 {
		config.DrainPollInterval = time.Second
	}
	queues := config.Queues
	if len(queues) == 0 {
		queues = []string{river.QueueDefault}
	}

	workers := river.NewWorkers()
	river.AddWorker[tasks.SumArgs](workers, &sumWorker{name: config.Name, executor: executor})

	queueConfig := make(map[string]river.QueueConfig, len(queues))
	for _, q := range queues {
		queueConfig[q] = river.QueueConfig{MaxWorkers: config.Concurrency}
	}
	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		ID:      config.Name,
		Queues:  queueConfig,
		Workers: workers,
		// The simulated workload bounds its own duration.
		JobTimeout: -1,
		Logger:     riverLogger(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating river client")
	}
	return &Worker{
		config: config,
		db:     pool,
		client: client,
		kinds:  []string{tasks.SumTaskName},
	}, nil
}

// Run works jobs until ctx is cancelled or, with ExitWhenDrained, until nothing is left to do. Running jobs are
// given StopTimeout to finish before they are cancelled.
func (w *Worker) Run(ctx context.Context) error {
	log := logging.WithField("worker", w.config.Name)
	log.Infof("Starting worker with concurrency %d, queues %v", w.config.Concurrency, w.config.Queues)
	// Cancelling the context given to Start hard-stops river, so shutdown is driven explicitly below.
	if err := w.client.Start(context.WithoutCancel(ctx)); err != nil {
		return errors.Wrap(err, "starting river client")
	}

	var runErr error
	if w.config.ExitWhenDrained {
		runErr = w.waitForDrain(ctx)
	} else {
		<-ctx.Done()
	}

	log.Info("Stopping worker")
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.config.StopTimeout)
	defer cancel()
	if err := w.client.Stop(stopCtx); err != nil {
		log.WithError(err).Warn("Jobs did not finish in time, cancelling them")
		cancelCtx, cancelCancel := context.WithTimeout(context.WithoutCancel(ctx), w.config.StopTimeout)
		defer cancelCancel()
		if err := w.client.StopAndCancel(cancelCtx); err != nil {
			return errors.Wrap(err, "stopping river client")
		}
	}
	log.Info("Worker stopped")
	return runErr
}

func (w *Worker) waitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(w.config.DrainPollInterval)
	defer ticker.Stop()
	for {
		outstanding, err := OutstandingJobs(ctx, w.db, w.kinds)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if outstanding == 0 {
			logging.WithField("worker", w.config.Name).Info("No jobs left to do")
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Healthy reports an error if the database cannot be reached.
func (w *Worker) Healthy(ctx context.Context) error {
	var one int
	return errors.WithStack(w.db.QueryRow(ctx, "SELECT 1").Scan(&one))
}

// OutstandingJobs counts jobs of the given kinds that river has not finished with, including those waiting for
// a retry.
func OutstandingJobs(ctx context.Context, db database.Querier, kinds []string) (int64, error) {
	var count int64
	if err := db.QueryRow(ctx, outstandingJobsSql, kinds).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "counting outstanding jobs")
	}
	return count, nil
}
