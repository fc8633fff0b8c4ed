package queue

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/armadaproject/jobbench/internal/common/database"
	"github.com/armadaproject/jobbench/internal/jobbench/lifecycle"
	"github.com/armadaproject/jobbench/internal/jobbench/tasks"
	"github.com/armadaproject/jobbench/internal/jobbench/telemetry"
)

func TestNewWorker_Validation(t *testing.T) {
	_, err := NewWorker(nil, nil, WorkerConfig{Concurrency: 1})
	assert.Error(t, err)
	_, err = NewWorker(nil, nil, WorkerConfig{Name: "w_1"})
	assert.Error(t, err)
}

func TestWorkers_DrainGeneratedJobs(t *testing.T) {
	withQueueDb(t, func(ctx context.Context, pool *pgxpool.Pool) {
		inserter, err := NewInsertClient(pool)
		require.NoError(t, err)
		n, err := NewGenerator(ClientInserter(inserter), GeneratorConfig{
			MaxJobs:     10,
			AvgDuration: 10 * time.Millisecond,
			MaxAttempts: 4,
			BatchSize:   4,
		}).Generate(ctx)
		require.NoError(t, err)
		require.Equal(t, 10, n)

		outstanding, err := OutstandingJobs(ctx, pool, []string{tasks.SumTaskName})
		require.NoError(t, err)
		assert.Equal(t, int64(10), outstanding)

		store := lifecycle.NewPostgresStore(pool)
		g, gctx := errgroup.WithContext(ctx)
		for _, name := range []string{"test_1", "test_2"} {
			executor := telemetry.Wrap[tasks.SumArgs, tasks.SumOutput](store, tasks.NewSum(1), nil)
			worker, err := NewWorker(pool, executor, WorkerConfig{
				Name:              name,
				Concurrency:       2,
				ExitWhenDrained:   true,
				DrainPollInterval: 50 * time.Millisecond,
			})
			require.NoError(t, err)
			g.Go(func() error { return worker.Run(gctx) })
		}
		require.NoError(t, g.Wait())

		outstanding, err = OutstandingJobs(ctx, pool, []string{tasks.SumTaskName})
		require.NoError(t, err)
		assert.Equal(t, int64(0), outstanding)

		var completed, withWorker int
		err = pool.QueryRow(ctx, `
SELECT COUNT(*) FILTER (WHERE status = 'COMPLETED'),
       COUNT(*) FILTER (WHERE starts_with(result->>'worker_name', 'test_') AND starts_with(worker_name, 'test_'))
FROM job_results`).Scan(&completed, &withWorker)
		require.NoError(t, err)
		assert.Equal(t, 10, completed)
		assert.Equal(t, 10, withWorker)
	})
}

func withQueueDb(t *testing.T, action func(ctx context.Context, pool *pgxpool.Pool)) {
	migrations, err := lifecycle.Migrations()
	require.NoError(t, err)
	err = database.WithTestDb(migrations, func(pool *pgxpool.Pool) error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := Migrate(ctx, pool); err != nil {
			return err
		}
		action(ctx, pool)
		return nil
	})
	if errors.Is(err, database.ErrTestDbUnavailable) {
		t.Skipf("skipping: %v", err)
	}
	require.NoError(t, err)
}
