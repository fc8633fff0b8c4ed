package queue

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/riverqueue/river"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armadaproject/jobbench/internal/jobbench/tasks"
)

type recordingInserter struct {
	batches [][]river.InsertManyParams
	failOn  int
}

func (r *recordingInserter) insert(_ context.Context, params []river.InsertManyParams) error {
	if r.failOn > 0 && len(r.batches)+1 == r.failOn {
		return errors.New("database unavailable")
	}
	r.batches = append(r.batches, append([]river.InsertManyParams(nil), params...))
	return nil
}

func (r *recordingInserter) all() []river.InsertManyParams {
	var all []river.InsertManyParams
	for _, b := range r.batches {
		all = append(all, b...)
	}
	return all
}

func TestGenerator_BatchesAllJobs(t *testing.T) {
	inserter := &recordingInserter{}
	generator := NewGenerator(inserter.insert, GeneratorConfig{
		MaxJobs:     25,
		AvgDuration: 3 * time.Second,
		MaxAttempts: 4,
		BatchSize:   10,
		Seed:        42,
	})

	n, err := generator.Generate(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 25, n)
	require.Len(t, inserter.batches, 3)
	assert.Len(t, inserter.batches[0], 10)
	assert.Len(t, inserter.batches[1], 10)
	assert.Len(t, inserter.batches[2], 5)

	all := inserter.all()
	first := all[0].Args.(tasks.SumArgs)
	for i, params := range all {
		args, ok := params.Args.(tasks.SumArgs)
		require.True(t, ok)
		assert.Equal(t, first.A*(i+1), args.A)
		assert.Equal(t, first.B*(i+1), args.B)
		assert.Equal(t, 3*time.Second, args.AvgSleep)
		require.NotNil(t, params.InsertOpts)
		assert.Equal(t, 4, params.InsertOpts.MaxAttempts)
	}
	assert.GreaterOrEqual(t, first.A, 1)
	assert.LessOrEqual(t, first.A, 100)
}

func TestGenerator_StopsOnInsertError(t *testing.T) {
	inserter := &recordingInserter{failOn: 2}
	generator := NewGenerator(inserter.insert, GeneratorConfig{MaxJobs: 30, BatchSize: 10, MaxAttempts: 1})

	n, err := generator.Generate(context.Background())

	assert.ErrorContains(t, err, "database unavailable")
	assert.Equal(t, 10, n)
	assert.Len(t, inserter.batches, 1)
}

func TestGenerator_RateLimited(t *testing.T) {
	inserter := &recordingInserter{}
	generator := NewGenerator(inserter.insert, GeneratorConfig{MaxJobs: 30, BatchSize: 10, MaxAttempts: 1, Rate: 100})

	start := time.Now()
	n, err := generator.Generate(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 30, n)
	// The burst covers all 30 jobs.
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestGenerator_CancelledWhileWaitingForRate(t *testing.T) {
	inserter := &recordingInserter{}
	generator := NewGenerator(inserter.insert, GeneratorConfig{MaxJobs: 100, BatchSize: 1, MaxAttempts: 1, Rate: 1})
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	n, err := generator.Generate(ctx)

	assert.Error(t, err)
	assert.Less(t, n, 100)
}
