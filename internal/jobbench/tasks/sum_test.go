package tasks

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armadaproject/jobbench/internal/jobbench/telemetry"
)

var job = telemetry.Job{ID: 11, TaskName: SumTaskName, WorkerName: "w_1", Attempt: 1}

func TestSum_Run(t *testing.T) {
	out, err := NewSum(1).Run(context.Background(), job, SumArgs{A: 20, B: 22})

	require.NoError(t, err)
	assert.Equal(t, 42, out.Result)
	assert.Equal(t, int64(11), out.JobID)
	assert.GreaterOrEqual(t, len(out.Padding), minPaddingLength)
	assert.LessOrEqual(t, len(out.Padding), maxPaddingLength)
}

func TestSum_AlwaysFails(t *testing.T) {
	_, err := NewSum(1).Run(context.Background(), job, SumArgs{A: 1, B: 2, FailureRate: 1})
	assert.ErrorIs(t, err, ErrSimulatedFailure)
}

func TestSum_DelayWithinBounds(t *testing.T) {
	sum := NewSum(7)
	avg := 50 * time.Millisecond
	for i := 0; i < 1000; i++ {
		delay, fail, padding := sum.draw(SumArgs{AvgSleep: avg})
		assert.GreaterOrEqual(t, delay, time.Duration(0))
		assert.LessOrEqual(t, delay, 2*avg)
		assert.False(t, fail)
		assert.GreaterOrEqual(t, padding, minPaddingLength)
		assert.LessOrEqual(t, padding, maxPaddingLength)
	}
}

func TestSum_CancelledWhileSleeping(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := NewSum(1).Run(ctx, job, SumArgs{AvgSleep: time.Hour})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestSum_ConcurrentRunsDoNotBlockEachOther(t *testing.T) {
	sum := NewSum(3)
	args := SumArgs{AvgSleep: 100 * time.Millisecond}

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := sum.Run(context.Background(), job, args)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// Serialized execution would take roughly 20 * 100ms.
	assert.Less(t, time.Since(start), 1500*time.Millisecond)
}

func TestSleep(t *testing.T) {
	assert.NoError(t, Sleep(context.Background(), 0))
	assert.NoError(t, Sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.True(t, errors.Is(Sleep(ctx, time.Hour), context.Canceled))
}

func TestSumArgs_Json(t *testing.T) {
	payload, err := json.Marshal(SumArgs{A: 1, B: 2, AvgSleep: time.Second})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1,"b":2,"avg_sleep":1000000000}`, string(payload))
	assert.Equal(t, "sum_with_persistence", SumArgs{}.Kind())
}
