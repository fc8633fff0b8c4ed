package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"
)

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeResources struct {
	usage    ResourceUsage
	checkErr error
	onUsage  func()
}

func (f *fakeResources) Check(context.Context) error {
	return f.checkErr
}

func (f *fakeResources) Usage(context.Context) (ResourceUsage, error) {
	if f.onUsage != nil {
		f.onUsage()
	}
	return f.usage, nil
}

type fakeActivity struct {
	mu       sync.Mutex
	calls    int
	failOn   int
	checkErr error
}

func (f *fakeActivity) Check(context.Context) error {
	return f.checkErr
}

func (f *fakeActivity) Activity(context.Context) (StoreActivity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failOn > 0 && f.calls == f.failOn {
		return StoreActivity{}, errors.New("connection reset")
	}
	return StoreActivity{
		TotalConnections:  int64(10 + f.calls),
		ActiveConnections: int64(f.calls),
		IdleConnections:   10,
		LockWaits:         int64(f.calls % 2),
	}, nil
}

type memorySink struct {
	mu      sync.Mutex
	samples []Sample
}

func (m *memorySink) Write(s Sample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = append(m.samples, s)
	return nil
}

type runResult struct {
	samples []Sample
	err     error
}

// drive advances the fake clock by step each time the sampler blocks, until run returns.
func drive(t *testing.T, clock *clocktesting.FakeClock, step time.Duration, run func() ([]Sample, error)) runResult {
	t.Helper()
	done := make(chan runResult, 1)
	go func() {
		samples, err := run()
		done <- runResult{samples: samples, err: err}
	}()
	deadline := time.After(10 * time.Second)
	for {
		select {
		case r := <-done:
			return r
		case <-deadline:
			require.FailNow(t, "sampler did not finish")
		default:
			if clock.HasWaiters() {
				clock.Step(step)
			} else {
				time.Sleep(time.Millisecond)
			}
		}
	}
}

func TestSampler_TakesOneSamplePerInterval(t *testing.T) {
	tests := map[string]struct {
		duration time.Duration
		expected int
	}{
		"exact multiple":   {duration: 5 * time.Second, expected: 5},
		"partial interval": {duration: 5500 * time.Millisecond, expected: 6},
		"shorter than one": {duration: 200 * time.Millisecond, expected: 1},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			clock := clocktesting.NewFakeClock(baseTime)
			sink := &memorySink{}
			sampler := NewSampler(&fakeResources{}, &fakeActivity{}, sink, clock, time.Second, tc.duration)

			result := drive(t, clock, time.Second, func() ([]Sample, error) {
				return sampler.Run(context.Background())
			})

			require.NoError(t, result.err)
			require.Len(t, result.samples, tc.expected)
			assert.Equal(t, result.samples, sink.samples)
			for i, s := range result.samples {
				assert.True(t, baseTime.Add(time.Duration(i)*time.Second).Equal(s.Timestamp), "sample %d at %s", i, s.Timestamp)
			}
		})
	}
}

func TestSampler_NoWaitWhenOverBudget(t *testing.T) {
	clock := clocktesting.NewFakeClock(baseTime)
	resources := &fakeResources{onUsage: func() { clock.Step(1500 * time.Millisecond) }}
	sampler := NewSampler(resources, &fakeActivity{}, &memorySink{}, clock, time.Second, 5*time.Second)

	samples, err := sampler.Run(context.Background())

	require.NoError(t, err)
	require.Len(t, samples, 4)
	for i := 1; i < len(samples); i++ {
		assert.Equal(t, 1500*time.Millisecond, samples[i].Timestamp.Sub(samples[i-1].Timestamp))
	}
}

func TestSampler_CancelledWhileWaiting(t *testing.T) {
	clock := clocktesting.NewFakeClock(baseTime)
	sampler := NewSampler(&fakeResources{}, &fakeActivity{}, &memorySink{}, clock, time.Second, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan runResult, 1)
	go func() {
		samples, err := sampler.Run(ctx)
		done <- runResult{samples: samples, err: err}
	}()
	require.Eventually(t, clock.HasWaiters, 5*time.Second, time.Millisecond)
	cancel()

	select {
	case r := <-done:
		assert.NoError(t, r.err)
		assert.Len(t, r.samples, 1)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "sampler ignored cancellation")
	}
}

func TestSampler_StopsOnCollectionError(t *testing.T) {
	clock := clocktesting.NewFakeClock(baseTime)
	sampler := NewSampler(&fakeResources{}, &fakeActivity{failOn: 3}, &memorySink{}, clock, time.Second, time.Minute)

	result := drive(t, clock, time.Second, func() ([]Sample, error) {
		return sampler.Run(context.Background())
	})

	assert.ErrorContains(t, result.err, "connection reset")
	assert.Len(t, result.samples, 2)
}

func TestSampler_RoundsResourceUsage(t *testing.T) {
	clock := clocktesting.NewFakeClock(baseTime)
	resources := &fakeResources{usage: ResourceUsage{CPUPercent: 12.3456, MemoryPercent: 0.005, MemoryUsageMB: 511.999}}
	sampler := NewSampler(resources, &fakeActivity{}, &memorySink{}, clock, time.Second, time.Second)

	result := drive(t, clock, time.Second, func() ([]Sample, error) {
		return sampler.Run(context.Background())
	})

	require.NoError(t, result.err)
	require.Len(t, result.samples, 1)
	assert.Equal(t, 12.35, result.samples[0].CPUPercent)
	assert.Equal(t, 0.01, result.samples[0].MemoryPercent)
	assert.Equal(t, 512.0, result.samples[0].MemoryUsageMB)
}
