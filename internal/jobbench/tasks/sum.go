package tasks

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/armadaproject/jobbench/internal/common/logging"
	"github.com/armadaproject/jobbench/internal/jobbench/telemetry"
)

// SumTaskName is the queue kind of the benchmark task.
const SumTaskName = "sum_with_persistence"

const (
	minPaddingLength = 100
	maxPaddingLength = 2500
)

// ErrSimulatedFailure is returned by jobs chosen to fail by their FailureRate.
var ErrSimulatedFailure = errors.New("simulated failure")

// SumArgs are the enqueued arguments of a benchmark job.
type SumArgs struct {
	A int `json:"a"`
	B int `json:"b"`
	// Mean simulated work. Each attempt sleeps uniformly in [0, 2*AvgSleep].
	AvgSleep time.Duration `json:"avg_sleep"`
	// Probability in [0, 1] that an attempt fails after sleeping.
	FailureRate float64 `json:"failure_rate,omitempty"`
}

// Kind names the job type for the queue.
func (SumArgs) Kind() string {
	return SumTaskName
}

// SumOutput is what a successful attempt produces. Padding inflates the stored payload to a realistic size.
type SumOutput struct {
	Result  int    `json:"result"`
	JobID   int64  `json:"job_id"`
	Padding string `json:"long_string"`
}

// Sum adds two numbers after a simulated delay.
type Sum struct {
	mu   sync.Mutex
	rand *rand.Rand
}

var _ telemetry.Task[SumArgs, SumOutput] = (*Sum)(nil)

func NewSum(seed int64) *Sum {
	return &Sum{rand: rand.New(rand.NewSource(seed))}
}

func (s *Sum) Run(ctx context.Context, job telemetry.Job, args SumArgs) (SumOutput, error) {
	delay, fail, padding := s.draw(args)
	logging.WithFields(map[string]any{"jobId": job.ID, "worker": job.WorkerName}).
		Debugf("Adding %d + %d after %s", args.A, args.B, delay)

	if err := Sleep(ctx, delay); err != nil {
		return SumOutput{}, err
	}
	if fail {
		return SumOutput{}, errors.Wrapf(ErrSimulatedFailure, "job %d attempt %d", job.ID, job.Attempt)
	}
	return SumOutput{
		Result:  args.A + args.B,
		JobID:   job.ID,
		Padding: strings.Repeat("x", padding),
	}, nil
}

func (s *Sum) draw(args SumArgs) (time.Duration, bool, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var delay time.Duration
	if args.AvgSleep > 0 {
		delay = time.Duration(s.rand.Int63n(int64(2*args.AvgSleep) + 1))
	}
	fail := args.FailureRate > 0 && s.rand.Float64() < args.FailureRate
	padding := minPaddingLength + s.rand.Intn(maxPaddingLength-minPaddingLength+1)
	return delay, fail, padding
}

// Sleep waits for d or until ctx is done, whichever comes first, without holding up other goroutines.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
