package orchestrator

import (
	"context"
	"io"
	"strconv"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/armadaproject/jobbench/internal/common/logging"
)

type FleetConfig struct {
	Count       int
	Prefix      string
	Concurrency int
	// Worker i listens on MetricsPort+i-1. Zero leaves the endpoint off.
	MetricsPort uint16
	// Appended to every worker's arguments.
	CommonArgs []string
}

// WorkerName is the name of the i-th worker of a fleet, counting from one.
func WorkerName(prefix string, i int) string {
	return prefix + strconv.Itoa(i)
}

// RunFleet runs Count worker processes side by side until each has drained the queue. Every worker runs to
// completion even when a sibling fails, and every failure is reported.
func RunFleet(ctx context.Context, launcher Launcher, config FleetConfig, out io.Writer) error {
	if config.Count <= 0 {
		return errors.Errorf("worker count must be positive, got %d", config.Count)
	}
	shared := &syncWriter{w: out}

	var mu sync.Mutex
	var result *multierror.Error
	var wg sync.WaitGroup
	for i := 1; i <= config.Count; i++ {
		name := WorkerName(config.Prefix, i)
		args := []string{
			"worker",
			"--name", name,
			"--concurrency", strconv.Itoa(config.Concurrency),
			"--exit-when-drained",
		}
		if config.MetricsPort > 0 {
			args = append(args, "--metrics-port", strconv.Itoa(int(config.MetricsPort)+i-1))
		}
		args = append(args, config.CommonArgs...)
		wg.Add(1)
		go func() {
			defer wg.Done()
			logging.Infof("Starting worker %s", name)
			if err := launcher.Run(ctx, args, shared); err != nil {
				logging.WithError(err).Errorf("Worker %s failed", name)
				mu.Lock()
				result = multierror.Append(result, errors.WithMessagef(err, "worker %s", name))
				mu.Unlock()
				return
			}
			logging.Infof("Worker %s finished", name)
		}()
	}
	wg.Wait()
	return result.ErrorOrNil()
}

// syncWriter serialises writes from concurrently running workers.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
