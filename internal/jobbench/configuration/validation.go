package configuration

import (
	"github.com/pkg/errors"

	commonconfig "github.com/armadaproject/jobbench/internal/common/config"
)

// Validate checks struct tags first and then the constraints that tags cannot express.
func (c Configuration) Validate() error {
	if err := commonconfig.Validate(c); err != nil {
		return err
	}
	if c.Container.Memory.Sign() <= 0 {
		return errors.New("container.memory must be positive")
	}
	if c.Monitor.Duration < c.Monitor.Interval {
		return errors.New("monitor.duration must be at least monitor.interval")
	}
	if c.Benchmark.MaxAttempts > 1000 {
		return errors.New("benchmark.maxAttempts must be at most 1000")
	}
	for _, key := range []string{"host", "port", "user", "dbname"} {
		if c.Postgres.Connection[key] == "" {
			return errors.Errorf("postgres.connection.%s must be set", key)
		}
	}
	return nil
}
