package configuration

import (
	"time"

	"k8s.io/apimachinery/pkg/api/resource"

	"github.com/armadaproject/jobbench/internal/common/database"
)

type Configuration struct {
	Postgres     database.PostgresConfig
	Container    ContainerConfig
	Benchmark    BenchmarkConfig
	Monitor      MonitorConfig
	Orchestrator OrchestratorConfig
	Metrics      MetricsConfig
}

// ContainerConfig describes the Postgres container the orchestrator resets before each run.
type ContainerConfig struct {
	Name     string `validate:"required"`
	Image    string `validate:"required"`
	HostPort int    `validate:"gt=0,lte=65535"`
	Password string `validate:"required"`
	// Fractional CPUs granted to the container.
	Cpus float64 `validate:"gt=0"`
	// Memory limit, e.g. 2Gi. Also drives the advisory connection capacity check.
	Memory resource.Quantity
	// Passed to postgres as -c max_connections.
	MaxConnections int           `validate:"gt=0"`
	ReadyTimeout   time.Duration `validate:"gt=0"`
}

// MemoryMB is the container memory limit in mebibytes.
func (c ContainerConfig) MemoryMB() int64 {
	return c.Memory.Value() / (1024 * 1024)
}

type BenchmarkConfig struct {
	// Number of jobs enqueued by the generate stage.
	MaxJobs int `validate:"gt=0"`
	// Mean simulated work per job. Individual jobs sleep uniformly in [0, 2*AvgDuration].
	AvgDuration time.Duration `validate:"gte=0"`
	// Worker processes launched by the workers stage.
	NumWorkers int `validate:"gt=0"`
	// Jobs executed concurrently by each worker process.
	Concurrency int `validate:"gt=0"`
	// Attempts per job before river discards it.
	MaxAttempts int `validate:"gt=0"`
	// Probability that a simulated job fails.
	FailureRate     float64 `validate:"gte=0,lte=1"`
	InsertBatchSize int     `validate:"gt=0"`
	// Jobs inserted per second. Zero means unlimited.
	InsertRate        float64       `validate:"gte=0"`
	DrainPollInterval time.Duration `validate:"gt=0"`
}

type MonitorConfig struct {
	Interval time.Duration `validate:"gt=0"`
	// Upper bound on a sampler run; normally the orchestrator stops it earlier.
	Duration time.Duration `validate:"gt=0"`
	// How long a stopped sampler gets to finalize before it is killed.
	StopGracePeriod time.Duration `validate:"gt=0"`
}

type OrchestratorConfig struct {
	// Each run writes its logs and artifacts to OutputRoot/<run id>.
	OutputRoot string `validate:"required"`
	// When false the Reset database stage is skipped and an existing server is used.
	ManageContainer bool
}

type MetricsConfig struct {
	// Port for worker /metrics and /health. Zero disables the endpoint. Worker i of a fleet, counting from one, listens on Port+i-1.
	Port uint16
}
