package configuration

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/api/resource"
)

func TestLoad_DefaultsAreValid(t *testing.T) {
	config, _, err := Load(nil)
	require.NoError(t, err)
	require.NoError(t, config.Validate())

	assert.Equal(t, 1000, config.Benchmark.MaxJobs)
	assert.Equal(t, 3*time.Second, config.Benchmark.AvgDuration)
	assert.Equal(t, 4, config.Benchmark.MaxAttempts)
	assert.Equal(t, time.Second, config.Monitor.Interval)
	assert.Equal(t, 10*time.Second, config.Monitor.StopGracePeriod)
	assert.Equal(t, int64(2048), config.Container.MemoryMB())
	assert.Equal(t, "disable", config.Postgres.Connection["sslmode"])
	assert.True(t, config.Orchestrator.ManageContainer)
}

func TestLoad_OverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "override.yaml")
	require.NoError(t, os.WriteFile(path, []byte("benchmark:\n  numWorkers: 8\n  concurrency: 25\ncontainer:\n  memory: 4Gi\n"), 0o644))

	config, _, err := Load([]string{path})
	require.NoError(t, err)
	assert.Equal(t, 8, config.Benchmark.NumWorkers)
	assert.Equal(t, 25, config.Benchmark.Concurrency)
	assert.Equal(t, int64(4096), config.Container.MemoryMB())
}

func TestLoad_EnvironmentVariable(t *testing.T) {
	t.Setenv("JOBBENCH_BENCHMARK_MAXJOBS", "50")

	config, _, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, 50, config.Benchmark.MaxJobs)
}

func TestConfiguration_Validate(t *testing.T) {
	valid, _, err := Load(nil)
	require.NoError(t, err)

	tests := []struct {
		name    string
		modify  func(*Configuration)
		wantErr bool
		errText string
	}{
		{
			name:   "valid configuration",
			modify: func(c *Configuration) {},
		},
		{
			name:    "zero jobs",
			modify:  func(c *Configuration) { c.Benchmark.MaxJobs = 0 },
			wantErr: true,
			errText: "MaxJobs",
		},
		{
			name:    "negative average duration",
			modify:  func(c *Configuration) { c.Benchmark.AvgDuration = -time.Second },
			wantErr: true,
			errText: "AvgDuration",
		},
		{
			name:    "failure rate above one",
			modify:  func(c *Configuration) { c.Benchmark.FailureRate = 1.5 },
			wantErr: true,
			errText: "FailureRate",
		},
		{
			name:    "zero memory",
			modify:  func(c *Configuration) { c.Container.Memory = resource.Quantity{} },
			wantErr: true,
			errText: "container.memory must be positive",
		},
		{
			name: "monitor duration shorter than interval",
			modify: func(c *Configuration) {
				c.Monitor.Interval = 10 * time.Second
				c.Monitor.Duration = time.Second
			},
			wantErr: true,
			errText: "monitor.duration must be at least monitor.interval",
		},
		{
			name:    "missing database name",
			modify:  func(c *Configuration) { delete(c.Postgres.Connection, "dbname") },
			wantErr: true,
			errText: "postgres.connection.dbname must be set",
		},
		{
			name:    "missing output root",
			modify:  func(c *Configuration) { c.Orchestrator.OutputRoot = "" },
			wantErr: true,
			errText: "OutputRoot",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := valid
			config.Postgres.Connection = map[string]string{}
			for k, v := range valid.Postgres.Connection {
				config.Postgres.Connection[k] = v
			}
			tt.modify(&config)

			err := config.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errText)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
