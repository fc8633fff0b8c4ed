package orchestrator

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/api/resource"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/armadaproject/jobbench/internal/jobbench/configuration"
)

type fakeLauncher struct {
	mu       sync.Mutex
	calls    []string
	failOn   map[string]error
	started  []string
	startErr error
	stopped  int
}

func (f *fakeLauncher) Run(_ context.Context, args []string, out io.Writer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, args[0])
	_, _ = fmt.Fprintf(out, "ran %s\n", strings.Join(args, " "))
	return f.failOn[args[0]]
}

func (f *fakeLauncher) Start(args []string, out io.Writer) (Process, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.started = append(f.started, strings.Join(args, " "))
	return &fakeProcess{launcher: f}, nil
}

type fakeProcess struct {
	launcher *fakeLauncher
}

func (p *fakeProcess) Stop(time.Duration) error {
	p.launcher.mu.Lock()
	defer p.launcher.mu.Unlock()
	p.launcher.stopped++
	return nil
}

var startTime = time.Unix(1700000000, 0)

func testConfig(t *testing.T) configuration.Configuration {
	return configuration.Configuration{
		Container: configuration.ContainerConfig{
			MaxConnections: 100,
			Memory:         resource.MustParse("2Gi"),
		},
		Benchmark: configuration.BenchmarkConfig{
			MaxJobs:     200,
			AvgDuration: 3 * time.Second,
			NumWorkers:  2,
			Concurrency: 10,
		},
		Monitor:      configuration.MonitorConfig{StopGracePeriod: time.Second},
		Orchestrator: configuration.OrchestratorConfig{OutputRoot: t.TempDir(), ManageContainer: true},
	}
}

func TestRunID(t *testing.T) {
	config := testConfig(t)
	assert.Equal(t, "jobs200_dur3_w2_c10_conn100", RunID(config.Benchmark, config.Container))
	config.Benchmark.AvgDuration = 500 * time.Millisecond
	assert.Equal(t, "jobs200_dur0.5_w2_c10_conn100", RunID(config.Benchmark, config.Container))
	assert.Equal(t, "w_1700000000_", Prefix(startTime))
}

func TestRunner_RunsEveryStage(t *testing.T) {
	config := testConfig(t)
	launcher := &fakeLauncher{}
	runner := NewRunner(config, launcher, clocktesting.NewFakeClock(startTime), []string{"--config", "bench.yaml"})

	result, err := runner.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, StateDone, result.State)
	assert.Equal(t, "w_1700000000_", result.Prefix)
	assert.Equal(t, []string{"db", "schema", "generate", "workers", "verify"}, launcher.calls)
	assert.Equal(t, []string{"monitor --output-dir " + result.RunDir + " --config bench.yaml"}, launcher.started)
	assert.Equal(t, 1, launcher.stopped)

	for _, name := range []string{"Reset_database.log", "Apply_schema.log", "Generate_jobs.log", "Worker_execution.log", "Result_check.log", MonitorLogName} {
		assert.FileExists(t, filepath.Join(result.RunDir, name))
	}
	log, err := os.ReadFile(filepath.Join(result.RunDir, "Worker_execution.log"))
	require.NoError(t, err)
	assert.Equal(t, "ran workers --count 2 --prefix w_1700000000_ --concurrency 10 --config bench.yaml\n", string(log))
}

func TestRunner_AbortsOnSchemaFailure(t *testing.T) {
	config := testConfig(t)
	launcher := &fakeLauncher{failOn: map[string]error{"schema": errors.New("exit status 1")}}
	runner := NewRunner(config, launcher, clocktesting.NewFakeClock(startTime), nil)

	result, err := runner.Run(context.Background())

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, "Apply schema", stageErr.Stage)
	assert.Equal(t, StateSchemaReady, stageErr.State)
	assert.Equal(t, StateInit, stageErr.LastCompleted)
	assert.Equal(t, filepath.Join(result.RunDir, "Apply_schema.log"), stageErr.LogPath)
	assert.Equal(t, StateAborted, result.State)
	assert.Equal(t, []string{"db", "schema"}, launcher.calls)
	assert.Empty(t, launcher.started)
}

func TestRunner_StopsSamplerWhenWorkersFail(t *testing.T) {
	config := testConfig(t)
	launcher := &fakeLauncher{failOn: map[string]error{"workers": errors.New("worker w_1 failed")}}
	runner := NewRunner(config, launcher, clocktesting.NewFakeClock(startTime), nil)

	_, err := runner.Run(context.Background())

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StateWorkersDrained, stageErr.State)
	assert.Equal(t, StateJobsGenerated, stageErr.LastCompleted)
	assert.Len(t, launcher.started, 1)
	assert.Equal(t, 1, launcher.stopped)
	assert.NotContains(t, launcher.calls, "verify")
}

func TestRunner_SamplerFailureIsNotFatal(t *testing.T) {
	config := testConfig(t)
	launcher := &fakeLauncher{startErr: errors.New("exec format error")}
	runner := NewRunner(config, launcher, clocktesting.NewFakeClock(startTime), nil)

	result, err := runner.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, StateDone, result.State)
	assert.Equal(t, 0, launcher.stopped)
}

func TestRunner_SkipsResetForExternalDatabase(t *testing.T) {
	config := testConfig(t)
	config.Orchestrator.ManageContainer = false
	launcher := &fakeLauncher{}
	runner := NewRunner(config, launcher, clocktesting.NewFakeClock(startTime), nil)

	_, err := runner.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"schema", "generate", "workers", "verify"}, launcher.calls)
}

func TestRunner_Plan(t *testing.T) {
	config := testConfig(t)
	launcher := &fakeLauncher{}
	runner := NewRunner(config, launcher, clocktesting.NewFakeClock(startTime), nil)

	var out bytes.Buffer
	require.NoError(t, runner.Plan(&out))

	assert.Empty(t, launcher.calls)
	assert.Contains(t, out.String(), "jobs200_dur3_w2_c10_conn100")
	assert.Contains(t, out.String(), "jobbench verify --prefix w_1700000000_")
	assert.Contains(t, out.String(), "jobbench monitor --output-dir")
	assert.NoDirExists(t, filepath.Join(config.Orchestrator.OutputRoot, RunID(config.Benchmark, config.Container)))
}

func TestCapacityWarnings(t *testing.T) {
	tests := map[string]struct {
		workers, concurrency, maxConnections int
		memoryMB                             int64
		expected                             int
	}{
		"fits":                          {workers: 2, concurrency: 10, maxConnections: 100, memoryMB: 2048, expected: 0},
		"too many workers":              {workers: 10, concurrency: 20, maxConnections: 100, memoryMB: 2048, expected: 1},
		"max connections beyond memory": {workers: 2, concurrency: 10, maxConnections: 500, memoryMB: 1024, expected: 1},
		"both":                          {workers: 50, concurrency: 20, maxConnections: 500, memoryMB: 1024, expected: 2},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			capacity := EstimateCapacity(tc.workers, tc.concurrency, tc.maxConnections, tc.memoryMB)
			assert.Len(t, capacity.Warnings(), tc.expected)
		})
	}
	assert.Equal(t, 194, EstimateCapacity(1, 1, 1, 2048).Safe)
}
