package orchestrator

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"
	"k8s.io/utils/clock"

	"github.com/armadaproject/jobbench/internal/common/logging"
	"github.com/armadaproject/jobbench/internal/jobbench/configuration"
)

const (
	MonitorLogName = "monitoring.log"
	ReportFileName = "verification.json"
)

// Stage is one step of a run, backed by one jobbench subcommand.
type Stage struct {
	Name string
	Args []string
	// State reached once the stage succeeds.
	Reaches State
	// State entered while the stage runs, if different from the previous one.
	Entering State
	// Whether the sampler runs for the duration of this stage.
	Sampled bool
}

// LogFileName is where a stage's combined output goes inside the run directory.
func (s Stage) LogFileName() string {
	return strings.ReplaceAll(s.Name, " ", "_") + ".log"
}

type Result struct {
	RunID   string
	RunDir  string
	Prefix  string
	State   State
	Elapsed time.Duration
}

// Runner drives one benchmark run from database reset to verification, one stage process at a time.
type Runner struct {
	config   configuration.Configuration
	launcher Launcher
	clock    clock.Clock
	// Appended to every subcommand, e.g. --config flags.
	commonArgs []string
}

func NewRunner(config configuration.Configuration, launcher Launcher, clock clock.Clock, commonArgs []string) *Runner {
	return &Runner{
		config:     config,
		launcher:   launcher,
		clock:      clock,
		commonArgs: commonArgs,
	}
}

// RunID names a run after the parameters that distinguish it from other runs.
func RunID(benchmark configuration.BenchmarkConfig, container configuration.ContainerConfig) string {
	return fmt.Sprintf("jobs%d_dur%s_w%d_c%d_conn%d",
		benchmark.MaxJobs,
		strconv.FormatFloat(benchmark.AvgDuration.Seconds(), 'f', -1, 64),
		benchmark.NumWorkers,
		benchmark.Concurrency,
		container.MaxConnections,
	)
}

// Prefix is the worker name prefix of a run started at now.
func Prefix(now time.Time) string {
	return fmt.Sprintf("w_%d_", now.Unix())
}

func (r *Runner) Stages(prefix, runDir string) []Stage {
	b := r.config.Benchmark
	var stages []Stage
	if r.config.Orchestrator.ManageContainer {
		stages = append(stages, Stage{
			Name:    "Reset database",
			Args:    []string{"db", "reset"},
			Reaches: StateInit,
		})
	}
	stages = append(stages,
		Stage{
			Name:    "Apply schema",
			Args:    []string{"schema", "apply"},
			Reaches: StateSchemaReady,
		},
		Stage{
			Name: "Generate jobs",
			Args: []string{
				"generate",
				"--max-jobs", strconv.Itoa(b.MaxJobs),
				"--avg-duration", b.AvgDuration.String(),
			},
			Reaches: StateJobsGenerated,
		},
		Stage{
			Name: "Worker execution",
			Args: []string{
				"workers",
				"--count", strconv.Itoa(b.NumWorkers),
				"--prefix", prefix,
				"--concurrency", strconv.Itoa(b.Concurrency),
			},
			Entering: StateWorkersRunning,
			Reaches:  StateWorkersDrained,
			Sampled:  true,
		},
		Stage{
			Name: "Result check",
			Args: []string{
				"verify",
				"--prefix", prefix,
				"--output", filepath.Join(runDir, ReportFileName),
			},
			Reaches: StateVerified,
		},
	)
	for i := range stages {
		stages[i].Args = append(stages[i].Args, r.commonArgs...)
	}
	return stages
}

func (r *Runner) monitorArgs(runDir string) []string {
	return append([]string{"monitor", "--output-dir", runDir}, r.commonArgs...)
}

// Plan writes the stages a run would execute without running anything.
func (r *Runner) Plan(out io.Writer) error {
	runID := RunID(r.config.Benchmark, r.config.Container)
	runDir := filepath.Join(r.config.Orchestrator.OutputRoot, runID)
	prefix := Prefix(r.clock.Now())

	w := tabwriter.NewWriter(out, 1, 1, 2, ' ', 0)
	fmt.Fprintf(w, "Run\t%s\n", runID)
	fmt.Fprintf(w, "Directory\t%s\n", runDir)
	fmt.Fprintf(w, "Prefix\t%s\n\n", prefix)
	fmt.Fprintf(w, "STAGE\tREACHES\tLOG\tCOMMAND\n")
	for _, stage := range r.Stages(prefix, runDir) {
		fmt.Fprintf(w, "%s\t%s\t%s\tjobbench %s\n", stage.Name, stage.Reaches, stage.LogFileName(), strings.Join(stage.Args, " "))
		if stage.Sampled {
			fmt.Fprintf(w, "  (background)\t\t%s\tjobbench %s\n", MonitorLogName, strings.Join(r.monitorArgs(runDir), " "))
		}
	}
	return errors.WithStack(w.Flush())
}

// Run executes every stage in order and stops at the first one that fails, returning a *StageError.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	start := r.clock.Now()
	result := Result{
		RunID:  RunID(r.config.Benchmark, r.config.Container),
		Prefix: Prefix(start),
		State:  StateInit,
	}
	result.RunDir = filepath.Join(r.config.Orchestrator.OutputRoot, result.RunID)

	b := r.config.Benchmark
	logging.
		WithField("runId", result.RunID).
		WithField("prefix", result.Prefix).
		WithField("jobs", b.MaxJobs).
		WithField("avgDuration", b.AvgDuration.String()).
		WithField("workers", b.NumWorkers).
		WithField("concurrency", b.Concurrency).
		Info("Starting benchmark run")

	capacity := EstimateCapacity(b.NumWorkers, b.Concurrency, r.config.Container.MaxConnections, r.config.Container.MemoryMB())
	for _, warning := range capacity.Warnings() {
		logging.Warn(warning)
	}

	if err := os.MkdirAll(result.RunDir, 0o755); err != nil {
		return result, errors.WithStack(err)
	}

	completed := StateInit
	for _, stage := range r.Stages(result.Prefix, result.RunDir) {
		logPath := filepath.Join(result.RunDir, stage.LogFileName())
		if stage.Entering != StateInit {
			result.State = stage.Entering
		}
		logging.Infof("Stage %q started, logging to %s", stage.Name, logPath)
		stageStart := r.clock.Now()

		err := r.runStage(ctx, stage, logPath, result.RunDir)
		if err != nil {
			result.State = StateAborted
			result.Elapsed = r.clock.Since(start)
			stageErr := &StageError{
				Stage:         stage.Name,
				State:         stage.Reaches,
				LastCompleted: completed,
				LogPath:       logPath,
				Err:           err,
			}
			logging.
				WithError(err).
				WithField("stage", stage.Name).
				WithField("state", stage.Reaches.String()).
				WithField("lastCompleted", completed.String()).
				WithField("log", logPath).
				Error("Benchmark run aborted")
			return result, stageErr
		}
		result.State = stage.Reaches
		completed = stage.Reaches
		logging.Infof("Stage %q finished in %s, state %s", stage.Name, r.clock.Since(stageStart).Round(time.Millisecond), result.State)
	}

	result.State = StateDone
	result.Elapsed = r.clock.Since(start)
	logging.
		WithField("runId", result.RunID).
		WithField("runDir", result.RunDir).
		WithField("elapsed", result.Elapsed.Round(time.Second).String()).
		Info("Benchmark run complete")
	return result, nil
}

func (r *Runner) runStage(ctx context.Context, stage Stage, logPath, runDir string) error {
	logFile, err := os.Create(logPath)
	if err != nil {
		return errors.WithStack(err)
	}
	defer logFile.Close()

	var sampler Process
	if stage.Sampled {
		sampler = r.startSampler(runDir)
	}
	err = r.launcher.Run(ctx, stage.Args, logFile)
	if sampler != nil {
		r.stopSampler(sampler)
	}
	return err
}

func (r *Runner) startSampler(runDir string) Process {
	logPath := filepath.Join(runDir, MonitorLogName)
	logFile, err := os.Create(logPath)
	if err != nil {
		logging.WithError(err).Warn("Could not create monitoring log, running without the sampler")
		return nil
	}
	p, err := r.launcher.Start(r.monitorArgs(runDir), logFile)
	if err != nil {
		_ = logFile.Close()
		logging.WithError(err).Warn("Could not start the sampler, running without it")
		return nil
	}
	logging.Infof("Sampler started, logging to %s", logPath)
	return &sampledProcess{Process: p, log: logFile}
}

func (r *Runner) stopSampler(p Process) {
	if err := p.Stop(r.config.Monitor.StopGracePeriod); err != nil {
		logging.WithError(err).Warnf("Sampler did not stop cleanly, see %s", MonitorLogName)
		return
	}
	logging.Info("Sampler stopped")
}

// sampledProcess closes the sampler's log once the sampler has stopped.
type sampledProcess struct {
	Process
	log *os.File
}

func (p *sampledProcess) Stop(grace time.Duration) error {
	err := p.Process.Stop(grace)
	_ = p.log.Close()
	return err
}
