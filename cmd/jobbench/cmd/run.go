package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"k8s.io/utils/clock"

	"github.com/armadaproject/jobbench/internal/common/app"
	"github.com/armadaproject/jobbench/internal/jobbench/configuration"
	"github.com/armadaproject/jobbench/internal/jobbench/orchestrator"
)

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Runs a complete benchmark: reset, schema, generate, workers with monitoring, verify",
		RunE:  runBenchmark,
	}
	cmd.Flags().Int("max-jobs", 0, "Jobs to enqueue (default benchmark.maxJobs)")
	cmd.Flags().Duration("avg-duration", 0, "Average simulated work per job (default benchmark.avgDuration)")
	cmd.Flags().Int("workers", 0, "Worker processes (default benchmark.numWorkers)")
	cmd.Flags().Int("concurrency", 0, "Jobs executed at once by each worker (default benchmark.concurrency)")
	cmd.Flags().Bool("dry-run", false, "Print the stages that would run and exit")
	return cmd
}

func runBenchmark(cmd *cobra.Command, _ []string) error {
	config, err := loadConfig(cmd, func(flags *pflag.FlagSet, c *configuration.Configuration) {
		intFlag(flags, "max-jobs", &c.Benchmark.MaxJobs)
		durationFlag(flags, "avg-duration", &c.Benchmark.AvgDuration)
		intFlag(flags, "workers", &c.Benchmark.NumWorkers)
		intFlag(flags, "concurrency", &c.Benchmark.Concurrency)
	})
	if err != nil {
		return err
	}
	launcher, err := orchestrator.NewExecLauncher(config.Monitor.StopGracePeriod)
	if err != nil {
		return err
	}
	runner := orchestrator.NewRunner(config, launcher, clock.RealClock{}, configArgs(cmd))

	if dryRun, _ := cmd.Flags().GetBool("dry-run"); dryRun {
		return runner.Plan(cmd.OutOrStdout())
	}
	_, err = runner.Run(app.CreateContextWithShutdown())
	return err
}
