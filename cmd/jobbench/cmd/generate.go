package cmd

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/armadaproject/jobbench/internal/common/app"
	"github.com/armadaproject/jobbench/internal/jobbench/configuration"
	"github.com/armadaproject/jobbench/internal/jobbench/queue"
)

func generateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Enqueues the benchmark's sum jobs",
		RunE:  generate,
	}
	cmd.Flags().Int("max-jobs", 0, "Number of jobs to enqueue (default benchmark.maxJobs)")
	cmd.Flags().Duration("avg-duration", 0, "Average simulated work per job (default benchmark.avgDuration)")
	cmd.Flags().Float64("failure-rate", 0, "Probability that a job fails (default benchmark.failureRate)")
	cmd.Flags().Float64("rate", 0, "Jobs enqueued per second, 0 for unlimited (default benchmark.insertRate)")
	cmd.Flags().Int64("seed", 0, "Seed for the job operands (default: current time)")
	return cmd
}

func generate(cmd *cobra.Command, _ []string) error {
	config, err := loadConfig(cmd, func(flags *pflag.FlagSet, c *configuration.Configuration) {
		intFlag(flags, "max-jobs", &c.Benchmark.MaxJobs)
		durationFlag(flags, "avg-duration", &c.Benchmark.AvgDuration)
		float64Flag(flags, "failure-rate", &c.Benchmark.FailureRate)
		float64Flag(flags, "rate", &c.Benchmark.InsertRate)
	})
	if err != nil {
		return err
	}
	seed := time.Now().UnixNano()
	if cmd.Flags().Changed("seed") {
		seed, _ = cmd.Flags().GetInt64("seed")
	}
	ctx := app.CreateContextWithShutdown()

	pool, err := openPool(ctx, config.Postgres, 4)
	if err != nil {
		return err
	}
	defer pool.Close()
	client, err := queue.NewInsertClient(pool)
	if err != nil {
		return err
	}

	b := config.Benchmark
	_, err = queue.NewGenerator(queue.ClientInserter(client), queue.GeneratorConfig{
		MaxJobs:     b.MaxJobs,
		AvgDuration: b.AvgDuration,
		MaxAttempts: b.MaxAttempts,
		FailureRate: b.FailureRate,
		BatchSize:   b.InsertBatchSize,
		Rate:        b.InsertRate,
		Seed:        seed,
	}).Generate(ctx)
	return err
}
