package cmd

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/armadaproject/jobbench/internal/common/app"
	"github.com/armadaproject/jobbench/internal/common/health"
	"github.com/armadaproject/jobbench/internal/common/logging"
	"github.com/armadaproject/jobbench/internal/jobbench/configuration"
	"github.com/armadaproject/jobbench/internal/jobbench/lifecycle"
	"github.com/armadaproject/jobbench/internal/jobbench/orchestrator"
	"github.com/armadaproject/jobbench/internal/jobbench/queue"
	"github.com/armadaproject/jobbench/internal/jobbench/tasks"
	"github.com/armadaproject/jobbench/internal/jobbench/telemetry"
)

func workerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Runs one worker process, recording every job it executes in job_results",
		RunE:  runWorker,
	}
	cmd.Flags().String("name", "", "Worker name, recorded on every job this worker runs")
	cmd.Flags().Int("concurrency", 0, "Jobs executed at once (default benchmark.concurrency)")
	cmd.Flags().StringSlice("queues", nil, "Queues to work (default: river's default queue)")
	cmd.Flags().Bool("exit-when-drained", false, "Exit once no job is left to do instead of waiting for more")
	cmd.Flags().Uint16("metrics-port", 0, "Port for /metrics and /health, 0 to disable (default metrics.port)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func runWorker(cmd *cobra.Command, _ []string) error {
	config, err := loadConfig(cmd, func(flags *pflag.FlagSet, c *configuration.Configuration) {
		intFlag(flags, "concurrency", &c.Benchmark.Concurrency)
		if flags.Changed("metrics-port") {
			c.Metrics.Port, _ = flags.GetUint16("metrics-port")
		}
	})
	if err != nil {
		return err
	}
	name, _ := cmd.Flags().GetString("name")
	queues, _ := cmd.Flags().GetStringSlice("queues")
	exitWhenDrained, _ := cmd.Flags().GetBool("exit-when-drained")
	ctx := app.CreateContextWithShutdown()

	// River holds a few connections of its own on top of one per running job.
	pool, err := openPool(ctx, config.Postgres, config.Benchmark.Concurrency+2)
	if err != nil {
		return err
	}
	defer pool.Close()

	metrics := telemetry.NewMetrics()
	executor := telemetry.Wrap[tasks.SumArgs, tasks.SumOutput](lifecycle.NewPostgresStore(pool), tasks.NewSum(time.Now().UnixNano()), metrics)
	worker, err := queue.NewWorker(pool, executor, queue.WorkerConfig{
		Name:              name,
		Concurrency:       config.Benchmark.Concurrency,
		Queues:            queues,
		ExitWhenDrained:   exitWhenDrained,
		DrainPollInterval: config.Benchmark.DrainPollInterval,
	})
	if err != nil {
		return err
	}

	if config.Metrics.Port > 0 {
		shutdown, err := serveMetrics(config.Metrics.Port, metrics, health.CheckFunc(worker.Healthy))
		if err != nil {
			return err
		}
		defer shutdown()
	}
	return worker.Run(ctx)
}

func serveMetrics(port uint16, metrics *telemetry.Metrics, checker health.Checker) (func(), error) {
	logHook := logging.NewPrometheusHook()
	logging.ReplaceStdLogger(logging.StdLogger().WithHook(logHook))

	registry := prometheus.NewRegistry()
	if err := registry.Register(metrics); err != nil {
		return nil, errors.WithStack(err)
	}
	registry.MustRegister(
		logHook,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	health.SetupHttpMux(mux, checker)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logging.Infof("Serving metrics and health on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.WithError(err).Error("Metrics server failed")
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logging.WithError(err).Warn("Metrics server did not shut down cleanly")
		}
	}, nil
}

func workersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workers",
		Short: "Runs a fleet of worker processes until they have drained the queue",
		RunE:  runWorkers,
	}
	cmd.Flags().Int("count", 0, "Worker processes (default benchmark.numWorkers)")
	cmd.Flags().String("prefix", "worker-", "Worker name prefix; worker i is named <prefix><i>")
	cmd.Flags().Int("concurrency", 0, "Jobs executed at once by each worker (default benchmark.concurrency)")
	return cmd
}

func runWorkers(cmd *cobra.Command, _ []string) error {
	config, err := loadConfig(cmd, func(flags *pflag.FlagSet, c *configuration.Configuration) {
		intFlag(flags, "count", &c.Benchmark.NumWorkers)
		intFlag(flags, "concurrency", &c.Benchmark.Concurrency)
	})
	if err != nil {
		return err
	}
	prefix, _ := cmd.Flags().GetString("prefix")
	ctx := app.CreateContextWithShutdown()

	launcher, err := orchestrator.NewExecLauncher(config.Monitor.StopGracePeriod)
	if err != nil {
		return err
	}
	start := time.Now()
	err = orchestrator.RunFleet(ctx, launcher, orchestrator.FleetConfig{
		Count:       config.Benchmark.NumWorkers,
		Prefix:      prefix,
		Concurrency: config.Benchmark.Concurrency,
		MetricsPort: config.Metrics.Port,
		CommonArgs:  configArgs(cmd),
	}, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	logging.Infof("%d workers drained the queue in %s", config.Benchmark.NumWorkers, time.Since(start).Round(time.Millisecond))
	return nil
}
