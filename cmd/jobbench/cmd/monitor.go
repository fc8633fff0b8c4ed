package cmd

import (
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"k8s.io/utils/clock"

	"github.com/armadaproject/jobbench/internal/common/app"
	"github.com/armadaproject/jobbench/internal/jobbench/configuration"
	"github.com/armadaproject/jobbench/internal/jobbench/dbcontainer"
	"github.com/armadaproject/jobbench/internal/jobbench/monitor"
)

func monitorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Samples the database container until stopped, then charts the samples",
		RunE:  runMonitor,
	}
	cmd.Flags().String("output-dir", ".", "Directory for "+monitor.DataFileName+" and "+monitor.ChartFileName)
	cmd.Flags().Duration("interval", 0, "Time between samples (default monitor.interval)")
	cmd.Flags().Duration("duration", 0, "Stop sampling after this long (default monitor.duration)")
	cmd.AddCommand(plotCmd())
	return cmd
}

func runMonitor(cmd *cobra.Command, _ []string) error {
	config, err := loadConfig(cmd, func(flags *pflag.FlagSet, c *configuration.Configuration) {
		durationFlag(flags, "interval", &c.Monitor.Interval)
		durationFlag(flags, "duration", &c.Monitor.Duration)
	})
	if err != nil {
		return err
	}
	outputDir, _ := cmd.Flags().GetString("output-dir")
	ctx := app.CreateContextWithShutdown()

	stats, err := dbcontainer.NewStatsSource(config.Container.Name)
	if err != nil {
		return err
	}
	defer stats.Close()
	pool, err := openPool(ctx, config.Postgres, 2)
	if err != nil {
		return err
	}
	defer pool.Close()

	return monitor.New(stats, monitor.NewPostgresActivity(pool), clock.RealClock{}, monitor.Config{
		Interval:  config.Monitor.Interval,
		Duration:  config.Monitor.Duration,
		OutputDir: outputDir,
	}).Run(ctx)
}

func plotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plot",
		Short: "Charts an existing " + monitor.DataFileName,
		RunE: func(cmd *cobra.Command, _ []string) error {
			input, _ := cmd.Flags().GetString("input")
			output, _ := cmd.Flags().GetString("output")
			if output == "" {
				output = filepath.Join(filepath.Dir(input), monitor.ChartFileName)
			}
			return monitor.Replot(input, output)
		},
	}
	cmd.Flags().String("input", monitor.DataFileName, "Sample file to chart")
	cmd.Flags().String("output", "", "Chart file (default: "+monitor.ChartFileName+" next to the input)")
	return cmd
}
