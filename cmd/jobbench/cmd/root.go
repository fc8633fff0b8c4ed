package cmd

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	commonconfig "github.com/armadaproject/jobbench/internal/common/config"
	"github.com/armadaproject/jobbench/internal/common/database"
	"github.com/armadaproject/jobbench/internal/jobbench/configuration"
)

const (
	CustomConfigLocation string = "config"
)

func RootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "jobbench",
		SilenceUsage: true,
		Short:        "Benchmarks a Postgres backed job queue and records every job's lifecycle",
	}

	cmd.PersistentFlags().StringSlice(
		CustomConfigLocation,
		[]string{},
		"Fully qualified path to application configuration file (for multiple config files repeat this arg or separate paths with commas)")

	cmd.AddCommand(
		dbCmd(),
		schemaCmd(),
		generateCmd(),
		workerCmd(),
		workersCmd(),
		monitorCmd(),
		verifyCmd(),
		runCmd(),
	)

	return cmd
}

func configFiles(cmd *cobra.Command) []string {
	files, _ := cmd.Flags().GetStringSlice(CustomConfigLocation)
	return files
}

// configArgs repeats the --config flags of this process for a child process.
func configArgs(cmd *cobra.Command) []string {
	var args []string
	for _, f := range configFiles(cmd) {
		args = append(args, "--"+CustomConfigLocation, f)
	}
	return args
}

// loadConfig reads the configuration, lets override apply command line flags, then validates the result.
func loadConfig(cmd *cobra.Command, override func(flags *pflag.FlagSet, config *configuration.Configuration)) (configuration.Configuration, error) {
	config, _, err := configuration.Load(configFiles(cmd))
	if err != nil {
		return config, err
	}
	if override != nil {
		override(cmd.Flags(), &config)
	}
	if err := config.Validate(); err != nil {
		commonconfig.LogValidationErrors(err)
		return config, err
	}
	return config, nil
}

func openPool(ctx context.Context, config database.PostgresConfig, maxConns int) (*pgxpool.Pool, error) {
	if maxConns > 0 {
		config.MaxConns = maxConns
	}
	return database.OpenPgxPool(ctx, config)
}

func intFlag(flags *pflag.FlagSet, name string, target *int) {
	if flags.Changed(name) {
		*target, _ = flags.GetInt(name)
	}
}

func durationFlag(flags *pflag.FlagSet, name string, target *time.Duration) {
	if flags.Changed(name) {
		*target, _ = flags.GetDuration(name)
	}
}

func float64Flag(flags *pflag.FlagSet, name string, target *float64) {
	if flags.Changed(name) {
		*target, _ = flags.GetFloat64(name)
	}
}
