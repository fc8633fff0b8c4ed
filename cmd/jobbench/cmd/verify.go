package cmd

import (
	"github.com/spf13/cobra"

	"github.com/armadaproject/jobbench/internal/common/app"
	"github.com/armadaproject/jobbench/internal/common/database"
	"github.com/armadaproject/jobbench/internal/common/logging"
	"github.com/armadaproject/jobbench/internal/jobbench/verify"
)

func verifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Reports what the workers with a given name prefix recorded in job_results",
		RunE:  runVerify,
	}
	cmd.Flags().String("prefix", "worker-", "The prefix of the worker name to filter results by")
	cmd.Flags().String("output", "", "Also write the report as JSON to this file")
	return cmd
}

func runVerify(cmd *cobra.Command, _ []string) error {
	config, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}
	prefix, _ := cmd.Flags().GetString("prefix")
	output, _ := cmd.Flags().GetString("output")
	ctx := app.CreateContextWithShutdown()

	pool, err := openPool(ctx, config.Postgres, 2)
	if err != nil {
		return err
	}
	defer pool.Close()
	logging.Infof("Connected to %s", database.Describe(config.Postgres))

	report, err := verify.Run(ctx, pool, prefix)
	if err != nil {
		return err
	}
	if err := verify.RenderText(cmd.OutOrStdout(), report); err != nil {
		return err
	}
	if output != "" {
		if err := verify.WriteJSON(output, report); err != nil {
			return err
		}
		logging.Infof("Report %s written to %s", report.ID, output)
	}
	return nil
}
