package cmd

import (
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/armadaproject/jobbench/internal/common/app"
	"github.com/armadaproject/jobbench/internal/common/database"
	"github.com/armadaproject/jobbench/internal/common/logging"
	"github.com/armadaproject/jobbench/internal/jobbench/dbcontainer"
	"github.com/armadaproject/jobbench/internal/jobbench/lifecycle"
	"github.com/armadaproject/jobbench/internal/jobbench/queue"
)

func dbCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Manages the benchmark's Postgres container",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Replaces the Postgres container with an empty one and waits until it accepts connections",
		RunE:  resetDatabase,
	})
	return cmd
}

func resetDatabase(cmd *cobra.Command, _ []string) error {
	config, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}
	ctx := app.CreateContextWithShutdown()

	manager, err := dbcontainer.NewManager(config.Container)
	if err != nil {
		return err
	}
	defer manager.Close()

	start := time.Now()
	if err := manager.Reset(ctx); err != nil {
		return err
	}
	// Wait on the server's maintenance database, since the configured one may not exist yet.
	if err := manager.WaitReady(ctx, config.Postgres.WithDatabase("postgres")); err != nil {
		return err
	}
	logging.Infof("Database reset in %s", time.Since(start).Round(time.Millisecond))
	return nil
}

func schemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Manages the job_results and river schemas",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "apply",
		Short: "Creates the database if needed and migrates it to the latest version",
		RunE:  applySchema,
	})
	return cmd
}

func applySchema(cmd *cobra.Command, _ []string) error {
	config, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}
	ctx := app.CreateContextWithShutdown()
	start := time.Now()

	created, err := database.EnsureDatabase(ctx, config.Postgres)
	if err != nil {
		return err
	}
	if created {
		logging.Infof("Created database %s", config.Postgres.Connection["dbname"])
	}

	pool, err := openPool(ctx, config.Postgres, 2)
	if err != nil {
		return err
	}
	defer pool.Close()

	migrations, err := lifecycle.Migrations()
	if err != nil {
		return err
	}
	if err := database.UpdateDatabase(ctx, pool, migrations); err != nil {
		return errors.WithMessage(err, "migrating job_results")
	}
	if err := queue.Migrate(ctx, pool); err != nil {
		return err
	}

	maxConnections, err := database.MaxConnections(ctx, pool)
	if err != nil {
		return err
	}
	logging.
		WithField("database", database.Describe(config.Postgres)).
		WithField("maxConnections", maxConnections).
		Infof("Schema applied in %s", time.Since(start).Round(time.Millisecond))
	return nil
}
