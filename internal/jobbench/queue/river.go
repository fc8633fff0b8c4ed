package queue

import (
	"context"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"

	"github.com/armadaproject/jobbench/internal/common/logging"
)

// Client is a river client over a pgx pool.
type Client = river.Client[pgx.Tx]

// Migrate brings river's own tables (river_job, river_leader, ...) up to date.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		return errors.WithStack(err)
	}
	res, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil)
	if err != nil {
		return errors.Wrap(err, "migrating river schema")
	}
	for _, version := range res.Versions {
		logging.Infof("Applied river migration %d", version.Version)
	}
	return nil
}

// NewInsertClient returns a client that can enqueue jobs but does not work them.
func NewInsertClient(pool *pgxpool.Pool) (*Client, error) {
	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Logger: riverLogger(),
	})
	return client, errors.WithStack(err)
}

// river logs through slog; only its warnings are interesting next to our own logs.
func riverLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}
