package database

import (
	"context"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"

	"github.com/armadaproject/jobbench/internal/common/logging"
)

// EnsureDatabase creates the database named in config if it does not exist yet, connecting through the
// maintenance database "postgres". It reports whether the database was created.
func EnsureDatabase(ctx context.Context, config PostgresConfig) (bool, error) {
	name := config.Connection["dbname"]
	if name == "" || name == "postgres" {
		return false, nil
	}

	conn, err := OpenPgxConn(ctx, config.WithDatabase("postgres"))
	if err != nil {
		return false, err
	}
	defer func() {
		_ = conn.Close(context.Background())
	}()

	var exists bool
	err = conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)`, name).Scan(&exists)
	if err != nil {
		return false, errors.WithStack(err)
	}
	if exists {
		logging.Debugf("Database %s already exists", name)
		return false, nil
	}

	_, err = conn.Exec(ctx, "CREATE DATABASE "+pgx.Identifier{name}.Sanitize())
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.DuplicateDatabase {
		// Created concurrently by someone else.
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "creating database %s", name)
	}
	logging.Infof("Created database %s", name)
	return true, nil
}
