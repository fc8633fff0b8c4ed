package database

import (
	"context"
	"crypto/rand"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid"
	"github.com/pkg/errors"

	"github.com/armadaproject/jobbench/internal/common/logging"
)

const (
	testConnectionEnvVar     = "JOBBENCH_TEST_POSTGRES"
	defaultTestConnectionStr = "host=localhost port=5432 user=postgres password=psw sslmode=disable"
)

// ErrTestDbUnavailable is returned by WithTestDb when no Postgres server can be reached. Tests use it to skip.
var ErrTestDbUnavailable = errors.New("no postgres server available for tests")

// WithTestDb spins up a dedicated Postgres database for testing
//
//	migrations: applied before entering the action callback
//	action: callback for client code
//
// The server is taken from JOBBENCH_TEST_POSTGRES (a libpq connection string), defaulting to localhost:5432.
// The database is dropped afterwards.
func WithTestDb(migrations []Migration, action func(db *pgxpool.Pool) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	connectionString := os.Getenv(testConnectionEnvVar)
	if connectionString == "" {
		connectionString = defaultTestConnectionStr
	}

	connectCtx, connectCancel := context.WithTimeout(ctx, 5*time.Second)
	defer connectCancel()
	db, err := pgx.Connect(connectCtx, connectionString)
	if err != nil {
		return errors.Wrap(ErrTestDbUnavailable, err.Error())
	}
	defer func() {
		_ = db.Close(context.Background())
	}()

	dbName := "test_" + strings.ToLower(NewULID())
	if _, err := db.Exec(ctx, "CREATE DATABASE "+dbName); err != nil {
		return errors.WithStack(err)
	}
	defer func() {
		// disconnect all db users before cleanup
		_, err := db.Exec(context.Background(),
			`SELECT pg_terminate_backend(pg_stat_activity.pid) FROM pg_stat_activity WHERE pg_stat_activity.datname = $1`,
			dbName)
		if err != nil {
			logging.WithError(err).Warnf("Failed to disconnect users from %s", dbName)
		}
		if _, err := db.Exec(context.Background(), "DROP DATABASE "+dbName); err != nil {
			logging.WithError(err).Warnf("Failed to drop database %s", dbName)
		}
	}()

	testDbPool, err := pgxpool.New(ctx, connectionString+" dbname="+dbName)
	if err != nil {
		return errors.WithStack(err)
	}
	defer testDbPool.Close()

	if err := UpdateDatabase(ctx, testDbPool, migrations); err != nil {
		return err
	}
	return action(testDbPool)
}

// NewULID returns a new lexicographically sortable unique id.
func NewULID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}
