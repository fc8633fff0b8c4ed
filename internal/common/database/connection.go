package database

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

type PostgresConfig struct {
	// libpq key/value connection parameters, e.g. host, port, user, password, dbname, sslmode.
	Connection map[string]string `validate:"required"`
	// Upper bound on pool size. Zero leaves pgxpool's default.
	MaxConns int `validate:"gte=0"`
}

// WithDatabase returns a copy of the config pointing at another database on the same server.
func (c PostgresConfig) WithDatabase(name string) PostgresConfig {
	connection := make(map[string]string, len(c.Connection))
	for k, v := range c.Connection {
		connection[k] = v
	}
	connection["dbname"] = name
	return PostgresConfig{Connection: connection, MaxConns: c.MaxConns}
}

// Querier is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// CreateConnectionString renders libpq key/value pairs. Keys are sorted so that the result is stable.
func CreateConnectionString(values map[string]string) string {
	// https://www.postgresql.org/docs/current/libpq-connect.html#LIBPQ-CONNSTRING-KEYWORD-VALUE
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	replacer := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"='"+replacer.Replace(values[k])+"'")
	}
	return strings.Join(parts, " ")
}

func OpenPgxPool(ctx context.Context, config PostgresConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(CreateConnectionString(config.Connection))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if config.MaxConns > 0 {
		poolConfig.MaxConns = int32(config.MaxConns)
	}
	db, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "cannot reach postgres at %s", Describe(config))
	}
	return db, nil
}

func OpenPgxConn(ctx context.Context, config PostgresConfig) (*pgx.Conn, error) {
	conn, err := pgx.Connect(ctx, CreateConnectionString(config.Connection))
	if err != nil {
		return nil, errors.Wrapf(err, "cannot reach postgres at %s", Describe(config))
	}
	return conn, nil
}

// Describe renders host:port/dbname for log lines, leaving out credentials.
func Describe(config PostgresConfig) string {
	c := config.Connection
	return c["host"] + ":" + c["port"] + "/" + c["dbname"]
}

// MaxConnections reports the server's max_connections setting.
func MaxConnections(ctx context.Context, db Querier) (int, error) {
	var value string
	if err := db.QueryRow(ctx, "SHOW max_connections").Scan(&value); err != nil {
		return 0, errors.WithStack(err)
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, errors.Wrapf(err, "unexpected max_connections value %q", value)
	}
	return n, nil
}
