package monitor

import (
	"context"

	"github.com/pkg/errors"

	"github.com/armadaproject/jobbench/internal/common/database"
)

// ResourceSource reports the resource usage of the database container.
type ResourceSource interface {
	// Check fails if the container cannot be observed at all.
	Check(ctx context.Context) error
	Usage(ctx context.Context) (ResourceUsage, error)
}

// ActivitySource reports connection and lock activity of the database.
type ActivitySource interface {
	Check(ctx context.Context) error
	Activity(ctx context.Context) (StoreActivity, error)
}

const activitySql = `
SELECT
    COUNT(*) AS total_connections,
    COUNT(*) FILTER (WHERE state = 'active') AS active_connections,
    COUNT(*) FILTER (WHERE state = 'idle') AS idle_connections,
    COUNT(*) FILTER (WHERE wait_event_type = 'Lock') AS lock_waits,
    COUNT(*) FILTER (WHERE wait_event IS NOT NULL) AS waiting_connections
FROM pg_stat_activity`

// PostgresActivity reads pg_stat_activity.
type PostgresActivity struct {
	db database.Querier
}

func NewPostgresActivity(db database.Querier) *PostgresActivity {
	return &PostgresActivity{db: db}
}

func (p *PostgresActivity) Check(ctx context.Context) error {
	var one int
	if err := p.db.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return errors.Wrap(err, "database unreachable")
	}
	return nil
}

func (p *PostgresActivity) Activity(ctx context.Context) (StoreActivity, error) {
	var a StoreActivity
	err := p.db.QueryRow(ctx, activitySql).Scan(
		&a.TotalConnections,
		&a.ActiveConnections,
		&a.IdleConnections,
		&a.LockWaits,
		&a.WaitingConnections,
	)
	if err != nil {
		return StoreActivity{}, errors.Wrap(err, "querying pg_stat_activity")
	}
	return a, nil
}
