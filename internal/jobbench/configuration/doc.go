/*
Package configuration defines the input configuration for jobbench.

jobbench benchmarks a Postgres-backed job queue: it resets a database container,
applies the schema, enqueues a batch of simulated jobs, runs a fleet of worker
processes against them while sampling container and database health, and finally
verifies the recorded job outcomes.

# Configuration Structure

The main configuration type is Configuration, which defines:

  - Postgres connection parameters shared by every stage
  - The database container managed by the orchestrator
  - The benchmark load profile (job count, durations, worker fleet shape)
  - The health sampler cadence
  - Where run artifacts are written

Defaults are embedded (config.yaml). They are overridden, in order, by files given
with --config, by DB_HOST/DB_PORT/DB_USER/DB_PASSWORD/DB_NAME from the environment or
a .env file in the working directory, and by JOBBENCH_* environment variables such as
JOBBENCH_BENCHMARK_NUMWORKERS.

# Example YAML Configuration

	benchmark:
	  maxJobs: 10000
	  avgDuration: 3s
	  numWorkers: 4
	  concurrency: 20
	container:
	  memory: 4Gi
	  maxConnections: 200
	monitor:
	  interval: 1s
*/
package configuration
