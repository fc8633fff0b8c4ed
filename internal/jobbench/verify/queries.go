// Package verify reports what a benchmark run left in the job_results table.
package verify

// Query is a read-only report query. Every query takes the worker name prefix as $1.
type Query struct {
	Title string
	SQL   string
}

func Queries(prefix string) []Query {
	return []Query{
		{
			Title: "Job Summary Aggregation",
			SQL: `
SELECT
    COUNT(*) AS total_jobs,
    status,
    MIN(created_at) AS first_job_at,
    MAX(updated_at) AS last_job_at,
    EXTRACT(EPOCH FROM MAX(updated_at) - MIN(created_at))::float8 AS duration_seconds
FROM job_results
WHERE starts_with(worker_name, $1)
GROUP BY status
ORDER BY status`,
		},
		{
			Title: "Completed Jobs per Worker (prefix: '" + prefix + "')",
			SQL: `
SELECT
    worker_name,
    COUNT(*) AS jobs_completed,
    (COUNT(*) / NULLIF(EXTRACT(EPOCH FROM MAX(updated_at) - MIN(created_at)) / 60.0, 0))::float8 AS jobs_per_minute
FROM job_results
WHERE status = 'COMPLETED' AND starts_with(worker_name, $1)
GROUP BY worker_name
ORDER BY jobs_completed DESC, worker_name`,
		},
		{
			Title: "Jobs retried more than once, how did they perform in the end?",
			SQL: `
SELECT
    rj.state::text AS final_state,
    COUNT(*) AS jobs
FROM river_job rj
JOIN job_results jr ON jr.job_id = rj.id
WHERE rj.attempt > 1 AND starts_with(jr.worker_name, $1)
GROUP BY rj.state
ORDER BY rj.state`,
		},
	}
}
