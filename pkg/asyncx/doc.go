// Package asyncx holds the small concurrency helpers the service needs at its
// edges: waiting for backing services at startup and probing them in parallel
// for health checks.
//
// # Retries
//
// [RetryWithBackoff] retries a call with exponential backoff. It is used to
// wait for Postgres and Redis while a deployment comes up:
//
//	db, err := asyncx.RetryWithBackoff(ctx, asyncx.Backoff{
//	    Attempts:     5,
//	    InitialDelay: 500 * time.Millisecond,
//	    MaxDelay:     5 * time.Second,
//	}, func(ctx context.Context) (*sqlx.DB, error) {
//	    return sqlx.ConnectContext(ctx, "postgres", dsn)
//	})
//
// # Fan-out
//
// [AllSettled] runs a set of functions concurrently and always returns one
// [Result] per function so a health check can report every dependency:
//
//	results := asyncx.AllSettled(ctx, pingDB, pingRedis)
//	for i, r := range results {
//	    if !r.OK() { ... }
//	}
package asyncx
