// Package resilience retries an operation with exponential backoff.
//
// It is used to wait for a freshly started database server to accept
// connections:
//
//	err := resilience.Retry(ctx, resilience.RetryConfig{MaxAttempts: 30}, func(ctx context.Context) error {
//	    return client.Ping(ctx, nil)
//	})
//
// Fixture operations themselves are never retried.
package resilience
