// Package resilience retries transient failures raised by pipeline
// transforms.
//
// Only errors that the errors package marks as retryable are retried by
// default; anything else fails on the first attempt:
//
//	cfg := resilience.ForAttempts(3, 50*time.Millisecond)
//	res, err := resilience.Retry(ctx, cfg, func() (Result, error) {
//	    return lookup(ctx, key)
//	})
package resilience
