// Package resilience groups the failure handling shared by the availability
// API client and the record stores.
//
//   - circuitbreaker: stops calling a dependency that keeps failing
//   - retry: re-runs transient failures with exponential backoff
//
// The two compose with the breaker inside the retry loop, so a rejected call
// is not retried:
//
//	cb := circuitbreaker.New(circuitbreaker.AvailabilityAPIConfig())
//	err := retry.WithBackoff(ctx, retry.AvailabilityAPIConfig(), func() error {
//	    body, err = circuitbreaker.Do(cb, fetch)
//	    return err
//	})
package resilience
