// Package metrics holds the process-wide Prometheus collectors, registered
// with the default registry and served on /metrics by the ops server.
//
// Collectors are grouped by concern: ops HTTP requests, the poll pipeline
// (regions, sessions, outcomes, cycles), the record store (query latency,
// conflicts, pool size) and circuit breaker state. Callers use the Record*
// helpers rather than the collectors directly:
//
//	start := time.Now()
//	sessions, err := fetcher.Fetch(ctx, region.ID, date)
//	metrics.RecordRegionPoll(region.ID, time.Since(start), len(sessions), err)
package metrics
