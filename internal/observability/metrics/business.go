package metrics

import (
	"time"
)

// Session outcome labels used with RecordSessionOutcome.
const (
	OutcomeIneligible = "ineligible"
	OutcomeSuppressed = "suppressed"
	OutcomeNotified   = "notified"
	OutcomeDeferred   = "deferred"
	OutcomeDropped    = "dropped"
	OutcomeStoreError = "store_error"
)

// RecordRegionPoll records one availability fetch for a region.
// A failed fetch still records its duration so slow timeouts stay visible.
func RecordRegionPoll(regionID string, duration time.Duration, sessions int, err error) {
	AvailabilityFetchDuration.WithLabelValues(regionID).Observe(duration.Seconds())
	if err != nil {
		RegionsPolledTotal.WithLabelValues(regionID, "failure").Inc()
		return
	}
	RegionsPolledTotal.WithLabelValues(regionID, "success").Inc()
	SessionsSeenTotal.WithLabelValues(regionID).Add(float64(sessions))
}

// RecordSessionOutcome records the pipeline outcome of a single session.
func RecordSessionOutcome(outcome string) {
	SessionOutcomesTotal.WithLabelValues(outcome).Inc()
}

// RecordCycle records the wall-clock duration of a poll cycle.
func RecordCycle(duration time.Duration) {
	CycleDuration.Observe(duration.Seconds())
}

// RecordStoreConflict records a revision conflict and how it was resolved.
// Resolution is either "retried" or "dropped".
func RecordStoreConflict(resolution string) {
	StoreConflictsTotal.WithLabelValues(resolution).Inc()
}

// RecordDBQuery records the duration of a store operation.
// Operation should describe the call (e.g., "get_record", "create_record").
func RecordDBQuery(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// UpdateDBConnectionStats updates database connection pool statistics.
func UpdateDBConnectionStats(active, idle int) {
	DBConnectionsActive.Set(float64(active))
	DBConnectionsIdle.Set(float64(idle))
}

// RecordCircuitState sets the state gauge for a named circuit breaker.
func RecordCircuitState(name string, state int) {
	CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}
