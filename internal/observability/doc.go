// Package observability groups the worker's logging, metrics and tracing.
//
// Subpackages:
//   - logging: slog JSON logger with poll cycle ID propagation
//   - metrics: Prometheus collectors for the poll pipeline, record store and ops server
//   - tracing: OpenTelemetry setup and HTTP middleware
package observability
