package tracing

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "vaxslot-notifier"

// Tracer returns the tracer used for poll and ops server spans. It resolves
// the global provider on every call, so providers installed later by Setup
// or by tests take effect.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}
