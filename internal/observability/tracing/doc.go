// Package tracing provides OpenTelemetry tracing integration.
//
// Setup installs an OTLP/HTTP exporter when OTEL_EXPORTER_OTLP_ENDPOINT is set.
// Poll cycles open a "poll.cycle" span with one "poll.region" child per region,
// and Middleware traces requests to the ops HTTP server.
//
// Example usage:
//
//	shutdown, err := tracing.Setup(ctx, "vaxslot-worker")
//	if err != nil {
//	    return err
//	}
//	defer shutdown(context.Background())
//
//	ctx, span := tracing.Tracer().Start(ctx, "poll.cycle")
//	defer span.End()
package tracing
