package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/uplink-foundation/uplink"
)

// meterName is the instrumentation scope name for uplink metrics.
const meterName = "github.com/uplink-foundation/uplink"

// Metrics returns middleware that records per-delegate execution
// metrics using the global OTel MeterProvider. If no MeterProvider is
// configured, noop instruments are used and this middleware becomes a
// pass-through.
//
// Instruments:
//   - uplink.delegate.duration (Float64Histogram): execution time in
//     seconds, with attributes: name, code
//   - uplink.delegate.executions (Int64Counter): total executions,
//     with attributes: name, code
func Metrics() Middleware {
	meter := otel.Meter(meterName)
	return MetricsWithMeter(meter)
}

// MetricsWithMeter returns metrics middleware using the provided
// meter. This variant allows injecting a specific MeterProvider for
// testing.
func MetricsWithMeter(meter metric.Meter) Middleware {
	// Create instruments once at middleware construction time.
	// OTel instruments are safe for concurrent use. On error, the API
	// returns noop instruments so the middleware degrades gracefully.
	duration, dErr := meter.Float64Histogram(
		"uplink.delegate.duration",
		metric.WithDescription("Duration of delegate execution in seconds"),
		metric.WithUnit("s"),
	)
	_ = dErr // noop fallback guaranteed by OTel API contract

	executions, eErr := meter.Int64Counter(
		"uplink.delegate.executions",
		metric.WithDescription("Total number of delegate executions"),
		metric.WithUnit("{execution}"),
	)
	_ = eErr // noop fallback guaranteed by OTel API contract

	return func(ctx context.Context, info Info, next Handler) uplink.Status {
		start := time.Now()
		st := next(ctx)
		elapsed := time.Since(start).Seconds()

		attrs := metric.WithAttributes(
			attribute.String("name", info.Name),
			attribute.String("code", st.Code.String()),
		)

		duration.Record(ctx, elapsed, attrs)
		executions.Add(ctx, 1, attrs)

		return st
	}
}
