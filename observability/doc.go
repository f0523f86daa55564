// Package observability provides an OpenTelemetry-based metrics
// observer for uplink. The MetricsObserver implements lifecycle hooks
// to record system-wide counters for job admission, rejection, start,
// blocking, completion, failure, and key-delivery events.
//
// For per-execution tracing and metrics, see the middleware package:
// middleware.Tracing() and middleware.Metrics().
package observability
