package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/uplink-foundation/uplink"
	"github.com/uplink-foundation/uplink/ext"
	"github.com/uplink-foundation/uplink/job"
)

// meterName is the instrumentation scope name for uplink metrics.
const meterName = "github.com/uplink-foundation/uplink/observability"

// Compile-time interface checks.
var (
	_ ext.Observer          = (*MetricsObserver)(nil)
	_ ext.JobAccepted       = (*MetricsObserver)(nil)
	_ ext.JobRejected       = (*MetricsObserver)(nil)
	_ ext.JobStarted        = (*MetricsObserver)(nil)
	_ ext.JobBlocked        = (*MetricsObserver)(nil)
	_ ext.JobCompleted      = (*MetricsObserver)(nil)
	_ ext.JobFailed         = (*MetricsObserver)(nil)
	_ ext.KeyRequested      = (*MetricsObserver)(nil)
	_ ext.KeyDelivered      = (*MetricsObserver)(nil)
	_ ext.KeyDeliveryFailed = (*MetricsObserver)(nil)
)

// MetricsObserver records system-wide lifecycle metrics through an
// OTel meter. Register it as a scheduler or key-delivery observer to
// track admission rates, rejection causes, queue blocking, completion
// and failure counts, and key-delivery outcomes.
type MetricsObserver struct {
	jobsAccepted metric.Int64Counter
	jobsRejected metric.Int64Counter
	jobsStarted  metric.Int64Counter
	jobsBlocked  metric.Int64Counter
	jobsDone     metric.Int64Counter
	jobDuration  metric.Float64Histogram
	keyRequests  metric.Int64Counter
	keyOutcomes  metric.Int64Counter
	keyDuration  metric.Float64Histogram
}

// NewMetricsObserver creates a MetricsObserver using the global OTel
// MeterProvider. Without a configured provider the instruments are
// noops and the observer has no effect.
func NewMetricsObserver() *MetricsObserver {
	return NewMetricsObserverWithMeter(otel.Meter(meterName))
}

// NewMetricsObserverWithMeter creates a MetricsObserver with the
// provided meter. Use this variant to inject an sdkmetric provider in
// tests.
func NewMetricsObserverWithMeter(meter metric.Meter) *MetricsObserver {
	m := &MetricsObserver{}

	// On instrument-creation errors the OTel API returns noop
	// instruments, so the observer degrades gracefully.
	m.jobsAccepted, _ = meter.Int64Counter("uplink.jobs.accepted",
		metric.WithDescription("Jobs admitted to the queue"),
		metric.WithUnit("{job}"))
	m.jobsRejected, _ = meter.Int64Counter("uplink.jobs.rejected",
		metric.WithDescription("Jobs refused at admission"),
		metric.WithUnit("{job}"))
	m.jobsStarted, _ = meter.Int64Counter("uplink.jobs.started",
		metric.WithDescription("Jobs handed to a worker"),
		metric.WithUnit("{job}"))
	m.jobsBlocked, _ = meter.Int64Counter("uplink.jobs.blocked",
		metric.WithDescription("Dispatch pauses with a saturated ceiling"),
		metric.WithUnit("{event}"))
	m.jobsDone, _ = meter.Int64Counter("uplink.jobs.finished",
		metric.WithDescription("Jobs whose delegate finished"),
		metric.WithUnit("{job}"))
	m.jobDuration, _ = meter.Float64Histogram("uplink.jobs.duration",
		metric.WithDescription("Duration of successful job executions in seconds"),
		metric.WithUnit("s"))
	m.keyRequests, _ = meter.Int64Counter("uplink.key.requests",
		metric.WithDescription("Key-delivery requests enqueued"),
		metric.WithUnit("{request}"))
	m.keyOutcomes, _ = meter.Int64Counter("uplink.key.outcomes",
		metric.WithDescription("Key-delivery completions"),
		metric.WithUnit("{delivery}"))
	m.keyDuration, _ = meter.Float64Histogram("uplink.key.duration",
		metric.WithDescription("Duration of successful key deliveries in seconds"),
		metric.WithUnit("s"))

	return m
}

// Name implements ext.Observer.
func (m *MetricsObserver) Name() string { return "observability-metrics" }

// ── Scheduler lifecycle hooks ───────────────────────

// OnJobAccepted implements ext.JobAccepted.
func (m *MetricsObserver) OnJobAccepted(ctx context.Context, _ *job.Job) error {
	m.jobsAccepted.Add(ctx, 1)
	return nil
}

// OnJobRejected implements ext.JobRejected.
func (m *MetricsObserver) OnJobRejected(ctx context.Context, _ *job.Job, status uplink.Status) error {
	m.jobsRejected.Add(ctx, 1, metric.WithAttributes(
		attribute.String("reason", string(status.Reason)),
	))
	return nil
}

// OnJobStarted implements ext.JobStarted.
func (m *MetricsObserver) OnJobStarted(ctx context.Context, _ *job.Job) error {
	m.jobsStarted.Add(ctx, 1)
	return nil
}

// OnJobBlocked implements ext.JobBlocked.
func (m *MetricsObserver) OnJobBlocked(ctx context.Context, _ *job.Job) error {
	m.jobsBlocked.Add(ctx, 1)
	return nil
}

// OnJobCompleted implements ext.JobCompleted.
func (m *MetricsObserver) OnJobCompleted(ctx context.Context, _ *job.Job, elapsed time.Duration) error {
	m.jobsDone.Add(ctx, 1, metric.WithAttributes(
		attribute.String("code", uplink.CodeOK.String()),
	))
	m.jobDuration.Record(ctx, elapsed.Seconds())
	return nil
}

// OnJobFailed implements ext.JobFailed.
func (m *MetricsObserver) OnJobFailed(ctx context.Context, _ *job.Job, status uplink.Status) error {
	m.jobsDone.Add(ctx, 1, metric.WithAttributes(
		attribute.String("code", status.Code.String()),
	))
	return nil
}

// ── Key-delivery lifecycle hooks ────────────────────

// OnKeyRequested implements ext.KeyRequested.
func (m *MetricsObserver) OnKeyRequested(ctx context.Context, mandatory bool) error {
	m.keyRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("mandatory", mandatory),
	))
	return nil
}

// OnKeyDelivered implements ext.KeyDelivered.
func (m *MetricsObserver) OnKeyDelivered(ctx context.Context, elapsed time.Duration) error {
	m.keyOutcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("code", uplink.CodeOK.String()),
	))
	m.keyDuration.Record(ctx, elapsed.Seconds())
	return nil
}

// OnKeyDeliveryFailed implements ext.KeyDeliveryFailed.
func (m *MetricsObserver) OnKeyDeliveryFailed(ctx context.Context, status uplink.Status) error {
	m.keyOutcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("code", status.Code.String()),
	))
	return nil
}
