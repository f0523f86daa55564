package middleware_test

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/uplink-foundation/uplink"
	mw "github.com/uplink-foundation/uplink/middleware"
)

func setupTestMeter() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	return reader, mp
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestMetrics_RecordsDuration(t *testing.T) {
	reader, mp := setupTestMeter()
	m := mw.MetricsWithMeter(mp.Meter("test"))

	_ = m(context.Background(), testInfo(), func(_ context.Context) uplink.Status {
		return uplink.OK()
	})

	rm := collectMetrics(t, reader)
	metric := findMetric(rm, "uplink.delegate.duration")
	if metric == nil {
		t.Fatal("uplink.delegate.duration metric not found")
	}

	hist, ok := metric.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("expected Histogram[float64] data type")
	}
	if len(hist.DataPoints) == 0 {
		t.Fatal("no data points recorded for duration")
	}
	if hist.DataPoints[0].Count != 1 {
		t.Errorf("expected count=1, got %d", hist.DataPoints[0].Count)
	}
}

func TestMetrics_RecordsExecutionsByCode(t *testing.T) {
	reader, mp := setupTestMeter()
	m := mw.MetricsWithMeter(mp.Meter("test"))

	_ = m(context.Background(), testInfo(), func(_ context.Context) uplink.Status {
		return uplink.OK()
	})
	_ = m(context.Background(), testInfo(), func(_ context.Context) uplink.Status {
		return uplink.NewStatus(uplink.CodeUnavailable, uplink.ReasonUploaderUnavailable, "down")
	})

	rm := collectMetrics(t, reader)
	metric := findMetric(rm, "uplink.delegate.executions")
	if metric == nil {
		t.Fatal("uplink.delegate.executions metric not found")
	}

	sum, ok := metric.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("expected Sum[int64] data type")
	}

	byCode := make(map[string]int64)
	for _, dp := range sum.DataPoints {
		if code, found := dp.Attributes.Value(attribute.Key("code")); found {
			byCode[code.AsString()] += dp.Value
		}
	}

	if byCode["OK"] != 1 {
		t.Errorf("OK executions = %d, want 1", byCode["OK"])
	}
	if byCode["UNAVAILABLE"] != 1 {
		t.Errorf("UNAVAILABLE executions = %d, want 1", byCode["UNAVAILABLE"])
	}
}
