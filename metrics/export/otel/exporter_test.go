package otel

import (
	"context"
	"sync"
	"testing"
	"time"

	dealerportal "github.com/askgroup/dealerportal"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type metricsSource struct {
	metrics *dealerportal.Metrics
	dropped uint64
}

func (s metricsSource) MetricsSnapshot() dealerportal.MetricsSnapshot { return s.metrics.Snapshot() }
func (s metricsSource) AuditDropped() uint64                          { return s.dropped }

func newReader(t *testing.T) (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return reader, provider
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	out := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					out[m.Name] = dp.Value
				}
			case metricdata.Gauge[int64]:
				for _, dp := range data.DataPoints {
					out[m.Name] = dp.Value
				}
			}
		}
	}
	return out
}

func TestExporterObservesSnapshot(t *testing.T) {
	reader, provider := newReader(t)
	m := dealerportal.NewMetrics(dealerportal.MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	m.Inc(dealerportal.MetricLoginSuccess)
	m.Inc(dealerportal.MetricLoginSuccess)
	m.Inc(dealerportal.MetricRestoreInvalid)
	m.Observe(dealerportal.MetricLoginLatency, 80*time.Millisecond)
	m.Observe(dealerportal.MetricLoginLatency, 3*time.Second)

	exp, err := New(provider.Meter("dealerportal-test"), metricsSource{metrics: m, dropped: 4})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer exp.Close()

	got := collect(t, reader)
	want := map[string]int64{
		"dealerportal_login_success_total":                 2,
		"dealerportal_restore_invalid_total":               1,
		"dealerportal_checkout_success_total":              0,
		"dealerportal_login_latency_seconds_bucket_le_0_1": 1,
		"dealerportal_login_latency_seconds_bucket_le_5":   2,
		"dealerportal_login_latency_seconds_count":         2,
		"dealerportal_audit_dropped_total":                 4,
	}
	for name, v := range want {
		if got[name] != v {
			t.Errorf("%s: expected %d, got %d", name, v, got[name])
		}
	}
}

func TestExporterRejectsNil(t *testing.T) {
	_, provider := newReader(t)
	if _, err := New(provider.Meter("x"), nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
	if _, err := New(nil, metricsSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
}

func TestExporterConcurrentCollect(t *testing.T) {
	reader, provider := newReader(t)
	m := dealerportal.NewMetrics(dealerportal.MetricsConfig{Enabled: true})

	exp, err := New(provider.Meter("dealerportal-test"), metricsSource{metrics: m})
	if err != nil {
		t.Fatal(err)
	}
	defer exp.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Inc(dealerportal.MetricLogout)
			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}()
	}
	wg.Wait()

	if got := collect(t, reader)["dealerportal_logout_total"]; got != 8 {
		t.Fatalf("expected 8 logouts, got %d", got)
	}
}

func TestCloseNil(t *testing.T) {
	var e *Exporter
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}
}
