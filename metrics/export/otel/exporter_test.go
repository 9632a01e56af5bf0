package otel

import (
	"context"
	"sync"
	"testing"

	goCred "github.com/MrEthical07/goCred"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	counters map[goCred.MetricID]uint64
	latency  []uint64
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() goCred.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := goCred.MetricsSnapshot{
		Counters:   make(map[goCred.MetricID]uint64, len(f.counters)),
		Histograms: map[goCred.MetricID][]uint64{goCred.MetricValidateLatency: append([]uint64(nil), f.latency...)},
	}
	for k, v := range f.counters {
		out.Counters[k] = v
	}
	return out
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func newReader() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

func findSum(rm metricdata.ResourceMetrics, name string) (int64, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok && len(sum.DataPoints) > 0 {
				return sum.DataPoints[0].Value, true
			}
		}
	}
	return 0, false
}

func TestExporterCollectsCounters(t *testing.T) {
	reader, provider := newReader()
	src := &fakeSource{
		counters: map[goCred.MetricID]uint64{goCred.MetricResetSuccess: 3},
		latency:  []uint64{1, 1, 1, 1, 1, 1, 1, 1},
		dropped:  1,
	}

	exp, err := NewExporter(provider.Meter("gocred-test"), src)
	if err != nil {
		t.Fatalf("NewExporter failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if v, ok := findSum(rm, "gocred_reset_success_total"); !ok || v != 3 {
		t.Fatalf("expected gocred_reset_success_total=3, got %d (found=%v)", v, ok)
	}
	if v, ok := findSum(rm, "gocred_audit_dropped_total"); !ok || v != 1 {
		t.Fatalf("expected gocred_audit_dropped_total=1, got %d (found=%v)", v, ok)
	}
}

func TestExporterRejectsNilArguments(t *testing.T) {
	_, provider := newReader()

	if _, err := NewExporter(provider.Meter("gocred-test"), nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
	if _, err := NewExporter(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader, provider := newReader()
	src := &fakeSource{counters: map[goCred.MetricID]uint64{goCred.MetricLoginSuccess: 1}}

	exp, err := NewExporter(provider.Meter("gocred-test"), src)
	if err != nil {
		t.Fatalf("NewExporter failed: %v", err)
	}
	defer exp.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.counters[goCred.MetricLoginSuccess] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
