package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	goCred "github.com/MrEthical07/goCred"
)

type fakeSource struct {
	snapshot goCred.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() goCred.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                    { return f.dropped }

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := NewExporter(fakeSource{
		snapshot: goCred.MetricsSnapshot{
			Counters:   map[goCred.MetricID]uint64{},
			Histograms: map[goCred.MetricID][]uint64{},
		},
	})

	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output for disabled metrics, got:\n%s", got)
	}
	if got := (*Exporter)(nil).Render(); got != "" {
		t.Fatalf("expected empty output for nil exporter, got %q", got)
	}
}

func TestRenderIncludesCountersAndHistogram(t *testing.T) {
	exp := NewExporter(fakeSource{
		snapshot: goCred.MetricsSnapshot{
			Counters: map[goCred.MetricID]uint64{
				goCred.MetricLoginSuccess: 7,
				goCred.MetricResetExpired: 2,
			},
			Histograms: map[goCred.MetricID][]uint64{
				goCred.MetricValidateLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	})

	out := exp.Render()
	for _, want := range []string{
		"gocred_login_success_total 7",
		"gocred_reset_expired_total 2",
		"gocred_register_success_total 0",
		"# TYPE gocred_validate_latency_seconds histogram",
		`gocred_validate_latency_seconds_bucket{le="0.00005"} 1`,
		`gocred_validate_latency_seconds_bucket{le="+Inf"} 36`,
		"gocred_validate_latency_seconds_count 36",
		"gocred_audit_dropped_total 2",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
}

func TestHandlerWritesPrometheusContentType(t *testing.T) {
	exp := NewExporter(fakeSource{
		snapshot: goCred.MetricsSnapshot{
			Counters: map[goCred.MetricID]uint64{goCred.MetricLoginSuccess: 1},
		},
	})

	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func BenchmarkRender(b *testing.B) {
	exp := NewExporter(fakeSource{
		snapshot: goCred.MetricsSnapshot{
			Counters: map[goCred.MetricID]uint64{
				goCred.MetricLoginSuccess:    1000,
				goCred.MetricLoginFailure:    40,
				goCred.MetricRefreshSuccess:  800,
				goCred.MetricRefreshFailure:  10,
				goCred.MetricRecoveryRequest: 20,
				goCred.MetricResetFailure:    3,
			},
			Histograms: map[goCred.MetricID][]uint64{
				goCred.MetricValidateLatency: {10, 20, 30, 40, 50, 60, 70, 80},
			},
		},
	})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = exp.Render()
	}
}
