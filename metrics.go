package goCred

import (
	"sync/atomic"
	"time"
)

// MetricID identifies an in-process counter. IDs are dense so counters live
// in a fixed array.
type MetricID uint16

const (
	MetricRegisterSuccess MetricID = iota
	MetricRegisterFailure
	MetricRegisterDuplicate
	MetricLoginSuccess
	MetricLoginFailure
	MetricLoginRateLimited
	MetricPasswordUpgraded
	MetricRefreshSuccess
	MetricRefreshFailure
	MetricValidateSuccess
	MetricValidateFailure
	MetricPasswordChangeSuccess
	MetricPasswordChangeFailure
	MetricRecoveryRequest
	MetricRecoveryRateLimited
	MetricRecoveryNotifyFailure
	MetricResetSuccess
	MetricResetFailure
	MetricResetExpired
	// MetricValidateLatency is the only histogram; it is recorded by ValidateToken.
	MetricValidateLatency
	metricIDCount
)

// validateBuckets are the inclusive upper bounds of the validate latency
// histogram. A token check is a single HMAC, so the range is microseconds.
// The last bucket catches everything slower.
var validateBuckets = [...]time.Duration{
	50 * time.Microsecond,
	100 * time.Microsecond,
	250 * time.Microsecond,
	500 * time.Microsecond,
	time.Millisecond,
	2500 * time.Microsecond,
	10 * time.Millisecond,
}

const histBucketCount = len(validateBuckets) + 1

// counter sits alone on a cache line so hot counters do not false-share.
type counter struct {
	atomic.Uint64
	_ [56]byte
}

// Metrics holds lock-free counters and the validate latency histogram.
// Inc and Observe never allocate.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]counter
	latency       [histBucketCount]atomic.Uint64
}

// MetricsSnapshot is a point-in-time copy of every counter.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics returns counters honoring cfg; a disabled instance ignores Inc.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

func (m *Metrics) Inc(id MetricID) {
	if !m.Enabled() || id >= metricIDCount {
		return
	}
	m.counters[id].Add(1)
}

// Observe records d in the validate latency histogram. Other IDs are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if !m.LatencyEnabled() || id != MetricValidateLatency {
		return
	}
	m.latency[bucketIndex(d)].Add(1)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return m.counters[id].Load()
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		Counters:   map[MetricID]uint64{},
		Histograms: map[MetricID][]uint64{},
	}
	if !m.Enabled() {
		return s
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = m.counters[id].Load()
	}
	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := range buckets {
			buckets[i] = m.latency[i].Load()
		}
		s.Histograms[MetricValidateLatency] = buckets
	}
	return s
}

func bucketIndex(d time.Duration) int {
	for i, bound := range validateBuckets {
		if d <= bound {
			return i
		}
	}
	return len(validateBuckets)
}
