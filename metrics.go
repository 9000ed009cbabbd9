package shelfauth

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one counter or histogram in the in-process metrics
// system.
type MetricID uint16

const (
	// MetricRegistrationSuccess is an exported metric identifier.
	MetricRegistrationSuccess MetricID = iota
	// MetricRegistrationDuplicate is an exported metric identifier.
	MetricRegistrationDuplicate
	// MetricRegistrationFailure is an exported metric identifier.
	MetricRegistrationFailure
	// MetricOTPResendSuccess is an exported metric identifier.
	MetricOTPResendSuccess
	// MetricOTPResendFailure is an exported metric identifier.
	MetricOTPResendFailure
	// MetricOTPResendRateLimited is an exported metric identifier.
	MetricOTPResendRateLimited
	// MetricOTPVerifySuccess is an exported metric identifier.
	MetricOTPVerifySuccess
	// MetricOTPVerifyFailure is an exported metric identifier.
	MetricOTPVerifyFailure
	// MetricLoginSuccess is an exported metric identifier.
	MetricLoginSuccess
	// MetricLoginFailure is an exported metric identifier.
	MetricLoginFailure
	// MetricLoginBlocked is an exported metric identifier.
	MetricLoginBlocked
	// MetricPasswordChangeSuccess is an exported metric identifier.
	MetricPasswordChangeSuccess
	// MetricPasswordChangeFailure is an exported metric identifier.
	MetricPasswordChangeFailure
	// MetricRefreshSuccess is an exported metric identifier.
	MetricRefreshSuccess
	// MetricRefreshFailure is an exported metric identifier.
	MetricRefreshFailure
	// MetricLoginLatency is the single histogram metric, observing
	// end-to-end login duration.
	MetricLoginLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds atomic counters plus an optional login latency histogram.
// A nil or disabled Metrics is a no-op on every method.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of all counters and histograms.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

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
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricLoginLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricLoginLatency].buckets[i])
		}
		s.Histograms[MetricLoginLatency] = buckets
	}

	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
