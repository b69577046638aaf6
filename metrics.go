package storeAuth

import (
	"sync/atomic"
	"time"
)

// MetricID names one in-process counter or histogram.
type MetricID uint16

const (
	// MetricLoginSuccess counts password logins accepted by the backend.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts password logins refused by the backend or failed in transport.
	MetricLoginFailure
	// MetricLoginRateLimited counts password logins stopped by the throttle.
	MetricLoginRateLimited
	// MetricGoogleLoginSuccess counts federated sign-ins exchanged for a session.
	MetricGoogleLoginSuccess
	// MetricGoogleLoginFailure counts federated sign-ins the backend refused.
	MetricGoogleLoginFailure
	// MetricSessionCreated counts sessions persisted by Login.
	MetricSessionCreated
	// MetricSessionRestored counts status checks that found a stored session.
	MetricSessionRestored
	// MetricSessionAbsent counts status checks that found nothing.
	MetricSessionAbsent
	// MetricLogout counts logout transitions.
	MetricLogout
	// MetricTokenDecodeFailure counts tokens whose payload could not be decoded.
	MetricTokenDecodeFailure
	// MetricStoreFailure counts session storage errors seen by transitions.
	MetricStoreFailure
	// MetricGuardAllow counts guarded requests let through.
	MetricGuardAllow
	// MetricGuardPending counts guarded requests answered while the session was loading.
	MetricGuardPending
	// MetricGuardRedirect counts guarded requests redirected to login.
	MetricGuardRedirect
	// MetricGuardDeny counts guarded requests answered with the access-denied page.
	MetricGuardDeny
	// MetricUpstreamUnauthorized counts proxied calls the backend rejected with 401 or 403.
	MetricUpstreamUnauthorized
	// MetricTransitionLatency is the histogram of session transition durations.
	MetricTransitionLatency
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

// Metrics holds lock-free counters. A nil or disabled *Metrics ignores every call, so callers
// never branch on configuration.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy read by exporters.
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

// Inc adds one to a counter.
//
//	Performance: one atomic add, no allocation.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in the transition latency histogram. Other ids are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enableLatency || id != MetricTransitionLatency {
		return
	}
	atomic.AddUint64(&m.histograms[id].buckets[bucketIndex(d)], 1)
}

// Value returns the current value of one counter.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies all counters. Disabled metrics return empty maps.
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
		if id == MetricTransitionLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := range buckets {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricTransitionLatency].buckets[i])
		}
		s.Histograms[MetricTransitionLatency] = buckets
	}

	return s
}

// bucketIndex maps d onto the upper bounds 5, 10, 25, 50, 100, 250, 500 ms and +Inf.
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
