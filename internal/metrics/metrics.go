package metrics

import (
	"sync/atomic"
	"time"
)

const (
	// BucketCount is the number of histogram buckets, the last being +Inf.
	BucketCount   = 8
	cacheLineSize = 64
)

// BucketBounds are the upper bounds of the first BucketCount-1 buckets.
var BucketBounds = [BucketCount - 1]time.Duration{
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds size counters and a single latency histogram.
type Metrics struct {
	enabled  bool
	latency  bool
	counters []paddedCounter
	buckets  [BucketCount]uint64
	sumNanos uint64
}

// New returns a Metrics with size counters. A disabled Metrics ignores writes.
func New(size int, enabled, latency bool) *Metrics {
	return &Metrics{
		enabled:  enabled,
		latency:  enabled && latency,
		counters: make([]paddedCounter, size),
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.latency
}

func (m *Metrics) Inc(id int) {
	if m == nil || !m.enabled || id < 0 || id >= len(m.counters) {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Add increases counter id by n.
func (m *Metrics) Add(id int, n uint64) {
	if m == nil || !m.enabled || id < 0 || id >= len(m.counters) || n == 0 {
		return
	}
	atomic.AddUint64(&m.counters[id].value, n)
}

func (m *Metrics) Value(id int) uint64 {
	if m == nil || id < 0 || id >= len(m.counters) {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Observe records d in the latency histogram.
func (m *Metrics) Observe(d time.Duration) {
	if m == nil || !m.latency {
		return
	}
	atomic.AddUint64(&m.buckets[bucketIndex(d)], 1)
	if d > 0 {
		atomic.AddUint64(&m.sumNanos, uint64(d))
	}
}

// Counters copies every counter value, indexed by id.
func (m *Metrics) Counters() []uint64 {
	if m == nil {
		return nil
	}
	out := make([]uint64, len(m.counters))
	for i := range m.counters {
		out[i] = atomic.LoadUint64(&m.counters[i].value)
	}
	return out
}

// Histogram returns the non-cumulative bucket counts and the observed sum.
func (m *Metrics) Histogram() ([]uint64, time.Duration) {
	if m == nil || !m.latency {
		return nil, 0
	}
	out := make([]uint64, BucketCount)
	for i := range m.buckets {
		out[i] = atomic.LoadUint64(&m.buckets[i])
	}
	return out, time.Duration(atomic.LoadUint64(&m.sumNanos))
}

func bucketIndex(d time.Duration) int {
	for i, bound := range BucketBounds {
		if d <= bound {
			return i
		}
	}
	return BucketCount - 1
}
