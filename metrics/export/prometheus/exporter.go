package prometheus

import (
	"net/http"

	"github.com/MrEthical07/authcore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Source yields metric snapshots. *authcore.Engine implements it.
type Source interface {
	MetricsSnapshot() authcore.MetricsSnapshot
}

// Collector is a prometheus.Collector over a Source.
type Collector struct {
	source Source

	counters     map[authcore.MetricID]*prometheus.Desc
	latency      *prometheus.Desc
	auditDropped *prometheus.Desc
	auditFailed  *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector returns a collector reading from source on every scrape.
func NewCollector(source Source) *Collector {
	c := &Collector{
		source:   source,
		counters: make(map[authcore.MetricID]*prometheus.Desc, len(authcore.MetricDefs)),
		latency: prometheus.NewDesc(authcore.LatencyMetricName,
			"Latency of access-token authentication.", nil, nil),
		auditDropped: prometheus.NewDesc("authcore_audit_dropped_total",
			"Audit events dropped because the buffer was full or the caller gave up.", nil, nil),
		auditFailed: prometheus.NewDesc("authcore_audit_failed_total",
			"Audit events the sink rejected.", nil, nil),
	}
	for _, def := range authcore.MetricDefs {
		c.counters[def.ID] = prometheus.NewDesc(def.Name, def.Help, nil, nil)
	}
	return c
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, def := range authcore.MetricDefs {
		ch <- c.counters[def.ID]
	}
	ch <- c.latency
	ch <- c.auditDropped
	ch <- c.auditFailed
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c.source == nil {
		return
	}
	snap := c.source.MetricsSnapshot()

	for _, def := range authcore.MetricDefs {
		v, ok := snap.Counters[def.ID]
		if !ok {
			continue
		}
		ch <- prometheus.MustNewConstMetric(c.counters[def.ID], prometheus.CounterValue, float64(v))
	}

	if len(snap.Latency) > 0 {
		buckets := make(map[float64]uint64, len(snap.LatencyBounds))
		var cumulative uint64
		for i, n := range snap.Latency {
			cumulative += n
			if i < len(snap.LatencyBounds) {
				buckets[snap.LatencyBounds[i].Seconds()] = cumulative
			}
		}
		ch <- prometheus.MustNewConstHistogram(c.latency, cumulative, snap.LatencySum.Seconds(), buckets)
	}

	ch <- prometheus.MustNewConstMetric(c.auditDropped, prometheus.CounterValue, float64(snap.AuditDropped))
	ch <- prometheus.MustNewConstMetric(c.auditFailed, prometheus.CounterValue, float64(snap.AuditFailed))
}

// Handler serves source's metrics from a dedicated registry.
func Handler(source Source) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(NewCollector(source))
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
