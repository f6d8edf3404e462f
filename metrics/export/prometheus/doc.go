// Package prometheus exposes authcore engine metrics through
// prometheus/client_golang.
//
// [NewCollector] turns Engine.MetricsSnapshot into const metrics on every
// scrape: one authcore_*_total counter per engine counter, the
// authcore_authenticate_latency_seconds histogram and the audit dispatcher
// drop and failure counts. [Handler] serves a private registry holding the
// collector; callers that own a registry register the collector themselves.
package prometheus
