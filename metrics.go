package authcore

import (
	"time"

	"github.com/MrEthical07/authcore/internal/flows"
	"github.com/MrEthical07/authcore/internal/metrics"
)

// MetricID identifies an engine counter.
type MetricID uint16

const (
	MetricLoginSuccess MetricID = iota
	MetricLoginFailure
	MetricAccountLocked
	MetricRefreshSuccess
	MetricRefreshFailure
	MetricRefreshReuseDetected
	MetricSessionInvalidated
	MetricLogout
	MetricPasswordResetRequest
	MetricPasswordResetSuccess
	MetricPasswordResetFailure
	MetricNotifierFailure
	MetricRegister
	MetricRegisterDuplicate
	MetricAccountDeleted
	MetricRateLimitHit
	MetricSweepDeleted
	metricIDCount
)

// MetricDef names and describes a counter for exporters.
type MetricDef struct {
	ID   MetricID
	Name string
	Help string
}

// MetricDefs lists every counter in id order.
var MetricDefs = []MetricDef{
	{MetricLoginSuccess, "authcore_login_success_total", "Successful logins."},
	{MetricLoginFailure, "authcore_login_failure_total", "Failed logins."},
	{MetricAccountLocked, "authcore_account_locked_total", "Logins rejected or accounts locked by the lockout policy."},
	{MetricRefreshSuccess, "authcore_refresh_success_total", "Successful refresh rotations."},
	{MetricRefreshFailure, "authcore_refresh_failure_total", "Failed refresh attempts."},
	{MetricRefreshReuseDetected, "authcore_refresh_reuse_detected_total", "Consumed refresh tokens presented again."},
	{MetricSessionInvalidated, "authcore_session_invalidated_total", "Access tokens rejected by the single-session guard."},
	{MetricLogout, "authcore_logout_total", "Logouts."},
	{MetricPasswordResetRequest, "authcore_password_reset_request_total", "Password reset tokens issued."},
	{MetricPasswordResetSuccess, "authcore_password_reset_success_total", "Completed password resets."},
	{MetricPasswordResetFailure, "authcore_password_reset_failure_total", "Rejected password reset redemptions."},
	{MetricNotifierFailure, "authcore_notifier_failure_total", "Reset notifications that failed to deliver."},
	{MetricRegister, "authcore_register_total", "Registered accounts."},
	{MetricRegisterDuplicate, "authcore_register_duplicate_total", "Registrations rejected as duplicate."},
	{MetricAccountDeleted, "authcore_account_deleted_total", "Deleted accounts."},
	{MetricRateLimitHit, "authcore_rate_limit_hit_total", "Requests refused by the rate limiter."},
	{MetricSweepDeleted, "authcore_sweep_deleted_total", "Token rows removed by sweeps."},
}

// LatencyMetricName is the exported name of the authenticate latency histogram.
const LatencyMetricName = "authcore_authenticate_latency_seconds"

// MetricsSnapshot is a point-in-time copy of engine metrics. Latency holds
// non-cumulative bucket counts aligned with LatencyBounds.
type MetricsSnapshot struct {
	Counters      map[MetricID]uint64
	Latency       []uint64
	LatencySum    time.Duration
	LatencyBounds []time.Duration
	AuditDropped  uint64
	AuditFailed   uint64
}

func newMetrics(cfg MetricsConfig) *metrics.Metrics {
	return metrics.New(int(metricIDCount), cfg.Enabled, cfg.EnableLatencyHistograms)
}

func flowMetrics() flows.Metrics {
	return flows.Metrics{
		LoginSuccess:         int(MetricLoginSuccess),
		LoginFailure:         int(MetricLoginFailure),
		AccountLocked:        int(MetricAccountLocked),
		RefreshSuccess:       int(MetricRefreshSuccess),
		RefreshFailure:       int(MetricRefreshFailure),
		RefreshReuseDetected: int(MetricRefreshReuseDetected),
		SessionInvalidated:   int(MetricSessionInvalidated),
		Logout:               int(MetricLogout),
		PasswordResetRequest: int(MetricPasswordResetRequest),
		PasswordResetSuccess: int(MetricPasswordResetSuccess),
		PasswordResetFailure: int(MetricPasswordResetFailure),
		NotifierFailure:      int(MetricNotifierFailure),
		Register:             int(MetricRegister),
		RegisterDuplicate:    int(MetricRegisterDuplicate),
		AccountDeleted:       int(MetricAccountDeleted),
		RateLimitHit:         int(MetricRateLimitHit),
	}
}

// MetricsSnapshot returns the current counters, histogram and audit dispatcher stats.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		Counters:      make(map[MetricID]uint64, int(metricIDCount)),
		LatencyBounds: metrics.BucketBounds[:],
		AuditDropped:  e.dispatcher.Dropped(),
		AuditFailed:   e.dispatcher.Failed(),
	}
	if !e.metrics.Enabled() {
		return s
	}
	for id, v := range e.metrics.Counters() {
		s.Counters[MetricID(id)] = v
	}
	s.Latency, s.LatencySum = e.metrics.Histogram()
	return s
}
