package prometheus

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeSource struct {
	snapshot authcore.MetricsSnapshot
}

func (f fakeSource) MetricsSnapshot() authcore.MetricsSnapshot { return f.snapshot }

func bounds() []time.Duration {
	return []time.Duration{
		5 * time.Millisecond, 10 * time.Millisecond, 25 * time.Millisecond, 50 * time.Millisecond,
		100 * time.Millisecond, 250 * time.Millisecond, 500 * time.Millisecond,
	}
}

func TestCollectorCounters(t *testing.T) {
	c := NewCollector(fakeSource{snapshot: authcore.MetricsSnapshot{
		Counters: map[authcore.MetricID]uint64{
			authcore.MetricLoginSuccess: 7,
			authcore.MetricRateLimitHit: 2,
		},
		AuditDropped: 3,
	}})

	expected := `
# HELP authcore_login_success_total Successful logins.
# TYPE authcore_login_success_total counter
authcore_login_success_total 7
# HELP authcore_audit_dropped_total Audit events dropped because the buffer was full or the caller gave up.
# TYPE authcore_audit_dropped_total counter
authcore_audit_dropped_total 3
`
	if err := testutil.CollectAndCompare(c, strings.NewReader(expected),
		"authcore_login_success_total", "authcore_audit_dropped_total"); err != nil {
		t.Fatalf("unexpected metrics: %v", err)
	}
}

func TestCollectorHistogramIsCumulative(t *testing.T) {
	c := NewCollector(fakeSource{snapshot: authcore.MetricsSnapshot{
		Counters:      map[authcore.MetricID]uint64{},
		Latency:       []uint64{1, 2, 3, 4, 5, 6, 7, 8},
		LatencySum:    2 * time.Second,
		LatencyBounds: bounds(),
	}})

	expected := `
# HELP authcore_authenticate_latency_seconds Latency of access-token authentication.
# TYPE authcore_authenticate_latency_seconds histogram
authcore_authenticate_latency_seconds_bucket{le="0.005"} 1
authcore_authenticate_latency_seconds_bucket{le="0.01"} 3
authcore_authenticate_latency_seconds_bucket{le="0.025"} 6
authcore_authenticate_latency_seconds_bucket{le="0.05"} 10
authcore_authenticate_latency_seconds_bucket{le="0.1"} 15
authcore_authenticate_latency_seconds_bucket{le="0.25"} 21
authcore_authenticate_latency_seconds_bucket{le="0.5"} 28
authcore_authenticate_latency_seconds_bucket{le="+Inf"} 36
authcore_authenticate_latency_seconds_sum 2
authcore_authenticate_latency_seconds_count 36
`
	if err := testutil.CollectAndCompare(c, strings.NewReader(expected), authcore.LatencyMetricName); err != nil {
		t.Fatalf("unexpected histogram: %v", err)
	}
}

func TestCollectorDisabledMetricsOmitCounters(t *testing.T) {
	c := NewCollector(fakeSource{snapshot: authcore.MetricsSnapshot{Counters: map[authcore.MetricID]uint64{}}})
	if n := testutil.CollectAndCount(c); n != 2 {
		t.Fatalf("expected only the two audit counters, got %d", n)
	}
}

func TestHandlerServesExposition(t *testing.T) {
	h := Handler(fakeSource{snapshot: authcore.MetricsSnapshot{
		Counters: map[authcore.MetricID]uint64{authcore.MetricLogout: 4},
	}})
	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "authcore_logout_total 4") {
		t.Fatalf("expected logout counter, got:\n%s", body)
	}
}
