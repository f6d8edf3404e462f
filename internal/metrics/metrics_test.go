package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestDisabledMetricsIgnoreWrites(t *testing.T) {
	m := New(4, false, true)
	m.Inc(1)
	m.Observe(time.Millisecond)
	if m.Value(1) != 0 {
		t.Fatal("disabled metrics must not count")
	}
	if h, _ := m.Histogram(); h != nil {
		t.Fatal("disabled metrics must not expose a histogram")
	}
}

func TestIncIsConcurrentSafe(t *testing.T) {
	m := New(2, true, false)
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.Inc(0)
			}
		}()
	}
	wg.Wait()
	if got := m.Value(0); got != 3200 {
		t.Fatalf("expected 3200, got %d", got)
	}
	m.Inc(-1)
	m.Inc(99)
	if got := m.Counters(); len(got) != 2 || got[1] != 0 {
		t.Fatalf("out of range ids must be ignored, got %v", got)
	}
}

func TestHistogramBuckets(t *testing.T) {
	m := New(1, true, true)
	for _, d := range []time.Duration{
		time.Millisecond,
		7 * time.Millisecond,
		7 * time.Millisecond,
		300 * time.Millisecond,
		2 * time.Second,
	} {
		m.Observe(d)
	}
	h, sum := m.Histogram()
	want := []uint64{1, 2, 0, 0, 0, 0, 1, 1}
	for i := range want {
		if h[i] != want[i] {
			t.Fatalf("bucket %d: want %d got %d (%v)", i, want[i], h[i], h)
		}
	}
	if sum != 2315*time.Millisecond {
		t.Fatalf("unexpected sum %v", sum)
	}
}

func TestAddAccumulates(t *testing.T) {
	m := New(2, true, false)
	m.Add(1, 3)
	m.Add(1, 0)
	m.Add(1, 4)
	if got := m.Value(1); got != 7 {
		t.Fatalf("expected 7, got %d", got)
	}
}
