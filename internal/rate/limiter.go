package rate

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

// Config holds token-bucket tuning parameters.
type Config struct {
	// Capacity is the bucket size and the number of admits per Window.
	Capacity int
	// Window is the time it takes an empty bucket to refill completely.
	Window time.Duration
}

// Limiter is a per-key token-bucket admission controller. Buckets are created
// lazily with full capacity and refill continuously at Capacity/Window.
type Limiter struct {
	config  Config
	every   rate.Limit
	clock   clockwork.Clock
	buckets sync.Map
}

// New creates a [Limiter]. A nil clock uses the wall clock.
func New(cfg Config, clock clockwork.Clock) *Limiter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	every := rate.Inf
	if cfg.Capacity > 0 && cfg.Window > 0 {
		every = rate.Every(cfg.Window / time.Duration(cfg.Capacity))
	}
	return &Limiter{
		config: cfg,
		every:  every,
		clock:  clock,
	}
}

// Allow consumes one token from the bucket for key and reports whether one
// was available.
func (l *Limiter) Allow(key string) bool {
	if l == nil || l.every == rate.Inf {
		return true
	}
	return l.bucket(key).AllowN(l.clock.Now(), 1)
}

func (l *Limiter) bucket(key string) *rate.Limiter {
	if b, ok := l.buckets.Load(key); ok {
		return b.(*rate.Limiter)
	}
	b, _ := l.buckets.LoadOrStore(key, rate.NewLimiter(l.every, l.config.Capacity))
	return b.(*rate.Limiter)
}

// ResetAll drops every bucket.
func (l *Limiter) ResetAll() {
	if l == nil {
		return
	}
	l.buckets.Clear()
}

// Len returns the number of live buckets.
func (l *Limiter) Len() int {
	if l == nil {
		return 0
	}
	n := 0
	l.buckets.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
