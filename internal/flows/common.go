package flows

import (
	"context"
	"fmt"
	"time"

	"github.com/MrEthical07/authcore/audit"
	"github.com/MrEthical07/authcore/internal/rate"
	"go.uber.org/zap"
)

// Meta is the request context every audited operation receives.
type Meta struct {
	SourceAddress string
	Resource      string
}

// Errors carries the host sentinel errors flows return. Flows never return
// subpackage sentinels directly.
type Errors struct {
	InvalidCredentials error
	AccountLocked      error
	SessionInvalidated error
	TokenExpired       error
	TokenAlreadyUsed   error
	InvalidToken       error
	RateLimited        error
	NotifierFailure    error
	PasswordPolicy     error
	AccountExists      error
	InvalidInput       error
	Unavailable        error
}

// Metrics carries the counter ids flows increment.
type Metrics struct {
	LoginSuccess         int
	LoginFailure         int
	AccountLocked        int
	RefreshSuccess       int
	RefreshFailure       int
	RefreshReuseDetected int
	SessionInvalidated   int
	Logout               int
	PasswordResetRequest int
	PasswordResetSuccess int
	PasswordResetFailure int
	NotifierFailure      int
	Register             int
	RegisterDuplicate    int
	AccountDeleted       int
	RateLimitHit         int
}

// Common is embedded in every flow dependency struct.
type Common struct {
	Now          func() time.Time
	Limiter      *rate.Limiter
	StoreTimeout time.Duration
	Emit         func(context.Context, audit.Event)
	MetricInc    func(int)
	Logger       *zap.Logger
	Development  bool

	Metrics Metrics
	Errors  Errors
}

func (c *Common) normalize() {
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Emit == nil {
		c.Emit = func(context.Context, audit.Event) {}
	}
	if c.MetricInc == nil {
		c.MetricInc = func(int) {}
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}

func (c Common) audit(ctx context.Context, meta Meta, accountID int64, op, details string, success bool, metadata map[string]string) {
	c.Emit(ctx, audit.Event{
		Timestamp:     c.Now(),
		AccountID:     accountID,
		Operation:     op,
		Details:       details,
		Resource:      meta.Resource,
		SourceAddress: meta.SourceAddress,
		Success:       success,
		Metadata:      metadata,
	})
}

// admit takes one token from the bucket of (endpoint, source address).
func (c Common) admit(ctx context.Context, meta Meta, endpoint string) error {
	if c.Limiter.Allow(endpoint + ":" + meta.SourceAddress) {
		return nil
	}
	c.MetricInc(c.Metrics.RateLimitHit)
	c.audit(ctx, meta, 0, audit.OpRateLimited, "Too many requests.", false, map[string]string{
		"endpoint": endpoint,
	})
	c.Logger.Warn("rate limited",
		zap.String("endpoint", endpoint),
		zap.String("source_address", meta.SourceAddress),
	)
	return c.Errors.RateLimited
}

// bounded derives a context limited by StoreTimeout.
func (c Common) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.StoreTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.StoreTimeout)
}

func (c Common) unavailable(op string, err error) error {
	c.Logger.Error("backend failure", zap.String("operation", op), zap.Error(err))
	return fmt.Errorf("%w: %v", c.Errors.Unavailable, err)
}
