package authcore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MrEthical07/authcore/account"
	"github.com/MrEthical07/authcore/audit"
	internalaudit "github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/internal/flows"
	"github.com/MrEthical07/authcore/internal/jobs"
	"github.com/MrEthical07/authcore/internal/limiters"
	"github.com/MrEthical07/authcore/internal/logging"
	"github.com/MrEthical07/authcore/internal/metrics"
	"github.com/MrEthical07/authcore/internal/rate"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/notify"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/refresh"
	"github.com/MrEthical07/authcore/reset"
	"github.com/MrEthical07/authcore/session"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Engine is the authentication core. Build one with New().Build(). An Engine
// is safe for concurrent use.
type Engine struct {
	config   Config
	logger   *zap.Logger
	clock    clockwork.Clock
	reporter *logging.Reporter

	accounts  account.Store
	codec     *jwt.Codec
	hasher    password.Hasher
	dummyHash string
	policy    password.Policy
	lockout   limiters.LockoutPolicy
	guard     session.Guard
	limiter   *rate.Limiter
	refresh   *refresh.Store
	resets    reset.Repository
	notifier  notify.Notifier

	dispatcher *internalaudit.Dispatcher
	metrics    *metrics.Metrics
	sweeperMu  sync.Mutex
	sweeper    *jobs.Sweeper
}

func hostErrors() flows.Errors {
	return flows.Errors{
		InvalidCredentials: ErrInvalidCredentials,
		AccountLocked:      ErrAccountLocked,
		SessionInvalidated: ErrSessionInvalidated,
		TokenExpired:       ErrTokenExpired,
		TokenAlreadyUsed:   ErrTokenAlreadyUsed,
		InvalidToken:       ErrInvalidToken,
		RateLimited:        ErrRateLimited,
		NotifierFailure:    ErrNotifierFailure,
		PasswordPolicy:     ErrPasswordPolicy,
		AccountExists:      ErrAccountExists,
		InvalidInput:       ErrInvalidInput,
		Unavailable:        ErrUnavailable,
	}
}

func (e *Engine) common() flows.Common {
	return flows.Common{
		Now:          e.clock.Now,
		Limiter:      e.limiter,
		StoreTimeout: e.config.Timeouts.Store,
		Emit:         e.emitAudit,
		MetricInc:    e.metrics.Inc,
		Logger:       e.logger,
		Development:  e.config.Development(),
		Metrics:      flowMetrics(),
		Errors:       hostErrors(),
	}
}

func (e *Engine) emitAudit(ctx context.Context, ev audit.Event) {
	if e.dispatcher == nil {
		return
	}
	e.dispatcher.Emit(ctx, ev)
}

func (e *Engine) reportAuditFailure(ev audit.Event, err error) {
	e.reporter.Report("audit sink failed", err, map[string]string{"operation": ev.Operation})
}

func (e *Engine) authenticateDeps() flows.AuthenticateDeps {
	return flows.AuthenticateDeps{
		Common:   e.common(),
		Accounts: e.accounts,
		Codec:    e.codec,
		Session:  e.guard,
	}
}

func (e *Engine) resetDeps() flows.PasswordResetDeps {
	return flows.PasswordResetDeps{
		Common:          e.common(),
		Accounts:        e.accounts,
		Resets:          e.resets,
		Refresh:         e.refresh,
		Hasher:          e.hasher,
		Policy:          e.policy,
		Notifier:        e.notifier,
		LinkTTL:         e.config.Reset.LinkTTL,
		CodeTTL:         e.config.Reset.CodeTTL,
		CodeDigits:      e.config.Reset.CodeDigits,
		LinkURL:         e.config.Reset.LinkURL,
		NotifierTimeout: e.config.Timeouts.Notifier,
		RevokeSessions:  e.config.Reset.RevokeSessions,
	}
}

func (e *Engine) accountDeps() flows.AccountDeps {
	return flows.AccountDeps{
		Common:   e.common(),
		Accounts: e.accounts,
		Hasher:   e.hasher,
		Policy:   e.policy,
		Refresh:  e.refresh,
		Resets:   e.resets,
	}
}

func (e *Engine) pair(res *flows.LoginResult) TokenPair {
	return TokenPair{
		AccessToken:      res.AccessToken,
		RefreshToken:     res.RefreshToken.Raw,
		TokenType:        "Bearer",
		AccessExpiresAt:  e.clock.Now().Add(e.config.JWT.AccessTTL),
		RefreshExpiresAt: res.RefreshToken.ExpiresAt,
	}
}

// Login verifies identifier (username or email) and password and returns a
// fresh token pair.
func (e *Engine) Login(ctx context.Context, meta RequestMeta, identifier, password string) (TokenPair, error) {
	res, err := flows.RunLogin(ctx, meta.flow(), identifier, password, flows.LoginDeps{
		Common:        e.common(),
		Accounts:      e.accounts,
		Hasher:        e.hasher,
		Lockout:       e.lockout,
		Codec:         e.codec,
		Refresh:       e.refresh,
		Session:       e.guard,
		DummyHash:     e.dummyHash,
		UpgradeHashes: e.config.Password.UpgradeOnLogin,
	})
	if err != nil {
		return TokenPair{}, err
	}
	return e.pair(res), nil
}

// Refresh redeems a refresh token and rotates it. The presented token is
// consumed even when a later step fails.
func (e *Engine) Refresh(ctx context.Context, meta RequestMeta, refreshToken string) (TokenPair, error) {
	res, err := flows.RunRefresh(ctx, meta.flow(), refreshToken, flows.RefreshDeps{
		Common:        e.common(),
		Accounts:      e.accounts,
		Lockout:       e.lockout,
		Codec:         e.codec,
		Refresh:       e.refresh,
		Session:       e.guard,
		RevokeOnReuse: e.config.Refresh.RevokeOnReuse,
	})
	if err != nil {
		return TokenPair{}, err
	}
	return e.pair(res), nil
}

// Logout ends the session behind accessToken and revokes the account's live
// refresh tokens.
func (e *Engine) Logout(ctx context.Context, meta RequestMeta, accessToken string) error {
	return flows.RunLogout(ctx, meta.flow(), accessToken, flows.LogoutDeps{
		AuthenticateDeps: e.authenticateDeps(),
		Refresh:          e.refresh,
	})
}

// Authenticate validates a bearer access token. A "Bearer " prefix is accepted.
func (e *Engine) Authenticate(ctx context.Context, bearer string) (*Identity, error) {
	var start time.Time
	if e.metrics.LatencyEnabled() {
		start = e.clock.Now()
	}
	authed, err := flows.RunAuthenticate(ctx, bearer, e.authenticateDeps())
	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(e.clock.Since(start))
	}
	if err != nil {
		return nil, err
	}
	return identityFrom(authed), nil
}

func identityFrom(a *flows.Authenticated) *Identity {
	c := a.Claims
	id := &Identity{
		AccountID: a.AccountID,
		Subject:   c.Subject,
		Roles:     append([]string(nil), c.Roles...),
		TokenID:   c.ID,
	}
	if email, ok := c.Extra[flows.ClaimEmail].(string); ok {
		id.Email = email
	}
	if c.IssuedAt != nil {
		id.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		id.ExpiresAt = c.ExpiresAt.Time
	}
	return id
}

// RequestPasswordReset issues a reset link, or a numeric code when asCode is
// set, and sends it to the account's email. Unknown emails return nil.
func (e *Engine) RequestPasswordReset(ctx context.Context, meta RequestMeta, email string, asCode bool) error {
	err := flows.RunRequestPasswordReset(ctx, meta.flow(), email, asCode, e.resetDeps())
	if errors.Is(err, ErrNotifierFailure) {
		e.reporter.Report("reset notification failed", err, nil)
	}
	return err
}

// RedeemPasswordReset consumes token and sets newPassword.
func (e *Engine) RedeemPasswordReset(ctx context.Context, meta RequestMeta, token, newPassword string) error {
	return flows.RunRedeemPasswordReset(ctx, meta.flow(), token, newPassword, e.resetDeps())
}

// Register creates an account with the USER role unless in.Roles is set.
func (e *Engine) Register(ctx context.Context, meta RequestMeta, in RegisterInput) (*account.Account, error) {
	return flows.RunRegister(ctx, meta.flow(), flows.RegisterInput{
		Username: in.Username,
		Email:    in.Email,
		Password: in.Password,
		Roles:    in.Roles,
	}, e.accountDeps())
}

// DeleteAccount removes the account with its refresh and reset tokens.
func (e *Engine) DeleteAccount(ctx context.Context, meta RequestMeta, accountID int64) error {
	return flows.RunDeleteAccount(ctx, meta.flow(), accountID, e.accountDeps())
}

// HashPassword hashes raw with the configured algorithm and pepper after
// checking the password policy.
func (e *Engine) HashPassword(raw string) (string, error) {
	if err := e.policy.Validate(raw); err != nil {
		return "", fmt.Errorf("%w: %v", ErrPasswordPolicy, err)
	}
	return e.hasher.Hash(raw)
}

// Sweep deletes used and long-expired refresh and reset tokens, bounded by
// Refresh.SweepTimeout. It is idempotent.
func (e *Engine) Sweep(ctx context.Context) (SweepResult, error) {
	if d := e.config.Refresh.SweepTimeout; d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	var res SweepResult
	n, err := e.refresh.Sweep(ctx, e.config.Refresh.Retention)
	if err != nil {
		return res, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	res.RefreshTokens = n

	cutoff := e.clock.Now().Add(-e.config.Refresh.Retention)
	n, err = e.resets.DeleteStale(ctx, cutoff)
	if err != nil {
		return res, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	res.ResetTokens = n

	e.metrics.Add(int(MetricSweepDeleted), uint64(res.RefreshTokens+res.ResetTokens))
	return res, nil
}

// StartSweeper schedules Sweep on Refresh.SweepSchedule until Close.
// Calling it again, from any goroutine, is a no-op.
func (e *Engine) StartSweeper() error {
	e.sweeperMu.Lock()
	defer e.sweeperMu.Unlock()
	if e.sweeper != nil {
		return nil
	}
	s, err := jobs.NewSweeper(func(ctx context.Context) (int64, int64, error) {
		res, err := e.Sweep(ctx)
		return res.RefreshTokens, res.ResetTokens, err
	}, jobs.Options{
		Schedule: e.config.Refresh.SweepSchedule,
		Timeout:  e.config.Refresh.SweepTimeout,
		Location: time.UTC,
		Logger:   e.logger,
		OnError: func(err error) {
			e.reporter.Report("token sweep failed", err, nil)
		},
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	e.sweeper = s
	s.Start()
	return nil
}

// ResetRateLimits drops every rate-limit bucket.
func (e *Engine) ResetRateLimits() {
	e.limiter.ResetAll()
}

// Close stops the sweeper and drains pending audit events.
func (e *Engine) Close(ctx context.Context) {
	e.sweeperMu.Lock()
	s := e.sweeper
	e.sweeperMu.Unlock()
	if s != nil {
		s.Stop(ctx)
	}
	e.dispatcher.Close()
}
