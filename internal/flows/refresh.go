package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/authcore/account"
	"github.com/MrEthical07/authcore/audit"
	"github.com/MrEthical07/authcore/internal/limiters"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/refresh"
	"github.com/MrEthical07/authcore/session"
	"go.uber.org/zap"
)

// RefreshDeps captures refresh-rotation dependencies.
type RefreshDeps struct {
	Common

	Accounts account.Store
	Lockout  limiters.LockoutPolicy
	Codec    *jwt.Codec
	Refresh  *refresh.Store
	Session  session.Guard
	// RevokeOnReuse revokes every live refresh token of the account, and clears
	// its session marker, when a consumed token is presented again.
	RevokeOnReuse bool
}

// RunRefresh redeems raw and issues a new token pair. The presented token is
// consumed before anything else happens, so failures are never retried.
func RunRefresh(ctx context.Context, meta Meta, raw string, deps RefreshDeps) (*LoginResult, error) {
	deps.normalize()

	if err := deps.admit(ctx, meta, "refresh"); err != nil {
		return nil, err
	}

	sctx, cancel := deps.bounded(ctx)
	accountID, err := deps.Refresh.Redeem(sctx, raw)
	cancel()
	if err != nil {
		deps.MetricInc(deps.Metrics.RefreshFailure)
		switch {
		case errors.Is(err, refresh.ErrNotFound):
			return nil, deps.Errors.InvalidToken
		case errors.Is(err, refresh.ErrExpired):
			return nil, deps.Errors.TokenExpired
		case errors.Is(err, refresh.ErrConsumed):
			handleRefreshReuse(ctx, meta, accountID, deps)
			return nil, deps.Errors.TokenAlreadyUsed
		default:
			return nil, deps.unavailable("refresh", err)
		}
	}

	sctx, cancel = deps.bounded(ctx)
	acc, err := deps.Accounts.FindByID(sctx, accountID)
	cancel()
	if err != nil {
		deps.MetricInc(deps.Metrics.RefreshFailure)
		if errors.Is(err, account.ErrNotFound) {
			return nil, deps.Errors.InvalidToken
		}
		return nil, deps.unavailable("refresh", err)
	}
	if deps.Lockout.Locked(acc, deps.Now()) {
		deps.MetricInc(deps.Metrics.RefreshFailure)
		deps.audit(ctx, meta, acc.ID, audit.OpAccountLocked, "Refresh attempt on a locked account.", false, nil)
		return nil, deps.Errors.AccountLocked
	}

	access, err := deps.Codec.Generate(acc.Username, acc.Roles, IdentityClaims(acc))
	if err != nil {
		return nil, deps.unavailable("refresh", err)
	}

	sctx, cancel = deps.bounded(ctx)
	issued, err := deps.Refresh.Create(sctx, acc.ID)
	cancel()
	if err != nil {
		return nil, deps.unavailable("refresh", err)
	}

	if deps.Session.Enforce {
		marker := deps.Session.Mark(access)
		sctx, cancel = deps.bounded(ctx)
		updated, err := deps.Accounts.Update(sctx, acc.ID, func(a *account.Account) error {
			a.ActiveTokenHash = marker
			return nil
		})
		cancel()
		if err != nil {
			discardIssued(ctx, deps.Refresh, issued, acc.ID, deps.Common)
			deps.MetricInc(deps.Metrics.RefreshFailure)
			if errors.Is(err, account.ErrNotFound) {
				return nil, deps.Errors.InvalidToken
			}
			return nil, deps.unavailable("refresh", err)
		}
		acc = updated
	}

	deps.MetricInc(deps.Metrics.RefreshSuccess)
	deps.audit(ctx, meta, acc.ID, audit.OpTokenRefresh, "Access token refreshed.", true, nil)

	return &LoginResult{
		Account:      acc,
		AccessToken:  access,
		RefreshToken: issued,
	}, nil
}

func handleRefreshReuse(ctx context.Context, meta Meta, accountID int64, deps RefreshDeps) {
	deps.MetricInc(deps.Metrics.RefreshReuseDetected)
	deps.audit(ctx, meta, accountID, audit.OpRefreshTokenReuse, "Consumed refresh token presented again.", false, nil)
	if !deps.RevokeOnReuse || accountID == 0 {
		return
	}

	sctx, cancel := deps.bounded(ctx)
	defer cancel()
	if _, err := deps.Refresh.RevokeAll(sctx, accountID); err != nil {
		deps.Logger.Error("revoke after refresh reuse failed", zap.Int64("account_id", accountID), zap.Error(err))
	}
	if _, err := deps.Accounts.Update(sctx, accountID, func(a *account.Account) error {
		a.ActiveTokenHash = ""
		return nil
	}); err != nil && !errors.Is(err, account.ErrNotFound) {
		deps.Logger.Error("clear session after refresh reuse failed", zap.Int64("account_id", accountID), zap.Error(err))
	}
}
