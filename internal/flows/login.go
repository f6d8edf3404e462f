package flows

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/authcore/account"
	"github.com/MrEthical07/authcore/audit"
	"github.com/MrEthical07/authcore/internal/limiters"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/refresh"
	"github.com/MrEthical07/authcore/session"
	"go.uber.org/zap"
)

// ClaimAccountID and ClaimEmail are the ext claim keys carried by access tokens.
const (
	ClaimAccountID = "uid"
	ClaimEmail     = "email"
)

// LoginResult is the flow-local login response.
type LoginResult struct {
	Account      *account.Account
	AccessToken  string
	RefreshToken refresh.Issued
}

// LoginDeps captures login dependencies.
type LoginDeps struct {
	Common

	Accounts      account.Store
	Hasher        password.Hasher
	Lockout       limiters.LockoutPolicy
	Codec         *jwt.Codec
	Refresh       *refresh.Store
	Session       session.Guard
	DummyHash     string
	UpgradeHashes bool
}

var errLockedDuringLogin = errors.New("account locked during login")

// IdentityClaims returns the ext claims minted for acc.
func IdentityClaims(acc *account.Account) map[string]any {
	return map[string]any{
		ClaimAccountID: acc.ID,
		ClaimEmail:     acc.Email,
	}
}

// RunLogin authenticates identifier/password and issues an access and refresh token.
func RunLogin(ctx context.Context, meta Meta, identifier, pw string, deps LoginDeps) (*LoginResult, error) {
	deps.normalize()

	if err := deps.admit(ctx, meta, "login"); err != nil {
		return nil, err
	}

	identifier = strings.TrimSpace(identifier)
	if identifier == "" || pw == "" {
		deps.Hasher.Matches("dummy-password", deps.DummyHash)
		deps.MetricInc(deps.Metrics.LoginFailure)
		return nil, deps.Errors.InvalidCredentials
	}

	sctx, cancel := deps.bounded(ctx)
	acc, err := deps.Accounts.FindByUsernameOrEmail(sctx, identifier)
	cancel()
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			deps.Hasher.Matches(pw, deps.DummyHash)
			deps.MetricInc(deps.Metrics.LoginFailure)
			deps.audit(ctx, meta, 0, audit.OpLoginFailed, "Unknown account.", false, nil)
			return nil, deps.Errors.InvalidCredentials
		}
		return nil, deps.unavailable("login", err)
	}

	now := deps.Now()
	if deps.Lockout.Locked(acc, now) {
		deps.MetricInc(deps.Metrics.AccountLocked)
		deps.audit(ctx, meta, acc.ID, audit.OpAccountLocked, "Login attempt on a locked account.", false, nil)
		return nil, deps.Errors.AccountLocked
	}

	if !deps.Hasher.Matches(pw, acc.PasswordHash) {
		return nil, recordLoginFailure(ctx, meta, acc.ID, deps)
	}

	access, err := deps.Codec.Generate(acc.Username, acc.Roles, IdentityClaims(acc))
	if err != nil {
		return nil, deps.unavailable("login", err)
	}
	marker := deps.Session.Mark(access)

	var rehash string
	if deps.UpgradeHashes {
		if up, ok := deps.Hasher.(password.Upgrader); ok {
			if need, err := up.NeedsUpgrade(acc.PasswordHash); err == nil && need {
				if h, err := deps.Hasher.Hash(pw); err == nil {
					rehash = h
				} else {
					deps.Logger.Warn("password rehash failed", zap.Int64("account_id", acc.ID), zap.Error(err))
				}
			}
		}
	}

	// The refresh row must exist before the session marker moves.
	sctx, cancel = deps.bounded(ctx)
	issued, err := deps.Refresh.Create(sctx, acc.ID)
	cancel()
	if err != nil {
		return nil, deps.unavailable("login", err)
	}

	sctx, cancel = deps.bounded(ctx)
	updated, err := deps.Accounts.Update(sctx, acc.ID, func(a *account.Account) error {
		if deps.Lockout.Locked(a, now) {
			return errLockedDuringLogin
		}
		deps.Lockout.RecordSuccess(a)
		if deps.Session.Enforce {
			a.ActiveTokenHash = marker
		}
		if rehash != "" {
			a.PasswordHash = rehash
		}
		return nil
	})
	cancel()
	if err != nil {
		discardIssued(ctx, deps.Refresh, issued, acc.ID, deps.Common)
	}
	switch {
	case errors.Is(err, errLockedDuringLogin):
		deps.MetricInc(deps.Metrics.AccountLocked)
		deps.audit(ctx, meta, acc.ID, audit.OpAccountLocked, "Login attempt on a locked account.", false, nil)
		return nil, deps.Errors.AccountLocked
	case errors.Is(err, account.ErrNotFound):
		deps.MetricInc(deps.Metrics.LoginFailure)
		return nil, deps.Errors.InvalidCredentials
	case err != nil:
		return nil, deps.unavailable("login", err)
	}

	deps.MetricInc(deps.Metrics.LoginSuccess)
	deps.audit(ctx, meta, acc.ID, audit.OpLogin, "User successfully logged in.", true, nil)
	deps.Logger.Debug("login succeeded", zap.Int64("account_id", acc.ID))

	return &LoginResult{
		Account:      updated,
		AccessToken:  access,
		RefreshToken: issued,
	}, nil
}

// discardIssued consumes a refresh token that was never handed to the caller.
func discardIssued(ctx context.Context, store *refresh.Store, issued refresh.Issued, accountID int64, c Common) {
	sctx, cancel := c.bounded(context.WithoutCancel(ctx))
	defer cancel()
	if _, err := store.Redeem(sctx, issued.Raw); err != nil {
		c.Logger.Warn("discard undelivered refresh token failed", zap.Int64("account_id", accountID), zap.Error(err))
	}
}

func recordLoginFailure(ctx context.Context, meta Meta, accountID int64, deps LoginDeps) error {
	now := deps.Now()
	var lockedNow bool

	sctx, cancel := deps.bounded(ctx)
	updated, err := deps.Accounts.Update(sctx, accountID, func(a *account.Account) error {
		lockedNow = deps.Lockout.RecordFailure(a, now)
		return nil
	})
	cancel()
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			deps.MetricInc(deps.Metrics.LoginFailure)
			return deps.Errors.InvalidCredentials
		}
		return deps.unavailable("login", err)
	}

	deps.MetricInc(deps.Metrics.LoginFailure)
	deps.audit(ctx, meta, accountID, audit.OpLoginFailed,
		fmt.Sprintf("Invalid password. Failed attempts: %d.", updated.FailedAttempts), false, nil)

	if lockedNow {
		deps.MetricInc(deps.Metrics.AccountLocked)
		deps.audit(ctx, meta, accountID, audit.OpAccountLocked,
			fmt.Sprintf("Account locked after %d failed attempts.", updated.FailedAttempts), true, nil)
		deps.Logger.Warn("account locked", zap.Int64("account_id", accountID))
	}
	return deps.Errors.InvalidCredentials
}
