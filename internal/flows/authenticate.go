package flows

import (
	"context"
	"errors"
	"strconv"

	"github.com/MrEthical07/authcore/account"
	"github.com/MrEthical07/authcore/audit"
	"github.com/MrEthical07/authcore/internal"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/refresh"
	"github.com/MrEthical07/authcore/session"
	"go.uber.org/zap"
)

// AuthenticateDeps captures bearer-token validation dependencies.
type AuthenticateDeps struct {
	Common

	Accounts account.Store
	Codec    *jwt.Codec
	Session  session.Guard
}

// Authenticated is the result of a successful authentication.
type Authenticated struct {
	AccountID int64
	Claims    *jwt.Claims
	Account   *account.Account
}

// RunAuthenticate validates bearer and, when the session guard is enforced,
// checks it against the account's active session marker.
func RunAuthenticate(ctx context.Context, bearer string, deps AuthenticateDeps) (*Authenticated, error) {
	deps.normalize()

	token := internal.StripBearer(bearer)
	claims, err := deps.Codec.Parse(token)
	if err != nil {
		if errors.Is(err, jwt.ErrExpired) {
			return nil, deps.Errors.TokenExpired
		}
		return nil, deps.Errors.InvalidToken
	}

	accountID, ok := AccountIDFromClaims(claims)
	if !ok {
		return nil, deps.Errors.InvalidToken
	}

	out := &Authenticated{AccountID: accountID, Claims: claims}
	if !deps.Session.Enforce {
		return out, nil
	}

	sctx, cancel := deps.bounded(ctx)
	acc, err := deps.Accounts.FindByID(sctx, accountID)
	cancel()
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return nil, deps.Errors.InvalidToken
		}
		return nil, deps.unavailable("authenticate", err)
	}
	if err := deps.Session.Check(acc.ActiveTokenHash, token); err != nil {
		deps.MetricInc(deps.Metrics.SessionInvalidated)
		return nil, deps.Errors.SessionInvalidated
	}
	out.Account = acc
	return out, nil
}

// AccountIDFromClaims reads the numeric account id from the ext claims.
func AccountIDFromClaims(c *jwt.Claims) (int64, bool) {
	if c == nil || c.Extra == nil {
		return 0, false
	}
	switch v := c.Extra[ClaimAccountID].(type) {
	case float64:
		if v <= 0 || v != float64(int64(v)) {
			return 0, false
		}
		return int64(v), true
	case int64:
		return v, v > 0
	case int:
		return int64(v), v > 0
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil && n > 0
	default:
		return 0, false
	}
}

// LogoutDeps captures logout dependencies.
type LogoutDeps struct {
	AuthenticateDeps

	Refresh *refresh.Store
}

// RunLogout authenticates accessToken, clears the session marker and revokes
// every live refresh token of the account.
func RunLogout(ctx context.Context, meta Meta, accessToken string, deps LogoutDeps) error {
	deps.normalize()

	authed, err := RunAuthenticate(ctx, accessToken, deps.AuthenticateDeps)
	if err != nil {
		return err
	}

	sctx, cancel := deps.bounded(ctx)
	_, err = deps.Accounts.Update(sctx, authed.AccountID, func(a *account.Account) error {
		a.ActiveTokenHash = ""
		return nil
	})
	cancel()
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return deps.Errors.InvalidToken
		}
		return deps.unavailable("logout", err)
	}

	sctx, cancel = deps.bounded(ctx)
	revoked, err := deps.Refresh.RevokeAll(sctx, authed.AccountID)
	cancel()
	if err != nil {
		return deps.unavailable("logout", err)
	}

	deps.MetricInc(deps.Metrics.Logout)
	deps.audit(ctx, meta, authed.AccountID, audit.OpLogout, "User logged out.", true, map[string]string{
		"revoked_refresh_tokens": strconv.FormatInt(revoked, 10),
	})
	deps.Logger.Debug("logout", zap.Int64("account_id", authed.AccountID), zap.Int64("revoked", revoked))
	return nil
}
