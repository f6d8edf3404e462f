package flows

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/authcore/account"
	"github.com/MrEthical07/authcore/audit"
	"github.com/MrEthical07/authcore/internal"
	"github.com/MrEthical07/authcore/notify"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/refresh"
	"github.com/MrEthical07/authcore/reset"
	"go.uber.org/zap"
)

const maxCodeAttempts = 5

// PasswordResetDeps captures password reset dependencies.
type PasswordResetDeps struct {
	Common

	Accounts account.Store
	Resets   reset.Repository
	Refresh  *refresh.Store
	Hasher   password.Hasher
	Policy   password.Policy
	Notifier notify.Notifier

	LinkTTL         time.Duration
	CodeTTL         time.Duration
	CodeDigits      int
	LinkURL         string
	NotifierTimeout time.Duration
	RevokeSessions  bool
}

// RunRequestPasswordReset creates a reset token for email and dispatches it.
// An unknown email returns nil without creating anything.
func RunRequestPasswordReset(ctx context.Context, meta Meta, email string, asCode bool, deps PasswordResetDeps) error {
	deps.normalize()

	if err := deps.admit(ctx, meta, "password_reset_request"); err != nil {
		return err
	}

	email = strings.TrimSpace(email)
	if email == "" {
		return nil
	}

	sctx, cancel := deps.bounded(ctx)
	acc, err := deps.Accounts.FindByEmail(sctx, email)
	cancel()
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			deps.Logger.Debug("password reset requested for unknown email")
			return nil
		}
		return deps.unavailable("password_reset_request", err)
	}

	now := deps.Now()
	mode := reset.ModeLink
	ttl := deps.LinkTTL
	if asCode {
		mode = reset.ModeCode
		ttl = deps.CodeTTL
	}

	var rec reset.Record
	for attempt := 0; ; attempt++ {
		token, err := newResetSecret(mode, deps.CodeDigits)
		if err != nil {
			return deps.unavailable("password_reset_request", err)
		}
		rec = reset.Record{
			ID:        internal.NewID(),
			AccountID: acc.ID,
			Token:     token,
			Mode:      mode,
			ExpiresAt: now.Add(ttl),
			CreatedAt: now,
		}

		sctx, cancel = deps.bounded(ctx)
		err = deps.Resets.Replace(sctx, rec)
		cancel()
		if err == nil {
			break
		}
		if errors.Is(err, reset.ErrDuplicateToken) && attempt < maxCodeAttempts-1 {
			continue
		}
		return deps.unavailable("password_reset_request", err)
	}

	if deps.Development {
		deps.Logger.Debug("password reset secret issued",
			zap.Int64("account_id", acc.ID),
			zap.String("mode", mode.String()),
			zap.String("secret", rec.Token),
		)
	}

	subject, body := resetMessage(rec, deps.LinkURL, ttl)
	nctx, ncancel := ctx, context.CancelFunc(func() {})
	if deps.NotifierTimeout > 0 {
		nctx, ncancel = context.WithTimeout(ctx, deps.NotifierTimeout)
	}
	err = deps.Notifier.Send(nctx, acc.Email, subject, body)
	ncancel()
	if err != nil {
		deps.MetricInc(deps.Metrics.NotifierFailure)
		deps.audit(ctx, meta, acc.ID, audit.OpPasswordResetRequest, "Password reset notification failed.", false, nil)
		deps.Logger.Error("password reset notification failed", zap.Int64("account_id", acc.ID), zap.Error(err))
		return fmt.Errorf("%w: %v", deps.Errors.NotifierFailure, err)
	}

	deps.MetricInc(deps.Metrics.PasswordResetRequest)
	deps.audit(ctx, meta, acc.ID, audit.OpPasswordResetRequest, "Password reset requested.", true, map[string]string{
		"mode": mode.String(),
	})
	return nil
}

// RunRedeemPasswordReset consumes token and sets newPassword.
//
// Checks run in a fixed order: unknown token, expiry, prior use, password
// policy. The row is claimed with an atomic unused-to-used transition before
// the new hash is saved; the claim is released again if that save fails.
func RunRedeemPasswordReset(ctx context.Context, meta Meta, token, newPassword string, deps PasswordResetDeps) error {
	deps.normalize()

	if err := deps.admit(ctx, meta, "password_reset_redeem"); err != nil {
		return err
	}

	token = strings.TrimSpace(token)
	if token == "" {
		deps.MetricInc(deps.Metrics.PasswordResetFailure)
		return deps.Errors.InvalidToken
	}

	sctx, cancel := deps.bounded(ctx)
	rec, err := deps.Resets.FindByToken(sctx, token)
	cancel()
	if err != nil {
		deps.MetricInc(deps.Metrics.PasswordResetFailure)
		if errors.Is(err, reset.ErrNotFound) {
			return deps.Errors.InvalidToken
		}
		return deps.unavailable("password_reset", err)
	}

	if !deps.Now().Before(rec.ExpiresAt) {
		deps.MetricInc(deps.Metrics.PasswordResetFailure)
		return deps.Errors.TokenExpired
	}
	if rec.Used {
		deps.MetricInc(deps.Metrics.PasswordResetFailure)
		return deps.Errors.TokenAlreadyUsed
	}
	if err := deps.Policy.Validate(newPassword); err != nil {
		deps.MetricInc(deps.Metrics.PasswordResetFailure)
		return fmt.Errorf("%w: %v", deps.Errors.PasswordPolicy, err)
	}

	hash, err := deps.Hasher.Hash(newPassword)
	if err != nil {
		return deps.unavailable("password_reset", err)
	}

	sctx, cancel = deps.bounded(ctx)
	claimed, err := deps.Resets.MarkUsed(sctx, token)
	cancel()
	if err != nil {
		return deps.unavailable("password_reset", err)
	}
	if !claimed {
		deps.MetricInc(deps.Metrics.PasswordResetFailure)
		return deps.Errors.TokenAlreadyUsed
	}

	sctx, cancel = deps.bounded(ctx)
	_, err = deps.Accounts.Update(sctx, rec.AccountID, func(a *account.Account) error {
		a.PasswordHash = hash
		if deps.RevokeSessions {
			a.ActiveTokenHash = ""
		}
		return nil
	})
	cancel()
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return deps.Errors.InvalidToken
		}
		releaseResetClaim(ctx, token, rec.AccountID, deps)
		return deps.unavailable("password_reset", err)
	}

	if deps.RevokeSessions {
		sctx, cancel = deps.bounded(ctx)
		_, err = deps.Refresh.RevokeAll(sctx, rec.AccountID)
		cancel()
		if err != nil {
			deps.Logger.Error("revoke refresh tokens after reset failed", zap.Int64("account_id", rec.AccountID), zap.Error(err))
		}
	}

	deps.MetricInc(deps.Metrics.PasswordResetSuccess)
	deps.audit(ctx, meta, rec.AccountID, audit.OpPasswordReset, "Password reset completed.", true, map[string]string{
		"mode": rec.Mode.String(),
	})
	return nil
}

// releaseResetClaim returns a claimed row to unused after the password write
// failed, so the holder can retry with the same secret.
func releaseResetClaim(ctx context.Context, token string, accountID int64, deps PasswordResetDeps) {
	sctx, cancel := deps.bounded(context.WithoutCancel(ctx))
	err := deps.Resets.Release(sctx, token)
	cancel()
	if err != nil {
		deps.Logger.Error("release reset claim failed", zap.Int64("account_id", accountID), zap.Error(err))
	}
}

func newResetSecret(mode reset.Mode, digits int) (string, error) {
	if mode == reset.ModeCode {
		return internal.NewOTP(digits)
	}
	return internal.NewLinkToken()
}

func resetMessage(rec reset.Record, linkURL string, ttl time.Duration) (subject, body string) {
	minutes := int(ttl / time.Minute)
	if rec.Mode == reset.ModeCode {
		return "Your password reset code",
			fmt.Sprintf("Your password reset code is %s.\nIt expires in %d minutes.", rec.Token, minutes)
	}
	link := rec.Token
	if linkURL != "" {
		sep := "?"
		if strings.Contains(linkURL, "?") {
			sep = "&"
		}
		link = linkURL + sep + "token=" + rec.Token
	}
	return "Reset your password",
		fmt.Sprintf("Use the link below to reset your password:\n%s\nThe link expires in %d minutes.", link, minutes)
}
