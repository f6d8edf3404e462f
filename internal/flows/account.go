package flows

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/MrEthical07/authcore/account"
	"github.com/MrEthical07/authcore/audit"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/refresh"
	"github.com/MrEthical07/authcore/reset"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"go.uber.org/zap"
)

// DefaultRole is assigned to self-registered accounts.
const DefaultRole = "USER"

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// RegisterInput is the flow-local registration request.
type RegisterInput struct {
	Username string
	Email    string
	Password string
	Roles    []string
}

// Validate checks the shape of the request. The password policy is applied separately.
func (in RegisterInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Username, validation.Required, validation.RuneLength(3, 50), validation.Match(usernamePattern)),
		validation.Field(&in.Email, validation.Required, validation.RuneLength(3, 254), is.Email),
		validation.Field(&in.Password, validation.Required),
	)
}

// AccountDeps captures registration and deletion dependencies.
type AccountDeps struct {
	Common

	Accounts account.Store
	Hasher   password.Hasher
	Policy   password.Policy
	Refresh  *refresh.Store
	Resets   reset.Repository
}

// RunRegister creates an account after validation, policy and uniqueness checks.
func RunRegister(ctx context.Context, meta Meta, in RegisterInput, deps AccountDeps) (*account.Account, error) {
	deps.normalize()

	if err := deps.admit(ctx, meta, "register"); err != nil {
		return nil, err
	}

	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", deps.Errors.InvalidInput, err)
	}
	if err := deps.Policy.Validate(in.Password); err != nil {
		return nil, fmt.Errorf("%w: %v", deps.Errors.PasswordPolicy, err)
	}

	sctx, cancel := deps.bounded(ctx)
	_, errUser := deps.Accounts.FindByUsernameOrEmail(sctx, in.Username)
	_, errEmail := deps.Accounts.FindByEmail(sctx, in.Email)
	cancel()
	for _, err := range []error{errUser, errEmail} {
		switch {
		case err == nil:
			deps.MetricInc(deps.Metrics.RegisterDuplicate)
			return nil, deps.Errors.AccountExists
		case !errors.Is(err, account.ErrNotFound):
			return nil, deps.unavailable("register", err)
		}
	}

	hash, err := deps.Hasher.Hash(in.Password)
	if err != nil {
		return nil, deps.unavailable("register", err)
	}

	roles := in.Roles
	if len(roles) == 0 {
		roles = []string{DefaultRole}
	}
	now := deps.Now()
	acc := &account.Account{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Roles:        roles,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	sctx, cancel = deps.bounded(ctx)
	err = deps.Accounts.Create(sctx, acc)
	cancel()
	if err != nil {
		if errors.Is(err, account.ErrDuplicate) {
			deps.MetricInc(deps.Metrics.RegisterDuplicate)
			return nil, deps.Errors.AccountExists
		}
		return nil, deps.unavailable("register", err)
	}

	deps.MetricInc(deps.Metrics.Register)
	deps.audit(ctx, meta, acc.ID, audit.OpRegister, "User registered.", true, nil)
	deps.Logger.Info("account registered", zap.Int64("account_id", acc.ID))
	return acc, nil
}

// RunDeleteAccount removes the account's refresh and reset rows, then the account.
func RunDeleteAccount(ctx context.Context, meta Meta, accountID int64, deps AccountDeps) error {
	deps.normalize()

	sctx, cancel := deps.bounded(ctx)
	defer cancel()

	if _, err := deps.Accounts.FindByID(sctx, accountID); err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return deps.Errors.InvalidInput
		}
		return deps.unavailable("delete_account", err)
	}
	if _, err := deps.Refresh.DeleteAll(sctx, accountID); err != nil {
		return deps.unavailable("delete_account", err)
	}
	if _, err := deps.Resets.DeleteAccount(sctx, accountID); err != nil {
		return deps.unavailable("delete_account", err)
	}
	if err := deps.Accounts.Delete(sctx, accountID); err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return deps.Errors.InvalidInput
		}
		return deps.unavailable("delete_account", err)
	}

	deps.MetricInc(deps.Metrics.AccountDeleted)
	deps.audit(ctx, meta, accountID, audit.OpUserDeletion, "User account deleted.", true, nil)
	return nil
}
