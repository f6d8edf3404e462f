package limiters

import (
	"time"

	"github.com/MrEthical07/authcore/account"
)

// LockoutPolicy drives the failed-login state machine on an account record.
//
//	unlocked --failure--> unlocked (FailedAttempts++)
//	unlocked --failure, FailedAttempts >= Threshold--> locked (LockTime = now)
//	locked --attempt after Cooldown--> unlocked (FailedAttempts = 0, LockTime = nil)
//
// Lock expiry is evaluated lazily by the caller on the next login attempt.
type LockoutPolicy struct {
	Threshold int
	Cooldown  time.Duration
}

// Enabled reports whether failures are counted at all.
func (p LockoutPolicy) Enabled() bool {
	return p.Threshold > 0
}

// Locked reports whether acc is locked at now, taking the cooldown into account.
func (p LockoutPolicy) Locked(acc *account.Account, now time.Time) bool {
	if acc == nil || !acc.AccountLocked {
		return false
	}
	return !p.cooldownElapsed(acc, now)
}

// ExpireLock clears an elapsed lock in place. It returns true when acc changed.
func (p LockoutPolicy) ExpireLock(acc *account.Account, now time.Time) bool {
	if acc == nil || !acc.AccountLocked || !p.cooldownElapsed(acc, now) {
		return false
	}
	acc.AccountLocked = false
	acc.LockTime = nil
	acc.FailedAttempts = 0
	return true
}

// RecordFailure counts one failed login and returns true when this failure
// transitioned the account to locked.
func (p LockoutPolicy) RecordFailure(acc *account.Account, now time.Time) bool {
	if acc == nil || !p.Enabled() {
		return false
	}
	p.ExpireLock(acc, now)
	if acc.AccountLocked {
		return false
	}

	acc.FailedAttempts++
	if acc.FailedAttempts < p.Threshold {
		return false
	}
	lockedAt := now
	acc.AccountLocked = true
	acc.LockTime = &lockedAt
	return true
}

// RecordSuccess resets the counter after a successful login.
func (p LockoutPolicy) RecordSuccess(acc *account.Account) {
	if acc == nil {
		return
	}
	acc.FailedAttempts = 0
	acc.AccountLocked = false
	acc.LockTime = nil
}

func (p LockoutPolicy) cooldownElapsed(acc *account.Account, now time.Time) bool {
	if acc.LockTime == nil {
		// Locked without a timestamp violates the record invariant; treat as
		// expired so the next write repairs it.
		return true
	}
	return p.Cooldown > 0 && !now.Before(acc.LockTime.Add(p.Cooldown))
}
