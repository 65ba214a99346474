// Copyright (c) 2026 A-Z Express. All rights reserved.
// Author: platform@azexpress.app

package auth

import (
	"fmt"
	"math"
	"time"

	"github.com/azexpress/storefront/internal/platform/apperr"
	"github.com/azexpress/storefront/pkg/pointer"
)

// # Login Gate

// LoginGate decides, from status alone, whether a login may reach the
// password check. A nil error means proceed.
//
// Locked accounts whose lock has lapsed proceed; the lock is lifted by
// [LockoutPolicy.OnSuccess] once the password matches. Unknown statuses fail
// closed.
func LoginGate(user *User, now time.Time) error {
	switch user.Status {
	case StatusActive, StatusVerified, StatusInactive:
		return nil
	case StatusLocked:
		if user.LockedUntil != nil && user.LockedUntil.After(now) {
			return apperr.Forbidden(fmt.Sprintf(
				"Account is locked. Please try again in %s.", minutesLabel(minutesUntil(*user.LockedUntil, now))))
		}
		return nil
	case StatusDeactivated:
		return apperr.Forbidden("Your account is deactivated. Please contact support for reactivation.")
	case StatusBanned:
		return apperr.Forbidden("Your account has been banned. Please contact support.")
	case StatusArchived:
		return apperr.Forbidden("Account not found.")
	case StatusPending:
		return apperr.Forbidden("Your account is pending verification. Please check your email.")
	default:
		return apperr.Forbidden("Invalid account status. Please contact support.")
	}
}

// minutesUntil rounds the remaining lock time up to whole minutes.
func minutesUntil(until, now time.Time) int {
	return int(math.Ceil(until.Sub(now).Minutes()))
}

func minutesLabel(minutes int) string {
	if minutes == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", minutes)
}

// # Lockout Policy

// LockoutPolicy counts failed password checks and locks the account when the
// count reaches Threshold.
type LockoutPolicy struct {
	Threshold int
	Duration  time.Duration
}

// LockoutDecision is the outcome of one failed password check.
type LockoutDecision struct {
	// Attempts is the failure count after this attempt.
	Attempts int
	// FreshStart is set when an expired lock restarted the count at 1.
	FreshStart bool
	// Lock is set when this failure reached the threshold.
	Lock        bool
	LockedUntil time.Time
}

// OnFailure evaluates a failed password check at now.
func (policy LockoutPolicy) OnFailure(user *User, now time.Time) LockoutDecision {
	decision := LockoutDecision{Attempts: user.FailedLoginAttempts + 1}

	lockExpired := user.Status == StatusLocked &&
		user.LockedUntil != nil && !user.LockedUntil.After(now)
	if lockExpired {
		decision.Attempts = 1
		decision.FreshStart = true
	}

	if decision.Attempts >= policy.Threshold {
		decision.Lock = true
		decision.LockedUntil = now.Add(policy.Duration)
	}

	return decision
}

// Patch converts the decision into the account update.
func (decision LockoutDecision) Patch() UserPatch {
	patch := UserPatch{FailedLoginAttempts: pointer.To(decision.Attempts)}
	if decision.Lock {
		patch.Status = pointer.To(StatusLocked)
		patch.LockedUntil = pointer.To(decision.LockedUntil)
		patch.Presence = pointer.To(PresenceOffline)
	}
	return patch
}

// OnSuccess resets the counters after a matching password. Locked and
// inactive accounts become active; every other status is left alone, so a
// deactivated account never reactivates itself.
func (policy LockoutPolicy) OnSuccess(user *User) UserPatch {
	patch := UserPatch{
		FailedLoginAttempts: pointer.To(0),
		ClearLockedUntil:    true,
	}
	if user.Status == StatusLocked || user.Status == StatusInactive {
		patch.Status = pointer.To(StatusActive)
	}
	return patch
}
