// Copyright (c) 2026 A-Z Express. All rights reserved.
// Author: platform@azexpress.app

package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azexpress/storefront/internal/platform/apperr"
	"github.com/azexpress/storefront/pkg/pointer"
)

/*
TestLoginGate enumerates every status against the lock clock.
*/
func TestLoginGate(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		status      Status
		lockedUntil *time.Time
		wantCode    string
		wantMessage string
	}{
		{name: "active", status: StatusActive},
		{name: "verified", status: StatusVerified},
		{name: "inactive", status: StatusInactive},
		{name: "lock lapsed", status: StatusLocked, lockedUntil: pointer.To(now.Add(-time.Second))},
		{name: "lock exactly at now", status: StatusLocked, lockedUntil: pointer.To(now)},
		{
			name: "lock active", status: StatusLocked, lockedUntil: pointer.To(now.Add(14*time.Minute + time.Second)),
			wantCode: apperr.CodeForbidden, wantMessage: "Account is locked. Please try again in 15 minutes.",
		},
		{
			name: "lock under a minute", status: StatusLocked, lockedUntil: pointer.To(now.Add(5 * time.Second)),
			wantCode: apperr.CodeForbidden, wantMessage: "Account is locked. Please try again in 1 minute.",
		},
		{
			name: "lock just over a minute", status: StatusLocked, lockedUntil: pointer.To(now.Add(61 * time.Second)),
			wantCode: apperr.CodeForbidden, wantMessage: "Account is locked. Please try again in 2 minutes.",
		},
		{name: "deactivated", status: StatusDeactivated, wantCode: apperr.CodeForbidden},
		{name: "banned", status: StatusBanned, wantCode: apperr.CodeForbidden},
		{name: "archived", status: StatusArchived, wantCode: apperr.CodeForbidden, wantMessage: "Account not found."},
		{name: "pending", status: StatusPending, wantCode: apperr.CodeForbidden},
		{name: "unknown status fails closed", status: Status("ghost"), wantCode: apperr.CodeForbidden},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := LoginGate(&User{Status: tc.status, LockedUntil: tc.lockedUntil}, now)
			if tc.wantCode == "" {
				assert.NoError(t, err)
				return
			}
			requireKind(t, err, tc.wantCode)
			if tc.wantMessage != "" {
				assert.Equal(t, tc.wantMessage, err.Error())
			}
		})
	}
}

/*
TestLockoutPolicy_OnFailure covers counting, locking and restart after a lapsed lock.
*/
func TestLockoutPolicy_OnFailure(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	policy := LockoutPolicy{Threshold: 5, Duration: 15 * time.Minute}

	t.Run("below threshold", func(t *testing.T) {
		decision := policy.OnFailure(&User{Status: StatusActive, FailedLoginAttempts: 2}, now)
		assert.Equal(t, 3, decision.Attempts)
		assert.False(t, decision.Lock)
		assert.False(t, decision.FreshStart)

		patch := decision.Patch()
		assert.Equal(t, 3, *patch.FailedLoginAttempts)
		assert.Nil(t, patch.Status)
	})

	t.Run("reaching threshold locks", func(t *testing.T) {
		decision := policy.OnFailure(&User{Status: StatusActive, FailedLoginAttempts: 4}, now)
		assert.Equal(t, 5, decision.Attempts)
		require.True(t, decision.Lock)
		assert.Equal(t, now.Add(15*time.Minute), decision.LockedUntil)

		patch := decision.Patch()
		assert.Equal(t, StatusLocked, *patch.Status)
		assert.Equal(t, PresenceOffline, *patch.Presence)
		assert.Equal(t, now.Add(15*time.Minute), *patch.LockedUntil)
	})

	t.Run("lapsed lock restarts at one", func(t *testing.T) {
		user := &User{
			Status:              StatusLocked,
			LockedUntil:         pointer.To(now.Add(-time.Minute)),
			FailedLoginAttempts: 5,
		}
		decision := policy.OnFailure(user, now)
		assert.Equal(t, 1, decision.Attempts)
		assert.True(t, decision.FreshStart)
		assert.False(t, decision.Lock)
	})

	t.Run("threshold of one locks immediately", func(t *testing.T) {
		strict := LockoutPolicy{Threshold: 1, Duration: time.Minute}
		decision := strict.OnFailure(&User{Status: StatusActive}, now)
		assert.True(t, decision.Lock)
	})
}

/*
TestLockoutPolicy_OnSuccess verifies counters reset and only locked or
inactive accounts are reactivated.
*/
func TestLockoutPolicy_OnSuccess(t *testing.T) {
	policy := LockoutPolicy{Threshold: 5, Duration: 15 * time.Minute}

	for _, status := range []Status{StatusLocked, StatusInactive} {
		patch := policy.OnSuccess(&User{Status: status, FailedLoginAttempts: 3})
		require.NotNil(t, patch.Status, status)
		assert.Equal(t, StatusActive, *patch.Status)
		assert.Equal(t, 0, *patch.FailedLoginAttempts)
		assert.True(t, patch.ClearLockedUntil)
	}

	for _, status := range []Status{StatusActive, StatusVerified, StatusDeactivated} {
		patch := policy.OnSuccess(&User{Status: status})
		assert.Nil(t, patch.Status, status)
	}
}
