// Copyright (c) 2026 A-Z Express. All rights reserved.
// Author: platform@azexpress.app

/*
Package auth implements storefront customer identity: registration, login with
lockout, rotating refresh sessions across devices, password reset by emailed
code or link, email verification and TOTP two-factor authentication.

# Architecture

  - Entities: [User], [Session], [UserPatch] (this file and session.go).
  - Contracts: [UserRepository], [SessionRepository], [PasswordHasher],
    [Notifier] (store.go).
  - Policy: [LoginGate] and [LockoutPolicy] are pure and table-tested.
  - Service: [Service] orchestrates the flows against the contracts.
  - Delivery: [Handler] maps the flows onto chi routes.

Durable state lives in Postgres (accounts) and Redis (sessions). The service
itself keeps nothing between calls.
*/
package auth

import (
	"time"

	"github.com/azexpress/storefront/internal/platform/sec"
)

// # Account Status

// Status is the account lifecycle state evaluated by [LoginGate].
type Status string

const (
	StatusPending     Status = "pending"
	StatusActive      Status = "active"
	StatusVerified    Status = "verified"
	StatusInactive    Status = "inactive"
	StatusLocked      Status = "locked"
	StatusDeactivated Status = "deactivated"
	StatusBanned      Status = "banned"
	StatusArchived    Status = "archived"
)

// Presence is the online indicator shown to staff.
type Presence string

const (
	PresenceOnline  Presence = "online"
	PresenceOffline Presence = "offline"
)

// # Domain Entities

// ResetOTP is an outstanding emailed reset code. Only its digest is stored.
type ResetOTP struct {
	CodeHash  string    `json:"-"`
	ExpiresAt time.Time `json:"-"`
}

// User is a storefront account as seen by the auth flows.
//
// LockedUntil is meaningful only while Status is [StatusLocked].
type User struct {
	ID                  string       `json:"id"`
	Username            string       `json:"username"`
	Slug                string       `json:"slug"`
	Email               string       `json:"email"`
	PasswordHash        string       `json:"-"`
	Role                sec.UserRole `json:"role"`
	Status              Status       `json:"status"`
	Presence            Presence     `json:"presence"`
	LockedUntil         *time.Time   `json:"-"`
	FailedLoginAttempts int          `json:"-"`
	TwoFactorEnabled    bool         `json:"twoFactorEnabled"`
	TwoFactorSecret     *string      `json:"-"`
	ResetOTP            *ResetOTP    `json:"-"`
	VerifiedAt          *time.Time   `json:"verifiedAt,omitempty"`
	ActiveAt            *time.Time   `json:"activeAt,omitempty"`
	LogoutAt            *time.Time   `json:"logoutAt,omitempty"`
	PasswordChangedAt   *time.Time   `json:"-"`
	CreatedAt           time.Time    `json:"createdAt"`
	UpdatedAt           time.Time    `json:"updatedAt"`
}

// Identity returns the claims embedded in access tokens.
func (user *User) Identity() sec.Identity {
	return sec.Identity{
		UserID:   user.ID,
		Email:    user.Email,
		Username: user.Username,
		Role:     string(user.Role),
	}
}

// # Partial Updates

// UserPatch is an atomic merge of fields into one account.
//
// A non-nil pointer sets the column. A Clear flag sets a nullable column to
// NULL and wins over the matching pointer.
type UserPatch struct {
	PasswordHash        *string
	Status              *Status
	Presence            *Presence
	LockedUntil         *time.Time
	ClearLockedUntil    bool
	FailedLoginAttempts *int
	TwoFactorEnabled    *bool
	TwoFactorSecret     *string
	ClearTwoFactor      bool
	ResetOTP            *ResetOTP
	ClearResetOTP       bool
	VerifiedAt          *time.Time
	ActiveAt            *time.Time
	LogoutAt            *time.Time
	ClearLogoutAt       bool
	PasswordChangedAt   *time.Time
}

// IsEmpty reports whether applying the patch would change nothing.
func (patch UserPatch) IsEmpty() bool {
	return patch == UserPatch{}
}

// Merge returns patch with every field set in other layered on top.
func (patch UserPatch) Merge(other UserPatch) UserPatch {
	if other.PasswordHash != nil {
		patch.PasswordHash = other.PasswordHash
	}
	if other.Status != nil {
		patch.Status = other.Status
	}
	if other.Presence != nil {
		patch.Presence = other.Presence
	}
	if other.LockedUntil != nil {
		patch.LockedUntil = other.LockedUntil
	}
	if other.FailedLoginAttempts != nil {
		patch.FailedLoginAttempts = other.FailedLoginAttempts
	}
	if other.TwoFactorEnabled != nil {
		patch.TwoFactorEnabled = other.TwoFactorEnabled
	}
	if other.TwoFactorSecret != nil {
		patch.TwoFactorSecret = other.TwoFactorSecret
	}
	if other.ResetOTP != nil {
		patch.ResetOTP = other.ResetOTP
	}
	if other.VerifiedAt != nil {
		patch.VerifiedAt = other.VerifiedAt
	}
	if other.ActiveAt != nil {
		patch.ActiveAt = other.ActiveAt
	}
	if other.LogoutAt != nil {
		patch.LogoutAt = other.LogoutAt
	}
	if other.PasswordChangedAt != nil {
		patch.PasswordChangedAt = other.PasswordChangedAt
	}
	patch.ClearLockedUntil = patch.ClearLockedUntil || other.ClearLockedUntil
	patch.ClearTwoFactor = patch.ClearTwoFactor || other.ClearTwoFactor
	patch.ClearResetOTP = patch.ClearResetOTP || other.ClearResetOTP
	patch.ClearLogoutAt = patch.ClearLogoutAt || other.ClearLogoutAt
	return patch
}

// Apply writes the patch into user. Repositories call it so the caller's copy
// matches what was persisted.
func (patch UserPatch) Apply(user *User) {
	if patch.PasswordHash != nil {
		user.PasswordHash = *patch.PasswordHash
	}
	if patch.Status != nil {
		user.Status = *patch.Status
	}
	if patch.Presence != nil {
		user.Presence = *patch.Presence
	}
	if patch.LockedUntil != nil {
		until := *patch.LockedUntil
		user.LockedUntil = &until
	}
	if patch.ClearLockedUntil {
		user.LockedUntil = nil
	}
	if patch.FailedLoginAttempts != nil {
		user.FailedLoginAttempts = *patch.FailedLoginAttempts
	}
	if patch.TwoFactorEnabled != nil {
		user.TwoFactorEnabled = *patch.TwoFactorEnabled
	}
	if patch.TwoFactorSecret != nil {
		secret := *patch.TwoFactorSecret
		user.TwoFactorSecret = &secret
	}
	if patch.ClearTwoFactor {
		user.TwoFactorSecret = nil
	}
	if patch.ResetOTP != nil {
		otp := *patch.ResetOTP
		user.ResetOTP = &otp
	}
	if patch.ClearResetOTP {
		user.ResetOTP = nil
	}
	if patch.VerifiedAt != nil {
		at := *patch.VerifiedAt
		user.VerifiedAt = &at
	}
	if patch.ActiveAt != nil {
		at := *patch.ActiveAt
		user.ActiveAt = &at
	}
	if patch.LogoutAt != nil {
		at := *patch.LogoutAt
		user.LogoutAt = &at
	}
	if patch.ClearLogoutAt {
		user.LogoutAt = nil
	}
	if patch.PasswordChangedAt != nil {
		at := *patch.PasswordChangedAt
		user.PasswordChangedAt = &at
	}
}
