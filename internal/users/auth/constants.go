// Copyright (c) 2026 A-Z Express. All rights reserved.
// Author: platform@azexpress.app

package auth

import "time"

// # Authentication Constraints

const (
	// DefaultLockoutThreshold is the failed-attempt count that locks an account.
	DefaultLockoutThreshold = 5

	// DefaultLockoutDuration is how long a lock lasts.
	DefaultLockoutDuration = 15 * time.Minute

	// DefaultResetOTPTTL is how long an emailed reset code stays usable.
	DefaultResetOTPTTL = 10 * time.Minute

	// ResetOTPDigits is the length of the emailed reset code.
	ResetOTPDigits = 6

	// TOTPDigits is the length of authenticator codes.
	TOTPDigits = 6

	// MinPasswordLength applies to registration, change and reset.
	MinPasswordLength = 8

	// MaxPasswordLength is bcrypt's input limit, counted in bytes.
	MaxPasswordLength = 72

	// MinUsernameLength and MaxUsernameLength bound registration handles.
	MinUsernameLength = 3
	MaxUsernameLength = 64

	// MaxSlugLength matches the users.account slug column.
	MaxSlugLength = 80
)

// LoginStatus2FARequired marks a login that still needs an authenticator code.
const LoginStatus2FARequired = "2FA_REQUIRED"

// # Field Identifiers

// Request field names used in validation errors.
const (
	FieldUsername        = "username"
	FieldEmail           = "email"
	FieldPassword        = "password"
	FieldConfirmPassword = "confirmPassword"
	FieldOldPassword     = "oldPassword"
	FieldNewPassword     = "newPassword"
	FieldOTP             = "otp"
	FieldToken           = "token"
	FieldCode            = "code"
	FieldLoginToken      = "loginToken"
	FieldRefreshToken    = "refreshToken"
	FieldUserID          = "id"
)
