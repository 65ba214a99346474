// Copyright (c) 2026 A-Z Express. All rights reserved.
// Author: platform@azexpress.app

package auth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/azexpress/storefront/internal/notify"
	"github.com/azexpress/storefront/internal/platform/apperr"
	"github.com/azexpress/storefront/internal/platform/sec"
	"github.com/azexpress/storefront/pkg/pointer"
)

// # Password Management

/*
ChangePassword replaces the password of an authenticated user.

Parameters:
  - context: context.Context
  - userID: string
  - oldPassword: string (must match the stored hash)
  - newPassword: string

Returns:
  - error: Unauthorized on a wrong old password, BadRequest when the new
    password equals the current one
*/
func (service *Service) ChangePassword(context context.Context, userID, oldPassword, newPassword string) error {
	if err := checkPasswordLength(newPassword); err != nil {
		return err
	}

	user, err := service.users.FindByID(context, userID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return apperr.Unauthorized(msgInactiveUser)
		}
		return fmt.Errorf("auth_service_change_password_lookup_failed: %w", err)
	}

	if !service.hasher.Compare(oldPassword, user.PasswordHash) {
		return apperr.Unauthorized("Current password is incorrect")
	}
	if service.hasher.Compare(newPassword, user.PasswordHash) {
		return apperr.BadRequest("New password must differ from the current password")
	}

	if err := service.setPassword(context, user, newPassword, UserPatch{}); err != nil {
		return err
	}

	service.logger.InfoContext(context, "auth_password_changed", slog.String("user_id", user.ID))
	return nil
}

// # Password Recovery

/*
ForgotPassword issues a one-shot reset code and a signed reset link.

Description: Both travel in one email. The code is stored only as a digest
with an expiry; the link token is stateless but is honoured only while that
code is outstanding, so it is single-use as well. An unknown email returns
success without sending anything, so the response never reveals whether an
account exists.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - error: Storage failures only
*/
func (service *Service) ForgotPassword(context context.Context, email string) error {
	user, err := service.users.FindByEmail(context, normalizeEmail(email))
	if err != nil {
		if apperr.IsNotFound(err) {
			service.logger.InfoContext(context, "auth_reset_requested_unknown_email")
			return nil
		}
		return fmt.Errorf("auth_service_forgot_lookup_failed: %w", err)
	}

	code, err := sec.GenerateNumericCode(ResetOTPDigits)
	if err != nil {
		return fmt.Errorf("auth_service_reset_code_failed: %w", err)
	}

	token, err := service.tokens.SignPurpose(sec.KindResetPassword, user.ID)
	if err != nil {
		return fmt.Errorf("auth_service_reset_token_failed: %w", err)
	}

	otp := &ResetOTP{
		CodeHash:  sec.HashToken(code),
		ExpiresAt: service.now().Add(service.resetOTPTTL),
	}
	if err := service.users.Update(context, user.ID, UserPatch{ResetOTP: otp}); err != nil {
		return fmt.Errorf("auth_service_reset_store_failed: %w", err)
	}

	service.logger.InfoContext(context, "auth_reset_requested", slog.String("user_id", user.ID))
	service.send(context, func() (notify.Message, error) {
		return service.mail.ResetPassword(user.Email, user.Username, code, token, service.resetOTPTTL)
	})

	return nil
}

// ResetPasswordInput carries one of the two reset paths: Token alone, or
// Email together with OTP.
type ResetPasswordInput struct {
	NewPassword string
	Email       string
	OTP         string
	Token       string
}

/*
ResetPassword sets a new password from an emailed code or link.

Description: Any verification attempt consumes the outstanding code, right
or wrong. On success every session of the account is ended and a
confirmation email is sent.

Parameters:
  - context: context.Context
  - input: ResetPasswordInput

Returns:
  - error: BadRequest for a missing, expired or wrong code; Unauthorized for
    an invalid link; NotFound for an unknown email
*/
func (service *Service) ResetPassword(context context.Context, input ResetPasswordInput) error {
	// Checked before any path consumes the outstanding code.
	if err := checkPasswordLength(input.NewPassword); err != nil {
		return err
	}

	var (
		user *User
		err  error
	)

	switch {
	case input.Token != "":
		user, err = service.resolveResetToken(context, input.Token)
	case input.Email != "" && input.OTP != "":
		user, err = service.consumeResetOTP(context, input.Email, input.OTP)
	default:
		return apperr.BadRequest("Provide a reset token, or an email with the reset code")
	}
	if err != nil {
		return err
	}

	if err := service.setPassword(context, user, input.NewPassword, UserPatch{ClearResetOTP: true}); err != nil {
		return err
	}

	if err := service.sessions.DeleteByUserID(context, user.ID); err != nil {
		return fmt.Errorf("auth_service_reset_revoke_failed: %w", err)
	}

	service.logger.InfoContext(context, "auth_password_reset", slog.String("user_id", user.ID))
	return nil
}

// resolveResetToken checks the signed link and that its code is still outstanding.
func (service *Service) resolveResetToken(context context.Context, token string) (*User, error) {
	claims, err := service.tokens.VerifyPurpose(sec.KindResetPassword, token)
	if err != nil {
		return nil, apperr.Unauthorized("Invalid or expired reset link")
	}

	user, err := service.users.FindByID(context, claims.UserID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, apperr.Unauthorized("Invalid or expired reset link")
		}
		return nil, fmt.Errorf("auth_service_reset_lookup_failed: %w", err)
	}

	if user.ResetOTP == nil || !user.ResetOTP.ExpiresAt.After(service.now()) {
		return nil, apperr.BadRequest("No active reset request. Please request a new one.")
	}
	return user, nil
}

// consumeResetOTP verifies a code and clears it whatever the outcome.
func (service *Service) consumeResetOTP(context context.Context, email, code string) (*User, error) {
	user, err := service.users.FindByEmail(context, normalizeEmail(email))
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, apperr.NotFound("User")
		}
		return nil, fmt.Errorf("auth_service_reset_lookup_failed: %w", err)
	}

	if user.ResetOTP == nil {
		return nil, apperr.BadRequest("No active reset request. Please request a new one.")
	}

	stored := *user.ResetOTP
	if err := service.users.Update(context, user.ID, UserPatch{ClearResetOTP: true}); err != nil {
		return nil, fmt.Errorf("auth_service_reset_consume_failed: %w", err)
	}
	user.ResetOTP = nil

	if !stored.ExpiresAt.After(service.now()) {
		return nil, apperr.BadRequest("Reset code has expired. Please request a new one.")
	}
	if !sec.EqualHash(sec.HashToken(code), stored.CodeHash) {
		service.logger.WarnContext(context, "auth_reset_code_mismatch", slog.String("user_id", user.ID))
		return nil, apperr.BadRequest("Reset code is invalid and has been invalidated. Please request a new one.")
	}

	return user, nil
}

// setPassword hashes plain, persists it with extra, and confirms by email.
func (service *Service) setPassword(context context.Context, user *User, plain string, extra UserPatch) error {
	passwordHash, err := service.hasher.Hash(plain)
	if err != nil {
		return fmt.Errorf("auth_service_hash_failed: %w", err)
	}

	patch := extra.Merge(UserPatch{
		PasswordHash:      pointer.To(passwordHash),
		PasswordChangedAt: pointer.To(service.now()),
	})
	if err := service.users.Update(context, user.ID, patch); err != nil {
		return fmt.Errorf("auth_service_password_update_failed: %w", err)
	}
	patch.Apply(user)

	service.send(context, func() (notify.Message, error) {
		return service.mail.PasswordChanged(user.Email, user.Username)
	})
	return nil
}

// # Email Verification

/*
VerifyEmail activates a pending account from its emailed link.

Description: Idempotent for accounts that are already active or verified.
Other non-pending statuses (locked, banned, ...) are refused so a
verification link can never lift a restriction.

Parameters:
  - context: context.Context
  - token: string

Returns:
  - error: Unauthorized for an invalid link, Forbidden for restricted accounts
*/
func (service *Service) VerifyEmail(context context.Context, token string) error {
	claims, err := service.tokens.VerifyPurpose(sec.KindVerifyEmail, token)
	if err != nil {
		return apperr.Unauthorized("Invalid or expired verification link")
	}

	user, err := service.users.FindByID(context, claims.UserID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return apperr.Unauthorized("Invalid or expired verification link")
		}
		return fmt.Errorf("auth_service_verify_lookup_failed: %w", err)
	}

	switch user.Status {
	case StatusActive, StatusVerified:
		return nil
	case StatusPending:
	default:
		return apperr.Forbidden("This account cannot be verified. Please contact support.")
	}

	patch := UserPatch{
		Status:     pointer.To(StatusActive),
		VerifiedAt: pointer.To(service.now()),
	}
	if err := service.users.Update(context, user.ID, patch); err != nil {
		return fmt.Errorf("auth_service_verify_update_failed: %w", err)
	}

	service.logger.InfoContext(context, "auth_email_verified", slog.String("user_id", user.ID))
	service.send(context, func() (notify.Message, error) {
		return service.mail.Welcome(user.Email, user.Username)
	})
	return nil
}

// checkPasswordLength rejects passwords bcrypt cannot hash.
func checkPasswordLength(password string) error {
	if len(password) > MaxPasswordLength {
		return apperr.BadRequest(fmt.Sprintf("Password must be at most %d bytes", MaxPasswordLength))
	}
	return nil
}
