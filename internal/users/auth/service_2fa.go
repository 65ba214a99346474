// Copyright (c) 2026 A-Z Express. All rights reserved.
// Author: platform@azexpress.app

package auth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/azexpress/storefront/internal/platform/apperr"
	"github.com/azexpress/storefront/internal/platform/sec"
	"github.com/azexpress/storefront/pkg/pointer"
)

// # Two-Factor Authentication

const (
	msgNoTwoFactorSecret  = "Two-factor authentication has not been set up"
	msgInvalidTwoFactor   = "Invalid authentication code"
	msgInvalidLoginToken  = "Invalid or expired login session. Please sign in again."
	msgTwoFactorNotActive = "Two-factor authentication is not enabled"
)

/*
Setup2FA provisions a new authenticator secret.

Description: The secret is stored unconfirmed; two-factor stays disabled
until [Service.Enable2FA] proves the owner can produce codes. Calling it
again replaces a previous unconfirmed secret.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - *TOTPSetup: Secret, otpauth URI and QR code
  - error: BadRequest when two-factor is already enabled
*/
func (service *Service) Setup2FA(context context.Context, userID string) (*TOTPSetup, error) {
	user, err := service.findActor(context, userID)
	if err != nil {
		return nil, err
	}
	if user.TwoFactorEnabled {
		return nil, apperr.BadRequest("Two-factor authentication is already enabled")
	}

	setup, err := service.twoFactor.Generate(user.Email)
	if err != nil {
		return nil, fmt.Errorf("auth_service_2fa_generate_failed: %w", err)
	}

	patch := UserPatch{TwoFactorSecret: pointer.To(setup.Secret), TwoFactorEnabled: pointer.To(false)}
	if err := service.users.Update(context, user.ID, patch); err != nil {
		return nil, fmt.Errorf("auth_service_2fa_store_failed: %w", err)
	}

	service.logger.InfoContext(context, "auth_2fa_setup", slog.String("user_id", user.ID))
	return setup, nil
}

/*
Verify2FA checks code against the stored secret without changing anything.

Returns:
  - error: BadRequest when no secret is on file or the code does not match
*/
func (service *Service) Verify2FA(context context.Context, userID, code string) error {
	user, err := service.findActor(context, userID)
	if err != nil {
		return err
	}
	return service.checkCode(user, code)
}

// Enable2FA turns two-factor on after a successful code check.
func (service *Service) Enable2FA(context context.Context, userID, code string) error {
	user, err := service.findActor(context, userID)
	if err != nil {
		return err
	}
	if err := service.checkCode(user, code); err != nil {
		return err
	}

	if err := service.users.Update(context, user.ID, UserPatch{TwoFactorEnabled: pointer.To(true)}); err != nil {
		return fmt.Errorf("auth_service_2fa_enable_failed: %w", err)
	}

	service.logger.InfoContext(context, "auth_2fa_enabled", slog.String("user_id", user.ID))
	return nil
}

// Disable2FA turns two-factor off and discards the secret after a
// successful code check.
func (service *Service) Disable2FA(context context.Context, userID, code string) error {
	user, err := service.findActor(context, userID)
	if err != nil {
		return err
	}
	if !user.TwoFactorEnabled {
		return apperr.BadRequest(msgTwoFactorNotActive)
	}
	if err := service.checkCode(user, code); err != nil {
		return err
	}

	patch := UserPatch{TwoFactorEnabled: pointer.To(false), ClearTwoFactor: true}
	if err := service.users.Update(context, user.ID, patch); err != nil {
		return fmt.Errorf("auth_service_2fa_disable_failed: %w", err)
	}

	service.logger.InfoContext(context, "auth_2fa_disabled", slog.String("user_id", user.ID))
	return nil
}

/*
LoginWith2FA completes a login that was answered with a challenge.

Description: The account status is gated again, since it may have changed
since the challenge was issued. On success the session is established
exactly as for a login without two-factor.

Parameters:
  - context: context.Context
  - loginToken: string (challenge from [Service.Login])
  - code: string
  - device: DeviceInfo

Returns:
  - *LoginResult: Established session
  - error: Unauthorized for a bad challenge, BadRequest for a bad code
*/
func (service *Service) LoginWith2FA(context context.Context, loginToken, code string, device DeviceInfo) (*LoginResult, error) {
	claims, err := service.tokens.VerifyPurpose(sec.KindLoginChallenge, loginToken)
	if err != nil {
		return nil, apperr.Unauthorized(msgInvalidLoginToken)
	}

	user, err := service.users.FindByID(context, claims.UserID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, apperr.Unauthorized(msgInvalidLoginToken)
		}
		return nil, fmt.Errorf("auth_service_2fa_login_lookup_failed: %w", err)
	}

	now := service.now()
	if err := LoginGate(user, now); err != nil {
		return nil, err
	}
	if !user.TwoFactorEnabled {
		return nil, apperr.BadRequest(msgTwoFactorNotActive)
	}
	if err := service.checkCode(user, code); err != nil {
		service.logger.WarnContext(context, "auth_2fa_code_rejected", slog.String("user_id", user.ID))
		return nil, err
	}

	patch := presenceOnline(now)
	if err := service.users.Update(context, user.ID, patch); err != nil {
		return nil, fmt.Errorf("auth_service_2fa_login_update_failed: %w", err)
	}
	patch.Apply(user)

	return service.issueSession(context, user, device, now)
}

// findActor loads the authenticated caller.
func (service *Service) findActor(context context.Context, userID string) (*User, error) {
	user, err := service.users.FindByID(context, userID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, apperr.Unauthorized(msgInactiveUser)
		}
		return nil, fmt.Errorf("auth_service_actor_lookup_failed: %w", err)
	}
	return user, nil
}

func (service *Service) checkCode(user *User, code string) error {
	secret := pointer.Val(user.TwoFactorSecret)
	if secret == "" {
		return apperr.BadRequest(msgNoTwoFactorSecret)
	}
	if !service.twoFactor.Validate(secret, code, service.now()) {
		return apperr.BadRequest(msgInvalidTwoFactor)
	}
	return nil
}
