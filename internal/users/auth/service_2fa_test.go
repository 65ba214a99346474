// Copyright (c) 2026 A-Z Express. All rights reserved.
// Author: platform@azexpress.app

package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azexpress/storefront/internal/platform/apperr"
	"github.com/azexpress/storefront/internal/platform/sec"
	"github.com/azexpress/storefront/pkg/pointer"
)

// code produces the current authenticator code for secret.
func (h *harness) code(t *testing.T, secret string) string {
	t.Helper()
	code, err := h.totp.Code(secret, h.clock.Now())
	require.NoError(t, err)
	return code
}

// wrongCode returns a six-digit code different from the valid one.
func (h *harness) wrongCode(t *testing.T, secret string) string {
	t.Helper()
	valid := h.code(t, secret)
	if valid == "000000" {
		return "999999"
	}
	return "000000"
}

// enroll runs setup and enable for user and returns the secret.
func (h *harness) enroll(t *testing.T, userID string) string {
	t.Helper()
	setup, err := h.service.Setup2FA(context.Background(), userID)
	require.NoError(t, err)
	require.NoError(t, h.service.Enable2FA(context.Background(), userID, h.code(t, setup.Secret)))
	return setup.Secret
}

/*
TestTwoFactor_RoundTrip verifies setup, enable and a challenged login.
*/
func TestTwoFactor_RoundTrip(t *testing.T) {
	h := newHarness(t)
	user := h.register(t, "alice", "alice@x.com", "Secret123")
	ctx := context.Background()

	setup, err := h.service.Setup2FA(ctx, user.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, setup.Secret)
	assert.True(t, strings.HasPrefix(setup.URI, "otpauth://totp/"))
	assert.Contains(t, setup.URI, "alice@x.com")
	assert.True(t, strings.HasPrefix(setup.QRCode, "data:image/png;base64,"))

	stored := h.users.get(t, user.ID)
	assert.False(t, stored.TwoFactorEnabled, "secret is unconfirmed until enable")
	require.NotNil(t, stored.TwoFactorSecret)

	require.NoError(t, h.service.Verify2FA(ctx, user.ID, h.code(t, setup.Secret)))
	require.NoError(t, h.service.Enable2FA(ctx, user.ID, h.code(t, setup.Secret)))
	assert.True(t, h.users.get(t, user.ID).TwoFactorEnabled)

	challenge, err := h.login("alice@x.com", "Secret123")
	require.NoError(t, err)
	require.True(t, challenge.RequiresTwoFactor())
	assert.Equal(t, LoginStatus2FARequired, challenge.Status)
	assert.NotEmpty(t, challenge.LoginToken)
	assert.Empty(t, challenge.AccessToken)
	assert.Empty(t, challenge.RefreshToken)
	assert.Zero(t, h.sessionCount(t, user.ID))

	result, err := h.service.LoginWith2FA(ctx, challenge.LoginToken, h.code(t, setup.Secret), DeviceInfo{})
	require.NoError(t, err)
	assert.NotEmpty(t, result.AccessToken)
	assert.NotEmpty(t, result.RefreshToken)
	assert.Equal(t, 1, h.sessionCount(t, user.ID))
	assert.Equal(t, PresenceOnline, h.users.get(t, user.ID).Presence)
}

/*
TestTwoFactor_WrongCodesDoNotMutate verifies a bad code at each step is
BadRequest and leaves the enabled flag alone.
*/
func TestTwoFactor_WrongCodesDoNotMutate(t *testing.T) {
	h := newHarness(t)
	user := h.register(t, "alice", "alice@x.com", "Secret123")
	ctx := context.Background()

	setup, err := h.service.Setup2FA(ctx, user.ID)
	require.NoError(t, err)

	err = h.service.Enable2FA(ctx, user.ID, h.wrongCode(t, setup.Secret))
	requireKind(t, err, apperr.CodeBadRequest)
	assert.False(t, h.users.get(t, user.ID).TwoFactorEnabled)

	require.NoError(t, h.service.Enable2FA(ctx, user.ID, h.code(t, setup.Secret)))

	challenge, err := h.login("alice@x.com", "Secret123")
	require.NoError(t, err)
	_, err = h.service.LoginWith2FA(ctx, challenge.LoginToken, h.wrongCode(t, setup.Secret), DeviceInfo{})
	requireKind(t, err, apperr.CodeBadRequest)
	assert.True(t, h.users.get(t, user.ID).TwoFactorEnabled)
	assert.Zero(t, h.sessionCount(t, user.ID))

	err = h.service.Disable2FA(ctx, user.ID, h.wrongCode(t, setup.Secret))
	requireKind(t, err, apperr.CodeBadRequest)
	assert.True(t, h.users.get(t, user.ID).TwoFactorEnabled)
}

/*
TestTwoFactor_Disable verifies the secret is discarded and login is direct again.
*/
func TestTwoFactor_Disable(t *testing.T) {
	h := newHarness(t)
	user := h.register(t, "alice", "alice@x.com", "Secret123")
	secret := h.enroll(t, user.ID)

	require.NoError(t, h.service.Disable2FA(context.Background(), user.ID, h.code(t, secret)))

	stored := h.users.get(t, user.ID)
	assert.False(t, stored.TwoFactorEnabled)
	assert.Nil(t, stored.TwoFactorSecret)

	result, err := h.login("alice@x.com", "Secret123")
	require.NoError(t, err)
	assert.False(t, result.RequiresTwoFactor())

	err = h.service.Verify2FA(context.Background(), user.ID, h.code(t, secret))
	requireKind(t, err, apperr.CodeBadRequest)
}

/*
TestTwoFactor_StateGuards covers verify without a secret and setup while enabled.
*/
func TestTwoFactor_StateGuards(t *testing.T) {
	h := newHarness(t)
	user := h.register(t, "alice", "alice@x.com", "Secret123")
	ctx := context.Background()

	requireKind(t, h.service.Verify2FA(ctx, user.ID, "123456"), apperr.CodeBadRequest)
	requireKind(t, h.service.Enable2FA(ctx, user.ID, "123456"), apperr.CodeBadRequest)
	requireKind(t, h.service.Disable2FA(ctx, user.ID, "123456"), apperr.CodeBadRequest)

	h.enroll(t, user.ID)
	_, err := h.service.Setup2FA(ctx, user.ID)
	requireKind(t, err, apperr.CodeBadRequest)
}

/*
TestLoginWith2FA_ChallengeGuards covers forged, expired and foreign-kind tokens
and a status change after the challenge.
*/
func TestLoginWith2FA_ChallengeGuards(t *testing.T) {
	h := newHarness(t)
	user := h.register(t, "alice", "alice@x.com", "Secret123")
	secret := h.enroll(t, user.ID)
	ctx := context.Background()

	_, err := h.service.LoginWith2FA(ctx, "forged", h.code(t, secret), DeviceInfo{})
	requireKind(t, err, apperr.CodeUnauthorized)

	refresh, err := h.tokens.SignRefresh(user.ID)
	require.NoError(t, err)
	_, err = h.service.LoginWith2FA(ctx, refresh, h.code(t, secret), DeviceInfo{})
	requireKind(t, err, apperr.CodeUnauthorized)

	challenge, err := h.login("alice@x.com", "Secret123")
	require.NoError(t, err)

	require.NoError(t, h.users.Update(ctx, user.ID, UserPatch{Status: pointer.To(StatusBanned)}))
	_, err = h.service.LoginWith2FA(ctx, challenge.LoginToken, h.code(t, secret), DeviceInfo{})
	requireKind(t, err, apperr.CodeForbidden)
	require.NoError(t, h.users.Update(ctx, user.ID, UserPatch{Status: pointer.To(StatusActive)}))

	h.advance(h.tokens.TTL(sec.KindLoginChallenge) + time.Second)
	_, err = h.service.LoginWith2FA(ctx, challenge.LoginToken, h.code(t, secret), DeviceInfo{})
	requireKind(t, err, apperr.CodeUnauthorized)
}

/*
TestTOTPEngine_Skew verifies one period of drift is tolerated and two are not.
*/
func TestTOTPEngine_Skew(t *testing.T) {
	engine := NewTOTPEngine("A-Z Express")
	setup, err := engine.Generate("alice@x.com")
	require.NoError(t, err)

	at := time.Date(2026, 3, 2, 9, 0, 15, 0, time.UTC)
	code, err := engine.Code(setup.Secret, at)
	require.NoError(t, err)
	assert.Len(t, code, TOTPDigits)

	assert.True(t, engine.Validate(setup.Secret, code, at))
	assert.True(t, engine.Validate(setup.Secret, code, at.Add(30*time.Second)))
	assert.False(t, engine.Validate(setup.Secret, code, at.Add(90*time.Second)))
	assert.False(t, engine.Validate(setup.Secret, "abc", at))
	assert.False(t, engine.Validate("not base32!", code, at))
}
