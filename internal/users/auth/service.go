// Copyright (c) 2026 A-Z Express. All rights reserved.
// Author: platform@azexpress.app

package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/azexpress/storefront/internal/notify"
	"github.com/azexpress/storefront/internal/platform/apperr"
	"github.com/azexpress/storefront/internal/platform/sec"
	"github.com/azexpress/storefront/pkg/pointer"
	"github.com/azexpress/storefront/pkg/slug"
	"github.com/azexpress/storefront/pkg/uuid"
)

// # Contracts & Types

// TokenIssuer signs and verifies every token kind. [sec.TokenService]
// implements it.
type TokenIssuer interface {
	SignAccess(identity sec.Identity) (string, error)
	SignRefresh(userID string) (string, error)
	VerifyRefresh(token string) (*sec.SubjectClaims, error)
	SignPurpose(kind sec.TokenKind, userID string) (string, error)
	VerifyPurpose(kind sec.TokenKind, token string) (*sec.SubjectClaims, error)
	TTL(kind sec.TokenKind) time.Duration
}

// TwoFactorEngine provisions and checks authenticator codes. [TOTPEngine]
// implements it.
type TwoFactorEngine interface {
	Generate(accountName string) (*TOTPSetup, error)
	Validate(secret, code string, at time.Time) bool
}

// Dependencies are the collaborators of [Service]. All are required except
// Logger and Clock.
type Dependencies struct {
	Users     UserRepository
	Sessions  SessionRepository
	Tokens    TokenIssuer
	Hasher    PasswordHasher
	Notifier  Notifier
	Mail      *notify.Composer
	TwoFactor TwoFactorEngine
	Logger    *slog.Logger
	Clock     func() time.Time
}

// Options are the account policies of [Service].
type Options struct {
	Lockout     LockoutPolicy
	ResetOTPTTL time.Duration

	// RequireEmailVerification registers accounts as pending until the
	// emailed link is followed.
	RequireEmailVerification bool
}

// Service implements the storefront authentication use cases.
//
// # Review Process
//
// This service is critical for security. Any changes to lockout, rotation or
// reset logic must be reviewed together with their tests.
type Service struct {
	users     UserRepository
	sessions  SessionRepository
	tokens    TokenIssuer
	hasher    PasswordHasher
	notifier  Notifier
	mail      *notify.Composer
	twoFactor TwoFactorEngine
	logger    *slog.Logger
	now       func() time.Time

	lockout                  LockoutPolicy
	resetOTPTTL              time.Duration
	requireEmailVerification bool
}

// NewService constructs a new [Service]. Zero policy values fall back to the
// package defaults.
func NewService(deps Dependencies, options Options) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if options.Lockout.Threshold <= 0 {
		options.Lockout.Threshold = DefaultLockoutThreshold
	}
	if options.Lockout.Duration <= 0 {
		options.Lockout.Duration = DefaultLockoutDuration
	}
	if options.ResetOTPTTL <= 0 {
		options.ResetOTPTTL = DefaultResetOTPTTL
	}

	return &Service{
		users:                    deps.Users,
		sessions:                 deps.Sessions,
		tokens:                   deps.Tokens,
		hasher:                   deps.Hasher,
		notifier:                 deps.Notifier,
		mail:                     deps.Mail,
		twoFactor:                deps.TwoFactor,
		logger:                   deps.Logger,
		now:                      deps.Clock,
		lockout:                  options.Lockout,
		resetOTPTTL:              options.ResetOTPTTL,
		requireEmailVerification: options.RequireEmailVerification,
	}
}

// Client-facing messages shared by several flows.
const (
	msgInvalidCredentials = "Invalid email or password"
	msgInvalidRefresh     = "Invalid or expired refresh token"
	msgInactiveUser       = "User not found or inactive"
)

// # Registration Flow

// RegisterInput holds the data required to enroll a new customer.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

/*
Register validates uniqueness, hashes, and persists a brand new account.

Description: The slug is derived from the username here, explicitly. With
email verification required the account starts pending and a verification
link is mailed; otherwise it starts active and gets the welcome email.

Parameters:
  - context: context.Context
  - input: RegisterInput

Returns:
  - *User: Created entity
  - error: apperr.Conflict if email or username is taken, or storage errors
*/
func (service *Service) Register(context context.Context, input RegisterInput) (*User, error) {
	if err := checkPasswordLength(input.Password); err != nil {
		return nil, err
	}

	email := normalizeEmail(input.Email)
	username := strings.TrimSpace(input.Username)

	if err := service.ensureAvailable(context, email, username); err != nil {
		return nil, err
	}

	passwordHash, err := service.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("auth_service_hash_failed: %w", err)
	}

	status := StatusActive
	if service.requireEmailVerification {
		status = StatusPending
	}

	user := &User{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         sec.RoleUser,
		Status:       status,
		Presence:     PresenceOffline,
		CreatedAt:    service.now().UTC(),
	}
	user.Slug = slug.Limit(slug.From(username), MaxSlugLength)
	if user.Slug == "" {
		user.Slug = "user-" + user.ID[len(user.ID)-12:]
	}

	if err := service.users.Create(context, user); err != nil {
		if apperr.IsKind(err, apperr.CodeConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("auth_service_register_failed: %w", err)
	}

	service.logger.InfoContext(context, "auth_user_registered",
		slog.String("user_id", user.ID),
		slog.String("status", string(user.Status)),
	)

	if status == StatusPending {
		token, err := service.tokens.SignPurpose(sec.KindVerifyEmail, user.ID)
		if err != nil {
			return nil, fmt.Errorf("auth_service_verify_token_failed: %w", err)
		}
		service.send(context, func() (notify.Message, error) {
			return service.mail.VerifyEmail(user.Email, user.Username, token, service.tokens.TTL(sec.KindVerifyEmail))
		})
	} else {
		service.send(context, func() (notify.Message, error) {
			return service.mail.Welcome(user.Email, user.Username)
		})
	}

	return user, nil
}

// ensureAvailable rejects an email or username that already has an account.
func (service *Service) ensureAvailable(context context.Context, email, username string) error {
	_, err := service.users.FindByEmail(context, email)
	switch {
	case err == nil:
		return apperr.Conflict("Email is already registered")
	case !apperr.IsNotFound(err):
		return fmt.Errorf("auth_service_register_lookup_failed: %w", err)
	}

	_, err = service.users.FindByUsername(context, username)
	switch {
	case err == nil:
		return apperr.Conflict("Username is already taken")
	case !apperr.IsNotFound(err):
		return fmt.Errorf("auth_service_register_lookup_failed: %w", err)
	}

	return nil
}

// # Authentication Flow

// LoginInput defines credentials for an authentication attempt.
type LoginInput struct {
	Email    string
	Password string
	Device   DeviceInfo
}

// UserClaims is the public identity returned alongside tokens.
type UserClaims struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// LoginResult is either a challenge (Status == [LoginStatus2FARequired] and
// LoginToken set) or an established session.
type LoginResult struct {
	Status     string `json:"status,omitempty"`
	LoginToken string `json:"loginToken,omitempty"`

	User                  *UserClaims `json:"user,omitempty"`
	AccessToken           string      `json:"accessToken,omitempty"`
	RefreshToken          string      `json:"-"`
	RefreshTokenExpiresAt time.Time   `json:"-"`
}

// RequiresTwoFactor reports whether the caller must continue with LoginWith2FA.
func (result *LoginResult) RequiresTwoFactor() bool {
	return result.Status == LoginStatus2FARequired
}

/*
Login validates credentials against the lockout rules and issues tokens.

Description: Unknown emails and wrong passwords produce the same message. The
status gate runs before the password is compared, so an active lock never
costs a hash comparison. A matching password always resets the failure
counter; accounts with two-factor enabled then receive a login challenge
instead of tokens.

Parameters:
  - context: context.Context
  - input: LoginInput

Returns:
  - *LoginResult: Challenge or session
  - error: Unauthorized, Forbidden, or internal failures
*/
func (service *Service) Login(context context.Context, input LoginInput) (*LoginResult, error) {
	user, err := service.users.FindByEmail(context, normalizeEmail(input.Email))
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, apperr.Unauthorized(msgInvalidCredentials)
		}
		return nil, fmt.Errorf("auth_service_login_lookup_failed: %w", err)
	}

	now := service.now()

	if err := LoginGate(user, now); err != nil {
		service.logger.WarnContext(context, "auth_login_blocked",
			slog.String("user_id", user.ID),
			slog.String("status", string(user.Status)),
		)
		return nil, err
	}

	if !service.hasher.Compare(input.Password, user.PasswordHash) {
		if err := service.recordFailure(context, user, now); err != nil {
			return nil, err
		}
		return nil, apperr.Unauthorized(msgInvalidCredentials)
	}

	patch := service.lockout.OnSuccess(user)
	if !user.TwoFactorEnabled {
		patch = patch.Merge(presenceOnline(now))
	}
	if err := service.users.Update(context, user.ID, patch); err != nil {
		return nil, fmt.Errorf("auth_service_login_update_failed: %w", err)
	}
	patch.Apply(user)

	if user.TwoFactorEnabled {
		loginToken, err := service.tokens.SignPurpose(sec.KindLoginChallenge, user.ID)
		if err != nil {
			return nil, fmt.Errorf("auth_service_challenge_failed: %w", err)
		}
		service.logger.InfoContext(context, "auth_login_2fa_challenge", slog.String("user_id", user.ID))
		return &LoginResult{Status: LoginStatus2FARequired, LoginToken: loginToken}, nil
	}

	return service.issueSession(context, user, input.Device, now)
}

// recordFailure applies the lockout policy to a wrong password.
func (service *Service) recordFailure(context context.Context, user *User, now time.Time) error {
	decision := service.lockout.OnFailure(user, now)

	if err := service.users.Update(context, user.ID, decision.Patch()); err != nil {
		return fmt.Errorf("auth_service_record_failure_failed: %w", err)
	}

	service.logger.WarnContext(context, "auth_login_failed",
		slog.String("user_id", user.ID),
		slog.Int("attempts", decision.Attempts),
		slog.Bool("fresh_start", decision.FreshStart),
	)

	if decision.Lock {
		service.logger.WarnContext(context, "auth_account_locked",
			slog.String("user_id", user.ID),
			slog.Time("locked_until", decision.LockedUntil),
		)
		service.send(context, func() (notify.Message, error) {
			return service.mail.AccountLocked(user.Email, user.Username, decision.LockedUntil)
		})
	}

	return nil
}

// issueSession mints an access and refresh token pair and records the session.
func (service *Service) issueSession(context context.Context, user *User, device DeviceInfo, now time.Time) (*LoginResult, error) {
	pair, err := service.mintPair(context, user, device, now)
	if err != nil {
		return nil, err
	}

	service.logger.InfoContext(context, "auth_login_succeeded", slog.String("user_id", user.ID))

	return &LoginResult{
		User: &UserClaims{
			ID:       user.ID,
			Email:    user.Email,
			Username: user.Username,
			Role:     string(user.Role),
		},
		AccessToken:           pair.AccessToken,
		RefreshToken:          pair.RefreshToken,
		RefreshTokenExpiresAt: pair.RefreshTokenExpiresAt,
	}, nil
}

// TokenPair is the result of a refresh rotation.
type TokenPair struct {
	AccessToken           string    `json:"accessToken"`
	RefreshToken          string    `json:"-"`
	RefreshTokenExpiresAt time.Time `json:"-"`
}

func (service *Service) mintPair(context context.Context, user *User, device DeviceInfo, now time.Time) (*TokenPair, error) {
	accessToken, err := service.tokens.SignAccess(user.Identity())
	if err != nil {
		return nil, fmt.Errorf("auth_service_token_generation_failed: %w", err)
	}

	refreshToken, err := service.tokens.SignRefresh(user.ID)
	if err != nil {
		return nil, fmt.Errorf("auth_service_refresh_token_failed: %w", err)
	}

	session := &Session{
		UserID:    user.ID,
		Device:    device.Normalized(),
		CreatedAt: now,
		ExpiresAt: now.Add(service.tokens.TTL(sec.KindRefresh)),
	}
	if err := service.sessions.Create(context, refreshToken, session); err != nil {
		return nil, fmt.Errorf("auth_service_session_creation_failed: %w", err)
	}

	return &TokenPair{
		AccessToken:           accessToken,
		RefreshToken:          refreshToken,
		RefreshTokenExpiresAt: session.ExpiresAt,
	}, nil
}

// # Session Lifecycle

/*
Logout ends the session of refreshToken.

Description: Idempotent. An unknown or already-ended session is not an error.
The owner is marked offline and the logout time is stamped.

Parameters:
  - context: context.Context
  - refreshToken: string

Returns:
  - error: Storage failures only
*/
func (service *Service) Logout(context context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}

	session, err := service.sessions.FindByToken(context, refreshToken)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("auth_service_logout_lookup_failed: %w", err)
	}

	patch := UserPatch{
		Presence: pointer.To(PresenceOffline),
		LogoutAt: pointer.To(service.now()),
	}
	if err := service.users.Update(context, session.UserID, patch); err != nil && !apperr.IsNotFound(err) {
		return fmt.Errorf("auth_service_logout_update_failed: %w", err)
	}

	if _, err := service.sessions.DeleteByToken(context, refreshToken); err != nil {
		return fmt.Errorf("auth_service_logout_delete_failed: %w", err)
	}

	service.logger.InfoContext(context, "auth_logout", slog.String("user_id", session.UserID))
	return nil
}

/*
LogoutOtherDevices ends every session of userID except the current one.

Parameters:
  - context: context.Context
  - userID: string (authenticated caller)
  - currentRefreshToken: string (session to keep)

Returns:
  - error: Unauthorized if the current token is not a live session of userID
*/
func (service *Service) LogoutOtherDevices(context context.Context, userID, currentRefreshToken string) error {
	session, err := service.sessions.FindByToken(context, currentRefreshToken)
	if err != nil {
		if apperr.IsNotFound(err) {
			return apperr.Unauthorized(msgInvalidRefresh)
		}
		return fmt.Errorf("auth_service_logout_others_lookup_failed: %w", err)
	}
	if session.UserID != userID {
		return apperr.Unauthorized(msgInvalidRefresh)
	}

	if err := service.sessions.DeleteOthers(context, userID, currentRefreshToken); err != nil {
		return fmt.Errorf("auth_service_logout_others_failed: %w", err)
	}

	service.logger.InfoContext(context, "auth_logout_other_devices", slog.String("user_id", userID))
	return nil
}

/*
Refresh rotates a refresh token.

Description: The old session must be removed by this very call before a new
pair is minted. Of two concurrent refreshes with one token, the one that loses
the delete fails Unauthorized, so a token is never refreshed twice.

Parameters:
  - context: context.Context
  - refreshToken: string
  - device: DeviceInfo (recorded on the new session)

Returns:
  - *TokenPair: New access and refresh tokens
  - error: Unauthorized for any invalid, reused or foreign token, or an
    owner that is missing or not active
*/
func (service *Service) Refresh(context context.Context, refreshToken string, device DeviceInfo) (*TokenPair, error) {
	claims, err := service.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, apperr.Unauthorized(msgInvalidRefresh)
	}

	session, err := service.sessions.FindByToken(context, refreshToken)
	if err != nil {
		if apperr.IsNotFound(err) {
			service.logger.WarnContext(context, "auth_refresh_reuse_detected", slog.String("user_id", claims.UserID))
			return nil, apperr.Unauthorized(msgInvalidRefresh)
		}
		return nil, fmt.Errorf("auth_service_refresh_lookup_failed: %w", err)
	}
	if session.UserID != claims.UserID {
		return nil, apperr.Unauthorized(msgInvalidRefresh)
	}

	user, err := service.users.FindByID(context, claims.UserID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, apperr.Unauthorized(msgInactiveUser)
		}
		return nil, fmt.Errorf("auth_service_refresh_user_failed: %w", err)
	}
	if user.Status != StatusActive {
		return nil, apperr.Unauthorized(msgInactiveUser)
	}

	removed, err := service.sessions.DeleteByToken(context, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("auth_service_refresh_delete_failed: %w", err)
	}
	if !removed {
		return nil, apperr.Unauthorized(msgInvalidRefresh)
	}

	pair, err := service.mintPair(context, user, device, service.now())
	if err != nil {
		return nil, err
	}

	service.logger.InfoContext(context, "auth_refresh_rotated", slog.String("user_id", user.ID))
	return pair, nil
}

// ListSessions returns the live sessions of userID, newest first.
func (service *Service) ListSessions(context context.Context, userID string) ([]*Session, error) {
	sessions, err := service.sessions.FindByUserID(context, userID)
	if err != nil {
		return nil, fmt.Errorf("auth_service_list_sessions_failed: %w", err)
	}
	return sessions, nil
}

// # Administration

/*
UnlockAccount lifts a lock on behalf of staff.

Description: Resets the failure counter and lock expiry. A locked account
becomes active; any other status is kept, so unlocking never unbans.

Parameters:
  - context: context.Context
  - actorID: string (staff member performing the action)
  - userID: string (target account)

Returns:
  - *User: Updated account
  - error: Forbidden on self-targeting, NotFound for an unknown id
*/
func (service *Service) UnlockAccount(context context.Context, actorID, userID string) (*User, error) {
	if actorID == userID {
		return nil, apperr.Forbidden("You cannot unlock your own account")
	}

	user, err := service.users.FindByID(context, userID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, err
		}
		return nil, fmt.Errorf("auth_service_unlock_lookup_failed: %w", err)
	}

	patch := UserPatch{FailedLoginAttempts: pointer.To(0), ClearLockedUntil: true}
	if user.Status == StatusLocked {
		patch.Status = pointer.To(StatusActive)
	}
	if err := service.users.Update(context, user.ID, patch); err != nil {
		return nil, fmt.Errorf("auth_service_unlock_failed: %w", err)
	}
	patch.Apply(user)

	service.logger.InfoContext(context, "auth_account_unlocked",
		slog.String("user_id", user.ID),
		slog.String("actor_id", actorID),
	)
	return user, nil
}

// # Helpers

// send composes a message and hands it to the notifier. Composition errors
// are logged; nothing here can fail the surrounding flow.
func (service *Service) send(context context.Context, compose func() (notify.Message, error)) {
	message, err := compose()
	if err != nil {
		service.logger.ErrorContext(context, "auth_notify_compose_failed", slog.Any("error", err))
		return
	}
	service.notifier.Notify(context, message)
}

// presenceOnline marks a fresh sign-in.
func presenceOnline(now time.Time) UserPatch {
	return UserPatch{
		Presence:      pointer.To(PresenceOnline),
		ActiveAt:      pointer.To(now),
		ClearLogoutAt: true,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
