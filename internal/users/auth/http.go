// Copyright (c) 2026 A-Z Express. All rights reserved.
// Author: platform@azexpress.app

package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/azexpress/storefront/internal/platform/apperr"
	"github.com/azexpress/storefront/internal/platform/constants"
	"github.com/azexpress/storefront/internal/platform/middleware"
	requestutil "github.com/azexpress/storefront/internal/platform/request"
	"github.com/azexpress/storefront/internal/platform/respond"
	"github.com/azexpress/storefront/internal/platform/sec"
	"github.com/azexpress/storefront/internal/platform/validate"
)

// # Definitions & Constructors

// HandlerOptions tune the transport of [Handler].
type HandlerOptions struct {
	// SecureCookie sets the Secure flag on the refresh cookie. Off only for
	// plain-HTTP local development.
	SecureCookie bool

	// RateLimit, when set, throttles the credential endpoints.
	RateLimit func(http.Handler) http.Handler
}

// Handler implements authentication-related HTTP endpoints.
//
// # Scope
//
// This handler manages every entry point of the account lifecycle
// (Registration, Login, Sessions, Recovery, Two-Factor, Unlock).
type Handler struct {
	authService  *Service
	secureCookie bool
	rateLimit    func(http.Handler) http.Handler
}

// NewHandler constructs a new [Handler] with its service dependency.
func NewHandler(service *Service, options HandlerOptions) *Handler {
	return &Handler{
		authService:  service,
		secureCookie: options.SecureCookie,
		rateLimit:    options.RateLimit,
	}
}

// Routes returns a [chi.Router] configured with authentication-specific routes.
//
// Mount it under /api/v1/auth behind [middleware.Authenticate].
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	// Credential endpoints
	router.Group(func(r chi.Router) {
		if handler.rateLimit != nil {
			r.Use(handler.rateLimit)
		}
		r.Post("/register", handler.register)
		r.Post("/login", handler.login)
		r.Post("/login/2fa", handler.loginWith2FA)
		r.Post("/forgot-password", handler.forgotPassword)
		r.Post("/reset-password", handler.resetPassword)
		r.Post("/reset-password/{token}", handler.resetPasswordWithToken)
	})

	// Public endpoints
	router.Post("/refresh", handler.refresh)
	router.Post("/logout", handler.logout)
	router.Get("/verify-email/{token}", handler.verifyEmail)

	// Protected endpoints
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Post("/logout-others", handler.logoutOthers)
		r.Post("/change-password", handler.changePassword)
		r.Get("/sessions", handler.listSessions)
		r.Post("/2fa/setup", handler.setup2FA)
		r.Post("/2fa/verify", handler.verify2FA)
		r.Post("/2fa/enable", handler.enable2FA)
		r.Post("/2fa/disable", handler.disable2FA)
	})

	// Staff endpoints
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole(sec.RoleAdmin))
		r.Post("/users/{id}/unlock", handler.unlockAccount)
	})

	return router
}

// # Request Payloads

type registerRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginWith2FARequest struct {
	LoginToken string `json:"loginToken"`
	Code       string `json:"code"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Email           string `json:"email"`
	OTP             string `json:"otp"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type changePasswordRequest struct {
	OldPassword     string `json:"oldPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

type codeRequest struct {
	Code string `json:"code"`
}

// sessionView is a session as shown to its owner.
type sessionView struct {
	ID        string     `json:"id"`
	Device    DeviceInfo `json:"device"`
	CreatedAt time.Time  `json:"createdAt"`
	ExpiresAt time.Time  `json:"expiresAt"`
	Current   bool       `json:"current"`
}

/*
Register handles the creation of a new user account.

POST /api/v1/auth/register

Request:
  - Body: registerRequest (Username, Email, Password, ConfirmPassword)

Response:
  - 201: User: Created user profile
  - 400: ErrInvalidJSON: Bad input or validation failure
  - 409: ErrConflict: Username or Email already exists
*/
func (handler *Handler) register(writer http.ResponseWriter, request *http.Request) {
	var input registerRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldUsername, input.Username).
		MinLen(FieldUsername, input.Username, MinUsernameLength).
		MaxLen(FieldUsername, input.Username, MaxUsernameLength).
		Username(FieldUsername, input.Username).
		Required(FieldEmail, input.Email).
		Email(FieldEmail, input.Email).
		Required(FieldPassword, input.Password).
		MinLen(FieldPassword, input.Password, MinPasswordLength).
		MaxBytes(FieldPassword, input.Password, MaxPasswordLength).
		Password(FieldPassword, input.Password).
		Match(FieldConfirmPassword, input.ConfirmPassword, input.Password, "must match password")

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.authService.Register(request.Context(), RegisterInput{
		Username: input.Username,
		Email:    input.Email,
		Password: input.Password,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, user)
}

/*
Login authenticates a user and establishes a session.

POST /api/v1/auth/login

Description: On success the refresh token is set as an HTTP-only cookie. An
account with two-factor enabled receives a challenge instead.

Response:
  - 200: LoginResult: Access token and user, or 2FA_REQUIRED with a loginToken
  - 401: ErrUnauthorized: Invalid credentials
  - 403: ErrForbidden: Account locked, pending, banned or deactivated
*/
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	var input loginRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email).
		Email(FieldEmail, input.Email).
		Required(FieldPassword, input.Password)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	result, err := handler.authService.Login(request.Context(), LoginInput{
		Email:    input.Email,
		Password: input.Password,
		Device:   DeviceFromRequest(request),
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if !result.RequiresTwoFactor() {
		handler.setRefreshCookie(writer, result.RefreshToken, result.RefreshTokenExpiresAt)
	}
	respond.OK(writer, result)
}

/*
LoginWith2FA completes a challenged login with an authenticator code.

POST /api/v1/auth/login/2fa

Response:
  - 200: LoginResult: Access token and user
  - 400: ErrBadRequest: Invalid code
  - 401: ErrUnauthorized: Invalid or expired login token
*/
func (handler *Handler) loginWith2FA(writer http.ResponseWriter, request *http.Request) {
	var input loginWith2FARequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldLoginToken, input.LoginToken).
		Digits(FieldCode, input.Code, TOTPDigits)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	result, err := handler.authService.LoginWith2FA(request.Context(), input.LoginToken, input.Code, DeviceFromRequest(request))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.setRefreshCookie(writer, result.RefreshToken, result.RefreshTokenExpiresAt)
	respond.OK(writer, result)
}

/*
Refresh rotates the refresh token and issues a new access token.

POST /api/v1/auth/refresh

Description: The token is read from the cookie, or from the body for
clients that cannot hold cookies.

Response:
  - 200: TokenPair: New access token (refresh token in cookie)
  - 401: ErrUnauthorized: Missing, invalid or already-rotated token
*/
func (handler *Handler) refresh(writer http.ResponseWriter, request *http.Request) {
	token := handler.refreshToken(request)
	if token == "" {
		respond.Error(writer, request, apperr.Unauthorized("Missing refresh token"))
		return
	}

	pair, err := handler.authService.Refresh(request.Context(), token, DeviceFromRequest(request))
	if err != nil {
		handler.clearRefreshCookie(writer)
		respond.Error(writer, request, err)
		return
	}

	handler.setRefreshCookie(writer, pair.RefreshToken, pair.RefreshTokenExpiresAt)
	respond.OK(writer, pair)
}

/*
Logout terminates the current session.

POST /api/v1/auth/logout

Response:
  - 204: No Content: Session terminated (also when there was none)
*/
func (handler *Handler) logout(writer http.ResponseWriter, request *http.Request) {
	if err := handler.authService.Logout(request.Context(), handler.refreshToken(request)); err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.clearRefreshCookie(writer)
	respond.NoContent(writer)
}

/*
LogoutOthers terminates every session of the caller except the current one.

POST /api/v1/auth/logout-others

Response:
  - 204: No Content
  - 401: ErrUnauthorized: Current session missing or invalid
*/
func (handler *Handler) logoutOthers(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	token := handler.refreshToken(request)
	if token == "" {
		respond.Error(writer, request, apperr.Unauthorized("Missing refresh token"))
		return
	}

	if err := handler.authService.LogoutOtherDevices(request.Context(), userID, token); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

/*
ListSessions returns the caller's live sessions.

GET /api/v1/auth/sessions

Response:
  - 200: []sessionView: Newest first, the requesting device flagged current
*/
func (handler *Handler) listSessions(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	sessions, err := handler.authService.ListSessions(request.Context(), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var currentHash string
	if token := handler.refreshToken(request); token != "" {
		currentHash = sec.HashToken(token)
	}

	views := make([]sessionView, 0, len(sessions))
	for _, session := range sessions {
		views = append(views, sessionView{
			ID:        session.ID,
			Device:    session.Device,
			CreatedAt: session.CreatedAt,
			ExpiresAt: session.ExpiresAt,
			Current:   currentHash != "" && sec.EqualHash(session.TokenHash, currentHash),
		})
	}

	respond.OK(writer, views)
}

/*
ChangePassword updates the authenticated user's password.

POST /api/v1/auth/change-password

Response:
  - 200: Success: Password changed
  - 400: ErrBadRequest: Weak password, mismatch, or unchanged password
  - 401: ErrUnauthorized: Wrong current password
*/
func (handler *Handler) changePassword(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input changePasswordRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldOldPassword, input.OldPassword).
		Required(FieldNewPassword, input.NewPassword).
		MinLen(FieldNewPassword, input.NewPassword, MinPasswordLength).
		MaxBytes(FieldNewPassword, input.NewPassword, MaxPasswordLength).
		Password(FieldNewPassword, input.NewPassword).
		Match(FieldConfirmPassword, input.ConfirmPassword, input.NewPassword, "must match new password")

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.ChangePassword(request.Context(), userID, input.OldPassword, input.NewPassword); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Message(writer, "Password changed successfully")
}

/*
ForgotPassword initiates the password recovery flow.

POST /api/v1/auth/forgot-password

Response:
  - 200: Success: Generic message whether or not the account exists
  - 400: ErrInvalidJSON: Invalid email format
*/
func (handler *Handler) forgotPassword(writer http.ResponseWriter, request *http.Request) {
	var input forgotPasswordRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email).Email(FieldEmail, input.Email)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.ForgotPassword(request.Context(), input.Email); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Message(writer, "If this email is registered, a reset code has been sent.")
}

/*
ResetPassword completes recovery with the emailed code.

POST /api/v1/auth/reset-password

Response:
  - 200: Success: Password updated, every session ended
  - 400: ErrBadRequest: Missing, expired or invalid code
  - 404: ErrNotFound: No account for the email
*/
func (handler *Handler) resetPassword(writer http.ResponseWriter, request *http.Request) {
	var input resetPasswordRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email).
		Email(FieldEmail, input.Email).
		Digits(FieldOTP, input.OTP, ResetOTPDigits)
	handler.validateNewPassword(validator, input.Password, input.ConfirmPassword)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.completeReset(writer, request, ResetPasswordInput{
		NewPassword: input.Password,
		Email:       input.Email,
		OTP:         input.OTP,
	})
}

/*
ResetPasswordWithToken completes recovery with the emailed link.

POST /api/v1/auth/reset-password/{token}

Response:
  - 200: Success: Password updated, every session ended
  - 400: ErrBadRequest: The reset request is no longer outstanding
  - 401: ErrUnauthorized: Invalid or expired link
*/
func (handler *Handler) resetPasswordWithToken(writer http.ResponseWriter, request *http.Request) {
	var input resetPasswordRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	handler.validateNewPassword(validator, input.Password, input.ConfirmPassword)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.completeReset(writer, request, ResetPasswordInput{
		NewPassword: input.Password,
		Token:       requestutil.Param(request, FieldToken),
	})
}

func (handler *Handler) validateNewPassword(validator *validate.Validator, password, confirm string) {
	validator.Required(FieldPassword, password).
		MinLen(FieldPassword, password, MinPasswordLength).
		MaxBytes(FieldPassword, password, MaxPasswordLength).
		Password(FieldPassword, password).
		Match(FieldConfirmPassword, confirm, password, "must match password")
}

func (handler *Handler) completeReset(writer http.ResponseWriter, request *http.Request, input ResetPasswordInput) {
	if err := handler.authService.ResetPassword(request.Context(), input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.clearRefreshCookie(writer)
	respond.Message(writer, "Password updated successfully. Please sign in again.")
}

/*
VerifyEmail confirms ownership of the account email.

GET /api/v1/auth/verify-email/{token}

Response:
  - 200: Success: Email verified (also when it already was)
  - 401: ErrUnauthorized: Invalid or expired link
*/
func (handler *Handler) verifyEmail(writer http.ResponseWriter, request *http.Request) {
	token := requestutil.Param(request, FieldToken)
	if token == "" {
		respond.Error(writer, request, validate.RequiredError(FieldToken, "is required"))
		return
	}

	if err := handler.authService.VerifyEmail(request.Context(), token); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Message(writer, "Email verified successfully")
}

// # Two-Factor Endpoints

// setup2FA handles POST /api/v1/auth/2fa/setup.
func (handler *Handler) setup2FA(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	setup, err := handler.authService.Setup2FA(request.Context(), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, setup)
}

// verify2FA handles POST /api/v1/auth/2fa/verify.
func (handler *Handler) verify2FA(writer http.ResponseWriter, request *http.Request) {
	handler.withCode(writer, request, handler.authService.Verify2FA, "Authentication code is valid")
}

// enable2FA handles POST /api/v1/auth/2fa/enable.
func (handler *Handler) enable2FA(writer http.ResponseWriter, request *http.Request) {
	handler.withCode(writer, request, handler.authService.Enable2FA, "Two-factor authentication enabled")
}

// disable2FA handles POST /api/v1/auth/2fa/disable.
func (handler *Handler) disable2FA(writer http.ResponseWriter, request *http.Request) {
	handler.withCode(writer, request, handler.authService.Disable2FA, "Two-factor authentication disabled")
}

func (handler *Handler) withCode(
	writer http.ResponseWriter,
	request *http.Request,
	action func(ctx context.Context, userID, code string) error,
	message string,
) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input codeRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Digits(FieldCode, input.Code, TOTPDigits)
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := action(request.Context(), userID, input.Code); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Message(writer, message)
}

// # Staff Endpoints

/*
UnlockAccount lifts a lock on behalf of staff.

POST /api/v1/auth/users/{id}/unlock

Response:
  - 200: User: Updated account
  - 403: ErrForbidden: Not staff, or targeting oneself
  - 404: ErrNotFound: Unknown user
*/
func (handler *Handler) unlockAccount(writer http.ResponseWriter, request *http.Request) {
	actorID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	userID := requestutil.Param(request, FieldUserID)

	validator := &validate.Validator{}
	if err := validator.UUID(FieldUserID, userID).Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.authService.UnlockAccount(request.Context(), actorID, userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, user)
}

// # Cookie Helpers

// refreshToken reads the refresh token from its cookie, falling back to the
// JSON body.
func (handler *Handler) refreshToken(request *http.Request) string {
	if cookie, err := request.Cookie(constants.RefreshTokenCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	if request.Body == nil || request.ContentLength == 0 {
		return ""
	}

	var input refreshRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		return ""
	}
	return input.RefreshToken
}

func (handler *Handler) setRefreshCookie(writer http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(writer, &http.Cookie{
		Name:     constants.RefreshTokenCookieName,
		Value:    token,
		Path:     constants.RefreshTokenCookiePath,
		Expires:  expiresAt,
		Secure:   handler.secureCookie,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

func (handler *Handler) clearRefreshCookie(writer http.ResponseWriter) {
	http.SetCookie(writer, &http.Cookie{
		Name:     constants.RefreshTokenCookieName,
		Value:    "",
		Path:     constants.RefreshTokenCookiePath,
		MaxAge:   -1,
		Secure:   handler.secureCookie,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}
