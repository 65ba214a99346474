// Copyright (c) 2026 A-Z Express. All rights reserved.
// Author: platform@azexpress.app

// Package sec provides cryptographic primitives and token management.
//
// # Architecture
//
// This package isolates security-sensitive code (hashing, JWT signing, random
// codes) from the domain logic. The [TokenService] signs five token kinds, each
// with its own HMAC secret and lifetime, so a token minted for one purpose can
// never be replayed for another.
package sec

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// # Token Kinds

// TokenKind names the purpose a token was minted for. It travels in the
// "typ" claim and selects the signing secret.
type TokenKind string

const (
	KindAccess         TokenKind = "access"
	KindRefresh        TokenKind = "refresh"
	KindVerifyEmail    TokenKind = "verify_email"
	KindResetPassword  TokenKind = "reset_password"
	KindLoginChallenge TokenKind = "login_challenge"
)

// Verification failures. Callers can tell an expired token from a forged or
// malformed one with [errors.Is].
var (
	ErrTokenExpired = errors.New("sec: token expired")
	ErrTokenInvalid = errors.New("sec: token invalid")
)

// # Claims

// AccessClaims represents the payload embedded inside a JWT access token.
//
// Embedding identity and role lets [middleware.Authenticate] rebuild the
// caller without a database round-trip.
type AccessClaims struct {
	jwt.RegisteredClaims

	UserID   string    `json:"id"`
	Email    string    `json:"email"`
	Username string    `json:"username"`
	Role     string    `json:"role"`
	Type     TokenKind `json:"typ"`
}

// SubjectClaims is the minimal payload of refresh and purpose tokens.
type SubjectClaims struct {
	jwt.RegisteredClaims

	UserID string    `json:"id"`
	Type   TokenKind `json:"typ"`
}

// Identity is the input for [TokenService.SignAccess].
type Identity struct {
	UserID   string
	Email    string
	Username string
	Role     string
}

// # Configuration

// KeyConfig is the signing secret and lifetime of one token kind.
type KeyConfig struct {
	Secret string
	TTL    time.Duration
}

// TokenConfig configures a [TokenService].
type TokenConfig struct {
	Issuer         string
	Access         KeyConfig
	Refresh        KeyConfig
	VerifyEmail    KeyConfig
	ResetPassword  KeyConfig
	LoginChallenge KeyConfig

	// Now overrides the clock used for issuing and validating. Defaults to time.Now.
	Now func() time.Time
}

// TokenService handles generation and verification of HS256 tokens.
type TokenService struct {
	issuer string
	keys   map[TokenKind]KeyConfig
	now    func() time.Time
}

// NewTokenService validates cfg and builds a TokenService.
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	keys := map[TokenKind]KeyConfig{
		KindAccess:         cfg.Access,
		KindRefresh:        cfg.Refresh,
		KindVerifyEmail:    cfg.VerifyEmail,
		KindResetPassword:  cfg.ResetPassword,
		KindLoginChallenge: cfg.LoginChallenge,
	}

	for kind, key := range keys {
		if key.Secret == "" {
			return nil, fmt.Errorf("sec: missing secret for %s tokens", kind)
		}
		if key.TTL <= 0 {
			return nil, fmt.Errorf("sec: non-positive ttl for %s tokens", kind)
		}
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &TokenService{issuer: cfg.Issuer, keys: keys, now: now}, nil
}

// TTL returns the configured lifetime of kind.
func (service *TokenService) TTL(kind TokenKind) time.Duration {
	return service.keys[kind].TTL
}

// # Access Tokens

// SignAccess mints a short-lived access token for identity.
func (service *TokenService) SignAccess(identity Identity) (string, error) {
	claims := &AccessClaims{
		RegisteredClaims: service.registered(KindAccess, identity.UserID),
		UserID:           identity.UserID,
		Email:            identity.Email,
		Username:         identity.Username,
		Role:             identity.Role,
		Type:             KindAccess,
	}
	return service.sign(KindAccess, claims)
}

// VerifyAccess checks signature, issuer, expiry and kind of an access token.
func (service *TokenService) VerifyAccess(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := service.parse(KindAccess, tokenString, claims); err != nil {
		return nil, err
	}
	if claims.Type != KindAccess || claims.UserID == "" {
		return nil, fmt.Errorf("%w: wrong token kind", ErrTokenInvalid)
	}
	return claims, nil
}

// # Refresh Tokens

// SignRefresh mints a long-lived refresh token carrying only the user id.
func (service *TokenService) SignRefresh(userID string) (string, error) {
	return service.SignPurpose(KindRefresh, userID)
}

// VerifyRefresh checks a refresh token. Session existence is the caller's job.
func (service *TokenService) VerifyRefresh(tokenString string) (*SubjectClaims, error) {
	return service.VerifyPurpose(KindRefresh, tokenString)
}

// # Purpose Tokens

// SignPurpose mints a token of the given kind carrying only the user id.
func (service *TokenService) SignPurpose(kind TokenKind, userID string) (string, error) {
	if kind == KindAccess {
		return "", fmt.Errorf("sec: access tokens carry full identity, use SignAccess")
	}
	claims := &SubjectClaims{
		RegisteredClaims: service.registered(kind, userID),
		UserID:           userID,
		Type:             kind,
	}
	return service.sign(kind, claims)
}

// VerifyPurpose checks a token of the given kind.
func (service *TokenService) VerifyPurpose(kind TokenKind, tokenString string) (*SubjectClaims, error) {
	if kind == KindAccess {
		return nil, fmt.Errorf("%w: use VerifyAccess", ErrTokenInvalid)
	}
	claims := &SubjectClaims{}
	if err := service.parse(kind, tokenString, claims); err != nil {
		return nil, err
	}
	if claims.Type != kind || claims.UserID == "" {
		return nil, fmt.Errorf("%w: wrong token kind", ErrTokenInvalid)
	}
	return claims, nil
}

// # Internals

// registered fills the standard claims. The random jti keeps two tokens
// minted within the same second distinct.
func (service *TokenService) registered(kind TokenKind, subject string) jwt.RegisteredClaims {
	issuedAt := service.now()
	return jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   subject,
		Issuer:    service.issuer,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(issuedAt.Add(service.keys[kind].TTL)),
	}
}

func (service *TokenService) sign(kind TokenKind, claims jwt.Claims) (string, error) {
	key, ok := service.keys[kind]
	if !ok {
		return "", fmt.Errorf("sec: unknown token kind %q", kind)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString([]byte(key.Secret))
	if err != nil {
		return "", fmt.Errorf("sec: failed to sign %s token: %w", kind, err)
	}
	return signedToken, nil
}

func (service *TokenService) parse(kind TokenKind, tokenString string, claims jwt.Claims) error {
	key, ok := service.keys[kind]
	if !ok {
		return fmt.Errorf("%w: unknown token kind %q", ErrTokenInvalid, kind)
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(service.now),
	}
	if service.issuer != "" {
		options = append(options, jwt.WithIssuer(service.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(key.Secret), nil
	}, options...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	if !token.Valid {
		return ErrTokenInvalid
	}

	return nil
}
