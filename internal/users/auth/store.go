// Copyright (c) 2026 A-Z Express. All rights reserved.
// Author: platform@azexpress.app

package auth

import (
	"context"

	"github.com/azexpress/storefront/internal/notify"
)

// # User Data Access

// UserRepository defines the data access contract for user accounts.
//
// Lookups return every column, including the password hash, lockout and
// reset-code fields, because the auth flows need them. Misses are
// apperr.NotFound.
type UserRepository interface {

	/*
		FindByID returns the account with the given ID.

		Parameters:
		  - context: context.Context
		  - id: string

		Returns:
		  - *User: Hydrated entity
		  - error: apperr.NotFound or database failures
	*/
	FindByID(context context.Context, id string) (*User, error)

	/*
		FindByEmail returns the account with the given email, compared
		case-insensitively.

		Parameters:
		  - context: context.Context
		  - email: string

		Returns:
		  - *User: Hydrated entity
		  - error: apperr.NotFound or database failures
	*/
	FindByEmail(context context.Context, email string) (*User, error)

	/*
		FindByUsername returns the account with the given username, compared
		case-insensitively.
	*/
	FindByUsername(context context.Context, username string) (*User, error)

	/*
		Create persists a brand-new account.

		Returns:
		  - error: apperr.Conflict on a duplicate email, username or slug
	*/
	Create(context context.Context, user *User) error

	/*
		Update merges patch into the account atomically.

		Parameters:
		  - context: context.Context
		  - id: string
		  - patch: UserPatch (fields to set or clear)

		Returns:
		  - error: apperr.NotFound when the account is gone
	*/
	Update(context context.Context, id string, patch UserPatch) error
}

// # Session Data Access

// SessionRepository stores refresh-token sessions. Tokens are passed raw and
// hashed by the implementation. Records expire on their own at ExpiresAt.
type SessionRepository interface {

	// Create stores session under the hash of token.
	Create(context context.Context, token string, session *Session) error

	// FindByToken returns the session for token, or apperr.NotFound.
	FindByToken(context context.Context, token string) (*Session, error)

	// FindByUserID lists the live sessions of a user, newest first.
	FindByUserID(context context.Context, userID string) ([]*Session, error)

	/*
		DeleteByToken removes the session for token.

		Returns:
		  - bool: true only when this call removed it, so two concurrent
		    rotations of one token cannot both succeed
		  - error: storage failures
	*/
	DeleteByToken(context context.Context, token string) (bool, error)

	// DeleteByUserID removes every session of a user.
	DeleteByUserID(context context.Context, userID string) error

	// DeleteOthers removes every session of a user except the one for keepToken.
	DeleteOthers(context context.Context, userID, keepToken string) error
}

// # Collaborators

// PasswordHasher hashes and checks passwords. [sec.BcryptHasher] implements it.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Compare(plain, hash string) bool
}

// Notifier sends account email without blocking. [notify.Dispatcher]
// implements it; failures are its concern, never the caller's.
type Notifier interface {
	Notify(context context.Context, message notify.Message)
}
