// Copyright (c) 2026 A-Z Express. All rights reserved.
// Author: platform@azexpress.app

package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/azexpress/storefront/internal/platform/apperr"
	"github.com/azexpress/storefront/internal/platform/database/schema"
	"github.com/azexpress/storefront/internal/platform/dberr"
)

// # User Repository

// PostgresUserRepository implements [UserRepository] on the users.account table.
type PostgresUserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new PostgreSQL implementation of the UserRepository.
func NewUserRepository(pool *pgxpool.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

var (
	accountColumns = strings.Join(schema.UserAccount.Columns(), ", ")

	selectAccountQuery = fmt.Sprintf(`SELECT %s FROM %s WHERE %%s AND %s IS NULL`,
		accountColumns, schema.UserAccount.Table, schema.UserAccount.DeletedAt)
)

/*
Create persists a new user record into the users.account table.

Parameters:
  - context: context.Context
  - user: *User (Entity to persist; timestamps are initialized when zero)

Returns:
  - error: apperr.Conflict on duplicate identity, or database errors
*/
func (repository *PostgresUserRepository) Create(context context.Context, user *User) error {
	table := schema.UserAccount
	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		table.Table,
		table.ID, table.Username, table.Slug, table.Email, table.PasswordHash,
		table.Role, table.Status, table.Presence, table.FailedLoginAttempts,
		table.CreatedAt, table.UpdatedAt,
	)

	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = user.CreatedAt

	_, err := repository.pool.Exec(context, query,
		user.ID,
		user.Username,
		user.Slug,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.Status,
		user.Presence,
		user.FailedLoginAttempts,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if dberr.IsUniqueViolation(err) {
			return dberr.Wrap(err, "Account", "postgres_user_repo_create_failed", schema.UserAccountConflicts)
		}
		return fmt.Errorf("postgres_user_repo_create_failed: %w", err)
	}

	return nil
}

// FindByID retrieves a live account by primary key.
func (repository *PostgresUserRepository) FindByID(context context.Context, id string) (*User, error) {
	where := fmt.Sprintf("%s = $1", schema.UserAccount.ID)
	return repository.findOne(context, "find_by_id", where, id)
}

// FindByEmail retrieves a live account by email, ignoring case.
func (repository *PostgresUserRepository) FindByEmail(context context.Context, email string) (*User, error) {
	where := fmt.Sprintf("LOWER(%s) = LOWER($1)", schema.UserAccount.Email)
	return repository.findOne(context, "find_by_email", where, email)
}

// FindByUsername retrieves a live account by username, ignoring case.
func (repository *PostgresUserRepository) FindByUsername(context context.Context, username string) (*User, error) {
	where := fmt.Sprintf("LOWER(%s) = LOWER($1)", schema.UserAccount.Username)
	return repository.findOne(context, "find_by_username", where, username)
}

/*
Update merges patch into the account in a single UPDATE statement.

Description: Only the columns the patch names are written, so concurrent
flows touching different fields (e.g. a failed-attempt increment and a 2FA
toggle) do not overwrite each other. updatedat is always bumped.

Parameters:
  - context: context.Context
  - id: string
  - patch: UserPatch

Returns:
  - error: apperr.NotFound if no live row matched, or database errors
*/
func (repository *PostgresUserRepository) Update(context context.Context, id string, patch UserPatch) error {
	if patch.IsEmpty() {
		return nil
	}

	assignments, args := patchAssignments(patch)
	args = append(args, id)

	table := schema.UserAccount
	query := fmt.Sprintf(`UPDATE %s SET %s, %s = NOW() WHERE %s = $%d AND %s IS NULL`,
		table.Table, strings.Join(assignments, ", "), table.UpdatedAt,
		table.ID, len(args), table.DeletedAt,
	)

	tag, err := repository.pool.Exec(context, query, args...)
	if err != nil {
		return fmt.Errorf("postgres_user_repo_update_failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("User")
	}

	return nil
}

// # Internals

// patchAssignments renders "column = $n" pairs for every field in patch.
func patchAssignments(patch UserPatch) ([]string, []any) {
	table := schema.UserAccount

	var (
		assignments []string
		args        []any
	)
	set := func(column string, value any) {
		args = append(args, value)
		assignments = append(assignments, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	setNull := func(column string) {
		assignments = append(assignments, column+" = NULL")
	}

	if patch.PasswordHash != nil {
		set(table.PasswordHash, *patch.PasswordHash)
	}
	if patch.Status != nil {
		set(table.Status, *patch.Status)
	}
	if patch.Presence != nil {
		set(table.Presence, *patch.Presence)
	}
	switch {
	case patch.ClearLockedUntil:
		setNull(table.LockedUntil)
	case patch.LockedUntil != nil:
		set(table.LockedUntil, *patch.LockedUntil)
	}
	if patch.FailedLoginAttempts != nil {
		set(table.FailedLoginAttempts, *patch.FailedLoginAttempts)
	}
	if patch.TwoFactorEnabled != nil {
		set(table.TwoFactorEnabled, *patch.TwoFactorEnabled)
	}
	switch {
	case patch.ClearTwoFactor:
		setNull(table.TwoFactorSecret)
	case patch.TwoFactorSecret != nil:
		set(table.TwoFactorSecret, *patch.TwoFactorSecret)
	}
	switch {
	case patch.ClearResetOTP:
		setNull(table.ResetOTPCode)
		setNull(table.ResetOTPExpiresAt)
	case patch.ResetOTP != nil:
		set(table.ResetOTPCode, patch.ResetOTP.CodeHash)
		set(table.ResetOTPExpiresAt, patch.ResetOTP.ExpiresAt)
	}
	if patch.VerifiedAt != nil {
		set(table.VerifiedAt, *patch.VerifiedAt)
	}
	if patch.ActiveAt != nil {
		set(table.ActiveAt, *patch.ActiveAt)
	}
	switch {
	case patch.ClearLogoutAt:
		setNull(table.LogoutAt)
	case patch.LogoutAt != nil:
		set(table.LogoutAt, *patch.LogoutAt)
	}
	if patch.PasswordChangedAt != nil {
		set(table.PasswordChangedAt, *patch.PasswordChangedAt)
	}

	return assignments, args
}

func (repository *PostgresUserRepository) findOne(context context.Context, action, where string, arg any) (*User, error) {
	query := fmt.Sprintf(selectAccountQuery, where)

	user, err := scanUser(repository.pool.QueryRow(context, query, arg))
	if err != nil {
		return nil, dberr.Wrap(err, "User", "postgres_user_repo_"+action+"_failed", nil)
	}
	return user, nil
}

// scanUser reads one row in [schema.UserAccountTable.Columns] order.
func scanUser(row pgx.Row) (*User, error) {
	var (
		user         User
		otpCode      *string
		otpExpiresAt *time.Time
		deletedAt    *time.Time
	)

	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Slug,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.Status,
		&user.Presence,
		&user.LockedUntil,
		&user.FailedLoginAttempts,
		&user.TwoFactorEnabled,
		&user.TwoFactorSecret,
		&otpCode,
		&otpExpiresAt,
		&user.VerifiedAt,
		&user.ActiveAt,
		&user.LogoutAt,
		&user.PasswordChangedAt,
		&user.CreatedAt,
		&user.UpdatedAt,
		&deletedAt,
	)
	if err != nil {
		return nil, err
	}

	if otpCode != nil && otpExpiresAt != nil {
		user.ResetOTP = &ResetOTP{CodeHash: *otpCode, ExpiresAt: *otpExpiresAt}
	}

	return &user, nil
}
