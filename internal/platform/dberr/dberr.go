// Copyright (c) 2026 A-Z Express. All rights reserved.
// Author: platform@azexpress.app

// Package dberr translates PostgreSQL driver errors into [apperr.AppError] values.
package dberr

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/azexpress/storefront/internal/platform/apperr"
)

// SQLSTATE codes the repositories branch on.
const (
	codeUniqueViolation = "23505"
	codeCheckViolation  = "23514"
)

// Wrap classifies err for the given resource.
//
//   - pgx.ErrNoRows becomes NotFound(resource).
//   - A unique violation becomes Conflict, naming the violated constraint's
//     column when conflicts maps it.
//   - Anything else becomes Internal, with action kept in the cause for logs.
func Wrap(err error, resource, action string, conflicts map[string]string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(resource)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			if field, ok := conflicts[pgErr.ConstraintName]; ok {
				return apperr.Conflict(fmt.Sprintf("%s with this %s already exists", resource, field))
			}
			return apperr.Conflict(resource + " already exists")
		case codeCheckViolation:
			return apperr.ValidationError(fmt.Sprintf("%s violates constraint %s", resource, pgErr.ConstraintName))
		}
	}

	return apperr.Internal(fmt.Errorf("%s: %w", action, err))
}

// IsUniqueViolation reports whether err carries SQLSTATE 23505.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}
