// Copyright (c) 2026 A-Z Express. All rights reserved.
// Author: platform@azexpress.app

// Package schema names the tables and columns the repositories query, so SQL
// strings never hard-code identifiers.
package schema

// UserAccountTable represents the 'users.account' table
type UserAccountTable struct {
	Table               string
	ID                  string
	Username            string
	Slug                string
	Email               string
	PasswordHash        string
	Role                string
	Status              string
	Presence            string
	LockedUntil         string
	FailedLoginAttempts string
	TwoFactorEnabled    string
	TwoFactorSecret     string
	ResetOTPCode        string
	ResetOTPExpiresAt   string
	VerifiedAt          string
	ActiveAt            string
	LogoutAt            string
	PasswordChangedAt   string
	CreatedAt           string
	UpdatedAt           string
	DeletedAt           string
}

// UserAccount is the schema definition for users.account
var UserAccount = UserAccountTable{
	Table:               "users.account",
	ID:                  "id",
	Username:            "username",
	Slug:                "slug",
	Email:               "email",
	PasswordHash:        "passwordhash",
	Role:                "role",
	Status:              "status",
	Presence:            "presence",
	LockedUntil:         "lockeduntil",
	FailedLoginAttempts: "failedloginattempts",
	TwoFactorEnabled:    "twofactorenabled",
	TwoFactorSecret:     "twofactorsecret",
	ResetOTPCode:        "resetotpcode",
	ResetOTPExpiresAt:   "resetotpexpiresat",
	VerifiedAt:          "verifiedat",
	ActiveAt:            "activeat",
	LogoutAt:            "logoutat",
	PasswordChangedAt:   "passwordchangedat",
	CreatedAt:           "createdat",
	UpdatedAt:           "updatedat",
	DeletedAt:           "deletedat",
}

// Unique constraints mapped to the field they guard, for conflict messages.
var UserAccountConflicts = map[string]string{
	"uq_account_email":    "email",
	"uq_account_username": "username",
	"uq_account_slug":     "username",
}

// Columns returns every column in scan order.
func (t UserAccountTable) Columns() []string {
	return []string{
		t.ID, t.Username, t.Slug, t.Email, t.PasswordHash, t.Role, t.Status, t.Presence,
		t.LockedUntil, t.FailedLoginAttempts, t.TwoFactorEnabled, t.TwoFactorSecret,
		t.ResetOTPCode, t.ResetOTPExpiresAt, t.VerifiedAt, t.ActiveAt, t.LogoutAt,
		t.PasswordChangedAt, t.CreatedAt, t.UpdatedAt, t.DeletedAt,
	}
}
