// Copyright (c) 2026 A-Z Express. All rights reserved.
// Author: platform@azexpress.app

package sec

// # User Roles

// UserRole represents the authorization level granted to an account.
type UserRole string

const (
	// Unrestricted system access, including other admins
	RoleSuperAdmin UserRole = "super-admin"

	// Store administration: users, catalog, settings
	RoleAdmin UserRole = "admin"

	// Catalog and order management without user administration
	RoleManager UserRole = "manager"

	// Back-office helpers
	RoleStaff           UserRole = "staff"
	RoleCustomerSupport UserRole = "customer-support"

	// Marketplace participants managing their own listings
	RoleSeller UserRole = "seller"
	RoleVendor UserRole = "vendor"

	// Last-mile delivery accounts
	RoleDeliveryBoy UserRole = "delivery-boy"

	// Read-only back-office access
	RoleViewer UserRole = "viewer"

	// Default role for shoppers
	RoleUser UserRole = "user"
)

// # Role Hierarchy

// AtLeast checks if the current role meets or exceeds the required target role.
func (r UserRole) AtLeast(target UserRole) bool {
	return r.level() >= target.level()
}

// Valid reports whether r is one of the known roles.
func (r UserRole) Valid() bool {
	return r.level() > 0
}

// level maps a role to a numeric hierarchy level for comparison logic.
func (r UserRole) level() int {
	switch r {
	case RoleSuperAdmin:
		return 50
	case RoleAdmin:
		return 40
	case RoleManager:
		return 30
	case RoleStaff, RoleCustomerSupport:
		return 25
	case RoleSeller, RoleVendor, RoleDeliveryBoy:
		return 20
	case RoleViewer:
		return 15
	case RoleUser:
		return 10
	default:
		return 0
	}
}
