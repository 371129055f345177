// Package models holds the session domain types. The role/approval pairing is
// a closed variant: illegal combinations (an admin with an approval status, a
// manufacturer without one) are rejected by Validate rather than represented.
package models

import (
	"fmt"
)

// Role is the backend-assigned role of the current user.
type Role string

const (
	RoleBuyer        Role = "buyer"
	RoleManufacturer Role = "manufacturer"
	RoleAdmin        Role = "admin"
	RoleGeneralUser  Role = "general_user"
)

// ParseRole validates a wire role string.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleBuyer, RoleManufacturer, RoleAdmin, RoleGeneralUser:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// ApprovalStatus gates manufacturer dashboard access. Meaningful only for
// RoleManufacturer; every other role carries ApprovalNone.
type ApprovalStatus string

const (
	ApprovalNone     ApprovalStatus = "none"
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// User is the backend's resolved view of the signed-in person.
type User struct {
	ID              string         `json:"id"`
	Role            Role           `json:"role"`
	Name            string         `json:"name"`
	Email           string         `json:"email"`
	ApprovalStatus  ApprovalStatus `json:"approval_status"`
	IsVerifiedBuyer bool           `json:"is_verified_buyer"`
}

// Normalize repairs wire-level looseness: non-manufacturers always carry
// ApprovalNone, and a manufacturer arriving without a status is treated as
// pending (the backend's default for first contact).
func (u *User) Normalize() {
	if u.Role != RoleManufacturer {
		u.ApprovalStatus = ApprovalNone
		return
	}
	if u.ApprovalStatus == "" || u.ApprovalStatus == ApprovalNone {
		u.ApprovalStatus = ApprovalPending
	}
}

// Validate enforces the role/approval invariants.
func (u User) Validate() error {
	if _, err := ParseRole(string(u.Role)); err != nil {
		return err
	}
	switch u.Role {
	case RoleManufacturer:
		switch u.ApprovalStatus {
		case ApprovalPending, ApprovalApproved, ApprovalRejected:
		default:
			return fmt.Errorf("manufacturer with approval status %q", u.ApprovalStatus)
		}
	default:
		if u.ApprovalStatus != ApprovalNone {
			return fmt.Errorf("role %s with approval status %q", u.Role, u.ApprovalStatus)
		}
	}
	return nil
}

// IsApprovedManufacturer reports whether the user may enter the manufacturer
// dashboard.
func (u User) IsApprovedManufacturer() bool {
	return u.Role == RoleManufacturer && u.ApprovalStatus == ApprovalApproved
}

// Snapshot is the session state visible to consumers: who the user is and
// whether the initial restore is still running. Loading transitions true to
// false exactly once per process.
type Snapshot struct {
	User    *User
	Loading bool
}

// Authenticated reports whether a user is resolved.
func (s Snapshot) Authenticated() bool {
	return s.User != nil
}
