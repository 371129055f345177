// Package access decides, for a navigation target with a declared policy,
// whether to render or where to redirect. It never errors: every unresolved
// precondition maps to a redirect somewhere valid for the current user.
package access

import (
	"linker/internal/session/models"
)

// Route paths are part of the external contract; links from outside the app
// depend on these exact literals.
const (
	RouteLanding          = "/"
	RouteLogin            = "/login"
	RouteAdminLogin       = "/admin-login"
	RouteApprovalPending  = "/approval-pending"
	RouteAdminHome        = "/admin"
	RouteManufacturerHome = "/manufacturer-dashboard"
	RouteBuyerHome        = "/buyer-dashboard"
	RouteSearch           = "/search"
)

// Policy is the declarative access requirement attached to a navigable view.
type Policy struct {
	// AllowedRoles is the role set admitted to the view. Empty means any
	// authenticated user.
	AllowedRoles []models.Role
	// RequireApproval additionally demands an approved manufacturer. It is
	// evaluated in addition to the role-set check, so a matching-role
	// pending manufacturer is still blocked.
	RequireApproval bool
}

func (p Policy) allows(role models.Role) bool {
	if len(p.AllowedRoles) == 0 {
		return true
	}
	for _, allowed := range p.AllowedRoles {
		if allowed == role {
			return true
		}
	}
	return false
}

// Kind classifies a navigation decision.
type Kind string

const (
	// KindWait: the session restore has not resolved; render a neutral
	// waiting affordance and make no redirect decision.
	KindWait Kind = "wait"
	// KindGrant: render the target.
	KindGrant Kind = "grant"
	// KindRedirect: navigate to RedirectTo instead.
	KindRedirect Kind = "redirect"
)

// Decision is the outcome of evaluating a policy against the session.
type Decision struct {
	Kind       Kind
	RedirectTo string
}

func wait() Decision              { return Decision{Kind: KindWait} }
func grant() Decision             { return Decision{Kind: KindGrant} }
func redirect(to string) Decision { return Decision{Kind: KindRedirect, RedirectTo: to} }

// HomeFor is the route canonically associated with a user's actual role.
func HomeFor(user *models.User) string {
	switch {
	case user == nil:
		return RouteLanding
	case user.Role == models.RoleAdmin:
		return RouteAdminHome
	case user.Role == models.RoleManufacturer && user.ApprovalStatus == models.ApprovalApproved:
		return RouteManufacturerHome
	case user.Role == models.RoleManufacturer:
		return RouteApprovalPending
	default:
		return RouteBuyerHome
	}
}

// Decide evaluates the policy against the current session snapshot.
//
// Order matters: loading gates everything, unauthenticated goes to login,
// a role mismatch goes to the user's own home, and the approval requirement
// is checked even when the role set matched.
func Decide(snap models.Snapshot, policy Policy) Decision {
	if snap.Loading {
		return wait()
	}
	if snap.User == nil {
		return redirect(RouteLogin)
	}

	user := snap.User
	if !policy.allows(user.Role) {
		return redirect(HomeFor(user))
	}
	if policy.RequireApproval && user.Role == models.RoleManufacturer && user.ApprovalStatus != models.ApprovalApproved {
		return redirect(RouteApprovalPending)
	}
	return grant()
}
