package httptransport

import (
	"linker/internal/access"
	"linker/internal/notice"
	"linker/internal/session/models"
	"linker/internal/theme"
)

// SessionResponse is the body for GET /session and the auth mutations.
type SessionResponse struct {
	Loading       bool          `json:"loading"`
	Authenticated bool          `json:"authenticated"`
	User          *UserResponse `json:"user,omitempty"`
	// Next is a navigation hint set by mutations that imply a route change.
	Next string `json:"next,omitempty"`
}

// UserResponse is the wire shape of the signed-in user.
type UserResponse struct {
	ID              string `json:"id"`
	Role            string `json:"role"`
	Name            string `json:"name,omitempty"`
	Email           string `json:"email,omitempty"`
	ApprovalStatus  string `json:"approval_status"`
	IsVerifiedBuyer bool   `json:"is_verified_buyer"`
	Home            string `json:"home"`
}

// ThemeResponse is the body for GET /theme and PUT /theme.
type ThemeResponse struct {
	Theme theme.Theme `json:"theme"`
}

// NoticesResponse is the body for GET /notices.
type NoticesResponse struct {
	Notices []notice.Notice `json:"notices"`
}

// ViewResponse describes a navigable page to the rendering layer.
type ViewResponse struct {
	View  string      `json:"view"`
	Theme theme.Theme `json:"theme"`
}

func fromSnapshot(snap models.Snapshot) SessionResponse {
	resp := SessionResponse{
		Loading:       snap.Loading,
		Authenticated: snap.Authenticated(),
	}
	if snap.User != nil {
		resp.User = &UserResponse{
			ID:              snap.User.ID,
			Role:            string(snap.User.Role),
			Name:            snap.User.Name,
			Email:           snap.User.Email,
			ApprovalStatus:  string(snap.User.ApprovalStatus),
			IsVerifiedBuyer: snap.User.IsVerifiedBuyer,
			Home:            access.HomeFor(snap.User),
		}
	}
	return resp
}
