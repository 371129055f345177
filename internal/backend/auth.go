package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"linker/internal/session/models"
	dErrors "linker/pkg/domain-errors"
)

// SyncRequest carries the role hint for the identity sync exchange. The
// backend is authoritative and may resolve a different role.
type SyncRequest struct {
	RequestedRole string `json:"requested_role"`
	CompanyName   string `json:"company_name,omitempty"`
}

// AuthPayload is the result of an auth exchange: the backend credential and
// the resolved user.
type AuthPayload struct {
	Token string
	User  models.User
}

// flexID accepts the backend's user ID whether it arrives as a JSON number
// (the legacy integer primary key) or a string.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexID(n.String())
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("user id must be a number or string: %w", err)
	}
	*f = flexID(s)
	return nil
}

// userPayload tolerates the backend's wire looseness (numeric IDs, absent
// approval status) before normalization.
type userPayload struct {
	ID              flexID `json:"id"`
	Role            string `json:"role"`
	Name            string `json:"name"`
	Email           string `json:"email"`
	CompanyName     string `json:"company_name"`
	ApprovalStatus  string `json:"approval_status"`
	IsVerifiedBuyer bool   `json:"is_verified_buyer"`
}

func (p userPayload) toUser() (models.User, error) {
	role, err := models.ParseRole(p.Role)
	if err != nil {
		return models.User{}, fmt.Errorf("backend user record: %w", err)
	}
	name := p.Name
	if name == "" {
		name = p.CompanyName
	}
	user := models.User{
		ID:              string(p.ID),
		Role:            role,
		Name:            name,
		Email:           p.Email,
		ApprovalStatus:  models.ApprovalStatus(p.ApprovalStatus),
		IsVerifiedBuyer: p.IsVerifiedBuyer,
	}
	user.Normalize()
	if err := user.Validate(); err != nil {
		return models.User{}, fmt.Errorf("backend user record: %w", err)
	}
	return user, nil
}

// ClerkSync exchanges an identity-provider credential for a backend session.
// The request is signed with the provider credential, never the stored one,
// and a rejection here never tears down an existing session.
func (c *Client) ClerkSync(ctx context.Context, providerCredential string, req SyncRequest) (*AuthPayload, error) {
	resp, err := c.send(ctx, http.MethodPost, "/auth/clerk-sync", req, providerCredential)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := decodeErrorMessage(resp, "identity sync rejected")
		return nil, dErrors.Wrap(models.ErrSyncRejected, dErrors.CodeForbidden, message)
	}

	var payload struct {
		Token string      `json:"token"`
		User  userPayload `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "malformed sync response")
	}
	return buildAuthPayload(payload.Token, payload.User)
}

// Login is the legacy password exchange. It exists only for the admin role
// and bypasses the identity provider entirely.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthPayload, error) {
	body := map[string]string{"email": email, "password": password}
	resp, err := c.send(ctx, http.MethodPost, "/auth/login", body, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := decodeErrorMessage(resp, "invalid email or password")
		return nil, dErrors.Wrap(models.ErrInvalidCredentials, dErrors.CodeUnauthorized, message)
	}

	var payload struct {
		Token string      `json:"token"`
		User  userPayload `json:"user_profile"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "malformed login response")
	}
	return buildAuthPayload(payload.Token, payload.User)
}

// Me fetches the backend's current user for the stored credential. A 401 here
// flows through the standard teardown path in Do.
func (c *Client) Me(ctx context.Context) (*models.User, error) {
	resp, err := c.Get(ctx, "/auth/me")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, dErrors.New(dErrors.CodeInternal, fmt.Sprintf("who-am-i lookup failed with status %d", resp.StatusCode))
	}

	var payload userPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "malformed user record")
	}
	user, err := payload.toUser()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "invalid user record")
	}
	return &user, nil
}

func buildAuthPayload(token string, wire userPayload) (*AuthPayload, error) {
	if token == "" {
		return nil, dErrors.New(dErrors.CodeInternal, "backend returned no credential")
	}
	user, err := wire.toUser()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "invalid user record")
	}
	return &AuthPayload{Token: token, User: user}, nil
}

// decodeErrorMessage extracts the backend's error body ({msg} or {error}),
// falling back when the body is unusable. The message is surfaced verbatim.
func decodeErrorMessage(resp *http.Response, fallback string) string {
	var body struct {
		Msg   string `json:"msg"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fallback
	}
	if body.Msg != "" {
		return body.Msg
	}
	if body.Error != "" {
		return body.Error
	}
	return fallback
}
