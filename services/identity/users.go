package identity

import (
	"context"
	"fmt"
	"net/http"
)

// Metadata is the role/onboarding state mirrored to the provider. The local
// store stays authoritative; this is advisory data for the provider's
// session tokens and dashboards.
type Metadata struct {
	Role               string `json:"role,omitempty"`
	OnboardingComplete *bool  `json:"onboarding_complete,omitempty"`
	Name               string `json:"name,omitempty"`
	Email              string `json:"email,omitempty"`
}

type createUserRequest struct {
	Email     string   `json:"email"`
	Password  string   `json:"password"`
	FirstName string   `json:"first_name"`
	LastName  string   `json:"last_name"`
	Metadata  Metadata `json:"metadata"`
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// CreateUser provisions a user at the identity provider and returns the
// provider-assigned user id. Returns ErrConflict if the email is already
// registered upstream.
func (c *Client) CreateUser(ctx context.Context, email, password, firstName, lastName string, meta Metadata) (string, error) {
	req := createUserRequest{
		Email:     email,
		Password:  password,
		FirstName: firstName,
		LastName:  lastName,
		Metadata:  meta,
	}

	var resp userResponse
	if err := c.doRequest(ctx, http.MethodPost, "/v1/users", req, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", &ProviderError{Message: "provider returned empty user id"}
	}
	return resp.ID, nil
}

// DeleteUser removes a user from the identity provider. Returns ErrNotFound
// when no such user exists (already deleted upstream).
func (c *Client) DeleteUser(ctx context.Context, id string) error {
	return c.doRequest(ctx, http.MethodDelete, fmt.Sprintf("/v1/users/%s", id), nil, nil)
}

// UpdateUser replaces the provider-side metadata for a user.
func (c *Client) UpdateUser(ctx context.Context, id string, meta Metadata) error {
	return c.doRequest(ctx, http.MethodPatch, fmt.Sprintf("/v1/users/%s", id), meta, nil)
}
