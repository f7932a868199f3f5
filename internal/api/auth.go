package api

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"gwi.com/assistant-console/internal/store"
)

type LoginResult struct {
	User        *store.User
	AccessToken string
}

type loginResponse struct {
	AccessToken string   `json:"access_token"`
	TokenType   string   `json:"token_type"`
	User        wireUser `json:"user"`
}

// Me asks the backend who owns the current session cookie.
func (c *Client) Me(ctx context.Context) (*store.User, error) {
	var w wireUser
	err := c.do(ctx, request{method: http.MethodGet, path: "/auth/me", op: "Failed to check session"}, &w)
	if err != nil {
		return nil, err
	}
	return w.toUser(), nil
}

// Login submits form-encoded credentials. The backend sets the session
// cookie and also returns the access token.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	form := url.Values{}
	form.Set("username", email)
	form.Set("password", password)

	var resp loginResponse
	err := c.do(ctx, request{
		method:          http.MethodPost,
		path:            "/auth/login",
		body:            strings.NewReader(form.Encode()),
		ctype:           "application/x-www-form-urlencoded",
		op:              "Login failed",
		useDetail:       true,
		credentialCheck: true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &LoginResult{User: resp.User.toUser(), AccessToken: resp.AccessToken}, nil
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
	Region   string `json:"region"`
}

func (c *Client) Register(ctx context.Context, req RegisterRequest) (*store.User, error) {
	body, err := jsonBody(req)
	if err != nil {
		return nil, err
	}
	var w wireUser
	err = c.do(ctx, request{
		method:    http.MethodPost,
		path:      "/auth/register",
		body:      body,
		op:        "Registration failed",
		useDetail: true,
	}, &w)
	if err != nil {
		return nil, err
	}
	return w.toUser(), nil
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, request{method: http.MethodPost, path: "/auth/logout", op: "Failed to logout"}, nil)
}

// ProfileUpdate is a partial profile; empty fields are left unchanged.
type ProfileUpdate struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Region   string `json:"region,omitempty"`
}

func (p ProfileUpdate) Empty() bool {
	return p.Username == "" && p.Email == "" && p.Region == ""
}

func (c *Client) UpdateProfile(ctx context.Context, update ProfileUpdate) (*store.User, error) {
	if update.Empty() {
		return nil, &ValidationError{Field: "profile", Message: "Nothing to update"}
	}
	body, err := jsonBody(update)
	if err != nil {
		return nil, err
	}
	var w wireUser
	err = c.do(ctx, request{method: http.MethodPatch, path: "/users/profile", body: body, op: "Failed to update profile", useDetail: true}, &w)
	if err != nil {
		return nil, err
	}
	return w.toUser(), nil
}
