package api

import (
	"context"
	"net/http"
)

// Login exchanges credentials for an access token.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*TokenResponse, error) {
	var out TokenResponse
	if err := c.do(ctx, http.MethodPost, "/users/login", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Register creates an account. It does not log in.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*UserRecord, error) {
	var out UserRecord
	if err := c.do(ctx, http.MethodPost, "/users/register", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ResetPassword sets a new password for email.
func (c *Client) ResetPassword(ctx context.Context, req PasswordResetRequest) error {
	return c.do(ctx, http.MethodPost, "/users/reset-password", nil, req, nil)
}
