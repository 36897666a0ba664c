package gpaapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// ══════════════════════════════════════════════════════════════════════════════
// AUTHENTICATION OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// Register creates a backend account.
func (c *Client) Register(ctx context.Context, req RegisterRequestDTO) (*UserDTO, error) {
	var user UserDTO
	if err := c.doRequest(ctx, http.MethodPost, "/api/auth/register", req, &user); err != nil {
		return nil, fmt.Errorf("register %s: %w", req.Username, err)
	}
	return &user, nil
}

// Login exchanges credentials for a bearer token. The backend expects an
// OAuth2 password form, not JSON. On success the token is stored and used
// for every following request.
func (c *Client) Login(ctx context.Context, username, password string) (*TokenDTO, error) {
	form := url.Values{}
	form.Set("username", strings.TrimSpace(username))
	form.Set("password", password)

	var token TokenDTO
	if err := c.doRequest(ctx, http.MethodPost, "/api/auth/login", form, &token); err != nil {
		return nil, fmt.Errorf("login %s: %w", username, err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("login %s: empty access token", username)
	}

	c.tokenMu.Lock()
	c.token = &token
	c.tokenMu.Unlock()

	c.logger.Info("authenticated against gpa backend", "username", username)
	return &token, nil
}

// Me returns the authenticated user.
func (c *Client) Me(ctx context.Context) (*UserDTO, error) {
	var user UserDTO
	if err := c.doRequest(ctx, http.MethodGet, "/api/auth/me", nil, &user); err != nil {
		return nil, fmt.Errorf("get current user: %w", err)
	}
	return &user, nil
}

// SetToken installs a bearer token obtained elsewhere.
func (c *Client) SetToken(accessToken string) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()
	if accessToken == "" {
		c.token = nil
		return
	}
	c.token = &TokenDTO{AccessToken: accessToken, TokenType: "bearer"}
}

// Token returns the current access token, or "" when signed out.
func (c *Client) Token() string {
	c.tokenMu.RLock()
	defer c.tokenMu.RUnlock()
	if c.token == nil {
		return ""
	}
	return c.token.AccessToken
}

// ClearToken forgets the stored token. The client calls it on every 401.
func (c *Client) ClearToken() {
	c.tokenMu.Lock()
	c.token = nil
	c.tokenMu.Unlock()
}

// IsAuthenticated reports whether a token is stored.
func (c *Client) IsAuthenticated() bool {
	return c.Token() != ""
}
