package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// User identifies the account the stored credential belongs to.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type tokenResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Client talks to the backend auth endpoints and saves the returned JWT in
// the store.
type Client struct {
	baseURL string
	store   Store
	http    *http.Client
}

// NewClient creates an auth client for the given API base URL.
func NewClient(baseURL string, store Store) *Client {
	return &Client{
		baseURL: baseURL,
		store:   store,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// Login exchanges credentials for a JWT and stores it.
func (c *Client) Login(ctx context.Context, email, password string) (User, error) {
	return c.authenticate(ctx, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
}

// Signup registers a new account and stores the returned JWT.
func (c *Client) Signup(ctx context.Context, name, email, password string) (User, error) {
	return c.authenticate(ctx, "/auth/signup", map[string]string{
		"name":     name,
		"email":    email,
		"password": password,
	})
}

func (c *Client) authenticate(ctx context.Context, path string, body map[string]string) (User, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return User{}, fmt.Errorf("failed to marshal auth request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return User{}, fmt.Errorf("failed to build auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return User{}, fmt.Errorf("auth request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return User{}, fmt.Errorf("auth rejected with status %d: %s", resp.StatusCode, msg)
	}

	var result tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return User{}, fmt.Errorf("failed to decode auth response: %w", err)
	}
	if result.Token == "" {
		return User{}, fmt.Errorf("auth response carried no token")
	}

	if err := c.store.Save(result.Token); err != nil {
		return User{}, err
	}
	return result.User, nil
}
