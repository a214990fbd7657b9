// Package client is a typed HTTP client for the user service API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/dshills/usersvc/users"
)

// APIError is returned for any non-success response. It unwraps to
// users.ErrInvalidInput for 400 and users.ErrNotFound for 404, so callers can
// use the same errors.Is checks against the client as against users.Service.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("usersvc: %d %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusBadRequest:
		return users.ErrInvalidInput
	case http.StatusNotFound:
		return users.ErrNotFound
	default:
		return nil
	}
}

// Client calls a user service at BaseURL.
//
// Example usage:
//
//	c := client.New("http://localhost:8080")
//	u, err := c.Create(ctx, "Ada", "ada@example.com")
//	if errors.Is(err, users.ErrInvalidInput) {
//	    // 400 from the server
//	}
type Client struct {
	baseURL   string
	http      *http.Client
	requestID func(context.Context) string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client. Timeouts are expected to be
// set through the context passed to each call.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// New creates a client for the service rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      &http.Client{},
		requestID: users.RequestIDFrom,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type userBody struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Create calls POST /users.
func (c *Client) Create(ctx context.Context, name, email string) (users.User, error) {
	var u users.User
	err := c.do(ctx, http.MethodPost, "/users", userBody{Name: name, Email: email}, http.StatusCreated, &u)
	return u, err
}

// Get calls GET /users/:id.
func (c *Client) Get(ctx context.Context, id string) (users.User, error) {
	var u users.User
	err := c.do(ctx, http.MethodGet, userPath(id), nil, http.StatusOK, &u)
	return u, err
}

// Update calls PUT /users/:id.
func (c *Client) Update(ctx context.Context, id, name, email string) (users.User, error) {
	var u users.User
	err := c.do(ctx, http.MethodPut, userPath(id), userBody{Name: name, Email: email}, http.StatusOK, &u)
	return u, err
}

// Delete calls DELETE /users/:id.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, userPath(id), nil, http.StatusNoContent, nil)
}

// Healthy reports whether GET /healthz answered 200.
func (c *Client) Healthy(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, http.StatusOK, nil)
}

func userPath(id string) string {
	return "/users/" + url.PathEscape(id)
}

func (c *Client) do(ctx context.Context, method, path string, in interface{}, want int, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if id := c.requestID(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != want {
		return decodeError(resp.StatusCode, respBody)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeError(status int, body []byte) error {
	var payload struct {
		Error string `json:"error"`
	}
	msg := http.StatusText(status)
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		msg = payload.Error
	}
	return &APIError{StatusCode: status, Message: msg}
}

// IsAPIError reports whether err came from a non-success HTTP response and
// returns it.
func IsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	ok := errors.As(err, &apiErr)
	return apiErr, ok
}
