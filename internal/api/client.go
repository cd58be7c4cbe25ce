// Package api is the REST transport to the finance backend. It attaches the
// bearer credential, decodes structured errors, and reports unauthorized
// responses to the installed Authenticator.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RequestIDHeader carries a per-call identifier for log correlation.
const RequestIDHeader = "X-Request-ID"

// ErrUnauthorized matches any Error with status 401.
var ErrUnauthorized = errors.New("unauthorized")

// Authenticator supplies the bearer token and receives 401 notifications for
// authenticated calls, along with the token the rejected call carried.
type Authenticator interface {
	AccessToken() string
	Unauthorized(path, token string)
}

// Client talks to the backend REST API.
type Client struct {
	baseURL string
	http    *http.Client
	jar     *PersistentJar
	timeout time.Duration

	mu   sync.RWMutex
	auth Authenticator
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Its Jar is replaced by
// the client's own jar.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		clone := *hc
		c.http = &clone
	}
}

// WithTimeout sets an overall per-request timeout, whatever HTTP client ends
// up installed. Zero keeps that client's own timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithCookieJar installs a cookie jar, typically one backed by persisted
// storage.
func WithCookieJar(jar *PersistentJar) Option {
	return func(c *Client) {
		c.jar = jar
	}
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSuffix(baseURL, "/")
	if baseURL == "" {
		return nil, errors.New("api: base URL is required")
	}

	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 {
		c.http.Timeout = c.timeout
	}

	if c.jar == nil {
		jar, err := NewPersistentJar(context.Background(), baseURL, nil)
		if err != nil {
			return nil, err
		}
		c.jar = jar
	}
	c.http.Jar = c.jar

	return c, nil
}

// BaseURL returns the backend root URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetAuthenticator installs the token source and 401 handler.
func (c *Client) SetAuthenticator(a Authenticator) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.auth = a
}

func (c *Client) authenticator() Authenticator {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.auth
}

// ClearCookies drops every cookie held for the backend, in memory and in
// storage.
func (c *Client) ClearCookies(ctx context.Context) error {
	return c.jar.Clear(ctx)
}

// FieldDetail is a field-level validation error reported by the backend.
type FieldDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
}

// Error is a non-2xx response from the backend. Message is the backend's
// own text, verbatim.
type Error struct {
	StatusCode int
	Message    string
	Details    []FieldDetail
	Method     string
	Path       string
	RequestID  string
}

func (e *Error) Error() string {
	return e.Message
}

// Is reports whether target is ErrUnauthorized and the status is 401.
func (e *Error) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

// IsUnauthorized reports whether err is a 401 from the backend.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// StatusCode returns the HTTP status carried by err, or 0 for transport
// failures.
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

type errorBody struct {
	Error   string        `json:"error"`
	Message string        `json:"message"`
	Details []FieldDetail `json:"details"`
}

func decodeError(status int, data []byte) *Error {
	apiErr := &Error{StatusCode: status}

	var body errorBody
	if err := json.Unmarshal(data, &body); err == nil {
		apiErr.Details = body.Details
		switch {
		case body.Error != "":
			apiErr.Message = body.Error
		case body.Message != "":
			apiErr.Message = body.Message
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}

// do performs one JSON request. Authenticated calls carry the bearer token
// when one is held, and a 401 on them is reported to the Authenticator
// before the error is returned.
func (c *Client) do(ctx context.Context, method, path string, authenticated bool, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	requestID := uuid.NewString()
	req.Header.Set(RequestIDHeader, requestID)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	var token string
	auth := c.authenticator()
	if authenticated && auth != nil {
		if token = auth.AccessToken(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		log.Printf("[API] %s %s failed (request %s): %v", method, path, requestID, err)
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s %s: %w", method, path, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := decodeError(resp.StatusCode, data)
		apiErr.Method = method
		apiErr.Path = path
		apiErr.RequestID = requestID
		log.Printf("[API] %s %s -> %d (request %s): %s", method, path, resp.StatusCode, requestID, apiErr.Message)

		if resp.StatusCode == http.StatusUnauthorized && authenticated && auth != nil {
			auth.Unauthorized(path, token)
		}
		return apiErr
	}

	if out != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return nil
}
