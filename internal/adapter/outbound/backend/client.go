// Package backend talks to the marketplace REST API: token issuance,
// registration, identity checks and logout.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/vitrina-app/vitrina/internal/domain/session"
)

// DefaultTimeout bounds every backend call.
const DefaultTimeout = 10 * time.Second

// maxBodySize caps how much of a response body is read.
const maxBodySize = 1 << 20

// Endpoints are the backend paths, relative to the base URL.
type Endpoints struct {
	Token    string
	Register string
	Identity string
	Logout   string
}

// DefaultEndpoints returns the standard API paths.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Token:    "/api/token/",
		Register: "/api/register/",
		Identity: "/api/auth/check/",
		Logout:   "/api/logout/",
	}
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client. The caller is then responsible for
// its transport; no authorizer is installed.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithEndpoints overrides the API paths. Empty fields keep their default.
func WithEndpoints(e Endpoints) Option {
	return func(c *Client) {
		if e.Token != "" {
			c.endpoints.Token = e.Token
		}
		if e.Register != "" {
			c.endpoints.Register = e.Register
		}
		if e.Identity != "" {
			c.endpoints.Identity = e.Identity
		}
		if e.Logout != "" {
			c.endpoints.Logout = e.Logout
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithTokenSource sets where the default transport reads the access token
// from for requests that do not carry one explicitly.
func WithTokenSource(src TokenSource) Option {
	return func(c *Client) {
		c.source = src
	}
}

// WithBaseTransport sets the transport below the authorizer.
func WithBaseTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.base = rt
	}
}

// Client is the backend API client. It implements session.Backend.
type Client struct {
	baseURL    string
	endpoints  Endpoints
	timeout    time.Duration
	source     TokenSource
	base       http.RoundTripper
	httpClient *http.Client
	logger     *slog.Logger
}

var _ session.Backend = (*Client)(nil)

// NewClient creates a client for the API at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		endpoints: DefaultEndpoints(),
		timeout:   DefaultTimeout,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{
			Timeout:   c.timeout,
			Transport: NewTransport(c.source, c.base),
		}
	}
	return c
}

// BaseURL returns the API root without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// HTTPClient returns the client used for backend calls. Requests sent through
// it are authorized with the current access token.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

type tokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// ObtainToken exchanges credentials for a token pair. A response without a
// usable access token yields a Session with an empty AccessToken.
func (c *Client) ObtainToken(ctx context.Context, username, password string) (session.Session, error) {
	resp, err := c.do(WithoutAuthorization(ctx), http.MethodPost, c.endpoints.Token, "", tokenRequest{
		Username: username,
		Password: password,
	})
	if err != nil {
		return session.Session{}, fmt.Errorf("token request failed: %w", err)
	}
	if !resp.ok() {
		return session.Session{}, resp.authError()
	}
	sess, err := decodeTokenPair(resp.body)
	if err != nil {
		c.logger.Debug("unreadable token response", "status", resp.status, "error", err)
		return session.Session{}, &session.AuthError{Status: resp.status, Message: session.MsgNoValidToken, Payload: resp.raw()}
	}
	return sess, nil
}

type registerRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Password2 string `json:"password2"`
}

// Register creates an account. Field errors come back as
// *session.ValidationError.
func (c *Client) Register(ctx context.Context, r session.Registration) error {
	resp, err := c.do(WithoutAuthorization(ctx), http.MethodPost, c.endpoints.Register, "", registerRequest{
		Username:  r.Username,
		Email:     r.Email,
		Password:  r.Password,
		Password2: r.Password,
	})
	if err != nil {
		return fmt.Errorf("registration request failed: %w", err)
	}
	if resp.ok() {
		return nil
	}
	if resp.status == http.StatusBadRequest {
		if fields := fieldErrors(resp.body); len(fields) > 0 {
			return &session.ValidationError{Status: resp.status, Fields: fields, Payload: resp.raw()}
		}
	}
	return resp.authError()
}

// Identity asks the backend who accessToken belongs to.
func (c *Client) Identity(ctx context.Context, accessToken string) (session.Claims, error) {
	resp, err := c.do(ctx, http.MethodGet, c.endpoints.Identity, accessToken, nil)
	if err != nil {
		return session.Claims{}, &session.TransientIdentityError{Cause: err}
	}
	switch {
	case resp.status == http.StatusUnauthorized, resp.status == http.StatusForbidden:
		return session.Claims{}, session.ErrUnauthorized
	case resp.status >= 500:
		return session.Claims{}, &session.TransientIdentityError{Status: resp.status}
	case !resp.ok():
		return session.Claims{}, fmt.Errorf("%w: identity check returned HTTP %d", session.ErrUnauthorized, resp.status)
	}

	var body identityResponse
	if len(bytes.TrimSpace(resp.body)) > 0 {
		if err := json.Unmarshal(resp.body, &body); err != nil {
			return session.Claims{}, &session.TransientIdentityError{
				Status: resp.status,
				Cause:  fmt.Errorf("failed to decode identity response: %w", err),
			}
		}
	}
	return body.claims(), nil
}

type logoutRequest struct {
	Refresh string `json:"refresh"`
}

// Logout invalidates the session server-side.
func (c *Client) Logout(ctx context.Context, sess session.Session) error {
	resp, err := c.do(ctx, http.MethodPost, c.endpoints.Logout, sess.AccessToken, logoutRequest{Refresh: sess.RefreshToken})
	if err != nil {
		return fmt.Errorf("logout request failed: %w", err)
	}
	if !resp.ok() {
		return fmt.Errorf("logout returned HTTP %d", resp.status)
	}
	return nil
}

type response struct {
	status int
	body   []byte
}

func (r *response) ok() bool {
	return r.status >= 200 && r.status < 300
}

func (r *response) raw() json.RawMessage {
	if json.Valid(r.body) {
		return json.RawMessage(r.body)
	}
	return nil
}

func (r *response) authError() *session.AuthError {
	return &session.AuthError{
		Status:  r.status,
		Message: errorMessage(r.body),
		Payload: r.raw(),
	}
}

// do sends a JSON request. bearer, when set, is sent as the Authorization
// header instead of the token source's.
func (c *Client) do(ctx context.Context, method, path, bearer string, body any) (*response, error) {
	url := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		httpReq.Header.Set("Authorization", "Bearer "+bearer)
	}

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	c.logger.Debug("backend call",
		"method", method,
		"path", path,
		"status", httpResp.StatusCode,
		"duration", time.Since(start),
	)
	return &response{status: httpResp.StatusCode, body: respBody}, nil
}

// IsConnectionError reports whether err is a transport failure rather than
// an answer from the backend.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	var authErr *session.AuthError
	var vErr *session.ValidationError
	if errors.As(err, &authErr) || errors.As(err, &vErr) {
		return false
	}
	var tErr *session.TransientIdentityError
	if errors.As(err, &tErr) {
		return tErr.Status == 0
	}
	return !errors.Is(err, session.ErrUnauthorized)
}
