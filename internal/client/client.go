// Package client is the HTTP SDK for the taskmaster API. Client implements
// the remote store and change feed the sync layer works against.
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
	"time"

	"golang.org/x/oauth2"

	"github.com/BuzzLyutic/taskmaster/internal/model"
)

var ErrUnauthorized = errors.New("unauthorized")

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

// Session mirrors the server's sign-in response.
type Session struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	ExpiresIn    int64      `json:"expires_in"`
	TokenType    string     `json:"token_type"`
	User         model.User `json:"user"`
}

func (s Session) Token() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		TokenType:    s.TokenType,
	}
	if s.ExpiresIn > 0 {
		tok.Expiry = time.Now().Add(time.Duration(s.ExpiresIn) * time.Second)
	}
	return tok
}

type Client struct {
	baseURL string
	plain   *http.Client
	authed  *http.Client

	tsCtx context.Context
	ts    oauth2.TokenSource
}

type Option func(*Client)

// WithHTTPClient sets the client used for unauthenticated calls and as the
// base transport for authenticated ones.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.plain = hc }
}

// WithTokenSource authenticates task and profile calls with tokens from ts.
func WithTokenSource(ctx context.Context, ts oauth2.TokenSource) Option {
	return func(c *Client) {
		c.tsCtx = ctx
		c.ts = ts
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		plain:   http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.authed = c.plain
	if c.ts != nil {
		ctx := context.WithValue(c.tsCtx, oauth2.HTTPClient, c.plain)
		c.authed = oauth2.NewClient(ctx, c.ts)
	}
	return c
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) do(ctx context.Context, hc *http.Client, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return unwrapTokenError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(data, &body) != nil {
		body.Error = strings.TrimSpace(string(data))
	}
	return &APIError{StatusCode: resp.StatusCode, Message: body.Error}
}

// unwrapTokenError turns a failed token refresh into ErrUnauthorized so
// callers can tell "sign in again" apart from a network failure.
func unwrapTokenError(err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		return fmt.Errorf("%w: %v", ErrUnauthorized, rerr)
	}
	return err
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (c *Client) SignUp(ctx context.Context, email, password string) (model.User, error) {
	var u model.User
	err := c.do(ctx, c.plain, http.MethodPost, "/auth/signup", credentials{email, password}, &u)
	return u, err
}

func (c *Client) SignIn(ctx context.Context, email, password string) (Session, error) {
	var s Session
	err := c.do(ctx, c.plain, http.MethodPost, "/auth/signin", credentials{email, password}, &s)
	return s, err
}

func (c *Client) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	var s Session
	err := c.do(ctx, c.plain, http.MethodPost, "/auth/refresh", refreshRequest{refreshToken}, &s)
	return s, err
}

func (c *Client) SignOut(ctx context.Context, refreshToken string) error {
	return c.do(ctx, c.plain, http.MethodPost, "/auth/signout", refreshRequest{refreshToken}, nil)
}

func (c *Client) Me(ctx context.Context) (model.User, error) {
	var u model.User
	err := c.do(ctx, c.authed, http.MethodGet, "/auth/me", nil, &u)
	return u, err
}

func (c *Client) Providers(ctx context.Context) ([]string, error) {
	var out struct {
		Providers []string `json:"providers"`
	}
	err := c.do(ctx, c.plain, http.MethodGet, "/auth/providers", nil, &out)
	return out.Providers, err
}

// LoginURL is where a browser starts social sign-in with provider.
func (c *Client) LoginURL(provider string) string {
	return c.baseURL + "/auth/" + url.PathEscape(provider) + "/start"
}
