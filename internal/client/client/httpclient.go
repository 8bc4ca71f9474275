package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/estately/internal/common"
)

const apiPrefix = "/api/auth"

type HTTPClient struct {
	baseURL string
	http    *http.Client
	store   SessionStore

	mu      sync.Mutex
	session Session

	// serializes refreshes so a burst of 401s spends one refresh token
	refreshMu sync.Mutex

	persona string
}

type Option func(*HTTPClient)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(h *HTTPClient) { h.http = c }
}

// WithPersona sends the X-Active-Persona header on every request.
func WithPersona(persona string) Option {
	return func(h *HTTPClient) { h.persona = persona }
}

// NewHTTPClient loads the saved session from store and returns a client
// for the server at baseURL.
func NewHTTPClient(baseURL string, store SessionStore, opts ...Option) (*HTTPClient, error) {
	c := &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		store:   store,
	}
	for _, o := range opts {
		o(c)
	}

	s, err := store.Load()
	if err != nil {
		return nil, err
	}
	c.session = *s
	return c, nil
}

// Session returns a copy of the current tokens.
func (c *HTTPClient) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *HTTPClient) setSession(s Session) error {
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
	return c.store.Save(&s)
}

func (c *HTTPClient) clearSession() error {
	c.mu.Lock()
	c.session = Session{}
	c.mu.Unlock()
	return c.store.Clear()
}

type tokenResponse struct {
	User        *User  `json:"user"`
	AccessToken string `json:"accessToken"`
}

type errorResponse struct {
	Message string       `json:"message"`
	Errors  []FieldError `json:"errors"`
}

// do sends one request. A non-2xx status becomes *APIError; transport
// failures wrap ErrUnavailable.
func (c *HTTPClient) do(ctx context.Context, method, path, token string, in, out any) (*http.Response, error) {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if c.persona != "" {
		req.Header.Set(common.ActivePersonaHeaderName, c.persona)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var er errorResponse
		if err := json.NewDecoder(resp.Body).Decode(&er); err == nil {
			apiErr.Message = er.Message
			apiErr.Fields = er.Errors
		}
		return resp, apiErr
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp, nil
}

// refreshCookie picks the rotated refresh token out of Set-Cookie.
func refreshCookie(resp *http.Response) string {
	for _, ck := range resp.Cookies() {
		if ck.Name == common.RefreshTokenCookieName {
			return ck.Value
		}
	}
	return ""
}

func (c *HTTPClient) startSession(ctx context.Context, method, path, token string, in any) (*User, error) {
	var out tokenResponse
	resp, err := c.do(ctx, method, path, token, in, &out)
	if err != nil {
		return nil, err
	}

	s := Session{AccessToken: out.AccessToken, RefreshToken: refreshCookie(resp)}
	if out.User != nil {
		s.Email = out.User.Email
	}
	if err := c.setSession(s); err != nil {
		return nil, err
	}
	return out.User, nil
}

func (c *HTTPClient) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	return c.startSession(ctx, http.MethodPost, apiPrefix+"/register", "", req)
}

func (c *HTTPClient) Login(ctx context.Context, email, password string) (*User, error) {
	return c.startSession(ctx, http.MethodPost, apiPrefix+"/login", "", map[string]string{
		"email":    email,
		"password": password,
	})
}

// Refresh exchanges the stored refresh token for a new pair. A rejected
// refresh token clears the local session and returns ErrReauthenticate.
func (c *HTTPClient) Refresh(ctx context.Context) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()
	return c.refreshLocked(ctx)
}

func (c *HTTPClient) refreshLocked(ctx context.Context) error {
	cur := c.Session()
	if cur.RefreshToken == "" {
		return ErrNotLoggedIn
	}

	var out tokenResponse
	resp, err := c.do(ctx, http.MethodPost, apiPrefix+"/refresh", "", map[string]string{
		"refreshToken": cur.RefreshToken,
	}, &out)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			if cerr := c.clearSession(); cerr != nil {
				return cerr
			}
			return ErrReauthenticate
		}
		return err
	}

	next := cur
	next.AccessToken = out.AccessToken
	if rt := refreshCookie(resp); rt != "" {
		next.RefreshToken = rt
	}
	return c.setSession(next)
}

// authorized runs an authenticated call. On 401 it refreshes once, unless
// another goroutine already did, and retries once.
func (c *HTTPClient) authorized(ctx context.Context, method, path string, in, out any) (*http.Response, error) {
	token := c.Session().AccessToken
	if token == "" && c.Session().RefreshToken == "" {
		return nil, ErrNotLoggedIn
	}

	resp, err := c.do(ctx, method, path, token, in, out)
	if !errors.Is(err, ErrUnauthorized) {
		return resp, err
	}

	c.refreshMu.Lock()
	if c.Session().AccessToken == token {
		if err := c.refreshLocked(ctx); err != nil {
			c.refreshMu.Unlock()
			return nil, err
		}
	}
	c.refreshMu.Unlock()

	resp, err = c.do(ctx, method, path, c.Session().AccessToken, in, out)
	if errors.Is(err, ErrUnauthorized) {
		if cerr := c.clearSession(); cerr != nil {
			return nil, cerr
		}
		return nil, ErrReauthenticate
	}
	return resp, err
}

func (c *HTTPClient) Me(ctx context.Context) (*User, error) {
	var u User
	if _, err := c.authorized(ctx, http.MethodGet, apiPrefix+"/user", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Status never refreshes; an expired token simply reads as anonymous.
func (c *HTTPClient) Status(ctx context.Context) (*Status, error) {
	var st Status
	if _, err := c.do(ctx, http.MethodGet, apiPrefix+"/status", c.Session().AccessToken, nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// ChangeRole switches between buyer and seller and adopts the new tokens.
func (c *HTTPClient) ChangeRole(ctx context.Context, role string) (*User, error) {
	var out tokenResponse
	resp, err := c.authorized(ctx, http.MethodPut, apiPrefix+"/user/role", map[string]string{"role": role}, &out)
	if err != nil {
		return nil, err
	}

	next := c.Session()
	next.AccessToken = out.AccessToken
	if rt := refreshCookie(resp); rt != "" {
		next.RefreshToken = rt
	}
	if err := c.setSession(next); err != nil {
		return nil, err
	}
	return out.User, nil
}

// Logout ends the server session. Local tokens are dropped even when the
// server cannot be reached.
func (c *HTTPClient) Logout(ctx context.Context) error {
	_, err := c.authorized(ctx, http.MethodPost, apiPrefix+"/logout", nil, nil)
	if cerr := c.clearSession(); cerr != nil && err == nil {
		err = cerr
	}
	if errors.Is(err, ErrReauthenticate) {
		return nil
	}
	return err
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/healthz", "", nil, nil)
	return err
}
