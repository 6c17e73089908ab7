// Package api is the REST client for the expensedesk backend. It implements
// the view.Backend port over plain JSON/HTTP, carrying the bearer token from
// the persisted session and keeping the expense listing warm in a short TTL
// cache.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"expensedesk/internal/cache"
	"expensedesk/internal/core"
	"expensedesk/internal/session"
)

const (
	defaultTimeout = 10 * time.Second
	listCacheTTL   = 5 * time.Second
	listCacheKey   = "expenses"
)

// Client talks to the expensedesk JSON API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	sessions   *session.Store
	listCache  *cache.LRU[[]core.ExpenseRecord]
}

// NewClient creates a client for the API at baseURL. The session store
// supplies the bearer token and receives the user at login.
func NewClient(baseURL string, sessions *session.Store) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		sessions:   sessions,
		listCache:  cache.NewLRU[[]core.ExpenseRecord](1, listCacheTTL),
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	User  core.SessionUser `json:"user"`
	Token string           `json:"token"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.sessions.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr errorResponse
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s (status %d)", method, path, apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

// Login authenticates and persists the returned user and token to the
// session store, mirroring what the login page writes at sign-in.
func (c *Client) Login(ctx context.Context, username, password string) (core.SessionUser, error) {
	var resp loginResponse
	err := c.do(ctx, http.MethodPost, "/api/auth/login", nil,
		loginRequest{Username: username, Password: password}, &resp)
	if err != nil {
		return core.SessionUser{}, err
	}
	if err := c.sessions.SaveUser(resp.User); err != nil {
		return core.SessionUser{}, fmt.Errorf("persist session user: %w", err)
	}
	if err := c.sessions.SaveToken(resp.Token); err != nil {
		return core.SessionUser{}, fmt.Errorf("persist session token: %w", err)
	}
	return resp.User, nil
}

// ListExpenses implements view.Backend. Responses are cached briefly so
// back-to-back renders do not hammer the listing endpoint.
func (c *Client) ListExpenses(ctx context.Context) ([]core.ExpenseRecord, error) {
	if records, ok := c.listCache.Get(listCacheKey); ok {
		return records, nil
	}
	var records []core.ExpenseRecord
	if err := c.do(ctx, http.MethodGet, "/api/expenses", nil, nil, &records); err != nil {
		return nil, err
	}
	c.listCache.Set(listCacheKey, records)
	return records, nil
}

// ListOrderItemsByDateAndUser implements view.Backend.
func (c *Client) ListOrderItemsByDateAndUser(ctx context.Context, date core.Date, username string) ([]core.OrderItem, error) {
	q := url.Values{}
	q.Set("date", date.String())
	q.Set("user", username)
	var items []core.OrderItem
	if err := c.do(ctx, http.MethodGet, "/api/orders/items", q, nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// DeleteOrdersByDateAndUser implements view.Backend. The list cache is
// invalidated so the follow-up refresh sees the deletion.
func (c *Client) DeleteOrdersByDateAndUser(ctx context.Context, date core.Date, username string) error {
	q := url.Values{}
	q.Set("date", date.String())
	q.Set("user", username)
	if err := c.do(ctx, http.MethodDelete, "/api/orders", q, nil, nil); err != nil {
		return err
	}
	c.listCache.Invalidate(listCacheKey)
	return nil
}

// Logout implements view.Backend. Server-side failures are the caller's to
// log; local session state is not touched here.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil, nil)
	if err != nil {
		slog.DebugContext(ctx, "Remote logout returned error",
			"error", err, "component", "api_client", "operation", "logout")
	}
	c.listCache.Purge()
	return err
}
