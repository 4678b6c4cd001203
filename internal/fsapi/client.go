// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package fsapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

const (
	// DefaultTimeout bounds one request.
	DefaultTimeout = 10 * time.Second

	// DefaultSearchRate is the sustained search rate per second. The picker
	// searches as the user types.
	DefaultSearchRate = 5

	// DefaultSearchBurst is how many searches may run back to back.
	DefaultSearchBurst = 2

	// maxResponseSize caps one decoded response body.
	maxResponseSize = 8 << 20
)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient = &http.Client{Timeout: d}
	}
}

// WithSearchLimit sets the search rate limit. A zero limit disables it.
func WithSearchLimit(perSecond float64, burst int) ClientOption {
	return func(c *Client) {
		if perSecond <= 0 {
			c.searchLimiter = nil
			return
		}
		c.searchLimiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the filesystem REST API. It is safe for concurrent use.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	searchLimiter *rate.Limiter
}

// NewClient creates a client for the API rooted at baseURL
// (e.g. http://localhost:3001).
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		httpClient:    &http.Client{Timeout: DefaultTimeout},
		searchLimiter: rate.NewLimiter(rate.Limit(DefaultSearchRate), DefaultSearchBurst),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// List lists a directory via /api/fs/list.
func (c *Client) List(ctx context.Context, path string) (*DirectoryInfo, error) {
	var info DirectoryInfo
	q := url.Values{"path": {path}}
	if err := c.get(ctx, "/api/fs/list?"+q.Encode(), &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Dir lists a directory via /api/fs/dir/{path}.
func (c *Client) Dir(ctx context.Context, path string) (*DirectoryInfo, error) {
	var info DirectoryInfo
	if err := c.get(ctx, "/api/fs/dir/"+escapePath(path), &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Common returns the well-known starting directories.
func (c *Client) Common(ctx context.Context) ([]Entry, error) {
	var entries []Entry
	if err := c.get(ctx, "/api/fs/common", &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Cwd returns the server's working directory.
func (c *Client) Cwd(ctx context.Context) (string, error) {
	var resp struct {
		Path string `json:"path"`
	}
	if err := c.get(ctx, "/api/fs/cwd", &resp); err != nil {
		return "", err
	}
	return resp.Path, nil
}

// Home returns the server's home directory. ok is false when the server
// has none.
func (c *Client) Home(ctx context.Context) (home string, ok bool, err error) {
	var resp *string
	if err := c.get(ctx, "/api/fs/home", &resp); err != nil {
		return "", false, err
	}
	if resp == nil {
		return "", false, nil
	}
	return *resp, true, nil
}

// Exists reports whether path exists and what kind it is.
func (c *Client) Exists(ctx context.Context, path string) (PathStatus, error) {
	var st PathStatus
	err := c.get(ctx, "/api/fs/exists/"+escapePath(path), &st)
	return st, err
}

// Search finds entries below basePath whose path matches opts.Pattern.
// Calls are rate limited; Search blocks until the limiter admits it or ctx
// ends.
func (c *Client) Search(ctx context.Context, basePath string, opts SearchOptions) (*SearchResult, error) {
	if c.searchLimiter != nil {
		if err := c.searchLimiter.Wait(ctx); err != nil {
			return nil, &ClientError{Type: ErrTypeTimeout, Message: "search rate limit", Cause: err}
		}
	}
	q := url.Values{
		"base_path":      {basePath},
		"pattern":        {opts.Pattern},
		"recursive":      {strconv.FormatBool(opts.recursive())},
		"include_hidden": {strconv.FormatBool(opts.IncludeHidden)},
		"max_depth":      {strconv.Itoa(opts.maxDepth())},
		"max_results":    {strconv.Itoa(opts.maxResults())},
	}
	var res SearchResult
	if err := c.get(ctx, "/api/fs/search?"+q.Encode(), &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// =============================================================================
// TRANSPORT
// =============================================================================

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return &ClientError{Type: ErrTypeTimeout, Message: "request timed out", Cause: err}
		}
		return &ClientError{Type: ErrTypeConnection, Message: "filesystem API unreachable", Cause: err}
	}
	defer drainAndClose(resp.Body)

	body := io.LimitReader(resp.Body, maxResponseSize)
	if resp.StatusCode != http.StatusOK {
		return decodeError(resp.StatusCode, body)
	}
	if err := json.NewDecoder(body).Decode(out); err != nil {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode response", Cause: err}
	}
	return nil
}

func decodeError(status int, body io.Reader) error {
	var eb errorBody
	if err := json.NewDecoder(body).Decode(&eb); err != nil || eb.Code == "" {
		return &ClientError{
			Type:    ErrTypeInvalidResponse,
			Message: "unexpected status " + strconv.Itoa(status) + " " + http.StatusText(status),
		}
	}
	t := errorTypeForCode(eb.Code)
	msg := eb.Error
	if msg == "" {
		msg = eb.Code
	}
	return &ClientError{Type: t, Message: msg}
}

// escapePath turns an absolute filesystem path into URL path segments.
func escapePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	parts := strings.Split(strings.TrimPrefix(p, "/"), "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

func isTimeout(err error) bool {
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}

func drainAndClose(r io.ReadCloser) {
	io.Copy(io.Discard, io.LimitReader(r, maxResponseSize))
	r.Close()
}
