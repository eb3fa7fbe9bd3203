// Package client is the Go SDK for the workspace and custom domain API.
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
	"sort"
	"strings"
	"time"

	"github.com/jmerrifield20/tenantedge/internal/domain"
)

// Sentinel errors matched by APIError.Is.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalid      = errors.New("invalid request")
)

// APIError is a non-2xx response. Fields maps request fields to messages.
type APIError struct {
	StatusCode int
	Fields     map[string]string
}

func (e *APIError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("server error %d", e.StatusCode)
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return fmt.Sprintf("server error %d: %s", e.StatusCode, strings.Join(parts, "; "))
}

// Is lets callers match an APIError with errors.Is.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrForbidden:
		return e.StatusCode == http.StatusForbidden
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrConflict:
		return e.StatusCode == http.StatusConflict
	case ErrInvalid:
		return e.StatusCode == http.StatusBadRequest
	}
	return false
}

// DNSInstructions are the records that make a domain verifiable.
type DNSInstructions struct {
	CNAMEHost   string `json:"cname_host"`
	CNAMETarget string `json:"cname_target"`
	TXTHost     string `json:"txt_host"`
	TXTValue    string `json:"txt_value"`
}

// Domain is a custom domain as returned by the API.
type Domain struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	WorkspaceID       string          `json:"workspace_id"`
	Status            string          `json:"status"`
	VerificationToken string          `json:"verification_token,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	LastCheckedAt     *time.Time      `json:"last_checked_at,omitempty"`
	VerifiedAt        *time.Time      `json:"verified_at,omitempty"`
	DNS               DNSInstructions `json:"dns"`
}

// VerifyResult is the outcome of a verification attempt. A failed DNS
// check is not an error: Verified is false and Reason says why.
type VerifyResult struct {
	Domain   Domain `json:"domain"`
	Verified bool   `json:"verified"`
	Reason   string `json:"reason,omitempty"`
}

// Workspace is a workspace as returned by the API.
type Workspace struct {
	ID       string   `json:"id"`
	Slug     string   `json:"slug"`
	Name     string   `json:"name"`
	Hostname string   `json:"hostname"`
	IsOwner  bool     `json:"isOwner"`
	Domains  []Domain `json:"domains"`
}

// Client talks to the server's /api routes.
type Client struct {
	base        string
	httpClient  *http.Client
	bearerToken string
	apex        string
}

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBearerToken attaches a session token to every request.
func WithBearerToken(token string) Option {
	return func(c *Client) { c.bearerToken = token }
}

// WithApex sets the platform host used by the local domain pre-check, so
// names under it are rejected before a request is made.
func WithApex(apex string) Option {
	return func(c *Client) { c.apex = apex }
}

// New creates a Client for the server at base, e.g. "http://localhost:8080".
func New(base string, opts ...Option) *Client {
	c := &Client{
		base:       strings.TrimRight(base, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ── Domains ──────────────────────────────────────────────────────────────

// AddDomain claims name for the workspace. The name is validated locally
// first; a local failure is returned as *domain.ValidationError.
func (c *Client) AddDomain(ctx context.Context, slug, name string) (*Domain, error) {
	name, err := domain.Validate(name, c.apex)
	if err != nil {
		return nil, err
	}
	var d Domain
	if err := c.call(ctx, http.MethodPost, domainPath(slug), nil, map[string]string{"domainName": name}, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// VerifyDomain runs the DNS check for a domain of the workspace.
func (c *Client) VerifyDomain(ctx context.Context, slug, name string) (*VerifyResult, error) {
	var res VerifyResult
	if err := c.call(ctx, http.MethodPut, domainPath(slug), nil, map[string]string{"domainName": name}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// CheckDomain re-runs verification for a domain addressed by name alone.
func (c *Client) CheckDomain(ctx context.Context, name string) (*VerifyResult, error) {
	var res VerifyResult
	q := url.Values{"domain": {name}}
	if err := c.call(ctx, http.MethodGet, "/api/domains/check", q, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// RemoveDomain deletes a domain of the workspace.
func (c *Client) RemoveDomain(ctx context.Context, slug, name string) error {
	return c.call(ctx, http.MethodDelete, domainPath(slug), nil, map[string]string{"domainName": name}, nil)
}

// ListDomains returns every domain of the workspace.
func (c *Client) ListDomains(ctx context.Context, slug string) ([]Domain, error) {
	var ds []Domain
	if err := c.call(ctx, http.MethodGet, domainPath(slug), nil, nil, &ds); err != nil {
		return nil, err
	}
	return ds, nil
}

// ── Workspaces ───────────────────────────────────────────────────────────

// CreateWorkspace creates a workspace owned by the token's identity.
func (c *Client) CreateWorkspace(ctx context.Context, name, slug string) (*Workspace, error) {
	var w Workspace
	if err := c.call(ctx, http.MethodPost, "/api/workspace", nil, map[string]string{"name": name, "slug": slug}, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

// GetWorkspace returns the workspace identified by slug.
func (c *Client) GetWorkspace(ctx context.Context, slug string) (*Workspace, error) {
	var w Workspace
	if err := c.call(ctx, http.MethodGet, "/api/workspace/"+url.PathEscape(slug), nil, nil, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

// RenameWorkspace sets the display name.
func (c *Client) RenameWorkspace(ctx context.Context, slug, name string) error {
	return c.call(ctx, http.MethodPut, "/api/workspace/"+url.PathEscape(slug)+"/name", nil, map[string]string{"name": name}, nil)
}

// ChangeSlug moves the workspace to newSlug and returns the stored slug.
func (c *Client) ChangeSlug(ctx context.Context, slug, newSlug string) (string, error) {
	var out struct {
		Slug string `json:"slug"`
	}
	if err := c.call(ctx, http.MethodPut, "/api/workspace/"+url.PathEscape(slug)+"/slug", nil, map[string]string{"slug": newSlug}, &out); err != nil {
		return "", err
	}
	return out.Slug, nil
}

func domainPath(slug string) string {
	return "/api/workspace/" + url.PathEscape(slug) + "/domain"
}

// call sends body as JSON and decodes the "data" member of the response
// into out. Non-2xx responses become *APIError.
func (c *Client) call(ctx context.Context, method, path string, query url.Values, body, out any) error {
	target := c.base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var env struct {
		Data   json.RawMessage `json:"data"`
		Errors map[string]struct {
			Msg string `json:"msg"`
		} `json:"errors"`
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil && resp.StatusCode < 300 {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	if resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Fields: map[string]string{}}
		for k, v := range env.Errors {
			apiErr.Fields[k] = v.Msg
		}
		return apiErr
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
	}
	return nil
}
