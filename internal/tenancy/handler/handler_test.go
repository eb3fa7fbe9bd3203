package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jmerrifield20/tenantedge/internal/dns"
	"github.com/jmerrifield20/tenantedge/internal/identity"
	"github.com/jmerrifield20/tenantedge/internal/tenancy/handler"
	"github.com/jmerrifield20/tenantedge/internal/tenancy/model"
	"github.com/jmerrifield20/tenantedge/internal/tenancy/repository"
	"github.com/jmerrifield20/tenantedge/internal/tenancy/service"
)

const apex = "toolbox.app"

func init() {
	gin.SetMode(gin.TestMode)
}

// ── Stubs ──────────────────────────────────────────────────────────────────

type stubCheck struct {
	mu  sync.Mutex
	err error
}

func (s *stubCheck) set(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *stubCheck) check(context.Context, dns.Target) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

type recordingPages struct {
	mu   sync.Mutex
	keys []string
}

func (r *recordingPages) Invalidate(_ context.Context, keys ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, keys...)
}

func (r *recordingPages) has(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range r.keys {
		if k == key {
			return true
		}
	}
	return false
}

// ── Fixture ────────────────────────────────────────────────────────────────

type fixture struct {
	router *gin.Engine
	tokens *identity.TokenIssuer
	check  *stubCheck
	pages  *recordingPages
	owner  string
	other  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tokens, err := identity.NewTokenIssuer("0123456789abcdef0123456789abcdef", "tenantedge-test", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	f := &fixture{tokens: tokens, check: &stubCheck{}, pages: &recordingPages{}}
	f.owner = f.token(t, "owner@acme.com")
	f.other = f.token(t, "mallory@evil.com")

	store := repository.NewMemoryStore()
	ws, ds := store.Workspaces(), store.Domains()
	domains := service.NewDomainService(ws, ds, f.check.check, nil,
		service.DomainConfig{Apex: apex, CheckTimeout: time.Second}, zap.NewNop())
	spaces := service.NewWorkspaceService(ws, ds, zap.NewNop())

	f.router = gin.New()
	api := f.router.Group("/api")
	handler.NewWorkspaceHandler(spaces, tokens, f.pages, apex, zap.NewNop()).Register(api)
	handler.NewDomainHandler(domains, tokens, f.pages, zap.NewNop()).Register(api)
	return f
}

func (f *fixture) token(t *testing.T, email string) string {
	t.Helper()
	tok, err := f.tokens.Issue(model.Identity{ID: uuid.New(), Email: email})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return tok
}

func (f *fixture) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) createWorkspace(t *testing.T) {
	t.Helper()
	w := f.do(http.MethodPost, "/api/workspace", f.owner, map[string]string{"name": "Acme", "slug": "acme"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create workspace: %d %s", w.Code, w.Body.String())
	}
}

type envelope struct {
	Data   json.RawMessage                 `json:"data"`
	Errors map[string]struct{ Msg string } `json:"errors"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var e envelope
	if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return e
}

type domainJSON struct {
	Name              string     `json:"name"`
	Status            string     `json:"status"`
	VerificationToken string     `json:"verification_token"`
	VerifiedAt        *time.Time `json:"verified_at"`
	DNS               struct {
		CNAMEHost   string `json:"cname_host"`
		CNAMETarget string `json:"cname_target"`
		TXTHost     string `json:"txt_host"`
		TXTValue    string `json:"txt_value"`
	} `json:"dns"`
}

// ── Tests ──────────────────────────────────────────────────────────────────

func TestAddDomain_Created(t *testing.T) {
	f := newFixture(t)
	f.createWorkspace(t)

	w := f.do(http.MethodPost, "/api/workspace/acme/domain", f.owner, map[string]string{"domainName": "WWW.Acme.com"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var d domainJSON
	if err := json.Unmarshal(decode(t, w).Data, &d); err != nil {
		t.Fatal(err)
	}
	if d.Name != "www.acme.com" || d.Status != "PENDING" {
		t.Errorf("unexpected domain: %+v", d)
	}
	if d.DNS.CNAMEHost != "www.acme.com" || d.DNS.CNAMETarget != "acme."+apex {
		t.Errorf("unexpected dns instructions: %+v", d.DNS)
	}
	if d.DNS.TXTHost != "_toolbox-challenge.www.acme.com" || d.DNS.TXTValue == "" {
		t.Errorf("unexpected txt instructions: %+v", d.DNS)
	}
}

func TestAddDomain_Errors(t *testing.T) {
	f := newFixture(t)
	f.createWorkspace(t)
	if w := f.do(http.MethodPost, "/api/workspace/acme/domain", f.owner, map[string]string{"domainName": "www.acme.com"}); w.Code != http.StatusCreated {
		t.Fatalf("seed domain: %d", w.Code)
	}

	tests := []struct {
		name   string
		token  string
		slug   string
		body   any
		status int
		field  string
	}{
		{"no session", "", "acme", map[string]string{"domainName": "a.com"}, http.StatusUnauthorized, "session"},
		{"not owner", f.other, "acme", map[string]string{"domainName": "a.com"}, http.StatusForbidden, "workspace"},
		{"unknown workspace", f.owner, "nope", map[string]string{"domainName": "a.com"}, http.StatusNotFound, "workspace"},
		{"missing name", f.owner, "acme", map[string]string{}, http.StatusBadRequest, "domainName"},
		{"malformed", f.owner, "acme", map[string]string{"domainName": "not a domain"}, http.StatusBadRequest, "domainName"},
		{"apex subdomain", f.owner, "acme", map[string]string{"domainName": "evil." + apex}, http.StatusBadRequest, "domainName"},
		{"duplicate", f.owner, "acme", map[string]string{"domainName": "WWW.ACME.COM"}, http.StatusConflict, "domainName"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := f.do(http.MethodPost, "/api/workspace/"+tc.slug+"/domain", tc.token, tc.body)
			if w.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, w.Code, w.Body.String())
			}
			if _, ok := decode(t, w).Errors[tc.field]; !ok {
				t.Errorf("expected error keyed by %q, got %s", tc.field, w.Body.String())
			}
		})
	}
}

func TestVerifyDomain_RoundTrip(t *testing.T) {
	f := newFixture(t)
	f.createWorkspace(t)
	f.do(http.MethodPost, "/api/workspace/acme/domain", f.owner, map[string]string{"domainName": "www.acme.com"})

	f.check.set(errors.New("no CNAME or TXT record found"))
	w := f.do(http.MethodPut, "/api/workspace/acme/domain", f.owner, map[string]string{"domainName": "www.acme.com"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 on failed check, got %d: %s", w.Code, w.Body.String())
	}
	var res struct {
		Domain   domainJSON `json:"domain"`
		Verified bool       `json:"verified"`
		Reason   string     `json:"reason"`
	}
	_ = json.Unmarshal(decode(t, w).Data, &res)
	if res.Verified || res.Domain.Status != "FAILED" || res.Reason == "" {
		t.Errorf("expected FAILED with reason, got %+v", res)
	}

	f.check.set(nil)
	w = f.do(http.MethodPut, "/api/workspace/acme/domain", f.owner, map[string]string{"domainName": "www.acme.com"})
	_ = json.Unmarshal(decode(t, w).Data, &res)
	if !res.Verified || res.Domain.Status != "VERIFIED" || res.Domain.VerifiedAt == nil {
		t.Errorf("expected VERIFIED, got %+v", res)
	}
	if !f.pages.has("www.acme.com") || !f.pages.has("acme") {
		t.Errorf("expected page invalidation for domain and slug, got %v", f.pages.keys)
	}
}

func TestCheckDomain(t *testing.T) {
	f := newFixture(t)
	f.createWorkspace(t)
	f.do(http.MethodPost, "/api/workspace/acme/domain", f.owner, map[string]string{"domainName": "www.acme.com"})

	if w := f.do(http.MethodGet, "/api/domains/check", f.owner, nil); w.Code != http.StatusBadRequest {
		t.Errorf("missing query: expected 400, got %d", w.Code)
	}
	if w := f.do(http.MethodGet, "/api/domains/check?domain=www.acme.com", f.other, nil); w.Code != http.StatusForbidden {
		t.Errorf("non-owner: expected 403, got %d", w.Code)
	}
	if w := f.do(http.MethodGet, "/api/domains/check?domain=missing.com", f.owner, nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown domain: expected 404, got %d", w.Code)
	}
	w := f.do(http.MethodGet, "/api/domains/check?domain=www.acme.com", f.owner, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestListAndRemoveDomain(t *testing.T) {
	f := newFixture(t)
	f.createWorkspace(t)
	for _, n := range []string{"a.acme.com", "b.acme.com"} {
		f.do(http.MethodPost, "/api/workspace/acme/domain", f.owner, map[string]string{"domainName": n})
	}

	w := f.do(http.MethodGet, "/api/workspace/acme/domain", f.owner, nil)
	var list []domainJSON
	_ = json.Unmarshal(decode(t, w).Data, &list)
	if len(list) != 2 {
		t.Fatalf("expected 2 domains, got %d", len(list))
	}

	// DELETE falls back to the query string when there is no body.
	w = f.do(http.MethodDelete, "/api/workspace/acme/domain?domainName=a.acme.com", f.owner, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("remove: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if w := f.do(http.MethodDelete, "/api/workspace/acme/domain", f.owner, map[string]string{"domainName": "a.acme.com"}); w.Code != http.StatusNotFound {
		t.Errorf("second remove: expected 404, got %d", w.Code)
	}

	w = f.do(http.MethodGet, "/api/workspace/acme/domain", f.owner, nil)
	_ = json.Unmarshal(decode(t, w).Data, &list)
	if len(list) != 1 || list[0].Name != "b.acme.com" {
		t.Errorf("unexpected list after remove: %+v", list)
	}
}

func TestGetWorkspace_OwnerView(t *testing.T) {
	f := newFixture(t)
	f.createWorkspace(t)
	f.do(http.MethodPost, "/api/workspace/acme/domain", f.owner, map[string]string{"domainName": "www.acme.com"})

	type view struct {
		Slug     string       `json:"slug"`
		Hostname string       `json:"hostname"`
		IsOwner  bool         `json:"isOwner"`
		Domains  []domainJSON `json:"domains"`
	}

	var v view
	_ = json.Unmarshal(decode(t, f.do(http.MethodGet, "/api/workspace/acme", f.owner, nil)).Data, &v)
	if !v.IsOwner || v.Hostname != "acme."+apex || len(v.Domains) != 1 {
		t.Errorf("owner view: %+v", v)
	}

	// Anonymous readers see only verified domains.
	_ = json.Unmarshal(decode(t, f.do(http.MethodGet, "/api/workspace/acme", "", nil)).Data, &v)
	if v.IsOwner || len(v.Domains) != 0 {
		t.Errorf("anonymous view: %+v", v)
	}

	if w := f.do(http.MethodGet, "/api/workspace/nope", "", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown workspace: expected 404, got %d", w.Code)
	}
}

func TestWorkspaceSettings(t *testing.T) {
	f := newFixture(t)
	f.createWorkspace(t)

	if w := f.do(http.MethodPost, "/api/workspace", f.other, map[string]string{"name": "Other", "slug": "acme"}); w.Code != http.StatusConflict {
		t.Errorf("duplicate slug: expected 409, got %d", w.Code)
	}
	if w := f.do(http.MethodPut, "/api/workspace/acme/name", f.other, map[string]string{"name": "Pwned"}); w.Code != http.StatusForbidden {
		t.Errorf("rename by non-owner: expected 403, got %d", w.Code)
	}
	if w := f.do(http.MethodPut, "/api/workspace/acme/name", f.owner, map[string]string{"name": ""}); w.Code != http.StatusBadRequest {
		t.Errorf("empty name: expected 400, got %d", w.Code)
	}

	w := f.do(http.MethodPut, "/api/workspace/acme/slug", f.owner, map[string]string{"slug": "acme-co"})
	if w.Code != http.StatusOK {
		t.Fatalf("change slug: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var out struct {
		Slug string `json:"slug"`
	}
	_ = json.Unmarshal(decode(t, w).Data, &out)
	if out.Slug != "acme-co" {
		t.Errorf("expected new slug acme-co, got %q", out.Slug)
	}
	if !f.pages.has("acme") || !f.pages.has("acme-co") {
		t.Errorf("expected both slugs invalidated, got %v", f.pages.keys)
	}

	if w := f.do(http.MethodPost, "/api/workspace/acme-co/domain", f.owner, map[string]string{"domainName": "www.acme.com"}); w.Code != http.StatusCreated {
		t.Fatalf("add domain: expected 201, got %d", w.Code)
	}
	f.pages.mu.Lock()
	f.pages.keys = nil
	f.pages.mu.Unlock()

	if w := f.do(http.MethodDelete, "/api/workspace/acme-co", f.owner, nil); w.Code != http.StatusOK {
		t.Errorf("delete: expected 200, got %d", w.Code)
	}
	if !f.pages.has("acme-co") || !f.pages.has("www.acme.com") {
		t.Errorf("expected slug and domain pages invalidated on delete, got %v", f.pages.keys)
	}
	if w := f.do(http.MethodGet, "/api/workspace/acme-co", "", nil); w.Code != http.StatusNotFound {
		t.Errorf("after delete: expected 404, got %d", w.Code)
	}
}
