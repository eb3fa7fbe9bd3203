package identity_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/jmerrifield20/tenantedge/internal/identity"
	"github.com/jmerrifield20/tenantedge/internal/tenancy/model"
)

const secret = "0123456789abcdef0123456789abcdef"

func init() {
	gin.SetMode(gin.TestMode)
}

func newIssuer(t *testing.T, ttl time.Duration) *identity.TokenIssuer {
	t.Helper()
	ti, err := identity.NewTokenIssuer(secret, "https://toolbox.app", ttl)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	return ti
}

func TestNewTokenIssuer_shortSecret(t *testing.T) {
	if _, err := identity.NewTokenIssuer("short", "x", 0); err == nil {
		t.Error("expected error for a short secret")
	}
}

func TestIssueVerify_roundTrip(t *testing.T) {
	ti := newIssuer(t, time.Hour)
	want := model.Identity{ID: uuid.New(), Email: "Owner@Acme.com"}

	tok, err := ti.Issue(want)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	got, err := ti.Verify(tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if got.ID != want.ID || got.Email != "owner@acme.com" {
		t.Errorf("got %+v", got)
	}
}

func TestVerify_rejects(t *testing.T) {
	ti := newIssuer(t, time.Hour)
	tok, _ := ti.Issue(model.Identity{ID: uuid.New()})

	other, _ := identity.NewTokenIssuer("ffffffffffffffffffffffffffffffff", "https://toolbox.app", time.Hour)
	wrongIssuer, _ := identity.NewTokenIssuer(secret, "https://elsewhere", time.Hour)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": uuid.NewString()})
	noneTok, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)

	cases := map[string]func() error{
		"garbage":      func() error { _, err := ti.Verify("not-a-token"); return err },
		"wrong secret": func() error { _, err := other.Verify(tok); return err },
		"wrong issuer": func() error { _, err := wrongIssuer.Verify(tok); return err },
		"alg none":     func() error { _, err := ti.Verify(noneTok); return err },
	}
	for name, fn := range cases {
		if err := fn(); !errors.Is(err, identity.ErrInvalidToken) {
			t.Errorf("%s: expected ErrInvalidToken, got %v", name, err)
		}
	}
}

func TestVerify_expired(t *testing.T) {
	ti := newIssuer(t, time.Millisecond)
	tok, _ := ti.Issue(model.Identity{ID: uuid.New()})
	time.Sleep(1100 * time.Millisecond)
	if _, err := ti.Verify(tok); !errors.Is(err, identity.ErrInvalidToken) {
		t.Errorf("expected expired token to be rejected, got %v", err)
	}
}

func TestRequireSession(t *testing.T) {
	ti := newIssuer(t, time.Hour)
	owner := model.Identity{ID: uuid.New(), Email: "owner@acme.com"}
	tok, _ := ti.Issue(owner)

	r := gin.New()
	r.GET("/me", identity.RequireSession(ti), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": identity.IdentityFromCtx(c).ID})
	})

	cases := []struct {
		name   string
		setup  func(*http.Request)
		status int
	}{
		{"no token", func(*http.Request) {}, http.StatusUnauthorized},
		{"bad token", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, http.StatusUnauthorized},
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+tok) }, http.StatusOK},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: identity.SessionCookie, Value: tok}) }, http.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		tc.setup(req)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != tc.status {
			t.Errorf("%s: got %d, want %d", tc.name, rec.Code, tc.status)
		}
	}
}

func TestOptionalSession(t *testing.T) {
	ti := newIssuer(t, time.Hour)
	r := gin.New()
	r.GET("/x", identity.OptionalSession(ti), func(c *gin.Context) {
		if identity.IdentityFromCtx(c).ID == uuid.Nil {
			c.Status(http.StatusNoContent)
			return
		}
		c.Status(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("anonymous: got %d", rec.Code)
	}
}
