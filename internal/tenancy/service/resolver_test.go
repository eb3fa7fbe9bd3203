package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jmerrifield20/tenantedge/internal/dns"
	"github.com/jmerrifield20/tenantedge/internal/tenancy/model"
	"github.com/jmerrifield20/tenantedge/internal/tenancy/service"
)

func TestResolveByHostname_subdomain(t *testing.T) {
	f := newFixture(t)
	w := f.workspace(t, f.owner, "acme")

	for _, host := range []string{"acme.toolbox.app", "ACME.toolbox.app", "acme.toolbox.app:443", "acme.toolbox.app."} {
		got, err := f.resolver.ResolveByHostname(context.Background(), host)
		if err != nil {
			t.Errorf("ResolveByHostname(%q): %v", host, err)
			continue
		}
		if got.ID != w.ID {
			t.Errorf("ResolveByHostname(%q): wrong workspace", host)
		}
	}
}

func TestResolveByHostname_notFound(t *testing.T) {
	f := newFixture(t)
	f.workspace(t, f.owner, "acme")

	for _, host := range []string{"", apex, "ghost.toolbox.app", "a.acme.toolbox.app", "unknown.com"} {
		if _, err := f.resolver.ResolveByHostname(context.Background(), host); !errors.Is(err, service.ErrWorkspaceNotFound) {
			t.Errorf("ResolveByHostname(%q): expected ErrWorkspaceNotFound, got %v", host, err)
		}
	}
}

func TestResolveByHostname_neverUnverified(t *testing.T) {
	f := newFixture(t)
	f.workspace(t, f.owner, "acme")
	ctx := context.Background()
	_, _ = f.domains.Create(ctx, f.owner, "acme", "acme.com")

	// PENDING
	if _, err := f.resolver.ResolveByHostname(ctx, "acme.com"); !errors.Is(err, service.ErrWorkspaceNotFound) {
		t.Errorf("PENDING domain resolved: %v", err)
	}

	// FAILED
	f.dns.set(dns.ErrNotPointed)
	_, _ = f.domains.Verify(ctx, f.owner, "acme", "acme.com")
	if _, err := f.resolver.ResolveByHostname(ctx, "acme.com"); !errors.Is(err, service.ErrWorkspaceNotFound) {
		t.Errorf("FAILED domain resolved: %v", err)
	}

	// VERIFIED then reverted
	f.dns.set(nil)
	_, _ = f.domains.Verify(ctx, f.owner, "acme", "acme.com")
	if _, err := f.resolver.ResolveByHostname(ctx, "acme.com"); err != nil {
		t.Errorf("VERIFIED domain did not resolve: %v", err)
	}
	f.dns.set(dns.ErrNotPointed)
	_, _ = f.domains.Verify(ctx, f.owner, "acme", "acme.com")
	if _, err := f.resolver.ResolveByHostname(ctx, "acme.com"); !errors.Is(err, service.ErrWorkspaceNotFound) {
		t.Errorf("reverted domain still resolves: %v", err)
	}
}

func TestResolveSite_keyKinds(t *testing.T) {
	f := newFixture(t)
	w := f.workspace(t, f.owner, "acme")
	ctx := context.Background()
	_, _ = f.domains.Create(ctx, f.owner, "acme", "www.acme.com")
	_, _ = f.domains.Verify(ctx, f.owner, "acme", "www.acme.com")

	for _, key := range []string{"acme", "www.acme.com"} {
		got, err := f.resolver.ResolveSite(ctx, key)
		if err != nil || got.ID != w.ID {
			t.Errorf("ResolveSite(%q) = %v, %v", key, got, err)
		}
	}

	// A verified custom hostname nested under the apex must not resolve to
	// its owner.
	if _, err := f.resolver.ResolveSite(ctx, "www.acme.com."+apex); !errors.Is(err, service.ErrWorkspaceNotFound) {
		t.Errorf("expected nested apex host to be unresolved, got %v", err)
	}
}

// A workspace on the default subdomain needs no domain rows; a custom domain
// resolves only after it has been verified.
func TestScenario_acme(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.workspace(t, f.owner, "acme")

	got, err := f.resolver.ResolveByHostname(ctx, "acme.toolbox.app")
	if err != nil || got.ID != w.ID {
		t.Fatalf("default hostname: %v, %v", got, err)
	}
	if len(got.Domains) != 0 {
		t.Errorf("expected no domains yet, got %d", len(got.Domains))
	}

	d, err := f.domains.Create(ctx, f.owner, "acme", "acme.com")
	if err != nil {
		t.Fatalf("add domain: %v", err)
	}
	if d.Status != model.StatusPending {
		t.Fatalf("status: %s", d.Status)
	}
	if _, err := f.resolver.ResolveByHostname(ctx, "acme.com"); !errors.Is(err, service.ErrWorkspaceNotFound) {
		t.Fatalf("unverified domain resolved: %v", err)
	}

	if _, err := f.domains.Verify(ctx, f.owner, "acme", "acme.com"); err != nil {
		t.Fatalf("verify: %v", err)
	}
	got, err = f.resolver.ResolveByHostname(ctx, "acme.com")
	if err != nil || got.Slug != "acme" {
		t.Fatalf("verified domain: %v, %v", got, err)
	}
	if v := got.VerifiedDomains(); len(v) != 1 || v[0].Name != "acme.com" {
		t.Errorf("cross-links: %+v", v)
	}
}
