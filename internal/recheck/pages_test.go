package recheck_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jmerrifield20/tenantedge/internal/dns"
	"github.com/jmerrifield20/tenantedge/internal/recheck"
	"github.com/jmerrifield20/tenantedge/internal/sites"
	"github.com/jmerrifield20/tenantedge/internal/tenancy/model"
	"github.com/jmerrifield20/tenantedge/internal/tenancy/repository"
	"github.com/jmerrifield20/tenantedge/internal/tenancy/service"
)

type flakyDNS struct {
	mu   sync.Mutex
	fail error
}

func (d *flakyDNS) set(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fail = err
}

func (d *flakyDNS) check(context.Context, dns.Target) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fail
}

// A domain that fails a background re-check stops serving its cached page
// right away, without waiting for the freshness window to pass.
func TestCheckAll_failedDomainStopsServing(t *testing.T) {
	const apex = "toolbox.app"
	ctx := context.Background()
	owner := model.Identity{ID: uuid.New(), Email: "owner@acme.com"}

	store := repository.NewMemoryStore()
	ws, ds := store.Workspaces(), store.Domains()
	lookup := &flakyDNS{}
	domains := service.NewDomainService(ws, ds, lookup.check, nil,
		service.DomainConfig{Apex: apex, CheckTimeout: time.Second}, zap.NewNop())
	spaces := service.NewWorkspaceService(ws, ds, zap.NewNop())
	resolver := service.NewResolver(ws, ds, apex)
	pages := sites.NewRegenerator(sites.NewBuilder(resolver, apex), sites.NewMemoryCache(time.Hour),
		sites.Config{Revalidate: time.Hour}, zap.NewNop())

	if _, err := spaces.Create(ctx, owner, "Acme", "acme"); err != nil {
		t.Fatalf("create workspace: %v", err)
	}
	if _, err := domains.Create(ctx, owner, "acme", "acme.com"); err != nil {
		t.Fatalf("create domain: %v", err)
	}
	if res, err := domains.Verify(ctx, owner, "acme", "acme.com"); err != nil || !res.Verified {
		t.Fatalf("verify: %+v, %v", res, err)
	}
	if p, err := pages.Page(ctx, "acme.com"); err != nil || p.Status != http.StatusOK {
		t.Fatalf("verified domain should render: %v, %v", p, err)
	}

	lookup.set(errors.New("no CNAME"))
	sum := recheck.New(domains, pages, recheck.Config{}, zap.NewNop()).CheckAll(ctx)
	if sum[model.StatusFailed] != 1 {
		t.Fatalf("expected the domain to fail re-check, got %v", sum)
	}

	p, err := pages.Page(ctx, "acme.com")
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	if p.Status != http.StatusNotFound {
		t.Errorf("failed domain still serves tenant content: status %d", p.Status)
	}
	if p, _ := pages.Page(ctx, "acme"); p.Status != http.StatusOK {
		t.Errorf("slug page should still render, got %d", p.Status)
	}
}
