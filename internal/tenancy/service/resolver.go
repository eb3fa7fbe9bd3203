package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jmerrifield20/tenantedge/internal/domain"
	"github.com/jmerrifield20/tenantedge/internal/tenancy/model"
	"github.com/jmerrifield20/tenantedge/internal/tenancy/repository"
)

// Resolver maps a slug or an inbound hostname to the owning workspace.
// It only reads from the stores.
type Resolver struct {
	workspaces WorkspaceStore
	domains    DomainStore
	apex       string
}

// NewResolver creates a Resolver. apex is the platform host, e.g.
// "toolbox.app"; a port, if present, is ignored.
func NewResolver(workspaces WorkspaceStore, domains DomainStore, apex string) *Resolver {
	return &Resolver{
		workspaces: workspaces,
		domains:    domains,
		apex:       domain.Normalize(hostOnly(apex)),
	}
}

// Apex returns the normalized platform host.
func (r *Resolver) Apex() string { return r.apex }

// ResolveBySlug returns the workspace with the given slug and its domains.
func (r *Resolver) ResolveBySlug(ctx context.Context, slug string) (*model.Workspace, error) {
	w, err := r.workspaces.GetBySlug(ctx, strings.ToLower(slug))
	if err != nil {
		return nil, mapWorkspaceErr(err)
	}
	return r.withDomains(ctx, w)
}

// ResolveByHostname returns the workspace serving hostname: either the one
// whose slug.<apex> equals hostname, or the owner of a VERIFIED custom domain
// named hostname. PENDING and FAILED domains never resolve.
func (r *Resolver) ResolveByHostname(ctx context.Context, hostname string) (*model.Workspace, error) {
	host := domain.Normalize(hostOnly(hostname))
	if host == "" || host == r.apex {
		return nil, ErrWorkspaceNotFound
	}

	if r.apex != "" && strings.HasSuffix(host, "."+r.apex) {
		slug := strings.TrimSuffix(host, "."+r.apex)
		if strings.Contains(slug, ".") {
			return nil, ErrWorkspaceNotFound
		}
		return r.ResolveBySlug(ctx, slug)
	}

	d, err := r.domains.FindVerified(ctx, host)
	if err != nil {
		if errors.Is(err, repository.ErrDomainNotFound) {
			return nil, ErrWorkspaceNotFound
		}
		return nil, fmt.Errorf("find verified domain: %w", err)
	}
	w, err := r.workspaces.GetByID(ctx, d.WorkspaceID)
	if err != nil {
		return nil, mapWorkspaceErr(err)
	}
	return r.withDomains(ctx, w)
}

// ResolveSite resolves a tenant key produced by the hostname router. Keys
// containing a dot are custom hostnames; anything else is a slug.
func (r *Resolver) ResolveSite(ctx context.Context, key string) (*model.Workspace, error) {
	if strings.Contains(key, ".") {
		return r.ResolveByHostname(ctx, key)
	}
	return r.ResolveBySlug(ctx, key)
}

// ListSlugs returns every workspace slug, used to prebuild tenant pages.
func (r *Resolver) ListSlugs(ctx context.Context) ([]string, error) {
	return r.workspaces.ListSlugs(ctx)
}

func (r *Resolver) withDomains(ctx context.Context, w *model.Workspace) (*model.Workspace, error) {
	ds, err := r.domains.ListByWorkspace(ctx, w.ID)
	if err != nil {
		return nil, fmt.Errorf("list domains: %w", err)
	}
	w.Domains = ds
	return w, nil
}

func hostOnly(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}
