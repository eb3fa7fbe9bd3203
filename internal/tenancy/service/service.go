// Package service implements workspace resolution and the custom domain
// lifecycle on top of the repository stores.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/jmerrifield20/tenantedge/internal/tenancy/model"
	"github.com/jmerrifield20/tenantedge/internal/tenancy/repository"
)

var (
	// ErrWorkspaceNotFound is returned when no workspace matches a slug,
	// hostname or id.
	ErrWorkspaceNotFound = errors.New("workspace not found")
	// ErrDomainNotFound is returned when the domain does not exist or is not
	// attached to the addressed workspace.
	ErrDomainNotFound = errors.New("domain not found")
	// ErrConflict is returned when a domain name or slug is already claimed.
	ErrConflict = errors.New("already claimed")
	// ErrUnauthorized is returned when the acting identity does not own the
	// workspace it is trying to change.
	ErrUnauthorized = errors.New("not the workspace owner")
)

// WorkspaceStore is the storage interface for workspaces.
// *repository.WorkspaceRepository and *repository.MemoryWorkspaces satisfy it.
type WorkspaceStore interface {
	Create(ctx context.Context, w *model.Workspace) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Workspace, error)
	GetBySlug(ctx context.Context, slug string) (*model.Workspace, error)
	UpdateName(ctx context.Context, id uuid.UUID, name string) error
	UpdateSlug(ctx context.Context, id uuid.UUID, slug string) error
	ListSlugs(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// DomainStore is the storage interface for custom domains.
// *repository.DomainRepository and *repository.MemoryDomains satisfy it.
type DomainStore interface {
	Create(ctx context.Context, d *model.Domain) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Domain, error)
	GetByName(ctx context.Context, name string) (*model.Domain, error)
	FindVerified(ctx context.Context, name string) (*model.Domain, error)
	ListByWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]model.Domain, error)
	List(ctx context.Context) ([]model.Domain, error)
	UpdateStatus(ctx context.Context, d *model.Domain) error
	Delete(ctx context.Context, id uuid.UUID) error
}

func mapWorkspaceErr(err error) error {
	if errors.Is(err, repository.ErrWorkspaceNotFound) {
		return ErrWorkspaceNotFound
	}
	return fmt.Errorf("get workspace: %w", err)
}

func mapDomainErr(err error) error {
	if errors.Is(err, repository.ErrDomainNotFound) {
		return ErrDomainNotFound
	}
	return fmt.Errorf("get domain: %w", err)
}

// ownedWorkspace loads the workspace by slug and checks that actor owns it.
func ownedWorkspace(ctx context.Context, store WorkspaceStore, actor model.Identity, slug string) (*model.Workspace, error) {
	w, err := store.GetBySlug(ctx, slug)
	if err != nil {
		return nil, mapWorkspaceErr(err)
	}
	if !w.IsOwner(actor) {
		return nil, ErrUnauthorized
	}
	return w, nil
}
