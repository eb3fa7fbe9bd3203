package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/jmerrifield20/tenantedge/internal/domain"
	"github.com/jmerrifield20/tenantedge/internal/tenancy/model"
	"github.com/jmerrifield20/tenantedge/internal/tenancy/repository"
)

// WorkspaceService handles workspace creation and owner-only settings.
type WorkspaceService struct {
	workspaces WorkspaceStore
	domains    DomainStore
	logger     *zap.Logger
}

// NewWorkspaceService creates a WorkspaceService.
func NewWorkspaceService(workspaces WorkspaceStore, domains DomainStore, logger *zap.Logger) *WorkspaceService {
	return &WorkspaceService{workspaces: workspaces, domains: domains, logger: logger}
}

// Create makes a new workspace owned by actor.
func (s *WorkspaceService) Create(ctx context.Context, actor model.Identity, name, slug string) (*model.Workspace, error) {
	name, err := domain.ValidateWorkspaceName(name)
	if err != nil {
		return nil, err
	}
	slug, err = domain.ValidateSlug(slug)
	if err != nil {
		return nil, err
	}

	w := &model.Workspace{
		Slug:       slug,
		Name:       name,
		OwnerID:    actor.ID,
		OwnerEmail: actor.Email,
	}
	if err := s.workspaces.Create(ctx, w); err != nil {
		if errors.Is(err, repository.ErrDuplicateSlug) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("create workspace: %w", err)
	}

	s.logger.Info("workspace created", zap.String("slug", w.Slug), zap.String("owner", actor.ID.String()))
	return w, nil
}

// Get returns a workspace with its domains. Any identity may read it; the
// caller decides what to show based on IsOwner.
func (s *WorkspaceService) Get(ctx context.Context, slug string) (*model.Workspace, error) {
	w, err := s.workspaces.GetBySlug(ctx, slug)
	if err != nil {
		return nil, mapWorkspaceErr(err)
	}
	ds, err := s.domains.ListByWorkspace(ctx, w.ID)
	if err != nil {
		return nil, fmt.Errorf("list domains: %w", err)
	}
	w.Domains = ds
	return w, nil
}

// Rename sets the display name.
func (s *WorkspaceService) Rename(ctx context.Context, actor model.Identity, slug, name string) (*model.Workspace, error) {
	w, err := ownedWorkspace(ctx, s.workspaces, actor, slug)
	if err != nil {
		return nil, err
	}
	name, err = domain.ValidateWorkspaceName(name)
	if err != nil {
		return nil, err
	}
	if err := s.workspaces.UpdateName(ctx, w.ID, name); err != nil {
		return nil, mapWorkspaceErr(err)
	}
	w.Name = name
	return w, nil
}

// ChangeSlug moves the workspace to a new slug in place. The old slug stays
// reserved for this workspace.
func (s *WorkspaceService) ChangeSlug(ctx context.Context, actor model.Identity, slug, newSlug string) (*model.Workspace, error) {
	w, err := ownedWorkspace(ctx, s.workspaces, actor, slug)
	if err != nil {
		return nil, err
	}
	newSlug, err = domain.ValidateSlug(newSlug)
	if err != nil {
		return nil, err
	}
	if newSlug == w.Slug {
		return w, nil
	}
	if err := s.workspaces.UpdateSlug(ctx, w.ID, newSlug); err != nil {
		if errors.Is(err, repository.ErrDuplicateSlug) {
			return nil, ErrConflict
		}
		return nil, mapWorkspaceErr(err)
	}

	s.logger.Info("workspace slug changed", zap.String("from", w.Slug), zap.String("to", newSlug))
	w.Slug = newSlug
	return w, nil
}

// Delete removes the workspace and, by cascade, its domains. It returns the
// removed workspace with the domains it held so callers can drop anything
// cached under those names.
func (s *WorkspaceService) Delete(ctx context.Context, actor model.Identity, slug string) (*model.Workspace, error) {
	w, err := ownedWorkspace(ctx, s.workspaces, actor, slug)
	if err != nil {
		return nil, err
	}
	ds, err := s.domains.ListByWorkspace(ctx, w.ID)
	if err != nil {
		return nil, fmt.Errorf("list domains: %w", err)
	}
	if err := s.workspaces.Delete(ctx, w.ID); err != nil {
		return nil, mapWorkspaceErr(err)
	}
	w.Domains = ds
	s.logger.Info("workspace deleted", zap.String("slug", w.Slug), zap.Int("domains", len(ds)))
	return w, nil
}
