package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jmerrifield20/tenantedge/internal/tenancy/model"
)

// MemoryStore is an in-memory, thread-safe workspace and domain store.
// It mirrors the PostgreSQL constraints: unique domain names, slugs that are
// never reassigned, and cascade deletion of a workspace's domains.
type MemoryStore struct {
	mu         sync.RWMutex
	workspaces map[uuid.UUID]*model.Workspace
	slugs      map[string]uuid.UUID // every slug ever held
	domains    map[uuid.UUID]*model.Domain
	names      map[string]uuid.UUID
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		workspaces: make(map[uuid.UUID]*model.Workspace),
		slugs:      make(map[string]uuid.UUID),
		domains:    make(map[uuid.UUID]*model.Domain),
		names:      make(map[string]uuid.UUID),
	}
}

// Workspaces returns a view of the store satisfying the workspace store
// interface. Method names overlap with the domain view, hence two views.
func (s *MemoryStore) Workspaces() *MemoryWorkspaces { return &MemoryWorkspaces{s} }

// Domains returns a view of the store satisfying the domain store interface.
func (s *MemoryStore) Domains() *MemoryDomains { return &MemoryDomains{s} }

// MemoryWorkspaces is the workspace half of a MemoryStore.
type MemoryWorkspaces struct{ s *MemoryStore }

// Create implements the workspace store.
func (m *MemoryWorkspaces) Create(_ context.Context, w *model.Workspace) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	if _, taken := m.s.slugs[w.Slug]; taken {
		return ErrDuplicateSlug
	}
	w.ID = uuid.New()
	now := time.Now().UTC()
	w.CreatedAt = now
	w.UpdatedAt = now

	cp := *w
	cp.Domains = nil
	m.s.workspaces[w.ID] = &cp
	m.s.slugs[w.Slug] = w.ID
	return nil
}

// GetByID implements the workspace store.
func (m *MemoryWorkspaces) GetByID(_ context.Context, id uuid.UUID) (*model.Workspace, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	w, ok := m.s.workspaces[id]
	if !ok {
		return nil, ErrWorkspaceNotFound
	}
	cp := *w
	return &cp, nil
}

// GetBySlug implements the workspace store.
func (m *MemoryWorkspaces) GetBySlug(_ context.Context, slug string) (*model.Workspace, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	id, ok := m.s.slugs[slug]
	if !ok {
		return nil, ErrWorkspaceNotFound
	}
	w, ok := m.s.workspaces[id]
	if !ok || w.Slug != slug {
		return nil, ErrWorkspaceNotFound
	}
	cp := *w
	return &cp, nil
}

// UpdateName implements the workspace store.
func (m *MemoryWorkspaces) UpdateName(_ context.Context, id uuid.UUID, name string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	w, ok := m.s.workspaces[id]
	if !ok {
		return ErrWorkspaceNotFound
	}
	w.Name = name
	w.UpdatedAt = time.Now().UTC()
	return nil
}

// UpdateSlug implements the workspace store.
func (m *MemoryWorkspaces) UpdateSlug(_ context.Context, id uuid.UUID, slug string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	w, ok := m.s.workspaces[id]
	if !ok {
		return ErrWorkspaceNotFound
	}
	if holder, taken := m.s.slugs[slug]; taken && holder != id {
		return ErrDuplicateSlug
	}
	m.s.slugs[slug] = id
	w.Slug = slug
	w.UpdatedAt = time.Now().UTC()
	return nil
}

// ListSlugs implements the workspace store.
func (m *MemoryWorkspaces) ListSlugs(_ context.Context) ([]string, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	ws := make([]*model.Workspace, 0, len(m.s.workspaces))
	for _, w := range m.s.workspaces {
		ws = append(ws, w)
	}
	sort.Slice(ws, func(i, j int) bool { return ws[i].CreatedAt.Before(ws[j].CreatedAt) })
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = w.Slug
	}
	return out, nil
}

// Delete implements the workspace store. Domains owned by the workspace are
// removed with it; its slugs stay reserved.
func (m *MemoryWorkspaces) Delete(_ context.Context, id uuid.UUID) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.workspaces[id]; !ok {
		return ErrWorkspaceNotFound
	}
	delete(m.s.workspaces, id)
	for did, d := range m.s.domains {
		if d.WorkspaceID == id {
			delete(m.s.names, d.Name)
			delete(m.s.domains, did)
		}
	}
	return nil
}

// MemoryDomains is the domain half of a MemoryStore.
type MemoryDomains struct{ s *MemoryStore }

// Create implements the domain store as a single check-and-insert under the
// store lock.
func (m *MemoryDomains) Create(_ context.Context, d *model.Domain) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	if _, ok := m.s.workspaces[d.WorkspaceID]; !ok {
		return ErrWorkspaceNotFound
	}
	if _, taken := m.s.names[d.Name]; taken {
		return ErrDuplicateDomain
	}
	d.ID = uuid.New()
	d.Status = model.StatusPending
	d.CreatedAt = time.Now().UTC()
	d.LastCheckedAt = nil
	d.VerifiedAt = nil

	cp := *d
	m.s.domains[d.ID] = &cp
	m.s.names[d.Name] = d.ID
	return nil
}

// GetByID implements the domain store.
func (m *MemoryDomains) GetByID(_ context.Context, id uuid.UUID) (*model.Domain, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	d, ok := m.s.domains[id]
	if !ok {
		return nil, ErrDomainNotFound
	}
	return copyDomain(d), nil
}

// GetByName implements the domain store.
func (m *MemoryDomains) GetByName(_ context.Context, name string) (*model.Domain, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	id, ok := m.s.names[name]
	if !ok {
		return nil, ErrDomainNotFound
	}
	return copyDomain(m.s.domains[id]), nil
}

// FindVerified implements the domain store.
func (m *MemoryDomains) FindVerified(ctx context.Context, name string) (*model.Domain, error) {
	d, err := m.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if d.Status != model.StatusVerified {
		return nil, ErrDomainNotFound
	}
	return d, nil
}

// ListByWorkspace implements the domain store.
func (m *MemoryDomains) ListByWorkspace(_ context.Context, workspaceID uuid.UUID) ([]model.Domain, error) {
	return m.collect(func(d *model.Domain) bool { return d.WorkspaceID == workspaceID }), nil
}

// List implements the domain store.
func (m *MemoryDomains) List(_ context.Context) ([]model.Domain, error) {
	return m.collect(func(*model.Domain) bool { return true }), nil
}

func (m *MemoryDomains) collect(keep func(*model.Domain) bool) []model.Domain {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	var out []model.Domain
	for _, d := range m.s.domains {
		if keep(d) {
			out = append(out, *copyDomain(d))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Name < out[j].Name
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// UpdateStatus implements the domain store.
func (m *MemoryDomains) UpdateStatus(_ context.Context, d *model.Domain) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	cur, ok := m.s.domains[d.ID]
	if !ok {
		return ErrDomainNotFound
	}
	cur.Status = d.Status
	cur.LastCheckedAt = copyTime(d.LastCheckedAt)
	cur.VerifiedAt = copyTime(d.VerifiedAt)
	return nil
}

// Delete implements the domain store.
func (m *MemoryDomains) Delete(_ context.Context, id uuid.UUID) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	d, ok := m.s.domains[id]
	if !ok {
		return ErrDomainNotFound
	}
	delete(m.s.names, d.Name)
	delete(m.s.domains, id)
	return nil
}

func copyDomain(d *model.Domain) *model.Domain {
	cp := *d
	cp.LastCheckedAt = copyTime(d.LastCheckedAt)
	cp.VerifiedAt = copyTime(d.VerifiedAt)
	return &cp
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
