package model

import (
	"time"

	"github.com/google/uuid"
)

// Workspace is a tenant. Its slug forms the default subdomain slug.<apex>.
type Workspace struct {
	ID         uuid.UUID `json:"id"`
	Slug       string    `json:"slug"`
	Name       string    `json:"name"`
	OwnerID    uuid.UUID `json:"owner_id"`
	OwnerEmail string    `json:"owner_email,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	// Domains is populated by the resolver; it is not a stored column.
	Domains []Domain `json:"domains,omitempty"`
}

// Identity is the acting user as supplied by the session layer.
type Identity struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
}

// IsOwner reports whether id administers the workspace.
func (w *Workspace) IsOwner(id Identity) bool {
	return w != nil && id.ID != uuid.Nil && w.OwnerID == id.ID
}

// Hostname returns the workspace's default subdomain under apex.
func (w *Workspace) Hostname(apex string) string {
	return w.Slug + "." + apex
}

// VerifiedDomains returns the subset of Domains that may serve tenant content.
func (w *Workspace) VerifiedDomains() []Domain {
	var out []Domain
	for _, d := range w.Domains {
		if d.Status == StatusVerified {
			out = append(out, d)
		}
	}
	return out
}
