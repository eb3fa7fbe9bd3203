// Package repository persists workspaces and their custom domains.
//
// Two implementations share the same semantics: PostgreSQL (WorkspaceRepository
// and DomainRepository) and MemoryStore for tests and single-process runs.
// Domain names and slugs are unique across all tenants; both are claimed with
// an atomic insert-if-absent so concurrent claims yield exactly one winner.
package repository

import "errors"

var (
	// ErrWorkspaceNotFound is returned when no workspace matches the lookup.
	ErrWorkspaceNotFound = errors.New("workspace not found")
	// ErrDomainNotFound is returned when no domain matches the lookup.
	ErrDomainNotFound = errors.New("domain not found")
	// ErrDuplicateSlug is returned when a slug is held, or was once held, by
	// another workspace.
	ErrDuplicateSlug = errors.New("slug already taken")
	// ErrDuplicateDomain is returned when a domain name is already claimed by
	// any workspace.
	ErrDuplicateDomain = errors.New("domain already claimed")
)
