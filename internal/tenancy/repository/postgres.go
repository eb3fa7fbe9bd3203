package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jmerrifield20/tenantedge/internal/tenancy/model"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

func isPgCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

// ── Workspaces ─────────────────────────────────────────────────────────────

// WorkspaceRepository provides PostgreSQL persistence for workspaces.
type WorkspaceRepository struct {
	db *pgxpool.Pool
}

// NewWorkspaceRepository creates a new WorkspaceRepository.
func NewWorkspaceRepository(db *pgxpool.Pool) *WorkspaceRepository {
	return &WorkspaceRepository{db: db}
}

const workspaceColumns = `id, slug, name, owner_id, owner_email, created_at, updated_at`

// Create inserts a workspace and records its slug in the slug history.
// Sets ID, CreatedAt and UpdatedAt.
func (r *WorkspaceRepository) Create(ctx context.Context, w *model.Workspace) error {
	w.ID = uuid.New()
	now := time.Now().UTC()
	w.CreatedAt = now
	w.UpdatedAt = now

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tag, err := tx.Exec(ctx,
		`INSERT INTO workspace_slugs (slug, workspace_id) VALUES ($1, $2)
		 ON CONFLICT (slug) DO NOTHING`, w.Slug, w.ID)
	if err != nil {
		return fmt.Errorf("claim slug: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicateSlug
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO workspaces (`+workspaceColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		w.ID, w.Slug, w.Name, w.OwnerID, w.OwnerEmail, w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		if isPgCode(err, pgUniqueViolation) {
			return ErrDuplicateSlug
		}
		return fmt.Errorf("insert workspace: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit workspace: %w", err)
	}
	return nil
}

// GetByID returns a workspace by its UUID.
func (r *WorkspaceRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Workspace, error) {
	return r.scanOne(ctx, `SELECT `+workspaceColumns+` FROM workspaces WHERE id = $1`, id)
}

// GetBySlug returns a workspace by its current slug.
func (r *WorkspaceRepository) GetBySlug(ctx context.Context, slug string) (*model.Workspace, error) {
	return r.scanOne(ctx, `SELECT `+workspaceColumns+` FROM workspaces WHERE slug = $1`, slug)
}

func (r *WorkspaceRepository) scanOne(ctx context.Context, q string, arg any) (*model.Workspace, error) {
	w := &model.Workspace{}
	err := r.db.QueryRow(ctx, q, arg).Scan(
		&w.ID, &w.Slug, &w.Name, &w.OwnerID, &w.OwnerEmail, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWorkspaceNotFound
		}
		return nil, fmt.Errorf("get workspace: %w", err)
	}
	return w, nil
}

// UpdateName sets the display name.
func (r *WorkspaceRepository) UpdateName(ctx context.Context, id uuid.UUID, name string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE workspaces SET name = $1, updated_at = now() WHERE id = $2`, name, id)
	if err != nil {
		return fmt.Errorf("update workspace name: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrWorkspaceNotFound
	}
	return nil
}

// UpdateSlug changes the slug of an existing workspace in place. A workspace
// may take back any slug it held before; slugs held by others are refused.
func (r *WorkspaceRepository) UpdateSlug(ctx context.Context, id uuid.UUID, slug string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tag, err := tx.Exec(ctx,
		`INSERT INTO workspace_slugs (slug, workspace_id) VALUES ($1, $2)
		 ON CONFLICT (slug) DO UPDATE SET claimed_at = now()
		 WHERE workspace_slugs.workspace_id = EXCLUDED.workspace_id`, slug, id)
	if err != nil {
		return fmt.Errorf("claim slug: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicateSlug
	}

	tag, err = tx.Exec(ctx,
		`UPDATE workspaces SET slug = $1, updated_at = now() WHERE id = $2`, slug, id)
	if err != nil {
		if isPgCode(err, pgUniqueViolation) {
			return ErrDuplicateSlug
		}
		return fmt.Errorf("update workspace slug: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrWorkspaceNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit slug: %w", err)
	}
	return nil
}

// ListSlugs returns the current slug of every workspace.
func (r *WorkspaceRepository) ListSlugs(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT slug FROM workspaces ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list slugs: %w", err)
	}
	defer rows.Close()

	var slugs []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan slug: %w", err)
		}
		slugs = append(slugs, s)
	}
	return slugs, rows.Err()
}

// Delete removes a workspace. Its domains are removed by ON DELETE CASCADE;
// its slug history is kept.
func (r *WorkspaceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM workspaces WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete workspace: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrWorkspaceNotFound
	}
	return nil
}

// ── Domains ────────────────────────────────────────────────────────────────

// DomainRepository provides PostgreSQL persistence for custom domains.
type DomainRepository struct {
	db *pgxpool.Pool
}

// NewDomainRepository creates a new DomainRepository.
func NewDomainRepository(db *pgxpool.Pool) *DomainRepository {
	return &DomainRepository{db: db}
}

const domainColumns = `id, name, workspace_id, status, verification_token, created_at, last_checked_at, verified_at`

// Create inserts d in PENDING state unless its name is already present
// anywhere, in which case ErrDuplicateDomain is returned. Sets ID, Status and
// CreatedAt.
func (r *DomainRepository) Create(ctx context.Context, d *model.Domain) error {
	d.ID = uuid.New()
	d.Status = model.StatusPending
	d.CreatedAt = time.Now().UTC()
	d.LastCheckedAt = nil
	d.VerifiedAt = nil

	tag, err := r.db.Exec(ctx,
		`INSERT INTO domains (id, name, workspace_id, status, verification_token, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (name) DO NOTHING`,
		d.ID, d.Name, d.WorkspaceID, d.Status, d.VerificationToken, d.CreatedAt,
	)
	if err != nil {
		if isPgCode(err, pgForeignKeyViolation) {
			return ErrWorkspaceNotFound
		}
		return fmt.Errorf("insert domain: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicateDomain
	}
	return nil
}

// GetByID returns a domain by its UUID.
func (r *DomainRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Domain, error) {
	return scanDomain(r.db.QueryRow(ctx, `SELECT `+domainColumns+` FROM domains WHERE id = $1`, id))
}

// GetByName returns a domain by name regardless of status.
func (r *DomainRepository) GetByName(ctx context.Context, name string) (*model.Domain, error) {
	return scanDomain(r.db.QueryRow(ctx, `SELECT `+domainColumns+` FROM domains WHERE name = $1`, name))
}

// FindVerified returns the domain named name only if it is VERIFIED.
func (r *DomainRepository) FindVerified(ctx context.Context, name string) (*model.Domain, error) {
	return scanDomain(r.db.QueryRow(ctx,
		`SELECT `+domainColumns+` FROM domains WHERE name = $1 AND status = 'VERIFIED'`, name))
}

// ListByWorkspace returns all domains of a workspace, oldest first.
func (r *DomainRepository) ListByWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]model.Domain, error) {
	return r.list(ctx,
		`SELECT `+domainColumns+` FROM domains WHERE workspace_id = $1 ORDER BY created_at, name`, workspaceID)
}

// List returns every domain in the store.
func (r *DomainRepository) List(ctx context.Context) ([]model.Domain, error) {
	return r.list(ctx, `SELECT `+domainColumns+` FROM domains ORDER BY created_at`)
}

func (r *DomainRepository) list(ctx context.Context, q string, args ...any) ([]model.Domain, error) {
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list domains: %w", err)
	}
	defer rows.Close()

	var out []model.Domain
	for rows.Next() {
		d, err := scanDomain(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// UpdateStatus persists d's Status, LastCheckedAt and VerifiedAt.
func (r *DomainRepository) UpdateStatus(ctx context.Context, d *model.Domain) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE domains SET status = $1, last_checked_at = $2, verified_at = $3 WHERE id = $4`,
		d.Status, d.LastCheckedAt, d.VerifiedAt, d.ID,
	)
	if err != nil {
		return fmt.Errorf("update domain status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDomainNotFound
	}
	return nil
}

// Delete removes a domain regardless of its status.
func (r *DomainRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM domains WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete domain: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDomainNotFound
	}
	return nil
}

func scanDomain(row pgx.Row) (*model.Domain, error) {
	d := &model.Domain{}
	var status string
	err := row.Scan(&d.ID, &d.Name, &d.WorkspaceID, &status, &d.VerificationToken,
		&d.CreatedAt, &d.LastCheckedAt, &d.VerifiedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDomainNotFound
		}
		return nil, fmt.Errorf("scan domain: %w", err)
	}
	d.Status = model.DomainStatus(status)
	return d, nil
}
