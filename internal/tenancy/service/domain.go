package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jmerrifield20/tenantedge/internal/dns"
	"github.com/jmerrifield20/tenantedge/internal/domain"
	"github.com/jmerrifield20/tenantedge/internal/email"
	"github.com/jmerrifield20/tenantedge/internal/metrics"
	"github.com/jmerrifield20/tenantedge/internal/tenancy/model"
	"github.com/jmerrifield20/tenantedge/internal/tenancy/repository"
)

const defaultCheckTimeout = 10 * time.Second

// CheckFunc performs the DNS check for a domain and returns nil when it
// points at the platform. In production this is (*dns.Resolver).Check; in
// tests it can be stubbed.
type CheckFunc func(ctx context.Context, t dns.Target) error

// DomainConfig carries the platform values a domain must point at.
type DomainConfig struct {
	// Apex is the platform host; domains equal to or under it are refused.
	Apex string
	// CNAMETarget is an optional canonical CNAME target accepted in addition
	// to the workspace's own slug.<apex>.
	CNAMETarget string
	// Addresses are accepted A record values for apex custom domains.
	Addresses []string
	// CheckTimeout bounds one verification attempt. Defaults to 10s.
	CheckTimeout time.Duration
}

// VerifyResult reports the outcome of a verification attempt. A failed
// check is not an error: Verified is false and Reason says why.
type VerifyResult struct {
	Domain   *model.Domain
	Verified bool
	Reason   string
}

// DomainService manages the custom domain lifecycle:
// PENDING on create, VERIFIED or FAILED after each check.
type DomainService struct {
	workspaces WorkspaceStore
	domains    DomainStore
	check      CheckFunc
	notifier   email.Sender
	cfg        DomainConfig
	logger     *zap.Logger
	now        func() time.Time
}

// NewDomainService creates a DomainService. Pass nil for check to use real
// DNS lookups against the system resolvers, and nil for notifier to skip
// owner notifications.
func NewDomainService(workspaces WorkspaceStore, domains DomainStore, check CheckFunc, notifier email.Sender, cfg DomainConfig, logger *zap.Logger) *DomainService {
	if check == nil {
		check = dns.NewResolver(nil, 0).Check
	}
	if cfg.CheckTimeout <= 0 {
		cfg.CheckTimeout = defaultCheckTimeout
	}
	cfg.Apex = domain.Normalize(hostOnly(cfg.Apex))
	cfg.CNAMETarget = domain.Normalize(cfg.CNAMETarget)
	return &DomainService{
		workspaces: workspaces,
		domains:    domains,
		check:      check,
		notifier:   notifier,
		cfg:        cfg,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Create claims name for the workspace identified by slug. The actor must
// own the workspace. The domain starts PENDING.
func (s *DomainService) Create(ctx context.Context, actor model.Identity, slug, name string) (*model.Domain, error) {
	w, err := ownedWorkspace(ctx, s.workspaces, actor, slug)
	if err != nil {
		return nil, err
	}

	normalized, err := domain.Validate(name, s.cfg.Apex)
	if err != nil {
		return nil, err
	}

	token, err := dns.NewToken()
	if err != nil {
		return nil, fmt.Errorf("generate verification token: %w", err)
	}

	d := &model.Domain{
		Name:              normalized,
		WorkspaceID:       w.ID,
		VerificationToken: token,
	}
	if err := s.domains.Create(ctx, d); err != nil {
		if errors.Is(err, repository.ErrDuplicateDomain) {
			return nil, ErrConflict
		}
		if errors.Is(err, repository.ErrWorkspaceNotFound) {
			return nil, ErrWorkspaceNotFound
		}
		return nil, fmt.Errorf("create domain: %w", err)
	}

	s.logger.Info("domain added",
		zap.String("workspace", w.Slug),
		zap.String("domain", d.Name),
	)
	return d, nil
}

// List returns the domains of the workspace identified by slug.
func (s *DomainService) List(ctx context.Context, actor model.Identity, slug string) ([]model.Domain, error) {
	w, err := ownedWorkspace(ctx, s.workspaces, actor, slug)
	if err != nil {
		return nil, err
	}
	ds, err := s.domains.ListByWorkspace(ctx, w.ID)
	if err != nil {
		return nil, fmt.Errorf("list domains: %w", err)
	}
	return ds, nil
}

// Verify runs the DNS check for a domain of the workspace identified by slug
// and records the outcome.
func (s *DomainService) Verify(ctx context.Context, actor model.Identity, slug, name string) (*VerifyResult, error) {
	w, d, err := s.ownedDomain(ctx, actor, slug, name)
	if err != nil {
		return nil, err
	}
	return s.verify(ctx, w, d)
}

// Check re-runs verification for a domain addressed by name alone, as used
// by the refresh action on an already verified domain.
func (s *DomainService) Check(ctx context.Context, actor model.Identity, name string) (*VerifyResult, error) {
	d, err := s.domains.GetByName(ctx, domain.Normalize(name))
	if err != nil {
		return nil, mapDomainErr(err)
	}
	w, err := s.workspaces.GetByID(ctx, d.WorkspaceID)
	if err != nil {
		return nil, mapWorkspaceErr(err)
	}
	if !w.IsOwner(actor) {
		return nil, ErrUnauthorized
	}
	return s.verify(ctx, w, d)
}

// VerifyByID re-checks a domain without an acting identity. It is used by
// the background re-checker.
func (s *DomainService) VerifyByID(ctx context.Context, id uuid.UUID) (*VerifyResult, error) {
	d, err := s.domains.GetByID(ctx, id)
	if err != nil {
		return nil, mapDomainErr(err)
	}
	w, err := s.workspaces.GetByID(ctx, d.WorkspaceID)
	if err != nil {
		return nil, mapWorkspaceErr(err)
	}
	return s.verify(ctx, w, d)
}

// Remove deletes a domain of the workspace identified by slug, whatever its
// status.
func (s *DomainService) Remove(ctx context.Context, actor model.Identity, slug, name string) error {
	w, d, err := s.ownedDomain(ctx, actor, slug, name)
	if err != nil {
		return err
	}
	if err := s.domains.Delete(ctx, d.ID); err != nil {
		return mapDomainErr(err)
	}
	s.logger.Info("domain removed",
		zap.String("workspace", w.Slug),
		zap.String("domain", d.Name),
		zap.String("status", string(d.Status)),
	)
	return nil
}

// ListAll returns every domain; used by the re-checker.
func (s *DomainService) ListAll(ctx context.Context) ([]model.Domain, error) {
	return s.domains.List(ctx)
}

// Instructions returns the DNS records that make d verifiable for w.
func (s *DomainService) Instructions(w *model.Workspace, d *model.Domain) model.DNSInstructions {
	target := s.cfg.CNAMETarget
	if target == "" {
		target = w.Hostname(s.cfg.Apex)
	}
	return model.DNSInstructions{
		CNAMEHost:   d.Name,
		CNAMETarget: target,
		TXTHost:     dns.TXTHost(d.Name),
		TXTValue:    dns.TXTRecord(d.VerificationToken),
	}
}

// Workspace returns the owning workspace of a domain.
func (s *DomainService) Workspace(ctx context.Context, d *model.Domain) (*model.Workspace, error) {
	w, err := s.workspaces.GetByID(ctx, d.WorkspaceID)
	if err != nil {
		return nil, mapWorkspaceErr(err)
	}
	return w, nil
}

func (s *DomainService) ownedDomain(ctx context.Context, actor model.Identity, slug, name string) (*model.Workspace, *model.Domain, error) {
	w, err := ownedWorkspace(ctx, s.workspaces, actor, slug)
	if err != nil {
		return nil, nil, err
	}
	d, err := s.domains.GetByName(ctx, domain.Normalize(name))
	if err != nil {
		return nil, nil, mapDomainErr(err)
	}
	if d.WorkspaceID != w.ID {
		return nil, nil, ErrDomainNotFound
	}
	return w, d, nil
}

// verify performs one bounded DNS check and persists the transition.
// Success stamps verifiedAt and lastCheckedAt; failure stamps lastCheckedAt
// only, so the time of the last success survives.
func (s *DomainService) verify(ctx context.Context, w *model.Workspace, d *model.Domain) (*VerifyResult, error) {
	checkErr := s.runCheck(ctx, dns.Target{
		Domain:    d.Name,
		CNAMEs:    s.cnameTargets(w),
		Addresses: s.cfg.Addresses,
		Token:     d.VerificationToken,
	})

	prev := d.Status
	now := s.now()
	d.LastCheckedAt = &now
	res := &VerifyResult{Domain: d}
	if checkErr == nil {
		d.Status = model.StatusVerified
		d.VerifiedAt = &now
		res.Verified = true
	} else {
		d.Status = model.StatusFailed
		res.Reason = checkErr.Error()
	}

	if err := s.domains.UpdateStatus(ctx, d); err != nil {
		return nil, mapDomainErr(err)
	}
	metrics.RecordVerification(string(d.Status))

	if res.Verified {
		s.logger.Info("domain verified", zap.String("workspace", w.Slug), zap.String("domain", d.Name))
	} else {
		s.logger.Info("domain verification failed",
			zap.String("workspace", w.Slug),
			zap.String("domain", d.Name),
			zap.Error(checkErr),
		)
	}

	if prev != d.Status {
		s.notify(ctx, w, d, res.Reason)
	}
	return res, nil
}

// runCheck abandons a check that outlives CheckTimeout and reports the
// timeout as the failure.
func (s *DomainService) runCheck(ctx context.Context, t dns.Target) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.CheckTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.check(ctx, t) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("dns check timed out: %w", ctx.Err())
	}
}

func (s *DomainService) cnameTargets(w *model.Workspace) []string {
	targets := []string{w.Hostname(s.cfg.Apex)}
	if s.cfg.CNAMETarget != "" {
		targets = append(targets, s.cfg.CNAMETarget)
	}
	return targets
}

func (s *DomainService) notify(ctx context.Context, w *model.Workspace, d *model.Domain, reason string) {
	if s.notifier == nil || w.OwnerEmail == "" {
		return
	}
	msg := email.DomainStatusMessage(w.OwnerEmail, w.Slug, d.Name, string(d.Status), reason)
	if err := s.notifier.Send(ctx, msg); err != nil {
		s.logger.Warn("domain status notification failed",
			zap.String("domain", d.Name),
			zap.Error(err),
		)
	}
}
