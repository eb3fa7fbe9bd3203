// Package recheck periodically re-runs DNS verification for every claimed
// domain. It is off unless an interval is configured; owners can always
// trigger verification themselves.
package recheck

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jmerrifield20/tenantedge/internal/metrics"
	"github.com/jmerrifield20/tenantedge/internal/tenancy/model"
	"github.com/jmerrifield20/tenantedge/internal/tenancy/service"
)

// Config holds re-check configuration.
type Config struct {
	Interval    time.Duration
	Concurrency int
}

// Verifier is the part of the domain service the re-checker drives.
type Verifier interface {
	ListAll(ctx context.Context) ([]model.Domain, error)
	VerifyByID(ctx context.Context, id uuid.UUID) (*service.VerifyResult, error)
}

// Invalidator drops cached pages for the given keys.
type Invalidator interface {
	Invalidate(ctx context.Context, keys ...string)
}

// Checker runs verification for all domains on a fixed interval.
type Checker struct {
	verifier Verifier
	pages    Invalidator
	cfg      Config
	logger   *zap.Logger
}

// New creates a Checker. pages may be nil; when set, the cached page of every
// domain whose status changes or which disappears mid-pass is dropped.
func New(verifier Verifier, pages Invalidator, cfg Config, logger *zap.Logger) *Checker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Checker{verifier: verifier, pages: pages, cfg: cfg, logger: logger}
}

// Enabled reports whether an interval is configured.
func (c *Checker) Enabled() bool { return c.cfg.Interval > 0 }

// Start runs the re-check loop until ctx is cancelled. It returns
// immediately when the checker is disabled.
func (c *Checker) Start(ctx context.Context) {
	if !c.Enabled() {
		return
	}
	c.logger.Info("domain re-check enabled", zap.Duration("interval", c.cfg.Interval))

	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.CheckAll(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Summary counts domains by status after a pass.
type Summary map[model.DomainStatus]int

// CheckAll verifies every domain with bounded concurrency and publishes the
// per-status counts. A domain removed mid-pass is skipped.
func (c *Checker) CheckAll(ctx context.Context) Summary {
	domains, err := c.verifier.ListAll(ctx)
	if err != nil {
		c.logger.Error("recheck: list domains", zap.Error(err))
		return nil
	}

	sum := Summary{}
	var mu sync.Mutex
	sem := make(chan struct{}, c.cfg.Concurrency)
	var wg sync.WaitGroup

	for _, d := range domains {
		wg.Add(1)
		go func(d model.Domain) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			status := d.Status
			res, err := c.verifier.VerifyByID(ctx, d.ID)
			if err != nil {
				if isGone(err) {
					c.invalidate(ctx, d.Name)
					return
				}
				c.logger.Warn("recheck: verify", zap.String("domain", d.Name), zap.Error(err))
			} else {
				status = res.Domain.Status
			}
			if status != d.Status {
				c.invalidate(ctx, d.Name)
			}

			mu.Lock()
			sum[status]++
			mu.Unlock()
		}(d)
	}
	wg.Wait()

	for _, s := range []model.DomainStatus{model.StatusPending, model.StatusVerified, model.StatusFailed} {
		metrics.SetDomains(string(s), sum[s])
	}
	return sum
}

func (c *Checker) invalidate(ctx context.Context, name string) {
	if c.pages != nil {
		c.pages.Invalidate(ctx, name)
	}
}

func isGone(err error) bool {
	return errors.Is(err, service.ErrDomainNotFound) || errors.Is(err, service.ErrWorkspaceNotFound)
}
