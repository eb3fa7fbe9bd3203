package sites

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/jmerrifield20/tenantedge/internal/metrics"
)

const (
	defaultRevalidate  = 10 * time.Second
	defaultRefresh     = time.Minute
	defaultConcurrency = 8
	buildTimeout       = 10 * time.Second
)

// Config tunes regeneration.
type Config struct {
	// Revalidate is how long a page counts as fresh. Older pages are still
	// served but trigger a background rebuild. Defaults to 10s.
	Revalidate time.Duration
	// Refresh is the interval of the background pass over all known
	// workspaces. Defaults to 1m.
	Refresh time.Duration
	// Concurrency bounds parallel builds during a pass. Defaults to 8.
	Concurrency int
}

// Regenerator serves cached pages and keeps them current.
type Regenerator struct {
	builder *Builder
	cache   Cache
	cfg     Config
	logger  *zap.Logger
	group   singleflight.Group
	now     func() time.Time
}

// NewRegenerator creates a Regenerator.
func NewRegenerator(builder *Builder, cache Cache, cfg Config, logger *zap.Logger) *Regenerator {
	if cfg.Revalidate <= 0 {
		cfg.Revalidate = defaultRevalidate
	}
	if cfg.Refresh <= 0 {
		cfg.Refresh = defaultRefresh
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	return &Regenerator{
		builder: builder,
		cache:   cache,
		cfg:     cfg,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Revalidate returns the freshness window.
func (g *Regenerator) Revalidate() time.Duration { return g.cfg.Revalidate }

// Page returns the page for key.
//
// A fresh cached page is returned as is. A stale 200 slug page is returned
// immediately while one background rebuild runs. A missing page, a stale 404,
// or a stale custom-hostname page is built before returning: a new tenant
// never sees a stale 404 and a domain that lost verification never serves
// old tenant content. Concurrent builds of the same key share one resolver
// call.
func (g *Regenerator) Page(ctx context.Context, key string) (*Page, error) {
	key = strings.ToLower(key)

	p, err := g.cache.Get(ctx, key)
	switch {
	case err == nil && g.fresh(p):
		metrics.RecordSiteCache("hit")
		return p, nil
	case err == nil && p.Status == http.StatusOK && !isHostname(key):
		metrics.RecordSiteCache("stale")
		g.revalidate(key)
		return p, nil
	case err == nil, errors.Is(err, ErrCacheMiss):
		metrics.RecordSiteCache("miss")
	default:
		metrics.RecordSiteCache("error")
		g.logger.Warn("page cache read failed", zap.String("key", key), zap.Error(err))
	}
	return g.build(ctx, key)
}

// Invalidate drops cached pages so the next request rebuilds them.
func (g *Regenerator) Invalidate(ctx context.Context, keys ...string) {
	for _, k := range keys {
		if err := g.cache.Delete(ctx, strings.ToLower(k)); err != nil {
			g.logger.Warn("page cache invalidate failed", zap.String("key", k), zap.Error(err))
		}
	}
}

// Prebuild builds pages for every workspace slug whose cached page is
// missing or stale.
func (g *Regenerator) Prebuild(ctx context.Context) error {
	slugs, err := g.builder.resolver.ListSlugs(ctx)
	if err != nil {
		return err
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.cfg.Concurrency)
	for _, slug := range slugs {
		eg.Go(func() error {
			if p, err := g.cache.Get(ctx, slug); err == nil && g.fresh(p) {
				return nil
			}
			if _, err := g.build(ctx, slug); err != nil {
				g.logger.Warn("prebuild failed", zap.String("slug", slug), zap.Error(err))
			}
			return nil
		})
	}
	return eg.Wait()
}

// Run prebuilds once, then refreshes on every tick until ctx is cancelled.
func (g *Regenerator) Run(ctx context.Context) {
	g.pass(ctx)

	ticker := time.NewTicker(g.cfg.Refresh)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.pass(ctx)
		}
	}
}

func (g *Regenerator) pass(ctx context.Context) {
	if err := g.Prebuild(ctx); err != nil && ctx.Err() == nil {
		g.logger.Error("page refresh pass failed", zap.Error(err))
	}
	if ev, ok := g.cache.(interface{ Evict() int }); ok {
		if n := ev.Evict(); n > 0 {
			g.logger.Debug("evicted expired pages", zap.Int("count", n))
		}
	}
}

// isHostname reports whether key is a custom hostname rather than a slug.
func isHostname(key string) bool { return strings.Contains(key, ".") }

func (g *Regenerator) fresh(p *Page) bool {
	return g.now().Sub(p.GeneratedAt) < g.cfg.Revalidate
}

// build renders key once per concurrent burst and stores the result. The
// build is detached from the caller so an abandoned request does not waste
// work that other waiters share.
func (g *Regenerator) build(ctx context.Context, key string) (*Page, error) {
	v, err, _ := g.group.Do(key, func() (any, error) {
		bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), buildTimeout)
		defer cancel()
		return g.buildAndStore(bctx, key)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Page), nil
}

func (g *Regenerator) revalidate(key string) {
	g.group.DoChan(key, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.Background(), buildTimeout)
		defer cancel()
		metrics.RecordSiteCache("revalidate")
		return g.buildAndStore(ctx, key)
	})
}

func (g *Regenerator) buildAndStore(ctx context.Context, key string) (*Page, error) {
	p, err := g.builder.Build(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := g.cache.Set(ctx, key, p); err != nil {
		g.logger.Warn("page cache write failed", zap.String("key", key), zap.Error(err))
	}
	return p, nil
}
