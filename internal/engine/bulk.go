// Package engine holds the plumbing shared by search modules.
package engine

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/frisbee/internal/harvest"
	"github.com/JakeFAU/frisbee/internal/metrics"
)

// Request results recorded on frisbee_module_requests_total.
const (
	ResultOK      = "ok"
	ResultError   = "error"
	ResultLimited = "limited"
)

// BulkConfig tunes a Bulk fetcher.
type BulkConfig struct {
	// Engine labels metrics and logs.
	Engine string
	// MaxParallel caps concurrent requests. Zero means one goroutine per URL.
	MaxParallel int
}

// Bulk fans a URL list out through a Fetcher. Individual failures are logged
// and counted but never abort the batch.
type Bulk struct {
	fetcher harvest.Fetcher
	limiter harvest.Limiter
	cfg     BulkConfig
	logger  *zap.Logger
}

// NewBulk builds a Bulk fetcher. limiter may be nil.
func NewBulk(fetcher harvest.Fetcher, limiter harvest.Limiter, cfg BulkConfig, logger *zap.Logger) *Bulk {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bulk{
		fetcher: fetcher,
		limiter: limiter,
		cfg:     cfg,
		logger:  logger.Named("bulk"),
	}
}

// Fetch requests every URL and returns the pages that succeeded, in input order.
// It returns harvest.ErrNoTargets when urls is empty.
func (b *Bulk) Fetch(ctx context.Context, urls []string) ([]harvest.Page, error) {
	if len(urls) == 0 {
		return nil, harvest.ErrNoTargets
	}

	pages := make([]*harvest.Page, len(urls))
	var g errgroup.Group
	if b.cfg.MaxParallel > 0 {
		g.SetLimit(b.cfg.MaxParallel)
	}
	for i, u := range urls {
		g.Go(func() error {
			if page, ok := b.fetchOne(ctx, u); ok {
				pages[i] = &page
			}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]harvest.Page, 0, len(urls))
	for _, page := range pages {
		if page != nil {
			out = append(out, *page)
		}
	}
	return out, nil
}

func (b *Bulk) fetchOne(ctx context.Context, url string) (harvest.Page, bool) {
	if b.limiter != nil {
		if err := b.limiter.Wait(ctx, url); err != nil {
			metrics.ObserveModuleRequest(b.cfg.Engine, ResultLimited)
			b.logger.Warn("rate limiter refused request", zap.String("url", url), zap.Error(err))
			return harvest.Page{}, false
		}
	}
	page, err := b.fetcher.Fetch(ctx, url)
	if err != nil {
		metrics.ObserveModuleRequest(b.cfg.Engine, ResultError)
		b.logger.Warn("request failed",
			zap.String("engine", b.cfg.Engine),
			zap.String("url", url),
			zap.Error(err),
		)
		return harvest.Page{}, false
	}
	metrics.ObserveModuleRequest(b.cfg.Engine, ResultOK)
	return page, true
}
