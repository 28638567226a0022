package license

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/streamdesk/streamdesk/internal/cmn/logger/tag"
)

// DefaultRefreshInterval is the minimum time between unforced verification attempts.
const DefaultRefreshInterval = time.Hour

// Verifier performs a single verification round trip.
type Verifier interface {
	Verify(ctx context.Context, cfg LicenseConfig) (*VerificationResult, error)
}

// CacheEntry is the most recent verification result and when it was stored.
type CacheEntry struct {
	Result         VerificationResult
	LastVerifiedAt time.Time
}

// VerificationCache holds the last verification result for the process and
// decides when to ask the authority again.
//
// Refreshes are serialized: at most one verification is in flight per cache.
// A failed refresh keeps the previous entry and its timestamp, so an outage
// never revokes access and the next attempt is not postponed.
type VerificationCache struct {
	store    ConfigStore
	verifier Verifier
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger
	metrics  *Metrics

	refreshMu sync.Mutex

	mu         sync.RWMutex
	entry      *CacheEntry
	generation uint64
}

// CacheOption configures a VerificationCache.
type CacheOption func(*VerificationCache)

// WithRefreshInterval sets the minimum time between unforced refreshes.
func WithRefreshInterval(d time.Duration) CacheOption {
	return func(c *VerificationCache) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) CacheOption {
	return func(c *VerificationCache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithCacheLogger sets the logger.
func WithCacheLogger(l *slog.Logger) CacheOption {
	return func(c *VerificationCache) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithCacheMetrics sets the metrics sink.
func WithCacheMetrics(m *Metrics) CacheOption {
	return func(c *VerificationCache) {
		c.metrics = m
	}
}

// NewVerificationCache creates an empty cache.
func NewVerificationCache(store ConfigStore, verifier Verifier, opts ...CacheOption) *VerificationCache {
	c := &VerificationCache{
		store:    store,
		verifier: verifier,
		interval: DefaultRefreshInterval,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Status returns the current verification result. Unless forceRefresh is set,
// a result younger than the refresh interval is returned without contacting
// the authority. Status never fails; problems are reported as an invalid result.
func (c *VerificationCache) Status(ctx context.Context, forceRefresh bool) VerificationResult {
	if !forceRefresh {
		if res, ok := c.fresh(); ok {
			c.metrics.cacheHit()
			return res
		}
	}

	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	// A concurrent caller may have refreshed while this one was waiting.
	if !forceRefresh {
		if res, ok := c.fresh(); ok {
			c.metrics.cacheHit()
			return res
		}
	}

	c.metrics.cacheMiss()
	return c.refresh(ctx)
}

// Invalidate drops the cached entry so the next Status call verifies again.
func (c *VerificationCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entry = nil
	c.generation++
}

// Entry returns a copy of the cached entry, if any.
func (c *VerificationCache) Entry() (CacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.entry == nil {
		return CacheEntry{}, false
	}
	e := *c.entry
	e.Result = e.Result.clone()
	return e, true
}

func (c *VerificationCache) fresh() (VerificationResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.entry == nil {
		return VerificationResult{}, false
	}
	if c.now().Sub(c.entry.LastVerifiedAt) >= c.interval {
		return VerificationResult{}, false
	}
	return c.entry.Result.clone(), true
}

// refresh must be called with refreshMu held.
func (c *VerificationCache) refresh(ctx context.Context) VerificationResult {
	c.mu.RLock()
	gen := c.generation
	c.mu.RUnlock()

	cfg := c.store.ReadConfig()
	if !cfg.IsConfigured() {
		c.metrics.verification(ErrNotConfigured)
		res := notConfiguredResult()
		c.put(gen, res)
		return res
	}

	// Verification is not cancelled with the caller; the client timeout bounds it.
	res, err := c.verifier.Verify(context.WithoutCancel(ctx), *cfg)
	c.metrics.verification(err)
	if err == nil {
		c.put(gen, *res)
		return *res
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generation == gen && c.entry != nil {
		c.metrics.stale()
		c.logger.Warn("License verification failed, serving previous result",
			tag.Error(err),
			tag.Domain(cfg.Domain),
			slog.Time("last-verified-at", c.entry.LastVerifiedAt),
		)
		return c.entry.Result.clone()
	}

	c.logger.Warn("License verification failed", tag.Error(err), tag.Domain(cfg.Domain))
	failed := failedResult(err)
	if c.generation == gen {
		c.entry = &CacheEntry{Result: failed, LastVerifiedAt: c.now()}
		c.metrics.stored(failed)
	}
	return failed
}

// put stores res unless the cache was invalidated after gen was observed.
func (c *VerificationCache) put(gen uint64, res VerificationResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		return
	}
	c.entry = &CacheEntry{Result: res.clone(), LastVerifiedAt: c.now()}
	c.metrics.stored(res)
}
