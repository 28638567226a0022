package license

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/streamdesk/streamdesk/internal/cmn/logger/tag"
)

const messageActivationFailed = "activation failed"

// ErrAlreadyStarted is returned by Start when the manager is running.
var ErrAlreadyStarted = errors.New("license manager already started")

// ManagerConfig holds configuration for the license manager.
type ManagerConfig struct {
	// RefreshInterval is the minimum time between unforced verifications.
	RefreshInterval time.Duration
	// Timeout bounds each request to the authority.
	Timeout time.Duration
	// RefreshSchedule is the cron spec for background refreshes. Empty disables them.
	RefreshSchedule string
	// InstanceID identifies this deployment to the authority.
	InstanceID string
	// UserAgent is sent with every authority request.
	UserAgent string
	// WatchSettings invalidates the cache when the settings file changes.
	WatchSettings bool
}

// Authority is the remote side of verification and activation.
type Authority interface {
	Verifier
	Activate(ctx context.Context, domain, licenseKey string) (*ActivationOutcome, error)
}

// Watcher is implemented by stores that can report changes to the persisted settings.
// Watch blocks until ctx is done.
type Watcher interface {
	Watch(ctx context.Context, onChange func()) error
}

var _ Checker = (*Manager)(nil)

// Manager is the entry point to the entitlement subsystem. It owns the
// verification cache for the process and exposes the operations the rest of
// the application uses to observe or influence entitlement.
type Manager struct {
	cfg       ManagerConfig
	store     ConfigStore
	authority Authority
	cache     *VerificationCache
	gate      *Gate
	logger    *slog.Logger

	mu        sync.Mutex
	cancel    context.CancelFunc
	refresher *Refresher
	wg        sync.WaitGroup
}

// NewManager creates a license manager reading settings from store.
// A nil logger defaults to slog.Default(); a nil metrics records nothing.
func NewManager(cfg ManagerConfig, store ConfigStore, metrics *Metrics, logger *slog.Logger) *Manager {
	opts := []ClientOption{
		WithTimeout(cfg.Timeout),
		WithUserAgent(cfg.UserAgent),
		WithInstanceID(cfg.InstanceID),
	}
	client := NewAuthorityClient(store.ResolveAuthorityAddress, opts...)
	return newManager(cfg, store, client, metrics, logger)
}

func newManager(cfg ManagerConfig, store ConfigStore, authority Authority, metrics *Metrics, logger *slog.Logger, cacheOpts ...CacheOption) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	opts := append([]CacheOption{
		WithRefreshInterval(cfg.RefreshInterval),
		WithCacheLogger(logger),
		WithCacheMetrics(metrics),
	}, cacheOpts...)
	cache := NewVerificationCache(store, authority, opts...)

	return &Manager{
		cfg:       cfg,
		store:     store,
		authority: authority,
		cache:     cache,
		gate:      NewGate(cache, store, metrics),
		logger:    logger,
	}
}

// Status returns the current verification result; see VerificationCache.Status.
func (m *Manager) Status(ctx context.Context, forceRefresh bool) VerificationResult {
	return m.cache.Status(ctx, forceRefresh)
}

// CheckFeature decides whether the feature may be used.
func (m *Manager) CheckFeature(ctx context.Context, feature string) Decision {
	d := m.gate.CheckFeature(ctx, feature)
	if !d.Allowed {
		m.logger.Debug("Feature denied", tag.Feature(feature), tag.Reason(d.Reason))
	}
	return d
}

// DisplayStatus summarizes the entitlement state for presentation.
func (m *Manager) DisplayStatus(ctx context.Context) DisplayStatus {
	return m.gate.DisplayStatus(ctx)
}

// Invalidate drops the cached verification result.
func (m *Manager) Invalidate() {
	m.cache.Invalidate()
}

// Activate registers the key for the domain with the authority. It never
// fails; problems are reported as an unsuccessful outcome. On success the
// cache is invalidated. Persisting the pair is left to the caller, which
// should invalidate again once the settings are written.
func (m *Manager) Activate(ctx context.Context, domain, licenseKey string) ActivationOutcome {
	domain = strings.TrimSpace(domain)
	licenseKey = strings.TrimSpace(licenseKey)
	if domain == "" || licenseKey == "" {
		return ActivationOutcome{Success: false, Message: "domain and license key are required"}
	}

	outcome, err := m.authority.Activate(context.WithoutCancel(ctx), domain, licenseKey)
	if err != nil {
		m.logger.Warn("License activation failed",
			tag.Error(err),
			tag.Domain(domain),
			tag.LicenseKey(MaskKey(licenseKey)),
		)
		return ActivationOutcome{
			Success: false,
			Message: fmt.Sprintf("%s: %v", messageActivationFailed, err),
		}
	}

	if outcome.Success {
		m.cache.Invalidate()
		m.logger.Info("License activated",
			tag.Domain(domain),
			tag.LicenseKey(MaskKey(licenseKey)),
		)
	} else {
		m.logger.Warn("License activation rejected",
			tag.Domain(domain),
			tag.Reason(outcome.Message),
		)
	}
	return *outcome
}

// Start begins background refreshes and, when enabled and supported by the
// store, the settings watcher. The context bounds both.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		return ErrAlreadyStarted
	}

	var refresher *Refresher
	if m.cfg.RefreshSchedule != "" {
		r, err := NewRefresher(m.cfg.RefreshSchedule, m.cache, m.logger)
		if err != nil {
			return err
		}
		refresher = r
	}

	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	if refresher != nil {
		refresher.Start()
		m.refresher = refresher
	}

	if w, ok := m.store.(Watcher); ok && m.cfg.WatchSettings {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.watch(ctx, w)
		}()
	}

	// Warm the cache so the first request does not wait on the authority.
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		res := m.cache.Status(ctx, false)
		m.logger.Info("License status",
			slog.Bool("valid", res.Valid),
			tag.Tier(string(res.Tier())),
			tag.Reason(res.Message),
		)
	}()

	return nil
}

// Stop halts background work and waits for it to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	refresher := m.refresher
	m.cancel = nil
	m.refresher = nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	if refresher != nil {
		refresher.Stop()
	}
	m.wg.Wait()
}

// settingsSnapshot is the part of the settings that verification depends on.
type settingsSnapshot struct {
	config    LicenseConfig
	authority string
}

func (m *Manager) snapshot() settingsSnapshot {
	s := settingsSnapshot{authority: m.store.ResolveAuthorityAddress()}
	if cfg := m.store.ReadConfig(); cfg != nil {
		s.config = *cfg
	}
	return s
}

// watch invalidates the cache when the license or the authority address
// changes. Writes to other keys of the settings file keep the cached result,
// so they cannot force a verification while the authority is unreachable.
func (m *Manager) watch(ctx context.Context, w Watcher) {
	last := m.snapshot()
	err := w.Watch(ctx, func() {
		current := m.snapshot()
		if current == last {
			m.logger.Debug("Settings file changed, license settings unchanged")
			return
		}
		last = current
		m.logger.Info("License settings changed, invalidating cached status",
			tag.Domain(current.config.Domain),
			tag.Authority(current.authority),
		)
		m.cache.Invalidate()
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		m.logger.Warn("Settings watcher stopped", tag.Error(err))
	}
}
