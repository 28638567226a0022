package license

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/streamdesk/streamdesk/internal/cmn/logger/tag"
)

// DefaultRefreshSchedule is how often the background refresher checks the cache.
const DefaultRefreshSchedule = "@every 15m"

// Refresher keeps the verification cache warm in the background so request
// paths rarely wait on the authority. It never forces a refresh; the cache's
// interval decides whether a network call happens.
type Refresher struct {
	cron   *cron.Cron
	status StatusProvider
	logger *slog.Logger
}

// NewRefresher creates a refresher running on the given cron schedule.
func NewRefresher(schedule string, status StatusProvider, logger *slog.Logger) (*Refresher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Refresher{
		cron:   cron.New(),
		status: status,
		logger: logger,
	}
	if _, err := r.cron.AddFunc(schedule, r.run); err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", schedule, err)
	}
	return r, nil
}

// Start runs the schedule in its own goroutine.
func (r *Refresher) Start() {
	r.cron.Start()
}

// Stop halts the schedule and waits for a running refresh to finish.
func (r *Refresher) Stop() {
	<-r.cron.Stop().Done()
}

func (r *Refresher) run() {
	res := r.status.Status(context.Background(), false)
	r.logger.Debug("License status checked",
		slog.Bool("valid", res.Valid),
		tag.Tier(string(res.Tier())),
	)
}
