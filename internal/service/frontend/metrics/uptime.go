package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Uptime reports how long the server has been running.
type Uptime struct {
	start time.Time
	now   func() time.Time
}

// NewUptime starts the uptime clock.
func NewUptime() *Uptime {
	return &Uptime{start: time.Now(), now: time.Now}
}

// Seconds returns the current uptime in whole seconds.
func (u *Uptime) Seconds() int64 {
	return int64(u.now().Sub(u.start) / time.Second)
}

// Register exposes the uptime as a gauge.
func (u *Uptime) Register(registerer prometheus.Registerer) {
	registerer.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "streamdesk_uptime_seconds",
		Help: "Number of seconds since the server started",
	}, func() float64 {
		return float64(u.Seconds())
	}))
}
