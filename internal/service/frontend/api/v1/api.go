// Package api implements the v1 REST API.
package api

import (
	"context"
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/streamdesk/streamdesk/internal/license"
	"github.com/streamdesk/streamdesk/internal/service/frontend/metrics"
)

// LicenseService is the entitlement surface the API exposes.
type LicenseService interface {
	license.Checker
	Status(ctx context.Context, forceRefresh bool) license.VerificationResult
	Activate(ctx context.Context, domain, licenseKey string) license.ActivationOutcome
	Invalidate()
}

// LicenseWriter persists license settings.
type LicenseWriter interface {
	SaveLicense(domain, licenseKey string) error
	ClearLicense() error
}

// API serves the v1 endpoints.
type API struct {
	license  LicenseService
	settings LicenseWriter
	uptime   *metrics.Uptime
	validate *validator.Validate
	logger   *slog.Logger
}

// New creates the v1 API.
func New(svc LicenseService, settings LicenseWriter, uptime *metrics.Uptime, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	if uptime == nil {
		uptime = metrics.NewUptime()
	}
	return &API{
		license:  svc,
		settings: settings,
		uptime:   uptime,
		validate: newValidator(),
		logger:   logger,
	}
}

// ConfigureRoutes mounts the v1 endpoints on r.
func (a *API) ConfigureRoutes(r chi.Router) {
	r.Get("/health", a.GetHealthStatus)

	r.Route("/license", func(r chi.Router) {
		r.Get("/", a.GetLicenseStatus)
		r.Delete("/", a.ClearLicense)
		r.Post("/refresh", a.RefreshLicense)
		r.Post("/activate", a.ActivateLicense)
		r.Get("/features", a.ListFeatures)
		r.Get("/features/{feature}", a.CheckFeature)
	})
}
