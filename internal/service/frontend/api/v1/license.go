package api

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/streamdesk/streamdesk/internal/cmn/logger/tag"
	"github.com/streamdesk/streamdesk/internal/license"
	"github.com/streamdesk/streamdesk/internal/service/frontend/response"
)

// ActivateLicenseRequest is the body of POST /license/activate.
type ActivateLicenseRequest struct {
	Domain     string `json:"domain" validate:"required,hostname_rfc1123"`
	LicenseKey string `json:"licenseKey" validate:"required,max=512"`
}

// Bind implements render.Binder.
func (req *ActivateLicenseRequest) Bind(*http.Request) error {
	req.Domain = strings.ToLower(strings.TrimSpace(req.Domain))
	req.LicenseKey = strings.TrimSpace(req.LicenseKey)
	return nil
}

// FeatureDecision is the body of GET /license/features/{feature}.
type FeatureDecision struct {
	Feature string `json:"feature"`
	license.Decision
}

// newValidator reports JSON field names in validation errors.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// GetLicenseStatus returns the display status.
func (a *API) GetLicenseStatus(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, a.license.DisplayStatus(r.Context()))
}

// RefreshLicense forces a verification and returns the resulting display status.
func (a *API) RefreshLicense(w http.ResponseWriter, r *http.Request) {
	a.license.Status(r.Context(), true)
	render.JSON(w, r, a.license.DisplayStatus(r.Context()))
}

// ActivateLicense activates a key with the authority, persists it on success
// and invalidates the cached status so the new tier takes effect.
func (a *API) ActivateLicense(w http.ResponseWriter, r *http.Request) {
	var req ActivateLicenseRequest
	if err := render.Bind(r, &req); err != nil {
		response.Write(w, r, response.BadRequest("invalid request body"))
		return
	}
	if err := a.validate.Struct(&req); err != nil {
		response.Write(w, r, response.BadRequest(validationMessage(err)))
		return
	}

	outcome := a.license.Activate(r.Context(), req.Domain, req.LicenseKey)
	if !outcome.Success {
		response.Write(w, r, response.New(http.StatusBadRequest, response.CodeActivationFailed, outcome.Message))
		return
	}

	if err := a.settings.SaveLicense(req.Domain, req.LicenseKey); err != nil {
		a.logger.Error("Failed to persist activated license",
			tag.Error(err),
			tag.Domain(req.Domain),
			tag.LicenseKey(license.MaskKey(req.LicenseKey)),
		)
		response.Write(w, r, response.Internal(err))
		return
	}
	a.license.Invalidate()

	render.JSON(w, r, outcome)
}

// ClearLicense removes the stored license.
func (a *API) ClearLicense(w http.ResponseWriter, r *http.Request) {
	if err := a.settings.ClearLicense(); err != nil {
		a.logger.Error("Failed to clear license", tag.Error(err))
		response.Write(w, r, response.Internal(err))
		return
	}
	a.license.Invalidate()
	a.logger.Info("License cleared")
	render.NoContent(w, r)
}

// ListFeatures reports the decision for every tier-gated feature.
func (a *API) ListFeatures(w http.ResponseWriter, r *http.Request) {
	features := license.RestrictedFeatures()
	decisions := make([]FeatureDecision, 0, len(features))
	for _, f := range features {
		decisions = append(decisions, FeatureDecision{Feature: f, Decision: a.license.CheckFeature(r.Context(), f)})
	}
	render.JSON(w, r, decisions)
}

// CheckFeature reports whether a single feature is allowed.
func (a *API) CheckFeature(w http.ResponseWriter, r *http.Request) {
	feature := chi.URLParam(r, "feature")
	if feature == "" {
		response.Write(w, r, response.BadRequest("feature is required"))
		return
	}
	render.JSON(w, r, FeatureDecision{
		Feature:  feature,
		Decision: a.license.CheckFeature(r.Context(), feature),
	})
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request"
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "hostname_rfc1123":
		return fe.Field() + " must be a valid domain name"
	default:
		return fe.Field() + " is invalid"
	}
}
