package license

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-resty/resty/v2"
)

const (
	// DefaultAuthorityURL is used when no authority address is configured.
	DefaultAuthorityURL = "https://license.streamdesk.app"
	// DefaultTimeout bounds every request to the authority.
	DefaultTimeout = 10 * time.Second

	verifyPath   = "/api/verify"
	activatePath = "/api/activate"

	maxErrorMessageLen = 256
)

// VerifyRequest is the payload sent to the authority's verification endpoint.
type VerifyRequest struct {
	LicenseKey string `json:"licenseKey"`
	Domain     string `json:"domain"`
}

// ActivateRequest is the payload sent to the authority's activation endpoint.
type ActivateRequest struct {
	LicenseKey string `json:"licenseKey"`
	Domain     string `json:"domain"`
}

type licensePayload struct {
	Type         string  `json:"type" validate:"omitempty,oneof=standard pro enterprise lifetime"`
	MaxUsers     *int    `json:"maxUsers" validate:"omitempty,min=0"`
	ExpiresAt    *Expiry `json:"expiresAt"`
	CustomerName string  `json:"customerName"`
}

func (p *licensePayload) info() *LicenseInfo {
	if p == nil {
		return nil
	}
	return &LicenseInfo{
		Tier:         Tier(p.Type),
		MaxUsers:     p.MaxUsers,
		ExpiresAt:    p.ExpiresAt,
		CustomerName: p.CustomerName,
	}
}

type verifyResponse struct {
	Valid   *bool           `json:"valid" validate:"required"`
	Message string          `json:"message"`
	License *licensePayload `json:"license"`
}

type activateResponse struct {
	Success *bool           `json:"success" validate:"required"`
	Message string          `json:"message"`
	License *licensePayload `json:"license"`
}

// AuthorityClient talks to the remote license authority.
type AuthorityClient struct {
	resolve  func() string
	client   *resty.Client
	validate *validator.Validate
}

// ClientOption configures an AuthorityClient.
type ClientOption func(*AuthorityClient)

// WithTimeout overrides the request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *AuthorityClient) {
		if d > 0 {
			c.client.SetTimeout(d)
		}
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) ClientOption {
	return func(c *AuthorityClient) {
		if ua != "" {
			c.client.SetHeader("User-Agent", ua)
		}
	}
}

// WithInstanceID sends the deployment's instance ID with every request.
func WithInstanceID(id string) ClientOption {
	return func(c *AuthorityClient) {
		if id != "" {
			c.client.SetHeader("X-Instance-ID", id)
		}
	}
}

// StaticAddress returns a resolver that always yields addr.
func StaticAddress(addr string) func() string {
	return func() string { return addr }
}

// NewAuthorityClient creates a client that resolves the authority address
// before every request. A nil resolver, or one that yields an empty string,
// falls back to DefaultAuthorityURL.
func NewAuthorityClient(resolve func() string, opts ...ClientOption) *AuthorityClient {
	c := &AuthorityClient{
		resolve: resolve,
		client: resty.New().
			SetTimeout(DefaultTimeout).
			SetHeader("Content-Type", "application/json").
			SetHeader("Accept", "application/json").
			SetHeader("User-Agent", "streamdesk/dev"),
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Verify asks the authority whether the configured license is valid.
func (c *AuthorityClient) Verify(ctx context.Context, cfg LicenseConfig) (*VerificationResult, error) {
	var resp verifyResponse
	req := VerifyRequest{LicenseKey: cfg.LicenseKey, Domain: cfg.Domain}
	if err := c.postJSON(ctx, "verify", verifyPath, req, &resp); err != nil {
		return nil, err
	}

	result := &VerificationResult{
		Valid:   *resp.Valid,
		Message: resp.Message,
	}
	if result.Valid {
		result.License = resp.License.info()
	}
	return result, nil
}

// Activate registers the license key for the domain with the authority.
// It does not persist anything locally.
func (c *AuthorityClient) Activate(ctx context.Context, domain, licenseKey string) (*ActivationOutcome, error) {
	var resp activateResponse
	req := ActivateRequest{LicenseKey: licenseKey, Domain: domain}
	if err := c.postJSON(ctx, "activate", activatePath, req, &resp); err != nil {
		return nil, err
	}

	outcome := &ActivationOutcome{
		Success: *resp.Success,
		Message: resp.Message,
	}
	if outcome.Success {
		outcome.License = resp.License.info()
	}
	return outcome, nil
}

func (c *AuthorityClient) baseURL() string {
	if c.resolve != nil {
		if addr := strings.TrimSpace(c.resolve()); addr != "" {
			return strings.TrimRight(addr, "/")
		}
	}
	return DefaultAuthorityURL
}

func (c *AuthorityClient) postJSON(ctx context.Context, op, path string, body, out any) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(body).
		Post(c.baseURL() + path)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}

	if !resp.IsSuccess() {
		return &AuthorityError{
			StatusCode: resp.StatusCode(),
			Message:    extractErrorMessage(resp.Body(), resp.Status()),
		}
	}

	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return &MalformedResponseError{Err: fmt.Errorf("failed to unmarshal response: %w", err)}
	}
	if err := c.validate.Struct(out); err != nil {
		return &MalformedResponseError{Err: fmt.Errorf("response failed validation: %w", err)}
	}
	return nil
}

// extractErrorMessage pulls a message out of a JSON error body, falling back
// to the raw body or the HTTP status line.
func extractErrorMessage(body []byte, status string) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}

	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return status
	}
	if len(msg) > maxErrorMessageLen {
		msg = msg[:maxErrorMessageLen]
	}
	return msg
}
