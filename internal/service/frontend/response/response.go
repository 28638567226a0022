// Package response renders API error bodies.
package response

import (
	"net/http"

	"github.com/go-chi/render"
)

// Error codes returned by the API.
const (
	CodeBadRequest        = "BAD_REQUEST"
	CodeFeatureNotLicense = "FEATURE_NOT_LICENSED"
	CodeActivationFailed  = "ACTIVATION_FAILED"
	CodeInternal          = "INTERNAL_ERROR"
	CodeNotFound          = "NOT_FOUND"
)

// ErrResponse implements the render.Renderer interface for API errors.
type ErrResponse struct {
	Err            error  `json:"-"`
	HTTPStatusCode int    `json:"-"`
	Code           string `json:"code"`
	Message        string `json:"message"`
}

// Render implements the render.Renderer interface.
func (e *ErrResponse) Render(_ http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.HTTPStatusCode)
	return nil
}

// New creates an error response.
func New(status int, code, message string) *ErrResponse {
	return &ErrResponse{HTTPStatusCode: status, Code: code, Message: message}
}

// BadRequest reports an unusable request body or parameter.
func BadRequest(message string) *ErrResponse {
	return New(http.StatusBadRequest, CodeBadRequest, message)
}

// Internal reports a server-side failure. The cause is not exposed.
func Internal(err error) *ErrResponse {
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: http.StatusInternalServerError,
		Code:           CodeInternal,
		Message:        "internal server error",
	}
}

// Forbidden reports a feature that the current license does not include.
func Forbidden(reason string) *ErrResponse {
	return New(http.StatusForbidden, CodeFeatureNotLicense, reason)
}

// Write renders err, falling back to a bare status if rendering fails.
func Write(w http.ResponseWriter, r *http.Request, err *ErrResponse) {
	if renderErr := render.Render(w, r, err); renderErr != nil {
		http.Error(w, err.Message, err.HTTPStatusCode)
	}
}
