package license

import (
	"errors"
	"fmt"
)

// ErrNotConfigured reports that no license is recorded for this deployment.
// It describes a stable state, not a failure.
var ErrNotConfigured = errors.New("license not configured")

// NetworkError is returned when the authority cannot be reached or the
// request times out.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s request failed: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// AuthorityError is returned when the authority answers with a non-success status.
type AuthorityError struct {
	StatusCode int
	Message    string
}

func (e *AuthorityError) Error() string {
	return fmt.Sprintf("license authority error (status %d): %s", e.StatusCode, e.Message)
}

// MalformedResponseError is returned when the authority's response body cannot
// be decoded or does not match the expected schema.
type MalformedResponseError struct {
	Err error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed authority response: %v", e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// errorKind classifies err for metrics and logs.
func errorKind(err error) string {
	var (
		netErr       *NetworkError
		authErr      *AuthorityError
		malformedErr *MalformedResponseError
	)
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrNotConfigured):
		return "not_configured"
	case errors.As(err, &netErr):
		return "network_error"
	case errors.As(err, &authErr):
		return "authority_error"
	case errors.As(err, &malformedErr):
		return "malformed_response"
	default:
		return "unknown_error"
	}
}
