package license

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestAuthorityClient creates a test HTTP server with the given handler and an
// AuthorityClient pointing at it. The server is automatically closed when the test finishes.
func newTestAuthorityClient(t *testing.T, handler http.HandlerFunc, opts ...ClientOption) (*httptest.Server, *AuthorityClient) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := NewAuthorityClient(StaticAddress(server.URL), opts...)
	return server, client
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

var testConfig = LicenseConfig{Domain: "x.com", LicenseKey: "ABCD-1234-EFGH-5678"}

func TestNewAuthorityClient(t *testing.T) {
	t.Parallel()

	t.Run("nil resolver uses default authority URL", func(t *testing.T) {
		t.Parallel()

		client := NewAuthorityClient(nil)

		assert.Equal(t, DefaultAuthorityURL, client.baseURL())
		assert.Equal(t, DefaultTimeout, client.client.GetClient().Timeout)
	})

	t.Run("empty address falls back to default", func(t *testing.T) {
		t.Parallel()

		client := NewAuthorityClient(StaticAddress("  "))

		assert.Equal(t, DefaultAuthorityURL, client.baseURL())
	})

	t.Run("trailing slash is trimmed", func(t *testing.T) {
		t.Parallel()

		client := NewAuthorityClient(StaticAddress("https://auth.example.com/"))

		assert.Equal(t, "https://auth.example.com", client.baseURL())
	})

	t.Run("address is resolved per request", func(t *testing.T) {
		t.Parallel()

		addr := "https://one.example.com"
		client := NewAuthorityClient(func() string { return addr })
		assert.Equal(t, "https://one.example.com", client.baseURL())

		addr = "https://two.example.com"
		assert.Equal(t, "https://two.example.com", client.baseURL())
	})
}

func TestErrors_Error(t *testing.T) {
	t.Parallel()

	t.Run("authority error formats status code and message", func(t *testing.T) {
		t.Parallel()

		err := &AuthorityError{StatusCode: 500, Message: "something went wrong"}
		assert.Equal(t, "license authority error (status 500): something went wrong", err.Error())
	})

	t.Run("network error wraps cause", func(t *testing.T) {
		t.Parallel()

		cause := errors.New("connection refused")
		err := &NetworkError{Op: "verify", Err: cause}
		assert.Equal(t, "verify request failed: connection refused", err.Error())
		assert.ErrorIs(t, err, cause)
	})

	t.Run("error kinds", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, "success", errorKind(nil))
		assert.Equal(t, "not_configured", errorKind(ErrNotConfigured))
		assert.Equal(t, "network_error", errorKind(&NetworkError{Op: "verify", Err: io.EOF}))
		assert.Equal(t, "authority_error", errorKind(&AuthorityError{StatusCode: 503}))
		assert.Equal(t, "malformed_response", errorKind(&MalformedResponseError{Err: io.EOF}))
		assert.Equal(t, "unknown_error", errorKind(io.EOF))
	})
}

func TestAuthorityClient_Verify(t *testing.T) {
	t.Parallel()

	t.Run("valid license is decoded", func(t *testing.T) {
		t.Parallel()

		var got VerifyRequest
		_, client := newTestAuthorityClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, verifyPath, r.URL.Path)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			writeJSON(w, http.StatusOK, `{
				"valid": true,
				"message": "ok",
				"license": {"type": "pro", "maxUsers": 25, "expiresAt": "never", "customerName": "Acme"}
			}`)
		})

		res, err := client.Verify(context.Background(), testConfig)
		require.NoError(t, err)

		assert.Equal(t, testConfig.LicenseKey, got.LicenseKey)
		assert.Equal(t, testConfig.Domain, got.Domain)
		assert.True(t, res.Valid)
		assert.Equal(t, "ok", res.Message)
		require.NotNil(t, res.License)
		assert.Equal(t, TierPro, res.Tier())
		require.NotNil(t, res.License.MaxUsers)
		assert.Equal(t, 25, *res.License.MaxUsers)
		require.NotNil(t, res.License.ExpiresAt)
		assert.True(t, res.License.ExpiresAt.Never)
		assert.Equal(t, "Acme", res.License.CustomerName)
	})

	t.Run("timestamp expiry is parsed", func(t *testing.T) {
		t.Parallel()

		_, client := newTestAuthorityClient(t, func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, `{"valid":true,"message":"ok","license":{"type":"standard","expiresAt":"2030-01-02T03:04:05Z"}}`)
		})

		res, err := client.Verify(context.Background(), testConfig)
		require.NoError(t, err)
		require.NotNil(t, res.License.ExpiresAt)
		assert.Equal(t, time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC), res.License.ExpiresAt.Time)
	})

	t.Run("invalid license drops license details", func(t *testing.T) {
		t.Parallel()

		_, client := newTestAuthorityClient(t, func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, `{"valid":false,"message":"license expired","license":{"type":"pro"}}`)
		})

		res, err := client.Verify(context.Background(), testConfig)
		require.NoError(t, err)
		assert.False(t, res.Valid)
		assert.Equal(t, "license expired", res.Message)
		assert.Nil(t, res.License)
		assert.Equal(t, Tier(""), res.Tier())
	})

	t.Run("non-2xx status returns AuthorityError", func(t *testing.T) {
		t.Parallel()

		_, client := newTestAuthorityClient(t, func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusServiceUnavailable, `{"message":"maintenance"}`)
		})

		res, err := client.Verify(context.Background(), testConfig)
		require.Error(t, err)
		assert.Nil(t, res)

		var authErr *AuthorityError
		require.True(t, errors.As(err, &authErr))
		assert.Equal(t, http.StatusServiceUnavailable, authErr.StatusCode)
		assert.Equal(t, "maintenance", authErr.Message)
	})

	t.Run("error field is used when message is absent", func(t *testing.T) {
		t.Parallel()

		_, client := newTestAuthorityClient(t, func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusForbidden, `{"error":"domain mismatch"}`)
		})

		_, err := client.Verify(context.Background(), testConfig)
		var authErr *AuthorityError
		require.True(t, errors.As(err, &authErr))
		assert.Equal(t, "domain mismatch", authErr.Message)
	})

	t.Run("plain text error body is truncated", func(t *testing.T) {
		t.Parallel()

		_, client := newTestAuthorityClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = io.WriteString(w, strings.Repeat("x", 1000))
		})

		_, err := client.Verify(context.Background(), testConfig)
		var authErr *AuthorityError
		require.True(t, errors.As(err, &authErr))
		assert.Len(t, authErr.Message, maxErrorMessageLen)
	})

	t.Run("empty error body falls back to status line", func(t *testing.T) {
		t.Parallel()

		_, client := newTestAuthorityClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})

		_, err := client.Verify(context.Background(), testConfig)
		var authErr *AuthorityError
		require.True(t, errors.As(err, &authErr))
		assert.Contains(t, authErr.Message, "500")
	})

	t.Run("unparsable body returns MalformedResponseError", func(t *testing.T) {
		t.Parallel()

		_, client := newTestAuthorityClient(t, func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, `not json`)
		})

		_, err := client.Verify(context.Background(), testConfig)
		var malformed *MalformedResponseError
		require.True(t, errors.As(err, &malformed))
		assert.Contains(t, err.Error(), "failed to unmarshal response")
	})

	t.Run("schema violations return MalformedResponseError", func(t *testing.T) {
		t.Parallel()

		bodies := map[string]string{
			"missing valid":      `{"message":"ok"}`,
			"unknown tier":       `{"valid":true,"message":"ok","license":{"type":"gold"}}`,
			"negative max users": `{"valid":true,"message":"ok","license":{"type":"pro","maxUsers":-1}}`,
			"bad expiry":         `{"valid":true,"message":"ok","license":{"type":"pro","expiresAt":"soon"}}`,
			"wrong valid type":   `{"valid":"yes","message":"ok"}`,
		}
		for name, body := range bodies {
			t.Run(name, func(t *testing.T) {
				t.Parallel()

				_, client := newTestAuthorityClient(t, func(w http.ResponseWriter, _ *http.Request) {
					writeJSON(w, http.StatusOK, body)
				})

				res, err := client.Verify(context.Background(), testConfig)
				assert.Nil(t, res)
				var malformed *MalformedResponseError
				assert.True(t, errors.As(err, &malformed), "got %v", err)
			})
		}
	})

	t.Run("unreachable authority returns NetworkError", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.NotFoundHandler())
		addr := server.URL
		server.Close()

		client := NewAuthorityClient(StaticAddress(addr))
		_, err := client.Verify(context.Background(), testConfig)

		var netErr *NetworkError
		require.True(t, errors.As(err, &netErr))
		assert.Equal(t, "verify", netErr.Op)
	})

	t.Run("timeout returns NetworkError", func(t *testing.T) {
		t.Parallel()

		release := make(chan struct{})
		_, client := newTestAuthorityClient(t, func(w http.ResponseWriter, _ *http.Request) {
			select {
			case <-release:
			case <-time.After(5 * time.Second):
			}
			writeJSON(w, http.StatusOK, `{"valid":true,"message":"ok"}`)
		}, WithTimeout(50*time.Millisecond))
		defer close(release)

		_, err := client.Verify(context.Background(), testConfig)
		var netErr *NetworkError
		require.True(t, errors.As(err, &netErr))
	})
}

func TestAuthorityClient_Activate(t *testing.T) {
	t.Parallel()

	t.Run("successful activation", func(t *testing.T) {
		t.Parallel()

		var got ActivateRequest
		_, client := newTestAuthorityClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, activatePath, r.URL.Path)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			writeJSON(w, http.StatusOK, `{"success":true,"message":"activated","license":{"type":"lifetime"}}`)
		})

		outcome, err := client.Activate(context.Background(), "x.com", "KEY-1")
		require.NoError(t, err)

		assert.Equal(t, "x.com", got.Domain)
		assert.Equal(t, "KEY-1", got.LicenseKey)
		assert.True(t, outcome.Success)
		assert.Equal(t, "activated", outcome.Message)
		require.NotNil(t, outcome.License)
		assert.Equal(t, TierLifetime, outcome.License.Tier)
	})

	t.Run("rejected activation has no license", func(t *testing.T) {
		t.Parallel()

		_, client := newTestAuthorityClient(t, func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, `{"success":false,"message":"key already bound","license":{"type":"pro"}}`)
		})

		outcome, err := client.Activate(context.Background(), "x.com", "KEY-1")
		require.NoError(t, err)
		assert.False(t, outcome.Success)
		assert.Equal(t, "key already bound", outcome.Message)
		assert.Nil(t, outcome.License)
	})

	t.Run("missing success returns MalformedResponseError", func(t *testing.T) {
		t.Parallel()

		_, client := newTestAuthorityClient(t, func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, `{"message":"activated"}`)
		})

		_, err := client.Activate(context.Background(), "x.com", "KEY-1")
		var malformed *MalformedResponseError
		assert.True(t, errors.As(err, &malformed))
	})

	t.Run("authority error status", func(t *testing.T) {
		t.Parallel()

		_, client := newTestAuthorityClient(t, func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusNotFound, `{"message":"unknown key"}`)
		})

		_, err := client.Activate(context.Background(), "x.com", "KEY-1")
		var authErr *AuthorityError
		require.True(t, errors.As(err, &authErr))
		assert.Equal(t, http.StatusNotFound, authErr.StatusCode)
	})
}

func TestAuthorityClient_RequestHeaders(t *testing.T) {
	t.Parallel()

	var headers http.Header
	_, client := newTestAuthorityClient(t, func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header.Clone()
		writeJSON(w, http.StatusOK, `{"valid":false,"message":"unknown"}`)
	}, WithUserAgent("streamdesk/1.2.3"), WithInstanceID("instance-1"))

	_, err := client.Verify(context.Background(), testConfig)
	require.NoError(t, err)

	assert.Equal(t, "application/json", headers.Get("Content-Type"))
	assert.Equal(t, "application/json", headers.Get("Accept"))
	assert.Equal(t, "streamdesk/1.2.3", headers.Get("User-Agent"))
	assert.Equal(t, "instance-1", headers.Get("X-Instance-ID"))
}
