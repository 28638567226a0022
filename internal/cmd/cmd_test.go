package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/streamdesk/streamdesk/internal/license"
)

const (
	testDomain = "media.example.com"
	testKey    = "GOOD-1234-5678-KEY"
)

// testEnv isolates a command run in a temporary home with a fake license server.
type testEnv struct {
	home     string
	settings string
	server   *httptest.Server
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	home := t.TempDir()
	env := &testEnv{
		home:     home,
		settings: filepath.Join(home, "data", "settings.json"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/verify", func(w http.ResponseWriter, r *http.Request) {
		var req license.VerifyRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.LicenseKey != testKey {
			writeTestJSON(w, map[string]any{"valid": false, "message": "unknown license key"})
			return
		}
		writeTestJSON(w, map[string]any{
			"valid":   true,
			"message": "ok",
			"license": map[string]any{"type": "pro", "expiresAt": "never", "customerName": "Example Media"},
		})
	})
	mux.HandleFunc("POST /api/activate", func(w http.ResponseWriter, r *http.Request) {
		var req license.ActivateRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.LicenseKey != testKey {
			writeTestJSON(w, map[string]any{"success": false, "message": "invalid license key"})
			return
		}
		writeTestJSON(w, map[string]any{
			"success": true,
			"message": "activated",
			"license": map[string]any{"type": "pro", "expiresAt": "never"},
		})
	})
	env.server = httptest.NewServer(mux)
	t.Cleanup(env.server.Close)

	t.Setenv("STREAMDESK_HOME", home)
	t.Setenv("LICENSE_SERVER", env.server.URL)
	return env
}

func writeTestJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (e *testEnv) writeSettings(t *testing.T, domain, key string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(e.settings), 0700))
	data, err := json.Marshal(map[string]any{
		"license": map[string]string{"domain": domain, "licenseKey": key},
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(e.settings, data, 0600))
}

func run(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append(args, "--quiet"))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func runLicense(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return run(t, License(), args...)
}
